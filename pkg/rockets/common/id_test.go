package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomString(t *testing.T) {
	id := RandomString(DefaultIDLength)
	assert.Len(t, id, 8)
	for _, c := range id {
		assert.True(t, strings.ContainsRune(idAlphabet, c), "unexpected character %q", c)
	}

	assert.Len(t, RandomString(16), 16)
	assert.Len(t, RandomString(0), DefaultIDLength)
}

func TestIDsDistinctRate(t *testing.T) {
	const draws = 10000
	seen := make(map[string]struct{}, draws)
	n := 0
	for id := range IDs(DefaultIDLength) {
		seen[id] = struct{}{}
		n++
		if n == draws {
			break
		}
	}
	assert.Equal(t, draws, n)
	assert.Greater(t, float64(len(seen))/draws, 0.999)
}

func TestIDsRestartable(t *testing.T) {
	seq := IDs(4)
	for range 2 {
		count := 0
		for id := range seq {
			assert.Len(t, id, 4)
			count++
			if count == 3 {
				break
			}
		}
		assert.Equal(t, 3, count)
	}
}

func TestNewRequestID(t *testing.T) {
	req := NewRequest("ping", nil)
	assert.Len(t, req.ID, DefaultIDLength)
	assert.Equal(t, req.ID, req.ID)
	assert.NotEqual(t, req.ID, NewRequest("ping", nil).ID)
}
