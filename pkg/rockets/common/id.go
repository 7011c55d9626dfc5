package common

import (
	"iter"
	"math/rand/v2"
)

// DefaultIDLength gives roughly a one in a few million collision chance
const DefaultIDLength = 8

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomString returns a random string of the given length drawn from
// digits and lowercase letters, e.g. "fubui5e6". It is not unique.
func RandomString(length int) string {
	if length <= 0 {
		length = DefaultIDLength
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}

// IDs yields random identifiers forever. Every range over the sequence
// starts a fresh stream.
func IDs(length int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			if !yield(RandomString(length)) {
				return
			}
		}
	}
}
