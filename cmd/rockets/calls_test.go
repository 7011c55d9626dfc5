package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pederhe/rockets/pkg/rockets/client"
	"github.com/pederhe/rockets/pkg/rockets/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	assert.Nil(t, parseParams(nil))
	assert.Equal(t, []any{1.0, 2.0}, parseParams([]string{"[1,", "2]"}))
	assert.Equal(t, map[string]any{"a": "b"}, parseParams([]string{`{"a":"b"}`}))
	assert.Equal(t, "hello world", parseParams([]string{"hello", "world"}))
}

func TestParseBatch(t *testing.T) {
	batch, err := parseBatch(`[{"method":"a","params":[1]},{"method":"b","notify":true},{"method":"c","params":3}]`)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	req, ok := batch[0].(*common.Request)
	require.True(t, ok)
	assert.Equal(t, "a", req.Method)
	assert.Equal(t, []any{1.0}, req.Params)

	_, ok = batch[1].(*common.Notification)
	assert.True(t, ok)

	req, ok = batch[2].(*common.Request)
	require.True(t, ok)
	assert.Equal(t, []any{3.0}, req.Params)

	_, err = parseBatch(`{"method":"a"}`)
	assert.Error(t, err)
	_, err = parseBatch(`[{"params":1}]`)
	assert.Error(t, err)
}

// echoServer answers every request with its params
func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{Subprotocols: []string{"rockets"}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var call struct {
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
				ID     *string         `json:"id"`
			}
			if json.Unmarshal(data, &call) != nil || call.ID == nil || call.Method == "slow" {
				continue
			}
			conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"method":  "progress",
				"params":  map[string]any{"id": *call.ID, "operation": "echo", "amount": 0.5},
			})
			conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": *call.ID, "result": call.Params})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunnerRequest(t *testing.T) {
	server := echoServer(t)
	c := client.NewClient(server.URL, nil)
	defer c.Close()

	var out bytes.Buffer
	r := &runner{client: c, timeout: 5 * time.Second, out: &out}

	require.NoError(t, r.execute("request", []string{"echo", `{"x":1}`}))
	assert.Contains(t, out.String(), "50% echo")
	assert.Contains(t, out.String(), "\"x\": 1")

	assert.Error(t, r.execute("request", nil))
	assert.Error(t, r.execute("bogus", nil))
}

func TestRunnerTimeout(t *testing.T) {
	server := echoServer(t)
	c := client.NewClient(server.URL, nil)
	defer c.Close()

	r := &runner{client: c, timeout: 50 * time.Millisecond, out: &bytes.Buffer{}}
	err := r.execute("request", []string{"slow"})
	assert.ErrorIs(t, err, client.ErrResponseTimeout)
}

func TestRunnerNotificationBatch(t *testing.T) {
	server := echoServer(t)
	c := client.NewClient(server.URL, nil)
	defer c.Close()

	var out bytes.Buffer
	r := &runner{client: c, timeout: 5 * time.Second, out: &out}
	require.NoError(t, r.execute("batch", []string{`[{"method":"a","notify":true}]`}))
	assert.Contains(t, out.String(), "sent")
}
