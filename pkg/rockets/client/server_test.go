package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// testServer is a small Rockets server used by the client tests. It
// implements:
//
//	ping          -> "pong"
//	double(x)     -> 2x
//	fail          -> error -32000 "boom"
//	slow          -> never answers
//	close_me      -> closes the connection without answering
//	notify_me     -> sends a malformed frame, a progress event, a "chat"
//	                 notification, then answers "ok"
//	test_progress -> reports progress 0.5 for the request, then "DONE"
//
// Batches are answered as one array in reverse order. A batch containing
// "slow" is never answered. In a batch of test_progress requests each
// request reports 0.5 in turn before the reply is sent.
type testServer struct {
	*httptest.Server
	t        *testing.T
	received chan json.RawMessage
	protocol chan string

	mu    sync.Mutex
	conns []*websocket.Conn
}

type testCall struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     *string         `json:"id,omitempty"`
}

func newTestServer(t *testing.T) *testServer {
	s := &testServer{
		t:        t,
		received: make(chan json.RawMessage, 256),
		protocol: make(chan string, 16),
	}
	upgrader := websocket.Upgrader{Subprotocols: []string{"rockets"}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.protocol <- conn.Subprotocol()
		go s.serve(conn)
	}))
	t.Cleanup(s.shutdown)
	return s
}

func (s *testServer) shutdown() {
	s.mu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.Server.Close()
}

// next returns the next frame the server received
func (s *testServer) next() json.RawMessage {
	s.t.Helper()
	select {
	case msg := <-s.received:
		return msg
	case <-time.After(5 * time.Second):
		s.t.Fatal("server did not receive a frame in time")
		return nil
	}
}

// nextCall returns the next frame the server received, decoded as one call
func (s *testServer) nextCall() testCall {
	s.t.Helper()
	var call testCall
	if err := json.Unmarshal(s.next(), &call); err != nil {
		s.t.Fatalf("frame is not a single call: %v", err)
	}
	return call
}

func (s *testServer) serve(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.received <- json.RawMessage(data)

		if len(data) > 0 && data[0] == '[' {
			var calls []testCall
			if err := json.Unmarshal(data, &calls); err != nil {
				continue
			}
			s.serveBatch(conn, calls)
			continue
		}

		var call testCall
		if err := json.Unmarshal(data, &call); err != nil {
			continue
		}
		if !s.serveCall(conn, call) {
			return
		}
	}
}

func (s *testServer) serveCall(conn *websocket.Conn, call testCall) bool {
	switch call.Method {
	case "close_me":
		conn.Close()
		return false
	case "notify_me":
		conn.WriteMessage(websocket.TextMessage, []byte("definitely not json"))
		writeJSON(conn, map[string]any{
			"jsonrpc": "2.0", "method": "progress",
			"params": map[string]any{"id": "someone-else", "operation": "x", "amount": 0.1},
		})
		writeJSON(conn, map[string]any{
			"jsonrpc": "2.0", "method": "chat",
			"params": map[string]any{"text": "hello"},
		})
	case "test_progress":
		if call.ID != nil {
			writeJSON(conn, progressNotification(*call.ID, 0.5))
		}
	}

	if call.ID == nil {
		return true
	}
	if resp, ok := s.answer(call); ok {
		writeJSON(conn, resp)
	}
	return true
}

func (s *testServer) serveBatch(conn *websocket.Conn, calls []testCall) {
	var responses []map[string]any
	for _, call := range calls {
		if call.Method == "slow" {
			return
		}
		if call.ID == nil {
			continue
		}
		if call.Method == "test_progress" {
			writeJSON(conn, progressNotification(*call.ID, 0.5))
		}
		if resp, ok := s.answer(call); ok {
			responses = append([]map[string]any{resp}, responses...)
		}
	}
	if len(responses) > 0 {
		writeJSON(conn, responses)
	}
}

func (s *testServer) answer(call testCall) (map[string]any, bool) {
	resp := map[string]any{"jsonrpc": "2.0", "id": *call.ID}
	switch call.Method {
	case "ping":
		resp["result"] = "pong"
	case "double":
		var args []float64
		if err := json.Unmarshal(call.Params, &args); err != nil || len(args) != 1 {
			resp["error"] = map[string]any{"code": -32602, "message": "Invalid params"}
			break
		}
		resp["result"] = args[0] * 2
	case "fail":
		resp["error"] = map[string]any{"code": -32000, "message": "boom", "data": "details"}
	case "notify_me":
		resp["result"] = "ok"
	case "test_progress":
		resp["result"] = "DONE"
	case "slow":
		return nil, false
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "Method not found"}
	}
	return resp, true
}

func progressNotification(id string, amount float64) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"method":  "progress",
		"params":  map[string]any{"id": id, "operation": "almost done", "amount": amount},
	}
}

func writeJSON(conn *websocket.Conn, v any) {
	data, _ := json.Marshal(v)
	conn.WriteMessage(websocket.TextMessage, data)
}
