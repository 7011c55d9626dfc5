package common

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind classifies an inbound frame
type Kind int

const (
	// KindMalformed is a frame that is not valid JSON
	KindMalformed Kind = iota
	// KindOther is valid JSON the client has no use for
	KindOther
	// KindNotification is a server notification other than progress
	KindNotification
	// KindProgress is a progress notification for an outstanding request
	KindProgress
	// KindResponse is a reply to a single request
	KindResponse
	// KindBatchResponse is the array reply to a batch
	KindBatchResponse
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "malformed"
	case KindOther:
		return "other"
	case KindNotification:
		return "notification"
	case KindProgress:
		return "progress"
	case KindResponse:
		return "response"
	case KindBatchResponse:
		return "batch-response"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Frame is a classified inbound message
type Frame struct {
	Kind Kind
	// Raw holds the frame text as received
	Raw json.RawMessage

	Notification *Notification
	Progress     *ProgressParams
	Response     *Response
	Batch        []Response
}

// Encode converts a Notification, Request or Batch into wire text
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, ErrInvalidRequest
	}
	v, err := m.wireValue()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("serialize message error: %w", err)
	}
	return data, nil
}

// Classify decodes and classifies an inbound frame. It never fails: text
// that does not parse is reported as KindMalformed.
func Classify(data []byte) Frame {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return Frame{Kind: KindMalformed}
	}
	frame := Frame{Kind: KindOther, Raw: json.RawMessage(trimmed)}

	switch trimmed[0] {
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return Frame{Kind: KindMalformed}
		}
		classifyObject(&frame, fields)
	case '[':
		var entries []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &entries); err != nil || len(entries) == 0 {
			return frame
		}
		batch := make([]Response, 0, len(entries))
		for _, fields := range entries {
			resp, ok := decodeResponse(fields)
			if !ok {
				return frame
			}
			batch = append(batch, *resp)
		}
		frame.Kind = KindBatchResponse
		frame.Batch = batch
	}
	return frame
}

func classifyObject(frame *Frame, fields map[string]json.RawMessage) {
	rawMethod, hasMethod := fields["method"]
	if !hasMethod {
		if resp, ok := decodeResponse(fields); ok {
			frame.Kind = KindResponse
			frame.Response = resp
		}
		return
	}

	var method string
	if err := json.Unmarshal(rawMethod, &method); err != nil {
		return
	}

	if method == MethodProgress {
		if p, ok := decodeProgress(fields["params"]); ok {
			// progress with unreadable params is ignored
			if p != nil {
				frame.Kind = KindProgress
				frame.Progress = p
			}
			return
		}
	}

	if _, hasID := fields["id"]; hasID {
		// a call from the server; this client does not serve requests
		return
	}

	n := &Notification{Method: method}
	if rawParams, ok := fields["params"]; ok {
		var params any
		if err := json.Unmarshal(rawParams, &params); err == nil {
			n.Params = params
		}
	}
	frame.Kind = KindNotification
	frame.Notification = n
}

func decodeResponse(fields map[string]json.RawMessage) (*Response, bool) {
	rawID, hasID := fields["id"]
	if !hasID {
		return nil, false
	}
	if _, hasMethod := fields["method"]; hasMethod {
		return nil, false
	}

	resp := &Response{ID: decodeID(rawID)}
	if rawErr, ok := fields["error"]; ok && !isNull(rawErr) {
		var reqErr RequestError
		if err := json.Unmarshal(rawErr, &reqErr); err != nil {
			reqErr = RequestError{Code: InternalError, Message: "invalid error object in response"}
		}
		resp.Error = &reqErr
		return resp, true
	}
	if rawResult, ok := fields["result"]; ok {
		resp.Result = rawResult
	} else {
		resp.Result = json.RawMessage("null")
	}
	return resp, true
}

// decodeProgress reports whether raw carries a request id. The returned
// params are nil when operation or amount have the wrong type.
func decodeProgress(raw json.RawMessage) (*ProgressParams, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	rawID, ok := fields["id"]
	if !ok {
		return nil, false
	}
	p := &ProgressParams{ID: decodeID(rawID)}
	if v, ok := fields["operation"]; ok {
		if err := json.Unmarshal(v, &p.Operation); err != nil {
			return nil, true
		}
	}
	if v, ok := fields["amount"]; ok {
		if err := json.Unmarshal(v, &p.Amount); err != nil {
			return nil, true
		}
	}
	return p, true
}

// decodeID renders an id as a string. Non-string ids keep their JSON text.
func decodeID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
