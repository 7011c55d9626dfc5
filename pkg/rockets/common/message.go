package common

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC version tag written on every outgoing message
const Version = "2.0"

// Reserved method names
const (
	MethodProgress = "progress"
	MethodCancel   = "cancel"
)

// Message is anything that can be placed on the wire as a call: a
// Notification, a Request or a Batch of both.
type Message interface {
	wireValue() (any, error)
}

// Notification is a one-way call. It carries no id and never gets a reply.
type Notification struct {
	Method string
	Params any
}

// NewNotification creates a notification
func NewNotification(method string, params any) *Notification {
	return &Notification{Method: method, Params: params}
}

func (n *Notification) wireValue() (any, error) {
	if n.Method == "" {
		return nil, fmt.Errorf("notification without method: %w", ErrInvalidRequest)
	}
	return wireCall{JSONRPC: Version, Method: n.Method, Params: n.Params}, nil
}

// Request is a call that expects exactly one reply, correlated by ID.
type Request struct {
	Method string
	Params any
	ID     string
}

// NewRequest creates a request with a freshly drawn id
func NewRequest(method string, params any) *Request {
	return &Request{Method: method, Params: params, ID: RandomString(DefaultIDLength)}
}

func (r *Request) wireValue() (any, error) {
	if r.Method == "" || r.ID == "" {
		return nil, fmt.Errorf("request without method or id: %w", ErrInvalidRequest)
	}
	id := r.ID
	return wireCall{JSONRPC: Version, Method: r.Method, Params: r.Params, ID: &id}, nil
}

// Batch is an ordered list of notifications and requests sent as one frame
type Batch []Message

// Validate rejects empty batches and members that are neither a
// Notification nor a Request.
func (b Batch) Validate() error {
	if len(b) == 0 {
		return ErrInvalidRequest
	}
	for _, m := range b {
		switch v := m.(type) {
		case *Notification:
			if v == nil {
				return ErrInvalidRequest
			}
		case *Request:
			if v == nil {
				return ErrInvalidRequest
			}
		default:
			return ErrInvalidRequest
		}
	}
	return nil
}

// RequestIDs returns the distinct ids of the Request members in order of
// first appearance. Notifications contribute nothing.
func (b Batch) RequestIDs() []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, m := range b {
		r, ok := m.(*Request)
		if !ok || r == nil {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}
	return ids
}

func (b Batch) wireValue() (any, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	values := make([]any, 0, len(b))
	for _, m := range b {
		v, err := m.wireValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// Response is a reply to a Request. Exactly one of Result and Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RequestError   `json:"error,omitempty"`
}

// Err returns the error carried by the response, or nil
func (r Response) Err() error {
	if r.Error != nil {
		return r.Error
	}
	return nil
}

// Decode unmarshals the result into v. It returns the response error if
// the server replied with one.
func (r Response) Decode(v any) error {
	if r.Error != nil {
		return r.Error
	}
	if len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

// Value returns the result decoded into a generic Go value
func (r Response) Value() (any, error) {
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Progress reports the operation and amount of an outstanding request
type Progress struct {
	Operation string  `json:"operation"`
	Amount    float64 `json:"amount"`
}

// String prints progress as (operation, amount)
func (p Progress) String() string {
	return fmt.Sprintf("(%s, %g)", p.Operation, p.Amount)
}

// ProgressParams is the params object of a progress notification
type ProgressParams struct {
	ID        string  `json:"id"`
	Operation string  `json:"operation"`
	Amount    float64 `json:"amount"`
}

// ProgressCallback is the type for progress notification callbacks
type ProgressCallback func(progress Progress)

// NormalizeParams wraps a value that is neither a sequence nor a mapping
// into a single-element array. Nil stays nil.
func NormalizeParams(params any) any {
	switch p := params.(type) {
	case nil:
		return nil
	case []any, map[string]any, json.RawMessage:
		return p
	}
	raw, err := json.Marshal(params)
	if err != nil || len(raw) == 0 {
		return []any{params}
	}
	switch raw[0] {
	case '[', '{':
		return params
	case 'n':
		return nil
	}
	return []any{params}
}

type wireCall struct {
	JSONRPC string  `json:"jsonrpc"`
	Method  string  `json:"method"`
	Params  any     `json:"params,omitempty"`
	ID      *string `json:"id,omitempty"`
}
