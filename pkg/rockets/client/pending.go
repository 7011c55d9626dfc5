package client

import (
	"slices"

	"github.com/pederhe/rockets/pkg/rockets/common"
)

// BatchProgressOperation labels aggregated batch progress
const BatchProgressOperation = "Batch request"

// pendingOperation tracks one outstanding request or batch. Its completion
// slot is assigned at most once, on the loop.
type pendingOperation struct {
	ids  []string
	done chan struct{}

	response  common.Response
	responses []common.Response
	err       error

	resolved  bool
	onResolve []func()
}

func newPendingOperation(ids []string) *pendingOperation {
	return &pendingOperation{ids: ids, done: make(chan struct{})}
}

// resolve fills the completion slot. Writes after the first are ignored.
func (p *pendingOperation) resolve(response common.Response, responses []common.Response, err error) {
	if p.resolved {
		return
	}
	p.resolved = true
	p.response = response
	p.responses = responses
	p.err = err
	close(p.done)

	for _, fn := range p.onResolve {
		fn()
	}
	p.onResolve = nil
}

// Done is closed once the operation has resolved
func (p *pendingOperation) Done() <-chan struct{} {
	return p.done
}

// pendingTable owns the live pending operations of one client. It is
// confined to the client's loop.
type pendingTable struct {
	dispatcher *Dispatcher
	ops        map[*pendingOperation]struct{}
}

func newPendingTable(dispatcher *Dispatcher) *pendingTable {
	return &pendingTable{
		dispatcher: dispatcher,
		ops:        make(map[*pendingOperation]struct{}),
	}
}

// Len returns the number of unresolved operations
func (t *pendingTable) Len() int {
	return len(t.ops)
}

// trackRequest registers the correlation and progress subscriptions for a
// single request. It must run before the request is sent.
func (t *pendingTable) trackRequest(id string, onProgress common.ProgressCallback) *pendingOperation {
	op := newPendingOperation([]string{id})
	t.ops[op] = struct{}{}

	disposeResponse := t.dispatcher.subscribe(&subscription{
		once: true,
		match: func(ev Event) bool {
			return ev.Frame.Kind == common.KindResponse && ev.Frame.Response.ID == id
		},
		next: func(ev Event) {
			resp := *ev.Frame.Response
			op.resolve(resp, nil, resp.Err())
		},
		complete: func() {
			op.resolve(common.Response{ID: id}, nil, common.ErrSocketClosed)
		},
	})

	disposeProgress := t.dispatcher.subscribe(&subscription{
		match: func(ev Event) bool {
			return ev.Frame.Kind == common.KindProgress && ev.Frame.Progress.ID == id
		},
		next: func(ev Event) {
			if onProgress != nil {
				onProgress(common.Progress{
					Operation: ev.Frame.Progress.Operation,
					Amount:    ev.Frame.Progress.Amount,
				})
			}
		},
	})

	op.onResolve = append(op.onResolve, disposeResponse, disposeProgress, func() {
		delete(t.ops, op)
	})
	return op
}

// trackBatch registers the correlation and aggregated progress
// subscriptions for a batch whose request ids are ids.
func (t *pendingTable) trackBatch(ids []string, onProgress common.ProgressCallback) *pendingOperation {
	expected := make(map[string]int, len(ids))
	var distinct []string
	for _, id := range ids {
		if _, dup := expected[id]; dup {
			continue
		}
		expected[id] = len(distinct)
		distinct = append(distinct, id)
	}

	op := newPendingOperation(distinct)
	t.ops[op] = struct{}{}

	disposeResponse := t.dispatcher.subscribe(&subscription{
		once: true,
		match: func(ev Event) bool {
			return ev.Frame.Kind == common.KindBatchResponse && sameIDs(ev.Frame.Batch, expected)
		},
		next: func(ev Event) {
			op.resolve(common.Response{}, orderResponses(ev.Frame.Batch, expected), nil)
		},
		complete: func() {
			op.resolve(common.Response{}, nil, common.ErrSocketClosed)
		},
	})

	amounts := make(map[string]float64, len(ids))
	disposeProgress := t.dispatcher.subscribe(&subscription{
		match: func(ev Event) bool {
			if ev.Frame.Kind != common.KindProgress {
				return false
			}
			_, ok := expected[ev.Frame.Progress.ID]
			return ok
		},
		next: func(ev Event) {
			amounts[ev.Frame.Progress.ID] = ev.Frame.Progress.Amount
			// ids that have not reported yet count as zero
			total := 0.0
			for _, amount := range amounts {
				total += amount
			}
			if onProgress != nil {
				onProgress(common.Progress{
					Operation: BatchProgressOperation,
					Amount:    total / float64(len(expected)),
				})
			}
		},
	})

	op.onResolve = append(op.onResolve, disposeResponse, disposeProgress, func() {
		delete(t.ops, op)
	})
	return op
}

// sameIDs reports whether the ids of the batch reply form exactly the
// expected set
func sameIDs(batch []common.Response, expected map[string]int) bool {
	if len(batch) < len(expected) {
		return false
	}
	seen := make(map[string]struct{}, len(expected))
	for _, resp := range batch {
		if _, ok := expected[resp.ID]; !ok {
			return false
		}
		seen[resp.ID] = struct{}{}
	}
	return len(seen) == len(expected)
}

// orderResponses puts the replies in the order the requests were batched.
// Replies sharing an id keep their arrival order.
func orderResponses(batch []common.Response, expected map[string]int) []common.Response {
	ordered := slices.Clone(batch)
	slices.SortStableFunc(ordered, func(a, b common.Response) int {
		return expected[a.ID] - expected[b.ID]
	})
	return ordered
}
