package client

import (
	"github.com/pederhe/rockets/pkg/rockets/common"
)

// Event is one inbound frame as it travels through the dispatch stream
type Event struct {
	Data  []byte
	Frame common.Frame
}

// subscription is a (predicate, callback) pair registered on the stream.
// A once subscription is removed after its first match.
type subscription struct {
	match    func(Event) bool
	next     func(Event)
	complete func()
	once     bool
	closed   bool
}

// Dispatcher republishes inbound frames to every live subscriber. It is a
// hot broadcast: a subscriber only sees events published after it joined.
// All methods must be called on the owning loop.
type Dispatcher struct {
	subs []*subscription
}

func newDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// subscribe registers s and returns a function that disposes it
func (d *Dispatcher) subscribe(s *subscription) func() {
	d.subs = append(d.subs, s)
	return func() {
		if s.closed {
			return
		}
		s.closed = true
		d.compact()
	}
}

// publish delivers ev to every matching subscriber in registration order.
// Subscribers added while publishing do not see ev.
func (d *Dispatcher) publish(ev Event) {
	snapshot := append([]*subscription(nil), d.subs...)
	removed := false
	for _, s := range snapshot {
		if s.closed || (s.match != nil && !s.match(ev)) {
			continue
		}
		if s.once {
			s.closed = true
			removed = true
		}
		if s.next != nil {
			s.next(ev)
		}
	}
	if removed {
		d.compact()
	}
}

// complete signals the end of the stream to every live subscriber and
// drops them all.
func (d *Dispatcher) complete() {
	snapshot := d.subs
	d.subs = nil
	for _, s := range snapshot {
		if s.closed {
			continue
		}
		s.closed = true
		if s.complete != nil {
			s.complete()
		}
	}
}

// Len returns the number of live subscriptions
func (d *Dispatcher) Len() int {
	n := 0
	for _, s := range d.subs {
		if !s.closed {
			n++
		}
	}
	return n
}

func (d *Dispatcher) compact() {
	live := d.subs[:0]
	for _, s := range d.subs {
		if !s.closed {
			live = append(live, s)
		}
	}
	for i := len(live); i < len(d.subs); i++ {
		d.subs[i] = nil
	}
	d.subs = live
}

func isJSON(ev Event) bool {
	return ev.Frame.Kind != common.KindMalformed
}

func isNotification(ev Event) bool {
	return ev.Frame.Kind == common.KindNotification
}
