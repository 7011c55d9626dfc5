package client

import (
	"testing"

	"github.com/pederhe/rockets/pkg/rockets/common"
	"github.com/stretchr/testify/assert"
)

func event(text string) Event {
	return Event{Data: []byte(text), Frame: common.Classify([]byte(text))}
}

func TestDispatcherHotBroadcast(t *testing.T) {
	d := newDispatcher()

	var first, second []string
	d.subscribe(&subscription{next: func(ev Event) { first = append(first, string(ev.Data)) }})
	d.publish(event(`"a"`))

	d.subscribe(&subscription{next: func(ev Event) { second = append(second, string(ev.Data)) }})
	d.publish(event(`"b"`))

	assert.Equal(t, []string{`"a"`, `"b"`}, first)
	assert.Equal(t, []string{`"b"`}, second, "late subscribers must not see earlier events")
}

func TestDispatcherOnceAndPredicate(t *testing.T) {
	d := newDispatcher()

	var got []string
	d.subscribe(&subscription{
		once:  true,
		match: isNotification,
		next:  func(ev Event) { got = append(got, ev.Frame.Notification.Method) },
	})
	assert.Equal(t, 1, d.Len())

	d.publish(event(`{"id":"x","result":1}`))
	d.publish(event(`{"method":"first"}`))
	d.publish(event(`{"method":"second"}`))

	assert.Equal(t, []string{"first"}, got)
	assert.Equal(t, 0, d.Len())
}

func TestDispatcherComplete(t *testing.T) {
	d := newDispatcher()

	completed := 0
	for range 3 {
		d.subscribe(&subscription{complete: func() { completed++ }})
	}
	dispose := d.subscribe(&subscription{complete: func() { completed += 100 }})
	dispose()

	d.complete()
	d.complete()
	assert.Equal(t, 3, completed)
	assert.Equal(t, 0, d.Len())
}

func TestDispatcherSubscribeDuringPublish(t *testing.T) {
	d := newDispatcher()

	inner := 0
	d.subscribe(&subscription{
		once: true,
		next: func(Event) {
			d.subscribe(&subscription{next: func(Event) { inner++ }})
		},
	})

	d.publish(event(`1`))
	assert.Equal(t, 0, inner)
	d.publish(event(`2`))
	assert.Equal(t, 1, inner)
}

func TestDispatcherDisposeDuringPublish(t *testing.T) {
	d := newDispatcher()

	calls := 0
	var dispose func()
	d.subscribe(&subscription{next: func(Event) { dispose() }})
	dispose = d.subscribe(&subscription{next: func(Event) { calls++ }})

	d.publish(event(`1`))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, d.Len())
}
