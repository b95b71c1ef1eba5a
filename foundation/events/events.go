// Package events fans a stream of log lines out to any number of live
// subscribers, the way the teaching stack's own foundation/events package
// backs a websocket event feed. It is a distinct concern from
// foundation/eventbus, which delivers exactly one copy of each message to
// exactly one addressed node: this package exists for the opposite shape,
// broadcasting every message to every currently-registered viewer, which
// foundation/eventbus's one-channel-per-id design does not support.
package events

import (
	"fmt"
	"sync"
)

// Events maintains a set of subscriber channels so any number of
// goroutines can register to receive every line sent through it.
type Events struct {
	mu sync.RWMutex
	m  map[string]chan string
}

// New constructs an empty Events.
func New() *Events {
	return &Events{
		m: make(map[string]chan string),
	}
}

// messageBuffer bounds each subscriber's channel; a slow websocket client
// drops messages rather than blocking every other subscriber's Send.
const messageBuffer = 100

// Acquire registers id as a subscriber and returns the channel it receives
// on, creating it if this is the first call for id.
func (e *Events) Acquire(id string) chan string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ch, ok := e.m[id]; ok {
		return ch
	}

	ch := make(chan string, messageBuffer)
	e.m[id] = ch
	return ch
}

// Release closes and removes id's subscription.
func (e *Events) Release(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch, ok := e.m[id]
	if !ok {
		return fmt.Errorf("events: id %q does not exist", id)
	}
	delete(e.m, id)
	close(ch)
	return nil
}

// Send delivers s to every currently registered subscriber without
// blocking; a subscriber whose buffer is full misses the line.
func (e *Events) Send(s string) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.m {
		select {
		case ch <- s:
		default:
		}
	}
}

// Shutdown closes and removes every subscriber channel.
func (e *Events) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, ch := range e.m {
		delete(e.m, id)
		close(ch)
	}
}
