// Package idgen produces the identifiers EZchain assigns to values, trees,
// messages and events. Value and transaction identifiers are per-node
// monotonic counters, mirroring the height counters the original node kept
// per namespace; message, event and tree identifiers borrow google/uuid the way the
// web layer stamps every request with a trace id.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Counter is a namespace-scoped monotonic generator. A node uses one Counter
// per identifier space (value ids, tree ids, AC heights, CC epochs, ...) so
// that concurrent goroutines can mint ids without a shared lock.
type Counter struct {
	nodeID string
	next   atomic.Uint64
}

// NewCounter creates a Counter that produces ids prefixed with nodeID so
// ids minted by different nodes never collide.
func NewCounter(nodeID string) *Counter {
	return &Counter{nodeID: nodeID}
}

// Next returns the next id in the sequence, formatted as "<nodeID>-<n>".
func (c *Counter) Next() string {
	n := c.next.Add(1)
	return fmt.Sprintf("%s-%d", c.nodeID, n)
}

// Peek returns the sequence number the next call to Next will use,
// without consuming it.
func (c *Counter) Peek() uint64 {
	return c.next.Load() + 1
}

// NumericCounter is a namespace-scoped monotonic counter that yields raw
// uint64 values rather than formatted strings, for domain identifiers
// (value ids, transaction ids, AC heights) that are carried as integers on
// the wire rather than as display-only ids.
type NumericCounter struct {
	next atomic.Uint64
}

// NewNumericCounter creates a NumericCounter starting at zero.
func NewNumericCounter() *NumericCounter {
	return &NumericCounter{}
}

// Next returns the next value in the sequence, starting at 1.
func (c *NumericCounter) Next() uint64 {
	return c.next.Add(1)
}

// NewMessageID mints a unique identifier for a gossip or committee message.
func NewMessageID() string {
	return uuid.NewString()
}

// NewTreeID mints a unique identifier for a value's proof tree.
func NewTreeID() string {
	return uuid.NewString()
}
