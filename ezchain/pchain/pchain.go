// Package pchain implements the Personal Chain: a node's own append-only
// log of the Infs it has authored, keyed by the AC height at which each
// was sealed into a block. It is grounded on foundation/node/writer.go's
// simple append-to-slice block log in the teacher stack, generalized from
// raw mined blocks to this node's own (tx, proof) entries.
package pchain

import (
	"fmt"
	"sync"

	"github.com/Re20Cboy/EZchain/ezchain/value"
)

// Entry is one pc_block: everything this node published that was sealed
// into an AC block at Height.
type Entry struct {
	Height uint64
	Txs    []value.TX
	Proofs []value.Proof
	Digest string
}

// Chain is the node's Personal Chain: entries appended in increasing
// height order, one per AC block in which this node authored an Inf.
type Chain struct {
	mu      sync.RWMutex
	entries []Entry
	byHeight map[uint64]int
}

// New constructs an empty Chain.
func New() *Chain {
	return &Chain{byHeight: make(map[uint64]int)}
}

// Append records e, enforcing height monotonicity (P2) and uniqueness: a
// node authors at most one Inf per AC block (§4.1 contract).
func (c *Chain) Append(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byHeight[e.Height]; exists {
		return fmt.Errorf("pchain: already have an entry at height %d", e.Height)
	}
	if n := len(c.entries); n > 0 && e.Height <= c.entries[n-1].Height {
		return fmt.Errorf("pchain: height %d does not exceed tip height %d", e.Height, c.entries[n-1].Height)
	}

	c.byHeight[e.Height] = len(c.entries)
	c.entries = append(c.entries, e)
	return nil
}

// AtHeight returns the entry recorded at height h, if any.
func (c *Chain) AtHeight(h uint64) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.byHeight[h]
	if !ok {
		return Entry{}, false
	}
	return c.entries[idx], true
}

// All returns every recorded entry in height order.
func (c *Chain) All() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len reports how many Infs this node has had sealed into the AC chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
