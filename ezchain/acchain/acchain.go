// Package acchain implements the Announce Chain: the append-only ledger of
// transaction-set digests each node mines and observes. It is grounded on
// foundation/blockchain/database's slice-backed block store (a block holds
// only a PrevID, never a pointer to its predecessor) generalized from
// accounts/balances to the node_filter/abs_list shape AC blocks carry.
package acchain

import (
	"fmt"
	"sync"

	"github.com/Re20Cboy/EZchain/ezchain/value"
)

// GenesisID is the PrevID of the chain's first block.
const GenesisID = ""

// Block is one AC block: a producer's claim to have observed a set of
// Infs (abs_list) authored by a set of nodes (node_filter) since the
// previous block. Immutable once constructed.
type Block struct {
	Height     uint64
	ID         string
	PrevID     string
	ProducerID value.NodeID
	Timestamp  int64
	NodeFilter map[value.NodeID]bool
	AbsList    []string
}

// ContainsAbs reports whether digest abs is listed in the block.
func (b Block) ContainsAbs(abs string) bool {
	for _, a := range b.AbsList {
		if a == abs {
			return true
		}
	}
	return false
}

// PackedInf is one Inf the miner is embedding into a new block: just the
// fields needed to update node_filter and abs_list.
type PackedInf struct {
	Author value.NodeID
	Abs    string
}

// NewBlock packs infs into a new block extending a chain whose current tip
// is described by (prevID, prevHeight). The caller (the AC miner) is
// responsible for having verified every Inf beforehand (§4.2); this
// constructor only assembles the block.
func NewBlock(prevID string, prevHeight uint64, producerID value.NodeID, timestamp int64, id string, infs []PackedInf) Block {
	b := Block{
		Height:     prevHeight + 1,
		ID:         id,
		PrevID:     prevID,
		ProducerID: producerID,
		Timestamp:  timestamp,
		NodeFilter: make(map[value.NodeID]bool, len(infs)),
	}
	for _, inf := range infs {
		b.NodeFilter[inf.Author] = true
		b.AbsList = append(b.AbsList, inf.Abs)
	}
	return b
}

// Chain is one node's local view of the Announce Chain: an append-only
// slice of blocks addressed by height, plus an id index, mirroring
// database.Database's slice-backed block store rather than a pointer
// linked list.
//
// Fork choice (§9 Open Question, decided): a block is accepted only if its
// PrevID matches the current tip's ID and its Height is tip.Height+1.
// Out-of-order or competing blocks are rejected outright; this chain never
// reorgs, matching the source's assumption that blocks arrive in order.
type Chain struct {
	mu     sync.RWMutex
	blocks []Block
	byID   map[string]int
}

// New constructs an empty Chain.
func New() *Chain {
	return &Chain{byID: make(map[string]int)}
}

// Append validates and appends b to the chain. It is the only mutator.
func (c *Chain) Append(b Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.blocks) == 0 {
		if b.Height != 1 || b.PrevID != GenesisID {
			return fmt.Errorf("acchain: first block must have height 1 and empty prev id, got height %d prev %q", b.Height, b.PrevID)
		}
	} else {
		tip := c.blocks[len(c.blocks)-1]
		if b.PrevID != tip.ID {
			return fmt.Errorf("acchain: block %s prev %q does not match tip %s", b.ID, b.PrevID, tip.ID)
		}
		if b.Height != tip.Height+1 {
			return fmt.Errorf("acchain: block %s height %d does not follow tip height %d", b.ID, b.Height, tip.Height)
		}
	}

	if _, exists := c.byID[b.ID]; exists {
		return fmt.Errorf("acchain: block %s already present", b.ID)
	}

	c.byID[b.ID] = len(c.blocks)
	c.blocks = append(c.blocks, b)
	return nil
}

// Tip returns the most recently appended block and whether the chain is
// non-empty.
func (c *Chain) Tip() (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.blocks) == 0 {
		return Block{}, false
	}
	return c.blocks[len(c.blocks)-1], true
}

// Height returns the height of the chain's tip, or zero if empty.
func (c *Chain) Height() uint64 {
	tip, ok := c.Tip()
	if !ok {
		return 0
	}
	return tip.Height
}

// AtHeight returns the block recorded at the given height.
func (c *Chain) AtHeight(h uint64) (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if h == 0 || h > uint64(len(c.blocks)) {
		return Block{}, false
	}
	return c.blocks[h-1], true
}

// ByID returns the block with the given id.
func (c *Chain) ByID(id string) (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx, ok := c.byID[id]
	if !ok {
		return Block{}, false
	}
	return c.blocks[idx], true
}

// AuthoredBetween reports whether any block with height strictly between
// (fromExclusive, toExclusive) lists author in its node_filter — the
// continuity check in GetOwner §4.3(a).
func (c *Chain) AuthoredBetween(fromExclusive, toExclusive uint64, author value.NodeID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for h := fromExclusive + 1; h < toExclusive; h++ {
		if h == 0 || h > uint64(len(c.blocks)) {
			continue
		}
		if c.blocks[h-1].NodeFilter[author] {
			return true
		}
	}
	return false
}
