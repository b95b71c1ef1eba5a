// Package ccchain implements the Consolidation Chain: the periodic
// finalization blocks the committee produces to record which transaction
// sets are disputed or missing. It is grounded the same way acchain is, on
// foundation/blockchain/database's slice-backed block store, generalized
// to the fail_txs/fail_txn invalidation map a CC block carries instead of
// account balances.
package ccchain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Re20Cboy/EZchain/ezchain/value"
)

// GenesisID is the PrevID of the chain's first block.
const GenesisID = ""

// FailFullSet marks an Inf digest in FailTxs as entirely rejected. Any
// other value is an index into FailTxn identifying the specific rejected
// subset.
const FailFullSet = -1

// Block is one CC block: the committee's agreed-upon record of which
// Infs (by digest), or subsets within them, are invalid as of AcbHeight.
type Block struct {
	Height     uint64
	ID         string
	PrevID     string
	ProducerID value.NodeID
	ACBHeight  uint64
	Epoch      uint64
	Timestamp  int64
	FailTxs    map[string]int32
	FailTxn    [][]value.TX
}

// Status describes how a CC block treats a given transaction-set digest.
type Status int

const (
	// StatusClean means the digest is not mentioned; nothing is masked.
	StatusClean Status = iota
	// StatusFullFail means the entire set is rejected (§4.3(b): "never
	// happened").
	StatusFullFail
	// StatusPartialFail means a specific subset within the set is
	// rejected; FailStatus also returns that subset.
	StatusPartialFail
)

// FailStatus reports how b treats the transaction set with digest abs.
func (b Block) FailStatus(abs string) (Status, []value.TX) {
	idx, ok := b.FailTxs[abs]
	if !ok {
		return StatusClean, nil
	}
	if idx == FailFullSet {
		return StatusFullFail, nil
	}
	if idx < 0 || int(idx) >= len(b.FailTxn) {
		return StatusFullFail, nil
	}
	return StatusPartialFail, b.FailTxn[idx]
}

// Chain is one node's local view of the Consolidation Chain. Safety
// guarantee (ii) from §4.5: only one block at a given height is ever
// accepted, enforced by Append rejecting duplicates.
type Chain struct {
	mu     sync.RWMutex
	blocks []Block
	byID   map[string]int
}

// New constructs an empty Chain.
func New() *Chain {
	return &Chain{byID: make(map[string]int)}
}

// Append validates and appends b, rejecting a duplicate height (safety
// guarantee ii) or a block that does not extend the current tip.
func (c *Chain) Append(b Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.blocks) == 0 {
		if b.Height != 1 || b.PrevID != GenesisID {
			return fmt.Errorf("ccchain: first block must have height 1 and empty prev id, got height %d prev %q", b.Height, b.PrevID)
		}
	} else {
		tip := c.blocks[len(c.blocks)-1]
		if b.Height <= tip.Height {
			return fmt.Errorf("ccchain: block %s height %d does not exceed tip height %d", b.ID, b.Height, tip.Height)
		}
		if b.PrevID != tip.ID {
			return fmt.Errorf("ccchain: block %s prev %q does not match tip %s", b.ID, b.PrevID, tip.ID)
		}
		if b.Height != tip.Height+1 {
			return fmt.Errorf("ccchain: block %s height %d does not follow tip height %d", b.ID, b.Height, tip.Height)
		}
	}

	if _, exists := c.byID[b.ID]; exists {
		return fmt.Errorf("ccchain: block %s already present", b.ID)
	}

	c.byID[b.ID] = len(c.blocks)
	c.blocks = append(c.blocks, b)
	return nil
}

// Tip returns the most recently appended block.
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

// TipAtOrBefore returns the latest CC block whose AcbHeight is <= acbHeight
// — the cc_tip pointer GetOwner advances through a proof's sets per §4.3.
func (c *Chain) TipAtOrBefore(acbHeight uint64) (Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := sort.Search(len(c.blocks), func(i int) bool {
		return c.blocks[i].ACBHeight > acbHeight
	})
	if idx == 0 {
		return Block{}, false
	}
	return c.blocks[idx-1], true
}
