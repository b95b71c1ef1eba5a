package node

import (
	"crypto/ecdsa"
	"math/rand/v2"
	"time"

	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/blobstore"
	"github.com/Re20Cboy/EZchain/foundation/eventbus"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
	"github.com/Re20Cboy/EZchain/foundation/idgen"
	"github.com/Re20Cboy/EZchain/foundation/threshold"
)

// EventHandler mirrors the teacher's state.EventHandler: a narrow logging
// seam a Node is handed instead of a concrete logger, so test
// code can inject a no-op or buffering handler.
type EventHandler func(v string, args ...any)

// NoopEventHandler discards everything, the default when a Config omits
// one.
func NoopEventHandler(string, ...any) {}

// Config collects everything a Node needs at construction, mirroring
// spec §6's configuration surface plus the collaborators §9's "no
// package-level globals" decision requires callers to inject explicitly.
type Config struct {
	SelfID value.NodeID
	Peers  []value.NodeID

	// CommitteeCap (M), EpochLength (T), MiningMean, UseCC and the four
	// phase timeouts are the part of the spec §6 configuration surface a
	// Node carries, expressed as Go durations/counts rather than raw
	// seconds; N, N_V and k are applied by whoever builds and drives the
	// nodes.
	CommitteeCap int
	EpochLength  time.Duration
	MiningMean   time.Duration
	UseCC        bool
	Gamma1       time.Duration
	Gamma2       time.Duration
	Gamma3       time.Duration
	Gamma4       time.Duration

	Bus      eventbus.Bus
	Store    blobstore.Store
	Hasher   hashing.Hasher
	Verifier threshold.Verifier
	SignKey  *ecdsa.PrivateKey
	Rand     *rand.Rand
	Log      EventHandler

	NextTxID func() uint64
	NewID    func() string
}

func (c *Config) setDefaults() {
	if c.Hasher == nil {
		c.Hasher = hashing.NewKeccak256Hasher()
	}
	if c.Verifier == nil {
		c.Verifier = threshold.NewECDSAQuorum()
	}
	if c.Log == nil {
		c.Log = NoopEventHandler
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewPCG(uint64(c.SelfID), 0xEC))
	}
	if c.CommitteeCap <= 0 {
		c.CommitteeCap = len(c.Peers) + 1
	}
	if c.NextTxID == nil {
		counter := idgen.NewNumericCounter()
		base := uint64(c.SelfID) * 1_000_000
		c.NextTxID = func() uint64 { return base + counter.Next() }
	}
	if c.NewID == nil {
		c.NewID = idgen.NewMessageID
	}
}
