// Package driver runs the background goroutines that stand in for the
// out-of-scope network simulator: one goroutine per node pumping its
// eventbus channel through HandleEvent, one exponentially-timed GEN_TX
// timer and one exponentially-timed HASH timer per node (spec §4.1),
// and a single epoch coordinator stepping every node through the
// INIT->γ1->γ2->γ3->γ4->IDLE phase timeouts on a fixed schedule (spec
// §4.5). It is grounded on foundation/blockchain/worker.Run's
// multi-goroutine-per-concern registration, generalized from
// mining/peer-sync/tx-sharing to the Inf/AC/CC timer set.
package driver

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Re20Cboy/EZchain/ezchain/consensus"
	"github.com/Re20Cboy/EZchain/ezchain/node"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/eventbus"
	"github.com/Re20Cboy/EZchain/foundation/idgen"
)

// EventHandler mirrors ezchain/node.EventHandler for the driver's own
// lifecycle logging, so main.go can wire one handler to every layer.
type EventHandler func(v string, args ...any)

// Config collects the spec §6 timing parameters the driver needs beyond
// what each Node already carries in its own ezchain/node.Config.
type Config struct {
	// GenTxMean is the Poisson mean inter-arrival for a node's own
	// transaction generation timer (1/k).
	GenTxMean time.Duration
	// HashMean is the exponential mean inter-arrival for a node's mining
	// timer (round*N).
	HashMean time.Duration
	// EpochLength is T: the period between successive T_TIMER ticks.
	EpochLength time.Duration
	// UseCC toggles whether the epoch coordinator runs the CC consensus
	// phases at all; false runs the chain in AC-only mode.
	UseCC bool

	Gamma1 time.Duration
	Gamma2 time.Duration
	Gamma3 time.Duration
	Gamma4 time.Duration
}

// Driver owns the background goroutines driving a fixed set of nodes
// sharing one bus. Construct with Run; stop with Stop.
type Driver struct {
	cfg   Config
	bus   *eventbus.Memory
	nodes map[value.NodeID]*node.Node
	ev    EventHandler

	wg   sync.WaitGroup
	shut chan struct{}
}

// Run starts every background goroutine and returns immediately.
func Run(nodes map[value.NodeID]*node.Node, bus *eventbus.Memory, cfg Config, ev EventHandler) *Driver {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	d := &Driver{
		cfg:   cfg,
		bus:   bus,
		nodes: nodes,
		ev:    ev,
		shut:  make(chan struct{}),
	}

	for id, n := range nodes {
		ch := bus.Subscribe(consensus.MemberID(id))

		d.wg.Add(3)
		go d.pump(n, ch)
		go d.genTxTimer(id, uint64(id))
		go d.hashTimer(id, uint64(id)+1)
	}

	if cfg.UseCC {
		d.wg.Add(1)
		go d.epochCoordinator()
	}

	d.ev("driver: started", "nodes", len(nodes), "use_cc", cfg.UseCC)
	return d
}

// Stop signals every goroutine to exit and waits for them to do so.
func (d *Driver) Stop() {
	close(d.shut)
	d.wg.Wait()
	d.ev("driver: stopped")
}

// pump is the single-goroutine-per-node event dispatch loop spec §5
// requires: it is the only caller of n.HandleEvent, so no two goroutines
// ever mutate the same Node concurrently.
func (d *Driver) pump(n *node.Node, ch <-chan eventbus.Event) {
	defer d.wg.Done()
	for {
		select {
		case evt := <-ch:
			n.HandleEvent(evt)
		case <-d.shut:
			return
		}
	}
}

// genTxTimer fires a GEN_TX tick at exponentially-distributed intervals
// with mean cfg.GenTxMean, the Poisson transaction-generation process §4.1
// describes. seed gives each node's timer an independent stream.
func (d *Driver) genTxTimer(id value.NodeID, seed uint64) {
	defer d.wg.Done()
	if d.cfg.GenTxMean <= 0 {
		return
	}
	d.runExponential(seed, 1, d.cfg.GenTxMean, func() {
		d.bus.Send(consensus.MemberID(id), eventbus.Event{
			Kind:    node.KindGenTx,
			ID:      idgen.NewMessageID(),
			NodeID:  consensus.MemberID(id),
			EvtTime: d.bus.Now(),
		})
	})
}

// hashTimer fires a HASH tick at exponentially-distributed intervals with
// mean cfg.HashMean, the independent per-node mining timer §4.1 describes.
func (d *Driver) hashTimer(id value.NodeID, seed uint64) {
	defer d.wg.Done()
	if d.cfg.HashMean <= 0 {
		return
	}
	d.runExponential(seed, 2, d.cfg.HashMean, func() {
		d.bus.Send(consensus.MemberID(id), eventbus.Event{
			Kind:    node.KindHash,
			ID:      idgen.NewMessageID(),
			NodeID:  consensus.MemberID(id),
			EvtTime: d.bus.Now(),
		})
	})
}

// runExponential calls fire on exponentially-distributed ticks with the
// given mean until Stop is called.
func (d *Driver) runExponential(seed, stream uint64, mean time.Duration, fire func()) {
	rng := rand.New(rand.NewPCG(seed, stream))
	for {
		wait := time.Duration(rng.ExpFloat64() * float64(mean))
		if wait <= 0 {
			wait = time.Millisecond
		}
		select {
		case <-time.After(wait):
			fire()
		case <-d.shut:
			return
		}
	}
}

// epochCoordinator drives every node through one INIT->γ1->γ2->γ3->γ4->IDLE
// round per EpochLength tick. Each phase method is safe to call on a node
// that isn't in the committee or isn't the leader — those calls are no-ops
// inside ezchain/node — so the coordinator simply calls every phase method
// on every node and lets each node's own state decide whether to act.
func (d *Driver) epochCoordinator() {
	defer d.wg.Done()

	var epoch uint64
	for {
		if !d.sleep(d.cfg.EpochLength) {
			return
		}
		epoch++

		d.forEachNode(func(n *node.Node) {
			if err := n.StartEpoch(epoch); err != nil {
				d.ev("driver: start_epoch failed", "epoch", epoch, "error", err)
			}
		})
		d.forEachNode((*node.Node).BroadcastGamma1)

		if !d.sleep(d.cfg.Gamma1) {
			return
		}
		d.forEachNode((*node.Node).CloseGamma1)
		d.forEachNode((*node.Node).ProposeGamma2)

		if !d.sleep(d.cfg.Gamma2) {
			return
		}
		d.forEachNode((*node.Node).Gamma2Timeout)

		if !d.sleep(d.cfg.Gamma3) {
			return
		}
		d.forEachNode((*node.Node).CloseAppeal)

		if !d.sleep(d.cfg.Gamma4) {
			return
		}
		d.forEachNode((*node.Node).Gamma4Timeout)
	}
}

func (d *Driver) forEachNode(fn func(*node.Node)) {
	for _, n := range d.nodes {
		fn(n)
	}
}

// sleep waits for dur or the shutdown signal, reporting false if shutdown
// fired first.
func (d *Driver) sleep(dur time.Duration) bool {
	if dur <= 0 {
		return true
	}
	select {
	case <-time.After(dur):
		return true
	case <-d.shut:
		return false
	}
}
