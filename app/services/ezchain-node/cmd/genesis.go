package cmd

import (
	"math"
	"math/rand/v2"

	"github.com/Re20Cboy/EZchain/ezchain/acchain"
	"github.com/Re20Cboy/EZchain/ezchain/node"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
)

// genesisIssuer is a reserved node id no live participant ever holds,
// standing in for the minting authority every Value's InitID anchors to
// (ezchain/node.Node.SeedHolding's doc comment calls this the CLI's
// genesis bootstrap, the Go equivalent of the source's N_V-Poisson initial
// value assignment).
const genesisIssuer = value.NodeID(0)

type genesisAssignment struct {
	owner value.NodeID
	val   value.ID
	set   value.TxSet
}

// seedGenesisHoldings assigns each node a Poisson(nv)-distributed count of
// freshly minted Values, anchors them all in one bootstrap AC block every
// node appends, and installs the matching genesis Proof into each owner's
// holdings (spec §6's N_V option).
func seedGenesisHoldings(nodes map[value.NodeID]*node.Node, ids []value.NodeID, nv int, hasher hashing.Hasher) error {
	if nv <= 0 {
		return nil
	}

	rng := rand.New(rand.NewPCG(1, 1))

	var nextValueID uint64 = 1
	var assignments []genesisAssignment
	for _, id := range ids {
		count := poissonSample(rng, nv)
		for i := 0; i < count; i++ {
			valID := value.ID(nextValueID)
			txID := nextValueID
			nextValueID++

			assignments = append(assignments, genesisAssignment{
				owner: id,
				val:   valID,
				set: value.TxSet{
					Height: 1,
					Txs:    []value.TX{{TxID: txID, ValueID: valID, OwnerID: genesisIssuer, RecvID: id}},
				},
			})
		}
	}
	if len(assignments) == 0 {
		return nil
	}

	packed := make([]acchain.PackedInf, len(assignments))
	for i, a := range assignments {
		packed[i] = acchain.PackedInf{Author: genesisIssuer, Abs: a.set.Abs(hasher)}
	}
	block := acchain.NewBlock(acchain.GenesisID, 0, genesisIssuer, 0, "genesis", packed)

	for _, n := range nodes {
		if err := n.ACChain().Append(block); err != nil {
			return err
		}
	}

	for _, a := range assignments {
		prf := value.Proof{InitID: genesisIssuer, InitHigh: 1, Val: a.val, Sets: []value.TxSet{a.set}}
		nodes[a.owner].SeedHolding(a.val, prf)
	}

	return nil
}

// poissonSample draws from a Poisson distribution with the given mean
// using Knuth's algorithm, adequate for the small N_V means this option
// takes.
func poissonSample(rng *rand.Rand, mean int) int {
	if mean <= 0 {
		return 0
	}

	l := math.Exp(-float64(mean))
	k := 0
	p := 1.0
	for {
		k++
		p *= rng.Float64()
		if p <= l {
			break
		}
	}
	return k - 1
}
