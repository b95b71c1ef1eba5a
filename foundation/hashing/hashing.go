// Package hashing provides the digest primitive AC blocks, Infs and proofs
// are hashed and referenced by. It is grounded on the signature package's
// Hash helper, keeping the same marshal-then-hash shape but swapping the
// SHA-256 core for Keccak-256 so digests share the same primitive the
// threshold signer stamps its messages with.
package hashing

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroDigest is the digest returned when a value cannot be marshaled.
const ZeroDigest string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Hasher computes the content digest EZchain uses to reference AC blocks,
// Infs, and proofs. It is an interface so tests can swap in a deterministic
// stub without touching production code.
type Hasher interface {
	Hash(value any) string
	HashBytes(data []byte) string
}

// Keccak256Hasher is the default Hasher, built on go-ethereum's Keccak-256,
// the same primitive the threshold verifier uses to stamp messages.
type Keccak256Hasher struct{}

// NewKeccak256Hasher returns the default production Hasher.
func NewKeccak256Hasher() Keccak256Hasher {
	return Keccak256Hasher{}
}

// Hash returns a unique digest for any JSON-marshalable value.
func (Keccak256Hasher) Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroDigest
	}
	return hexutil.Encode(crypto.Keccak256(data))
}

// HashBytes returns a unique digest for raw bytes, used for the flat
// concatenation digest of an Inf's wire-encoded transactions.
func (Keccak256Hasher) HashBytes(data []byte) string {
	return hexutil.Encode(crypto.Keccak256(data))
}
