// Package errs is the sentinel-error vocabulary for the node core. Every
// validation failure named by the protocol is one of these, wrapped with
// fmt.Errorf("...: %w", ...) at the call site so callers can errors.Is
// against a taxonomy member instead of matching on strings, the way
// business/web/errs gives the ops surface a small named error vocabulary
// rather than ad hoc strings.
package errs

import "errors"

// Validation errors. All of these are local and non-fatal: the caller
// discards the offending message, records the error, and continues.
var (
	ErrTxType        = errors.New("malformed transaction")
	ErrPrfType       = errors.New("malformed or structurally invalid proof")
	ErrRecvNode      = errors.New("receipt addressed to wrong recipient")
	ErrInitHigh      = errors.New("proof does not start at a valid genesis or post-CC anchor")
	ErrEmptyPrf      = errors.New("proof is empty")
	ErrDoubleSpent   = errors.New("value spent more than once in a proof segment")
	ErrPrfIncomplete = errors.New("proof continuity violated")
	ErrCrossCC       = errors.New("proof spans a CC boundary incorrectly")
	ErrWrongOwner    = errors.New("final owner does not match receipt sender")
	ErrInfEmpty      = errors.New("information set is empty")
	ErrInfAbs        = errors.New("information set digest mismatch")
	ErrACCHeight     = errors.New("AC chain does not cover required height")
	ErrACCBegin      = errors.New("AC chain does not start at the required height")
	ErrNotSpend      = errors.New("value was never spent in a proof segment")
	ErrAfterCC       = errors.New("compaction produced an empty proof")
)

// Fatal errors abort node construction or startup; nothing else in the
// core returns a plain error out of its event dispatch loop.
var (
	ErrBlobStoreUnavailable = errors.New("blob store unavailable at init")
	ErrNoLeaderCandidate    = errors.New("no AC block producer at required epoch offset")
)
