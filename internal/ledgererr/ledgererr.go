// Package ledgererr defines the error taxonomy shared across the ledger core.
//
// The core never panics or exits on a bad transaction or block. Some public
// operations (mempool admission, inbound peer blocks, reconciliation) report
// rejection as a plain boolean; where an operation returns an error for one
// of the failures below, it wraps the matching sentinel (via %w) so callers
// can branch with errors.Is/errors.As instead of string matching.
package ledgererr

import "errors"

var (
	// ErrValidation marks a transaction or block that fails a consensus rule.
	ErrValidation = errors.New("validation failed")

	// ErrDoubleSpend marks a failed conditional mark-spent: the referenced
	// output was already spent by another committed transaction.
	ErrDoubleSpend = errors.New("double spend")

	// ErrAlreadyExists marks a block whose height already has a stored hash.
	ErrAlreadyExists = errors.New("already exists")

	// ErrPersistence marks a failed store operation.
	ErrPersistence = errors.New("persistence error")

	// ErrPeer marks a failed outbound peer HTTP call.
	ErrPeer = errors.New("peer error")

	// ErrConfig marks a fatal startup configuration problem.
	ErrConfig = errors.New("config error")
)
