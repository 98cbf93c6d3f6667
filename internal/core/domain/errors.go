// internal/core/domain/errors.go
package domain

import "errors"

// Sentinel errors shared across the core. Services wrap these with context
// via fmt.Errorf("...: %w", ...); handlers map them to status codes.
var (
	// ErrNotFound indicates an unknown item, rule, location or job.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates malformed input rejected before any write.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInsufficientStock indicates a mutation that would drive a
	// sub-quantity negative. The mutation is rejected, never clamped.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConflict indicates a state that forbids the operation, such as a
	// duplicate SKU on insert or a confirm on a non-pending import job.
	ErrConflict = errors.New("conflict")
)
