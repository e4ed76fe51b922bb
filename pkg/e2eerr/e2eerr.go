// Package e2eerr defines the fatal error kinds the public facade can
// return, so callers can distinguish them with errors.Is/errors.As
// instead of matching on message text (spec section 7).
package e2eerr

import (
	"errors"
	"fmt"
)

// Sentinel fatal error kinds. Recoverable kinds (ChunkDecodeError,
// ShapeMismatch, ZeroSizedImage) are never returned from the public
// facade; they are logged and the offending chunk is skipped.
var (
	ErrFileNotFound     = errors.New("e2e: file not found")
	ErrIO               = errors.New("e2e: i/o error")
	ErrMalformedHeader  = errors.New("e2e: malformed header")
)

// WrapIO wraps an underlying read/seek failure at a fixed-offset,
// non-recoverable header position as an ErrIO.
func WrapIO(op string, offset int64, err error) error {
	return fmt.Errorf("%w: %s at offset %d: %v", ErrIO, op, offset, err)
}

// WrapMalformedHeader wraps a failure decoding the file header or a
// main directory record as an ErrMalformedHeader.
func WrapMalformedHeader(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedHeader, what, err)
}
