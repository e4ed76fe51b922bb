// Package bytesource provides a bounds-checked, absolute-offset random
// access view over a .e2e file (spec section 4.1, "Byte Reader").
package bytesource

import (
	"fmt"
	"io"
)

// Source is a positioned random-access view over a file.
type Source struct {
	r io.ReaderAt
}

// New wraps an io.ReaderAt for bounds-checked reads.
func New(r io.ReaderAt) *Source {
	return &Source{r: r}
}

// ReadAt reads exactly n bytes starting at pos. A short read (EOF before
// n bytes are available) is a recoverable read error surfaced to the
// caller, per spec section 4.1 — it is this function's caller's
// responsibility to decide whether that's fatal (fixed-offset headers)
// or skip-and-continue (a chunk payload).
func (s *Source) ReadAt(pos int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := s.r.ReadAt(buf, pos)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", n, pos, err)
	}
	if read != n {
		return nil, fmt.Errorf("short read at offset %d: got %d of %d bytes", pos, read, n)
	}
	return buf, nil
}
