// Package ufloat16 decodes the vendor-specific 16-bit unsigned
// floating-point encoding .e2e OCT pixel data is stored in: no sign
// bit, a 6-bit exponent in the high bits, and a 10-bit mantissa in the
// low bits stored in reversed bit order (spec section 4.3).
package ufloat16

import (
	"math"
	"sync"
)

// Size is the number of distinct 16-bit values the LUT covers.
const Size = 1 << 16

// Table is a precomputed lookup table mapping every possible uint16 to
// its real-valued UFloat16 interpretation.
type Table struct {
	values [Size]float64
}

// New builds a fresh 65,536-entry lookup table.
func New() *Table {
	t := &Table{}
	for i := 0; i < Size; i++ {
		t.values[i] = Decode(uint16(i))
	}
	return t
}

// At returns the precomputed decode of v.
func (t *Table) At(v uint16) float64 {
	return t.values[v]
}

var (
	sharedOnce  sync.Once
	sharedTable *Table
)

// Shared returns a process-wide lookup table, built on first use. The
// float semantics are fixed, so every caller can safely share one
// (spec section 5).
func Shared() *Table {
	sharedOnce.Do(func() {
		sharedTable = New()
	})
	return sharedTable
}

// Decode converts a single raw uint16 to its real-valued interpretation.
//
// Take the 16-bit value's bit pattern and reverse the bit order within
// each of its two bytes independently; the first 10 bits of that
// reversed stream are the mantissa, the remaining 6 bits (reversed a
// second time) are the exponent. Because the second reversal of the
// exponent bits exactly undoes the byte-local reversal that put them
// there, the net effect collapses to: mantissa is the low 10 bits of v
// with their bit order reversed, and exponent is the high 6 bits of v
// unchanged. The two are algebraically equivalent; this is the cheaper
// form to implement and to test against the golden vectors in spec
// section 8.
func Decode(v uint16) float64 {
	mantissa := reverse10(v & 0x3FF)
	exponent := int(v>>10) & 0x3F
	mantissaSum := 1 + float64(mantissa)/1024
	return mantissaSum * math.Pow(2, float64(exponent-63))
}

// reverse10 reverses the order of the low 10 bits of v.
func reverse10(v uint16) uint16 {
	var r uint16
	for i := 0; i < 10; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}
