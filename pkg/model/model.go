// Package model holds the persistent, caller-facing output entities the
// e2e facade returns: OCT volumes and fundus images (spec section 3).
// Nothing in this package knows how to decode bytes — that's pkg/record
// and pkg/dispatch; this package only holds assembled results.
package model

import "time"

// Laterality identifies which eye a volume or image was captured from.
type Laterality string

const (
	LateralityRight Laterality = "R"
	LateralityLeft  Laterality = "L"
	// LateralityUnknown means no laterality chunk was observed, or the
	// observed code was not 'R' or 'L'. The zero value of Laterality.
	LateralityUnknown Laterality = ""
)

// ContourValue is one slice's worth of a contour overlay array. Present
// distinguishes "no contour decoded for this slice" from "a contour
// decoded to an all-NaN array" — replacing the primitive-integer
// sentinel the original source used to mark unfilled slots (spec
// section 9, Re-architecture strategies).
type ContourValue struct {
	Present bool
	Values  []float64
}

// Slice is one 2-D B-scan cross-section. Unlike FundusImageWithMetaData,
// pixels are reshaped width-first — Pixels holds Width rows of Height
// columns each, matching the original reader's column-major decode
// order, not the usual row-major (height, width) image convention.
type Slice struct {
	Width, Height int
	Pixels        []float64
}

// At returns the pixel at column x in [0, Width), row y in [0, Height).
func (s Slice) At(x, y int) float64 {
	return s.Pixels[x*s.Height+y]
}

// OCTVolumeWithMetaData is an ordered stack of B-scan slices plus the
// metadata and per-contour overlays attached to it (spec section 3).
type OCTVolumeWithMetaData struct {
	VolumeID        string
	PatientID       string
	FirstName       string
	Surname         string
	Sex             string
	AcquisitionDate time.Time
	Laterality      Laterality
	Slices          []Slice
	// Contours maps a contour name (e.g. "contour3") to one
	// ContourValue per slice position, same length as Slices.
	Contours map[string][]ContourValue
}

// NumSlices is the derived length of the slice sequence.
func (v *OCTVolumeWithMetaData) NumSlices() int {
	return len(v.Slices)
}

// FundusImageWithMetaData is a single en-face grayscale image (spec
// section 3).
type FundusImageWithMetaData struct {
	ImageID    string
	PatientID  string
	Laterality Laterality
	Width      int
	Height     int
	// Pixels is row-major, Height rows of Width columns, 8-bit grayscale.
	Pixels []byte
}

// At returns the pixel at (x, y), x in [0, Width), y in [0, Height).
func (f FundusImageWithMetaData) At(x, y int) byte {
	return f.Pixels[y*f.Width+x]
}
