// Package consts holds the fixed record sizes and chunk type codes that
// are normative for the .e2e container layout (spec section 6).
package consts

const (
	// HeaderSize is the size in bytes of the file header at offset 0.
	HeaderSize = 36

	// MainDirectorySize is the size in bytes of a MainDirectory record,
	// found at offset 36 and at every `current`/`prev` offset it points to.
	MainDirectorySize = 52

	// SubDirectorySize is the size in bytes of a single SubDirectory entry.
	SubDirectorySize = 44

	// ChunkHeaderSize is the size in bytes of a ChunkHeader.
	ChunkHeaderSize = 60

	// ImageHeaderSize is the size in bytes of an ImageHeader payload.
	ImageHeaderSize = 20

	// PatientRecordSize is the size in bytes of a PatientRecord payload.
	PatientRecordSize = 127

	// LateralityRecordSize is the size in bytes of a LateralityRecord payload.
	LateralityRecordSize = 20

	// ContourHeaderSize is the size in bytes of a ContourHeader payload,
	// not including the width*4 bytes of float32 contour values that follow.
	ContourHeaderSize = 16

	// BScanMetadataSize is the size in bytes of a BScanMetadata payload.
	BScanMetadataSize = 104
)

// Chunk type codes, dispatched on in ChunkHeader.Type.
const (
	ChunkTypePatient    = 9
	ChunkTypeBScanMeta  = 10004
	ChunkTypeLaterality = 11
	ChunkTypeContour    = 10019
	ChunkTypeImage      = 1073741824
)

// Image chunk ind values, read from the chunk header that owns an
// ImageHeader payload.
const (
	ImageIndOCT    = 1
	ImageIndFundus = 0
)

// Laterality codes as stored in LateralityRecord.LateralityCode.
const (
	LateralityCodeRight = 82 // ASCII 'R'
	LateralityCodeLeft  = 76 // ASCII 'L'
)

// JulianDayOffset converts the raw patient birthdate field
// (days * 64, Julian-like epoch) to calendar days:
// calendar_days = birthdate_raw/64 - JulianDayOffset.
const JulianDayOffset = 14558805

// GammaExponent is the display-gamma post-transform applied to decoded
// OCT pixel values: 256 * value^(1/GammaExponent).
const GammaExponent = 2.4
