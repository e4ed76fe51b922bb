// Package record decodes the fixed-layout, little-endian records a
// .e2e file is built from (spec section 4.2, "Structured Decoder").
// Every record has a fixed size and fixed encoding; unknown fields are
// read to advance position only, never interpreted.
package record

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/bgrewell/e2e-kit/pkg/consts"
)

// trimASCII strips trailing NUL padding from a fixed-length ASCII field.
func trimASCII(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}

// Header is the 36-byte record at offset 0.
type Header struct {
	Magic   string
	Version uint32
	Unknown [10]uint16
}

func (h *Header) Unmarshal(data []byte) error {
	if len(data) < consts.HeaderSize {
		return fmt.Errorf("header: need %d bytes, got %d", consts.HeaderSize, len(data))
	}
	h.Magic = trimASCII(data[0:12])
	h.Version = binary.LittleEndian.Uint32(data[12:16])
	for i := 0; i < 10; i++ {
		off := 16 + i*2
		h.Unknown[i] = binary.LittleEndian.Uint16(data[off : off+2])
	}
	return nil
}

// MainDirectory is the 52-byte record found at offset 36 and at every
// directory offset the `current`/`prev` chain visits.
type MainDirectory struct {
	Magic      string
	Version    uint32
	Unknown    [10]uint16
	NumEntries uint32
	Current    uint32
	Prev       uint32
	Unknown2   uint32
}

func (m *MainDirectory) Unmarshal(data []byte) error {
	if len(data) < consts.MainDirectorySize {
		return fmt.Errorf("main directory: need %d bytes, got %d", consts.MainDirectorySize, len(data))
	}
	m.Magic = trimASCII(data[0:12])
	m.Version = binary.LittleEndian.Uint32(data[12:16])
	for i := 0; i < 10; i++ {
		off := 16 + i*2
		m.Unknown[i] = binary.LittleEndian.Uint16(data[off : off+2])
	}
	m.NumEntries = binary.LittleEndian.Uint32(data[36:40])
	m.Current = binary.LittleEndian.Uint32(data[40:44])
	m.Prev = binary.LittleEndian.Uint32(data[44:48])
	m.Unknown2 = binary.LittleEndian.Uint32(data[48:52])
	return nil
}

// SubDirectory is a single 44-byte entry enumerated `NumEntries` times
// after each MainDirectory.
type SubDirectory struct {
	Pos       uint32
	Start     uint32
	Size      uint32
	Unknown   uint32
	PatientID uint32
	StudyID   uint32
	SeriesID  uint32
	SliceID   int32
	Unknown2  uint16
	Unknown3  uint16
	Type      uint32
	Unknown4  uint32
}

func (s *SubDirectory) Unmarshal(data []byte) error {
	if len(data) < consts.SubDirectorySize {
		return fmt.Errorf("sub directory: need %d bytes, got %d", consts.SubDirectorySize, len(data))
	}
	s.Pos = binary.LittleEndian.Uint32(data[0:4])
	s.Start = binary.LittleEndian.Uint32(data[4:8])
	s.Size = binary.LittleEndian.Uint32(data[8:12])
	s.Unknown = binary.LittleEndian.Uint32(data[12:16])
	s.PatientID = binary.LittleEndian.Uint32(data[16:20])
	s.StudyID = binary.LittleEndian.Uint32(data[20:24])
	s.SeriesID = binary.LittleEndian.Uint32(data[24:28])
	s.SliceID = int32(binary.LittleEndian.Uint32(data[28:32]))
	s.Unknown2 = binary.LittleEndian.Uint16(data[32:34])
	s.Unknown3 = binary.LittleEndian.Uint16(data[34:36])
	s.Type = binary.LittleEndian.Uint32(data[36:40])
	s.Unknown4 = binary.LittleEndian.Uint32(data[40:44])
	return nil
}

// VolumeKey builds the "{patient}_{study}_{series}" string used
// throughout the parser to identify a volume.
func VolumeKey(patientID, studyID, seriesID uint32) string {
	return fmt.Sprintf("%d_%d_%d", patientID, studyID, seriesID)
}

// ChunkHeader is the 60-byte record read at the start of every
// out-of-line data chunk.
type ChunkHeader struct {
	Magic     string
	Unknown   uint32
	Unknown2  uint32
	Pos       uint32
	Size      uint32
	Unknown3  uint32
	PatientID uint32
	StudyID   uint32
	SeriesID  uint32
	SliceID   int32
	Ind       uint16
	Unknown4  uint16
	Type      uint32
	Unknown5  uint32
}

func (c *ChunkHeader) Unmarshal(data []byte) error {
	if len(data) < consts.ChunkHeaderSize {
		return fmt.Errorf("chunk header: need %d bytes, got %d", consts.ChunkHeaderSize, len(data))
	}
	c.Magic = trimASCII(data[0:12])
	c.Unknown = binary.LittleEndian.Uint32(data[12:16])
	c.Unknown2 = binary.LittleEndian.Uint32(data[16:20])
	c.Pos = binary.LittleEndian.Uint32(data[20:24])
	c.Size = binary.LittleEndian.Uint32(data[24:28])
	c.Unknown3 = binary.LittleEndian.Uint32(data[28:32])
	c.PatientID = binary.LittleEndian.Uint32(data[32:36])
	c.StudyID = binary.LittleEndian.Uint32(data[36:40])
	c.SeriesID = binary.LittleEndian.Uint32(data[40:44])
	c.SliceID = int32(binary.LittleEndian.Uint32(data[44:48]))
	c.Ind = binary.LittleEndian.Uint16(data[48:50])
	c.Unknown4 = binary.LittleEndian.Uint16(data[50:52])
	c.Type = binary.LittleEndian.Uint32(data[52:56])
	c.Unknown5 = binary.LittleEndian.Uint32(data[56:60])
	return nil
}

// VolumeKey builds this chunk's "{patient}_{study}_{series}" volume id.
func (c *ChunkHeader) VolumeKey() string {
	return VolumeKey(c.PatientID, c.StudyID, c.SeriesID)
}

// ImageHeader is the 20-byte record following an image-type ChunkHeader.
type ImageHeader struct {
	Size    uint32
	Type    uint32
	Unknown uint32
	Width   uint32
	Height  uint32
}

func (i *ImageHeader) Unmarshal(data []byte) error {
	if len(data) < consts.ImageHeaderSize {
		return fmt.Errorf("image header: need %d bytes, got %d", consts.ImageHeaderSize, len(data))
	}
	i.Size = binary.LittleEndian.Uint32(data[0:4])
	i.Type = binary.LittleEndian.Uint32(data[4:8])
	i.Unknown = binary.LittleEndian.Uint32(data[8:12])
	i.Width = binary.LittleEndian.Uint32(data[12:16])
	i.Height = binary.LittleEndian.Uint32(data[16:20])
	return nil
}

// PixelCount returns width*height computed in 64-bit to avoid the
// overflow a 32-bit multiplication could silently wrap on for a
// corrupt header (SPEC_FULL.md supplemented-feature 2).
func (i *ImageHeader) PixelCount() uint64 {
	return uint64(i.Width) * uint64(i.Height)
}

// PatientRecord is the 127-byte payload of a type-9 (patient) chunk.
type PatientRecord struct {
	FirstName    string
	Surname      string
	BirthdateRaw uint32
	Sex          string
	PatientID    string
}

func (p *PatientRecord) Unmarshal(data []byte) error {
	if len(data) < consts.PatientRecordSize {
		return fmt.Errorf("patient record: need %d bytes, got %d", consts.PatientRecordSize, len(data))
	}
	p.FirstName = trimASCII(data[0:31])
	p.Surname = trimASCII(data[31:97])
	p.BirthdateRaw = binary.LittleEndian.Uint32(data[97:101])
	p.Sex = trimASCII(data[101:102])
	p.PatientID = trimASCII(data[102:127])
	return nil
}

// BirthdateCalendarDays converts BirthdateRaw to calendar days via the
// documented Julian-to-calendar offset (spec section 4.5, section 8).
func (p *PatientRecord) BirthdateCalendarDays() int64 {
	return int64(p.BirthdateRaw)/64 - consts.JulianDayOffset
}

// LateralityRecord is the 20-byte payload of a type-11 (laterality) chunk.
type LateralityRecord struct {
	Unknown        [14]byte
	LateralityCode uint8
	Unknown2       uint8
}

func (l *LateralityRecord) Unmarshal(data []byte) error {
	if len(data) < consts.LateralityRecordSize {
		return fmt.Errorf("laterality record: need %d bytes, got %d", consts.LateralityRecordSize, len(data))
	}
	copy(l.Unknown[:], data[0:14])
	l.LateralityCode = data[14]
	l.Unknown2 = data[15]
	return nil
}

// ContourHeader is the 16-byte header preceding width*4 bytes of
// float32 contour values in a type-10019 (contour) chunk.
type ContourHeader struct {
	Unknown0 uint32
	ID       uint32
	Unknown1 uint32
	Width    uint32
}

func (c *ContourHeader) Unmarshal(data []byte) error {
	if len(data) < consts.ContourHeaderSize {
		return fmt.Errorf("contour header: need %d bytes, got %d", consts.ContourHeaderSize, len(data))
	}
	c.Unknown0 = binary.LittleEndian.Uint32(data[0:4])
	c.ID = binary.LittleEndian.Uint32(data[4:8])
	c.Unknown1 = binary.LittleEndian.Uint32(data[8:12])
	c.Width = binary.LittleEndian.Uint32(data[12:16])
	return nil
}

// BScanMetadata is the 104-byte payload of a type-10004 (B-scan
// metadata) chunk. Only the fields spec section 3/4.5 require are
// interpreted; the remainder are read to advance position only.
type BScanMetadata struct {
	ImgSizeX        uint32
	ImgSizeY        uint32
	PosX1           float32
	PosX2           float32
	PosY1           float32
	PosY2           float32
	Scaley          float32
	ImgSizeWidth    uint32
	NumImages       uint32
	AktImage        uint32
	ScanType        uint32
	CentrePosX      float32
	CentrePosY      float32
	AcquisitionTime uint64
	NumAve          uint32
	ImgQuality      float32
}

func (b *BScanMetadata) Unmarshal(data []byte) error {
	if len(data) < consts.BScanMetadataSize {
		return fmt.Errorf("bscan metadata: need %d bytes, got %d", consts.BScanMetadataSize, len(data))
	}
	// Offsets follow neurodial/LibE2E's bscanmetadataelement layout, the
	// same source the original .e2e reader cites.
	b.ImgSizeX = binary.LittleEndian.Uint32(data[4:8])
	b.ImgSizeY = binary.LittleEndian.Uint32(data[8:12])
	b.PosX1 = readFloat32(data[12:16])
	b.PosX2 = readFloat32(data[16:20])
	b.PosY1 = readFloat32(data[20:24])
	b.PosY2 = readFloat32(data[24:28])
	b.Scaley = readFloat32(data[36:40])
	b.ImgSizeWidth = binary.LittleEndian.Uint32(data[60:64])
	b.NumImages = binary.LittleEndian.Uint32(data[64:68])
	b.AktImage = binary.LittleEndian.Uint32(data[68:72])
	b.ScanType = binary.LittleEndian.Uint32(data[72:76])
	b.CentrePosX = readFloat32(data[76:80])
	b.CentrePosY = readFloat32(data[80:84])
	b.AcquisitionTime = binary.LittleEndian.Uint64(data[88:96])
	b.NumAve = binary.LittleEndian.Uint32(data[96:100])
	b.ImgQuality = readFloat32(data[100:104])
	return nil
}

func readFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
