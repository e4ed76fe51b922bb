// Package dispatch implements the chunk dispatcher and per-type
// decoders (spec section 4.5). A single mutable State record — not
// object fields mutated in place — is threaded explicitly through a
// closed table of handlers keyed by chunk type (spec section 9,
// Re-architecture strategies: "Dynamic dispatch on type" and "Mutable
// parser-object fields").
package dispatch

import (
	"math"
	"time"

	"github.com/bgrewell/e2e-kit/pkg/bytesource"
	"github.com/bgrewell/e2e-kit/pkg/consts"
	"github.com/bgrewell/e2e-kit/pkg/logging"
	"github.com/bgrewell/e2e-kit/pkg/model"
	"github.com/bgrewell/e2e-kit/pkg/options"
	"github.com/bgrewell/e2e-kit/pkg/record"
	"github.com/bgrewell/e2e-kit/pkg/ufloat16"
	"github.com/bgrewell/e2e-kit/pkg/walker"
)

// Mode selects which chunk types a Dispatch pass interprets, mirroring
// the two independent top-level operations in spec section 4.7: OCT
// extraction never looks at fundus (ind=0) pixel data or vice versa.
type Mode int

const (
	ModeOCT Mode = iota
	ModeFundus
)

// bscanEpoch is 1600-12-31 23:59:00 UTC, the zero point of
// BScanMetadata.AcquisitionTime (spec section 4.5, section 8).
var bscanEpoch = time.Date(1600, time.December, 31, 23, 59, 0, 0, time.UTC)

// State is the accumulating parse-state record every chunk handler
// reads from and writes to. It replaces the original's mutable
// self.sex/self.first_name/... object fields with one explicit value
// passed through the pipeline.
type State struct {
	// Patient identity: last successfully decoded patient record wins.
	PatientID string
	FirstName string
	Surname   string
	Sex       string

	// AcquisitionDate is set from the first decoded B-scan-metadata chunk.
	AcquisitionDate    time.Time
	acquisitionDateSet bool

	// CurrentLaterality is the laterality in effect for the next image
	// chunk; it is set (possibly to LateralityUnknown) by every
	// laterality chunk decoded.
	CurrentLaterality model.Laterality

	// VolumeSlices holds the pre-sized slot sequence for every volume
	// key the sub-directory scan declared (nil entries are unfilled
	// sentinels, per spec section 9's flagged trailing-placeholder
	// behavior).
	VolumeSlices map[string][]*model.Slice
	// VolumeOrder preserves first-encounter order of declared volumes.
	VolumeOrder []string

	// VolumeSlicesAdditional holds orphan images — those whose
	// (patient,study,series) triple has no sub-directory record —
	// appended in arrival order.
	VolumeSlicesAdditional map[string][]model.Slice
	// AdditionalOrder preserves first-encounter order of orphan keys.
	AdditionalOrder []string

	// VolumeLaterality records the first laterality observed for a
	// given volume key; later laterality chunks for the same key are
	// ignored (spec section 3 invariant).
	VolumeLaterality map[string]model.Laterality

	// ContourDict maps volume key -> contour name -> 0-based slice
	// index -> decoded value.
	ContourDict map[string]map[string]map[int]model.ContourValue

	// FundusPixels holds the last-decoded fundus image per image id
	// (a plain map overwrite, not a bucket: spec section 4.5 ind=0).
	FundusPixels map[string]FundusBuffer
	// FundusOrder preserves first-encounter order of fundus image ids.
	FundusOrder []string
	// FundusLaterality records the laterality bound to a fundus image
	// id, unconditionally overwritten on every image chunk for that id.
	FundusLaterality map[string]model.Laterality
}

// FundusBuffer is the last-decoded pixel buffer for one fundus image id.
type FundusBuffer struct {
	Width, Height int
	Pixels        []byte
}

// NewState builds the parse state for one dispatch pass, pre-sizing the
// slice sequence for every volume key the directory walk declared with
// a positive maximum slice index (spec section 4.4 step 4, 4.6).
func NewState(walked *walker.Result) *State {
	s := &State{
		VolumeSlices:            make(map[string][]*model.Slice),
		VolumeSlicesAdditional:  make(map[string][]model.Slice),
		VolumeLaterality:        make(map[string]model.Laterality),
		ContourDict:             make(map[string]map[string]map[int]model.ContourValue),
		FundusPixels:            make(map[string]FundusBuffer),
		FundusLaterality:        make(map[string]model.Laterality),
	}
	for _, key := range walked.VolumeOrder {
		numSlices := walked.VolumeDict[key]
		if numSlices > 0 {
			s.VolumeSlices[key] = make([]*model.Slice, numSlices+1)
			s.VolumeOrder = append(s.VolumeOrder, key)
		}
	}
	return s
}

// Dispatch visits one chunk reference: it reads the ChunkHeader and
// dispatches on Type per the table in spec section 4.5. It returns
// abort=true when a zero-sized image chunk was encountered and the
// caller's Options.ZeroSizedImageAbortsScan is set, signalling that no
// further chunk references should be visited for this pass (spec
// section 9, Open Question 1).
func Dispatch(state *State, src *bytesource.Source, ref walker.ChunkRef, mode Mode, lut *ufloat16.Table, opts options.Options, logger *logging.Logger) (abort bool, err error) {
	pos := int64(ref.Start)

	headerBytes, err := src.ReadAt(pos, consts.ChunkHeaderSize)
	if err != nil {
		logger.Error(err, "failed to read chunk header, skipping chunk", "offset", ref.Start)
		return false, nil
	}
	var header record.ChunkHeader
	if err := header.Unmarshal(headerBytes); err != nil {
		logger.Error(err, "failed to decode chunk header, skipping chunk", "offset", ref.Start)
		return false, nil
	}
	pos += consts.ChunkHeaderSize

	switch header.Type {
	case consts.ChunkTypePatient:
		dispatchPatient(state, src, pos, logger)
	case consts.ChunkTypeBScanMeta:
		if mode == ModeOCT {
			dispatchBScanMeta(state, src, pos, logger)
		}
	case consts.ChunkTypeLaterality:
		dispatchLaterality(state, src, pos, logger)
	case consts.ChunkTypeContour:
		if mode == ModeOCT {
			dispatchContour(state, src, pos, header, logger)
		}
	case consts.ChunkTypeImage:
		return dispatchImage(state, src, pos, header, mode, lut, opts, logger)
	default:
		// Unrecognised chunk types are ignored silently.
	}
	return false, nil
}

func dispatchPatient(state *State, src *bytesource.Source, pos int64, logger *logging.Logger) {
	raw, err := src.ReadAt(pos, consts.PatientRecordSize)
	if err != nil {
		logger.Debug("failed to read patient chunk, ignoring", "error", err)
		return
	}
	var patient record.PatientRecord
	if err := patient.Unmarshal(raw); err != nil {
		// Decode failure: ignore silently (spec section 4.5).
		return
	}
	state.FirstName = patient.FirstName
	state.Surname = patient.Surname
	state.Sex = patient.Sex
	state.PatientID = patient.PatientID
}

func dispatchBScanMeta(state *State, src *bytesource.Source, pos int64, logger *logging.Logger) {
	raw, err := src.ReadAt(pos, consts.BScanMetadataSize)
	if err != nil {
		logger.Debug("failed to read bscan metadata chunk, ignoring", "error", err)
		return
	}
	var meta record.BScanMetadata
	if err := meta.Unmarshal(raw); err != nil {
		logger.Debug("failed to decode bscan metadata chunk, ignoring", "error", err)
		return
	}
	if state.acquisitionDateSet {
		return
	}
	// AcquisitionTime counts 100 ns ticks; whole seconds and the remainder
	// are added separately because real values exceed time.Duration's range.
	ticks := meta.AcquisitionTime
	acquired := time.Unix(bscanEpoch.Unix()+int64(ticks/10_000_000), int64(ticks%10_000_000)*100).UTC()
	state.AcquisitionDate = time.Date(acquired.Year(), acquired.Month(), acquired.Day(), 0, 0, 0, 0, time.UTC)
	state.acquisitionDateSet = true
}

func dispatchLaterality(state *State, src *bytesource.Source, pos int64, logger *logging.Logger) {
	raw, err := src.ReadAt(pos, consts.LateralityRecordSize)
	if err != nil {
		logger.Debug("failed to read laterality chunk, defaulting to unknown", "error", err)
		state.CurrentLaterality = model.LateralityUnknown
		return
	}
	var lat record.LateralityRecord
	if err := lat.Unmarshal(raw); err != nil {
		state.CurrentLaterality = model.LateralityUnknown
		return
	}
	switch lat.LateralityCode {
	case consts.LateralityCodeRight:
		state.CurrentLaterality = model.LateralityRight
	case consts.LateralityCodeLeft:
		state.CurrentLaterality = model.LateralityLeft
	default:
		state.CurrentLaterality = model.LateralityUnknown
	}
}

const float32Max = math.MaxFloat32

func dispatchContour(state *State, src *bytesource.Source, pos int64, header record.ChunkHeader, logger *logging.Logger) {
	raw, err := src.ReadAt(pos, consts.ContourHeaderSize)
	if err != nil {
		logger.Error(err, "failed to read contour header, skipping")
		return
	}
	var ch record.ContourHeader
	if err := ch.Unmarshal(raw); err != nil {
		logger.Error(err, "failed to decode contour header, skipping")
		return
	}
	if ch.Width == 0 {
		return
	}

	volumeKey := header.VolumeKey()
	sliceIndex := int(header.SliceID/2) - 1
	contourName := contourName(ch.ID)

	payload, err := src.ReadAt(pos+consts.ContourHeaderSize, int(ch.Width)*4)
	if err != nil {
		logger.Error(err, "could not read contour", "volume", volumeKey, "contour", contourName, "slice", sliceIndex)
		return
	}

	values := make([]float64, ch.Width)
	for i := range values {
		bits := leUint32(payload[i*4 : i*4+4])
		f := math.Float32frombits(bits)
		v := float64(f)
		if f < 1e-9 || float64(f) == float32Max {
			v = math.NaN()
		}
		values[i] = v
	}

	if state.ContourDict[volumeKey] == nil {
		state.ContourDict[volumeKey] = make(map[string]map[int]model.ContourValue)
	}
	if state.ContourDict[volumeKey][contourName] == nil {
		state.ContourDict[volumeKey][contourName] = make(map[int]model.ContourValue)
	}
	state.ContourDict[volumeKey][contourName][sliceIndex] = model.ContourValue{Present: true, Values: values}
}

func contourName(id uint32) string {
	return "contour" + itoa(id)
}

func dispatchImage(state *State, src *bytesource.Source, pos int64, header record.ChunkHeader, mode Mode, lut *ufloat16.Table, opts options.Options, logger *logging.Logger) (abort bool, err error) {
	raw, readErr := src.ReadAt(pos, consts.ImageHeaderSize)
	if readErr != nil {
		logger.Error(readErr, "failed to read image header, skipping")
		return false, nil
	}
	var img record.ImageHeader
	if decodeErr := img.Unmarshal(raw); decodeErr != nil {
		logger.Error(decodeErr, "failed to decode image header, skipping")
		return false, nil
	}
	pos += consts.ImageHeaderSize

	if mode == ModeFundus {
		count := img.PixelCount()
		if count == 0 {
			return opts.ZeroSizedImageAbortsScan, nil
		}
		if header.Ind == consts.ImageIndFundus {
			dispatchFundusPixels(state, src, pos, header, img, logger)
		}
		return false, nil
	}

	// ModeOCT: only the OCT (ind=1) branch is scanned; the zero-sized
	// check is scoped to it, mirroring the original source exactly
	// (SPEC_FULL.md, Supplemented Features).
	if header.Ind != consts.ImageIndOCT {
		return false, nil
	}
	count := img.PixelCount()
	if count == 0 {
		return opts.ZeroSizedImageAbortsScan, nil
	}
	dispatchOCTPixels(state, src, pos, header, img, lut, logger)
	return false, nil
}

func dispatchFundusPixels(state *State, src *bytesource.Source, pos int64, header record.ChunkHeader, img record.ImageHeader, logger *logging.Logger) {
	count := int(img.PixelCount())
	raw, err := src.ReadAt(pos, count)
	if err != nil {
		logger.Error(err, "could not read fundus image", "image", header.VolumeKey())
		return
	}

	imageID := header.VolumeKey()
	pixels := make([]byte, count)
	copy(pixels, raw)
	state.FundusPixels[imageID] = FundusBuffer{Width: int(img.Width), Height: int(img.Height), Pixels: pixels}
	if _, seen := state.FundusLaterality[imageID]; !seen {
		state.FundusOrder = append(state.FundusOrder, imageID)
	}
	// Laterality is bound unconditionally, even if currently unknown.
	state.FundusLaterality[imageID] = state.CurrentLaterality
}

func dispatchOCTPixels(state *State, src *bytesource.Source, pos int64, header record.ChunkHeader, img record.ImageHeader, lut *ufloat16.Table, logger *logging.Logger) {
	count := int(img.PixelCount())
	raw, err := src.ReadAt(pos, count*2)
	if err != nil {
		logger.Error(err, "could not read oct image", "volume", header.VolumeKey())
		return
	}

	volumeKey := header.VolumeKey()
	pixels := make([]float64, count)
	for i := 0; i < count; i++ {
		v := leUint16(raw[i*2 : i*2+2])
		decoded := lut.At(v)
		pixels[i] = 256 * math.Pow(decoded, 1.0/consts.GammaExponent)
	}

	width, height := int(img.Width), int(img.Height)
	if width*height != count {
		logger.Error(nil, "could not reshape image, skipping",
			"volume", volumeKey, "elements", count, "width", width, "height", height)
		return
	}
	slice := model.Slice{Width: width, Height: height, Pixels: pixels}

	if slots, ok := state.VolumeSlices[volumeKey]; ok {
		idx := int(header.SliceID/2) - 1
		if idx >= 0 && idx < len(slots) {
			slots[idx] = &slice
		} else {
			logger.Error(nil, "slice index out of declared range, dropping slice", "volume", volumeKey, "index", idx)
		}
	} else {
		if _, hasBucket := state.VolumeSlicesAdditional[volumeKey]; !hasBucket {
			state.AdditionalOrder = append(state.AdditionalOrder, volumeKey)
		}
		state.VolumeSlicesAdditional[volumeKey] = append(state.VolumeSlicesAdditional[volumeKey], slice)
	}

	// Laterality is assumed to have been stored in a chunk before the
	// image itself; bind it only if captured and not already recorded.
	if state.CurrentLaterality != model.LateralityUnknown {
		if _, bound := state.VolumeLaterality[volumeKey]; !bound {
			state.VolumeLaterality[volumeKey] = state.CurrentLaterality
		}
	}
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
