package dispatch

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/bgrewell/e2e-kit/pkg/bytesource"
	"github.com/bgrewell/e2e-kit/pkg/consts"
	"github.com/bgrewell/e2e-kit/pkg/logging"
	"github.com/bgrewell/e2e-kit/pkg/model"
	"github.com/bgrewell/e2e-kit/pkg/options"
	"github.com/bgrewell/e2e-kit/pkg/ufloat16"
	"github.com/bgrewell/e2e-kit/pkg/walker"
	"github.com/stretchr/testify/require"
)

func putU32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:], v)
}

func putI32(buf []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(buf[off:], uint32(v))
}

func putU16(buf []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(buf[off:], v)
}

func chunkHeader(buf []byte, patient, study, series uint32, sliceID int32, ind uint16, typ uint32) {
	putU32(buf, 32, patient)
	putU32(buf, 36, study)
	putU32(buf, 40, series)
	putI32(buf, 44, sliceID)
	putU16(buf, 48, ind)
	putU32(buf, 52, typ)
}

func newState() *State {
	return NewState(&walker.Result{VolumeDict: map[string]int32{}})
}

func TestDispatchPatientRecord(t *testing.T) {
	buf := make([]byte, consts.ChunkHeaderSize+consts.PatientRecordSize)
	chunkHeader(buf, 1, 2, 3, 0, 0, consts.ChunkTypePatient)
	copy(buf[consts.ChunkHeaderSize:], "Jane")
	copy(buf[consts.ChunkHeaderSize+31:], "Doe")
	copy(buf[consts.ChunkHeaderSize+101:], "F")
	copy(buf[consts.ChunkHeaderSize+102:], "PID1")

	state := newState()
	abort, err := Dispatch(state, bytesource.New(bytes.NewReader(buf)), walker.ChunkRef{Start: 0, Size: uint32(len(buf))}, ModeOCT, ufloat16.Shared(), options.Default(), logging.DefaultLogger())
	require.NoError(t, err)
	require.False(t, abort)
	require.Equal(t, "Jane", state.FirstName)
	require.Equal(t, "Doe", state.Surname)
	require.Equal(t, "PID1", state.PatientID)
}

func TestDispatchLaterality(t *testing.T) {
	buf := make([]byte, consts.ChunkHeaderSize+consts.LateralityRecordSize)
	chunkHeader(buf, 1, 2, 3, 0, 0, consts.ChunkTypeLaterality)
	buf[consts.ChunkHeaderSize+14] = consts.LateralityCodeLeft

	state := newState()
	_, err := Dispatch(state, bytesource.New(bytes.NewReader(buf)), walker.ChunkRef{Start: 0, Size: uint32(len(buf))}, ModeOCT, ufloat16.Shared(), options.Default(), logging.DefaultLogger())
	require.NoError(t, err)
	require.Equal(t, model.LateralityLeft, state.CurrentLaterality)
}

func TestDispatchOCTImageZeroSizeAborts(t *testing.T) {
	buf := make([]byte, consts.ChunkHeaderSize+consts.ImageHeaderSize)
	chunkHeader(buf, 1, 2, 3, 2, consts.ImageIndOCT, consts.ChunkTypeImage)
	putU32(buf, consts.ChunkHeaderSize+12, 0) // width = 0

	state := newState()
	opts := options.Default()
	abort, err := Dispatch(state, bytesource.New(bytes.NewReader(buf)), walker.ChunkRef{Start: 0, Size: uint32(len(buf))}, ModeOCT, ufloat16.Shared(), opts, logging.DefaultLogger())
	require.NoError(t, err)
	require.True(t, abort)
}

func TestDispatchOCTImageIntoDeclaredSlot(t *testing.T) {
	width, height := 2, 3
	pixelBytes := make([]byte, width*height*2)
	for i := range pixelBytes {
		pixelBytes[i] = 0xFF
	}
	buf := make([]byte, consts.ChunkHeaderSize+consts.ImageHeaderSize+len(pixelBytes))
	chunkHeader(buf, 1, 2, 3, 4, consts.ImageIndOCT, consts.ChunkTypeImage)
	putU32(buf, consts.ChunkHeaderSize+12, uint32(width))
	putU32(buf, consts.ChunkHeaderSize+16, uint32(height))
	copy(buf[consts.ChunkHeaderSize+consts.ImageHeaderSize:], pixelBytes)

	walked := &walker.Result{
		VolumeDict:  map[string]int32{"1_2_3": 2},
		VolumeOrder: []string{"1_2_3"},
	}
	state := NewState(walked)
	abort, err := Dispatch(state, bytesource.New(bytes.NewReader(buf)), walker.ChunkRef{Start: 0, Size: uint32(len(buf))}, ModeOCT, ufloat16.Shared(), options.Default(), logging.DefaultLogger())
	require.NoError(t, err)
	require.False(t, abort)

	slots := state.VolumeSlices["1_2_3"]
	require.Len(t, slots, 3)
	require.NotNil(t, slots[1])
	require.Equal(t, width, slots[1].Width)
	require.Equal(t, height, slots[1].Height)
}

func TestDispatchOCTImageOrphanVolumeBucket(t *testing.T) {
	width, height := 1, 1
	pixelBytes := []byte{0x00, 0x00}
	buf := make([]byte, consts.ChunkHeaderSize+consts.ImageHeaderSize+len(pixelBytes))
	chunkHeader(buf, 9, 9, 9, 2, consts.ImageIndOCT, consts.ChunkTypeImage)
	putU32(buf, consts.ChunkHeaderSize+12, uint32(width))
	putU32(buf, consts.ChunkHeaderSize+16, uint32(height))
	copy(buf[consts.ChunkHeaderSize+consts.ImageHeaderSize:], pixelBytes)

	state := newState()
	_, err := Dispatch(state, bytesource.New(bytes.NewReader(buf)), walker.ChunkRef{Start: 0, Size: uint32(len(buf))}, ModeOCT, ufloat16.Shared(), options.Default(), logging.DefaultLogger())
	require.NoError(t, err)
	require.Len(t, state.VolumeSlicesAdditional["9_9_9"], 1)
	require.Equal(t, []string{"9_9_9"}, state.AdditionalOrder)
}

func TestDispatchFundusImageStoresPixels(t *testing.T) {
	width, height := 2, 2
	pixelBytes := []byte{1, 2, 3, 4}
	buf := make([]byte, consts.ChunkHeaderSize+consts.ImageHeaderSize+len(pixelBytes))
	chunkHeader(buf, 1, 2, 3, 0, consts.ImageIndFundus, consts.ChunkTypeImage)
	putU32(buf, consts.ChunkHeaderSize+12, uint32(width))
	putU32(buf, consts.ChunkHeaderSize+16, uint32(height))
	copy(buf[consts.ChunkHeaderSize+consts.ImageHeaderSize:], pixelBytes)

	state := newState()
	abort, err := Dispatch(state, bytesource.New(bytes.NewReader(buf)), walker.ChunkRef{Start: 0, Size: uint32(len(buf))}, ModeFundus, ufloat16.Shared(), options.Default(), logging.DefaultLogger())
	require.NoError(t, err)
	require.False(t, abort)

	got, ok := state.FundusPixels["1_2_3"]
	require.True(t, ok)
	require.Equal(t, pixelBytes, got.Pixels)
	require.Equal(t, []string{"1_2_3"}, state.FundusOrder)
}

func TestDispatchFundusZeroSizeAborts(t *testing.T) {
	buf := make([]byte, consts.ChunkHeaderSize+consts.ImageHeaderSize)
	chunkHeader(buf, 1, 2, 3, 0, consts.ImageIndFundus, consts.ChunkTypeImage)

	state := newState()
	abort, err := Dispatch(state, bytesource.New(bytes.NewReader(buf)), walker.ChunkRef{Start: 0, Size: uint32(len(buf))}, ModeFundus, ufloat16.Shared(), options.Default(), logging.DefaultLogger())
	require.NoError(t, err)
	require.True(t, abort)
}

func TestDispatchContourNaNSubstitution(t *testing.T) {
	values := []float32{0.5, 1e-10, float32(math.MaxFloat32)}
	payload := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}

	buf := make([]byte, consts.ChunkHeaderSize+consts.ContourHeaderSize+len(payload))
	chunkHeader(buf, 1, 2, 3, 4, 0, consts.ChunkTypeContour)
	putU32(buf, consts.ChunkHeaderSize+4, 7) // contour id
	putU32(buf, consts.ChunkHeaderSize+12, uint32(len(values)))
	copy(buf[consts.ChunkHeaderSize+consts.ContourHeaderSize:], payload)

	state := newState()
	_, err := Dispatch(state, bytesource.New(bytes.NewReader(buf)), walker.ChunkRef{Start: 0, Size: uint32(len(buf))}, ModeOCT, ufloat16.Shared(), options.Default(), logging.DefaultLogger())
	require.NoError(t, err)

	cv := state.ContourDict["1_2_3"]["contour7"][1]
	require.True(t, cv.Present)
	require.InDelta(t, 0.5, cv.Values[0], 1e-6)
	require.True(t, math.IsNaN(cv.Values[1]))
	require.True(t, math.IsNaN(cv.Values[2]))
}

func TestDispatchBScanMetaFundusModeIgnored(t *testing.T) {
	buf := make([]byte, consts.ChunkHeaderSize+consts.BScanMetadataSize)
	chunkHeader(buf, 1, 2, 3, 0, 0, consts.ChunkTypeBScanMeta)
	binary.LittleEndian.PutUint64(buf[consts.ChunkHeaderSize+88:], 10_000_000)

	state := newState()
	_, err := Dispatch(state, bytesource.New(bytes.NewReader(buf)), walker.ChunkRef{Start: 0, Size: uint32(len(buf))}, ModeFundus, ufloat16.Shared(), options.Default(), logging.DefaultLogger())
	require.NoError(t, err)
	require.False(t, state.acquisitionDateSet)
}
