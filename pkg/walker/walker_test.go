package walker

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/bgrewell/e2e-kit/pkg/bytesource"
	"github.com/bgrewell/e2e-kit/pkg/logging"
	"github.com/stretchr/testify/require"
)

func putU32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:], v)
}

func TestWalkEmptyDirectoryChain(t *testing.T) {
	buf := make([]byte, 36+52)
	copy(buf[0:12], "E2E_HEADER\x00\x00")
	putU32(buf, 36+40, 0) // current = 0

	result, err := Walk(bytesource.New(bytes.NewReader(buf)), logging.DefaultLogger())
	require.NoError(t, err)
	require.Empty(t, result.Chunks)
	require.Empty(t, result.VolumeDict)
}

func TestWalkOneVolumeOneChunk(t *testing.T) {
	buf := make([]byte, 36+52+52+44+4)
	copy(buf[0:12], "E2E_HEADER\x00\x00")
	putU32(buf, 36+40, 88) // top main directory's `current` points at offset 88

	// Main directory at offset 88: num_entries=1, prev=0.
	putU32(buf, 88+36, 1)
	putU32(buf, 88+44, 0)

	// Sub directory entry at offset 140.
	entryOff := 140
	putU32(buf, entryOff+0, 0)   // pos
	putU32(buf, entryOff+4, 300) // start > pos
	putU32(buf, entryOff+8, 512) // size
	putU32(buf, entryOff+16, 1)  // patient
	putU32(buf, entryOff+20, 2)  // study
	putU32(buf, entryOff+24, 3)  // series
	putU32(buf, entryOff+28, 2)  // slice id

	result, err := Walk(bytesource.New(bytes.NewReader(buf)), logging.DefaultLogger())
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	require.Equal(t, ChunkRef{Start: 300, Size: 512}, result.Chunks[0])
	require.Equal(t, int32(1), result.VolumeDict["1_2_3"])
}

func TestWalkMalformedHeaderFatal(t *testing.T) {
	_, err := Walk(bytesource.New(bytes.NewReader(make([]byte, 10))), logging.DefaultLogger())
	require.Error(t, err)
}
