package assembler

import (
	"testing"
	"time"

	"github.com/bgrewell/e2e-kit/pkg/dispatch"
	"github.com/bgrewell/e2e-kit/pkg/model"
	"github.com/bgrewell/e2e-kit/pkg/options"
	"github.com/bgrewell/e2e-kit/pkg/walker"
	"github.com/stretchr/testify/require"
)

func TestAssembleOCTDropsVolumeWithEmptyFirstSlot(t *testing.T) {
	state := dispatch.NewState(&walker.Result{
		VolumeDict:  map[string]int32{"1_2_3": 1},
		VolumeOrder: []string{"1_2_3"},
	})
	// slot 0 left nil, slot 1 filled: dropped under TrailingPlaceholderCompat default.
	state.VolumeSlices["1_2_3"][1] = &model.Slice{Width: 1, Height: 1, Pixels: []float64{1}}

	volumes := AssembleOCT(state, options.Default())
	require.Empty(t, volumes)
}

func TestAssembleOCTKeepsVolumeWithTrailingGap(t *testing.T) {
	state := dispatch.NewState(&walker.Result{
		VolumeDict:  map[string]int32{"1_2_3": 1},
		VolumeOrder: []string{"1_2_3"},
	})
	state.VolumeSlices["1_2_3"][0] = &model.Slice{Width: 1, Height: 1, Pixels: []float64{5}}
	state.PatientID = "PID1"
	state.VolumeLaterality["1_2_3"] = model.LateralityRight

	volumes := AssembleOCT(state, options.Default())
	require.Len(t, volumes, 1)
	require.Equal(t, "1_2_3", volumes[0].VolumeID)
	require.Equal(t, "PID1", volumes[0].PatientID)
	require.Equal(t, model.LateralityRight, volumes[0].Laterality)
	require.Len(t, volumes[0].Slices, 2)
}

func TestAssembleOCTIncludesOrphanVolumes(t *testing.T) {
	state := dispatch.NewState(&walker.Result{VolumeDict: map[string]int32{}})
	state.VolumeSlicesAdditional["9_9_9"] = []model.Slice{{Width: 1, Height: 1, Pixels: []float64{1}}}
	state.AdditionalOrder = []string{"9_9_9"}

	volumes := AssembleOCT(state, options.Default())
	require.Len(t, volumes, 1)
	require.Equal(t, "9_9_9", volumes[0].VolumeID)
}

func TestAssembleOCTContoursAlignedToSliceCount(t *testing.T) {
	state := dispatch.NewState(&walker.Result{
		VolumeDict:  map[string]int32{"1_2_3": 1},
		VolumeOrder: []string{"1_2_3"},
	})
	state.VolumeSlices["1_2_3"][0] = &model.Slice{Width: 1, Height: 1, Pixels: []float64{1}}
	state.ContourDict["1_2_3"] = map[string]map[int]model.ContourValue{
		"contour3": {1: {Present: true, Values: []float64{0.5}}},
	}

	volumes := AssembleOCT(state, options.Default())
	require.Len(t, volumes, 1)
	cv := volumes[0].Contours["contour3"]
	require.Len(t, cv, 2)
	require.False(t, cv[0].Present)
	require.True(t, cv[1].Present)
}

func TestAssembleFundusOrdersByFirstEncounter(t *testing.T) {
	state := dispatch.NewState(&walker.Result{VolumeDict: map[string]int32{}})
	state.PatientID = "PID9"
	state.FundusOrder = []string{"1_1_1", "2_2_2"}
	state.FundusPixels["1_1_1"] = dispatch.FundusBuffer{Width: 2, Height: 1, Pixels: []byte{1, 2}}
	state.FundusPixels["2_2_2"] = dispatch.FundusBuffer{Width: 1, Height: 1, Pixels: []byte{9}}
	state.FundusLaterality["2_2_2"] = model.LateralityLeft

	images := AssembleFundus(state)
	require.Len(t, images, 2)
	require.Equal(t, "1_1_1", images[0].ImageID)
	require.Equal(t, "2_2_2", images[1].ImageID)
	require.Equal(t, model.LateralityLeft, images[1].Laterality)
	require.Equal(t, "PID9", images[0].PatientID)
}

func TestAssembleOCTAcquisitionDateCarried(t *testing.T) {
	state := dispatch.NewState(&walker.Result{
		VolumeDict:  map[string]int32{"1_2_3": 1},
		VolumeOrder: []string{"1_2_3"},
	})
	state.VolumeSlices["1_2_3"][0] = &model.Slice{Width: 1, Height: 1}
	when := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	state.AcquisitionDate = when

	volumes := AssembleOCT(state, options.Default())
	require.Len(t, volumes, 1)
	require.True(t, volumes[0].AcquisitionDate.Equal(when))
}
