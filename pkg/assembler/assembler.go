// Package assembler turns the flat pkg/dispatch.State accumulated
// across one chunk-dispatch pass into the ordered, caller-facing result
// slices (spec section 4.6, "Volume Assembler").
package assembler

import (
	"github.com/bgrewell/e2e-kit/pkg/dispatch"
	"github.com/bgrewell/e2e-kit/pkg/model"
	"github.com/bgrewell/e2e-kit/pkg/options"
)

// AssembleOCT builds the ordered OCT volume list from a ModeOCT
// dispatch pass. Declared volumes appear before orphan volumes, each
// group in first-encounter order (spec section 4.6).
func AssembleOCT(state *dispatch.State, opts options.Options) []*model.OCTVolumeWithMetaData {
	var volumes []*model.OCTVolumeWithMetaData

	for _, key := range state.VolumeOrder {
		slots := state.VolumeSlices[key]
		if len(slots) == 0 {
			continue
		}
		// Under Options.TrailingPlaceholderCompat only slot 0 decides
		// whether the volume is dropped (spec section 9); with the flag
		// off, any unfilled slot drops the volume.
		drop := slots[0] == nil
		if !opts.TrailingPlaceholderCompat {
			for _, s := range slots {
				if s == nil {
					drop = true
				}
			}
		}
		if drop {
			continue
		}
		volumes = append(volumes, buildVolume(state, key, slots))
	}

	for _, key := range state.AdditionalOrder {
		extra := state.VolumeSlicesAdditional[key]
		if len(extra) == 0 {
			continue
		}
		slots := make([]*model.Slice, len(extra))
		for i := range extra {
			s := extra[i]
			slots[i] = &s
		}
		volumes = append(volumes, buildVolume(state, key, slots))
	}

	return volumes
}

func buildVolume(state *dispatch.State, key string, slots []*model.Slice) *model.OCTVolumeWithMetaData {
	slices := make([]model.Slice, len(slots))
	for i, s := range slots {
		if s != nil {
			slices[i] = *s
		}
	}

	contours := make(map[string][]model.ContourValue)
	for name, bySlice := range state.ContourDict[key] {
		values := make([]model.ContourValue, len(slots))
		for i := range values {
			if cv, ok := bySlice[i]; ok {
				values[i] = cv
			}
		}
		contours[name] = values
	}

	return &model.OCTVolumeWithMetaData{
		VolumeID:        key,
		PatientID:       state.PatientID,
		FirstName:       state.FirstName,
		Surname:         state.Surname,
		Sex:             state.Sex,
		AcquisitionDate: state.AcquisitionDate,
		Laterality:      state.VolumeLaterality[key],
		Slices:          slices,
		Contours:        contours,
	}
}

// AssembleFundus builds the ordered fundus image list from a
// ModeFundus dispatch pass, one entry per distinct image id, each
// holding the last pixel buffer written for that id (spec section 4.6).
func AssembleFundus(state *dispatch.State) []*model.FundusImageWithMetaData {
	var images []*model.FundusImageWithMetaData
	for _, id := range state.FundusOrder {
		px, ok := state.FundusPixels[id]
		if !ok {
			continue
		}
		images = append(images, &model.FundusImageWithMetaData{
			ImageID:    id,
			PatientID:  state.PatientID,
			Laterality: state.FundusLaterality[id],
			Width:      px.Width,
			Height:     px.Height,
			Pixels:     px.Pixels,
		})
	}
	return images
}
