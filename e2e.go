// Package e2e reads Heidelberg Engineering .e2e OCT/fundus container
// files: ReadOCTVolume and ReadFundusImage each run a complete,
// independent walk-dispatch-assemble pass over the file and hold no
// state across calls (spec section 4.7).
package e2e

import (
	"fmt"
	"os"

	"github.com/bgrewell/e2e-kit/pkg/assembler"
	"github.com/bgrewell/e2e-kit/pkg/bytesource"
	"github.com/bgrewell/e2e-kit/pkg/dispatch"
	"github.com/bgrewell/e2e-kit/pkg/e2eerr"
	"github.com/bgrewell/e2e-kit/pkg/logging"
	"github.com/bgrewell/e2e-kit/pkg/model"
	"github.com/bgrewell/e2e-kit/pkg/options"
	"github.com/bgrewell/e2e-kit/pkg/ufloat16"
	"github.com/bgrewell/e2e-kit/pkg/walker"
)

// ReadOCTVolume reads every OCT volume present in the .e2e file at
// path, returning one entry per distinct (patient, study, series)
// volume key in directory-declaration order followed by any orphan
// volumes in arrival order (spec section 4.6).
func ReadOCTVolume(path string, opts ...options.Option) ([]*model.OCTVolumeWithMetaData, error) {
	o, src, logger, err := open(path, opts...)
	if err != nil {
		return nil, err
	}
	defer src.file.Close()

	walked, err := walker.Walk(src.source, logger)
	if err != nil {
		return nil, err
	}

	state := dispatch.NewState(walked)
	for _, chunk := range walked.Chunks {
		abort, err := dispatch.Dispatch(state, src.source, chunk, dispatch.ModeOCT, o.LUT, o, logger)
		if err != nil {
			return nil, err
		}
		if abort {
			break
		}
	}

	return assembler.AssembleOCT(state, o), nil
}

// ReadFundusImage reads every fundus image present in the .e2e file at
// path, one entry per distinct image id, each holding the last pixel
// buffer written for that id (spec section 4.5, 4.6).
func ReadFundusImage(path string, opts ...options.Option) ([]*model.FundusImageWithMetaData, error) {
	o, src, logger, err := open(path, opts...)
	if err != nil {
		return nil, err
	}
	defer src.file.Close()

	walked, err := walker.Walk(src.source, logger)
	if err != nil {
		return nil, err
	}

	state := dispatch.NewState(walked)
	for _, chunk := range walked.Chunks {
		abort, err := dispatch.Dispatch(state, src.source, chunk, dispatch.ModeFundus, o.LUT, o, logger)
		if err != nil {
			return nil, err
		}
		if abort {
			break
		}
	}

	return assembler.AssembleFundus(state), nil
}

// fileSource bundles the open file handle with the bytesource.Source
// wrapping it, so callers can defer a single Close.
type fileSource struct {
	file   *os.File
	source *bytesource.Source
}

func open(path string, opts ...options.Option) (options.Options, *fileSource, *logging.Logger, error) {
	o := options.Default()
	for _, opt := range opts {
		opt(&o)
	}
	if o.LUT == nil {
		o.LUT = ufloat16.Shared()
	}
	logger := logging.NewLogger(o.Logger)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return options.Options{}, nil, nil, fmt.Errorf("%w: %s", e2eerr.ErrFileNotFound, path)
		}
		return options.Options{}, nil, nil, e2eerr.WrapIO("open file", 0, err)
	}

	return o, &fileSource{file: f, source: bytesource.New(f)}, logger, nil
}
