// Package walker follows the backward-linked chain of main directories
// in a .e2e file and enumerates each one's sub-directory table, producing
// the ordered list of out-of-line chunk references and the per-volume
// declared slice count (spec section 4.4, "Directory Walker").
package walker

import (
	"github.com/bgrewell/e2e-kit/pkg/bytesource"
	"github.com/bgrewell/e2e-kit/pkg/consts"
	"github.com/bgrewell/e2e-kit/pkg/e2eerr"
	"github.com/bgrewell/e2e-kit/pkg/logging"
	"github.com/bgrewell/e2e-kit/pkg/record"
)

// ChunkRef is an out-of-line data chunk discovered in a sub-directory
// table, waiting to be visited by the chunk dispatcher.
type ChunkRef struct {
	Start uint32
	Size  uint32
}

// Result is everything the directory walk produces: the ordered chunk
// references to visit, and the declared slice count for every volume
// key the sub-directory tables mention.
type Result struct {
	Chunks     []ChunkRef
	VolumeDict map[string]int32
	// VolumeOrder preserves the order in which each volume key was
	// first encountered, so assembly can reproduce the same ordering
	// the original per-key dict insertion order would have.
	VolumeOrder []string
}

// Walk reads the file header and main directory at their fixed offsets,
// follows the `current`/`prev` chain, and enumerates every directory's
// sub-directory table.
func Walk(src *bytesource.Source, logger *logging.Logger) (*Result, error) {
	headerBytes, err := src.ReadAt(0, consts.HeaderSize)
	if err != nil {
		return nil, e2eerr.WrapMalformedHeader("file header", err)
	}
	var header record.Header
	if err := header.Unmarshal(headerBytes); err != nil {
		return nil, e2eerr.WrapMalformedHeader("file header", err)
	}
	logger.Trace("decoded file header", "magic", header.Magic, "version", header.Version)

	mainDirBytes, err := src.ReadAt(consts.HeaderSize, consts.MainDirectorySize)
	if err != nil {
		return nil, e2eerr.WrapMalformedHeader("main directory", err)
	}
	var mainDir record.MainDirectory
	if err := mainDir.Unmarshal(mainDirBytes); err != nil {
		return nil, e2eerr.WrapMalformedHeader("main directory", err)
	}

	// First pass: follow `current` -> `prev` to build the directory
	// position stack, newest first.
	var directoryStack []int64
	current := int64(mainDir.Current)
	for current != 0 {
		directoryStack = append(directoryStack, current)
		raw, err := src.ReadAt(current, consts.MainDirectorySize)
		if err != nil {
			return nil, e2eerr.WrapIO("read main directory", current, err)
		}
		var dir record.MainDirectory
		if err := dir.Unmarshal(raw); err != nil {
			return nil, e2eerr.WrapIO("decode main directory", current, err)
		}
		current = int64(dir.Prev)
	}
	logger.Debug("walked main directory chain", "directories", len(directoryStack))

	// Second pass: re-visit each directory and enumerate its
	// sub-directory table, collecting chunk references and the
	// per-volume maximum declared slice index.
	result := &Result{VolumeDict: make(map[string]int32)}
	for _, pos := range directoryStack {
		raw, err := src.ReadAt(pos, consts.MainDirectorySize)
		if err != nil {
			return nil, e2eerr.WrapIO("read main directory", pos, err)
		}
		var dir record.MainDirectory
		if err := dir.Unmarshal(raw); err != nil {
			return nil, e2eerr.WrapIO("decode main directory", pos, err)
		}

		entriesOffset := pos + consts.MainDirectorySize
		for i := uint32(0); i < dir.NumEntries; i++ {
			entryOffset := entriesOffset + int64(i)*consts.SubDirectorySize
			raw, err := src.ReadAt(entryOffset, consts.SubDirectorySize)
			if err != nil {
				return nil, e2eerr.WrapIO("read sub directory entry", entryOffset, err)
			}
			var entry record.SubDirectory
			if err := entry.Unmarshal(raw); err != nil {
				return nil, e2eerr.WrapIO("decode sub directory entry", entryOffset, err)
			}

			key := record.VolumeKey(entry.PatientID, entry.StudyID, entry.SeriesID)
			halfSlice := entry.SliceID / 2
			if existing, ok := result.VolumeDict[key]; !ok {
				result.VolumeDict[key] = halfSlice
				result.VolumeOrder = append(result.VolumeOrder, key)
			} else if halfSlice > existing {
				result.VolumeDict[key] = halfSlice
			}

			if entry.Start > entry.Pos {
				result.Chunks = append(result.Chunks, ChunkRef{Start: entry.Start, Size: entry.Size})
			}
		}
	}
	logger.Debug("enumerated sub directories", "chunks", len(result.Chunks), "volumes", len(result.VolumeDict))

	return result, nil
}
