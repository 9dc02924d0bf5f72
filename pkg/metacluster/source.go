package metacluster

import (
	"fmt"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/parser"
)

// EdgeSource yields the edges of the sparse distance graph. Each may be
// called several times; every call must yield the same edges in the same
// order.
type EdgeSource interface {
	Each(fn func(models.NormalizedPair)) error
}

// FileSource reads normalized pair files one at a time on every pass, so
// only one file is held in memory.
type FileSource struct {
	Paths []string
}

func (s FileSource) Each(fn func(models.NormalizedPair)) error {
	for _, path := range s.Paths {
		pairs, err := parser.LoadPairs(path)
		if err != nil {
			return fmt.Errorf("failed to load edges: %w", err)
		}
		for _, p := range pairs {
			fn(p)
		}
	}
	return nil
}

// SliceSource serves edges already in memory.
type SliceSource []models.NormalizedPair

func (s SliceSource) Each(fn func(models.NormalizedPair)) error {
	for _, p := range s {
		fn(p)
	}
	return nil
}
