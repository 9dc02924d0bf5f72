// Package traceback projects metacluster labels back onto the search ranges
// of every primary cluster member and writes them as SequenceLabel records.
package traceback

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/parser"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/radix"
)

var (
	memberByQID = radix.Layout{RecordSize: models.ClusterMemberSize, KeyOffset: models.MemberQIDOffset, KeySize: 4}

	labelSID   = func(l *models.SequenceLabel) uint64 { return uint64(l.SID) }
	labelLabel = func(l *models.SequenceLabel) uint64 { return uint64(uint32(l.Label)) }
)

// Project sorts the raw member buffer by composite id and emits one
// SequenceLabel per member whose primary cluster has a non-negative label.
// The result is ordered by label, then sID. members is sorted in place.
func Project(members []byte, labels map[uint32]int32) ([]models.SequenceLabel, error) {
	if err := radix.Sort(members, memberByQID); err != nil {
		return nil, fmt.Errorf("failed to sort members by qID: %w", err)
	}
	if err := radix.CheckSorted(members, memberByQID); err != nil {
		return nil, fmt.Errorf("member sort check failed: %w", err)
	}
	decoded, err := parser.DecodeMembers(members)
	if err != nil {
		return nil, err
	}

	out := make([]models.SequenceLabel, 0, len(decoded))
	for _, m := range decoded {
		label, ok := labels[m.QID]
		if !ok || label < 0 {
			continue
		}
		out = append(out, models.SequenceLabel{
			SID:    m.SID,
			SStart: m.SStart,
			SEnd:   m.SEnd,
			Label:  label,
		})
	}

	radix.SortBy(out, 4, labelSID)
	radix.SortBy(out, 4, labelLabel)
	return out, nil
}

// Statistics summarizes one traceback run.
type Statistics struct {
	Members   int   `json:"members"`
	Labeled   int   `json:"labeled"`
	Files     int   `json:"files"`
	RuntimeMS int64 `json:"runtime_ms"`
}

// Result is the output of Run.
type Result struct {
	Files      []string   `json:"files"`
	Statistics Statistics `json:"statistics"`
}

// Run loads the member files and the classifier label file, projects the
// labels and writes up to numFiles sequence label files into outDir.
func Run(ctx context.Context, memberFiles []string, labelFile, outDir string, numFiles int, logger zerolog.Logger) (*Result, error) {
	startTime := time.Now()

	if len(memberFiles) == 0 {
		return nil, fmt.Errorf("missing input member files")
	}
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("output path %s does not exist", outDir)
	}

	labels, err := parser.ReadLabelMap(labelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load metacluster labels: %w", err)
	}
	members, err := parser.LoadMemberBytes(memberFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	numMembers := len(members) / models.ClusterMemberSize

	logger.Info().
		Int("members", numMembers).
		Str("size", humanize.Bytes(uint64(len(members)))).
		Int("labels", len(labels)).
		Str("output", outDir).
		Msg("Starting traceback")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	projected, err := Project(members, labels)
	if err != nil {
		return nil, err
	}

	files, err := WriteSplit(outDir, Split(projected, numFiles))
	if err != nil {
		return nil, err
	}

	result := &Result{
		Files: files,
		Statistics: Statistics{
			Members:   numMembers,
			Labeled:   len(projected),
			Files:     len(files),
			RuntimeMS: time.Since(startTime).Milliseconds(),
		},
	}

	logger.Info().
		Int("labeled", result.Statistics.Labeled).
		Int("files", result.Statistics.Files).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Traceback completed")

	return result, nil
}
