package traceback

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/interval"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/parser"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/radix"
)

// OverlapThreshold is the distance under which two ranges of the same
// search sequence count as the same domain.
const OverlapThreshold = 0.2

// Representative is the range chosen for one (label, sID) group.
type Representative struct {
	models.SequenceLabel
	Distance float64 // distance to the group average
}

func labelThenSID(l *models.SequenceLabel) uint64 {
	return uint64(uint32(l.Label))<<32 | uint64(l.SID)
}

// Filter keeps one representative per (label, sID) group with more than
// one range. Only ranges overlapping another range of the group take part;
// among them the one closest to their average range wins, the later one on
// ties. labels must be ordered by label, then sID.
func Filter(labels []models.SequenceLabel) ([]Representative, error) {
	if !radix.IsSortedBy(labels, labelThenSID) {
		return nil, fmt.Errorf("sequence labels not ordered by label and sID: %w", radix.ErrNotSorted)
	}

	var reps []Representative
	for low := 0; low < len(labels); {
		high := low + 1
		for high < len(labels) && labelThenSID(&labels[high]) == labelThenSID(&labels[low]) {
			high++
		}
		if high-low > 1 {
			if rep, ok := representative(labels[low:high]); ok {
				reps = append(reps, rep)
			}
		}
		low = high
	}
	return reps, nil
}

func representative(group []models.SequenceLabel) (Representative, bool) {
	var overlapping []models.SequenceLabel
	for i, a := range group {
		for j, b := range group {
			if i != j && rangeDistance(a, b) < OverlapThreshold {
				overlapping = append(overlapping, a)
				break
			}
		}
	}
	if len(overlapping) == 0 {
		return Representative{}, false
	}

	var startSum, endSum int
	for _, s := range overlapping {
		startSum += int(s.SStart)
		endSum += int(s.SEnd)
	}
	avg := models.SequenceLabel{
		SStart: uint16(startSum / len(overlapping)),
		SEnd:   uint16(endSum / len(overlapping)),
	}

	best := Representative{Distance: 1}
	for _, s := range overlapping {
		if d := rangeDistance(avg, s); d <= best.Distance {
			best = Representative{SequenceLabel: s, Distance: d}
		}
	}
	return best, true
}

func rangeDistance(a, b models.SequenceLabel) float64 {
	return interval.DistanceExclusive(int(a.SStart), int(a.SEnd), int(b.SStart), int(b.SEnd))
}

// WriteRepresentatives writes one "sID sstart send label" line per
// representative.
func WriteRepresentatives(w io.Writer, reps []Representative) error {
	bw := bufio.NewWriter(w)
	for _, r := range reps {
		if _, err := fmt.Fprintf(bw, "%d %d %d %d\n", r.SID, r.SStart, r.SEnd, r.Label); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FilteredName derives the default post-filter output name from an input
// path: the base name without extension plus "_filtered.txt".
func FilteredName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_filtered.txt"
}

// PostFilter reads a sequence label file, filters it and writes the
// representatives to output.
func PostFilter(input, output string, logger zerolog.Logger) (int, error) {
	labels, err := parser.LoadLabels(input)
	if err != nil {
		return 0, fmt.Errorf("failed to load sequence labels: %w", err)
	}
	logger.Info().
		Str("input", input).
		Str("output", output).
		Int("records", len(labels)).
		Msg("Starting post-filter")

	reps, err := Filter(labels)
	if err != nil {
		return 0, err
	}

	file, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", output, err)
	}
	if err := WriteRepresentatives(file, reps); err != nil {
		file.Close()
		return 0, fmt.Errorf("failed to write %s: %w", output, err)
	}
	if err := file.Close(); err != nil {
		return 0, err
	}

	logger.Info().Int("representatives", len(reps)).Msg("Post-filter completed")
	return len(reps), nil
}
