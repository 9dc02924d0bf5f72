package metacluster

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/parser"
)

// PeaksFileName is written next to the label file.
const PeaksFileName = "sc_peaks_idx.txt"

// NodeLabels returns one label file row per node, in ascending id order.
func (g *Graph) NodeLabels() []parser.NodeLabel {
	rows := make([]parser.NodeLabel, g.NumNodes)
	for i := range rows {
		rows[i] = parser.NodeLabel{
			ID:          g.IDs[i],
			Density:     g.Density[i],
			MinDistance: g.MinDistance[i],
			Label:       g.Labels[i],
		}
	}
	return rows
}

// WriteResult writes the label file to labelPath and the peak ids to
// sc_peaks_idx.txt in the same directory.
func WriteResult(labelPath string, result *Result) error {
	if err := writeWith(labelPath, func(f *os.File) error {
		return parser.WriteNodeLabels(f, result.Graph.NodeLabels())
	}); err != nil {
		return fmt.Errorf("failed to write labels: %w", err)
	}

	peaksPath := filepath.Join(filepath.Dir(labelPath), PeaksFileName)
	if err := writeWith(peaksPath, func(f *os.File) error {
		return parser.WriteIDs(f, result.Peaks)
	}); err != nil {
		return fmt.Errorf("failed to write peaks: %w", err)
	}
	return nil
}

func writeWith(path string, write func(*os.File) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
