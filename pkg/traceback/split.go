package traceback

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
	"github.com/RitAreaSciencePark/DPCstruct/pkg/parser"
)

// OutputName returns the name of the i-th (1-based) sequence label file.
func OutputName(i int) string {
	return fmt.Sprintf("sequence-labels_%d.bin", i)
}

// Split cuts label-sorted records into at most n chunks of roughly
// len(labels)/n records. Every chunk is extended forward until the label
// changes, so no label run spans two chunks. The last chunk takes whatever
// remains.
func Split(labels []models.SequenceLabel, n int) [][]models.SequenceLabel {
	if n < 1 {
		n = 1
	}
	step := max(len(labels)/n, 1)

	var chunks [][]models.SequenceLabel
	start := 0
	for i := 1; i <= n && start < len(labels); i++ {
		end := len(labels)
		if i < n {
			end = min(start+step, len(labels))
			for end < len(labels) && labels[end].Label == labels[end-1].Label {
				end++
			}
		}
		chunks = append(chunks, labels[start:end])
		start = end
	}
	return chunks
}

// WriteSplit writes chunk i to dir/sequence-labels_<i+1>.bin and returns the
// paths written.
func WriteSplit(dir string, chunks [][]models.SequenceLabel) ([]string, error) {
	paths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		path := filepath.Join(dir, OutputName(i+1))
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := parser.WriteRaw(file, parser.EncodeLabels(chunk)); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
