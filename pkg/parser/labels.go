package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// NodeLabel is one line of the classifier label file.
type NodeLabel struct {
	ID          uint32
	Density     uint32
	MinDistance float64
	Label       int32
}

// WriteNodeLabels writes one tab-separated line per node:
// id density minDistance label.
func WriteNodeLabels(w io.Writer, nodes []NodeLabel) error {
	bw := bufio.NewWriter(w)
	for _, n := range nodes {
		_, err := fmt.Fprintf(bw, "%d\t%d\t%s\t%d\n",
			n.ID, n.Density, strconv.FormatFloat(n.MinDistance, 'g', 6, 64), n.Label)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadLabelMap reads a classifier label file into id -> label.
func ReadLabelMap(filename string) (map[uint32]int32, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer file.Close()

	labels := make(map[uint32]int32)
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 {
			return nil, fmt.Errorf("%s line %d: expected 4 fields, got %d", filename, lineNum, len(parts))
		}
		id, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid id %q: %w", filename, lineNum, parts[0], err)
		}
		label, err := strconv.ParseInt(parts[3], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid label %q: %w", filename, lineNum, parts[3], err)
		}
		labels[uint32(id)] = int32(label)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filename, err)
	}
	return labels, nil
}

// WriteIDs writes one id per line.
func WriteIDs(w io.Writer, ids []uint32) error {
	bw := bufio.NewWriter(w)
	for _, id := range ids {
		if _, err := fmt.Fprintf(bw, "%d\n", id); err != nil {
			return err
		}
	}
	return bw.Flush()
}
