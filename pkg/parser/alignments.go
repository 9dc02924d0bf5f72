package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
)

// alignmentColumns is the number of whitespace-separated fields per row:
// qid sid qstart qend sstart send qlen slen alnlen pident evalue bits tmscore lddt
const alignmentColumns = 14

// AlignmentStats reports how many rows were read and how many were skipped
// because they did not parse.
type AlignmentStats struct {
	Rows    int
	Skipped int
}

// ReadAlignmentFile parses an alignment table. Files ending in .zst are
// decompressed on the fly. The first skipRows lines are ignored.
func ReadAlignmentFile(filename string, skipRows int) ([]models.Alignment, AlignmentStats, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, AlignmentStats{}, fmt.Errorf("failed to open alignments: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(filename, ".zst") {
		dec, err := zstd.NewReader(file)
		if err != nil {
			return nil, AlignmentStats{}, fmt.Errorf("failed to open zstd stream %s: %w", filename, err)
		}
		defer dec.Close()
		r = dec
	}

	alns, stats, err := ReadAlignments(r, skipRows)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return alns, stats, nil
}

// ReadAlignments parses alignment rows from r. Rows with missing or
// malformed fields are skipped and counted.
func ReadAlignments(r io.Reader, skipRows int) ([]models.Alignment, AlignmentStats, error) {
	var (
		alns  []models.Alignment
		stats AlignmentStats
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if line <= skipRows {
			continue
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		stats.Rows++
		aln, ok := parseAlignment(strings.Fields(text))
		if !ok {
			stats.Skipped++
			continue
		}
		alns = append(alns, aln)
	}

	return alns, stats, scanner.Err()
}

func parseAlignment(parts []string) (models.Alignment, bool) {
	if len(parts) < alignmentColumns {
		return models.Alignment{}, false
	}

	var u [9]uint32
	for i := 0; i < 9; i++ {
		v, err := strconv.ParseUint(parts[i], 10, 32)
		if err != nil {
			return models.Alignment{}, false
		}
		u[i] = uint32(v)
	}
	pident, err1 := strconv.ParseFloat(parts[9], 64)
	evalue, err2 := strconv.ParseFloat(parts[10], 64)
	bits, err3 := strconv.ParseUint(parts[11], 10, 32)
	tm, err4 := strconv.ParseFloat(parts[12], 64)
	lddt, err5 := strconv.ParseFloat(parts[13], 64)
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return models.Alignment{}, false
		}
	}

	return models.Alignment{
		QueryID:      u[0],
		SearchID:     u[1],
		QueryStart:   u[2],
		QueryEnd:     u[3],
		SearchStart:  u[4],
		SearchEnd:    u[5],
		QueryLength:  u[6],
		SearchLength: u[7],
		AlnLength:    u[8],
		Pident:       pident,
		Evalue:       evalue,
		Bits:         uint32(bits),
		TMScore:      tm,
		LDDT:         lddt,
	}, true
}

// WriteAlignments writes alignments in the same column order ReadAlignments
// accepts.
func WriteAlignments(w io.Writer, alns []models.Alignment) error {
	bw := bufio.NewWriter(w)
	for _, a := range alns {
		_, err := fmt.Fprintf(bw, "%d %d %d %d %d %d %d %d %d %g %g %d %g %g\n",
			a.QueryID, a.SearchID, a.QueryStart, a.QueryEnd, a.SearchStart, a.SearchEnd,
			a.QueryLength, a.SearchLength, a.AlnLength, a.Pident, a.Evalue, a.Bits, a.TMScore, a.LDDT)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}
