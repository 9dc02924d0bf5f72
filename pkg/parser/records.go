package parser

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
)

// Binary records are little-endian and concatenated without headers.

var (
	// ErrRecordSize is returned when a buffer is not a whole number of
	// records.
	ErrRecordSize = errors.New("size is not a multiple of the record size")

	// ErrEmptyFile is returned when a cluster member file holds no records.
	ErrEmptyFile = errors.New("file contains no records")
)

// ReadRaw concatenates the contents of files. Every file must hold a whole
// number of recordSize records.
func ReadRaw(recordSize int, filenames ...string) ([]byte, error) {
	var total int64
	for _, name := range filenames {
		info, err := os.Stat(name)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", name, err)
		}
		if info.Size()%int64(recordSize) != 0 {
			return nil, fmt.Errorf("%s has %d bytes, record size %d: %w", name, info.Size(), recordSize, ErrRecordSize)
		}
		total += info.Size()
	}

	buf := make([]byte, 0, total)
	for _, name := range filenames {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		buf = append(buf, data...)
	}
	return buf, nil
}

// LoadMemberBytes reads one or more cluster member files into a single raw
// buffer. Each file must be non-empty.
func LoadMemberBytes(filenames ...string) ([]byte, error) {
	for _, name := range filenames {
		info, err := os.Stat(name)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", name, err)
		}
		if info.Size() == 0 {
			return nil, fmt.Errorf("%s: %w", name, ErrEmptyFile)
		}
	}
	return ReadRaw(models.ClusterMemberSize, filenames...)
}

// LoadMembers reads and decodes one or more cluster member files.
func LoadMembers(filenames ...string) ([]models.ClusterMember, error) {
	buf, err := LoadMemberBytes(filenames...)
	if err != nil {
		return nil, err
	}
	return DecodeMembers(buf)
}

// EncodeMembers lays members out as qID | qSize | sID | sstart | send.
func EncodeMembers(members []models.ClusterMember) []byte {
	buf := make([]byte, len(members)*models.ClusterMemberSize)
	for i, m := range members {
		b := buf[i*models.ClusterMemberSize:]
		binary.LittleEndian.PutUint32(b[0:], m.QID)
		binary.LittleEndian.PutUint32(b[4:], m.QSize)
		binary.LittleEndian.PutUint32(b[8:], m.SID)
		binary.LittleEndian.PutUint16(b[12:], m.SStart)
		binary.LittleEndian.PutUint16(b[14:], m.SEnd)
	}
	return buf
}

// DecodeMembers is the inverse of EncodeMembers.
func DecodeMembers(buf []byte) ([]models.ClusterMember, error) {
	if len(buf)%models.ClusterMemberSize != 0 {
		return nil, fmt.Errorf("member buffer of %d bytes: %w", len(buf), ErrRecordSize)
	}
	members := make([]models.ClusterMember, len(buf)/models.ClusterMemberSize)
	for i := range members {
		b := buf[i*models.ClusterMemberSize:]
		members[i] = models.ClusterMember{
			QID:    binary.LittleEndian.Uint32(b[0:]),
			QSize:  binary.LittleEndian.Uint32(b[4:]),
			SID:    binary.LittleEndian.Uint32(b[8:]),
			SStart: binary.LittleEndian.Uint16(b[12:]),
			SEnd:   binary.LittleEndian.Uint16(b[14:]),
		}
	}
	return members, nil
}

// WriteMembers writes members to filename, replacing any existing file.
func WriteMembers(filename string, members []models.ClusterMember) error {
	return writeFile(filename, EncodeMembers(members))
}

// EncodePairs lays pairs out as ID1 | ID2 | distance (float64 bits).
func EncodePairs(pairs []models.NormalizedPair) []byte {
	buf := make([]byte, len(pairs)*models.NormalizedPairSize)
	for i, p := range pairs {
		b := buf[i*models.NormalizedPairSize:]
		binary.LittleEndian.PutUint32(b[0:], p.ID1)
		binary.LittleEndian.PutUint32(b[4:], p.ID2)
		binary.LittleEndian.PutUint64(b[8:], math.Float64bits(p.Distance))
	}
	return buf
}

// DecodePairs is the inverse of EncodePairs.
func DecodePairs(buf []byte) ([]models.NormalizedPair, error) {
	if len(buf)%models.NormalizedPairSize != 0 {
		return nil, fmt.Errorf("pair buffer of %d bytes: %w", len(buf), ErrRecordSize)
	}
	pairs := make([]models.NormalizedPair, len(buf)/models.NormalizedPairSize)
	for i := range pairs {
		b := buf[i*models.NormalizedPairSize:]
		pairs[i] = models.NormalizedPair{
			ID1:      binary.LittleEndian.Uint32(b[0:]),
			ID2:      binary.LittleEndian.Uint32(b[4:]),
			Distance: math.Float64frombits(binary.LittleEndian.Uint64(b[8:])),
		}
	}
	return pairs, nil
}

// LoadPairs reads one normalized pair file.
func LoadPairs(filename string) ([]models.NormalizedPair, error) {
	buf, err := ReadRaw(models.NormalizedPairSize, filename)
	if err != nil {
		return nil, err
	}
	return DecodePairs(buf)
}

// PairWriter streams normalized pairs to a file.
type PairWriter struct {
	file *os.File
	w    *bufio.Writer
	rec  [models.NormalizedPairSize]byte
	n    int
}

// CreatePairWriter creates filename for writing.
func CreatePairWriter(filename string) (*PairWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filename, err)
	}
	return &PairWriter{file: file, w: bufio.NewWriterSize(file, 1<<20)}, nil
}

// Write appends one pair.
func (pw *PairWriter) Write(p models.NormalizedPair) error {
	binary.LittleEndian.PutUint32(pw.rec[0:], p.ID1)
	binary.LittleEndian.PutUint32(pw.rec[4:], p.ID2)
	binary.LittleEndian.PutUint64(pw.rec[8:], math.Float64bits(p.Distance))
	if _, err := pw.w.Write(pw.rec[:]); err != nil {
		return err
	}
	pw.n++
	return nil
}

// Count returns the number of pairs written so far.
func (pw *PairWriter) Count() int { return pw.n }

// Close flushes and closes the file.
func (pw *PairWriter) Close() error {
	if err := pw.w.Flush(); err != nil {
		pw.file.Close()
		return err
	}
	return pw.file.Close()
}

// EncodeLabels lays labels out as sID | sstart | send | label.
func EncodeLabels(labels []models.SequenceLabel) []byte {
	buf := make([]byte, len(labels)*models.SequenceLabelSize)
	for i, l := range labels {
		b := buf[i*models.SequenceLabelSize:]
		binary.LittleEndian.PutUint32(b[0:], l.SID)
		binary.LittleEndian.PutUint16(b[4:], l.SStart)
		binary.LittleEndian.PutUint16(b[6:], l.SEnd)
		binary.LittleEndian.PutUint32(b[8:], uint32(l.Label))
	}
	return buf
}

// DecodeLabels is the inverse of EncodeLabels.
func DecodeLabels(buf []byte) ([]models.SequenceLabel, error) {
	if len(buf)%models.SequenceLabelSize != 0 {
		return nil, fmt.Errorf("label buffer of %d bytes: %w", len(buf), ErrRecordSize)
	}
	labels := make([]models.SequenceLabel, len(buf)/models.SequenceLabelSize)
	for i := range labels {
		b := buf[i*models.SequenceLabelSize:]
		labels[i] = models.SequenceLabel{
			SID:    binary.LittleEndian.Uint32(b[0:]),
			SStart: binary.LittleEndian.Uint16(b[4:]),
			SEnd:   binary.LittleEndian.Uint16(b[6:]),
			Label:  int32(binary.LittleEndian.Uint32(b[8:])),
		}
	}
	return labels, nil
}

// LoadLabels reads one or more sequence label files.
func LoadLabels(filenames ...string) ([]models.SequenceLabel, error) {
	buf, err := ReadRaw(models.SequenceLabelSize, filenames...)
	if err != nil {
		return nil, err
	}
	return DecodeLabels(buf)
}

func writeFile(filename string, data []byte) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return file.Close()
}

// WriteRaw writes an already encoded buffer to w.
func WriteRaw(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}
