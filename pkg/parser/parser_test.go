package parser

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
)

const sampleTable = `1 101 50 100 1 60 200 300 51 0.9 1e-10 55 0.8 0.7
1 102 45 97 3 50 200 250 53 0.85 1e-8 40 0.7 0.6
2 101 10 40 bad 60 200 300 51 0.9 1e-10 55 0.8 0.7
2 103 10 40
`

func TestReadAlignments(t *testing.T) {
	alns, stats, err := ReadAlignments(strings.NewReader(sampleTable), 0)
	if err != nil {
		t.Fatalf("ReadAlignments failed: %v", err)
	}
	if stats.Rows != 4 || stats.Skipped != 2 {
		t.Errorf("Expected 4 rows with 2 skipped, got %+v", stats)
	}
	if len(alns) != 2 {
		t.Fatalf("Expected 2 alignments, got %d", len(alns))
	}
	want := models.Alignment{
		QueryID: 1, SearchID: 102, QueryStart: 45, QueryEnd: 97, SearchStart: 3, SearchEnd: 50,
		QueryLength: 200, SearchLength: 250, AlnLength: 53, Pident: 0.85, Evalue: 1e-8,
		Bits: 40, TMScore: 0.7, LDDT: 0.6,
	}
	if alns[1] != want {
		t.Errorf("Expected %+v, got %+v", want, alns[1])
	}
}

func TestReadAlignmentsSkipRows(t *testing.T) {
	input := "header line\n" + sampleTable
	alns, _, err := ReadAlignments(strings.NewReader(input), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(alns) != 2 {
		t.Errorf("Expected 2 alignments after header, got %d", len(alns))
	}
}

func TestReadAlignmentFileZstd(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "aln.m8")
	packed := filepath.Join(dir, "aln.m8.zst")

	if err := os.WriteFile(plain, []byte(sampleTable), 0644); err != nil {
		t.Fatal(err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(packed, enc.EncodeAll([]byte(sampleTable), nil), 0644); err != nil {
		t.Fatal(err)
	}
	enc.Close()

	a, _, err := ReadAlignmentFile(plain, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := ReadAlignmentFile(packed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("Expected same row count, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("row %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestWriteAlignmentsReadable(t *testing.T) {
	alns, _, _ := ReadAlignments(strings.NewReader(sampleTable), 0)
	var buf bytes.Buffer
	if err := WriteAlignments(&buf, alns); err != nil {
		t.Fatal(err)
	}
	again, stats, err := ReadAlignments(&buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 0 || len(again) != len(alns) {
		t.Errorf("Expected %d clean rows, got %d (%d skipped)", len(alns), len(again), stats.Skipped)
	}
}

func TestMemberLayout(t *testing.T) {
	m := models.ClusterMember{QID: 0x01020304, QSize: 7, SID: 0x0a0b0c0d, SStart: 0x1122, SEnd: 0x3344}
	buf := EncodeMembers([]models.ClusterMember{m})

	want := []byte{
		0x04, 0x03, 0x02, 0x01,
		0x07, 0x00, 0x00, 0x00,
		0x0d, 0x0c, 0x0b, 0x0a,
		0x22, 0x11,
		0x44, 0x33,
	}
	if !bytes.Equal(buf, want) {
		t.Errorf("Expected % x, got % x", want, buf)
	}
}

func TestLoadMembersConcatenates(t *testing.T) {
	dir := t.TempDir()
	first := []models.ClusterMember{{QID: 100, QSize: 1, SID: 5, SStart: 1, SEnd: 9}}
	second := []models.ClusterMember{
		{QID: 200, QSize: 2, SID: 6, SStart: 2, SEnd: 8},
		{QID: 201, QSize: 2, SID: 6, SStart: 3, SEnd: 7},
	}
	p1 := filepath.Join(dir, "a.bin")
	p2 := filepath.Join(dir, "b.bin")
	if err := WriteMembers(p1, first); err != nil {
		t.Fatal(err)
	}
	if err := WriteMembers(p2, second); err != nil {
		t.Fatal(err)
	}

	got, err := LoadMembers(p1, p2)
	if err != nil {
		t.Fatalf("LoadMembers failed: %v", err)
	}
	want := append(append([]models.ClusterMember{}, first...), second...)
	if len(got) != len(want) {
		t.Fatalf("Expected %d members, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("member %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestLoadMembersRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	ragged := filepath.Join(dir, "ragged.bin")
	empty := filepath.Join(dir, "empty.bin")
	os.WriteFile(ragged, make([]byte, 20), 0644)
	os.WriteFile(empty, nil, 0644)

	if _, err := LoadMembers(ragged); !errors.Is(err, ErrRecordSize) {
		t.Errorf("Expected ErrRecordSize, got %v", err)
	}
	if _, err := LoadMembers(empty); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("Expected ErrEmptyFile, got %v", err)
	}
	if _, err := LoadMembers(filepath.Join(dir, "missing.bin")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestPairWriterAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.bin")
	pw, err := CreatePairWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	pairs := []models.NormalizedPair{
		{ID1: 100, ID2: 200, Distance: 0},
		{ID1: 100, ID2: 301, Distance: 0.75},
	}
	for _, p := range pairs {
		if err := pw.Write(p); err != nil {
			t.Fatal(err)
		}
	}
	if pw.Count() != 2 {
		t.Errorf("Expected count 2, got %d", pw.Count())
	}
	if err := pw.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := LoadPairs(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := range pairs {
		if got[i] != pairs[i] {
			t.Errorf("pair %d: expected %+v, got %+v", i, pairs[i], got[i])
		}
	}
}

func TestLabelLayout(t *testing.T) {
	l := models.SequenceLabel{SID: 9, SStart: 1, SEnd: 2, Label: -1}
	buf := EncodeLabels([]models.SequenceLabel{l})
	if len(buf) != models.SequenceLabelSize {
		t.Fatalf("Expected %d bytes, got %d", models.SequenceLabelSize, len(buf))
	}
	if !bytes.Equal(buf[8:], []byte{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("Expected two's complement label, got % x", buf[8:])
	}
	got, err := DecodeLabels(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != l {
		t.Errorf("Expected %+v, got %+v", l, got[0])
	}
}

func TestNodeLabelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	nodes := []NodeLabel{
		{ID: 100, Density: 3, MinDistance: 20, Label: 0},
		{ID: 201, Density: 2, MinDistance: 0.123456789, Label: 0},
		{ID: 302, Density: 1, MinDistance: 1, Label: -9},
	}
	var buf bytes.Buffer
	if err := WriteNodeLabels(&buf, nodes); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "201\t2\t0.123457\t0\n") {
		t.Errorf("Unexpected label file format:\n%s", buf.String())
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	labels, err := ReadLabelMap(path)
	if err != nil {
		t.Fatalf("ReadLabelMap failed: %v", err)
	}
	if len(labels) != 3 || labels[100] != 0 || labels[302] != -9 {
		t.Errorf("Unexpected label map: %v", labels)
	}
}
