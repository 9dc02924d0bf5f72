package models

import (
	"fmt"
)

// Alignment is one row of a pairwise alignment table. Coordinates are
// 1-based and inclusive.
type Alignment struct {
	QueryID      uint32  `json:"query_id"`
	SearchID     uint32  `json:"search_id"`
	QueryStart   uint32  `json:"query_start"`
	QueryEnd     uint32  `json:"query_end"`
	SearchStart  uint32  `json:"search_start"`
	SearchEnd    uint32  `json:"search_end"`
	QueryLength  uint32  `json:"query_length"`
	SearchLength uint32  `json:"search_length"`
	AlnLength    uint32  `json:"aln_length"`
	Pident       float64 `json:"pident"`
	Evalue       float64 `json:"evalue"`
	Bits         uint32  `json:"bits"`
	TMScore      float64 `json:"tm_score"`
	LDDT         float64 `json:"lddt"`
}

// ClusterMember is the compact record of one alignment assigned to a primary
// cluster. QID packs the query id and the local cluster label (see
// EncodeClusterID). QSize is the population of the primary cluster.
type ClusterMember struct {
	QID    uint32 `json:"qid"`
	QSize  uint32 `json:"qsize"`
	SID    uint32 `json:"sid"`
	SStart uint16 `json:"sstart"`
	SEnd   uint16 `json:"send"`
}

func (m ClusterMember) String() string {
	return fmt.Sprintf("%d %d %d %d %d", m.QID, m.QSize, m.SID, m.SStart, m.SEnd)
}

// MatchedPair is one piece of evidence that two primary clusters overlap on
// the same search sequence. ID1 < ID2 for every real pair; the zero value is
// the padding entry used to fill batches.
type MatchedPair struct {
	ID1        uint32
	ID2        uint32
	NormFactor uint32
}

// IsNull reports whether p is a padding entry.
func (p MatchedPair) IsNull() bool { return p.ID1 == 0 }

// Ratio accumulates match counts over the normalization weight of the first
// observed pair.
type Ratio struct {
	Num   uint32
	Denom uint32
}

// Float returns Num/Denom.
func (r Ratio) Float() float64 {
	return float64(r.Num) / float64(r.Denom)
}

// NormalizedPair is one edge of the sparse distance graph between primary
// clusters. Distance lies in [0,1].
type NormalizedPair struct {
	ID1      uint32  `json:"id1"`
	ID2      uint32  `json:"id2"`
	Distance float64 `json:"distance"`
}

// Labels below zero mark search ranges without a metacluster.
const (
	LabelUnassigned int32 = -1
	LabelNone       int32 = -9
)

// SequenceLabel is a metacluster label projected onto a search range.
type SequenceLabel struct {
	SID    uint32 `json:"sid"`
	SStart uint16 `json:"sstart"`
	SEnd   uint16 `json:"send"`
	Label  int32  `json:"label"`
}

// Binary record sizes in bytes.
const (
	ClusterMemberSize  = 16
	NormalizedPairSize = 16
	SequenceLabelSize  = 12
)

// Byte offsets of the sortable keys inside the binary records.
const (
	MemberQIDOffset  = 0
	MemberSIDOffset  = 8
	LabelSIDOffset   = 0
	LabelLabelOffset = 8
)
