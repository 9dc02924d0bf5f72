package models

import (
	"errors"
	"fmt"
	"math"
)

// LabelBase is the radix used to fold a local cluster label into a query id.
const LabelBase = 100

var (
	// ErrLabelOverflow is returned when a local label does not fit in the
	// composite id.
	ErrLabelOverflow = errors.New("local cluster label out of range")

	// ErrCoordinateOverflow is returned when a search coordinate does not fit
	// in 16 bits.
	ErrCoordinateOverflow = errors.New("search coordinate exceeds 16 bits")
)

// EncodeClusterID packs queryID and a local label as queryID*100 + label.
func EncodeClusterID(queryID uint32, label int) (uint32, error) {
	if label < 0 || label >= LabelBase {
		return 0, fmt.Errorf("query %d label %d: %w", queryID, label, ErrLabelOverflow)
	}
	id := uint64(queryID)*LabelBase + uint64(label)
	if id > math.MaxUint32 {
		return 0, fmt.Errorf("query %d does not fit a 32-bit composite id: %w", queryID, ErrLabelOverflow)
	}
	return uint32(id), nil
}

// DecodeClusterID splits a composite id into query id and local label.
func DecodeClusterID(id uint32) (queryID uint32, label int) {
	return id / LabelBase, int(id % LabelBase)
}

// NewClusterMember builds the compact record of aln under the given local
// label. QSize is left zero; it is filled by a later pass.
func NewClusterMember(aln Alignment, label int) (ClusterMember, error) {
	qid, err := EncodeClusterID(aln.QueryID, label)
	if err != nil {
		return ClusterMember{}, err
	}
	if aln.SearchStart > math.MaxUint16 || aln.SearchEnd > math.MaxUint16 {
		return ClusterMember{}, fmt.Errorf("search %d range %d-%d: %w",
			aln.SearchID, aln.SearchStart, aln.SearchEnd, ErrCoordinateOverflow)
	}
	return ClusterMember{
		QID:    qid,
		SID:    aln.SearchID,
		SStart: uint16(aln.SearchStart),
		SEnd:   uint16(aln.SearchEnd),
	}, nil
}
