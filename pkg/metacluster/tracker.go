package metacluster

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// MergeEvent records one union of two metaclusters.
type MergeEvent struct {
	MergeNumber int     `json:"merge"`
	Into        int     `json:"into"`
	From        int     `json:"from"`
	PeakInto    uint32  `json:"peak_into"`
	PeakFrom    uint32  `json:"peak_from"`
	Distance    float64 `json:"distance"`
	Timestamp   int64   `json:"timestamp"`
}

// MergeTracker writes merge events as JSON lines. A nil tracker discards
// events. The first write error is kept and returned by Close.
type MergeTracker struct {
	file    *os.File
	encoder *json.Encoder
	count   int
	err     error
}

// NewMergeTracker creates filename for writing.
func NewMergeTracker(filename string) (*MergeTracker, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge log: %w", err)
	}
	return &MergeTracker{
		file:    file,
		encoder: json.NewEncoder(file),
	}, nil
}

func (mt *MergeTracker) LogMerge(into, from int, peakInto, peakFrom uint32, distance float64) {
	if mt == nil {
		return
	}
	mt.count++
	if mt.err != nil {
		return
	}
	mt.err = mt.encoder.Encode(MergeEvent{
		MergeNumber: mt.count,
		Into:        into,
		From:        from,
		PeakInto:    peakInto,
		PeakFrom:    peakFrom,
		Distance:    distance,
		Timestamp:   time.Now().Unix(),
	})
}

// Count returns the number of merges logged.
func (mt *MergeTracker) Count() int {
	if mt == nil {
		return 0
	}
	return mt.count
}

func (mt *MergeTracker) Close() error {
	if mt == nil || mt.file == nil {
		return nil
	}
	err := mt.file.Close()
	mt.file = nil
	if mt.err != nil {
		return fmt.Errorf("failed to write merge log: %w", mt.err)
	}
	return err
}
