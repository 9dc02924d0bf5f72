package primary

import (
	"encoding/binary"

	"github.com/zeebo/wyhash"

	"github.com/RitAreaSciencePark/DPCstruct/pkg/models"
)

const (
	densitySeed uint64 = 0x9e3779b97f4a7c15
	deltaSeed   uint64 = 0xc2b2ae3d27d4eb4f

	densityJitter = 0.1
	deltaJitter   = 1e-5
)

// unit maps a hash onto [0,1).
func unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}

func putAlignmentKey(b []byte, a *models.Alignment) {
	binary.LittleEndian.PutUint32(b[0:], a.SearchID)
	binary.LittleEndian.PutUint32(b[4:], a.QueryStart)
	binary.LittleEndian.PutUint32(b[8:], a.QueryEnd)
	binary.LittleEndian.PutUint32(b[12:], a.SearchStart)
	binary.LittleEndian.PutUint32(b[16:], a.SearchEnd)
}

// densityNoise is a tie-breaking offset in [0, 0.1) derived only from the
// alignment's own search id and coordinates.
func densityNoise(a *models.Alignment) float64 {
	var buf [20]byte
	putAlignmentKey(buf[:], a)
	return densityJitter * unit(wyhash.Hash(buf[:], densitySeed))
}

// deltaNoise is a tie-breaking offset in [0, 1e-5) for the ordered pair
// (a, b).
func deltaNoise(a, b *models.Alignment) float64 {
	var buf [40]byte
	putAlignmentKey(buf[:20], a)
	putAlignmentKey(buf[20:], b)
	return deltaJitter * unit(wyhash.Hash(buf[:], deltaSeed))
}
