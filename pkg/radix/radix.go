// Package radix implements a stable least-significant-byte radix sort over
// fixed-size records.
package radix

import (
	"errors"
	"fmt"
)

var (
	// ErrBadLayout is returned when the record layout does not describe the
	// buffer.
	ErrBadLayout = errors.New("invalid record layout")

	// ErrNotSorted is returned by CheckSorted when an adjacent pair of
	// records is out of order.
	ErrNotSorted = errors.New("records are not sorted")
)

// Layout describes fixed-size records and the byte window used as key. Key
// bytes are read little-endian: byte KeyOffset is the least significant.
type Layout struct {
	RecordSize int
	KeyOffset  int
	KeySize    int
}

func (l Layout) validate(n int) error {
	if l.RecordSize <= 0 {
		return fmt.Errorf("record size %d: %w", l.RecordSize, ErrBadLayout)
	}
	if l.KeySize <= 0 || l.KeyOffset < 0 || l.KeyOffset+l.KeySize > l.RecordSize {
		return fmt.Errorf("key window [%d,%d) outside record of %d bytes: %w",
			l.KeyOffset, l.KeyOffset+l.KeySize, l.RecordSize, ErrBadLayout)
	}
	if n%l.RecordSize != 0 {
		return fmt.Errorf("buffer of %d bytes is not a multiple of %d: %w", n, l.RecordSize, ErrBadLayout)
	}
	return nil
}

// Sort orders the records in data ascending by their key window, treating
// the key as an unsigned little-endian integer. The sort is stable. It makes
// KeySize passes and allocates one scratch buffer of len(data).
func Sort(data []byte, l Layout) error {
	if err := l.validate(len(data)); err != nil {
		return err
	}
	count := len(data) / l.RecordSize
	if count < 2 {
		return nil
	}

	// all histograms in one pass over the input
	index := make([][256]int, l.KeySize)
	for i := 0; i < count; i++ {
		key := data[i*l.RecordSize+l.KeyOffset:]
		for j := 0; j < l.KeySize; j++ {
			index[j][key[j]]++
		}
	}
	for j := range index {
		n := 0
		for b := 0; b < 256; b++ {
			m := index[j][b]
			index[j][b] = n
			n += m
		}
	}

	src, dst := data, make([]byte, len(data))
	for j := 0; j < l.KeySize; j++ {
		for i := 0; i < count; i++ {
			rec := src[i*l.RecordSize : (i+1)*l.RecordSize]
			b := rec[l.KeyOffset+j]
			pos := index[j][b]
			index[j][b]++
			copy(dst[pos*l.RecordSize:], rec)
		}
		src, dst = dst, src
	}

	// after an odd number of passes the result lives in the scratch buffer
	if l.KeySize%2 == 1 {
		copy(data, src)
	}
	return nil
}

// Key returns the key of record i as an unsigned integer. KeySize must not
// exceed 8.
func Key(data []byte, l Layout, i int) uint64 {
	var k uint64
	base := i*l.RecordSize + l.KeyOffset
	for j := l.KeySize - 1; j >= 0; j-- {
		k = k<<8 | uint64(data[base+j])
	}
	return k
}

// CheckSorted verifies that keys are non-decreasing across data.
func CheckSorted(data []byte, l Layout) error {
	if err := l.validate(len(data)); err != nil {
		return err
	}
	if l.KeySize > 8 {
		return fmt.Errorf("key of %d bytes cannot be compared: %w", l.KeySize, ErrBadLayout)
	}
	count := len(data) / l.RecordSize
	for i := 1; i < count; i++ {
		if Key(data, l, i-1) > Key(data, l, i) {
			return fmt.Errorf("record %d precedes a smaller key: %w", i-1, ErrNotSorted)
		}
	}
	return nil
}

// SortBy sorts s stably by the low keySize bytes of key(x), least
// significant byte first.
func SortBy[T any](s []T, keySize int, key func(*T) uint64) {
	if len(s) < 2 || keySize <= 0 {
		return
	}
	if keySize > 8 {
		keySize = 8
	}

	keys := make([]uint64, len(s))
	for i := range s {
		keys[i] = key(&s[i])
	}
	index := make([][256]int, keySize)
	for _, k := range keys {
		for j := 0; j < keySize; j++ {
			index[j][byte(k>>(8*j))]++
		}
	}
	for j := range index {
		n := 0
		for b := 0; b < 256; b++ {
			m := index[j][b]
			index[j][b] = n
			n += m
		}
	}

	src, dst := s, make([]T, len(s))
	srcKeys, dstKeys := keys, make([]uint64, len(s))
	for j := 0; j < keySize; j++ {
		shift := 8 * j
		for i := range src {
			b := byte(srcKeys[i] >> shift)
			pos := index[j][b]
			index[j][b]++
			dst[pos] = src[i]
			dstKeys[pos] = srcKeys[i]
		}
		src, dst = dst, src
		srcKeys, dstKeys = dstKeys, srcKeys
	}
	if keySize%2 == 1 {
		copy(s, src)
	}
}

// IsSortedBy reports whether key is non-decreasing across s.
func IsSortedBy[T any](s []T, key func(*T) uint64) bool {
	for i := 1; i < len(s); i++ {
		if key(&s[i-1]) > key(&s[i]) {
			return false
		}
	}
	return true
}
