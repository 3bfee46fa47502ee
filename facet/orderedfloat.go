package facet

import (
	"encoding/binary"
	"fmt"
	"math"
)

// OrderedF64Size is the length of an OrderedF64 encoding: 8 bytes of
// order-preserving key followed by 8 bytes of raw IEEE-754 bits
// (spec.md §3, §6).
const OrderedF64Size = 16

// EncodeOrderedF64 writes the 16-byte order-preserving encoding of f
// into dst (which must be at least OrderedF64Size long) and returns an
// error if f is not finite - NaN and ±Inf have no meaningful position
// in a numeric range scan, so callers skip the Number key entirely
// rather than store a sentinel (spec.md §4.A, §7).
//
// The first 8 bytes flip all bits when the sign bit is set (negative
// numbers) and otherwise just set the sign bit; big-endian. That makes
// bytewise comparison of the first 8 bytes match numeric order across
// the full range of finite doubles. The second 8 bytes are the raw
// big-endian bits, recoverable with DecodeOrderedF64.
func EncodeOrderedF64(f float64, dst []byte) error {
	if len(dst) < OrderedF64Size {
		return fmt.Errorf("facet: ordered f64 buffer too small: %d < %d", len(dst), OrderedF64Size)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("facet: %v is not representable as an ordered f64", f)
	}

	bits := math.Float64bits(f)
	var ordered uint64
	if bits&(1<<63) != 0 {
		ordered = ^bits
	} else {
		ordered = bits | (1 << 63)
	}

	binary.BigEndian.PutUint64(dst[0:8], ordered)
	binary.BigEndian.PutUint64(dst[8:16], bits)
	return nil
}

// AppendOrderedF64 is the allocating counterpart of EncodeOrderedF64.
func AppendOrderedF64(f float64) ([]byte, error) {
	buf := make([]byte, OrderedF64Size)
	if err := EncodeOrderedF64(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeOrderedF64 recovers the original float64 from the raw-bits half
// of an OrderedF64 encoding (spec.md §3, property 2 in §8).
func DecodeOrderedF64(src []byte) (float64, error) {
	if len(src) < OrderedF64Size {
		return 0, fmt.Errorf("facet: ordered f64 buffer too small: %d < %d", len(src), OrderedF64Size)
	}
	bits := binary.BigEndian.Uint64(src[8:16])
	return math.Float64frombits(bits), nil
}
