// Package varint implements the 7-bit continuation variable-length integer
// codec used throughout the delta-state stream format: state counts, entity
// indices, and component byte sizes are all written this way so small
// values (the overwhelming common case) cost one byte instead of four or
// eight.
package varint

import (
	"fmt"

	"github.com/opd-ai/deltastate/pkg/instrument"
)

// continuation bit marks that another byte follows; the sign bit lives on
// the terminating byte of a signed value, matching the original encoder so
// negative and positive values of the same magnitude cost the same number
// of bytes.
const (
	continuationBit = 0x80
	payloadMask     = 0x7f
	signBit         = 0x40
	signedPayload   = 0x3f
)

// MaxSize returns the largest number of bytes AppendUnsigned/AppendSigned
// can produce for an integer of the given bit width (8, 16, 32, or 64),
// mirroring SerializeIntVariableLengthMaxSize in the original codec.
func MaxSize(bitWidth int) int {
	switch bitWidth {
	case 8:
		return 2
	case 16:
		return 3
	case 32:
		return 5
	case 64:
		return 10
	default:
		panic(fmt.Sprintf("varint: unsupported bit width %d", bitWidth))
	}
}

// AppendUnsigned writes v to w using 7 payload bits per byte, continuation
// bit set on every byte but the last.
func AppendUnsigned(w instrument.WriteInstrument, v uint64) error {
	for {
		b := byte(v & payloadMask)
		v >>= 7
		if v != 0 {
			if err := w.Write([]byte{b | continuationBit}); err != nil {
				return fmt.Errorf("varint: write continuation byte: %w", err)
			}
			continue
		}
		if err := w.Write([]byte{b}); err != nil {
			return fmt.Errorf("varint: write terminal byte: %w", err)
		}
		return nil
	}
}

// AppendSigned zig-zag-free encodes v by carrying the sign in the top data
// bit of the terminating byte, same as the original engine: the first
// continuation byte (if any) carries the low 7 magnitude bits as usual, and
// the final byte carries up to 6 magnitude bits plus the sign flag.
func AppendSigned(w instrument.WriteInstrument, v int64) error {
	neg := v < 0
	mag := uint64(v)
	if neg {
		mag = uint64(-v)
	}

	// Emit full 7-bit continuation bytes until only <=6 magnitude bits
	// remain, then emit the terminal byte with the sign bit set.
	for mag > signedPayload {
		b := byte(mag & payloadMask)
		mag >>= 7
		if err := w.Write([]byte{b | continuationBit}); err != nil {
			return fmt.Errorf("varint: write continuation byte: %w", err)
		}
	}
	final := byte(mag)
	if neg {
		final |= signBit
	}
	if err := w.Write([]byte{final}); err != nil {
		return fmt.Errorf("varint: write terminal byte: %w", err)
	}
	return nil
}

// ReadUnsigned decodes a value written by AppendUnsigned. outOfRange is set
// if the decoded magnitude cannot fit in bitWidth bits (8, 16, 32, or 64);
// the returned value is the full 64-bit decode regardless, so callers can
// still inspect it for diagnostics.
func ReadUnsigned(r instrument.ReadInstrument, bitWidth int) (value uint64, outOfRange bool, err error) {
	var result uint64
	var shift uint
	for {
		var b [1]byte
		if err := r.Read(b[:]); err != nil {
			return 0, false, fmt.Errorf("varint: read byte: %w", err)
		}
		result |= uint64(b[0]&payloadMask) << shift
		if b[0]&continuationBit == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, true, fmt.Errorf("varint: continuation sequence too long")
		}
	}
	return result, exceedsUnsigned(result, bitWidth), nil
}

// ReadSigned decodes a value written by AppendSigned.
func ReadSigned(r instrument.ReadInstrument, bitWidth int) (value int64, outOfRange bool, err error) {
	var magnitude uint64
	var shift uint
	for {
		var b [1]byte
		if err := r.Read(b[:]); err != nil {
			return 0, false, fmt.Errorf("varint: read byte: %w", err)
		}
		if b[0]&continuationBit == 0 {
			magnitude |= uint64(b[0]&signedPayload) << shift
			neg := b[0]&signBit != 0
			v := int64(magnitude)
			if neg {
				v = -v
			}
			return v, exceedsSigned(magnitude, neg, bitWidth), nil
		}
		magnitude |= uint64(b[0]&payloadMask) << shift
		shift += 7
		if shift >= 64 {
			return 0, true, fmt.Errorf("varint: continuation sequence too long")
		}
	}
}

func exceedsUnsigned(v uint64, bitWidth int) bool {
	if bitWidth >= 64 {
		return false
	}
	return v>>uint(bitWidth) != 0
}

func exceedsSigned(magnitude uint64, neg bool, bitWidth int) bool {
	if bitWidth >= 64 {
		return false
	}
	limit := uint64(1) << uint(bitWidth-1)
	if neg {
		return magnitude > limit
	}
	return magnitude >= limit
}
