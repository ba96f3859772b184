// Package delta implements the delta-state recorder and replayer: an
// incremental byte stream carrying timestamped snapshots of an arbitrary
// producer, rewriteable forward and seekable backward. It owns the
// entire/delta scheduling policy, the trailing index footer, and the
// user-defined chunk protocol, grounded on
// DeltaStateSerialization.{h,cpp} and generalizing the teacher's
// pkg/replay/replay.go header/footer validation pattern to an arbitrary
// producer rather than a fixed input-frame schema.
package delta

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/opd-ai/deltastate/pkg/instrument"
)

// trailerVersion is the only supported trailer format version.
const trailerVersion uint8 = 0

// trailerSize is the fixed byte size of the trailer: footer_size (u64) +
// version (u8) + reserved (7 bytes).
const trailerSize = 8 + 1 + 7

// Producer supplies the per-state payload bytes a Recorder writes. Go has
// no function-pointer-with-user-data struct; this closed capability set
// replaces the original's delta_function/entire_function pair plus their
// user_data argument (spec.md §9 redesign note).
type Producer interface {
	// WriteEntire writes a self-contained baseline state.
	WriteEntire(w instrument.WriteInstrument, elapsedSeconds float32) error
	// WriteDelta writes a state expressed as a difference from whatever
	// the replayer's most recent entire/delta application left behind.
	WriteDelta(w instrument.WriteInstrument, elapsedSeconds float32) error
}

// Reader is the read-side counterpart of Producer. header carries the
// session's user-defined variable header, read once at Replayer
// construction and passed unchanged to every call; writeSize is the exact
// byte count the replayer expects this call to consume.
type Reader interface {
	ReadEntire(r instrument.ReadInstrument, header []byte, writeSize int64, elapsedSeconds float32) error
	ReadDelta(r instrument.ReadInstrument, header []byte, writeSize int64, elapsedSeconds float32) error
}

// TimeSource lets a Producer supply its own delta_time, so a caller can
// drive the recorder with Recorder.WriteNext instead of passing delta_time
// to Recorder.Write each call, standing in for the original's optional
// self-contained extract_function.
type TimeSource interface {
	ElapsedDelta() float32
}

// HeaderFunc serializes a producer's variable-length session header into a
// sized sub-instrument chunk during recorder initialization, or parses one
// back during replayer initialization were it ever needed (the Go
// redesign instead hands the raw header bytes to Reader directly, so
// HeaderFunc is write-side only).
type HeaderFunc func(w instrument.WriteInstrument) error

// GenericHeader is a small reusable versioned header for producers that
// want a minimal fixed header without hand-rolling one, mirroring the
// original's DeltaStateWriteGenericHeader helper.
type GenericHeader struct {
	Version  uint8
	Reserved [7]byte
}

// MarshalBinary encodes h as its 8-byte wire form.
func (h GenericHeader) MarshalBinary() ([]byte, error) {
	out := make([]byte, 8)
	out[0] = h.Version
	copy(out[1:], h.Reserved[:])
	return out, nil
}

// UnmarshalGenericHeader decodes a header written by MarshalBinary.
func UnmarshalGenericHeader(data []byte) (GenericHeader, error) {
	var h GenericHeader
	if len(data) < 8 {
		return h, errShortGenericHeader
	}
	h.Version = data[0]
	copy(h.Reserved[:], data[1:8])
	return h, nil
}

var errShortGenericHeader = errors.New("delta: generic header shorter than 8 bytes")

// stateInfo pairs the moment in time a recorded state represents with the
// number of payload bytes it occupies on the stream.
type stateInfo struct {
	elapsedSeconds float32
	byteSize       int64
}

func writeUint64LE(w instrument.WriteInstrument, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return w.Write(buf[:])
}

func readUint64LE(r instrument.ReadInstrument) (uint64, error) {
	var buf [8]byte
	if err := r.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeFloat32LE(w instrument.WriteInstrument, v float32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return w.Write(buf[:])
}

func readFloat32LE(r instrument.ReadInstrument) (float32, error) {
	var buf [4]byte
	if err := r.Read(buf[:]); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:])), nil
}
