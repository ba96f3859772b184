package instrument

import "fmt"

// WriteUninitializedData reserves count bytes at the current offset without
// specifying their contents, advancing the cursor as if they had been
// written. Real instruments (file, memory) zero-fill the reservation;
// SizeWriter just counts it. Callers use this to reserve space for a value
// that will be patched in later via Seek + Write.
func WriteUninitializedData(w WriteInstrument, count int64) error {
	if count <= 0 {
		return nil
	}
	return w.Write(make([]byte, count))
}

// WriteWithSize writes a uint32 byte count followed by data, so a reader
// can size its buffer before reading the payload back with ReadWithSize.
func WriteWithSize(w WriteInstrument, data []byte) error {
	var sizeBuf [4]byte
	putUint32LE(sizeBuf[:], uint32(len(data)))
	if err := w.Write(sizeBuf[:]); err != nil {
		return fmt.Errorf("instrument: write size prefix: %w", err)
	}
	if err := w.Write(data); err != nil {
		return fmt.Errorf("instrument: write sized payload: %w", err)
	}
	return nil
}

// ReadWithSize reads back a payload written by WriteWithSize.
func ReadWithSize(r ReadInstrument) ([]byte, error) {
	var sizeBuf [4]byte
	if err := r.Read(sizeBuf[:]); err != nil {
		return nil, fmt.Errorf("instrument: read size prefix: %w", err)
	}
	size := int64(getUint32LE(sizeBuf[:]))
	out := make([]byte, size)
	if size > 0 {
		if err := r.Read(out); err != nil {
			return nil, fmt.Errorf("instrument: read sized payload: %w", err)
		}
	}
	return out, nil
}

// ReadOrReference returns size bytes at the current offset, preferring a
// zero-copy reference when the instrument supports it (MemoryReader) and
// falling back to a copy otherwise (BufferedFileReader). allocated reports
// whether the returned slice is a fresh copy safe to retain independent of
// the instrument's backing store, mirroring the original's
// ReadOrReferenceData contract.
func ReadOrReference(r ReadInstrument, size int64) (data []byte, allocated bool, err error) {
	data, err = r.ReferenceData(size)
	if err != nil {
		return nil, false, err
	}
	if _, isMemory := r.(*MemoryReader); isMemory {
		return data, false, nil
	}
	return data, true, nil
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
