package instrument

// SizeWriter is a WriteInstrument that never touches a backing store: it
// only accumulates how many bytes a real write would have produced. Callers
// use it to size a delta or entire-state payload before allocating the real
// instrument window for it (the same dry-run-then-commit shape the
// original engine's size-determination writer served).
//
// Seeking a SizeWriter is deliberately asymmetric:
//   - SeekCurrent moves the accumulated count by the given delta, since a
//     relative seek during a dry run represents "skip forward/back N bytes
//     from here" and the count should track that.
//   - SeekStart and SeekEnd reset the accumulated count to the target
//     offset outright, since an absolute seek re-anchors the cursor rather
//     than describing a relative movement.
type SizeWriter struct {
	windowStack
	count int64
}

// NewSizeWriter creates a zeroed size-determination writer.
func NewSizeWriter() *SizeWriter {
	return &SizeWriter{}
}

func (w *SizeWriter) Offset() (int64, error) {
	return w.relative(w.count), nil
}

func (w *SizeWriter) Write(data []byte) error {
	w.count += int64(len(data))
	return nil
}

func (w *SizeWriter) Seek(mode SeekMode, offset int64) error {
	switch mode {
	case SeekCurrent:
		target := w.count + offset
		if target < 0 {
			return ErrOutOfRange
		}
		w.count = target
	case SeekStart:
		if offset < 0 {
			return ErrOutOfRange
		}
		w.count = offset
	case SeekEnd:
		// The "end" of a dry run is wherever counting has reached so far.
		target := w.count + offset
		if target < 0 {
			return ErrOutOfRange
		}
		w.count = target
	default:
		return ErrOutOfRange
	}
	return nil
}

func (w *SizeWriter) Flush() error { return nil }

func (w *SizeWriter) IsSizeDetermination() bool { return true }

func (w *SizeWriter) PushSubinstrument(sizeBytes int64) error {
	return w.push(w.count, sizeBytes)
}

func (w *SizeWriter) PopSubinstrument() error {
	win, err := w.pop()
	if err != nil {
		return err
	}
	w.count = win.start + win.size
	return nil
}

// Size returns the total byte count accumulated so far.
func (w *SizeWriter) Size() int64 { return w.count }
