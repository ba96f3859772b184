package netstream

import "github.com/opd-ai/deltastate/pkg/instrument"

// FanoutWriter wraps a instrument.WriteInstrument so every byte a
// delta.Recorder writes through it is also broadcast to a Hub's
// spectators, live, as it is produced. All cursor semantics (offsets,
// seeks, sub-instrument windows) pass straight through to the wrapped
// instrument; FanoutWriter only observes Write calls.
type FanoutWriter struct {
	inner instrument.WriteInstrument
	hub   *Hub
}

// NewFanoutWriter wraps inner, broadcasting every Write's bytes to hub.
func NewFanoutWriter(inner instrument.WriteInstrument, hub *Hub) *FanoutWriter {
	return &FanoutWriter{inner: inner, hub: hub}
}

func (f *FanoutWriter) Offset() (int64, error) { return f.inner.Offset() }

func (f *FanoutWriter) Write(data []byte) error {
	if err := f.inner.Write(data); err != nil {
		return err
	}
	if f.hub != nil && !f.IsSizeDetermination() {
		cp := make([]byte, len(data))
		copy(cp, data)
		f.hub.Broadcast(cp)
	}
	return nil
}

func (f *FanoutWriter) Seek(mode instrument.SeekMode, offset int64) error {
	return f.inner.Seek(mode, offset)
}

func (f *FanoutWriter) Flush() error { return f.inner.Flush() }

func (f *FanoutWriter) IsSizeDetermination() bool { return f.inner.IsSizeDetermination() }

func (f *FanoutWriter) PushSubinstrument(sizeBytes int64) error {
	return f.inner.PushSubinstrument(sizeBytes)
}

func (f *FanoutWriter) PopSubinstrument() error { return f.inner.PopSubinstrument() }
