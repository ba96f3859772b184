package delta

import (
	"fmt"

	"github.com/opd-ai/deltastate/pkg/instrument"
	"github.com/opd-ai/deltastate/pkg/varint"
	"github.com/sirupsen/logrus"
)

type recorderState int

const (
	recorderUninitialized recorderState = iota
	recorderArmed
	recorderRecording
	recorderFailed
	recorderClosed
)

// RecorderOptions configures a Recorder at construction.
type RecorderOptions struct {
	// StaticHeader is opaque, already-serialized bytes written once ahead
	// of the variable header with a varint size prefix.
	StaticHeader []byte
	// WriteVariableHeader, if set, writes the session's user-defined
	// variable-length header into a sized chunk the replayer can skip
	// without understanding. A nil func writes a zero-size chunk.
	WriteVariableHeader HeaderFunc
	// EntireStateWriteSecondsTick is how many seconds may elapse since the
	// last entire state before the next write forces a new one, trading
	// stream size for seek latency.
	EntireStateWriteSecondsTick float32
}

// Recorder writes a sequence of producer states to a byte stream as a mix
// of entire and delta states, closing with an index footer a Replayer can
// use to seek without replaying from the start. Recorder is not safe for
// concurrent use; serialize all calls from one goroutine.
type Recorder struct {
	w        instrument.WriteInstrument
	producer Producer

	staticHeader                []byte
	entireStateWriteSecondsTick float32

	state recorderState
	err   error

	cumulativeElapsed float32
	haveEntire        bool
	lastEntireElapsed float32

	stateInfos     []stateInfo
	entireOrdinals []uint32
	frameDeltas    []float32
}

// NewRecorder constructs a Recorder and runs its Uninitialized → Armed
// transition: it writes the fixed header, measures and writes the
// variable header via a sized chunk, and arms the recorder for Write. A
// failure at any step leaves the recorder in the Failed state and returns
// the error; no further calls are meaningful on the returned value, so
// callers should treat a non-nil error as fully unusable.
func NewRecorder(w instrument.WriteInstrument, producer Producer, opts RecorderOptions) (*Recorder, error) {
	rec := &Recorder{
		w:                           w,
		producer:                    producer,
		staticHeader:                append([]byte(nil), opts.StaticHeader...),
		entireStateWriteSecondsTick: opts.EntireStateWriteSecondsTick,
	}
	if err := rec.initialize(opts.WriteVariableHeader); err != nil {
		rec.state = recorderFailed
		rec.err = err
		return nil, err
	}
	rec.state = recorderArmed
	logrus.WithFields(logrus.Fields{
		"static_header_bytes": len(rec.staticHeader),
		"entire_tick_seconds": rec.entireStateWriteSecondsTick,
	}).Debug("delta recorder armed")
	return rec, nil
}

func (r *Recorder) initialize(writeHeader HeaderFunc) error {
	if err := varint.AppendUnsigned(r.w, uint64(len(r.staticHeader))); err != nil {
		return fmt.Errorf("delta: write static header size: %w", err)
	}
	if len(r.staticHeader) > 0 {
		if err := r.w.Write(r.staticHeader); err != nil {
			return fmt.Errorf("delta: write static header: %w", err)
		}
	}

	var headerSize int64
	if writeHeader != nil {
		sizer := instrument.NewSizeWriter()
		if err := writeHeader(sizer); err != nil {
			return fmt.Errorf("delta: measure variable header: %w", err)
		}
		headerSize = sizer.Size()
	}
	if err := writeUint64LE(r.w, uint64(headerSize)); err != nil {
		return fmt.Errorf("delta: write variable header size: %w", err)
	}
	if headerSize == 0 {
		return nil
	}
	if err := r.w.PushSubinstrument(headerSize); err != nil {
		return fmt.Errorf("delta: push header window: %w", err)
	}
	if err := writeHeader(r.w); err != nil {
		_ = r.w.PopSubinstrument()
		return fmt.Errorf("delta: write variable header: %w", err)
	}
	if err := r.w.PopSubinstrument(); err != nil {
		return fmt.Errorf("delta: pop header window: %w", err)
	}
	return nil
}

// Write registers a new state for the given time since the previous
// Write. The first call transitions Armed → Recording; every call,
// including the first, records the delta time, decides whether to invoke
// the entire or delta producer callback, and appends an index entry if the
// callback produced any bytes. A callback error fails the recorder
// permanently.
func (r *Recorder) Write(deltaTime float32) error {
	if r.state == recorderFailed {
		return fmt.Errorf("delta: recorder previously failed: %w", r.err)
	}
	if r.state == recorderClosed {
		return fmt.Errorf("delta: recorder already closed")
	}
	if deltaTime <= 0 {
		return r.fail(fmt.Errorf("delta: delta time must be strictly positive, got %v", deltaTime))
	}

	before := r.cumulativeElapsed
	r.frameDeltas = append(r.frameDeltas, deltaTime)

	// A tie (elapsed since last entire exactly equal to the tick) stays a
	// delta state: the tick is a "no later than" budget, not a trigger at
	// exact equality, matching the stream produced by a regular-interval
	// write loop where the Nth write at elapsed == N*tick should still be
	// considered on-schedule rather than overdue.
	useEntire := !r.haveEntire || (before-r.lastEntireElapsed) > r.entireStateWriteSecondsTick

	offsetBefore, err := r.w.Offset()
	if err != nil {
		return r.fail(fmt.Errorf("delta: offset before write: %w", err))
	}

	if useEntire {
		err = r.producer.WriteEntire(r.w, before)
	} else {
		err = r.producer.WriteDelta(r.w, before)
	}
	if err != nil {
		return r.fail(fmt.Errorf("delta: producer write failed: %w", err))
	}

	offsetAfter, err := r.w.Offset()
	if err != nil {
		return r.fail(fmt.Errorf("delta: offset after write: %w", err))
	}

	byteSize := offsetAfter - offsetBefore
	if byteSize > 0 {
		ordinal := uint32(len(r.stateInfos))
		r.stateInfos = append(r.stateInfos, stateInfo{elapsedSeconds: before, byteSize: byteSize})
		if useEntire {
			r.entireOrdinals = append(r.entireOrdinals, ordinal)
			r.haveEntire = true
			r.lastEntireElapsed = before
		}
	}

	r.cumulativeElapsed += deltaTime
	r.state = recorderRecording

	logrus.WithFields(logrus.Fields{
		"elapsed_seconds": before,
		"entire":          useEntire,
		"bytes":           byteSize,
	}).Debug("delta state written")
	return nil
}

// WriteNext is Write with the delta time pulled from the producer itself;
// it fails without recording anything if the producer does not also
// implement TimeSource.
func (r *Recorder) WriteNext() error {
	ts, ok := r.producer.(TimeSource)
	if !ok {
		return fmt.Errorf("delta: producer does not implement TimeSource")
	}
	return r.Write(ts.ElapsedDelta())
}

// FlushOptions configures Recorder.Flush.
type FlushOptions struct {
	// WriteFrameDeltaTimes controls whether the per-tick delta_time
	// values are serialized into the footer (Open Question 3: the
	// original controls this with an unsurfaced flag; here it is an
	// explicit caller choice). When false, the footer still carries a
	// frame_delta_count of zero so the stream layout stays fixed.
	WriteFrameDeltaTimes bool
}

// Flush writes the trailing index footer and flushes the underlying
// instrument, transitioning the recorder to Closed. It is valid to call
// Flush from Armed (producing an empty-session footer, scenario S1) or
// from Recording.
func (r *Recorder) Flush(opts FlushOptions) error {
	if r.state == recorderFailed {
		return fmt.Errorf("delta: recorder previously failed: %w", r.err)
	}
	if r.state == recorderClosed {
		return fmt.Errorf("delta: recorder already closed")
	}

	offsetBefore, err := r.w.Offset()
	if err != nil {
		return r.fail(fmt.Errorf("delta: offset before footer: %w", err))
	}

	if err := varint.AppendUnsigned(r.w, uint64(len(r.stateInfos))); err != nil {
		return r.fail(fmt.Errorf("delta: write state count: %w", err))
	}
	for _, si := range r.stateInfos {
		if err := varint.AppendUnsigned(r.w, uint64(si.byteSize)); err != nil {
			return r.fail(fmt.Errorf("delta: write state size: %w", err))
		}
		if err := writeFloat32LE(r.w, si.elapsedSeconds); err != nil {
			return r.fail(fmt.Errorf("delta: write state elapsed: %w", err))
		}
	}

	if err := varint.AppendUnsigned(r.w, uint64(len(r.entireOrdinals))); err != nil {
		return r.fail(fmt.Errorf("delta: write entire count: %w", err))
	}
	for _, ord := range r.entireOrdinals {
		if err := varint.AppendUnsigned(r.w, uint64(ord)); err != nil {
			return r.fail(fmt.Errorf("delta: write entire ordinal: %w", err))
		}
	}

	frameCount := 0
	if opts.WriteFrameDeltaTimes {
		frameCount = len(r.frameDeltas)
	}
	if err := varint.AppendUnsigned(r.w, uint64(frameCount)); err != nil {
		return r.fail(fmt.Errorf("delta: write frame delta count: %w", err))
	}
	if opts.WriteFrameDeltaTimes {
		for _, ft := range r.frameDeltas {
			if err := writeFloat32LE(r.w, ft); err != nil {
				return r.fail(fmt.Errorf("delta: write frame delta: %w", err))
			}
		}
	}

	offsetAfter, err := r.w.Offset()
	if err != nil {
		return r.fail(fmt.Errorf("delta: offset after footer: %w", err))
	}
	footerSize := uint64(offsetAfter - offsetBefore)

	if err := writeUint64LE(r.w, footerSize); err != nil {
		return r.fail(fmt.Errorf("delta: write footer size: %w", err))
	}
	if err := r.w.Write([]byte{trailerVersion}); err != nil {
		return r.fail(fmt.Errorf("delta: write trailer version: %w", err))
	}
	if err := r.w.Write(make([]byte, 7)); err != nil {
		return r.fail(fmt.Errorf("delta: write trailer reserved: %w", err))
	}

	if err := r.w.Flush(); err != nil {
		return r.fail(fmt.Errorf("delta: flush instrument: %w", err))
	}

	r.state = recorderClosed
	logrus.WithFields(logrus.Fields{
		"state_count":        len(r.stateInfos),
		"entire_state_count": len(r.entireOrdinals),
		"footer_size":        footerSize,
	}).Debug("delta recorder closed")
	return nil
}

func (r *Recorder) fail(err error) error {
	r.state = recorderFailed
	r.err = err
	logrus.WithError(err).Warn("delta recorder failed")
	return err
}
