package delta

import (
	"errors"
	"fmt"

	"github.com/opd-ai/deltastate/pkg/instrument"
	"github.com/opd-ai/deltastate/pkg/varint"
	"github.com/sirupsen/logrus"
)

// ErrNoMoreStates is returned by AdvanceOneState when every recorded state
// has already been applied.
var ErrNoMoreStates = errors.New("delta: no more states to advance to")

// Replayer reads a stream written by Recorder and applies its states
// against a Reader, seeking forward or backward by elapsed time. Replayer
// is not safe for concurrent use; serialize all calls from one goroutine.
type Replayer struct {
	r      instrument.ReadInstrument
	reader Reader

	staticHeader   []byte
	variableHeader []byte

	stateStreamStart int64
	stateOffsets     []int64 // stateOffsets[i] is the absolute start offset of state i
	stateInfos       []stateInfo
	entireOrdinals   []int // ascending

	currentStateIndex int // -1 before any state has been applied

	cachedFrameIndex int
	cachedFrameSum   float32
	frameDeltaTimes  []float32
}

// NewReplayer constructs a Replayer, reading the user header and the
// trailing footer. A failure at any step returns a descriptive error and
// no partial Replayer; there is nothing meaningful to call on failure.
func NewReplayer(r instrument.ReadInstrument, reader Reader) (*Replayer, error) {
	rep := &Replayer{r: r, reader: reader, currentStateIndex: -1}
	if err := rep.initialize(); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"state_count":        len(rep.stateInfos),
		"entire_state_count": len(rep.entireOrdinals),
		"frame_delta_count":  len(rep.frameDeltaTimes),
	}).Debug("delta replayer initialized")
	return rep, nil
}

func (p *Replayer) initialize() error {
	staticSize, outOfRange, err := varint.ReadUnsigned(p.r, 64)
	if err != nil {
		return fmt.Errorf("delta: read static header size: %w", err)
	}
	if outOfRange {
		return fmt.Errorf("delta: static header size out of range")
	}
	if staticSize > 0 {
		data, _, err := instrument.ReadOrReference(p.r, int64(staticSize))
		if err != nil {
			return fmt.Errorf("delta: read static header: %w", err)
		}
		p.staticHeader = data
	}

	headerSize, err := readUint64LE(p.r)
	if err != nil {
		return fmt.Errorf("delta: read variable header size: %w", err)
	}
	if headerSize > 0 {
		if err := p.r.PushSubinstrument(int64(headerSize)); err != nil {
			return fmt.Errorf("delta: push header window: %w", err)
		}
		data, _, err := instrument.ReadOrReference(p.r, int64(headerSize))
		if err != nil {
			_ = p.r.PopSubinstrument()
			return fmt.Errorf("delta: read variable header: %w", err)
		}
		p.variableHeader = data
		if err := p.r.PopSubinstrument(); err != nil {
			return fmt.Errorf("delta: pop header window: %w", err)
		}
	}

	stateStreamStart, err := p.r.Offset()
	if err != nil {
		return fmt.Errorf("delta: offset after header: %w", err)
	}
	p.stateStreamStart = stateStreamStart

	total, err := p.r.TotalSize()
	if err != nil {
		return fmt.Errorf("delta: total size: %w", err)
	}
	if total < stateStreamStart+trailerSize {
		return fmt.Errorf("delta: stream too short for trailer")
	}

	if err := p.r.Seek(instrument.SeekEnd, -trailerSize); err != nil {
		return fmt.Errorf("delta: seek to trailer: %w", err)
	}
	footerSize, err := readUint64LE(p.r)
	if err != nil {
		return fmt.Errorf("delta: read footer size: %w", err)
	}
	var versionBuf [1]byte
	if err := p.r.Read(versionBuf[:]); err != nil {
		return fmt.Errorf("delta: read trailer version: %w", err)
	}
	if versionBuf[0] != trailerVersion {
		return fmt.Errorf("delta: unsupported trailer version %d", versionBuf[0])
	}
	var reserved [7]byte
	if err := p.r.Read(reserved[:]); err != nil {
		return fmt.Errorf("delta: read trailer reserved: %w", err)
	}

	trailerStart := total - trailerSize
	footerStart := trailerStart - int64(footerSize)
	if footerStart < stateStreamStart || footerStart > trailerStart {
		return fmt.Errorf("delta: footer size %d places footer out of range", footerSize)
	}

	if err := p.r.Seek(instrument.SeekStart, footerStart); err != nil {
		return fmt.Errorf("delta: seek to footer: %w", err)
	}

	if err := p.readStateInfos(); err != nil {
		return err
	}
	if err := p.readEntireOrdinals(); err != nil {
		return err
	}
	if err := p.readFrameDeltaTimes(); err != nil {
		return err
	}

	offset := stateStreamStart
	p.stateOffsets = make([]int64, len(p.stateInfos)+1)
	p.stateOffsets[0] = offset
	for i, si := range p.stateInfos {
		offset += si.byteSize
		p.stateOffsets[i+1] = offset
	}
	if offset > footerStart {
		return fmt.Errorf("delta: state payload sizes overrun footer by %d bytes", offset-footerStart)
	}

	return nil
}

func (p *Replayer) readStateInfos() error {
	count, outOfRange, err := varint.ReadUnsigned(p.r, 64)
	if err != nil {
		return fmt.Errorf("delta: read state count: %w", err)
	}
	if outOfRange {
		return fmt.Errorf("delta: state count out of range")
	}
	p.stateInfos = make([]stateInfo, 0, count)
	for i := uint64(0); i < count; i++ {
		size, outOfRange, err := varint.ReadUnsigned(p.r, 64)
		if err != nil {
			return fmt.Errorf("delta: read state %d size: %w", i, err)
		}
		if outOfRange {
			return fmt.Errorf("delta: state %d size out of range", i)
		}
		elapsed, err := readFloat32LE(p.r)
		if err != nil {
			return fmt.Errorf("delta: read state %d elapsed: %w", i, err)
		}
		p.stateInfos = append(p.stateInfos, stateInfo{elapsedSeconds: elapsed, byteSize: int64(size)})
	}
	return nil
}

func (p *Replayer) readEntireOrdinals() error {
	count, outOfRange, err := varint.ReadUnsigned(p.r, 64)
	if err != nil {
		return fmt.Errorf("delta: read entire state count: %w", err)
	}
	if outOfRange {
		return fmt.Errorf("delta: entire state count out of range")
	}
	p.entireOrdinals = make([]int, 0, count)
	for i := uint64(0); i < count; i++ {
		ord, outOfRange, err := varint.ReadUnsigned(p.r, 64)
		if err != nil {
			return fmt.Errorf("delta: read entire ordinal %d: %w", i, err)
		}
		if outOfRange {
			return fmt.Errorf("delta: entire ordinal %d out of range", i)
		}
		p.entireOrdinals = append(p.entireOrdinals, int(ord))
	}
	return nil
}

func (p *Replayer) readFrameDeltaTimes() error {
	count, outOfRange, err := varint.ReadUnsigned(p.r, 64)
	if err != nil {
		return fmt.Errorf("delta: read frame delta count: %w", err)
	}
	if outOfRange {
		return fmt.Errorf("delta: frame delta count out of range")
	}
	p.frameDeltaTimes = make([]float32, 0, count)
	for i := uint64(0); i < count; i++ {
		v, err := readFloat32LE(p.r)
		if err != nil {
			return fmt.Errorf("delta: read frame delta %d: %w", i, err)
		}
		p.frameDeltaTimes = append(p.frameDeltaTimes, v)
	}
	return nil
}

// StaticHeader returns the fixed opaque header bytes written at recording
// time.
func (p *Replayer) StaticHeader() []byte { return p.staticHeader }

// VariableHeader returns the user-defined variable-length session header,
// passed unchanged to every Reader call.
func (p *Replayer) VariableHeader() []byte { return p.variableHeader }

// StateCount returns the total number of recorded states.
func (p *Replayer) StateCount() int { return len(p.stateInfos) }

// EntireStateCount returns the number of states recorded as entire
// baselines rather than deltas.
func (p *Replayer) EntireStateCount() int { return len(p.entireOrdinals) }

// FrameDeltaCount returns the number of per-tick delta times recorded in
// the footer (zero if the recorder was flushed with WriteFrameDeltaTimes
// false).
func (p *Replayer) FrameDeltaCount() int { return len(p.frameDeltaTimes) }

// CurrentStateIndex returns the index of the most recently applied state,
// or -1 if none has been applied yet.
func (p *Replayer) CurrentStateIndex() int { return p.currentStateIndex }

func (p *Replayer) isEntireOrdinal(idx int) bool {
	for _, e := range p.entireOrdinals {
		if e == idx {
			return true
		}
	}
	return false
}

// applyState seeks to state idx's recorded offset and invokes the
// appropriate Reader callback, verifying it consumed exactly the
// recorded byte count.
func (p *Replayer) applyState(idx int) error {
	if idx < 0 || idx >= len(p.stateInfos) {
		return fmt.Errorf("delta: state index %d out of range", idx)
	}
	info := p.stateInfos[idx]
	if err := p.r.Seek(instrument.SeekStart, p.stateOffsets[idx]); err != nil {
		return fmt.Errorf("delta: seek to state %d: %w", idx, err)
	}

	before, err := p.r.Offset()
	if err != nil {
		return fmt.Errorf("delta: offset before state %d: %w", idx, err)
	}

	entire := p.isEntireOrdinal(idx)
	if entire {
		err = p.reader.ReadEntire(p.r, p.variableHeader, info.byteSize, info.elapsedSeconds)
	} else {
		err = p.reader.ReadDelta(p.r, p.variableHeader, info.byteSize, info.elapsedSeconds)
	}
	if err != nil {
		return fmt.Errorf("delta: apply state %d: %w", idx, err)
	}

	after, err := p.r.Offset()
	if err != nil {
		return fmt.Errorf("delta: offset after state %d: %w", idx, err)
	}
	if after-before != info.byteSize {
		return fmt.Errorf("delta: state %d consumed %d bytes, want %d", idx, after-before, info.byteSize)
	}

	p.currentStateIndex = idx
	return nil
}

// AdvanceOneState applies state 0 if nothing has been applied yet,
// otherwise the state immediately following the current position.
func (p *Replayer) AdvanceOneState() error {
	target := p.currentStateIndex + 1
	if target >= len(p.stateInfos) {
		return ErrNoMoreStates
	}
	return p.applyState(target)
}

// findIndexAtOrBefore returns the highest state index whose elapsed_seconds
// is at most t, or -1 if even the first state is later than t.
func (p *Replayer) findIndexAtOrBefore(t float32) int {
	found := -1
	for i, si := range p.stateInfos {
		if si.elapsedSeconds <= t {
			found = i
		} else {
			break
		}
	}
	return found
}

// greatestEntireOrdinal returns the greatest recorded entire-state ordinal
// in [minOrdinal, maxOrdinal], or -1 if none qualifies.
func (p *Replayer) greatestEntireOrdinal(maxOrdinal, minOrdinal int) int {
	best := -1
	for _, e := range p.entireOrdinals {
		if e >= minOrdinal && e <= maxOrdinal && e > best {
			best = e
		}
	}
	return best
}

// Advance skips forward (or, falling back to Seek, backward) to the state
// in effect at elapsedSeconds, reusing the current position's base entire
// state when it already covers the target rather than re-reading one.
func (p *Replayer) Advance(elapsedSeconds float32) error {
	k := p.findIndexAtOrBefore(elapsedSeconds)
	if k < 0 {
		return nil
	}
	if k == p.currentStateIndex {
		return nil
	}
	if k == p.currentStateIndex+1 {
		return p.applyState(k)
	}
	if k < p.currentStateIndex {
		return p.Seek(elapsedSeconds)
	}

	e := p.greatestEntireOrdinal(k, p.currentStateIndex)
	if e < 0 {
		for i := p.currentStateIndex + 1; i <= k; i++ {
			if err := p.applyState(i); err != nil {
				return err
			}
		}
		return nil
	}
	if err := p.applyState(e); err != nil {
		return err
	}
	for i := e + 1; i <= k; i++ {
		if err := p.applyState(i); err != nil {
			return err
		}
	}
	return nil
}

// Seek skips to the state in effect at elapsedSeconds, always finding the
// most recent entire state at or before the target regardless of the
// current position — unlike Advance, it never reuses a base loaded from a
// later point in the stream.
func (p *Replayer) Seek(elapsedSeconds float32) error {
	k := p.findIndexAtOrBefore(elapsedSeconds)
	if k < 0 {
		return nil
	}
	e := p.greatestEntireOrdinal(k, 0)
	if e < 0 {
		return fmt.Errorf("delta: no entire state at or before index %d", k)
	}
	if err := p.applyState(e); err != nil {
		return err
	}
	for i := e + 1; i <= k; i++ {
		if err := p.applyState(i); err != nil {
			return err
		}
	}
	return nil
}

// FrameIndexAt returns the index into the recorded per-tick frame deltas
// whose prefix sum first reaches t. When incremental is true, the search
// resumes from the last cached prefix sum rather than restarting from
// zero, for callers doing repeated monotonic scrubbing.
func (p *Replayer) FrameIndexAt(t float32, incremental bool) int {
	idx, sum := 0, float32(0)
	if incremental && p.cachedFrameSum <= t {
		idx, sum = p.cachedFrameIndex, p.cachedFrameSum
	}
	for idx < len(p.frameDeltaTimes) && sum+p.frameDeltaTimes[idx] <= t {
		sum += p.frameDeltaTimes[idx]
		idx++
	}
	if incremental {
		p.cachedFrameIndex, p.cachedFrameSum = idx, sum
	}
	return idx
}
