// Package worldstream bridges an ecs.World simulation to delta.Producer and
// delta.Reader, so a Recorder/Replayer session can carry whole ECS worlds
// instead of an opaque byte producer the caller has to hand-roll. Entire
// states are full ecs.EncodeWorld dumps; delta states are a
// changeset.Compute diff against the previously written/applied world, plus
// its value payloads.
package worldstream

import (
	"fmt"

	"github.com/opd-ai/deltastate/pkg/changeset"
	"github.com/opd-ai/deltastate/pkg/ecs"
	"github.com/opd-ai/deltastate/pkg/instrument"
	"github.com/sirupsen/logrus"
)

// Producer adapts a live *ecs.World to delta.Producer. Advance must be
// called once per simulation tick, before Recorder.Write, to hand the
// producer the world state that tick should capture; WriteEntire/WriteDelta
// then diff or dump whatever Advance last supplied against the producer's
// remembered previous snapshot.
type Producer struct {
	current *ecs.World
	prev    *ecs.World
}

// NewProducer creates a Producer with no prior snapshot; the first Write
// after construction is always forced to an entire state regardless of the
// recorder's tick policy, since there is nothing to diff against yet.
func NewProducer() *Producer {
	return &Producer{}
}

// Advance hands the producer the world snapshot the next Write call should
// capture. Callers typically pass world.Clone() so later mutation of the
// live world doesn't retroactively change a state already recorded.
func (p *Producer) Advance(world *ecs.World) {
	p.current = world
}

// WriteEntire implements delta.Producer by dumping the current snapshot in
// full.
func (p *Producer) WriteEntire(w instrument.WriteInstrument, elapsedSeconds float32) error {
	if p.current == nil {
		return fmt.Errorf("worldstream: WriteEntire called before Advance")
	}
	if err := ecs.EncodeWorld(w, p.current); err != nil {
		return fmt.Errorf("worldstream: encode entire world: %w", err)
	}
	p.prev = p.current
	logrus.WithField("elapsed_seconds", elapsedSeconds).Debug("worldstream entire state written")
	return nil
}

// WriteDelta implements delta.Producer by writing the change-set between
// the last captured snapshot and the current one, falling back to an
// entire dump when there is no previous snapshot to diff against (only
// possible if the recorder calls WriteDelta before any WriteEntire, which
// the recorder's own policy never does on its first Write).
func (p *Producer) WriteDelta(w instrument.WriteInstrument, elapsedSeconds float32) error {
	if p.current == nil {
		return fmt.Errorf("worldstream: WriteDelta called before Advance")
	}
	if p.prev == nil {
		return p.WriteEntire(w, elapsedSeconds)
	}

	cs, err := changeset.Compute(p.prev, p.current)
	if err != nil {
		return fmt.Errorf("worldstream: compute change-set: %w", err)
	}
	if err := changeset.WriteChangeSet(w, cs); err != nil {
		return fmt.Errorf("worldstream: write change-set: %w", err)
	}
	payloads, err := changeset.CollectPayloads(cs, p.current)
	if err != nil {
		return fmt.Errorf("worldstream: collect payloads: %w", err)
	}
	if err := changeset.WritePayloads(w, payloads); err != nil {
		return fmt.Errorf("worldstream: write payloads: %w", err)
	}

	p.prev = p.current
	logrus.WithFields(logrus.Fields{
		"elapsed_seconds": elapsedSeconds,
		"additions":       len(cs.EntityInfoAdditions),
		"destroys":        len(cs.EntityInfoDestroys),
	}).Debug("worldstream delta state written")
	return nil
}
