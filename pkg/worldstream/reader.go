package worldstream

import (
	"fmt"

	"github.com/opd-ai/deltastate/pkg/changeset"
	"github.com/opd-ai/deltastate/pkg/ecs"
	"github.com/opd-ai/deltastate/pkg/instrument"
	"github.com/sirupsen/logrus"
)

// Reader adapts delta.Reader to reconstruct a sequence of *ecs.World
// snapshots, one per applied state, using codec to compare/compare-free
// component values on the resulting worlds.
type Reader struct {
	codec   ecs.Codec
	current *ecs.World
}

// NewReader creates a Reader that decodes worlds using codec (nil defaults
// to ecs.BytesCodec, matching ecs.NewWorld's default).
func NewReader(codec ecs.Codec) *Reader {
	return &Reader{codec: codec}
}

// World returns the most recently applied snapshot, or nil before the
// first ReadEntire.
func (r *Reader) World() *ecs.World { return r.current }

// ReadEntire implements delta.Reader by decoding a full world dump written
// by Producer.WriteEntire.
func (r *Reader) ReadEntire(reader instrument.ReadInstrument, header []byte, writeSize int64, elapsedSeconds float32) error {
	world, err := ecs.DecodeWorld(reader, r.codec)
	if err != nil {
		return fmt.Errorf("worldstream: decode entire world: %w", err)
	}
	r.current = world
	logrus.WithField("elapsed_seconds", elapsedSeconds).Debug("worldstream entire state applied")
	return nil
}

// ReadDelta implements delta.Reader by decoding a change-set and its value
// payloads written by Producer.WriteDelta, applying them against the
// reader's current world.
func (r *Reader) ReadDelta(reader instrument.ReadInstrument, header []byte, writeSize int64, elapsedSeconds float32) error {
	if r.current == nil {
		return fmt.Errorf("worldstream: ReadDelta called before any ReadEntire")
	}
	cs, err := changeset.ReadChangeSet(reader)
	if err != nil {
		return fmt.Errorf("worldstream: read change-set: %w", err)
	}
	payloads, err := changeset.ReadPayloads(reader)
	if err != nil {
		return fmt.Errorf("worldstream: read payloads: %w", err)
	}
	if err := changeset.ApplyWithPayloads(r.current, cs, changeset.NewSlicePayloadSource(payloads)); err != nil {
		return fmt.Errorf("worldstream: apply change-set: %w", err)
	}
	logrus.WithField("elapsed_seconds", elapsedSeconds).Debug("worldstream delta state applied")
	return nil
}
