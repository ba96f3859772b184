// Command deltastate-demo records a small synthetic ECS simulation to a
// delta-state stream and replays it back, exercising the recorder/replayer,
// worldstream producer/reader, and slot store end to end.
package main

import (
	"flag"
	"fmt"
	"math"

	"github.com/opd-ai/deltastate/pkg/delta"
	"github.com/opd-ai/deltastate/pkg/ecs"
	"github.com/opd-ai/deltastate/pkg/instrument"
	"github.com/opd-ai/deltastate/pkg/rng"
	"github.com/opd-ai/deltastate/pkg/store"
	"github.com/opd-ai/deltastate/pkg/worldstream"
	"github.com/sirupsen/logrus"
)

var (
	streamPath = flag.String("stream", "demo.deltastate", "path to the delta-state stream file")
	dbPath     = flag.String("db", "demo-slots.db", "path to the slot ledger database")
	ticks      = flag.Int("ticks", 50, "number of simulation ticks to record")
	tick       = flag.Float64("entire-tick", 2.0, "EntireStateWriteSecondsTick, in seconds")
	seed       = flag.Int64("seed", 1, "seed for the demo world's initial entity layout")
	logLevel   = flag.String("log-level", "info", "log level (debug, info, warn, error)")
)

const (
	componentPosition ecs.ComponentID = 1
	componentHealth   ecs.ComponentID = 2
)

func main() {
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid log level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if err := record(); err != nil {
		logrus.WithError(err).Fatal("recording failed")
	}
	if err := replay(); err != nil {
		logrus.WithError(err).Fatal("replay failed")
	}
	if err := saveSlot(); err != nil {
		logrus.WithError(err).Fatal("slot save failed")
	}

	fmt.Println("deltastate-demo: recorded, replayed, and saved successfully")
}

// record runs a synthetic simulation for *ticks frames, advancing entity
// positions each tick, and writes the resulting delta-state stream to
// *streamPath.
func record() error {
	fw, err := instrument.NewBufferedFileWriter(*streamPath)
	if err != nil {
		return fmt.Errorf("open stream for writing: %w", err)
	}
	defer fw.Close()

	producer := worldstream.NewProducer()
	rec, err := delta.NewRecorder(fw, producer, delta.RecorderOptions{
		EntireStateWriteSecondsTick: float32(*tick),
	})
	if err != nil {
		return fmt.Errorf("construct recorder: %w", err)
	}

	generator := rng.NewRNG(*seed)
	world := ecs.NewWorld(nil)
	archIdx := world.EnsureArchetype([]ecs.ComponentID{componentPosition, componentHealth}, nil)
	baseIdx, err := world.EnsureBaseArchetype(archIdx, nil)
	if err != nil {
		return fmt.Errorf("ensure base archetype: %w", err)
	}
	entities := make([]ecs.Entity, 0, 4)
	for i := 0; i < 4; i++ {
		e, err := world.SpawnAt(uint32(i), 1, ecs.EntityInfo{ArchetypeIndex: archIdx, BaseArchetypeIndex: baseIdx})
		if err != nil {
			return fmt.Errorf("spawn entity %d: %w", i, err)
		}
		startPos := float32(generator.Float64() * 100)
		if err := world.SetUniqueComponent(e, componentPosition, encodeFloat(startPos)); err != nil {
			return err
		}
		if err := world.SetUniqueComponent(e, componentHealth, encodeFloat(100)); err != nil {
			return err
		}
		entities = append(entities, e)
	}

	const dt float32 = 0.1
	for tickIdx := 0; tickIdx < *ticks; tickIdx++ {
		for _, e := range entities {
			pos, _ := world.TryGetComponent(e, componentPosition)
			if err := world.SetUniqueComponent(e, componentPosition, encodeFloat(decodeFloat(pos)+dt)); err != nil {
				return fmt.Errorf("advance entity position: %w", err)
			}
		}
		producer.Advance(world.Clone())
		if err := rec.Write(dt); err != nil {
			return fmt.Errorf("write tick %d: %w", tickIdx, err)
		}
	}

	if err := rec.Flush(delta.FlushOptions{WriteFrameDeltaTimes: true}); err != nil {
		return fmt.Errorf("flush recorder: %w", err)
	}
	logrus.WithField("ticks", *ticks).Info("recording complete")
	return nil
}

// replay reads the stream back and logs the final world's entity count as a
// sanity check that every state applied cleanly.
func replay() error {
	fr, err := instrument.NewBufferedFileReader(*streamPath)
	if err != nil {
		return fmt.Errorf("open stream for reading: %w", err)
	}
	defer fr.Close()

	reader := worldstream.NewReader(nil)
	player, err := delta.NewReplayer(fr, reader)
	if err != nil {
		return fmt.Errorf("construct replayer: %w", err)
	}

	for player.CurrentStateIndex() < player.StateCount()-1 {
		if err := player.AdvanceOneState(); err != nil {
			return fmt.Errorf("advance state: %w", err)
		}
	}

	count := 0
	if world := reader.World(); world != nil {
		world.ForEachEntity(func(ecs.Entity, ecs.EntityInfo) bool { count++; return true })
	}
	logrus.WithFields(logrus.Fields{
		"states":        player.StateCount(),
		"entire_states": player.EntireStateCount(),
		"entities":      count,
	}).Info("replay complete")
	return nil
}

// saveSlot records the stream file against slot 1 of a sqlite-backed slot
// ledger, demonstrating pkg/store's save/load concern.
func saveSlot() error {
	s, err := store.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open slot store: %w", err)
	}
	defer s.Close()

	meta, err := s.SaveSlot(1, "demo run", *streamPath)
	if err != nil {
		return fmt.Errorf("save slot: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"slot":       meta.ID,
		"size_bytes": meta.SizeBytes,
	}).Info("slot saved")
	return nil
}

func encodeFloat(v float32) []byte {
	bits := math.Float32bits(v)
	return []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
}

func decodeFloat(b []byte) float32 {
	if len(b) < 4 {
		return 0
	}
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}
