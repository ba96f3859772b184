package ecs

import (
	"fmt"

	"github.com/opd-ai/deltastate/pkg/instrument"
	"github.com/opd-ai/deltastate/pkg/varint"
)

// EncodeWorld writes a self-contained snapshot of w: its archetype
// registry's structural signatures, every live entity's storage coordinate
// and unique-component values, and every shared/global component value.
// This is what a delta.Producer's WriteEntire uses for the baseline state a
// Replayer can apply without any prior snapshot.
func EncodeWorld(w instrument.WriteInstrument, world *World) error {
	if err := encodeRegistry(w, world.registry); err != nil {
		return fmt.Errorf("ecs: encode registry: %w", err)
	}

	var entityErr error
	entities := 0
	world.ForEachEntity(func(Entity, EntityInfo) bool { entities++; return true })
	if err := varint.AppendUnsigned(w, uint64(entities)); err != nil {
		return fmt.Errorf("ecs: write entity count: %w", err)
	}
	world.ForEachEntity(func(entity Entity, info EntityInfo) bool {
		if entityErr = encodeEntity(w, world, entity, info); entityErr != nil {
			return false
		}
		return true
	})
	if entityErr != nil {
		return fmt.Errorf("ecs: encode entity: %w", entityErr)
	}

	if err := encodeSharedComponents(w, world); err != nil {
		return fmt.Errorf("ecs: encode shared components: %w", err)
	}
	if err := encodeGlobalComponents(w, world); err != nil {
		return fmt.Errorf("ecs: encode global components: %w", err)
	}
	return nil
}

func encodeRegistry(w instrument.WriteInstrument, reg *ArchetypeRegistry) error {
	if err := varint.AppendUnsigned(w, uint64(len(reg.archetypes))); err != nil {
		return err
	}
	for _, arch := range reg.archetypes {
		if err := writeIDList(w, arch.UniqueSignature); err != nil {
			return err
		}
		if err := writeIDList(w, arch.SharedSignature); err != nil {
			return err
		}
		if err := varint.AppendUnsigned(w, uint64(len(arch.Bases))); err != nil {
			return err
		}
		for _, base := range arch.Bases {
			if err := varint.AppendUnsigned(w, uint64(len(base.SharedInstances))); err != nil {
				return err
			}
			for _, inst := range base.SharedInstances {
				if err := varint.AppendUnsigned(w, uint64(inst)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeIDList(w instrument.WriteInstrument, ids []ComponentID) error {
	if err := varint.AppendUnsigned(w, uint64(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := varint.AppendUnsigned(w, uint64(id)); err != nil {
			return err
		}
	}
	return nil
}

func encodeEntity(w instrument.WriteInstrument, world *World, entity Entity, info EntityInfo) error {
	if err := varint.AppendUnsigned(w, uint64(entity.Index)); err != nil {
		return err
	}
	if err := varint.AppendUnsigned(w, uint64(entity.Generation)); err != nil {
		return err
	}
	if err := varint.AppendUnsigned(w, uint64(info.ArchetypeIndex)); err != nil {
		return err
	}
	if err := varint.AppendUnsigned(w, uint64(info.BaseArchetypeIndex)); err != nil {
		return err
	}

	sig := world.EntitySignature(entity)
	if err := varint.AppendUnsigned(w, uint64(len(sig))); err != nil {
		return err
	}
	for _, id := range sig {
		data, _ := world.TryGetComponent(entity, id)
		if err := varint.AppendUnsigned(w, uint64(id)); err != nil {
			return err
		}
		if err := instrument.WriteWithSize(w, data); err != nil {
			return err
		}
	}
	return nil
}

func encodeSharedComponents(w instrument.WriteInstrument, world *World) error {
	var ids []ComponentID
	world.ForEachSharedComponent(func(id ComponentID) bool { ids = append(ids, id); return true })
	if err := varint.AppendUnsigned(w, uint64(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := varint.AppendUnsigned(w, uint64(id)); err != nil {
			return err
		}
		var instances []SharedInstanceID
		world.ForEachSharedInstance(id, func(inst SharedInstanceID) bool {
			instances = append(instances, inst)
			return true
		})
		if err := varint.AppendUnsigned(w, uint64(len(instances))); err != nil {
			return err
		}
		for _, inst := range instances {
			data, _ := world.SharedData(id, inst)
			if err := varint.AppendUnsigned(w, uint64(inst)); err != nil {
				return err
			}
			if err := instrument.WriteWithSize(w, data); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeGlobalComponents(w instrument.WriteInstrument, world *World) error {
	var ids []ComponentID
	world.ForEachGlobalComponent(func(id ComponentID) bool { ids = append(ids, id); return true })
	if err := varint.AppendUnsigned(w, uint64(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		data, _ := world.GlobalComponent(id)
		if err := varint.AppendUnsigned(w, uint64(id)); err != nil {
			return err
		}
		if err := instrument.WriteWithSize(w, data); err != nil {
			return err
		}
	}
	return nil
}

// DecodeWorld reads a snapshot written by EncodeWorld into a fresh World
// built over codec, reconstructing archetype identity, entity placement,
// and every component value.
func DecodeWorld(r instrument.ReadInstrument, codec Codec) (*World, error) {
	registry := NewArchetypeRegistry()
	if err := decodeRegistry(r, registry); err != nil {
		return nil, fmt.Errorf("ecs: decode registry: %w", err)
	}
	world := NewWorldWithRegistry(registry, codec)

	entityCount, _, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return nil, fmt.Errorf("ecs: read entity count: %w", err)
	}
	for i := uint64(0); i < entityCount; i++ {
		if err := decodeEntity(r, world); err != nil {
			return nil, fmt.Errorf("ecs: decode entity %d: %w", i, err)
		}
	}

	if err := decodeSharedComponents(r, world); err != nil {
		return nil, fmt.Errorf("ecs: decode shared components: %w", err)
	}
	if err := decodeGlobalComponents(r, world); err != nil {
		return nil, fmt.Errorf("ecs: decode global components: %w", err)
	}
	return world, nil
}

func decodeRegistry(r instrument.ReadInstrument, reg *ArchetypeRegistry) error {
	archCount, _, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return err
	}
	for i := uint64(0); i < archCount; i++ {
		unique, err := readIDList(r)
		if err != nil {
			return err
		}
		shared, err := readIDList(r)
		if err != nil {
			return err
		}
		archIdx := reg.EnsureArchetype(unique, shared)

		baseCount, _, err := varint.ReadUnsigned(r, 64)
		if err != nil {
			return err
		}
		for b := uint64(0); b < baseCount; b++ {
			instCount, _, err := varint.ReadUnsigned(r, 64)
			if err != nil {
				return err
			}
			instances := make([]SharedInstanceID, instCount)
			for j := range instances {
				v, _, err := varint.ReadUnsigned(r, 64)
				if err != nil {
					return err
				}
				instances[j] = SharedInstanceID(v)
			}
			if _, err := reg.EnsureBaseArchetype(archIdx, instances); err != nil {
				return err
			}
		}
	}
	return nil
}

func readIDList(r instrument.ReadInstrument) ([]ComponentID, error) {
	count, _, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return nil, err
	}
	ids := make([]ComponentID, count)
	for i := range ids {
		v, _, err := varint.ReadUnsigned(r, 64)
		if err != nil {
			return nil, err
		}
		ids[i] = ComponentID(v)
	}
	return ids, nil
}

func decodeEntity(r instrument.ReadInstrument, world *World) error {
	index, _, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return err
	}
	generation, _, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return err
	}
	archIdx, _, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return err
	}
	baseIdx, _, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return err
	}

	entity, err := world.SpawnAt(uint32(index), uint32(generation), EntityInfo{
		ArchetypeIndex:     int32(archIdx),
		BaseArchetypeIndex: int32(baseIdx),
	})
	if err != nil {
		return err
	}

	compCount, _, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return err
	}
	for i := uint64(0); i < compCount; i++ {
		id, _, err := varint.ReadUnsigned(r, 64)
		if err != nil {
			return err
		}
		data, err := instrument.ReadWithSize(r)
		if err != nil {
			return err
		}
		if err := world.SetUniqueComponent(entity, ComponentID(id), data); err != nil {
			return err
		}
	}
	return nil
}

func decodeSharedComponents(r instrument.ReadInstrument, world *World) error {
	compCount, _, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return err
	}
	for i := uint64(0); i < compCount; i++ {
		id, _, err := varint.ReadUnsigned(r, 64)
		if err != nil {
			return err
		}
		instCount, _, err := varint.ReadUnsigned(r, 64)
		if err != nil {
			return err
		}
		for j := uint64(0); j < instCount; j++ {
			inst, _, err := varint.ReadUnsigned(r, 64)
			if err != nil {
				return err
			}
			data, err := instrument.ReadWithSize(r)
			if err != nil {
				return err
			}
			if err := world.SetSharedInstance(ComponentID(id), SharedInstanceID(inst), data); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeGlobalComponents(r instrument.ReadInstrument, world *World) error {
	compCount, _, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return err
	}
	for i := uint64(0); i < compCount; i++ {
		id, _, err := varint.ReadUnsigned(r, 64)
		if err != nil {
			return err
		}
		data, err := instrument.ReadWithSize(r)
		if err != nil {
			return err
		}
		if err := world.SetGlobalComponent(ComponentID(id), data); err != nil {
			return err
		}
	}
	return nil
}
