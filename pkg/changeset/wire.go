package changeset

import (
	"fmt"

	"github.com/opd-ai/deltastate/pkg/ecs"
	"github.com/opd-ai/deltastate/pkg/instrument"
	"github.com/opd-ai/deltastate/pkg/varint"
)

// WriteChangeSet serializes cs's structural fields (entity identity and
// component membership edits, without value payloads) to w, in the order
// destroys, additions, info changes, unique, shared, global. Value payloads
// for add/update edits follow separately via WritePayloads, in
// CollectPayloads' emission order (global, then shared, then unique), which
// differs from the order of the edit groups written here.
func WriteChangeSet(w instrument.WriteInstrument, cs *ChangeSet) error {
	if err := varint.AppendUnsigned(w, uint64(len(cs.EntityInfoDestroys))); err != nil {
		return fmt.Errorf("changeset: write destroy count: %w", err)
	}
	for _, e := range cs.EntityInfoDestroys {
		if err := writeEntity(w, e); err != nil {
			return err
		}
	}

	if err := varint.AppendUnsigned(w, uint64(len(cs.EntityInfoAdditions))); err != nil {
		return fmt.Errorf("changeset: write addition count: %w", err)
	}
	for _, a := range cs.EntityInfoAdditions {
		if err := writeEntity(w, a.Entity); err != nil {
			return err
		}
		if err := writeEntityInfo(w, a.Info); err != nil {
			return err
		}
	}

	if err := varint.AppendUnsigned(w, uint64(len(cs.EntityInfoChanges))); err != nil {
		return fmt.Errorf("changeset: write change count: %w", err)
	}
	for _, c := range cs.EntityInfoChanges {
		if err := writeEntity(w, c.Entity); err != nil {
			return err
		}
		if err := writeEntityInfo(w, c.Info); err != nil {
			return err
		}
	}

	if err := varint.AppendUnsigned(w, uint64(len(cs.EntityUniqueComponentChanges))); err != nil {
		return fmt.Errorf("changeset: write unique group count: %w", err)
	}
	for _, euc := range cs.EntityUniqueComponentChanges {
		if err := writeEntity(w, euc.Entity); err != nil {
			return err
		}
		if err := varint.AppendUnsigned(w, uint64(len(euc.Edits))); err != nil {
			return err
		}
		for _, edit := range euc.Edits {
			if err := varint.AppendUnsigned(w, uint64(edit.Component)); err != nil {
				return err
			}
			if err := w.Write([]byte{byte(edit.Kind)}); err != nil {
				return err
			}
		}
	}

	if err := varint.AppendUnsigned(w, uint64(len(cs.SharedComponentChanges))); err != nil {
		return fmt.Errorf("changeset: write shared group count: %w", err)
	}
	for _, sc := range cs.SharedComponentChanges {
		if err := varint.AppendUnsigned(w, uint64(sc.Component)); err != nil {
			return err
		}
		if err := varint.AppendUnsigned(w, uint64(len(sc.Edits))); err != nil {
			return err
		}
		for _, edit := range sc.Edits {
			if err := varint.AppendUnsigned(w, uint64(edit.Instance)); err != nil {
				return err
			}
			if err := w.Write([]byte{byte(edit.Kind)}); err != nil {
				return err
			}
		}
	}

	if err := varint.AppendUnsigned(w, uint64(len(cs.GlobalComponentChanges))); err != nil {
		return fmt.Errorf("changeset: write global count: %w", err)
	}
	for _, gc := range cs.GlobalComponentChanges {
		if err := varint.AppendUnsigned(w, uint64(gc.Component)); err != nil {
			return err
		}
		if err := w.Write([]byte{byte(gc.Kind)}); err != nil {
			return err
		}
	}

	return nil
}

// ReadChangeSet deserializes a ChangeSet written by WriteChangeSet. Value
// payloads for its add/update edits must be read separately via
// ReadPayloads; they come in global, shared, unique order, not in the
// unique, shared, global order this function lays out edit groups.
func ReadChangeSet(r instrument.ReadInstrument) (*ChangeSet, error) {
	cs := &ChangeSet{}

	destroyCount, err := readCount(r)
	if err != nil {
		return nil, fmt.Errorf("changeset: read destroy count: %w", err)
	}
	for i := uint64(0); i < destroyCount; i++ {
		e, err := readEntity(r)
		if err != nil {
			return nil, err
		}
		cs.EntityInfoDestroys = append(cs.EntityInfoDestroys, e)
	}

	additionCount, err := readCount(r)
	if err != nil {
		return nil, fmt.Errorf("changeset: read addition count: %w", err)
	}
	for i := uint64(0); i < additionCount; i++ {
		e, err := readEntity(r)
		if err != nil {
			return nil, err
		}
		info, err := readEntityInfo(r)
		if err != nil {
			return nil, err
		}
		cs.EntityInfoAdditions = append(cs.EntityInfoAdditions, EntityAddition{Entity: e, Info: info})
	}

	changeCount, err := readCount(r)
	if err != nil {
		return nil, fmt.Errorf("changeset: read change count: %w", err)
	}
	for i := uint64(0); i < changeCount; i++ {
		e, err := readEntity(r)
		if err != nil {
			return nil, err
		}
		info, err := readEntityInfo(r)
		if err != nil {
			return nil, err
		}
		cs.EntityInfoChanges = append(cs.EntityInfoChanges, EntityInfoChange{Entity: e, Info: info})
	}

	uniqueGroups, err := readCount(r)
	if err != nil {
		return nil, fmt.Errorf("changeset: read unique group count: %w", err)
	}
	for i := uint64(0); i < uniqueGroups; i++ {
		e, err := readEntity(r)
		if err != nil {
			return nil, err
		}
		editCount, err := readCount(r)
		if err != nil {
			return nil, err
		}
		edits := make([]ComponentEdit, editCount)
		for j := range edits {
			id, err := readCount(r)
			if err != nil {
				return nil, err
			}
			kind, err := readKind(r)
			if err != nil {
				return nil, err
			}
			edits[j] = ComponentEdit{Component: ecs.ComponentID(id), Kind: kind}
		}
		cs.EntityUniqueComponentChanges = append(cs.EntityUniqueComponentChanges, EntityUniqueChanges{Entity: e, Edits: edits})
	}

	sharedGroups, err := readCount(r)
	if err != nil {
		return nil, fmt.Errorf("changeset: read shared group count: %w", err)
	}
	for i := uint64(0); i < sharedGroups; i++ {
		compID, err := readCount(r)
		if err != nil {
			return nil, err
		}
		editCount, err := readCount(r)
		if err != nil {
			return nil, err
		}
		edits := make([]SharedInstanceEdit, editCount)
		for j := range edits {
			inst, err := readCount(r)
			if err != nil {
				return nil, err
			}
			kind, err := readKind(r)
			if err != nil {
				return nil, err
			}
			edits[j] = SharedInstanceEdit{Instance: ecs.SharedInstanceID(inst), Kind: kind}
		}
		cs.SharedComponentChanges = append(cs.SharedComponentChanges, SharedComponentChanges{Component: ecs.ComponentID(compID), Edits: edits})
	}

	globalCount, err := readCount(r)
	if err != nil {
		return nil, fmt.Errorf("changeset: read global count: %w", err)
	}
	for i := uint64(0); i < globalCount; i++ {
		compID, err := readCount(r)
		if err != nil {
			return nil, err
		}
		kind, err := readKind(r)
		if err != nil {
			return nil, err
		}
		cs.GlobalComponentChanges = append(cs.GlobalComponentChanges, GlobalComponentChange{Component: ecs.ComponentID(compID), Kind: kind})
	}

	return cs, nil
}

func writeEntity(w instrument.WriteInstrument, e ecs.Entity) error {
	if err := varint.AppendUnsigned(w, uint64(e.Index)); err != nil {
		return err
	}
	return varint.AppendUnsigned(w, uint64(e.Generation))
}

func readEntity(r instrument.ReadInstrument) (ecs.Entity, error) {
	idx, err := readCount(r)
	if err != nil {
		return ecs.Entity{}, err
	}
	gen, err := readCount(r)
	if err != nil {
		return ecs.Entity{}, err
	}
	return ecs.Entity{Index: uint32(idx), Generation: uint32(gen)}, nil
}

func writeEntityInfo(w instrument.WriteInstrument, info ecs.EntityInfo) error {
	if err := varint.AppendUnsigned(w, uint64(info.ArchetypeIndex)); err != nil {
		return err
	}
	return varint.AppendUnsigned(w, uint64(info.BaseArchetypeIndex))
}

func readEntityInfo(r instrument.ReadInstrument) (ecs.EntityInfo, error) {
	archIdx, err := readCount(r)
	if err != nil {
		return ecs.EntityInfo{}, err
	}
	baseIdx, err := readCount(r)
	if err != nil {
		return ecs.EntityInfo{}, err
	}
	return ecs.EntityInfo{ArchetypeIndex: int32(archIdx), BaseArchetypeIndex: int32(baseIdx)}, nil
}

func readCount(r instrument.ReadInstrument) (uint64, error) {
	v, outOfRange, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return 0, err
	}
	if outOfRange {
		return 0, fmt.Errorf("changeset: count exceeds 64-bit range")
	}
	return v, nil
}

func readKind(r instrument.ReadInstrument) (EditKind, error) {
	var buf [1]byte
	if err := r.Read(buf[:]); err != nil {
		return 0, err
	}
	return EditKind(buf[0]), nil
}
