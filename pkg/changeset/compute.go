package changeset

import (
	"sort"

	"github.com/opd-ai/deltastate/pkg/ecs"
	"github.com/sirupsen/logrus"
)

// Compute cross-references prev (P) and next (N) and emits their
// structural diff. Named shared instances are unsupported: if either
// snapshot carries one, Compute returns ecs.ErrNamedSharedInstance rather
// than silently ignoring it.
func Compute(prev, next *ecs.World) (*ChangeSet, error) {
	if prev.NamedSharedInstanceCount() > 0 || next.NamedSharedInstanceCount() > 0 {
		return nil, ecs.ErrNamedSharedInstance
	}

	cs := &ChangeSet{}
	computeEntityIdentity(prev, next, cs)
	computeUniqueComponents(prev, next, cs)
	computeSharedComponents(prev, next, cs)
	computeGlobalComponents(prev, next, cs)

	logrus.WithFields(logrus.Fields{
		"additions": len(cs.EntityInfoAdditions),
		"destroys":  len(cs.EntityInfoDestroys),
		"moves":     len(cs.EntityInfoChanges),
	}).Debug("change-set computed")

	return cs, nil
}

// computeEntityIdentity walks live entities of P first, classifying
// destroys/info-changes/generation-flips, then sweeps N's live entities for
// indices P never had. The sweep queries `prev`, not `next` again — Open
// Question 1 names this exact bug in the source this is modeled on, where
// the addition sweep re-queried the new pool instead of the previous one.
func computeEntityIdentity(prev, next *ecs.World, cs *ChangeSet) {
	prev.ForEachEntity(func(entity ecs.Entity, info ecs.EntityInfo) bool {
		nEntity, nInfo, ok := next.TryGetEntityInfo(entity.Index)
		switch {
		case !ok:
			cs.EntityInfoDestroys = append(cs.EntityInfoDestroys, entity)
		case nEntity.Generation == entity.Generation:
			if !info.Equal(nInfo) {
				cs.EntityInfoChanges = append(cs.EntityInfoChanges, EntityInfoChange{Entity: nEntity, Info: nInfo})
			}
		default:
			cs.EntityInfoDestroys = append(cs.EntityInfoDestroys, entity)
			cs.EntityInfoAdditions = append(cs.EntityInfoAdditions, EntityAddition{Entity: nEntity, Info: nInfo})
		}
		return true
	})

	next.ForEachEntity(func(entity ecs.Entity, info ecs.EntityInfo) bool {
		if _, _, ok := prev.TryGetEntityInfo(entity.Index); ok {
			return true // already classified above
		}
		cs.EntityInfoAdditions = append(cs.EntityInfoAdditions, EntityAddition{Entity: entity, Info: info})
		return true
	})
}

// computeUniqueComponents diffs per-entity unique-component membership for
// every entity live in both snapshots under the same generation, merging
// the two sorted signatures by ascending component ID so add/remove/update
// edits for one entity come out in a single deterministic order.
func computeUniqueComponents(prev, next *ecs.World, cs *ChangeSet) {
	prev.ForEachEntity(func(entity ecs.Entity, _ ecs.EntityInfo) bool {
		nEntity, _, ok := next.TryGetEntityInfo(entity.Index)
		if !ok || nEntity.Generation != entity.Generation {
			return true
		}

		sp := prev.EntitySignature(entity)
		sn := next.EntitySignature(nEntity)
		var edits []ComponentEdit

		for _, id := range unionSorted(sp, sn) {
			_, inSp := prev.TryGetComponent(entity, id)
			_, inSn := next.TryGetComponent(nEntity, id)
			switch {
			case inSp && inSn:
				a, _ := prev.TryGetComponent(entity, id)
				b, _ := next.TryGetComponent(nEntity, id)
				if !prev.Codec().Equal(id, a, b) {
					edits = append(edits, ComponentEdit{Component: id, Kind: EditUpdate})
				}
			case inSp && !inSn:
				edits = append(edits, ComponentEdit{Component: id, Kind: EditRemove})
			case !inSp && inSn:
				edits = append(edits, ComponentEdit{Component: id, Kind: EditAdd})
			}
		}

		if len(edits) > 0 {
			cs.EntityUniqueComponentChanges = append(cs.EntityUniqueComponentChanges, EntityUniqueChanges{
				Entity: nEntity,
				Edits:  edits,
			})
		}
		return true
	})
}

// computeSharedComponents diffs shared-instance membership per component.
// Component *types* are assumed stable between snapshots (registered once
// via World.RegisterSharedComponent, not created per-tick), so the union of
// both worlds' registered shared components is walked rather than only
// P's, covering a component introduced only in N without missing it.
func computeSharedComponents(prev, next *ecs.World, cs *ChangeSet) {
	for _, id := range unionSharedComponents(prev, next) {
		instances := unionSortedInstances(instancesOf(prev, id), instancesOf(next, id))
		var edits []SharedInstanceEdit
		for _, inst := range instances {
			pData, inP := prev.SharedData(id, inst)
			nData, inN := next.SharedData(id, inst)
			switch {
			case inP && inN:
				if !prev.Codec().Equal(id, pData, nData) {
					edits = append(edits, SharedInstanceEdit{Instance: inst, Kind: EditUpdate})
				}
			case inP && !inN:
				edits = append(edits, SharedInstanceEdit{Instance: inst, Kind: EditRemove})
			case !inP && inN:
				edits = append(edits, SharedInstanceEdit{Instance: inst, Kind: EditAdd})
			}
		}
		if len(edits) > 0 {
			cs.SharedComponentChanges = append(cs.SharedComponentChanges, SharedComponentChanges{Component: id, Edits: edits})
		}
	}
}

// computeGlobalComponents diffs singleton components, again over the union
// of both worlds' registered global components.
func computeGlobalComponents(prev, next *ecs.World, cs *ChangeSet) {
	for _, id := range unionGlobalComponents(prev, next) {
		pData, inP := prev.GlobalComponent(id)
		nData, inN := next.GlobalComponent(id)
		switch {
		case inP && inN:
			if !prev.Codec().Equal(id, pData, nData) {
				cs.GlobalComponentChanges = append(cs.GlobalComponentChanges, GlobalComponentChange{Component: id, Kind: EditUpdate})
			}
		case inP && !inN:
			cs.GlobalComponentChanges = append(cs.GlobalComponentChanges, GlobalComponentChange{Component: id, Kind: EditRemove})
		case !inP && inN:
			cs.GlobalComponentChanges = append(cs.GlobalComponentChanges, GlobalComponentChange{Component: id, Kind: EditAdd})
		}
	}
}

func unionSorted(a, b []ecs.ComponentID) []ecs.ComponentID {
	seen := make(map[ecs.ComponentID]struct{}, len(a)+len(b))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		seen[id] = struct{}{}
	}
	out := make([]ecs.ComponentID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func unionSharedComponents(prev, next *ecs.World) []ecs.ComponentID {
	var a, b []ecs.ComponentID
	prev.ForEachSharedComponent(func(id ecs.ComponentID) bool { a = append(a, id); return true })
	next.ForEachSharedComponent(func(id ecs.ComponentID) bool { b = append(b, id); return true })
	return unionSorted(a, b)
}

func unionGlobalComponents(prev, next *ecs.World) []ecs.ComponentID {
	var a, b []ecs.ComponentID
	prev.ForEachGlobalComponent(func(id ecs.ComponentID) bool { a = append(a, id); return true })
	next.ForEachGlobalComponent(func(id ecs.ComponentID) bool { b = append(b, id); return true })
	return unionSorted(a, b)
}

func instancesOf(w *ecs.World, id ecs.ComponentID) []ecs.SharedInstanceID {
	var out []ecs.SharedInstanceID
	w.ForEachSharedInstance(id, func(inst ecs.SharedInstanceID) bool {
		out = append(out, inst)
		return true
	})
	return out
}

func unionSortedInstances(a, b []ecs.SharedInstanceID) []ecs.SharedInstanceID {
	seen := make(map[ecs.SharedInstanceID]struct{}, len(a)+len(b))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		seen[id] = struct{}{}
	}
	out := make([]ecs.SharedInstanceID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
