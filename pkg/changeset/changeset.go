// Package changeset computes and applies structural diffs between two
// ecs.World snapshots: the algorithmically interesting core of the
// delta-state engine, serving as the delta payload the recorder writes
// when a tick doesn't warrant a full entire-state dump.
package changeset

import "github.com/opd-ai/deltastate/pkg/ecs"

// EditKind classifies a single component edit.
type EditKind int

const (
	EditAdd EditKind = iota
	EditRemove
	EditUpdate
)

func (k EditKind) String() string {
	switch k {
	case EditAdd:
		return "add"
	case EditRemove:
		return "remove"
	case EditUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// EntityAddition pairs a newly-live entity with its authoritative location.
type EntityAddition struct {
	Entity ecs.Entity
	Info   ecs.EntityInfo
}

// EntityInfoChange records that a still-live entity moved storage
// coordinates without a generation bump.
type EntityInfoChange struct {
	Entity ecs.Entity
	Info   ecs.EntityInfo
}

// ComponentEdit is one membership/value edit for a unique-namespace
// component on a specific entity.
type ComponentEdit struct {
	Component ecs.ComponentID
	Kind      EditKind
}

// EntityUniqueChanges groups every unique-component edit for one entity.
type EntityUniqueChanges struct {
	Entity ecs.Entity
	Edits  []ComponentEdit
}

// SharedInstanceEdit is one life-cycle/value edit for a shared-component
// instance.
type SharedInstanceEdit struct {
	Instance ecs.SharedInstanceID
	Kind     EditKind
}

// SharedComponentChanges groups every shared-instance edit for one shared
// component.
type SharedComponentChanges struct {
	Component ecs.ComponentID
	Edits     []SharedInstanceEdit
}

// GlobalComponentChange is one life-cycle/value edit for a singleton
// component.
type GlobalComponentChange struct {
	Component ecs.ComponentID
	Kind      EditKind
}

// ChangeSet is the structural diff of two ecs.World snapshots: the six
// sub-sets spec'd as the wire payload for a delta state.
type ChangeSet struct {
	EntityInfoAdditions          []EntityAddition
	EntityInfoDestroys           []ecs.Entity
	EntityInfoChanges            []EntityInfoChange
	EntityUniqueComponentChanges []EntityUniqueChanges
	SharedComponentChanges       []SharedComponentChanges
	GlobalComponentChanges       []GlobalComponentChange
}

// IsEmpty reports whether the change-set carries no edits at all.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.EntityInfoAdditions) == 0 &&
		len(cs.EntityInfoDestroys) == 0 &&
		len(cs.EntityInfoChanges) == 0 &&
		len(cs.EntityUniqueComponentChanges) == 0 &&
		len(cs.SharedComponentChanges) == 0 &&
		len(cs.GlobalComponentChanges) == 0
}
