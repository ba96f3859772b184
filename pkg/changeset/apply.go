package changeset

import (
	"fmt"

	"github.com/opd-ai/deltastate/pkg/ecs"
)

// Apply consumes cs against world, in the order entity existence must be
// established before component membership is mutated: destroys, then
// additions, then relocations, then shared and global components (which
// entities may reference), then per-entity unique components.
func Apply(world *ecs.World, cs *ChangeSet) error {
	for _, entity := range cs.EntityInfoDestroys {
		if err := world.Destroy(entity); err != nil {
			return fmt.Errorf("changeset: apply destroy %s: %w", entity, err)
		}
	}

	for _, add := range cs.EntityInfoAdditions {
		if _, err := world.SpawnAt(add.Entity.Index, add.Entity.Generation, add.Info); err != nil {
			return fmt.Errorf("changeset: apply addition %s: %w", add.Entity, err)
		}
	}

	for _, change := range cs.EntityInfoChanges {
		if err := world.Relocate(change.Entity, change.Info); err != nil {
			return fmt.Errorf("changeset: apply relocation %s: %w", change.Entity, err)
		}
	}

	for _, sc := range cs.SharedComponentChanges {
		for _, edit := range sc.Edits {
			var err error
			switch edit.Kind {
			case EditAdd, EditUpdate:
				err = fmt.Errorf("changeset: shared instance %d of component %d needs a value payload supplied via ApplyWithPayloads", edit.Instance, sc.Component)
			case EditRemove:
				err = world.RemoveSharedInstance(sc.Component, edit.Instance)
			}
			if err != nil {
				return err
			}
		}
	}

	for _, gc := range cs.GlobalComponentChanges {
		if gc.Kind == EditRemove {
			if err := world.RemoveGlobalComponent(gc.Component); err != nil {
				return fmt.Errorf("changeset: apply global remove %d: %w", gc.Component, err)
			}
		}
		// EditAdd/EditUpdate require a value payload; see ApplyWithPayloads.
	}

	for _, euc := range cs.EntityUniqueComponentChanges {
		for _, edit := range euc.Edits {
			if edit.Kind == EditRemove {
				if err := world.RemoveUniqueComponent(euc.Entity, edit.Component); err != nil {
					return fmt.Errorf("changeset: apply unique remove %s/%d: %w", euc.Entity, edit.Component, err)
				}
			}
			// EditAdd/EditUpdate require a value payload; see ApplyWithPayloads.
		}
	}

	return nil
}

// PayloadSource supplies the value bytes that follow the structural
// change-set on the wire for add/update edits, in emission order: global
// components first, then shared instances, then per-entity unique
// components — the same order the stream layout specifies for value
// payloads.
type PayloadSource interface {
	NextPayload() ([]byte, error)
}

// ApplyWithPayloads is Apply extended to also consume value payloads for
// every add/update edit, in the wire's emission order (global, then
// shared, then unique), completing step 7 of the applier algorithm.
func ApplyWithPayloads(world *ecs.World, cs *ChangeSet, payloads PayloadSource) error {
	// Steps 1-3: entity existence, identical to Apply.
	for _, entity := range cs.EntityInfoDestroys {
		if err := world.Destroy(entity); err != nil {
			return fmt.Errorf("changeset: apply destroy %s: %w", entity, err)
		}
	}
	for _, add := range cs.EntityInfoAdditions {
		if _, err := world.SpawnAt(add.Entity.Index, add.Entity.Generation, add.Info); err != nil {
			return fmt.Errorf("changeset: apply addition %s: %w", add.Entity, err)
		}
	}
	for _, change := range cs.EntityInfoChanges {
		if err := world.Relocate(change.Entity, change.Info); err != nil {
			return fmt.Errorf("changeset: apply relocation %s: %w", change.Entity, err)
		}
	}

	// Step 5 precedes step 4's payload consumption in source order (global
	// payloads are emitted before shared instance payloads on the wire),
	// so global edits are applied here even though shared-instance
	// membership is step 4 of the structural pass above.
	for _, gc := range cs.GlobalComponentChanges {
		switch gc.Kind {
		case EditRemove:
			if err := world.RemoveGlobalComponent(gc.Component); err != nil {
				return fmt.Errorf("changeset: apply global remove %d: %w", gc.Component, err)
			}
		case EditAdd, EditUpdate:
			data, err := payloads.NextPayload()
			if err != nil {
				return fmt.Errorf("changeset: global payload for component %d: %w", gc.Component, err)
			}
			if err := world.SetGlobalComponent(gc.Component, data); err != nil {
				return fmt.Errorf("changeset: apply global %s %d: %w", gc.Kind, gc.Component, err)
			}
		}
	}

	for _, sc := range cs.SharedComponentChanges {
		for _, edit := range sc.Edits {
			switch edit.Kind {
			case EditRemove:
				if err := world.RemoveSharedInstance(sc.Component, edit.Instance); err != nil {
					return fmt.Errorf("changeset: apply shared remove %d/%d: %w", sc.Component, edit.Instance, err)
				}
			case EditAdd, EditUpdate:
				data, err := payloads.NextPayload()
				if err != nil {
					return fmt.Errorf("changeset: shared payload for %d/%d: %w", sc.Component, edit.Instance, err)
				}
				if err := world.SetSharedInstance(sc.Component, edit.Instance, data); err != nil {
					return fmt.Errorf("changeset: apply shared %s %d/%d: %w", edit.Kind, sc.Component, edit.Instance, err)
				}
			}
		}
	}

	for _, euc := range cs.EntityUniqueComponentChanges {
		for _, edit := range euc.Edits {
			switch edit.Kind {
			case EditRemove:
				if err := world.RemoveUniqueComponent(euc.Entity, edit.Component); err != nil {
					return fmt.Errorf("changeset: apply unique remove %s/%d: %w", euc.Entity, edit.Component, err)
				}
			case EditAdd, EditUpdate:
				data, err := payloads.NextPayload()
				if err != nil {
					return fmt.Errorf("changeset: unique payload for %s/%d: %w", euc.Entity, edit.Component, err)
				}
				if err := world.SetUniqueComponent(euc.Entity, edit.Component, data); err != nil {
					return fmt.Errorf("changeset: apply unique %s %s/%d: %w", edit.Kind, euc.Entity, edit.Component, err)
				}
			}
		}
	}

	return nil
}
