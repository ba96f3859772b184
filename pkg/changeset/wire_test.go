package changeset

import (
	"testing"

	"github.com/opd-ai/deltastate/pkg/ecs"
	"github.com/opd-ai/deltastate/pkg/instrument"
)

func TestWriteReadChangeSetRoundTrip(t *testing.T) {
	cs := &ChangeSet{
		EntityInfoDestroys: []ecs.Entity{{Index: 1, Generation: 1}},
		EntityInfoAdditions: []EntityAddition{
			{Entity: ecs.Entity{Index: 2, Generation: 1}, Info: ecs.EntityInfo{ArchetypeIndex: 0, BaseArchetypeIndex: 0}},
		},
		EntityInfoChanges: []EntityInfoChange{
			{Entity: ecs.Entity{Index: 3, Generation: 2}, Info: ecs.EntityInfo{ArchetypeIndex: 1, BaseArchetypeIndex: 0}},
		},
		EntityUniqueComponentChanges: []EntityUniqueChanges{
			{
				Entity: ecs.Entity{Index: 2, Generation: 1},
				Edits: []ComponentEdit{
					{Component: 5, Kind: EditAdd},
					{Component: 6, Kind: EditRemove},
				},
			},
		},
		SharedComponentChanges: []SharedComponentChanges{
			{Component: 7, Edits: []SharedInstanceEdit{{Instance: 42, Kind: EditUpdate}}},
		},
		GlobalComponentChanges: []GlobalComponentChange{
			{Component: 9, Kind: EditAdd},
		},
	}

	mw := instrument.NewMemoryWriter()
	if err := WriteChangeSet(mw, cs); err != nil {
		t.Fatalf("WriteChangeSet: %v", err)
	}

	mr := instrument.NewMemoryReader(mw.Bytes())
	got, err := ReadChangeSet(mr)
	if err != nil {
		t.Fatalf("ReadChangeSet: %v", err)
	}

	if len(got.EntityInfoDestroys) != 1 || got.EntityInfoDestroys[0] != cs.EntityInfoDestroys[0] {
		t.Errorf("EntityInfoDestroys = %+v, want %+v", got.EntityInfoDestroys, cs.EntityInfoDestroys)
	}
	if len(got.EntityInfoAdditions) != 1 || got.EntityInfoAdditions[0] != cs.EntityInfoAdditions[0] {
		t.Errorf("EntityInfoAdditions = %+v, want %+v", got.EntityInfoAdditions, cs.EntityInfoAdditions)
	}
	if len(got.EntityInfoChanges) != 1 || got.EntityInfoChanges[0] != cs.EntityInfoChanges[0] {
		t.Errorf("EntityInfoChanges = %+v, want %+v", got.EntityInfoChanges, cs.EntityInfoChanges)
	}
	if len(got.EntityUniqueComponentChanges) != 1 ||
		len(got.EntityUniqueComponentChanges[0].Edits) != 2 {
		t.Errorf("EntityUniqueComponentChanges = %+v", got.EntityUniqueComponentChanges)
	}
	if len(got.SharedComponentChanges) != 1 || got.SharedComponentChanges[0].Component != 7 {
		t.Errorf("SharedComponentChanges = %+v", got.SharedComponentChanges)
	}
	if len(got.GlobalComponentChanges) != 1 || got.GlobalComponentChanges[0] != cs.GlobalComponentChanges[0] {
		t.Errorf("GlobalComponentChanges = %+v, want %+v", got.GlobalComponentChanges, cs.GlobalComponentChanges)
	}
}
