package ecs

import "testing"

const (
	componentPosition ComponentID = 1
	componentHealth   ComponentID = 2
	componentTeam     ComponentID = 10 // shared
	componentWeather  ComponentID = 20 // global
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w := NewWorld(BytesCodec{})
	w.RegisterUniqueComponent(componentPosition, "Position")
	w.RegisterUniqueComponent(componentHealth, "Health")
	w.RegisterSharedComponent(componentTeam, "Team")
	w.RegisterGlobalComponent(componentWeather, "Weather")
	return w
}

func TestSpawnDestroyRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	archIdx := w.EnsureArchetype([]ComponentID{componentPosition}, nil)
	baseIdx, err := w.EnsureBaseArchetype(archIdx, nil)
	if err != nil {
		t.Fatalf("EnsureBaseArchetype: %v", err)
	}

	entity, err := w.SpawnAt(5, 1, EntityInfo{ArchetypeIndex: archIdx, BaseArchetypeIndex: baseIdx})
	if err != nil {
		t.Fatalf("SpawnAt: %v", err)
	}
	if err := w.SetUniqueComponent(entity, componentPosition, []byte{1, 2, 3}); err != nil {
		t.Fatalf("SetUniqueComponent: %v", err)
	}

	data, ok := w.TryGetComponent(entity, componentPosition)
	if !ok || string(data) != "\x01\x02\x03" {
		t.Errorf("TryGetComponent = %v, %v", data, ok)
	}

	if err := w.Destroy(entity); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, _, ok := w.TryGetEntityInfo(5); ok {
		t.Errorf("entity still present after Destroy")
	}
}

func TestSpawnAtSameSlotNewGeneration(t *testing.T) {
	w := newTestWorld(t)
	archIdx := w.EnsureArchetype([]ComponentID{componentPosition}, nil)
	baseIdx, _ := w.EnsureBaseArchetype(archIdx, nil)

	e1, err := w.SpawnAt(5, 1, EntityInfo{ArchetypeIndex: archIdx, BaseArchetypeIndex: baseIdx})
	if err != nil {
		t.Fatalf("SpawnAt gen1: %v", err)
	}
	if err := w.Destroy(e1); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	e2, err := w.SpawnAt(5, 2, EntityInfo{ArchetypeIndex: archIdx, BaseArchetypeIndex: baseIdx})
	if err != nil {
		t.Fatalf("SpawnAt gen2: %v", err)
	}
	if e2.Generation != 2 {
		t.Errorf("Generation = %d, want 2", e2.Generation)
	}

	_, info, ok := w.TryGetEntityInfo(5)
	if !ok || info.StreamIndex != 0 {
		t.Errorf("expected single live entity at stream index 0, got %v %v", info, ok)
	}
}

func TestRelocateMovesBetweenBaseArchetypes(t *testing.T) {
	w := newTestWorld(t)
	archA := w.EnsureArchetype([]ComponentID{componentPosition}, nil)
	baseA, _ := w.EnsureBaseArchetype(archA, nil)
	archB := w.EnsureArchetype([]ComponentID{componentPosition, componentHealth}, nil)
	baseB, _ := w.EnsureBaseArchetype(archB, nil)

	e1, _ := w.SpawnAt(1, 1, EntityInfo{ArchetypeIndex: archA, BaseArchetypeIndex: baseA})
	e2, _ := w.SpawnAt(2, 1, EntityInfo{ArchetypeIndex: archA, BaseArchetypeIndex: baseA})

	if err := w.Relocate(e1, EntityInfo{ArchetypeIndex: archB, BaseArchetypeIndex: baseB}); err != nil {
		t.Fatalf("Relocate: %v", err)
	}

	_, infoE2, ok := w.TryGetEntityInfo(e2.Index)
	if !ok || infoE2.StreamIndex != 0 {
		t.Errorf("expected swap-removed entity e2 to now sit at stream index 0, got %v", infoE2)
	}
	_, infoE1, ok := w.TryGetEntityInfo(e1.Index)
	if !ok || infoE1.ArchetypeIndex != archB || infoE1.StreamIndex != 0 {
		t.Errorf("expected e1 relocated into archetype B at stream index 0, got %v", infoE1)
	}
}

func TestSharedInstanceLifecycleAndOrder(t *testing.T) {
	w := newTestWorld(t)
	if err := w.SetSharedInstance(componentTeam, 2, []byte("red")); err != nil {
		t.Fatalf("SetSharedInstance: %v", err)
	}
	if err := w.SetSharedInstance(componentTeam, 1, []byte("blue")); err != nil {
		t.Fatalf("SetSharedInstance: %v", err)
	}

	var seen []SharedInstanceID
	w.ForEachSharedInstance(componentTeam, func(id SharedInstanceID) bool {
		seen = append(seen, id)
		return true
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("ForEachSharedInstance order = %v, want ascending [1 2]", seen)
	}

	if err := w.RemoveSharedInstance(componentTeam, 1); err != nil {
		t.Fatalf("RemoveSharedInstance: %v", err)
	}
	if _, ok := w.SharedData(componentTeam, 1); ok {
		t.Errorf("instance 1 still present after removal")
	}
}

func TestGlobalComponentLifecycle(t *testing.T) {
	w := newTestWorld(t)
	if err := w.SetGlobalComponent(componentWeather, []byte("rain")); err != nil {
		t.Fatalf("SetGlobalComponent: %v", err)
	}
	data, ok := w.GlobalComponent(componentWeather)
	if !ok || string(data) != "rain" {
		t.Errorf("GlobalComponent = %q, %v", data, ok)
	}
	if err := w.RemoveGlobalComponent(componentWeather); err != nil {
		t.Fatalf("RemoveGlobalComponent: %v", err)
	}
	if _, ok := w.GlobalComponent(componentWeather); ok {
		t.Errorf("global component still present after removal")
	}
}
