package changeset

import (
	"fmt"

	"github.com/opd-ai/deltastate/pkg/ecs"
	"github.com/opd-ai/deltastate/pkg/instrument"
	"github.com/opd-ai/deltastate/pkg/varint"
)

// CollectPayloads gathers the value bytes for every add/update edit in cs,
// reading from next (the snapshot the change-set was computed against as
// "N"), in wire emission order: global components first, then shared
// instances, then per-entity unique components.
func CollectPayloads(cs *ChangeSet, next *ecs.World) ([][]byte, error) {
	var payloads [][]byte

	for _, gc := range cs.GlobalComponentChanges {
		if gc.Kind == EditRemove {
			continue
		}
		data, ok := next.GlobalComponent(gc.Component)
		if !ok {
			return nil, fmt.Errorf("changeset: missing global payload for component %d", gc.Component)
		}
		payloads = append(payloads, data)
	}

	for _, sc := range cs.SharedComponentChanges {
		for _, edit := range sc.Edits {
			if edit.Kind == EditRemove {
				continue
			}
			data, ok := next.SharedData(sc.Component, edit.Instance)
			if !ok {
				return nil, fmt.Errorf("changeset: missing shared payload for %d/%d", sc.Component, edit.Instance)
			}
			payloads = append(payloads, data)
		}
	}

	for _, euc := range cs.EntityUniqueComponentChanges {
		for _, edit := range euc.Edits {
			if edit.Kind == EditRemove {
				continue
			}
			data, ok := next.TryGetComponent(euc.Entity, edit.Component)
			if !ok {
				return nil, fmt.Errorf("changeset: missing unique payload for %s/%d", euc.Entity, edit.Component)
			}
			payloads = append(payloads, data)
		}
	}

	return payloads, nil
}

// WritePayloads serializes payloads to w as a varint count followed by
// each value, size-prefixed via instrument.WriteWithSize.
func WritePayloads(w instrument.WriteInstrument, payloads [][]byte) error {
	if err := varint.AppendUnsigned(w, uint64(len(payloads))); err != nil {
		return fmt.Errorf("changeset: write payload count: %w", err)
	}
	for i, p := range payloads {
		if err := instrument.WriteWithSize(w, p); err != nil {
			return fmt.Errorf("changeset: write payload %d: %w", i, err)
		}
	}
	return nil
}

// ReadPayloads deserializes a payload list written by WritePayloads.
func ReadPayloads(r instrument.ReadInstrument) ([][]byte, error) {
	count, outOfRange, err := varint.ReadUnsigned(r, 64)
	if err != nil {
		return nil, fmt.Errorf("changeset: read payload count: %w", err)
	}
	if outOfRange {
		return nil, fmt.Errorf("changeset: payload count exceeds 64-bit range")
	}
	payloads := make([][]byte, 0, count)
	for i := uint64(0); i < count; i++ {
		data, err := instrument.ReadWithSize(r)
		if err != nil {
			return nil, fmt.Errorf("changeset: read payload %d: %w", i, err)
		}
		payloads = append(payloads, data)
	}
	return payloads, nil
}

// SlicePayloadSource is a PayloadSource that serves payloads from a
// pre-decoded slice in order, the form ReadPayloads produces.
type SlicePayloadSource struct {
	payloads [][]byte
	cursor   int
}

// NewSlicePayloadSource wraps payloads for sequential consumption.
func NewSlicePayloadSource(payloads [][]byte) *SlicePayloadSource {
	return &SlicePayloadSource{payloads: payloads}
}

// NextPayload implements PayloadSource.
func (s *SlicePayloadSource) NextPayload() ([]byte, error) {
	if s.cursor >= len(s.payloads) {
		return nil, fmt.Errorf("changeset: payload source exhausted after %d values", s.cursor)
	}
	data := s.payloads[s.cursor]
	s.cursor++
	return data, nil
}
