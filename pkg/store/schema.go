package store

import "time"

// schemaSQL creates the slots ledger on first use. size_bytes and
// stream_path describe the delta-state stream file a delta.Recorder wrote
// with instrument.BufferedFileWriter; the row itself only indexes it.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS slots (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	stream_path TEXT NOT NULL,
	size_bytes  INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
`

// SlotMetadata is the ledger row for one save-game slot, matching the
// teacher's Slot{ID, Name, Data} shape but pointing at a stream file on
// disk rather than holding its bytes in memory.
type SlotMetadata struct {
	ID         int
	Name       string
	StreamPath string
	SizeBytes  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
