// Package store persists recorded delta-state streams against save-game
// slots. It generalizes the teacher's pkg/save stub (Save/Load/AutoSave,
// previously no-ops) into a real SQLite-backed ledger: the stream bytes
// stay on disk wherever a delta.Recorder wrote them, and this package
// indexes, lists, overwrites, and deletes slots by name and size.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// MaxSlots is the number of ordinary save slots, numbered 1..MaxSlots.
const MaxSlots = 10

// AutoSaveSlot is the reserved slot ID for AutoSave, outside the
// 1..MaxSlots range of ordinary slots; SaveSlot and LoadSlot accept it too.
const AutoSaveSlot = 0

var (
	// ErrSlotNotFound is returned when a slot has no ledger row.
	ErrSlotNotFound = errors.New("store: slot not found")
	// ErrInvalidSlot is returned by SaveSlot for a slot ID that is neither
	// AutoSaveSlot nor in [1, MaxSlots].
	ErrInvalidSlot = errors.New("store: slot id out of range")
)

// SlotStore is a SQLite-backed ledger of save-game slots. Safe for
// concurrent use; all access is serialized through database/sql's pool.
type SlotStore struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path and ensures its
// schema exists.
func Open(path string) (*SlotStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SlotStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SlotStore) Close() error {
	return s.db.Close()
}

func validSlot(id int) bool {
	return id == AutoSaveSlot || (id >= 1 && id <= MaxSlots)
}

// SaveSlot records or overwrites the ledger entry for slot, pointing it
// at streamPath — the file a delta.Recorder already flushed to disk.
// SaveSlot stats the file for its size; it does not copy or read the
// stream bytes themselves.
func (s *SlotStore) SaveSlot(id int, name, streamPath string) (SlotMetadata, error) {
	if !validSlot(id) {
		return SlotMetadata{}, fmt.Errorf("%w: %d", ErrInvalidSlot, id)
	}
	info, err := os.Stat(streamPath)
	if err != nil {
		return SlotMetadata{}, fmt.Errorf("store: stat stream %s: %w", streamPath, err)
	}

	now := time.Now().UTC()
	createdAt := now
	if existing, err := s.LoadSlot(id); err == nil {
		createdAt = existing.CreatedAt
	}

	_, err = s.db.Exec(
		`INSERT INTO slots (id, name, stream_path, size_bytes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			stream_path = excluded.stream_path,
			size_bytes = excluded.size_bytes,
			updated_at = excluded.updated_at`,
		id, name, streamPath, info.Size(), createdAt.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return SlotMetadata{}, fmt.Errorf("store: save slot %d: %w", id, err)
	}

	logrus.WithFields(logrus.Fields{
		"slot":        id,
		"name":        name,
		"stream_path": streamPath,
		"size_bytes":  info.Size(),
	}).Debug("slot saved")

	return SlotMetadata{
		ID:         id,
		Name:       name,
		StreamPath: streamPath,
		SizeBytes:  info.Size(),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}, nil
}

// LoadSlot returns the ledger entry for slot, or ErrSlotNotFound if none
// exists. The caller opens StreamPath itself, typically via
// instrument.NewBufferedFileReader, to replay the stream.
func (s *SlotStore) LoadSlot(id int) (SlotMetadata, error) {
	row := s.db.QueryRow(
		`SELECT id, name, stream_path, size_bytes, created_at, updated_at FROM slots WHERE id = ?`, id,
	)
	return scanSlot(row)
}

// ListSlots returns every ledger entry, ordered by slot ID.
func (s *SlotStore) ListSlots() ([]SlotMetadata, error) {
	rows, err := s.db.Query(
		`SELECT id, name, stream_path, size_bytes, created_at, updated_at FROM slots ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list slots: %w", err)
	}
	defer rows.Close()

	var out []SlotMetadata
	for rows.Next() {
		meta, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list slots: %w", err)
	}
	return out, nil
}

// DeleteSlot removes slot's ledger entry and its stream file. The ledger
// row is deleted first; a failure to remove the now-orphaned file is
// logged but does not fail the call, since the slot is no longer
// addressable through this store either way.
func (s *SlotStore) DeleteSlot(id int) error {
	meta, err := s.LoadSlot(id)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(`DELETE FROM slots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete slot %d: %w", id, err)
	}

	if err := os.Remove(meta.StreamPath); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).WithField("slot", id).Warn("failed to remove orphaned stream file")
	}
	return nil
}

// AutoSave records the reserved auto-save slot, overwriting any previous
// auto-save.
func (s *SlotStore) AutoSave(streamPath string) (SlotMetadata, error) {
	return s.SaveSlot(AutoSaveSlot, "autosave", streamPath)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSlot(row rowScanner) (SlotMetadata, error) {
	var (
		meta      SlotMetadata
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&meta.ID, &meta.Name, &meta.StreamPath, &meta.SizeBytes, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SlotMetadata{}, ErrSlotNotFound
		}
		return SlotMetadata{}, fmt.Errorf("store: scan slot: %w", err)
	}
	var err error
	if meta.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return SlotMetadata{}, fmt.Errorf("store: parse created_at: %w", err)
	}
	if meta.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return SlotMetadata{}, fmt.Errorf("store: parse updated_at: %w", err)
	}
	return meta, nil
}
