package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"tgfetch/internal/model"
)

// ledgerDoc is the on-disk shape of the JSON ledger. Keys of Entries are
// message IDs in decimal string form so the file stays hand-editable.
type ledgerDoc struct {
	Entries   map[string]model.Entry `json:"entries"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// JSONFile implements Store backed by a single JSON document.
// Every Record rewrites the whole file through a temp file and an
// atomic rename, so the ledger on disk is always a complete document.
type JSONFile struct {
	path    string
	entries map[int64]model.Entry
}

// OpenJSONFile loads the ledger at path. A missing file yields an empty
// ledger; an unparseable one fails with ErrCorrupt.
func OpenJSONFile(path string) (*JSONFile, error) {
	s := &JSONFile{
		path:    path,
		entries: make(map[int64]model.Entry),
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied ledger path
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var doc ledgerDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCorrupt, path, err)
	}
	for key, e := range doc.Entries {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: message id %q in %s", ErrCorrupt, key, path)
		}
		e.MessageID = id
		s.entries[id] = e
	}
	return s, nil
}

// Contains reports whether a message ID is already in the ledger.
func (s *JSONFile) Contains(_ context.Context, messageID int64) (bool, error) {
	_, ok := s.entries[messageID]
	return ok, nil
}

// Record inserts or overwrites an entry and persists the entire ledger
// before returning.
func (s *JSONFile) Record(_ context.Context, e model.Entry) error {
	s.entries[e.MessageID] = e
	if err := s.flush(); err != nil {
		delete(s.entries, e.MessageID)
		return err
	}
	return nil
}

// Len returns the number of tracked entries.
func (s *JSONFile) Len(_ context.Context) (int, error) {
	return len(s.entries), nil
}

// Close is a no-op for the file backend.
func (s *JSONFile) Close() error {
	return nil
}

func (s *JSONFile) flush() error {
	doc := ledgerDoc{
		Entries:   make(map[string]model.Entry, len(s.entries)),
		UpdatedAt: time.Now().UTC(),
	}
	for id, e := range s.entries {
		doc.Entries[strconv.FormatInt(id, 10)] = e
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp ledger: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
