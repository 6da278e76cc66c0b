// Package file persists the assignment set and the derived leaderboard
// snapshot as JSON files, mirroring the two-file layout the tracker has
// always used: one authoritative store, one regenerated display cache.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"assignment-tracker-service/internal/domain"
)

// Gateway stores the authoritative assignment set at Path, keyed by
// title. Records that fail to decode (unparsable minute-precision
// timestamps included) are skipped at load with a warning instead of
// aborting startup.
type Gateway struct {
	Path string
}

func NewGateway(path string) *Gateway {
	return &Gateway{Path: path}
}

func (g *Gateway) Load(_ context.Context) ([]domain.Assignment, error) {
	data, err := os.ReadFile(g.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read assignment store: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptRecord, err)
	}

	assignments := make([]domain.Assignment, 0, len(raw))
	for title, record := range raw {
		var a domain.Assignment
		if err := json.Unmarshal(record, &a); err != nil {
			log.Printf("skipping corrupt record %q: %v", title, err)
			continue
		}
		a.Title = title
		assignments = append(assignments, a)
	}
	return assignments, nil
}

func (g *Gateway) Save(_ context.Context, assignments []domain.Assignment) error {
	byTitle := make(map[string]domain.Assignment, len(assignments))
	for _, a := range assignments {
		byTitle[a.Title] = a
	}
	data, err := json.MarshalIndent(byTitle, "", "  ")
	if err != nil {
		return fmt.Errorf("encode assignment store: %w", err)
	}
	return writeAtomic(g.Path, data)
}

// SnapshotWriter regenerates the leaderboard cache file wholesale on
// every write. The file is a display artifact; stale copies are
// harmless and replaced on the next mutation.
type SnapshotWriter struct {
	Path string
}

func NewSnapshotWriter(path string) *SnapshotWriter {
	return &SnapshotWriter{Path: path}
}

func (w *SnapshotWriter) WriteSnapshot(_ context.Context, _ domain.Leaderboard, snap domain.LeaderboardSnapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode leaderboard snapshot: %w", err)
	}
	return writeAtomic(w.Path, data)
}

// ReadSnapshot loads the last written cache, mainly for adapters that
// render offline views. Callers must treat it as stale by definition.
func (w *SnapshotWriter) ReadSnapshot(_ context.Context) (domain.LeaderboardSnapshot, error) {
	var snap domain.LeaderboardSnapshot
	data, err := os.ReadFile(w.Path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("read leaderboard snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("%w: %v", domain.ErrCorruptRecord, err)
	}
	return snap, nil
}

// writeAtomic writes via a temp file and rename so a crash mid-write
// never leaves a truncated store behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
