// Package syncstate persists the historical scan checkpoint.
package syncstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"liquidationScope/internal/model"
	"liquidationScope/internal/storage/postgres"
)

// Store loads and saves the scan checkpoint. A missing checkpoint is not an error.
type Store interface {
	Load(ctx context.Context) (model.SyncState, bool, error)
	Save(ctx context.Context, state model.SyncState) error
}

// FileStore keeps the checkpoint in a JSON file replaced atomically on save.
type FileStore struct {
	Path string
}

func (s *FileStore) Load(ctx context.Context) (model.SyncState, bool, error) {
	if s == nil || s.Path == "" {
		return model.SyncState{}, false, nil
	}

	stat, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.SyncState{}, false, nil
		}
		return model.SyncState{}, false, fmt.Errorf("stat sync state: %w", err)
	}
	if stat.IsDir() {
		return model.SyncState{}, false, fmt.Errorf("sync state path is a directory")
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return model.SyncState{}, false, fmt.Errorf("read sync state: %w", err)
	}
	var state model.SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.SyncState{}, false, fmt.Errorf("parse sync state: %w", err)
	}
	return state, true, nil
}

func (s *FileStore) Save(ctx context.Context, state model.SyncState) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create sync state dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sync state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename sync state: %w", err)
	}
	return nil
}

// PostgresStore keeps the checkpoint in the scanner_state table.
type PostgresStore struct {
	Store *postgres.Store
	Name  string
}

func (s *PostgresStore) Load(ctx context.Context) (model.SyncState, bool, error) {
	if s == nil || s.Store == nil {
		return model.SyncState{}, false, nil
	}
	return s.Store.LoadSyncState(ctx, s.Name)
}

func (s *PostgresStore) Save(ctx context.Context, state model.SyncState) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveSyncState(ctx, s.Name, state)
}

// StartBlock returns the first block to scan: one past the checkpoint, or
// fallback when no checkpoint exists.
func StartBlock(ctx context.Context, store Store, fallback uint64) (uint64, error) {
	if store == nil {
		return fallback, nil
	}
	state, ok, err := store.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok || state.LastScannedBlock+1 < fallback {
		return fallback, nil
	}
	return state.LastScannedBlock + 1, nil
}
