package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"

	"liquidationScope/internal/model"
)

// PositionFile keeps the monitored set as a JSON array replaced atomically on save.
type PositionFile struct {
	Path string
}

func (f *PositionFile) SavePositions(_ context.Context, positions []model.Position) error {
	if positions == nil {
		positions = []model.Position{}
	}
	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal positions: %w", err)
	}

	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create positions dir: %w", err)
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write positions tmp: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("rename positions: %w", err)
	}
	return nil
}

// MonitoredUsers returns the users of the last saved set; a missing file is an empty set.
func (f *PositionFile) MonitoredUsers(_ context.Context) ([]common.Address, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read positions: %w", err)
	}
	var positions []model.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("parse positions: %w", err)
	}
	users := make([]common.Address, 0, len(positions))
	for _, p := range positions {
		users = append(users, p.User)
	}
	return users, nil
}
