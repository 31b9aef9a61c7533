package liquidity

import (
	"sync"

	"liquidationScope/internal/model"
)

// SourceTable is the shared best-funding-source table. It is safe for
// concurrent use; every mutation touches a single key.
type SourceTable struct {
	mu   sync.RWMutex
	data map[model.AssetID]model.FlashSource
}

func NewSourceTable() *SourceTable {
	return &SourceTable{data: make(map[model.AssetID]model.FlashSource)}
}

func (t *SourceTable) Get(asset model.AssetID) (model.FlashSource, bool) {
	t.mu.RLock()
	src, ok := t.data[asset]
	t.mu.RUnlock()
	return src, ok
}

func (t *SourceTable) Set(asset model.AssetID, src model.FlashSource) {
	t.mu.Lock()
	t.data[asset] = src
	t.mu.Unlock()
}

// Snapshot copies the table.
func (t *SourceTable) Snapshot() map[model.AssetID]model.FlashSource {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[model.AssetID]model.FlashSource, len(t.data))
	for asset, src := range t.data {
		out[asset] = src
	}
	return out
}
