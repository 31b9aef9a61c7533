package lending

import (
	"context"
	"fmt"
	"sync"

	"liquidationScope/internal/chain"
	"liquidationScope/internal/model"
)

// DecimalsRegistry caches token decimals by asset. Seeded entries come from
// configuration; unknown assets are read from chain once.
type DecimalsRegistry struct {
	mu     sync.RWMutex
	data   map[model.AssetID]uint8
	source chain.Source
}

func NewDecimalsRegistry(source chain.Source, seed map[model.AssetID]uint8) *DecimalsRegistry {
	data := make(map[model.AssetID]uint8, len(seed))
	for asset, decimals := range seed {
		data[asset] = decimals
	}
	return &DecimalsRegistry{data: data, source: source}
}

func (r *DecimalsRegistry) Get(asset model.AssetID) (uint8, bool) {
	r.mu.RLock()
	decimals, ok := r.data[asset]
	r.mu.RUnlock()
	return decimals, ok
}

func (r *DecimalsRegistry) Set(asset model.AssetID, decimals uint8) {
	r.mu.Lock()
	r.data[asset] = decimals
	r.mu.Unlock()
}

// Decimals returns cached decimals or fetches them via decimals().
func (r *DecimalsRegistry) Decimals(ctx context.Context, asset model.AssetID) (uint8, error) {
	if decimals, ok := r.Get(asset); ok {
		return decimals, nil
	}
	if r.source == nil {
		return 0, fmt.Errorf("decimals unknown for %s", asset)
	}
	decimals, err := Decimals(ctx, r.source.Client(), asset)
	if err != nil {
		return 0, fmt.Errorf("fetch decimals %s: %w", asset, err)
	}
	r.Set(asset, decimals)
	return decimals, nil
}
