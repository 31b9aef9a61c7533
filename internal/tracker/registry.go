package tracker

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"liquidationScope/internal/model"
)

// Registry is the monitored-address set. Every mutation is a single-key
// operation under the lock, so readers never see a partial update.
type Registry struct {
	mu        sync.RWMutex
	positions map[common.Address]model.Position
}

func NewRegistry() *Registry {
	return &Registry{positions: make(map[common.Address]model.Position)}
}

// Put inserts or replaces the position for its user.
func (r *Registry) Put(position model.Position) {
	r.mu.Lock()
	r.positions[position.User] = position
	r.mu.Unlock()
}

// Delete removes user and reports whether it was present.
func (r *Registry) Delete(user common.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.positions[user]; !ok {
		return false
	}
	delete(r.positions, user)
	return true
}

func (r *Registry) Get(user common.Address) (model.Position, bool) {
	r.mu.RLock()
	position, ok := r.positions[user]
	r.mu.RUnlock()
	return position, ok
}

func (r *Registry) Contains(user common.Address) bool {
	_, ok := r.Get(user)
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.positions)
}

// Snapshot returns the monitored positions ordered by address.
func (r *Registry) Snapshot() []model.Position {
	r.mu.RLock()
	out := make([]model.Position, 0, len(r.positions))
	for _, position := range r.positions {
		out = append(out, position)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].User[:], out[j].User[:]) < 0
	})
	return out
}

// Users returns the monitored addresses ordered by address.
func (r *Registry) Users() []common.Address {
	snapshot := r.Snapshot()
	users := make([]common.Address, len(snapshot))
	for i, position := range snapshot {
		users[i] = position.User
	}
	return users
}
