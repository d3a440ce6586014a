package markets

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"lendplanner/internal/domain"
)

// StaticProvider serves snapshots from an in-memory fixture set. It backs the
// simulate mode of the CLI and the engine tests; production runs use the
// on-chain providers instead.
type StaticProvider struct {
	mu        sync.RWMutex
	snapshots map[common.Address]domain.MarketSnapshot
}

// NewStaticProvider creates an empty fixture provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{snapshots: make(map[common.Address]domain.MarketSnapshot)}
}

// Set stores the snapshot served for its asset, replacing any previous one.
func (s *StaticProvider) Set(snapshot domain.MarketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.Asset.Address] = snapshot
}

// Snapshot returns a copy of the stored fixture, so callers can never mutate
// the shared state.
func (s *StaticProvider) Snapshot(_ context.Context, asset domain.Asset) (*domain.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[asset.Address]
	if !ok {
		return nil, errors.Wrapf(domain.ErrMarketNotFound, "asset %s", asset.String())
	}
	return &snapshot, nil
}
