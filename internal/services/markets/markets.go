// Package markets provides point-in-time market snapshots across the
// supported lending protocols. The engine is written once against the
// Provider capability; each protocol is an adapter behind it.
package markets

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"lendplanner/internal/domain"
)

// Provider yields a fresh market snapshot for an asset.
type Provider interface {
	Snapshot(ctx context.Context, asset domain.Asset) (*domain.MarketSnapshot, error)
}

// TokenConfig binds an underlying asset to its protocol market contract.
type TokenConfig struct {
	Asset  domain.Asset
	Market common.Address
}

// Registry routes snapshot requests to the provider registered for each asset.
// Registration happens once at startup; lookups are read-only afterwards.
type Registry struct {
	providers map[common.Address]Provider
}

// NewRegistry creates an empty market registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[common.Address]Provider)}
}

// Register binds an asset to the provider serving its market.
func (r *Registry) Register(asset domain.Asset, p Provider) error {
	if asset.IsZero() {
		return errors.New("cannot register market for zero asset")
	}
	r.providers[asset.Address] = p
	return nil
}

// Snapshot returns a fresh snapshot for the asset, or domain.ErrMarketNotFound
// when no provider is registered for it.
func (r *Registry) Snapshot(ctx context.Context, asset domain.Asset) (*domain.MarketSnapshot, error) {
	p, ok := r.providers[asset.Address]
	if !ok {
		return nil, errors.Wrapf(domain.ErrMarketNotFound, "asset %s", asset.String())
	}
	return p.Snapshot(ctx, asset)
}
