package catalog

import (
	"context"
	"testing"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	symbols []model.Symbol
}

func (f *fakeStore) ListSymbols(ctx context.Context) ([]model.Symbol, error) {
	return f.symbols, nil
}
func (f *fakeStore) UpsertSymbol(ctx context.Context, s model.Symbol) error {
	for i, existing := range f.symbols {
		if existing.Key() == s.Key() {
			f.symbols[i] = s
			return nil
		}
	}
	f.symbols = append(f.symbols, s)
	return nil
}
func (f *fakeStore) Close() error { return nil }

func TestByVenue_GroupsSymbols(t *testing.T) {
	store := &fakeStore{symbols: []model.Symbol{
		{Venue: "coinbase", Name: "BTC-USD", AssetClass: "crypto", IsActive: true},
		{Venue: "coinbase", Name: "ETH-USD", AssetClass: "crypto", IsActive: true},
		{Venue: "nasdaq", Name: "AAPL", AssetClass: "us_equity", IsActive: false},
	}}
	c := New(store)
	require.NoError(t, c.Refresh(context.Background()))

	grouped := c.ByVenue()
	assert.Len(t, grouped["coinbase"], 2)
	assert.Len(t, grouped["nasdaq"], 1)
}

func TestActive_ExcludesInactiveSymbols(t *testing.T) {
	store := &fakeStore{symbols: []model.Symbol{
		{Venue: "nasdaq", Name: "AAPL", IsActive: false},
		{Venue: "nasdaq", Name: "MSFT", IsActive: true},
	}}
	c := New(store)
	require.NoError(t, c.Refresh(context.Background()))

	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "MSFT", active[0].Name)
}

func TestUpsert_WritesThroughAndRefreshesSnapshot(t *testing.T) {
	store := &fakeStore{}
	c := New(store)
	require.NoError(t, c.Refresh(context.Background()))

	require.NoError(t, c.Upsert(context.Background(), model.Symbol{Venue: "coinbase", Name: "BTC-USD", IsActive: true}))

	sym, ok := c.Lookup("coinbase", "BTC-USD")
	require.True(t, ok)
	assert.True(t, sym.IsActive)
}
