// Package catalog owns the symbol set (spec 3: "Owned by the catalog;
// collectors only read"). It keeps an in-memory snapshot refreshed on
// writes (spec: "read-heavy; in-memory snapshot refreshed on change
// notification. Writes are rare and serialized by the catalog store.").
package catalog

import (
	"context"
	"sync"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// Catalog is the single read path every collector and the REST API use to
// resolve the active symbol set; Refresh is the only write path.
type Catalog struct {
	store model.SymbolStore

	mu      sync.RWMutex
	symbols []model.Symbol
	byKey   map[string]model.Symbol
}

func New(store model.SymbolStore) *Catalog {
	return &Catalog{store: store, byKey: make(map[string]model.Symbol)}
}

// Refresh reloads the snapshot from the backing store. Call once at
// startup and after any symbol mutation.
func (c *Catalog) Refresh(ctx context.Context) error {
	symbols, err := c.store.ListSymbols(ctx)
	if err != nil {
		return err
	}
	byKey := make(map[string]model.Symbol, len(symbols))
	for _, s := range symbols {
		byKey[s.Key()] = s
	}

	c.mu.Lock()
	c.symbols = symbols
	c.byKey = byKey
	c.mu.Unlock()
	return nil
}

// All returns every symbol in the current snapshot, active or not.
func (c *Catalog) All() []model.Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Symbol, len(c.symbols))
	copy(out, c.symbols)
	return out
}

// Active returns only symbols with is_active set.
func (c *Catalog) Active() []model.Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []model.Symbol
	for _, s := range c.symbols {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out
}

// ByVenue groups the current snapshot by venue (spec 6: "GET /symbols —
// grouped by venue").
func (c *Catalog) ByVenue() map[string][]model.Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]model.Symbol)
	for _, s := range c.symbols {
		out[s.Venue] = append(out[s.Venue], s)
	}
	return out
}

// Lookup resolves a single "venue:symbol" key.
func (c *Catalog) Lookup(venue, symbol string) (model.Symbol, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byKey[venue+":"+symbol]
	return s, ok
}

// Upsert writes through to the store then refreshes the snapshot —
// writes are rare, so paying a full reload here is cheap.
func (c *Catalog) Upsert(ctx context.Context, s model.Symbol) error {
	if err := c.store.UpsertSymbol(ctx, s); err != nil {
		return err
	}
	return c.Refresh(ctx)
}
