package sqlite

import (
	"context"
	"encoding/json"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// ListSymbols implements model.SymbolStore.
func (s *Store) ListSymbols(ctx context.Context) ([]model.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT venue, symbol, asset_class, is_active, display_name, metadata FROM symbols ORDER BY venue, symbol
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Symbol
	for rows.Next() {
		var sym model.Symbol
		var isActive int
		var metadata *string
		if err := rows.Scan(&sym.Venue, &sym.Name, &sym.AssetClass, &isActive, &sym.DisplayName, &metadata); err != nil {
			return nil, err
		}
		sym.IsActive = isActive != 0
		if metadata != nil && *metadata != "" {
			_ = json.Unmarshal([]byte(*metadata), &sym.Metadata)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// UpsertSymbol implements model.SymbolStore.
func (s *Store) UpsertSymbol(ctx context.Context, sym model.Symbol) error {
	metadata, err := json.Marshal(sym.Metadata)
	if err != nil {
		return err
	}
	isActive := 0
	if sym.IsActive {
		isActive = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO symbols (venue, symbol, asset_class, is_active, display_name, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(venue, symbol) DO UPDATE SET
			asset_class=excluded.asset_class, is_active=excluded.is_active,
			display_name=excluded.display_name, metadata=excluded.metadata
	`, sym.Venue, sym.Name, sym.AssetClass, isActive, sym.DisplayName, string(metadata))
	return err
}
