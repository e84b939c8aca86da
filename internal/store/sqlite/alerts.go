package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

const alertColumns = `id, user, symbol, condition, threshold, channels, cooldown_s, one_shot, is_active, last_fired_at, fire_count, metadata`

func scanAlertRule(scan func(dest ...any) error) (model.AlertRule, error) {
	var r model.AlertRule
	var channels, metadata string
	var cond string
	var oneShot, isActive int
	var lastFired *int64
	if err := scan(&r.ID, &r.User, &r.Symbol, &cond, &r.Threshold, &channels, &r.CooldownS, &oneShot, &isActive, &lastFired, &r.FireCount, &metadata); err != nil {
		return r, err
	}
	r.Condition = model.AlertCondition(cond)
	r.OneShot = oneShot != 0
	r.IsActive = isActive != 0
	if lastFired != nil {
		t := unixToTime(*lastFired)
		r.LastFiredAt = &t
	}
	for _, c := range strings.Split(channels, ",") {
		if c != "" {
			r.Channels = append(r.Channels, model.AlertChannel(c))
		}
	}
	if metadata != "" {
		_ = json.Unmarshal([]byte(metadata), &r.Metadata)
	}
	return r, nil
}

// ActiveRules implements model.AlertStore.
func (s *Store) ActiveRules(ctx context.Context, symbol string) ([]model.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE symbol = ? AND is_active = 1`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AlertRule
	for rows.Next() {
		r, err := scanAlertRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RulesByUser implements model.AlertStore: every rule the user owns,
// active or not, for the alerts management REST surface (spec 6).
func (s *Store) RulesByUser(ctx context.Context, user string) ([]model.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE user = ? ORDER BY id`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AlertRule
	for rows.Next() {
		r, err := scanAlertRule(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RuleByID implements model.AlertStore. Returns nil, nil if not found.
func (s *Store) RuleByID(ctx context.Context, id string) (*model.AlertRule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	r, err := scanAlertRule(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRule implements model.AlertStore.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	return err
}

// SaveRuleFireState implements model.AlertStore: persists last_fired_at,
// fire_count, is_active (one-shot deactivation) and metadata (e.g. MACD
// crossover's prev_macd/prev_signal) after an evaluation.
func (s *Store) SaveRuleFireState(ctx context.Context, r model.AlertRule) error {
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return err
	}
	var lastFired interface{}
	if r.LastFiredAt != nil {
		lastFired = r.LastFiredAt.Unix()
	}
	isActive := 0
	if r.IsActive {
		isActive = 1
	}

	channels := make([]string, len(r.Channels))
	for i, c := range r.Channels {
		channels[i] = string(c)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, user, symbol, condition, threshold, channels, cooldown_s, one_shot, is_active, last_fired_at, fire_count, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_active=excluded.is_active, last_fired_at=excluded.last_fired_at,
			fire_count=excluded.fire_count, metadata=excluded.metadata
	`, r.ID, r.User, r.Symbol, string(r.Condition), r.Threshold, strings.Join(channels, ","),
		r.CooldownS, boolToInt(r.OneShot), isActive, lastFired, r.FireCount, string(metadata))
	return err
}

// UpsertRule implements model.AlertStore: creates a rule or fully replaces
// every field of an existing one (REST create/update), unlike
// SaveRuleFireState which only touches evaluation state.
func (s *Store) UpsertRule(ctx context.Context, r model.AlertRule) error {
	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return err
	}
	var lastFired interface{}
	if r.LastFiredAt != nil {
		lastFired = r.LastFiredAt.Unix()
	}

	channels := make([]string, len(r.Channels))
	for i, c := range r.Channels {
		channels[i] = string(c)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, user, symbol, condition, threshold, channels, cooldown_s, one_shot, is_active, last_fired_at, fire_count, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user=excluded.user, symbol=excluded.symbol, condition=excluded.condition,
			threshold=excluded.threshold, channels=excluded.channels, cooldown_s=excluded.cooldown_s,
			one_shot=excluded.one_shot, is_active=excluded.is_active, metadata=excluded.metadata
	`, r.ID, r.User, r.Symbol, string(r.Condition), r.Threshold, strings.Join(channels, ","),
		r.CooldownS, boolToInt(r.OneShot), boolToInt(r.IsActive), lastFired, r.FireCount, string(metadata))
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
