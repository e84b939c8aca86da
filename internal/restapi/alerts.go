package restapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mytechsonamy/crypto-stock-platform/internal/auth"
	"github.com/mytechsonamy/crypto-stock-platform/internal/model"
)

// listAlerts implements GET /alerts: every rule owned by the caller.
func (h *handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	rules, err := h.Alerts.RulesByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "alert store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

type alertRequest struct {
	Symbol    string               `json:"symbol"`
	Condition model.AlertCondition `json:"condition"`
	Threshold float64              `json:"threshold"`
	Channels  []model.AlertChannel `json:"channels"`
	CooldownS int                  `json:"cooldown_s"`
	OneShot   bool                 `json:"one_shot"`
	IsActive  *bool                `json:"is_active,omitempty"`
	Metadata  map[string]string    `json:"metadata,omitempty"`
}

// createAlert implements POST /alerts.
func (h *handler) createAlert(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symbol == "" || req.Condition == "" {
		writeError(w, http.StatusBadRequest, "symbol and condition are required")
		return
	}

	rule := model.AlertRule{
		ID:        newRuleID(),
		User:      userID,
		Symbol:    req.Symbol,
		Condition: req.Condition,
		Threshold: req.Threshold,
		Channels:  req.Channels,
		CooldownS: req.CooldownS,
		OneShot:   req.OneShot,
		IsActive:  true,
		Metadata:  req.Metadata,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := h.Alerts.UpsertRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "alert store unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// getAlert implements GET /alerts/{id}.
func (h *handler) getAlert(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.ownedRule(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// updateAlert implements PUT /alerts/{id}: full replace of the mutable
// fields, owner-checked.
func (h *handler) updateAlert(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.ownedRule(w, r)
	if !ok {
		return
	}

	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rule.Symbol = req.Symbol
	rule.Condition = req.Condition
	rule.Threshold = req.Threshold
	rule.Channels = req.Channels
	rule.CooldownS = req.CooldownS
	rule.OneShot = req.OneShot
	rule.Metadata = req.Metadata
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := h.Alerts.UpsertRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "alert store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// deleteAlert implements DELETE /alerts/{id}.
func (h *handler) deleteAlert(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.ownedRule(w, r)
	if !ok {
		return
	}
	if err := h.Alerts.DeleteRule(r.Context(), rule.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "alert store unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedRule loads the rule named by {id} and verifies the caller owns it,
// writing the appropriate error response and returning ok=false if not.
func (h *handler) ownedRule(w http.ResponseWriter, r *http.Request) (model.AlertRule, bool) {
	id := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())

	rule, err := h.Alerts.RuleByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "alert store unavailable")
		return model.AlertRule{}, false
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "alert rule not found")
		return model.AlertRule{}, false
	}
	if rule.User != userID {
		writeError(w, http.StatusForbidden, "not the owner of this rule")
		return model.AlertRule{}, false
	}
	return *rule, true
}

func newRuleID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
