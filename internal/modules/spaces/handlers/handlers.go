// Package handlers provides HTTP handlers for account spaces.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/spaces/internal/modules/spaces"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// defaultReportWindow applies when a report request omits start
const defaultReportWindow = 30 * 24 * time.Hour

// Handler handles space HTTP requests
type Handler struct {
	lifecycle *spaces.LifecycleService
	balances  *spaces.BalanceService
	freeze    *spaces.FreezeService
	transfers *spaces.TransferService
	analytics *spaces.AnalyticsService
	log       zerolog.Logger
	now       func() time.Time
}

// NewHandler creates a new spaces handler
func NewHandler(
	lifecycle *spaces.LifecycleService,
	balances *spaces.BalanceService,
	freeze *spaces.FreezeService,
	transfers *spaces.TransferService,
	analytics *spaces.AnalyticsService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		balances:  balances,
		freeze:    freeze,
		transfers: transfers,
		analytics: analytics,
		log:       log.With().Str("handler", "spaces").Logger(),
		now:       time.Now,
	}
}

// HandleCreateMainSpace handles POST /api/accounts/{accountID}/spaces/main
func (h *Handler) HandleCreateMainSpace(w http.ResponseWriter, r *http.Request) {
	space, err := h.lifecycle.CreateMainSpace(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, space)
}

// HandleCreateSpace handles POST /api/accounts/{accountID}/spaces
func (h *Handler) HandleCreateSpace(w http.ResponseWriter, r *http.Request) {
	var req spaces.CreateSpaceRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.AccountID = chi.URLParam(r, "accountID")

	space, err := h.lifecycle.CreateSpace(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, space)
}

// HandleListSpaces handles GET /api/accounts/{accountID}/spaces
func (h *Handler) HandleListSpaces(w http.ResponseWriter, r *http.Request) {
	includeHidden := r.URL.Query().Get("include_hidden") == "true"

	list, err := h.lifecycle.ListSpaces(r.Context(), chi.URLParam(r, "accountID"), includeHidden)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"spaces": list,
		"count":  len(list),
	})
}

// HandleVerifyInvariant handles GET /api/accounts/{accountID}/invariant.
// A violation is still reported with 200 so the body carries the figures.
func (h *Handler) HandleVerifyInvariant(w http.ResponseWriter, r *http.Request) {
	report, err := h.balances.VerifyAccountInvariant(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil && report == nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleRankSpaces handles GET /api/accounts/{accountID}/ranking
func (h *Handler) HandleRankSpaces(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.window(w, r)
	if !ok {
		return
	}

	ranked, err := h.analytics.RankSpaces(r.Context(), chi.URLParam(r, "accountID"), start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ranking": ranked,
		"start":   start,
		"end":     end,
	})
}

// HandleGetSpace handles GET /api/spaces/{spaceID}
func (h *Handler) HandleGetSpace(w http.ResponseWriter, r *http.Request) {
	space, err := h.lifecycle.GetSpace(r.Context(), chi.URLParam(r, "spaceID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, space)
}

// HandleReconfigure handles PATCH /api/spaces/{spaceID}
func (h *Handler) HandleReconfigure(w http.ResponseWriter, r *http.Request) {
	var patch spaces.SpacePatch
	if !h.decode(w, r, &patch) {
		return
	}

	space, err := h.lifecycle.Reconfigure(r.Context(), chi.URLParam(r, "spaceID"), patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, space)
}

// HandleApplyDelta handles POST /api/spaces/{spaceID}/delta
func (h *Handler) HandleApplyDelta(w http.ResponseWriter, r *http.Request) {
	var req spaces.ApplyDeltaRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.SpaceID = chi.URLParam(r, "spaceID")

	space, err := h.balances.ApplyDelta(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, space)
}

type setBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
	Reason  string          `json:"reason"`
}

// HandleSetBalance handles PUT /api/spaces/{spaceID}/balance
func (h *Handler) HandleSetBalance(w http.ResponseWriter, r *http.Request) {
	var req setBalanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	space, err := h.balances.SetAbsoluteBalance(r.Context(), chi.URLParam(r, "spaceID"), req.Balance, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, space)
}

// HandleFreeze handles POST /api/spaces/{spaceID}/freeze
func (h *Handler) HandleFreeze(w http.ResponseWriter, r *http.Request) {
	space, err := h.freeze.Freeze(r.Context(), chi.URLParam(r, "spaceID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, space)
}

// HandleUnfreeze handles POST /api/spaces/{spaceID}/unfreeze
func (h *Handler) HandleUnfreeze(w http.ResponseWriter, r *http.Request) {
	space, err := h.freeze.Unfreeze(r.Context(), chi.URLParam(r, "spaceID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, space)
}

// HandleGetEntries handles GET /api/spaces/{spaceID}/entries
func (h *Handler) HandleGetEntries(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.window(w, r)
	if !ok {
		return
	}

	entries, err := h.balances.GetEntries(r.Context(), chi.URLParam(r, "spaceID"), start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []*spaces.LedgerEntry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// HandleGetReport handles GET /api/spaces/{spaceID}/report
func (h *Handler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	start, end, ok := h.window(w, r)
	if !ok {
		return
	}

	report, err := h.analytics.ComputeReport(r.Context(), chi.URLParam(r, "spaceID"), start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// HandleTransfer handles POST /api/transfers
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	var req spaces.TransferRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.transfers.Transfer(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// window reads ?start and ?end (RFC3339). end defaults to now and start to
// thirty days before end.
func (h *Handler) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	query := r.URL.Query()

	end := h.now().UTC()
	if v := query.Get("end"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, &spaces.ValidationError{Field: "end", Message: "must be an RFC3339 timestamp"})
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}

	start := end.Add(-defaultReportWindow)
	if v := query.Get("start"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeError(w, &spaces.ValidationError{Field: "start", Message: "must be an RFC3339 timestamp"})
			return time.Time{}, time.Time{}, false
		}
		start = parsed
	}

	return start, end, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		h.writeError(w, &spaces.ValidationError{Field: "body", Message: err.Error()})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := spaces.ErrorKind(err)

	status := http.StatusInternalServerError
	switch kind {
	case "validation":
		status = http.StatusBadRequest
	case "not_found":
		status = http.StatusNotFound
	case "state", "conflict":
		status = http.StatusConflict
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
		message = "internal error"
	}

	h.writeJSON(w, status, map[string]string{
		"error": message,
		"kind":  kind,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
