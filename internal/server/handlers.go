package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/scoring"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/store"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/suppliers"
)

// Error codes.
const (
	codeBadRequest = "bad_request"
	codeNotFound   = "not_found"
	codeInternal   = "internal"
)

type handlers struct {
	store   Store
	logger  *zap.Logger
	version string
}

type responseMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type apiResponse struct {
	Data any          `json:"data"`
	Meta responseMeta `json:"meta"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiError struct {
	Error errorDetail  `json:"error"`
	Meta  responseMeta `json:"meta"`
}

// ScorecardSummary is the list view of a stored scorecard.
type ScorecardSummary struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	SKUs      []string  `json:"skus"`
	Scores    int       `json:"scores"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "version": h.version})
}

func (h *handlers) listSuppliers(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	list, err := h.store.ListSuppliers(r.Context(), category)
	if err != nil {
		h.internalError(w, r, "list suppliers", err)
		return
	}
	if list == nil {
		list = []suppliers.Supplier{}
	}
	writeJSON(w, r, http.StatusOK, list)
}

func (h *handlers) createSupplier(w http.ResponseWriter, r *http.Request) {
	var sup suppliers.Supplier
	if err := decodeJSON(w, r, &sup); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := sup.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if err := h.store.UpsertSupplier(r.Context(), sup); err != nil {
		h.internalError(w, r, "upsert supplier", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sup)
}

func (h *handlers) listScorecards(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, codeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	cards, err := h.store.ListScorecards(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "list scorecards", err)
		return
	}

	out := make([]ScorecardSummary, 0, len(cards))
	for _, c := range cards {
		skus := c.SKUs()
		if skus == nil {
			skus = []string{}
		}
		out = append(out, ScorecardSummary{
			SessionID: c.SessionID(),
			CreatedAt: c.CreatedAt(),
			SKUs:      skus,
			Scores:    len(c.Scores()),
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *handlers) getScorecard(w http.ResponseWriter, r *http.Request) {
	card, ok := h.scorecard(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, card)
}

func (h *handlers) getRanking(w http.ResponseWriter, r *http.Request) {
	card, ok := h.scorecard(w, r)
	if !ok {
		return
	}
	sku := chi.URLParam(r, "sku")
	ranking := card.Ranking(sku)
	if len(ranking) == 0 {
		writeError(w, r, http.StatusNotFound, codeNotFound, "no scores for sku "+sku)
		return
	}
	writeJSON(w, r, http.StatusOK, ranking)
}

func (h *handlers) scorecard(w http.ResponseWriter, r *http.Request) (*scoring.Scorecard, bool) {
	id := chi.URLParam(r, "id")
	card, err := h.store.GetScorecard(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "scorecard "+id+" not found")
		return nil, false
	}
	if err != nil {
		h.internalError(w, r, "get scorecard", err)
		return nil, false
	}
	return card, true
}

func (h *handlers) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, zap.Error(err), zap.String("request_id", middleware.GetReqID(r.Context())))
	writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Data: data,
		Meta: responseMeta{RequestID: middleware.GetReqID(r.Context()), Timestamp: time.Now().UTC()},
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{
		Error: errorDetail{Code: code, Message: message},
		Meta:  responseMeta{RequestID: middleware.GetReqID(r.Context()), Timestamp: time.Now().UTC()},
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}
