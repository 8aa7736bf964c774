package api

import (
	"net/http"
	"strconv"

	"github.com/abkawan/backoffice-ledger/internal/models"
	"github.com/abkawan/backoffice-ledger/internal/service"
)

const defaultTopAccounts = 10

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.stats.Dashboard(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// FinancialSummary accepts optional startDate and endDate bounds.
func (h *Handler) FinancialSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("startDate"), false)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid startDate", service.CodeInvalidRequest)
		return
	}
	end, err := parseDate(q.Get("endDate"), true)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid endDate", service.CodeInvalidRequest)
		return
	}

	sum, err := h.stats.FinancialSummary(r.Context(), start, end)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sum)
}

func (h *Handler) AccountAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.stats.AccountAnalytics(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// TransactionAnalytics reads the period query parameter: day, week, month or all.
func (h *Handler) TransactionAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.stats.TransactionAnalytics(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handler) TransactionStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats.TransactionStats(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

func (h *Handler) TopAccounts(w http.ResponseWriter, r *http.Request) {
	limit := defaultTopAccounts
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}

	accounts, err := h.stats.TopByBalance(r.Context(), limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response := make([]models.AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		response = append(response, models.NewAccountResponse(a))
	}
	respondJSON(w, http.StatusOK, response)
}
