package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/models"
	"github.com/abkawan/backoffice-ledger/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler is for handling api requests
type Handler struct {
	accounts     *service.AccountService
	transactions *service.TransactionService
	ledger       *service.Ledger
	stats        *service.StatsService
	pingers      []Pinger
	validate     *validator.Validate
	logger       *zap.Logger
}

// Services groups what the handlers call into.
type Services struct {
	Accounts     *service.AccountService
	Transactions *service.TransactionService
	Ledger       *service.Ledger
	Stats        *service.StatsService
}

func NewHandler(svc Services, logger *zap.Logger, pingers ...Pinger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		accounts:     svc.Accounts,
		transactions: svc.Transactions,
		ledger:       svc.Ledger,
		stats:        svc.Stats,
		pingers:      pingers,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		logger:       logger,
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// for error response
func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

func statusForCode(code string) int {
	switch code {
	case service.CodeAccountNotFound, service.CodeDestinationNotFound, service.CodeTransactionNotFound:
		return http.StatusNotFound
	case service.CodePersistenceFailure, "":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// handleServiceError maps service errors to HTTP responses
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var serr *service.Error
	if !errors.As(err, &serr) {
		h.logger.Error("unexpected error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error", service.CodePersistenceFailure)
		return
	}

	status := statusForCode(serr.Code)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("code", serr.Code), zap.Error(err))
	}
	respondError(w, status, serr.Message, serr.Code)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload", service.CodeInvalidRequest)
		return false
	}
	return true
}

func (h *Handler) validateRequest(w http.ResponseWriter, req any) bool {
	err := h.validate.Struct(req)
	if err == nil {
		return true
	}

	message := "invalid request"
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		message = "invalid value for " + verrs[0].Field() + ": failed " + verrs[0].Tag()
	}
	respondError(w, http.StatusBadRequest, message, service.CodeInvalidRequest)
	return false
}

// account creation
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if !h.decode(w, r, &req) || !h.validateRequest(w, req) {
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, models.NewAccountResponse(account))
}

// handles account retrieval
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

// ListAccounts supports customerId, accountType and status filters.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.AccountFilter{
		CustomerID: q.Get("customerId"),
		Type:       models.AccountType(q.Get("accountType")),
		Status:     models.AccountStatus(q.Get("status")),
	}

	accounts, err := h.accounts.ListAccounts(r.Context(), filter)
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

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateAccountRequest
	if !h.decode(w, r, &req) || !h.validateRequest(w, req) {
		return
	}

	account, err := h.accounts.UpdateAccount(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.NewAccountResponse(account))
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.accounts.GetBalance(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balance)
}

// GetAccountTransactions lists every transaction owned by an account.
func (h *Handler) GetAccountTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transactions.GetTransactionsByAccountID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

// handles transaction creation
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.TransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	// amount is checked before anything else
	if err := service.ValidateAmount(req.Amount); err != nil {
		h.handleServiceError(w, err)
		return
	}
	if !h.validateRequest(w, req) {
		return
	}

	tx, err := h.ledger.Execute(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, tx)
}

// GetTransaction handles transaction retrieval
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.transactions.GetTransaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, tx)
}

// ListTransactions handles filtered, paged transaction listing
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.TransactionFilter{
		AccountID: q.Get("accountId"),
		Type:      models.TransactionType(q.Get("type")),
		Status:    models.TransactionStatus(q.Get("status")),
	}

	var err error
	if filter.StartDate, err = parseDate(q.Get("startDate"), false); err != nil {
		respondError(w, http.StatusBadRequest, "invalid startDate", service.CodeInvalidRequest)
		return
	}
	if filter.EndDate, err = parseDate(q.Get("endDate"), true); err != nil {
		respondError(w, http.StatusBadRequest, "invalid endDate", service.CodeInvalidRequest)
		return
	}

	// default limit is set to 10
	filter.Limit = service.DefaultPageSize
	if parsed, err := strconv.Atoi(q.Get("limit")); err == nil && parsed > 0 {
		filter.Limit = min(parsed, service.MaxPageSize)
	}
	if parsed, err := strconv.Atoi(q.Get("offset")); err == nil && parsed >= 0 {
		filter.Offset = parsed
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		filter.Offset = (page - 1) * filter.Limit
	}

	page, err := h.transactions.ListTransactions(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) UpdateTransactionStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStatusRequest
	if !h.decode(w, r, &req) || !h.validateRequest(w, req) {
		return
	}

	tx, err := h.transactions.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

// DeleteTransaction reverses the transaction's balance effect and removes it.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	reversal, err := h.ledger.Reverse(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reversal)
}

// handles health check
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseDate(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// sets up the API routes
func SetupRoutes(r *mux.Router, h *Handler) {
	r.Use(recoveryMiddleware(h.logger), loggingMiddleware(h.logger))

	// Health check (check if API is working)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Account routes
	r.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	r.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	r.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	r.HandleFunc("/accounts/{id}", h.UpdateAccount).Methods("PUT")
	r.HandleFunc("/accounts/{id}", h.DeleteAccount).Methods("DELETE")
	r.HandleFunc("/accounts/{id}/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/accounts/{id}/transactions", h.GetAccountTransactions).Methods("GET")

	// Transaction routes
	r.HandleFunc("/transactions", h.CreateTransaction).Methods("POST")
	r.HandleFunc("/transactions", h.ListTransactions).Methods("GET")
	r.HandleFunc("/transactions/stats/summary", h.TransactionStats).Methods("GET")
	r.HandleFunc("/transactions/{id}", h.GetTransaction).Methods("GET")
	r.HandleFunc("/transactions/{id}/status", h.UpdateTransactionStatus).Methods("PUT")
	r.HandleFunc("/transactions/{id}", h.DeleteTransaction).Methods("DELETE")

	// Report routes
	r.HandleFunc("/reports/dashboard", h.Dashboard).Methods("GET")
	r.HandleFunc("/reports/financial-summary", h.FinancialSummary).Methods("GET")
	r.HandleFunc("/reports/account-analytics", h.AccountAnalytics).Methods("GET")
	r.HandleFunc("/reports/transaction-analytics", h.TransactionAnalytics).Methods("GET")
	r.HandleFunc("/reports/top-accounts", h.TopAccounts).Methods("GET")
}
