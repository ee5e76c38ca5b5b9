package hrest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/usecase"
)

type ReconciliationRestHandler struct {
	reconciliationUC *usecase.ReconciliationUsecase
	balanceUC        *usecase.BalanceUsecase
	ledgerUC         *usecase.LedgerUsecase
	transactionUC    *usecase.TransactionUsecase
	ready            func() bool
	logger           *zap.Logger
}

func NewReconciliationRestHandler(
	reconciliationUC *usecase.ReconciliationUsecase,
	balanceUC *usecase.BalanceUsecase,
	ledgerUC *usecase.LedgerUsecase,
	transactionUC *usecase.TransactionUsecase,
	ready func() bool,
	logger *zap.Logger,
) *ReconciliationRestHandler {
	return &ReconciliationRestHandler{
		reconciliationUC: reconciliationUC,
		balanceUC:        balanceUC,
		ledgerUC:         ledgerUC,
		transactionUC:    transactionUC,
		ready:            ready,
		logger:           logger,
	}
}

// ============================================
// OPERATOR ACTIONS
// ============================================

func (h *ReconciliationRestHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("sweep requested", zap.String("admin", adminSubject(r.Context())))

	report, err := h.reconciliationUC.Sweep(r.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrSweepInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		if report == nil {
			h.handleUsecaseError(w, err)
			return
		}
		// partial run, still report what was done
		h.logger.Warn("sweep ended early", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ReconciliationRestHandler) ReconcileTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	result, err := h.reconciliationUC.ReconcileOne(r.Context(), id)
	if err != nil {
		h.handleUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ReconciliationRestHandler) RequeueTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "transaction id is required")
		return
	}

	if err := h.reconciliationUC.Requeue(r.Context(), id); err != nil {
		h.handleUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"transaction_id":        id,
		"reconciliation_status": string(domain.ReconciliationPending),
	})
}

func (h *ReconciliationRestHandler) GetTransactionStatus(w http.ResponseWriter, r *http.Request) {
	txn, err := h.reconciliationUC.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (h *ReconciliationRestHandler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req usecase.RecordTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.transactionUC.Record(r.Context(), req)
	if err != nil {
		if result == nil {
			h.handleUsecaseError(w, err)
			return
		}
		// stored, but inline reconciliation failed; the sweep retries it
		h.logger.Warn("inline reconciliation failed",
			zap.String("transaction_id", result.Transaction.ID),
			zap.Error(err))
		writeJSON(w, http.StatusAccepted, result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ============================================
// READ MODELS
// ============================================

func (h *ReconciliationRestHandler) GetPosting(w http.ResponseWriter, r *http.Request) {
	posting, err := h.ledgerUC.GetPosting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posting)
}

func (h *ReconciliationRestHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledgerUC.ListAccounts(r.Context())
	if err != nil {
		h.handleUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *ReconciliationRestHandler) GetMerchantBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := h.balanceUC.GetMerchantBalance(r.Context(), q.Get("merchant_id"), q.Get("location_id"))
	if err != nil {
		h.handleUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ReconciliationRestHandler) GetFeeBalances(w http.ResponseWriter, r *http.Request) {
	view, err := h.balanceUC.GetFeeBalances(r.Context())
	if err != nil {
		h.handleUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ReconciliationRestHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.EntryFilter{
		TransactionID: optional(q.Get("transaction_id")),
		MerchantID:    optional(q.Get("merchant_id")),
		LocationID:    optional(q.Get("location_id")),
		AccountID:     optional(q.Get("account_id")),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	if filter.From, err = timeParam(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from, expected RFC3339")
		return
	}
	if filter.To, err = timeParam(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to, expected RFC3339")
		return
	}

	entries, err := h.ledgerUC.ListEntries(r.Context(), filter)
	if err != nil {
		h.handleUsecaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *ReconciliationRestHandler) Health(w http.ResponseWriter, r *http.Request) {
	ready := h.ready == nil || h.ready()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]bool{"ready": ready})
}

// handleUsecaseError maps domain errors to HTTP statuses.
func (h *ReconciliationRestHandler) handleUsecaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyFinalized),
		errors.Is(err, domain.ErrTransactionNotCompleted):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvariantViolation),
		errors.Is(err, domain.ErrLedgerImbalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrTransientStorage):
		writeError(w, http.StatusServiceUnavailable, "temporary storage failure, retry later")
	case errors.Is(err, domain.ErrAccountMissing):
		writeError(w, http.StatusServiceUnavailable, "ledger accounts are not seeded yet, retry later")
	default:
		h.logger.Error("unhandled usecase error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func timeParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
