package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
	"reconciliation-service/internal/pkg/money"
	"reconciliation-service/internal/repository"
	"reconciliation-service/pkg/utils"
)

type RecordTransactionRequest struct {
	ID          string               `json:"id,omitempty"`
	MerchantID  string               `json:"merchant_id"`
	LocationID  string               `json:"location_id"`
	PaymentType domain.PaymentType   `json:"payment_type"`
	Status      domain.PaymentStatus `json:"status"`
	TotalAmount money.Money          `json:"total_amount"`
	TaxAmount   money.Money          `json:"tax_amount"`
	TipAmount   money.Money          `json:"tip_amount"`
}

func (r RecordTransactionRequest) validate() error {
	if strings.TrimSpace(r.MerchantID) == "" || strings.TrimSpace(r.LocationID) == "" {
		return fmt.Errorf("merchant_id and location_id are required: %w", domain.ErrInvalidInput)
	}
	switch r.PaymentType {
	case domain.PaymentTypeCardPresent, domain.PaymentTypeManual, domain.PaymentTypeOnline, domain.PaymentTypeCash:
	default:
		return fmt.Errorf("unknown payment_type %q: %w", r.PaymentType, domain.ErrInvalidInput)
	}
	switch r.Status {
	case domain.PaymentInitiated, domain.PaymentPending, domain.PaymentCompleted, domain.PaymentCancelled:
	default:
		return fmt.Errorf("unknown status %q: %w", r.Status, domain.ErrInvalidInput)
	}
	for name, m := range map[string]money.Money{"total_amount": r.TotalAmount, "tax_amount": r.TaxAmount, "tip_amount": r.TipAmount} {
		if m.IsNegative() {
			return fmt.Errorf("%s must not be negative: %w", name, domain.ErrInvalidInput)
		}
	}
	return nil
}

type RecordTransactionResult struct {
	Transaction    *domain.Transaction     `json:"transaction"`
	Reconciliation *domain.ReconcileResult `json:"reconciliation,omitempty"`
}

// TransactionUsecase prices incoming payments and hands completed ones to
// reconciliation straight away.
type TransactionUsecase struct {
	txnRepo    repository.TransactionRepository
	reconciler *ReconciliationUsecase
	schedule   money.FeeSchedule
	ids        utils.IDGenerator
	logger     *zap.Logger
	now        func() time.Time
}

func NewTransactionUsecase(
	txnRepo repository.TransactionRepository,
	reconciler *ReconciliationUsecase,
	schedule money.FeeSchedule,
	ids utils.IDGenerator,
	logger *zap.Logger,
) *TransactionUsecase {
	return &TransactionUsecase{
		txnRepo:    txnRepo,
		reconciler: reconciler,
		schedule:   schedule,
		ids:        ids,
		logger:     logger,
		now:        time.Now,
	}
}

// Record finalizes fees and stores the transaction. For a completed payment
// it then reconciles inline; a reconciliation error is returned alongside the
// stored transaction, which the sweep will pick up again if retryable.
func (uc *TransactionUsecase) Record(ctx context.Context, req RecordTransactionRequest) (*RecordTransactionResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	txn := &domain.Transaction{
		ID:                      req.ID,
		MerchantID:              req.MerchantID,
		LocationID:              req.LocationID,
		PaymentType:             req.PaymentType,
		Status:                  req.Status,
		TotalAmount:             req.TotalAmount,
		TaxAmount:               req.TaxAmount,
		TipAmount:               req.TipAmount,
		ReconciliationStatus:    domain.ReconciliationPending,
		ReconciliationRetryable: true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if txn.ID == "" {
		txn.ID = uc.ids.NewEntityID()
	}

	if err := txn.Finalize(uc.schedule, now); err != nil {
		return nil, err
	}
	if err := uc.txnRepo.Create(ctx, txn); err != nil {
		return nil, err
	}

	uc.logger.Info("transaction recorded",
		zap.String("transaction_id", txn.ID),
		zap.String("payment_type", string(txn.PaymentType)),
		zap.String("gross", txn.Gross().String()),
		zap.String("processor_fee", txn.ProcessorFee.String()),
		zap.String("platform_fee", txn.PlatformFee.String()),
		zap.String("net_amount", txn.NetAmount.String()),
	)

	result := &RecordTransactionResult{Transaction: txn}
	if !txn.IsCompleted() || uc.reconciler == nil {
		return result, nil
	}

	rec, err := uc.reconciler.ReconcileOne(ctx, txn.ID)
	if stored, getErr := uc.txnRepo.GetByID(ctx, txn.ID); getErr == nil {
		result.Transaction = stored
	}
	result.Reconciliation = rec
	return result, err
}
