package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/Caskiuz/nemymarket.git/internal/transferservice"
	"github.com/Caskiuz/nemymarket.git/internal/wallets"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WDService struct {
	conn     DatabaseWithdrawals
	wConn    wallets.DatabaseWallets
	transfer transferservice.TransferService
}

func NewWDService(conn DatabaseWithdrawals, wConn wallets.DatabaseWallets, transfer transferservice.TransferService) *WDService {
	return &WDService{conn: conn, wConn: wConn, transfer: transfer}
}

func (s *WDService) Request(ctx context.Context, userID string, amount models.Money, bankAccount, bankName string) (models.Withdrawal, error) {
	if amount <= 0 {
		return models.Withdrawal{}, models.ErrInvalidAmount
	}
	if bankAccount == "" {
		return models.Withdrawal{}, models.ErrNoBankAccount
	}
	wallet, err := s.wConn.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return models.Withdrawal{}, fmt.Errorf("withdrawal request %s: %w", userID, err)
	}
	if amount > wallet.Balance {
		return models.Withdrawal{}, models.ErrInsufficientFunds
	}

	w := models.Withdrawal{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Status:      models.WithdrawalPending,
		BankAccount: bankAccount,
		BankName:    bankName,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err = s.conn.Insert(ctx, w); err != nil {
		return models.Withdrawal{}, fmt.Errorf("withdrawal request %s: %w", userID, err)
	}
	logger.Log.Info("withdrawal requested",
		zap.String("withdrawal", w.ID),
		zap.String("user", userID),
		zap.Int64("amount", int64(amount)))
	return w, nil
}

func (s *WDService) Approve(ctx context.Context, id string) error {
	err := s.conn.UpdateStatusIf(ctx, id,
		[]models.WithdrawalStatus{models.WithdrawalPending}, models.WithdrawalApproved, "", "")
	if err != nil {
		return fmt.Errorf("approve withdrawal %s: %w", id, err)
	}
	logger.Log.Info("withdrawal approved", zap.String("withdrawal", id))
	return nil
}

func (s *WDService) Reject(ctx context.Context, id, reason string) error {
	err := s.conn.UpdateStatusIf(ctx, id,
		[]models.WithdrawalStatus{models.WithdrawalPending}, models.WithdrawalRejected, "", reason)
	if err != nil {
		return fmt.Errorf("reject withdrawal %s: %w", id, err)
	}
	logger.Log.Info("withdrawal rejected", zap.String("withdrawal", id), zap.String("reason", reason))
	return nil
}

// Process pays out one approved withdrawal. The debit is keyed on the
// withdrawal ID in the transaction log, so a crashed or replayed run
// cannot debit the wallet twice; the same ID goes to the transfer
// system as an idempotency key.
func (s *WDService) Process(ctx context.Context, id string) error {
	w, err := s.conn.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("process withdrawal %s: %w", id, err)
	}
	if w.Status != models.WithdrawalApproved {
		return fmt.Errorf("process withdrawal %s: status %s: %w", id, w.Status, models.ErrWrongWithdrawalState)
	}

	_, err = s.wConn.Apply(ctx, models.Movement{
		UserID:         w.UserID,
		OrderID:        w.ID,
		Type:           models.TxWithdrawal,
		Amount:         w.Amount,
		BalanceDelta:   -w.Amount,
		WithdrawnDelta: w.Amount,
		Status:         models.TxStatusCompleted,
		Description:    "withdrawal to bank account",
	})
	if errors.Is(err, models.ErrInsufficientFunds) {
		return s.fail(ctx, w, "insufficient funds at payout time")
	}
	if err != nil && !errors.Is(err, models.ErrAlreadyProcessed) {
		return fmt.Errorf("process withdrawal %s: %w", id, err)
	}

	result, err := s.transfer.Transfer(ctx, w)
	if err != nil {
		// The failed mark lands before the refund: a crash in between
		// leaves the debit booked against a failed withdrawal, never a
		// bank payout whose debit was already reversed.
		if failErr := s.fail(ctx, w, err.Error()); failErr != nil {
			return fmt.Errorf("process withdrawal %s: %w", id, failErr)
		}
		if refundErr := s.refund(ctx, w); refundErr != nil {
			return fmt.Errorf("process withdrawal %s: %w", id, refundErr)
		}
		return nil
	}

	err = s.conn.UpdateStatusIf(ctx, w.ID,
		[]models.WithdrawalStatus{models.WithdrawalApproved}, models.WithdrawalPaid, result.ID, "")
	if err != nil {
		return fmt.Errorf("process withdrawal %s: %w", id, err)
	}
	logger.Log.Info("withdrawal paid",
		zap.String("withdrawal", w.ID),
		zap.String("transfer", result.ID),
		zap.Int64("amount", int64(w.Amount)))
	return nil
}

// refund reverses the payout debit after a failed transfer. The refund
// shares the withdrawal ID, so reversing is as idempotent as debiting.
func (s *WDService) refund(ctx context.Context, w models.Withdrawal) error {
	_, err := s.wConn.Apply(ctx, models.Movement{
		UserID:         w.UserID,
		OrderID:        w.ID,
		Type:           models.TxRefund,
		Amount:         w.Amount,
		BalanceDelta:   w.Amount,
		WithdrawnDelta: -w.Amount,
		Status:         models.TxStatusCompleted,
		Description:    "withdrawal payout failed, funds returned",
	})
	if err != nil && !errors.Is(err, models.ErrAlreadyProcessed) {
		return err
	}
	return nil
}

func (s *WDService) fail(ctx context.Context, w models.Withdrawal, reason string) error {
	err := s.conn.UpdateStatusIf(ctx, w.ID,
		[]models.WithdrawalStatus{models.WithdrawalApproved}, models.WithdrawalFailed, "", reason)
	if err != nil {
		return fmt.Errorf("fail withdrawal %s: %w", w.ID, err)
	}
	logger.Log.Warn("withdrawal failed",
		zap.String("withdrawal", w.ID),
		zap.String("reason", reason))
	return nil
}

func (s *WDService) ProcessApproved(ctx context.Context, limit int) (int, error) {
	approved, err := s.conn.ListByStatus(ctx, models.WithdrawalApproved, limit)
	if err != nil {
		return 0, fmt.Errorf("process approved: %w", err)
	}
	done := 0
	for _, w := range approved {
		if err = s.Process(ctx, w.ID); err != nil {
			logger.Log.Error("failed to process withdrawal",
				zap.String("withdrawal", w.ID), zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}

func (s *WDService) UserWithdrawals(ctx context.Context, userID string) ([]models.Withdrawal, error) {
	withdrawals, err := s.conn.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("withdrawals for %s: %w", userID, err)
	}
	if len(withdrawals) == 0 {
		return nil, models.ErrNoData
	}
	return withdrawals, nil
}
