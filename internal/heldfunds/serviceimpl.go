package heldfunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/Caskiuz/nemymarket.git/internal/wallets"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type HFService struct {
	conn  DatabaseHeldFunds
	wConn wallets.DatabaseWallets
}

func NewHFService(conn DatabaseHeldFunds, wConn wallets.DatabaseWallets) *HFService {
	return &HFService{conn: conn, wConn: wConn}
}

// Hold books the card-rail split: a held fund row, pending credits for
// business and driver, and an immediate platform commission (the
// platform fee needs no anti-fraud protection against the earners).
// Replays are no-ops on every step, so a crashed hold can be re-driven
// by the reconcile job until it completes.
func (s *HFService) Hold(ctx context.Context, orderID, businessID, driverID string, split models.CommissionSplit, releaseAfter time.Time) error {
	hf := models.HeldFund{
		ID:             uuid.NewString(),
		OrderID:        orderID,
		BusinessID:     businessID,
		DriverID:       driverID,
		BusinessAmount: split.Business,
		DeliveryAmount: split.Driver,
		PlatformAmount: split.Platform,
		Status:         models.HeldFundHeld,
		ReleaseAfter:   releaseAfter,
		CreatedAt:      time.Now(),
	}
	err := s.conn.Insert(ctx, hf)
	if err != nil {
		if !errors.Is(err, models.ErrHeldFundExists) {
			return fmt.Errorf("hold %s: %w", orderID, err)
		}
		logger.Log.Debug("held fund already booked", zap.String("order", orderID))
	}

	movements := []models.Movement{
		{
			UserID:       businessID,
			OrderID:      orderID,
			Type:         models.TxIncome,
			Amount:       split.Business,
			PendingDelta: split.Business,
			Status:       models.TxStatusPending,
			Description:  "order earnings held for release",
		},
		{
			UserID:       driverID,
			OrderID:      orderID,
			Type:         models.TxDeliveryFee,
			Amount:       split.Driver,
			PendingDelta: split.Driver,
			Status:       models.TxStatusPending,
			Description:  "delivery fee held for release",
		},
		{
			UserID:       models.PlatformAccountID,
			OrderID:      orderID,
			Type:         models.TxCommission,
			Amount:       split.Platform,
			BalanceDelta: split.Platform,
			EarnedDelta:  split.Platform,
			Status:       models.TxStatusCompleted,
			Description:  "platform commission",
		},
	}
	for _, m := range movements {
		if _, err = s.wConn.Apply(ctx, m); err != nil && !errors.Is(err, models.ErrAlreadyProcessed) {
			return fmt.Errorf("hold %s: movement %s: %w", orderID, m.Type, err)
		}
	}
	return nil
}

// Release moves the held amounts into spendable balance. The status
// flips to released only after both wallet movements are in: a failure
// in between leaves the fund held, a retry re-drives both sides and the
// side that already completed no-ops.
func (s *HFService) Release(ctx context.Context, orderID string) error {
	hf, err := s.conn.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("release %s: %w", orderID, err)
	}
	switch hf.Status {
	case models.HeldFundHeld:
	case models.HeldFundReleased:
		logger.Log.Debug("held fund already released", zap.String("order", orderID))
		return nil
	default:
		logger.Log.Warn("release attempted from wrong state",
			zap.String("order", orderID),
			zap.String("status", string(hf.Status)))
		return fmt.Errorf("release %s: %w", orderID, models.ErrWrongHeldFundState)
	}

	if err = s.wConn.CompleteHeld(ctx, hf.BusinessID, orderID, models.TxIncome, hf.BusinessAmount); err != nil {
		logger.Log.Error("failed to release business earnings",
			zap.String("order", orderID), zap.Error(err))
		return fmt.Errorf("release %s: %w", orderID, err)
	}
	if err = s.wConn.CompleteHeld(ctx, hf.DriverID, orderID, models.TxDeliveryFee, hf.DeliveryAmount); err != nil {
		logger.Log.Error("failed to release delivery fee",
			zap.String("order", orderID), zap.Error(err))
		return fmt.Errorf("release %s: %w", orderID, err)
	}
	return s.settle(ctx, orderID, []models.HeldFundStatus{models.HeldFundHeld}, models.HeldFundReleased)
}

// settle flips the fund to its terminal status once the wallet movements
// are in. Losing the flip to a concurrent call that reached the same
// status is not an error.
func (s *HFService) settle(ctx context.Context, orderID string, from []models.HeldFundStatus, to models.HeldFundStatus) error {
	err := s.conn.UpdateStatus(ctx, orderID, from, to)
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrWrongHeldFundState) {
		if cur, getErr := s.conn.Get(ctx, orderID); getErr == nil && cur.Status == to {
			return nil
		}
	}
	return fmt.Errorf("settle %s to %s: %w", orderID, to, err)
}

// Dispute blocks release until the dispute is resolved. No balances move.
func (s *HFService) Dispute(ctx context.Context, orderID string) error {
	err := s.conn.UpdateStatus(ctx, orderID, []models.HeldFundStatus{models.HeldFundHeld}, models.HeldFundDisputed)
	if err != nil {
		logger.Log.Warn("dispute attempted from wrong state", zap.String("order", orderID), zap.Error(err))
		return fmt.Errorf("dispute %s: %w", orderID, err)
	}
	return nil
}

// Refund resolves a hold against one or both earners: a refunded party's
// held amount leaves pending balance (the money goes back to the
// customer outside this subsystem), a kept party's moves to balance as
// in Release. Valid only from held or disputed. As in Release, the
// status flips only after both wallet movements are in.
func (s *HFService) Refund(ctx context.Context, orderID string, refundBusiness, refundDriver bool) error {
	hf, err := s.conn.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("refund %s: %w", orderID, err)
	}
	target := models.HeldFundRefunded
	if !refundBusiness && !refundDriver {
		target = models.HeldFundReleased
	}
	if hf.Status == target {
		logger.Log.Debug("held fund already settled", zap.String("order", orderID))
		return nil
	}
	if hf.Status != models.HeldFundHeld && hf.Status != models.HeldFundDisputed {
		logger.Log.Warn("refund attempted from wrong state",
			zap.String("order", orderID),
			zap.String("status", string(hf.Status)))
		return fmt.Errorf("refund %s: %w", orderID, models.ErrWrongHeldFundState)
	}

	if refundBusiness {
		err = s.wConn.DropHeld(ctx, hf.BusinessID, orderID, models.TxIncome, hf.BusinessAmount)
	} else {
		err = s.wConn.CompleteHeld(ctx, hf.BusinessID, orderID, models.TxIncome, hf.BusinessAmount)
	}
	if err != nil {
		logger.Log.Error("failed to settle business side of refund",
			zap.String("order", orderID), zap.Error(err))
		return fmt.Errorf("refund %s: %w", orderID, err)
	}

	if refundDriver {
		err = s.wConn.DropHeld(ctx, hf.DriverID, orderID, models.TxDeliveryFee, hf.DeliveryAmount)
	} else {
		err = s.wConn.CompleteHeld(ctx, hf.DriverID, orderID, models.TxDeliveryFee, hf.DeliveryAmount)
	}
	if err != nil {
		logger.Log.Error("failed to settle driver side of refund",
			zap.String("order", orderID), zap.Error(err))
		return fmt.Errorf("refund %s: %w", orderID, err)
	}
	return s.settle(ctx, orderID,
		[]models.HeldFundStatus{models.HeldFundHeld, models.HeldFundDisputed}, target)
}

func (s *HFService) ListDue(ctx context.Context, now time.Time, limit int) ([]models.HeldFund, error) {
	return s.conn.ListDue(ctx, now, limit)
}
