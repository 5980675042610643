package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/cashsettle"
	"github.com/Caskiuz/nemymarket.git/internal/commission"
	"github.com/Caskiuz/nemymarket.git/internal/heldfunds"
	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/Caskiuz/nemymarket.git/internal/orders"
	"github.com/Caskiuz/nemymarket.git/internal/rates"
	"go.uber.org/zap"
)

const PaymentStatusSucceeded = "succeeded"

type Service struct {
	oConn   orders.DatabaseOrders
	held    heldfunds.HeldFundService
	cash    cashsettle.CashSettlementService
	rates   rates.Provider
	holdFor time.Duration
}

func NewService(oConn orders.DatabaseOrders, held heldfunds.HeldFundService, cash cashsettle.CashSettlementService, rates rates.Provider, holdFor time.Duration) *Service {
	return &Service{oConn: oConn, held: held, cash: cash, rates: rates, holdFor: holdFor}
}

func validateEvent(ev models.OrderDeliveredEvent) error {
	if ev.OrderID == "" || ev.BusinessID == "" || ev.DriverID == "" {
		return fmt.Errorf("missing identifiers: %w", models.ErrInvalidEvent)
	}
	if ev.PaymentMethod != models.PaymentCard && ev.PaymentMethod != models.PaymentCash {
		return fmt.Errorf("payment method %q: %w", ev.PaymentMethod, models.ErrInvalidEvent)
	}
	if ev.Total <= 0 || ev.Subtotal <= 0 || ev.DeliveryFee < 0 {
		return fmt.Errorf("non-positive amounts: %w", models.ErrInvalidEvent)
	}
	if ev.Subtotal+ev.DeliveryFee != ev.Total {
		return fmt.Errorf("subtotal %d + delivery fee %d != total %d: %w",
			ev.Subtotal, ev.DeliveryFee, ev.Total, models.ErrInvalidEvent)
	}
	return nil
}

func (s *Service) HandleDelivered(ctx context.Context, ev models.OrderDeliveredEvent) error {
	if err := validateEvent(ev); err != nil {
		return err
	}
	if err := s.oConn.UpsertDelivered(ctx, ev); err != nil {
		return fmt.Errorf("delivered %s: %w", ev.OrderID, err)
	}
	if ev.PaymentMethod == models.PaymentCash {
		err := s.cash.RecordCashDelivery(ctx, ev)
		if err != nil && !errors.Is(err, models.ErrCashAlreadyCollected) {
			return fmt.Errorf("delivered %s: %w", ev.OrderID, err)
		}
		return nil
	}
	return s.processCard(ctx, ev)
}

func (s *Service) processCard(ctx context.Context, ev models.OrderDeliveredEvent) error {
	split, err := commission.Split(ev.Total, s.rates.Rates(ctx))
	if err != nil {
		return fmt.Errorf("card order %s: %w", ev.OrderID, err)
	}
	releaseAfter := ev.DeliveredAt.Add(s.holdFor)
	if err = s.held.Hold(ctx, ev.OrderID, ev.BusinessID, ev.DriverID, split, releaseAfter); err != nil {
		return fmt.Errorf("card order %s: %w", ev.OrderID, err)
	}
	err = s.oConn.StampEarnings(ctx, ev.OrderID, split.Platform, split.Business, split.Driver, false)
	if err != nil {
		return fmt.Errorf("card order %s: %w", ev.OrderID, err)
	}
	return nil
}

// ConfirmPayment handles the processor's asynchronous confirmation
// callback. Replays and confirmations arriving after the event consumer
// already processed the order are no-ops via the movement guards.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string, amount models.Money, status string) error {
	of, err := s.oConn.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", orderID, err)
	}
	if of.PaymentMethod != models.PaymentCard {
		return fmt.Errorf("confirm %s: not a card order: %w", orderID, models.ErrInvalidEvent)
	}
	if status != PaymentStatusSucceeded {
		logger.Log.Warn("payment confirmation without success status",
			zap.String("order", orderID),
			zap.String("status", status))
		return nil
	}
	if amount != of.Total {
		logger.Log.Error("confirmation amount does not match order total",
			zap.String("order", orderID),
			zap.Int64("confirmed", int64(amount)),
			zap.Int64("total", int64(of.Total)))
		return fmt.Errorf("confirm %s: amount mismatch: %w", orderID, models.ErrInvalidAmount)
	}
	return s.processCard(ctx, of.Event())
}

func (s *Service) ReconcileStale(ctx context.Context, grace time.Duration, limit int) (int, error) {
	stale, err := s.oConn.ListUnheldCard(ctx, time.Now().Add(-grace), limit)
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}
	fixed := 0
	for _, of := range stale {
		if err = s.processCard(ctx, of.Event()); err != nil {
			logger.Log.Error("failed to reconcile stale order",
				zap.String("order", of.OrderID), zap.Error(err))
			continue
		}
		logger.Log.Info("reconciled stale card order", zap.String("order", of.OrderID))
		fixed++
	}
	return fixed, nil
}
