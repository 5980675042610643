package cashsettle

import (
	"context"
	"errors"
	"fmt"

	"github.com/Caskiuz/nemymarket.git/internal/commission"
	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/Caskiuz/nemymarket.git/internal/orders"
	"github.com/Caskiuz/nemymarket.git/internal/rates"
	"github.com/Caskiuz/nemymarket.git/internal/wallets"
	"go.uber.org/zap"
)

type CSService struct {
	wConn wallets.DatabaseWallets
	oConn orders.DatabaseOrders
	rates rates.Provider
}

func NewCSService(wConn wallets.DatabaseWallets, oConn orders.DatabaseOrders, rates rates.Provider) *CSService {
	return &CSService{wConn: wConn, oConn: oConn, rates: rates}
}

func (s *CSService) RecordCashDelivery(ctx context.Context, ev models.OrderDeliveredEvent) error {
	of, err := s.oConn.Get(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("cash delivery %s: %w", ev.OrderID, err)
	}
	// Order-level guard on top of the transaction-log guard: once the
	// commissions are stamped the computation cannot be repeated.
	if of.CashCollected {
		return fmt.Errorf("cash delivery %s: %w", ev.OrderID, models.ErrCashAlreadyCollected)
	}

	productBase, platformCommission, err := commission.CashSplit(ev.Subtotal, s.rates.Rates(ctx))
	if err != nil {
		return fmt.Errorf("cash delivery %s: %w", ev.OrderID, err)
	}
	debt := productBase + platformCommission

	movements := []models.Movement{
		{
			// The courier keeps the delivery fee right away: no card was
			// charged, so this money was never at fraud risk.
			UserID:       ev.DriverID,
			OrderID:      ev.OrderID,
			Type:         models.TxDeliveryFee,
			Amount:       ev.DeliveryFee,
			BalanceDelta: ev.DeliveryFee,
			EarnedDelta:  ev.DeliveryFee,
			Status:       models.TxStatusCompleted,
			Description:  "delivery fee for cash order",
		},
		{
			// The rest of the collected cash is a liability, not a
			// debit: cashOwed is its own counter so balance keeps
			// showing gross earnings.
			UserID:        ev.DriverID,
			OrderID:       ev.OrderID,
			Type:          models.TxCashCollected,
			Amount:        debt,
			CashOwedDelta: debt,
			Status:        models.TxStatusCompleted,
			Description:   "cash collected from customer",
		},
		{
			UserID:      ev.DriverID,
			OrderID:     ev.OrderID,
			Type:        models.TxCashDebtBusiness,
			Amount:      productBase,
			Status:      models.TxStatusPending,
			Description: "owed to business for cash order",
		},
		{
			UserID:      ev.DriverID,
			OrderID:     ev.OrderID,
			Type:        models.TxCashDebtPlatform,
			Amount:      platformCommission,
			Status:      models.TxStatusPending,
			Description: "owed to platform for cash order",
		},
	}
	for _, m := range movements {
		if _, err = s.wConn.Apply(ctx, m); err != nil && !errors.Is(err, models.ErrAlreadyProcessed) {
			return fmt.Errorf("cash delivery %s: movement %s: %w", ev.OrderID, m.Type, err)
		}
	}

	err = s.oConn.StampEarnings(ctx, ev.OrderID, platformCommission, productBase, ev.DeliveryFee, true)
	if err != nil {
		return fmt.Errorf("cash delivery %s: %w", ev.OrderID, err)
	}
	return nil
}

func (s *CSService) SettleCashDebt(ctx context.Context, driverID string, amount models.Money, orderIDs ...string) (models.Money, error) {
	settled, err := s.wConn.SettleCash(ctx, driverID, amount)
	if err != nil {
		return 0, fmt.Errorf("settle cash debt %s: %w", driverID, err)
	}
	logger.Log.Info("cash debt settled",
		zap.String("driver", driverID),
		zap.Int64("requested", int64(amount)),
		zap.Int64("settled", int64(settled)))

	for _, orderID := range orderIDs {
		if err = s.oConn.SetCashSettled(ctx, orderID); err != nil {
			logger.Log.Error("failed to mark order cash settled",
				zap.String("order", orderID), zap.Error(err))
		}
	}
	return settled, nil
}
