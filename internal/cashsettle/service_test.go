package cashsettle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/Caskiuz/nemymarket.git/internal/orders"
	"github.com/Caskiuz/nemymarket.git/internal/rates"
	"github.com/Caskiuz/nemymarket.git/internal/wallets"
)

func newService() (*CSService, *wallets.MemWallets, *orders.MemOrders) {
	w := wallets.NewMemWallets()
	o := orders.NewMemOrders(nil)
	s := NewCSService(w, o, rates.NewStatic(models.DefaultCommissionRates))
	return s, w, o
}

func cashEvent() models.OrderDeliveredEvent {
	return models.OrderDeliveredEvent{
		OrderID:       "order-1",
		BusinessID:    "biz-1",
		DriverID:      "drv-1",
		PaymentMethod: models.PaymentCash,
		Total:         14_000,
		Subtotal:      11_500,
		DeliveryFee:   2_500,
		DeliveredAt:   time.Now(),
	}
}

func TestRecordCashDeliveryExample(t *testing.T) {
	s, w, o := newService()
	ctx := context.Background()
	ev := cashEvent()

	if err := o.UpsertDelivered(ctx, ev); err != nil {
		t.Fatalf("UpsertDelivered: %v", err)
	}
	if err := s.RecordCashDelivery(ctx, ev); err != nil {
		t.Fatalf("RecordCashDelivery: %v", err)
	}

	drv, _ := w.GetWallet(ctx, "drv-1")
	if drv.Balance != 2_500 {
		t.Fatalf("driver balance = %d, want 2500 (delivery fee kept immediately)", drv.Balance)
	}
	if drv.CashOwed != 11_500 {
		t.Fatalf("cashOwed = %d, want 11500 (product base 10000 + commission 1500)", drv.CashOwed)
	}
	if drv.PendingBalance != 0 {
		t.Fatalf("cash rail must not touch pending balance, got %d", drv.PendingBalance)
	}

	of, _ := o.Get(ctx, "order-1")
	if !of.CashCollected || of.CashSettled {
		t.Fatalf("order flags = collected %v settled %v", of.CashCollected, of.CashSettled)
	}
	if of.PlatformFee != 1_500 || of.BusinessEarnings != 10_000 || of.DeliveryEarnings != 2_500 {
		t.Fatalf("stamped earnings = %d/%d/%d", of.PlatformFee, of.BusinessEarnings, of.DeliveryEarnings)
	}

	trxs, _ := w.Transactions(ctx, "drv-1")
	byType := map[models.TransactionType]models.Transaction{}
	for _, trx := range trxs {
		byType[trx.Type] = trx
	}
	if byType[models.TxCashDebtBusiness].Amount != 10_000 || byType[models.TxCashDebtBusiness].Status != models.TxStatusPending {
		t.Fatalf("business debt trx = %+v", byType[models.TxCashDebtBusiness])
	}
	if byType[models.TxCashDebtPlatform].Amount != 1_500 || byType[models.TxCashDebtPlatform].Status != models.TxStatusPending {
		t.Fatalf("platform debt trx = %+v", byType[models.TxCashDebtPlatform])
	}
}

func TestRecordCashDeliveryIdempotent(t *testing.T) {
	s, w, o := newService()
	ctx := context.Background()
	ev := cashEvent()

	if err := o.UpsertDelivered(ctx, ev); err != nil {
		t.Fatalf("UpsertDelivered: %v", err)
	}
	if err := s.RecordCashDelivery(ctx, ev); err != nil {
		t.Fatalf("RecordCashDelivery: %v", err)
	}
	if err := s.RecordCashDelivery(ctx, ev); !errors.Is(err, models.ErrCashAlreadyCollected) {
		t.Fatalf("second RecordCashDelivery err = %v, want ErrCashAlreadyCollected", err)
	}

	drv, _ := w.GetWallet(ctx, "drv-1")
	if drv.Balance != 2_500 || drv.CashOwed != 11_500 {
		t.Fatalf("replayed delivery changed wallet: %+v", drv)
	}
	trxs, _ := w.Transactions(ctx, "drv-1")
	if len(trxs) != 4 {
		t.Fatalf("got %d transactions after replay, want 4", len(trxs))
	}
}

func TestSettleCashDebtMonotonic(t *testing.T) {
	s, w, o := newService()
	ctx := context.Background()
	ev := cashEvent()

	if err := o.UpsertDelivered(ctx, ev); err != nil {
		t.Fatalf("UpsertDelivered: %v", err)
	}
	if err := s.RecordCashDelivery(ctx, ev); err != nil {
		t.Fatalf("RecordCashDelivery: %v", err)
	}

	settled, err := s.SettleCashDebt(ctx, "drv-1", 4_000)
	if err != nil {
		t.Fatalf("SettleCashDebt: %v", err)
	}
	if settled != 4_000 {
		t.Fatalf("settled = %d, want 4000", settled)
	}
	drv, _ := w.GetWallet(ctx, "drv-1")
	if drv.CashOwed != 7_500 || drv.Balance != 6_500 {
		t.Fatalf("wallet after partial settle = %+v", drv)
	}

	// Over-remitting clamps to the outstanding debt and stamps the order.
	settled, err = s.SettleCashDebt(ctx, "drv-1", 100_000, "order-1")
	if err != nil {
		t.Fatalf("SettleCashDebt: %v", err)
	}
	if settled != 7_500 {
		t.Fatalf("settled = %d, want 7500", settled)
	}
	drv, _ = w.GetWallet(ctx, "drv-1")
	if drv.CashOwed != 0 || drv.Balance != 14_000 {
		t.Fatalf("wallet after full settle = %+v", drv)
	}
	of, _ := o.Get(ctx, "order-1")
	if !of.CashSettled {
		t.Fatal("order not marked cash settled")
	}
}

func TestRecordCashDeliveryUnknownOrder(t *testing.T) {
	s, _, _ := newService()
	if err := s.RecordCashDelivery(context.Background(), cashEvent()); err == nil {
		t.Fatal("expected error for unknown order")
	}
}
