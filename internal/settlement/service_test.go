package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/cashsettle"
	"github.com/Caskiuz/nemymarket.git/internal/heldfunds"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/Caskiuz/nemymarket.git/internal/orders"
	"github.com/Caskiuz/nemymarket.git/internal/rates"
	"github.com/Caskiuz/nemymarket.git/internal/wallets"
)

type fixture struct {
	svc  *Service
	w    *wallets.MemWallets
	o    *orders.MemOrders
	held *heldfunds.HFService
	hf   *heldfunds.MemHeldFunds
}

func newFixture() fixture {
	w := wallets.NewMemWallets()
	hf := heldfunds.NewMemHeldFunds()
	o := orders.NewMemOrders(hf)
	held := heldfunds.NewHFService(hf, w)
	rp := rates.NewStatic(models.DefaultCommissionRates)
	cash := cashsettle.NewCSService(w, o, rp)
	return fixture{
		svc:  NewService(o, held, cash, rp, 24*time.Hour),
		w:    w,
		o:    o,
		held: held,
		hf:   hf,
	}
}

func cardEvent(orderID string) models.OrderDeliveredEvent {
	return models.OrderDeliveredEvent{
		OrderID:       orderID,
		BusinessID:    "biz-1",
		DriverID:      "drv-1",
		PaymentMethod: models.PaymentCard,
		Total:         10_000,
		Subtotal:      8_000,
		DeliveryFee:   2_000,
		DeliveredAt:   time.Now(),
	}
}

func TestHandleDeliveredCard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.svc.HandleDelivered(ctx, cardEvent("order-1")); err != nil {
		t.Fatalf("HandleDelivered: %v", err)
	}

	hf, err := f.hf.Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("held fund not booked: %v", err)
	}
	if hf.Total() != 10_000 {
		t.Fatalf("held fund does not conserve total: %+v", hf)
	}
	if hf.Status != models.HeldFundHeld {
		t.Fatalf("held fund status = %s", hf.Status)
	}

	of, _ := f.o.Get(ctx, "order-1")
	if of.PlatformFee != 1_500 || of.BusinessEarnings != 7_000 || of.DeliveryEarnings != 1_500 {
		t.Fatalf("stamped earnings = %d/%d/%d", of.PlatformFee, of.BusinessEarnings, of.DeliveryEarnings)
	}
	if of.PlatformFee+of.BusinessEarnings+of.DeliveryEarnings != of.Total {
		t.Fatal("stamped earnings do not conserve total")
	}
}

func TestHandleDeliveredTwiceIsOneSettlement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ev := cardEvent("order-2")

	if err := f.svc.HandleDelivered(ctx, ev); err != nil {
		t.Fatalf("HandleDelivered: %v", err)
	}
	if err := f.svc.HandleDelivered(ctx, ev); err != nil {
		t.Fatalf("second HandleDelivered: %v", err)
	}

	biz, _ := f.w.GetWallet(ctx, "biz-1")
	if biz.PendingBalance != 7_000 {
		t.Fatalf("business pending after replay = %d, want 7000", biz.PendingBalance)
	}
	trxs, _ := f.w.Transactions(ctx, "biz-1")
	if len(trxs) != 1 {
		t.Fatalf("business has %d transactions after replay, want 1", len(trxs))
	}
}

func TestConfirmPaymentReplaysIdempotently(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	ev := cardEvent("order-3")

	if err := f.svc.HandleDelivered(ctx, ev); err != nil {
		t.Fatalf("HandleDelivered: %v", err)
	}
	// The processor webhook arrives after the event was already handled.
	if err := f.svc.ConfirmPayment(ctx, "order-3", 10_000, PaymentStatusSucceeded); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	drv, _ := f.w.GetWallet(ctx, "drv-1")
	if drv.PendingBalance != 1_500 {
		t.Fatalf("driver pending after webhook replay = %d, want 1500", drv.PendingBalance)
	}
}

func TestConfirmPaymentValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.svc.ConfirmPayment(ctx, "missing", 10, PaymentStatusSucceeded); !errors.Is(err, models.ErrOrderNotFound) {
		t.Fatalf("unknown order err = %v, want ErrOrderNotFound", err)
	}

	if err := f.svc.HandleDelivered(ctx, cardEvent("order-4")); err != nil {
		t.Fatalf("HandleDelivered: %v", err)
	}
	if err := f.svc.ConfirmPayment(ctx, "order-4", 9_999, PaymentStatusSucceeded); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("amount mismatch err = %v, want ErrInvalidAmount", err)
	}
	// Non-success status is logged, not settled, not an error.
	if err := f.svc.ConfirmPayment(ctx, "order-4", 10_000, "failed"); err != nil {
		t.Fatalf("failed-status confirmation: %v", err)
	}
}

func TestHandleDeliveredRejectsBadEvents(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	bad := cardEvent("order-5")
	bad.Subtotal = 5_000 // breaks subtotal + fee == total
	if err := f.svc.HandleDelivered(ctx, bad); !errors.Is(err, models.ErrInvalidEvent) {
		t.Fatalf("inconsistent totals err = %v, want ErrInvalidEvent", err)
	}

	bad = cardEvent("order-6")
	bad.PaymentMethod = "crypto"
	if err := f.svc.HandleDelivered(ctx, bad); !errors.Is(err, models.ErrInvalidEvent) {
		t.Fatalf("unknown payment method err = %v, want ErrInvalidEvent", err)
	}

	bad = cardEvent("")
	if err := f.svc.HandleDelivered(ctx, bad); !errors.Is(err, models.ErrInvalidEvent) {
		t.Fatalf("missing order id err = %v, want ErrInvalidEvent", err)
	}
}

func TestReconcileStale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// An order row exists but the hold was never booked (crash between
	// the upsert and the hold).
	ev := cardEvent("order-7")
	ev.DeliveredAt = time.Now().Add(-time.Hour)
	if err := f.o.UpsertDelivered(ctx, ev); err != nil {
		t.Fatalf("UpsertDelivered: %v", err)
	}

	fixed, err := f.svc.ReconcileStale(ctx, 10*time.Minute, 100)
	if err != nil {
		t.Fatalf("ReconcileStale: %v", err)
	}
	if fixed != 1 {
		t.Fatalf("fixed = %d, want 1", fixed)
	}
	if _, err = f.hf.Get(ctx, "order-7"); err != nil {
		t.Fatalf("held fund missing after reconcile: %v", err)
	}

	// Nothing left to fix on the second pass.
	fixed, err = f.svc.ReconcileStale(ctx, 10*time.Minute, 100)
	if err != nil {
		t.Fatalf("second ReconcileStale: %v", err)
	}
	if fixed != 0 {
		t.Fatalf("fixed on clean ledger = %d, want 0", fixed)
	}
}

func TestCashOrderRoutedToCashEngine(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ev := models.OrderDeliveredEvent{
		OrderID:       "order-8",
		BusinessID:    "biz-1",
		DriverID:      "drv-1",
		PaymentMethod: models.PaymentCash,
		Total:         14_000,
		Subtotal:      11_500,
		DeliveryFee:   2_500,
		DeliveredAt:   time.Now(),
	}
	if err := f.svc.HandleDelivered(ctx, ev); err != nil {
		t.Fatalf("HandleDelivered: %v", err)
	}
	drv, _ := f.w.GetWallet(ctx, "drv-1")
	if drv.Balance != 2_500 || drv.CashOwed != 11_500 {
		t.Fatalf("driver wallet after cash delivery = %+v", drv)
	}
	if _, err := f.hf.Get(ctx, "order-8"); !errors.Is(err, models.ErrHeldFundNotFound) {
		t.Fatal("cash order must not book a held fund")
	}

	// A replayed event is swallowed at this level and books nothing.
	if err := f.svc.HandleDelivered(ctx, ev); err != nil {
		t.Fatalf("replayed HandleDelivered: %v", err)
	}
	drv, _ = f.w.GetWallet(ctx, "drv-1")
	if drv.Balance != 2_500 || drv.CashOwed != 11_500 {
		t.Fatalf("replayed cash delivery changed wallet: %+v", drv)
	}
}
