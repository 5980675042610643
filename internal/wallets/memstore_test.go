package wallets

import (
	"context"
	"errors"
	"testing"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

func credit(userID, orderID string, t models.TransactionType, amount models.Money) models.Movement {
	return models.Movement{
		UserID:       userID,
		OrderID:      orderID,
		Type:         t,
		Amount:       amount,
		BalanceDelta: amount,
		EarnedDelta:  amount,
		Status:       models.TxStatusCompleted,
	}
}

func TestApplyCreatesWalletLazily(t *testing.T) {
	st := NewMemWallets()
	ctx := context.Background()

	if _, err := st.GetWallet(ctx, "driver-1"); !errors.Is(err, models.ErrWalletNotFound) {
		t.Fatalf("GetWallet before credit: err = %v, want ErrWalletNotFound", err)
	}
	if _, err := st.Apply(ctx, credit("driver-1", "order-1", models.TxDeliveryFee, 2_500)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	w, err := st.GetWallet(ctx, "driver-1")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if w.Balance != 2_500 || w.TotalEarned != 2_500 {
		t.Fatalf("wallet = %+v, want balance 2500", w)
	}
}

func TestApplyIdempotencyGuard(t *testing.T) {
	st := NewMemWallets()
	ctx := context.Background()

	if _, err := st.Apply(ctx, credit("biz-1", "order-7", models.TxIncome, 7_000)); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	_, err := st.Apply(ctx, credit("biz-1", "order-7", models.TxIncome, 7_000))
	if !errors.Is(err, models.ErrAlreadyProcessed) {
		t.Fatalf("second Apply err = %v, want ErrAlreadyProcessed", err)
	}
	w, _ := st.GetWallet(ctx, "biz-1")
	if w.Balance != 7_000 {
		t.Fatalf("balance after replay = %d, want 7000", w.Balance)
	}
	trxs, err := st.Transactions(ctx, "biz-1")
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(trxs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(trxs))
	}

	// A failed attempt does not block a retry with the same pair.
	f := credit("biz-1", "order-8", models.TxIncome, 500)
	f.Status = models.TxStatusFailed
	if _, err = st.Apply(ctx, f); err != nil {
		t.Fatalf("failed Apply: %v", err)
	}
	if _, err = st.Apply(ctx, credit("biz-1", "order-8", models.TxIncome, 500)); err != nil {
		t.Fatalf("retry after failed attempt: %v", err)
	}
}

func TestApplyRejectsNegativeBalances(t *testing.T) {
	st := NewMemWallets()
	ctx := context.Background()

	if _, err := st.Apply(ctx, credit("u1", "o1", models.TxIncome, 1_000)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	_, err := st.Apply(ctx, models.Movement{
		UserID:       "u1",
		Type:         models.TxWithdrawal,
		Amount:       -2_000,
		BalanceDelta: -2_000,
		Status:       models.TxStatusPending,
	})
	if !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("overdraw err = %v, want ErrInsufficientFunds", err)
	}
	_, err = st.Apply(ctx, models.Movement{UserID: "u1", PendingDelta: -1, Status: models.TxStatusCompleted, Type: models.TxRefund})
	if !errors.Is(err, models.ErrNegativeBalance) {
		t.Fatalf("negative pending err = %v, want ErrNegativeBalance", err)
	}
	w, _ := st.GetWallet(ctx, "u1")
	if w.Balance != 1_000 || w.PendingBalance != 0 {
		t.Fatalf("rejected movement changed state: %+v", w)
	}
}

func TestCompleteHeldRoundTrip(t *testing.T) {
	st := NewMemWallets()
	ctx := context.Background()

	_, err := st.Apply(ctx, models.Movement{
		UserID:       "biz-2",
		OrderID:      "order-9",
		Type:         models.TxIncome,
		Amount:       7_000,
		PendingDelta: 7_000,
		Status:       models.TxStatusPending,
	})
	if err != nil {
		t.Fatalf("hold Apply: %v", err)
	}
	if err = st.CompleteHeld(ctx, "biz-2", "order-9", models.TxIncome, 7_000); err != nil {
		t.Fatalf("CompleteHeld: %v", err)
	}
	w, _ := st.GetWallet(ctx, "biz-2")
	if w.Balance != 7_000 || w.PendingBalance != 0 || w.TotalEarned != 7_000 {
		t.Fatalf("wallet after release = %+v", w)
	}
	trxs, _ := st.Transactions(ctx, "biz-2")
	if trxs[0].Status != models.TxStatusCompleted {
		t.Fatalf("transaction status = %s, want completed", trxs[0].Status)
	}
	// A replay finds the transaction already completed and no-ops.
	if err = st.CompleteHeld(ctx, "biz-2", "order-9", models.TxIncome, 7_000); err != nil {
		t.Fatalf("replayed CompleteHeld: %v", err)
	}
	w, _ = st.GetWallet(ctx, "biz-2")
	if w.Balance != 7_000 || w.TotalEarned != 7_000 {
		t.Fatalf("replayed completion moved money twice: %+v", w)
	}
	// A completion for a hold that was never booked is still an error.
	if err = st.CompleteHeld(ctx, "biz-2", "order-99", models.TxIncome, 7_000); !errors.Is(err, models.ErrNoData) {
		t.Fatalf("unbooked CompleteHeld err = %v, want ErrNoData", err)
	}
}

func TestDropHeldRecordsRefund(t *testing.T) {
	st := NewMemWallets()
	ctx := context.Background()

	_, err := st.Apply(ctx, models.Movement{
		UserID:       "drv-2",
		OrderID:      "order-10",
		Type:         models.TxDeliveryFee,
		Amount:       1_500,
		PendingDelta: 1_500,
		Status:       models.TxStatusPending,
	})
	if err != nil {
		t.Fatalf("hold Apply: %v", err)
	}
	if err = st.DropHeld(ctx, "drv-2", "order-10", models.TxDeliveryFee, 1_500); err != nil {
		t.Fatalf("DropHeld: %v", err)
	}
	w, _ := st.GetWallet(ctx, "drv-2")
	if w.Balance != 0 || w.PendingBalance != 0 || w.TotalEarned != 0 {
		t.Fatalf("wallet after refund = %+v", w)
	}
	trxs, _ := st.Transactions(ctx, "drv-2")
	var sawFailed, sawRefund bool
	for _, trx := range trxs {
		if trx.Type == models.TxDeliveryFee && trx.Status == models.TxStatusFailed {
			sawFailed = true
		}
		if trx.Type == models.TxRefund && trx.Amount == -1_500 {
			sawRefund = true
		}
	}
	if !sawFailed || !sawRefund {
		t.Fatalf("audit trail incomplete: failed=%v refund=%v", sawFailed, sawRefund)
	}

	// A replay no-ops and books no second refund entry.
	if err = st.DropHeld(ctx, "drv-2", "order-10", models.TxDeliveryFee, 1_500); err != nil {
		t.Fatalf("replayed DropHeld: %v", err)
	}
	after, _ := st.Transactions(ctx, "drv-2")
	if len(after) != len(trxs) {
		t.Fatalf("replayed DropHeld added transactions: %d -> %d", len(trxs), len(after))
	}
}

func TestSettleCashClamps(t *testing.T) {
	st := NewMemWallets()
	ctx := context.Background()

	_, err := st.Apply(ctx, models.Movement{
		UserID:        "drv-3",
		OrderID:       "order-11",
		Type:          models.TxCashCollected,
		Amount:        11_500,
		CashOwedDelta: 11_500,
		Status:        models.TxStatusCompleted,
	})
	if err != nil {
		t.Fatalf("debt Apply: %v", err)
	}

	settled, err := st.SettleCash(ctx, "drv-3", 5_000)
	if err != nil {
		t.Fatalf("SettleCash: %v", err)
	}
	if settled != 5_000 {
		t.Fatalf("settled = %d, want 5000", settled)
	}
	w, _ := st.GetWallet(ctx, "drv-3")
	if w.CashOwed != 6_500 || w.Balance != 5_000 {
		t.Fatalf("wallet after partial settle = %+v", w)
	}

	// Over-settle clamps to the remaining debt.
	settled, err = st.SettleCash(ctx, "drv-3", 50_000)
	if err != nil {
		t.Fatalf("SettleCash: %v", err)
	}
	if settled != 6_500 {
		t.Fatalf("settled = %d, want 6500", settled)
	}
	w, _ = st.GetWallet(ctx, "drv-3")
	if w.CashOwed != 0 || w.Balance != 11_500 {
		t.Fatalf("wallet after full settle = %+v", w)
	}

	// No debt left: nothing moves.
	settled, err = st.SettleCash(ctx, "drv-3", 100)
	if err != nil || settled != 0 {
		t.Fatalf("settle with zero debt = (%d, %v), want (0, nil)", settled, err)
	}

	if _, err = st.SettleCash(ctx, "drv-3", 0); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("settle zero amount err = %v, want ErrInvalidAmount", err)
	}
}

func TestSettleCashCompletesDebtTransactions(t *testing.T) {
	st := NewMemWallets()
	ctx := context.Background()

	for _, typ := range []models.TransactionType{models.TxCashDebtBusiness, models.TxCashDebtPlatform} {
		_, err := st.Apply(ctx, models.Movement{
			UserID:  "drv-4",
			OrderID: "order-12",
			Type:    typ,
			Amount:  1_000,
			Status:  models.TxStatusPending,
		})
		if err != nil {
			t.Fatalf("Apply %s: %v", typ, err)
		}
	}
	_, err := st.Apply(ctx, models.Movement{
		UserID:        "drv-4",
		CashOwedDelta: 2_000,
		Type:          models.TxCashCollected,
		Amount:        2_000,
		OrderID:       "order-12",
		Status:        models.TxStatusCompleted,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if _, err = st.SettleCash(ctx, "drv-4", 2_000); err != nil {
		t.Fatalf("SettleCash: %v", err)
	}
	trxs, _ := st.Transactions(ctx, "drv-4")
	for _, trx := range trxs {
		if trx.Status == models.TxStatusPending {
			t.Fatalf("transaction %s/%s still pending after full settlement", trx.Type, trx.OrderID)
		}
	}
}
