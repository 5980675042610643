package withdrawals

import (
	"context"
	"errors"
	"testing"

	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/Caskiuz/nemymarket.git/internal/transferservice"
	"github.com/Caskiuz/nemymarket.git/internal/wallets"
)

type stubTransfer struct {
	result transferservice.Result
	err    error
	calls  int
}

func (s *stubTransfer) Transfer(_ context.Context, _ models.Withdrawal) (transferservice.Result, error) {
	s.calls++
	if s.err != nil {
		return transferservice.Result{}, s.err
	}
	return s.result, nil
}

func newService(t *testing.T, balance models.Money) (*WDService, *wallets.MemWallets, *stubTransfer) {
	t.Helper()
	w := wallets.NewMemWallets()
	if balance > 0 {
		_, err := w.Apply(context.Background(), models.Movement{
			UserID:       "drv-1",
			OrderID:      "seed-1",
			Type:         models.TxIncome,
			Amount:       balance,
			BalanceDelta: balance,
			EarnedDelta:  balance,
			Status:       models.TxStatusCompleted,
		})
		if err != nil {
			t.Fatalf("seed wallet: %v", err)
		}
	}
	transfer := &stubTransfer{result: transferservice.Result{ID: "tr-1", Status: transferservice.TransferStatusAccepted}}
	return NewWDService(NewMemWithdrawals(), w, transfer), w, transfer
}

func TestRequestValidation(t *testing.T) {
	s, _, _ := newService(t, 10_000)
	ctx := context.Background()

	if _, err := s.Request(ctx, "drv-1", 0, "000123", ""); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("zero amount err = %v", err)
	}
	if _, err := s.Request(ctx, "drv-1", 1_000, "", ""); !errors.Is(err, models.ErrNoBankAccount) {
		t.Fatalf("missing bank account err = %v", err)
	}
	if _, err := s.Request(ctx, "drv-1", 10_001, "000123", ""); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("over-balance err = %v", err)
	}
	if _, err := s.Request(ctx, "drv-1", 10_000, "000123", ""); err != nil {
		t.Fatalf("full-balance request: %v", err)
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	s, w, transfer := newService(t, 10_000)
	ctx := context.Background()

	wd, err := s.Request(ctx, "drv-1", 4_000, "000123", "Banco Azteca")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if wd.Status != models.WithdrawalPending {
		t.Fatalf("fresh withdrawal status = %s", wd.Status)
	}
	if err = s.Approve(ctx, wd.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err = s.Process(ctx, wd.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, _ := s.conn.Get(ctx, wd.ID)
	if got.Status != models.WithdrawalPaid || got.TransferID != "tr-1" {
		t.Fatalf("processed withdrawal = %+v", got)
	}
	wallet, _ := w.GetWallet(ctx, "drv-1")
	if wallet.Balance != 6_000 || wallet.TotalWithdrawn != 4_000 {
		t.Fatalf("wallet after payout = %+v", wallet)
	}
	if transfer.calls != 1 {
		t.Fatalf("transfer called %d times", transfer.calls)
	}

	// Paid is terminal.
	if err = s.Process(ctx, wd.ID); !errors.Is(err, models.ErrWrongWithdrawalState) {
		t.Fatalf("double process err = %v", err)
	}
	if transfer.calls != 1 {
		t.Fatalf("double process reached the bank, calls = %d", transfer.calls)
	}
}

func TestRejectOnlyFromPending(t *testing.T) {
	s, _, _ := newService(t, 10_000)
	ctx := context.Background()

	wd, err := s.Request(ctx, "drv-1", 4_000, "000123", "")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err = s.Reject(ctx, wd.ID, "bank account mismatch"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	got, _ := s.conn.Get(ctx, wd.ID)
	if got.Status != models.WithdrawalRejected || got.FailReason != "bank account mismatch" {
		t.Fatalf("rejected withdrawal = %+v", got)
	}
	if err = s.Approve(ctx, wd.ID); !errors.Is(err, models.ErrWrongWithdrawalState) {
		t.Fatalf("approve after reject err = %v", err)
	}
	if err = s.Approve(ctx, "no-such-id"); !errors.Is(err, models.ErrWithdrawalNotFound) {
		t.Fatalf("approve unknown err = %v", err)
	}
}

func TestFailedTransferReversesDebit(t *testing.T) {
	s, w, transfer := newService(t, 10_000)
	transfer.err = transferservice.ErrTransferRejected
	ctx := context.Background()

	wd, err := s.Request(ctx, "drv-1", 4_000, "000123", "")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err = s.Approve(ctx, wd.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err = s.Process(ctx, wd.ID); err != nil {
		t.Fatalf("Process: %v", err)
	}

	got, _ := s.conn.Get(ctx, wd.ID)
	if got.Status != models.WithdrawalFailed || got.FailReason == "" {
		t.Fatalf("failed withdrawal = %+v", got)
	}
	wallet, _ := w.GetWallet(ctx, "drv-1")
	if wallet.Balance != 10_000 || wallet.TotalWithdrawn != 0 {
		t.Fatalf("wallet after reversal = %+v", wallet)
	}

	trxs, _ := w.Transactions(ctx, "drv-1")
	var sawRefund bool
	for _, trx := range trxs {
		if trx.OrderID == wd.ID && trx.Type == models.TxRefund {
			sawRefund = true
		}
	}
	if !sawRefund {
		t.Fatal("reversal left no refund entry in the transaction log")
	}
}

// flakyStore fails the next transition to the failed status, then
// recovers.
type flakyStore struct {
	*MemWithdrawals
	failOnce bool
}

func (f *flakyStore) UpdateStatusIf(ctx context.Context, id string, from []models.WithdrawalStatus, to models.WithdrawalStatus, transferID, reason string) error {
	if to == models.WithdrawalFailed && f.failOnce {
		f.failOnce = false
		return errors.New("storage unavailable")
	}
	return f.MemWithdrawals.UpdateStatusIf(ctx, id, from, to, transferID, reason)
}

func TestFailedMarkErrorKeepsDebitUntilRetry(t *testing.T) {
	w := wallets.NewMemWallets()
	ctx := context.Background()
	_, err := w.Apply(ctx, models.Movement{
		UserID:       "drv-1",
		OrderID:      "seed-1",
		Type:         models.TxIncome,
		Amount:       10_000,
		BalanceDelta: 10_000,
		EarnedDelta:  10_000,
		Status:       models.TxStatusCompleted,
	})
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	transfer := &stubTransfer{err: transferservice.ErrTransferRejected}
	s := NewWDService(&flakyStore{MemWithdrawals: NewMemWithdrawals(), failOnce: true}, w, transfer)

	wd, err := s.Request(ctx, "drv-1", 4_000, "000123", "")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err = s.Approve(ctx, wd.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	// Transfer fails and the failed mark cannot land: the withdrawal
	// stays approved with the debit still booked.
	if err = s.Process(ctx, wd.ID); err == nil {
		t.Fatal("expected Process to surface the store error")
	}
	got, _ := s.conn.Get(ctx, wd.ID)
	if got.Status != models.WithdrawalApproved {
		t.Fatalf("withdrawal after store error = %+v", got)
	}
	wallet, _ := w.GetWallet(ctx, "drv-1")
	if wallet.Balance != 6_000 || wallet.TotalWithdrawn != 4_000 {
		t.Fatalf("wallet after store error = %+v", wallet)
	}

	// The retry converges: failed mark, single reversal, no second debit.
	if err = s.Process(ctx, wd.ID); err != nil {
		t.Fatalf("retried Process: %v", err)
	}
	got, _ = s.conn.Get(ctx, wd.ID)
	if got.Status != models.WithdrawalFailed {
		t.Fatalf("withdrawal after retry = %+v", got)
	}
	wallet, _ = w.GetWallet(ctx, "drv-1")
	if wallet.Balance != 10_000 || wallet.TotalWithdrawn != 0 {
		t.Fatalf("wallet after retry = %+v", wallet)
	}
	trxs, _ := w.Transactions(ctx, "drv-1")
	var refunds int
	for _, trx := range trxs {
		if trx.OrderID == wd.ID && trx.Type == models.TxRefund {
			refunds++
		}
	}
	if refunds != 1 {
		t.Fatalf("got %d reversal entries, want 1", refunds)
	}
}

func TestProcessApprovedDrainsQueue(t *testing.T) {
	s, _, transfer := newService(t, 10_000)
	ctx := context.Background()

	first, _ := s.Request(ctx, "drv-1", 3_000, "000123", "")
	second, _ := s.Request(ctx, "drv-1", 2_000, "000123", "")
	third, _ := s.Request(ctx, "drv-1", 1_000, "000123", "")
	if err := s.Approve(ctx, first.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := s.Approve(ctx, second.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	done, err := s.ProcessApproved(ctx, 10)
	if err != nil {
		t.Fatalf("ProcessApproved: %v", err)
	}
	if done != 2 {
		t.Fatalf("done = %d, want 2", done)
	}
	if transfer.calls != 2 {
		t.Fatalf("transfer called %d times, want 2", transfer.calls)
	}
	got, _ := s.conn.Get(ctx, third.ID)
	if got.Status != models.WithdrawalPending {
		t.Fatalf("unapproved withdrawal touched: %+v", got)
	}
}

func TestPayoutWithDrainedBalanceFails(t *testing.T) {
	s, w, _ := newService(t, 10_000)
	ctx := context.Background()

	// Both pass the request-time balance check, but together exceed it.
	first, _ := s.Request(ctx, "drv-1", 7_000, "000123", "")
	second, _ := s.Request(ctx, "drv-1", 7_000, "000123", "")
	if err := s.Approve(ctx, first.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := s.Approve(ctx, second.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := s.Process(ctx, first.ID); err != nil {
		t.Fatalf("Process first: %v", err)
	}
	if err := s.Process(ctx, second.ID); err != nil {
		t.Fatalf("Process second: %v", err)
	}

	got, _ := s.conn.Get(ctx, second.ID)
	if got.Status != models.WithdrawalFailed {
		t.Fatalf("second withdrawal = %+v", got)
	}
	wallet, _ := w.GetWallet(ctx, "drv-1")
	if wallet.Balance != 3_000 || wallet.TotalWithdrawn != 7_000 {
		t.Fatalf("wallet = %+v", wallet)
	}
}
