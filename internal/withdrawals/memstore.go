package withdrawals

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

// MemWithdrawals is the in-memory DatabaseWithdrawals used in tests and
// when no DSN is configured.
type MemWithdrawals struct {
	mu          sync.Mutex
	withdrawals map[string]models.Withdrawal
}

func NewMemWithdrawals() *MemWithdrawals {
	return &MemWithdrawals{withdrawals: make(map[string]models.Withdrawal)}
}

func (m *MemWithdrawals) Insert(_ context.Context, w models.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawals[w.ID] = w
	return nil
}

func (m *MemWithdrawals) Get(_ context.Context, id string) (models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return models.Withdrawal{}, models.ErrWithdrawalNotFound
	}
	return w, nil
}

func (m *MemWithdrawals) UpdateStatusIf(_ context.Context, id string, from []models.WithdrawalStatus, to models.WithdrawalStatus, transferID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.withdrawals[id]
	if !ok {
		return models.ErrWithdrawalNotFound
	}
	for _, s := range from {
		if w.Status == s {
			w.Status = to
			w.TransferID = transferID
			w.FailReason = reason
			w.UpdatedAt = time.Now()
			m.withdrawals[id] = w
			return nil
		}
	}
	return models.ErrWrongWithdrawalState
}

func (m *MemWithdrawals) ListByStatus(_ context.Context, status models.WithdrawalStatus, limit int) ([]models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]models.Withdrawal, 0)
	for _, w := range m.withdrawals {
		if w.Status == status {
			matched = append(matched, w)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemWithdrawals) ListByUser(_ context.Context, userID string) ([]models.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := make([]models.Withdrawal, 0)
	for _, w := range m.withdrawals {
		if w.UserID == userID {
			matched = append(matched, w)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return matched, nil
}
