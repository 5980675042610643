package heldfunds

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/models"
)

// MemHeldFunds is the in-memory DatabaseHeldFunds used in tests and when
// no DSN is configured.
type MemHeldFunds struct {
	mu    sync.Mutex
	funds map[string]models.HeldFund
}

func NewMemHeldFunds() *MemHeldFunds {
	return &MemHeldFunds{funds: make(map[string]models.HeldFund)}
}

func (m *MemHeldFunds) Insert(_ context.Context, hf models.HeldFund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.funds[hf.OrderID]; ok {
		return models.ErrHeldFundExists
	}
	m.funds[hf.OrderID] = hf
	return nil
}

func (m *MemHeldFunds) Get(_ context.Context, orderID string) (models.HeldFund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hf, ok := m.funds[orderID]
	if !ok {
		return models.HeldFund{}, models.ErrHeldFundNotFound
	}
	return hf, nil
}

func (m *MemHeldFunds) UpdateStatus(_ context.Context, orderID string, from []models.HeldFundStatus, to models.HeldFundStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	hf, ok := m.funds[orderID]
	if !ok {
		return models.ErrHeldFundNotFound
	}
	for _, s := range from {
		if hf.Status == s {
			hf.Status = to
			hf.UpdatedAt = time.Now()
			m.funds[orderID] = hf
			return nil
		}
	}
	return models.ErrWrongHeldFundState
}

func (m *MemHeldFunds) ListDue(_ context.Context, now time.Time, limit int) ([]models.HeldFund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := make([]models.HeldFund, 0)
	for _, hf := range m.funds {
		if hf.Status == models.HeldFundHeld && !hf.ReleaseAfter.After(now) {
			due = append(due, hf)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ReleaseAfter.Before(due[j].ReleaseAfter) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}
