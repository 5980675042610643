package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemAudit is the in-memory DatabaseAudit used in tests and when no DSN
// is configured.
type MemAudit struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemAudit() *MemAudit {
	return &MemAudit{}
}

func (m *MemAudit) Record(_ context.Context, source, reference, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{
		ID:        uuid.NewString(),
		Source:    source,
		Reference: reference,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *MemAudit) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	var purged int64
	for _, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return purged, nil
}

func (m *MemAudit) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
