package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	InsertEntryQuery = `
			INSERT INTO audit_log (id, source, reference, payload, created_at)
			VALUES ($1, $2, $3, $4, $5);`
	PurgeEntriesQuery = `DELETE FROM audit_log WHERE created_at < $1;`
)

// Entry is one recorded inbound call. The raw payload is kept so a
// disputed settlement can be traced back to what the processor or the
// operator actually sent.
type Entry struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Reference string    `json:"reference"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

type DatabaseAudit interface {
	Record(ctx context.Context, source, reference, payload string) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type DBAudit struct {
	db *sql.DB
	mu *sync.RWMutex
}

func NewDBAudit(db *sql.DB, mu *sync.RWMutex) (*DBAudit, error) {
	return &DBAudit{db: db, mu: mu}, nil
}

func (a *DBAudit) Record(ctx context.Context, source, reference, payload string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.db.ExecContext(ctx, InsertEntryQuery,
		uuid.NewString(), source, reference, payload, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (a *DBAudit) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	res, err := a.db.ExecContext(ctx, PurgeEntriesQuery, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit entries: %w", err)
	}
	return res.RowsAffected()
}
