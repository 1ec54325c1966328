package database

import (
	"context"
	"fmt"
	"sync"

	"dadchain/internal/chain"
)

// MemoryLog keeps the transaction log in process. It backs the memory
// storage driver and tests.
type MemoryLog struct {
	mu      sync.RWMutex
	records []chain.Record
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Commit(ctx context.Context, rec *chain.Record) error {
	return m.Append(ctx, rec)
}

func (m *MemoryLog) Append(_ context.Context, rec *chain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if want := uint64(len(m.records)) + 1; rec.Seq != want {
		if rec.Seq < want {
			return fmt.Errorf("%w: seq %d", ErrDuplicateRecord, rec.Seq)
		}
		return fmt.Errorf("failed to append transaction %d: expected seq %d", rec.Seq, want)
	}

	cp := *rec
	cp.Args = append([]byte(nil), rec.Args...)
	m.records = append(m.records, cp)
	return nil
}

func (m *MemoryLog) Each(ctx context.Context, fn func(*chain.Record) error) error {
	m.mu.RLock()
	records := append([]chain.Record(nil), m.records...)
	m.mu.RUnlock()

	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryLog) Count(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.records)), nil
}
