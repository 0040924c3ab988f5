package syncengine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eaur/qbsync/internal/records"
)

// MemoryRecordStore is an in-memory RecordStore used by tests and local
// development. It mirrors the claim semantics of the database store: claims
// select claimable records in id order and flip them to IN_PROGRESS.
type MemoryRecordStore struct {
	mu   sync.Mutex
	recs map[int64]*records.Record
}

// NewMemoryRecordStore creates an in-memory record store seeded with the
// given records.
func NewMemoryRecordStore(seed []records.Record) *MemoryRecordStore {
	m := &MemoryRecordStore{recs: make(map[int64]*records.Record, len(seed))}
	for i := range seed {
		rec := seed[i]
		if rec.Status == "" {
			rec.Status = records.StatusNotSynced
		}
		m.recs[rec.ID] = &rec
	}
	return m
}

func (m *MemoryRecordStore) CountByStatus(_ context.Context, kind records.EntityKind) (map[records.SyncStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[records.SyncStatus]int64)
	for _, rec := range m.recs {
		if rec.Kind == kind {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

func (m *MemoryRecordStore) ListUnsynced(_ context.Context, kind records.EntityKind, limit, offset int) ([]records.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []records.Record
	for _, rec := range m.sorted(kind) {
		if rec.Status != records.StatusSynced {
			out = append(out, *rec)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRecordStore) Claim(_ context.Context, kind records.EntityKind, limit int) ([]records.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []records.Record
	for _, rec := range m.sorted(kind) {
		if len(out) >= limit {
			break
		}
		if claimable(rec.Status) {
			rec.Status = records.StatusInProgress
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *MemoryRecordStore) ClaimOne(_ context.Context, kind records.EntityKind, id int64) (*records.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok || rec.Kind != kind {
		return nil, fmt.Errorf("%w: %s/%d", ErrRecordNotFound, kind, id)
	}
	rec.Status = records.StatusInProgress
	cp := *rec
	return &cp, nil
}

func (m *MemoryRecordStore) MarkSynced(_ context.Context, id int64, remoteID, pushedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	rec.Status = records.StatusSynced
	rec.RemoteID = &remoteID
	rec.PushedBy = pushedBy
	rec.LastError = ""
	return nil
}

func (m *MemoryRecordStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	rec.Status = records.StatusFailed
	rec.LastError = errMsg
	return nil
}

func (m *MemoryRecordStore) Release(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if rec, ok := m.recs[id]; ok && rec.Status == records.StatusInProgress {
			rec.Status = records.StatusNotSynced
		}
	}
	return nil
}

// Get returns a snapshot of one record, for test assertions.
func (m *MemoryRecordStore) Get(id int64) (records.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return records.Record{}, false
	}
	return *rec, true
}

func (m *MemoryRecordStore) sorted(kind records.EntityKind) []*records.Record {
	out := make([]*records.Record, 0, len(m.recs))
	for _, rec := range m.recs {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func claimable(status records.SyncStatus) bool {
	for _, s := range records.ClaimableStatuses() {
		if status == s {
			return true
		}
	}
	return false
}
