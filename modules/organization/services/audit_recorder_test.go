package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
)

type stubAuditStore struct {
	mu      sync.Mutex
	records []types.AuditRecord
	err     error
	done    chan struct{}
}

func (s *stubAuditStore) AppendAuditRecord(ctx context.Context, tenantID string, record types.AuditRecord) error {
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	if s.done != nil {
		s.done <- struct{}{}
	}
	return s.err
}

func (s *stubAuditStore) ListAuditRecords(ctx context.Context, tenantID string, code string) ([]types.AuditRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.AuditRecord
	for _, r := range s.records {
		if r.Code == code {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubAuditStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func TestAuditRecorderPersistsQueuedRecords(t *testing.T) {
	store := &stubAuditStore{done: make(chan struct{}, 4)}
	rec := NewAuditRecorder(store, zap.NewNop(), time.Second, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Record("tenant-1", types.AuditRecord{Code: "ENG", OperationType: types.OperationCreate, Success: true})
	rec.Record("tenant-1", types.AuditRecord{Code: "ENG", OperationType: types.OperationSuspend, Success: true})

	for i := 0; i < 2; i++ {
		select {
		case <-store.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("audit record %d never persisted", i)
		}
	}
	if store.count() != 2 {
		t.Fatalf("persisted %d records, want 2", store.count())
	}
	if rec.Failures() != 0 {
		t.Fatalf("failures = %d", rec.Failures())
	}
}

func TestAuditRecorderCountsFailures(t *testing.T) {
	store := &stubAuditStore{err: errors.New("pg down"), done: make(chan struct{}, 1)}
	rec := NewAuditRecorder(store, zap.NewNop(), time.Second, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Record("tenant-1", types.AuditRecord{Code: "ENG", OperationType: types.OperationDelete, Success: true})
	select {
	case <-store.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("audit write never attempted")
	}
	// The failure count is bumped after the store call returns.
	deadline := time.After(2 * time.Second)
	for rec.Failures() == 0 {
		select {
		case <-deadline:
			t.Fatalf("failure never counted")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestAuditRecorderDropsWhenQueueFull(t *testing.T) {
	store := &stubAuditStore{}
	// No Run loop: the queue fills and stays full.
	rec := NewAuditRecorder(store, zap.NewNop(), time.Second, 1)
	rec.Record("tenant-1", types.AuditRecord{Code: "A", OperationType: types.OperationCreate})
	rec.Record("tenant-1", types.AuditRecord{Code: "B", OperationType: types.OperationCreate})

	if got := rec.dropped.Load(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestAuditRecorderTrailReadsBack(t *testing.T) {
	store := &stubAuditStore{done: make(chan struct{}, 2)}
	rec := NewAuditRecorder(store, zap.NewNop(), time.Second, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Record("tenant-1", types.AuditRecord{Code: "ENG", OperationType: types.OperationCreate, Success: true})
	rec.Record("tenant-1", types.AuditRecord{Code: "HR", OperationType: types.OperationCreate, Success: true})
	for i := 0; i < 2; i++ {
		select {
		case <-store.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("audit record %d never persisted", i)
		}
	}

	trail, err := rec.Trail(context.Background(), "tenant-1", "ENG")
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(trail) != 1 || trail[0].Code != "ENG" {
		t.Fatalf("trail = %+v", trail)
	}
}

func TestAuditRecorderSetsTimestamp(t *testing.T) {
	store := &stubAuditStore{done: make(chan struct{}, 1)}
	rec := NewAuditRecorder(store, zap.NewNop(), time.Second, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	rec.Record("tenant-1", types.AuditRecord{Code: "ENG", OperationType: types.OperationCreate})
	select {
	case <-store.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("record never persisted")
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.records[0].Timestamp.IsZero() {
		t.Fatalf("timestamp must default to enqueue time")
	}
}
