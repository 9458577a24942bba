package services

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/ports"
	"github.com/jacksonlee411/Roots-And-Branches/modules/organization/domain/types"
)

// AuditRecorder appends one immutable record per state-changing command.
// Audit is observability, not a correctness dependency: Record never blocks
// the caller, and a persistence failure never fails the triggering command.
// Failures are logged and counted so an operator can chase them out-of-band.
type AuditRecorder struct {
	store        ports.AuditStore
	log          *zap.Logger
	writeTimeout time.Duration

	queue    chan auditJob
	failures atomic.Int64
	dropped  atomic.Int64
}

type auditJob struct {
	tenantID string
	record   types.AuditRecord
}

func NewAuditRecorder(store ports.AuditStore, log *zap.Logger, writeTimeout time.Duration, queueSize int) *AuditRecorder {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &AuditRecorder{
		store:        store,
		log:          log,
		writeTimeout: writeTimeout,
		queue:        make(chan auditJob, queueSize),
	}
}

// Run drains the queue until ctx is cancelled. Meant to be started once,
// alongside the propagator.
func (r *AuditRecorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-r.queue:
			r.persist(job)
		}
	}
}

// Record enqueues an audit record. If the queue is full the record is
// dropped and counted rather than stalling the command path.
func (r *AuditRecorder) Record(tenantID string, record types.AuditRecord) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	select {
	case r.queue <- auditJob{tenantID: tenantID, record: record}:
	default:
		r.dropped.Add(1)
		r.log.Error("audit queue full, record dropped",
			zap.String("code", record.Code),
			zap.String("record_id", record.RecordID),
			zap.String("operation", string(record.OperationType)),
			zap.Int64("dropped_total", r.dropped.Load()),
		)
	}
}

// Failures reports how many audit writes have failed since startup.
func (r *AuditRecorder) Failures() int64 { return r.failures.Load() }

// Trail reads back the persisted audit records for one code, in occurrence
// order. Records still sitting in the queue are not included.
func (r *AuditRecorder) Trail(ctx context.Context, tenantID string, code string) ([]types.AuditRecord, error) {
	return r.store.ListAuditRecords(ctx, tenantID, code)
}

func (r *AuditRecorder) persist(job auditJob) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := r.store.AppendAuditRecord(ctx, job.tenantID, job.record); err != nil {
		r.failures.Add(1)
		r.log.Error("audit append failed",
			zap.String("tenant_id", job.tenantID),
			zap.String("code", job.record.Code),
			zap.String("record_id", job.record.RecordID),
			zap.String("operation", string(job.record.OperationType)),
			zap.Int64("failures_total", r.failures.Load()),
			zap.Error(err),
		)
	}
}
