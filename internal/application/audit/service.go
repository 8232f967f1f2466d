// Package audit is the append-only compliance ledger plus its bounded
// retention sweep.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carelink-api/internal/domain"
	"github.com/carelink-api/internal/pkg/id"
	"github.com/carelink-api/internal/pkg/metrics"
)

// Entry is what callers supply; the service stamps id and timestamp.
type Entry struct {
	ActorID  string
	Action   string
	TargetID *string
	Origin   string
	Details  map[string]string
}

type Service interface {
	Append(ctx context.Context, e Entry) (*domain.AuditRecord, error)
	SweepRetention(ctx context.Context, now time.Time) (int, error)
	ListByActor(ctx context.Context, actorID string) ([]domain.AuditRecord, error)
}

type auditStore interface {
	Put(ctx context.Context, rec *domain.AuditRecord) error
	QueryOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.AuditRecord, error)
	DeleteBatch(ctx context.Context, auditIDs []string) (int, error)
	ListByActor(ctx context.Context, actorID string) ([]domain.AuditRecord, error)
}

type archiveStore interface {
	ArchiveBatch(ctx context.Context, sweptAt time.Time, records []domain.AuditRecord) (string, error)
}

type service struct {
	repo            auditStore
	archive         archiveStore
	retentionMonths int
	batchSize       int
	metrics         *metrics.Metrics
}

type ServiceDeps struct {
	AuditRepo       auditStore
	Archive         archiveStore
	RetentionMonths int
	BatchSize       int
	Metrics         *metrics.Metrics
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:            deps.AuditRepo,
		archive:         deps.Archive,
		retentionMonths: deps.RetentionMonths,
		batchSize:       deps.BatchSize,
		metrics:         deps.Metrics,
	}
}

// Append writes one immutable record. Store errors propagate: the ledger is
// the compliance record, so a failed write is never swallowed here. Whether
// the failure rolls anything back is the caller's decision (it does not).
func (s *service) Append(ctx context.Context, e Entry) (*domain.AuditRecord, error) {
	rec := &domain.AuditRecord{
		AuditID:   id.New(),
		ActorID:   e.ActorID,
		Action:    e.Action,
		TargetID:  e.TargetID,
		Origin:    e.Origin,
		Details:   e.Details,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("append audit record: %w", err)
	}
	return rec, nil
}

// SweepRetention removes at most one batch of records older than the
// retention cutoff. The batch is archived to cold storage before any delete;
// an archive failure aborts the sweep with nothing removed. Repeated
// invocations converge to zero eligible records.
func (s *service) SweepRetention(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.UTC().AddDate(0, -s.retentionMonths, 0)

	records, err := s.repo.QueryOlderThan(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select expired audit records: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	location, err := s.archive.ArchiveBatch(ctx, now, records)
	if err != nil {
		return 0, fmt.Errorf("archive audit batch: %w", err)
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.AuditID)
	}
	deleted, err := s.repo.DeleteBatch(ctx, ids)
	if err != nil {
		return deleted, fmt.Errorf("delete audit batch: %w", err)
	}

	s.metrics.AuditRecordsSwept.Add(float64(deleted))
	slog.Info("audit retention sweep complete",
		"deleted", deleted, "cutoff", cutoff, "archive", location)
	return deleted, nil
}

func (s *service) ListByActor(ctx context.Context, actorID string) ([]domain.AuditRecord, error) {
	return s.repo.ListByActor(ctx, actorID)
}
