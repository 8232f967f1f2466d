package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carelink-api/internal/domain"
	"github.com/carelink-api/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAuditStore struct{ mock.Mock }

func (m *mockAuditStore) Put(ctx context.Context, rec *domain.AuditRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockAuditStore) QueryOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.AuditRecord, error) {
	args := m.Called(ctx, cutoff, limit)
	recs, _ := args.Get(0).([]domain.AuditRecord)
	return recs, args.Error(1)
}
func (m *mockAuditStore) DeleteBatch(ctx context.Context, auditIDs []string) (int, error) {
	args := m.Called(ctx, auditIDs)
	return args.Int(0), args.Error(1)
}
func (m *mockAuditStore) ListByActor(ctx context.Context, actorID string) ([]domain.AuditRecord, error) {
	args := m.Called(ctx, actorID)
	recs, _ := args.Get(0).([]domain.AuditRecord)
	return recs, args.Error(1)
}

type mockArchive struct{ mock.Mock }

func (m *mockArchive) ArchiveBatch(ctx context.Context, sweptAt time.Time, records []domain.AuditRecord) (string, error) {
	args := m.Called(ctx, sweptAt, records)
	return args.String(0), args.Error(1)
}

func newService(repo *mockAuditStore, archive *mockArchive) Service {
	return NewService(ServiceDeps{
		AuditRepo:       repo,
		Archive:         archive,
		RetentionMonths: 6,
		BatchSize:       1000,
		Metrics:         metrics.New(prometheus.NewRegistry()),
	})
}

func expiredRecords(n int) []domain.AuditRecord {
	recs := make([]domain.AuditRecord, n)
	for i := range recs {
		recs[i] = domain.AuditRecord{AuditID: string(rune('a' + i)), Action: domain.ActionAlertRaised}
	}
	return recs
}

// --- Append ---

func TestAppend_StampsIDAndTimestamp(t *testing.T) {
	repo := &mockAuditStore{}
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	svc := newService(repo, &mockArchive{})
	rec, err := svc.Append(context.Background(), Entry{
		ActorID: "u1",
		Action:  domain.ActionAlertRaised,
		Origin:  domain.OriginOrchestrator,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, rec.AuditID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, "u1", rec.ActorID)
	repo.AssertExpectations(t)
}

func TestAppend_StoreErrorPropagates(t *testing.T) {
	repo := &mockAuditStore{}
	repo.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	svc := newService(repo, &mockArchive{})
	_, err := svc.Append(context.Background(), Entry{ActorID: "u1", Action: "x", Origin: domain.OriginAPI})

	require.Error(t, err)
	assert.ErrorContains(t, err, "append audit record")
}

// --- SweepRetention ---

func TestSweepRetention_CutoffIsSixMonths(t *testing.T) {
	now := time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockAuditStore{}
	repo.On("QueryOlderThan", mock.Anything, time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC), 1000).
		Return(nil, nil)

	svc := newService(repo, &mockArchive{})
	deleted, err := svc.SweepRetention(context.Background(), now)

	require.NoError(t, err)
	assert.Zero(t, deleted)
	repo.AssertExpectations(t)
}

func TestSweepRetention_ArchivesBeforeDeleting(t *testing.T) {
	recs := expiredRecords(3)
	repo := &mockAuditStore{}
	archive := &mockArchive{}
	repo.On("QueryOlderThan", mock.Anything, mock.Anything, 1000).Return(recs, nil)
	archive.On("ArchiveBatch", mock.Anything, mock.Anything, recs).Return("s3://bucket/key", nil)
	repo.On("DeleteBatch", mock.Anything, []string{"a", "b", "c"}).Return(3, nil)

	svc := newService(repo, archive)
	deleted, err := svc.SweepRetention(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	repo.AssertExpectations(t)
	archive.AssertExpectations(t)
}

func TestSweepRetention_ArchiveFailureAbortsWithoutDeleting(t *testing.T) {
	repo := &mockAuditStore{}
	archive := &mockArchive{}
	repo.On("QueryOlderThan", mock.Anything, mock.Anything, 1000).Return(expiredRecords(2), nil)
	archive.On("ArchiveBatch", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("s3 down"))

	svc := newService(repo, archive)
	deleted, err := svc.SweepRetention(context.Background(), time.Now())

	require.Error(t, err)
	assert.Zero(t, deleted)
	repo.AssertNotCalled(t, "DeleteBatch", mock.Anything, mock.Anything)
}

func TestSweepRetention_NoEligibleRecordsIsNoop(t *testing.T) {
	repo := &mockAuditStore{}
	archive := &mockArchive{}
	repo.On("QueryOlderThan", mock.Anything, mock.Anything, 1000).Return(nil, nil)

	svc := newService(repo, archive)
	deleted, err := svc.SweepRetention(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Zero(t, deleted)
	archive.AssertNotCalled(t, "ArchiveBatch", mock.Anything, mock.Anything, mock.Anything)
}
