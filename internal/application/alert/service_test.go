package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/carelink-api/internal/application/audit"
	"github.com/carelink-api/internal/application/dispatch"
	"github.com/carelink-api/internal/domain"
	"github.com/carelink-api/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockAlertStore struct{ mock.Mock }

func (m *mockAlertStore) Put(ctx context.Context, a *domain.Alert) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockAlertStore) Get(ctx context.Context, alertID string) (*domain.Alert, error) {
	args := m.Called(ctx, alertID)
	if a, _ := args.Get(0).(*domain.Alert); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAlertStore) ListBySubject(ctx context.Context, subjectID string) ([]domain.Alert, error) {
	args := m.Called(ctx, subjectID)
	as, _ := args.Get(0).([]domain.Alert)
	return as, args.Error(1)
}
func (m *mockAlertStore) Update(ctx context.Context, alertID string, updates map[string]interface{}) error {
	return m.Called(ctx, alertID, updates).Error(0)
}

type mockResponseStore struct{ mock.Mock }

func (m *mockResponseStore) Put(ctx context.Context, r *domain.ResponseRecord) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockResponseStore) ListByAlert(ctx context.Context, alertID string) ([]domain.ResponseRecord, error) {
	args := m.Called(ctx, alertID)
	rs, _ := args.Get(0).([]domain.ResponseRecord)
	return rs, args.Error(1)
}

type mockProfileStore struct{ mock.Mock }

func (m *mockProfileStore) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if p, _ := args.Get(0).(*domain.Profile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Caregivers(ctx context.Context, subjectID string) ([]string, error) {
	args := m.Called(ctx, subjectID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
func (m *mockResolver) Providers(ctx context.Context, subjectID string) ([]string, error) {
	args := m.Called(ctx, subjectID)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}
func (m *mockResolver) EmergencyContact(ctx context.Context, subjectID string) (*domain.EmergencyContact, error) {
	args := m.Called(ctx, subjectID)
	if c, _ := args.Get(0).(*domain.EmergencyContact); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, recipientID string, payload domain.Payload, opts dispatch.Options) (*domain.Notification, error) {
	args := m.Called(ctx, recipientID, payload, opts)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAuditor struct{ mock.Mock }

func (m *mockAuditor) Append(ctx context.Context, e audit.Entry) (*domain.AuditRecord, error) {
	args := m.Called(ctx, e)
	if r, _ := args.Get(0).(*domain.AuditRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

type fixtures struct {
	alerts    *mockAlertStore
	responses *mockResponseStore
	profiles  *mockProfileStore
	resolver  *mockResolver
	d         *mockDispatcher
	a         *mockAuditor
}

func newService(f *fixtures) Service {
	return NewService(ServiceDeps{
		AlertRepo:    f.alerts,
		ResponseRepo: f.responses,
		ProfileRepo:  f.profiles,
		Recipients:   f.resolver,
		Dispatcher:   f.d,
		Auditor:      f.a,
		Metrics:      metrics.New(prometheus.NewRegistry()),
		Workers:      4,
	})
}

func newFixtures() *fixtures {
	return &fixtures{
		alerts:    &mockAlertStore{},
		responses: &mockResponseStore{},
		profiles:  &mockProfileStore{},
		resolver:  &mockResolver{},
		d:         &mockDispatcher{},
		a:         &mockAuditor{},
	}
}

func subjectProfile() *domain.Profile {
	return &domain.Profile{UserID: "subject-1", DisplayName: "Rosa", Role: domain.RoleSubject}
}

// --- Raise ---

func TestRaise_CriticalFansOutToEveryGroup(t *testing.T) {
	f := newFixtures()
	f.profiles.On("Get", mock.Anything, "subject-1").Return(subjectProfile(), nil)
	f.alerts.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.resolver.On("EmergencyContact", mock.Anything, "subject-1").
		Return(&domain.EmergencyContact{Name: "Ana", Phone: "+15550001111"}, nil)
	f.resolver.On("Caregivers", mock.Anything, "subject-1").Return([]string{"cg-1", "cg-2"}, nil)
	f.resolver.On("Providers", mock.Anything, "subject-1").Return([]string{"dr-1"}, nil)
	f.d.On("Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.Notification{NotificationID: "n"}, nil)
	f.a.On("Append", mock.Anything, mock.Anything).Return(&domain.AuditRecord{AuditID: "a1"}, nil)

	svc := newService(f)
	res, err := svc.Raise(context.Background(), domain.RaiseAlertRequest{
		SubjectID: "subject-1", Category: domain.AlertCategoryFall, Severity: domain.SeverityCritical,
	}, "subject-1")

	require.NoError(t, err)
	// Two caregivers, one provider, one emergency contact.
	assert.Equal(t, 4, res.Notified)
	assert.Equal(t, domain.AlertStatusActive, res.Alert.Status)
	assert.Equal(t, []string{
		"Immediate attention required",
		"Notify emergency services",
		"Notify family and caregivers",
	}, res.Actions)
	f.d.AssertNumberOfCalls(t, "Dispatch", 4)
	f.a.AssertNumberOfCalls(t, "Append", 1)
}

func TestRaise_LowSeveritySkipsProviders(t *testing.T) {
	f := newFixtures()
	f.profiles.On("Get", mock.Anything, "subject-1").Return(subjectProfile(), nil)
	f.alerts.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.resolver.On("EmergencyContact", mock.Anything, "subject-1").Return(nil, nil)
	f.resolver.On("Caregivers", mock.Anything, "subject-1").Return([]string{"cg-1"}, nil)
	f.d.On("Dispatch", mock.Anything, "cg-1", mock.Anything, mock.Anything).
		Return(&domain.Notification{NotificationID: "n"}, nil)
	f.a.On("Append", mock.Anything, mock.Anything).Return(&domain.AuditRecord{AuditID: "a1"}, nil)

	svc := newService(f)
	res, err := svc.Raise(context.Background(), domain.RaiseAlertRequest{
		SubjectID: "subject-1", Category: domain.AlertCategoryOther, Severity: domain.SeverityLow,
	}, "subject-1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)
	f.resolver.AssertNotCalled(t, "Providers", mock.Anything, mock.Anything)
}

func TestRaise_EmergencyContactGetsSMSWithPhone(t *testing.T) {
	f := newFixtures()
	f.profiles.On("Get", mock.Anything, "subject-1").Return(subjectProfile(), nil)
	f.alerts.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.resolver.On("EmergencyContact", mock.Anything, "subject-1").
		Return(&domain.EmergencyContact{Name: "Ana", Phone: "+15550001111"}, nil)
	f.resolver.On("Caregivers", mock.Anything, "subject-1").Return(nil, nil)
	f.resolver.On("Providers", mock.Anything, "subject-1").Return(nil, nil)
	f.a.On("Append", mock.Anything, mock.Anything).Return(&domain.AuditRecord{AuditID: "a1"}, nil)

	f.d.On("Dispatch", mock.Anything, "subject-1",
		mock.MatchedBy(func(p domain.Payload) bool {
			return p.Data["contact_phone"] == "+15550001111" && p.Data["contact_name"] == "Ana"
		}),
		mock.MatchedBy(func(o dispatch.Options) bool {
			return o.Channel == domain.ChannelSMS && o.Priority == domain.PriorityHigh
		})).Return(&domain.Notification{NotificationID: "n"}, nil)

	svc := newService(f)
	res, err := svc.Raise(context.Background(), domain.RaiseAlertRequest{
		SubjectID: "subject-1", Category: domain.AlertCategoryMedical, Severity: domain.SeverityHigh,
	}, "subject-1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)
	f.d.AssertExpectations(t)
}

func TestRaise_UnknownSubjectIsNotFound(t *testing.T) {
	f := newFixtures()
	f.profiles.On("Get", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	svc := newService(f)
	_, err := svc.Raise(context.Background(), domain.RaiseAlertRequest{
		SubjectID: "ghost", Category: domain.AlertCategoryFall, Severity: domain.SeverityHigh,
	}, "ghost")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	f.alerts.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRaise_DispatchFailureDoesNotFailRaise(t *testing.T) {
	f := newFixtures()
	f.profiles.On("Get", mock.Anything, "subject-1").Return(subjectProfile(), nil)
	f.alerts.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.resolver.On("EmergencyContact", mock.Anything, "subject-1").Return(nil, nil)
	f.resolver.On("Caregivers", mock.Anything, "subject-1").Return([]string{"cg-1", "cg-2"}, nil)
	f.d.On("Dispatch", mock.Anything, "cg-1", mock.Anything, mock.Anything).
		Return(nil, errors.New("dispatch down"))
	f.d.On("Dispatch", mock.Anything, "cg-2", mock.Anything, mock.Anything).
		Return(&domain.Notification{NotificationID: "n"}, nil)
	f.a.On("Append", mock.Anything, mock.Anything).Return(&domain.AuditRecord{AuditID: "a1"}, nil)

	svc := newService(f)
	res, err := svc.Raise(context.Background(), domain.RaiseAlertRequest{
		SubjectID: "subject-1", Category: domain.AlertCategoryPanic, Severity: domain.SeverityMedium,
	}, "subject-1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)
}

// --- ProcessResponse ---

func activeAlert() *domain.Alert {
	return &domain.Alert{
		AlertID:   "alert-1",
		SubjectID: "subject-1",
		Category:  domain.AlertCategoryFall,
		Severity:  domain.SeverityHigh,
		Status:    domain.AlertStatusActive,
	}
}

func TestProcessResponse_ResolvedClosesAlertAndNotifiesSubject(t *testing.T) {
	f := newFixtures()
	f.alerts.On("Get", mock.Anything, "alert-1").Return(activeAlert(), nil)
	f.responses.On("Put", mock.Anything, mock.MatchedBy(func(r *domain.ResponseRecord) bool {
		return r.AlertID == "alert-1" && r.ResponderID == "cg-1" &&
			r.ResponseType == domain.ResponseResolved && r.ResponseID != ""
	})).Return(nil)
	f.alerts.On("Update", mock.Anything, "alert-1", map[string]interface{}{
		"status":        domain.AlertStatusResolved,
		"last_response": domain.ResponseResolved,
	}).Return(nil)
	f.d.On("Dispatch", mock.Anything, "subject-1", mock.Anything, mock.Anything).
		Return(&domain.Notification{NotificationID: "n"}, nil)
	f.a.On("Append", mock.Anything, mock.Anything).Return(&domain.AuditRecord{AuditID: "a1"}, nil)

	svc := newService(f)
	a, err := svc.ProcessResponse(context.Background(), "alert-1",
		domain.AlertResponseRequest{ResponseType: domain.ResponseResolved}, "cg-1")

	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusResolved, a.Status)
	require.NotNil(t, a.LastResponse)
	assert.Equal(t, domain.ResponseResolved, *a.LastResponse)
	f.d.AssertNumberOfCalls(t, "Dispatch", 1)
	f.alerts.AssertExpectations(t)
	f.responses.AssertExpectations(t)
}

func TestProcessResponse_AcknowledgedMarksInProgressWithoutNotifying(t *testing.T) {
	f := newFixtures()
	f.alerts.On("Get", mock.Anything, "alert-1").Return(activeAlert(), nil)
	f.responses.On("Put", mock.Anything, mock.Anything).Return(nil)
	f.alerts.On("Update", mock.Anything, "alert-1", map[string]interface{}{
		"status":        domain.AlertStatusInProgress,
		"last_response": domain.ResponseAcknowledged,
	}).Return(nil)
	f.a.On("Append", mock.Anything, mock.Anything).Return(&domain.AuditRecord{AuditID: "a1"}, nil)

	svc := newService(f)
	a, err := svc.ProcessResponse(context.Background(), "alert-1",
		domain.AlertResponseRequest{ResponseType: domain.ResponseAcknowledged}, "cg-1")

	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusInProgress, a.Status)
	f.d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessResponse_UnknownTypeRejected(t *testing.T) {
	f := newFixtures()
	svc := newService(f)

	_, err := svc.ProcessResponse(context.Background(), "alert-1",
		domain.AlertResponseRequest{ResponseType: "shrugged"}, "cg-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	f.alerts.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestProcessResponse_UnknownAlertIsNotFound(t *testing.T) {
	f := newFixtures()
	f.alerts.On("Get", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	svc := newService(f)
	_, err := svc.ProcessResponse(context.Background(), "ghost",
		domain.AlertResponseRequest{ResponseType: domain.ResponseAcknowledged}, "cg-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
