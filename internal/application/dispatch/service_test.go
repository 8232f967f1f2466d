package dispatch

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

type mockNotificationStore struct{ mock.Mock }

func (m *mockNotificationStore) Put(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}
func (m *mockNotificationStore) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	args := m.Called(ctx, notificationID)
	if n, _ := args.Get(0).(*domain.Notification); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNotificationStore) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]domain.Notification, error) {
	args := m.Called(ctx, recipientID, unreadOnly)
	ns, _ := args.Get(0).([]domain.Notification)
	return ns, args.Error(1)
}
func (m *mockNotificationStore) MarkRead(ctx context.Context, notificationID, recipientID string) error {
	return m.Called(ctx, notificationID, recipientID).Error(0)
}
func (m *mockNotificationStore) QueryDueScheduled(ctx context.Context, now time.Time) ([]domain.Notification, error) {
	args := m.Called(ctx, now)
	ns, _ := args.Get(0).([]domain.Notification)
	return ns, args.Error(1)
}
func (m *mockNotificationStore) Claim(ctx context.Context, notificationID string, at time.Time) error {
	return m.Called(ctx, notificationID, at).Error(0)
}
func (m *mockNotificationStore) MarkSent(ctx context.Context, notificationID string, at time.Time) error {
	return m.Called(ctx, notificationID, at).Error(0)
}
func (m *mockNotificationStore) MarkFailed(ctx context.Context, notificationID string, at time.Time, reason string) error {
	return m.Called(ctx, notificationID, at, reason).Error(0)
}

type mockProfileStore struct{ mock.Mock }

func (m *mockProfileStore) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if p, _ := args.Get(0).(*domain.Profile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPushSender struct{ mock.Mock }

func (m *mockPushSender) Send(ctx context.Context, pushToken string, payload domain.Payload) error {
	return m.Called(ctx, pushToken, payload).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

// --- helpers ---

func strptr(s string) *string { return &s }

func newService(repo *mockNotificationStore, profiles *mockProfileStore, push *mockPushSender, sms *mockSMSSender) Service {
	return NewService(ServiceDeps{
		NotificationRepo: repo,
		ProfileRepo:      profiles,
		PushSender:       push,
		SMSSender:        sms,
		Metrics:          metrics.New(prometheus.NewRegistry()),
		Workers:          4,
	})
}

func payload() domain.Payload {
	return domain.Payload{Title: "Medication reminder", Body: "Time to take Metformin"}
}

// --- Dispatch: immediate mode ---

func TestDispatch_Immediate_MarksSentAtCreation(t *testing.T) {
	repo := &mockNotificationStore{}
	profiles := &mockProfileStore{}
	push := &mockPushSender{}

	repo.On("Put", mock.Anything, mock.Anything).Return(nil)
	profiles.On("Get", mock.Anything, "u1").Return(&domain.Profile{UserID: "u1", PushToken: strptr("arn:token")}, nil)
	push.On("Send", mock.Anything, "arn:token", mock.Anything).Return(nil)

	svc := newService(repo, profiles, push, &mockSMSSender{})
	n, err := svc.Dispatch(context.Background(), "u1", payload(), Options{Mode: domain.ModeImmediate})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, n.Status)
	require.NotNil(t, n.SentAt)
	assert.Equal(t, domain.PriorityNormal, n.Priority)
	push.AssertExpectations(t)
}

func TestDispatch_Immediate_PushFailureIsSoft(t *testing.T) {
	repo := &mockNotificationStore{}
	profiles := &mockProfileStore{}
	push := &mockPushSender{}

	repo.On("Put", mock.Anything, mock.Anything).Return(nil)
	profiles.On("Get", mock.Anything, "u1").Return(&domain.Profile{UserID: "u1", PushToken: strptr("arn:token")}, nil)
	push.On("Send", mock.Anything, "arn:token", mock.Anything).Return(errors.New("endpoint gone"))

	svc := newService(repo, profiles, push, &mockSMSSender{})
	n, err := svc.Dispatch(context.Background(), "u1", payload(), Options{Mode: domain.ModeImmediate})

	// Push threw, but the inbox record still counts as delivered.
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, n.Status)
}

func TestDispatch_Immediate_NoPushTokenStillDelivers(t *testing.T) {
	repo := &mockNotificationStore{}
	profiles := &mockProfileStore{}
	push := &mockPushSender{}

	repo.On("Put", mock.Anything, mock.Anything).Return(nil)
	profiles.On("Get", mock.Anything, "u1").Return(&domain.Profile{UserID: "u1"}, nil)

	svc := newService(repo, profiles, push, &mockSMSSender{})
	_, err := svc.Dispatch(context.Background(), "u1", payload(), Options{Mode: domain.ModeImmediate})

	require.NoError(t, err)
	push.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_Immediate_StoreFailurePropagates(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	svc := newService(repo, &mockProfileStore{}, &mockPushSender{}, &mockSMSSender{})
	_, err := svc.Dispatch(context.Background(), "u1", payload(), Options{Mode: domain.ModeImmediate})

	require.Error(t, err)
}

func TestDispatch_SMSChannelUsesContactPhoneFromData(t *testing.T) {
	repo := &mockNotificationStore{}
	sms := &mockSMSSender{}
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)
	sms.On("SendSMS", mock.Anything, "+15551234", mock.Anything).Return(nil)

	svc := newService(repo, &mockProfileStore{}, &mockPushSender{}, sms)
	p := payload()
	p.Data = map[string]string{"contact_phone": "+15551234"}
	_, err := svc.Dispatch(context.Background(), "subject-1", p, Options{Mode: domain.ModeImmediate, Channel: domain.ChannelSMS})

	require.NoError(t, err)
	sms.AssertExpectations(t)
}

// The process may come up without SNS credentials; the senders are then nil
// and a delivery must degrade to a soft channel failure, not a panic.
func TestDispatch_Immediate_NilPushSenderIsSoft(t *testing.T) {
	repo := &mockNotificationStore{}
	profiles := &mockProfileStore{}
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)
	profiles.On("Get", mock.Anything, "u1").Return(&domain.Profile{UserID: "u1", PushToken: strptr("arn:token")}, nil)

	svc := NewService(ServiceDeps{
		NotificationRepo: repo,
		ProfileRepo:      profiles,
		Metrics:          metrics.New(prometheus.NewRegistry()),
		Workers:          4,
	})

	var n *domain.Notification
	var err error
	require.NotPanics(t, func() {
		n, err = svc.Dispatch(context.Background(), "u1", payload(), Options{Mode: domain.ModeImmediate})
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, n.Status)
}

func TestProcessDeferred_NilSMSSenderMarksFailed(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	repo := &mockNotificationStore{}

	due := scheduledNotification("n1", now.Add(-time.Minute))
	due.Channel = domain.ChannelSMS
	due.Payload.Data = map[string]string{"contact_phone": "+15551234"}
	repo.On("QueryDueScheduled", mock.Anything, now).Return([]domain.Notification{due}, nil)
	repo.On("Claim", mock.Anything, "n1", now).Return(nil)
	repo.On("MarkFailed", mock.Anything, "n1", now, mock.Anything).Return(nil)

	svc := NewService(ServiceDeps{
		NotificationRepo: repo,
		ProfileRepo:      &mockProfileStore{},
		Metrics:          metrics.New(prometheus.NewRegistry()),
		Workers:          4,
	})

	var report Report
	var err error
	require.NotPanics(t, func() {
		report, err = svc.ProcessDeferred(context.Background(), now)
	})
	require.NoError(t, err)
	assert.Equal(t, Report{Selected: 1, Failed: 1}, report)
	repo.AssertExpectations(t)
}

// --- Dispatch: scheduled mode ---

func TestDispatch_Scheduled_NoDeliveryAtCreation(t *testing.T) {
	repo := &mockNotificationStore{}
	profiles := &mockProfileStore{}
	push := &mockPushSender{}
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	at := time.Now().Add(time.Hour)
	svc := newService(repo, profiles, push, &mockSMSSender{})
	n, err := svc.Dispatch(context.Background(), "u1", payload(), Options{Mode: domain.ModeScheduled, ScheduledFor: &at})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, n.Status)
	assert.Nil(t, n.SentAt)
	require.NotNil(t, n.ScheduledFor)
	push.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	profiles.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestDispatch_Scheduled_RequiresScheduledFor(t *testing.T) {
	svc := newService(&mockNotificationStore{}, &mockProfileStore{}, &mockPushSender{}, &mockSMSSender{})
	_, err := svc.Dispatch(context.Background(), "u1", payload(), Options{Mode: domain.ModeScheduled})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestDispatch_UnknownModeRejected(t *testing.T) {
	svc := newService(&mockNotificationStore{}, &mockProfileStore{}, &mockPushSender{}, &mockSMSSender{})
	_, err := svc.Dispatch(context.Background(), "u1", payload(), Options{Mode: "someday"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- ProcessDeferred ---

func scheduledNotification(nid string, at time.Time) domain.Notification {
	return domain.Notification{
		NotificationID: nid,
		RecipientID:    "u1",
		Payload:        payload(),
		Channel:        domain.ChannelPush,
		Mode:           domain.ModeScheduled,
		Status:         domain.StatusScheduled,
		ScheduledFor:   &at,
	}
}

func TestProcessDeferred_DeliversDueRecords(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	repo := &mockNotificationStore{}
	profiles := &mockProfileStore{}
	push := &mockPushSender{}

	repo.On("QueryDueScheduled", mock.Anything, now).
		Return([]domain.Notification{scheduledNotification("n1", now.Add(-time.Minute))}, nil)
	repo.On("Claim", mock.Anything, "n1", now).Return(nil)
	profiles.On("Get", mock.Anything, "u1").Return(&domain.Profile{UserID: "u1", PushToken: strptr("arn:token")}, nil)
	push.On("Send", mock.Anything, "arn:token", mock.Anything).Return(nil)
	repo.On("MarkSent", mock.Anything, "n1", now).Return(nil)

	svc := newService(repo, profiles, push, &mockSMSSender{})
	report, err := svc.ProcessDeferred(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, Report{Selected: 1, Sent: 1}, report)
	repo.AssertExpectations(t)
}

func TestProcessDeferred_PushThrowsMarksFailedWithReason(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	repo := &mockNotificationStore{}
	profiles := &mockProfileStore{}
	push := &mockPushSender{}

	repo.On("QueryDueScheduled", mock.Anything, now).
		Return([]domain.Notification{scheduledNotification("n1", now.Add(-time.Minute))}, nil)
	repo.On("Claim", mock.Anything, "n1", now).Return(nil)
	profiles.On("Get", mock.Anything, "u1").Return(&domain.Profile{UserID: "u1", PushToken: strptr("arn:token")}, nil)
	push.On("Send", mock.Anything, "arn:token", mock.Anything).Return(errors.New("endpoint unreachable"))
	repo.On("MarkFailed", mock.Anything, "n1", now, mock.MatchedBy(func(reason string) bool {
		return reason != ""
	})).Return(nil)

	svc := newService(repo, profiles, push, &mockSMSSender{})
	report, err := svc.ProcessDeferred(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, Report{Selected: 1, Failed: 1}, report)
	repo.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestProcessDeferred_LostClaimIsSkippedNotFailed(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	repo := &mockNotificationStore{}
	push := &mockPushSender{}

	repo.On("QueryDueScheduled", mock.Anything, now).
		Return([]domain.Notification{scheduledNotification("n1", now.Add(-time.Minute))}, nil)
	repo.On("Claim", mock.Anything, "n1", now).Return(domain.ErrConflict)

	svc := newService(repo, &mockProfileStore{}, push, &mockSMSSender{})
	report, err := svc.ProcessDeferred(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, Report{Selected: 1, ClaimLost: 1}, report)
	push.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDeferred_OneFailureDoesNotAbortBatch(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	repo := &mockNotificationStore{}
	profiles := &mockProfileStore{}
	push := &mockPushSender{}

	due := []domain.Notification{
		scheduledNotification("n1", now.Add(-time.Minute)),
		scheduledNotification("n2", now.Add(-time.Minute)),
	}
	repo.On("QueryDueScheduled", mock.Anything, now).Return(due, nil)
	repo.On("Claim", mock.Anything, mock.Anything, now).Return(nil)
	profiles.On("Get", mock.Anything, "u1").Return(&domain.Profile{UserID: "u1", PushToken: strptr("arn:token")}, nil)
	push.On("Send", mock.Anything, "arn:token", mock.Anything).Return(errors.New("boom")).Once()
	push.On("Send", mock.Anything, "arn:token", mock.Anything).Return(nil).Once()
	repo.On("MarkFailed", mock.Anything, mock.Anything, now, mock.Anything).Return(nil)
	repo.On("MarkSent", mock.Anything, mock.Anything, now).Return(nil)

	svc := newService(repo, profiles, push, &mockSMSSender{})
	report, err := svc.ProcessDeferred(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
}

// --- MarkRead ---

func TestMarkRead_ForbiddenForOtherRecipient(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Get", mock.Anything, "n1").Return(&domain.Notification{NotificationID: "n1", RecipientID: "owner"}, nil)

	svc := newService(repo, &mockProfileStore{}, &mockPushSender{}, &mockSMSSender{})
	_, err := svc.MarkRead(context.Background(), "n1", "intruder")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	repo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkRead_OwnerSucceeds(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Get", mock.Anything, "n1").Return(&domain.Notification{NotificationID: "n1", RecipientID: "u1"}, nil)
	repo.On("MarkRead", mock.Anything, "n1", "u1").Return(nil)

	svc := newService(repo, &mockProfileStore{}, &mockPushSender{}, &mockSMSSender{})
	n, err := svc.MarkRead(context.Background(), "n1", "u1")

	require.NoError(t, err)
	assert.Equal(t, 1, n.Read)
}

func TestMarkRead_RacingOwnershipLossIsForbidden(t *testing.T) {
	repo := &mockNotificationStore{}
	repo.On("Get", mock.Anything, "n1").Return(&domain.Notification{NotificationID: "n1", RecipientID: "u1"}, nil)
	// The conditional write lost: the record no longer belongs to u1.
	repo.On("MarkRead", mock.Anything, "n1", "u1").Return(domain.ErrConflict)

	svc := newService(repo, &mockProfileStore{}, &mockPushSender{}, &mockSMSSender{})
	_, err := svc.MarkRead(context.Background(), "n1", "u1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}
