// Package alert orchestrates emergency alerts: raising them, fanning out the
// notifications the escalation table calls for, and folding responder actions
// back into the alert's lifecycle.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carelink-api/internal/application/audit"
	"github.com/carelink-api/internal/application/dispatch"
	"github.com/carelink-api/internal/application/escalation"
	"github.com/carelink-api/internal/application/recipient"
	"github.com/carelink-api/internal/domain"
	"github.com/carelink-api/internal/pkg/id"
	"github.com/carelink-api/internal/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	dataKeyAlertID      = "alert_id"
	dataKeySeverity     = "severity"
	dataKeyContactPhone = "contact_phone"
	dataKeyContactName  = "contact_name"
)

// RaiseResult carries the created alert plus what the escalation table
// recommended and how wide the fan-out actually went.
type RaiseResult struct {
	Alert    *domain.Alert `json:"alert"`
	Actions  []string      `json:"actions"`
	Notified int           `json:"notified"`
}

type Service interface {
	Raise(ctx context.Context, req domain.RaiseAlertRequest, actorID string) (*RaiseResult, error)
	ProcessResponse(ctx context.Context, alertID string, req domain.AlertResponseRequest, responderID string) (*domain.Alert, error)
	Get(ctx context.Context, alertID string) (*domain.Alert, error)
	ListBySubject(ctx context.Context, subjectID string) ([]domain.Alert, error)
	ListResponses(ctx context.Context, alertID string) ([]domain.ResponseRecord, error)
}

type alertStore interface {
	Put(ctx context.Context, a *domain.Alert) error
	Get(ctx context.Context, alertID string) (*domain.Alert, error)
	ListBySubject(ctx context.Context, subjectID string) ([]domain.Alert, error)
	Update(ctx context.Context, alertID string, updates map[string]interface{}) error
}

type responseStore interface {
	Put(ctx context.Context, r *domain.ResponseRecord) error
	ListByAlert(ctx context.Context, alertID string) ([]domain.ResponseRecord, error)
}

type profileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, recipientID string, payload domain.Payload, opts dispatch.Options) (*domain.Notification, error)
}

type auditor interface {
	Append(ctx context.Context, e audit.Entry) (*domain.AuditRecord, error)
}

type service struct {
	alerts     alertStore
	responses  responseStore
	profiles   profileStore
	recipients recipient.Resolver
	dispatcher dispatcher
	auditor    auditor
	metrics    *metrics.Metrics
	workers    int
}

type ServiceDeps struct {
	AlertRepo    alertStore
	ResponseRepo responseStore
	ProfileRepo  profileStore
	Recipients   recipient.Resolver
	Dispatcher   dispatcher
	Auditor      auditor
	Metrics      *metrics.Metrics
	Workers      int
}

func NewService(deps ServiceDeps) Service {
	workers := deps.Workers
	if workers <= 0 {
		workers = 1
	}
	return &service{
		alerts:     deps.AlertRepo,
		responses:  deps.ResponseRepo,
		profiles:   deps.ProfileRepo,
		recipients: deps.Recipients,
		dispatcher: deps.Dispatcher,
		auditor:    deps.Auditor,
		metrics:    deps.Metrics,
		workers:    workers,
	}
}

// Raise persists the alert and fans notifications out to the recipient groups
// the escalation table selects. The alert record is the source of truth: it is
// written before any fan-out, and a partial fan-out never fails the raise.
func (s *service) Raise(ctx context.Context, req domain.RaiseAlertRequest, actorID string) (*RaiseResult, error) {
	subject, err := s.profiles.Get(ctx, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("subject %s: %w", req.SubjectID, err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	a := &domain.Alert{
		AlertID:     id.New(),
		SubjectID:   req.SubjectID,
		Category:    req.Category,
		Severity:    req.Severity,
		Location:    req.Location,
		Description: req.Description,
		Status:      domain.AlertStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.alerts.Put(ctx, a); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	s.metrics.AlertsRaised.WithLabelValues(a.Severity).Inc()

	contact, err := s.recipients.EmergencyContact(ctx, a.SubjectID)
	if err != nil {
		slog.Error("resolve emergency contact", "alert_id", a.AlertID, "err", err)
		contact = nil
	}

	groups := escalation.SelectRecipientGroups(a.Severity, contact != nil)
	actions := escalation.ResolveResponse(a.Severity)
	notified := s.fanOut(ctx, a, subject, groups, contact)

	s.auditSoft(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   domain.ActionAlertRaised,
		TargetID: &a.AlertID,
		Origin:   domain.OriginOrchestrator,
		Details: map[string]string{
			"category": a.Category,
			"severity": a.Severity,
			"notified": fmt.Sprintf("%d", notified),
		},
	})

	return &RaiseResult{Alert: a, Actions: actions, Notified: notified}, nil
}

// fanOut dispatches one notification per selected recipient. Care-team members
// get a push notification; the emergency contact, who has no account, gets an
// SMS addressed through the payload data. Individual dispatch failures are
// logged and skipped so one bad recipient never silences the rest.
func (s *service) fanOut(ctx context.Context, a *domain.Alert, subject *domain.Profile, groups escalation.Groups, contact *domain.EmergencyContact) int {
	priority := escalation.PriorityFor(a.Severity)
	payload := domain.Payload{
		Title: fmt.Sprintf("%s alert for %s", a.Severity, subject.DisplayName),
		Body:  alertBody(a),
		Data:  map[string]string{dataKeyAlertID: a.AlertID, dataKeySeverity: a.Severity},
	}

	var recipients []string
	if groups.Caregivers {
		ids, err := s.recipients.Caregivers(ctx, a.SubjectID)
		if err != nil {
			slog.Error("resolve caregivers", "alert_id", a.AlertID, "err", err)
		}
		recipients = append(recipients, ids...)
	}
	if groups.Providers {
		ids, err := s.recipients.Providers(ctx, a.SubjectID)
		if err != nil {
			slog.Error("resolve providers", "alert_id", a.AlertID, "err", err)
		}
		recipients = append(recipients, ids...)
	}

	var (
		mu       sync.Mutex
		notified int
	)
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, rid := range recipients {
		rid := rid
		g.Go(func() error {
			_, err := s.dispatcher.Dispatch(ctx, rid, payload, dispatch.Options{
				Mode:     domain.ModeImmediate,
				Priority: priority,
				Channel:  domain.ChannelPush,
				Source:   &domain.NotificationSource{Kind: domain.SourceAlert, RefID: a.AlertID},
			})
			if err != nil {
				slog.Error("dispatch alert notification", "alert_id", a.AlertID, "recipient_id", rid, "err", err)
				return nil
			}
			mu.Lock()
			notified++
			mu.Unlock()
			return nil
		})
	}

	if groups.EmergencyContact && contact != nil {
		g.Go(func() error {
			data := map[string]string{
				dataKeyAlertID:      a.AlertID,
				dataKeySeverity:     a.Severity,
				dataKeyContactPhone: contact.Phone,
				dataKeyContactName:  contact.Name,
			}
			_, err := s.dispatcher.Dispatch(ctx, a.SubjectID, domain.Payload{
				Title: payload.Title,
				Body:  payload.Body,
				Data:  data,
			}, dispatch.Options{
				Mode:     domain.ModeImmediate,
				Priority: priority,
				Channel:  domain.ChannelSMS,
				Source:   &domain.NotificationSource{Kind: domain.SourceAlert, RefID: a.AlertID},
			})
			if err != nil {
				slog.Error("dispatch emergency contact sms", "alert_id", a.AlertID, "err", err)
				return nil
			}
			mu.Lock()
			notified++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return notified
}

func alertBody(a *domain.Alert) string {
	body := fmt.Sprintf("A %s alert was raised", a.Category)
	if a.Location != nil && *a.Location != "" {
		body += " at " + *a.Location
	}
	if a.Description != nil && *a.Description != "" {
		body += ": " + *a.Description
	}
	return body
}

// ProcessResponse appends a responder action to the alert's history and moves
// the alert's status: a "resolved" response closes it, anything else marks it
// in progress. Resolution tells the subject with a single notification.
func (s *service) ProcessResponse(ctx context.Context, alertID string, req domain.AlertResponseRequest, responderID string) (*domain.Alert, error) {
	switch req.ResponseType {
	case domain.ResponseAcknowledged, domain.ResponseResolved, domain.ResponseEscalated:
	default:
		return nil, fmt.Errorf("unknown response type %q: %w", req.ResponseType, domain.ErrBadRequest)
	}

	a, err := s.alerts.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec := &domain.ResponseRecord{
		AlertID:      alertID,
		ResponseID:   id.New(),
		ResponderID:  responderID,
		ResponseType: req.ResponseType,
		Notes:        req.Notes,
		CreatedAt:    now,
	}
	if err := s.responses.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("record alert response: %w", err)
	}

	status := domain.AlertStatusInProgress
	if req.ResponseType == domain.ResponseResolved {
		status = domain.AlertStatusResolved
	}
	if err := s.alerts.Update(ctx, alertID, map[string]interface{}{
		"status":        status,
		"last_response": req.ResponseType,
	}); err != nil {
		return nil, fmt.Errorf("update alert status: %w", err)
	}
	a.Status = status
	a.LastResponse = &rec.ResponseType
	a.UpdatedAt = now

	if status == domain.AlertStatusResolved {
		_, err := s.dispatcher.Dispatch(ctx, a.SubjectID, domain.Payload{
			Title: "Alert resolved",
			Body:  fmt.Sprintf("Your %s alert has been resolved", a.Category),
			Data:  map[string]string{dataKeyAlertID: a.AlertID},
		}, dispatch.Options{
			Mode:     domain.ModeImmediate,
			Priority: domain.PriorityNormal,
			Channel:  domain.ChannelPush,
			Source:   &domain.NotificationSource{Kind: domain.SourceAlert, RefID: a.AlertID},
		})
		if err != nil {
			slog.Error("dispatch resolution notification", "alert_id", a.AlertID, "err", err)
		}
	}

	s.auditSoft(ctx, audit.Entry{
		ActorID:  responderID,
		Action:   domain.ActionAlertResponded,
		TargetID: &a.AlertID,
		Origin:   domain.OriginOrchestrator,
		Details: map[string]string{
			"response_type": req.ResponseType,
			"status":        status,
		},
	})
	return a, nil
}

func (s *service) Get(ctx context.Context, alertID string) (*domain.Alert, error) {
	return s.alerts.Get(ctx, alertID)
}

func (s *service) ListBySubject(ctx context.Context, subjectID string) ([]domain.Alert, error) {
	return s.alerts.ListBySubject(ctx, subjectID)
}

func (s *service) ListResponses(ctx context.Context, alertID string) ([]domain.ResponseRecord, error) {
	return s.responses.ListByAlert(ctx, alertID)
}

// auditSoft appends an audit record after the entity mutation has already
// been applied. The mutation is the source of truth, so an audit failure is
// logged loudly and counted, never rolled back.
func (s *service) auditSoft(ctx context.Context, e audit.Entry) {
	if _, err := s.auditor.Append(ctx, e); err != nil {
		s.metrics.AuditWriteFailures.Inc()
		slog.Error("audit write failed, forensic coverage lost", "action", e.Action, "err", err)
	}
}
