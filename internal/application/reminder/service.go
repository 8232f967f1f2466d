// Package reminder owns recurring care-item reminders: CRUD for the records,
// the hourly due-window scheduler, and the manual medication-event path. Both
// the scheduler and the manual path compute the next due instant through
// schedule.NextDue so they can never drift apart.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carelink-api/internal/application/audit"
	"github.com/carelink-api/internal/application/dispatch"
	"github.com/carelink-api/internal/domain"
	"github.com/carelink-api/internal/pkg/id"
	"github.com/carelink-api/internal/pkg/metrics"
	"github.com/carelink-api/internal/pkg/schedule"
	"golang.org/x/sync/errgroup"
)

// Report summarizes one scheduler tick.
type Report struct {
	Due       int
	Fired     int
	ClaimLost int
	Errors    int
}

type Service interface {
	Create(ctx context.Context, req domain.CreateReminderRequest, actorID string) (*domain.Reminder, error)
	ListBySubject(ctx context.Context, subjectID string) ([]domain.Reminder, error)
	Update(ctx context.Context, reminderID string, req domain.UpdateReminderRequest, actorID string) (*domain.Reminder, error)
	FireDueReminders(ctx context.Context, tick time.Time) (Report, error)
	LogMedicationEvent(ctx context.Context, req domain.MedicationEventRequest, actorID string) (*domain.Reminder, error)
}

type reminderStore interface {
	Put(ctx context.Context, rem *domain.Reminder) error
	Get(ctx context.Context, reminderID string) (*domain.Reminder, error)
	ListBySubject(ctx context.Context, subjectID string) ([]domain.Reminder, error)
	GetBySubjectItem(ctx context.Context, subjectID, itemID string) (*domain.Reminder, error)
	QueryDueWindow(ctx context.Context, from, to time.Time) ([]domain.Reminder, error)
	ClaimDue(ctx context.Context, reminderID string, observedDueAt, newDueAt, firedAt time.Time) error
	Update(ctx context.Context, reminderID string, updates map[string]interface{}) error
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
	repo       reminderStore
	profiles   profileStore
	dispatcher dispatcher
	auditor    auditor
	metrics    *metrics.Metrics
	lookahead  time.Duration
	workers    int
}

type ServiceDeps struct {
	ReminderRepo reminderStore
	ProfileRepo  profileStore
	Dispatcher   dispatcher
	Auditor      auditor
	Metrics      *metrics.Metrics
	Lookahead    time.Duration
	Workers      int
}

func NewService(deps ServiceDeps) Service {
	workers := deps.Workers
	if workers <= 0 {
		workers = 1
	}
	lookahead := deps.Lookahead
	if lookahead <= 0 {
		lookahead = time.Hour
	}
	return &service{
		repo:       deps.ReminderRepo,
		profiles:   deps.ProfileRepo,
		dispatcher: deps.Dispatcher,
		auditor:    deps.Auditor,
		metrics:    deps.Metrics,
		lookahead:  lookahead,
		workers:    workers,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateReminderRequest, actorID string) (*domain.Reminder, error) {
	if _, err := s.profiles.Get(ctx, req.SubjectID); err != nil {
		return nil, fmt.Errorf("subject %s: %w", req.SubjectID, err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	rem := &domain.Reminder{
		ReminderID:     id.New(),
		SubjectID:      req.SubjectID,
		ItemID:         req.ItemID,
		ItemLabel:      req.ItemLabel,
		DosageLabel:    req.DosageLabel,
		FrequencyLabel: req.FrequencyLabel,
		NextDueAt:      schedule.NextDue(now, req.FrequencyLabel),
		IsActive:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Put(ctx, rem); err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	s.auditSoft(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   domain.ActionReminderCreated,
		TargetID: &rem.ReminderID,
		Origin:   domain.OriginAPI,
		Details:  map[string]string{"item_label": rem.ItemLabel, "frequency": rem.FrequencyLabel},
	})
	return rem, nil
}

func (s *service) ListBySubject(ctx context.Context, subjectID string) ([]domain.Reminder, error) {
	return s.repo.ListBySubject(ctx, subjectID)
}

func (s *service) Update(ctx context.Context, reminderID string, req domain.UpdateReminderRequest, actorID string) (*domain.Reminder, error) {
	rem, err := s.repo.Get(ctx, reminderID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.ItemLabel != nil {
		updates["item_label"] = *req.ItemLabel
		rem.ItemLabel = *req.ItemLabel
	}
	if req.DosageLabel != nil {
		updates["dosage_label"] = *req.DosageLabel
		rem.DosageLabel = *req.DosageLabel
	}
	if req.FrequencyLabel != nil && *req.FrequencyLabel != rem.FrequencyLabel {
		now := time.Now().UTC().Truncate(time.Second)
		rem.FrequencyLabel = *req.FrequencyLabel
		rem.NextDueAt = schedule.NextDue(now, rem.FrequencyLabel)
		updates["frequency_label"] = rem.FrequencyLabel
		updates["next_due_at"] = rem.NextDueAt.Format(time.RFC3339)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
		rem.IsActive = *req.IsActive
	}
	if len(updates) == 0 {
		return rem, nil
	}

	if err := s.repo.Update(ctx, reminderID, updates); err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}

	s.auditSoft(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   domain.ActionReminderUpdated,
		TargetID: &rem.ReminderID,
		Origin:   domain.OriginAPI,
	})
	return rem, nil
}

// FireDueReminders processes every active reminder due within the lookahead
// window of the tick instant. Each reminder is claimed first: the conditional
// advance of next_due_at is what makes overlapping ticks safe, so a reminder
// observed due by two ticks fires exactly once. The claim precedes dispatch;
// a delivery failure is logged and does not undo the advance.
func (s *service) FireDueReminders(ctx context.Context, tick time.Time) (Report, error) {
	tick = tick.UTC().Truncate(time.Second)

	due, err := s.repo.QueryDueWindow(ctx, tick, tick.Add(s.lookahead))
	if err != nil {
		return Report{}, fmt.Errorf("select due reminders: %w", err)
	}

	var (
		mu     sync.Mutex
		report = Report{Due: len(due)}
	)
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, rem := range due {
		rem := rem
		g.Go(func() error {
			newDue := schedule.NextDue(tick, rem.FrequencyLabel)
			if err := s.repo.ClaimDue(ctx, rem.ReminderID, rem.NextDueAt, newDue, tick); err != nil {
				mu.Lock()
				defer mu.Unlock()
				if errors.Is(err, domain.ErrConflict) {
					s.metrics.ReminderClaimConflicts.Inc()
					report.ClaimLost++
				} else {
					s.metrics.ReminderErrors.Inc()
					report.Errors++
					slog.Error("claim due reminder", "reminder_id", rem.ReminderID, "err", err)
				}
				return nil
			}

			s.fireOne(ctx, &rem, tick)
			s.metrics.RemindersFired.Inc()
			mu.Lock()
			report.Fired++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return report, nil
}

// fireOne dispatches the reminder notification and writes the audit record.
// Both failures are soft: the claim already advanced the reminder, and one
// bad reminder must not take the rest of the batch with it.
func (s *service) fireOne(ctx context.Context, rem *domain.Reminder, tick time.Time) {
	body := fmt.Sprintf("Time to take %s", rem.ItemLabel)
	if rem.DosageLabel != "" {
		body = fmt.Sprintf("Time to take %s (%s)", rem.ItemLabel, rem.DosageLabel)
	}
	_, err := s.dispatcher.Dispatch(ctx, rem.SubjectID, domain.Payload{
		Title: "Medication reminder",
		Body:  body,
		Data:  map[string]string{"item_id": rem.ItemID, "reminder_id": rem.ReminderID},
	}, dispatch.Options{
		Mode:     domain.ModeImmediate,
		Priority: domain.PriorityNormal,
		Source:   &domain.NotificationSource{Kind: domain.SourceReminder, RefID: rem.ReminderID},
	})
	if err != nil {
		slog.Error("dispatch reminder notification", "reminder_id", rem.ReminderID, "err", err)
	}

	s.auditSoft(ctx, audit.Entry{
		ActorID:  rem.SubjectID,
		Action:   domain.ActionReminderFired,
		TargetID: &rem.ReminderID,
		Origin:   domain.OriginScheduler,
		Details: map[string]string{
			"item_id":  rem.ItemID,
			"fired_at": tick.Format(time.RFC3339),
		},
	})
}

// LogMedicationEvent records a manual medication event. A "taken" event
// advances the reminder from the actual consumption instant, through the same
// due-time function the scheduler uses.
func (s *service) LogMedicationEvent(ctx context.Context, req domain.MedicationEventRequest, actorID string) (*domain.Reminder, error) {
	switch req.Status {
	case domain.MedicationTaken, domain.MedicationSkipped, domain.MedicationMissed:
	default:
		return nil, fmt.Errorf("unknown medication status %q: %w", req.Status, domain.ErrBadRequest)
	}

	at := time.Now().UTC().Truncate(time.Second)
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			return nil, fmt.Errorf("invalid event time %q: %w", req.At, domain.ErrBadRequest)
		}
		at = parsed.UTC().Truncate(time.Second)
	}

	rem, err := s.repo.GetBySubjectItem(ctx, req.SubjectID, req.ItemID)
	if err != nil {
		return nil, err
	}

	if req.Status == domain.MedicationTaken {
		rem.NextDueAt = schedule.NextDue(at, rem.FrequencyLabel)
		rem.LastFiredAt = &at
		if err := s.repo.Update(ctx, rem.ReminderID, map[string]interface{}{
			"next_due_at":   rem.NextDueAt.Format(time.RFC3339),
			"last_fired_at": at.Format(time.RFC3339),
		}); err != nil {
			return nil, fmt.Errorf("advance reminder: %w", err)
		}
	}

	s.auditSoft(ctx, audit.Entry{
		ActorID:  actorID,
		Action:   domain.ActionMedicationLogged,
		TargetID: &rem.ReminderID,
		Origin:   domain.OriginAPI,
		Details: map[string]string{
			"item_id": req.ItemID,
			"status":  req.Status,
			"at":      at.Format(time.RFC3339),
		},
	})
	return rem, nil
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
