// Package dispatch turns a (recipient, payload) pair into a delivered or
// deferred notification. The persisted record is the in-app inbox entry; push
// and SMS are side channels whose failures never take the inbox entry down
// with them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/carelink-api/internal/domain"
	"github.com/carelink-api/internal/pkg/id"
	"github.com/carelink-api/internal/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// dataKeyContactPhone carries the SMS destination for notifications tagged
// for an emergency contact, who has no profile of their own.
const dataKeyContactPhone = "contact_phone"

// Options controls how a dispatch is delivered.
type Options struct {
	Mode         string // "immediate" | "scheduled"
	ScheduledFor *time.Time
	Priority     string // defaults to "normal"
	Channel      string // "inbox" | "push" | "sms"; defaults to "push"
	Source       *domain.NotificationSource
}

// Report summarizes one deferred sweep.
type Report struct {
	Selected  int
	Sent      int
	Failed    int
	ClaimLost int
}

type Service interface {
	Dispatch(ctx context.Context, recipientID string, payload domain.Payload, opts Options) (*domain.Notification, error)
	ProcessDeferred(ctx context.Context, now time.Time) (Report, error)
	Inbox(ctx context.Context, recipientID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, recipientID string) error
	QueryDueScheduled(ctx context.Context, now time.Time) ([]domain.Notification, error)
	Claim(ctx context.Context, notificationID string, at time.Time) error
	MarkSent(ctx context.Context, notificationID string, at time.Time) error
	MarkFailed(ctx context.Context, notificationID string, at time.Time, reason string) error
}

type profileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

type pushSender interface {
	Send(ctx context.Context, pushToken string, payload domain.Payload) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	repo     notificationStore
	profiles profileStore
	push     pushSender
	sms      smsSender
	metrics  *metrics.Metrics
	workers  int
}

type ServiceDeps struct {
	NotificationRepo notificationStore
	ProfileRepo      profileStore
	PushSender       pushSender
	SMSSender        smsSender
	Metrics          *metrics.Metrics
	Workers          int
}

func NewService(deps ServiceDeps) Service {
	workers := deps.Workers
	if workers <= 0 {
		workers = 1
	}
	return &service{
		repo:     deps.NotificationRepo,
		profiles: deps.ProfileRepo,
		push:     deps.PushSender,
		sms:      deps.SMSSender,
		metrics:  deps.Metrics,
		workers:  workers,
	}
}

// Dispatch creates the inbox record and, in immediate mode, attempts the side
// channel synchronously. A side-channel failure is logged and counted but
// never escalated: the inbox record already counts as delivered. Scheduled
// mode persists the record untouched until the deferred sweep picks it up.
func (s *service) Dispatch(ctx context.Context, recipientID string, payload domain.Payload, opts Options) (*domain.Notification, error) {
	now := time.Now().UTC().Truncate(time.Second)

	n := &domain.Notification{
		NotificationID: id.New(),
		RecipientID:    recipientID,
		Payload:        payload,
		Channel:        opts.Channel,
		Priority:       opts.Priority,
		Mode:           opts.Mode,
		Source:         opts.Source,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if n.Channel == "" {
		n.Channel = domain.ChannelPush
	}
	if n.Priority == "" {
		n.Priority = domain.PriorityNormal
	}

	switch opts.Mode {
	case domain.ModeImmediate:
		n.Status = domain.StatusSent
		n.SentAt = &now
		if err := s.repo.Put(ctx, n); err != nil {
			return nil, fmt.Errorf("create notification: %w", err)
		}
		if err := s.deliver(ctx, n); err != nil {
			s.metrics.ChannelFailures.WithLabelValues(n.Channel).Inc()
			slog.Warn("side channel delivery failed",
				"notification_id", n.NotificationID, "channel", n.Channel, "err", err)
		}
		s.metrics.NotificationsSent.WithLabelValues(domain.ModeImmediate).Inc()
		return n, nil

	case domain.ModeScheduled:
		if opts.ScheduledFor == nil {
			return nil, fmt.Errorf("scheduled dispatch needs scheduled_for: %w", domain.ErrBadRequest)
		}
		at := opts.ScheduledFor.UTC().Truncate(time.Second)
		n.Status = domain.StatusScheduled
		n.ScheduledFor = &at
		if err := s.repo.Put(ctx, n); err != nil {
			return nil, fmt.Errorf("create scheduled notification: %w", err)
		}
		return n, nil

	default:
		return nil, fmt.Errorf("unknown dispatch mode %q: %w", opts.Mode, domain.ErrBadRequest)
	}
}

// ProcessDeferred delivers every scheduled notification that has come due.
// Each record is claimed before delivery so overlapping sweeps never deliver
// the same record twice. Delivery is single-attempt: success goes to sent,
// any delivery error goes to failed with the reason recorded. Terminal states
// are never re-selected because the due query keys on status "scheduled".
func (s *service) ProcessDeferred(ctx context.Context, now time.Time) (Report, error) {
	now = now.UTC().Truncate(time.Second)

	due, err := s.repo.QueryDueScheduled(ctx, now)
	if err != nil {
		return Report{}, fmt.Errorf("select due scheduled notifications: %w", err)
	}

	var (
		mu     sync.Mutex
		report = Report{Selected: len(due)}
	)
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, n := range due {
		n := n
		g.Go(func() error {
			if err := s.repo.Claim(ctx, n.NotificationID, now); err != nil {
				mu.Lock()
				defer mu.Unlock()
				if errors.Is(err, domain.ErrConflict) {
					report.ClaimLost++
				} else {
					report.Failed++
					slog.Error("claim scheduled notification", "notification_id", n.NotificationID, "err", err)
				}
				return nil
			}

			if err := s.deliver(ctx, &n); err != nil {
				if markErr := s.repo.MarkFailed(ctx, n.NotificationID, now, err.Error()); markErr != nil {
					slog.Error("mark notification failed", "notification_id", n.NotificationID, "err", markErr)
				}
				s.metrics.NotificationsFailed.Inc()
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}

			if err := s.repo.MarkSent(ctx, n.NotificationID, now); err != nil {
				slog.Error("mark notification sent", "notification_id", n.NotificationID, "err", err)
			}
			s.metrics.NotificationsSent.WithLabelValues(domain.ModeScheduled).Inc()
			mu.Lock()
			report.Sent++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return report, nil
}

// deliver attempts the side channel for a notification. Inbox-only records
// have nothing to deliver beyond the persisted entry itself. A channel whose
// sender is not configured fails the same way as any other delivery error.
func (s *service) deliver(ctx context.Context, n *domain.Notification) error {
	switch n.Channel {
	case domain.ChannelInbox:
		return nil

	case domain.ChannelSMS:
		if s.sms == nil {
			return errors.New("sms channel not configured")
		}
		to := n.Payload.Data[dataKeyContactPhone]
		if to == "" {
			p, err := s.profiles.Get(ctx, n.RecipientID)
			if err != nil {
				return fmt.Errorf("resolve sms recipient: %w", err)
			}
			if p.Phone == nil || *p.Phone == "" {
				return fmt.Errorf("no phone on file for recipient %s", n.RecipientID)
			}
			to = *p.Phone
		}
		return s.sms.SendSMS(ctx, to, n.Payload.Title+": "+n.Payload.Body)

	default: // push
		if s.push == nil {
			return errors.New("push channel not configured")
		}
		p, err := s.profiles.Get(ctx, n.RecipientID)
		if err != nil {
			return fmt.Errorf("resolve push recipient: %w", err)
		}
		if p.PushToken == nil || *p.PushToken == "" {
			// No device registered; the inbox record stands on its own.
			return nil
		}
		return s.push.Send(ctx, *p.PushToken, n.Payload)
	}
}

func (s *service) Inbox(ctx context.Context, recipientID string, unreadOnly bool) ([]domain.Notification, error) {
	return s.repo.ListByRecipient(ctx, recipientID, unreadOnly)
}

// MarkRead flips the read flag for the recipient's own notification. The
// ownership check is enforced twice: here for a clean Forbidden on a foreign
// id, and again as a condition on the write so a racing recipient change can
// never slip an update through.
func (s *service) MarkRead(ctx context.Context, notificationID, recipientID string) (*domain.Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != recipientID {
		return nil, fmt.Errorf("notification belongs to another recipient: %w", domain.ErrForbidden)
	}
	if err := s.repo.MarkRead(ctx, notificationID, recipientID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("notification belongs to another recipient: %w", domain.ErrForbidden)
		}
		return nil, err
	}
	n.Read = 1
	return n, nil
}
