// Package recipient resolves who must hear about a subject's events: the
// care-team links plus the emergency contact stored on the subject's profile.
package recipient

import (
	"context"
	"errors"

	"github.com/carelink-api/internal/domain"
)

// Resolver is the lookup surface the alert orchestrator consumes.
type Resolver interface {
	Caregivers(ctx context.Context, subjectID string) ([]string, error)
	Providers(ctx context.Context, subjectID string) ([]string, error)
	EmergencyContact(ctx context.Context, subjectID string) (*domain.EmergencyContact, error)
}

type careTeamStore interface {
	ListBySubject(ctx context.Context, subjectID string) ([]domain.CareTeamMember, error)
}

type profileStore interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

type resolver struct {
	careTeam careTeamStore
	profiles profileStore
}

func NewResolver(careTeam careTeamStore, profiles profileStore) Resolver {
	return &resolver{careTeam: careTeam, profiles: profiles}
}

func (r *resolver) Caregivers(ctx context.Context, subjectID string) ([]string, error) {
	return r.membersByRelation(ctx, subjectID, domain.RelationCaregiver)
}

func (r *resolver) Providers(ctx context.Context, subjectID string) ([]string, error) {
	return r.membersByRelation(ctx, subjectID, domain.RelationProvider)
}

func (r *resolver) membersByRelation(ctx context.Context, subjectID, relation string) ([]string, error) {
	members, err := r.careTeam.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, m := range members {
		if m.Relation == relation {
			ids = append(ids, m.MemberID)
		}
	}
	return ids, nil
}

// EmergencyContact returns nil when the subject has no contact on file; a
// missing profile is also treated as no contact, since the caller already
// verified the subject exists.
func (r *resolver) EmergencyContact(ctx context.Context, subjectID string) (*domain.EmergencyContact, error) {
	p, err := r.profiles.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return p.EmergencyContact, nil
}
