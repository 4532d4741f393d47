package application

import (
	"context"
	"errors"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
)

// ResolveMemberIdentity follows the account's profile ref to the canonical
// Member id. A nil id with a nil error means the account has no Member behind
// it. A ref pointing at a missing profile row is healed and reported as
// ErrMemberNotFound.
func (s *Service) ResolveMemberIdentity(ctx context.Context, account *domain.Account) (*uuid.UUID, error) {
	if account == nil || account.Profile == nil {
		return nil, nil
	}
	ref := *account.Profile
	if ref.Kind == domain.ProfileKindMember {
		id := ref.ID
		return &id, nil
	}
	profile, err := s.personas.Get(ctx, ref.Kind, ref.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.healOrphan(ctx, account)
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return profile.MemberID, nil
}

// ResolveMember returns the Member behind the account, or nil when none is
// reachable through its profile chain.
func (s *Service) ResolveMember(ctx context.Context, account *domain.Account) (*domain.Member, error) {
	memberID, err := s.ResolveMemberIdentity(ctx, account)
	if err != nil || memberID == nil {
		return nil, err
	}
	member, err := s.members.GetByID(ctx, *memberID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		// Only the account's own ref is dangling; a stale back-reference on a
		// persona profile is left for the profile owner to repair.
		if ref := account.MemberRef(); ref != nil && *ref == *memberID {
			s.healOrphan(ctx, account)
		}
		return nil, domain.ErrMemberNotFound
	}
	return &member, nil
}

// healOrphan clears a dangling profile ref so onboarding can be retried.
func (s *Service) healOrphan(ctx context.Context, account *domain.Account) {
	if account.Profile == nil {
		return
	}
	kind := account.Profile.Kind
	profileID := account.Profile.ID
	healed := *account
	healed.ClearProfile()
	saved, err := s.accounts.Save(ctx, healed)
	if err != nil {
		s.logger.ErrorContext(ctx, "orphan profile ref could not be cleared",
			"operation", "heal_orphan",
			"outcome", "failure",
			"account_id", account.ID.String(),
			"profile_kind", string(kind),
			"profile_id", profileID.String(),
			"error", err,
		)
		return
	}
	*account = saved
	s.metrics.OrphanHealed(string(kind))
	s.logger.WarnContext(ctx, "orphan profile ref cleared",
		"operation", "heal_orphan",
		"outcome", "success",
		"account_id", account.ID.String(),
		"profile_kind", string(kind),
		"profile_id", profileID.String(),
	)
}
