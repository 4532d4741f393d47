package application

import (
	"context"
	"slices"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
)

func identityClaims(kind domain.ProfileKind, ownerID uuid.UUID, email, membershipNumber string) []domain.IdentityClaim {
	out := make([]domain.IdentityClaim, 0, 2)
	if email = domain.NormalizeEmail(email); email != "" {
		out = append(out, domain.IdentityClaim{Type: domain.ClaimEmail, Value: email, OwnerKind: kind, OwnerID: ownerID})
	}
	if number := domain.NormalizeMembershipNumber(membershipNumber); number != "" {
		out = append(out, domain.IdentityClaim{Type: domain.ClaimMembershipNumber, Value: number, OwnerKind: kind, OwnerID: ownerID})
	}
	return out
}

// pendingClaims checks wanted against the stored claims. Values already held
// by one of the allowed owners belong to the same person and are dropped from
// the result; values held by anyone else fail with ErrDuplicateRegistration.
func (s *Service) pendingClaims(ctx context.Context, wanted []domain.IdentityClaim, allowed ...uuid.UUID) ([]domain.IdentityClaim, error) {
	existing, err := s.claims.FindConflicts(ctx, wanted)
	if err != nil {
		return nil, err
	}
	held := make(map[domain.ClaimType]map[string]bool, 2)
	for _, c := range existing {
		if !slices.Contains(allowed, c.OwnerID) {
			return nil, domain.ErrDuplicateRegistration
		}
		if held[c.Type] == nil {
			held[c.Type] = map[string]bool{}
		}
		held[c.Type][c.Value] = true
	}
	out := make([]domain.IdentityClaim, 0, len(wanted))
	for _, c := range wanted {
		if !held[c.Type][c.Value] {
			out = append(out, c)
		}
	}
	return out, nil
}
