package application

import (
	"context"
	"errors"
	"slices"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
)

// Principal is the per-request capability handed to every guarded operation.
// Account is nil when the verified identity has no account yet.
type Principal struct {
	Claims  ports.IdentityClaims
	Account *domain.Account
}

func (p Principal) Authenticated() bool {
	return p.Claims.Subject != ""
}

// ValidateToken verifies a raw bearer token with the configured identity provider.
func (s *Service) ValidateToken(ctx context.Context, rawToken string) (ports.IdentityClaims, error) {
	if s.verifier == nil {
		return ports.IdentityClaims{}, domain.ErrUnauthorized
	}
	claims, err := s.verifier.Verify(ctx, rawToken)
	if err != nil {
		return ports.IdentityClaims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

// LoadPrincipal builds the capability for verified claims. An unknown subject
// yields a principal without an account rather than an error.
func (s *Service) LoadPrincipal(ctx context.Context, claims ports.IdentityClaims) (Principal, error) {
	if claims.Subject == "" {
		return Principal{}, domain.ErrUnauthorized
	}
	account, err := s.accounts.GetBySubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Principal{Claims: claims}, nil
		}
		return Principal{}, err
	}
	return Principal{Claims: claims, Account: &account}, nil
}

func (s *Service) RequireRegistered(p Principal) (*domain.Account, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if p.Account == nil {
		return nil, domain.ErrUserNotRegistered
	}
	return p.Account, nil
}

func (s *Service) RequireRole(p Principal, personas ...domain.Persona) (*domain.Account, error) {
	account, err := s.RequireRegistered(p)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(personas, account.Persona) {
		return nil, domain.ErrForbidden
	}
	return account, nil
}

func (s *Service) RequireAdmin(p Principal) (*domain.Account, error) {
	return s.RequireRole(p, domain.PersonaAdmin)
}

// RequireVerifiedMember passes only when the account resolves to a Member
// whose verification outcome is VERIFIED.
func (s *Service) RequireVerifiedMember(ctx context.Context, p Principal) (*domain.Member, error) {
	account, err := s.RequireRegistered(p)
	if err != nil {
		return nil, err
	}
	member, err := s.ResolveMember(ctx, account)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrMemberProfileRequired
	}
	if member.VerificationStatus != domain.VerificationVerified {
		return nil, domain.ErrVerificationRequired
	}
	return member, nil
}

// RequireSteward returns the steward profile owned by the caller.
func (s *Service) RequireSteward(ctx context.Context, p Principal) (*domain.Steward, error) {
	account, err := s.RequireRole(p, domain.PersonaSteward)
	if err != nil {
		return nil, err
	}
	ref := account.StewardRef()
	if ref == nil {
		return nil, domain.ErrStewardProfileRequired
	}
	steward, err := s.stewards.GetByID(ctx, *ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.healOrphan(ctx, account)
			return nil, domain.ErrStewardProfileRequired
		}
		return nil, err
	}
	return &steward, nil
}
