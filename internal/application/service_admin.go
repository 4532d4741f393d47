package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/google/uuid"
)

// ConfirmIdentity records the first successful identity confirmation as a
// minimal GUEST account. Repeated calls return the existing account.
func (s *Service) ConfirmIdentity(ctx context.Context, claims ports.IdentityClaims) (AccountResponse, error) {
	if claims.Subject == "" {
		return AccountResponse{}, domain.ErrUnauthorized
	}
	if err := domain.ValidateEmail(domain.NormalizeEmail(claims.Email)); err != nil {
		return AccountResponse{}, err
	}
	existing, err := s.optionalAccount(ctx, claims.Subject)
	if err != nil {
		return AccountResponse{}, err
	}
	if existing != nil {
		return toAccountResponse(*existing), nil
	}
	account, err := s.accountForClaims(ctx, Principal{Claims: claims}, "")
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent confirmation for the same subject won the insert.
			if raced, getErr := s.accounts.GetBySubject(ctx, claims.Subject); getErr == nil {
				return toAccountResponse(raced), nil
			}
		}
		return AccountResponse{}, err
	}
	s.logger.InfoContext(ctx, "account created",
		"operation", "confirm_identity",
		"outcome", "success",
		"account_id", account.ID.String(),
	)
	return toAccountResponse(account), nil
}

func (s *Service) GetMe(ctx context.Context, p Principal) (MeResponse, error) {
	account, err := s.RequireRegistered(p)
	if err != nil {
		return MeResponse{}, err
	}
	out := MeResponse{}
	member, err := s.ResolveMember(ctx, account)
	switch {
	case err == nil && member != nil:
		view := toMemberResponse(*member)
		out.Member = &view
	case err != nil && !errors.Is(err, domain.ErrMemberNotFound):
		return MeResponse{}, err
	}
	// ResolveMember may have healed the account in place.
	out.Account = toAccountResponse(*account)
	return out, nil
}

func (s *Service) GetMemberProfile(ctx context.Context, p Principal) (MemberResponse, error) {
	member, err := s.RequireVerifiedMember(ctx, p)
	if err != nil {
		return MemberResponse{}, err
	}
	return toMemberResponse(*member), nil
}

func (s *Service) GetOwnSteward(ctx context.Context, p Principal) (ApplicationResponse, error) {
	steward, err := s.RequireSteward(ctx, p)
	if err != nil {
		return ApplicationResponse{}, err
	}
	return toApplicationResponse(steward.PersonaProfile), nil
}

func (s *Service) ListStewardMarketplace(ctx context.Context, p Principal, limit, offset int) ([]ApplicationResponse, error) {
	if _, err := s.RequireVerifiedMember(ctx, p); err != nil {
		return nil, err
	}
	stewards, err := s.stewards.ListApproved(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]ApplicationResponse, 0, len(stewards))
	for _, st := range stewards {
		view := toApplicationResponse(st.PersonaProfile)
		// Payout and invitation state are private to the steward.
		view.InvitationPending = false
		view.PaymentAccountID = ""
		out = append(out, view)
	}
	return out, nil
}

// SetMemberVerification writes a verification outcome on a member. Only the
// status, notes and verification date change.
func (s *Service) SetMemberVerification(ctx context.Context, memberID uuid.UUID, req VerificationRequest) (MemberResponse, error) {
	return s.setMemberVerification(ctx, memberID, req, s.nowFn())
}

func (s *Service) setMemberVerification(ctx context.Context, memberID uuid.UUID, req VerificationRequest, at time.Time) (MemberResponse, error) {
	status, err := domain.ParseVerificationStatus(req.Status)
	if err != nil {
		return MemberResponse{}, err
	}
	var member domain.Member
	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		member, err = s.members.SetVerification(txCtx, memberID, status, req.Notes, at)
		if err != nil {
			return err
		}
		return s.enqueueEvent(txCtx, eventMemberVerificationUpdate, member.ID.String(), map[string]any{
			"member_id":           member.ID.String(),
			"verification_status": string(member.VerificationStatus),
		})
	})
	if err != nil {
		return MemberResponse{}, err
	}
	s.logger.InfoContext(ctx, "member verification updated",
		"operation", "set_member_verification",
		"outcome", "success",
		"member_id", member.ID.String(),
		"verification_status", string(status),
	)
	return toMemberResponse(member), nil
}

// SetSellerVerification is the only path from PENDING back to VERIFIED.
func (s *Service) SetSellerVerification(ctx context.Context, sellerID uuid.UUID, req VerificationRequest) (ApplicationResponse, error) {
	status, err := domain.ParseVerificationStatus(req.Status)
	if err != nil {
		return ApplicationResponse{}, err
	}
	if status != domain.VerificationPending && status != domain.VerificationVerified {
		return ApplicationResponse{}, fmt.Errorf("%w: seller verification must be PENDING or VERIFIED", domain.ErrInvalidInput)
	}
	seller, err := s.sellers.SetVerification(ctx, sellerID, status, req.Notes, s.nowFn())
	if err != nil {
		return ApplicationResponse{}, err
	}
	s.logger.InfoContext(ctx, "seller verification updated",
		"operation", "set_seller_verification",
		"outcome", "success",
		"seller_id", seller.ID.String(),
		"verification_status", string(status),
	)
	return toSellerResponse(seller), nil
}

// RemoveAccount deletes an account. With purgeProfile the owned profile and
// its identity claims go too.
func (s *Service) RemoveAccount(ctx context.Context, accountID uuid.UUID, purgeProfile bool) (RemoveAccountResult, error) {
	out := RemoveAccountResult{AccountID: accountID}
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		account, err := s.accounts.GetByID(txCtx, accountID)
		if err != nil {
			return err
		}
		if err := s.accounts.Delete(txCtx, accountID); err != nil {
			return err
		}
		if !purgeProfile || account.Profile == nil {
			return nil
		}
		ref := *account.Profile
		if err := s.claims.DeleteByOwner(txCtx, ref.Kind, ref.ID); err != nil {
			return err
		}
		if ref.Kind == domain.ProfileKindMember {
			err = s.members.Delete(txCtx, ref.ID)
		} else {
			err = s.personas.Delete(txCtx, ref.Kind, ref.ID)
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		out.ProfilePurged = true
		return nil
	})
	if err != nil {
		return RemoveAccountResult{}, err
	}
	s.logger.WarnContext(ctx, "account removed",
		"operation", "remove_account",
		"outcome", "success",
		"account_id", accountID.String(),
		"profile_purged", out.ProfilePurged,
	)
	return out, nil
}

// PromoteAdmin turns the account registered under email into an ADMIN. The
// profile ref is dropped because admins own no profile.
func (s *Service) PromoteAdmin(ctx context.Context, email string) (AccountResponse, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return AccountResponse{}, err
	}
	account.Profile = nil
	account.Persona = domain.PersonaAdmin
	account.OnboardingStage = domain.OnboardingComplete
	saved, err := s.accounts.Save(ctx, account)
	if err != nil {
		return AccountResponse{}, err
	}
	s.logger.WarnContext(ctx, "account promoted to admin",
		"operation", "promote_admin",
		"outcome", "success",
		"account_id", saved.ID.String(),
	)
	return toAccountResponse(saved), nil
}
