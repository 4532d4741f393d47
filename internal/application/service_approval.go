package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/google/uuid"
)

// DecideApplication applies an admin decision to a persona application.
// Approval runs the same routine as auto-approval and is safe to retry.
func (s *Service) DecideApplication(ctx context.Context, p Principal, rawKind string, id uuid.UUID, req DecisionRequest) (ApplicationResponse, error) {
	if _, err := s.RequireAdmin(p); err != nil {
		return ApplicationResponse{}, err
	}
	kind, err := parseProfileKind(rawKind)
	if err != nil {
		return ApplicationResponse{}, err
	}
	decision, err := domain.ParseApplicationDecision(req.Status)
	if err != nil {
		return ApplicationResponse{}, err
	}

	switch decision {
	case domain.ApplicationApproved:
		if _, err := s.approveProfile(ctx, kind, id, nil); err != nil {
			s.logger.WarnContext(ctx, "manual approval failed",
				"operation", "decide_application",
				"outcome", "failure",
				"profile_kind", string(kind),
				"profile_id", id.String(),
				"error", err,
			)
			return ApplicationResponse{}, err
		}
	case domain.ApplicationRejected:
		if err := s.rejectProfile(ctx, kind, id, req.Notes); err != nil {
			return ApplicationResponse{}, err
		}
	}
	return s.applicationView(ctx, kind, id)
}

// approveProfile provisions the payment account, links or invites the
// applicant, and marks the profile APPROVED. A profile that is already
// APPROVED with a payment account is returned unchanged.
func (s *Service) approveProfile(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, applicantAccount *uuid.UUID) (domain.PersonaProfile, error) {
	profile, err := s.personas.Get(ctx, kind, id)
	if err != nil {
		return domain.PersonaProfile{}, err
	}
	if !profile.Status.CanTransitionTo(domain.ApplicationApproved) {
		return domain.PersonaProfile{}, domain.ErrInvalidTransition
	}
	if profile.Status == domain.ApplicationApproved && profile.PaymentAccountID != "" {
		return profile, nil
	}

	paymentAccountID, err := s.provisionPaymentAccount(ctx, profile)
	if err != nil {
		return domain.PersonaProfile{}, err
	}

	var (
		approved domain.PersonaProfile
		token    string
	)
	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		now := s.nowFn()
		linked, err := s.linkApplicantAccount(txCtx, profile, applicantAccount)
		if err != nil {
			return err
		}
		if !linked {
			token, err = s.issueInvitation(txCtx, profile)
			if err != nil {
				return err
			}
		}
		approved, err = s.personas.MarkApproved(txCtx, kind, id, paymentAccountID, now)
		if err != nil {
			return err
		}
		return s.enqueueEvent(txCtx, eventProfileApproved, id.String(), map[string]any{
			"profile_id":         id.String(),
			"profile_kind":       string(kind),
			"payment_account_id": approved.PaymentAccountID,
			"account_linked":     linked,
		})
	})
	if err != nil {
		return domain.PersonaProfile{}, err
	}

	vars := map[string]string{"profile_kind": string(kind), "name": approved.Name}
	if token != "" {
		vars["invitation_url"] = s.invitationURL(kind, id, token)
	}
	s.requestEmail(ctx, approved.Email, "application_approved", vars)

	s.logger.InfoContext(ctx, "profile approved",
		"operation", "approve_profile",
		"outcome", "success",
		"profile_kind", string(kind),
		"profile_id", id.String(),
		"invitation_issued", token != "",
	)
	return approved, nil
}

// provisionPaymentAccount creates the payout account at most once per
// profile, serialised per applicant email. No transaction is open while the
// provider is called.
func (s *Service) provisionPaymentAccount(ctx context.Context, profile domain.PersonaProfile) (string, error) {
	if profile.PaymentAccountID != "" {
		return profile.PaymentAccountID, nil
	}
	if s.payments == nil {
		return "", fmt.Errorf("%w: payment provider not configured", domain.ErrDependencyUnavailable)
	}
	email := domain.NormalizeEmail(profile.Email)
	if s.cache != nil {
		lockKey := "identity:payment-lock:" + email
		acquired, err := s.cache.SetIfAbsent(ctx, lockKey, profile.ID.String(), s.cfg.PaymentLockTTL)
		if err != nil {
			return "", fmt.Errorf("%w: payment lock: %v", domain.ErrDependencyUnavailable, err)
		}
		if !acquired {
			return "", fmt.Errorf("%w: payment account provisioning already in progress", domain.ErrConflict)
		}
		defer func() {
			if err := s.cache.Delete(context.WithoutCancel(ctx), lockKey); err != nil {
				s.logger.WarnContext(ctx, "payment lock release failed",
					"operation", "provision_payment_account",
					"outcome", "failure",
					"error", err,
				)
			}
		}()
	}

	// Another approval may have finished while the lock was contended.
	current, err := s.personas.Get(ctx, profile.Kind, profile.ID)
	if err != nil {
		return "", err
	}
	if current.PaymentAccountID != "" {
		return current.PaymentAccountID, nil
	}

	accountID, err := s.payments.CreateConnectedAccount(ctx, ports.PaymentAccountRequest{
		Kind:           profile.Kind,
		ProfileID:      profile.ID,
		Email:          email,
		DisplayName:    profile.Name,
		IdempotencyKey: paymentIdempotencyKey(email, profile),
	})
	if err != nil {
		return "", fmt.Errorf("%w: payment provider: %v", domain.ErrDependencyUnavailable, err)
	}
	if accountID == "" {
		return "", fmt.Errorf("%w: payment provider returned no account id", domain.ErrDependencyUnavailable)
	}
	return accountID, nil
}

// paymentIdempotencyKey is stable across retries of one approval. A profile
// filed after a rejection gets its own key, since the provider refuses a
// reused key whose request metadata changed.
func paymentIdempotencyKey(email string, profile domain.PersonaProfile) string {
	return "connect-account:" + email + ":" + strings.ToLower(string(profile.Kind)) + ":" + profile.ID.String()
}

// linkApplicantAccount points an existing GUEST account at the approved
// profile. It reports false when the applicant has no account yet.
func (s *Service) linkApplicantAccount(ctx context.Context, profile domain.PersonaProfile, applicantAccount *uuid.UUID) (bool, error) {
	var (
		account domain.Account
		err     error
	)
	if applicantAccount != nil {
		account, err = s.accounts.GetByID(ctx, *applicantAccount)
	} else {
		account, err = s.accounts.GetByEmail(ctx, profile.Email)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.bindAccount(ctx, &account, profile); err != nil {
		return false, err
	}
	return true, nil
}

// bindAccount moves account onto profile's persona. The account's member, if
// any, is kept reachable through the profile back-reference.
func (s *Service) bindAccount(ctx context.Context, account *domain.Account, profile domain.PersonaProfile) error {
	ref := domain.ProfileRef{Kind: profile.Kind, ID: profile.ID}
	if account.Profile != nil && *account.Profile == ref {
		return nil
	}
	if account.Persona != domain.PersonaGuest {
		return fmt.Errorf("%w: account already holds the %s persona", domain.ErrConflict, account.Persona)
	}
	if holder, err := s.accounts.GetByProfile(ctx, ref); err == nil && holder.ID != account.ID {
		return fmt.Errorf("%w: profile already claimed by another account", domain.ErrConflict)
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if memberID := account.MemberRef(); memberID != nil {
		if err := s.personas.AttachMember(ctx, profile.Kind, profile.ID, *memberID, s.nowFn()); err != nil {
			return err
		}
	}
	account.LinkProfile(ref)
	saved, err := s.accounts.Save(ctx, *account)
	if err != nil {
		return err
	}
	*account = saved
	return nil
}

func (s *Service) issueInvitation(ctx context.Context, profile domain.PersonaProfile) (string, error) {
	if s.hasher == nil {
		return "", fmt.Errorf("%w: invitation hasher not configured", domain.ErrDependencyUnavailable)
	}
	token, err := s.tokenFn()
	if err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(token)
	if err != nil {
		return "", err
	}
	now := s.nowFn()
	if err := s.personas.SetInvitation(ctx, profile.Kind, profile.ID, hash, now.Add(s.cfg.InvitationTTL), now); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) invitationURL(kind domain.ProfileKind, id uuid.UUID, token string) string {
	q := url.Values{}
	q.Set("kind", string(kind))
	q.Set("profile_id", id.String())
	q.Set("token", token)
	return s.cfg.InvitationBaseURL + "?" + q.Encode()
}

func (s *Service) rejectProfile(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, notes string) error {
	var rejected domain.PersonaProfile
	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		rejected, err = s.personas.MarkRejected(txCtx, kind, id, s.nowFn())
		if err != nil {
			return err
		}
		// Released claims let the applicant reapply later.
		if err := s.claims.DeleteByOwner(txCtx, kind, id); err != nil {
			return err
		}
		return s.enqueueEvent(txCtx, eventProfileRejected, id.String(), map[string]any{
			"profile_id":   id.String(),
			"profile_kind": string(kind),
			"notes":        notes,
		})
	})
	if err != nil {
		return err
	}
	s.requestEmail(ctx, rejected.Email, "application_rejected", map[string]string{
		"profile_kind": string(kind),
		"name":         rejected.Name,
		"notes":        notes,
	})
	s.logger.InfoContext(ctx, "profile rejected",
		"operation", "reject_profile",
		"outcome", "success",
		"profile_kind", string(kind),
		"profile_id", id.String(),
	)
	return nil
}

// ClaimInvitation binds the caller's account to an approved profile using the
// one-time token issued at approval.
func (s *Service) ClaimInvitation(ctx context.Context, p Principal, req ClaimInvitationRequest) (AccountResponse, error) {
	if !p.Authenticated() {
		return AccountResponse{}, domain.ErrUnauthorized
	}
	kind, err := parseProfileKind(req.Kind)
	if err != nil {
		return AccountResponse{}, err
	}
	id, err := uuid.Parse(req.ProfileID)
	if err != nil {
		return AccountResponse{}, fmt.Errorf("%w: profile_id must be a uuid", domain.ErrInvalidInput)
	}
	if req.Token == "" || s.hasher == nil {
		return AccountResponse{}, domain.ErrInvitationInvalid
	}
	profile, err := s.personas.Get(ctx, kind, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AccountResponse{}, domain.ErrInvitationInvalid
		}
		return AccountResponse{}, err
	}
	now := s.nowFn()
	if profile.Status != domain.ApplicationApproved || profile.InvitationTokenHash == "" ||
		profile.InvitationExpiresAt == nil || !profile.InvitationExpiresAt.After(now) {
		return AccountResponse{}, domain.ErrInvitationInvalid
	}
	if err := s.hasher.Compare(profile.InvitationTokenHash, req.Token); err != nil {
		return AccountResponse{}, domain.ErrInvitationInvalid
	}

	var bound domain.Account
	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		account, err := s.accountForClaims(txCtx, p, profile.Email)
		if err != nil {
			return err
		}
		if err := s.bindAccount(txCtx, &account, profile); err != nil {
			return err
		}
		bound = account
		return s.personas.ClearInvitation(txCtx, kind, id, now)
	})
	if err != nil {
		return AccountResponse{}, err
	}
	s.logger.InfoContext(ctx, "invitation claimed",
		"operation", "claim_invitation",
		"outcome", "success",
		"profile_kind", string(kind),
		"profile_id", id.String(),
		"account_id", bound.ID.String(),
	)
	return toAccountResponse(bound), nil
}

// accountForClaims returns the caller's account, creating a minimal GUEST
// account on first use.
func (s *Service) accountForClaims(ctx context.Context, p Principal, fallbackEmail string) (domain.Account, error) {
	if p.Account != nil {
		return s.accounts.GetByID(ctx, p.Account.ID)
	}
	email := p.Claims.Email
	if email == "" {
		email = fallbackEmail
	}
	now := s.nowFn()
	return s.accounts.Create(ctx, domain.Account{
		ID:              uuid.New(),
		IdentitySubject: p.Claims.Subject,
		Email:           domain.NormalizeEmail(email),
		Persona:         domain.PersonaGuest,
		OnboardingStage: domain.OnboardingNotStarted,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}
