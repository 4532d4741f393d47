package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/google/uuid"
)

// SaveDraft creates or patches the caller's DRAFT member row. Only fields
// present in req are written.
func (s *Service) SaveDraft(ctx context.Context, claims ports.IdentityClaims, req DraftRequest) (MemberResponse, error) {
	if claims.Subject == "" {
		return MemberResponse{}, domain.ErrUnauthorized
	}
	if err := validateDraft(req, s.nowFn().Year()); err != nil {
		return MemberResponse{}, err
	}
	account, err := s.optionalAccount(ctx, claims.Subject)
	if err != nil {
		return MemberResponse{}, err
	}
	if account != nil && account.MemberRef() != nil {
		existing, err := s.ResolveMember(ctx, account)
		if err != nil && !errors.Is(err, domain.ErrMemberNotFound) {
			return MemberResponse{}, err
		}
		if existing != nil && existing.RegistrationStatus == domain.RegistrationComplete {
			return MemberResponse{}, fmt.Errorf("%w: member registration already complete", domain.ErrConflict)
		}
	}

	email := claims.Email
	if req.Email != nil {
		email = *req.Email
	}
	email = domain.NormalizeEmail(email)

	now := s.nowFn()
	draft, err := s.findOwnDraft(ctx, claims.Subject, email)
	switch {
	case err == nil:
		params := draftUpdate(draft.ID, req)
		if draft.IdentitySubject == "" {
			params.IdentitySubject = &claims.Subject
		}
		params.UpdatedAt = now
		draft, err = s.members.Update(ctx, params)
		if err != nil {
			return MemberResponse{}, err
		}
	case errors.Is(err, domain.ErrNotFound):
		if email == "" {
			return MemberResponse{}, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
		}
		draft, err = s.members.Create(ctx, newDraftMember(claims.Subject, email, req, now))
		if err != nil {
			return MemberResponse{}, err
		}
	default:
		return MemberResponse{}, err
	}

	if account != nil && account.OnboardingStage == domain.OnboardingNotStarted {
		account.OnboardingStage = domain.OnboardingInProgress
		if _, err := s.accounts.Save(ctx, *account); err != nil {
			s.logger.WarnContext(ctx, "onboarding stage not advanced",
				"operation", "save_draft",
				"outcome", "failure",
				"account_id", account.ID.String(),
				"error", err,
			)
		}
	}
	return toMemberResponse(draft), nil
}

// CompleteRegistration promotes the caller's draft (or a fresh row) to
// COMPLETE and binds it to the caller's account. Either both the member row
// and the account link exist afterwards, or neither does.
func (s *Service) CompleteRegistration(ctx context.Context, claims ports.IdentityClaims, req RegisterRequest) (MemberResponse, error) {
	if claims.Subject == "" {
		return MemberResponse{}, domain.ErrUnauthorized
	}
	req = normalizeRegistration(req)
	if err := validateRegistration(req, s.nowFn().Year()); err != nil {
		s.metrics.Registration("invalid")
		return MemberResponse{}, err
	}
	account, err := s.optionalAccount(ctx, claims.Subject)
	if err != nil {
		return MemberResponse{}, err
	}

	if err := s.checkRegistrable(ctx, account); err != nil {
		return MemberResponse{}, err
	}
	allowed := make([]uuid.UUID, 0, 2)
	if account != nil && account.Profile != nil && account.Profile.Kind != domain.ProfileKindMember {
		allowed = append(allowed, account.Profile.ID)
	}

	var draft *domain.Member
	found, err := s.findOwnDraft(ctx, claims.Subject, req.Email)
	switch {
	case err == nil:
		draft = &found
		allowed = append(allowed, found.ID)
	case !errors.Is(err, domain.ErrNotFound):
		return MemberResponse{}, err
	}

	memberID := uuid.New()
	if draft != nil {
		memberID = draft.ID
	}
	wanted := identityClaims(domain.ProfileKindMember, memberID, req.Email, req.MembershipNumber)
	toInsert, err := s.pendingClaims(ctx, wanted, allowed...)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateRegistration) {
			s.metrics.Registration("duplicate")
		}
		return MemberResponse{}, err
	}

	var registered domain.Member
	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		now := s.nowFn()
		var err error
		if draft != nil {
			registered, err = s.members.Update(txCtx, completeUpdate(memberID, claims.Subject, req, now))
		} else {
			registered, err = s.members.Create(txCtx, newCompleteMember(memberID, claims.Subject, req, now))
		}
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.ErrDuplicateRegistration
			}
			return err
		}
		if err := s.claims.Insert(txCtx, toInsert); err != nil {
			return err
		}
		linked, err := s.linkMemberAccount(txCtx, account, claims, registered)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrUserLinkingFailed, err)
		}
		return s.enqueueEvent(txCtx, eventMemberRegistered, registered.ID.String(), map[string]any{
			"member_id":         registered.ID.String(),
			"account_id":        linked.ID.String(),
			"email":             registered.Email,
			"membership_number": registered.MembershipNumber,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserLinkingFailed) {
			s.metrics.Registration("link_failed")
			if draft == nil {
				s.compensateMember(ctx, memberID)
			}
			s.logger.ErrorContext(ctx, "member registration rolled back",
				"operation", "complete_registration",
				"outcome", "failure",
				"member_id", memberID.String(),
				"error", err,
			)
			return MemberResponse{}, domain.ErrUserLinkingFailed
		}
		if errors.Is(err, domain.ErrDuplicateRegistration) {
			s.metrics.Registration("duplicate")
		}
		return MemberResponse{}, err
	}

	s.metrics.Registration("success")
	s.logger.InfoContext(ctx, "member registration completed",
		"operation", "complete_registration",
		"outcome", "success",
		"member_id", registered.ID.String(),
	)
	return toMemberResponse(registered), nil
}

// checkRegistrable refuses, before any write, callers whose account cannot
// take a new member: a completed member, a persona profile already owned by a
// member, or a persona that never carries one.
func (s *Service) checkRegistrable(ctx context.Context, account *domain.Account) error {
	if account == nil {
		return nil
	}
	switch account.Persona {
	case domain.PersonaGuest:
		if account.MemberRef() == nil {
			return nil
		}
		existing, err := s.ResolveMember(ctx, account)
		if err != nil && !errors.Is(err, domain.ErrMemberNotFound) {
			return err
		}
		if existing != nil && existing.RegistrationStatus == domain.RegistrationComplete {
			return fmt.Errorf("%w: member registration already complete", domain.ErrConflict)
		}
		return nil
	case domain.PersonaSeller, domain.PersonaPromoter:
		memberID, err := s.ResolveMemberIdentity(ctx, account)
		if err != nil && !errors.Is(err, domain.ErrMemberNotFound) {
			return err
		}
		if memberID != nil {
			return fmt.Errorf("%w: %s profile already belongs to a member", domain.ErrConflict, account.Persona)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s account cannot own a member profile", domain.ErrConflict, account.Persona)
	}
}

// linkMemberAccount binds a freshly completed member to the caller's account,
// creating the account when the caller has none yet.
func (s *Service) linkMemberAccount(ctx context.Context, account *domain.Account, claims ports.IdentityClaims, member domain.Member) (domain.Account, error) {
	ref := domain.ProfileRef{Kind: domain.ProfileKindMember, ID: member.ID}
	if account == nil {
		email := claims.Email
		if email == "" {
			email = member.Email
		}
		now := s.nowFn()
		return s.accounts.Create(ctx, domain.Account{
			ID:              uuid.New(),
			IdentitySubject: claims.Subject,
			Email:           domain.NormalizeEmail(email),
			Persona:         domain.PersonaGuest,
			Profile:         &ref,
			OnboardingStage: domain.OnboardingComplete,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	switch account.Persona {
	case domain.PersonaGuest:
		if current := account.MemberRef(); current != nil && *current != member.ID {
			return domain.Account{}, fmt.Errorf("%w: account already holds another member", domain.ErrConflict)
		}
		updated := *account
		updated.LinkProfile(ref)
		return s.accounts.Save(ctx, updated)
	case domain.PersonaSeller, domain.PersonaPromoter:
		// The account keeps its persona; the member is reachable through the
		// profile back-reference.
		if err := s.personas.AttachMember(ctx, account.Profile.Kind, account.Profile.ID, member.ID, s.nowFn()); err != nil {
			return domain.Account{}, err
		}
		return *account, nil
	default:
		return domain.Account{}, fmt.Errorf("%w: %s account cannot own a member profile", domain.ErrConflict, account.Persona)
	}
}

// compensateMember removes a member row left behind by a failed link. The
// transaction normally leaves nothing to remove.
func (s *Service) compensateMember(ctx context.Context, memberID uuid.UUID) {
	if _, err := s.members.GetByID(ctx, memberID); err != nil {
		return
	}
	if err := s.claims.DeleteByOwner(ctx, domain.ProfileKindMember, memberID); err != nil {
		s.logger.ErrorContext(ctx, "compensation failed, manual remediation required",
			"operation", "compensate_member",
			"outcome", "failure",
			"member_id", memberID.String(),
			"error", err,
		)
		return
	}
	if err := s.members.Delete(ctx, memberID); err != nil {
		s.logger.ErrorContext(ctx, "compensation failed, manual remediation required",
			"operation", "compensate_member",
			"outcome", "failure",
			"member_id", memberID.String(),
			"error", err,
		)
		return
	}
	s.logger.WarnContext(ctx, "orphan member removed",
		"operation", "compensate_member",
		"outcome", "success",
		"member_id", memberID.String(),
	)
}

// findOwnDraft ignores drafts already bound to a different identity subject.
func (s *Service) findOwnDraft(ctx context.Context, subject, email string) (domain.Member, error) {
	draft, err := s.members.FindDraft(ctx, subject, email)
	if err != nil {
		return domain.Member{}, err
	}
	if draft.IdentitySubject != "" && draft.IdentitySubject != subject {
		return domain.Member{}, domain.ErrNotFound
	}
	return draft, nil
}

func (s *Service) optionalAccount(ctx context.Context, subject string) (*domain.Account, error) {
	account, err := s.accounts.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func validateDraft(req DraftRequest, currentYear int) error {
	if req.Email != nil {
		if err := domain.ValidateEmail(domain.NormalizeEmail(*req.Email)); err != nil {
			return err
		}
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		if err := domain.ValidateName("name", *req.Name, 200); err != nil {
			return err
		}
	}
	if req.MembershipNumber != nil && strings.TrimSpace(*req.MembershipNumber) != "" {
		if err := domain.ValidateMembershipNumber(domain.NormalizeMembershipNumber(*req.MembershipNumber)); err != nil {
			return err
		}
	}
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		if err := domain.ValidatePhone(*req.Phone); err != nil {
			return err
		}
	}
	if req.InitiationYear != nil {
		if err := domain.ValidateInitiationYear(*req.InitiationYear, currentYear); err != nil {
			return err
		}
	}
	if req.InitiatedChapterID != nil && *req.InitiatedChapterID <= 0 {
		return fmt.Errorf("%w: initiated_chapter_id must be positive", domain.ErrInvalidInput)
	}
	return nil
}

func normalizeRegistration(req RegisterRequest) RegisterRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = domain.NormalizeEmail(req.Email)
	req.MembershipNumber = domain.NormalizeMembershipNumber(req.MembershipNumber)
	req.Phone = strings.TrimSpace(req.Phone)
	req.City = strings.TrimSpace(req.City)
	req.State = strings.TrimSpace(req.State)
	req.HeadshotURL = strings.TrimSpace(req.HeadshotURL)
	return req
}

func validateRegistration(req RegisterRequest, currentYear int) error {
	if err := domain.ValidateName("name", req.Name, 200); err != nil {
		return err
	}
	if err := domain.ValidateEmail(req.Email); err != nil {
		return err
	}
	if err := domain.ValidateMembershipNumber(req.MembershipNumber); err != nil {
		return err
	}
	if req.InitiatedChapterID <= 0 {
		return fmt.Errorf("%w: initiated_chapter_id is required", domain.ErrInvalidInput)
	}
	if err := domain.ValidateInitiationYear(req.InitiationYear, currentYear); err != nil {
		return err
	}
	if req.Phone != "" {
		if err := domain.ValidatePhone(req.Phone); err != nil {
			return err
		}
	}
	return nil
}

func draftUpdate(id uuid.UUID, req DraftRequest) ports.UpdateMemberParams {
	return ports.UpdateMemberParams{
		MemberID:           id,
		Name:               req.Name,
		Email:              req.Email,
		MembershipNumber:   req.MembershipNumber,
		InitiatedChapterID: req.InitiatedChapterID,
		InitiationYear:     req.InitiationYear,
		Phone:              req.Phone,
		City:               req.City,
		State:              req.State,
		HeadshotURL:        req.HeadshotURL,
	}
}

func newDraftMember(subject, email string, req DraftRequest, now time.Time) domain.Member {
	m := domain.Member{
		ID:                 uuid.New(),
		IdentitySubject:    subject,
		Email:              email,
		InitiatedChapterID: req.InitiatedChapterID,
		InitiationYear:     req.InitiationYear,
		RegistrationStatus: domain.RegistrationDraft,
		VerificationStatus: domain.VerificationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.Name != nil {
		m.Name = strings.TrimSpace(*req.Name)
	}
	if req.MembershipNumber != nil {
		m.MembershipNumber = domain.NormalizeMembershipNumber(*req.MembershipNumber)
	}
	if req.Phone != nil {
		m.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.City != nil {
		m.City = strings.TrimSpace(*req.City)
	}
	if req.State != nil {
		m.State = strings.TrimSpace(*req.State)
	}
	if req.HeadshotURL != nil {
		m.HeadshotURL = strings.TrimSpace(*req.HeadshotURL)
	}
	return m
}

func completeUpdate(id uuid.UUID, subject string, req RegisterRequest, now time.Time) ports.UpdateMemberParams {
	complete := domain.RegistrationComplete
	return ports.UpdateMemberParams{
		MemberID:           id,
		IdentitySubject:    &subject,
		Name:               &req.Name,
		Email:              &req.Email,
		MembershipNumber:   &req.MembershipNumber,
		InitiatedChapterID: &req.InitiatedChapterID,
		InitiationYear:     &req.InitiationYear,
		Phone:              &req.Phone,
		City:               &req.City,
		State:              &req.State,
		HeadshotURL:        &req.HeadshotURL,
		RegistrationStatus: &complete,
		UpdatedAt:          now,
	}
}

func newCompleteMember(id uuid.UUID, subject string, req RegisterRequest, now time.Time) domain.Member {
	return domain.Member{
		ID:                 id,
		IdentitySubject:    subject,
		Name:               req.Name,
		Email:              req.Email,
		MembershipNumber:   req.MembershipNumber,
		InitiatedChapterID: ptr(req.InitiatedChapterID),
		InitiationYear:     ptr(req.InitiationYear),
		Phone:              req.Phone,
		City:               req.City,
		State:              req.State,
		HeadshotURL:        req.HeadshotURL,
		RegistrationStatus: domain.RegistrationComplete,
		VerificationStatus: domain.VerificationPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
