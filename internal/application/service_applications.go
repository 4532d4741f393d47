package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
)

// submission carries the kind-specific parts of an application through the
// shared submit pipeline.
type submission struct {
	kind             domain.ProfileKind
	email            string
	membershipNumber string
	idempotencyKey   string
	request          any
	principal        Principal
	// member, when set, skips applicant member resolution.
	member *domain.Member
	create func(ctx context.Context, id uuid.UUID, member *domain.Member, now time.Time) error
}

func (s *Service) ApplySeller(ctx context.Context, p Principal, req SellerApplication, idempotencyKey string) (ApplicationResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = domain.NormalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.BusinessName = strings.TrimSpace(req.BusinessName)
	req.MembershipNumber = domain.NormalizeMembershipNumber(req.MembershipNumber)
	if err := validateContact(req.Name, req.Email, req.Phone, req.MembershipNumber); err != nil {
		return ApplicationResponse{}, err
	}
	if req.BusinessName != "" {
		if err := domain.ValidateName("business_name", req.BusinessName, 200); err != nil {
			return ApplicationResponse{}, err
		}
	}
	return s.submitApplication(ctx, submission{
		kind:             domain.ProfileKindSeller,
		email:            req.Email,
		membershipNumber: req.MembershipNumber,
		idempotencyKey:   idempotencyKey,
		request:          req,
		principal:        p,
		create: func(ctx context.Context, id uuid.UUID, member *domain.Member, now time.Time) error {
			seller := domain.Seller{
				PersonaProfile:     newPersonaProfile(id, domain.ProfileKindSeller, member, req.Name, req.Email, req.Phone, req.SponsoringChapterID, now),
				BusinessName:       req.BusinessName,
				MembershipNumber:   req.MembershipNumber,
				VerificationStatus: domain.VerificationPending,
			}
			if member != nil && member.VerificationStatus == domain.VerificationVerified {
				seller.VerificationStatus = domain.VerificationVerified
			}
			_, err := s.sellers.Create(ctx, seller)
			return err
		},
	})
}

func (s *Service) ApplyPromoter(ctx context.Context, p Principal, req PromoterApplication, idempotencyKey string) (ApplicationResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = domain.NormalizeEmail(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.MembershipNumber = domain.NormalizeMembershipNumber(req.MembershipNumber)
	if err := validateContact(req.Name, req.Email, req.Phone, req.MembershipNumber); err != nil {
		return ApplicationResponse{}, err
	}
	return s.submitApplication(ctx, submission{
		kind:             domain.ProfileKindPromoter,
		email:            req.Email,
		membershipNumber: req.MembershipNumber,
		idempotencyKey:   idempotencyKey,
		request:          req,
		principal:        p,
		create: func(ctx context.Context, id uuid.UUID, member *domain.Member, now time.Time) error {
			_, err := s.promoters.Create(ctx, domain.Promoter{
				PersonaProfile:   newPersonaProfile(id, domain.ProfileKindPromoter, member, req.Name, req.Email, req.Phone, req.SponsoringChapterID, now),
				MembershipNumber: req.MembershipNumber,
			})
			return err
		},
	})
}

// ApplySteward is member-only: the caller must resolve to a VERIFIED member
// before any row is written.
func (s *Service) ApplySteward(ctx context.Context, p Principal, req StewardApplication, idempotencyKey string) (ApplicationResponse, error) {
	account, err := s.RequireRegistered(p)
	if err != nil {
		return ApplicationResponse{}, err
	}
	member, err := s.ResolveMember(ctx, account)
	if err != nil {
		return ApplicationResponse{}, err
	}
	if member == nil {
		return ApplicationResponse{}, domain.ErrMemberProfileRequired
	}
	if member.VerificationStatus != domain.VerificationVerified {
		s.metrics.ApplicationSubmitted(string(domain.ProfileKindSteward), "verification_required")
		return ApplicationResponse{}, domain.ErrVerificationRequired
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = member.Name
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone == "" {
		req.Phone = member.Phone
	}
	if req.ChapterID == nil {
		req.ChapterID = member.InitiatedChapterID
	}
	if err := validateContact(req.Name, member.Email, req.Phone, ""); err != nil {
		return ApplicationResponse{}, err
	}
	return s.submitApplication(ctx, submission{
		kind:           domain.ProfileKindSteward,
		email:          member.Email,
		idempotencyKey: idempotencyKey,
		request:        req,
		principal:      p,
		member:         member,
		create: func(ctx context.Context, id uuid.UUID, member *domain.Member, now time.Time) error {
			open, err := s.stewards.CountOpenByMember(ctx, member.ID)
			if err != nil {
				return err
			}
			if open > 0 {
				return fmt.Errorf("%w: member already has an open steward application", domain.ErrConflict)
			}
			_, err = s.stewards.Create(ctx, domain.Steward{
				PersonaProfile: newPersonaProfile(id, domain.ProfileKindSteward, member, req.Name, member.Email, req.Phone, req.ChapterID, now),
			})
			return err
		},
	})
}

func (s *Service) submitApplication(ctx context.Context, sub submission) (ApplicationResponse, error) {
	kind := string(sub.kind)
	var replay ApplicationResponse
	replayed, err := s.reserveIdempotency(ctx, sub.idempotencyKey, sub.request, &replay)
	if err != nil {
		return ApplicationResponse{}, err
	}
	if replayed {
		return replay, nil
	}

	out, err := s.createApplication(ctx, sub)
	if err != nil {
		s.releaseIdempotency(ctx, sub.idempotencyKey)
		s.metrics.ApplicationSubmitted(kind, "failure")
		s.logger.WarnContext(ctx, "application rejected",
			"operation", "submit_application",
			"outcome", "failure",
			"profile_kind", kind,
			"error", err,
		)
		return ApplicationResponse{}, err
	}
	s.completeIdempotency(ctx, sub.idempotencyKey, 201, out)
	return out, nil
}

func (s *Service) createApplication(ctx context.Context, sub submission) (ApplicationResponse, error) {
	if err := s.checkRateLimit(ctx, sub.kind, sub.email); err != nil {
		return ApplicationResponse{}, err
	}
	if account := sub.principal.Account; account != nil && account.Persona != domain.PersonaGuest {
		return ApplicationResponse{}, fmt.Errorf("%w: account already holds the %s persona", domain.ErrConflict, account.Persona)
	}
	member := sub.member
	if member == nil {
		var err error
		member, err = s.applicantMember(ctx, sub.principal, sub.email)
		if err != nil {
			return ApplicationResponse{}, err
		}
	}

	id := uuid.New()
	var toInsert []domain.IdentityClaim
	if sub.kind != domain.ProfileKindSteward {
		var allowed []uuid.UUID
		if member != nil {
			allowed = append(allowed, member.ID)
		}
		var err error
		toInsert, err = s.pendingClaims(ctx, identityClaims(sub.kind, id, sub.email, sub.membershipNumber), allowed...)
		if err != nil {
			return ApplicationResponse{}, err
		}
	}

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := sub.create(txCtx, id, member, s.nowFn()); err != nil {
			return err
		}
		if err := s.claims.Insert(txCtx, toInsert); err != nil {
			return err
		}
		data := map[string]any{
			"profile_id":   id.String(),
			"profile_kind": string(sub.kind),
			"email":        sub.email,
		}
		if member != nil {
			data["member_id"] = member.ID.String()
		}
		return s.enqueueEvent(txCtx, eventApplicationSubmitted, id.String(), data)
	})
	if err != nil {
		return ApplicationResponse{}, err
	}
	s.metrics.ApplicationSubmitted(string(sub.kind), "success")
	s.logger.InfoContext(ctx, "application submitted",
		"operation", "submit_application",
		"outcome", "success",
		"profile_kind", string(sub.kind),
		"profile_id", id.String(),
	)

	if member != nil && member.VerificationStatus == domain.VerificationVerified {
		var hint *uuid.UUID
		if sub.principal.Account != nil {
			hint = &sub.principal.Account.ID
		}
		s.autoApprove(ctx, sub.kind, id, hint)
	}
	return s.applicationView(ctx, sub.kind, id)
}

// applicantMember finds the COMPLETE member behind an applicant. A signed-in
// caller is resolved only through their own account; the applicant email is
// consulted for anonymous submissions alone.
func (s *Service) applicantMember(ctx context.Context, p Principal, email string) (*domain.Member, error) {
	if p.Account != nil {
		member, err := s.ResolveMember(ctx, p.Account)
		if err != nil && !errors.Is(err, domain.ErrMemberNotFound) {
			return nil, err
		}
		if member != nil && member.RegistrationStatus == domain.RegistrationComplete {
			return member, nil
		}
		return nil, nil
	}
	member, err := s.members.FindCompleteByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// autoApprove runs the approval routine for an applicant whose member is
// already verified. Failures leave the profile PENDING for manual review.
func (s *Service) autoApprove(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, applicantAccount *uuid.UUID) {
	if _, err := s.approveProfile(ctx, kind, id, applicantAccount); err != nil {
		s.metrics.AutoApproval(string(kind), "deferred")
		s.logger.WarnContext(ctx, "auto-approval deferred to manual review",
			"operation", "auto_approve",
			"outcome", "failure",
			"profile_kind", string(kind),
			"profile_id", id.String(),
			"error", err,
		)
		return
	}
	s.metrics.AutoApproval(string(kind), "approved")
}

func (s *Service) applicationView(ctx context.Context, kind domain.ProfileKind, id uuid.UUID) (ApplicationResponse, error) {
	if kind == domain.ProfileKindSeller {
		seller, err := s.sellers.GetByID(ctx, id)
		if err != nil {
			return ApplicationResponse{}, err
		}
		return toSellerResponse(seller), nil
	}
	profile, err := s.personas.Get(ctx, kind, id)
	if err != nil {
		return ApplicationResponse{}, err
	}
	return toApplicationResponse(profile), nil
}

func newPersonaProfile(id uuid.UUID, kind domain.ProfileKind, member *domain.Member, name, email, phone string, chapterID *int64, now time.Time) domain.PersonaProfile {
	p := domain.PersonaProfile{
		ID:        id,
		Kind:      kind,
		Name:      name,
		Email:     email,
		Phone:     phone,
		ChapterID: chapterID,
		Status:    domain.ApplicationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if member != nil {
		memberID := member.ID
		p.MemberID = &memberID
	}
	return p
}

func validateContact(name, email, phone, membershipNumber string) error {
	if err := domain.ValidateName("name", name, 200); err != nil {
		return err
	}
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	if phone != "" {
		if err := domain.ValidatePhone(phone); err != nil {
			return err
		}
	}
	if membershipNumber != "" {
		if err := domain.ValidateMembershipNumber(membershipNumber); err != nil {
			return err
		}
	}
	return nil
}

func parseProfileKind(raw string) (domain.ProfileKind, error) {
	switch kind := domain.ProfileKind(strings.ToUpper(strings.TrimSpace(raw))); kind {
	case domain.ProfileKindSeller, domain.ProfileKindPromoter, domain.ProfileKindSteward:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: unsupported profile kind %q", domain.ErrInvalidInput, raw)
	}
}
