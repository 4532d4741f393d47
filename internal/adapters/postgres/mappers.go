package postgres

import (
	"encoding/json"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
)

func toDomainAccount(m accountModel) domain.Account {
	out := domain.Account{
		ID: m.ID, IdentitySubject: m.IdentitySubject, Email: m.Email,
		Persona: domain.Persona(m.Persona), OnboardingStage: domain.OnboardingStage(m.OnboardingStage),
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
	if m.ProfileKind != nil && m.ProfileID != nil {
		out.Profile = &domain.ProfileRef{Kind: domain.ProfileKind(*m.ProfileKind), ID: *m.ProfileID}
	}
	if m.FeatureFlags != "" {
		_ = json.Unmarshal([]byte(m.FeatureFlags), &out.FeatureFlags)
	}
	return out
}

func fromDomainAccount(a domain.Account) accountModel {
	flags := "{}"
	if len(a.FeatureFlags) > 0 {
		if raw, err := json.Marshal(a.FeatureFlags); err == nil {
			flags = string(raw)
		}
	}
	out := accountModel{
		ID: a.ID, IdentitySubject: a.IdentitySubject, Email: domain.NormalizeEmail(a.Email),
		Persona: string(a.Persona), OnboardingStage: string(a.OnboardingStage), FeatureFlags: flags,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
	if a.Profile != nil {
		kind := string(a.Profile.Kind)
		id := a.Profile.ID
		out.ProfileKind = &kind
		out.ProfileID = &id
	}
	return out
}

func toDomainMember(m memberModel) domain.Member {
	return domain.Member{
		ID: m.ID, IdentitySubject: derefString(m.IdentitySubject), Name: m.Name, Email: m.Email,
		MembershipNumber: derefString(m.MembershipNumber), InitiatedChapterID: m.InitiatedChapterID,
		InitiationYear: m.InitiationYear, Phone: m.Phone, City: m.City, State: m.State,
		HeadshotURL: m.HeadshotURL, RegistrationStatus: domain.RegistrationStatus(m.RegistrationStatus),
		VerificationStatus: domain.VerificationStatus(m.VerificationStatus), VerifiedAt: m.VerifiedAt,
		VerificationNotes: m.VerificationNotes, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func fromDomainMember(m domain.Member) memberModel {
	return memberModel{
		ID: m.ID, IdentitySubject: optionalString(m.IdentitySubject), Name: m.Name,
		Email: domain.NormalizeEmail(m.Email), MembershipNumber: optionalString(domain.NormalizeMembershipNumber(m.MembershipNumber)),
		InitiatedChapterID: m.InitiatedChapterID, InitiationYear: m.InitiationYear, Phone: m.Phone,
		City: m.City, State: m.State, HeadshotURL: m.HeadshotURL,
		RegistrationStatus: string(m.RegistrationStatus), VerificationStatus: string(m.VerificationStatus),
		VerifiedAt: m.VerifiedAt, VerificationNotes: m.VerificationNotes,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func toDomainPersona(kind domain.ProfileKind, id uuid.UUID, memberID *uuid.UUID, c personaColumns) domain.PersonaProfile {
	return domain.PersonaProfile{
		ID: id, Kind: kind, MemberID: memberID, Name: c.Name, Email: c.Email, Phone: c.Phone, ChapterID: c.ChapterID,
		Status: domain.ApplicationStatus(c.Status), PaymentAccountID: derefString(c.PaymentAccountID),
		InvitationTokenHash: derefString(c.InvitationTokenHash), InvitationExpiresAt: c.InvitationExpiresAt,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func fromDomainPersona(p domain.PersonaProfile) personaColumns {
	return personaColumns{
		Name: p.Name, Email: domain.NormalizeEmail(p.Email), Phone: p.Phone, ChapterID: p.ChapterID,
		Status: string(p.Status), PaymentAccountID: optionalString(p.PaymentAccountID),
		InvitationTokenHash: optionalString(p.InvitationTokenHash), InvitationExpiresAt: p.InvitationExpiresAt,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

func toDomainSeller(m sellerModel) domain.Seller {
	return domain.Seller{
		PersonaProfile:     toDomainPersona(domain.ProfileKindSeller, m.ID, m.MemberID, m.Common),
		BusinessName:       m.BusinessName,
		MembershipNumber:   derefString(m.MembershipNumber),
		VerificationStatus: domain.VerificationStatus(m.VerificationStatus),
		VerificationNotes:  m.VerificationNotes,
	}
}

func toDomainPromoter(m promoterModel) domain.Promoter {
	return domain.Promoter{
		PersonaProfile:   toDomainPersona(domain.ProfileKindPromoter, m.ID, m.MemberID, m.Common),
		MembershipNumber: derefString(m.MembershipNumber),
	}
}

func toDomainSteward(m stewardModel) domain.Steward {
	memberID := m.MemberID
	return domain.Steward{
		PersonaProfile: toDomainPersona(domain.ProfileKindSteward, m.ID, &memberID, m.Common),
	}
}

func toDomainClaim(m identityClaimModel) domain.IdentityClaim {
	return domain.IdentityClaim{
		ID: m.ID, Type: domain.ClaimType(m.ClaimType), Value: m.Value,
		OwnerKind: domain.ProfileKind(m.OwnerKind), OwnerID: m.OwnerID, CreatedAt: m.CreatedAt,
	}
}

func toDomainProduct(m productModel) domain.Product {
	return domain.Product{
		ID: m.ID, SellerID: m.SellerID, Name: m.Name, Description: m.Description,
		PriceCents: m.PriceCents, IsKappaBranded: m.IsKappaBranded, CreatedAt: m.CreatedAt,
	}
}
