package domain

import (
	"time"

	"github.com/google/uuid"
)

type Persona string

const (
	PersonaGuest    Persona = "GUEST"
	PersonaSeller   Persona = "SELLER"
	PersonaPromoter Persona = "PROMOTER"
	PersonaSteward  Persona = "STEWARD"
	PersonaAdmin    Persona = "ADMIN"
)

type ProfileKind string

const (
	ProfileKindMember   ProfileKind = "MEMBER"
	ProfileKindSeller   ProfileKind = "SELLER"
	ProfileKindPromoter ProfileKind = "PROMOTER"
	ProfileKindSteward  ProfileKind = "STEWARD"
)

// Persona returns the account persona that owns a profile of this kind.
func (k ProfileKind) Persona() Persona {
	switch k {
	case ProfileKindSeller:
		return PersonaSeller
	case ProfileKindPromoter:
		return PersonaPromoter
	case ProfileKindSteward:
		return PersonaSteward
	default:
		return PersonaGuest
	}
}

type OnboardingStage string

const (
	OnboardingNotStarted OnboardingStage = "not_started"
	OnboardingInProgress OnboardingStage = "in_progress"
	OnboardingComplete   OnboardingStage = "complete"
)

type RegistrationStatus string

const (
	RegistrationDraft    RegistrationStatus = "DRAFT"
	RegistrationComplete RegistrationStatus = "COMPLETE"
)

type VerificationStatus string

const (
	VerificationPending      VerificationStatus = "PENDING"
	VerificationVerified     VerificationStatus = "VERIFIED"
	VerificationFailed       VerificationStatus = "FAILED"
	VerificationManualReview VerificationStatus = "MANUAL_REVIEW"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

type ClaimType string

const (
	ClaimEmail            ClaimType = "email"
	ClaimMembershipNumber ClaimType = "membership_number"
)

// ProfileRef is the tagged reference from an Account to the one profile it owns.
type ProfileRef struct {
	Kind ProfileKind
	ID   uuid.UUID
}

type Account struct {
	ID              uuid.UUID
	IdentitySubject string
	Email           string
	Persona         Persona
	Profile         *ProfileRef
	OnboardingStage OnboardingStage
	FeatureFlags    map[string]bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Member struct {
	ID                 uuid.UUID
	IdentitySubject    string
	Name               string
	Email              string
	MembershipNumber   string
	InitiatedChapterID *int64
	InitiationYear     *int
	Phone              string
	City               string
	State              string
	HeadshotURL        string
	RegistrationStatus RegistrationStatus
	VerificationStatus VerificationStatus
	VerifiedAt         *time.Time
	VerificationNotes  string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PersonaProfile is the shape shared by Seller, Promoter and Steward rows.
type PersonaProfile struct {
	ID                  uuid.UUID
	Kind                ProfileKind
	MemberID            *uuid.UUID
	Name                string
	Email               string
	Phone               string
	ChapterID           *int64
	Status              ApplicationStatus
	PaymentAccountID    string
	InvitationTokenHash string
	InvitationExpiresAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Seller struct {
	PersonaProfile
	BusinessName       string
	MembershipNumber   string
	VerificationStatus VerificationStatus
	VerificationNotes  string
}

type Promoter struct {
	PersonaProfile
	MembershipNumber string
}

type Steward struct {
	PersonaProfile
}

type IdentityClaim struct {
	ID        uuid.UUID
	Type      ClaimType
	Value     string
	OwnerKind ProfileKind
	OwnerID   uuid.UUID
	CreatedAt time.Time
}

type Product struct {
	ID             uuid.UUID
	SellerID       uuid.UUID
	Name           string
	Description    string
	PriceCents     int64
	IsKappaBranded bool
	CreatedAt      time.Time
}
