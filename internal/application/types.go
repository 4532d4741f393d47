package application

import (
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
)

type Config struct {
	ServiceName           string
	IdempotencyTTL        time.Duration
	EventDedupTTL         time.Duration
	InvitationTTL         time.Duration
	InvitationBaseURL     string
	ApplicationRateLimit  int
	ApplicationRateWindow time.Duration
	PaymentLockTTL        time.Duration
}

type DraftRequest struct {
	Name               *string `json:"name,omitempty"`
	Email              *string `json:"email,omitempty"`
	MembershipNumber   *string `json:"membership_number,omitempty"`
	InitiatedChapterID *int64  `json:"initiated_chapter_id,omitempty"`
	InitiationYear     *int    `json:"initiation_year,omitempty"`
	Phone              *string `json:"phone,omitempty"`
	City               *string `json:"city,omitempty"`
	State              *string `json:"state,omitempty"`
	HeadshotURL        *string `json:"headshot_url,omitempty"`
}

type RegisterRequest struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	MembershipNumber   string `json:"membership_number"`
	InitiatedChapterID int64  `json:"initiated_chapter_id"`
	InitiationYear     int    `json:"initiation_year"`
	Phone              string `json:"phone,omitempty"`
	City               string `json:"city,omitempty"`
	State              string `json:"state,omitempty"`
	HeadshotURL        string `json:"headshot_url,omitempty"`
}

type SellerApplication struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone,omitempty"`
	BusinessName        string `json:"business_name,omitempty"`
	MembershipNumber    string `json:"membership_number,omitempty"`
	SponsoringChapterID *int64 `json:"sponsoring_chapter_id,omitempty"`
}

type PromoterApplication struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone,omitempty"`
	MembershipNumber    string `json:"membership_number,omitempty"`
	SponsoringChapterID *int64 `json:"sponsoring_chapter_id,omitempty"`
}

type StewardApplication struct {
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	ChapterID *int64 `json:"chapter_id,omitempty"`
}

type DecisionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type VerificationRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type ClaimInvitationRequest struct {
	Kind      string `json:"kind"`
	ProfileID string `json:"profile_id"`
	Token     string `json:"token"`
}

type ProductRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	PriceCents     int64  `json:"price_cents"`
	IsKappaBranded bool   `json:"is_kappa_branded"`
}

// VerificationOutcome is one result produced by the offline membership check.
type VerificationOutcome struct {
	EventID          string    `json:"event_id,omitempty" yaml:"event_id,omitempty"`
	MembershipNumber string    `json:"membership_number,omitempty" yaml:"membership_number,omitempty"`
	Email            string    `json:"email,omitempty" yaml:"email,omitempty"`
	Status           string    `json:"status" yaml:"status"`
	Notes            string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	CheckedAt        time.Time `json:"checked_at,omitempty" yaml:"checked_at,omitempty"`
}

type AccountResponse struct {
	ID              uuid.UUID       `json:"id"`
	Email           string          `json:"email"`
	Persona         string          `json:"persona"`
	ProfileKind     string          `json:"profile_kind,omitempty"`
	ProfileID       *uuid.UUID      `json:"profile_id,omitempty"`
	OnboardingStage string          `json:"onboarding_stage"`
	FeatureFlags    map[string]bool `json:"feature_flags,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type MemberResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	MembershipNumber   string     `json:"membership_number,omitempty"`
	InitiatedChapterID *int64     `json:"initiated_chapter_id,omitempty"`
	InitiationYear     *int       `json:"initiation_year,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	City               string     `json:"city,omitempty"`
	State              string     `json:"state,omitempty"`
	HeadshotURL        string     `json:"headshot_url,omitempty"`
	RegistrationStatus string     `json:"registration_status"`
	VerificationStatus string     `json:"verification_status"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	VerificationNotes  string     `json:"verification_notes,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type MeResponse struct {
	Account AccountResponse `json:"account"`
	Member  *MemberResponse `json:"member,omitempty"`
}

type ApplicationResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Kind               string     `json:"kind"`
	MemberID           *uuid.UUID `json:"member_id,omitempty"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Status             string     `json:"status"`
	PaymentAccountID   string     `json:"payment_account_id,omitempty"`
	VerificationStatus string     `json:"verification_status,omitempty"`
	InvitationPending  bool       `json:"invitation_pending"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type ProductResponse struct {
	ID                       uuid.UUID `json:"id"`
	SellerID                 uuid.UUID `json:"seller_id"`
	Name                     string    `json:"name"`
	PriceCents               int64     `json:"price_cents"`
	IsKappaBranded           bool      `json:"is_kappa_branded"`
	SellerVerificationStatus string    `json:"seller_verification_status"`
	CreatedAt                time.Time `json:"created_at"`
}

type RemoveAccountResult struct {
	AccountID     uuid.UUID `json:"account_id"`
	ProfilePurged bool      `json:"profile_purged"`
}

func toAccountResponse(a domain.Account) AccountResponse {
	out := AccountResponse{
		ID: a.ID, Email: a.Email, Persona: string(a.Persona), OnboardingStage: string(a.OnboardingStage),
		FeatureFlags: a.FeatureFlags, CreatedAt: a.CreatedAt,
	}
	if a.Profile != nil {
		id := a.Profile.ID
		out.ProfileKind = string(a.Profile.Kind)
		out.ProfileID = &id
	}
	return out
}

func toMemberResponse(m domain.Member) MemberResponse {
	return MemberResponse{
		ID: m.ID, Name: m.Name, Email: m.Email, MembershipNumber: m.MembershipNumber,
		InitiatedChapterID: m.InitiatedChapterID, InitiationYear: m.InitiationYear, Phone: m.Phone,
		City: m.City, State: m.State, HeadshotURL: m.HeadshotURL,
		RegistrationStatus: string(m.RegistrationStatus), VerificationStatus: string(m.VerificationStatus),
		VerifiedAt: m.VerifiedAt, VerificationNotes: m.VerificationNotes, UpdatedAt: m.UpdatedAt,
	}
}

func toApplicationResponse(p domain.PersonaProfile) ApplicationResponse {
	return ApplicationResponse{
		ID: p.ID, Kind: string(p.Kind), MemberID: p.MemberID, Name: p.Name, Email: p.Email,
		Status: string(p.Status), PaymentAccountID: p.PaymentAccountID,
		InvitationPending: p.InvitationTokenHash != "", UpdatedAt: p.UpdatedAt,
	}
}

func toSellerResponse(s domain.Seller) ApplicationResponse {
	out := toApplicationResponse(s.PersonaProfile)
	out.VerificationStatus = string(s.VerificationStatus)
	return out
}
