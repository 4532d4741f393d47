package postgres

import (
	"time"

	"github.com/google/uuid"
)

type accountModel struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	IdentitySubject string     `gorm:"column:identity_subject;not null;uniqueIndex:ux_accounts_identity_subject"`
	Email           string     `gorm:"column:email;not null;uniqueIndex:ux_accounts_email"`
	Persona         string     `gorm:"column:persona;not null"`
	ProfileKind     *string    `gorm:"column:profile_kind;uniqueIndex:ux_accounts_profile"`
	ProfileID       *uuid.UUID `gorm:"column:profile_id;type:uuid;uniqueIndex:ux_accounts_profile"`
	OnboardingStage string     `gorm:"column:onboarding_stage;not null"`
	FeatureFlags    string     `gorm:"column:feature_flags;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (accountModel) TableName() string { return "accounts" }

type memberModel struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	IdentitySubject    *string    `gorm:"column:identity_subject;index:ix_members_identity_subject"`
	Name               string     `gorm:"column:name"`
	Email              string     `gorm:"column:email;not null;index:ix_members_email"`
	MembershipNumber   *string    `gorm:"column:membership_number;index:ix_members_membership_number"`
	InitiatedChapterID *int64     `gorm:"column:initiated_chapter_id"`
	InitiationYear     *int       `gorm:"column:initiation_year"`
	Phone              string     `gorm:"column:phone"`
	City               string     `gorm:"column:city"`
	State              string     `gorm:"column:state"`
	HeadshotURL        string     `gorm:"column:headshot_url"`
	RegistrationStatus string     `gorm:"column:registration_status;not null"`
	VerificationStatus string     `gorm:"column:verification_status;not null"`
	VerifiedAt         *time.Time `gorm:"column:verified_at"`
	VerificationNotes  string     `gorm:"column:verification_notes"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at"`
}

func (memberModel) TableName() string { return "members" }

// personaColumns are shared by the seller, promoter and steward tables.
type personaColumns struct {
	Name                string     `gorm:"column:name;not null"`
	Email               string     `gorm:"column:email;not null"`
	Phone               string     `gorm:"column:phone"`
	ChapterID           *int64     `gorm:"column:chapter_id"`
	Status              string     `gorm:"column:status;not null"`
	PaymentAccountID    *string    `gorm:"column:payment_account_id"`
	InvitationTokenHash *string    `gorm:"column:invitation_token_hash"`
	InvitationExpiresAt *time.Time `gorm:"column:invitation_expires_at"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

type sellerModel struct {
	ID                 uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	MemberID           *uuid.UUID     `gorm:"column:member_id;type:uuid;index:ix_sellers_member_id"`
	BusinessName       string         `gorm:"column:business_name"`
	MembershipNumber   *string        `gorm:"column:membership_number"`
	VerificationStatus string         `gorm:"column:verification_status;not null"`
	VerificationNotes  string         `gorm:"column:verification_notes"`
	Common             personaColumns `gorm:"embedded"`
}

func (sellerModel) TableName() string { return "sellers" }

type promoterModel struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	MemberID         *uuid.UUID     `gorm:"column:member_id;type:uuid;index:ix_promoters_member_id"`
	MembershipNumber *string        `gorm:"column:membership_number"`
	Common           personaColumns `gorm:"embedded"`
}

func (promoterModel) TableName() string { return "promoters" }

type stewardModel struct {
	ID       uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	MemberID uuid.UUID      `gorm:"column:member_id;type:uuid;not null;index:ix_stewards_member_id"`
	Common   personaColumns `gorm:"embedded"`
}

func (stewardModel) TableName() string { return "stewards" }

type identityClaimModel struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ClaimType string    `gorm:"column:claim_type;not null;uniqueIndex:ux_identity_claims_value"`
	Value     string    `gorm:"column:value;not null;uniqueIndex:ux_identity_claims_value"`
	OwnerKind string    `gorm:"column:owner_kind;not null"`
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index:ix_identity_claims_owner"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (identityClaimModel) TableName() string { return "identity_claims" }

type productModel struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SellerID       uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index:ix_products_seller_id"`
	Name           string    `gorm:"column:name;not null"`
	Description    string    `gorm:"column:description"`
	PriceCents     int64     `gorm:"column:price_cents;not null"`
	IsKappaBranded bool      `gorm:"column:is_kappa_branded;not null"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (productModel) TableName() string { return "products" }

type outboxModel struct {
	OutboxID      uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType     string     `gorm:"column:event_type;not null"`
	PartitionKey  string     `gorm:"column:partition_key;not null"`
	Payload       string     `gorm:"column:payload;not null"`
	Redact        bool       `gorm:"column:redact_on_publish;not null;default:false"`
	SchemaVersion string     `gorm:"column:schema_version"`
	RetryCount    int        `gorm:"column:retry_count;not null;default:0"`
	PublishedAt   *time.Time `gorm:"column:published_at;index:ix_identity_outbox_unpublished"`
	LastError     *string    `gorm:"column:last_error"`
	LastErrorAt   *time.Time `gorm:"column:last_error_at"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	FirstSeenAt   time.Time  `gorm:"column:first_seen_at"`
}

func (outboxModel) TableName() string { return "identity_outbox" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash;not null"`
	Status         string    `gorm:"column:status;not null"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "identity_idempotency" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "identity_event_dedup" }

// AllModels lists every table model, in dependency order.
func AllModels() []any {
	return []any{
		&memberModel{}, &sellerModel{}, &promoterModel{}, &stewardModel{},
		&accountModel{}, &identityClaimModel{}, &productModel{},
		&outboxModel{}, &idempotencyModel{}, &eventDedupModel{},
	}
}
