package ports

import (
	"context"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
)

// Transactor runs fn inside a single storage transaction. Repositories called
// with the context passed to fn participate in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error)
	GetBySubject(ctx context.Context, subject string) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByProfile(ctx context.Context, ref domain.ProfileRef) (domain.Account, error)
	// Save persists persona, profile ref and onboarding stage of an existing account.
	Save(ctx context.Context, account domain.Account) (domain.Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type UpdateMemberParams struct {
	MemberID           uuid.UUID
	IdentitySubject    *string
	Name               *string
	Email              *string
	MembershipNumber   *string
	InitiatedChapterID *int64
	InitiationYear     *int
	Phone              *string
	City               *string
	State              *string
	HeadshotURL        *string
	RegistrationStatus *domain.RegistrationStatus
	UpdatedAt          time.Time
}

type MemberRepository interface {
	Create(ctx context.Context, member domain.Member) (domain.Member, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Member, error)
	// FindDraft returns the DRAFT row owned by subject, falling back to email.
	FindDraft(ctx context.Context, subject, email string) (domain.Member, error)
	FindCompleteByEmail(ctx context.Context, email string) (domain.Member, error)
	FindCompleteByMembershipNumber(ctx context.Context, membershipNumber string) (domain.Member, error)
	FindBySubject(ctx context.Context, subject string) (domain.Member, error)
	Update(ctx context.Context, params UpdateMemberParams) (domain.Member, error)
	SetVerification(ctx context.Context, id uuid.UUID, status domain.VerificationStatus, notes string, at time.Time) (domain.Member, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PersonaProfileRepository holds the lifecycle writes shared by Seller,
// Promoter and Steward rows.
type PersonaProfileRepository interface {
	Get(ctx context.Context, kind domain.ProfileKind, id uuid.UUID) (domain.PersonaProfile, error)
	SetInvitation(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, tokenHash string, expiresAt time.Time, at time.Time) error
	ClearInvitation(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, at time.Time) error
	// AttachMember sets the member back-reference when none is recorded yet.
	// A different member already on record is ErrConflict.
	AttachMember(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, memberID uuid.UUID, at time.Time) error
	// MarkApproved sets APPROVED and records paymentAccountID unless one is already stored.
	MarkApproved(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, paymentAccountID string, at time.Time) (domain.PersonaProfile, error)
	// MarkRejected only succeeds for PENDING rows.
	MarkRejected(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, at time.Time) (domain.PersonaProfile, error)
	Delete(ctx context.Context, kind domain.ProfileKind, id uuid.UUID) error
}

type SellerRepository interface {
	Create(ctx context.Context, seller domain.Seller) (domain.Seller, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Seller, error)
	SetVerification(ctx context.Context, id uuid.UUID, status domain.VerificationStatus, notes string, at time.Time) (domain.Seller, error)
}

type PromoterRepository interface {
	Create(ctx context.Context, promoter domain.Promoter) (domain.Promoter, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Promoter, error)
}

type StewardRepository interface {
	Create(ctx context.Context, steward domain.Steward) (domain.Steward, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Steward, error)
	ListApproved(ctx context.Context, limit, offset int) ([]domain.Steward, error)
	// CountOpenByMember counts PENDING and APPROVED stewards of a member.
	CountOpenByMember(ctx context.Context, memberID uuid.UUID) (int64, error)
}

type ClaimRepository interface {
	// FindConflicts returns stored claims matching any of claims that are owned
	// by someone other than the listed owners.
	FindConflicts(ctx context.Context, claims []domain.IdentityClaim, allowedOwners ...uuid.UUID) ([]domain.IdentityClaim, error)
	Insert(ctx context.Context, claims []domain.IdentityClaim) error
	DeleteByOwner(ctx context.Context, kind domain.ProfileKind, ownerID uuid.UUID) error
}

type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
}

type OutboxEvent struct {
	EventID       uuid.UUID
	EventType     string
	PartitionKey  string
	Payload       []byte
	OccurredAt    time.Time
	SchemaVersion string
	// Redact drops the stored payload once the event is published.
	Redact        bool
}

type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	PublishedAt  *time.Time
	LastError    *string
	LastErrorAt  *time.Time
	FirstSeenAt  time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, errMsg string, at time.Time) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	Status       string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
	// Release drops an uncompleted reservation so the caller may retry.
	Release(ctx context.Context, key string) error
}
