package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sellerRepository struct {
	db *gorm.DB
}

func (r *sellerRepository) Create(ctx context.Context, seller domain.Seller) (domain.Seller, error) {
	rec := sellerModel{
		ID:                 seller.ID,
		MemberID:           seller.MemberID,
		BusinessName:       seller.BusinessName,
		MembershipNumber:   optionalString(domain.NormalizeMembershipNumber(seller.MembershipNumber)),
		VerificationStatus: string(seller.VerificationStatus),
		VerificationNotes:  seller.VerificationNotes,
		Common:             fromDomainPersona(seller.PersonaProfile),
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := conn(ctx, r.db).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Seller{}, domain.ErrConflict
		}
		return domain.Seller{}, err
	}
	return toDomainSeller(rec), nil
}

func (r *sellerRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Seller, error) {
	var rec sellerModel
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Seller{}, domain.ErrNotFound
		}
		return domain.Seller{}, err
	}
	return toDomainSeller(rec), nil
}

func (r *sellerRepository) SetVerification(ctx context.Context, id uuid.UUID, status domain.VerificationStatus, notes string, at time.Time) (domain.Seller, error) {
	res := conn(ctx, r.db).Model(&sellerModel{}).Where("id = ?", id).Updates(map[string]any{
		"verification_status": string(status),
		"verification_notes":  notes,
		"updated_at":          at,
	})
	if res.Error != nil {
		return domain.Seller{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Seller{}, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

type promoterRepository struct {
	db *gorm.DB
}

func (r *promoterRepository) Create(ctx context.Context, promoter domain.Promoter) (domain.Promoter, error) {
	rec := promoterModel{
		ID:               promoter.ID,
		MemberID:         promoter.MemberID,
		MembershipNumber: optionalString(domain.NormalizeMembershipNumber(promoter.MembershipNumber)),
		Common:           fromDomainPersona(promoter.PersonaProfile),
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := conn(ctx, r.db).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Promoter{}, domain.ErrConflict
		}
		return domain.Promoter{}, err
	}
	return toDomainPromoter(rec), nil
}

func (r *promoterRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Promoter, error) {
	var rec promoterModel
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Promoter{}, domain.ErrNotFound
		}
		return domain.Promoter{}, err
	}
	return toDomainPromoter(rec), nil
}

type stewardRepository struct {
	db *gorm.DB
}

func (r *stewardRepository) Create(ctx context.Context, steward domain.Steward) (domain.Steward, error) {
	if steward.MemberID == nil {
		return domain.Steward{}, fmt.Errorf("%w: steward requires a member", domain.ErrInvalidInput)
	}
	rec := stewardModel{
		ID:       steward.ID,
		MemberID: *steward.MemberID,
		Common:   fromDomainPersona(steward.PersonaProfile),
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := conn(ctx, r.db).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Steward{}, domain.ErrConflict
		}
		return domain.Steward{}, err
	}
	return toDomainSteward(rec), nil
}

func (r *stewardRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Steward, error) {
	var rec stewardModel
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Steward{}, domain.ErrNotFound
		}
		return domain.Steward{}, err
	}
	return toDomainSteward(rec), nil
}

func (r *stewardRepository) ListApproved(ctx context.Context, limit, offset int) ([]domain.Steward, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var rows []stewardModel
	err := conn(ctx, r.db).Where("status = ?", string(domain.ApplicationApproved)).
		Order("created_at desc").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Steward, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainSteward(row))
	}
	return out, nil
}

func (r *stewardRepository) CountOpenByMember(ctx context.Context, memberID uuid.UUID) (int64, error) {
	var n int64
	err := conn(ctx, r.db).Model(&stewardModel{}).
		Where("member_id = ? AND status IN ?", memberID, []string{string(domain.ApplicationPending), string(domain.ApplicationApproved)}).
		Count(&n).Error
	return n, err
}

// personaProfileRepository applies lifecycle writes to whichever table owns kind.
type personaProfileRepository struct {
	db        *gorm.DB
	sellers   *sellerRepository
	promoters *promoterRepository
	stewards  *stewardRepository
}

func modelFor(kind domain.ProfileKind) (any, error) {
	switch kind {
	case domain.ProfileKindSeller:
		return &sellerModel{}, nil
	case domain.ProfileKindPromoter:
		return &promoterModel{}, nil
	case domain.ProfileKindSteward:
		return &stewardModel{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported profile kind %q", domain.ErrInvalidInput, kind)
	}
}

func (r *personaProfileRepository) Get(ctx context.Context, kind domain.ProfileKind, id uuid.UUID) (domain.PersonaProfile, error) {
	switch kind {
	case domain.ProfileKindSeller:
		s, err := r.sellers.GetByID(ctx, id)
		return s.PersonaProfile, err
	case domain.ProfileKindPromoter:
		p, err := r.promoters.GetByID(ctx, id)
		return p.PersonaProfile, err
	case domain.ProfileKindSteward:
		s, err := r.stewards.GetByID(ctx, id)
		return s.PersonaProfile, err
	default:
		return domain.PersonaProfile{}, fmt.Errorf("%w: unsupported profile kind %q", domain.ErrInvalidInput, kind)
	}
}

func (r *personaProfileRepository) update(ctx context.Context, kind domain.ProfileKind, scope func(*gorm.DB) *gorm.DB, updates map[string]any) (int64, error) {
	model, err := modelFor(kind)
	if err != nil {
		return 0, err
	}
	res := scope(conn(ctx, r.db).Model(model)).Updates(updates)
	return res.RowsAffected, res.Error
}

func byID(id uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db.Where("id = ?", id) }
}

func (r *personaProfileRepository) SetInvitation(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, tokenHash string, expiresAt time.Time, at time.Time) error {
	n, err := r.update(ctx, kind, byID(id), map[string]any{
		"invitation_token_hash": tokenHash,
		"invitation_expires_at": expiresAt,
		"updated_at":            at,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *personaProfileRepository) ClearInvitation(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, at time.Time) error {
	_, err := r.update(ctx, kind, byID(id), map[string]any{
		"invitation_token_hash": nil,
		"invitation_expires_at": nil,
		"updated_at":            at,
	})
	return err
}

func (r *personaProfileRepository) AttachMember(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, memberID uuid.UUID, at time.Time) error {
	if kind == domain.ProfileKindSteward {
		return nil
	}
	n, err := r.update(ctx, kind, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ? AND member_id IS NULL", id)
	}, map[string]any{
		"member_id":  memberID,
		"updated_at": at,
	})
	if err != nil || n > 0 {
		return err
	}
	current, err := r.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if current.MemberID != nil && *current.MemberID != memberID {
		return fmt.Errorf("%w: profile already belongs to another member", domain.ErrConflict)
	}
	return nil
}

func (r *personaProfileRepository) MarkApproved(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, paymentAccountID string, at time.Time) (domain.PersonaProfile, error) {
	updates := map[string]any{
		"status":     string(domain.ApplicationApproved),
		"updated_at": at,
	}
	if paymentAccountID != "" {
		updates["payment_account_id"] = gorm.Expr("COALESCE(payment_account_id, ?)", paymentAccountID)
	}
	n, err := r.update(ctx, kind, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ? AND status IN ?", id, []string{string(domain.ApplicationPending), string(domain.ApplicationApproved)})
	}, updates)
	if err != nil {
		return domain.PersonaProfile{}, err
	}
	if n == 0 {
		return r.transitionFailure(ctx, kind, id)
	}
	return r.Get(ctx, kind, id)
}

func (r *personaProfileRepository) MarkRejected(ctx context.Context, kind domain.ProfileKind, id uuid.UUID, at time.Time) (domain.PersonaProfile, error) {
	n, err := r.update(ctx, kind, func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ? AND status = ?", id, string(domain.ApplicationPending))
	}, map[string]any{
		"status":     string(domain.ApplicationRejected),
		"updated_at": at,
	})
	if err != nil {
		return domain.PersonaProfile{}, err
	}
	if n == 0 {
		return r.transitionFailure(ctx, kind, id)
	}
	return r.Get(ctx, kind, id)
}

// transitionFailure tells a missing row apart from a row in the wrong state.
func (r *personaProfileRepository) transitionFailure(ctx context.Context, kind domain.ProfileKind, id uuid.UUID) (domain.PersonaProfile, error) {
	if _, err := r.Get(ctx, kind, id); err != nil {
		return domain.PersonaProfile{}, err
	}
	return domain.PersonaProfile{}, domain.ErrInvalidTransition
}

func (r *personaProfileRepository) Delete(ctx context.Context, kind domain.ProfileKind, id uuid.UUID) error {
	model, err := modelFor(kind)
	if err != nil {
		return err
	}
	res := conn(ctx, r.db).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
