package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type memberRepository struct {
	db *gorm.DB
}

func (r *memberRepository) Create(ctx context.Context, member domain.Member) (domain.Member, error) {
	rec := fromDomainMember(member)
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := conn(ctx, r.db).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Member{}, domain.ErrConflict
		}
		return domain.Member{}, err
	}
	return toDomainMember(rec), nil
}

func (r *memberRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Member, error) {
	return r.take(ctx, conn(ctx, r.db).Where("id = ?", id))
}

func (r *memberRepository) FindDraft(ctx context.Context, subject, email string) (domain.Member, error) {
	draft := string(domain.RegistrationDraft)
	if subject != "" {
		m, err := r.take(ctx, conn(ctx, r.db).
			Where("identity_subject = ? AND registration_status = ?", subject, draft).
			Order("created_at asc"))
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return m, err
		}
	}
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Member{}, domain.ErrNotFound
	}
	return r.take(ctx, conn(ctx, r.db).
		Where("email = ? AND registration_status = ?", email, draft).
		Order("created_at asc"))
}

func (r *memberRepository) FindCompleteByEmail(ctx context.Context, email string) (domain.Member, error) {
	return r.take(ctx, conn(ctx, r.db).Where("email = ? AND registration_status = ?",
		domain.NormalizeEmail(email), string(domain.RegistrationComplete)))
}

func (r *memberRepository) FindCompleteByMembershipNumber(ctx context.Context, membershipNumber string) (domain.Member, error) {
	return r.take(ctx, conn(ctx, r.db).Where("membership_number = ? AND registration_status = ?",
		domain.NormalizeMembershipNumber(membershipNumber), string(domain.RegistrationComplete)))
}

func (r *memberRepository) FindBySubject(ctx context.Context, subject string) (domain.Member, error) {
	return r.take(ctx, conn(ctx, r.db).Where("identity_subject = ?", subject).
		Order("registration_status desc, created_at asc"))
}

func (r *memberRepository) take(_ context.Context, q *gorm.DB) (domain.Member, error) {
	var rec memberModel
	if err := q.Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Member{}, domain.ErrNotFound
		}
		return domain.Member{}, err
	}
	return toDomainMember(rec), nil
}

func (r *memberRepository) Update(ctx context.Context, params ports.UpdateMemberParams) (domain.Member, error) {
	updates := map[string]any{
		"updated_at": params.UpdatedAt,
	}
	if params.IdentitySubject != nil {
		updates["identity_subject"] = optionalString(*params.IdentitySubject)
	}
	if params.Name != nil {
		updates["name"] = strings.TrimSpace(*params.Name)
	}
	if params.Email != nil {
		updates["email"] = domain.NormalizeEmail(*params.Email)
	}
	if params.MembershipNumber != nil {
		updates["membership_number"] = optionalString(domain.NormalizeMembershipNumber(*params.MembershipNumber))
	}
	if params.InitiatedChapterID != nil {
		updates["initiated_chapter_id"] = *params.InitiatedChapterID
	}
	if params.InitiationYear != nil {
		updates["initiation_year"] = *params.InitiationYear
	}
	if params.Phone != nil {
		updates["phone"] = strings.TrimSpace(*params.Phone)
	}
	if params.City != nil {
		updates["city"] = strings.TrimSpace(*params.City)
	}
	if params.State != nil {
		updates["state"] = strings.TrimSpace(*params.State)
	}
	if params.HeadshotURL != nil {
		updates["headshot_url"] = strings.TrimSpace(*params.HeadshotURL)
	}
	if params.RegistrationStatus != nil {
		updates["registration_status"] = string(*params.RegistrationStatus)
	}
	res := conn(ctx, r.db).Model(&memberModel{}).Where("id = ?", params.MemberID).Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return domain.Member{}, domain.ErrConflict
		}
		return domain.Member{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Member{}, domain.ErrNotFound
	}
	return r.GetByID(ctx, params.MemberID)
}

func (r *memberRepository) SetVerification(ctx context.Context, id uuid.UUID, status domain.VerificationStatus, notes string, at time.Time) (domain.Member, error) {
	updates := map[string]any{
		"verification_status": string(status),
		"verification_notes":  notes,
		"updated_at":          at,
	}
	if status == domain.VerificationVerified {
		updates["verified_at"] = at
	}
	res := conn(ctx, r.db).Model(&memberModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return domain.Member{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Member{}, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memberRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := conn(ctx, r.db).Where("id = ?", id).Delete(&memberModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
