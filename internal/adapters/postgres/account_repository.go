package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	if err := account.Validate(); err != nil {
		return domain.Account{}, err
	}
	rec := fromDomainAccount(account)
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := conn(ctx, r.db).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Account{}, domain.ErrConflict
		}
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	return r.take(ctx, "id = ?", id)
}

func (r *accountRepository) GetBySubject(ctx context.Context, subject string) (domain.Account, error) {
	return r.take(ctx, "identity_subject = ?", subject)
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.take(ctx, "email = ?", domain.NormalizeEmail(email))
}

func (r *accountRepository) GetByProfile(ctx context.Context, ref domain.ProfileRef) (domain.Account, error) {
	return r.take(ctx, "profile_kind = ? AND profile_id = ?", string(ref.Kind), ref.ID)
}

func (r *accountRepository) take(ctx context.Context, query string, args ...any) (domain.Account, error) {
	var rec accountModel
	if err := conn(ctx, r.db).Where(query, args...).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, err
	}
	return toDomainAccount(rec), nil
}

func (r *accountRepository) Save(ctx context.Context, account domain.Account) (domain.Account, error) {
	if err := account.Validate(); err != nil {
		return domain.Account{}, err
	}
	rec := fromDomainAccount(account)
	updates := map[string]any{
		"persona":          rec.Persona,
		"profile_kind":     rec.ProfileKind,
		"profile_id":       rec.ProfileID,
		"onboarding_stage": rec.OnboardingStage,
		"feature_flags":    rec.FeatureFlags,
		"updated_at":       time.Now().UTC(),
	}
	res := conn(ctx, r.db).Model(&accountModel{}).Where("id = ?", account.ID).Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return domain.Account{}, domain.ErrConflict
		}
		return domain.Account{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Account{}, domain.ErrNotFound
	}
	return r.GetByID(ctx, account.ID)
}

func (r *accountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := conn(ctx, r.db).Where("id = ?", id).Delete(&accountModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
