package postgres

import (
	"context"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type claimRepository struct {
	db *gorm.DB
}

func (r *claimRepository) FindConflicts(ctx context.Context, claims []domain.IdentityClaim, allowedOwners ...uuid.UUID) ([]domain.IdentityClaim, error) {
	if len(claims) == 0 {
		return nil, nil
	}
	q := conn(ctx, r.db).Model(&identityClaimModel{})
	match := conn(ctx, r.db)
	for i, c := range claims {
		if i == 0 {
			match = match.Where("claim_type = ? AND value = ?", string(c.Type), c.Value)
			continue
		}
		match = match.Or("claim_type = ? AND value = ?", string(c.Type), c.Value)
	}
	q = q.Where(match)
	if len(allowedOwners) > 0 {
		q = q.Where("owner_id NOT IN ?", allowedOwners)
	}
	var rows []identityClaimModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.IdentityClaim, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainClaim(row))
	}
	return out, nil
}

func (r *claimRepository) Insert(ctx context.Context, claims []domain.IdentityClaim) error {
	if len(claims) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]identityClaimModel, 0, len(claims))
	for _, c := range claims {
		id := c.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		rows = append(rows, identityClaimModel{
			ID: id, ClaimType: string(c.Type), Value: c.Value,
			OwnerKind: string(c.OwnerKind), OwnerID: c.OwnerID, CreatedAt: createdAt,
		})
	}
	if err := conn(ctx, r.db).Create(&rows).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRegistration
		}
		return err
	}
	return nil
}

func (r *claimRepository) DeleteByOwner(ctx context.Context, kind domain.ProfileKind, ownerID uuid.UUID) error {
	return conn(ctx, r.db).Where("owner_kind = ? AND owner_id = ?", string(kind), ownerID).
		Delete(&identityClaimModel{}).Error
}
