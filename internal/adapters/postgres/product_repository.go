package postgres

import (
	"context"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type productRepository struct {
	db *gorm.DB
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	rec := productModel{
		ID: product.ID, SellerID: product.SellerID, Name: product.Name, Description: product.Description,
		PriceCents: product.PriceCents, IsKappaBranded: product.IsKappaBranded, CreatedAt: product.CreatedAt,
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := conn(ctx, r.db).Create(&rec).Error; err != nil {
		return domain.Product{}, err
	}
	return toDomainProduct(rec), nil
}
