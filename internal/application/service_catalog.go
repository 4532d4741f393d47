package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
)

// CreateProduct lists an item for the caller's approved seller profile.
// Branded items re-open seller verification when the seller's member is not
// itself verified.
func (s *Service) CreateProduct(ctx context.Context, p Principal, req ProductRequest) (ProductResponse, error) {
	account, err := s.RequireRole(p, domain.PersonaSeller)
	if err != nil {
		return ProductResponse{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := domain.ValidateName("name", req.Name, 200); err != nil {
		return ProductResponse{}, err
	}
	if req.PriceCents < 0 {
		return ProductResponse{}, fmt.Errorf("%w: price_cents must not be negative", domain.ErrInvalidInput)
	}

	sellerID := account.SellerRef()
	if sellerID == nil {
		return ProductResponse{}, domain.ErrSellerNotApproved
	}
	seller, err := s.sellers.GetByID(ctx, *sellerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.healOrphan(ctx, account)
			return ProductResponse{}, domain.ErrSellerNotApproved
		}
		return ProductResponse{}, err
	}
	if seller.Status != domain.ApplicationApproved {
		return ProductResponse{}, domain.ErrSellerNotApproved
	}

	resetVerification := false
	if req.IsKappaBranded {
		member, err := s.sellerMember(ctx, seller)
		if err != nil {
			return ProductResponse{}, err
		}
		memberVerified := member != nil && member.VerificationStatus == domain.VerificationVerified
		switch {
		case member == nil && seller.VerificationStatus != domain.VerificationVerified:
			s.metrics.Reverification("refused")
			return ProductResponse{}, domain.ErrVerificationRequired
		case seller.VerificationStatus == domain.VerificationVerified && !memberVerified:
			resetVerification = true
		}
	}

	now := s.nowFn()
	product := domain.Product{
		ID:             uuid.New(),
		SellerID:       seller.ID,
		Name:           req.Name,
		Description:    req.Description,
		PriceCents:     req.PriceCents,
		IsKappaBranded: req.IsKappaBranded,
		CreatedAt:      now,
	}
	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		product, err = s.products.Create(txCtx, product)
		if err != nil {
			return err
		}
		if !resetVerification {
			return nil
		}
		note := reverificationNote(seller.VerificationNotes, product, now)
		seller, err = s.sellers.SetVerification(txCtx, seller.ID, domain.VerificationPending, note, now)
		if err != nil {
			return err
		}
		return s.enqueueEvent(txCtx, eventSellerVerificationReset, seller.ID.String(), map[string]any{
			"seller_id":  seller.ID.String(),
			"product_id": product.ID.String(),
			"reason":     "branded_item_without_verified_member",
		})
	})
	if err != nil {
		return ProductResponse{}, err
	}
	if resetVerification {
		s.metrics.Reverification("reset")
		s.logger.WarnContext(ctx, "seller verification reset for review",
			"operation", "create_product",
			"outcome", "reverification",
			"seller_id", seller.ID.String(),
			"product_id", product.ID.String(),
		)
	}
	return ProductResponse{
		ID:                       product.ID,
		SellerID:                 product.SellerID,
		Name:                     product.Name,
		PriceCents:               product.PriceCents,
		IsKappaBranded:           product.IsKappaBranded,
		SellerVerificationStatus: string(seller.VerificationStatus),
		CreatedAt:                product.CreatedAt,
	}, nil
}

// sellerMember follows the seller's back-reference. A reference to a missing
// member counts as no member.
func (s *Service) sellerMember(ctx context.Context, seller domain.Seller) (*domain.Member, error) {
	if seller.MemberID == nil {
		return nil, nil
	}
	member, err := s.members.GetByID(ctx, *seller.MemberID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func reverificationNote(previous string, product domain.Product, at time.Time) string {
	note := fmt.Sprintf("[%s] verification reset: branded item %s listed without a verified member",
		at.Format(time.RFC3339), product.ID)
	if previous == "" {
		return note
	}
	return previous + "\n" + note
}
