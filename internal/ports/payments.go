package ports

import (
	"context"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/google/uuid"
)

type PaymentAccountRequest struct {
	Kind           domain.ProfileKind
	ProfileID      uuid.UUID
	Email          string
	DisplayName    string
	IdempotencyKey string
}

// PaymentProvider creates connected payout accounts at the external provider.
// Calls with the same IdempotencyKey must return the same account.
type PaymentProvider interface {
	CreateConnectedAccount(ctx context.Context, req PaymentAccountRequest) (string, error)
}
