package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/buddywood/northstarnupes-sub002/internal/ports"
)

// LoggingProvider fakes connected accounts for local runs. Ids are derived
// from the idempotency key, so retries get the same account back.
type LoggingProvider struct {
	logger *slog.Logger
}

func NewLoggingProvider(logger *slog.Logger) *LoggingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProvider{logger: logger}
}

func (p *LoggingProvider) CreateConnectedAccount(ctx context.Context, req ports.PaymentAccountRequest) (string, error) {
	seed := req.IdempotencyKey
	if seed == "" {
		seed = req.ProfileID.String()
	}
	sum := sha256.Sum256([]byte(seed))
	id := "acct_local_" + hex.EncodeToString(sum[:8])
	p.logger.InfoContext(ctx, "connected account simulated",
		"module", "payments.logging_provider",
		"layer", "adapter",
		"operation", "create_connected_account",
		"outcome", "success",
		"profile_kind", string(req.Kind),
		"profile_id", req.ProfileID.String(),
		"account_id", id,
	)
	return id, nil
}
