package application

import (
	"log/slog"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/ports"
)

type Service struct {
	cfg         Config
	tx          ports.Transactor
	accounts    ports.AccountRepository
	members     ports.MemberRepository
	personas    ports.PersonaProfileRepository
	sellers     ports.SellerRepository
	promoters   ports.PromoterRepository
	stewards    ports.StewardRepository
	claims      ports.ClaimRepository
	products    ports.ProductRepository
	outbox      ports.OutboxRepository
	eventDedup  ports.EventDedupRepository
	idempotency ports.IdempotencyRepository
	verifier    ports.TokenVerifier
	hasher      ports.InvitationHasher
	payments    ports.PaymentProvider
	cache       ports.Cache
	metrics     ports.Metrics
	logger      *slog.Logger
	nowFn       func() time.Time
	tokenFn     func() (string, error)
}

type Dependencies struct {
	Config      Config
	Tx          ports.Transactor
	Accounts    ports.AccountRepository
	Members     ports.MemberRepository
	Personas    ports.PersonaProfileRepository
	Sellers     ports.SellerRepository
	Promoters   ports.PromoterRepository
	Stewards    ports.StewardRepository
	Claims      ports.ClaimRepository
	Products    ports.ProductRepository
	Outbox      ports.OutboxRepository
	EventDedup  ports.EventDedupRepository
	Idempotency ports.IdempotencyRepository
	Verifier    ports.TokenVerifier
	Hasher      ports.InvitationHasher
	Payments    ports.PaymentProvider
	Cache       ports.Cache
	Metrics     ports.Metrics
	Logger      *slog.Logger
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "identity-service"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.InvitationTTL <= 0 {
		cfg.InvitationTTL = 7 * 24 * time.Hour
	}
	if cfg.ApplicationRateLimit <= 0 {
		cfg.ApplicationRateLimit = 5
	}
	if cfg.ApplicationRateWindow <= 0 {
		cfg.ApplicationRateWindow = time.Hour
	}
	if cfg.PaymentLockTTL <= 0 {
		cfg.PaymentLockTTL = 2 * time.Minute
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		cfg:         cfg,
		tx:          deps.Tx,
		accounts:    deps.Accounts,
		members:     deps.Members,
		personas:    deps.Personas,
		sellers:     deps.Sellers,
		promoters:   deps.Promoters,
		stewards:    deps.Stewards,
		claims:      deps.Claims,
		products:    deps.Products,
		outbox:      deps.Outbox,
		eventDedup:  deps.EventDedup,
		idempotency: deps.Idempotency,
		verifier:    deps.Verifier,
		hasher:      deps.Hasher,
		payments:    deps.Payments,
		cache:       deps.Cache,
		metrics:     metrics,
		logger:      logger.With("module", "application", "layer", "application"),
		nowFn:       func() time.Time { return time.Now().UTC() },
		tokenFn:     newInvitationToken,
	}
}
