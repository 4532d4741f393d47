package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/adapters/postgres"
	"github.com/buddywood/northstarnupes-sub002/internal/adapters/security"
	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errInjected = errors.New("injected failure")

type fixture struct {
	svc      *Service
	db       *gorm.DB
	repos    postgres.Repositories
	accounts *flakyAccounts
	payments *fakePayments
	cache    *memoryCache
	metrics  *recordingMetrics
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(postgres.AllModels()...))

	cfg := Config{
		InvitationBaseURL:     "https://example.org/claim",
		ApplicationRateLimit:  20,
		ApplicationRateWindow: time.Hour,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	repos := postgres.NewRepositories(db)
	f := &fixture{
		db:       db,
		repos:    repos,
		accounts: &flakyAccounts{AccountRepository: repos.Accounts},
		payments: &fakePayments{},
		cache:    newMemoryCache(),
		metrics:  &recordingMetrics{},
	}
	f.svc = NewService(Dependencies{
		Config:      cfg,
		Tx:          repos.Tx,
		Accounts:    f.accounts,
		Members:     repos.Members,
		Personas:    repos.PersonaProfiles,
		Sellers:     repos.Sellers,
		Promoters:   repos.Promoters,
		Stewards:    repos.Stewards,
		Claims:      repos.Claims,
		Products:    repos.Products,
		Outbox:      repos.Outbox,
		EventDedup:  repos.EventDedup,
		Idempotency: repos.Idempotency,
		Hasher:      security.NewInvitationHasher(4),
		Payments:    f.payments,
		Cache:       f.cache,
		Metrics:     f.metrics,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table(table).Count(&n).Error)
	return n
}

func (f *fixture) registerMember(t *testing.T, subject, email, number string) MemberResponse {
	t.Helper()
	res, err := f.svc.CompleteRegistration(context.Background(),
		ports.IdentityClaims{Subject: subject, Email: email},
		RegisterRequest{
			Name:               "Marcus Hill",
			Email:              email,
			MembershipNumber:   number,
			InitiatedChapterID: 12,
			InitiationYear:     2004,
		})
	require.NoError(t, err)
	return res
}

func (f *fixture) verifyMember(t *testing.T, memberID uuid.UUID) {
	t.Helper()
	_, err := f.svc.SetMemberVerification(context.Background(), memberID, VerificationRequest{Status: "VERIFIED"})
	require.NoError(t, err)
}

func claimsFor(subject, email string) ports.IdentityClaims {
	return ports.IdentityClaims{Subject: subject, Email: email}
}

func (f *fixture) principal(t *testing.T, subject, email string) Principal {
	t.Helper()
	p, err := f.svc.LoadPrincipal(context.Background(), ports.IdentityClaims{Subject: subject, Email: email})
	require.NoError(t, err)
	return p
}

func (f *fixture) admin(t *testing.T) Principal {
	t.Helper()
	now := time.Now().UTC()
	_, err := f.repos.Accounts.Create(context.Background(), domain.Account{
		ID:              uuid.New(),
		IdentitySubject: "admin-subject",
		Email:           "admin@example.org",
		Persona:         domain.PersonaAdmin,
		OnboardingStage: domain.OnboardingComplete,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	require.NoError(t, err)
	return f.principal(t, "admin-subject", "admin@example.org")
}

func (f *fixture) account(t *testing.T, subject string) domain.Account {
	t.Helper()
	account, err := f.repos.Accounts.GetBySubject(context.Background(), subject)
	require.NoError(t, err)
	return account
}

// requireConsistent asserts that persona and profile ref agree.
func requireConsistent(t *testing.T, account domain.Account) {
	t.Helper()
	require.NoError(t, account.Validate())
	if account.Profile != nil {
		require.Equal(t, account.Profile.Kind.Persona(), account.Persona)
	}
}

type flakyAccounts struct {
	ports.AccountRepository
	failCreate bool
	failSave   bool
}

func (a *flakyAccounts) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	if a.failCreate {
		return domain.Account{}, errInjected
	}
	return a.AccountRepository.Create(ctx, account)
}

func (a *flakyAccounts) Save(ctx context.Context, account domain.Account) (domain.Account, error) {
	if a.failSave {
		return domain.Account{}, errInjected
	}
	return a.AccountRepository.Save(ctx, account)
}

type fakePayments struct {
	mu    sync.Mutex
	calls []ports.PaymentAccountRequest
	keys  []string
	err   error
}

func (p *fakePayments) CreateConnectedAccount(_ context.Context, req ports.PaymentAccountRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, req.IdempotencyKey)
	if p.err != nil {
		return "", p.err
	}
	p.calls = append(p.calls, req)
	return fmt.Sprintf("acct_test_%d", len(p.calls)), nil
}

func (p *fakePayments) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, counts: map[string]int64{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memoryCache) SetIfAbsent(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; ok {
		return false, nil
	}
	c.values[key] = value
	return true, nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.values, key)
	}
	return nil
}

func (c *memoryCache) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

type recordingMetrics struct {
	mu            sync.Mutex
	registrations map[string]int
	healed        map[string]int
	resets        int
}

func (m *recordingMetrics) ApplicationSubmitted(string, string) {}
func (m *recordingMetrics) AutoApproval(string, string)         {}

func (m *recordingMetrics) Registration(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registrations == nil {
		m.registrations = map[string]int{}
	}
	m.registrations[outcome]++
}

func (m *recordingMetrics) Reverification(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if outcome == "reset" {
		m.resets++
	}
}

func (m *recordingMetrics) OrphanHealed(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.healed == nil {
		m.healed = map[string]int{}
	}
	m.healed[kind]++
}
