package payments

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func TestStripeProviderCreatesExpressAccount(t *testing.T) {
	t.Parallel()

	var gotForm url.Values
	var gotIdempotency string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotForm, _ = url.ParseQuery(string(body))
		gotIdempotency = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"acct_test_123","object":"account"}`))
	}))
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	provider, err := NewStripeProvider(StripeOptions{
		SecretKey: "sk_test_identity",
		Backends:  &stripe.Backends{API: backend},
	})
	require.NoError(t, err)

	profileID := uuid.New()
	id, err := provider.CreateConnectedAccount(context.Background(), ports.PaymentAccountRequest{
		Kind:           domain.ProfileKindSeller,
		ProfileID:      profileID,
		Email:          "seller@example.org",
		DisplayName:    "Crimson Goods",
		IdempotencyKey: "connect-account:seller@example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, "acct_test_123", id)
	assert.Equal(t, "express", gotForm.Get("type"))
	assert.Equal(t, "seller@example.org", gotForm.Get("email"))
	assert.Equal(t, profileID.String(), gotForm.Get("metadata[profile_id]"))
	assert.Equal(t, "connect-account:seller@example.org", gotIdempotency)
}

func TestStripeProviderRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewStripeProvider(StripeOptions{})
	assert.Error(t, err)
}

func TestLoggingProviderIsStablePerKey(t *testing.T) {
	t.Parallel()

	p := NewLoggingProvider(nil)
	req := ports.PaymentAccountRequest{Kind: domain.ProfileKindPromoter, ProfileID: uuid.New(), IdempotencyKey: "connect-account:a@example.org"}
	first, err := p.CreateConnectedAccount(context.Background(), req)
	require.NoError(t, err)
	second, err := p.CreateConnectedAccount(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	req.IdempotencyKey = "connect-account:b@example.org"
	other, err := p.CreateConnectedAccount(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}
