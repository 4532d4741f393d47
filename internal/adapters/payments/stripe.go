package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProvider opens Express connected accounts for approved sellers,
// promoters and stewards.
type StripeProvider struct {
	api     *client.API
	country string
}

type StripeOptions struct {
	SecretKey string
	Country   string
	// Backends overrides the API endpoint. Nil uses the live Stripe API.
	Backends *stripe.Backends
}

func NewStripeProvider(opts StripeOptions) (*StripeProvider, error) {
	if strings.TrimSpace(opts.SecretKey) == "" {
		return nil, errors.New("stripe secret key is required")
	}
	country := strings.ToUpper(strings.TrimSpace(opts.Country))
	if country == "" {
		country = "US"
	}
	return &StripeProvider{api: client.New(opts.SecretKey, opts.Backends), country: country}, nil
}

func (p *StripeProvider) CreateConnectedAccount(ctx context.Context, req ports.PaymentAccountRequest) (string, error) {
	if req.Email == "" {
		return "", errors.New("connected account requires an email")
	}
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(p.country),
		Email:   stripe.String(req.Email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	if req.DisplayName != "" {
		params.BusinessProfile = &stripe.AccountBusinessProfileParams{Name: stripe.String(req.DisplayName)}
	}
	params.Context = ctx
	params.AddMetadata("profile_kind", string(req.Kind))
	params.AddMetadata("profile_id", req.ProfileID.String())
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	acct, err := p.api.Accounts.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return "", fmt.Errorf("stripe %s: %s", stripeErr.Type, stripeErr.Msg)
		}
		return "", err
	}
	return acct.ID, nil
}
