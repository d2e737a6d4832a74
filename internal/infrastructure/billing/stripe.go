// Package billing looks up customers and subscriptions in Stripe.
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

// StripeProvider implements the entitlement billing lookups against the Stripe API.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider builds a client for secretKey. apiURL overrides the API base
// (stripe-mock, tests) and may be empty.
func NewStripeProvider(secretKey, apiURL string, timeout time.Duration) *StripeProvider {
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(1),
	}
	if apiURL != "" {
		cfg.URL = stripe.String(apiURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return &StripeProvider{
		api: client.New(secretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
	}
}

// FindCustomer returns the most recent customer whose email matches ignoring case.
// The list filter is exact and cheap, so it goes first; Stripe compares it
// case-sensitively, so a miss falls back to search, which does not.
func (p *StripeProvider) FindCustomer(ctx context.Context, email string) (*domain.Customer, error) {
	c, err := p.listByEmail(ctx, email)
	if !errors.Is(err, domain.ErrNotFound) {
		return c, err
	}
	return p.searchByEmail(ctx, email)
}

func (p *StripeProvider) listByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(10)

	it := p.api.Customers.List(params)
	for it.Next() {
		if c := matchCustomer(it.Customer(), email); c != nil {
			return c, nil
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe list customers: %w", err)
	}
	return nil, fmt.Errorf("stripe customer: %w", domain.ErrNotFound)
}

func (p *StripeProvider) searchByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	params := &stripe.CustomerSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("email:%q", email)
	params.Limit = stripe.Int64(10)
	params.Single = true

	it := p.api.Customers.Search(params)
	for it.Next() {
		if c := matchCustomer(it.Customer(), email); c != nil {
			return c, nil
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe search customers: %w", err)
	}
	return nil, fmt.Errorf("stripe customer: %w", domain.ErrNotFound)
}

func matchCustomer(c *stripe.Customer, email string) *domain.Customer {
	if c == nil || c.Deleted || domain.NormalizeEmail(c.Email) != email {
		return nil
	}
	return &domain.Customer{ID: c.ID, Email: email}
}

// ListSubscriptions returns every subscription of customerID regardless of status.
func (p *StripeProvider) ListSubscriptions(ctx context.Context, customerID string) ([]domain.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var subs []domain.Subscription
	it := p.api.Subscriptions.List(params)
	for it.Next() {
		s := it.Subscription()
		subs = append(subs, domain.Subscription{
			ID:         s.ID,
			CustomerID: customerID,
			Status:     domain.SubscriptionStatus(s.Status),
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe list subscriptions: %w", err)
	}
	return subs, nil
}
