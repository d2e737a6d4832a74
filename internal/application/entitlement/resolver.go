package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aurachatapp/aurachat-premium/internal/domain"
	"github.com/aurachatapp/aurachat-premium/internal/observability"
)

type customerCache interface {
	GetCustomerID(ctx context.Context, email string) (string, error)
	PutCustomerID(ctx context.Context, email, customerID string) error
}

type billingProvider interface {
	FindCustomer(ctx context.Context, email string) (*domain.Customer, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]domain.Subscription, error)
}

// Resolver derives premium status from billing. Only the email to customer id
// mapping is cached; subscriptions are fetched on every call.
type Resolver struct {
	cache   customerCache
	billing billingProvider
	timeout time.Duration
	group   singleflight.Group
	log     *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

type ResolverDeps struct {
	Cache customerCache
	// Billing may be nil, in which case every identity resolves to not premium.
	Billing billingProvider
	Timeout time.Duration
	Log     *zap.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

func NewResolver(deps ResolverDeps) *Resolver {
	r := &Resolver{
		cache:   deps.Cache,
		billing: deps.Billing,
		timeout: deps.Timeout,
		log:     deps.Log,
		metrics: deps.Metrics,
		now:     deps.Now,
	}
	if r.timeout <= 0 {
		r.timeout = 5 * time.Second
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, email string) (*domain.Entitlement, error) {
	email = domain.NormalizeEmail(email)
	ent := &domain.Entitlement{Email: email, ResolvedAt: r.now().UTC()}
	if r.billing == nil {
		r.metrics.EntitlementResolved("disabled")
		return ent, nil
	}

	customerID, err := r.customerID(ctx, email)
	if err != nil {
		r.metrics.EntitlementResolved("error")
		return nil, err
	}
	if customerID == "" {
		r.metrics.EntitlementResolved("no_customer")
		return ent, nil
	}
	ent.CustomerID = customerID

	subCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	subs, err := r.billing.ListSubscriptions(subCtx, customerID)
	if err != nil {
		r.metrics.EntitlementResolved("error")
		r.log.Warn("subscription lookup failed", zap.String("customer_id", customerID), zap.Error(err))
		return nil, fmt.Errorf("list subscriptions: %v: %w", err, domain.ErrUpstream)
	}
	for _, s := range subs {
		if s.Status.IsEntitled() {
			ent.Premium = true
			break
		}
	}
	if ent.Premium {
		r.metrics.EntitlementResolved("premium")
	} else {
		r.metrics.EntitlementResolved("free")
	}
	return ent, nil
}

// customerID returns the cached id or looks it up once, collapsing concurrent
// lookups for the same email. An empty id means billing has no such customer.
func (r *Resolver) customerID(ctx context.Context, email string) (string, error) {
	id, err := r.cache.GetCustomerID(ctx, email)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		r.log.Warn("customer cache read failed", zap.String("email", observability.MaskEmail(email)), zap.Error(err))
	}

	v, err, _ := r.group.Do(email, func() (interface{}, error) {
		// Detached so one caller's cancellation does not fail the others.
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		c, err := r.billing.FindCustomer(lookupCtx, email)
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			r.log.Warn("customer lookup failed", zap.String("email", observability.MaskEmail(email)), zap.Error(err))
			return "", fmt.Errorf("find customer: %v: %w", err, domain.ErrUpstream)
		}
		if err := r.cache.PutCustomerID(lookupCtx, email, c.ID); err != nil {
			r.log.Warn("customer cache write failed", zap.String("email", observability.MaskEmail(email)), zap.Error(err))
		}
		return c.ID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
