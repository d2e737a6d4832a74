package domain

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionPaused            SubscriptionStatus = "paused"
)

// IsEntitled reports whether a subscription in this status grants premium.
func (s SubscriptionStatus) IsEntitled() bool {
	return s == SubscriptionActive || s == SubscriptionTrialing
}

type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Subscription struct {
	ID         string             `json:"id"`
	CustomerID string             `json:"customer_id"`
	Status     SubscriptionStatus `json:"status"`
}

// Entitlement is the result of one resolution. Premium is never cached across calls.
type Entitlement struct {
	Email      string    `json:"email"`
	CustomerID string    `json:"customer_id,omitempty"`
	Premium    bool      `json:"premium"`
	ResolvedAt time.Time `json:"resolved_at"`
}
