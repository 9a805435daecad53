package models

import "time"

// WebhookEvent names a review lifecycle event a webhook can subscribe to.
type WebhookEvent string

const (
	EventReviewCreated  WebhookEvent = "review.created"
	EventReviewApproved WebhookEvent = "review.approved"
	EventReviewRejected WebhookEvent = "review.rejected"
	EventReviewFlagged  WebhookEvent = "review.flagged"
)

// ValidWebhookEvent reports whether e is one of the known lifecycle events.
func ValidWebhookEvent(e WebhookEvent) bool {
	switch e {
	case EventReviewCreated, EventReviewApproved, EventReviewRejected, EventReviewFlagged:
		return true
	}
	return false
}

// Webhook is an owner-registered notification endpoint embedded in a
// campaign. The secret is generated at creation and never changes; only
// URL, events, and the enabled flag are mutable.
type Webhook struct {
	ID        string         `bson:"_id" json:"id"`
	URL       string         `bson:"url" json:"url"`
	Events    []WebhookEvent `bson:"events" json:"events"`
	Secret    string         `bson:"secret" json:"-"`
	Enabled   bool           `bson:"enabled" json:"enabled"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}

// SubscribedTo reports whether the webhook listens for the given event.
func (w *Webhook) SubscribedTo(event WebhookEvent) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}
