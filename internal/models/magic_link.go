package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MagicLinkStatus is the lifecycle state of a magic link. Transitions go
// pending → used or pending → expired, never backward.
type MagicLinkStatus string

const (
	MagicLinkPending MagicLinkStatus = "pending"
	MagicLinkUsed    MagicLinkStatus = "used"
	MagicLinkExpired MagicLinkStatus = "expired"
)

// MagicLink is a single-use review invitation. Only the SHA-256
// fingerprint of the signed token is stored; the raw token travels in the
// URL handed to the recipient and never touches the database.
type MagicLink struct {
	ID            bson.ObjectID   `bson:"_id,omitempty" json:"id"`
	CampaignID    string          `bson:"campaign_id" json:"campaign_id"`
	CustomerName  string          `bson:"customer_name" json:"customer_name"`
	CustomerEmail string          `bson:"customer_email" json:"customer_email"`
	OrderID       string          `bson:"order_id,omitempty" json:"order_id,omitempty"`
	TokenHash     string          `bson:"token_hash" json:"-"`
	Status        MagicLinkStatus `bson:"status" json:"status"`
	CreatedAt     time.Time       `bson:"created_at" json:"created_at"`
	ExpiresAt     time.Time       `bson:"expires_at" json:"expires_at"`
	UsedAt        *time.Time      `bson:"used_at,omitempty" json:"used_at,omitempty"`
	ReviewID      string          `bson:"review_id,omitempty" json:"review_id,omitempty"`
}

func (l *MagicLink) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
