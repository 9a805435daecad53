package models

import "time"

// ReviewChannel tags how a review entered the system. Each channel has its
// own required fields: authenticated reviews carry a UserID, anonymous
// reviews an IPHash, magic-link reviews a token fingerprint and order ref.
type ReviewChannel string

const (
	ChannelAuthenticated ReviewChannel = "authenticated"
	ChannelAnonymous     ReviewChannel = "anonymous"
	ChannelMagicLink     ReviewChannel = "magic_link"
)

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// AuthorMeta is the submitter identity snapshot stored on a review.
type AuthorMeta struct {
	Name      string `bson:"name" json:"name"`
	Email     string `bson:"email,omitempty" json:"email,omitempty"`
	AvatarURL string `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
}

// Review is one collected review. The _id is a string: authenticated
// reviews use the deterministic "{userID}_{campaignID}" composite key
// (one review per user per campaign, enforced by upsert), while anonymous
// and magic-link reviews get random identifiers.
type Review struct {
	ID         string        `bson:"_id" json:"id"`
	CampaignID string        `bson:"campaign_id" json:"campaign_id"`
	Rating     int           `bson:"rating" json:"rating"`
	Title      string        `bson:"title" json:"title"`
	Review     string        `bson:"review" json:"review"`
	Status     ReviewStatus  `bson:"status" json:"status"`
	Flagged    bool          `bson:"flagged" json:"flagged"`
	FlagReason string        `bson:"flag_reason,omitempty" json:"flag_reason,omitempty"`
	Channel    ReviewChannel `bson:"channel" json:"channel"`
	Author     AuthorMeta    `bson:"author" json:"author"`

	// Authenticated channel only.
	UserID string `bson:"user_id,omitempty" json:"user_id,omitempty"`

	// Anonymous channel only: sha256(ip + "_" + campaignID), kept for
	// rate-limit counting. The raw IP is never persisted.
	IPHash string `bson:"ip_hash,omitempty" json:"-"`

	// Magic-link channel only.
	MagicLinkToken string `bson:"magic_link_token,omitempty" json:"-"`
	OrderID        string `bson:"order_id,omitempty" json:"order_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CompositeReviewID builds the deterministic _id for authenticated reviews.
func CompositeReviewID(userID, campaignID string) string {
	return userID + "_" + campaignID
}
