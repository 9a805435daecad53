package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RatingComponentType selects the rating UI the embed renders.
type RatingComponentType string

const (
	RatingStar  RatingComponentType = "star"
	RatingEmoji RatingComponentType = "emoji"
)

// Campaign is an owner-configured review-collection unit. Webhooks are
// embedded in the campaign document and mutated with $push/$pull/positional
// updates rather than stored in their own collection.
type Campaign struct {
	ID                  bson.ObjectID       `bson:"_id,omitempty" json:"id"`
	OwnerID             bson.ObjectID       `bson:"owner_id" json:"owner_id"`
	Name                string              `bson:"name" json:"name"`
	CTAText             string              `bson:"cta_text" json:"cta_text"`
	RatingComponentType RatingComponentType `bson:"rating_component_type" json:"rating_component_type"`
	WhitelistedDomains  []string            `bson:"whitelisted_domains,omitempty" json:"whitelisted_domains,omitempty"`
	Webhooks            []Webhook           `bson:"webhooks,omitempty" json:"webhooks,omitempty"`
	CreatedAt           time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time           `bson:"updated_at" json:"updated_at"`
}
