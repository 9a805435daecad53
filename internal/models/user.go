package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User is a campaign owner account.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string        `bson:"email" json:"email"`
	Name      string        `bson:"name,omitempty" json:"name,omitempty"`
	AvatarURL string        `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	CreatedAt time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}
