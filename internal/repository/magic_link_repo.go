package repository

import (
	"context"
	"time"

	"plethora-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MagicLinkStats summarizes link usage for a campaign.
type MagicLinkStats struct {
	Total          int64   `json:"total"`
	Pending        int64   `json:"pending"`
	Used           int64   `json:"used"`
	Expired        int64   `json:"expired"`
	ConversionRate float64 `json:"conversion_rate"`
}

type MagicLinkRepo struct {
	collection *mongo.Collection
}

func NewMagicLinkRepo(db *mongo.Database) *MagicLinkRepo {
	return &MagicLinkRepo{
		collection: db.Collection("magic_links"),
	}
}

func (r *MagicLinkRepo) Create(ctx context.Context, link *models.MagicLink) error {
	link.CreatedAt = time.Now()
	result, err := r.collection.InsertOne(ctx, link)
	if err != nil {
		return err
	}
	link.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *MagicLinkRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*models.MagicLink, error) {
	var link models.MagicLink
	err := r.collection.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&link)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// MarkExpired transitions a still-pending link to expired. Links already
// used or expired are left untouched, so lazy expiry never moves a link
// backward in its lifecycle.
func (r *MagicLinkRepo) MarkExpired(ctx context.Context, tokenHash string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"token_hash": tokenHash, "status": models.MagicLinkPending},
		bson.M{"$set": bson.M{"status": models.MagicLinkExpired}})
	return err
}

// ConsumeIfPending atomically transitions pending → used, recording the
// consumption time and resulting review. Returns false when no pending
// document matched, meaning a concurrent caller already consumed the link.
func (r *MagicLinkRepo) ConsumeIfPending(ctx context.Context, tokenHash, reviewID string, usedAt time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"token_hash": tokenHash, "status": models.MagicLinkPending},
		bson.M{"$set": bson.M{
			"status":    models.MagicLinkUsed,
			"used_at":   usedAt,
			"review_id": reviewID,
		}})
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// ListByCampaign returns the 100 most recent links for a campaign.
func (r *MagicLinkRepo) ListByCampaign(ctx context.Context, campaignID string) ([]models.MagicLink, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"campaign_id": campaignID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(100))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	links := []models.MagicLink{}
	if err := cursor.All(ctx, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (r *MagicLinkRepo) Delete(ctx context.Context, id bson.ObjectID, campaignID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "campaign_id": campaignID})
	return err
}

func (r *MagicLinkRepo) Stats(ctx context.Context, campaignID string) (*MagicLinkStats, error) {
	stats := &MagicLinkStats{}
	var err error

	if stats.Total, err = r.collection.CountDocuments(ctx, bson.M{"campaign_id": campaignID}); err != nil {
		return nil, err
	}
	if stats.Pending, err = r.collection.CountDocuments(ctx, bson.M{"campaign_id": campaignID, "status": models.MagicLinkPending}); err != nil {
		return nil, err
	}
	if stats.Used, err = r.collection.CountDocuments(ctx, bson.M{"campaign_id": campaignID, "status": models.MagicLinkUsed}); err != nil {
		return nil, err
	}
	if stats.Expired, err = r.collection.CountDocuments(ctx, bson.M{"campaign_id": campaignID, "status": models.MagicLinkExpired}); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		rate := float64(stats.Used) / float64(stats.Total) * 100
		// One decimal place, matching the dashboard display.
		stats.ConversionRate = float64(int(rate*10+0.5)) / 10
	}
	return stats, nil
}

// EnsureIndexes creates necessary indexes for the magic_links collection
func (r *MagicLinkRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
