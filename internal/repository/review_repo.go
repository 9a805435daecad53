package repository

import (
	"context"
	"time"

	"plethora-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type ReviewRepo struct {
	collection *mongo.Collection
}

func NewReviewRepo(db *mongo.Database) *ReviewRepo {
	return &ReviewRepo{
		collection: db.Collection("reviews"),
	}
}

func (r *ReviewRepo) Create(ctx context.Context, review *models.Review) error {
	review.CreatedAt = time.Now()
	review.UpdatedAt = review.CreatedAt
	_, err := r.collection.InsertOne(ctx, review)
	return err
}

// Upsert writes an authenticated review under its deterministic composite
// _id, so a user resubmitting to the same campaign replaces their earlier
// review instead of adding a second one.
func (r *ReviewRepo) Upsert(ctx context.Context, review *models.Review) error {
	now := time.Now()
	review.UpdatedAt = now
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": review.ID},
		bson.M{
			"$set": bson.M{
				"campaign_id": review.CampaignID,
				"rating":      review.Rating,
				"title":       review.Title,
				"review":      review.Review,
				"status":      review.Status,
				"flagged":     review.Flagged,
				"channel":     review.Channel,
				"author":      review.Author,
				"user_id":     review.UserID,
				"updated_at":  now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err == nil {
		review.CreatedAt = now
	}
	return err
}

func (r *ReviewRepo) FindByID(ctx context.Context, id, campaignID string) (*models.Review, error) {
	var review models.Review
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "campaign_id": campaignID}).Decode(&review)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &review, nil
}

// ListByCampaign returns every review regardless of moderation status,
// newest first. Used by the owner's moderation view and CSV export.
func (r *ReviewRepo) ListByCampaign(ctx context.Context, campaignID string) ([]models.Review, error) {
	return r.list(ctx, bson.M{"campaign_id": campaignID})
}

// ListApproved returns only approved reviews for public display (widget,
// public campaign page).
func (r *ReviewRepo) ListApproved(ctx context.Context, campaignID string) ([]models.Review, error) {
	return r.list(ctx, bson.M{
		"campaign_id": campaignID,
		"status":      models.ReviewApproved,
	})
}

func (r *ReviewRepo) list(ctx context.Context, filter bson.M) ([]models.Review, error) {
	cursor, err := r.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	reviews := []models.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// CountAnonymousSince counts anonymous submissions carrying the given
// hashed-IP key within the trailing window. Used for rate limiting.
func (r *ReviewRepo) CountAnonymousSince(ctx context.Context, ipHash, campaignID string, since time.Time) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{
		"ip_hash":     ipHash,
		"campaign_id": campaignID,
		"created_at":  bson.M{"$gte": since},
	})
}

func (r *ReviewRepo) UpdateStatus(ctx context.Context, id, campaignID string, status models.ReviewStatus) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "campaign_id": campaignID},
		bson.M{"$set": bson.M{
			"status":     status,
			"updated_at": time.Now(),
		}})
	return err
}

func (r *ReviewRepo) SetFlag(ctx context.Context, id, campaignID string, flagged bool, reason string) error {
	set := bson.M{
		"flagged":    flagged,
		"updated_at": time.Now(),
	}
	update := bson.M{"$set": set}
	if flagged {
		set["flag_reason"] = reason
	} else {
		update["$unset"] = bson.M{"flag_reason": ""}
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "campaign_id": campaignID}, update)
	return err
}

func (r *ReviewRepo) Delete(ctx context.Context, id, campaignID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "campaign_id": campaignID})
	return err
}

// EnsureIndexes creates necessary indexes for the reviews collection
func (r *ReviewRepo) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			// Supports the rate-limit count query.
			Keys: bson.D{{Key: "ip_hash", Value: 1}, {Key: "campaign_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
