package repository

import (
	"context"
	"time"

	"plethora-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type CampaignRepo struct {
	collection *mongo.Collection
}

func NewCampaignRepo(db *mongo.Database) *CampaignRepo {
	return &CampaignRepo{
		collection: db.Collection("campaigns"),
	}
}

func (r *CampaignRepo) Create(ctx context.Context, campaign *models.Campaign) error {
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = campaign.CreatedAt
	result, err := r.collection.InsertOne(ctx, campaign)
	if err != nil {
		return err
	}
	campaign.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

func (r *CampaignRepo) FindByID(ctx context.Context, id bson.ObjectID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&campaign)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// FindOwned returns the campaign only if it belongs to the given owner.
func (r *CampaignRepo) FindOwned(ctx context.Context, id, ownerID bson.ObjectID) (*models.Campaign, error) {
	var campaign models.Campaign
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&campaign)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

func (r *CampaignRepo) ListByOwner(ctx context.Context, ownerID bson.ObjectID) ([]models.Campaign, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	campaigns := []models.Campaign{}
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *CampaignRepo) Update(ctx context.Context, id, ownerID bson.ObjectID, set bson.M) error {
	set["updated_at"] = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "owner_id": ownerID}, bson.M{
		"$set": set,
	})
	return err
}

func (r *CampaignRepo) Delete(ctx context.Context, id, ownerID bson.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	return err
}

// AddWebhook appends a webhook to the campaign's embedded array.
func (r *CampaignRepo) AddWebhook(ctx context.Context, campaignID bson.ObjectID, webhook models.Webhook) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": campaignID}, bson.M{
		"$push": bson.M{"webhooks": webhook},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	return err
}

// UpdateWebhook mutates URL, event set, and enabled flag in place. The
// secret is immutable once created and is deliberately not touched here.
func (r *CampaignRepo) UpdateWebhook(ctx context.Context, campaignID bson.ObjectID, webhookID, url string, events []models.WebhookEvent, enabled bool) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": campaignID, "webhooks._id": webhookID},
		bson.M{
			"$set": bson.M{
				"webhooks.$.url":     url,
				"webhooks.$.events":  events,
				"webhooks.$.enabled": enabled,
				"updated_at":         time.Now(),
			},
		})
	return err
}

// RemoveWebhook deletes the webhook from the array (hard delete, not a
// soft-delete flag).
func (r *CampaignRepo) RemoveWebhook(ctx context.Context, campaignID bson.ObjectID, webhookID string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": campaignID}, bson.M{
		"$pull": bson.M{"webhooks": bson.M{"_id": webhookID}},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	return err
}

// EnsureIndexes creates necessary indexes for the campaigns collection
func (r *CampaignRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}},
	})
	return err
}
