package webhook

import (
	"time"

	"plethora-backend/internal/models"
)

// Envelope is the JSON body delivered to every webhook endpoint.
type Envelope struct {
	Event      models.WebhookEvent `json:"event"`
	CampaignID string              `json:"campaignId"`
	Timestamp  string              `json:"timestamp"`
	Data       any                 `json:"data"`
}

// ReviewData wraps a review payload under the "review" key.
type ReviewData struct {
	Review ReviewPayload `json:"review"`
}

type ReviewAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ReviewPayload is the review representation sent to webhook consumers.
// Only the fields relevant to the triggering event are populated.
type ReviewPayload struct {
	ID          string        `json:"id"`
	Rating      int           `json:"rating"`
	Title       string        `json:"title"`
	Review      string        `json:"review"`
	Author      *ReviewAuthor `json:"author,omitempty"`
	Status      string        `json:"status,omitempty"`
	Flagged     bool          `json:"flagged,omitempty"`
	FlagReason  string        `json:"flagReason,omitempty"`
	IsAnonymous bool          `json:"isAnonymous,omitempty"`
	IsMagicLink bool          `json:"isMagicLink,omitempty"`
	OrderID     string        `json:"orderId,omitempty"`
	CreatedAt   string        `json:"createdAt,omitempty"`
}

// NewReviewCreatedData builds the review.created payload for a freshly
// submitted review on any channel.
func NewReviewCreatedData(review *models.Review) ReviewData {
	payload := ReviewPayload{
		ID:          review.ID,
		Rating:      review.Rating,
		Title:       review.Title,
		Review:      review.Review,
		IsAnonymous: review.Channel == models.ChannelAnonymous,
		IsMagicLink: review.Channel == models.ChannelMagicLink,
		OrderID:     review.OrderID,
		CreatedAt:   review.CreatedAt.UTC().Format(time.RFC3339),
	}
	if review.Author.Name != "" || review.Author.Email != "" {
		payload.Author = &ReviewAuthor{
			Name:  review.Author.Name,
			Email: review.Author.Email,
		}
	}
	return ReviewData{Review: payload}
}

// NewStatusChangeData builds the review.approved / review.rejected payload.
func NewStatusChangeData(review *models.Review, status models.ReviewStatus) ReviewData {
	return ReviewData{Review: ReviewPayload{
		ID:     review.ID,
		Rating: review.Rating,
		Title:  review.Title,
		Review: review.Review,
		Status: string(status),
	}}
}

// NewFlaggedData builds the review.flagged payload.
func NewFlaggedData(review *models.Review, reason string) ReviewData {
	return ReviewData{Review: ReviewPayload{
		ID:         review.ID,
		Rating:     review.Rating,
		Title:      review.Title,
		Review:     review.Review,
		Flagged:    true,
		FlagReason: reason,
	}}
}

// NewTestData is the synthetic payload sent by the manual test trigger.
func NewTestData() ReviewData {
	return ReviewData{Review: ReviewPayload{
		ID:     "test-review-id",
		Rating: 5,
		Title:  "Test Review",
		Review: "This is a test webhook payload",
		Author: &ReviewAuthor{Name: "Test User"},
	}}
}
