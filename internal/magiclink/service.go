package magiclink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"plethora-backend/internal/models"
	"plethora-backend/internal/webhook"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Verification failure messages shown to recipients. These are the only
// detail a caller ever sees; signature errors, lookup misses, and rotated
// secrets all collapse into ErrInvalidLink.
var (
	ErrInvalidLink = errors.New("Invalid link")
	ErrLinkUsed    = errors.New("This link has already been used")
	ErrLinkExpired = errors.New("This link has expired")
)

const DefaultExpiryDays = 7

// Store is the persistence surface the service needs; *repository.MagicLinkRepo
// satisfies it.
type Store interface {
	Create(ctx context.Context, link *models.MagicLink) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.MagicLink, error)
	MarkExpired(ctx context.Context, tokenHash string) error
	ConsumeIfPending(ctx context.Context, tokenHash, reviewID string, usedAt time.Time) (bool, error)
}

// ReviewStore persists the review created when a link is consumed.
type ReviewStore interface {
	Create(ctx context.Context, review *models.Review) error
}

// EventDispatcher fans out review lifecycle events, best-effort.
type EventDispatcher interface {
	DispatchAsync(campaignID string, event models.WebhookEvent, data any)
}

// Payload is the claim set carried inside a signed magic-link token.
type Payload struct {
	CampaignID    string `json:"campaignId"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	OrderID       string `json:"orderId,omitempty"`
}

type IssueInput struct {
	CampaignID    string
	CustomerName  string
	CustomerEmail string
	OrderID       string
	ExpiresInDays int
}

type IssueResult struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ReviewInput struct {
	Rating int
	Title  string
	Review string
}

// Service mints, verifies, and consumes magic-link tokens.
type Service struct {
	secret  []byte
	baseURL string
	links   Store
	reviews ReviewStore
	events  EventDispatcher

	now func() time.Time
}

func NewService(secret, baseURL string, links Store, reviews ReviewStore, events EventDispatcher) *Service {
	return &Service{
		secret:  []byte(secret),
		baseURL: baseURL,
		links:   links,
		reviews: reviews,
		events:  events,
		now:     time.Now,
	}
}

// Fingerprint is the one-way hash stored in place of the raw token.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Issue signs a new single-use token and records its fingerprint with
// status pending. Ownership of the campaign must already be verified by
// the caller. The raw token is returned and never persisted.
func (s *Service) Issue(ctx context.Context, input IssueInput) (*IssueResult, error) {
	days := input.ExpiresInDays
	if days <= 0 {
		days = DefaultExpiryDays
	}
	expiresAt := s.now().Add(time.Duration(days) * 24 * time.Hour)

	claims := jwt.MapClaims{
		"campaignId":    input.CampaignID,
		"customerName":  input.CustomerName,
		"customerEmail": input.CustomerEmail,
		"exp":           expiresAt.Unix(),
	}
	if input.OrderID != "" {
		claims["orderId"] = input.OrderID
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign magic link token: %w", err)
	}

	link := &models.MagicLink{
		CampaignID:    input.CampaignID,
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		OrderID:       input.OrderID,
		TokenHash:     Fingerprint(token),
		Status:        models.MagicLinkPending,
		ExpiresAt:     expiresAt,
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("store magic link: %w", err)
	}

	return &IssueResult{
		ID:        link.ID.Hex(),
		Token:     token,
		URL:       fmt.Sprintf("%s/r/%s", s.baseURL, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks signature, fingerprint record, and expiry. It is
// idempotent except for the lazy write that flips a past-expiry pending
// link to expired; no background sweeper exists, expiry is enforced here.
func (s *Service) Verify(ctx context.Context, token string) (*Payload, error) {
	payload, err := s.decode(token)
	if err != nil {
		// A token past its exp claim never reaches the lookup below, so
		// flip its stored record here; MarkExpired only matches a
		// pending document, so this is a no-op on any other status.
		if errors.Is(err, ErrLinkExpired) {
			if markErr := s.links.MarkExpired(ctx, Fingerprint(token)); markErr != nil {
				log.Printf("Error marking magic link expired: %v", markErr)
			}
		}
		return nil, err
	}

	link, err := s.links.FindByTokenHash(ctx, Fingerprint(token))
	if err != nil {
		return nil, fmt.Errorf("find magic link: %w", err)
	}
	if link == nil {
		return nil, ErrInvalidLink
	}

	switch link.Status {
	case models.MagicLinkUsed:
		return nil, ErrLinkUsed
	case models.MagicLinkExpired:
		return nil, ErrLinkExpired
	}

	if link.IsExpired(s.now()) {
		if err := s.links.MarkExpired(ctx, link.TokenHash); err != nil {
			log.Printf("Error marking magic link expired: %v", err)
		}
		return nil, ErrLinkExpired
	}

	return payload, nil
}

// Consume submits a review through a still-valid link. The pending → used
// transition is a conditional update: when two callers race on the same
// token, only the one whose update matches a pending document may insert
// a review; the other gets ErrLinkUsed.
func (s *Service) Consume(ctx context.Context, token string, input ReviewInput) (*models.Review, error) {
	payload, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	tokenHash := Fingerprint(token)
	reviewID := uuid.New().String()
	usedAt := s.now()

	consumed, err := s.links.ConsumeIfPending(ctx, tokenHash, reviewID, usedAt)
	if err != nil {
		return nil, fmt.Errorf("consume magic link: %w", err)
	}
	if !consumed {
		return nil, ErrLinkUsed
	}

	review := &models.Review{
		ID:         reviewID,
		CampaignID: payload.CampaignID,
		Rating:     input.Rating,
		Title:      input.Title,
		Review:     input.Review,
		Status:     models.ReviewApproved,
		Channel:    models.ChannelMagicLink,
		Author: models.AuthorMeta{
			Name:  payload.CustomerName,
			Email: payload.CustomerEmail,
		},
		MagicLinkToken: tokenHash,
		OrderID:        payload.OrderID,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create magic link review: %w", err)
	}

	s.events.DispatchAsync(payload.CampaignID, models.EventReviewCreated, webhook.NewReviewCreatedData(review))

	return review, nil
}

// decode verifies the token signature and extracts the payload, failing
// closed on anything malformed.
func (s *Service) decode(token string) (*Payload, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrLinkExpired
		}
		return nil, ErrInvalidLink
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidLink
	}

	payload := &Payload{}
	payload.CampaignID, _ = claims["campaignId"].(string)
	payload.CustomerName, _ = claims["customerName"].(string)
	payload.CustomerEmail, _ = claims["customerEmail"].(string)
	payload.OrderID, _ = claims["orderId"].(string)
	if payload.CampaignID == "" {
		return nil, ErrInvalidLink
	}
	return payload, nil
}
