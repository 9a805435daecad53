package magiclink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plethora-backend/internal/models"
)

type fakeLinkStore struct {
	mu    sync.Mutex
	links map[string]*models.MagicLink
}

func newFakeLinkStore() *fakeLinkStore {
	return &fakeLinkStore{links: map[string]*models.MagicLink{}}
}

func (s *fakeLinkStore) Create(ctx context.Context, link *models.MagicLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link.CreatedAt = time.Now()
	s.links[link.TokenHash] = link
	return nil
}

func (s *fakeLinkStore) FindByTokenHash(ctx context.Context, tokenHash string) (*models.MagicLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[tokenHash]
	if !ok {
		return nil, nil
	}
	copied := *link
	return &copied, nil
}

func (s *fakeLinkStore) MarkExpired(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link, ok := s.links[tokenHash]; ok && link.Status == models.MagicLinkPending {
		link.Status = models.MagicLinkExpired
	}
	return nil
}

func (s *fakeLinkStore) ConsumeIfPending(ctx context.Context, tokenHash, reviewID string, usedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[tokenHash]
	if !ok || link.Status != models.MagicLinkPending {
		return false, nil
	}
	link.Status = models.MagicLinkUsed
	link.UsedAt = &usedAt
	link.ReviewID = reviewID
	return true, nil
}

func (s *fakeLinkStore) status(tokenHash string) models.MagicLinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[tokenHash]
	if !ok {
		return ""
	}
	return link.Status
}

type fakeReviewStore struct {
	mu      sync.Mutex
	reviews []*models.Review
	fail    error
}

func (s *fakeReviewStore) Create(ctx context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.reviews = append(s.reviews, review)
	return nil
}

type recordedEvent struct {
	campaignID string
	event      models.WebhookEvent
}

type fakeDispatcher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (d *fakeDispatcher) DispatchAsync(campaignID string, event models.WebhookEvent, data any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, recordedEvent{campaignID, event})
}

func newTestService(t *testing.T) (*Service, *fakeLinkStore, *fakeReviewStore, *fakeDispatcher) {
	t.Helper()
	links := newFakeLinkStore()
	reviews := &fakeReviewStore{}
	events := &fakeDispatcher{}
	svc := NewService("test-secret", "http://localhost:8080", links, reviews, events)
	return svc, links, reviews, events
}

func TestIssueThenVerify(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Issue(ctx, IssueInput{
		CampaignID:    "c1",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@x.com",
		OrderID:       "order-42",
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a token")
	}
	if result.URL != "http://localhost:8080/r/"+result.Token {
		t.Errorf("URL: got %q", result.URL)
	}

	payload, err := svc.Verify(ctx, result.Token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if payload.CampaignID != "c1" || payload.CustomerName != "Jane Doe" ||
		payload.CustomerEmail != "jane@x.com" || payload.OrderID != "order-42" {
		t.Errorf("payload mismatch: %+v", payload)
	}
}

func TestVerifyIsIdempotentOnPendingLink(t *testing.T) {
	svc, links, _, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Issue(ctx, IssueInput{CampaignID: "c1", CustomerName: "A", CustomerEmail: "a@x.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Verify(ctx, result.Token); err != nil {
			t.Fatalf("Verify call %d failed: %v", i+1, err)
		}
	}
	if got := links.status(Fingerprint(result.Token)); got != models.MagicLinkPending {
		t.Errorf("status after repeated Verify: got %q, want pending", got)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	for _, token := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.e30."} {
		_, err := svc.Verify(context.Background(), token)
		if !errors.Is(err, ErrInvalidLink) {
			t.Errorf("Verify(%q): got %v, want ErrInvalidLink", token, err)
		}
	}
}

func TestVerifyRejectsTokenSignedWithOtherSecret(t *testing.T) {
	svc, _, reviews, events := newTestService(t)

	other := NewService("rotated-secret", "http://localhost:8080", newFakeLinkStore(), reviews, events)
	result, err := other.Issue(context.Background(), IssueInput{CampaignID: "c1", CustomerName: "A", CustomerEmail: "a@x.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = svc.Verify(context.Background(), result.Token)
	if !errors.Is(err, ErrInvalidLink) {
		t.Errorf("got %v, want ErrInvalidLink", err)
	}
}

func TestVerifyUnknownFingerprint(t *testing.T) {
	svc, links, _, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Issue(ctx, IssueInput{CampaignID: "c1", CustomerName: "A", CustomerEmail: "a@x.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Simulate the record being deleted by the owner.
	links.mu.Lock()
	delete(links.links, Fingerprint(result.Token))
	links.mu.Unlock()

	_, err = svc.Verify(ctx, result.Token)
	if !errors.Is(err, ErrInvalidLink) {
		t.Errorf("got %v, want ErrInvalidLink", err)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	svc, links, reviews, events := newTestService(t)
	ctx := context.Background()

	result, err := svc.Issue(ctx, IssueInput{
		CampaignID:    "c1",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@x.com",
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	review, err := svc.Consume(ctx, result.Token, ReviewInput{Rating: 5, Title: "Great", Review: "Loved it"})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if review.Channel != models.ChannelMagicLink {
		t.Errorf("channel: got %q, want magic_link", review.Channel)
	}
	if review.Author.Name != "Jane Doe" || review.Author.Email != "jane@x.com" {
		t.Errorf("author mismatch: %+v", review.Author)
	}
	if review.MagicLinkToken != Fingerprint(result.Token) {
		t.Error("review should carry the token fingerprint")
	}
	if len(reviews.reviews) != 1 {
		t.Fatalf("expected 1 review, got %d", len(reviews.reviews))
	}
	if got := links.status(Fingerprint(result.Token)); got != models.MagicLinkUsed {
		t.Errorf("status after Consume: got %q, want used", got)
	}
	if len(events.events) != 1 || events.events[0].event != models.EventReviewCreated {
		t.Errorf("expected one review.created event, got %+v", events.events)
	}

	// Second consume and verify must both report the link as used.
	if _, err := svc.Consume(ctx, result.Token, ReviewInput{Rating: 1, Title: "x", Review: "y"}); !errors.Is(err, ErrLinkUsed) {
		t.Errorf("second Consume: got %v, want ErrLinkUsed", err)
	}
	if _, err := svc.Verify(ctx, result.Token); !errors.Is(err, ErrLinkUsed) {
		t.Errorf("Verify after Consume: got %v, want ErrLinkUsed", err)
	}
	if len(reviews.reviews) != 1 {
		t.Errorf("second Consume must not insert a review, got %d", len(reviews.reviews))
	}
}

func TestConsumeRaceRejectsSecondCaller(t *testing.T) {
	svc, links, reviews, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Issue(ctx, IssueInput{CampaignID: "c1", CustomerName: "A", CustomerEmail: "a@x.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// Force the link into the state a racing caller would observe after
	// losing the conditional update.
	ok, err := links.ConsumeIfPending(ctx, Fingerprint(result.Token), "other-review", time.Now())
	if err != nil || !ok {
		t.Fatalf("setup consume failed: ok=%v err=%v", ok, err)
	}

	if _, err := svc.Consume(ctx, result.Token, ReviewInput{Rating: 3, Title: "t", Review: "r"}); !errors.Is(err, ErrLinkUsed) {
		t.Errorf("got %v, want ErrLinkUsed", err)
	}
	if len(reviews.reviews) != 0 {
		t.Errorf("losing caller must not insert a review, got %d", len(reviews.reviews))
	}
}

func TestVerifyExpiresLazily(t *testing.T) {
	svc, links, _, _ := newTestService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	result, err := svc.Issue(ctx, IssueInput{
		CampaignID:    "c1",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@x.com",
		ExpiresInDays: 1,
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := svc.Verify(ctx, result.Token); err != nil {
		t.Fatalf("Verify same day failed: %v", err)
	}

	// 25 hours later the link is past its 1-day expiry.
	svc.now = func() time.Time { return base.Add(25 * time.Hour) }

	_, err = svc.Verify(ctx, result.Token)
	if !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("got %v, want ErrLinkExpired", err)
	}
	if got := links.status(Fingerprint(result.Token)); got != models.MagicLinkExpired {
		t.Errorf("stored status: got %q, want expired", got)
	}

	// Subsequent calls keep reporting expired; no backward transition.
	if _, err := svc.Verify(ctx, result.Token); !errors.Is(err, ErrLinkExpired) {
		t.Errorf("second Verify: got %v, want ErrLinkExpired", err)
	}
	if _, err := svc.Consume(ctx, result.Token, ReviewInput{Rating: 5, Title: "t", Review: "r"}); !errors.Is(err, ErrLinkExpired) {
		t.Errorf("Consume after expiry: got %v, want ErrLinkExpired", err)
	}
}

func TestIssueDefaultsToSevenDays(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	base := time.Now()
	svc.now = func() time.Time { return base }

	result, err := svc.Issue(context.Background(), IssueInput{CampaignID: "c1", CustomerName: "A", CustomerEmail: "a@x.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	want := base.Add(7 * 24 * time.Hour)
	if !result.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt: got %v, want %v", result.ExpiresAt, want)
	}
}
