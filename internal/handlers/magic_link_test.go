package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"plethora-backend/internal/magiclink"
	"plethora-backend/internal/models"

	"github.com/go-chi/chi/v5"
)

type memLinkStore struct {
	mu    sync.Mutex
	links map[string]*models.MagicLink
}

func (s *memLinkStore) Create(ctx context.Context, link *models.MagicLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[link.TokenHash] = link
	return nil
}

func (s *memLinkStore) FindByTokenHash(ctx context.Context, tokenHash string) (*models.MagicLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[tokenHash]
	if !ok {
		return nil, nil
	}
	copied := *link
	return &copied, nil
}

func (s *memLinkStore) MarkExpired(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link, ok := s.links[tokenHash]; ok && link.Status == models.MagicLinkPending {
		link.Status = models.MagicLinkExpired
	}
	return nil
}

func (s *memLinkStore) ConsumeIfPending(ctx context.Context, tokenHash, reviewID string, usedAt time.Time) (bool, error) {
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

type memReviewStore struct {
	mu      sync.Mutex
	reviews []*models.Review
}

func (s *memReviewStore) Create(ctx context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append(s.reviews, review)
	return nil
}

type noopDispatcher struct{}

func (noopDispatcher) DispatchAsync(campaignID string, event models.WebhookEvent, data any) {}

func newMagicLinkRouter(t *testing.T) (*chi.Mux, *magiclink.Service) {
	t.Helper()
	svc := magiclink.NewService("test-secret", "http://localhost:8080",
		&memLinkStore{links: map[string]*models.MagicLink{}},
		&memReviewStore{},
		noopDispatcher{})
	handler := NewMagicLinkHandler(svc, nil, nil, nil)

	r := chi.NewRouter()
	r.Get("/r/{token}", handler.Verify)
	r.Post("/r/{token}", handler.Consume)
	return r, svc
}

func TestVerifyEndpointValidLink(t *testing.T) {
	router, svc := newMagicLinkRouter(t)

	issued, err := svc.Issue(context.Background(), magiclink.IssueInput{
		CampaignID:    "c1",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@x.com",
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/r/"+issued.Token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	var resp struct {
		Valid   bool               `json:"valid"`
		Payload *magiclink.Payload `json:"payload"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Valid || resp.Payload == nil || resp.Payload.CustomerName != "Jane Doe" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestVerifyEndpointMalformedToken(t *testing.T) {
	router, _ := newMagicLinkRouter(t)

	req := httptest.NewRequest("GET", "/r/garbage-token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rec.Code)
	}

	var resp struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Valid || resp.Error != "Invalid link" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestConsumeEndpointBurnsLink(t *testing.T) {
	router, svc := newMagicLinkRouter(t)

	issued, err := svc.Issue(context.Background(), magiclink.IssueInput{
		CampaignID:    "c1",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@x.com",
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	body := `{"rating":5,"title":"Great","review":"Loved it"}`
	req := httptest.NewRequest("POST", "/r/"+issued.Token, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// Replaying the same link must fail with the used message.
	req = httptest.NewRequest("POST", "/r/"+issued.Token, strings.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay status: got %d, want 401", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "This link has already been used" {
		t.Errorf("error: got %q", resp.Error)
	}
}

func TestConsumeEndpointValidatesInput(t *testing.T) {
	router, svc := newMagicLinkRouter(t)

	issued, err := svc.Issue(context.Background(), magiclink.IssueInput{
		CampaignID:    "c1",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@x.com",
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for _, body := range []string{
		`{"rating":0,"title":"t","review":"r"}`,
		`{"rating":6,"title":"t","review":"r"}`,
		`{"rating":5,"title":"","review":"r"}`,
		`{"rating":5,"title":"t","review":""}`,
		`not json`,
	} {
		req := httptest.NewRequest("POST", "/r/"+issued.Token, strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status got %d, want 400", body, rec.Code)
		}
	}

	// Validation failures must not burn the link.
	req := httptest.NewRequest("GET", "/r/"+issued.Token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("link should still be valid after rejected submissions, got %d", rec.Code)
	}
}
