package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"plethora-backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Delivery headers.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
)

// CampaignSource loads the campaign whose embedded webhook list drives the
// fan-out; *repository.CampaignRepo satisfies it.
type CampaignSource interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Campaign, error)
}

// Dispatcher fans out signed HTTP notifications to owner-registered
// endpoints. Delivery is best-effort: no retries, no dead-lettering, and
// one endpoint's failure never affects another's delivery.
type Dispatcher struct {
	campaigns CampaignSource
	client    *http.Client
	now       func() time.Time
}

func NewDispatcher(campaigns CampaignSource, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		campaigns: campaigns,
		client:    &http.Client{Timeout: timeout},
		now:       time.Now,
	}
}

// Sign computes the hex HMAC-SHA256 of the serialized body with the
// webhook's secret. Consumers recompute it to authenticate deliveries.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// TriggerForEvent delivers the event to every enabled webhook subscribed
// to it, concurrently, waiting for all deliveries to settle. Individual
// failures are logged and dropped.
func (d *Dispatcher) TriggerForEvent(ctx context.Context, campaignID string, event models.WebhookEvent, data any) error {
	oid, err := bson.ObjectIDFromHex(campaignID)
	if err != nil {
		return fmt.Errorf("invalid campaign id: %w", err)
	}

	campaign, err := d.campaigns.FindByID(ctx, oid)
	if err != nil {
		return fmt.Errorf("load campaign webhooks: %w", err)
	}
	if campaign == nil || len(campaign.Webhooks) == 0 {
		return nil
	}

	envelope := &Envelope{
		Event:      event,
		CampaignID: campaignID,
		Timestamp:  d.now().UTC().Format(time.RFC3339),
		Data:       data,
	}

	var wg sync.WaitGroup
	for _, wh := range campaign.Webhooks {
		if !wh.Enabled || !wh.SubscribedTo(event) {
			continue
		}
		wg.Add(1)
		go func(wh models.Webhook) {
			defer wg.Done()
			if err := d.Deliver(ctx, &wh, envelope); err != nil {
				log.Printf("Error delivering webhook %s to %s: %v", wh.ID, wh.URL, err)
			}
		}(wh)
	}
	wg.Wait()
	return nil
}

// DispatchAsync triggers the event from a supervised background goroutine
// so request handlers never block on webhook latency. Failures surface in
// the log only.
func (d *Dispatcher) DispatchAsync(campaignID string, event models.WebhookEvent, data any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.TriggerForEvent(ctx, campaignID, event, data); err != nil {
			log.Printf("Error triggering %s webhooks for campaign %s: %v", event, campaignID, err)
		}
	}()
}

// Deliver POSTs one signed envelope to one endpoint. A transport error or
// non-2xx response counts as a failed delivery.
func (d *Dispatcher) Deliver(ctx context.Context, wh *models.Webhook, envelope *Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(wh.Secret, body))
	req.Header.Set(HeaderEvent, string(envelope.Event))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook delivery failed: %s", resp.Status)
	}
	return nil
}

// SendTest pushes a synthetic review.created payload through the normal
// signing and delivery path so an owner can verify their endpoint.
func (d *Dispatcher) SendTest(ctx context.Context, campaignID string, wh *models.Webhook) error {
	envelope := &Envelope{
		Event:      models.EventReviewCreated,
		CampaignID: campaignID,
		Timestamp:  d.now().UTC().Format(time.RFC3339),
		Data:       NewTestData(),
	}
	return d.Deliver(ctx, wh, envelope)
}
