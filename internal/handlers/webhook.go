package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"time"

	"plethora-backend/internal/models"
	"plethora-backend/internal/repository"
	"plethora-backend/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type WebhookHandler struct {
	campaignRepo *repository.CampaignRepo
	dispatcher   *webhook.Dispatcher
}

func NewWebhookHandler(campaignRepo *repository.CampaignRepo, dispatcher *webhook.Dispatcher) *WebhookHandler {
	return &WebhookHandler{
		campaignRepo: campaignRepo,
		dispatcher:   dispatcher,
	}
}

type WebhookRequest struct {
	URL     string                `json:"url"`
	Events  []models.WebhookEvent `json:"events"`
	Enabled *bool                 `json:"enabled,omitempty"`
}

func (req *WebhookRequest) validate() string {
	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "invalid webhook URL"
	}
	if len(req.Events) == 0 {
		return "at least one event must be selected"
	}
	for _, e := range req.Events {
		if !models.ValidWebhookEvent(e) {
			return "unknown event: " + string(e)
		}
	}
	return ""
}

// --- POST /campaigns/{campaignID}/webhooks ---

func (h *WebhookHandler) Add(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Printf("Error generating webhook secret: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create webhook"})
		return
	}

	wh := models.Webhook{
		ID:        uuid.New().String(),
		URL:       req.URL,
		Events:    req.Events,
		Secret:    hex.EncodeToString(secret),
		Enabled:   true,
		CreatedAt: time.Now(),
	}

	if err := h.campaignRepo.AddWebhook(r.Context(), campaign.ID, wh); err != nil {
		log.Printf("Error adding webhook: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create webhook"})
		return
	}

	// The secret is shown exactly once, at creation, so the owner can
	// configure signature verification on their side.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"webhook": wh,
		"secret":  wh.Secret,
	})
}

// --- PUT /campaigns/{campaignID}/webhooks/{webhookID} ---

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	webhookID := chi.URLParam(r, "webhookID")
	if findWebhook(campaign, webhookID) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "webhook not found"})
		return
	}

	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	if err := h.campaignRepo.UpdateWebhook(r.Context(), campaign.ID, webhookID, req.URL, req.Events, enabled); err != nil {
		log.Printf("Error updating webhook: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update webhook"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "webhook updated"})
}

// --- DELETE /campaigns/{campaignID}/webhooks/{webhookID} ---

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	if err := h.campaignRepo.RemoveWebhook(r.Context(), campaign.ID, chi.URLParam(r, "webhookID")); err != nil {
		log.Printf("Error deleting webhook: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete webhook"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "webhook deleted"})
}

// --- POST /campaigns/{campaignID}/webhooks/{webhookID}/test ---

// Test sends a synthetic payload through the live signing and delivery
// path so the owner can verify their endpoint before real events arrive.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	wh := findWebhook(campaign, chi.URLParam(r, "webhookID"))
	if wh == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "webhook not found"})
		return
	}

	if err := h.dispatcher.SendTest(r.Context(), campaign.ID.Hex(), wh); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "webhook test failed: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "test webhook sent successfully"})
}

func findWebhook(campaign *models.Campaign, webhookID string) *models.Webhook {
	for i := range campaign.Webhooks {
		if campaign.Webhooks[i].ID == webhookID {
			return &campaign.Webhooks[i]
		}
	}
	return nil
}
