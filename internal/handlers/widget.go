package handlers

import (
	"log"
	"net/http"
	"net/url"

	"plethora-backend/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// WidgetHandler serves the approved-reviews feed the embeddable widget
// consumes from third-party sites, enforcing the campaign's domain
// whitelist through CORS.
type WidgetHandler struct {
	campaignRepo *repository.CampaignRepo
	reviewRepo   *repository.ReviewRepo
}

func NewWidgetHandler(campaignRepo *repository.CampaignRepo, reviewRepo *repository.ReviewRepo) *WidgetHandler {
	return &WidgetHandler{
		campaignRepo: campaignRepo,
		reviewRepo:   reviewRepo,
	}
}

// --- GET /widget/{campaignID} ---

func (h *WidgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	setCORSHeaders(w, origin)

	campaignID, err := bson.ObjectIDFromHex(chi.URLParam(r, "campaignID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "campaign not found"})
		return
	}

	campaign, err := h.campaignRepo.FindByID(r.Context(), campaignID)
	if err != nil {
		log.Printf("Error finding campaign: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if campaign == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "campaign not found"})
		return
	}

	if !originAllowed(origin, campaign.WhitelistedDomains) {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error": "Domain not whitelisted. Please add your domain to the campaign's whitelist.",
		})
		return
	}

	reviews, err := h.reviewRepo.ListApproved(r.Context(), campaign.ID.Hex())
	if err != nil {
		log.Printf("Error listing approved reviews: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaign": map[string]interface{}{
			"id":                    campaign.ID.Hex(),
			"name":                  campaign.Name,
			"cta_text":              campaign.CTAText,
			"rating_component_type": campaign.RatingComponentType,
		},
		"reviews": reviews,
	})
}

// Options answers the widget's CORS preflight.
func (h *WidgetHandler) Options(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, r.Header.Get("Origin"))
	w.WriteHeader(http.StatusNoContent)
}

func setCORSHeaders(w http.ResponseWriter, origin string) {
	allowOrigin := "*"
	if origin != "" && origin != "null" {
		allowOrigin = origin
	}
	w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// originAllowed checks the widget request's origin against the
// campaign's whitelist. An empty whitelist allows all origins; a null or
// missing origin (local file testing) is allowed only when no whitelist
// is set.
func originAllowed(origin string, whitelisted []string) bool {
	if origin == "" || origin == "null" {
		return len(whitelisted) == 0
	}
	if len(whitelisted) == 0 {
		return true
	}

	originDomain := extractOrigin(origin)
	for _, domain := range whitelisted {
		if extractOrigin(domain) == originDomain && originDomain != "" {
			return true
		}
	}
	return false
}

func extractOrigin(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
