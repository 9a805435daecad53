package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"plethora-backend/internal/middleware"
	"plethora-backend/internal/models"
	"plethora-backend/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type CampaignHandler struct {
	campaignRepo *repository.CampaignRepo
}

func NewCampaignHandler(campaignRepo *repository.CampaignRepo) *CampaignHandler {
	return &CampaignHandler{
		campaignRepo: campaignRepo,
	}
}

type CampaignRequest struct {
	Name                string                     `json:"name"`
	CTAText             string                     `json:"cta_text"`
	RatingComponentType models.RatingComponentType `json:"rating_component_type"`
	WhitelistedDomains  []string                   `json:"whitelisted_domains"`
}

func (req *CampaignRequest) validate() string {
	if req.Name == "" {
		return "name is required"
	}
	if req.CTAText == "" {
		return "cta_text is required"
	}
	switch req.RatingComponentType {
	case models.RatingStar, models.RatingEmoji:
	case "":
		req.RatingComponentType = models.RatingStar
	default:
		return "rating_component_type must be star or emoji"
	}
	return ""
}

// ownedCampaign resolves the {campaignID} URL param to a campaign owned
// by the authenticated caller. A campaign that exists but belongs to
// someone else looks identical to one that doesn't exist.
func ownedCampaign(w http.ResponseWriter, r *http.Request, campaigns *repository.CampaignRepo) *models.Campaign {
	userIDHex := middleware.GetUserID(r.Context())
	if userIDHex == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return nil
	}
	ownerID, err := bson.ObjectIDFromHex(userIDHex)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return nil
	}

	campaignID, err := bson.ObjectIDFromHex(chi.URLParam(r, "campaignID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "campaign not found"})
		return nil
	}

	campaign, err := campaigns.FindOwned(r.Context(), campaignID, ownerID)
	if err != nil {
		log.Printf("Error finding campaign: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return nil
	}
	if campaign == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "campaign not found"})
		return nil
	}
	return campaign
}

// --- POST /campaigns ---

func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	userIDHex := middleware.GetUserID(r.Context())
	ownerID, err := bson.ObjectIDFromHex(userIDHex)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	campaign := &models.Campaign{
		OwnerID:             ownerID,
		Name:                sanitize(req.Name),
		CTAText:             sanitize(req.CTAText),
		RatingComponentType: req.RatingComponentType,
		WhitelistedDomains:  req.WhitelistedDomains,
	}
	if err := h.campaignRepo.Create(r.Context(), campaign); err != nil {
		log.Printf("Error creating campaign: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create campaign"})
		return
	}

	writeJSON(w, http.StatusCreated, campaign)
}

// --- GET /campaigns ---

func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	userIDHex := middleware.GetUserID(r.Context())
	ownerID, err := bson.ObjectIDFromHex(userIDHex)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	campaigns, err := h.campaignRepo.ListByOwner(r.Context(), ownerID)
	if err != nil {
		log.Printf("Error listing campaigns: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"campaigns": campaigns})
}

// --- GET /campaigns/{campaignID} ---

func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// --- PUT /campaigns/{campaignID} ---

func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	set := bson.M{
		"name":                  sanitize(req.Name),
		"cta_text":              sanitize(req.CTAText),
		"rating_component_type": req.RatingComponentType,
		"whitelisted_domains":   req.WhitelistedDomains,
	}
	if err := h.campaignRepo.Update(r.Context(), campaign.ID, campaign.OwnerID, set); err != nil {
		log.Printf("Error updating campaign: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update campaign"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "campaign updated"})
}

// --- DELETE /campaigns/{campaignID} ---

func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	if err := h.campaignRepo.Delete(r.Context(), campaign.ID, campaign.OwnerID); err != nil {
		log.Printf("Error deleting campaign: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete campaign"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "campaign deleted"})
}
