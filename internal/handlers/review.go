package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"plethora-backend/internal/captcha"
	"plethora-backend/internal/middleware"
	"plethora-backend/internal/models"
	"plethora-backend/internal/ratelimit"
	"plethora-backend/internal/repository"
	"plethora-backend/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type ReviewHandler struct {
	reviewRepo   *repository.ReviewRepo
	campaignRepo *repository.CampaignRepo
	userRepo     *repository.UserRepo
	captcha      captcha.Verifier
	guard        *ratelimit.Guard
	dispatcher   *webhook.Dispatcher
}

func NewReviewHandler(reviewRepo *repository.ReviewRepo, campaignRepo *repository.CampaignRepo, userRepo *repository.UserRepo, verifier captcha.Verifier, guard *ratelimit.Guard, dispatcher *webhook.Dispatcher) *ReviewHandler {
	return &ReviewHandler{
		reviewRepo:   reviewRepo,
		campaignRepo: campaignRepo,
		userRepo:     userRepo,
		captcha:      verifier,
		guard:        guard,
		dispatcher:   dispatcher,
	}
}

// --- Request types ---

type SubmitReviewRequest struct {
	Title  string `json:"title"`
	Review string `json:"review"`
	Rating int    `json:"rating"`
}

func (req *SubmitReviewRequest) validate() string {
	if req.Title == "" {
		return "title is required"
	}
	if req.Review == "" {
		return "review is required"
	}
	if req.Rating < 1 || req.Rating > 5 {
		return "rating must be between 1 and 5"
	}
	return ""
}

type SubmitAnonymousRequest struct {
	SubmitReviewRequest
	Name         string `json:"name"`
	Email        string `json:"email"`
	CaptchaToken string `json:"captcha_token"`
}

// --- POST /campaigns/{campaignID}/reviews (authenticated) ---

// SubmitAuthenticated writes the caller's review under the deterministic
// "{userID}_{campaignID}" id, so each user gets exactly one review per
// campaign and resubmission replaces it.
func (h *ReviewHandler) SubmitAuthenticated(w http.ResponseWriter, r *http.Request) {
	userIDHex := middleware.GetUserID(r.Context())
	if userIDHex == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	campaignID := chi.URLParam(r, "campaignID")
	if _, err := bson.ObjectIDFromHex(campaignID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "campaign not found"})
		return
	}

	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	author := models.AuthorMeta{Email: middleware.GetUserEmail(r.Context())}
	userID, err := bson.ObjectIDFromHex(userIDHex)
	if err == nil {
		if user, err := h.userRepo.FindByID(r.Context(), userID); err == nil && user != nil {
			author.Name = user.Name
			author.AvatarURL = user.AvatarURL
		}
	}

	review := &models.Review{
		ID:         models.CompositeReviewID(userIDHex, campaignID),
		CampaignID: campaignID,
		Rating:     req.Rating,
		Title:      sanitize(req.Title),
		Review:     sanitize(req.Review),
		Status:     models.ReviewApproved, // Auto-approve new reviews by default
		Channel:    models.ChannelAuthenticated,
		Author:     author,
		UserID:     userIDHex,
	}

	if err := h.reviewRepo.Upsert(r.Context(), review); err != nil {
		log.Printf("Error submitting review: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to submit review"})
		return
	}

	h.dispatcher.DispatchAsync(campaignID, models.EventReviewCreated, webhook.NewReviewCreatedData(review))

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "review submitted successfully",
		"review":  review,
	})
}

// --- POST /campaigns/{campaignID}/reviews/anonymous ---

// SubmitAnonymous gates unauthenticated submissions behind captcha
// verification and the per-IP-per-campaign rate limit, in that order,
// each check short-circuiting.
func (h *ReviewHandler) SubmitAnonymous(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if _, err := bson.ObjectIDFromHex(campaignID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "campaign not found"})
		return
	}

	var req SubmitAnonymousRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.CaptchaToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "please complete the captcha verification"})
		return
	}

	if !h.captcha.Verify(r.Context(), req.CaptchaToken) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Captcha verification failed. Please try again."})
		return
	}

	ip := clientIP(r)
	allowed, err := h.guard.Check(r.Context(), ip, campaignID)
	if err != nil {
		log.Printf("Error checking rate limit: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": ratelimit.LimitExceededMessage})
		return
	}

	review := &models.Review{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		Rating:     req.Rating,
		Title:      sanitize(req.Title),
		Review:     sanitize(req.Review),
		Status:     models.ReviewApproved, // Auto-approve anonymous reviews by default
		Channel:    models.ChannelAnonymous,
		Author: models.AuthorMeta{
			Name:  sanitize(req.Name),
			Email: req.Email,
		},
		IPHash: ratelimit.Key(ip, campaignID),
	}

	if err := h.reviewRepo.Create(r.Context(), review); err != nil {
		log.Printf("Error submitting anonymous review: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to submit review. Please try again."})
		return
	}

	h.dispatcher.DispatchAsync(campaignID, models.EventReviewCreated, webhook.NewReviewCreatedData(review))

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "review submitted successfully",
		"review":  review,
	})
}

// --- GET /campaigns/{campaignID}/reviews ---

func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	reviews, err := h.reviewRepo.ListByCampaign(r.Context(), campaign.ID.Hex())
	if err != nil {
		log.Printf("Error listing reviews: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"reviews": reviews})
}

// --- PATCH /campaigns/{campaignID}/reviews/{reviewID}/status ---

func (h *ReviewHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}
	campaignID := campaign.ID.Hex()
	reviewID := chi.URLParam(r, "reviewID")

	var req struct {
		Status models.ReviewStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	switch req.Status {
	case models.ReviewPending, models.ReviewApproved, models.ReviewRejected:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be pending, approved, or rejected"})
		return
	}

	review, err := h.reviewRepo.FindByID(r.Context(), reviewID, campaignID)
	if err != nil {
		log.Printf("Error finding review: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if review == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "review not found"})
		return
	}

	if err := h.reviewRepo.UpdateStatus(r.Context(), reviewID, campaignID, req.Status); err != nil {
		log.Printf("Error updating review status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update review"})
		return
	}

	switch req.Status {
	case models.ReviewApproved:
		h.dispatcher.DispatchAsync(campaignID, models.EventReviewApproved, webhook.NewStatusChangeData(review, req.Status))
	case models.ReviewRejected:
		h.dispatcher.DispatchAsync(campaignID, models.EventReviewRejected, webhook.NewStatusChangeData(review, req.Status))
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "review status updated"})
}

// --- PATCH /campaigns/{campaignID}/reviews/{reviewID}/flag ---

func (h *ReviewHandler) Flag(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}
	campaignID := campaign.ID.Hex()
	reviewID := chi.URLParam(r, "reviewID")

	var req struct {
		Flagged bool   `json:"flagged"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	review, err := h.reviewRepo.FindByID(r.Context(), reviewID, campaignID)
	if err != nil {
		log.Printf("Error finding review: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if review == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "review not found"})
		return
	}

	if err := h.reviewRepo.SetFlag(r.Context(), reviewID, campaignID, req.Flagged, sanitize(req.Reason)); err != nil {
		log.Printf("Error flagging review: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update review"})
		return
	}

	if req.Flagged {
		h.dispatcher.DispatchAsync(campaignID, models.EventReviewFlagged, webhook.NewFlaggedData(review, req.Reason))
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "review flag updated"})
}

// --- DELETE /campaigns/{campaignID}/reviews/{reviewID} ---

func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	if err := h.reviewRepo.Delete(r.Context(), chi.URLParam(r, "reviewID"), campaign.ID.Hex()); err != nil {
		log.Printf("Error deleting review: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete review"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "review deleted"})
}

// --- GET /campaigns/{campaignID}/reviews/export ---

// ExportCSV streams every review for the campaign as a CSV download.
func (h *ReviewHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	reviews, err := h.reviewRepo.ListByCampaign(r.Context(), campaign.ID.Hex())
	if err != nil {
		log.Printf("Error listing reviews for export: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="reviews-%s.csv"`, campaign.ID.Hex()))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "rating", "title", "review", "status", "flagged", "channel", "author_name", "author_email", "created_at"})
	for _, review := range reviews {
		_ = cw.Write([]string{
			review.ID,
			strconv.Itoa(review.Rating),
			review.Title,
			review.Review,
			string(review.Status),
			strconv.FormatBool(review.Flagged),
			string(review.Channel),
			review.Author.Name,
			review.Author.Email,
			review.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
}
