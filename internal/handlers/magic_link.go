package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"plethora-backend/internal/email"
	"plethora-backend/internal/magiclink"
	"plethora-backend/internal/repository"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type MagicLinkHandler struct {
	service      *magiclink.Service
	linkRepo     *repository.MagicLinkRepo
	campaignRepo *repository.CampaignRepo
	mailer       *email.Mailer
}

func NewMagicLinkHandler(service *magiclink.Service, linkRepo *repository.MagicLinkRepo, campaignRepo *repository.CampaignRepo, mailer *email.Mailer) *MagicLinkHandler {
	return &MagicLinkHandler{
		service:      service,
		linkRepo:     linkRepo,
		campaignRepo: campaignRepo,
		mailer:       mailer,
	}
}

type CreateMagicLinkRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	OrderID       string `json:"order_id"`
	ExpiresInDays int    `json:"expires_in_days"`
	SendEmail     bool   `json:"send_email"`
}

// --- POST /campaigns/{campaignID}/magic-links ---

func (h *MagicLinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	var req CreateMagicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CustomerName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_name is required"})
		return
	}
	if req.CustomerEmail == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_email is required"})
		return
	}

	result, err := h.service.Issue(r.Context(), magiclink.IssueInput{
		CampaignID:    campaign.ID.Hex(),
		CustomerName:  sanitize(req.CustomerName),
		CustomerEmail: req.CustomerEmail,
		OrderID:       req.OrderID,
		ExpiresInDays: req.ExpiresInDays,
	})
	if err != nil {
		log.Printf("Error issuing magic link: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create magic link"})
		return
	}

	// Email delivery is optional and best-effort; the owner still gets
	// the URL to deliver out of band.
	if req.SendEmail {
		if err := h.mailer.SendMagicLink(req.CustomerEmail, req.CustomerName, campaign.Name, result.URL); err != nil {
			log.Printf("Error sending magic link email: %v", err)
		}
	}

	writeJSON(w, http.StatusCreated, result)
}

// --- POST /campaigns/{campaignID}/magic-links/bulk ---

// CreateBulk reads a CSV of "name,email[,order_id]" rows and responds
// with a CSV adding the issued URL and expiry per row, for owners
// inviting a whole customer list at once.
func (h *MagicLinkHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	reader := csv.NewReader(r.Body)
	reader.FieldsPerRecord = -1

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="magic-links.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"customer_name", "customer_email", "order_id", "url", "expires_at"})
	defer writer.Flush()

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Error reading magic link CSV row: %v", err)
			continue
		}
		if len(record) < 2 || record[0] == "" || record[1] == "" {
			continue
		}
		name, addr := record[0], record[1]
		orderID := ""
		if len(record) > 2 {
			orderID = record[2]
		}

		result, err := h.service.Issue(r.Context(), magiclink.IssueInput{
			CampaignID:    campaign.ID.Hex(),
			CustomerName:  sanitize(name),
			CustomerEmail: addr,
			OrderID:       orderID,
		})
		if err != nil {
			log.Printf("Error issuing magic link for %s: %v", addr, err)
			continue
		}
		_ = writer.Write([]string{name, addr, orderID, result.URL, result.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")})
	}
}

// --- GET /campaigns/{campaignID}/magic-links ---

func (h *MagicLinkHandler) List(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	links, err := h.linkRepo.ListByCampaign(r.Context(), campaign.ID.Hex())
	if err != nil {
		log.Printf("Error listing magic links: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"magic_links": links})
}

// --- GET /campaigns/{campaignID}/magic-links/stats ---

func (h *MagicLinkHandler) Stats(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	stats, err := h.linkRepo.Stats(r.Context(), campaign.ID.Hex())
	if err != nil {
		log.Printf("Error computing magic link stats: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// --- DELETE /campaigns/{campaignID}/magic-links/{linkID} ---

func (h *MagicLinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	campaign := ownedCampaign(w, r, h.campaignRepo)
	if campaign == nil {
		return
	}

	linkID, err := bson.ObjectIDFromHex(chi.URLParam(r, "linkID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "magic link not found"})
		return
	}

	if err := h.linkRepo.Delete(r.Context(), linkID, campaign.ID.Hex()); err != nil {
		log.Printf("Error deleting magic link: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete magic link"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "magic link deleted"})
}

// --- GET /r/{token} ---

// Verify lets the review form check a link before rendering. Invalid
// links get a short, non-technical message and nothing else.
func (h *MagicLinkHandler) Verify(w http.ResponseWriter, r *http.Request) {
	payload, err := h.service.Verify(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":   true,
		"payload": payload,
	})
}

// --- POST /r/{token} ---

// Consume submits the recipient's review through the link, burning it.
func (h *MagicLinkHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	review, err := h.service.Consume(r.Context(), chi.URLParam(r, "token"), magiclink.ReviewInput{
		Rating: req.Rating,
		Title:  sanitize(req.Title),
		Review: sanitize(req.Review),
	})
	if err != nil {
		if isLinkError(err) {
			h.writeVerifyError(w, err)
			return
		}
		log.Printf("Error consuming magic link: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to submit review. Please try again."})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "review submitted successfully",
		"review":  review,
	})
}

func (h *MagicLinkHandler) writeVerifyError(w http.ResponseWriter, err error) {
	if isLinkError(err) {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"valid": false,
			"error": err.Error(),
		})
		return
	}
	log.Printf("Error verifying magic link: %v", err)
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"valid": false,
		"error": "Something went wrong. Please try again.",
	})
}

func isLinkError(err error) bool {
	return errors.Is(err, magiclink.ErrInvalidLink) ||
		errors.Is(err, magiclink.ErrLinkUsed) ||
		errors.Is(err, magiclink.ErrLinkExpired)
}
