package captcha

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const hcaptchaVerifyURL = "https://hcaptcha.com/siteverify"

// Verifier checks a client-supplied captcha token. Implementations never
// propagate errors past this boundary: any failure means "not verified".
type Verifier interface {
	Verify(ctx context.Context, token string) bool
}

// HCaptcha verifies tokens against the hCaptcha siteverify endpoint.
type HCaptcha struct {
	secret   string
	endpoint string
	client   *http.Client
}

func NewHCaptcha(secret string) *HCaptcha {
	return &HCaptcha{
		secret:   secret,
		endpoint: hcaptchaVerifyURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify posts the token and server secret to hCaptcha. Transport errors,
// non-success statuses, and responses without success=true all fail closed.
func (h *HCaptcha) Verify(ctx context.Context, token string) bool {
	if h.secret == "" {
		log.Println("⚠️  HCAPTCHA_SECRET_KEY is not configured")
		return false
	}

	form := url.Values{}
	form.Set("response", token)
	form.Set("secret", h.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		log.Printf("Error building captcha request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		log.Printf("Error verifying captcha: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Captcha verification returned status %d", resp.StatusCode)
		return false
	}

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("Error decoding captcha response: %v", err)
		return false
	}
	return result.Success
}
