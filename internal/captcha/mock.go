package captcha

import (
	"context"
	"log"
)

// Mock implements the Verifier interface by accepting every non-empty
// token. Used for local development when no hCaptcha secret is set.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Verify(ctx context.Context, token string) bool {
	log.Printf("🤖 [MockCaptcha] Accepting captcha token (dev mode)")
	return token != ""
}
