package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestVerifier(secret string, handler http.HandlerFunc) (*HCaptcha, *httptest.Server) {
	server := httptest.NewServer(handler)
	verifier := NewHCaptcha(secret)
	verifier.endpoint = server.URL
	return verifier, server
}

func TestVerifySuccess(t *testing.T) {
	verifier, server := newTestVerifier("secret", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm failed: %v", err)
		}
		if got := r.PostForm.Get("response"); got != "tok123" {
			t.Errorf("response field: got %q, want tok123", got)
		}
		if got := r.PostForm.Get("secret"); got != "secret" {
			t.Errorf("secret field: got %q, want secret", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	})
	defer server.Close()

	if !verifier.Verify(context.Background(), "tok123") {
		t.Error("expected verification to succeed")
	}
}

func TestVerifyFailureResponse(t *testing.T) {
	verifier, server := newTestVerifier("secret", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	})
	defer server.Close()

	if verifier.Verify(context.Background(), "bad-token") {
		t.Error("expected verification to fail")
	}
}

func TestVerifyFailsClosedOnServerError(t *testing.T) {
	verifier, server := newTestVerifier("secret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()

	if verifier.Verify(context.Background(), "tok") {
		t.Error("non-200 status must fail closed")
	}
}

func TestVerifyFailsClosedOnTransportError(t *testing.T) {
	verifier, server := newTestVerifier("secret", func(w http.ResponseWriter, r *http.Request) {})
	server.Close() // connection refused from here on

	if verifier.Verify(context.Background(), "tok") {
		t.Error("unreachable service must fail closed")
	}
}

func TestVerifyFailsClosedOnGarbageBody(t *testing.T) {
	verifier, server := newTestVerifier("secret", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})
	defer server.Close()

	if verifier.Verify(context.Background(), "tok") {
		t.Error("undecodable body must fail closed")
	}
}

func TestVerifyWithoutSecretConfigured(t *testing.T) {
	verifier, server := newTestVerifier("", func(w http.ResponseWriter, r *http.Request) {
		t.Error("verifier must not call the service without a secret")
	})
	defer server.Close()

	if verifier.Verify(context.Background(), "tok") {
		t.Error("missing secret must fail closed")
	}
}

func TestMockAcceptsNonEmptyTokens(t *testing.T) {
	mock := NewMock()
	if !mock.Verify(context.Background(), "anything") {
		t.Error("mock should accept non-empty tokens")
	}
	if mock.Verify(context.Background(), "") {
		t.Error("mock should reject empty tokens")
	}
}
