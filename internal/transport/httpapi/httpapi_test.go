package httpapi

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anoncred/credsvc/internal/ledger"
	"github.com/anoncred/credsvc/internal/service"
)

type allowAllAuthenticator struct{}

func (allowAllAuthenticator) Authenticate(ctx context.Context, credentials []byte) (string, error) {
	return "test", nil
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	svc, err := service.New([]byte("test-master"), false, allowAllAuthenticator{}, ledger.NewMemoryLedger())
	if err != nil {
		t.Fatalf("service.New failed: %v", err)
	}
	return New(svc, nil)
}

func TestGetPrimaryPublicKey(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/primary-key")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, err := hex.DecodeString(body["public_key"]); err != nil {
		t.Fatalf("public_key is not valid hex: %v", err)
	}
}

func TestGetPublicKeyAndProofRejectsEmptyAttributes(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/attribute-key", "application/json", bytes.NewReader([]byte(`{"attributes":[]}`)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetPublicKeyAndProofHappyPath(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/attribute-key", "application/json", bytes.NewReader([]byte(`{"attributes":["app:demo","2024-01"]}`)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body attributeKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, err := hex.DecodeString(body.PublicKey); err != nil {
		t.Fatalf("public_key is not valid hex: %v", err)
	}
	if _, err := hex.DecodeString(body.Proof); err != nil {
		t.Fatalf("proof is not valid hex: %v", err)
	}
}

func TestSignCredentialRejectsMalformedBlinded(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/credentials", "application/json", bytes.NewReader([]byte(`{"blinded":"not-hex","attributes":["a"]}`)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
