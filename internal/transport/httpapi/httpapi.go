// Package httpapi exposes the four RPC operations of spec.md §6.1 over
// HTTP+JSON, routed with gorilla/mux and logged with logrus, in the
// style of the pack's profile/ia HTTP services.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/anoncred/credsvc/internal/group"
	"github.com/anoncred/credsvc/internal/service"
)

// API wires a service.Service to an HTTP router.
type API struct {
	svc *service.Service
	log *logrus.Logger
}

// New constructs an API serving svc; Router builds its routes. log may be nil, in which case a default
// logrus.Logger is used.
func New(svc *service.Service, log *logrus.Logger) *API {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &API{svc: svc, log: log}
}

// Router builds the mux.Router implementing spec.md §6.1's four routes.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.requestIDMiddleware)
	r.HandleFunc("/v1/primary-key", a.handleGetPrimaryPublicKey).Methods(http.MethodGet)
	r.HandleFunc("/v1/attribute-key", a.handleGetPublicKeyAndProof).Methods(http.MethodPost)
	r.HandleFunc("/v1/credentials", a.handleSignCredential).Methods(http.MethodPost)
	r.HandleFunc("/v1/redeem", a.handleRedeemCredential).Methods(http.MethodPost)
	return r
}

func (a *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleGetPrimaryPublicKey(w http.ResponseWriter, r *http.Request) {
	pk := a.svc.GetPrimaryPublicKey()
	writeJSON(w, http.StatusOK, map[string]string{"public_key": hex.EncodeToString(pk[:])})
}

type attributeKeyRequest struct {
	Attributes []string `json:"attributes"`
}

type attributeKeyResponse struct {
	PublicKey string `json:"public_key"`
	Proof     string `json:"proof"`
}

func (a *API) handleGetPublicKeyAndProof(w http.ResponseWriter, r *http.Request) {
	var req attributeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, service.KindInvalidEncoding, err)
		return
	}

	pkA, proof, err := a.svc.GetPublicKeyAndProof(toByteSlices(req.Attributes))
	if err != nil {
		a.writeSvcError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, attributeKeyResponse{
		PublicKey: hex.EncodeToString(pkA[:]),
		Proof:     hex.EncodeToString(proof[:]),
	})
}

type signCredentialRequest struct {
	Blinded    string   `json:"blinded"`
	Attributes []string `json:"attributes"`
}

type signCredentialResponse struct {
	Evaluated string `json:"evaluated"`
	Proof     string `json:"proof"`
}

func (a *API) handleSignCredential(w http.ResponseWriter, r *http.Request) {
	var req signCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, service.KindInvalidEncoding, err)
		return
	}

	blindedWire, err := decodeElement32(req.Blinded)
	if err != nil {
		a.writeError(w, r, service.KindInvalidEncoding, err)
		return
	}

	callerCredentials := []byte(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))

	evaluated, proof, err := a.svc.SignCredential(r.Context(), callerCredentials, blindedWire, toByteSlices(req.Attributes))
	if err != nil {
		a.writeSvcError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, signCredentialResponse{
		Evaluated: hex.EncodeToString(evaluated[:]),
		Proof:     hex.EncodeToString(proof[:]),
	})
}

type redeemCredentialRequest struct {
	Token        string   `json:"token"`
	SharedSecret string   `json:"shared_secret"`
	Attributes   []string `json:"attributes"`
}

func (a *API) handleRedeemCredential(w http.ResponseWriter, r *http.Request) {
	var req redeemCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, service.KindInvalidEncoding, err)
		return
	}

	token, err := decodeElement32(req.Token)
	if err != nil {
		a.writeError(w, r, service.KindInvalidEncoding, err)
		return
	}

	secretBytes, err := hex.DecodeString(req.SharedSecret)
	if err != nil || len(secretBytes) != 64 {
		a.writeError(w, r, service.KindInvalidEncoding, errors.New("shared_secret must be 64 hex-decoded bytes"))
		return
	}
	var secret group.Secret64
	copy(secret[:], secretBytes)

	if err := a.svc.RedeemCredential(r.Context(), token, secret, toByteSlices(req.Attributes)); err != nil {
		a.writeSvcError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toByteSlices(ss []string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func decodeElement32(hexStr string) (group.Element32, error) {
	var out group.Element32
	b, err := hex.DecodeString(hexStr)
	if err != nil || len(b) != 32 {
		return out, group.ErrInvalidEncoding
	}
	copy(out[:], b)
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError logs and responds for failures detected in the transport
// layer itself (JSON decode, hex decode), before the service ever sees
// the request.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, kind service.ErrKind, err error) {
	a.log.WithFields(logrus.Fields{
		"request_id": w.Header().Get("X-Request-ID"),
		"error_kind": kind.String(),
		"path":       r.URL.Path,
	}).Warn("request rejected")
	writeJSON(w, statusForKind(kind), map[string]string{"error": kind.String()})
}

// writeSvcError logs and responds for a *service.Error returned by the
// core. No secret-bearing detail is ever included in the response body
// or log line, per spec.md §7.
func (a *API) writeSvcError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	kind := service.KindArithmeticDomain
	if errors.As(err, &svcErr) {
		kind = svcErr.Kind
	}
	a.writeError(w, r, kind, err)
}

func statusForKind(kind service.ErrKind) int {
	switch kind {
	case service.KindInvalidEncoding, service.KindNoAttributes, service.KindArithmeticDomain:
		return http.StatusBadRequest
	case service.KindProofInvalid, service.KindSecretMismatch:
		return http.StatusUnprocessableEntity
	case service.KindAuthRequired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
