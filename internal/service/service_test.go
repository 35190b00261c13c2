package service

import (
	"context"
	"errors"
	"testing"

	"github.com/anoncred/credsvc/internal/dleq"
	"github.com/anoncred/credsvc/internal/group"
	"github.com/anoncred/credsvc/internal/voprf"
)

type allowAllAuthenticator struct{}

func (allowAllAuthenticator) Authenticate(ctx context.Context, credentials []byte) (string, error) {
	return "test-caller", nil
}

type denyAllAuthenticator struct{}

func (denyAllAuthenticator) Authenticate(ctx context.Context, credentials []byte) (string, error) {
	return "", errors.New("denied")
}

type memoryLedger struct {
	seen map[[32]byte]bool
}

func newMemoryLedger() *memoryLedger { return &memoryLedger{seen: make(map[[32]byte]bool)} }

func (l *memoryLedger) SeenBefore(ctx context.Context, token [32]byte) (bool, error) {
	return l.seen[token], nil
}

func (l *memoryLedger) MarkSeen(ctx context.Context, token [32]byte) error {
	l.seen[token] = true
	return nil
}

// TestHappyPath covers scenario S1: derive an attribute key, verify its
// proof, run the full blind/evaluate/unblind/finalize/redeem flow.
func TestHappyPath(t *testing.T) {
	ctx := context.Background()
	svc, err := New([]byte("test-master"), false, allowAllAuthenticator{}, newMemoryLedger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	attrs := [][]byte{[]byte("app:demo"), []byte("2024-01")}

	pkA, proof, err := svc.GetPublicKeyAndProof(attrs)
	if err != nil {
		t.Fatalf("GetPublicKeyAndProof failed: %v", err)
	}

	pkM := svc.GetPrimaryPublicKey()
	ok, err := VerifyAttributeProof(pkM, pkA, attrs, proof)
	if err != nil {
		t.Fatalf("VerifyAttributeProof failed: %v", err)
	}
	if !ok {
		t.Fatal("attribute key proof did not verify")
	}

	var token [32]byte
	token[31] = 0x01
	blinded, r, err := voprf.Blind(token[:])
	if err != nil {
		t.Fatalf("Blind failed: %v", err)
	}

	evaluatedWire, evalProof, err := svc.SignCredential(ctx, []byte("auth-token"), blinded.Encode(), attrs)
	if err != nil {
		t.Fatalf("SignCredential failed: %v", err)
	}

	evaluated, err := group.DecodeElement(evaluatedWire)
	if err != nil {
		t.Fatalf("DecodeElement failed: %v", err)
	}
	ev := &voprf.Evaluation{Evaluated: evaluated}
	proofDecoded, err := dleq.Decode(evalProof)
	if err != nil {
		t.Fatalf("dleq.Decode failed: %v", err)
	}
	ev.Proof = proofDecoded

	// The evaluation proof binds evaluated to pk_a, the attribute-derived
	// key — not pk_m — so the client unblinds against pk_a.
	pkAElem, err := group.DecodeElement(pkA)
	if err != nil {
		t.Fatalf("DecodeElement failed: %v", err)
	}

	unblinded, err := voprf.VerifiableUnblind(ev, r, blinded, pkAElem)
	if err != nil {
		t.Fatalf("VerifiableUnblind failed: %v", err)
	}

	sharedSecret := voprf.ClientFinalize(token[:], unblinded)

	if err := svc.RedeemCredential(ctx, token, sharedSecret, attrs); err != nil {
		t.Fatalf("RedeemCredential failed: %v", err)
	}

	// Replaying the same token must now fail (double-spend caught by the
	// ledger, a concern independent of the cryptographic check).
	if err := svc.RedeemCredential(ctx, token, sharedSecret, attrs); err == nil {
		t.Fatal("expected replayed redemption to fail")
	}
}

// TestSignCredentialRequiresAuth covers the AuthRequired error kind.
func TestSignCredentialRequiresAuth(t *testing.T) {
	ctx := context.Background()
	svc, err := New([]byte("test-master"), false, denyAllAuthenticator{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var token [32]byte
	token[31] = 0x02
	blinded, _, err := voprf.Blind(token[:])
	if err != nil {
		t.Fatalf("Blind failed: %v", err)
	}

	_, _, err = svc.SignCredential(ctx, []byte("bad-token"), blinded.Encode(), [][]byte{[]byte("x")})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Kind != KindAuthRequired {
		t.Fatalf("expected KindAuthRequired, got %v", err)
	}
}

// TestRedeemSecretMismatch covers a shared secret that never matched any
// attribute key for the given token.
func TestRedeemSecretMismatch(t *testing.T) {
	ctx := context.Background()
	svc, err := New([]byte("test-master"), false, allowAllAuthenticator{}, newMemoryLedger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var token [32]byte
	token[31] = 0x03
	var wrongSecret group.Secret64
	wrongSecret[0] = 0xff

	err = svc.RedeemCredential(ctx, token, wrongSecret, [][]byte{[]byte("app:demo")})
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Kind != KindSecretMismatch {
		t.Fatalf("expected KindSecretMismatch, got %v", err)
	}
}

// TestRedeemWrongAttributesScenario covers scenario S3: the shared secret
// is computed under the attribute-derived key sk_a, so redeeming with a
// different attribute set than the credential was issued under recomputes
// an unrelated sk_a and must yield SecretMismatch.
func TestRedeemWrongAttributesScenario(t *testing.T) {
	ctx := context.Background()
	svc, err := New([]byte("test-master"), false, allowAllAuthenticator{}, newMemoryLedger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	issuedAttrs := [][]byte{[]byte("app:demo"), []byte("2024-01")}
	redeemAttrs := [][]byte{[]byte("app:demo"), []byte("2024-02")}

	var token [32]byte
	token[31] = 0x04
	blinded, r, err := voprf.Blind(token[:])
	if err != nil {
		t.Fatalf("Blind failed: %v", err)
	}

	evaluatedWire, evalProof, err := svc.SignCredential(ctx, []byte("auth-token"), blinded.Encode(), issuedAttrs)
	if err != nil {
		t.Fatalf("SignCredential failed: %v", err)
	}

	pkA, _, err := svc.GetPublicKeyAndProof(issuedAttrs)
	if err != nil {
		t.Fatalf("GetPublicKeyAndProof failed: %v", err)
	}
	pkAElem, err := group.DecodeElement(pkA)
	if err != nil {
		t.Fatalf("DecodeElement failed: %v", err)
	}

	evaluated, err := group.DecodeElement(evaluatedWire)
	if err != nil {
		t.Fatalf("DecodeElement failed: %v", err)
	}
	proofDecoded, err := dleq.Decode(evalProof)
	if err != nil {
		t.Fatalf("dleq.Decode failed: %v", err)
	}
	ev := &voprf.Evaluation{Evaluated: evaluated, Proof: proofDecoded}

	unblinded, err := voprf.VerifiableUnblind(ev, r, blinded, pkAElem)
	if err != nil {
		t.Fatalf("VerifiableUnblind failed: %v", err)
	}
	sharedSecret := voprf.ClientFinalize(token[:], unblinded)

	err = svc.RedeemCredential(ctx, token, sharedSecret, redeemAttrs)
	var svcErr *Error
	if !errors.As(err, &svcErr) || svcErr.Kind != KindSecretMismatch {
		t.Fatalf("expected KindSecretMismatch for mismatched attributes, got %v", err)
	}

	// The correctly-attributed redemption still succeeds.
	if err := svc.RedeemCredential(ctx, token, sharedSecret, issuedAttrs); err != nil {
		t.Fatalf("RedeemCredential with correct attributes failed: %v", err)
	}
}
