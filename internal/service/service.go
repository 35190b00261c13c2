// Package service composes the VOPRF and KDF cryptographic core into the
// four RPC operations of the anonymous credential protocol, and defines
// the external-collaborator interfaces (client authentication,
// double-spend persistence) that the core itself does not implement.
package service

import (
	"context"
	"errors"

	"github.com/anoncred/credsvc/internal/dleq"
	"github.com/anoncred/credsvc/internal/group"
	"github.com/anoncred/credsvc/internal/kdf"
	"github.com/anoncred/credsvc/internal/voprf"
)

// ErrKind identifies the error-kind taxonomy of spec.md §7. Handlers
// translate these into protocol-level errors without leaking any
// secret-bearing detail.
type ErrKind int

const (
	KindInvalidEncoding ErrKind = iota
	KindProofInvalid
	KindArithmeticDomain
	KindNoAttributes
	KindSecretMismatch
	KindAuthRequired
)

func (k ErrKind) String() string {
	switch k {
	case KindInvalidEncoding:
		return "InvalidEncoding"
	case KindProofInvalid:
		return "ProofInvalid"
	case KindArithmeticDomain:
		return "ArithmeticDomain"
	case KindNoAttributes:
		return "NoAttributes"
	case KindSecretMismatch:
		return "SecretMismatch"
	case KindAuthRequired:
		return "AuthRequired"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying failure with its protocol-level kind.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func classify(kind ErrKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Authenticator verifies an inbound caller before signCredential runs.
// The core never imports a concrete implementation; the service wires
// one in at construction time. See internal/authn for the default.
type Authenticator interface {
	Authenticate(ctx context.Context, credentials []byte) (callerID string, err error)
}

// RedemptionLedger records which tokens have already been redeemed. The
// core's redeemCredential operation only asserts cryptographic validity;
// double-spend detection is layered on top via this interface, per
// spec.md §1's explicit non-goal.
type RedemptionLedger interface {
	SeenBefore(ctx context.Context, token [32]byte) (bool, error)
	MarkSeen(ctx context.Context, token [32]byte) error
}

// Service owns the server's primary key material (through kdf.KDF, which
// derives the per-attribute VOPRF key pair every signCredential and
// redeemCredential call operates under) and the pluggable external
// collaborators.
type Service struct {
	kdf    *kdf.KDF
	auth   Authenticator
	ledger RedemptionLedger
}

// New constructs a Service from a primary master secret. masterIsRaw
// selects between treating masterSecret as a raw 32-byte scalar or as an
// arbitrary-length seed to be hashed, per spec.md §9's master-secret
// ingestion note.
func New(masterSecret []byte, masterIsRaw bool, auth Authenticator, ledger RedemptionLedger) (*Service, error) {
	k, err := kdf.Setup(masterSecret, masterIsRaw)
	if err != nil {
		return nil, classify(KindInvalidEncoding, err)
	}

	return &Service{kdf: k, auth: auth, ledger: ledger}, nil
}

// GetPrimaryPublicKey implements the getPrimaryPublicKey RPC: it always
// succeeds.
func (s *Service) GetPrimaryPublicKey() group.Element32 {
	return s.kdf.PrimaryPublicKey().Encode()
}

// GetPublicKeyAndProof implements the getPublicKeyAndProof RPC.
func (s *Service) GetPublicKeyAndProof(attributes [][]byte) (pkA group.Element32, proof group.Proof64, err error) {
	derived, err := s.kdf.DeriveKeyPair(attributes)
	if err != nil {
		if errors.Is(err, kdf.ErrNoAttributes) {
			return pkA, proof, classify(KindNoAttributes, err)
		}
		return pkA, proof, classify(KindArithmeticDomain, err)
	}
	return derived.PK.Encode(), derived.Proof.Encode(), nil
}

// SignCredential implements the signCredential RPC. callerCredentials is
// handed to the Authenticator before any cryptographic work is done.
// Per spec.md §4.3/§6.1 the credential is issued under the attribute-
// derived key pair (sk_a, pk_a), never the primary key pair directly:
// the evaluation proof binds the result to pk_a, which the client must
// verify against pk_m via VerifyAttributeProof before trusting it.
func (s *Service) SignCredential(ctx context.Context, callerCredentials []byte, blindedWire group.Element32, attributes [][]byte) (evaluated group.Element32, proof group.Proof64, err error) {
	if s.auth != nil {
		if _, err := s.auth.Authenticate(ctx, callerCredentials); err != nil {
			return evaluated, proof, classify(KindAuthRequired, err)
		}
	}

	derived, err := s.kdf.DeriveKeyPair(attributes)
	if err != nil {
		if errors.Is(err, kdf.ErrNoAttributes) {
			return evaluated, proof, classify(KindNoAttributes, err)
		}
		return evaluated, proof, classify(KindArithmeticDomain, err)
	}

	blinded, err := group.DecodeElement(blindedWire)
	if err != nil {
		return evaluated, proof, classify(KindInvalidEncoding, err)
	}

	attrKey := &voprf.KeyPair{SK: derived.SK, PK: derived.PK}
	ev, err := voprf.Evaluate(attrKey, blinded, true)
	if err != nil {
		return evaluated, proof, classify(KindArithmeticDomain, err)
	}

	return ev.Evaluated.Encode(), ev.Proof.Encode(), nil
}

// RedeemCredential implements the redeemCredential RPC. It asserts that
// the client-supplied shared secret matches the server's own computation
// for (token, attributes) under the attribute-derived key sk_a and, if a
// ledger is configured, records the token as seen. Presenting the wrong
// attributes recomputes the secret under a different sk_a and yields
// SecretMismatch, even though the cryptographic check and the dedup
// check remain independent concerns per spec.md §1.
func (s *Service) RedeemCredential(ctx context.Context, tokenWire group.Element32, sharedSecretWire group.Secret64, attributes [][]byte) error {
	derived, err := s.kdf.DeriveKeyPair(attributes)
	if err != nil {
		if errors.Is(err, kdf.ErrNoAttributes) {
			return classify(KindNoAttributes, err)
		}
		return classify(KindArithmeticDomain, err)
	}

	attrKey := &voprf.KeyPair{SK: derived.SK, PK: derived.PK}
	expected, err := voprf.ServerFinalize(attrKey, tokenWire[:])
	if err != nil {
		return classify(KindInvalidEncoding, err)
	}

	if !group.SecretEqual(sharedSecretWire, expected) {
		return classify(KindSecretMismatch, errors.New("shared secret does not match"))
	}

	if s.ledger != nil {
		var token [32]byte
		copy(token[:], tokenWire[:])
		seen, err := s.ledger.SeenBefore(ctx, token)
		if err != nil {
			return err
		}
		if seen {
			return classify(KindSecretMismatch, errors.New("token already redeemed"))
		}
		if err := s.ledger.MarkSeen(ctx, token); err != nil {
			return err
		}
	}

	return nil
}

// VerifyAttributeProof exposes kdf.VerifyPublicKey for clients embedded
// in the same process (e.g. tests, or a client library sharing this
// module). Real remote clients perform this verification locally using
// only public values; see internal/kdf.
func VerifyAttributeProof(pkM, pkA group.Element32, attributes [][]byte, proofWire group.Proof64) (bool, error) {
	pkMElem, err := group.DecodeElement(pkM)
	if err != nil {
		return false, classify(KindInvalidEncoding, err)
	}
	pkAElem, err := group.DecodeElement(pkA)
	if err != nil {
		return false, classify(KindInvalidEncoding, err)
	}
	proof, err := dleq.Decode(proofWire)
	if err != nil {
		return false, classify(KindInvalidEncoding, err)
	}
	return kdf.VerifyPublicKey(pkMElem, pkAElem, attributes, proof), nil
}
