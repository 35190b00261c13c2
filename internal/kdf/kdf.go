// Package kdf implements the SDHI (Strong-DH-based Inversion) attribute-
// indexed key derivation: given a primary key pair (sk_m, pk_m) and an
// ordered attribute list, derive a per-attribute key pair (sk_a, pk_a)
// plus a DLEQ proof binding pk_a to pk_m.
//
// This generalizes the teacher's Derive-by-hash-then-fold shape (see
// zed.Secret.Derive / zed.Public.Derive, which blind a key pair by a
// scalar hashed from a selector) into the inversion relation
// sk_a = sk_m / x, pk_a = sk_a*G, required by SDHI.
package kdf

import (
	"encoding/binary"
	"errors"

	"github.com/anoncred/credsvc/internal/dleq"
	"github.com/anoncred/credsvc/internal/group"
)

// DST is the domain separation tag for the attribute-transcript hash that
// produces x. Distinct from the DLEQ challenge tag and the VOPRF's
// hash-to-group/finalize tags, per the spec's domain-separation
// requirement.
const DST = "anoncred-v1-SDHI-Derive-ristretto255-SHA512"

// ErrNoAttributes is returned by DeriveKeyPair when the attribute list is
// empty.
var ErrNoAttributes = errors.New("kdf: at least one attribute is required")

// ErrDerivationFailure is returned in the cryptographically negligible
// case that the attribute transcript hashes to the zero scalar.
var ErrDerivationFailure = errors.New("kdf: attribute transcript hashed to zero")

// KDF holds the server's primary key pair. sk_m is secret; pk_m is the
// value exposed to clients via getPrimaryPublicKey.
type KDF struct {
	skM *group.SecretScalar
	pkM *group.Element
}

// Setup derives sk_m from masterSecret and computes pk_m = sk_m*G. With
// masterIsRaw set, masterSecret must be a canonical 32-byte scalar
// encoding and is used as sk_m directly (anything else is rejected with an
// error); otherwise masterSecret is hashed to a scalar.
func Setup(masterSecret []byte, masterIsRaw bool) (*KDF, error) {
	var skM *group.Scalar
	if masterIsRaw {
		if len(masterSecret) != 32 {
			return nil, group.ErrInvalidEncoding
		}
		var b group.Scalar32
		copy(b[:], masterSecret)
		decoded, err := group.DecodeScalar(b)
		if err != nil {
			return nil, err
		}
		skM = decoded
	} else {
		derived, err := group.HashToScalar(masterSecret, []byte(DST+"-master"))
		if err != nil {
			return nil, err
		}
		skM = derived
	}

	return &KDF{
		skM: group.NewSecretScalar(skM),
		pkM: group.BaseMult(skM),
	}, nil
}

// PrimaryPublicKey returns pk_m.
func (k *KDF) PrimaryPublicKey() *group.Element {
	return k.pkM
}

// DerivedKeyPair is a per-attribute key pair plus the proof binding its
// public half to the primary public key.
type DerivedKeyPair struct {
	SK    *group.SecretScalar
	PK    *group.Element
	Proof *dleq.Proof
}

// DeriveKeyPair computes x = hash_to_scalar(attrs), sk_a = sk_m * x^-1,
// pk_a = sk_a*G, and a DLEQ proof that log_G(pk_a) = log_{x*G}(pk_m).
//
// Deterministic in (sk_m, attributes): repeated calls yield byte-equal
// (sk_a, pk_a); only the proof's nonce varies.
func (k *KDF) DeriveKeyPair(attributes [][]byte) (*DerivedKeyPair, error) {
	if len(attributes) == 0 {
		return nil, ErrNoAttributes
	}

	x, err := attributeScalar(attributes)
	if err != nil {
		return nil, err
	}
	if x.IsZero() {
		return nil, ErrDerivationFailure
	}

	xInv, err := x.Invert()
	if err != nil {
		return nil, ErrDerivationFailure
	}

	skA := k.skM.Scalar().Mul(xInv)
	pkA := group.BaseMult(skA)

	// Proof statement: there exists sk_a with sk_a*G = pk_a and
	// sk_a*(x*G) = pk_m.
	xG := group.BaseMult(x)
	proof, err := dleq.Prove(skA, group.Base(), pkA, xG, k.pkM)
	if err != nil {
		return nil, err
	}

	return &DerivedKeyPair{
		SK:    group.NewSecretScalar(skA),
		PK:    pkA,
		Proof: proof,
	}, nil
}

// VerifyPublicKey recomputes x from attributes and checks proof against
// (G, pk_a, x*G, pk_m). Any failure — including a malformed proof or
// wrong attributes — returns false.
func VerifyPublicKey(pkM, pkA *group.Element, attributes [][]byte, proof *dleq.Proof) bool {
	if len(attributes) == 0 {
		return false
	}

	x, err := attributeScalar(attributes)
	if err != nil || x.IsZero() {
		return false
	}

	xG := group.BaseMult(x)
	return dleq.Verify(group.Base(), pkA, xG, pkM, proof)
}

// attributeScalar hashes the length-prefixed attribute transcript to a
// scalar, preventing concatenation ambiguity between e.g. ["ab","c"] and
// ["a","bc"].
func attributeScalar(attributes [][]byte) (*group.Scalar, error) {
	transcript := make([]byte, 0, 64)
	for _, a := range attributes {
		lenBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(lenBuf, uint16(len(a)))
		transcript = append(transcript, lenBuf...)
		transcript = append(transcript, a...)
	}
	return group.HashToScalar(transcript, []byte(DST))
}
