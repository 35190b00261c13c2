// Package dleq implements a non-interactive Fiat-Shamir proof that two
// element pairs share a discrete log: log_G(Y) = log_H(Z).
//
// Both the VOPRF's evaluation proof and the KDF's public-key binding proof
// are instances of this single primitive.
package dleq

import (
	"errors"

	"github.com/anoncred/credsvc/internal/group"
)

// DST is the domain separation tag for the Fiat-Shamir challenge hash.
// Stable across server versions: rotating it invalidates every
// outstanding proof.
const DST = "anoncred-v1-DLEQ-ristretto255-SHA512"

// ErrProofInvalid is returned by Verify when the proof does not hold.
var ErrProofInvalid = errors.New("dleq: proof invalid")

// Proof is a Fiat-Shamir challenge/response pair witnessing
// log_G(Y) = log_H(Z).
type Proof struct {
	C *group.Scalar
	S *group.Scalar
}

// Encode serializes the proof as (c || s), 64 bytes.
func (p *Proof) Encode() group.Proof64 {
	return group.EncodeProof(p.C.Encode(), p.S.Encode())
}

// Decode parses a 64-byte proof.
func Decode(wire group.Proof64) (*Proof, error) {
	cWire, sWire := group.DecodeProof(wire)
	c, err := group.DecodeScalar(cWire)
	if err != nil {
		return nil, err
	}
	s, err := group.DecodeScalar(sWire)
	if err != nil {
		return nil, err
	}
	return &Proof{C: c, S: s}, nil
}

// Prove produces a proof that x is the common discrete log of Y w.r.t. G
// and Z w.r.t. H, i.e. Y = x*G and Z = x*H.
//
// The prover nonce k is freshly random on every call; the resulting proof
// is therefore non-deterministic even though verification is not.
func Prove(x *group.Scalar, G, Y, H, Z *group.Element) (*Proof, error) {
	k, err := group.RandomScalar()
	if err != nil {
		return nil, err
	}

	A := G.ScalarMult(k)
	B := H.ScalarMult(k)

	c, err := challenge(G, H, Y, Z, A, B)
	if err != nil {
		return nil, err
	}

	s := k.Add(c.Mul(x))

	return &Proof{C: c, S: s}, nil
}

// Verify checks that proof witnesses log_G(Y) = log_H(Z).
func Verify(G, Y, H, Z *group.Element, proof *Proof) bool {
	if proof == nil || proof.C == nil || proof.S == nil {
		return false
	}

	negC := proof.C.Negate()

	// A' = s*G - c*Y = s*G + (-c)*Y
	aPrime := G.ScalarMult(proof.S).Add(Y.ScalarMult(negC))
	// B' = s*H - c*Z
	bPrime := H.ScalarMult(proof.S).Add(Z.ScalarMult(negC))

	cPrime, err := challenge(G, H, Y, Z, aPrime, bPrime)
	if err != nil {
		return false
	}

	return proof.C.Equal(cPrime)
}

// challenge hashes the transcript (G, H, Y, Z, A, B) in this exact order,
// per the statement that a mismatched order breaks soundness against
// adaptive adversaries.
func challenge(G, H, Y, Z, A, B *group.Element) (*group.Scalar, error) {
	gEnc, hEnc, yEnc, zEnc := G.Encode(), H.Encode(), Y.Encode(), Z.Encode()
	aEnc, bEnc := A.Encode(), B.Encode()

	transcript := make([]byte, 0, 6*32)
	transcript = append(transcript, gEnc[:]...)
	transcript = append(transcript, hEnc[:]...)
	transcript = append(transcript, yEnc[:]...)
	transcript = append(transcript, zEnc[:]...)
	transcript = append(transcript, aEnc[:]...)
	transcript = append(transcript, bEnc[:]...)

	return group.HashToScalar(transcript, []byte(DST))
}
