// Package voprf implements the multiplicative two-hash-DH Verifiable
// Oblivious Pseudorandom Function: PRF_sk(t) = H2(t, sk*H1(t)), blinded
// multiplicatively and verified via a DLEQ proof over (G, pk, blinded,
// evaluated).
//
// This generalizes the teacher's plain (non-verifiable) OPRF flow
// (Blind/Evaluate/Unblind/Finalize) by threading a dleq.Proof through
// Evaluate and VerifiableUnblind.
package voprf

import (
	"crypto/sha512"
	"encoding/binary"
	"errors"

	"github.com/anoncred/credsvc/internal/dleq"
	"github.com/anoncred/credsvc/internal/group"
)

// Domain separation tags, pinned per the spec's requirement that they
// never change once deployed.
const (
	hashToGroupDST = "anoncred-v1-HashToGroup-ristretto255-SHA512"
	finalizeDST    = "anoncred-v1-Finalize"
)

// ErrProofInvalid is returned by VerifiableUnblind when the server's
// evaluation proof does not verify. The credential is unrecoverable;
// the client must discard it and restart from Blind.
var ErrProofInvalid = errors.New("voprf: evaluation proof invalid")

// ErrZeroBlind is returned by Blind if the blinding factor it samples is
// zero.
var ErrZeroBlind = errors.New("voprf: blinding factor must be nonzero")

// KeyPair is a VOPRF server's (sk, pk) pair, pk = sk*G.
type KeyPair struct {
	SK *group.SecretScalar
	PK *group.Element
}

// Setup samples a fresh server key pair.
func Setup() (*KeyPair, error) {
	sk, err := group.RandomScalar()
	if err != nil {
		return nil, err
	}
	pk := group.BaseMult(sk)
	return &KeyPair{SK: group.NewSecretScalar(sk), PK: pk}, nil
}

// Blind hashes token to the group and blinds it with a fresh random
// scalar r. The client retains r to unblind the server's evaluation.
func Blind(token []byte) (blinded *group.Element, r *group.Scalar, err error) {
	T, err := group.HashToGroup(token, []byte(hashToGroupDST))
	if err != nil {
		return nil, nil, err
	}
	if T.IsIdentity() {
		return nil, nil, group.ErrArithmeticDomain
	}

	r, err = group.RandomScalar()
	if err != nil {
		return nil, nil, err
	}
	if r.IsZero() {
		return nil, nil, ErrZeroBlind
	}

	return T.ScalarMult(r), r, nil
}

// Evaluation is the server's response to Blind: the evaluated element and,
// in verifiable mode, a DLEQ proof tying it to the server's public key.
type Evaluation struct {
	Evaluated *group.Element
	Proof     *dleq.Proof
}

// Evaluate computes evaluated = sk*blinded and, if prove is true, a DLEQ
// proof that log_G(pk) = log_blinded(evaluated).
func Evaluate(kp *KeyPair, blinded *group.Element, prove bool) (*Evaluation, error) {
	sk := kp.SK.Scalar()
	evaluated := blinded.ScalarMult(sk)

	ev := &Evaluation{Evaluated: evaluated}
	if prove {
		proof, err := dleq.Prove(sk, group.Base(), kp.PK, blinded, evaluated)
		if err != nil {
			return nil, err
		}
		ev.Proof = proof
	}
	return ev, nil
}

// VerifiableUnblind verifies the server's evaluation proof against
// (G, pk, blinded, evaluated) and, on success, removes the blinding
// factor r to recover sk*H1(token).
func VerifiableUnblind(ev *Evaluation, r *group.Scalar, blinded, pk *group.Element) (*group.Element, error) {
	if ev.Proof == nil || !dleq.Verify(group.Base(), pk, blinded, ev.Evaluated, ev.Proof) {
		return nil, ErrProofInvalid
	}

	rInv, err := r.Invert()
	if err != nil {
		return nil, err
	}

	return ev.Evaluated.ScalarMult(rInv), nil
}

// ClientFinalize derives the 64-byte shared secret from a token and its
// unblinded element, on the client side.
func ClientFinalize(token []byte, unblinded *group.Element) group.Secret64 {
	return finalize(token, unblinded)
}

// ServerFinalize recomputes the same shared secret directly from sk and
// token, without the blind/evaluate/unblind round trip. Equal to
// ClientFinalize's output for the same (sk, token) pair: this is the
// VOPRF agreement law.
func ServerFinalize(kp *KeyPair, token []byte) (group.Secret64, error) {
	T, err := group.HashToGroup(token, []byte(hashToGroupDST))
	if err != nil {
		return group.Secret64{}, err
	}
	unblinded := T.ScalarMult(kp.SK.Scalar())
	return finalize(token, unblinded), nil
}

func finalize(token []byte, unblinded *group.Element) group.Secret64 {
	h := sha512.New()

	tokenLen := make([]byte, 2)
	binary.BigEndian.PutUint16(tokenLen, uint16(len(token)))
	h.Write(tokenLen)
	h.Write(token)

	enc := unblinded.Encode()
	nLen := make([]byte, 2)
	binary.BigEndian.PutUint16(nLen, uint16(len(enc)))
	h.Write(nLen)
	h.Write(enc[:])

	h.Write([]byte(finalizeDST))

	var out group.Secret64
	copy(out[:], h.Sum(nil))
	return out
}
