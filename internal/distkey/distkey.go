// Package distkey adapts the teacher pack's dkg and toprf packages into an
// optional multi-node bootstrap mode for the primary master secret
// (SPEC_FULL.md §10). The single-node service path does not use it;
// config.LoadMasterSecret calls into it when master_secret_source=dkg.
//
// The protocol has three phases, mirroring dkg.Start / VerifyCommitments /
// Finish:
//
//  1. Bootstrap: each of n participants samples a random polynomial of
//     degree threshold-1, publishes commitments to its coefficients, and
//     privately sends one share of the polynomial to every participant.
//  2. VerifyShare: a participant checks a received share against the
//     sender's commitments before trusting it.
//  3. Combine: a participant sums the shares it received from every
//     dealer into its own final share of the distributed secret.
//
// A threshold of participants can later cooperate to evaluate the VOPRF
// under the distributed secret (EvaluatePart / CombineParts) without ever
// reconstructing it, or reconstruct it outright with ReconstructSecret for
// operational recovery.
package distkey

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/blake2b"

	"github.com/anoncred/credsvc/internal/group"
)

var (
	ErrThreshold        = errors.New("distkey: threshold must be > 1 and <= n")
	ErrShareLength      = errors.New("distkey: invalid share encoding length")
	ErrShareIndex       = errors.New("distkey: share index out of range")
	ErrCommitmentFailed = errors.New("distkey: share does not match sender's commitments")
	ErrNoShares         = errors.New("distkey: no shares provided")
	ErrTooManyParts     = errors.New("distkey: too many evaluation parts")
)

// ShareWire is the 33-byte wire encoding of a Share: a 1-byte index
// followed by a 32-byte canonical scalar.
type ShareWire [33]byte

// Share is one participant's point on a dealer's secret polynomial.
type Share struct {
	Index uint8
	Value *group.Scalar
}

// Encode serializes a Share for private transmission to its holder.
func (s Share) Encode() ShareWire {
	var out ShareWire
	out[0] = s.Index
	enc := s.Value.Encode()
	copy(out[1:], enc[:])
	return out
}

// DecodeShare parses a ShareWire produced by Encode.
func DecodeShare(w ShareWire) (Share, error) {
	var enc group.Scalar32
	copy(enc[:], w[1:])
	v, err := group.DecodeScalar(enc)
	if err != nil {
		return Share{}, err
	}
	return Share{Index: w[0], Value: v}, nil
}

// PartWire is the 33-byte wire encoding of an EvaluationPart.
type PartWire [33]byte

// EvaluationPart is one participant's contribution to a threshold VOPRF
// evaluation: its index and the blinded element raised to its adjusted
// key share.
type EvaluationPart struct {
	Index   uint8
	Element *group.Element
}

func (p EvaluationPart) Encode() PartWire {
	var out PartWire
	out[0] = p.Index
	enc := p.Element.Encode()
	copy(out[1:], enc[:])
	return out
}

func DecodePart(w PartWire) (EvaluationPart, error) {
	var enc group.Element32
	copy(enc[:], w[1:])
	e, err := group.DecodeElement(enc)
	if err != nil {
		return EvaluationPart{}, err
	}
	return EvaluationPart{Index: w[0], Element: e}, nil
}

// Bootstrap runs one dealer's turn of distributed key generation: it
// samples a degree-(threshold-1) polynomial, returns commitments to its
// coefficients for broadcast, and a share of the polynomial for each of
// the n participants (1-indexed).
func Bootstrap(n, threshold uint8) (commitments []*group.Element, shares []Share, err error) {
	if threshold < 2 || threshold > n {
		return nil, nil, ErrThreshold
	}

	coeffs := make([]*group.Scalar, threshold)
	for k := range coeffs {
		coeffs[k], err = group.RandomScalar()
		if err != nil {
			return nil, nil, err
		}
	}

	commitments = make([]*group.Element, threshold)
	for k, c := range coeffs {
		commitments[k] = group.BaseMult(c)
	}

	shares = make([]Share, n)
	for j := uint8(1); j <= n; j++ {
		shares[j-1] = Share{Index: j, Value: evalPolynomial(j, coeffs)}
	}
	return commitments, shares, nil
}

// evalPolynomial computes f(x) = coeffs[0] + coeffs[1]*x + ... via Horner's
// method, the same scheme dkg.Start uses to derive per-participant shares
// from its sampled coefficients.
func evalPolynomial(x uint8, coeffs []*group.Scalar) *group.Scalar {
	xs := scalarFromIndex(x)
	acc := coeffs[len(coeffs)-1]
	for k := len(coeffs) - 2; k >= 0; k-- {
		acc = acc.Mul(xs).Add(coeffs[k])
	}
	return acc
}

func scalarFromIndex(i uint8) *group.Scalar {
	var enc group.Scalar32
	enc[0] = i
	s, err := group.DecodeScalar(enc)
	if err != nil {
		// Any single-byte value is far below the group order, so this
		// is always a canonical scalar encoding; unreachable.
		panic(err)
	}
	return s
}

// VerifyShare checks that a share received from dealer peer is consistent
// with the commitments peer published in Bootstrap, i.e. that
// g^share.Value == C[0] * C[1]^self * C[2]^self^2 * ....
func VerifyShare(self uint8, commitments []*group.Element, share Share) error {
	if share.Index != self {
		return ErrShareIndex
	}

	lhs := group.BaseMult(share.Value)

	j := scalarFromIndex(self)
	rhs := commitments[0]
	power := j
	for k := 1; k < len(commitments); k++ {
		rhs = rhs.Add(commitments[k].ScalarMult(power))
		power = power.Mul(j)
	}

	lhsEnc, rhsEnc := lhs.Encode(), rhs.Encode()
	if subtle.ConstantTimeCompare(lhsEnc[:], rhsEnc[:]) != 1 {
		return ErrCommitmentFailed
	}
	return nil
}

// VerifyShares checks shares received from every dealer except self,
// returning the 1-based indices of dealers whose share failed
// verification.
func VerifyShares(self uint8, commitments [][]*group.Element, shares []Share) []uint8 {
	var failed []uint8
	for i := range shares {
		dealer := uint8(i + 1)
		if dealer == self {
			continue
		}
		if err := VerifyShare(self, commitments[i], shares[i]); err != nil {
			failed = append(failed, dealer)
		}
	}
	return failed
}

// Combine sums shares received from every dealer into this participant's
// final share of the distributed secret. Every share must carry the same
// index (self).
func Combine(shares []Share, self uint8) (Share, error) {
	if len(shares) == 0 {
		return Share{}, ErrNoShares
	}
	result := shares[0].Value
	if shares[0].Index != self {
		return Share{}, ErrShareIndex
	}
	for _, s := range shares[1:] {
		if s.Index != self {
			return Share{}, ErrShareIndex
		}
		result = result.Add(s.Value)
	}
	return Share{Index: self, Value: result}, nil
}

// lagrangeCoeff computes the Lagrange basis coefficient for participant
// index, evaluated at x, given the set of participating peer indices.
func lagrangeCoeff(index, x uint8, peers []uint8) *group.Scalar {
	xs := scalarFromIndex(x)
	is := scalarFromIndex(index)
	num := scalarFromIndex(1)
	den := scalarFromIndex(1)

	for _, peer := range peers {
		if peer == index {
			continue
		}
		ps := scalarFromIndex(peer)
		num = num.Mul(xs.Sub(ps))
		den = den.Mul(is.Sub(ps))
	}

	inv, err := den.Invert()
	if err != nil {
		// den == 0 only if two peers share an index, a caller bug.
		panic(err)
	}
	return num.Mul(inv)
}

// ReconstructSecret recovers the distributed secret from threshold or
// more final shares via Lagrange interpolation at x=0.
// config.LoadMasterSecret calls it at startup for master_secret_source=dkg;
// EvaluatePart/CombineParts evaluate under the distributed secret without
// reconstructing it.
func ReconstructSecret(shares []Share) (*group.SecretScalar, error) {
	if len(shares) == 0 {
		return nil, ErrNoShares
	}
	peers := make([]uint8, len(shares))
	for i, s := range shares {
		peers[i] = s.Index
	}

	acc := scalarFromIndex(0)
	for _, s := range shares {
		c := lagrangeCoeff(s.Index, 0, peers)
		acc = acc.Add(s.Value.Mul(c))
	}
	return group.NewSecretScalar(acc), nil
}

// EvaluatePart performs one participant's contribution to a threshold
// VOPRF evaluation: it adjusts its key share by the Lagrange coefficient
// for the participating peer set, then evaluates the blinded element,
// exactly as a single non-distributed evaluator would with the
// reconstructed secret — without ever materializing it.
func EvaluatePart(share Share, blinded *group.Element, peers []uint8) EvaluationPart {
	c := lagrangeCoeff(share.Index, 0, peers)
	adjusted := share.Value.Mul(c)
	return EvaluationPart{Index: share.Index, Element: blinded.ScalarMult(adjusted)}
}

// CombineParts sums the threshold servers' partial evaluations into the
// single evaluated element a non-distributed KeyPair would have produced.
func CombineParts(parts []EvaluationPart) (*group.Element, error) {
	if len(parts) == 0 {
		return nil, ErrNoShares
	}
	if len(parts) > 255 {
		return nil, ErrTooManyParts
	}
	result := group.Identity()
	for _, p := range parts {
		result = result.Add(p.Element)
	}
	return result, nil
}

// zeroShareMaxSessionID is the longest session ID EvaluateWithZeroShare
// accepts: the most its 2-byte big-endian length prefix can encode. That
// prefix is fed to BLAKE2b ahead of the session's blinded element, the
// framing toprf.ThreeHashTDH uses before its hash-to-curve step.
const zeroShareMaxSessionID = 1<<16 - 1

// EvaluateWithZeroShare implements the 3HashTDH construction: in addition
// to the regular key-share evaluation, each participant also holds a
// share of a secret-shared zero and folds in a second evaluation over a
// session-bound hash-to-curve point. This keeps past evaluations secure
// even if every threshold server's key share is later compromised,
// because the zero-share component cancels only when all contributing
// parts are combined.
func EvaluateWithZeroShare(key, zero Share, blinded *group.Element, sessionID []byte, peers []uint8) (EvaluationPart, error) {
	if len(sessionID) > zeroShareMaxSessionID {
		return EvaluationPart{}, errors.New("distkey: session id too long")
	}
	if key.Index != zero.Index {
		return EvaluationPart{}, ErrShareIndex
	}

	base := EvaluatePart(key, blinded, peers)

	h, err := blake2b.New512(nil)
	if err != nil {
		return EvaluationPart{}, err
	}
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(sessionID)))
	h.Write(lenBuf)
	h.Write(sessionID)
	blindedEnc := blinded.Encode()
	h.Write(blindedEnc[:])

	point := group.FromUniformBytes(h.Sum(nil))
	zc := lagrangeCoeff(zero.Index, 0, peers)
	zeroed := point.ScalarMult(zero.Value.Mul(zc))

	return EvaluationPart{Index: key.Index, Element: base.Element.Add(zeroed)}, nil
}
