package group

import (
	"crypto/rand"
	"crypto/subtle"

	"github.com/gtank/ristretto255"
)

// Scalar32 is the canonical 32-byte little-endian encoding of a scalar
// modulo the Ristretto255 group order.
type Scalar32 [32]byte

// Scalar is an integer modulo the group order q.
type Scalar struct {
	inner *ristretto255.Scalar
}

func wrapScalar(s *ristretto255.Scalar) *Scalar {
	return &Scalar{inner: s}
}

// RandomScalar samples a uniform scalar in [0, q) using the system CSPRNG.
func RandomScalar() (*Scalar, error) {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	return wrapScalar(ristretto255.NewScalar().FromUniformBytes(buf[:])), nil
}

// DecodeScalar parses a canonical 32-byte scalar encoding.
func DecodeScalar(b Scalar32) (*Scalar, error) {
	s := ristretto255.NewScalar()
	if err := s.Decode(b[:]); err != nil {
		return nil, ErrInvalidEncoding
	}
	return wrapScalar(s), nil
}

// HashToScalar derives a uniform scalar from an arbitrary-length message,
// domain-separated by dst. Used for the DLEQ challenge and the KDF's
// attribute-transcript hash.
func HashToScalar(msg, dst []byte) (*Scalar, error) {
	uniform, err := expandMessageXMD(msg, dst, 64)
	if err != nil {
		return nil, err
	}
	return wrapScalar(ristretto255.NewScalar().FromUniformBytes(uniform)), nil
}

// Encode returns the canonical 32-byte little-endian encoding of s.
func (s *Scalar) Encode() Scalar32 {
	var out Scalar32
	copy(out[:], s.inner.Encode(nil))
	return out
}

// IsZero reports whether s is the additive identity.
func (s *Scalar) IsZero() bool {
	var zero Scalar32
	enc := s.Encode()
	return subtle.ConstantTimeCompare(enc[:], zero[:]) == 1
}

// Equal reports whether s and t encode to the same value, in constant time.
func (s *Scalar) Equal(t *Scalar) bool {
	a, b := s.Encode(), t.Encode()
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// Add returns s + t (mod q).
func (s *Scalar) Add(t *Scalar) *Scalar {
	return wrapScalar(ristretto255.NewScalar().Add(s.inner, t.inner))
}

// Sub returns s - t (mod q).
func (s *Scalar) Sub(t *Scalar) *Scalar {
	return wrapScalar(ristretto255.NewScalar().Subtract(s.inner, t.inner))
}

// Mul returns s * t (mod q).
func (s *Scalar) Mul(t *Scalar) *Scalar {
	return wrapScalar(ristretto255.NewScalar().Multiply(s.inner, t.inner))
}

// Invert returns the multiplicative inverse of s. Fails if s is zero.
func (s *Scalar) Invert() (*Scalar, error) {
	if s.IsZero() {
		return nil, ErrArithmeticDomain
	}
	return wrapScalar(ristretto255.NewScalar().Invert(s.inner)), nil
}

// Negate returns -s (mod q).
func (s *Scalar) Negate() *Scalar {
	return wrapScalar(ristretto255.NewScalar().Subtract(ristretto255.NewScalar(), s.inner))
}

// SecretScalar wraps a Scalar that must be zeroed when the caller is done
// with it (private keys, blinding factors). The zero value is unusable;
// construct with NewSecretScalar.
type SecretScalar struct {
	s   *Scalar
	raw [32]byte
}

// NewSecretScalar takes ownership of s for zeroization purposes.
func NewSecretScalar(s *Scalar) *SecretScalar {
	ss := &SecretScalar{s: s}
	ss.raw = s.Encode()
	return ss
}

// Scalar returns the wrapped value for use in arithmetic.
func (ss *SecretScalar) Scalar() *Scalar {
	return ss.s
}

// Zeroize overwrites the secret's backing bytes. It does not prevent the
// compiler from having retained other copies produced by intervening
// arithmetic; callers should zeroize every SecretScalar they allocate.
func (ss *SecretScalar) Zeroize() {
	for i := range ss.raw {
		ss.raw[i] = 0
	}
	if ss.s != nil && ss.s.inner != nil {
		zero := ristretto255.NewScalar()
		ss.s.inner.Add(zero, zero)
	}
}
