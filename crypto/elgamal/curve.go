package elgamal

import (
	"errors"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const (
	PointSize      = bn254.SizeOfG1AffineCompressed
	ScalarSize     = fr.Bytes
	CiphertextSize = 2 * PointSize
)

// Point is a compressed BN254 G1 element.
type Point [PointSize]byte

var (
	ErrInvalidPoint  = errors.New("elgamal: invalid curve point")
	ErrInvalidScalar = errors.New("elgamal: invalid scalar encoding")
	ErrZeroSecret    = errors.New("elgamal: secret scalar must not be zero")
	ErrNotFound      = errors.New("elgamal: plaintext outside discrete log bound")
)

const (
	blindingBaseMsg = "ctbal/pedersen/blinding-base"
	blindingBaseDST = "CTBAL-V01-BN254G1_XMD:SHA-256_SSWU_RO_"
)

var (
	basesOnce sync.Once
	baseG     bn254.G1Affine
	baseH     bn254.G1Affine
)

func bases() {
	basesOnce.Do(func() {
		_, _, baseG, _ = bn254.Generators()
		h, err := bn254.HashToG1([]byte(blindingBaseMsg), []byte(blindingBaseDST))
		if err != nil {
			panic("elgamal: cannot derive blinding base: " + err.Error())
		}
		baseH = h
	})
}

// G returns the value base used for amounts.
func G() bn254.G1Affine {
	bases()
	return baseG
}

// H returns the blinding base. Nobody knows log_G(H).
func H() bn254.G1Affine {
	bases()
	return baseH
}

func bigOf(s *fr.Element) *big.Int {
	return s.BigInt(new(big.Int))
}

// Mul returns s·p.
func Mul(p *bn254.G1Affine, s *fr.Element) bn254.G1Affine {
	var out bn254.G1Affine
	out.ScalarMultiplication(p, bigOf(s))
	return out
}

// MulG returns s·G.
func MulG(s *fr.Element) bn254.G1Affine {
	g := G()
	return Mul(&g, s)
}

// MulH returns s·H.
func MulH(s *fr.Element) bn254.G1Affine {
	h := H()
	return Mul(&h, s)
}

// Add returns a+b.
func Add(a, b *bn254.G1Affine) bn254.G1Affine {
	var out bn254.G1Affine
	out.Add(a, b)
	return out
}

// Sub returns a-b.
func Sub(a, b *bn254.G1Affine) bn254.G1Affine {
	var out bn254.G1Affine
	out.Sub(a, b)
	return out
}

// ScalarFromUint64 lifts a plaintext amount into the scalar field.
func ScalarFromUint64(v uint64) fr.Element {
	var s fr.Element
	s.SetUint64(v)
	return s
}

// RandomScalar draws a uniformly random non-zero scalar.
func RandomScalar() (fr.Element, error) {
	var s fr.Element
	for {
		if _, err := s.SetRandom(); err != nil {
			return fr.Element{}, err
		}
		if !s.IsZero() {
			return s, nil
		}
	}
}

// ScalarFromBytes decodes a canonical 32-byte scalar.
func ScalarFromBytes(b []byte) (fr.Element, error) {
	var s fr.Element
	if err := s.SetBytesCanonical(b); err != nil {
		return fr.Element{}, ErrInvalidScalar
	}
	return s, nil
}

// ScalarFromWide reduces an arbitrary length big-endian digest into a scalar.
func ScalarFromWide(b []byte) fr.Element {
	var s fr.Element
	s.SetBytes(b)
	return s
}

// Compress encodes a group element.
func Compress(p *bn254.G1Affine) Point {
	return Point(p.Bytes())
}

// Decompress decodes a group element, rejecting anything off the curve.
func (p Point) Decompress() (bn254.G1Affine, error) {
	var out bn254.G1Affine
	if _, err := out.SetBytes(p[:]); err != nil {
		return bn254.G1Affine{}, ErrInvalidPoint
	}
	return out, nil
}

// IdentityPoint is the compressed point at infinity.
func IdentityPoint() Point {
	var inf bn254.G1Affine
	return Compress(&inf)
}
