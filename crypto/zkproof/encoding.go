package zkproof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/tos-network/ctbal/crypto/elgamal"
)

type encoder struct {
	buf []byte
}

func (e *encoder) point(p elgamal.Point) { e.buf = append(e.buf, p[:]...) }

func (e *encoder) scalar(s *fr.Element) {
	b := s.Bytes()
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u8(v uint8) { e.buf = append(e.buf, v) }

func (e *encoder) raw(b []byte) { e.buf = append(e.buf, b...) }

// decoder reads fixed-width fields and records the first failure.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < n {
		d.err = ErrMalformedProof
		return nil
	}
	out := d.buf[:n]
	d.buf = d.buf[n:]
	return out
}

func (d *decoder) point() elgamal.Point {
	var p elgamal.Point
	copy(p[:], d.take(elgamal.PointSize))
	return p
}

func (d *decoder) scalar() fr.Element {
	b := d.take(elgamal.ScalarSize)
	if d.err != nil {
		return fr.Element{}
	}
	s, err := elgamal.ScalarFromBytes(b)
	if err != nil {
		d.err = ErrMalformedProof
	}
	return s
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if d.err != nil {
		return 0
	}
	return b[0]
}

func (d *decoder) ciphertext() elgamal.Ciphertext {
	return elgamal.Ciphertext{Commitment: d.point(), Handle: d.point()}
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.buf) != 0 {
		return ErrMalformedProof
	}
	return nil
}

// affine decompresses a list of points, failing on the first invalid one.
func affine(points ...elgamal.Point) ([]bn254.G1Affine, error) {
	out := make([]bn254.G1Affine, len(points))
	for i, p := range points {
		a, err := p.Decompress()
		if err != nil {
			return nil, ErrInvalidProof
		}
		out[i] = a
	}
	return out, nil
}

// combine returns a·P + b·Q.
func combine(p *bn254.G1Affine, a *fr.Element, q *bn254.G1Affine, b *fr.Element) bn254.G1Affine {
	ap := elgamal.Mul(p, a)
	bq := elgamal.Mul(q, b)
	return elgamal.Add(&ap, &bq)
}
