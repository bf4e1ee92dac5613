package elgamal

import (
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Opening is the randomness r behind a commitment or ciphertext.
type Opening struct {
	r fr.Element
}

// NewOpening draws fresh randomness.
func NewOpening() (*Opening, error) {
	r, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	return &Opening{r: r}, nil
}

// OpeningFromScalar wraps an existing scalar.
func OpeningFromScalar(r fr.Element) *Opening { return &Opening{r: r} }

// Scalar returns a copy of r.
func (o *Opening) Scalar() fr.Element { return o.r }

// Commitment is a Pedersen commitment m·G + r·H.
type Commitment struct {
	p bn254.G1Affine
}

// Commit computes amount·G + r·H.
func Commit(amount uint64, opening *Opening) Commitment {
	v := ScalarFromUint64(amount)
	return CommitScalar(&v, opening)
}

// CommitScalar commits to an arbitrary scalar value.
func CommitScalar(v *fr.Element, opening *Opening) Commitment {
	vg := MulG(v)
	rh := MulH(&opening.r)
	return Commitment{p: Add(&vg, &rh)}
}

// CommitmentFromPoint wraps a compressed commitment.
func CommitmentFromPoint(p Point) (Commitment, error) {
	dec, err := p.Decompress()
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{p: dec}, nil
}

// Point returns the compressed commitment.
func (c Commitment) Point() Point { return Compress(&c.p) }

// Affine returns the underlying group element.
func (c Commitment) Affine() bn254.G1Affine { return c.p }

// GroupedCiphertext shares one commitment across decrypt handles for
// several public keys, so each holder can decrypt the same amount.
type GroupedCiphertext struct {
	Commitment Point
	Handles    []Point
}

// EncryptGrouped encrypts amount once for every key in pubs.
func EncryptGrouped(pubs []PublicKey, amount uint64, opening *Opening) (GroupedCiphertext, error) {
	com := Commit(amount, opening)
	out := GroupedCiphertext{Commitment: com.Point(), Handles: make([]Point, len(pubs))}
	for i, pub := range pubs {
		p, err := pub.Point()
		if err != nil {
			return GroupedCiphertext{}, err
		}
		h := Mul(&p, &opening.r)
		out.Handles[i] = Compress(&h)
	}
	return out, nil
}

// Ciphertext extracts the plain ciphertext readable by the i-th key holder.
func (g GroupedCiphertext) Ciphertext(i int) (Ciphertext, error) {
	if i < 0 || i >= len(g.Handles) {
		return Ciphertext{}, ErrInvalidPoint
	}
	return Ciphertext{Commitment: g.Commitment, Handle: g.Handles[i]}, nil
}

// Bytes returns commitment||handle_0||...||handle_n.
func (g GroupedCiphertext) Bytes() []byte {
	out := make([]byte, 0, PointSize*(1+len(g.Handles)))
	out = append(out, g.Commitment[:]...)
	for _, h := range g.Handles {
		out = append(out, h[:]...)
	}
	return out
}

// GroupedCiphertextFromBytes decodes a grouped ciphertext with n handles.
func GroupedCiphertextFromBytes(b []byte, n int) (GroupedCiphertext, error) {
	if len(b) != PointSize*(1+n) {
		return GroupedCiphertext{}, ErrInvalidPoint
	}
	var g GroupedCiphertext
	copy(g.Commitment[:], b[:PointSize])
	g.Handles = make([]Point, n)
	for i := range g.Handles {
		copy(g.Handles[i][:], b[PointSize*(i+1):])
	}
	if _, err := g.Commitment.Decompress(); err != nil {
		return GroupedCiphertext{}, err
	}
	for _, h := range g.Handles {
		if _, err := h.Decompress(); err != nil {
			return GroupedCiphertext{}, err
		}
	}
	return g, nil
}
