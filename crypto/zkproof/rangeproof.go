package zkproof

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/tos-network/ctbal/crypto/elgamal"
)

const (
	BitProofSize = elgamal.PointSize + 4*elgamal.ScalarSize
	maxRangeBits = 64
)

// BitProof shows that Com commits to 0 or 1 with a two-branch OR proof of
// knowledge of log_H(Com) or log_H(Com - G).
type BitProof struct {
	Com    elgamal.Point
	C0, C1 fr.Element
	S0, S1 fr.Element
}

// RangeData proves that every commitment opens to a value below 2^Bits[i].
// The bit commitments of each value sum back to its commitment under
// powers of two, so the bound follows from the per-bit proofs.
type RangeData struct {
	Commitments []elgamal.Point
	Bits        []uint8
	Proofs      []BitProof
}

// RangeDataSize returns the encoded size of a range proof over the given widths.
func RangeDataSize(bits ...uint8) int {
	total := 1
	for _, b := range bits {
		total += elgamal.PointSize + 1 + int(b)*BitProofSize
	}
	return total
}

func (d *RangeData) transcript() *Transcript {
	t := NewTranscript("bit-decomposition-range")
	for i, com := range d.Commitments {
		t.AppendPoint("commitment", com)
		t.AppendU64("bits", uint64(d.Bits[i]))
	}
	return t
}

func pow2(i int) fr.Element {
	var s fr.Element
	s.SetBigInt(new(big.Int).Lsh(big.NewInt(1), uint(i)))
	return s
}

// ProveRange proves values[i] < 2^bits[i] for the commitments opened by openings.
func ProveRange(values []uint64, bits []uint8, openings []*elgamal.Opening) (*RangeData, error) {
	if len(values) != len(bits) || len(values) != len(openings) || len(values) == 0 || len(values) > 255 {
		return nil, ErrMalformedProof
	}
	d := &RangeData{Commitments: make([]elgamal.Point, len(values)), Bits: append([]uint8(nil), bits...)}
	for i, v := range values {
		if bits[i] == 0 || bits[i] > maxRangeBits {
			return nil, ErrMalformedProof
		}
		if bits[i] < 64 && v>>bits[i] != 0 {
			return nil, ErrValueOutOfRange
		}
		d.Commitments[i] = elgamal.Commit(v, openings[i]).Point()
	}
	t := d.transcript()
	for i, v := range values {
		proofs, err := proveBits(t, v, int(bits[i]), openings[i])
		if err != nil {
			return nil, err
		}
		d.Proofs = append(d.Proofs, proofs...)
	}
	return d, nil
}

// proveBits splits the opening r into per-bit openings r_j with
// sum(2^j·r_j) == r and proves each bit commitment.
func proveBits(t *Transcript, v uint64, n int, opening *elgamal.Opening) ([]BitProof, error) {
	rs := make([]fr.Element, n)
	var acc fr.Element
	for j := 0; j < n-1; j++ {
		r, err := elgamal.RandomScalar()
		if err != nil {
			return nil, err
		}
		rs[j] = r
		p := pow2(j)
		p.Mul(&p, &r)
		acc.Add(&acc, &p)
	}
	last := opening.Scalar()
	last.Sub(&last, &acc)
	inv := pow2(n - 1)
	inv.Inverse(&inv)
	rs[n-1].Mul(&last, &inv)

	g, h := elgamal.G(), elgamal.H()
	out := make([]BitProof, n)
	for j := 0; j < n; j++ {
		bit := (v >> uint(j)) & 1
		com := elgamal.Commit(bit, elgamal.OpeningFromScalar(rs[j]))
		X := [2]bn254.G1Affine{com.Affine()}
		X[1] = elgamal.Sub(&X[0], &g)

		k, err := elgamal.RandomScalar()
		if err != nil {
			return nil, err
		}
		fakeC, err := elgamal.RandomScalar()
		if err != nil {
			return nil, err
		}
		fakeS, err := elgamal.RandomScalar()
		if err != nil {
			return nil, err
		}
		var A [2]bn254.G1Affine
		A[bit] = elgamal.MulH(&k)
		sh := elgamal.Mul(&h, &fakeS)
		cx := elgamal.Mul(&X[1-bit], &fakeC)
		A[1-bit] = elgamal.Sub(&sh, &cx)

		bp := BitProof{Com: com.Point()}
		c := bitChallenge(t, bp.Com, &A)

		var realC, realS fr.Element
		realC.Sub(&c, &fakeC)
		realS.Mul(&realC, &rs[j]).Add(&realS, &k)
		if bit == 0 {
			bp.C0, bp.S0, bp.C1, bp.S1 = realC, realS, fakeC, fakeS
		} else {
			bp.C0, bp.S0, bp.C1, bp.S1 = fakeC, fakeS, realC, realS
		}
		out[j] = bp
	}
	return out, nil
}

func bitChallenge(t *Transcript, com elgamal.Point, A *[2]bn254.G1Affine) fr.Element {
	t.AppendPoint("bit", com)
	t.AppendPoint("A0", elgamal.Compress(&A[0]))
	t.AppendPoint("A1", elgamal.Compress(&A[1]))
	return t.ChallengeScalar("c")
}

func (d *RangeData) Kind() Kind { return KindRange }

// Verify recomputes A_j = s_j·H - c_j·X_j for every bit, checks the
// challenge split c0 + c1, and checks the bits recompose each commitment.
func (d *RangeData) Verify() error {
	if len(d.Commitments) == 0 || len(d.Commitments) != len(d.Bits) {
		return ErrMalformedProof
	}
	total := 0
	for _, b := range d.Bits {
		if b == 0 || b > maxRangeBits {
			return ErrMalformedProof
		}
		total += int(b)
	}
	if len(d.Proofs) != total {
		return ErrMalformedProof
	}
	g, h := elgamal.G(), elgamal.H()
	t := d.transcript()
	next := 0
	for i, compressed := range d.Commitments {
		want, err := compressed.Decompress()
		if err != nil {
			return ErrInvalidProof
		}
		n := int(d.Bits[i])
		var sum bn254.G1Jac
		for j := 0; j < n; j++ {
			bp := &d.Proofs[next+j]
			com, err := bp.Com.Decompress()
			if err != nil {
				return ErrInvalidProof
			}
			X := [2]bn254.G1Affine{com}
			X[1] = elgamal.Sub(&com, &g)
			var A [2]bn254.G1Affine
			for b, pair := range [2][2]*fr.Element{{&bp.S0, &bp.C0}, {&bp.S1, &bp.C1}} {
				sh := elgamal.Mul(&h, pair[0])
				cx := elgamal.Mul(&X[b], pair[1])
				A[b] = elgamal.Sub(&sh, &cx)
			}
			c := bitChallenge(t, bp.Com, &A)
			var split fr.Element
			split.Add(&bp.C0, &bp.C1)
			if !split.Equal(&c) {
				return ErrInvalidProof
			}
			p := pow2(j)
			term := elgamal.Mul(&com, &p)
			sum.AddMixed(&term)
		}
		var got bn254.G1Affine
		got.FromJacobian(&sum)
		if !got.Equal(&want) {
			return ErrInvalidProof
		}
		next += n
	}
	return nil
}

func (d *RangeData) MarshalBinary() ([]byte, error) {
	if len(d.Commitments) != len(d.Bits) || len(d.Commitments) > 255 {
		return nil, ErrMalformedProof
	}
	e := encoder{buf: make([]byte, 0, RangeDataSize(d.Bits...))}
	e.u8(uint8(len(d.Commitments)))
	for i, com := range d.Commitments {
		e.point(com)
		e.u8(d.Bits[i])
	}
	for i := range d.Proofs {
		bp := &d.Proofs[i]
		e.point(bp.Com)
		e.scalar(&bp.C0)
		e.scalar(&bp.C1)
		e.scalar(&bp.S0)
		e.scalar(&bp.S1)
	}
	return e.buf, nil
}

func (d *RangeData) UnmarshalBinary(b []byte) error {
	dec := decoder{buf: b}
	n := int(dec.u8())
	d.Commitments = make([]elgamal.Point, n)
	d.Bits = make([]uint8, n)
	total := 0
	for i := 0; i < n; i++ {
		d.Commitments[i] = dec.point()
		d.Bits[i] = dec.u8()
		total += int(d.Bits[i])
	}
	if dec.err != nil {
		return dec.err
	}
	if len(dec.buf) != total*BitProofSize {
		return ErrMalformedProof
	}
	d.Proofs = make([]BitProof, total)
	for i := range d.Proofs {
		bp := &d.Proofs[i]
		bp.Com = dec.point()
		bp.C0, bp.C1 = dec.scalar(), dec.scalar()
		bp.S0, bp.S1 = dec.scalar(), dec.scalar()
	}
	return dec.finish()
}
