package zkproof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/tos-network/ctbal/crypto/elgamal"
)

// GroupedHandles is the number of decrypt handles on a transfer amount
// ciphertext: source, destination and auditor.
const GroupedHandles = 3

const (
	GroupedValidityProofSize = (1+GroupedHandles)*elgamal.PointSize + 2*elgamal.ScalarSize
	groupedCiphertextSize    = (1 + GroupedHandles) * elgamal.PointSize
	GroupedValidityDataSize  = GroupedHandles*elgamal.PointSize + 2*groupedCiphertextSize + GroupedValidityProofSize
)

// GroupedValidityData proves that the low and high transfer amount
// ciphertexts are well formed: each commitment C = x·G + r·H shares its r
// with every handle D_i = r·P_i. An absent auditor is the identity key.
type GroupedValidityData struct {
	Pubkeys [GroupedHandles]elgamal.PublicKey
	Lo, Hi  elgamal.GroupedCiphertext

	Y0 elgamal.Point
	Yi [GroupedHandles]elgamal.Point
	Zx fr.Element
	Zr fr.Element
}

func (d *GroupedValidityData) transcript() *Transcript {
	t := NewTranscript("grouped-ciphertext-validity")
	for _, pk := range d.Pubkeys {
		t.AppendPoint("pubkey", elgamal.Point(pk))
	}
	t.AppendMessage("lo", d.Lo.Bytes())
	t.AppendMessage("hi", d.Hi.Bytes())
	return t
}

// batched folds lo and hi into C = C_lo + t·C_hi, D_i = D_lo,i + t·D_hi,i.
func (d *GroupedValidityData) batched(t *fr.Element) (bn254.G1Affine, [GroupedHandles]bn254.G1Affine, error) {
	var ds [GroupedHandles]bn254.G1Affine
	if len(d.Lo.Handles) != GroupedHandles || len(d.Hi.Handles) != GroupedHandles {
		return bn254.G1Affine{}, ds, ErrMalformedProof
	}
	pts, err := affine(d.Lo.Commitment, d.Hi.Commitment)
	if err != nil {
		return bn254.G1Affine{}, ds, err
	}
	tHi := elgamal.Mul(&pts[1], t)
	c := elgamal.Add(&pts[0], &tHi)
	for i := 0; i < GroupedHandles; i++ {
		hs, err := affine(d.Lo.Handles[i], d.Hi.Handles[i])
		if err != nil {
			return bn254.G1Affine{}, ds, err
		}
		th := elgamal.Mul(&hs[1], t)
		ds[i] = elgamal.Add(&hs[0], &th)
	}
	return c, ds, nil
}

// ProveGroupedValidity proves lo and hi encrypt amountLo and amountHi
// with the given openings under pubs.
func ProveGroupedValidity(pubs [GroupedHandles]elgamal.PublicKey, lo, hi elgamal.GroupedCiphertext, amountLo, amountHi uint64, openLo, openHi *elgamal.Opening) (*GroupedValidityData, error) {
	d := &GroupedValidityData{Pubkeys: pubs, Lo: lo, Hi: hi}
	t := d.transcript()
	batch := t.ChallengeScalar("t")

	var ps [GroupedHandles]bn254.G1Affine
	for i, pk := range pubs {
		p, err := pk.Point()
		if err != nil {
			return nil, err
		}
		ps[i] = p
	}
	yx, err := elgamal.RandomScalar()
	if err != nil {
		return nil, err
	}
	yr, err := elgamal.RandomScalar()
	if err != nil {
		return nil, err
	}
	g, h := elgamal.G(), elgamal.H()
	Y0 := combine(&g, &yx, &h, &yr)
	d.Y0 = elgamal.Compress(&Y0)
	t.AppendPoint("Y0", d.Y0)
	for i := range ps {
		Y := elgamal.Mul(&ps[i], &yr)
		d.Yi[i] = elgamal.Compress(&Y)
		t.AppendPoint("Yi", d.Yi[i])
	}
	c := t.ChallengeScalar("c")

	xLo, xHi := elgamal.ScalarFromUint64(amountLo), elgamal.ScalarFromUint64(amountHi)
	rLo, rHi := openLo.Scalar(), openHi.Scalar()
	var x, r fr.Element
	x.Mul(&batch, &xHi).Add(&x, &xLo)
	r.Mul(&batch, &rHi).Add(&r, &rLo)

	d.Zx.Mul(&c, &x).Add(&d.Zx, &yx)
	d.Zr.Mul(&c, &r).Add(&d.Zr, &yr)
	return d, nil
}

func (d *GroupedValidityData) Kind() Kind { return KindGroupedCiphertextValidity }

// Verify checks zx·G + zr·H == c·C + Y0 and zr·P_i == c·D_i + Y_i.
func (d *GroupedValidityData) Verify() error {
	t := d.transcript()
	batch := t.ChallengeScalar("t")
	t.AppendPoint("Y0", d.Y0)
	for i := range d.Yi {
		t.AppendPoint("Yi", d.Yi[i])
	}
	c := t.ChallengeScalar("c")

	C, D, err := d.batched(&batch)
	if err != nil {
		return err
	}
	g, h := elgamal.G(), elgamal.H()
	ys, err := affine(d.Y0)
	if err != nil {
		return err
	}
	lhs := combine(&g, &d.Zx, &h, &d.Zr)
	cC := elgamal.Mul(&C, &c)
	rhs := elgamal.Add(&cC, &ys[0])
	if !lhs.Equal(&rhs) {
		return ErrInvalidProof
	}
	for i := 0; i < GroupedHandles; i++ {
		pts, err := affine(elgamal.Point(d.Pubkeys[i]), d.Yi[i])
		if err != nil {
			return err
		}
		lhs := elgamal.Mul(&pts[0], &d.Zr)
		cD := elgamal.Mul(&D[i], &c)
		rhs := elgamal.Add(&cD, &pts[1])
		if !lhs.Equal(&rhs) {
			return ErrInvalidProof
		}
	}
	// The destination must be a real key, otherwise nobody can read the credit.
	if d.Pubkeys[1].IsIdentity() {
		return ErrInvalidProof
	}
	return nil
}

func (d *GroupedValidityData) MarshalBinary() ([]byte, error) {
	if len(d.Lo.Handles) != GroupedHandles || len(d.Hi.Handles) != GroupedHandles {
		return nil, ErrMalformedProof
	}
	e := encoder{buf: make([]byte, 0, GroupedValidityDataSize)}
	for _, pk := range d.Pubkeys {
		e.point(elgamal.Point(pk))
	}
	e.raw(d.Lo.Bytes())
	e.raw(d.Hi.Bytes())
	e.point(d.Y0)
	for _, y := range d.Yi {
		e.point(y)
	}
	e.scalar(&d.Zx)
	e.scalar(&d.Zr)
	return e.buf, nil
}

func (d *GroupedValidityData) UnmarshalBinary(b []byte) error {
	dec := decoder{buf: b}
	for i := range d.Pubkeys {
		d.Pubkeys[i] = elgamal.PublicKey(dec.point())
	}
	d.Lo = dec.grouped()
	d.Hi = dec.grouped()
	d.Y0 = dec.point()
	for i := range d.Yi {
		d.Yi[i] = dec.point()
	}
	d.Zx = dec.scalar()
	d.Zr = dec.scalar()
	return dec.finish()
}

func (d *decoder) grouped() elgamal.GroupedCiphertext {
	g := elgamal.GroupedCiphertext{Commitment: d.point(), Handles: make([]elgamal.Point, GroupedHandles)}
	for i := range g.Handles {
		g.Handles[i] = d.point()
	}
	return g
}
