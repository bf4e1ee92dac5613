package zkproof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/tos-network/ctbal/crypto/elgamal"
)

const (
	EqualityProofSize = 3*elgamal.PointSize + 3*elgamal.ScalarSize
	EqualityDataSize  = elgamal.PointSize + elgamal.CiphertextSize + elgamal.PointSize + EqualityProofSize
)

// EqualityData proves that Ciphertext (under Pubkey) and the Pedersen
// Commitment hide the same value, without revealing it.
type EqualityData struct {
	Pubkey     elgamal.PublicKey
	Ciphertext elgamal.Ciphertext
	Commitment elgamal.Point

	Y0, Y1, Y2 elgamal.Point
	Zs, Zx, Zr fr.Element
}

func (d *EqualityData) transcript() *Transcript {
	t := NewTranscript("ciphertext-commitment-equality")
	t.AppendPoint("pubkey", elgamal.Point(d.Pubkey))
	t.AppendCiphertext("ciphertext", d.Ciphertext)
	t.AppendPoint("commitment", d.Commitment)
	return t
}

func (d *EqualityData) challenge() fr.Element {
	t := d.transcript()
	t.AppendPoint("Y0", d.Y0)
	t.AppendPoint("Y1", d.Y1)
	t.AppendPoint("Y2", d.Y2)
	return t.ChallengeScalar("c")
}

// ProveEquality proves ct (encrypted to kp) holds amount, the same value
// committed to with opening.
func ProveEquality(kp *elgamal.Keypair, ct elgamal.Ciphertext, amount uint64, opening *elgamal.Opening) (*EqualityData, error) {
	pts, err := affine(elgamal.Point(kp.Public), ct.Handle)
	if err != nil {
		return nil, err
	}
	P, D := pts[0], pts[1]
	com := elgamal.Commit(amount, opening)
	d := &EqualityData{Pubkey: kp.Public, Ciphertext: ct, Commitment: com.Point()}

	var ys, yx, yr fr.Element
	for _, y := range []*fr.Element{&ys, &yx, &yr} {
		if *y, err = elgamal.RandomScalar(); err != nil {
			return nil, err
		}
	}
	g, h := elgamal.G(), elgamal.H()
	Y0 := elgamal.Mul(&P, &ys)
	Y1 := combine(&g, &yx, &D, &ys)
	Y2 := combine(&g, &yx, &h, &yr)
	d.Y0, d.Y1, d.Y2 = elgamal.Compress(&Y0), elgamal.Compress(&Y1), elgamal.Compress(&Y2)

	c := d.challenge()
	s := kp.Secret.Scalar()
	x := elgamal.ScalarFromUint64(amount)
	r := opening.Scalar()
	d.Zs.Mul(&c, &s).Add(&d.Zs, &ys)
	d.Zx.Mul(&c, &x).Add(&d.Zx, &yx)
	d.Zr.Mul(&c, &r).Add(&d.Zr, &yr)
	return d, nil
}

func (d *EqualityData) Kind() Kind { return KindCiphertextCommitmentEquality }

// Verify checks
//
//	zs·P          == c·H   + Y0
//	zx·G + zs·D   == c·C   + Y1
//	zx·G + zr·H   == c·Com + Y2
func (d *EqualityData) Verify() error {
	pts, err := affine(elgamal.Point(d.Pubkey), d.Ciphertext.Commitment, d.Ciphertext.Handle, d.Commitment, d.Y0, d.Y1, d.Y2)
	if err != nil {
		return err
	}
	P, C, D, Com, Y0, Y1, Y2 := pts[0], pts[1], pts[2], pts[3], pts[4], pts[5], pts[6]
	if P.IsInfinity() {
		return ErrInvalidProof
	}
	c := d.challenge()
	g, h := elgamal.G(), elgamal.H()

	lhs0 := elgamal.Mul(&P, &d.Zs)
	ch := elgamal.Mul(&h, &c)
	rhs0 := elgamal.Add(&ch, &Y0)

	lhs1 := combine(&g, &d.Zx, &D, &d.Zs)
	cC := elgamal.Mul(&C, &c)
	rhs1 := elgamal.Add(&cC, &Y1)

	lhs2 := combine(&g, &d.Zx, &h, &d.Zr)
	cCom := elgamal.Mul(&Com, &c)
	rhs2 := elgamal.Add(&cCom, &Y2)

	if !lhs0.Equal(&rhs0) || !lhs1.Equal(&rhs1) || !lhs2.Equal(&rhs2) {
		return ErrInvalidProof
	}
	return nil
}

func (d *EqualityData) MarshalBinary() ([]byte, error) {
	e := encoder{buf: make([]byte, 0, EqualityDataSize)}
	e.point(elgamal.Point(d.Pubkey))
	e.raw(d.Ciphertext.Bytes())
	e.point(d.Commitment)
	e.point(d.Y0)
	e.point(d.Y1)
	e.point(d.Y2)
	e.scalar(&d.Zs)
	e.scalar(&d.Zx)
	e.scalar(&d.Zr)
	return e.buf, nil
}

func (d *EqualityData) UnmarshalBinary(b []byte) error {
	dec := decoder{buf: b}
	d.Pubkey = elgamal.PublicKey(dec.point())
	d.Ciphertext = dec.ciphertext()
	d.Commitment = dec.point()
	d.Y0, d.Y1, d.Y2 = dec.point(), dec.point(), dec.point()
	d.Zs, d.Zx, d.Zr = dec.scalar(), dec.scalar(), dec.scalar()
	return dec.finish()
}
