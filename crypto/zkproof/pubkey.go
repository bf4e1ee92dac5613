package zkproof

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/tos-network/ctbal/crypto/elgamal"
)

const (
	PubkeyValidityProofSize = elgamal.PointSize + elgamal.ScalarSize
	PubkeyValidityDataSize  = elgamal.PointSize + PubkeyValidityProofSize
)

// PubkeyValidityData proves knowledge of s with s·P = H, i.e. that the
// registered key can actually decrypt.
type PubkeyValidityData struct {
	Pubkey elgamal.PublicKey
	Y      elgamal.Point
	Z      fr.Element
}

func pubkeyTranscript(pub elgamal.PublicKey) *Transcript {
	t := NewTranscript("pubkey-validity")
	t.AppendPoint("pubkey", elgamal.Point(pub))
	return t
}

// ProvePubkeyValidity proves ownership of kp.
func ProvePubkeyValidity(kp *elgamal.Keypair) (*PubkeyValidityData, error) {
	p, err := kp.Public.Point()
	if err != nil {
		return nil, err
	}
	y, err := elgamal.RandomScalar()
	if err != nil {
		return nil, err
	}
	Y := elgamal.Mul(&p, &y)
	d := &PubkeyValidityData{Pubkey: kp.Public, Y: elgamal.Compress(&Y)}

	t := pubkeyTranscript(kp.Public)
	t.AppendPoint("Y", d.Y)
	c := t.ChallengeScalar("c")

	s := kp.Secret.Scalar()
	d.Z.Mul(&c, &s)
	d.Z.Add(&d.Z, &y)
	return d, nil
}

func (d *PubkeyValidityData) Kind() Kind { return KindPubkeyValidity }

// Verify checks z·P == c·H + Y.
func (d *PubkeyValidityData) Verify() error {
	pts, err := affine(elgamal.Point(d.Pubkey), d.Y)
	if err != nil {
		return err
	}
	if pts[0].IsInfinity() {
		return ErrInvalidProof
	}
	t := pubkeyTranscript(d.Pubkey)
	t.AppendPoint("Y", d.Y)
	c := t.ChallengeScalar("c")

	lhs := elgamal.Mul(&pts[0], &d.Z)
	ch := elgamal.MulH(&c)
	rhs := elgamal.Add(&ch, &pts[1])
	if !lhs.Equal(&rhs) {
		return ErrInvalidProof
	}
	return nil
}

func (d *PubkeyValidityData) MarshalBinary() ([]byte, error) {
	e := encoder{buf: make([]byte, 0, PubkeyValidityDataSize)}
	e.point(elgamal.Point(d.Pubkey))
	e.point(d.Y)
	e.scalar(&d.Z)
	return e.buf, nil
}

func (d *PubkeyValidityData) UnmarshalBinary(b []byte) error {
	dec := decoder{buf: b}
	d.Pubkey = elgamal.PublicKey(dec.point())
	d.Y = dec.point()
	d.Z = dec.scalar()
	return dec.finish()
}
