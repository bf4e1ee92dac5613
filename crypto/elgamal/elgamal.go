package elgamal

import (
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// SecretKey is the ElGamal secret scalar s.
type SecretKey struct {
	s fr.Element
}

// PublicKey is P = s^-1·H in compressed form.
type PublicKey Point

// Keypair couples a secret with its public key.
type Keypair struct {
	Secret SecretKey
	Public PublicKey
}

// Ciphertext is a twisted ElGamal ciphertext (C = m·G + r·H, D = r·P).
type Ciphertext struct {
	Commitment Point
	Handle     Point
}

// NewSecretKey wraps a non-zero scalar.
func NewSecretKey(s fr.Element) (*SecretKey, error) {
	if s.IsZero() {
		return nil, ErrZeroSecret
	}
	return &SecretKey{s: s}, nil
}

// SecretKeyFromBytes decodes a canonical secret scalar.
func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	s, err := ScalarFromBytes(b)
	if err != nil {
		return nil, err
	}
	return NewSecretKey(s)
}

// Scalar returns a copy of the secret scalar.
func (k *SecretKey) Scalar() fr.Element { return k.s }

// Bytes returns the canonical encoding of the secret scalar.
func (k *SecretKey) Bytes() [ScalarSize]byte { return k.s.Bytes() }

// PublicKey derives P = s^-1·H.
func (k *SecretKey) PublicKey() PublicKey {
	var inv fr.Element
	inv.Inverse(&k.s)
	p := MulH(&inv)
	return PublicKey(Compress(&p))
}

// NewKeypair derives the keypair for a secret.
func NewKeypair(secret *SecretKey) *Keypair {
	return &Keypair{Secret: *secret, Public: secret.PublicKey()}
}

// GenerateKeypair creates a keypair from fresh randomness.
func GenerateKeypair() (*Keypair, error) {
	s, err := RandomScalar()
	if err != nil {
		return nil, err
	}
	sk, err := NewSecretKey(s)
	if err != nil {
		return nil, err
	}
	return NewKeypair(sk), nil
}

// Point decompresses the public key.
func (p PublicKey) Point() (bn254.G1Affine, error) {
	return Point(p).Decompress()
}

// IsIdentity reports whether the key is the unset (infinity) key.
func (p PublicKey) IsIdentity() bool {
	return Point(p) == IdentityPoint()
}

// ZeroCiphertext is the canonical encryption of zero with zero randomness.
func ZeroCiphertext() Ciphertext {
	id := IdentityPoint()
	return Ciphertext{Commitment: id, Handle: id}
}

// EncryptWithOpening encrypts amount under pub using the given randomness.
func EncryptWithOpening(pub PublicKey, amount uint64, opening *Opening) (Ciphertext, error) {
	p, err := pub.Point()
	if err != nil {
		return Ciphertext{}, err
	}
	com := Commit(amount, opening)
	handle := Mul(&p, &opening.r)
	return Ciphertext{Commitment: com.Point(), Handle: Compress(&handle)}, nil
}

// Encrypt encrypts amount under pub with fresh randomness.
func Encrypt(pub PublicKey, amount uint64) (Ciphertext, *Opening, error) {
	opening, err := NewOpening()
	if err != nil {
		return Ciphertext{}, nil, err
	}
	ct, err := EncryptWithOpening(pub, amount, opening)
	if err != nil {
		return Ciphertext{}, nil, err
	}
	return ct, opening, nil
}

// DecryptToPoint returns m·G = C - s·D.
func DecryptToPoint(secret *SecretKey, ct Ciphertext) (bn254.G1Affine, error) {
	c, err := ct.Commitment.Decompress()
	if err != nil {
		return bn254.G1Affine{}, err
	}
	d, err := ct.Handle.Decompress()
	if err != nil {
		return bn254.G1Affine{}, err
	}
	sd := Mul(&d, &secret.s)
	return Sub(&c, &sd), nil
}

// Decrypt recovers the plaintext of ct, provided it is below DecryptBound.
func Decrypt(secret *SecretKey, ct Ciphertext) (uint64, error) {
	m, err := DecryptToPoint(secret, ct)
	if err != nil {
		return 0, err
	}
	return SolveDiscreteLog(&m, DefaultDecryptBound)
}

// Verify reports whether ct encrypts exactly amount under secret. It does
// not depend on the plaintext being small.
func Verify(secret *SecretKey, ct Ciphertext, amount uint64) (bool, error) {
	m, err := DecryptToPoint(secret, ct)
	if err != nil {
		return false, err
	}
	v := ScalarFromUint64(amount)
	want := MulG(&v)
	return m.Equal(&want), nil
}

func (ct Ciphertext) points() (c, d bn254.G1Affine, err error) {
	if c, err = ct.Commitment.Decompress(); err != nil {
		return
	}
	d, err = ct.Handle.Decompress()
	return
}

// Add returns the component-wise sum a+b, which encrypts the sum of plaintexts.
func (ct Ciphertext) Add(other Ciphertext) (Ciphertext, error) {
	ac, ad, err := ct.points()
	if err != nil {
		return Ciphertext{}, err
	}
	bc, bd, err := other.points()
	if err != nil {
		return Ciphertext{}, err
	}
	c, d := Add(&ac, &bc), Add(&ad, &bd)
	return Ciphertext{Commitment: Compress(&c), Handle: Compress(&d)}, nil
}

// Sub returns the component-wise difference a-b.
func (ct Ciphertext) Sub(other Ciphertext) (Ciphertext, error) {
	ac, ad, err := ct.points()
	if err != nil {
		return Ciphertext{}, err
	}
	bc, bd, err := other.points()
	if err != nil {
		return Ciphertext{}, err
	}
	c, d := Sub(&ac, &bc), Sub(&ad, &bd)
	return Ciphertext{Commitment: Compress(&c), Handle: Compress(&d)}, nil
}

// MulScalar returns k·ct, which encrypts k times the plaintext.
func (ct Ciphertext) MulScalar(k *fr.Element) (Ciphertext, error) {
	c, d, err := ct.points()
	if err != nil {
		return Ciphertext{}, err
	}
	kc, kd := Mul(&c, k), Mul(&d, k)
	return Ciphertext{Commitment: Compress(&kc), Handle: Compress(&kd)}, nil
}

// AddAmount adds a public amount to the plaintext without touching the handle.
func (ct Ciphertext) AddAmount(amount uint64) (Ciphertext, error) {
	c, err := ct.Commitment.Decompress()
	if err != nil {
		return Ciphertext{}, err
	}
	v := ScalarFromUint64(amount)
	vg := MulG(&v)
	sum := Add(&c, &vg)
	return Ciphertext{Commitment: Compress(&sum), Handle: ct.Handle}, nil
}

// SubAmount subtracts a public amount from the plaintext.
func (ct Ciphertext) SubAmount(amount uint64) (Ciphertext, error) {
	c, err := ct.Commitment.Decompress()
	if err != nil {
		return Ciphertext{}, err
	}
	v := ScalarFromUint64(amount)
	vg := MulG(&v)
	diff := Sub(&c, &vg)
	return Ciphertext{Commitment: Compress(&diff), Handle: ct.Handle}, nil
}

// Bytes returns commitment||handle.
func (ct Ciphertext) Bytes() []byte {
	out := make([]byte, 0, CiphertextSize)
	out = append(out, ct.Commitment[:]...)
	return append(out, ct.Handle[:]...)
}

// CiphertextFromBytes decodes commitment||handle.
func CiphertextFromBytes(b []byte) (Ciphertext, error) {
	if len(b) != CiphertextSize {
		return Ciphertext{}, ErrInvalidPoint
	}
	var ct Ciphertext
	copy(ct.Commitment[:], b[:PointSize])
	copy(ct.Handle[:], b[PointSize:])
	if _, _, err := ct.points(); err != nil {
		return Ciphertext{}, err
	}
	return ct, nil
}

// CombineSplit returns lo + hi·2^loBits, the ciphertext of an amount stored
// as separately encrypted low and high parts.
func CombineSplit(lo, hi Ciphertext, loBits uint) (Ciphertext, error) {
	shift := ScalarFromUint64(uint64(1) << loBits)
	scaled, err := hi.MulScalar(&shift)
	if err != nil {
		return Ciphertext{}, err
	}
	return lo.Add(scaled)
}
