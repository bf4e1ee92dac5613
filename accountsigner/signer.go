package accountsigner

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tos-network/ctbal/common"
)

// Ed25519Signer signs with an ed25519 private key. Signatures are
// deterministic per RFC 8032.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	addr common.Address
}

// NewEd25519Signer wraps a 32-byte seed or a 64-byte private key.
func NewEd25519Signer(key []byte) (*Ed25519Signer, error) {
	var priv ed25519.PrivateKey
	switch len(key) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(key)
	case ed25519.PrivateKeySize:
		priv = append(ed25519.PrivateKey(nil), key...)
	default:
		return nil, ErrInvalidSignerKey
	}
	pub := priv.Public().(ed25519.PublicKey)
	addr, err := AddressFromSigner(SignerTypeEd25519, pub)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv, addr: addr}, nil
}

// GenerateEd25519Signer creates a signer from fresh randomness.
func GenerateEd25519Signer(r io.Reader) (*Ed25519Signer, error) {
	if r == nil {
		r = rand.Reader
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, err
	}
	return NewEd25519Signer(seed)
}

func (s *Ed25519Signer) Type() string { return SignerTypeEd25519 }

func (s *Ed25519Signer) PublicKey() []byte {
	return append([]byte(nil), s.priv.Public().(ed25519.PublicKey)...)
}

func (s *Ed25519Signer) Address() common.Address { return s.addr }

func (s *Ed25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

// Seed returns the 32-byte private seed.
func (s *Ed25519Signer) Seed() []byte { return s.priv.Seed() }

// Secp256k1Signer signs keccak256(msg) with RFC6979 deterministic ECDSA.
type Secp256k1Signer struct {
	priv *btcec.PrivateKey
	addr common.Address
}

// NewSecp256k1Signer wraps a 32-byte secp256k1 private key.
func NewSecp256k1Signer(key []byte) (*Secp256k1Signer, error) {
	if len(key) != secp256k1PrivateKeyLen {
		return nil, ErrInvalidSignerKey
	}
	priv, pub := btcec.PrivKeyFromBytes(key)
	if priv.Key.IsZero() {
		return nil, ErrInvalidSignerKey
	}
	addr, err := AddressFromSigner(SignerTypeSecp256k1, pub.SerializeCompressed())
	if err != nil {
		return nil, err
	}
	return &Secp256k1Signer{priv: priv, addr: addr}, nil
}

// GenerateSecp256k1Signer creates a signer from a fresh private key.
func GenerateSecp256k1Signer() (*Secp256k1Signer, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return NewSecp256k1Signer(priv.Serialize())
}

func (s *Secp256k1Signer) Type() string { return SignerTypeSecp256k1 }

func (s *Secp256k1Signer) PublicKey() []byte { return s.priv.PubKey().SerializeCompressed() }

func (s *Secp256k1Signer) Address() common.Address { return s.addr }

func (s *Secp256k1Signer) Sign(msg []byte) ([]byte, error) {
	sig := btcecdsa.Sign(s.priv, crypto.Keccak256(msg))
	return sig.Serialize(), nil
}

// PrivateKey returns the raw 32-byte private key.
func (s *Secp256k1Signer) PrivateKey() []byte { return s.priv.Serialize() }

// NewSigner builds a signer of the given type from raw private key bytes.
func NewSigner(signerType string, key []byte) (Signer, error) {
	canonical, err := normalizeSignerType(signerType)
	if err != nil {
		return nil, err
	}
	switch canonical {
	case SignerTypeSecp256k1:
		return NewSecp256k1Signer(key)
	default:
		return NewEd25519Signer(key)
	}
}
