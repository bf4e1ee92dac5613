package confidential

import (
	"fmt"
	"io"

	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/crypto/authenc"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

const (
	elgamalSeedMessage = "ElGamalSecretKey"
	aeSeedMessage      = "AeKey"
	aeKeyInfo          = "ctbal/ae-key"
)

// KeyMaterial is derived on demand and never persisted.
type KeyMaterial struct {
	ElGamal *elgamal.Keypair
	AE      *authenc.Key
}

func signSeed(signer accountsigner.Signer, message string, account common.Address) ([]byte, error) {
	msg := make([]byte, 0, len(message)+len(account))
	msg = append(msg, message...)
	msg = append(msg, account[:]...)
	sig, err := signer.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	if isZero(sig) {
		return nil, fmt.Errorf("%w: empty signature", ErrKeyDerivation)
	}
	return sig, nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// DeriveKeyMaterial derives the ElGamal keypair and AE key of account from
// signatures by its owner. The signer must be deterministic.
func DeriveKeyMaterial(signer accountsigner.Signer, account common.Address) (*KeyMaterial, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer", ErrKeyDerivation)
	}
	sig, err := signSeed(signer, elgamalSeedMessage, account)
	if err != nil {
		return nil, err
	}
	digest := sha3.Sum512(sig)
	secret, err := elgamal.NewSecretKey(elgamal.ScalarFromWide(digest[:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}

	aeSig, err := signSeed(signer, aeSeedMessage, account)
	if err != nil {
		return nil, err
	}
	var key authenc.Key
	if _, err := io.ReadFull(hkdf.New(sha3.New256, aeSig, account[:], []byte(aeKeyInfo)), key[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	return &KeyMaterial{ElGamal: elgamal.NewKeypair(secret), AE: &key}, nil
}
