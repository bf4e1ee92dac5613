package confidential

import (
	"errors"
	"fmt"

	"github.com/tos-network/ctbal/crypto/authenc"
	"github.com/tos-network/ctbal/crypto/elgamal"
)

// DecryptPending returns decrypt(lo) + decrypt(hi)<<16.
func DecryptPending(st *AccountState, keys *KeyMaterial, engine CryptoEngine) (uint64, error) {
	if !st.Configured {
		return 0, ErrNotConfigured
	}
	lo, err := engine.DecryptAsym(st.PendingLo, &keys.ElGamal.Secret)
	if err != nil {
		return 0, fmt.Errorf("%w: pending lo: %v", ErrDecryption, err)
	}
	hi, err := engine.DecryptAsym(st.PendingHi, &keys.ElGamal.Secret)
	if err != nil {
		return 0, fmt.Errorf("%w: pending hi: %v", ErrDecryption, err)
	}
	total, err := PendingSplit{Lo: lo, Hi: hi}.Combine()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return total, nil
}

// DecryptAvailable decrypts the symmetric encoding and cross-checks it
// against the ElGamal ciphertext. Plaintexts beyond the discrete log bound
// cannot be cross-checked; the symmetric value is accepted only if it is
// beyond the bound as well.
func DecryptAvailable(st *AccountState, keys *KeyMaterial, engine CryptoEngine) (uint64, error) {
	if !st.Configured {
		return 0, ErrNotConfigured
	}
	sym, err := engine.DecryptSym(st.DecryptableAvailable, keys.AE)
	if err != nil {
		return 0, fmt.Errorf("%w: decryptable available: %v", ErrDecryption, err)
	}
	asym, err := engine.DecryptAsym(st.Available, &keys.ElGamal.Secret)
	switch {
	case errors.Is(err, elgamal.ErrNotFound):
		if sym <= elgamal.DefaultDecryptBound {
			return 0, fmt.Errorf("%w: symmetric %d, asymmetric beyond decrypt bound", ErrConsistency, sym)
		}
		return sym, nil
	case err != nil:
		return 0, fmt.Errorf("%w: available: %v", ErrDecryption, err)
	case asym != sym:
		return 0, fmt.Errorf("%w: symmetric %d, asymmetric %d", ErrConsistency, sym, asym)
	}
	return sym, nil
}

// EncodeNewAvailable produces both encodings of a new available balance.
func EncodeNewAvailable(plaintext uint64, keys *KeyMaterial, engine CryptoEngine) (elgamal.Ciphertext, authenc.Ciphertext, error) {
	asym, _, err := elgamal.Encrypt(keys.ElGamal.Public, plaintext)
	if err != nil {
		return elgamal.Ciphertext{}, authenc.Ciphertext{}, err
	}
	sym, err := engine.EncryptSym(plaintext, keys.AE)
	if err != nil {
		return elgamal.Ciphertext{}, authenc.Ciphertext{}, err
	}
	return asym, sym, nil
}
