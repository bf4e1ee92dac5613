package accountsigner

import (
	"crypto/ed25519"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tos-network/ctbal/common"
)

// Address is re-exported so callers of the Signer interface do not need to
// import common for the common case.
type Address = common.Address

func normalizeSignerType(signerType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(signerType)) {
	case SignerTypeSecp256k1, "ethereum_secp256k1":
		return SignerTypeSecp256k1, nil
	case SignerTypeEd25519:
		return SignerTypeEd25519, nil
	default:
		return "", ErrUnknownSignerType
	}
}

// CanonicalSignerType normalizes signer type alias to canonical lowercase name.
func CanonicalSignerType(signerType string) (string, error) {
	return normalizeSignerType(signerType)
}

func normalizeSecp256k1Pubkey(raw []byte) ([]byte, error) {
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, ErrInvalidSignerValue
	}
	return pub.SerializeCompressed(), nil
}

// NormalizeSigner parses a hex encoded public key of the given type and
// returns the canonical type, the canonical key bytes and their hex form.
func NormalizeSigner(signerType, signerValue string) (string, []byte, string, error) {
	normalizedType, err := normalizeSignerType(signerType)
	if err != nil {
		return "", nil, "", err
	}
	raw, err := hexutil.Decode(strings.TrimSpace(signerValue))
	if err != nil || len(raw) == 0 {
		return "", nil, "", ErrInvalidSignerValue
	}
	var normalizedPub []byte
	switch normalizedType {
	case SignerTypeSecp256k1:
		normalizedPub, err = normalizeSecp256k1Pubkey(raw)
	case SignerTypeEd25519:
		if len(raw) != ed25519.PublicKeySize {
			err = ErrInvalidSignerValue
		} else {
			normalizedPub = append([]byte(nil), raw...)
		}
	}
	if err != nil {
		return "", nil, "", err
	}
	return normalizedType, normalizedPub, hexutil.Encode(normalizedPub), nil
}

// AddressFromSigner derives account address from canonical signer pubkey bytes.
func AddressFromSigner(signerType string, signerPub []byte) (common.Address, error) {
	switch signerType {
	case SignerTypeSecp256k1:
		if len(signerPub) != secp256k1PubkeyLen {
			return common.Address{}, ErrInvalidSignerValue
		}
		return common.BytesToAddress(crypto.Keccak256(signerPub)), nil
	case SignerTypeEd25519:
		if len(signerPub) != ed25519.PublicKeySize {
			return common.Address{}, ErrInvalidSignerValue
		}
		return common.BytesToAddress(crypto.Keccak256(signerPub)), nil
	default:
		return common.Address{}, ErrUnknownSignerType
	}
}

// VerifySignature checks sig over msg against the canonical public key of the
// given signer type.
func VerifySignature(signerType string, signerPub, msg, sig []byte) bool {
	switch signerType {
	case SignerTypeSecp256k1:
		pub, err := btcec.ParsePubKey(signerPub)
		if err != nil {
			return false
		}
		parsed, err := btcecdsa.ParseDERSignature(sig)
		if err != nil {
			return false
		}
		return parsed.Verify(crypto.Keccak256(msg), pub)
	case SignerTypeEd25519:
		if len(signerPub) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(signerPub), msg, sig)
	default:
		return false
	}
}
