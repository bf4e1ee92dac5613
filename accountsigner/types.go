package accountsigner

import "errors"

const (
	SignerTypeSecp256k1 = "secp256k1"
	SignerTypeEd25519   = "ed25519"

	secp256k1PrivateKeyLen = 32
	secp256k1PubkeyLen     = 33
)

var (
	ErrUnknownSignerType  = errors.New("accountsigner: unknown signer type")
	ErrInvalidSignerValue = errors.New("accountsigner: invalid signer value")
	ErrInvalidSignerKey   = errors.New("accountsigner: invalid signer private key")
	ErrSignatureMismatch  = errors.New("accountsigner: signature does not match signer")
)

// Signer is an authority capable of producing signatures over arbitrary
// messages. Confidential key derivation relies on the signature being
// deterministic for a given message, which both implementations guarantee.
type Signer interface {
	// Type returns the canonical signer type name.
	Type() string
	// PublicKey returns the canonical public key bytes.
	PublicKey() []byte
	// Address returns the ledger address controlled by this signer.
	Address() Address
	// Sign produces a signature over msg.
	Sign(msg []byte) ([]byte, error)
}
