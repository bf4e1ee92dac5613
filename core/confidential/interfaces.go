package confidential

import (
	"context"

	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/authenc"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/crypto/zkproof"
)

// LedgerClient is the ledger substrate. Submit blocks until the transaction
// is confirmed or rejected.
type LedgerClient interface {
	// Fetch returns the raw account bytes or ErrAccountNotFound.
	Fetch(ctx context.Context, addr common.Address) ([]byte, error)
	// Submit executes tx atomically. Oversized transactions fail with a
	// *types.SizeLimitError, program rejections with a *types.ProgramError.
	Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	// LatestOrderingToken returns a token that makes the next submission valid.
	LatestOrderingToken(ctx context.Context) (common.Hash, error)
	// MaxTransactionSize is the serialized size limit Submit enforces.
	MaxTransactionSize() int
}

// AvailableBalance carries both encodings of an available balance.
type AvailableBalance struct {
	Ciphertext  elgamal.Ciphertext
	Decryptable authenc.Ciphertext
}

// CryptoEngine performs every operation that touches secret key material.
type CryptoEngine interface {
	DecryptAsym(ct elgamal.Ciphertext, secret *elgamal.SecretKey) (uint64, error)
	DecryptSym(ct authenc.Ciphertext, key *authenc.Key) (uint64, error)
	EncryptSym(v uint64, key *authenc.Key) (authenc.Ciphertext, error)

	GenerateKeyValidityProof(kp *elgamal.Keypair) (ProofArtifact, error)
	GenerateWithdrawProof(available AvailableBalance, amount uint64, kp *elgamal.Keypair, ae *authenc.Key) (*ProofBundle, error)
	GenerateSplitTransferProof(available AvailableBalance, amount uint64, kp *elgamal.Keypair, ae *authenc.Key, recipient elgamal.PublicKey, auditor *elgamal.PublicKey) (*ProofBundle, error)
}

// ProofArtifact is one encoded proof with its public inputs.
type ProofArtifact struct {
	Kind zkproof.Kind
	Data []byte
}

// Size is the number of bytes the artifact occupies inline or in a context account.
func (a ProofArtifact) Size() int { return len(a.Data) }

// Empty reports whether the artifact slot is unused.
func (a ProofArtifact) Empty() bool { return len(a.Data) == 0 }

// ProofBundle groups the artifacts of one operation with the ciphertexts
// produced while generating them.
type ProofBundle struct {
	Equality ProofArtifact
	Validity ProofArtifact
	Range    ProofArtifact

	// Transfer amount ciphertexts with source, destination and auditor handles.
	AmountLo elgamal.GroupedCiphertext
	AmountHi elgamal.GroupedCiphertext

	// NewDecryptableAvailable is the source's next symmetric balance.
	NewDecryptableAvailable authenc.Ciphertext
}

// Artifacts returns the populated artifacts in submission order.
func (b *ProofBundle) Artifacts() []ProofArtifact {
	var out []ProofArtifact
	for _, a := range []ProofArtifact{b.Equality, b.Validity, b.Range} {
		if !a.Empty() {
			out = append(out, a)
		}
	}
	return out
}

// TotalSize sums the artifact sizes.
func (b *ProofBundle) TotalSize() int {
	n := 0
	for _, a := range b.Artifacts() {
		n += a.Size()
	}
	return n
}
