// Package ctengine is the production crypto engine: twisted ElGamal on
// BN254, ChaCha20-Poly1305 balances and the zkproof sigma and range proofs.
package ctengine

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/crypto/authenc"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/crypto/zkproof"
	"github.com/tos-network/ctbal/params"
)

var errAmountExceedsBalance = errors.New("ctengine: amount exceeds available balance")

var (
	proveKeyTimer      = metrics.NewRegisteredTimer("ctengine/prove/pubkey", nil)
	proveWithdrawTimer = metrics.NewRegisteredTimer("ctengine/prove/withdraw", nil)
	proveTransferTimer = metrics.NewRegisteredTimer("ctengine/prove/transfer", nil)
	decryptAsymTimer   = metrics.NewRegisteredTimer("ctengine/decrypt/asym", nil)
)

// Engine implements confidential.CryptoEngine. It holds no state; the
// discrete log tables are shared process wide.
type Engine struct{}

// New returns the engine.
func New() *Engine { return &Engine{} }

var _ confidential.CryptoEngine = (*Engine)(nil)

func (e *Engine) DecryptAsym(ct elgamal.Ciphertext, secret *elgamal.SecretKey) (uint64, error) {
	defer decryptAsymTimer.UpdateSince(time.Now())
	return elgamal.Decrypt(secret, ct)
}

func (e *Engine) DecryptSym(ct authenc.Ciphertext, key *authenc.Key) (uint64, error) {
	return authenc.Decrypt(key, ct)
}

func (e *Engine) EncryptSym(v uint64, key *authenc.Key) (authenc.Ciphertext, error) {
	return authenc.Encrypt(key, v)
}

func artifact(d zkproof.Data) (confidential.ProofArtifact, error) {
	data, err := d.MarshalBinary()
	if err != nil {
		return confidential.ProofArtifact{}, err
	}
	return confidential.ProofArtifact{Kind: d.Kind(), Data: data}, nil
}

func (e *Engine) GenerateKeyValidityProof(kp *elgamal.Keypair) (confidential.ProofArtifact, error) {
	defer proveKeyTimer.UpdateSince(time.Now())
	d, err := zkproof.ProvePubkeyValidity(kp)
	if err != nil {
		return confidential.ProofArtifact{}, err
	}
	return artifact(d)
}

// remaining decrypts the symmetric balance and subtracts amount.
func remaining(available confidential.AvailableBalance, amount uint64, ae *authenc.Key) (uint64, error) {
	current, err := authenc.Decrypt(ae, available.Decryptable)
	if err != nil {
		return 0, err
	}
	if amount > current {
		return 0, fmt.Errorf("%w: %d > %d", errAmountExceedsBalance, amount, current)
	}
	return current - amount, nil
}

// proveRemaining proves newAvailable holds rest and encrypts rest for the owner.
func proveRemaining(kp *elgamal.Keypair, ae *authenc.Key, newAvailable elgamal.Ciphertext, rest uint64) (*zkproof.EqualityData, *elgamal.Opening, authenc.Ciphertext, error) {
	opening, err := elgamal.NewOpening()
	if err != nil {
		return nil, nil, authenc.Ciphertext{}, err
	}
	eq, err := zkproof.ProveEquality(kp, newAvailable, rest, opening)
	if err != nil {
		return nil, nil, authenc.Ciphertext{}, err
	}
	dec, err := authenc.Encrypt(ae, rest)
	if err != nil {
		return nil, nil, authenc.Ciphertext{}, err
	}
	return eq, opening, dec, nil
}

func (e *Engine) GenerateWithdrawProof(available confidential.AvailableBalance, amount uint64, kp *elgamal.Keypair, ae *authenc.Key) (*confidential.ProofBundle, error) {
	defer proveWithdrawTimer.UpdateSince(time.Now())
	rest, err := remaining(available, amount, ae)
	if err != nil {
		return nil, err
	}
	newAvailable, err := available.Ciphertext.SubAmount(amount)
	if err != nil {
		return nil, err
	}
	eq, opening, dec, err := proveRemaining(kp, ae, newAvailable, rest)
	if err != nil {
		return nil, err
	}
	rng, err := zkproof.ProveRange([]uint64{rest}, []uint8{params.BalanceBits}, []*elgamal.Opening{opening})
	if err != nil {
		return nil, err
	}
	bundle := &confidential.ProofBundle{NewDecryptableAvailable: dec}
	if bundle.Equality, err = artifact(eq); err != nil {
		return nil, err
	}
	if bundle.Range, err = artifact(rng); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (e *Engine) GenerateSplitTransferProof(available confidential.AvailableBalance, amount uint64, kp *elgamal.Keypair, ae *authenc.Key, recipient elgamal.PublicKey, auditor *elgamal.PublicKey) (*confidential.ProofBundle, error) {
	defer proveTransferTimer.UpdateSince(time.Now())
	rest, err := remaining(available, amount, ae)
	if err != nil {
		return nil, err
	}
	split, err := confidential.SplitAmount(amount)
	if err != nil {
		return nil, err
	}
	pubs := [zkproof.GroupedHandles]elgamal.PublicKey{kp.Public, recipient, elgamal.PublicKey(elgamal.IdentityPoint())}
	if auditor != nil {
		pubs[2] = *auditor
	}
	openLo, err := elgamal.NewOpening()
	if err != nil {
		return nil, err
	}
	openHi, err := elgamal.NewOpening()
	if err != nil {
		return nil, err
	}
	lo, err := elgamal.EncryptGrouped(pubs[:], split.Lo, openLo)
	if err != nil {
		return nil, err
	}
	hi, err := elgamal.EncryptGrouped(pubs[:], split.Hi, openHi)
	if err != nil {
		return nil, err
	}
	srcLo, _ := lo.Ciphertext(0)
	srcHi, _ := hi.Ciphertext(0)
	debit, err := elgamal.CombineSplit(srcLo, srcHi, params.PendingLoBits)
	if err != nil {
		return nil, err
	}
	newAvailable, err := available.Ciphertext.Sub(debit)
	if err != nil {
		return nil, err
	}
	eq, opening, dec, err := proveRemaining(kp, ae, newAvailable, rest)
	if err != nil {
		return nil, err
	}
	val, err := zkproof.ProveGroupedValidity(pubs, lo, hi, split.Lo, split.Hi, openLo, openHi)
	if err != nil {
		return nil, err
	}
	rng, err := zkproof.ProveRange(
		[]uint64{rest, split.Lo, split.Hi},
		[]uint8{params.BalanceBits, params.PendingLoBits, params.PendingHiBits},
		[]*elgamal.Opening{opening, openLo, openHi},
	)
	if err != nil {
		return nil, err
	}
	bundle := &confidential.ProofBundle{AmountLo: lo, AmountHi: hi, NewDecryptableAvailable: dec}
	if bundle.Equality, err = artifact(eq); err != nil {
		return nil, err
	}
	if bundle.Validity, err = artifact(val); err != nil {
		return nil, err
	}
	if bundle.Range, err = artifact(rng); err != nil {
		return nil, err
	}
	return bundle, nil
}
