package confidential

import (
	"bytes"
	"testing"

	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/crypto/authenc"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/crypto/zkproof"
	"github.com/tos-network/ctbal/params"
)

// fakeEngine encrypts for real but returns opaque proofs of a fixed size.
type fakeEngine struct {
	proofSize  int
	proofCalls int
	failProofs error
}

func (f *fakeEngine) DecryptAsym(ct elgamal.Ciphertext, secret *elgamal.SecretKey) (uint64, error) {
	return elgamal.Decrypt(secret, ct)
}

func (f *fakeEngine) DecryptSym(ct authenc.Ciphertext, key *authenc.Key) (uint64, error) {
	return authenc.Decrypt(key, ct)
}

func (f *fakeEngine) EncryptSym(v uint64, key *authenc.Key) (authenc.Ciphertext, error) {
	return authenc.Encrypt(key, v)
}

func (f *fakeEngine) blob(kind zkproof.Kind) ProofArtifact {
	size := f.proofSize
	if size == 0 {
		size = 64
	}
	return ProofArtifact{Kind: kind, Data: bytes.Repeat([]byte{byte(kind)}, size)}
}

func (f *fakeEngine) GenerateKeyValidityProof(kp *elgamal.Keypair) (ProofArtifact, error) {
	f.proofCalls++
	if f.failProofs != nil {
		return ProofArtifact{}, f.failProofs
	}
	return f.blob(zkproof.KindPubkeyValidity), nil
}

func (f *fakeEngine) GenerateWithdrawProof(available AvailableBalance, amount uint64, kp *elgamal.Keypair, ae *authenc.Key) (*ProofBundle, error) {
	f.proofCalls++
	if f.failProofs != nil {
		return nil, f.failProofs
	}
	current, err := authenc.Decrypt(ae, available.Decryptable)
	if err != nil {
		return nil, err
	}
	dec, err := authenc.Encrypt(ae, current-amount)
	if err != nil {
		return nil, err
	}
	return &ProofBundle{
		Equality:                f.blob(zkproof.KindCiphertextCommitmentEquality),
		Range:                   f.blob(zkproof.KindRange),
		NewDecryptableAvailable: dec,
	}, nil
}

func (f *fakeEngine) GenerateSplitTransferProof(available AvailableBalance, amount uint64, kp *elgamal.Keypair, ae *authenc.Key, recipient elgamal.PublicKey, auditor *elgamal.PublicKey) (*ProofBundle, error) {
	f.proofCalls++
	if f.failProofs != nil {
		return nil, f.failProofs
	}
	current, err := authenc.Decrypt(ae, available.Decryptable)
	if err != nil {
		return nil, err
	}
	split, err := SplitAmount(amount)
	if err != nil {
		return nil, err
	}
	pubs := []elgamal.PublicKey{kp.Public, recipient, elgamal.PublicKey(elgamal.IdentityPoint())}
	if auditor != nil {
		pubs[2] = *auditor
	}
	openLo, _ := elgamal.NewOpening()
	openHi, _ := elgamal.NewOpening()
	lo, err := elgamal.EncryptGrouped(pubs, split.Lo, openLo)
	if err != nil {
		return nil, err
	}
	hi, err := elgamal.EncryptGrouped(pubs, split.Hi, openHi)
	if err != nil {
		return nil, err
	}
	dec, err := authenc.Encrypt(ae, current-amount)
	if err != nil {
		return nil, err
	}
	return &ProofBundle{
		Equality:                f.blob(zkproof.KindCiphertextCommitmentEquality),
		Validity:                f.blob(zkproof.KindGroupedCiphertextValidity),
		Range:                   f.blob(zkproof.KindRange),
		AmountLo:                lo,
		AmountHi:                hi,
		NewDecryptableAvailable: dec,
	}, nil
}

func testKeys(t *testing.T, seed byte, account common.Address) *KeyMaterial {
	t.Helper()
	signer, err := accountsigner.NewEd25519Signer(bytes.Repeat([]byte{seed}, 32))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	keys, err := DeriveKeyMaterial(signer, account)
	if err != nil {
		t.Fatalf("DeriveKeyMaterial: %v", err)
	}
	return keys
}

// configuredState builds an approved account holding the given balances.
func configuredState(t *testing.T, keys *KeyMaterial, addr common.Address, available, pendingLo, pendingHi uint64) *AccountState {
	t.Helper()
	avail, _, err := elgamal.Encrypt(keys.ElGamal.Public, available)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	dec, err := authenc.Encrypt(keys.AE, available)
	if err != nil {
		t.Fatalf("authenc: %v", err)
	}
	lo, _, _ := elgamal.Encrypt(keys.ElGamal.Public, pendingLo)
	hi, _, _ := elgamal.Encrypt(keys.ElGamal.Public, pendingHi)
	return &AccountState{
		Address:                     addr,
		Owner:                       common.BytesToAddress([]byte{0xaa}),
		Mint:                        common.BytesToAddress([]byte{0xbb}),
		Configured:                  true,
		Approved:                    true,
		ElGamalPubkey:               keys.ElGamal.Public,
		PendingLo:                   lo,
		PendingHi:                   hi,
		Available:                   avail,
		DecryptableAvailable:        dec,
		AllowConfidentialCredits:    true,
		AllowNonConfidentialCredits: true,
		MaxPendingCreditCounter:     params.MaxPendingCredits,
	}
}
