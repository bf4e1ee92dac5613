package ctengine

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/crypto/authenc"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/crypto/zkproof"
)

func fundedBalance(t *testing.T, kp *elgamal.Keypair, ae *authenc.Key, amount uint64) confidential.AvailableBalance {
	t.Helper()
	ct, err := elgamal.ZeroCiphertext().AddAmount(amount)
	require.NoError(t, err)
	dec, err := authenc.Encrypt(ae, amount)
	require.NoError(t, err)
	return confidential.AvailableBalance{Ciphertext: ct, Decryptable: dec}
}

func TestWithdrawProofVerifies(t *testing.T) {
	e := New()
	kp, err := elgamal.GenerateKeypair()
	require.NoError(t, err)
	ae, _ := authenc.KeyFromBytes(bytes.Repeat([]byte{1}, authenc.KeySize))
	available := fundedBalance(t, kp, ae, 1_000)

	bundle, err := e.GenerateWithdrawProof(available, 250, kp, ae)
	require.NoError(t, err)
	require.Len(t, bundle.Artifacts(), 2)
	for _, a := range bundle.Artifacts() {
		_, err := zkproof.DecodeAndVerify(a.Kind, a.Data)
		require.NoError(t, err, a.Kind.String())
	}
	left, err := e.DecryptSym(bundle.NewDecryptableAvailable, ae)
	require.NoError(t, err)
	require.Equal(t, uint64(750), left)

	eq, err := zkproof.Decode(bundle.Equality.Kind, bundle.Equality.Data)
	require.NoError(t, err)
	want, _ := available.Ciphertext.SubAmount(250)
	require.Equal(t, want, eq.(*zkproof.EqualityData).Ciphertext)

	_, err = e.GenerateWithdrawProof(available, 1_001, kp, ae)
	require.True(t, errors.Is(err, errAmountExceedsBalance))
}

func TestTransferProofVerifies(t *testing.T) {
	e := New()
	src, _ := elgamal.GenerateKeypair()
	dst, _ := elgamal.GenerateKeypair()
	auditor, _ := elgamal.GenerateKeypair()
	ae, _ := authenc.KeyFromBytes(bytes.Repeat([]byte{2}, authenc.KeySize))
	available := fundedBalance(t, src, ae, 5_000_000)

	amount := uint64(3<<16 + 17)
	bundle, err := e.GenerateSplitTransferProof(available, amount, src, ae, dst.Public, &auditor.Public)
	require.NoError(t, err)
	require.Len(t, bundle.Artifacts(), 3)
	for _, a := range bundle.Artifacts() {
		_, err := zkproof.DecodeAndVerify(a.Kind, a.Data)
		require.NoError(t, err, a.Kind.String())
	}

	for i, kp := range []*elgamal.Keypair{src, dst, auditor} {
		lo, err := bundle.AmountLo.Ciphertext(i)
		require.NoError(t, err)
		hi, err := bundle.AmountHi.Ciphertext(i)
		require.NoError(t, err)
		loV, err := e.DecryptAsym(lo, &kp.Secret)
		require.NoError(t, err)
		hiV, err := e.DecryptAsym(hi, &kp.Secret)
		require.NoError(t, err)
		total, err := confidential.PendingSplit{Lo: loV, Hi: hiV}.Combine()
		require.NoError(t, err)
		require.Equal(t, amount, total, "holder %d", i)
	}
}

func TestKeyValidityProof(t *testing.T) {
	kp, _ := elgamal.GenerateKeypair()
	a, err := New().GenerateKeyValidityProof(kp)
	require.NoError(t, err)
	require.Equal(t, zkproof.KindPubkeyValidity, a.Kind)
	require.Equal(t, zkproof.PubkeyValidityDataSize, a.Size())
	_, err = zkproof.DecodeAndVerify(a.Kind, a.Data)
	require.NoError(t, err)
}
