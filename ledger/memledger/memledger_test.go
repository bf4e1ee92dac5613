package memledger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/authenc"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/crypto/zkproof"
	"github.com/tos-network/ctbal/params"
)

func newTestLedger(t *testing.T) *Ledger {
	l, err := New(Defaults)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func signer(t *testing.T, seed byte) accountsigner.Signer {
	s, err := accountsigner.NewEd25519Signer(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return s
}

func instruction(t *testing.T, action uint8, payload interface{}) types.Instruction {
	ins, err := types.NewInstruction(action, payload)
	require.NoError(t, err)
	return ins
}

func signedTx(t *testing.T, l *Ledger, payer accountsigner.Signer, extra []accountsigner.Signer, ins ...types.Instruction) *types.Transaction {
	token, err := l.LatestOrderingToken(context.Background())
	require.NoError(t, err)
	tx := types.NewTransaction(payer.Address(), token, ins...)
	require.NoError(t, tx.Sign(append([]accountsigner.Signer{payer}, extra...)...))
	return tx
}

func submit(t *testing.T, l *Ledger, payer accountsigner.Signer, extra []accountsigner.Signer, ins ...types.Instruction) (*types.Receipt, error) {
	return l.Submit(context.Background(), signedTx(t, l, payer, extra, ins...))
}

func requireCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, types.HasCode(err, code), "want %s, got %v", code, err)
}

// tokenFixture creates a mint with decimals 2 and one funded token account.
type tokenFixture struct {
	authority accountsigner.Signer
	owner     accountsigner.Signer
	mint      common.Address
	account   common.Address
}

func newTokenFixture(t *testing.T, l *Ledger, funded uint64) *tokenFixture {
	f := &tokenFixture{authority: signer(t, 1), owner: signer(t, 2), mint: common.BytesToAddress([]byte("mint"))}
	f.account = types.DeriveTokenAccount(f.owner.Address(), f.mint)
	_, err := submit(t, l, f.authority, nil,
		instruction(t, types.ActionCreateMint, &types.CreateMintPayload{Mint: f.mint, Authority: f.authority.Address(), Decimals: 2, AutoApprove: true}),
		instruction(t, types.ActionCreateTokenAccount, &types.CreateTokenAccountPayload{Account: f.account, Mint: f.mint, Owner: f.owner.Address()}),
		instruction(t, types.ActionMintTo, &types.MintToPayload{Mint: f.mint, Account: f.account, Amount: funded}),
	)
	require.NoError(t, err)
	return f
}

func (f *tokenFixture) configure(t *testing.T, l *Ledger) *elgamal.Keypair {
	kp, err := elgamal.GenerateKeypair()
	require.NoError(t, err)
	proof, err := zkproof.ProvePubkeyValidity(kp)
	require.NoError(t, err)
	data, err := proof.MarshalBinary()
	require.NoError(t, err)
	var key authenc.Key
	zero, err := authenc.Encrypt(&key, 0)
	require.NoError(t, err)
	_, err = submit(t, l, f.owner, nil, instruction(t, types.ActionConfigureAccount, &types.ConfigureAccountPayload{
		Account: f.account, DecryptableZero: zero, Proof: types.InlineProof(data),
	}))
	require.NoError(t, err)
	return kp
}

func (f *tokenFixture) extension(t *testing.T, l *Ledger) (*types.TokenAccount, *types.ConfidentialAccount) {
	raw, err := l.Fetch(context.Background(), f.account)
	require.NoError(t, err)
	acc, _, err := types.DecodeTokenAccount(raw)
	require.NoError(t, err)
	ext, err := acc.ConfidentialExtension()
	require.NoError(t, err)
	return acc, ext
}

func TestSizeLimit(t *testing.T) {
	l := newTestLedger(t)
	payer := signer(t, 1)
	_, err := submit(t, l, payer, nil, instruction(t, types.ActionWriteContext, &types.WriteContextPayload{Data: make([]byte, params.MaxTransactionSize)}))
	require.ErrorIs(t, err, types.ErrSizeLimit)
	var serr *types.SizeLimitError
	require.ErrorAs(t, err, &serr)
	require.Greater(t, serr.Size, serr.Limit)
	require.Zero(t, l.Slot())
}

func TestOrderingTokensAndDuplicates(t *testing.T) {
	l := newTestLedger(t)
	payer := signer(t, 1)
	ins := instruction(t, types.ActionCreateMint, &types.CreateMintPayload{Mint: common.BytesToAddress([]byte{1}), Authority: payer.Address()})

	stale := types.NewTransaction(payer.Address(), common.Hash{0xde, 0xad}, ins)
	require.NoError(t, stale.Sign(payer))
	_, err := l.Submit(context.Background(), stale)
	requireCode(t, err, types.CodeInvalidOrderingToken)

	tx := signedTx(t, l, payer, nil, ins)
	receipt, err := l.Submit(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), receipt.Slot)
	require.Equal(t, []string{"create-mint"}, receipt.Instructions)

	_, err = l.Submit(context.Background(), tx)
	requireCode(t, err, types.CodeDuplicateTransaction)

	unsigned := types.NewTransaction(payer.Address(), receipt.TxHash, ins)
	unsigned.OrderingToken, _ = l.LatestOrderingToken(context.Background())
	_, err = l.Submit(context.Background(), unsigned)
	requireCode(t, err, types.CodeMissingSignature)
}

func TestTransactionsAreAtomic(t *testing.T) {
	l := newTestLedger(t)
	payer := signer(t, 1)
	mint := common.BytesToAddress([]byte{5})
	_, err := submit(t, l, payer, nil,
		instruction(t, types.ActionCreateMint, &types.CreateMintPayload{Mint: mint, Authority: payer.Address()}),
		instruction(t, types.ActionMintTo, &types.MintToPayload{Mint: mint, Account: common.BytesToAddress([]byte{6}), Amount: 1}),
	)
	requireCode(t, err, types.CodeAccountNotFound)
	var perr *types.ProgramError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 1, perr.Instruction)

	_, err = l.Fetch(context.Background(), mint)
	require.ErrorIs(t, err, types.ErrAccountNotFound)
	require.Zero(t, l.Slot())
}

func TestContextAccountCollateral(t *testing.T) {
	l := newTestLedger(t)
	payer, ctxKey := signer(t, 1), signer(t, 9)
	ctx := context.Background()

	_, err := submit(t, l, payer, []accountsigner.Signer{ctxKey},
		instruction(t, types.ActionCreateContext, &types.CreateContextPayload{Context: ctxKey.Address(), ProofKind: zkproof.KindPubkeyValidity, Capacity: uint32(zkproof.PubkeyValidityDataSize)}))
	requireCode(t, err, types.CodeInsufficientLamports)

	balance, err := l.Airdrop(ctx, payer.Address(), params.DefaultAirdropLamports)
	require.NoError(t, err)
	require.Equal(t, params.DefaultAirdropLamports, balance)

	// The context address must sign its own allocation.
	_, err = submit(t, l, payer, nil,
		instruction(t, types.ActionCreateContext, &types.CreateContextPayload{Context: ctxKey.Address(), ProofKind: zkproof.KindPubkeyValidity, Capacity: uint32(zkproof.PubkeyValidityDataSize)}))
	requireCode(t, err, types.CodeMissingSignature)

	_, err = submit(t, l, payer, []accountsigner.Signer{ctxKey},
		instruction(t, types.ActionCreateContext, &types.CreateContextPayload{Context: ctxKey.Address(), ProofKind: zkproof.KindPubkeyValidity, Capacity: uint32(zkproof.PubkeyValidityDataSize)}))
	require.NoError(t, err)
	collateral := l.Config().Collateral(zkproof.PubkeyValidityDataSize)
	require.Equal(t, params.DefaultAirdropLamports-collateral, lamportsOf(t, l, payer.Address()))

	// A bogus proof fails verification and leaves the account writable.
	_, err = submit(t, l, payer, nil,
		instruction(t, types.ActionWriteContext, &types.WriteContextPayload{Context: ctxKey.Address(), Data: bytes.Repeat([]byte{1}, zkproof.PubkeyValidityDataSize)}),
		instruction(t, types.ActionVerifyContext, &types.VerifyContextPayload{Context: ctxKey.Address()}))
	requireCode(t, err, types.CodeProofVerificationFailed)

	kp, err := elgamal.GenerateKeypair()
	require.NoError(t, err)
	proof, err := zkproof.ProvePubkeyValidity(kp)
	require.NoError(t, err)
	data, err := proof.MarshalBinary()
	require.NoError(t, err)
	_, err = submit(t, l, payer, nil,
		instruction(t, types.ActionWriteContext, &types.WriteContextPayload{Context: ctxKey.Address(), Data: data[:50]}),
		instruction(t, types.ActionWriteContext, &types.WriteContextPayload{Context: ctxKey.Address(), Offset: 50, Data: data[50:]}),
		instruction(t, types.ActionVerifyContext, &types.VerifyContextPayload{Context: ctxKey.Address()}))
	require.NoError(t, err)

	_, err = submit(t, l, payer, nil,
		instruction(t, types.ActionWriteContext, &types.WriteContextPayload{Context: ctxKey.Address(), Data: []byte{0}}))
	requireCode(t, err, types.CodeContextAlreadyVerified)

	closeIns := instruction(t, types.ActionCloseContext, &types.CloseContextPayload{Context: ctxKey.Address(), Destination: payer.Address()})
	_, err = submit(t, l, signer(t, 3), nil, closeIns)
	requireCode(t, err, types.CodeMissingSignature)
	_, err = submit(t, l, payer, nil, closeIns)
	require.NoError(t, err)
	require.Equal(t, params.DefaultAirdropLamports, lamportsOf(t, l, payer.Address()))

	// Closing again is a no-op.
	_, err = submit(t, l, payer, nil, closeIns)
	require.NoError(t, err)
	require.Equal(t, params.DefaultAirdropLamports, lamportsOf(t, l, payer.Address()))
}

func lamportsOf(t *testing.T, l *Ledger, addr common.Address) uint64 {
	raw, err := l.Fetch(context.Background(), addr)
	require.NoError(t, err)
	acc, err := types.DecodeAccount(raw)
	require.NoError(t, err)
	return acc.Lamports
}

func TestConfigureAndPendingCredits(t *testing.T) {
	l := newTestLedger(t)
	f := newTokenFixture(t, l, 1_000)
	kp := f.configure(t, l)

	var key authenc.Key
	zero, _ := authenc.Encrypt(&key, 0)
	_, err := submit(t, l, f.owner, nil, instruction(t, types.ActionConfigureAccount, &types.ConfigureAccountPayload{
		Account: f.account, DecryptableZero: zero, Proof: types.InlineProof([]byte{1}),
	}))
	requireCode(t, err, types.CodeAlreadyConfigured)

	deposit := func(amount uint64, decimals uint8) error {
		_, err := submit(t, l, f.owner, nil, instruction(t, types.ActionDeposit, &types.DepositPayload{Account: f.account, Amount: amount, Decimals: decimals}))
		return err
	}
	requireCode(t, deposit(10, 9), types.CodeMintDecimalsMismatch)
	requireCode(t, deposit(2_000, 2), types.CodeInsufficientFunds)
	require.NoError(t, deposit(300, 2))
	require.NoError(t, deposit(70_000-69_900, 2))

	acc, ext := f.extension(t, l)
	require.Equal(t, uint64(600), acc.Amount)
	require.Equal(t, uint64(2), ext.PendingCreditCounter)
	lo, err := elgamal.Decrypt(&kp.Secret, ext.PendingLo)
	require.NoError(t, err)
	require.Equal(t, uint64(400), lo)

	apply := func(counter uint64) error {
		_, err := submit(t, l, f.owner, nil, instruction(t, types.ActionApplyPending, &types.ApplyPendingPayload{Account: f.account, ExpectedCounter: counter}))
		return err
	}
	requireCode(t, apply(1), types.CodePendingBalanceMismatch)
	require.NoError(t, apply(2))

	_, ext = f.extension(t, l)
	available, err := elgamal.Decrypt(&kp.Secret, ext.Available)
	require.NoError(t, err)
	require.Equal(t, uint64(400), available)
	require.Zero(t, ext.PendingCreditCounter)
	require.Equal(t, uint64(2), ext.ActualPendingCreditCounter)
}

func TestPendingCreditLimit(t *testing.T) {
	l := newTestLedger(t)
	f := newTokenFixture(t, l, 10)
	kp, err := elgamal.GenerateKeypair()
	require.NoError(t, err)
	proof, _ := zkproof.ProvePubkeyValidity(kp)
	data, _ := proof.MarshalBinary()
	_, err = submit(t, l, f.owner, nil, instruction(t, types.ActionConfigureAccount, &types.ConfigureAccountPayload{
		Account: f.account, MaxPendingCredits: 2, Proof: types.InlineProof(data),
	}))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = submit(t, l, f.owner, nil, instruction(t, types.ActionDeposit, &types.DepositPayload{Account: f.account, Amount: 1, Decimals: 2}))
		require.NoError(t, err)
	}
	_, err = submit(t, l, f.owner, nil, instruction(t, types.ActionDeposit, &types.DepositPayload{Account: f.account, Amount: 1, Decimals: 2}))
	requireCode(t, err, types.CodeMaximumPendingCreditsExceeded)
}

func TestLedgerPersists(t *testing.T) {
	dir := t.TempDir()
	cfg := Defaults
	cfg.DataDir = dir
	l, err := New(cfg)
	require.NoError(t, err)
	addr := common.BytesToAddress([]byte{7})
	_, err = l.Airdrop(context.Background(), addr, 42)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = New(cfg)
	require.NoError(t, err)
	defer l.Close()
	require.Equal(t, uint64(1), l.Slot())
	require.Equal(t, uint64(42), lamportsOf(t, l, addr))
	n, err := l.AccountCount()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
