package ctclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/ctengine"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/ledger/memledger"
)

// hookLedger lets a test act on the ledger right before a submission, or
// replace the reply to one the ledger already applied.
type hookLedger struct {
	*memledger.Ledger
	before func(tx *types.Transaction) error
	after  func(tx *types.Transaction) error
}

func (h *hookLedger) Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if h.before != nil {
		if err := h.before(tx); err != nil {
			return nil, err
		}
	}
	receipt, err := h.Ledger.Submit(ctx, tx)
	if err == nil && h.after != nil {
		if err := h.after(tx); err != nil {
			return nil, err
		}
	}
	return receipt, err
}

func hasAction(tx *types.Transaction, action uint8) bool {
	for _, ins := range tx.Instructions {
		if ins.Action == action {
			return true
		}
	}
	return false
}

type env struct {
	ledger    *hookLedger
	client    *Client
	authority accountsigner.Signer
	payer     accountsigner.Signer
	mint      common.Address
}

func testSigner(t *testing.T, seed byte) accountsigner.Signer {
	s, err := accountsigner.NewEd25519Signer(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return s
}

func newEnv(t *testing.T, auditor *elgamal.PublicKey) *env {
	return newEnvWithLedger(t, auditor, memledger.Defaults)
}

func newEnvWithLedger(t *testing.T, auditor *elgamal.PublicKey, cfg memledger.Config) *env {
	l, err := memledger.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	e := &env{ledger: &hookLedger{Ledger: l}, authority: testSigner(t, 0xa0), payer: testSigner(t, 0xa1)}
	e.client, err = New(e.ledger, ctengine.New(), Defaults)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = e.client.Airdrop(ctx, e.payer.Address(), 10_000_000_000)
	require.NoError(t, err)
	e.mint, _, err = e.client.CreateMint(ctx, e.payer, e.authority, MintOptions{Decimals: 2, AutoApprove: true, Auditor: auditor})
	require.NoError(t, err)
	return e
}

// holder creates, funds and configures a token account.
func (e *env) holder(t *testing.T, seed byte, funded uint64) Sender {
	ctx := context.Background()
	s := Sender{Owner: testSigner(t, seed), Payer: e.payer}
	_, _, err := e.client.CreateTokenAccount(ctx, e.payer, s.Owner.Address(), e.mint)
	require.NoError(t, err)
	if funded > 0 {
		_, err = e.client.MintTo(ctx, e.payer, e.authority, e.mint, s.Owner.Address(), funded)
		require.NoError(t, err)
	}
	_, err = e.client.Configure(ctx, s, e.mint)
	require.NoError(t, err)
	return s
}

func (e *env) balances(t *testing.T, s Sender) *Balances {
	b, err := e.client.Balances(context.Background(), s, e.mint)
	require.NoError(t, err)
	return b
}

func (e *env) lamports(t *testing.T, addr common.Address) uint64 {
	raw, err := e.ledger.Fetch(context.Background(), addr)
	require.NoError(t, err)
	acc, err := types.DecodeAccount(raw)
	require.NoError(t, err)
	return acc.Lamports
}

func TestDepositThenApplyPending(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	alice := e.holder(t, 1, 1_000_000_000)

	_, err := e.client.Configure(ctx, alice, e.mint)
	require.ErrorIs(t, err, confidential.ErrAlreadyConfigured)

	receipts, err := e.client.Deposit(ctx, alice, e.mint, 500_000_000)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	b := e.balances(t, alice)
	require.Equal(t, uint64(500_000_000), b.Public)
	require.Equal(t, uint64(500_000_000), b.Pending)
	require.Equal(t, uint64(500_000_000&0xffff), b.PendingLo)
	require.Equal(t, uint64(500_000_000>>16), b.PendingHi)
	require.Equal(t, uint64(1), b.PendingCredits)

	_, err = e.client.ApplyPending(ctx, alice, e.mint)
	require.NoError(t, err)
	b = e.balances(t, alice)
	require.Equal(t, uint64(0), b.Pending)
	require.Equal(t, uint64(500_000_000), b.Available)
	require.Equal(t, uint64(1_000_000_000), b.Total)
	require.Equal(t, uint64(0), b.PendingCredits)

	_, err = e.client.Deposit(ctx, alice, e.mint, 600_000_000)
	require.ErrorIs(t, err, confidential.ErrInsufficientBalance)
}

func TestApplyPendingStaleCounter(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	alice := e.holder(t, 1, 1_000)
	_, err := e.client.Deposit(ctx, alice, e.mint, 100)
	require.NoError(t, err)

	// A second client deposits after the apply read the account.
	other, err := New(e.ledger.Ledger, ctengine.New(), Defaults)
	require.NoError(t, err)
	raced := false
	e.ledger.before = func(tx *types.Transaction) error {
		if raced || !hasAction(tx, types.ActionApplyPending) {
			return nil
		}
		raced = true
		_, err := other.Deposit(ctx, alice, e.mint, 50)
		return err
	}

	_, err = e.client.ApplyPending(ctx, alice, e.mint)
	require.ErrorIs(t, err, confidential.ErrStaleState)
	require.True(t, raced)
	b := e.balances(t, alice)
	require.Equal(t, uint64(150), b.Pending)
	require.Equal(t, uint64(0), b.Available)

	_, err = e.client.ApplyPending(ctx, alice, e.mint)
	require.NoError(t, err)
	require.Equal(t, uint64(150), e.balances(t, alice).Available)
}

func TestWithdrawThroughContextAccounts(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	alice := e.holder(t, 1, 1_000_000_000)
	_, err := e.client.Deposit(ctx, alice, e.mint, 500_000_000)
	require.NoError(t, err)
	_, err = e.client.ApplyPending(ctx, alice, e.mint)
	require.NoError(t, err)

	_, err = e.client.Withdraw(ctx, alice, e.mint, 500_000_001)
	require.ErrorIs(t, err, confidential.ErrInsufficientBalance)

	before := e.lamports(t, e.payer.Address())
	accounts, err := e.ledger.AccountCount()
	require.NoError(t, err)

	receipts, err := e.client.Withdraw(ctx, alice, e.mint, 200_000_000)
	require.NoError(t, err)
	require.Greater(t, len(receipts), 3)
	b := e.balances(t, alice)
	require.Equal(t, uint64(700_000_000), b.Public)
	require.Equal(t, uint64(300_000_000), b.Available)
	require.Equal(t, uint64(1_000_000_000), b.Total)

	// Collateral is returned and no context account survives.
	require.Equal(t, before, e.lamports(t, e.payer.Address()))
	after, err := e.ledger.AccountCount()
	require.NoError(t, err)
	require.Equal(t, accounts, after)
}

func TestProofsStayInlineWhenTheyFit(t *testing.T) {
	cfg := memledger.Defaults
	cfg.MaxTransactionSize = 1 << 20
	e := newEnvWithLedger(t, nil, cfg)
	ctx := context.Background()
	alice := e.holder(t, 1, 1_000_000)
	bob := e.holder(t, 2, 0)
	_, err := e.client.Deposit(ctx, alice, e.mint, 600_000)
	require.NoError(t, err)
	_, err = e.client.ApplyPending(ctx, alice, e.mint)
	require.NoError(t, err)

	var contexts int
	e.ledger.before = func(tx *types.Transaction) error {
		if hasAction(tx, types.ActionCreateContext) {
			contexts++
		}
		return nil
	}
	accounts, err := e.ledger.AccountCount()
	require.NoError(t, err)

	receipts, err := e.client.Withdraw(ctx, alice, e.mint, 200_000)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Equal(t, []string{"withdraw"}, receipts[0].Instructions)
	b := e.balances(t, alice)
	require.Equal(t, uint64(600_000), b.Public)
	require.Equal(t, uint64(400_000), b.Available)
	require.Equal(t, uint64(1_000_000), b.Total)

	receipts, err = e.client.Transfer(ctx, alice, e.mint, bob.Owner.Address(), 150_000)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Equal(t, []string{"transfer"}, receipts[0].Instructions)
	require.Equal(t, uint64(250_000), e.balances(t, alice).Available)
	require.Equal(t, uint64(150_000), e.balances(t, bob).Pending)

	require.Zero(t, contexts)
	after, err := e.ledger.AccountCount()
	require.NoError(t, err)
	require.Equal(t, accounts, after)
}

func TestTransferConservation(t *testing.T) {
	auditor, err := elgamal.GenerateKeypair()
	require.NoError(t, err)
	e := newEnv(t, &auditor.Public)
	ctx := context.Background()
	alice := e.holder(t, 1, 1_000_000)
	bob := e.holder(t, 2, 0)
	_, err = e.client.Deposit(ctx, alice, e.mint, 1_000_000)
	require.NoError(t, err)
	_, err = e.client.ApplyPending(ctx, alice, e.mint)
	require.NoError(t, err)

	var contexts int
	e.ledger.before = func(tx *types.Transaction) error {
		if hasAction(tx, types.ActionCreateContext) {
			contexts++
		}
		return nil
	}
	amount := uint64(3<<16 + 17)
	receipts, err := e.client.Transfer(ctx, alice, e.mint, bob.Owner.Address(), amount)
	require.NoError(t, err)
	require.Equal(t, 3, contexts)
	require.Equal(t, []string{"transfer"}, receipts[len(receipts)-2].Instructions)
	require.Equal(t, []string{"close-context", "close-context", "close-context"}, receipts[len(receipts)-1].Instructions)

	a, b := e.balances(t, alice), e.balances(t, bob)
	require.Equal(t, uint64(1_000_000)-amount, a.Available)
	require.Equal(t, amount, b.Pending)
	require.Equal(t, uint64(1), b.PendingCredits)
	require.Equal(t, uint64(1_000_000), a.Total+b.Total)

	_, err = e.client.ApplyPending(ctx, bob, e.mint)
	require.NoError(t, err)
	require.Equal(t, amount, e.balances(t, bob).Available)

	_, err = e.client.Transfer(ctx, alice, e.mint, bob.Owner.Address(), 1_000_000)
	require.ErrorIs(t, err, confidential.ErrInsufficientBalance)
}

func TestTransferToUnconfiguredRecipient(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	alice := e.holder(t, 1, 1_000)
	carol := testSigner(t, 3)
	_, _, err := e.client.CreateTokenAccount(ctx, e.payer, carol.Address(), e.mint)
	require.NoError(t, err)

	submitted := false
	e.ledger.before = func(*types.Transaction) error {
		submitted = true
		return nil
	}
	receipts, err := e.client.Transfer(ctx, alice, e.mint, carol.Address(), 10)
	require.ErrorIs(t, err, confidential.ErrNotConfigured)
	require.Empty(t, receipts)
	require.False(t, submitted)
}

func TestTransferToSelfIsRejectedLocally(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	alice := e.holder(t, 1, 1_000)
	_, err := e.client.Deposit(ctx, alice, e.mint, 1_000)
	require.NoError(t, err)
	_, err = e.client.ApplyPending(ctx, alice, e.mint)
	require.NoError(t, err)

	submitted := false
	e.ledger.before = func(*types.Transaction) error {
		submitted = true
		return nil
	}
	receipts, err := e.client.Transfer(ctx, alice, e.mint, alice.Owner.Address(), 10)
	require.ErrorIs(t, err, confidential.ErrSelfTransfer)
	require.Empty(t, receipts)
	require.False(t, submitted)
}

func TestTransferClosesContextWhoseAllocationReplyWasLost(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	alice := e.holder(t, 1, 1_000)
	bob := e.holder(t, 2, 0)
	_, err := e.client.Deposit(ctx, alice, e.mint, 1_000)
	require.NoError(t, err)
	_, err = e.client.ApplyPending(ctx, alice, e.mint)
	require.NoError(t, err)

	before := e.lamports(t, e.payer.Address())
	accounts, err := e.ledger.AccountCount()
	require.NoError(t, err)

	// The ledger applies the allocation but the confirmation never arrives.
	e.ledger.after = func(tx *types.Transaction) error {
		if hasAction(tx, types.ActionCreateContext) {
			return fmt.Errorf("%w: timeout waiting for confirmation", types.ErrSubmission)
		}
		return nil
	}
	_, err = e.client.Transfer(ctx, alice, e.mint, bob.Owner.Address(), 400)
	require.ErrorIs(t, err, confidential.ErrSubmission)
	var leak *confidential.RecoverableLeakError
	require.False(t, errors.As(err, &leak), "got %v", err)
	require.Equal(t, before, e.lamports(t, e.payer.Address()))
	after, err := e.ledger.AccountCount()
	require.NoError(t, err)
	require.Equal(t, accounts, after)
	require.Equal(t, uint64(0), e.balances(t, bob).Pending)

	// When the close fails too, the stranded account is named.
	e.ledger.before = func(tx *types.Transaction) error {
		if hasAction(tx, types.ActionCloseContext) {
			return types.NewProgramError(types.CodeInvalidInstruction, "closing disabled")
		}
		return nil
	}
	_, err = e.client.Transfer(ctx, alice, e.mint, bob.Owner.Address(), 400)
	require.True(t, errors.As(err, &leak), "got %v", err)
	require.Len(t, leak.Accounts, 1)
	require.Less(t, e.lamports(t, e.payer.Address()), before)

	e.ledger.before, e.ledger.after = nil, nil
	receipts, err := e.client.CloseContextAccounts(ctx, alice, leak.Accounts)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Equal(t, before, e.lamports(t, e.payer.Address()))
}

func TestTransferLeakIsRecoverable(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	alice := e.holder(t, 1, 1_000)
	bob := e.holder(t, 2, 0)
	_, err := e.client.Deposit(ctx, alice, e.mint, 1_000)
	require.NoError(t, err)
	_, err = e.client.ApplyPending(ctx, alice, e.mint)
	require.NoError(t, err)

	e.ledger.before = func(tx *types.Transaction) error {
		if hasAction(tx, types.ActionCloseContext) {
			return types.NewProgramError(types.CodeInvalidInstruction, "closing disabled")
		}
		return nil
	}
	before := e.lamports(t, e.payer.Address())
	_, err = e.client.Transfer(ctx, alice, e.mint, bob.Owner.Address(), 400)
	var leak *confidential.RecoverableLeakError
	require.True(t, errors.As(err, &leak), "got %v", err)
	require.Len(t, leak.Accounts, 3)
	require.Less(t, e.lamports(t, e.payer.Address()), before)

	// The transfer itself went through.
	require.Equal(t, uint64(400), e.balances(t, bob).Pending)

	e.ledger.before = nil
	receipts, err := e.client.CloseContextAccounts(ctx, alice, leak.Accounts)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Equal(t, before, e.lamports(t, e.payer.Address()))

	receipts, err = e.client.CloseContextAccounts(ctx, alice, leak.Accounts)
	require.NoError(t, err)
	require.Empty(t, receipts)
}

func TestAirdropNeedsDevelopmentLedger(t *testing.T) {
	l, err := memledger.New(memledger.Defaults)
	require.NoError(t, err)
	defer l.Close()
	c, err := New(struct{ confidential.LedgerClient }{l}, ctengine.New(), Defaults)
	require.NoError(t, err)
	_, err = c.Airdrop(context.Background(), common.Address{1}, 0)
	require.ErrorIs(t, err, errAirdropUnsupported)

	c, err = New(l, ctengine.New(), Defaults)
	require.NoError(t, err)
	balance, err := c.Airdrop(context.Background(), common.Address{1}, 0)
	require.NoError(t, err)
	require.Equal(t, Defaults.AirdropLamports, balance)
}
