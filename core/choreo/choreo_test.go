package choreo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/zkproof"
	"github.com/tos-network/ctbal/params"
)

// recordingLedger accepts everything except the actions listed in reject and
// tracks which context accounts are open.
type recordingLedger struct {
	mu       sync.Mutex
	maxSize  int
	txs      []*types.Transaction
	contexts map[common.Address]*types.ContextAccount
	reject   map[uint8]error
	lost     map[uint8]bool
	onSubmit func(*types.Transaction)
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{
		maxSize:  params.MaxTransactionSize,
		contexts: make(map[common.Address]*types.ContextAccount),
		reject:   make(map[uint8]error),
		lost:     make(map[uint8]bool),
	}
}

func (l *recordingLedger) Fetch(ctx context.Context, addr common.Address) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.contexts[addr]
	if !ok {
		return nil, types.ErrAccountNotFound
	}
	return types.EncodeContextAccount(acc, 1)
}

func (l *recordingLedger) Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if l.onSubmit != nil {
		l.onSubmit(tx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if size := tx.Size(); size > l.maxSize {
		return nil, &types.SizeLimitError{Size: size, Limit: l.maxSize}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, ins := range tx.Instructions {
		if err, ok := l.reject[ins.Action]; ok {
			return nil, &types.ProgramError{Instruction: i, Code: types.CodeInvalidInstruction, Detail: err.Error()}
		}
	}
	l.txs = append(l.txs, tx)
	for _, ins := range tx.Instructions {
		switch ins.Action {
		case types.ActionCreateContext:
			var p types.CreateContextPayload
			if err := ins.DecodeBody(&p); err != nil {
				return nil, err
			}
			l.contexts[p.Context] = &types.ContextAccount{Authority: tx.Payer, ProofKind: p.ProofKind, Capacity: p.Capacity}
		case types.ActionCloseContext:
			var p types.CloseContextPayload
			if err := ins.DecodeBody(&p); err != nil {
				return nil, err
			}
			delete(l.contexts, p.Context)
		}
	}
	if l.lost[tx.Instructions[0].Action] {
		return nil, fmt.Errorf("%w: timeout waiting for confirmation", types.ErrSubmission)
	}
	return &types.Receipt{TxHash: tx.Hash(), Slot: uint64(len(l.txs)), Size: tx.Size()}, nil
}

func (l *recordingLedger) LatestOrderingToken(ctx context.Context) (common.Hash, error) {
	return common.Hash{1}, nil
}

func (l *recordingLedger) MaxTransactionSize() int { return l.maxSize }

func (l *recordingLedger) actions() [][]uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]uint8, len(l.txs))
	for i, tx := range l.txs {
		for _, ins := range tx.Instructions {
			out[i] = append(out[i], ins.Action)
		}
	}
	return out
}

func testSigner(t *testing.T, seed byte) accountsigner.Signer {
	signer, err := accountsigner.NewEd25519Signer(bytes.Repeat([]byte{seed}, 32))
	require.NoError(t, err)
	return signer
}

// withdrawTransition returns a transition with two artifacts of the given sizes.
func withdrawTransition(eqSize, rangeSize int) *confidential.Transition {
	bundle := &confidential.ProofBundle{
		Equality: confidential.ProofArtifact{Kind: zkproof.KindCiphertextCommitmentEquality, Data: bytes.Repeat([]byte{1}, eqSize)},
		Range:    confidential.ProofArtifact{Kind: zkproof.KindRange, Data: bytes.Repeat([]byte{2}, rangeSize)},
	}
	account := common.BytesToAddress([]byte{0x42})
	return &confidential.Transition{
		Action: types.ActionWithdraw,
		Bundle: bundle,
		Primary: func(locs []types.ProofLocation) (types.Instruction, error) {
			if len(locs) != 2 {
				return types.Instruction{}, errors.New("want two locations")
			}
			return types.NewInstruction(types.ActionWithdraw, &types.WithdrawPayload{
				Account: account, Amount: 5, Equality: locs[0], Range: locs[1],
			})
		},
	}
}

func newTestChoreographer(t *testing.T, l *recordingLedger) *Choreographer {
	c, err := New(l, Config{ChunkSize: 850})
	require.NoError(t, err)
	return c
}

func TestExecuteChunksAndCleansUp(t *testing.T) {
	ledger := newRecordingLedger()
	c := newTestChoreographer(t, ledger)
	payer, owner := testSigner(t, 1), testSigner(t, 2)

	res, err := c.Execute(context.Background(), Request{
		Payer:    payer,
		Signers:  []accountsigner.Signer{owner},
		Generate: func() (*confidential.Transition, error) { return withdrawTransition(192, 2000), nil },
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.OpID)
	require.Len(t, res.Contexts, 2)

	want := [][]uint8{
		{types.ActionCreateContext},
		{types.ActionWriteContext, types.ActionVerifyContext},
		{types.ActionCreateContext},
		{types.ActionWriteContext},
		{types.ActionWriteContext},
		{types.ActionWriteContext, types.ActionVerifyContext},
		{types.ActionWithdraw},
		{types.ActionCloseContext, types.ActionCloseContext},
	}
	require.Equal(t, want, ledger.actions())
	require.Len(t, res.Receipts, len(want))
	require.Empty(t, ledger.contexts, "every context account must be closed")

	// Chunks are written at increasing offsets and reassemble the proof.
	var data []byte
	for _, tx := range ledger.txs[3:6] {
		var p types.WriteContextPayload
		require.NoError(t, tx.Instructions[0].DecodeBody(&p))
		require.Equal(t, res.Contexts[1], p.Context)
		require.Equal(t, uint32(len(data)), p.Offset)
		require.LessOrEqual(t, len(p.Data), 850)
		data = append(data, p.Data...)
	}
	require.Equal(t, bytes.Repeat([]byte{2}, 2000), data)

	var primary types.WithdrawPayload
	require.NoError(t, ledger.txs[6].Instructions[0].DecodeBody(&primary))
	require.Equal(t, res.Contexts[0], primary.Equality.Context)
	require.Equal(t, res.Contexts[1], primary.Range.Context)
	require.Len(t, ledger.txs[6].Signatures, 2)

	for _, tx := range ledger.txs {
		require.LessOrEqual(t, tx.Size(), params.MaxTransactionSize)
	}
}

func TestExecuteKeepsFittingProofsInline(t *testing.T) {
	ledger := newRecordingLedger()
	c := newTestChoreographer(t, ledger)
	res, err := c.Execute(context.Background(), Request{
		Payer:    testSigner(t, 1),
		Generate: func() (*confidential.Transition, error) { return withdrawTransition(100, 100), nil },
	})
	require.NoError(t, err)
	require.Empty(t, res.Contexts)
	require.Equal(t, [][]uint8{{types.ActionWithdraw}}, ledger.actions())

	var primary types.WithdrawPayload
	require.NoError(t, ledger.txs[0].Instructions[0].DecodeBody(&primary))
	require.Equal(t, bytes.Repeat([]byte{1}, 100), primary.Equality.Inline)
	require.Equal(t, bytes.Repeat([]byte{2}, 100), primary.Range.Inline)
}

func TestExecuteMixesInlineAndContextProofs(t *testing.T) {
	ledger := newRecordingLedger()
	c := newTestChoreographer(t, ledger)
	res, err := c.Execute(context.Background(), Request{
		Payer:    testSigner(t, 1),
		Generate: func() (*confidential.Transition, error) { return withdrawTransition(900, 300), nil },
	})
	require.NoError(t, err)
	require.Len(t, res.Contexts, 1)

	var primary types.WithdrawPayload
	tx := ledger.txs[len(ledger.txs)-2]
	require.NoError(t, tx.Instructions[0].DecodeBody(&primary))
	require.Equal(t, res.Contexts[0], primary.Equality.Context)
	require.False(t, primary.Range.IsContext())
	require.Equal(t, bytes.Repeat([]byte{2}, 300), primary.Range.Inline)
	require.Empty(t, ledger.contexts)
}

func TestExecuteUnfittablePrimarySubmitsNothing(t *testing.T) {
	ledger := newRecordingLedger()
	c := newTestChoreographer(t, ledger)
	res, err := c.Execute(context.Background(), Request{
		Payer: testSigner(t, 1),
		Generate: func() (*confidential.Transition, error) {
			tr := withdrawTransition(100, 100)
			pad, err := types.NewInstruction(types.ActionWriteContext, &types.WriteContextPayload{Data: make([]byte, 1500)})
			tr.Instructions = []types.Instruction{pad}
			return tr, err
		},
	})
	require.ErrorIs(t, err, confidential.ErrSizeLimit)
	require.Empty(t, res.Contexts)
	require.Empty(t, ledger.txs)
}

func TestExecuteClosesContextWhoseAllocationReplyWasLost(t *testing.T) {
	ledger := newRecordingLedger()
	ledger.lost[types.ActionCreateContext] = true
	c := newTestChoreographer(t, ledger)

	res, err := c.Execute(context.Background(), Request{
		Payer:    testSigner(t, 1),
		Generate: func() (*confidential.Transition, error) { return withdrawTransition(192, 1200), nil },
	})
	require.ErrorIs(t, err, confidential.ErrSubmission)
	var serr *StageError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, StageAllocate, serr.Stage)
	var leak *confidential.RecoverableLeakError
	require.False(t, errors.As(err, &leak))
	require.Len(t, res.Contexts, 1)
	require.Empty(t, ledger.contexts, "the applied allocation must be closed")
	require.Equal(t, [][]uint8{{types.ActionCreateContext}, {types.ActionCloseContext}}, ledger.actions())

	// A failing close names the stranded account.
	ledger.reject[types.ActionCloseContext] = errors.New("ledger busy")
	res, err = c.Execute(context.Background(), Request{
		Payer:    testSigner(t, 1),
		Generate: func() (*confidential.Transition, error) { return withdrawTransition(192, 1200), nil },
	})
	require.ErrorAs(t, err, &leak)
	require.Equal(t, res.Contexts, leak.Accounts)
	require.Contains(t, ledger.contexts, leak.Accounts[0])
}

func TestExecuteGenerateFailureSubmitsNothing(t *testing.T) {
	ledger := newRecordingLedger()
	c := newTestChoreographer(t, ledger)
	_, err := c.Execute(context.Background(), Request{
		Payer:    testSigner(t, 1),
		Generate: func() (*confidential.Transition, error) { return nil, confidential.ErrInsufficientBalance },
	})
	require.ErrorIs(t, err, confidential.ErrInsufficientBalance)
	var serr *StageError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, StageGenerate, serr.Stage)
	require.Empty(t, ledger.txs)
}

func TestExecuteClosesAfterPrimaryFailure(t *testing.T) {
	ledger := newRecordingLedger()
	ledger.reject[types.ActionWithdraw] = errors.New("equality proof mismatch")
	c := newTestChoreographer(t, ledger)

	res, err := c.Execute(context.Background(), Request{
		Payer:    testSigner(t, 1),
		Generate: func() (*confidential.Transition, error) { return withdrawTransition(192, 1200), nil },
	})
	require.ErrorIs(t, err, confidential.ErrSubmission)
	var serr *StageError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, StagePrimary, serr.Stage)
	var leak *confidential.RecoverableLeakError
	require.False(t, errors.As(err, &leak))
	require.Len(t, res.Contexts, 2)
	require.Empty(t, ledger.contexts)
}

func TestExecuteCleanupSurvivesCancellation(t *testing.T) {
	ledger := newRecordingLedger()
	c := newTestChoreographer(t, ledger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ledger.onSubmit = func(tx *types.Transaction) {
		if tx.Instructions[0].Action == types.ActionWithdraw {
			cancel()
		}
	}
	res, err := c.Execute(ctx, Request{
		Payer:    testSigner(t, 1),
		Generate: func() (*confidential.Transition, error) { return withdrawTransition(100, 1200), nil },
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, res.Contexts, 2)
	require.Empty(t, ledger.contexts, "cleanup must run after cancellation")
}

func TestExecuteReportsLeakAndRecovers(t *testing.T) {
	ledger := newRecordingLedger()
	ledger.reject[types.ActionCloseContext] = errors.New("ledger busy")
	c := newTestChoreographer(t, ledger)
	payer := testSigner(t, 1)

	res, err := c.Execute(context.Background(), Request{
		Payer:    payer,
		Generate: func() (*confidential.Transition, error) { return withdrawTransition(100, 1200), nil },
	})
	require.Error(t, err)
	var leak *confidential.RecoverableLeakError
	require.ErrorAs(t, err, &leak)
	require.ElementsMatch(t, res.Contexts, leak.Accounts)
	require.Len(t, ledger.contexts, 2)

	// The primary succeeded; only the cleanup is reported.
	var serr *StageError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, StageCleanup, serr.Stage)

	delete(ledger.reject, types.ActionCloseContext)
	receipts, err := c.CloseContextAccounts(context.Background(), payer, payer.Address(), leak.Accounts)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Empty(t, ledger.contexts)

	receipts, err = c.CloseContextAccounts(context.Background(), payer, payer.Address(), leak.Accounts)
	require.NoError(t, err)
	require.Empty(t, receipts)
}

func TestCloseContextAccountsChecksAuthority(t *testing.T) {
	ledger := newRecordingLedger()
	c := newTestChoreographer(t, ledger)
	addr := common.BytesToAddress([]byte{9})
	ledger.contexts[addr] = &types.ContextAccount{Authority: common.BytesToAddress([]byte{7})}
	_, err := c.CloseContextAccounts(context.Background(), testSigner(t, 1), common.Address{}, []common.Address{addr})
	require.ErrorIs(t, err, errNotContextAuthority)
}

func TestSubmitSizePrecheck(t *testing.T) {
	ledger := newRecordingLedger()
	c := newTestChoreographer(t, ledger)
	ins, err := types.NewInstruction(types.ActionWriteContext, &types.WriteContextPayload{Data: make([]byte, 2000)})
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), testSigner(t, 1), nil, ins)
	require.ErrorIs(t, err, confidential.ErrSizeLimit)
	var size *types.SizeLimitError
	require.ErrorAs(t, err, &size)
	require.Equal(t, params.MaxTransactionSize, size.Limit)
	require.Empty(t, ledger.txs)
}

func TestSplitChunks(t *testing.T) {
	require.Len(t, splitChunks(make([]byte, 850), 850), 1)
	require.Len(t, splitChunks(make([]byte, 851), 850), 2)
	require.Len(t, splitChunks(nil, 850), 1)
	require.Equal(t, "populate", StagePopulate.String())
}
