// Package choreo moves proofs that do not fit a single transaction through
// context accounts: allocate, populate in chunks, verify, consume and close.
package choreo

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/confidential"
	"github.com/tos-network/ctbal/core/types"
)

var errNoBundle = errors.New("choreo: transition carries no proof bundle")

// Choreographer submits transactions strictly one after another, each only
// once the previous one is confirmed. It holds no per-operation state.
type Choreographer struct {
	ledger confidential.LedgerClient
	cfg    Config
	log    log.Logger
}

// New returns a choreographer submitting to ledger.
func New(ledger confidential.LedgerClient, cfg Config) (*Choreographer, error) {
	cfg, err := cfg.sanitize()
	if err != nil {
		return nil, err
	}
	return &Choreographer{ledger: ledger, cfg: cfg, log: cfg.Logger}, nil
}

// Submit signs ins with payer and signers and waits for the receipt. A
// transaction over the ledger limit fails with *types.SizeLimitError before
// anything is sent.
func (c *Choreographer) Submit(ctx context.Context, payer accountsigner.Signer, signers []accountsigner.Signer, ins ...types.Instruction) (*types.Receipt, error) {
	token, err := c.ledger.LatestOrderingToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: ordering token: %w", confidential.ErrSubmission, err)
	}
	tx, err := signedTx(payer, signers, token, ins)
	if err != nil {
		return nil, err
	}
	if limit := c.ledger.MaxTransactionSize(); limit > 0 {
		if size := tx.Size(); size > limit {
			return nil, &types.SizeLimitError{Size: size, Limit: limit}
		}
	}
	start := time.Now()
	receipt, err := c.ledger.Submit(ctx, tx)
	submitTimer.UpdateSince(start)
	if err != nil {
		submitFailMeter.Mark(1)
		if errors.Is(err, confidential.ErrSizeLimit) || errors.Is(err, confidential.ErrSubmission) {
			return nil, confidential.ClassifySubmitError(err)
		}
		return nil, fmt.Errorf("%w: %w", confidential.ErrSubmission, confidential.ClassifySubmitError(err))
	}
	return receipt, nil
}

func signedTx(payer accountsigner.Signer, signers []accountsigner.Signer, token common.Hash, ins []types.Instruction) (*types.Transaction, error) {
	tx := types.NewTransaction(payer.Address(), token, ins...)
	if err := tx.Sign(append([]accountsigner.Signer{payer}, signers...)...); err != nil {
		return nil, fmt.Errorf("%w: sign: %w", confidential.ErrSubmission, err)
	}
	return tx, nil
}

// Request is one operation whose proofs travel through context accounts.
type Request struct {
	// Payer funds collateral, owns the context accounts and signs every
	// submission.
	Payer accountsigner.Signer

	// Signers co-sign the primary submission, usually the token owner.
	Signers []accountsigner.Signer

	// Generate computes the transition. It runs first so a failing precheck
	// costs no submissions.
	Generate func() (*confidential.Transition, error)
}

// Result collects what an operation produced, including partial progress
// when it failed.
type Result struct {
	OpID       string
	Transition *confidential.Transition
	Contexts   []common.Address
	Receipts   []types.Receipt
}

func (r *Result) record(receipt *types.Receipt) {
	if receipt != nil {
		r.Receipts = append(r.Receipts, *receipt)
	}
}

// Execute runs the saga generate, allocate, populate, primary, cleanup.
// Artifacts that fit the primary transaction stay inline; the others move
// through context accounts. Cleanup runs whenever an allocation was
// attempted, on a context that ignores cancellation of ctx. A cleanup
// failure is joined to the primary outcome as a
// *confidential.RecoverableLeakError.
func (c *Choreographer) Execute(ctx context.Context, req Request) (*Result, error) {
	res := &Result{OpID: uuid.NewString()}
	logger := c.log.New("op", res.OpID)

	tr, err := req.Generate()
	if err != nil {
		return res, stageErr(StageGenerate, err)
	}
	if tr.Bundle == nil || tr.Primary == nil {
		return res, stageErr(StageGenerate, errNoBundle)
	}
	res.Transition = tr
	artifacts := tr.Bundle.Artifacts()
	viaContext, err := c.plan(req, tr, artifacts)
	if err != nil {
		return res, stageErr(StageGenerate, err)
	}
	logger.Debug("Generated proof bundle", "action", types.ActionName(tr.Action), "artifacts", len(artifacts), "size", tr.Bundle.TotalSize(), "contexts", countTrue(viaContext))

	locs := make([]types.ProofLocation, len(artifacts))
	err = c.populateAll(ctx, logger, req.Payer, artifacts, viaContext, locs, res)
	if err == nil {
		err = c.primary(ctx, logger, req, tr, locs, res)
	}
	if len(res.Contexts) > 0 {
		if cerr := c.cleanup(context.WithoutCancel(ctx), logger, req.Payer, req.Payer.Address(), res.Contexts, res); cerr != nil {
			err = errors.Join(err, stageErr(StageCleanup, cerr))
		}
	}
	return res, err
}

// placeholderContext stands in for a context address while sizing the
// primary transaction. Addresses encode to the same length.
var placeholderContext = common.Address{0xff}

// plan decides in bundle order which artifacts go through context accounts.
// An artifact stays inline when the primary transaction still fits with it
// and every later artifact inline.
func (c *Choreographer) plan(req Request, tr *confidential.Transition, artifacts []confidential.ProofArtifact) ([]bool, error) {
	viaContext := make([]bool, len(artifacts))
	limit := c.ledger.MaxTransactionSize()
	if limit <= 0 {
		return viaContext, nil
	}
	for i := 0; ; i++ {
		size, err := primarySize(req, tr, artifacts, viaContext)
		if err != nil {
			return nil, err
		}
		if size <= limit {
			return viaContext, nil
		}
		if i == len(artifacts) {
			return nil, &types.SizeLimitError{Size: size, Limit: limit}
		}
		viaContext[i] = true
	}
}

func primarySize(req Request, tr *confidential.Transition, artifacts []confidential.ProofArtifact, viaContext []bool) (int, error) {
	locs := make([]types.ProofLocation, len(artifacts))
	for i, a := range artifacts {
		if viaContext[i] {
			locs[i] = types.ContextProof(placeholderContext)
		} else {
			locs[i] = types.InlineProof(a.Data)
		}
	}
	ins, err := tr.Primary(locs)
	if err != nil {
		return 0, err
	}
	all := append(append([]types.Instruction(nil), tr.Instructions...), ins)
	tx, err := signedTx(req.Payer, req.Signers, common.Hash{}, all)
	if err != nil {
		return 0, err
	}
	return tx.Size(), nil
}

func countTrue(v []bool) int {
	n := 0
	for _, b := range v {
		if b {
			n++
		}
	}
	return n
}

func (c *Choreographer) populateAll(ctx context.Context, logger log.Logger, payer accountsigner.Signer, artifacts []confidential.ProofArtifact, viaContext []bool, locs []types.ProofLocation, res *Result) error {
	for i, a := range artifacts {
		if !viaContext[i] {
			locs[i] = types.InlineProof(a.Data)
			continue
		}
		addr, err := c.populate(ctx, logger, payer, a, res)
		if err != nil {
			return err
		}
		locs[i] = types.ContextProof(addr)
	}
	return nil
}

// populate allocates one context account for a and fills it. The account
// address belongs to a fresh keypair that signs only the allocation. The
// address is recorded before the allocation is sent, since a submission
// that fails on the way back may still have been applied.
func (c *Choreographer) populate(ctx context.Context, logger log.Logger, payer accountsigner.Signer, a confidential.ProofArtifact, res *Result) (common.Address, error) {
	owner, err := accountsigner.GenerateEd25519Signer(rand.Reader)
	if err != nil {
		return common.Address{}, stageErr(StageAllocate, err)
	}
	addr := owner.Address()
	create, err := types.NewInstruction(types.ActionCreateContext, &types.CreateContextPayload{
		Context:   addr,
		ProofKind: a.Kind,
		Capacity:  uint32(a.Size()),
	})
	if err != nil {
		return common.Address{}, stageErr(StageAllocate, err)
	}
	res.Contexts = append(res.Contexts, addr)
	receipt, err := c.Submit(ctx, payer, []accountsigner.Signer{owner}, create)
	if err != nil {
		return common.Address{}, stageErr(StageAllocate, fmt.Errorf("%s: %w", addr.TerminalString(), err))
	}
	res.record(receipt)
	allocatedCounter.Inc(1)
	logger.Debug("Allocated context account", "context", addr.TerminalString(), "kind", a.Kind, "size", a.Size())

	chunks := splitChunks(a.Data, c.cfg.ChunkSize)
	for i, chunk := range chunks {
		write, err := types.NewInstruction(types.ActionWriteContext, &types.WriteContextPayload{
			Context: addr,
			Offset:  uint32(i * c.cfg.ChunkSize),
			Data:    chunk,
		})
		if err != nil {
			return common.Address{}, stageErr(StagePopulate, err)
		}
		ins := []types.Instruction{write}
		if i == len(chunks)-1 {
			verify, err := types.NewInstruction(types.ActionVerifyContext, &types.VerifyContextPayload{Context: addr})
			if err != nil {
				return common.Address{}, stageErr(StagePopulate, err)
			}
			ins = append(ins, verify)
		}
		receipt, err := c.Submit(ctx, payer, nil, ins...)
		if err != nil {
			return common.Address{}, stageErr(StagePopulate, fmt.Errorf("chunk %d/%d of %s: %w", i+1, len(chunks), addr.TerminalString(), err))
		}
		res.record(receipt)
		chunkMeter.Mark(1)
	}
	logger.Debug("Verified context account", "context", addr.TerminalString(), "chunks", len(chunks))
	return addr, nil
}

func (c *Choreographer) primary(ctx context.Context, logger log.Logger, req Request, tr *confidential.Transition, locs []types.ProofLocation, res *Result) error {
	ins, err := tr.Primary(locs)
	if err != nil {
		return stageErr(StagePrimary, err)
	}
	all := append(append([]types.Instruction(nil), tr.Instructions...), ins)
	receipt, err := c.Submit(ctx, req.Payer, req.Signers, all...)
	if err != nil {
		return stageErr(StagePrimary, err)
	}
	res.record(receipt)
	logger.Info("Submitted proof-carrying instruction", "action", types.ActionName(tr.Action), "tx", receipt.TxHash.TerminalString(), "contexts", len(res.Contexts))
	return nil
}

func splitChunks(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return [][]byte{nil}
	}
	var chunks [][]byte
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	return append(chunks, data)
}
