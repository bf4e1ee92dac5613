package memledger

import (
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/zkproof"
)

// maxContextCapacity bounds a single proof held in a context account.
const maxContextCapacity = 64 * 1024

func (e *executor) loadContext(addr common.Address) (*types.ContextAccount, uint64, error) {
	raw, err := e.load(addr)
	if err != nil {
		return nil, 0, err
	}
	c, lamports, err := types.DecodeContextAccount(raw)
	if err != nil {
		return nil, 0, wrongKind(addr, err)
	}
	return c, lamports, nil
}

func (e *executor) storeContext(addr common.Address, c *types.ContextAccount, lamports uint64) error {
	raw, err := types.EncodeContextAccount(c, lamports)
	if err != nil {
		return err
	}
	e.st.put(addr, raw)
	return nil
}

// createContext allocates a context account owned by the payer. The new
// address must sign, so it cannot collide with an account someone else uses.
func (e *executor) createContext(p *types.CreateContextPayload) error {
	if err := e.requireFree(p.Context); err != nil {
		return err
	}
	if err := e.requireSigner(p.Context, "context account"); err != nil {
		return err
	}
	if p.Capacity == 0 || p.Capacity > maxContextCapacity {
		return types.NewProgramError(types.CodeInvalidInstruction, "context capacity %d", p.Capacity)
	}
	if !p.ProofKind.Valid() {
		return types.NewProgramError(types.CodeInvalidInstruction, "proof kind %d", p.ProofKind)
	}
	collateral := e.cfg.Collateral(int(p.Capacity))
	if err := e.debit(e.payer, collateral); err != nil {
		return err
	}
	c := &types.ContextAccount{
		Authority: e.payer,
		ProofKind: p.ProofKind,
		Capacity:  p.Capacity,
		Data:      make([]byte, p.Capacity),
	}
	return e.storeContext(p.Context, c, collateral)
}

func (e *executor) writableContext(addr common.Address) (*types.ContextAccount, uint64, error) {
	c, lamports, err := e.loadContext(addr)
	if err != nil {
		return nil, 0, err
	}
	if err := e.requireSigner(c.Authority, "context authority"); err != nil {
		return nil, 0, err
	}
	if c.Verified {
		return nil, 0, types.NewProgramError(types.CodeContextAlreadyVerified, "%s", addr.TerminalString())
	}
	return c, lamports, nil
}

func (e *executor) writeContext(p *types.WriteContextPayload) error {
	c, lamports, err := e.writableContext(p.Context)
	if err != nil {
		return err
	}
	end := uint64(p.Offset) + uint64(len(p.Data))
	if end > uint64(c.Capacity) {
		return types.NewProgramError(types.CodeInvalidInstruction, "write [%d, %d) beyond capacity %d", p.Offset, end, c.Capacity)
	}
	copy(c.Data[p.Offset:end], p.Data)
	return e.storeContext(p.Context, c, lamports)
}

func (e *executor) verifyContext(p *types.VerifyContextPayload) error {
	c, lamports, err := e.writableContext(p.Context)
	if err != nil {
		return err
	}
	if _, err := zkproof.DecodeAndVerify(c.ProofKind, c.Data); err != nil {
		return types.NewProgramError(types.CodeProofVerificationFailed, "%s proof in %s: %v", c.ProofKind, p.Context.TerminalString(), err)
	}
	c.Verified = true
	return e.storeContext(p.Context, c, lamports)
}

// closeContext returns the collateral to the destination. Closing an
// account that does not exist is a no-op.
func (e *executor) closeContext(p *types.CloseContextPayload) error {
	raw := e.st.get(p.Context)
	if raw == nil {
		return nil
	}
	c, lamports, err := types.DecodeContextAccount(raw)
	if err != nil {
		return wrongKind(p.Context, err)
	}
	if err := e.requireSigner(c.Authority, "context authority"); err != nil {
		return err
	}
	dest := p.Destination
	if dest.IsZero() {
		dest = c.Authority
	}
	e.st.remove(p.Context)
	return e.credit(dest, lamports)
}
