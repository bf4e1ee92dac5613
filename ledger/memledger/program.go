package memledger

import (
	"errors"

	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/params"
)

// executor runs the instructions of one transaction against an overlay.
type executor struct {
	cfg     *Config
	st      *overlay
	payer   common.Address
	signers map[common.Address]bool
}

func decodeBody(ins types.Instruction, out interface{}) error {
	if err := ins.DecodeBody(out); err != nil {
		return types.NewProgramError(types.CodeInvalidInstruction, "%s: %v", types.ActionName(ins.Action), err)
	}
	return nil
}

func (e *executor) execute(ins types.Instruction) error {
	switch ins.Action {
	case types.ActionCreateMint:
		p := new(types.CreateMintPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.createMint(p)
	case types.ActionCreateTokenAccount:
		p := new(types.CreateTokenAccountPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.createTokenAccount(p)
	case types.ActionMintTo:
		p := new(types.MintToPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.mintTo(p)
	case types.ActionConfigureAccount:
		p := new(types.ConfigureAccountPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.configureAccount(p)
	case types.ActionDeposit:
		p := new(types.DepositPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.deposit(p)
	case types.ActionApplyPending:
		p := new(types.ApplyPendingPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.applyPending(p)
	case types.ActionWithdraw:
		p := new(types.WithdrawPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.withdraw(p)
	case types.ActionTransfer:
		p := new(types.TransferPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.transfer(p)
	case types.ActionCreateContext:
		p := new(types.CreateContextPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.createContext(p)
	case types.ActionWriteContext:
		p := new(types.WriteContextPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.writeContext(p)
	case types.ActionVerifyContext:
		p := new(types.VerifyContextPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.verifyContext(p)
	case types.ActionCloseContext:
		p := new(types.CloseContextPayload)
		if err := decodeBody(ins, p); err != nil {
			return err
		}
		return e.closeContext(p)
	}
	return types.NewProgramError(types.CodeInvalidInstruction, "unsupported action %#x", ins.Action)
}

func (e *executor) requireSigner(addr common.Address, role string) error {
	if !e.signers[addr] {
		return types.NewProgramError(types.CodeMissingSignature, "%s %s", role, addr.TerminalString())
	}
	return nil
}

func (e *executor) requireFree(addr common.Address) error {
	if addr.IsZero() {
		return types.NewProgramError(types.CodeInvalidInstruction, "zero address")
	}
	if e.st.get(addr) != nil {
		return types.NewProgramError(types.CodeAccountInUse, "%s", addr.TerminalString())
	}
	return nil
}

func (e *executor) load(addr common.Address) ([]byte, error) {
	raw := e.st.get(addr)
	if raw == nil {
		return nil, types.NewProgramError(types.CodeAccountNotFound, "%s", addr.TerminalString())
	}
	return raw, nil
}

func wrongKind(addr common.Address, err error) error {
	return types.NewProgramError(types.CodeInvalidInstruction, "%s: %v", addr.TerminalString(), err)
}

func (e *executor) loadMint(addr common.Address) (*types.Mint, *types.ConfidentialMint, uint64, error) {
	raw, err := e.load(addr)
	if err != nil {
		return nil, nil, 0, err
	}
	m, lamports, err := types.DecodeMintAccount(raw)
	if err != nil {
		return nil, nil, 0, wrongKind(addr, err)
	}
	ext, err := m.ConfidentialExtension()
	if err != nil {
		return nil, nil, 0, types.NewProgramError(types.CodeExtensionNotFound, "mint %s", addr.TerminalString())
	}
	return m, ext, lamports, nil
}

func (e *executor) storeMint(addr common.Address, m *types.Mint, lamports uint64) error {
	raw, err := types.EncodeMintAccount(m, lamports)
	if err != nil {
		return err
	}
	e.st.put(addr, raw)
	return nil
}

func (e *executor) loadToken(addr common.Address) (*types.TokenAccount, uint64, error) {
	raw, err := e.load(addr)
	if err != nil {
		return nil, 0, err
	}
	acc, lamports, err := types.DecodeTokenAccount(raw)
	if err != nil {
		return nil, 0, wrongKind(addr, err)
	}
	return acc, lamports, nil
}

// tokenAccount is a decoded token account with its confidential extension.
type tokenAccount struct {
	addr     common.Address
	acc      *types.TokenAccount
	ext      *types.ConfidentialAccount
	lamports uint64
}

func (e *executor) loadConfidential(addr common.Address) (*tokenAccount, error) {
	acc, lamports, err := e.loadToken(addr)
	if err != nil {
		return nil, err
	}
	ext, err := acc.ConfidentialExtension()
	if errors.Is(err, types.ErrExtensionNotFound) {
		return nil, types.NewProgramError(types.CodeExtensionNotFound, "account %s not configured", addr.TerminalString())
	}
	if err != nil {
		return nil, wrongKind(addr, err)
	}
	return &tokenAccount{addr: addr, acc: acc, ext: ext, lamports: lamports}, nil
}

func (e *executor) storeConfidential(t *tokenAccount) error {
	if err := t.acc.SetConfidentialExtension(t.ext); err != nil {
		return err
	}
	return e.storeToken(t.addr, t.acc, t.lamports)
}

func (e *executor) storeToken(addr common.Address, acc *types.TokenAccount, lamports uint64) error {
	raw, err := types.EncodeTokenAccount(acc, lamports)
	if err != nil {
		return err
	}
	e.st.put(addr, raw)
	return nil
}

// lamports returns the balance of a system account; missing accounts hold none.
func (e *executor) lamports(addr common.Address) (uint64, error) {
	raw := e.st.get(addr)
	if raw == nil {
		return 0, nil
	}
	acc, err := types.DecodeAccount(raw)
	if err != nil {
		return 0, wrongKind(addr, err)
	}
	if acc.Kind != types.AccountSystem {
		return 0, wrongKind(addr, types.ErrWrongAccountKind)
	}
	return acc.Lamports, nil
}

func (e *executor) setLamports(addr common.Address, lamports uint64) error {
	raw, err := types.EncodeAccount(&types.Account{Kind: types.AccountSystem, Lamports: lamports})
	if err != nil {
		return err
	}
	e.st.put(addr, raw)
	return nil
}

func (e *executor) credit(addr common.Address, amount uint64) error {
	have, err := e.lamports(addr)
	if err != nil {
		return err
	}
	next, err := add64(have, amount)
	if err != nil {
		return err
	}
	return e.setLamports(addr, next)
}

func (e *executor) debit(addr common.Address, amount uint64) error {
	have, err := e.lamports(addr)
	if err != nil {
		return err
	}
	next, err := sub64(have, amount, types.CodeInsufficientLamports)
	if err != nil {
		return err
	}
	return e.setLamports(addr, next)
}

func (e *executor) createMint(p *types.CreateMintPayload) error {
	if err := e.requireFree(p.Mint); err != nil {
		return err
	}
	if err := e.requireSigner(p.Authority, "mint authority"); err != nil {
		return err
	}
	auditor := p.Auditor
	if auditor == (elgamal.PublicKey{}) {
		auditor = elgamal.PublicKey(elgamal.IdentityPoint())
	}
	if _, err := auditor.Point(); err != nil {
		return types.NewProgramError(types.CodeInvalidInstruction, "auditor key: %v", err)
	}
	m := &types.Mint{Authority: p.Authority, Decimals: p.Decimals}
	if err := m.SetConfidentialExtension(&types.ConfidentialMint{Authority: p.Authority, AutoApprove: p.AutoApprove, Auditor: auditor}); err != nil {
		return err
	}
	return e.storeMint(p.Mint, m, 0)
}

func (e *executor) createTokenAccount(p *types.CreateTokenAccountPayload) error {
	if p.Account != types.DeriveTokenAccount(p.Owner, p.Mint) {
		return types.NewProgramError(types.CodeInvalidInstruction, "account %s is not derived from owner and mint", p.Account.TerminalString())
	}
	if err := e.requireFree(p.Account); err != nil {
		return err
	}
	if _, _, _, err := e.loadMint(p.Mint); err != nil {
		return err
	}
	return e.storeToken(p.Account, &types.TokenAccount{Mint: p.Mint, Owner: p.Owner}, 0)
}

func (e *executor) mintTo(p *types.MintToPayload) error {
	m, _, mintLamports, err := e.loadMint(p.Mint)
	if err != nil {
		return err
	}
	if err := e.requireSigner(m.Authority, "mint authority"); err != nil {
		return err
	}
	acc, lamports, err := e.loadToken(p.Account)
	if err != nil {
		return err
	}
	if acc.Mint != p.Mint {
		return types.NewProgramError(types.CodeMintMismatch, "account %s", p.Account.TerminalString())
	}
	if m.Supply, err = add64(m.Supply, p.Amount); err != nil {
		return err
	}
	if acc.Amount, err = add64(acc.Amount, p.Amount); err != nil {
		return err
	}
	if err := e.storeMint(p.Mint, m, mintLamports); err != nil {
		return err
	}
	return e.storeToken(p.Account, acc, lamports)
}

func (e *executor) configureAccount(p *types.ConfigureAccountPayload) error {
	acc, lamports, err := e.loadToken(p.Account)
	if err != nil {
		return err
	}
	if err := e.requireSigner(acc.Owner, "owner"); err != nil {
		return err
	}
	if types.HasExtension(acc.Extensions, types.ExtConfidentialTransferAccount) {
		return types.NewProgramError(types.CodeAlreadyConfigured, "account %s", p.Account.TerminalString())
	}
	_, mintExt, _, err := e.loadMint(acc.Mint)
	if err != nil {
		return err
	}
	proof, err := e.pubkeyProof(p.Proof)
	if err != nil {
		return err
	}
	maxPending := p.MaxPendingCredits
	if maxPending == 0 {
		maxPending = e.cfg.MaxPendingCredits
	}
	t := &tokenAccount{addr: p.Account, acc: acc, lamports: lamports, ext: &types.ConfidentialAccount{
		Approved:                    mintExt.AutoApprove,
		ElGamalPubkey:               proof.Pubkey,
		PendingLo:                   elgamal.ZeroCiphertext(),
		PendingHi:                   elgamal.ZeroCiphertext(),
		Available:                   elgamal.ZeroCiphertext(),
		DecryptableAvailable:        p.DecryptableZero,
		AllowConfidentialCredits:    true,
		AllowNonConfidentialCredits: true,
		MaxPendingCreditCounter:     maxPending,
	}}
	return e.storeConfidential(t)
}

func (e *executor) checkDecimals(mint common.Address, decimals uint8) error {
	m, _, _, err := e.loadMint(mint)
	if err != nil {
		return err
	}
	if m.Decimals != decimals {
		return types.NewProgramError(types.CodeMintDecimalsMismatch, "mint has %d, instruction %d", m.Decimals, decimals)
	}
	return nil
}

func creditPending(ext *types.ConfidentialAccount, lo, hi elgamal.Ciphertext) error {
	if ext.PendingCreditCounter >= ext.MaxPendingCreditCounter {
		return types.NewProgramError(types.CodeMaximumPendingCreditsExceeded, "%d of %d", ext.PendingCreditCounter, ext.MaxPendingCreditCounter)
	}
	var err error
	if ext.PendingLo, err = ext.PendingLo.Add(lo); err != nil {
		return types.NewProgramError(types.CodeInvalidInstruction, "pending lo: %v", err)
	}
	if ext.PendingHi, err = ext.PendingHi.Add(hi); err != nil {
		return types.NewProgramError(types.CodeInvalidInstruction, "pending hi: %v", err)
	}
	ext.PendingCreditCounter++
	return nil
}

func (e *executor) deposit(p *types.DepositPayload) error {
	t, err := e.loadConfidential(p.Account)
	if err != nil {
		return err
	}
	if err := e.requireSigner(t.acc.Owner, "owner"); err != nil {
		return err
	}
	if err := e.checkDecimals(t.acc.Mint, p.Decimals); err != nil {
		return err
	}
	if p.Amount == 0 || p.Amount > params.MaxAmount {
		return types.NewProgramError(types.CodeInvalidInstruction, "deposit amount %d", p.Amount)
	}
	if !t.ext.AllowNonConfidentialCredits {
		return types.NewProgramError(types.CodeNonConfidentialCreditsDisabled, "account %s", p.Account.TerminalString())
	}
	if t.acc.Amount, err = sub64(t.acc.Amount, p.Amount, types.CodeInsufficientFunds); err != nil {
		return err
	}
	lo := elgamal.ZeroCiphertext()
	hi := elgamal.ZeroCiphertext()
	if lo, err = lo.AddAmount(p.Amount & (1<<params.PendingLoBits - 1)); err != nil {
		return err
	}
	if hi, err = hi.AddAmount(p.Amount >> params.PendingLoBits); err != nil {
		return err
	}
	if err := creditPending(t.ext, lo, hi); err != nil {
		return err
	}
	return e.storeConfidential(t)
}

func (e *executor) applyPending(p *types.ApplyPendingPayload) error {
	t, err := e.loadConfidential(p.Account)
	if err != nil {
		return err
	}
	if err := e.requireSigner(t.acc.Owner, "owner"); err != nil {
		return err
	}
	if p.ExpectedCounter != t.ext.PendingCreditCounter {
		return types.NewProgramError(types.CodePendingBalanceMismatch, "expected %d credits, account has %d", p.ExpectedCounter, t.ext.PendingCreditCounter)
	}
	pending, err := elgamal.CombineSplit(t.ext.PendingLo, t.ext.PendingHi, params.PendingLoBits)
	if err != nil {
		return types.NewProgramError(types.CodeInvalidInstruction, "pending: %v", err)
	}
	if t.ext.Available, err = t.ext.Available.Add(pending); err != nil {
		return types.NewProgramError(types.CodeInvalidInstruction, "available: %v", err)
	}
	t.ext.DecryptableAvailable = p.NewDecryptableAvailable
	t.ext.PendingLo = elgamal.ZeroCiphertext()
	t.ext.PendingHi = elgamal.ZeroCiphertext()
	t.ext.ExpectedPendingCreditCounter = p.ExpectedCounter
	t.ext.ActualPendingCreditCounter = t.ext.PendingCreditCounter
	t.ext.PendingCreditCounter = 0
	return e.storeConfidential(t)
}

func (e *executor) withdraw(p *types.WithdrawPayload) error {
	t, err := e.loadConfidential(p.Account)
	if err != nil {
		return err
	}
	if err := e.requireSigner(t.acc.Owner, "owner"); err != nil {
		return err
	}
	if !t.ext.Approved {
		return types.NewProgramError(types.CodeAccountNotApproved, "account %s", p.Account.TerminalString())
	}
	if err := e.checkDecimals(t.acc.Mint, p.Decimals); err != nil {
		return err
	}
	if p.Amount == 0 {
		return types.NewProgramError(types.CodeInvalidInstruction, "zero withdrawal")
	}
	newAvailable, err := t.ext.Available.SubAmount(p.Amount)
	if err != nil {
		return types.NewProgramError(types.CodeInvalidInstruction, "available: %v", err)
	}
	eq, err := e.equalityProof(p.Equality, t.ext.ElGamalPubkey, newAvailable)
	if err != nil {
		return err
	}
	rng, err := e.rangeProof(p.Range, params.BalanceBits)
	if err != nil {
		return err
	}
	if rng.Commitments[0] != eq.Commitment {
		return types.NewProgramError(types.CodeProofContextMismatch, "range commitment does not match equality commitment")
	}
	if t.acc.Amount, err = add64(t.acc.Amount, p.Amount); err != nil {
		return err
	}
	t.ext.Available = newAvailable
	t.ext.DecryptableAvailable = p.NewDecryptableAvailable
	return e.storeConfidential(t)
}

func (e *executor) transfer(p *types.TransferPayload) error {
	src, err := e.loadConfidential(p.Source)
	if err != nil {
		return err
	}
	if err := e.requireSigner(src.acc.Owner, "owner"); err != nil {
		return err
	}
	if p.Source == p.Destination {
		return types.NewProgramError(types.CodeInvalidInstruction, "self transfer")
	}
	dst, err := e.loadConfidential(p.Destination)
	if err != nil {
		return err
	}
	if src.acc.Mint != p.Mint || dst.acc.Mint != p.Mint {
		return types.NewProgramError(types.CodeMintMismatch, "transfer of %s", p.Mint.TerminalString())
	}
	_, mintExt, _, err := e.loadMint(p.Mint)
	if err != nil {
		return err
	}
	if !src.ext.Approved || !dst.ext.Approved {
		return types.NewProgramError(types.CodeAccountNotApproved, "transfer between %s and %s", p.Source.TerminalString(), p.Destination.TerminalString())
	}
	if !dst.ext.AllowConfidentialCredits {
		return types.NewProgramError(types.CodeConfidentialCreditsDisabled, "account %s", p.Destination.TerminalString())
	}

	validity, err := e.validityProof(p.Validity, src.ext.ElGamalPubkey, dst.ext.ElGamalPubkey, mintExt.Auditor)
	if err != nil {
		return err
	}
	srcLo, _ := validity.Lo.Ciphertext(0)
	srcHi, _ := validity.Hi.Ciphertext(0)
	dstLo, _ := validity.Lo.Ciphertext(1)
	dstHi, _ := validity.Hi.Ciphertext(1)
	debit, err := elgamal.CombineSplit(srcLo, srcHi, params.PendingLoBits)
	if err != nil {
		return types.NewProgramError(types.CodeInvalidInstruction, "transfer amount: %v", err)
	}
	newAvailable, err := src.ext.Available.Sub(debit)
	if err != nil {
		return types.NewProgramError(types.CodeInvalidInstruction, "available: %v", err)
	}
	eq, err := e.equalityProof(p.Equality, src.ext.ElGamalPubkey, newAvailable)
	if err != nil {
		return err
	}
	rng, err := e.rangeProof(p.Range, params.BalanceBits, params.PendingLoBits, params.PendingHiBits)
	if err != nil {
		return err
	}
	if rng.Commitments[0] != eq.Commitment || rng.Commitments[1] != validity.Lo.Commitment || rng.Commitments[2] != validity.Hi.Commitment {
		return types.NewProgramError(types.CodeProofContextMismatch, "range commitments do not match the transfer")
	}

	if err := creditPending(dst.ext, dstLo, dstHi); err != nil {
		return err
	}
	src.ext.Available = newAvailable
	src.ext.DecryptableAvailable = p.NewSourceDecryptableAvailable
	if err := e.storeConfidential(src); err != nil {
		return err
	}
	return e.storeConfidential(dst)
}
