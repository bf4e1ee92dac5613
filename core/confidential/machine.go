package confidential

import (
	"fmt"
	"math/bits"

	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/params"
)

// PrimaryBuilder builds the instruction that consumes a proof bundle once
// every artifact has a location, in ProofBundle.Artifacts order.
type PrimaryBuilder func(locs []types.ProofLocation) (types.Instruction, error)

// Transition is one lifecycle operation computed from a fetched state. It
// carries either ready instructions or a proof bundle plus the builder of
// the instruction that consumes it, and the state the ledger is expected to
// hold afterwards.
type Transition struct {
	Action       uint8
	Instructions []types.Instruction
	Bundle       *ProofBundle
	Primary      PrimaryBuilder

	Expected     *AccountState
	Counterparty *AccountState
}

func requireLocations(locs []types.ProofLocation, n int) error {
	if len(locs) != n {
		return fmt.Errorf("%w: want %d proof locations, have %d", types.ErrInvalidPayload, n, len(locs))
	}
	return nil
}

// Configure registers the derived public key with a key-validity proof and
// an encrypted zero balance. A configured account is never reconfigured.
func Configure(st *AccountState, keys *KeyMaterial, engine CryptoEngine, maxPending uint64, autoApprove bool) (*Transition, error) {
	if st.Configured {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyConfigured, st.Address.TerminalString())
	}
	if maxPending == 0 {
		maxPending = params.MaxPendingCredits
	}
	proof, err := engine.GenerateKeyValidityProof(keys.ElGamal)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	zero, err := engine.EncryptSym(0, keys.AE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	ins, err := types.NewInstruction(types.ActionConfigureAccount, &types.ConfigureAccountPayload{
		Account:           st.Address,
		DecryptableZero:   zero,
		MaxPendingCredits: maxPending,
		Proof:             types.InlineProof(proof.Data),
	})
	if err != nil {
		return nil, err
	}
	next := st.Copy()
	next.Configured = true
	next.Approved = autoApprove
	next.ElGamalPubkey = keys.ElGamal.Public
	next.PendingLo = elgamal.ZeroCiphertext()
	next.PendingHi = elgamal.ZeroCiphertext()
	next.Available = elgamal.ZeroCiphertext()
	next.DecryptableAvailable = zero
	next.AllowConfidentialCredits = true
	next.AllowNonConfidentialCredits = true
	next.MaxPendingCreditCounter = maxPending
	return &Transition{Action: types.ActionConfigureAccount, Instructions: []types.Instruction{ins}, Expected: next}, nil
}

// Deposit moves amount from the public balance into pending. The ledger
// checks the public balance; only basic sanity is checked here.
func Deposit(st *AccountState, amount uint64, decimals uint8) (*Transition, error) {
	if !st.Configured {
		return nil, ErrNotConfigured
	}
	split, err := SplitAmount(amount)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: zero deposit", ErrInvalidAmount)
	}
	if st.PendingCreditCounter >= st.MaxPendingCreditCounter {
		return nil, fmt.Errorf("%w: %d of %d", ErrPendingCreditLimit, st.PendingCreditCounter, st.MaxPendingCreditCounter)
	}
	ins, err := types.NewInstruction(types.ActionDeposit, &types.DepositPayload{Account: st.Address, Amount: amount, Decimals: decimals})
	if err != nil {
		return nil, err
	}
	tr := &Transition{Action: types.ActionDeposit, Instructions: []types.Instruction{ins}}
	if amount <= st.PublicBalance {
		next := st.Copy()
		next.PublicBalance -= amount
		if next.PendingLo, err = st.PendingLo.AddAmount(split.Lo); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
		}
		if next.PendingHi, err = st.PendingHi.AddAmount(split.Hi); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
		}
		next.PendingCreditCounter++
		tr.Expected = next
	}
	return tr, nil
}

// ApplyPending folds pending into available. The instruction carries the
// credit counter read here; the ledger rejects it if a credit landed since.
func ApplyPending(st *AccountState, keys *KeyMaterial, engine CryptoEngine) (*Transition, error) {
	if !st.Configured {
		return nil, ErrNotConfigured
	}
	pending, err := DecryptPending(st, keys, engine)
	if err != nil {
		return nil, err
	}
	available, err := DecryptAvailable(st, keys, engine)
	if err != nil {
		return nil, err
	}
	total, carry := bits.Add64(available, pending, 0)
	if carry != 0 {
		return nil, fmt.Errorf("%w: available balance overflows", ErrInvalidAmount)
	}
	_, sym, err := EncodeNewAvailable(total, keys, engine)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	ins, err := types.NewInstruction(types.ActionApplyPending, &types.ApplyPendingPayload{
		Account:                 st.Address,
		ExpectedCounter:         st.PendingCreditCounter,
		NewDecryptableAvailable: sym,
	})
	if err != nil {
		return nil, err
	}
	pendingCt, err := elgamal.CombineSplit(st.PendingLo, st.PendingHi, params.PendingLoBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
	}
	next := st.Copy()
	if next.Available, err = st.Available.Add(pendingCt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
	}
	next.DecryptableAvailable = sym
	next.PendingLo = elgamal.ZeroCiphertext()
	next.PendingHi = elgamal.ZeroCiphertext()
	next.ExpectedPendingCreditCounter = st.PendingCreditCounter
	next.ActualPendingCreditCounter = st.PendingCreditCounter
	next.PendingCreditCounter = 0
	return &Transition{Action: types.ActionApplyPending, Instructions: []types.Instruction{ins}, Expected: next}, nil
}

// checkSpend decrypts the available balance and fails before any proof work
// when amount exceeds it.
func checkSpend(st *AccountState, amount uint64, keys *KeyMaterial, engine CryptoEngine) error {
	if !st.Configured {
		return ErrNotConfigured
	}
	if !st.Approved {
		return ErrNotApproved
	}
	if amount == 0 {
		return fmt.Errorf("%w: zero amount", ErrInvalidAmount)
	}
	available, err := DecryptAvailable(st, keys, engine)
	if err != nil {
		return err
	}
	if amount > available {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, available, amount)
	}
	return nil
}

// Withdraw moves amount from available back to the public balance. The
// returned transition carries an equality and a range proof; the caller
// decides whether they go inline or through context accounts.
func Withdraw(st *AccountState, amount uint64, decimals uint8, keys *KeyMaterial, engine CryptoEngine) (*Transition, error) {
	if err := checkSpend(st, amount, keys, engine); err != nil {
		return nil, err
	}
	bundle, err := engine.GenerateWithdrawProof(st.AvailableBalance(), amount, keys.ElGamal, keys.AE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	next := st.Copy()
	if next.Available, err = st.Available.SubAmount(amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
	}
	next.DecryptableAvailable = bundle.NewDecryptableAvailable
	next.PublicBalance += amount

	account, newDecryptable := st.Address, bundle.NewDecryptableAvailable
	primary := func(locs []types.ProofLocation) (types.Instruction, error) {
		if err := requireLocations(locs, 2); err != nil {
			return types.Instruction{}, err
		}
		return types.NewInstruction(types.ActionWithdraw, &types.WithdrawPayload{
			Account:                 account,
			Amount:                  amount,
			Decimals:                decimals,
			NewDecryptableAvailable: newDecryptable,
			Equality:                locs[0],
			Range:                   locs[1],
		})
	}
	return &Transition{Action: types.ActionWithdraw, Bundle: bundle, Primary: primary, Expected: next}, nil
}

// Transfer moves amount from src's available balance to dst's pending
// balance. auditor is nil when the mint has no auditor.
func Transfer(src, dst *AccountState, auditor *elgamal.PublicKey, amount uint64, keys *KeyMaterial, engine CryptoEngine) (*Transition, error) {
	if src.Mint != dst.Mint {
		return nil, fmt.Errorf("%w: mint %s differs from %s", ErrMalformedAccount, dst.Mint.TerminalString(), src.Mint.TerminalString())
	}
	if src.Address == dst.Address {
		return nil, fmt.Errorf("%w: %s", ErrSelfTransfer, src.Address.TerminalString())
	}
	if !dst.Configured {
		return nil, fmt.Errorf("%w: recipient %s", ErrNotConfigured, dst.Address.TerminalString())
	}
	if amount > params.MaxAmount {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidAmount, amount, params.MaxAmount)
	}
	if dst.PendingCreditCounter >= dst.MaxPendingCreditCounter {
		return nil, fmt.Errorf("%w: recipient %d of %d", ErrPendingCreditLimit, dst.PendingCreditCounter, dst.MaxPendingCreditCounter)
	}
	if err := checkSpend(src, amount, keys, engine); err != nil {
		return nil, err
	}
	bundle, err := engine.GenerateSplitTransferProof(src.AvailableBalance(), amount, keys.ElGamal, keys.AE, dst.ElGamalPubkey, auditor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	srcLo, err := bundle.AmountLo.Ciphertext(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	srcHi, err := bundle.AmountHi.Ciphertext(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	dstLo, err := bundle.AmountLo.Ciphertext(1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	dstHi, err := bundle.AmountHi.Ciphertext(1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}
	debit, err := elgamal.CombineSplit(srcLo, srcHi, params.PendingLoBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}

	nextSrc := src.Copy()
	if nextSrc.Available, err = src.Available.Sub(debit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
	}
	nextSrc.DecryptableAvailable = bundle.NewDecryptableAvailable

	nextDst := dst.Copy()
	if nextDst.PendingLo, err = dst.PendingLo.Add(dstLo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
	}
	if nextDst.PendingHi, err = dst.PendingHi.Add(dstHi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
	}
	nextDst.PendingCreditCounter++

	source, mint, destination, newDecryptable := src.Address, src.Mint, dst.Address, bundle.NewDecryptableAvailable
	primary := func(locs []types.ProofLocation) (types.Instruction, error) {
		if err := requireLocations(locs, 3); err != nil {
			return types.Instruction{}, err
		}
		return types.NewInstruction(types.ActionTransfer, &types.TransferPayload{
			Source:                        source,
			Mint:                          mint,
			Destination:                   destination,
			NewSourceDecryptableAvailable: newDecryptable,
			Equality:                      locs[0],
			Validity:                      locs[1],
			Range:                         locs[2],
		})
	}
	return &Transition{
		Action:       types.ActionTransfer,
		Bundle:       bundle,
		Primary:      primary,
		Expected:     nextSrc,
		Counterparty: nextDst,
	}, nil
}
