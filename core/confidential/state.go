package confidential

import (
	"errors"
	"fmt"

	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/authenc"
	"github.com/tos-network/ctbal/crypto/elgamal"
)

// AccountState is a decoded snapshot of one token account and its
// confidential-transfer extension. It is never cached across operations.
type AccountState struct {
	Address       common.Address
	Owner         common.Address
	Mint          common.Address
	PublicBalance uint64
	Lamports      uint64

	// Configured is false when the extension is absent; every other
	// confidential field is then zero.
	Configured bool
	Approved   bool

	ElGamalPubkey        elgamal.PublicKey
	PendingLo            elgamal.Ciphertext
	PendingHi            elgamal.Ciphertext
	Available            elgamal.Ciphertext
	DecryptableAvailable authenc.Ciphertext

	AllowConfidentialCredits    bool
	AllowNonConfidentialCredits bool

	PendingCreditCounter         uint64
	MaxPendingCreditCounter      uint64
	ExpectedPendingCreditCounter uint64
	ActualPendingCreditCounter   uint64
}

// DecodeAccountState decodes a configured token account.
func DecodeAccountState(addr common.Address, raw []byte) (*AccountState, error) {
	st, err := DecodeTokenState(addr, raw)
	if err != nil {
		return nil, err
	}
	if !st.Configured {
		return nil, fmt.Errorf("%w: confidential extension absent on %s", ErrMalformedAccount, addr.TerminalString())
	}
	return st, nil
}

// DecodeTokenState decodes a token account that may not be configured yet.
func DecodeTokenState(addr common.Address, raw []byte) (*AccountState, error) {
	acc, lamports, err := types.DecodeTokenAccount(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
	}
	st := &AccountState{
		Address:       addr,
		Owner:         acc.Owner,
		Mint:          acc.Mint,
		PublicBalance: acc.Amount,
		Lamports:      lamports,
	}
	ext, err := acc.ConfidentialExtension()
	switch {
	case errors.Is(err, types.ErrExtensionNotFound):
		return st, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrMalformedAccount, err)
	}
	st.Configured = true
	st.Approved = ext.Approved
	st.ElGamalPubkey = ext.ElGamalPubkey
	st.PendingLo = ext.PendingLo
	st.PendingHi = ext.PendingHi
	st.Available = ext.Available
	st.DecryptableAvailable = ext.DecryptableAvailable
	st.AllowConfidentialCredits = ext.AllowConfidentialCredits
	st.AllowNonConfidentialCredits = ext.AllowNonConfidentialCredits
	st.PendingCreditCounter = ext.PendingCreditCounter
	st.MaxPendingCreditCounter = ext.MaxPendingCreditCounter
	st.ExpectedPendingCreditCounter = ext.ExpectedPendingCreditCounter
	st.ActualPendingCreditCounter = ext.ActualPendingCreditCounter
	return st, nil
}

// Extension rebuilds the ledger extension for st.
func (st *AccountState) Extension() *types.ConfidentialAccount {
	return &types.ConfidentialAccount{
		Approved:                     st.Approved,
		ElGamalPubkey:                st.ElGamalPubkey,
		PendingLo:                    st.PendingLo,
		PendingHi:                    st.PendingHi,
		Available:                    st.Available,
		DecryptableAvailable:         st.DecryptableAvailable,
		AllowConfidentialCredits:     st.AllowConfidentialCredits,
		AllowNonConfidentialCredits:  st.AllowNonConfidentialCredits,
		PendingCreditCounter:         st.PendingCreditCounter,
		MaxPendingCreditCounter:      st.MaxPendingCreditCounter,
		ExpectedPendingCreditCounter: st.ExpectedPendingCreditCounter,
		ActualPendingCreditCounter:   st.ActualPendingCreditCounter,
	}
}

// Encode serializes st back into ledger account bytes.
func (st *AccountState) Encode() ([]byte, error) {
	acc := &types.TokenAccount{Mint: st.Mint, Owner: st.Owner, Amount: st.PublicBalance}
	if st.Configured {
		if err := acc.SetConfidentialExtension(st.Extension()); err != nil {
			return nil, err
		}
	}
	return types.EncodeTokenAccount(acc, st.Lamports)
}

// Copy returns an independent snapshot.
func (st *AccountState) Copy() *AccountState {
	cpy := *st
	return &cpy
}

// AvailableBalance returns both encodings of the available balance.
func (st *AccountState) AvailableBalance() AvailableBalance {
	return AvailableBalance{Ciphertext: st.Available, Decryptable: st.DecryptableAvailable}
}
