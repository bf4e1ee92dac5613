package types

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/crypto/authenc"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/crypto/zkproof"
)

// AccountKind tags the data layout stored at an address.
type AccountKind uint8

const (
	AccountSystem AccountKind = iota + 1
	AccountMint
	AccountToken
	AccountContext
)

func (k AccountKind) String() string {
	switch k {
	case AccountSystem:
		return "system"
	case AccountMint:
		return "mint"
	case AccountToken:
		return "token"
	case AccountContext:
		return "context"
	default:
		return "unknown"
	}
}

// Account is the raw record held by the ledger for every address.
type Account struct {
	Kind     AccountKind
	Lamports uint64
	Data     []byte
}

// EncodeAccount serializes an account record.
func EncodeAccount(a *Account) ([]byte, error) {
	return rlp.EncodeToBytes(a)
}

// DecodeAccount parses an account record.
func DecodeAccount(raw []byte) (*Account, error) {
	var a Account
	if err := rlp.DecodeBytes(raw, &a); err != nil {
		return nil, ErrInvalidPayload
	}
	switch a.Kind {
	case AccountSystem, AccountMint, AccountToken, AccountContext:
	default:
		return nil, ErrInvalidPayload
	}
	return &a, nil
}

// Mint describes a token type.
type Mint struct {
	Authority  common.Address
	Supply     uint64
	Decimals   uint8
	Extensions []Extension
}

// ConfidentialMint is the confidential-transfer mint extension.
type ConfidentialMint struct {
	Authority   common.Address
	AutoApprove bool
	// Auditor is the identity point when the mint has no auditor.
	Auditor elgamal.PublicKey
}

// HasAuditor reports whether transfers must also encrypt to an auditor.
func (m *ConfidentialMint) HasAuditor() bool { return !m.Auditor.IsIdentity() }

// TokenAccount holds one owner's balance of one mint.
type TokenAccount struct {
	Mint       common.Address
	Owner      common.Address
	Amount     uint64
	Extensions []Extension
}

// ConfidentialAccount is the confidential-transfer account extension.
type ConfidentialAccount struct {
	Approved      bool
	ElGamalPubkey elgamal.PublicKey

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

// ContextAccount holds one proof until the instruction that consumes it.
type ContextAccount struct {
	Authority common.Address
	ProofKind zkproof.Kind
	Capacity  uint32
	Verified  bool
	Data      []byte
}

func encodeAccount(kind AccountKind, lamports uint64, body interface{}) ([]byte, error) {
	data, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, err
	}
	return EncodeAccount(&Account{Kind: kind, Lamports: lamports, Data: data})
}

func decodeAccountAs(raw []byte, kind AccountKind, out interface{}) (*Account, error) {
	acc, err := DecodeAccount(raw)
	if err != nil {
		return nil, err
	}
	if acc.Kind != kind {
		return nil, ErrWrongAccountKind
	}
	if err := rlp.DecodeBytes(acc.Data, out); err != nil {
		return nil, ErrInvalidPayload
	}
	return acc, nil
}

// EncodeMintAccount serializes a mint with its lamport balance.
func EncodeMintAccount(m *Mint, lamports uint64) ([]byte, error) {
	return encodeAccount(AccountMint, lamports, m)
}

// DecodeMintAccount parses a mint account.
func DecodeMintAccount(raw []byte) (*Mint, uint64, error) {
	var m Mint
	acc, err := decodeAccountAs(raw, AccountMint, &m)
	if err != nil {
		return nil, 0, err
	}
	return &m, acc.Lamports, nil
}

// EncodeTokenAccount serializes a token account with its lamport balance.
func EncodeTokenAccount(t *TokenAccount, lamports uint64) ([]byte, error) {
	return encodeAccount(AccountToken, lamports, t)
}

// DecodeTokenAccount parses a token account.
func DecodeTokenAccount(raw []byte) (*TokenAccount, uint64, error) {
	var t TokenAccount
	acc, err := decodeAccountAs(raw, AccountToken, &t)
	if err != nil {
		return nil, 0, err
	}
	return &t, acc.Lamports, nil
}

// EncodeContextAccount serializes a proof context account.
func EncodeContextAccount(c *ContextAccount, lamports uint64) ([]byte, error) {
	return encodeAccount(AccountContext, lamports, c)
}

// DecodeContextAccount parses a proof context account.
func DecodeContextAccount(raw []byte) (*ContextAccount, uint64, error) {
	var c ContextAccount
	acc, err := decodeAccountAs(raw, AccountContext, &c)
	if err != nil {
		return nil, 0, err
	}
	return &c, acc.Lamports, nil
}

// ConfidentialExtension decodes the confidential-transfer account extension.
func (t *TokenAccount) ConfidentialExtension() (*ConfidentialAccount, error) {
	var ext ConfidentialAccount
	if err := GetExtension(t.Extensions, ExtConfidentialTransferAccount, &ext); err != nil {
		return nil, err
	}
	return &ext, nil
}

// SetConfidentialExtension stores ext on the account, replacing any previous value.
func (t *TokenAccount) SetConfidentialExtension(ext *ConfidentialAccount) error {
	exts, err := SetExtension(t.Extensions, ExtConfidentialTransferAccount, ext)
	if err != nil {
		return err
	}
	t.Extensions = exts
	return nil
}

// ConfidentialExtension decodes the confidential-transfer mint extension.
func (m *Mint) ConfidentialExtension() (*ConfidentialMint, error) {
	var ext ConfidentialMint
	if err := GetExtension(m.Extensions, ExtConfidentialTransferMint, &ext); err != nil {
		return nil, err
	}
	return &ext, nil
}

// SetConfidentialExtension stores ext on the mint.
func (m *Mint) SetConfidentialExtension(ext *ConfidentialMint) error {
	exts, err := SetExtension(m.Extensions, ExtConfidentialTransferMint, ext)
	if err != nil {
		return err
	}
	m.Extensions = exts
	return nil
}

// DeriveTokenAccount returns the canonical token account address of owner for mint.
func DeriveTokenAccount(owner, mint common.Address) common.Address {
	return common.Address(common.Keccak256Hash([]byte("token-account"), owner[:], mint[:]))
}
