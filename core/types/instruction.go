package types

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/crypto/authenc"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/crypto/zkproof"
)

const (
	ActionCreateMint         uint8 = 0x01
	ActionCreateTokenAccount uint8 = 0x02
	ActionMintTo             uint8 = 0x03

	ActionConfigureAccount uint8 = 0x10
	ActionDeposit          uint8 = 0x11
	ActionApplyPending     uint8 = 0x12
	ActionWithdraw         uint8 = 0x13
	ActionTransfer         uint8 = 0x14

	ActionCreateContext uint8 = 0x20
	ActionWriteContext  uint8 = 0x21
	ActionVerifyContext uint8 = 0x22
	ActionCloseContext  uint8 = 0x23
)

var actionNames = map[uint8]string{
	ActionCreateMint:         "create-mint",
	ActionCreateTokenAccount: "create-token-account",
	ActionMintTo:             "mint-to",
	ActionConfigureAccount:   "configure-account",
	ActionDeposit:            "deposit",
	ActionApplyPending:       "apply-pending",
	ActionWithdraw:           "withdraw",
	ActionTransfer:           "transfer",
	ActionCreateContext:      "create-context",
	ActionWriteContext:       "write-context",
	ActionVerifyContext:      "verify-context",
	ActionCloseContext:       "close-context",
}

// ActionName returns a readable name for logs.
func ActionName(action uint8) string {
	if name, ok := actionNames[action]; ok {
		return name
	}
	return "unknown"
}

func validateAction(action uint8) error {
	if _, ok := actionNames[action]; !ok {
		return ErrUnsupportedAction
	}
	return nil
}

// Instruction is one program call inside a transaction.
type Instruction struct {
	Action uint8
	Body   []byte
}

// NewInstruction encodes payload as the body of action.
func NewInstruction(action uint8, payload interface{}) (Instruction, error) {
	if err := validateAction(action); err != nil {
		return Instruction{}, err
	}
	body, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return Instruction{}, ErrInvalidPayload
	}
	return Instruction{Action: action, Body: body}, nil
}

// DecodeBody parses the instruction body into out.
func (ins Instruction) DecodeBody(out interface{}) error {
	if err := validateAction(ins.Action); err != nil {
		return err
	}
	if err := rlp.DecodeBytes(ins.Body, out); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

// ProofLocation points at a proof carried inline or held in a context account.
type ProofLocation struct {
	Context common.Address
	Inline  []byte
}

// InlineProof carries encoded proof data inside the instruction.
func InlineProof(data []byte) ProofLocation {
	return ProofLocation{Inline: common.CopyBytes(data)}
}

// ContextProof references a verified context account.
func ContextProof(addr common.Address) ProofLocation {
	return ProofLocation{Context: addr}
}

// IsContext reports whether the proof lives in a context account.
func (p ProofLocation) IsContext() bool { return !p.Context.IsZero() }

type CreateMintPayload struct {
	Mint        common.Address
	Authority   common.Address
	Decimals    uint8
	AutoApprove bool
	Auditor     elgamal.PublicKey
}

type CreateTokenAccountPayload struct {
	Account common.Address
	Mint    common.Address
	Owner   common.Address
}

type MintToPayload struct {
	Mint    common.Address
	Account common.Address
	Amount  uint64
}

type ConfigureAccountPayload struct {
	Account           common.Address
	DecryptableZero   authenc.Ciphertext
	MaxPendingCredits uint64
	Proof             ProofLocation
}

type DepositPayload struct {
	Account  common.Address
	Amount   uint64
	Decimals uint8
}

type ApplyPendingPayload struct {
	Account                 common.Address
	ExpectedCounter         uint64
	NewDecryptableAvailable authenc.Ciphertext
}

type WithdrawPayload struct {
	Account                 common.Address
	Amount                  uint64
	Decimals                uint8
	NewDecryptableAvailable authenc.Ciphertext
	Equality                ProofLocation
	Range                   ProofLocation
}

type TransferPayload struct {
	Source                        common.Address
	Mint                          common.Address
	Destination                   common.Address
	NewSourceDecryptableAvailable authenc.Ciphertext
	Equality                      ProofLocation
	Validity                      ProofLocation
	Range                         ProofLocation
}

type CreateContextPayload struct {
	Context   common.Address
	ProofKind zkproof.Kind
	Capacity  uint32
}

type WriteContextPayload struct {
	Context common.Address
	Offset  uint32
	Data    []byte
}

type VerifyContextPayload struct {
	Context common.Address
}

type CloseContextPayload struct {
	Context     common.Address
	Destination common.Address
}
