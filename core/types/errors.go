package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayload indicates malformed instruction, account or transaction bytes.
	ErrInvalidPayload = errors.New("types: invalid payload")

	// ErrUnsupportedAction indicates unknown instruction action IDs.
	ErrUnsupportedAction = errors.New("types: unsupported action")

	// ErrWrongAccountKind indicates an account decoded as the wrong kind.
	ErrWrongAccountKind = errors.New("types: wrong account kind")

	// ErrInvalidSignature indicates a signature that does not verify.
	ErrInvalidSignature = errors.New("types: invalid signature")

	// ErrAccountNotFound is returned by ledgers for unknown addresses.
	ErrAccountNotFound = errors.New("ledger: account not found")

	// ErrSizeLimit matches every *SizeLimitError.
	ErrSizeLimit = errors.New("ledger: transaction exceeds size limit")

	// ErrSubmission wraps transport and confirmation failures.
	ErrSubmission = errors.New("ledger: submission failed")
)

// SizeLimitError reports a serialized transaction larger than the ledger accepts.
type SizeLimitError struct {
	Size  int
	Limit int
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("ledger: transaction too large: %d bytes > %d", e.Size, e.Limit)
}

func (e *SizeLimitError) Is(target error) bool { return target == ErrSizeLimit }

// ErrorCode enumerates the failures the token program reports.
type ErrorCode uint32

const (
	CodeInvalidInstruction ErrorCode = iota + 1
	CodeAccountNotFound
	CodeAccountInUse
	CodeOwnerMismatch
	CodeMissingSignature
	CodeInsufficientFunds
	CodeInsufficientLamports
	CodeMintMismatch
	CodeMintDecimalsMismatch
	CodeExtensionNotFound
	CodeAlreadyConfigured
	CodeAccountNotApproved
	CodePendingBalanceMismatch
	CodeMaximumPendingCreditsExceeded
	CodeConfidentialCreditsDisabled
	CodeNonConfidentialCreditsDisabled
	CodeProofVerificationFailed
	CodeProofContextMismatch
	CodeContextNotVerified
	CodeContextAlreadyVerified
	CodeInvalidOrderingToken
	CodeDuplicateTransaction
	CodeArithmeticOverflow
)

var codeNames = map[ErrorCode]string{
	CodeInvalidInstruction:             "invalid instruction",
	CodeAccountNotFound:                "account not found",
	CodeAccountInUse:                   "account already in use",
	CodeOwnerMismatch:                  "owner does not match",
	CodeMissingSignature:               "missing required signature",
	CodeInsufficientFunds:              "insufficient funds",
	CodeInsufficientLamports:           "insufficient lamports",
	CodeMintMismatch:                   "account not associated with this mint",
	CodeMintDecimalsMismatch:           "mint decimals mismatch",
	CodeExtensionNotFound:              "extension not found",
	CodeAlreadyConfigured:              "confidential transfer already configured",
	CodeAccountNotApproved:             "account not approved for confidential transfers",
	CodePendingBalanceMismatch:         "pending balance credit counter mismatch",
	CodeMaximumPendingCreditsExceeded:  "maximum pending balance credit counter exceeded",
	CodeConfidentialCreditsDisabled:    "confidential credits disabled",
	CodeNonConfidentialCreditsDisabled: "non-confidential credits disabled",
	CodeProofVerificationFailed:        "proof verification failed",
	CodeProofContextMismatch:           "proof context does not match instruction",
	CodeContextNotVerified:             "proof context account not verified",
	CodeContextAlreadyVerified:         "proof context account already verified",
	CodeInvalidOrderingToken:           "ordering token expired or unknown",
	CodeDuplicateTransaction:           "transaction already processed",
	CodeArithmeticOverflow:             "arithmetic overflow",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", uint32(c))
}

// ProgramError is a deterministic rejection by the token program. The whole
// transaction is rolled back when any instruction fails.
type ProgramError struct {
	Instruction int
	Code        ErrorCode
	Detail      string
}

func (e *ProgramError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("program error in instruction %d: %s", e.Instruction, e.Code)
	}
	return fmt.Sprintf("program error in instruction %d: %s: %s", e.Instruction, e.Code, e.Detail)
}

// NewProgramError builds a ProgramError with a formatted detail.
func NewProgramError(code ErrorCode, format string, args ...interface{}) *ProgramError {
	return &ProgramError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// HasCode reports whether err carries a ProgramError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var perr *ProgramError
	return errors.As(err, &perr) && perr.Code == code
}
