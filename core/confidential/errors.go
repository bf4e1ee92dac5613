package confidential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tos-network/ctbal/common"
	"github.com/tos-network/ctbal/core/types"
)

var (
	// ErrKeyDerivation means the authority could not sign the derivation seed.
	ErrKeyDerivation = errors.New("confidential: key derivation failed")

	// ErrMalformedAccount means the account is not a configured token account
	// or one of its fields is truncated.
	ErrMalformedAccount = errors.New("confidential: malformed account")

	// ErrConsistency means the two encodings of the available balance disagree.
	ErrConsistency = errors.New("confidential: available balance encodings disagree")

	// ErrDecryption means a ciphertext did not decrypt under the derived keys.
	ErrDecryption = errors.New("confidential: decryption failed")

	// ErrInsufficientBalance is returned before any proof is generated.
	ErrInsufficientBalance = errors.New("confidential: insufficient available balance")

	// ErrProofGeneration wraps crypto engine failures.
	ErrProofGeneration = errors.New("confidential: proof generation failed")

	// ErrStaleState means the ledger rejected an apply because a credit landed
	// after the state was read. Re-fetch and retry.
	ErrStaleState = errors.New("confidential: stale pending credit counter")

	ErrAlreadyConfigured  = errors.New("confidential: account already configured")
	ErrNotConfigured      = errors.New("confidential: account not configured")
	ErrNotApproved        = errors.New("confidential: account not approved")
	ErrPendingCreditLimit = errors.New("confidential: maximum pending credits reached")
	ErrInvalidAmount      = errors.New("confidential: invalid amount")
	ErrSelfTransfer       = errors.New("confidential: source and destination are the same account")

	// Ledger-side errors, shared with the ledger implementations.
	ErrSizeLimit       = types.ErrSizeLimit
	ErrSubmission      = types.ErrSubmission
	ErrAccountNotFound = types.ErrAccountNotFound
)

// RecoverableLeakError reports context accounts that could not be closed.
// Their collateral stays locked until CloseContextAccounts succeeds for them.
type RecoverableLeakError struct {
	Accounts []common.Address
	Err      error
}

func (e *RecoverableLeakError) Error() string {
	addrs := make([]string, len(e.Accounts))
	for i, a := range e.Accounts {
		addrs[i] = a.Hex()
	}
	msg := fmt.Sprintf("confidential: %d context account(s) left open: [%s]", len(e.Accounts), strings.Join(addrs, ", "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecoverableLeakError) Unwrap() error { return e.Err }

var programErrors = map[types.ErrorCode]error{
	types.CodePendingBalanceMismatch:        ErrStaleState,
	types.CodeAlreadyConfigured:             ErrAlreadyConfigured,
	types.CodeMaximumPendingCreditsExceeded: ErrPendingCreditLimit,
	types.CodeInsufficientFunds:             ErrInsufficientBalance,
	types.CodeAccountNotApproved:            ErrNotApproved,
	types.CodeExtensionNotFound:             ErrNotConfigured,
}

// ClassifySubmitError attaches the matching sentinel to ledger rejections so
// callers can use errors.Is without inspecting program codes.
func ClassifySubmitError(err error) error {
	if err == nil {
		return nil
	}
	var perr *types.ProgramError
	if errors.As(err, &perr) {
		if sentinel, ok := programErrors[perr.Code]; ok {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
	}
	return err
}
