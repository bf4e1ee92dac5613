package confidential

import (
	"fmt"
	"math/bits"

	"github.com/tos-network/ctbal/params"
)

// PendingSplit is an amount in radix 2^16: Lo + Hi<<16. Lo and Hi are the
// plaintexts of the two pending ciphertexts. After several credits Lo may
// exceed 16 bits, which Combine handles.
type PendingSplit struct {
	Lo uint64
	Hi uint64
}

// SplitAmount splits amount into a 16-bit low and 32-bit high part.
func SplitAmount(amount uint64) (PendingSplit, error) {
	if amount > params.MaxAmount {
		return PendingSplit{}, fmt.Errorf("%w: %d exceeds %d", ErrInvalidAmount, amount, params.MaxAmount)
	}
	return PendingSplit{
		Lo: amount & (1<<params.PendingLoBits - 1),
		Hi: amount >> params.PendingLoBits,
	}, nil
}

// Combine returns Lo + Hi<<16, failing on uint64 overflow.
func (p PendingSplit) Combine() (uint64, error) {
	if bits.LeadingZeros64(p.Hi) < params.PendingLoBits {
		return 0, fmt.Errorf("%w: pending high part %d overflows", ErrInvalidAmount, p.Hi)
	}
	sum, carry := bits.Add64(p.Lo, p.Hi<<params.PendingLoBits, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: pending total overflows", ErrInvalidAmount)
	}
	return sum, nil
}
