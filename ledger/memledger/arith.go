package memledger

import (
	"github.com/holiman/uint256"
	"github.com/tos-network/ctbal/core/types"
)

func add64(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, types.NewProgramError(types.CodeArithmeticOverflow, "%d + %d", a, b)
	}
	return sum.Uint64(), nil
}

func sub64(a, b uint64, code types.ErrorCode) (uint64, error) {
	diff, underflow := new(uint256.Int).SubOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if underflow {
		return 0, types.NewProgramError(code, "have %d, need %d", a, b)
	}
	return diff.Uint64(), nil
}
