package elgamal

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254"
)

const (
	// DefaultDecryptBound is the largest plaintext Decrypt recovers.
	DefaultDecryptBound = uint64(1)<<32 - 1

	babySteps = uint64(1) << 16
)

var (
	babyOnce  sync.Once
	babyTable map[Point]uint64
	giantStep bn254.G1Affine // -(babySteps·G)
)

// buildBabyTable precomputes i·G for i in [0, babySteps).
func buildBabyTable() {
	babyOnce.Do(func() {
		g := G()
		jacs := make([]bn254.G1Jac, babySteps)
		var acc bn254.G1Jac
		// jacs[0] stays the identity.
		for i := uint64(1); i < babySteps; i++ {
			acc.AddMixed(&g)
			jacs[i] = acc
		}
		affs := bn254.BatchJacobianToAffineG1(jacs)
		babyTable = make(map[Point]uint64, babySteps)
		for i := range affs {
			babyTable[Compress(&affs[i])] = uint64(i)
		}
		n := ScalarFromUint64(babySteps)
		step := MulG(&n)
		giantStep.Neg(&step)
	})
}

// SolveDiscreteLog finds m in [0, bound] with m·G == target using
// baby-step giant-step. Returns ErrNotFound when m exceeds bound.
func SolveDiscreteLog(target *bn254.G1Affine, bound uint64) (uint64, error) {
	buildBabyTable()

	var cur bn254.G1Jac
	cur.FromAffine(target)
	var aff bn254.G1Affine
	maxJ := bound / babySteps
	for j := uint64(0); j <= maxJ; j++ {
		aff.FromJacobian(&cur)
		if i, ok := babyTable[Compress(&aff)]; ok {
			if m := j*babySteps + i; m <= bound {
				return m, nil
			}
			return 0, ErrNotFound
		}
		cur.AddMixed(&giantStep)
	}
	return 0, ErrNotFound
}
