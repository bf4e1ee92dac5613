package memledger

import (
	"github.com/tos-network/ctbal/core/types"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"github.com/tos-network/ctbal/crypto/zkproof"
)

// resolveProof returns the proof a location points at. Inline proofs are
// verified here; context proofs were verified when their account was.
func (e *executor) resolveProof(loc types.ProofLocation, kind zkproof.Kind) (zkproof.Data, error) {
	if !loc.IsContext() {
		d, err := zkproof.DecodeAndVerify(kind, loc.Inline)
		if err != nil {
			return nil, types.NewProgramError(types.CodeProofVerificationFailed, "inline %s proof: %v", kind, err)
		}
		return d, nil
	}
	c, _, err := e.loadContext(loc.Context)
	if err != nil {
		return nil, err
	}
	if !c.Verified {
		return nil, types.NewProgramError(types.CodeContextNotVerified, "%s", loc.Context.TerminalString())
	}
	if c.ProofKind != kind {
		return nil, types.NewProgramError(types.CodeProofContextMismatch, "%s holds a %s proof, want %s", loc.Context.TerminalString(), c.ProofKind, kind)
	}
	d, err := zkproof.Decode(kind, c.Data)
	if err != nil {
		return nil, types.NewProgramError(types.CodeProofVerificationFailed, "%s: %v", loc.Context.TerminalString(), err)
	}
	return d, nil
}

func (e *executor) pubkeyProof(loc types.ProofLocation) (*zkproof.PubkeyValidityData, error) {
	d, err := e.resolveProof(loc, zkproof.KindPubkeyValidity)
	if err != nil {
		return nil, err
	}
	return d.(*zkproof.PubkeyValidityData), nil
}

// equalityProof checks the proof binds the expected new available balance
// under the account key.
func (e *executor) equalityProof(loc types.ProofLocation, pub elgamal.PublicKey, newAvailable elgamal.Ciphertext) (*zkproof.EqualityData, error) {
	d, err := e.resolveProof(loc, zkproof.KindCiphertextCommitmentEquality)
	if err != nil {
		return nil, err
	}
	eq := d.(*zkproof.EqualityData)
	if eq.Pubkey != pub || eq.Ciphertext != newAvailable {
		return nil, types.NewProgramError(types.CodeProofContextMismatch, "equality proof is not about the new available balance")
	}
	return eq, nil
}

func (e *executor) rangeProof(loc types.ProofLocation, bits ...uint8) (*zkproof.RangeData, error) {
	d, err := e.resolveProof(loc, zkproof.KindRange)
	if err != nil {
		return nil, err
	}
	rng := d.(*zkproof.RangeData)
	if len(rng.Bits) != len(bits) || len(rng.Commitments) != len(bits) {
		return nil, types.NewProgramError(types.CodeProofContextMismatch, "range proof covers %d values, want %d", len(rng.Bits), len(bits))
	}
	for i := range bits {
		if rng.Bits[i] != bits[i] {
			return nil, types.NewProgramError(types.CodeProofContextMismatch, "range proof value %d has %d bits, want %d", i, rng.Bits[i], bits[i])
		}
	}
	return rng, nil
}

func (e *executor) validityProof(loc types.ProofLocation, src, dst, auditor elgamal.PublicKey) (*zkproof.GroupedValidityData, error) {
	d, err := e.resolveProof(loc, zkproof.KindGroupedCiphertextValidity)
	if err != nil {
		return nil, err
	}
	v := d.(*zkproof.GroupedValidityData)
	if v.Pubkeys != [zkproof.GroupedHandles]elgamal.PublicKey{src, dst, auditor} {
		return nil, types.NewProgramError(types.CodeProofContextMismatch, "validity proof keys do not match source, destination and auditor")
	}
	return v, nil
}
