// Package zkproof implements the sigma and range proofs that accompany
// confidential balance instructions, together with the public data each
// proof is verified against.
package zkproof

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidProof    = errors.New("zkproof: proof verification failed")
	ErrMalformedProof  = errors.New("zkproof: malformed proof data")
	ErrUnknownKind     = errors.New("zkproof: unknown proof kind")
	ErrValueOutOfRange = errors.New("zkproof: value exceeds bit width")
)

// Kind identifies a proof type on the wire and in context accounts.
type Kind uint8

const (
	KindPubkeyValidity Kind = iota + 1
	KindCiphertextCommitmentEquality
	KindGroupedCiphertextValidity
	KindRange
)

// Valid reports whether k names a known proof type.
func (k Kind) Valid() bool { return k >= KindPubkeyValidity && k <= KindRange }

func (k Kind) String() string {
	switch k {
	case KindPubkeyValidity:
		return "pubkey-validity"
	case KindCiphertextCommitmentEquality:
		return "equality"
	case KindGroupedCiphertextValidity:
		return "validity"
	case KindRange:
		return "range"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Data is a proof together with the public inputs it was generated for.
type Data interface {
	Kind() Kind
	MarshalBinary() ([]byte, error)
	Verify() error
}

// Decode parses encoded proof data of the given kind.
func Decode(kind Kind, b []byte) (Data, error) {
	var d interface {
		Data
		UnmarshalBinary([]byte) error
	}
	switch kind {
	case KindPubkeyValidity:
		d = new(PubkeyValidityData)
	case KindCiphertextCommitmentEquality:
		d = new(EqualityData)
	case KindGroupedCiphertextValidity:
		d = new(GroupedValidityData)
	case KindRange:
		d = new(RangeData)
	default:
		return nil, ErrUnknownKind
	}
	if err := d.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return d, nil
}

// DecodeAndVerify parses and verifies encoded proof data.
func DecodeAndVerify(kind Kind, b []byte) (Data, error) {
	d, err := Decode(kind, b)
	if err != nil {
		return nil, err
	}
	if err := d.Verify(); err != nil {
		return nil, err
	}
	return d, nil
}
