package types

import (
	"errors"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/tos-network/ctbal/accountsigner"
	"github.com/tos-network/ctbal/common"
)

// Signature authorizes a transaction on behalf of the signer's address.
type Signature struct {
	SignerType string
	PublicKey  []byte
	Sig        []byte
}

// Transaction is the atomic unit submitted to the ledger.
type Transaction struct {
	Payer         common.Address
	OrderingToken common.Hash
	Instructions  []Instruction
	Signatures    []Signature
}

type txSigningBody struct {
	Payer         common.Address
	OrderingToken common.Hash
	Instructions  []Instruction
}

// NewTransaction assembles an unsigned transaction.
func NewTransaction(payer common.Address, token common.Hash, ins ...Instruction) *Transaction {
	return &Transaction{Payer: payer, OrderingToken: token, Instructions: ins}
}

// SigningHash is the digest covered by every signature.
func (tx *Transaction) SigningHash() common.Hash {
	enc, _ := rlp.EncodeToBytes(&txSigningBody{Payer: tx.Payer, OrderingToken: tx.OrderingToken, Instructions: tx.Instructions})
	return common.Keccak256Hash(enc)
}

// Sign appends one signature per distinct signer.
func (tx *Transaction) Sign(signers ...accountsigner.Signer) error {
	hash := tx.SigningHash()
	seen := make(map[common.Address]bool, len(tx.Signatures))
	for _, s := range tx.Signatures {
		if addr, err := accountsigner.AddressFromSigner(s.SignerType, s.PublicKey); err == nil {
			seen[addr] = true
		}
	}
	for _, signer := range signers {
		if signer == nil || seen[signer.Address()] {
			continue
		}
		sig, err := signer.Sign(hash[:])
		if err != nil {
			return err
		}
		tx.Signatures = append(tx.Signatures, Signature{
			SignerType: signer.Type(),
			PublicKey:  signer.PublicKey(),
			Sig:        sig,
		})
		seen[signer.Address()] = true
	}
	return nil
}

// VerifySignatures checks every signature and returns the signing addresses.
func (tx *Transaction) VerifySignatures() (map[common.Address]bool, error) {
	hash := tx.SigningHash()
	out := make(map[common.Address]bool, len(tx.Signatures))
	for _, s := range tx.Signatures {
		addr, err := accountsigner.AddressFromSigner(s.SignerType, s.PublicKey)
		if err != nil {
			return nil, err
		}
		if !accountsigner.VerifySignature(s.SignerType, s.PublicKey, hash[:], s.Sig) {
			return nil, ErrInvalidSignature
		}
		out[addr] = true
	}
	return out, nil
}

// MarshalBinary returns the wire encoding.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	return rlp.EncodeToBytes(tx)
}

// DecodeTransaction parses the wire encoding.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	var tx Transaction
	if err := rlp.DecodeBytes(raw, &tx); err != nil {
		return nil, ErrInvalidPayload
	}
	if len(tx.Instructions) == 0 {
		return nil, errors.New("types: transaction has no instructions")
	}
	return &tx, nil
}

// Size returns the encoded size the ledger limit applies to.
func (tx *Transaction) Size() int {
	enc, err := tx.MarshalBinary()
	if err != nil {
		return 0
	}
	return len(enc)
}

// Hash identifies a signed transaction.
func (tx *Transaction) Hash() common.Hash {
	enc, _ := tx.MarshalBinary()
	return common.Keccak256Hash(enc)
}

// Receipt confirms a transaction was executed.
type Receipt struct {
	TxHash       common.Hash `json:"txHash"`
	Slot         uint64      `json:"slot"`
	Size         int         `json:"size"`
	Instructions []string    `json:"instructions"`
}
