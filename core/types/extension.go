package types

import (
	"errors"

	"github.com/ethereum/go-ethereum/rlp"
)

// ExtensionType identifies an account extension in the TLV list.
type ExtensionType uint16

const (
	ExtConfidentialTransferMint ExtensionType = iota + 1
	ExtConfidentialTransferAccount
)

// ErrExtensionNotFound is returned when an account lacks the requested extension.
var ErrExtensionNotFound = errors.New("types: extension not found")

// Extension is one type-length-value entry appended to a base account.
type Extension struct {
	Type ExtensionType
	Data []byte
}

// HasExtension reports whether typ is present.
func HasExtension(exts []Extension, typ ExtensionType) bool {
	for _, e := range exts {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// GetExtension decodes the value of typ into out.
func GetExtension(exts []Extension, typ ExtensionType, out interface{}) error {
	for _, e := range exts {
		if e.Type != typ {
			continue
		}
		if err := rlp.DecodeBytes(e.Data, out); err != nil {
			return ErrInvalidPayload
		}
		return nil
	}
	return ErrExtensionNotFound
}

// SetExtension returns exts with typ set to the encoding of v.
func SetExtension(exts []Extension, typ ExtensionType, v interface{}) ([]Extension, error) {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, err
	}
	out := make([]Extension, 0, len(exts)+1)
	replaced := false
	for _, e := range exts {
		if e.Type == typ {
			out = append(out, Extension{Type: typ, Data: data})
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, Extension{Type: typ, Data: data})
	}
	return out, nil
}
