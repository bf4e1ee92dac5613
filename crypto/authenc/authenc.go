// Package authenc implements the owner-only decryptable balance encoding: a
// ChaCha20-Poly1305 sealed little-endian amount.
package authenc

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize        = chacha20poly1305.KeySize
	NonceSize      = chacha20poly1305.NonceSize
	CiphertextSize = NonceSize + 8 + chacha20poly1305.Overhead
)

var (
	ErrInvalidKey        = errors.New("authenc: invalid key length")
	ErrInvalidCiphertext = errors.New("authenc: invalid ciphertext")
)

// Key is a symmetric balance key.
type Key [KeySize]byte

// Ciphertext is nonce||sealed amount.
type Ciphertext [CiphertextSize]byte

// KeyFromBytes copies a raw key.
func KeyFromBytes(b []byte) (*Key, error) {
	if len(b) != KeySize {
		return nil, ErrInvalidKey
	}
	var k Key
	copy(k[:], b)
	return &k, nil
}

// Encrypt seals amount under k with a random nonce.
func Encrypt(k *Key, amount uint64) (Ciphertext, error) {
	return encrypt(k, amount, rand.Reader)
}

func encrypt(k *Key, amount uint64, random io.Reader) (Ciphertext, error) {
	aead, err := chacha20poly1305.New(k[:])
	if err != nil {
		return Ciphertext{}, err
	}
	var out Ciphertext
	if _, err := io.ReadFull(random, out[:NonceSize]); err != nil {
		return Ciphertext{}, err
	}
	var plain [8]byte
	binary.LittleEndian.PutUint64(plain[:], amount)
	aead.Seal(out[NonceSize:NonceSize], out[:NonceSize], plain[:], nil)
	return out, nil
}

// Decrypt opens ct under k.
func Decrypt(k *Key, ct Ciphertext) (uint64, error) {
	aead, err := chacha20poly1305.New(k[:])
	if err != nil {
		return 0, err
	}
	plain, err := aead.Open(nil, ct[:NonceSize], ct[NonceSize:], nil)
	if err != nil || len(plain) != 8 {
		return 0, ErrInvalidCiphertext
	}
	return binary.LittleEndian.Uint64(plain), nil
}

// CiphertextFromBytes decodes a fixed-size ciphertext.
func CiphertextFromBytes(b []byte) (Ciphertext, error) {
	var ct Ciphertext
	if len(b) != CiphertextSize {
		return ct, ErrInvalidCiphertext
	}
	copy(ct[:], b)
	return ct, nil
}
