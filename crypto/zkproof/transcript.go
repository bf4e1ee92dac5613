package zkproof

import (
	"encoding/binary"
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/tos-network/ctbal/crypto/elgamal"
	"golang.org/x/crypto/sha3"
)

const transcriptProtocol = "ctbal-zkproof-v1"

// Transcript is a Fiat-Shamir transcript over SHA3-512. Every message is
// framed by its label and length so distinct message sequences never collide.
type Transcript struct {
	h hash.Hash
}

// NewTranscript starts a transcript for one proof domain.
func NewTranscript(domain string) *Transcript {
	t := &Transcript{h: sha3.New512()}
	t.AppendMessage("protocol", []byte(transcriptProtocol))
	t.AppendMessage("dom-sep", []byte(domain))
	return t
}

func (t *Transcript) AppendMessage(label string, msg []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(label)))
	t.h.Write(n[:])
	t.h.Write([]byte(label))
	binary.BigEndian.PutUint32(n[:], uint32(len(msg)))
	t.h.Write(n[:])
	t.h.Write(msg)
}

func (t *Transcript) AppendPoint(label string, p elgamal.Point) {
	t.AppendMessage(label, p[:])
}

func (t *Transcript) AppendU64(label string, v uint64) {
	var w [8]byte
	binary.BigEndian.PutUint64(w[:], v)
	t.AppendMessage(label, w[:])
}

func (t *Transcript) AppendCiphertext(label string, ct elgamal.Ciphertext) {
	t.AppendMessage(label, ct.Bytes())
}

// ChallengeScalar squeezes a challenge and feeds it back so later
// challenges depend on it.
func (t *Transcript) ChallengeScalar(label string) fr.Element {
	t.AppendMessage("challenge", []byte(label))
	digest := t.h.Sum(nil)
	t.h.Write(digest)
	return elgamal.ScalarFromWide(digest)
}
