// Package wallet verifies that a caller controls a claimed wallet address by
// recovering the signing key from an Ethereum-style personal-sign signature
// and deriving the address from it. Verification is pure and fails closed:
// any malformed input yields ErrInvalidSignature, never a panic.
package wallet

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidAddress   = errors.New("invalid wallet address")
)

const (
	// signatureLen is the R || S || V wire length.
	signatureLen = 65
	addressLen   = 20
)

// Hash computes the personal-sign digest of a message: a keccak256 over the
// prefixed message, so a signed challenge can never double as a transaction.
func Hash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "\x19Ethereum Signed Message:\n%d", len(message))
	h.Write([]byte(message))
	return h.Sum(nil)
}

// Recover returns the wallet address that produced signature over message.
// The signature is 65 hex-encoded bytes, R || S || V, with V accepted as
// 0/1 or 27/28.
func Recover(message, signature string) (string, error) {
	sig, err := decodeHex(signature)
	if err != nil || len(sig) != signatureLen {
		return "", ErrInvalidSignature
	}

	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return "", ErrInvalidSignature
	}

	// RecoverCompact wants the recovery flag first.
	compact := make([]byte, signatureLen)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := secpecdsa.RecoverCompact(compact, Hash(message))
	if err != nil {
		return "", ErrInvalidSignature
	}
	return AddressOf(pub), nil
}

// Verify checks that signature over message was produced by the private key
// controlling address. It returns nil on success and ErrInvalidSignature or
// ErrInvalidAddress otherwise; no other outcome escapes.
func Verify(address, message, signature string) error {
	want, err := normalize(address)
	if err != nil {
		return ErrInvalidAddress
	}
	got, err := Recover(message, signature)
	if err != nil {
		return err
	}
	if got != want {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces the hex R || S || V personal-sign signature of message with
// the given key. Used by the CLI client, the seeder, and tests; the server
// itself never signs.
func Sign(priv *secp256k1.PrivateKey, message string) string {
	compact := secpecdsa.SignCompact(priv, Hash(message), false)
	sig := make([]byte, signatureLen)
	copy(sig[:64], compact[1:])
	sig[64] = compact[0] // recovery flag moves to the tail
	return "0x" + hex.EncodeToString(sig)
}

// NewKey generates a fresh wallet keypair.
func NewKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// AddressOf derives the wallet address from a public key: the last 20 bytes
// of keccak256 over the uncompressed point, lower-case 0x-hex.
func AddressOf(pub *secp256k1.PublicKey) string {
	raw := pub.SerializeUncompressed()
	h := sha3.NewLegacyKeccak256()
	h.Write(raw[1:]) // drop the 0x04 point prefix
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-addressLen:])
}

// Normalize lower-cases and validates a wallet address so comparisons and
// storage keys are canonical.
func Normalize(address string) (string, error) {
	return normalize(address)
}

func normalize(address string) (string, error) {
	b, err := decodeHex(address)
	if err != nil || len(b) != addressLen {
		return "", ErrInvalidAddress
	}
	return "0x" + hex.EncodeToString(b), nil
}

func decodeHex(input string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(input), "0x")
	return hex.DecodeString(clean)
}
