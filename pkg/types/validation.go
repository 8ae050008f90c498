package types

import (
	"github.com/gagliardetto/solana-go"
)

// ValidatePublicKey validates a public key is not zero.
func ValidatePublicKey(name string, key solana.PublicKey) error {
	if key.IsZero() {
		return NewValidationError(name, name+" cannot be zero")
	}
	return nil
}

// ParseAddress decodes a base58 account address. Any decoding problem,
// including a wrong length, is reported as a malformed address.
func ParseAddress(field, v string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(v)
	if err != nil || pk.IsZero() {
		return solana.PublicKey{}, NewValidationError(field, "malformed address")
	}
	return pk, nil
}
