package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Key parsing errors never carry the offending input.
var (
	ErrEmptyKey     = errors.New("private key is empty")
	ErrMalformedKey = errors.New("private key is malformed")
)

// Signer performs detached signatures for transaction messages.
type Signer interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, message []byte) (solana.Signature, error)
}

// Local wraps a local private key.
type Local struct {
	key solana.PrivateKey
}

// NewLocalFromKeygen loads a solana-keygen JSON file.
func NewLocalFromKeygen(path string) (Local, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return Local{}, fmt.Errorf("load keypair from %s: %w", path, ErrMalformedKey)
	}
	return newLocal(key)
}

// NewLocalFromBase58 constructs a local signer from base58-encoded key.
func NewLocalFromBase58(privateKey string) (Local, error) {
	key, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return Local{}, fmt.Errorf("decode base58 key: %w", ErrMalformedKey)
	}
	return newLocal(key)
}

// NewLocalFromPrivateKey constructs a local signer from existing private key.
func NewLocalFromPrivateKey(key solana.PrivateKey) Local {
	return Local{key: key}
}

// ParseKeyMaterial accepts the key encodings seen in deployments: a
// solana-keygen JSON byte array, hex (64-byte keypair or 32-byte seed) or
// base58.
func ParseKeyMaterial(material string) (Local, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return Local{}, ErrEmptyKey
	}

	if strings.HasPrefix(material, "[") {
		var raw []byte
		var ints []int
		if err := json.Unmarshal([]byte(material), &ints); err != nil {
			return Local{}, fmt.Errorf("decode json key: %w", ErrMalformedKey)
		}
		for _, v := range ints {
			if v < 0 || v > 255 {
				return Local{}, fmt.Errorf("decode json key: %w", ErrMalformedKey)
			}
			raw = append(raw, byte(v))
		}
		return fromRaw(raw)
	}

	if isHex(material) {
		raw, err := hex.DecodeString(material)
		if err != nil {
			return Local{}, fmt.Errorf("decode hex key: %w", ErrMalformedKey)
		}
		return fromRaw(raw)
	}

	return NewLocalFromBase58(material)
}

func fromRaw(raw []byte) (Local, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return Local{key: solana.PrivateKey(ed25519.NewKeyFromSeed(raw))}, nil
	case ed25519.PrivateKeySize:
		return newLocal(solana.PrivateKey(raw))
	default:
		return Local{}, fmt.Errorf("key length %d: %w", len(raw), ErrMalformedKey)
	}
}

// newLocal checks that the public half of a 64-byte key matches its seed.
func newLocal(key solana.PrivateKey) (Local, error) {
	if len(key) != ed25519.PrivateKeySize {
		return Local{}, fmt.Errorf("key length %d: %w", len(key), ErrMalformedKey)
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !derived.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(key[ed25519.SeedSize:])) {
		return Local{}, fmt.Errorf("public half does not match seed: %w", ErrMalformedKey)
	}
	return Local{key: key}, nil
}

func isHex(s string) bool {
	if len(s)%2 != 0 || (len(s) != 2*ed25519.PrivateKeySize && len(s) != 2*ed25519.SeedSize) {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// PublicKey returns the associated public key.
func (l Local) PublicKey() solana.PublicKey {
	return l.key.PublicKey()
}

// String prints only the public key.
func (l Local) String() string {
	return l.PublicKey().String()
}

// GoString keeps %#v from dumping key bytes.
func (l Local) GoString() string {
	return "wallet.Local{" + l.PublicKey().String() + "}"
}

// SignMessage signs the provided message bytes.
func (l Local) SignMessage(ctx context.Context, message []byte) (solana.Signature, error) {
	select {
	case <-ctx.Done():
		return solana.Signature{}, ctx.Err()
	default:
		sig, err := l.key.Sign(message)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("sign message: %w", err)
		}
		return sig, nil
	}
}
