package config

import "errors"

// Configuration errors. Load and Resolve wrap one of these; the process
// treats them as fatal.
var (
	// ErrInvalidConfig indicates a missing or malformed environment value.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidSigningKey indicates SOLANA_PRIVATE_KEY could not be parsed.
	// The key itself is never part of the message.
	ErrInvalidSigningKey = errors.New("invalid signing key")
)
