package constants

import "github.com/gagliardetto/solana-go"

// Well-known program IDs
var (
	// SPL Programs
	SystemProgramID          = solana.SystemProgramID
	TokenProgramID           = solana.TokenProgramID
	Token2022ProgramID       = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
)

// IsTokenProgram reports whether id is one of the SPL token programs.
func IsTokenProgram(id solana.PublicKey) bool {
	return id.Equals(TokenProgramID) || id.Equals(Token2022ProgramID)
}

// ATAInstructionCreateIdempotent is the associated token account program's
// create instruction that succeeds when the account already exists.
const ATAInstructionCreateIdempotent byte = 1

// SPL token base account sizes (Token-2022 accounts may carry extensions past these).
const (
	MintAccountSize  = 82
	TokenAccountSize = 165
)
