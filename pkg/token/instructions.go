package token

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/ninja0404/solana-airdrop-api/pkg/constants"
)

// TransferInstruction builds a TransferChecked instruction addressed to the
// mint's owning program (SPL Token or Token-2022).
func TransferInstruction(mint MintInfo, source, destination, owner solana.PublicKey, amount uint64) (solana.Instruction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("transfer amount must be greater than 0")
	}
	ix, err := token.NewTransferCheckedInstruction(
		amount,
		mint.Decimals,
		source,
		mint.Address,
		destination,
		owner,
		nil,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build transfer instruction: %w", err)
	}
	data, err := ix.Data()
	if err != nil {
		return nil, fmt.Errorf("encode transfer instruction: %w", err)
	}
	programID := mint.ProgramID
	if programID.IsZero() {
		programID = constants.TokenProgramID
	}
	return solana.NewInstruction(programID, ix.Accounts(), data), nil
}

// CreateAccountInstruction creates the associated token account for ref,
// paid by payer. The idempotent variant succeeds when a concurrent
// transaction created the account first.
func CreateAccountInstruction(payer solana.PublicKey, ref AccountRef) solana.Instruction {
	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ref.Address, true, false),
		solana.NewAccountMeta(ref.Owner, false, false),
		solana.NewAccountMeta(ref.Mint, false, false),
		solana.NewAccountMeta(constants.SystemProgramID, false, false),
		solana.NewAccountMeta(ref.ProgramID, false, false),
	}
	return solana.NewInstruction(
		constants.AssociatedTokenProgramID,
		metas,
		[]byte{constants.ATAInstructionCreateIdempotent},
	)
}
