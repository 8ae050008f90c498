// Package token resolves SPL token accounts for the configured mint and
// builds the instructions that move tokens between them.
package token

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/ninja0404/solana-airdrop-api/pkg/constants"
	sdkrpc "github.com/ninja0404/solana-airdrop-api/pkg/rpc"
	"github.com/ninja0404/solana-airdrop-api/pkg/types"
)

// Token-2022 marks extended accounts with a type byte right after the base
// token account layout.
const (
	accountTypeOffset  = constants.TokenAccountSize
	accountTypeMint    = 1
	accountTypeAccount = 2
)

// AccountReader fetches raw accounts; *sdkrpc.Client satisfies it.
type AccountReader interface {
	GetAccounts(ctx context.Context, addrs ...solana.PublicKey) ([]*sdkrpc.Account, error)
}

// MintInfo is the mint metadata the transfer pipeline depends on.
type MintInfo struct {
	Address   solana.PublicKey
	ProgramID solana.PublicKey
	Decimals  uint8
	Supply    uint64
}

// LoadMint reads the mint account and the program that owns it.
func LoadMint(ctx context.Context, reader AccountReader, mint solana.PublicKey) (MintInfo, error) {
	if reader == nil {
		return MintInfo{}, types.ErrNilRPC
	}
	if err := types.ValidatePublicKey("mint", mint); err != nil {
		return MintInfo{}, err
	}
	accounts, err := reader.GetAccounts(ctx, mint)
	if err != nil {
		return MintInfo{}, fmt.Errorf("fetch mint %s: %w: %w", mint, types.ErrRPCUnavailable, err)
	}
	if len(accounts) == 0 || accounts[0] == nil {
		return MintInfo{}, fmt.Errorf("%w: %s", types.ErrMintNotFound, mint)
	}
	acc := accounts[0]
	if !constants.IsTokenProgram(acc.Owner) {
		return MintInfo{}, fmt.Errorf("%w: %s is owned by %s", types.ErrNotAMint, mint, acc.Owner)
	}
	m, err := decodeMint(acc.Data)
	if err != nil {
		return MintInfo{}, fmt.Errorf("%s: %w", mint, err)
	}
	return MintInfo{
		Address:   mint,
		ProgramID: acc.Owner,
		Decimals:  m.Decimals,
		Supply:    m.Supply,
	}, nil
}

func decodeMint(data []byte) (token.Mint, error) {
	var m token.Mint
	switch {
	case len(data) == constants.MintAccountSize:
	case len(data) > accountTypeOffset && data[accountTypeOffset] == accountTypeMint:
	default:
		return m, fmt.Errorf("%w: unexpected data length %d", types.ErrNotAMint, len(data))
	}
	if err := bin.NewBinDecoder(data[:constants.MintAccountSize]).Decode(&m); err != nil {
		return m, fmt.Errorf("%w: decode: %v", types.ErrNotAMint, err)
	}
	if !m.IsInitialized {
		return m, fmt.Errorf("%w: mint not initialized", types.ErrNotAMint)
	}
	return m, nil
}

func decodeTokenAccount(data []byte) (token.Account, error) {
	var acc token.Account
	switch {
	case len(data) == constants.TokenAccountSize:
	case len(data) > accountTypeOffset && data[accountTypeOffset] == accountTypeAccount:
	default:
		return acc, fmt.Errorf("not a token account: data length %d", len(data))
	}
	if err := bin.NewBinDecoder(data[:constants.TokenAccountSize]).Decode(&acc); err != nil {
		return acc, fmt.Errorf("decode token account: %w", err)
	}
	return acc, nil
}
