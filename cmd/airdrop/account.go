package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ninja0404/solana-airdrop-api/pkg/config"
	"github.com/ninja0404/solana-airdrop-api/pkg/token"
	"github.com/ninja0404/solana-airdrop-api/pkg/types"
)

type accountView struct {
	Owner     string `json:"owner"`
	Mint      string `json:"mint"`
	Account   string `json:"token_account"`
	Program   string `json:"token_program"`
	Exists    bool   `json:"exists"`
	Balance   string `json:"balance"`
	BalanceUI string `json:"balance_ui"`
	Frozen    bool   `json:"frozen"`
}

func newAccountCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "account [owner]",
		Short: "Show the token account of owner for the configured mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := parsePubkey("owner", args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			deps, err := loadRuntime(ctx, func(cfg config.ServiceConfig) zerolog.Logger {
				return newLogger(cmd.ErrOrStderr(), opts, cfg)
			})
			if err != nil {
				return err
			}

			state, err := deps.resolver.Lookup(ctx, owner)
			if err != nil {
				return fmt.Errorf("lookup: %w", err)
			}
			bz, _ := json.MarshalIndent(newAccountView(state, deps.resolver.Mint()), "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(bz))
			return nil
		},
	}
}

func newAccountView(state token.AccountState, mint token.MintInfo) accountView {
	return accountView{
		Owner:     state.Owner.String(),
		Mint:      state.Mint.String(),
		Account:   state.Address.String(),
		Program:   state.ProgramID.String(),
		Exists:    state.Exists,
		Balance:   fmt.Sprintf("%d", state.Balance),
		BalanceUI: token.FromRaw(state.Balance, mint.Decimals).String(),
		Frozen:    state.Frozen,
	}
}

// parsePubkey converts a base58 string to a PublicKey.
func parsePubkey(label, v string) (solana.PublicKey, error) {
	if v == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", label)
	}
	return types.ParseAddress(label, v)
}
