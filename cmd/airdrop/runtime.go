package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ninja0404/solana-airdrop-api/pkg/config"
	sdkrpc "github.com/ninja0404/solana-airdrop-api/pkg/rpc"
	"github.com/ninja0404/solana-airdrop-api/pkg/token"
)

type runtimeDeps struct {
	settings config.Settings
	rpc      *sdkrpc.Client
	resolver *token.Resolver
	logger   zerolog.Logger
}

// loadRuntime reads the environment, connects to the cluster and caches the
// mint. It fails when the mint cannot be read.
func loadRuntime(ctx context.Context, newLog func(config.ServiceConfig) zerolog.Logger) (*runtimeDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := newLog(cfg)

	settings, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	client := sdkrpc.NewClient(cfg.RPCConfig(log))
	mint, err := token.LoadMint(ctx, client, settings.Mint)
	if err != nil {
		return nil, fmt.Errorf("load mint: %w", err)
	}
	log.Info().
		Str("mint", mint.Address.String()).
		Str("token_program", mint.ProgramID.String()).
		Uint8("decimals", mint.Decimals).
		Msg("mint loaded")

	return &runtimeDeps{
		settings: settings,
		rpc:      client,
		resolver: token.NewResolver(client, mint, settings.CreateRecipientAccount),
		logger:   log,
	}, nil
}
