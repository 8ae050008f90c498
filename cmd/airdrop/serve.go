package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ninja0404/solana-airdrop-api/internal/httpapi"
	"github.com/ninja0404/solana-airdrop-api/internal/server"
	"github.com/ninja0404/solana-airdrop-api/pkg/config"
	"github.com/ninja0404/solana-airdrop-api/pkg/jito"
	"github.com/ninja0404/solana-airdrop-api/pkg/token"
	"github.com/ninja0404/solana-airdrop-api/pkg/transfer"
	"github.com/ninja0404/solana-airdrop-api/pkg/txbuilder"
)

const startupTimeout = 30 * time.Second

func newServeCmd(opts *globalOpts) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(
				cmd.Context(),
				syscall.SIGTERM,
				syscall.SIGINT,
				syscall.SIGQUIT,
			)
			defer stop()

			startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
			defer cancel()
			deps, err := loadRuntime(startCtx, func(cfg config.ServiceConfig) zerolog.Logger {
				return newLogger(os.Stdout, opts, cfg)
			})
			if err != nil {
				return err
			}
			log := deps.logger
			s := deps.settings

			sender, err := deps.resolver.SenderAccount(startCtx, s.Signer.PublicKey(), s.SenderAccount)
			if err != nil {
				return fmt.Errorf("sender token account: %w", err)
			}
			log.Info().
				Str("signer", s.Signer.PublicKey().String()).
				Str("sender_account", sender.Address.String()).
				Str("balance", token.FromRaw(sender.Balance, deps.resolver.Mint().Decimals).String()).
				Msg("sender account ready")

			builder := txbuilder.NewBuilder(deps.rpc, s.Commitment).
				WithSkipPreflight(s.SkipPreflight).
				WithConfirmation(s.ConfirmTimeout, s.ConfirmPollInterval)
			if len(s.Jito.Endpoints) > 0 {
				engine := jito.NewClient(s.Jito.Endpoints, s.Jito.UUID.Reveal())
				builder = builder.WithJito(engine, s.Jito.TipLamports)
				log.Info().Strs("endpoints", engine.Endpoints()).Uint64("tip_lamports", s.Jito.TipLamports).Msg("submitting through jito")
			}

			svc, err := transfer.NewService(s.Signer, sender.AccountRef, deps.resolver, builder, log)
			if err != nil {
				return err
			}
			svc = svc.WithTimeout(s.TransferTimeout)
			handler := httpapi.NewHandler(svc, log, s.Server.MaxBodyBytes)

			if address != "" {
				s.Server.Address = address
			}
			return server.New(handler.Init(), s.Server, log).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address, overrides SERVER_ADDRESS")
	return cmd
}
