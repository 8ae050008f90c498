package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ninja0404/solana-airdrop-api/pkg/wallet"
)

type keygenOpts struct {
	out             string
	prefix          string
	suffix          string
	caseInsensitive bool
	workers         int
	timeout         time.Duration
}

func newKeygenCmd() *cobra.Command {
	o := &keygenOpts{}
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a signer keypair file for SOLANA_PRIVATE_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if o.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, o.timeout)
				defer cancel()
			}

			if n := len(o.prefix) + len(o.suffix); n > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "searching, ~%d attempts expected\n", wallet.EstimateAttempts(n))
			}
			signer, stats, err := wallet.Generate(ctx, wallet.KeygenOptions{
				Prefix:          o.prefix,
				Suffix:          o.suffix,
				Workers:         o.workers,
				CaseInsensitive: o.caseInsensitive,
			})
			if err != nil {
				return err
			}
			if err := wallet.WriteKeygenFile(o.out, signer); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pubkey=%s file=%s attempts=%d elapsed=%s\n",
				signer.PublicKey(), o.out, stats.Attempts, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&o.out, "out", "signer.json", "output path (must not exist)")
	cmd.Flags().StringVar(&o.prefix, "prefix", "", "required address prefix")
	cmd.Flags().StringVar(&o.suffix, "suffix", "", "required address suffix")
	cmd.Flags().BoolVar(&o.caseInsensitive, "ignore-case", false, "match prefix and suffix case-insensitively")
	cmd.Flags().IntVar(&o.workers, "workers", 0, "search goroutines (default NumCPU)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "give up after this long (0 = no limit)")

	return cmd
}
