// Package transfer owns the request-to-transaction pipeline: validate,
// resolve token accounts, build and sign, submit.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/ninja0404/solana-airdrop-api/pkg/token"
	"github.com/ninja0404/solana-airdrop-api/pkg/txbuilder"
	"github.com/ninja0404/solana-airdrop-api/pkg/types"
	"github.com/ninja0404/solana-airdrop-api/pkg/wallet"
)

// State is a step of the transfer pipeline.
type State string

const (
	StateReceived  State = "received"
	StateValidated State = "validated"
	StateResolved  State = "resolved"
	StateBuilt     State = "built"
	StateSubmitted State = "submitted"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// DefaultTimeout bounds a whole transfer, confirmation included.
const DefaultTimeout = 50 * time.Second

// Result describes a transfer that reached the network.
type Result struct {
	Signature        solana.Signature
	Status           txbuilder.Status
	AmountRaw        uint64
	RecipientAccount solana.PublicKey
	RecipientCreated bool
}

// AccountResolver locates the token accounts for a transfer.
type AccountResolver interface {
	Mint() token.MintInfo
	Resolve(ctx context.Context, sender token.AccountRef, recipientOwner, payer solana.PublicKey, amount uint64) (token.Plan, error)
}

// TxSubmitter builds transactions and sends signed ones.
type TxSubmitter interface {
	Build(ctx context.Context, feePayer solana.PublicKey, instructions ...solana.Instruction) (*solana.Transaction, error)
	Submit(ctx context.Context, tx *solana.Transaction) (txbuilder.Submission, error)
}

// Service runs transfers from the configured sender account. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	signer   wallet.Signer
	sender   token.AccountRef
	resolver AccountResolver
	builder  TxSubmitter
	timeout  time.Duration
	log      zerolog.Logger
}

// NewService wires the pipeline. sender is the token account debited by
// every transfer and must be owned by signer.
func NewService(signer wallet.Signer, sender token.AccountRef, resolver AccountResolver, builder TxSubmitter, logger zerolog.Logger) (*Service, error) {
	if signer == nil {
		return nil, types.ErrNilSigner
	}
	if resolver == nil || builder == nil {
		return nil, types.ErrNilRPC
	}
	if !sender.Owner.Equals(signer.PublicKey()) {
		return nil, fmt.Errorf("%w: %s is not owned by the signer", types.ErrTokenAccountMismatch, sender.Address)
	}
	return &Service{
		signer:   signer,
		sender:   sender,
		resolver: resolver,
		builder:  builder,
		timeout:  DefaultTimeout,
		log:      logger,
	}, nil
}

// WithTimeout sets the deadline of a single transfer. The HTTP write timeout
// must exceed it or a late result never reaches the caller.
func (s *Service) WithTimeout(timeout time.Duration) *Service {
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

// Transfer moves req.Amount of the mint to req.Destination.
//
// Once the transaction is built, signing, submission and confirmation run
// detached from ctx cancellation; a disconnecting client does not abort a
// transfer that may already be broadcast. The service timeout still applies
// to every stage. Errors after signing carry the signature (see
// types.SignatureFrom).
func (s *Service) Transfer(ctx context.Context, req Request) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := s.logger(ctx).With().
		Str("destination", req.Destination.String()).
		Str("amount", req.Amount.String()).
		Logger()
	start := time.Now()
	state := StateReceived
	log.Debug().Str("state", string(state)).Msg("transfer state")

	fail := func(err error) (Result, error) {
		ev := log.Warn()
		if sig, ok := types.SignatureFrom(err); ok {
			ev = ev.Str("signature", sig.String())
		}
		ev.Str("state", string(StateFailed)).
			Str("failed_at", string(state)).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("transfer failed")
		return Result{}, err
	}
	advance := func(next State) {
		state = next
		log.Debug().Str("state", string(state)).Dur("elapsed", time.Since(start)).Msg("transfer state")
	}

	if req.Destination.IsZero() {
		return fail(types.NewValidationError(fieldDestination, "malformed address"))
	}
	mint := s.resolver.Mint()
	amountRaw, err := token.ToRaw(req.Amount, mint.Decimals)
	if err != nil {
		return fail(err)
	}
	advance(StateValidated)

	payer := s.signer.PublicKey()
	plan, err := s.resolver.Resolve(ctx, s.sender, req.Destination, payer, amountRaw)
	if err != nil {
		return fail(err)
	}
	advance(StateResolved)

	transferIx, err := token.TransferInstruction(mint, plan.Sender.Address, plan.Recipient.Address, payer, amountRaw)
	if err != nil {
		return fail(err)
	}
	instructions := append(append([]solana.Instruction{}, plan.Setup...), transferIx)
	tx, err := s.builder.Build(ctx, payer, instructions...)
	if err != nil {
		return fail(err)
	}
	// From here on the transfer runs to completion regardless of the caller,
	// bounded by the transfer deadline.
	deadline, _ := ctx.Deadline()
	detached, cancelDetached := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer cancelDetached()
	if err := txbuilder.SignTransaction(detached, tx, s.signer); err != nil {
		return fail(err)
	}
	sig := tx.Signatures[0]
	log = log.With().Str("signature", sig.String()).Logger()
	advance(StateBuilt)

	sub, err := s.builder.Submit(detached, tx)
	if err != nil {
		if _, ok := types.SignatureFrom(err); !ok {
			err = types.NewTxError(sig, err)
		}
		state = StateSubmitted
		return fail(err)
	}
	advance(StateSubmitted)

	log.Info().
		Str("state", string(StateSucceeded)).
		Str("status", string(sub.Status)).
		Uint64("amount_raw", amountRaw).
		Bool("recipient_created", plan.RecipientCreated()).
		Dur("elapsed", time.Since(start)).
		Msg("transfer succeeded")

	return Result{
		Signature:        sub.Signature,
		Status:           sub.Status,
		AmountRaw:        amountRaw,
		RecipientAccount: plan.Recipient.Address,
		RecipientCreated: plan.RecipientCreated(),
	}, nil
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.log
}
