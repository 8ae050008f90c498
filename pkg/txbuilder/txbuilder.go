package txbuilder

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	solanarpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/ninja0404/solana-airdrop-api/pkg/jito"
	"github.com/ninja0404/solana-airdrop-api/pkg/types"
	"github.com/ninja0404/solana-airdrop-api/pkg/wallet"
)

// ConfirmationLevel represents transaction confirmation depth.
type ConfirmationLevel string

const (
	ConfirmationProcessed ConfirmationLevel = "processed"
	ConfirmationConfirmed ConfirmationLevel = "confirmed"
	ConfirmationFinalized ConfirmationLevel = "finalized"
)

// Status is the outcome reported for a submitted transaction.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
)

const (
	defaultConfirmTimeout = 30 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
	defaultSendTimeout    = 30 * time.Second
)

// Node is the RPC surface the builder needs; *rpc.Client satisfies it.
type Node interface {
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendEncodedTransaction(ctx context.Context, encoded string, opts solanarpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solanarpc.SignatureStatusesResult, error)
}

// BundleSender submits encoded transactions through a block engine;
// *jito.Client satisfies it.
type BundleSender interface {
	SendEncoded(ctx context.Context, encoded ...string) (string, error)
}

// Submission describes a transaction that reached the network.
type Submission struct {
	Signature solana.Signature
	Status    Status
	BundleID  string
}

// Builder ties together RPC, fee payer, and signing.
type Builder struct {
	node           Node
	commitment     solanarpc.CommitmentType
	skipPreflight  bool
	jito           BundleSender
	tipLamports    uint64
	confirmTimeout time.Duration
	pollInterval   time.Duration
	sendTimeout    time.Duration
}

// NewBuilder constructs a builder with the provided node and commitment.
func NewBuilder(node Node, commitment solanarpc.CommitmentType) *Builder {
	if commitment == "" {
		commitment = solanarpc.CommitmentConfirmed
	}
	return &Builder{
		node:           node,
		commitment:     commitment,
		confirmTimeout: defaultConfirmTimeout,
		pollInterval:   defaultPollInterval,
		sendTimeout:    defaultSendTimeout,
	}
}

// WithSkipPreflight configures whether to skip preflight.
func (b *Builder) WithSkipPreflight(skip bool) *Builder {
	b.skipPreflight = skip
	return b
}

// WithJito routes submissions through a block engine. A non-zero tip adds a
// transfer to a Jito tip account to every built transaction.
// Pass nil to use standard RPC.
func (b *Builder) WithJito(sender BundleSender, tipLamports uint64) *Builder {
	b.jito = sender
	b.tipLamports = tipLamports
	return b
}

// WithConfirmation bounds the confirmation wait. A zero timeout returns as
// soon as the node accepts the transaction.
func (b *Builder) WithConfirmation(timeout, pollInterval time.Duration) *Builder {
	b.confirmTimeout = timeout
	if pollInterval > 0 {
		b.pollInterval = pollInterval
	}
	return b
}

// WithSendTimeout bounds the send stage, retries included.
func (b *Builder) WithSendTimeout(timeout time.Duration) *Builder {
	if timeout > 0 {
		b.sendTimeout = timeout
	}
	return b
}

// Build builds a transaction with a fresh blockhash.
func (b *Builder) Build(ctx context.Context, feePayer solana.PublicKey, instructions ...solana.Instruction) (*solana.Transaction, error) {
	if b.node == nil {
		return nil, types.ErrNilRPC
	}
	if len(instructions) == 0 {
		return nil, types.ErrNoInstructions
	}

	blockhash, err := b.node.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w: %w", types.ErrRPCUnavailable, err)
	}

	builder := solana.NewTransactionBuilder().
		SetRecentBlockHash(blockhash).
		SetFeePayer(feePayer)

	for _, ix := range instructions {
		builder.AddInstruction(ix)
	}
	if b.jito != nil && b.tipLamports > 0 {
		builder.AddInstruction(system.NewTransferInstruction(b.tipLamports, feePayer, jito.RandomTipAccount()).Build())
	}

	tx, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	return tx, nil
}

// SignTransaction signs using the provided signers in account-key order.
func SignTransaction(ctx context.Context, tx *solana.Transaction, signers ...wallet.Signer) error {
	if tx == nil {
		return fmt.Errorf("transaction is nil")
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 {
		return nil
	}
	if len(tx.Message.AccountKeys) < required {
		return fmt.Errorf("not enough account keys for required signatures")
	}

	signerMap := make(map[solana.PublicKey]wallet.Signer, len(signers))
	for _, s := range signers {
		if s == nil {
			return types.ErrNilSigner
		}
		signerMap[s.PublicKey()] = s
	}

	messageBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	sigs := make([]solana.Signature, required)
	for i := 0; i < required; i++ {
		pk := tx.Message.AccountKeys[i]
		signer, ok := signerMap[pk]
		if !ok {
			return fmt.Errorf("missing signer for %s", pk)
		}
		sig, err := signer.SignMessage(ctx, messageBytes)
		if err != nil {
			return fmt.Errorf("sign message for %s: %w", pk, err)
		}
		sigs[i] = sig
	}
	tx.Signatures = sigs
	return nil
}

// Submit sends a signed transaction and, unless confirmation is disabled,
// waits for the configured commitment. The transaction is encoded once, so
// every resend carries the same signature. All errors are *types.TxError.
func (b *Builder) Submit(ctx context.Context, tx *solana.Transaction) (Submission, error) {
	if tx == nil || len(tx.Signatures) == 0 || tx.Signatures[0].IsZero() {
		return Submission{}, fmt.Errorf("transaction is not signed")
	}
	sig := tx.Signatures[0]

	raw, err := tx.MarshalBinary()
	if err != nil {
		return Submission{}, types.NewTxError(sig, fmt.Errorf("encode transaction: %w", err))
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	sub := Submission{Signature: sig, Status: StatusSubmitted}
	sendCtx, cancelSend := context.WithTimeout(ctx, b.sendTimeout)
	if b.jito != nil {
		sub.BundleID, err = b.jito.SendEncoded(sendCtx, encoded)
	} else {
		_, err = b.sendViaRPC(sendCtx, encoded)
	}
	cancelSend()
	if err != nil {
		return Submission{}, types.NewTxError(sig, classifySendError(err))
	}

	if b.confirmTimeout <= 0 {
		return sub, nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, b.confirmTimeout)
	defer cancel()
	if err := b.WaitForConfirmation(waitCtx, sig, ConfirmationLevel(b.commitment)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: not %s in time", types.ErrConfirmationTimeout, b.commitment)
		}
		return Submission{}, types.NewTxError(sig, err)
	}
	sub.Status = StatusConfirmed
	return sub, nil
}

func (b *Builder) sendViaRPC(ctx context.Context, encoded string) (solana.Signature, error) {
	if b.node == nil {
		return solana.Signature{}, types.ErrNilRPC
	}
	opts := solanarpc.TransactionOpts{
		Encoding:            solana.EncodingBase64,
		SkipPreflight:       b.skipPreflight,
		PreflightCommitment: b.commitment,
	}
	return b.node.SendEncodedTransaction(ctx, encoded, opts)
}

func classifySendError(err error) error {
	if types.IsInsufficientFunds(err.Error()) {
		return fmt.Errorf("%w: %v", types.ErrInsufficientFunds, err)
	}
	return fmt.Errorf("%w: %w", types.ErrSubmissionFailed, err)
}

// WaitForConfirmation polls transaction status until the level is reached,
// the transaction fails, or ctx is done. Transient RPC errors are polled
// through.
func (b *Builder) WaitForConfirmation(ctx context.Context, sig solana.Signature, level ConfirmationLevel) error {
	if b.node == nil {
		return types.ErrNilRPC
	}
	interval := b.pollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := b.node.GetSignatureStatus(ctx, sig)
		if err == nil && status != nil {
			if status.Err != nil {
				if types.IsInsufficientFundsStatus(status.Err) {
					return fmt.Errorf("%w: %v", types.ErrInsufficientFunds, status.Err)
				}
				return fmt.Errorf("%w: %v", types.ErrTransactionFailed, status.Err)
			}
			if reached(status.ConfirmationStatus, level) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func reached(got solanarpc.ConfirmationStatusType, level ConfirmationLevel) bool {
	switch level {
	case ConfirmationProcessed:
		return true
	case ConfirmationFinalized:
		return got == solanarpc.ConfirmationStatusFinalized
	default:
		return got == solanarpc.ConfirmationStatusConfirmed ||
			got == solanarpc.ConfirmationStatusFinalized
	}
}
