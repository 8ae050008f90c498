package txbuilder

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/solana-airdrop-api/pkg/jito"
	"github.com/ninja0404/solana-airdrop-api/pkg/types"
	"github.com/ninja0404/solana-airdrop-api/pkg/wallet"
)

// fakeNode records every encoded transaction and answers status polls from
// a script.
type fakeNode struct {
	mu        sync.Mutex
	blockhash solana.Hash
	sent      []string
	sendErr   error
	statuses  func(poll int) *solanarpc.SignatureStatusesResult
	polls     int
	opts      []solanarpc.TransactionOpts
}

func (f *fakeNode) GetLatestBlockhash(context.Context) (solana.Hash, error) {
	return f.blockhash, nil
}

func (f *fakeNode) SendEncodedTransaction(_ context.Context, encoded string, opts solanarpc.TransactionOpts) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, encoded)
	f.opts = append(f.opts, opts)
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return solana.Signature{}, err
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return solana.Signature{}, err
	}
	return tx.Signatures[0], nil
}

func (f *fakeNode) GetSignatureStatus(context.Context, solana.Signature) (*solanarpc.SignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.statuses == nil {
		return nil, nil
	}
	return f.statuses(f.polls), nil
}

type fakeBundles struct {
	sent [][]string
}

func (f *fakeBundles) SendEncoded(_ context.Context, encoded ...string) (string, error) {
	f.sent = append(f.sent, encoded)
	return "bundle-id", nil
}

// stalledBundles never answers; it returns only when ctx is done.
type stalledBundles struct{}

func (stalledBundles) SendEncoded(ctx context.Context, _ ...string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func newNode() *fakeNode {
	return &fakeNode{blockhash: solana.Hash(solana.NewWallet().PublicKey())}
}

func signedTx(t *testing.T, b *Builder, payer wallet.Local) *solana.Transaction {
	t.Helper()
	ix := system.NewTransferInstruction(1, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()
	tx, err := b.Build(context.Background(), payer.PublicKey(), ix)
	require.NoError(t, err)
	require.NoError(t, SignTransaction(context.Background(), tx, payer))
	return tx
}

func confirmed(int) *solanarpc.SignatureStatusesResult {
	return &solanarpc.SignatureStatusesResult{ConfirmationStatus: solanarpc.ConfirmationStatusConfirmed}
}

func newPayer() wallet.Local {
	return wallet.NewLocalFromPrivateKey(solana.NewWallet().PrivateKey)
}

func TestBuild(t *testing.T) {
	node := newNode()
	payer := newPayer()
	b := NewBuilder(node, solanarpc.CommitmentConfirmed)

	tx := signedTx(t, b, payer)
	assert.Equal(t, node.blockhash, tx.Message.RecentBlockhash)
	assert.Equal(t, payer.PublicKey(), tx.Message.AccountKeys[0])
	assert.Len(t, tx.Message.Instructions, 1)

	require.NoError(t, tx.VerifySignatures())
}

func TestBuild_RequiresInstructions(t *testing.T) {
	_, err := NewBuilder(newNode(), "").Build(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, types.ErrNoInstructions)
}

func TestBuild_AddsJitoTip(t *testing.T) {
	payer := newPayer()
	b := NewBuilder(newNode(), "").WithJito(&fakeBundles{}, 10_000)

	tx := signedTx(t, b, payer)
	require.Len(t, tx.Message.Instructions, 2)

	tip := tx.Message.Instructions[1]
	tipAccount := tx.Message.AccountKeys[tip.Accounts[1]]
	assert.Contains(t, jito.MainnetTipAccounts, tipAccount)
}

func TestSignTransaction_MissingSigner(t *testing.T) {
	payer := newPayer()
	b := NewBuilder(newNode(), "")
	ix := system.NewTransferInstruction(1, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()
	tx, err := b.Build(context.Background(), payer.PublicKey(), ix)
	require.NoError(t, err)

	err = SignTransaction(context.Background(), tx, newPayer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing signer")
}

func TestSubmit_ConfirmsAndSendsSignedBytes(t *testing.T) {
	node := newNode()
	node.statuses = func(poll int) *solanarpc.SignatureStatusesResult {
		if poll < 3 {
			return nil
		}
		return confirmed(poll)
	}
	b := NewBuilder(node, solanarpc.CommitmentConfirmed).
		WithSkipPreflight(true).
		WithConfirmation(time.Second, time.Millisecond)
	tx := signedTx(t, b, newPayer())

	sub, err := b.Submit(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, sub.Status)
	assert.Equal(t, tx.Signatures[0], sub.Signature)
	assert.Equal(t, 3, node.polls)

	require.Len(t, node.sent, 1)
	want, err := tx.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(want), node.sent[0])
	assert.True(t, node.opts[0].SkipPreflight)
	assert.Equal(t, solanarpc.CommitmentConfirmed, node.opts[0].PreflightCommitment)
}

func TestSubmit_ResubmissionKeepsSignature(t *testing.T) {
	node := newNode()
	b := NewBuilder(node, "").WithConfirmation(0, 0)
	tx := signedTx(t, b, newPayer())

	first, err := b.Submit(context.Background(), tx)
	require.NoError(t, err)
	second, err := b.Submit(context.Background(), tx)
	require.NoError(t, err)

	assert.Equal(t, first.Signature, second.Signature)
	require.Len(t, node.sent, 2)
	assert.Equal(t, node.sent[0], node.sent[1])
}

func TestSubmit_NoWaitReportsSubmitted(t *testing.T) {
	node := newNode()
	b := NewBuilder(node, "").WithConfirmation(0, 0)

	sub, err := b.Submit(context.Background(), signedTx(t, b, newPayer()))
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, sub.Status)
	assert.Zero(t, node.polls)
}

func TestSubmit_ConfirmationTimeoutCarriesSignature(t *testing.T) {
	node := newNode()
	b := NewBuilder(node, solanarpc.CommitmentFinalized).WithConfirmation(30*time.Millisecond, 5*time.Millisecond)
	node.statuses = confirmed
	tx := signedTx(t, b, newPayer())

	_, err := b.Submit(context.Background(), tx)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfirmationTimeout)

	sig, ok := types.SignatureFrom(err)
	require.True(t, ok)
	assert.Equal(t, tx.Signatures[0], sig)
}

func TestSubmit_CallerDeadlineDuringConfirmationIsTimeout(t *testing.T) {
	node := newNode()
	b := NewBuilder(node, "").WithConfirmation(10*time.Second, 5*time.Millisecond)
	tx := signedTx(t, b, newPayer())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.Submit(ctx, tx)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConfirmationTimeout)

	sig, ok := types.SignatureFrom(err)
	require.True(t, ok)
	assert.Equal(t, tx.Signatures[0], sig)
}

func TestSubmit_SendTimeoutBoundsStalledEngine(t *testing.T) {
	b := NewBuilder(newNode(), "").
		WithJito(stalledBundles{}, 0).
		WithSendTimeout(50 * time.Millisecond)
	tx := signedTx(t, b, newPayer())

	start := time.Now()
	_, err := b.Submit(context.Background(), tx)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrSubmissionFailed)
	assert.Less(t, time.Since(start), time.Second)

	sig, ok := types.SignatureFrom(err)
	require.True(t, ok)
	assert.Equal(t, tx.Signatures[0], sig)
}

func TestSubmit_OnChainFailure(t *testing.T) {
	tests := []struct {
		name   string
		errVal interface{}
		want   error
	}{
		{
			name:   "token insufficient funds",
			errVal: map[string]interface{}{"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(1)}}},
			want:   types.ErrInsufficientFunds,
		},
		{
			name:   "other instruction error",
			errVal: map[string]interface{}{"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(17)}}},
			want:   types.ErrTransactionFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := newNode()
			node.statuses = func(int) *solanarpc.SignatureStatusesResult {
				return &solanarpc.SignatureStatusesResult{Err: tt.errVal}
			}
			b := NewBuilder(node, "").WithConfirmation(time.Second, time.Millisecond)
			tx := signedTx(t, b, newPayer())

			_, err := b.Submit(context.Background(), tx)
			assert.ErrorIs(t, err, tt.want)
			sig, ok := types.SignatureFrom(err)
			require.True(t, ok)
			assert.Equal(t, tx.Signatures[0], sig)
		})
	}
}

func TestSubmit_SendErrors(t *testing.T) {
	t.Run("insufficient funds in preflight", func(t *testing.T) {
		node := newNode()
		node.sendErr = errors.New("Transaction simulation failed: Attempt to debit an account but found no record of a prior credit; insufficient lamports 10, need 5000")
		b := NewBuilder(node, "")
		_, err := b.Submit(context.Background(), signedTx(t, b, newPayer()))
		assert.ErrorIs(t, err, types.ErrInsufficientFunds)
		_, ok := types.SignatureFrom(err)
		assert.True(t, ok)
	})

	t.Run("node rejection", func(t *testing.T) {
		node := newNode()
		node.sendErr = errors.New("Blockhash not found")
		b := NewBuilder(node, "")
		_, err := b.Submit(context.Background(), signedTx(t, b, newPayer()))
		assert.ErrorIs(t, err, types.ErrSubmissionFailed)
	})
}

func TestSubmit_ViaJitoSendsSameBytes(t *testing.T) {
	node := newNode()
	node.statuses = confirmed
	bundles := &fakeBundles{}
	b := NewBuilder(node, "").WithJito(bundles, 0).WithConfirmation(time.Second, time.Millisecond)
	tx := signedTx(t, b, newPayer())

	sub, err := b.Submit(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, "bundle-id", sub.BundleID)
	assert.Empty(t, node.sent)

	want, err := tx.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, bundles.sent, 1)
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString(want)}, bundles.sent[0])
}

func TestSubmit_RejectsUnsignedTransaction(t *testing.T) {
	b := NewBuilder(newNode(), "")
	payer := newPayer()
	ix := system.NewTransferInstruction(1, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()
	tx, err := b.Build(context.Background(), payer.PublicKey(), ix)
	require.NoError(t, err)

	_, err = b.Submit(context.Background(), tx)
	assert.Error(t, err)
}
