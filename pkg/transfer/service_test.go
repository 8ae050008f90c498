package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/solana-airdrop-api/pkg/constants"
	"github.com/ninja0404/solana-airdrop-api/pkg/token"
	"github.com/ninja0404/solana-airdrop-api/pkg/txbuilder"
	"github.com/ninja0404/solana-airdrop-api/pkg/types"
	"github.com/ninja0404/solana-airdrop-api/pkg/wallet"
)

type mockResolver struct {
	mock.Mock
	mint token.MintInfo
}

func (m *mockResolver) Mint() token.MintInfo {
	return m.mint
}

func (m *mockResolver) Resolve(ctx context.Context, sender token.AccountRef, recipientOwner, payer solana.PublicKey, amount uint64) (token.Plan, error) {
	args := m.Called(ctx, sender, recipientOwner, payer, amount)
	return args.Get(0).(token.Plan), args.Error(1)
}

// fakeSubmitter builds real transactions with a fixed blockhash and records
// what it was asked to submit.
type fakeSubmitter struct {
	mu         sync.Mutex
	built      [][]solana.Instruction
	submitted  []*solana.Transaction
	delay      time.Duration
	submitErr  error
	onBuild    func()
	submitCtxs []error
	// stall makes Submit wait for its context, like a confirmation that
	// never arrives.
	stall bool
}

func (f *fakeSubmitter) Build(_ context.Context, feePayer solana.PublicKey, ixs ...solana.Instruction) (*solana.Transaction, error) {
	f.mu.Lock()
	f.built = append(f.built, ixs)
	onBuild := f.onBuild
	f.mu.Unlock()
	if onBuild != nil {
		onBuild()
	}
	return solana.NewTransaction(ixs, solana.Hash{1, 2, 3}, solana.TransactionPayer(feePayer))
}

func (f *fakeSubmitter) Submit(ctx context.Context, tx *solana.Transaction) (txbuilder.Submission, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.stall {
		<-ctx.Done()
		return txbuilder.Submission{}, types.NewTxError(tx.Signatures[0], types.ErrConfirmationTimeout)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, tx)
	f.submitCtxs = append(f.submitCtxs, ctx.Err())
	if f.submitErr != nil {
		return txbuilder.Submission{}, f.submitErr
	}
	return txbuilder.Submission{Signature: tx.Signatures[0], Status: txbuilder.StatusConfirmed}, nil
}

type fixture struct {
	signer    wallet.Local
	sender    token.AccountRef
	resolver  *mockResolver
	submitter *fakeSubmitter
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer := wallet.NewLocalFromPrivateKey(solana.NewWallet().PrivateKey)
	mint := token.MintInfo{Address: solana.NewWallet().PublicKey(), ProgramID: constants.TokenProgramID, Decimals: 9}
	sender := token.AccountRef{
		Owner:     signer.PublicKey(),
		Mint:      mint.Address,
		Address:   solana.NewWallet().PublicKey(),
		ProgramID: mint.ProgramID,
	}
	resolver := &mockResolver{mint: mint}
	submitter := &fakeSubmitter{}
	svc, err := NewService(signer, sender, resolver, submitter, zerolog.Nop())
	require.NoError(t, err)
	return &fixture{signer: signer, sender: sender, resolver: resolver, submitter: submitter, service: svc}
}

func (fx *fixture) plan(recipient solana.PublicKey, create bool) token.Plan {
	rec := token.AccountRef{Owner: recipient, Mint: fx.sender.Mint, Address: solana.NewWallet().PublicKey(), ProgramID: fx.sender.ProgramID}
	p := token.Plan{
		Sender:    token.AccountState{AccountRef: fx.sender, Exists: true, Balance: 1 << 40},
		Recipient: token.AccountState{AccountRef: rec, Exists: !create},
	}
	if create {
		p.Setup = []solana.Instruction{token.CreateAccountInstruction(fx.signer.PublicKey(), rec)}
	}
	return p
}

func TestTransfer_Succeeds(t *testing.T) {
	fx := newFixture(t)
	dest := solana.NewWallet().PublicKey()
	plan := fx.plan(dest, true)
	fx.resolver.On("Resolve", mock.Anything, fx.sender, dest, fx.signer.PublicKey(), uint64(1_230_000_000)).
		Return(plan, nil).Once()

	res, err := fx.service.Transfer(context.Background(), Request{Destination: dest, Amount: decimal.RequireFromString("1.23")})
	require.NoError(t, err)

	assert.Equal(t, uint64(1_230_000_000), res.AmountRaw)
	assert.Equal(t, txbuilder.StatusConfirmed, res.Status)
	assert.Equal(t, plan.Recipient.Address, res.RecipientAccount)
	assert.True(t, res.RecipientCreated)

	require.Len(t, fx.submitter.built, 1)
	ixs := fx.submitter.built[0]
	require.Len(t, ixs, 2)
	assert.Equal(t, constants.AssociatedTokenProgramID, ixs[0].ProgramID())
	assert.Equal(t, constants.TokenProgramID, ixs[1].ProgramID())

	require.Len(t, fx.submitter.submitted, 1)
	tx := fx.submitter.submitted[0]
	require.NoError(t, tx.VerifySignatures())
	assert.Equal(t, tx.Signatures[0], res.Signature)
	fx.resolver.AssertExpectations(t)
}

func TestTransfer_InvalidAmountNeverReachesResolution(t *testing.T) {
	fx := newFixture(t)
	dest := solana.NewWallet().PublicKey()

	for _, amount := range []string{"0.0000000001", "0", "-3", "18446744073.709551616"} {
		_, err := fx.service.Transfer(context.Background(), Request{Destination: dest, Amount: decimal.RequireFromString(amount)})
		var vErr *types.ValidationError
		require.ErrorAs(t, err, &vErr, amount)
	}

	fx.resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, fx.submitter.built)
	assert.Empty(t, fx.submitter.submitted)
}

func TestTransfer_ResolutionErrorStopsPipeline(t *testing.T) {
	fx := newFixture(t)
	dest := solana.NewWallet().PublicKey()
	fx.resolver.On("Resolve", mock.Anything, mock.Anything, dest, mock.Anything, mock.Anything).
		Return(token.Plan{}, types.ErrRecipientAccountMissing).Once()

	_, err := fx.service.Transfer(context.Background(), Request{Destination: dest, Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, types.ErrRecipientAccountMissing)
	_, hasSig := types.SignatureFrom(err)
	assert.False(t, hasSig)
	assert.Empty(t, fx.submitter.built)
}

func TestTransfer_SubmissionErrorCarriesSignature(t *testing.T) {
	fx := newFixture(t)
	dest := solana.NewWallet().PublicKey()
	fx.resolver.On("Resolve", mock.Anything, mock.Anything, dest, mock.Anything, mock.Anything).
		Return(fx.plan(dest, false), nil)
	fx.submitter.submitErr = errors.New("connection reset by peer")

	_, err := fx.service.Transfer(context.Background(), Request{Destination: dest, Amount: decimal.NewFromInt(2)})
	require.Error(t, err)

	sig, ok := types.SignatureFrom(err)
	require.True(t, ok)
	require.Len(t, fx.submitter.submitted, 1)
	assert.Equal(t, fx.submitter.submitted[0].Signatures[0], sig)
}

func TestTransfer_SubmissionSurvivesClientCancel(t *testing.T) {
	fx := newFixture(t)
	dest := solana.NewWallet().PublicKey()
	fx.resolver.On("Resolve", mock.Anything, mock.Anything, dest, mock.Anything, mock.Anything).
		Return(fx.plan(dest, false), nil)

	ctx, cancel := context.WithCancel(context.Background())
	fx.submitter.onBuild = cancel

	_, err := fx.service.Transfer(ctx, Request{Destination: dest, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.Len(t, fx.submitter.submitCtxs, 1)
	assert.NoError(t, fx.submitter.submitCtxs[0])
}

func TestTransfer_DeadlineBoundsDetachedSubmission(t *testing.T) {
	fx := newFixture(t)
	fx.service.WithTimeout(100 * time.Millisecond)
	dest := solana.NewWallet().PublicKey()
	fx.resolver.On("Resolve", mock.Anything, mock.Anything, dest, mock.Anything, mock.Anything).
		Return(fx.plan(dest, false), nil)
	fx.submitter.stall = true

	ctx, cancel := context.WithCancel(context.Background())
	fx.submitter.onBuild = cancel

	start := time.Now()
	_, err := fx.service.Transfer(ctx, Request{Destination: dest, Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, types.ErrConfirmationTimeout)

	sig, ok := types.SignatureFrom(err)
	require.True(t, ok)
	assert.False(t, sig.IsZero())
}

func TestTransfer_ConcurrentRequestsRunInParallel(t *testing.T) {
	const (
		n     = 16
		delay = 100 * time.Millisecond
	)
	fx := newFixture(t)
	fx.submitter.delay = delay
	fx.resolver.On("Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(fx.plan(solana.NewWallet().PublicKey(), false), nil)

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.service.Transfer(context.Background(), Request{
				Destination: solana.NewWallet().PublicKey(),
				Amount:      decimal.NewFromInt(1),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	elapsed := time.Since(start)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Less(t, elapsed, n*delay/4, "transfers were serialized")
	assert.Len(t, fx.submitter.submitted, n)
}

func TestNewService_SenderMustBelongToSigner(t *testing.T) {
	signer := wallet.NewLocalFromPrivateKey(solana.NewWallet().PrivateKey)
	sender := token.AccountRef{Owner: solana.NewWallet().PublicKey()}
	_, err := NewService(signer, sender, &mockResolver{}, &fakeSubmitter{}, zerolog.Nop())
	assert.ErrorIs(t, err, types.ErrTokenAccountMismatch)
}
