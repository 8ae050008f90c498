package token

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/ninja0404/solana-airdrop-api/pkg/constants"
	sdkrpc "github.com/ninja0404/solana-airdrop-api/pkg/rpc"
	"github.com/ninja0404/solana-airdrop-api/pkg/types"
)

// token.AccountState value for a frozen account.
const frozenState = 2

// AccountRef identifies the token account holding mint for owner.
type AccountRef struct {
	Owner     solana.PublicKey
	Mint      solana.PublicKey
	Address   solana.PublicKey
	ProgramID solana.PublicKey
}

// AccountState is an AccountRef plus what the chain currently says about it.
type AccountState struct {
	AccountRef
	Exists  bool
	Balance uint64
	Frozen  bool
}

// Plan is everything the builder needs for one transfer.
type Plan struct {
	Sender    AccountState
	Recipient AccountState
	// Setup holds instructions that must run before the transfer, such as
	// creating the recipient account.
	Setup []solana.Instruction
}

// RecipientCreated reports whether the plan creates the recipient account.
func (p Plan) RecipientCreated() bool {
	return len(p.Setup) > 0
}

// Resolver maps wallets to token accounts of a single mint.
type Resolver struct {
	reader        AccountReader
	mint          MintInfo
	createMissing bool
}

// NewResolver returns a Resolver for mint. When createMissing is set, Resolve
// plans creation of absent recipient accounts instead of failing.
func NewResolver(reader AccountReader, mint MintInfo, createMissing bool) *Resolver {
	return &Resolver{reader: reader, mint: mint, createMissing: createMissing}
}

// Mint returns the mint the resolver serves.
func (r *Resolver) Mint() MintInfo {
	return r.mint
}

// Derive computes the associated token account of owner.
func (r *Resolver) Derive(owner solana.PublicKey) (AccountRef, error) {
	programID := r.mint.ProgramID
	if programID.IsZero() {
		programID = constants.TokenProgramID
	}
	addr, _, err := solana.FindProgramAddress(
		[][]byte{owner[:], programID[:], r.mint.Address[:]},
		constants.AssociatedTokenProgramID,
	)
	if err != nil {
		return AccountRef{}, fmt.Errorf("derive token account for %s: %w", owner, err)
	}
	return AccountRef{Owner: owner, Mint: r.mint.Address, Address: addr, ProgramID: programID}, nil
}

// SenderAccount returns the account the service debits. A pinned address
// must exist and belong to owner and the mint; otherwise the associated
// account is derived and checked for existence.
func (r *Resolver) SenderAccount(ctx context.Context, owner, pinned solana.PublicKey) (AccountState, error) {
	ref, err := r.Derive(owner)
	if err != nil {
		return AccountState{}, err
	}
	if !pinned.IsZero() {
		ref.Address = pinned
	}
	states, err := r.fetch(ctx, ref)
	if err != nil {
		return AccountState{}, err
	}
	st := states[0]
	if !st.Exists {
		return st, fmt.Errorf("%w: %s", types.ErrSenderAccountMissing, ref.Address)
	}
	return st, nil
}

// Lookup reports the token account state of owner.
func (r *Resolver) Lookup(ctx context.Context, owner solana.PublicKey) (AccountState, error) {
	ref, err := r.Derive(owner)
	if err != nil {
		return AccountState{}, err
	}
	states, err := r.fetch(ctx, ref)
	if err != nil {
		return AccountState{}, err
	}
	return states[0], nil
}

// Resolve checks the sender can cover amount and locates (or plans to create)
// the recipient account. Both token accounts and the destination wallet are
// read in a single RPC call.
func (r *Resolver) Resolve(ctx context.Context, sender AccountRef, recipientOwner, payer solana.PublicKey, amount uint64) (Plan, error) {
	recipient, err := r.Derive(recipientOwner)
	if err != nil {
		return Plan{}, err
	}
	if recipient.Address.Equals(sender.Address) {
		return Plan{}, types.NewValidationError("destination_wallet", "destination must differ from sender")
	}

	accounts, err := r.read(ctx, sender.Address, recipient.Address, recipientOwner)
	if err != nil {
		return Plan{}, err
	}
	if dest := accounts[2]; dest != nil && constants.IsTokenProgram(dest.Owner) {
		return Plan{}, types.NewValidationError("destination_wallet", "destination is a token account or mint, not a wallet")
	}
	states, err := decodeStates([]AccountRef{sender, recipient}, accounts[:2])
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{Sender: states[0], Recipient: states[1]}

	switch {
	case !plan.Sender.Exists:
		return Plan{}, fmt.Errorf("%w: %s", types.ErrSenderAccountMissing, sender.Address)
	case plan.Sender.Frozen:
		return Plan{}, fmt.Errorf("%w: %s", types.ErrSenderAccountFrozen, sender.Address)
	case plan.Sender.Balance < amount:
		return Plan{}, fmt.Errorf("%w: balance %d, requested %d", types.ErrInsufficientFunds, plan.Sender.Balance, amount)
	}

	if !plan.Recipient.Exists {
		if !r.createMissing {
			return Plan{}, fmt.Errorf("%w: %s", types.ErrRecipientAccountMissing, recipient.Address)
		}
		plan.Setup = append(plan.Setup, CreateAccountInstruction(payer, recipient))
	} else if plan.Recipient.Frozen {
		return Plan{}, fmt.Errorf("%w: %s", types.ErrRecipientAccountFrozen, recipient.Address)
	}
	return plan, nil
}

func (r *Resolver) fetch(ctx context.Context, refs ...AccountRef) ([]AccountState, error) {
	addrs := make([]solana.PublicKey, len(refs))
	for i, ref := range refs {
		addrs[i] = ref.Address
	}
	accounts, err := r.read(ctx, addrs...)
	if err != nil {
		return nil, err
	}
	return decodeStates(refs, accounts)
}

// read fetches addrs in one getMultipleAccounts call; missing accounts are nil.
func (r *Resolver) read(ctx context.Context, addrs ...solana.PublicKey) ([]*sdkrpc.Account, error) {
	if r.reader == nil {
		return nil, types.ErrNilRPC
	}
	accounts, err := r.reader.GetAccounts(ctx, addrs...)
	if err != nil {
		return nil, fmt.Errorf("fetch token accounts: %w: %w", types.ErrRPCUnavailable, err)
	}
	if len(accounts) != len(addrs) {
		return nil, fmt.Errorf("fetch token accounts: %w: got %d accounts for %d addresses",
			types.ErrRPCUnavailable, len(accounts), len(addrs))
	}
	return accounts, nil
}

func decodeStates(refs []AccountRef, accounts []*sdkrpc.Account) ([]AccountState, error) {
	out := make([]AccountState, len(refs))
	for i, ref := range refs {
		out[i].AccountRef = ref
		acc := accounts[i]
		if acc == nil {
			continue
		}
		if !acc.Owner.Equals(ref.ProgramID) {
			return nil, fmt.Errorf("%w: %s is owned by %s", types.ErrTokenAccountMismatch, ref.Address, acc.Owner)
		}
		decoded, err := decodeTokenAccount(acc.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ref.Address, err)
		}
		if !decoded.Mint.Equals(ref.Mint) || !decoded.Owner.Equals(ref.Owner) {
			return nil, fmt.Errorf("%w: %s holds mint %s for %s",
				types.ErrTokenAccountMismatch, ref.Address, decoded.Mint, decoded.Owner)
		}
		out[i].Exists = true
		out[i].Balance = decoded.Amount
		out[i].Frozen = uint8(decoded.State) == frozenState
	}
	return out, nil
}
