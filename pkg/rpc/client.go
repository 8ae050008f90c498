package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ninja0404/solana-airdrop-api/pkg/config"
	"github.com/ninja0404/solana-airdrop-api/pkg/types"
)

// nodeUnhealthyCode is returned by nodes that are behind; the same request
// may succeed on a later attempt.
const nodeUnhealthyCode = -32005

// Client wraps solana-go rpc.Client with retry, timeout, and rate limiting.
// It is safe for concurrent use.
type Client struct {
	raw     *solanarpc.Client
	cfg     config.RPCConfig
	limiter *rate.Limiter
	log     zerolog.Logger
}

// Account is the subset of on-chain account state the transfer pipeline reads.
type Account struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// NewClient builds a configured Client.
func NewClient(cfg config.RPCConfig) *Client {
	endpoint := cfg.ResolveRPCURL()
	rpcClient := solanarpc.New(endpoint)

	var limiter *rate.Limiter
	if cfg.RateLimit.RPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst == 0 {
			burst = int(cfg.RateLimit.RPS * 2)
		}
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)
	}

	log := cfg.Logger
	if log.GetLevel() == zerolog.NoLevel {
		log = zerolog.Nop()
	}

	return &Client{
		raw:     rpcClient,
		cfg:     cfg,
		limiter: limiter,
		log:     log,
	}
}

// Commitment is the commitment used for reads.
func (c *Client) Commitment() solanarpc.CommitmentType {
	if c.cfg.Commitment == "" {
		return solanarpc.CommitmentConfirmed
	}
	return solanarpc.CommitmentType(c.cfg.Commitment)
}

// GetLatestBlockhash fetches the latest blockhash at the configured commitment.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var out *solanarpc.GetLatestBlockhashResult
	err := c.call(ctx, "getLatestBlockhash", func(ctx context.Context) error {
		var err error
		out, err = c.raw.GetLatestBlockhash(ctx, c.Commitment())
		return err
	})
	if err != nil {
		return solana.Hash{}, err
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash: empty result")
	}
	return out.Value.Blockhash, nil
}

// SendEncodedTransaction submits an already signed, base64-encoded
// transaction. Retries resend exactly the same bytes.
func (c *Client) SendEncodedTransaction(ctx context.Context, encoded string, opts solanarpc.TransactionOpts) (solana.Signature, error) {
	var sig solana.Signature
	err := c.call(ctx, "sendTransaction", func(ctx context.Context) error {
		var err error
		sig, err = c.raw.SendEncodedTransactionWithOpts(ctx, encoded, opts)
		return err
	})
	return sig, err
}

// GetSignatureStatus returns the status of sig, or nil when the node has not
// seen it yet.
func (c *Client) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solanarpc.SignatureStatusesResult, error) {
	var res *solanarpc.GetSignatureStatusesResult
	err := c.call(ctx, "getSignatureStatuses", func(ctx context.Context) error {
		var err error
		res, err = c.raw.GetSignatureStatuses(ctx, true, sig)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Value) == 0 {
		return nil, nil
	}
	return res.Value[0], nil
}

// GetAccounts pulls multiple accounts in one RPC call. The result is aligned
// with addrs; missing accounts are nil.
func (c *Client) GetAccounts(ctx context.Context, addrs ...solana.PublicKey) ([]*Account, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	var res *solanarpc.GetMultipleAccountsResult
	err := c.call(ctx, "getMultipleAccounts", func(ctx context.Context) error {
		var err error
		res, err = c.raw.GetMultipleAccountsWithOpts(ctx, addrs, &solanarpc.GetMultipleAccountsOpts{
			Commitment: c.Commitment(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Value) != len(addrs) {
		return nil, fmt.Errorf("getMultipleAccounts: unexpected result length")
	}
	out := make([]*Account, len(addrs))
	for i, v := range res.Value {
		if v == nil {
			continue
		}
		acc := &Account{Address: addrs[i], Owner: v.Owner, Lamports: v.Lamports}
		if v.Data != nil {
			acc.Data = v.Data.GetBinary()
		}
		out[i] = acc
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := 1
	if c.cfg.Retry.Enabled && c.cfg.Retry.MaxAttempts > 1 {
		attempts = c.cfg.Retry.MaxAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		if c.limiter != nil {
			if werr := c.limiter.Wait(ctx); werr != nil {
				return werr
			}
		}

		err = c.attempt(ctx, fn)
		if err == nil {
			return nil
		}

		if !retryable(ctx, err) || i == attempts-1 {
			break
		}
		backoff := c.backoff(i)
		c.log.Debug().
			Str("op", op).
			Int("attempt", i+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("rpc retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	if attempts > 1 {
		err = fmt.Errorf("failed after %d attempts: %w", attempts, err)
	}
	return types.RPCError{Op: op, Err: err}
}

func (c *Client) attempt(ctx context.Context, fn func(context.Context) error) error {
	if c.cfg.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	return fn(attemptCtx)
}

func (c *Client) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := c.cfg.Retry.InitialBackoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > c.cfg.Retry.MaxBackoff && c.cfg.Retry.MaxBackoff > 0 {
			delay = c.cfg.Retry.MaxBackoff
			break
		}
	}
	if c.cfg.Retry.Jitter && delay > 1 {
		jitter := rand.Int63n(int64(delay / 2))
		delay = delay/2 + time.Duration(jitter)
	}
	return delay
}

// retryable accepts transport failures and unhealthy-node responses. Any
// other JSON-RPC error is a deliberate rejection by the node and resending
// the same request would fail the same way.
func retryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	if rpcErr, ok := IsNodeRejection(err); ok {
		return rpcErr.Code == nodeUnhealthyCode
	}
	return true
}

// IsNodeRejection reports whether err is a JSON-RPC error returned by the node
// (as opposed to a transport failure).
func IsNodeRejection(err error) (*jsonrpc.RPCError, bool) {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}
