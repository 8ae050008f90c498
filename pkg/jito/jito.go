// Package jito submits signed transactions through the Jito Block Engine as
// single-transaction bundles.
//
// For more information, see: https://github.com/jito-labs/jito-go-rpc
package jito

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	jitorpc "github.com/jito-labs/jito-go-rpc"
)

// DefaultRequestTimeout bounds a single sendBundle HTTP request.
const DefaultRequestTimeout = 10 * time.Second

// MainnetBlockEngines contains all available Jito mainnet endpoints.
var MainnetBlockEngines = []string{
	"https://mainnet.block-engine.jito.wtf/api/v1",
	"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1",
	"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1",
	"https://ny.mainnet.block-engine.jito.wtf/api/v1",
	"https://tokyo.mainnet.block-engine.jito.wtf/api/v1",
}

// MainnetTipAccounts are the official Jito tip accounts. They rarely change,
// so tips are paid without an extra lookup.
var MainnetTipAccounts = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solana.MustPublicKeyFromBase58("HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe"),
	solana.MustPublicKeyFromBase58("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solana.MustPublicKeyFromBase58("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solana.MustPublicKeyFromBase58("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
	solana.MustPublicKeyFromBase58("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solana.MustPublicKeyFromBase58("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solana.MustPublicKeyFromBase58("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
}

// RandomTipAccount returns a random tip account from the pre-defined list.
func RandomTipAccount() solana.PublicKey {
	return MainnetTipAccounts[rand.Intn(len(MainnetTipAccounts))]
}

// bundleSender submits one sendBundle request to a single endpoint.
type bundleSender func(bundles [][]string) (json.RawMessage, error)

// Client wraps the Jito RPC client with multi-endpoint support and retry logic.
type Client struct {
	endpoints    []string
	uuid         string
	currentIndex uint32
	maxRetries   int
	retryDelay   time.Duration
	timeout      time.Duration

	dial func(endpoint, uuid string, timeout time.Duration) bundleSender
}

// NewClient creates a client that rotates over endpoints round-robin and
// fails over on rate limiting. uuid is optional.
func NewClient(endpoints []string, uuid string) *Client {
	if len(endpoints) == 0 {
		endpoints = MainnetBlockEngines
	}
	return &Client{
		endpoints:  endpoints,
		uuid:       uuid,
		maxRetries: len(endpoints) + 2,
		retryDelay: 100 * time.Millisecond,
		timeout:    DefaultRequestTimeout,
		dial: func(endpoint, uuid string, timeout time.Duration) bundleSender {
			client := jitorpc.NewJitoJsonRpcClient(endpoint, uuid)
			client.Client = &http.Client{Timeout: timeout}
			return func(bundles [][]string) (json.RawMessage, error) {
				return client.SendBundle(bundles)
			}
		},
	}
}

// WithTimeout bounds each HTTP request to the block engine.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	if timeout > 0 {
		c.timeout = timeout
	}
	return c
}

// WithRetries configures the number of retries and delay between retries.
func (c *Client) WithRetries(maxRetries int, retryDelay time.Duration) *Client {
	c.maxRetries = maxRetries
	c.retryDelay = retryDelay
	return c
}

// Endpoints returns the configured block engine URLs.
func (c *Client) Endpoints() []string {
	return c.endpoints
}

func (c *Client) next() bundleSender {
	idx := atomic.AddUint32(&c.currentIndex, 1)
	endpoint := c.endpoints[int(idx)%len(c.endpoints)]
	return c.dial(endpoint, c.uuid, c.timeout)
}

type sendResult struct {
	resp json.RawMessage
	err  error
}

// send runs one request and gives up when ctx is done. The request itself
// ends no later than the HTTP client timeout.
func (c *Client) send(ctx context.Context, bundles [][]string) (json.RawMessage, error) {
	done := make(chan sendResult, 1)
	sender := c.next()
	go func() {
		resp, err := sender(bundles)
		done <- sendResult{resp: resp, err: err}
	}()
	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "congested") ||
		strings.Contains(errStr, "429")
}

// SendEncoded sends base64-encoded, fully signed transactions as one atomic
// bundle and returns the bundle ID. The same encoded bytes are resent on
// every retry.
func (c *Client) SendEncoded(ctx context.Context, encoded ...string) (string, error) {
	if len(encoded) == 0 {
		return "", fmt.Errorf("bundle requires at least one transaction")
	}
	attempts := c.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rawResp, err := c.send(ctx, [][]string{encoded})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", fmt.Errorf("jito send bundle: %w", ctxErr)
			}
			lastErr = err
			if !isRateLimitError(err) {
				return "", fmt.Errorf("jito send bundle: %w", err)
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay):
			}
			continue
		}

		var bundleID string
		if err := json.Unmarshal(rawResp, &bundleID); err != nil {
			return "", fmt.Errorf("unmarshal bundle response: %w", err)
		}
		return bundleID, nil
	}
	return "", fmt.Errorf("jito send bundle failed after %d retries: %w", attempts, lastErr)
}
