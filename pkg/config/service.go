package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/ninja0404/solana-airdrop-api/pkg/wallet"
)

const redacted = "[REDACTED]"

// Secret is a string that never prints its value.
type Secret string

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Secret) UnmarshalText(b []byte) error {
	*s = Secret(b)
	return nil
}

// MarshalText implements encoding.TextMarshaler with the value redacted.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString keeps %#v from printing the value.
func (s Secret) GoString() string {
	return s.String()
}

// Reveal returns the raw value.
func (s Secret) Reveal() string {
	return string(s)
}

// ServiceConfig is the environment surface of the airdrop service.
type ServiceConfig struct {
	Solana   SolanaEnv `envPrefix:"SOLANA_"`
	Token    TokenEnv  `envPrefix:"TOKEN_"`
	RPC      RPCEnv    `envPrefix:"RPC_"`
	Jito     JitoEnv   `envPrefix:"JITO_"`
	Server   ServerEnv `envPrefix:"SERVER_"`
	LogLevel string    `env:"LOG_LEVEL" envDefault:"info"`
}

// SolanaEnv holds the signing key and cluster settings.
type SolanaEnv struct {
	PrivateKey          Secret        `env:"PRIVATE_KEY,required,notEmpty,unset"`
	RPCURL              string        `env:"RPC_URL"`
	Network             Network       `env:"NETWORK"`
	Commitment          string        `env:"COMMITMENT" envDefault:"confirmed"`
	SkipPreflight       bool          `env:"SKIP_PREFLIGHT" envDefault:"false"`
	ConfirmTimeout      time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"30s"`
	ConfirmPollInterval time.Duration `env:"CONFIRM_POLL_INTERVAL" envDefault:"500ms"`
	TransferTimeout     time.Duration `env:"TRANSFER_TIMEOUT" envDefault:"50s"`
}

// TokenEnv selects the mint and how token accounts are handled.
type TokenEnv struct {
	MintAddress            string `env:"MINT_ADDRESS,required,notEmpty"`
	SenderAccount          string `env:"SENDER_ACCOUNT"`
	CreateRecipientAccount bool   `env:"CREATE_RECIPIENT_ACCOUNT" envDefault:"true"`
}

// RPCEnv tunes the outbound RPC client.
type RPCEnv struct {
	Timeout             time.Duration `env:"TIMEOUT" envDefault:"10s"`
	RetryAttempts       int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryInitialBackoff time.Duration `env:"RETRY_INITIAL_BACKOFF" envDefault:"150ms"`
	RetryMaxBackoff     time.Duration `env:"RETRY_MAX_BACKOFF" envDefault:"2s"`
	RateLimitRPS        float64       `env:"RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst      int           `env:"RATE_LIMIT_BURST" envDefault:"0"`
}

// JitoEnv enables submission through the Jito block engine.
type JitoEnv struct {
	Endpoints   []string `env:"ENDPOINTS"`
	UUID        Secret   `env:"UUID"`
	TipLamports uint64   `env:"TIP_LAMPORTS" envDefault:"0"`
}

// ServerEnv configures the HTTP listener.
type ServerEnv struct {
	Address         string        `env:"ADDRESS" envDefault:":5000"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"60s"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"4096"`
}

// Load reads the service configuration from the environment and checks it.
// SOLANA_PRIVATE_KEY is removed from the process environment once read.
func Load() (ServiceConfig, error) {
	var cfg ServiceConfig
	if err := env.Parse(&cfg); err != nil {
		return ServiceConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return ServiceConfig{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c ServiceConfig) Validate() error {
	var problems []string

	switch solanarpc.CommitmentType(c.Solana.Commitment) {
	case solanarpc.CommitmentProcessed, solanarpc.CommitmentConfirmed, solanarpc.CommitmentFinalized:
	default:
		problems = append(problems, fmt.Sprintf("SOLANA_COMMITMENT %q must be processed, confirmed or finalized", c.Solana.Commitment))
	}

	if c.Solana.RPCURL == "" {
		switch c.Solana.Network {
		case NetworkMainnet, NetworkTestnet, NetworkDevnet:
		case "":
			problems = append(problems, "SOLANA_RPC_URL or SOLANA_NETWORK is required")
		default:
			problems = append(problems, fmt.Sprintf("SOLANA_NETWORK %q is not a known cluster", c.Solana.Network))
		}
	} else if u, err := url.Parse(c.Solana.RPCURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, "SOLANA_RPC_URL must be an http(s) URL")
	}

	if _, err := solana.PublicKeyFromBase58(c.Token.MintAddress); err != nil {
		problems = append(problems, "TOKEN_MINT_ADDRESS is not a valid address")
	}
	if c.Token.SenderAccount != "" {
		if _, err := solana.PublicKeyFromBase58(c.Token.SenderAccount); err != nil {
			problems = append(problems, "TOKEN_SENDER_ACCOUNT is not a valid address")
		}
	}

	if c.Solana.ConfirmTimeout < 0 {
		problems = append(problems, "SOLANA_CONFIRM_TIMEOUT must not be negative")
	}
	if c.Solana.ConfirmPollInterval <= 0 {
		problems = append(problems, "SOLANA_CONFIRM_POLL_INTERVAL must be positive")
	}
	problems = append(problems, c.timeoutProblems()...)
	if c.RPC.Timeout < 0 {
		problems = append(problems, "RPC_TIMEOUT must not be negative")
	}
	if c.RPC.RetryAttempts < 1 {
		problems = append(problems, "RPC_RETRY_ATTEMPTS must be at least 1")
	}
	if c.RPC.RateLimitRPS < 0 || c.RPC.RateLimitBurst < 0 {
		problems = append(problems, "RPC_RATE_LIMIT_* must not be negative")
	}
	if c.Server.Address == "" {
		problems = append(problems, "SERVER_ADDRESS is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		problems = append(problems, "SERVER_MAX_BODY_BYTES must be positive")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL %q is not a valid level", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// responseMargin is the write budget kept after a transfer deadline expires
// so the handler can still send the signature back.
const responseMargin = 5 * time.Second

// timeoutProblems checks that a transfer always ends, and is answered,
// before the server gives up on the connection or on shutdown.
func (c ServiceConfig) timeoutProblems() []string {
	var problems []string
	transfer := c.Solana.TransferTimeout
	if transfer <= 0 {
		return append(problems, "SOLANA_TRANSFER_TIMEOUT must be positive")
	}
	if c.Solana.ConfirmTimeout >= transfer {
		problems = append(problems, fmt.Sprintf("SOLANA_CONFIRM_TIMEOUT (%s) must be shorter than SOLANA_TRANSFER_TIMEOUT (%s)",
			c.Solana.ConfirmTimeout, transfer))
	}
	if c.Server.WriteTimeout < transfer+responseMargin {
		problems = append(problems, fmt.Sprintf("SERVER_WRITE_TIMEOUT (%s) must be at least SOLANA_TRANSFER_TIMEOUT + %s (%s)",
			c.Server.WriteTimeout, responseMargin, transfer+responseMargin))
	}
	if c.Server.ShutdownTimeout < transfer+responseMargin {
		problems = append(problems, fmt.Sprintf("SERVER_SHUTDOWN_TIMEOUT (%s) must be at least SOLANA_TRANSFER_TIMEOUT + %s (%s)",
			c.Server.ShutdownTimeout, responseMargin, transfer+responseMargin))
	}
	return problems
}

// Settings is the validated, typed form of ServiceConfig.
type Settings struct {
	Signer                 wallet.Local
	Mint                   solana.PublicKey
	SenderAccount          solana.PublicKey // zero when derived from the signer
	CreateRecipientAccount bool
	Commitment             solanarpc.CommitmentType
	SkipPreflight          bool
	ConfirmTimeout         time.Duration
	ConfirmPollInterval    time.Duration
	TransferTimeout        time.Duration
	Jito                   JitoEnv
	Server                 ServerEnv
}

// Resolve parses key material and addresses into Settings.
func (c ServiceConfig) Resolve() (Settings, error) {
	signer, err := wallet.ParseKeyMaterial(c.Solana.PrivateKey.Reveal())
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSigningKey, err)
	}
	mint, err := solana.PublicKeyFromBase58(c.Token.MintAddress)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: TOKEN_MINT_ADDRESS is not a valid address", ErrInvalidConfig)
	}
	var sender solana.PublicKey
	if c.Token.SenderAccount != "" {
		sender, err = solana.PublicKeyFromBase58(c.Token.SenderAccount)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: TOKEN_SENDER_ACCOUNT is not a valid address", ErrInvalidConfig)
		}
	}
	return Settings{
		Signer:                 signer,
		Mint:                   mint,
		SenderAccount:          sender,
		CreateRecipientAccount: c.Token.CreateRecipientAccount,
		Commitment:             solanarpc.CommitmentType(c.Solana.Commitment),
		SkipPreflight:          c.Solana.SkipPreflight,
		ConfirmTimeout:         c.Solana.ConfirmTimeout,
		ConfirmPollInterval:    c.Solana.ConfirmPollInterval,
		TransferTimeout:        c.Solana.TransferTimeout,
		Jito:                   c.Jito,
		Server:                 c.Server,
	}, nil
}

// RPCConfig maps the environment onto the RPC client configuration.
func (c ServiceConfig) RPCConfig(logger zerolog.Logger) RPCConfig {
	network := c.Solana.Network
	if c.Solana.RPCURL != "" && network == "" {
		network = NetworkCustom
	}
	return RPCConfig{
		Network:    network,
		RPCURL:     c.Solana.RPCURL,
		Commitment: c.Solana.Commitment,
		Timeout:    c.RPC.Timeout,
		Retry: RetryConfig{
			Enabled:        c.RPC.RetryAttempts > 1,
			MaxAttempts:    c.RPC.RetryAttempts,
			InitialBackoff: c.RPC.RetryInitialBackoff,
			MaxBackoff:     c.RPC.RetryMaxBackoff,
			Jitter:         true,
		},
		RateLimit: RateLimitConfig{
			RPS:   c.RPC.RateLimitRPS,
			Burst: c.RPC.RateLimitBurst,
		},
		Logger: logger,
	}
}
