package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Transfer pipeline errors. Their messages are safe to show to API callers.
var (
	// Parameter validation errors
	ErrNilRPC         = errors.New("rpc client is nil")
	ErrNilSigner      = errors.New("signer is nil")
	ErrNoInstructions = errors.New("requires at least one instruction")

	// Account errors
	ErrMintNotFound            = errors.New("mint account not found")
	ErrNotAMint                = errors.New("account is not a token mint")
	ErrSenderAccountMissing    = errors.New("sender token account not found")
	ErrSenderAccountFrozen     = errors.New("sender token account is frozen")
	ErrTokenAccountMismatch    = errors.New("token account does not belong to owner and mint")
	ErrRecipientAccountMissing = errors.New("recipient token account does not exist")
	ErrRecipientAccountFrozen  = errors.New("recipient token account is frozen")
	ErrRPCUnavailable          = errors.New("rpc node unavailable")

	// Transaction errors
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSubmissionFailed    = errors.New("transaction submission failed")
	ErrTransactionFailed   = errors.New("transaction failed on chain")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// RPCError wraps RPC failures with the name of the failed operation.
type RPCError struct {
	Op  string
	Err error
}

func (e RPCError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e RPCError) Unwrap() error {
	return e.Err
}

// ValidationError represents input validation failures. Message is the
// caller-facing text.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// TxError is returned for every failure after the transaction was signed, so
// the caller always learns the signature it can poll for.
type TxError struct {
	Signature solana.Signature
	Err       error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.Signature, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// NewTxError attaches a signature to err.
func NewTxError(sig solana.Signature, err error) *TxError {
	return &TxError{Signature: sig, Err: err}
}

// SignatureFrom extracts the signature carried by err, if any.
func SignatureFrom(err error) (solana.Signature, bool) {
	var txErr *TxError
	if errors.As(err, &txErr) && !txErr.Signature.IsZero() {
		return txErr.Signature, true
	}
	return solana.Signature{}, false
}

// insufficientMarkers are substrings the runtime and token programs use when
// a transfer or its fee cannot be covered.
var insufficientMarkers = []string{
	"insufficient funds",
	"insufficient lamports",
	"insufficientfundsforfee",
	"insufficientfundsforrent",
}

const tokenInsufficientFundsCode = "custom program error: 0x1"

// IsInsufficientFunds reports whether an RPC error text or on-chain status
// describes a balance problem.
func IsInsufficientFunds(detail string) bool {
	s := strings.ToLower(detail)
	for _, m := range insufficientMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	for rest := s; ; {
		idx := strings.Index(rest, tokenInsufficientFundsCode)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(tokenInsufficientFundsCode):]
		if rest == "" || !strings.ContainsRune("0123456789abcdef", rune(rest[0])) {
			return true
		}
	}
}

// IsInsufficientFundsStatus inspects the decoded transaction error of a
// signature status. The token program reports InsufficientFunds as custom
// error 1.
func IsInsufficientFundsStatus(statusErr interface{}) bool {
	if statusErr == nil {
		return false
	}
	if s, ok := statusErr.(string); ok {
		return IsInsufficientFunds(s)
	}
	errMap, ok := statusErr.(map[string]interface{})
	if !ok {
		return IsInsufficientFunds(fmt.Sprint(statusErr))
	}
	for key := range errMap {
		if IsInsufficientFunds(key) {
			return true
		}
	}
	instErr, ok := errMap["InstructionError"].([]interface{})
	if !ok || len(instErr) < 2 {
		return false
	}
	if custom, ok := instErr[1].(map[string]interface{}); ok {
		if code, ok := custom["Custom"].(float64); ok && code == 1 {
			return true
		}
	}
	if s, ok := instErr[1].(string); ok {
		return IsInsufficientFunds(s)
	}
	return false
}
