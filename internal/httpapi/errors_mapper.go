package httpapi

import (
	"errors"
	"net/http"

	"github.com/ninja0404/solana-airdrop-api/internal/metrics"
	"github.com/ninja0404/solana-airdrop-api/pkg/types"
)

const internalErrorMessage = "internal error"

// errorStatusMap is checked in order; the first sentinel in the chain wins.
var errorStatusMap = []struct {
	err    error
	status int
}{
	{types.ErrRecipientAccountMissing, http.StatusUnprocessableEntity},
	{types.ErrRecipientAccountFrozen, http.StatusUnprocessableEntity},
	{types.ErrInsufficientFunds, http.StatusPaymentRequired},
	{types.ErrConfirmationTimeout, http.StatusGatewayTimeout},
	{types.ErrTransactionFailed, http.StatusBadGateway},
	{types.ErrSubmissionFailed, http.StatusBadGateway},
	{types.ErrRPCUnavailable, http.StatusBadGateway},
	{types.ErrSenderAccountMissing, http.StatusInternalServerError},
	{types.ErrSenderAccountFrozen, http.StatusInternalServerError},
}

// statusFromError maps err to an HTTP status and a message safe to return
// to the client. Wrapped detail (RPC text, addresses) never leaves the server.
func statusFromError(err error) (int, string) {
	var vErr *types.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, vErr.Message
	}
	for _, m := range errorStatusMap {
		if errors.Is(err, m.err) {
			return m.status, m.err.Error()
		}
	}
	return http.StatusInternalServerError, internalErrorMessage
}

func outcomeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusPaymentRequired:
		return metrics.OutcomeRejected
	case http.StatusGatewayTimeout:
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeFailed
	}
}
