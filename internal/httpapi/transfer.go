package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ninja0404/solana-airdrop-api/internal/metrics"
	"github.com/ninja0404/solana-airdrop-api/pkg/transfer"
	"github.com/ninja0404/solana-airdrop-api/pkg/txbuilder"
	"github.com/ninja0404/solana-airdrop-api/pkg/types"
)

type transferResponse struct {
	Result                  string `json:"result"`
	TransactionID           string `json:"transaction_id"`
	AmountRaw               string `json:"amount_raw"`
	RecipientTokenAccount   string `json:"recipient_token_account"`
	RecipientAccountCreated bool   `json:"recipient_account_created"`
}

type errorResponse struct {
	Error         string `json:"error"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		msg := "request body must be a JSON object"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large"
		}
		h.writeError(w, r, types.NewValidationError("body", msg))
		return
	}

	req, err := transfer.ParseRequest(bytes.NewReader(body))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.transferer.Transfer(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	outcome := metrics.OutcomeSucceeded
	if res.Status == txbuilder.StatusSubmitted {
		outcome = metrics.OutcomeSubmitted
	}
	metrics.TransfersTotal.WithLabelValues(outcome).Inc()
	metrics.TransferAmountRaw.Add(float64(res.AmountRaw))
	if res.RecipientCreated {
		metrics.RecipientAccountsCreated.Inc()
	}

	_, _ = writeJSON(w, transferResponse{
		Result:                  string(res.Status),
		TransactionID:           res.Signature.String(),
		AmountRaw:               strconv.FormatUint(res.AmountRaw, 10),
		RecipientTokenAccount:   res.RecipientAccount.String(),
		RecipientAccountCreated: res.RecipientCreated,
	}, http.StatusOK)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFromError(err)
	resp := errorResponse{Error: msg}
	if sig, ok := types.SignatureFrom(err); ok {
		resp.TransactionID = sig.String()
	}
	metrics.TransfersTotal.WithLabelValues(outcomeFromStatus(status)).Inc()

	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("transfer request failed")
	}
	_, _ = writeJSON(w, resp, status)
}
