// Package httpapi exposes the transfer pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ninja0404/solana-airdrop-api/pkg/transfer"
)

// Transferer runs one transfer; *transfer.Service satisfies it.
type Transferer interface {
	Transfer(ctx context.Context, req transfer.Request) (transfer.Result, error)
}

// Handler serves the airdrop API.
type Handler struct {
	transferer   Transferer
	logger       zerolog.Logger
	maxBodyBytes int64
}

// NewHandler builds a Handler. maxBodyBytes bounds request bodies.
func NewHandler(transferer Transferer, logger zerolog.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 4096
	}
	return &Handler{
		transferer:   transferer,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) (int, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return 0, fmt.Errorf("error writing data to JSON: %w", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	return w.Write(jsonData)
}
