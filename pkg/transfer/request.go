package transfer

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/solana-airdrop-api/pkg/types"
)

const (
	fieldDestination = "destination_wallet"
	fieldAmount      = "amount"
)

// Request is a validated transfer request. Amount is in UI units.
type Request struct {
	Destination solana.PublicKey
	Amount      decimal.Decimal
}

// ParseRequest decodes and validates a request body. Every failure is a
// *types.ValidationError whose message is safe to return to the client.
func ParseRequest(body io.Reader) (Request, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return Request{}, err
	}

	rawDest, ok := present(fields, fieldDestination)
	if !ok {
		return Request{}, types.NewValidationError(fieldDestination, "missing field: "+fieldDestination)
	}
	rawAmount, ok := present(fields, fieldAmount)
	if !ok {
		return Request{}, types.NewValidationError(fieldAmount, "missing field: "+fieldAmount)
	}

	amount, err := parseAmount(rawAmount)
	if err != nil {
		return Request{}, err
	}

	var dest string
	if err := json.Unmarshal(rawDest, &dest); err != nil {
		return Request{}, types.NewValidationError(fieldDestination, "malformed address")
	}
	destination, err := types.ParseAddress(fieldDestination, dest)
	if err != nil {
		return Request{}, err
	}

	return Request{Destination: destination, Amount: amount}, nil
}

func decodeObject(body io.Reader) (map[string]json.RawMessage, error) {
	notObject := types.NewValidationError("body", "request body must be a JSON object")
	if body == nil {
		return nil, notObject
	}
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, notObject
	}
	if dec.More() {
		return nil, notObject
	}
	return fields, nil
}

func present(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	notNumber := types.NewValidationError(fieldAmount, "amount must be a number")

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return decimal.Decimal{}, notNumber
	}
	num, ok := v.(json.Number)
	if !ok {
		return decimal.Decimal{}, notNumber
	}
	amount, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Decimal{}, notNumber
	}
	if amount.Sign() <= 0 {
		return decimal.Decimal{}, types.NewValidationError(fieldAmount, "amount must be positive")
	}
	return amount, nil
}
