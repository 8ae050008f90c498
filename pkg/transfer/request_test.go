package transfer

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/solana-airdrop-api/pkg/types"
)

func TestParseRequest(t *testing.T) {
	dest := solana.NewWallet().PublicKey()

	req, err := ParseRequest(strings.NewReader(`{"destination_wallet":"` + dest.String() + `","amount":1.23}`))
	require.NoError(t, err)
	assert.Equal(t, dest, req.Destination)
	assert.Equal(t, "1.23", req.Amount.String())

	req, err = ParseRequest(strings.NewReader(`{"amount": 2.5e3, "destination_wallet":"` + dest.String() + `", "memo": "ignored"}`))
	require.NoError(t, err)
	assert.Equal(t, "2500", req.Amount.String())
}

func TestParseRequest_Rejects(t *testing.T) {
	valid := solana.NewWallet().PublicKey().String()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty body", body: ``, want: "request body must be a JSON object"},
		{name: "array", body: `[1,2]`, want: "request body must be a JSON object"},
		{name: "null", body: `null`, want: "request body must be a JSON object"},
		{name: "invalid json", body: `{"amount":`, want: "request body must be a JSON object"},
		{name: "trailing data", body: `{"destination_wallet":"` + valid + `","amount":1}{}`, want: "request body must be a JSON object"},
		{name: "missing destination", body: `{"amount":1}`, want: "missing field: destination_wallet"},
		{name: "missing both", body: `{}`, want: "missing field: destination_wallet"},
		{name: "null destination", body: `{"destination_wallet":null,"amount":1}`, want: "missing field: destination_wallet"},
		{name: "missing amount", body: `{"destination_wallet":"` + valid + `"}`, want: "missing field: amount"},
		{name: "null amount", body: `{"destination_wallet":"` + valid + `","amount":null}`, want: "missing field: amount"},
		{name: "string amount", body: `{"destination_wallet":"` + valid + `","amount":"5"}`, want: "amount must be a number"},
		{name: "bool amount", body: `{"destination_wallet":"` + valid + `","amount":true}`, want: "amount must be a number"},
		{name: "object amount", body: `{"destination_wallet":"` + valid + `","amount":{"v":1}}`, want: "amount must be a number"},
		{name: "zero amount", body: `{"destination_wallet":"` + valid + `","amount":0}`, want: "amount must be positive"},
		{name: "negative amount", body: `{"destination_wallet":"` + valid + `","amount":-4.2}`, want: "amount must be positive"},
		{name: "not base58", body: `{"destination_wallet":"0OIl","amount":1}`, want: "malformed address"},
		{name: "short address", body: `{"destination_wallet":"abc","amount":1}`, want: "malformed address"},
		{name: "numeric address", body: `{"destination_wallet":12345,"amount":1}`, want: "malformed address"},
		{name: "zero address", body: `{"destination_wallet":"11111111111111111111111111111111","amount":1}`, want: "malformed address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(strings.NewReader(tt.body))
			var vErr *types.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.want, vErr.Error())
		})
	}
}

func TestParseRequest_NilBody(t *testing.T) {
	_, err := ParseRequest(nil)
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
}
