package hosted

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fastprodman/tombola/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return New(config.ProviderConfig{
		BaseURL:        srv.URL + "/",
		APIKey:         "secret",
		RequestTimeout: 2 * time.Second,
		Source:         "zenia-tombola",
	})
}

func TestInitPayment_SendsContractAndParsesReply(t *testing.T) {
	t.Parallel()

	var got gjson.Result

	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/init-payment", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		got = gjson.ParseBytes(raw)

		_, _ = w.Write([]byte(`{"transaction_id":"fx-42","payment_url":"https://pay.example/fx-42"}`))
	})

	res, err := c.InitPayment(t.Context(), InitRequest{
		Quantity:      12,
		Amount:        decimal.NewFromInt(6000),
		CustomerEmail: "a@x.test",
		ReturnURL:     "https://tombola.example/tombola",
		Meta:          map[string]string{"page": "payment"},
	})
	require.NoError(t, err)
	assert.Equal(t, InitResponse{TransactionID: "fx-42", PaymentURL: "https://pay.example/fx-42"}, res)

	assert.Equal(t, int64(12), got.Get("qty").Int())
	assert.Equal(t, "6000", got.Get("amount").String())
	assert.Equal(t, "a@x.test", got.Get("customer_email").String())
	assert.False(t, got.Get("customer_name").Exists())
	assert.Equal(t, "zenia-tombola", got.Get("meta.source").String())
	assert.Equal(t, "payment", got.Get("meta.page").String())
}

func TestInitPayment_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{name: "missing_url", status: 200, body: `{"transaction_id":"x"}`, wantErr: ErrMalformedResponse},
		{name: "missing_id", status: 200, body: `{"payment_url":"u"}`, wantErr: ErrMalformedResponse},
		{name: "blank_id", status: 200, body: `{"transaction_id":"  ","payment_url":"u"}`, wantErr: ErrMalformedResponse},
		{name: "not_json", status: 200, body: `<html>`, wantErr: ErrMalformedResponse},
		{name: "server_error_message", status: 500, body: `{"message":"fedapay down"}`, wantErr: ErrUnexpectedStatus, wantMsg: "fedapay down"},
		{name: "bad_request_plain", status: 400, body: ``, wantErr: ErrUnexpectedStatus, wantMsg: "Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.InitPayment(t.Context(), InitRequest{Quantity: 1, Amount: decimal.NewFromInt(500)})
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestInitPayment_HonoursContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c := newClient(t, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := c.InitPayment(ctx, InitRequest{Quantity: 1})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPaymentStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr error
	}{
		{name: "accepted", status: 200, body: `{"status":"ACCEPTED"}`, want: "ACCEPTED"},
		{name: "lower_case_alias", status: 200, body: `{"status":"approved"}`, want: "APPROVED"},
		{name: "missing_status", status: 200, body: `{}`, want: ""},
		{name: "garbage", status: 200, body: `nope`, wantErr: ErrMalformedResponse},
		{name: "gateway_error", status: 502, body: ``, wantErr: ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/payment-status", r.URL.Path)
				assert.Equal(t, "tx/1 2", r.URL.Query().Get("transaction_id"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := c.PaymentStatus(t.Context(), "tx/1 2")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
