// Package hosted talks to the hosted payment backend: it opens payment
// sessions and reads their status. It knows nothing about tickets.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fastprodman/tombola/internal/config"
	"github.com/fastprodman/tombola/internal/infra/metrics"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected provider http status")
	ErrMalformedResponse = errors.New("malformed provider response")
)

const maxBody = 1 << 20

// InitRequest opens a hosted payment session.
type InitRequest struct {
	Quantity      int
	Amount        decimal.Decimal
	CustomerEmail string
	CustomerName  string
	ReturnURL     string
	Meta          map[string]string
}

type InitResponse struct {
	TransactionID string
	PaymentURL    string
}

type Client struct {
	baseURL string
	apiKey  string
	source  string
	http    *http.Client
}

func New(cfg config.ProviderConfig) *Client {
	return NewWithHTTPClient(cfg, &http.Client{Timeout: cfg.RequestTimeout})
}

func NewWithHTTPClient(cfg config.ProviderConfig, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		source:  cfg.Source,
		http:    hc,
	}
}

type initBody struct {
	Qty           int               `json:"qty"`
	Amount        decimal.Decimal   `json:"amount"`
	CustomerEmail string            `json:"customer_email"`
	CustomerName  string            `json:"customer_name,omitempty"`
	ReturnURL     string            `json:"return_url"`
	Meta          map[string]string `json:"meta,omitempty"`
}

// InitPayment posts to /api/init-payment. Both transaction_id and
// payment_url must come back non-empty.
func (c *Client) InitPayment(ctx context.Context, req InitRequest) (InitResponse, error) {
	meta := map[string]string{}
	if c.source != "" {
		meta["source"] = c.source
	}
	for k, v := range req.Meta {
		meta[k] = v
	}

	payload, err := json.Marshal(initBody{
		Qty:           req.Quantity,
		Amount:        req.Amount,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		ReturnURL:     req.ReturnURL,
		Meta:          meta,
	})
	if err != nil {
		return InitResponse{}, fmt.Errorf("encode init body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/init-payment", bytes.NewReader(payload))
	if err != nil {
		return InitResponse{}, fmt.Errorf("build init request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	body, err := c.do(httpReq)
	if err != nil {
		return InitResponse{}, fmt.Errorf("init payment: %w", err)
	}

	res := gjson.ParseBytes(body)
	out := InitResponse{
		TransactionID: strings.TrimSpace(res.Get("transaction_id").String()),
		PaymentURL:    strings.TrimSpace(res.Get("payment_url").String()),
	}

	if out.TransactionID == "" || out.PaymentURL == "" {
		return InitResponse{}, fmt.Errorf("init payment: %w: transaction_id or payment_url missing", ErrMalformedResponse)
	}

	return out, nil
}

// PaymentStatus returns the provider's raw status, upper-cased. An absent
// status field comes back as "".
func (c *Client) PaymentStatus(ctx context.Context, transactionID string) (string, error) {
	u := c.baseURL + "/api/payment-status?transaction_id=" + url.QueryEscape(transactionID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build status request: %w", err)
	}

	body, err := c.do(httpReq)
	if err != nil {
		return "", fmt.Errorf("payment status: %w", err)
	}

	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("payment status: %w: body is not json", ErrMalformedResponse)
	}

	return strings.ToUpper(strings.TrimSpace(gjson.GetBytes(body, "status").String())), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveProvider(req.URL.Path, "error", start)
		return nil, err
	}
	//nolint:errcheck
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		metrics.ObserveProvider(req.URL.Path, "error", start)
		return nil, fmt.Errorf("read body: %w", err)
	}

	metrics.ObserveProvider(req.URL.Path, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}

		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, msg)
	}

	return body, nil
}
