package wayforpay

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mindcare_billing/internal/pkg/config"
	"mindcare_billing/pkg/metrics"
)

// Default bound on any gateway round trip. A timeout is a transient
// failure, never a definitive payment status.
const requestTimeout = 15 * time.Second

// Client talks to the WayForPay merchant API.
type Client struct {
	cfg        config.WayForPayConfig
	httpClient *http.Client
}

// NewClient builds a client from the gateway configuration. The client
// is usable with empty credentials; Ready reports whether invoice
// issuance can actually proceed.
func NewClient(cfg config.WayForPayConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Ready reports whether merchant credentials are configured.
func (c *Client) Ready() bool {
	return c.cfg.MerchantAccount != "" && c.cfg.SecretKey != ""
}

// SecretKey exposes the HMAC secret for callback verification and
// acknowledgement signing.
func (c *Client) SecretKey() string {
	return c.cfg.SecretKey
}

// InvoiceRequest is the CREATE_INVOICE wire body. Field names must
// match the gateway contract exactly.
type InvoiceRequest struct {
	TransactionType    string    `json:"transactionType"`
	MerchantAccount    string    `json:"merchantAccount"`
	MerchantDomainName string    `json:"merchantDomainName"`
	MerchantSignature  string    `json:"merchantSignature"`
	APIVersion         int       `json:"apiVersion"`
	OrderReference     string    `json:"orderReference"`
	OrderDate          int64     `json:"orderDate"`
	Amount             float64   `json:"amount"`
	Currency           string    `json:"currency"`
	ProductName        []string  `json:"productName"`
	ProductCount       []int     `json:"productCount"`
	ProductPrice       []float64 `json:"productPrice"`
	ReturnURL          string    `json:"returnUrl"`
	ServiceURL         string    `json:"serviceUrl"`
	Language           string    `json:"language"`
}

// InvoiceResponse carries the hosted checkout URL on success.
type InvoiceResponse struct {
	URL        string      `json:"url"`
	Reason     string      `json:"reason"`
	ReasonCode json.Number `json:"reasonCode"`
}

// StatusResponse is the CHECK_STATUS reply; only the fields the sync
// poller needs.
type StatusResponse struct {
	OrderReference    string      `json:"orderReference"`
	TransactionStatus string      `json:"transactionStatus"`
	Amount            float64     `json:"amount"`
	Currency          string      `json:"currency"`
	RecToken          string      `json:"recToken"`
	Reason            string      `json:"reason"`
	ReasonCode        json.Number `json:"reasonCode"`
}

// SuspendResponse is the SUSPEND reply. ReasonCode 4100 means the
// recurring payment was suspended.
type SuspendResponse struct {
	ReasonCode json.Number `json:"reasonCode"`
	Reason     string      `json:"reason"`
}

// SuspendOKCode is the gateway's success code for SUSPEND.
const SuspendOKCode = 4100

// CreateInvoice requests a hosted checkout URL for the given order.
func (c *Client) CreateInvoice(ctx context.Context, orderReference string, orderDate int64, amount float64, currency, productName, returnURL, serviceURL string) (*InvoiceResponse, error) {
	names := []string{productName}
	counts := []int{1}
	prices := []float64{amount}

	req := InvoiceRequest{
		TransactionType:    "CREATE_INVOICE",
		MerchantAccount:    c.cfg.MerchantAccount,
		MerchantDomainName: c.cfg.MerchantDomain,
		APIVersion:         1,
		OrderReference:     orderReference,
		OrderDate:          orderDate,
		Amount:             amount,
		Currency:           currency,
		ProductName:        names,
		ProductCount:       counts,
		ProductPrice:       prices,
		ReturnURL:          returnURL,
		ServiceURL:         serviceURL,
		Language:           c.cfg.Language,
	}
	req.MerchantSignature = InvoiceSignature(
		c.cfg.SecretKey,
		c.cfg.MerchantAccount,
		c.cfg.MerchantDomain,
		orderReference,
		orderDate,
		amount,
		currency,
		names, counts, prices,
	)

	var resp InvoiceResponse
	if err := c.post(ctx, "CREATE_INVOICE", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckStatus asks the gateway for the current transaction status of
// an order. Used by the sync poller for active reconciliation when the
// callback has not landed yet.
func (c *Client) CheckStatus(ctx context.Context, orderReference string) (*StatusResponse, error) {
	req := map[string]interface{}{
		"transactionType":   "CHECK_STATUS",
		"merchantAccount":   c.cfg.MerchantAccount,
		"orderReference":    orderReference,
		"apiVersion":        1,
		"merchantSignature": Sign(c.cfg.SecretKey, c.cfg.MerchantAccount, orderReference),
	}

	var resp StatusResponse
	if err := c.post(ctx, "CHECK_STATUS", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Suspend cancels the recurring payment behind the given order.
func (c *Client) Suspend(ctx context.Context, orderReference string) (*SuspendResponse, error) {
	req := map[string]interface{}{
		"requestType":      "SUSPEND",
		"merchantAccount":  c.cfg.MerchantAccount,
		"merchantPassword": c.merchantPasswordMD5(),
		"orderReference":   orderReference,
	}

	var resp SuspendResponse
	if err := c.post(ctx, "SUSPEND", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// merchantPasswordMD5 returns the MD5 hex the SUSPEND API expects,
// preferring a pre-hashed value from configuration.
func (c *Client) merchantPasswordMD5() string {
	if c.cfg.MerchantPasswordMD5 != "" {
		return c.cfg.MerchantPasswordMD5
	}
	sum := md5.Sum([]byte(c.cfg.MerchantPassword))
	return hex.EncodeToString(sum[:])
}

// post sends one JSON request to the merchant API, recording duration
// metrics per request type.
func (c *Client) post(ctx context.Context, requestType string, body interface{}, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", requestType, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", requestType, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.GatewayRequestDuration.WithLabelValues(requestType, "transport_error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%s request failed: %w", requestType, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		metrics.GatewayRequestDuration.WithLabelValues(requestType, "read_error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("read %s response: %w", requestType, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		metrics.GatewayRequestDuration.WithLabelValues(requestType, "http_error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%s returned HTTP %d: %s", requestType, httpResp.StatusCode, truncate(raw, 256))
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		metrics.GatewayRequestDuration.WithLabelValues(requestType, "decode_error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("decode %s response: %w", requestType, err)
	}

	metrics.GatewayRequestDuration.WithLabelValues(requestType, "ok").Observe(time.Since(start).Seconds())
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
