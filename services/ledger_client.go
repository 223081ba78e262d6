package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eastemblem/proofengine-payments/apperrors"
	"github.com/eastemblem/proofengine-payments/models"
)

// LedgerClient is the engine's view of the transaction ledger. The pull
// channel and the verification step both go through GetStatus; it is the only
// source allowed to assert success.
type LedgerClient interface {
	CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error)
	GetStatus(ctx context.Context, orderReference string) (*models.StatusResponse, error)
	Cancel(ctx context.Context, orderReference string) error
}

type HTTPLedgerClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPLedgerClient(baseURL string, timeout time.Duration) *HTTPLedgerClient {
	return &HTTPLedgerClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPLedgerClient) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Creation("failed to encode create-payment request", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/payments", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Creation("create-payment call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperrors.Creation(upstreamError(resp), nil)
	}

	var out models.CreatePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Creation("failed to decode create-payment response", err)
	}
	return &out, nil
}

func (c *HTTPLedgerClient) GetStatus(ctx context.Context, orderReference string) (*models.StatusResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/payments/"+orderReference+"/status", nil)
	if err != nil {
		return nil, apperrors.Verification("status query failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperrors.Verification(upstreamError(resp), nil)
	}

	var out models.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Verification("failed to decode status response", err)
	}
	return &out, nil
}

func (c *HTTPLedgerClient) Cancel(ctx context.Context, orderReference string) error {
	resp, err := c.do(ctx, http.MethodPost, "/payments/"+orderReference+"/cancel", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s", upstreamError(resp))
	}
	return nil
}

func (c *HTTPLedgerClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

func upstreamError(resp *http.Response) string {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Sprintf("upstream error: status=%d body=%s", resp.StatusCode, string(body))
}
