package paycashless

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

	"github.com/stayhq-ng/hostelpay-backend/pkg/config"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://api.paycashless.com"
	invoicesPath               = "/v1/invoices"
	defaultTimeout             = 30 * time.Second
	defaultListLimit           = 100
	responseBodyReadLimit int64 = 2048
)

var (
	errAPIKeyRequired        = errors.New("paycashless api key is required")
	errSigningSecretRequired = errors.New("paycashless signing secret is required")
)

// Client wraps the Paycashless invoicing API used for hostel fee collection.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	signingSecret string
	now           func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithClock overrides the timestamp source used for request signing.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds the gateway client from configuration. Missing credentials
// fail construction.
func NewClient(cfg config.PaycashlessConfig, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	secret := strings.TrimSpace(cfg.SigningSecret)
	if secret == "" {
		return nil, errSigningSecretRequired
	}

	client := &Client{
		apiKey:        apiKey,
		signingSecret: secret,
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		now:           time.Now,
	}
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		client.baseURL = trimmed
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// CreateInvoice registers a new invoice with the gateway and returns the
// hosted payment link details.
func (c *Client) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paycashless client not configured")
	}
	if strings.TrimSpace(params.Customer.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice amount must be positive")
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal invoice request")
	}

	var apiResp struct {
		Data Invoice `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, invoicesPath, body, &apiResp); err != nil {
		return nil, err
	}

	return &apiResp.Data, nil
}

// ListInvoices fetches up to params.Limit most recent gateway invoices.
func (c *Client) ListInvoices(ctx context.Context, params ListInvoicesParams) ([]Invoice, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paycashless client not configured")
	}

	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	path := invoicesPath + "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()

	var apiResp struct {
		Data struct {
			Invoices []Invoice `json:"invoices"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &apiResp); err != nil {
		return nil, err
	}

	return apiResp.Data.Invoices, nil
}

// FindInvoicesByCustomer returns gateway invoices matching the given identity.
// Email matching is case-insensitive; phone is an exact fallback.
func (c *Client) FindInvoicesByCustomer(ctx context.Context, email, phone string) ([]Invoice, error) {
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email or phone is required")
	}

	invoices, err := c.ListInvoices(ctx, ListInvoicesParams{Limit: defaultListLimit})
	if err != nil {
		return nil, err
	}

	matched := make([]Invoice, 0, 2)
	for _, inv := range invoices {
		if email != "" && strings.EqualFold(inv.Customer.Email, email) {
			matched = append(matched, inv)
			continue
		}
		if phone != "" && inv.Customer.PhoneNumber == phone {
			matched = append(matched, inv)
		}
	}

	return matched, nil
}

// VerifyWebhook validates a webhook delivery against the shared signing secret.
func (c *Client) VerifyWebhook(rawBody []byte, timestamp, signature string) bool {
	if c == nil {
		return false
	}
	return VerifyWebhookSignature(c.signingSecret, rawBody, timestamp, signature)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build gateway request")
	}

	signPath := path
	if idx := strings.Index(signPath, "?"); idx >= 0 {
		signPath = signPath[:idx]
	}
	timestamp := c.now().Unix()
	signature, err := SignRequest(c.signingSecret, body, signPath, timestamp)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign gateway request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute gateway request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		code := pkgerrors.CodeDependency
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
			code = pkgerrors.CodeValidation
		}
		return pkgerrors.Wrap(code, cause, "gateway request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}
