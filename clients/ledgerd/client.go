// Package ledgerd implements the HTTP client for the remote Stars ledger
// service ("ledgerd"). It is the synchronous half of the wallet's gateway;
// the wallet wraps it to deliver results on the run loop.
package ledgerd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/astrachat/starwallet/api/ledger"
	"github.com/astrachat/starwallet/cache"
	"github.com/astrachat/starwallet/clients"
	"github.com/astrachat/starwallet/logging"
	"github.com/astrachat/starwallet/monitoring"
	"github.com/astrachat/starwallet/pagination"
)

// Client is a ledgerd API client.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	sessionToken string
	logger       logging.Logger
	executor     failsafe.Executor[*http.Response]
	metrics      *monitoring.Metrics
	prices       *cache.Cache[ledger.StorePrice]
	priceTTL     time.Duration
}

// Config configures the ledgerd client.
type Config struct {
	BaseURL      string
	SessionToken string
	Timeout      time.Duration
	Logger       logging.Logger
	// Executor overrides the retry/circuit-breaker policy. Nil gets
	// DefaultHTTPExecutorConfig with a circuit breaker.
	Executor *clients.HTTPExecutorConfig
	Metrics  *monitoring.Metrics
	// StorePriceTTL bounds how long resolved store prices are reused.
	// Zero means one hour.
	StorePriceTTL time.Duration
}

// NewClient creates a new ledgerd API client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.StorePriceTTL == 0 {
		config.StorePriceTTL = time.Hour
	}

	execCfg := clients.DefaultHTTPExecutorConfig()
	execCfg.UseCircuitBreaker = true
	if config.Executor != nil {
		execCfg = *config.Executor
	}

	httpClient := &http.Client{
		Timeout:   config.Timeout,
		Transport: clients.DefaultTransport(),
	}

	return &Client{
		baseURL:      config.BaseURL,
		httpClient:   httpClient,
		sessionToken: config.SessionToken,
		logger:       config.Logger,
		executor:     clients.NewHTTPExecutor(execCfg),
		metrics:      config.Metrics,
		priceTTL:     config.StorePriceTTL,
		prices: cache.New[ledger.StorePrice](cache.Options{
			TTL:                  config.StorePriceTTL,
			StaleWhileRevalidate: config.StorePriceTTL / 2,
			MaxEntries:           256,
		}, cache.Hooks{}),
	}
}

// GetStarsStatus retrieves the balance with an inline first page of history
// and subscriptions.
func (c *Client) GetStarsStatus(ctx context.Context) (*ledger.StatusResponse, error) {
	var status ledger.StatusResponse
	if err := c.get(ctx, "status", "/api/stars/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetTransactions retrieves one page of the transaction feed. An empty
// cursor starts from the newest entry.
func (c *Client) GetTransactions(ctx context.Context, direction ledger.Direction, cursor string, limit int) (*ledger.TransactionPage, error) {
	path := fmt.Sprintf("/api/stars/transactions?direction=%s&cursor=%s&limit=%d",
		url.QueryEscape(string(direction)),
		url.QueryEscape(cursor),
		pagination.ClampLimit(limit))

	var page ledger.TransactionPage
	if err := c.get(ctx, "transactions", path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetSubscriptions retrieves one page of recurring Stars charges.
func (c *Client) GetSubscriptions(ctx context.Context, cursor string) (*ledger.SubscriptionPage, error) {
	path := "/api/stars/subscriptions?cursor=" + url.QueryEscape(cursor)

	var page ledger.SubscriptionPage
	if err := c.get(ctx, "subscriptions", path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetTopupOptions retrieves the top-up catalog.
func (c *Client) GetTopupOptions(ctx context.Context) ([]ledger.TopupOption, error) {
	var resp ledger.TopupOptionsResponse
	if err := c.get(ctx, "topup_options", "/api/stars/topup-options", &resp); err != nil {
		return nil, err
	}
	return resp.Options, nil
}

// GetCapabilities retrieves account-level feature flags.
func (c *Client) GetCapabilities(ctx context.Context) (*ledger.CapabilitiesResponse, error) {
	var caps ledger.CapabilitiesResponse
	if err := c.get(ctx, "capabilities", "/api/stars/capabilities", &caps); err != nil {
		return nil, err
	}
	return &caps, nil
}

// ResolveStorePrices resolves store-native prices for the given product ids.
// Results are cached; only products missing from the cache hit the backend.
func (c *Client) ResolveStorePrices(ctx context.Context, productIDs []string) (map[string]ledger.StorePrice, error) {
	resolved := make(map[string]ledger.StorePrice, len(productIDs))
	var missing []string
	for _, id := range productIDs {
		if price, ok := c.prices.Peek(id); ok {
			resolved[id] = price
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	var resp ledger.StorePricesResponse
	if err := c.post(ctx, "store_prices", "/api/store/prices", &ledger.StorePricesRequest{ProductIDs: missing}, &resp); err != nil {
		return nil, err
	}
	for id, price := range resp.Prices {
		c.prices.Set(id, price, c.priceTTL)
		resolved[id] = price
	}
	return resolved, nil
}

// GetPaymentForm requests a payment form for an invoice target.
func (c *Client) GetPaymentForm(ctx context.Context, target ledger.InvoiceTarget) (*ledger.PaymentForm, error) {
	var form ledger.PaymentForm
	if err := c.post(ctx, "payment_form", "/api/payments/form", &ledger.PaymentFormRequest{Invoice: target}, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

// SubmitPayment settles a previously fetched form. The idempotency key in
// the request makes the retry policy safe for this non-idempotent call.
func (c *Client) SubmitPayment(ctx context.Context, req *ledger.SubmitPaymentRequest) (*ledger.SettlementResult, error) {
	var result ledger.SettlementResult
	if err := c.post(ctx, "submit_payment", "/api/payments/submit", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(method, req, out)
}

func (c *Client) post(ctx context.Context, method, path string, in, out interface{}) error {
	jsonBody, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(method, req, out)
}

func (c *Client) do(method string, req *http.Request, out interface{}) error {
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	start := time.Now()
	resp, err := clients.DoHTTP(req.Context(), c.httpClient, c.executor, req)
	if err != nil {
		c.metrics.ObserveGatewayRequest(method, "error", time.Since(start))
		return fmt.Errorf("failed to call ledgerd: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveGatewayRequest(method, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return c.remoteError(method, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// remoteError turns a non-200 response into a *ledger.RemoteError, keeping
// the backend's code and text verbatim.
func (c *Client) remoteError(method string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	remote := &ledger.RemoteError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, remote); err != nil || remote.Text == "" {
		remote.Text = string(body)
	}
	if c.logger != nil {
		c.logger.WithFields(logging.Fields{
			"method": method,
			"status": resp.StatusCode,
			"code":   remote.Code,
		}).Debug("ledgerd request failed")
	}
	return remote
}
