// Package mirror is a read-only client for the network's mirror-node REST
// API. It serves display data only (balances, exchange rates); canonical
// state always comes from the contract gateway.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ajohq/ajolink/service/metrics"
)

// AccountBalance is an account's token holdings as reported by the mirror
// node. Amounts are in the tokens' smallest units.
type AccountBalance struct {
	AccountID string
	Tinybar   int64
	Tokens    map[string]int64
}

// ExchangeRate is the network's current HBAR/USD rate.
type ExchangeRate struct {
	USDPerHBAR float64
	ExpiresAt  time.Time
}

// Client is the HTTP client for the mirror-node REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a mirror-node client. httpClient and logger may be nil.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}
}

// Balance retrieves the account's HBAR and token balances.
func (c *Client) Balance(ctx context.Context, accountID string) (*AccountBalance, error) {
	u := fmt.Sprintf("%s/api/v1/accounts/%s", c.baseURL, url.PathEscape(accountID))

	var body struct {
		Balance struct {
			Balance int64 `json:"balance"`
			Tokens  []struct {
				TokenID string `json:"token_id"`
				Balance int64  `json:"balance"`
			} `json:"tokens"`
		} `json:"balance"`
	}
	if err := c.getJSON(ctx, "accounts", u, &body); err != nil {
		return nil, err
	}

	tokens := make(map[string]int64, len(body.Balance.Tokens))
	for _, tok := range body.Balance.Tokens {
		tokens[tok.TokenID] = tok.Balance
	}

	c.logger.DebugContext(ctx, "fetched account balance",
		"account", accountID,
		"tinybar", body.Balance.Balance,
		"tokens", len(tokens),
	)
	return &AccountBalance{
		AccountID: accountID,
		Tinybar:   body.Balance.Balance,
		Tokens:    tokens,
	}, nil
}

// Rate retrieves the network's current HBAR/USD exchange rate. The mirror
// node expresses it as cent-per-hbar equivalents.
func (c *Client) Rate(ctx context.Context) (*ExchangeRate, error) {
	var body struct {
		CurrentRate struct {
			CentEquivalent int64 `json:"cent_equivalent"`
			HbarEquivalent int64 `json:"hbar_equivalent"`
			ExpirationTime int64 `json:"expiration_time"`
		} `json:"current_rate"`
	}
	if err := c.getJSON(ctx, "exchangerate", c.baseURL+"/api/v1/network/exchangerate", &body); err != nil {
		return nil, err
	}
	if body.CurrentRate.HbarEquivalent == 0 {
		return nil, fmt.Errorf("mirror: exchange rate with zero hbar equivalent")
	}
	return &ExchangeRate{
		USDPerHBAR: float64(body.CurrentRate.CentEquivalent) / float64(body.CurrentRate.HbarEquivalent) / 100,
		ExpiresAt:  time.Unix(body.CurrentRate.ExpirationTime, 0).UTC(),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordMirrorRequest(endpoint, "error", duration)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordMirrorRequest(endpoint, fmt.Sprintf("%d", resp.StatusCode), duration)
	}
	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse extracts the mirror node's error message. The mirror
// API nests messages under a _status envelope.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Status struct {
			Messages []struct {
				Message string `json:"message"`
			} `json:"messages"`
		} `json:"_status"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || len(errResp.Status.Messages) == 0 {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("request failed: %s", errResp.Status.Messages[0].Message)
}
