// Package pricefeed fetches the ETH/USD spot price for display valuations.
// Failures degrade to a fallback constant; USD figures are informational
// and never block mining.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FallbackETHPriceUSD is used whenever the feed is unreachable or returns
// garbage. Chosen conservative; only affects display output.
const FallbackETHPriceUSD = 3000.0

const (
	defaultEndpoint = "https://api.coinbase.com/v2/prices/ETH-USD/spot"
	requestTimeout  = 10 * time.Second
	cacheTTL        = time.Minute
)

// Client fetches and caches the spot price.
type Client struct {
	endpoint string
	http     *http.Client
	log      *logrus.Logger

	mu        sync.Mutex
	cached    float64
	fetchedAt time.Time
}

// NewClient creates a price feed client against the default endpoint.
func NewClient(log *logrus.Logger) *Client {
	return &Client{
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: requestTimeout},
		log:      log,
	}
}

type spotResponse struct {
	Data struct {
		Amount string `json:"amount"`
	} `json:"data"`
}

// GetAssetPriceUSD returns the current ETH/USD price, serving a cached
// value within the TTL and the fallback constant when the feed fails.
func (c *Client) GetAssetPriceUSD(ctx context.Context) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached > 0 && time.Since(c.fetchedAt) < cacheTTL {
		return c.cached
	}

	price, err := c.fetch(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Price feed unavailable, using fallback")
		if c.cached > 0 {
			return c.cached
		}
		return FallbackETHPriceUSD
	}

	c.cached = price
	c.fetchedAt = time.Now()
	return price
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price feed returned status %d", resp.StatusCode)
	}

	var body spotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("failed to decode price response: %w", err)
	}

	price, err := strconv.ParseFloat(body.Data.Amount, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("price feed returned invalid amount %q", body.Data.Amount)
	}
	return price, nil
}
