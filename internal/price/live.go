package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultLiveBaseURL is the DefiLlama coins endpoint.
const DefaultLiveBaseURL = "https://coins.llama.fi"

// LiveClient fetches current prices from the external price API. Calls
// are rate limited so that batch runs do not hammer the upstream.
type LiveClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	maxRetries int
	baseDelay  time.Duration
}

func NewLiveClient(baseURL string, logger *zap.Logger) *LiveClient {
	if baseURL == "" {
		baseURL = DefaultLiveBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(350*time.Millisecond), 1),
		logger:     logger,
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
}

type liveResponse struct {
	Coins map[string]struct {
		Price float64 `json:"price"`
	} `json:"coins"`
}

// CurrentPrice returns the current USD price for a coin identifier such
// as "coingecko:ethereum" or "ethereum:0x...".
func (c *LiveClient) CurrentPrice(ctx context.Context, coinID string) (float64, error) {
	var price float64
	err := c.withRetry(ctx, func(ctx context.Context) error {
		var err error
		price, err = c.fetchPrice(ctx, coinID)
		if err != nil {
			c.logger.Warn("live price fetch failed", zap.String("coin", coinID), zap.Error(err))
		}
		return err
	})
	return price, err
}

// EthUSD returns the current ETH price in USD.
func (c *LiveClient) EthUSD(ctx context.Context) (float64, error) {
	return c.CurrentPrice(ctx, "coingecko:ethereum")
}

// BtcUSD returns the current BTC price in USD.
func (c *LiveClient) BtcUSD(ctx context.Context) (float64, error) {
	return c.CurrentPrice(ctx, "coingecko:bitcoin")
}

// TokenUSD returns the current price of a mainnet token by address.
func (c *LiveClient) TokenUSD(ctx context.Context, address string) (float64, error) {
	return c.CurrentPrice(ctx, "ethereum:"+strings.ToLower(address))
}

func (c *LiveClient) fetchPrice(ctx context.Context, coinID string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/prices/current/%s", c.baseURL, coinID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("price api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded liveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("decode price response: %w", err)
	}

	coin, ok := decoded.Coins[coinID]
	if !ok {
		return 0, fmt.Errorf("price api: no data for %s", coinID)
	}
	return coin.Price, nil
}

func (c *LiveClient) withRetry(ctx context.Context, fn func(context.Context) error) error {
	delay := c.baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= c.maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
