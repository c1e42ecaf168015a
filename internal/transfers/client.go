package transfers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize is the number of transfer events per feed page.
const DefaultPageSize = 100

// TransferEvent is one ERC-20 transfer row from the feed.
type TransferEvent struct {
	TransactionHash string `json:"transaction_hash"`
	BlockTimestamp  string `json:"block_timestamp"`
}

// Timestamp parses the event's block timestamp.
func (e TransferEvent) Timestamp() (time.Time, error) {
	return time.Parse(time.RFC3339, e.BlockTimestamp)
}

// Page is one page of the transfer feed with its continuation cursor.
// An empty cursor marks the final page.
type Page struct {
	Result []TransferEvent `json:"result"`
	Cursor string          `json:"cursor"`
}

// Client fetches token transfer pages from the indexed transfer API.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchPage returns one page of transfers for a token contract. Pass the
// previous page's cursor to continue, or "" for the first page. Zero
// from/to values leave the feed unbounded on that side.
func (c *Client) FetchPage(ctx context.Context, token, cursor string, from, to time.Time) (*Page, error) {
	endpoint := fmt.Sprintf("%s/erc20/%s/transfers", c.baseURL, token)

	query := url.Values{}
	query.Set("chain", "eth")
	query.Set("order", "DESC")
	query.Set("limit", strconv.Itoa(c.pageSize))
	if !from.IsZero() {
		query.Set("from_date", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		query.Set("to_date", to.UTC().Format(time.RFC3339))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transfer feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transfer feed status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode transfer page: %w", err)
	}
	return &page, nil
}
