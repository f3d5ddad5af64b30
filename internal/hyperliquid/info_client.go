package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"whale-copy-lab/internal/exchange"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.hyperliquid.xyz"
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
	DefaultMaxRPS     = 3.0
	DefaultMaxPages   = 10
)

// maxFillsPerPage is the venue's response cap; a smaller batch means a
// history back-walk reached the start of the account's fills.
const maxFillsPerPage = 2000

// InfoClient reads the venue's public info endpoint: fills, clearinghouse
// state, sizing metadata and mid prices. All requests share one rate limiter
// and retry transient failures with exponential backoff.
type InfoClient struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	maxPages   int

	mu      sync.Mutex
	sizings map[string]*exchange.AssetSizing
}

var (
	_ exchange.FillSource         = (*InfoClient)(nil)
	_ exchange.AccountStateSource = (*InfoClient)(nil)
	_ exchange.SizingSource       = (*InfoClient)(nil)
)

// InfoOption configures InfoClient.
type InfoOption func(*InfoClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) InfoOption {
	return func(c *InfoClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) InfoOption {
	return func(c *InfoClient) {
		c.client = client
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) InfoOption {
	return func(c *InfoClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) InfoOption {
	return func(c *InfoClient) {
		c.retryDelay = d
	}
}

// WithRateLimit sets the request rate in requests per second.
func WithRateLimit(rps float64) InfoOption {
	return func(c *InfoClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithMaxPages bounds history back-walk pagination.
func WithMaxPages(n int) InfoOption {
	return func(c *InfoClient) {
		c.maxPages = n
	}
}

// NewInfoClient creates an info client. baseURL accepts either the host or a
// full .../info URL; empty falls back to the public mainnet endpoint.
func NewInfoClient(baseURL string, opts ...InfoOption) *InfoClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/info")
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &InfoClient{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultMaxRPS), 1),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		maxPages:   DefaultMaxPages,
		sizings:    make(map[string]*exchange.AssetSizing),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post performs one info query with rate limiting, retries and exponential
// backoff. 429 responses are retried like transport failures.
func (c *InfoClient) post(ctx context.Context, payload infoRequest, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// UserFills returns fills for the address with time >= since, oldest first.
// since 0 asks for the venue's default recent window.
func (c *InfoClient) UserFills(ctx context.Context, address string, since int64) ([]exchange.Fill, error) {
	payload := infoRequest{Type: "userFills", User: address}
	if since > 0 {
		start := since
		payload.StartTime = &start
	}

	var wire []wireFill
	if err := c.post(ctx, payload, &wire); err != nil {
		return nil, fmt.Errorf("userFills %s: %w", address, err)
	}

	fills := make([]exchange.Fill, 0, len(wire))
	for _, w := range wire {
		fills = append(fills, fillFromWire(w))
	}
	sort.SliceStable(fills, func(i, j int) bool { return fills[i].Time < fills[j].Time })
	return fills, nil
}

// UserFillsHistory back-walks the address's fill history from the most
// recent page: each page's startTime moves to just before the oldest fill
// seen, until a short page, an empty page, or the page cap. Returns fills
// oldest first.
func (c *InfoClient) UserFillsHistory(ctx context.Context, address string) ([]exchange.Fill, error) {
	var all []exchange.Fill
	var cursor int64

	for page := 0; page < c.maxPages; page++ {
		payload := infoRequest{Type: "userFills", User: address}
		if cursor > 0 {
			start := cursor
			payload.StartTime = &start
		}

		var wire []wireFill
		if err := c.post(ctx, payload, &wire); err != nil {
			return nil, fmt.Errorf("userFills history %s: %w", address, err)
		}
		if len(wire) == 0 {
			break
		}

		oldest := int64(math.MaxInt64)
		for _, w := range wire {
			all = append(all, fillFromWire(w))
			if w.Time > 0 && w.Time < oldest {
				oldest = w.Time
			}
		}
		if oldest == math.MaxInt64 {
			break
		}
		cursor = oldest - 1

		if len(wire) < maxFillsPerPage {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Time < all[j].Time })
	return all, nil
}

// AccountState returns the clearinghouse snapshot for the address.
func (c *InfoClient) AccountState(ctx context.Context, address string) (*exchange.AccountState, error) {
	var wire wireClearinghouseState
	if err := c.post(ctx, infoRequest{Type: "clearinghouseState", User: address}, &wire); err != nil {
		return nil, fmt.Errorf("clearinghouseState %s: %w", address, err)
	}

	accountValue, err := strconv.ParseFloat(wire.MarginSummary.AccountValue, 64)
	if err != nil {
		return nil, fmt.Errorf("parse account value %q: %w", wire.MarginSummary.AccountValue, err)
	}
	marginUsed, _ := strconv.ParseFloat(wire.MarginSummary.TotalMarginUsed, 64)

	state := &exchange.AccountState{
		AccountValueUSD:    accountValue,
		TotalMarginUsedUSD: marginUsed,
	}
	for _, ap := range wire.AssetPositions {
		if pos, ok := positionFromWire(ap.Position); ok {
			state.Positions = append(state.Positions, pos)
		}
	}
	return state, nil
}

// AssetSizing returns the venue's rounding rules for an asset, loading and
// caching the meta universe on first use.
func (c *InfoClient) AssetSizing(ctx context.Context, asset string) (*exchange.AssetSizing, error) {
	key := strings.ToUpper(asset)

	c.mu.Lock()
	sizing, ok := c.sizings[key]
	c.mu.Unlock()
	if ok {
		return sizing, nil
	}

	if err := c.loadMeta(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	sizing, ok = c.sizings[key]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown asset %q", asset)
	}
	return sizing, nil
}

func (c *InfoClient) loadMeta(ctx context.Context) error {
	var wire wireMeta
	if err := c.post(ctx, infoRequest{Type: "meta"}, &wire); err != nil {
		return fmt.Errorf("meta: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, asset := range wire.Universe {
		if asset.Name == "" {
			continue
		}
		c.sizings[strings.ToUpper(asset.Name)] = &exchange.AssetSizing{
			Asset:      asset.Name,
			SzDecimals: asset.SzDecimals,
			PxDecimals: perpPriceDecimals - asset.SzDecimals,
		}
	}
	return nil
}

// AllMids returns current mid prices keyed by asset. Entries that do not
// parse to a positive price are dropped.
func (c *InfoClient) AllMids(ctx context.Context) (map[string]float64, error) {
	var wire map[string]string
	if err := c.post(ctx, infoRequest{Type: "allMids"}, &wire); err != nil {
		return nil, fmt.Errorf("allMids: %w", err)
	}

	mids := make(map[string]float64, len(wire))
	for asset, raw := range wire {
		px, err := strconv.ParseFloat(raw, 64)
		if err != nil || px <= 0 {
			continue
		}
		mids[asset] = px
	}
	return mids, nil
}
