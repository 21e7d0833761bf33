package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Client fetches current USD prices for a set of token symbols from the
// price API. Failed lookups return a 0 sentinel so callers can degrade per
// token instead of failing the whole batch.
type Client struct {
	baseURL string
	http    *http.Client

	// last-known prices used as fallback when the API is briefly down
	cacheMu sync.RWMutex
	cache   map[string]cachedPrice
}

type cachedPrice struct {
	price     float64
	updatedAt time.Time
}

// maxCacheAge bounds how stale a fallback price may be.
const maxCacheAge = 5 * time.Minute

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   make(map[string]cachedPrice),
	}
}

type priceResponse struct {
	Data map[string]struct {
		Price float64 `json:"price"`
	} `json:"data"`
}

// Batch returns a price per requested symbol. Symbols the API does not know
// and request failures without a fresh cached fallback report 0.
func (c *Client) Batch(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	upper := make([]string, 0, len(symbols))
	for _, s := range symbols {
		upper = append(upper, strings.ToUpper(s))
	}

	resp, err := c.fetch(ctx, upper)
	if err != nil {
		log.WithError(err).Warn("price batch fetch failed, using cached fallbacks")
		for _, s := range upper {
			out[s] = c.cached(s)
		}
		return out, nil
	}

	now := time.Now()
	var missing []string
	c.cacheMu.Lock()
	for _, s := range upper {
		entry, ok := resp.Data[s]
		if !ok || entry.Price <= 0 {
			missing = append(missing, s)
			continue
		}
		out[s] = entry.Price
		c.cache[s] = cachedPrice{price: entry.Price, updatedAt: now}
	}
	c.cacheMu.Unlock()

	for _, s := range missing {
		out[s] = c.cached(s)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, symbols []string) (*priceResponse, error) {
	params := url.Values{}
	params.Add("symbols", strings.Join(symbols, ","))
	fullURL := fmt.Sprintf("%s/v1/prices?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build price request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var decoded priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}
	return &decoded, nil
}

// cached returns a fallback price or the 0 sentinel when none is fresh.
func (c *Client) cached(symbol string) float64 {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	entry, ok := c.cache[symbol]
	if !ok || time.Since(entry.updatedAt) > maxCacheAge {
		return 0
	}
	return entry.price
}
