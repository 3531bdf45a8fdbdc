// Package marketplace is the HTTP connector to the marketplace's private
// APIs: competitor offers, price pushes and catalog resyncs. It owns the
// boundary conversion from upstream fractional prices to the integer
// prices used everywhere else.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nmakarov/repricer/internal/core/domain"
	"github.com/nmakarov/repricer/internal/port"
)

type proxyKeyCtx struct{}

type Options struct {
	BaseURL string
	Timeout time.Duration // per-call ceiling, applied to every request

	// RPS caps outbound requests across all workers with a token bucket.
	// 0 disables the cap; per-item jitter is then the only spacing.
	RPS float64

	// Proxies routes requests through a per-key proxy when set.
	Proxies port.ProxyProvider
}

type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	proxies port.ProxyProvider
}

func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("marketplace base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid marketplace base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: base,
		timeout: timeout,
		proxies: opts.Proxies,
	}
	if opts.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = c.proxyFor
	c.client = &http.Client{Transport: transport}

	return c, nil
}

// proxyFor picks the proxy for a request from the key stashed in its
// context. Sessions and proxies differ per shop, so this must stay
// per-request rather than per-client.
func (c *Client) proxyFor(req *http.Request) (*url.URL, error) {
	if c.proxies == nil {
		return nil, nil
	}
	key, _ := req.Context().Value(proxyKeyCtx{}).(string)
	if key == "" {
		return nil, nil
	}
	return c.proxies.NextProxy(key)
}

type offerPayload struct {
	MerchantID string  `json:"merchant_id"`
	Price      float64 `json:"price"`
}

type offersResponse struct {
	Offers []offerPayload `json:"offers"`
}

func (c *Client) FetchOffers(ctx context.Context, externalID string) ([]domain.Offer, error) {
	body, err := c.get(ctx, "/api/offers/"+url.PathEscape(externalID), externalID)
	if err != nil {
		return nil, err
	}

	var resp offersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("offers for %s: %w: %v", externalID, domain.ErrData, err)
	}

	offers := make([]domain.Offer, 0, len(resp.Offers))
	for _, o := range resp.Offers {
		// Upstream sends fractional prices; the price-update API only
		// takes integers, so everything is floored right here.
		offers = append(offers, domain.Offer{
			MerchantID: o.MerchantID,
			Price:      int(math.Floor(o.Price)),
		})
	}
	return offers, nil
}

type pushRequest struct {
	RequestID  string `json:"request_id"`
	MerchantID string `json:"merchant_id"`
	Price      int    `json:"price"`
}

type pushResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *Client) PushPrice(ctx context.Context, item domain.Item, price int, sess domain.Session) error {
	payload, err := json.Marshal(pushRequest{
		RequestID:  uuid.NewString(),
		MerchantID: sess.MerchantID,
		Price:      price,
	})
	if err != nil {
		return fmt.Errorf("encode price push: %w", err)
	}

	body, err := c.post(ctx, "/api/items/"+url.PathEscape(item.ExternalID)+"/price", item.ShopID, payload, sess.Cookies)
	if err != nil {
		return err
	}

	var resp pushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("price push for %s: %w: %v", item.ExternalID, domain.ErrData, err)
	}
	if !resp.Success {
		return fmt.Errorf("price push for %s: %w: %s", item.ExternalID, domain.ErrPushRejected, resp.Message)
	}
	return nil
}

type resyncResponse struct {
	ItemCount int `json:"item_count"`
}

func (c *Client) Resync(ctx context.Context, shopID string) (int, error) {
	body, err := c.post(ctx, "/api/shops/"+url.PathEscape(shopID)+"/resync", shopID, nil, nil)
	if err != nil {
		return 0, err
	}

	var resp resyncResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("resync for shop %s: %w: %v", shopID, domain.ErrData, err)
	}
	return resp.ItemCount, nil
}

func (c *Client) get(ctx context.Context, path, proxyKey string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, proxyKey, nil, nil)
}

func (c *Client) post(ctx context.Context, path, proxyKey string, payload []byte, cookies map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, proxyKey, payload, cookies)
}

func (c *Client) do(ctx context.Context, method, path, proxyKey string, payload []byte, cookies map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s %s: %w: %v", method, path, domain.ErrNetwork, err)
		}
	}

	var body *bytes.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(context.WithValue(ctx, proxyKeyCtx{}, proxyKey), method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", method, path, domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s %s: %w", method, path, domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, domain.ErrNetwork)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, domain.ErrData)
	}

	raw, err := readAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", method, path, domain.ErrNetwork, err)
	}
	return raw, nil
}

func readAll(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
