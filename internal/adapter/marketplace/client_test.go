package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nmakarov/repricer/internal/core/domain"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestFetchOffers_FloorsFractionalPrices(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/offers/ext-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"offers": []map[string]any{
				{"merchant_id": "m1", "price": 949.99},
				{"merchant_id": "m2", "price": 950},
			},
		})
	}))

	offers, err := c.FetchOffers(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("FetchOffers failed: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(offers))
	}
	if offers[0].Price != 949 {
		t.Errorf("fractional price must floor to 949, got %d", offers[0].Price)
	}
	if offers[1].Price != 950 {
		t.Errorf("expected 950, got %d", offers[1].Price)
	}
}

func TestFetchOffers_EmptyListIsNotAnError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"offers": []any{}})
	}))

	offers, err := c.FetchOffers(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("FetchOffers failed: %v", err)
	}
	if len(offers) != 0 {
		t.Errorf("expected no offers, got %v", offers)
	}
}

func TestFetchOffers_RateLimited(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.FetchOffers(context.Background(), "ext-1")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestFetchOffers_ServerErrorIsNetwork(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.FetchOffers(context.Background(), "ext-1")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected ErrNetwork, got %v", err)
	}
}

func TestFetchOffers_MalformedBodyIsData(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))

	_, err := c.FetchOffers(context.Background(), "ext-1")
	if !errors.Is(err, domain.ErrData) {
		t.Errorf("expected ErrData, got %v", err)
	}
}

func TestFetchOffers_TimeoutIsNetwork(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.FetchOffers(ctx, "ext-1")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected ErrNetwork on timeout, got %v", err)
	}
}

func TestPushPrice_SendsSessionAndPayload(t *testing.T) {
	var got pushRequest
	var cookie string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/items/ext-1/price" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ck, err := r.Cookie("sid"); err == nil {
			cookie = ck.Value
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(pushResponse{Success: true})
	}))

	it := domain.Item{ID: "1", ShopID: "shop-1", ExternalID: "ext-1", Price: 1000}
	sess := domain.Session{Valid: true, MerchantID: "m-77", Cookies: map[string]string{"sid": "abc"}}

	if err := c.PushPrice(context.Background(), it, 949, sess); err != nil {
		t.Fatalf("PushPrice failed: %v", err)
	}
	if got.Price != 949 {
		t.Errorf("expected price 949 in payload, got %d", got.Price)
	}
	if got.MerchantID != "m-77" {
		t.Errorf("expected merchant id m-77, got %q", got.MerchantID)
	}
	if got.RequestID == "" {
		t.Error("expected a request id for idempotent retries")
	}
	if cookie != "abc" {
		t.Errorf("expected session cookie forwarded, got %q", cookie)
	}
}

func TestPushPrice_RejectedBySuccessFlag(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pushResponse{Success: false, Message: "price below minimum offer"})
	}))

	it := domain.Item{ID: "1", ExternalID: "ext-1"}
	err := c.PushPrice(context.Background(), it, 949, domain.Session{Valid: true})
	if !errors.Is(err, domain.ErrPushRejected) {
		t.Errorf("expected ErrPushRejected, got %v", err)
	}
	if errors.Is(err, domain.ErrNetwork) || errors.Is(err, domain.ErrData) {
		t.Errorf("rejection must not read as a transport or data failure: %v", err)
	}
}

func TestResync_ReturnsItemCount(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/shops/shop-1/resync" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(resyncResponse{ItemCount: 321})
	}))

	count, err := c.Resync(context.Background(), "shop-1")
	if err != nil {
		t.Fatalf("Resync failed: %v", err)
	}
	if count != 321 {
		t.Errorf("expected 321 items, got %d", count)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Error("expected error for missing base URL")
	}
}
