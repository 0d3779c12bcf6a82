package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thukatech/restock_backend/utils"
)

func testClient(serverURL string) *shopifyClient {
	return &shopifyClient{
		baseURL:     serverURL,
		accessToken: "test-token",
		storeName:   "Test Store",
		storeDomain: "test.myshopify.com",
		http:        &http.Client{Timeout: 5 * time.Second},
		limiter:     time.Tick(time.Millisecond),
	}
}

func TestFindOrderNormalizesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "test-token" {
			t.Errorf("access token header = %q", got)
		}
		if r.URL.Query().Get("name") != "#1001" {
			// First probe is without the prefix; answer empty.
			json.NewEncoder(w).Encode(shopifyOrderListResponse{})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"orders": []map[string]interface{}{{
				"name":               "#1001",
				"financial_status":   "paid",
				"fulfillment_status": "fulfilled",
				"customer": map[string]interface{}{
					"first_name": "Aye",
					"last_name":  "Chan",
					"phone":      "+959123456789",
				},
				"line_items": []map[string]interface{}{
					{"title": "Denim Jacket", "variant_title": "M", "quantity": 2, "price": "45000"},
				},
			}},
		})
	}))
	defer server.Close()

	result, err := testClient(server.URL).findOrder(context.Background(), "1001")
	if err != nil {
		t.Fatalf("findOrder: %v", err)
	}
	if result.OrderName != "#1001" {
		t.Fatalf("OrderName = %q", result.OrderName)
	}
	if result.Status != "fulfilled" {
		t.Fatalf("Status = %q", result.Status)
	}
	if result.Customer.Name != "Aye Chan" {
		t.Fatalf("Customer.Name = %q", result.Customer.Name)
	}
	if len(result.LineItems) != 1 || result.LineItems[0].Quantity != 2 || result.LineItems[0].Variant != "M" {
		t.Fatalf("LineItems = %+v", result.LineItems)
	}
}

func TestFindOrderNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(shopifyOrderListResponse{})
	}))
	defer server.Close()

	_, err := testClient(server.URL).findOrder(context.Background(), "9999")
	var lookupErr *utils.ExternalLookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("want ExternalLookupError, got %v", err)
	}
	if lookupErr.Kind != utils.LookupNotFound {
		t.Fatalf("Kind = %q, want NotFound", lookupErr.Kind)
	}
}

func TestFindOrderMapsStatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   utils.ExternalLookupErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, utils.LookupAuthInvalid},
		{"forbidden", http.StatusForbidden, utils.LookupAuthInvalid},
		{"throttled", http.StatusTooManyRequests, utils.LookupRateLimited},
		{"missing", http.StatusNotFound, utils.LookupNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			_, err := testClient(server.URL).findOrder(context.Background(), "1001")
			var lookupErr *utils.ExternalLookupError
			if !errors.As(err, &lookupErr) {
				t.Fatalf("want ExternalLookupError, got %v", err)
			}
			if lookupErr.Kind != tc.want {
				t.Fatalf("Kind = %q, want %q", lookupErr.Kind, tc.want)
			}
		})
	}
}

func TestNormalizeFallsBackToFinancialStatus(t *testing.T) {
	order := shopifyOrder{Name: "#2002", FinancialStatus: "pending"}
	result := testClient("http://unused").normalize(&order)
	if result.Status != "pending" {
		t.Fatalf("Status = %q, want pending", result.Status)
	}
}

func TestFindOrderUnreachableStoreIsNotNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := testClient(server.URL).findOrder(context.Background(), "1001")
	var lookupErr *utils.ExternalLookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("want ExternalLookupError, got %v", err)
	}
	if lookupErr.Kind != utils.LookupUnavailable {
		t.Fatalf("kind = %q, want Unavailable", lookupErr.Kind)
	}
}
