package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thukatech/restock_backend/models"
	"github.com/thukatech/restock_backend/utils"
)

var tracer = otel.Tracer("restock-backend/storefront")

type shopifyClient struct {
	baseURL     string
	accessToken string
	storeName   string
	storeDomain string
	http        *http.Client
	limiter     <-chan time.Time
}

func newShopifyClient(cfg *models.StorefrontConfig) (*shopifyClient, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("storefront access token is empty")
	}
	apiVersion := strings.TrimSpace(os.Getenv("SHOPIFY_API_VERSION"))
	if apiVersion == "" {
		apiVersion = "2024-01"
	}
	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("SHOPIFY_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &shopifyClient{
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", cfg.StoreDomain, apiVersion),
		accessToken: cfg.AccessToken,
		storeName:   cfg.StoreName,
		storeDomain: cfg.StoreDomain,
		http:        &http.Client{Timeout: 15 * time.Second},
		limiter:     time.Tick(interval),
	}, nil
}

func (c *shopifyClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// An unreachable store must not read as "order not found".
		kind := utils.LookupTimeout
		if ctx.Err() == nil && !os.IsTimeout(err) {
			kind = utils.LookupUnavailable
		}
		return &utils.ExternalLookupError{Kind: kind, Store: c.storeDomain, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &utils.ExternalLookupError{Kind: utils.LookupAuthInvalid, Store: c.storeDomain}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &utils.ExternalLookupError{Kind: utils.LookupRateLimited, Store: c.storeDomain}
	case resp.StatusCode == http.StatusNotFound:
		return &utils.ExternalLookupError{Kind: utils.LookupNotFound, Store: c.storeDomain}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &utils.ExternalLookupError{
			Kind:  utils.LookupNotFound,
			Store: c.storeDomain,
			Err:   fmt.Errorf("shopify api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	return json.Unmarshal(body, out)
}

// findOrder queries one store for an order by its customer-facing name,
// with and without the "#" prefix Shopify renders.
func (c *shopifyClient) findOrder(ctx context.Context, orderNumber string) (*OrderLookupResult, error) {
	names := []string{orderNumber}
	if !strings.HasPrefix(orderNumber, "#") {
		names = append(names, "#"+orderNumber)
	}

	for _, name := range names {
		params := url.Values{}
		params.Set("name", name)
		params.Set("status", "any")

		var parsed shopifyOrderListResponse
		if err := c.getJSON(ctx, "/orders.json", params, &parsed); err != nil {
			return nil, err
		}
		if len(parsed.Orders) == 0 {
			continue
		}
		return c.normalize(&parsed.Orders[0]), nil
	}
	return nil, &utils.ExternalLookupError{Kind: utils.LookupNotFound, Store: c.storeDomain}
}

func (c *shopifyClient) normalize(order *shopifyOrder) *OrderLookupResult {
	status := order.FulfillmentStatus
	if status == "" {
		status = order.FinancialStatus
	}
	result := &OrderLookupResult{
		StoreName:   c.storeName,
		StoreDomain: c.storeDomain,
		OrderName:   order.Name,
		Status:      status,
		Customer: OrderCustomer{
			Name:  strings.TrimSpace(order.Customer.FirstName + " " + order.Customer.LastName),
			Phone: order.Customer.Phone,
			Email: order.Customer.Email,
		},
	}
	for _, item := range order.LineItems {
		result.LineItems = append(result.LineItems, OrderLineItem{
			Title:    item.Title,
			Variant:  item.VariantTitle,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return result
}

// LookupOrder asks every enabled store for the order number and returns the
// first hit. Auth failures are reported immediately so a bad token is not
// mistaken for a missing order; not-found only comes back after every store
// has answered.
func LookupOrder(ctx context.Context, orderNumber string) (*OrderLookupResult, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, &utils.ValidationError{Field: "order_number", Reason: "must not be blank"}
	}

	ctx, span := tracer.Start(ctx, "storefront.LookupOrder",
		trace.WithAttributes(attribute.String("order.name", orderNumber)))
	defer span.End()

	configs, err := models.ListEnabledStorefrontConfigs(ctx)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, &utils.ExternalLookupError{Kind: utils.LookupNotFound, Store: "none configured"}
	}

	var lastErr error
	for _, cfg := range configs {
		client, err := newShopifyClient(cfg)
		if err != nil {
			lastErr = err
			continue
		}
		result, err := client.findOrder(ctx, orderNumber)
		if err != nil {
			var lookupErr *utils.ExternalLookupError
			if errors.As(err, &lookupErr) && lookupErr.Kind == utils.LookupNotFound {
				lastErr = err
				continue
			}
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		span.SetAttributes(attribute.String("storefront.store", cfg.StoreDomain))
		return result, nil
	}

	span.SetStatus(codes.Error, "order not found in any store")
	if lookupErr, ok := lastErr.(*utils.ExternalLookupError); ok {
		return nil, lookupErr
	}
	return nil, &utils.ExternalLookupError{Kind: utils.LookupNotFound, Store: "all stores", Err: lastErr}
}
