package storefront

// OrderLineItem is one line of a looked-up customer order.
type OrderLineItem struct {
	Title    string `json:"title"`
	Variant  string `json:"variant"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	ImageUrl string `json:"image_url,omitempty"`
}

// OrderCustomer is the buyer on a looked-up order.
type OrderCustomer struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// OrderLookupResult is the normalized answer returned to the app regardless
// of which store answered.
type OrderLookupResult struct {
	StoreName   string          `json:"store_name"`
	StoreDomain string          `json:"store_domain"`
	OrderName   string          `json:"order_name"`
	Status      string          `json:"status"`
	Customer    OrderCustomer   `json:"customer"`
	LineItems   []OrderLineItem `json:"line_items"`
}

// shopifyOrder is the subset of the Shopify Admin API order payload the
// lookup cares about.
type shopifyOrder struct {
	Name              string `json:"name"`
	FinancialStatus   string `json:"financial_status"`
	FulfillmentStatus string `json:"fulfillment_status"`
	Customer          struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
		Email     string `json:"email"`
	} `json:"customer"`
	LineItems []struct {
		Title        string `json:"title"`
		VariantTitle string `json:"variant_title"`
		Quantity     int    `json:"quantity"`
		Price        string `json:"price"`
	} `json:"line_items"`
}

type shopifyOrderListResponse struct {
	Orders []shopifyOrder `json:"orders"`
}
