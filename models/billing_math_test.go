package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeBillingAmountsWithGST(t *testing.T) {
	entry := BillingEntry{
		PricePerUnit: decimal.NewFromFloat(1250.50),
		GstEnabled:   true,
	}
	computeBillingAmounts(&entry, 8)

	if want := decimal.NewFromFloat(10004.00); !entry.TotalAmount.Equal(want) {
		t.Fatalf("TotalAmount = %s, want %s", entry.TotalAmount, want)
	}
	if want := decimal.NewFromFloat(500.20); !entry.GstAmount.Equal(want) {
		t.Fatalf("GstAmount = %s, want %s", entry.GstAmount, want)
	}
	if want := decimal.NewFromFloat(10504.20); !entry.GrandTotal.Equal(want) {
		t.Fatalf("GrandTotal = %s, want %s", entry.GrandTotal, want)
	}
}

func TestComputeBillingAmountsWithoutGST(t *testing.T) {
	entry := BillingEntry{
		PricePerUnit: decimal.NewFromFloat(99.99),
		GstEnabled:   false,
		// Stale tax from an earlier enabled state must be cleared.
		GstAmount: decimal.NewFromFloat(12.34),
	}
	computeBillingAmounts(&entry, 3)

	if want := decimal.NewFromFloat(299.97); !entry.TotalAmount.Equal(want) {
		t.Fatalf("TotalAmount = %s, want %s", entry.TotalAmount, want)
	}
	if !entry.GstAmount.IsZero() {
		t.Fatalf("GstAmount = %s, want 0", entry.GstAmount)
	}
	if !entry.GrandTotal.Equal(entry.TotalAmount) {
		t.Fatalf("GrandTotal = %s, want %s", entry.GrandTotal, entry.TotalAmount)
	}
}

func TestComputeBillingAmountsRounding(t *testing.T) {
	entry := BillingEntry{
		PricePerUnit: decimal.NewFromFloat(33.33),
		GstEnabled:   true,
	}
	computeBillingAmounts(&entry, 1)

	// 33.33 * 0.05 = 1.6665, rounds half-up to 1.67.
	if want := decimal.NewFromFloat(1.67); !entry.GstAmount.Equal(want) {
		t.Fatalf("GstAmount = %s, want %s", entry.GstAmount, want)
	}
}
