package models_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/thukatech/restock_backend/models"
	"github.com/thukatech/restock_backend/utils"
)

func TestBillingRequiresReceivedLog(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	captured, err := models.CreateOrMergeOrder(ctx, &models.NewOrder{
		ImageHash:  strings.Repeat("a7", 32),
		Quantities: models.QuantityMap{"Total": 8},
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	logId := captured.Log.ID

	entryInput := &models.NewBillingEntry{
		PricePerUnit: decimal.NewFromInt(1250),
		GstEnabled:   true,
	}

	var stateErr *utils.InvalidStateError
	if _, err := models.UpsertBillingEntry(ctx, logId, entryInput); !errors.As(err, &stateErr) {
		t.Fatalf("billing an ordered log: want InvalidStateError, got %v", err)
	}

	if _, err := models.ProcessPickup(ctx, logId, &models.PickupInput{
		PickedAmounts: models.QuantityMap{"Total": 8},
	}); err != nil {
		t.Fatalf("ProcessPickup: %v", err)
	}
	if _, err := models.UpsertBillingEntry(ctx, logId, entryInput); !errors.As(err, &stateErr) {
		t.Fatalf("billing a dispatched log: want InvalidStateError, got %v", err)
	}

	if _, err := models.ProcessReceiving(ctx, logId, &models.ReceivingInput{
		ReceivedAmounts: models.QuantityMap{"Total": 6},
	}); err != nil {
		t.Fatalf("ProcessReceiving: %v", err)
	}

	entry, err := models.UpsertBillingEntry(ctx, logId, entryInput)
	if err != nil {
		t.Fatalf("UpsertBillingEntry: %v", err)
	}
	// 6 received pieces at 1250 each, 5% GST on top.
	if !entry.TotalAmount.Equal(decimal.NewFromInt(7500)) {
		t.Fatalf("TotalAmount = %s, want 7500", entry.TotalAmount)
	}
	if !entry.GstAmount.Equal(decimal.NewFromInt(375)) {
		t.Fatalf("GstAmount = %s, want 375", entry.GstAmount)
	}
	if !entry.GrandTotal.Equal(decimal.NewFromInt(7875)) {
		t.Fatalf("GrandTotal = %s, want 7875", entry.GrandTotal)
	}

	// Recomputing with identical inputs on an unchanged log is idempotent.
	again, err := models.UpsertBillingEntry(ctx, logId, entryInput)
	if err != nil {
		t.Fatalf("idempotent re-upsert: %v", err)
	}
	if again.ID != entry.ID ||
		!again.TotalAmount.Equal(entry.TotalAmount) ||
		!again.GstAmount.Equal(entry.GstAmount) ||
		!again.GrandTotal.Equal(entry.GrandTotal) {
		t.Fatalf("idempotent re-upsert drifted: %+v vs %+v", again, entry)
	}

	disabled, err := models.SetGSTEnabled(ctx, entry.ID, false)
	if err != nil {
		t.Fatalf("SetGSTEnabled(false): %v", err)
	}
	if disabled.GstEnabled {
		t.Fatal("GST still enabled after disabling")
	}
	if !disabled.GstAmount.IsZero() || !disabled.GrandTotal.Equal(disabled.TotalAmount) {
		t.Fatalf("disabled amounts: gst=%s grand=%s total=%s", disabled.GstAmount, disabled.GrandTotal, disabled.TotalAmount)
	}

	// A retried request carries the same flag and must not flip it back.
	retried, err := models.SetGSTEnabled(ctx, entry.ID, false)
	if err != nil {
		t.Fatalf("retried SetGSTEnabled(false): %v", err)
	}
	if retried.GstEnabled || !retried.GstAmount.IsZero() {
		t.Fatalf("retry flipped GST: enabled=%v gst=%s", retried.GstEnabled, retried.GstAmount)
	}

	// Re-upsert with a corrected price must reuse the same row.
	entryInput.PricePerUnit = decimal.NewFromInt(1000)
	updated, err := models.UpsertBillingEntry(ctx, logId, entryInput)
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if updated.ID != entry.ID {
		t.Fatalf("re-upsert created a new entry: %d vs %d", updated.ID, entry.ID)
	}
	if !updated.TotalAmount.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("updated TotalAmount = %s, want 6000", updated.TotalAmount)
	}

	unbilled, err := models.ListUnbilledLogs(ctx, captured.Log.LogDate)
	if err != nil {
		t.Fatalf("ListUnbilledLogs: %v", err)
	}
	for _, l := range unbilled {
		if l.ID == logId {
			t.Fatal("billed log still listed as unbilled")
		}
	}
}
