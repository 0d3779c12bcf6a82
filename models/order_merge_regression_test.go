package models_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/models"
	"github.com/thukatech/restock_backend/utils"
)

func TestOrderCaptureMergesSameProductSameDay(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	hash := strings.Repeat("c3", 32)

	first, err := models.CreateOrMergeOrder(ctx, &models.NewOrder{
		ImageHash:  hash,
		Quantities: models.QuantityMap{"S": 5},
		HasSizes:   true,
	})
	if err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if first.Merged {
		t.Fatal("first capture must create, not merge")
	}

	second, err := models.CreateOrMergeOrder(ctx, &models.NewOrder{
		ImageHash:  hash,
		Quantities: models.QuantityMap{"S": 2, "M": 3},
		HasSizes:   true,
	})
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}
	if !second.Merged {
		t.Fatal("same product, same day must merge")
	}
	if second.Log.ID != first.Log.ID {
		t.Fatalf("merge created a new log: %d vs %d", second.Log.ID, first.Log.ID)
	}
	if second.Log.OrderedQty["S"] != 7 || second.Log.OrderedQty["M"] != 3 {
		t.Fatalf("merged orderedQty = %v", second.Log.OrderedQty)
	}
	if second.Log.Status != models.LogStatusOrdered {
		t.Fatalf("merged status = %q, want ordered", second.Log.Status)
	}

	history, err := models.GetLogHistory(ctx, first.Log.ID)
	if err != nil {
		t.Fatalf("GetLogHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Action != models.LogActionCreated || history[1].Action != models.LogActionUpdatedOrder {
		t.Fatalf("history actions = %q, %q", history[0].Action, history[1].Action)
	}

	// A dispatched log for the same product must NOT absorb a new order.
	if _, err := models.ProcessPickup(ctx, first.Log.ID, &models.PickupInput{
		PickedAmounts: models.QuantityMap{"S": 7, "M": 3},
	}); err != nil {
		t.Fatalf("ProcessPickup: %v", err)
	}
	third, err := models.CreateOrMergeOrder(ctx, &models.NewOrder{
		ImageHash:  hash,
		Quantities: models.QuantityMap{"S": 4},
		HasSizes:   true,
	})
	if err != nil {
		t.Fatalf("third capture: %v", err)
	}
	if third.Merged {
		t.Fatal("capture after dispatch must open a fresh log")
	}
	if third.Log.ID == first.Log.ID {
		t.Fatal("fresh log reused the dispatched id")
	}
}

func TestMergeLogsFoldsAndDeletesSource(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	target, err := models.CreateOrMergeOrder(ctx, &models.NewOrder{
		ImageHash:  strings.Repeat("d4", 32),
		Quantities: models.QuantityMap{"S": 5, "M": 3},
		HasSizes:   true,
		Notes:      "front rack",
	})
	if err != nil {
		t.Fatalf("target capture: %v", err)
	}
	source, err := models.CreateOrMergeOrder(ctx, &models.NewOrder{
		ImageHash:  strings.Repeat("e5", 32),
		Quantities: models.QuantityMap{"Total": 4},
		Notes:      "duplicate snap",
		Price:      decimal.NewFromInt(3000),
	})
	if err != nil {
		t.Fatalf("source capture: %v", err)
	}

	merged, err := models.MergeLogs(ctx, target.Log.ID, source.Log.ID)
	if err != nil {
		t.Fatalf("MergeLogs: %v", err)
	}

	// Per-key sums with the unsized source folded into the Total bucket.
	if merged.OrderedQty["S"] != 5 || merged.OrderedQty["M"] != 3 || merged.OrderedQty[models.TotalSizeKey] != 4 {
		t.Fatalf("merged orderedQty = %v", merged.OrderedQty)
	}
	if got := merged.OrderedQty.Sum(); got != 12 {
		t.Fatalf("merged sum = %d, want 12", got)
	}
	if merged.Status != models.LogStatusOrdered {
		t.Fatalf("merged status = %q, want ordered", merged.Status)
	}
	if !strings.Contains(merged.Notes, "[MERGED: duplicate snap]") {
		t.Fatalf("merged notes = %q", merged.Notes)
	}

	if _, err := models.GetDailyLog(ctx, source.Log.ID); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("source log still readable: %v", err)
	}

	history, err := models.GetLogHistory(ctx, merged.ID)
	if err != nil {
		t.Fatalf("GetLogHistory: %v", err)
	}
	last := history[len(history)-1]
	if last.Action != models.LogActionMergedEntries {
		t.Fatalf("last action = %q, want merged_entries", last.Action)
	}
	if !strings.Contains(last.Details, merged.LogDate) {
		t.Fatalf("merge history %q missing the log dates", last.Details)
	}
}

func TestMergeLogsRejectsZeroQuantitySource(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	target, err := models.CreateOrMergeOrder(ctx, &models.NewOrder{
		ImageHash:  strings.Repeat("f6", 32),
		Quantities: models.QuantityMap{"Total": 5},
	})
	if err != nil {
		t.Fatalf("target capture: %v", err)
	}

	var mergeErr *utils.InvalidMergeError
	_, err = models.MergeLogs(ctx, target.Log.ID, target.Log.ID)
	if !errors.As(err, &mergeErr) {
		t.Fatalf("self-merge: want InvalidMergeError, got %v", err)
	}

	// A missing log is a lookup failure, not a merge-rule violation.
	_, err = models.MergeLogs(ctx, target.Log.ID, 999999)
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("missing source: want record not found, got %v", err)
	}
	_, err = models.MergeLogs(ctx, 999999, target.Log.ID)
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("missing target: want record not found, got %v", err)
	}

	// Order capture refuses zero-sum quantities, so seed the row directly.
	source := models.DailyLog{
		ProductId:  target.Product.ID,
		LogDate:    target.Log.LogDate,
		OrderedQty: models.QuantityMap{},
		Status:     models.LogStatusOrdered,
	}
	if err := config.GetDB().WithContext(ctx).Create(&source).Error; err != nil {
		t.Fatalf("seed zero-quantity source: %v", err)
	}
	_, err = models.MergeLogs(ctx, target.Log.ID, source.ID)
	if !errors.As(err, &mergeErr) {
		t.Fatalf("zero-quantity source: want InvalidMergeError, got %v", err)
	}

	unchanged, err := models.GetDailyLog(ctx, target.Log.ID)
	if err != nil {
		t.Fatalf("GetDailyLog: %v", err)
	}
	if got := unchanged.OrderedQty.Sum(); got != 5 {
		t.Fatalf("failed merge mutated target: sum = %d, want 5", got)
	}
}
