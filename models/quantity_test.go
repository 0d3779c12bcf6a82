package models

import (
	"errors"
	"testing"

	"github.com/thukatech/restock_backend/utils"
)

func TestQuantityMapSumAndAdd(t *testing.T) {
	base := QuantityMap{"S": 5, "M": 3}
	add := QuantityMap{"M": 2, "L": 4}

	combined := base.AddAll(add)
	if got := combined.Sum(); got != 14 {
		t.Fatalf("Sum = %d, want 14", got)
	}
	if combined["M"] != 5 || combined["S"] != 5 || combined["L"] != 4 {
		t.Fatalf("AddAll = %v", combined)
	}
	// AddAll must not mutate its receiver.
	if base["M"] != 3 || base.Sum() != 8 {
		t.Fatalf("receiver mutated: %v", base)
	}
}

func TestQuantityMapWithoutZeros(t *testing.T) {
	m := QuantityMap{"S": 2, "M": 0, "L": -1}
	pruned := m.WithoutZeros()
	if len(pruned) != 1 || pruned["S"] != 2 {
		t.Fatalf("WithoutZeros = %v", pruned)
	}
}

func TestQuantityMapDescribeOrdersTotalLast(t *testing.T) {
	m := QuantityMap{TotalSizeKey: 7, "M": 3, "S": 5}
	if got := m.Describe(); got != "M:3, S:5, Total:7" {
		t.Fatalf("Describe = %q", got)
	}
	if got := (QuantityMap{}).Describe(); got != "none" {
		t.Fatalf("empty Describe = %q", got)
	}
}

func TestQuantityMapValidate(t *testing.T) {
	if err := (QuantityMap{"S": 2, "M": 0}).Validate(); err != nil {
		t.Fatalf("valid map rejected: %v", err)
	}

	var validationErr *utils.ValidationError
	err := (QuantityMap{"S": -1}).Validate()
	if err == nil {
		t.Fatal("negative quantity accepted")
	}
	if !errors.As(err, &validationErr) {
		t.Fatalf("want ValidationError, got %T", err)
	}

	if err := (QuantityMap{" ": 1}).Validate(); err == nil {
		t.Fatal("blank size key accepted")
	}
}

func TestNormalizeQuantities(t *testing.T) {
	sized := normalizeQuantities(QuantityMap{"S": 5, "M": 0}, true)
	if len(sized) != 1 || sized["S"] != 5 {
		t.Fatalf("sized normalize = %v", sized)
	}

	unsized := normalizeQuantities(QuantityMap{"S": 5, "M": 3}, false)
	if len(unsized) != 1 || unsized[TotalSizeKey] != 8 {
		t.Fatalf("unsized normalize = %v", unsized)
	}

	empty := normalizeQuantities(QuantityMap{}, false)
	if empty.Sum() != 0 || len(empty) != 0 {
		t.Fatalf("empty normalize = %v", empty)
	}
}
