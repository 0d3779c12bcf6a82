package models

import (
	"errors"
	"testing"

	"github.com/thukatech/restock_backend/utils"
)

func TestDeriveLogStatus(t *testing.T) {
	cases := []struct {
		name string
		log  DailyLog
		want LogStatus
	}{
		{
			name: "fresh order",
			log:  DailyLog{OrderedQty: QuantityMap{"S": 5}},
			want: LogStatusOrdered,
		},
		{
			name: "partial pick",
			log:  DailyLog{OrderedQty: QuantityMap{"S": 5}, PickedQty: QuantityMap{"S": 3}},
			want: LogStatusPickedPartial,
		},
		{
			name: "full pick",
			log:  DailyLog{OrderedQty: QuantityMap{"S": 5}, PickedQty: QuantityMap{"S": 5}},
			want: LogStatusPickedFull,
		},
		{
			name: "dispatched",
			log: DailyLog{
				OrderedQty:    QuantityMap{"S": 5},
				PickedQty:     QuantityMap{"S": 5},
				DispatchedQty: QuantityMap{"S": 5},
			},
			want: LogStatusDispatched,
		},
		{
			name: "received short",
			log: DailyLog{
				OrderedQty:    QuantityMap{"S": 5},
				PickedQty:     QuantityMap{"S": 5},
				DispatchedQty: QuantityMap{"S": 5},
				ReceivedQty:   QuantityMap{"S": 4},
			},
			want: LogStatusReceivedPartial,
		},
		{
			name: "received everything picked",
			log: DailyLog{
				OrderedQty:    QuantityMap{"S": 8},
				PickedQty:     QuantityMap{"S": 5},
				DispatchedQty: QuantityMap{"S": 5},
				ReceivedQty:   QuantityMap{"S": 5},
			},
			// Completeness is judged against the picked total, not the
			// original order: what was never picked cannot arrive.
			want: LogStatusReceivedFull,
		},
		{
			name: "received more than picked",
			log: DailyLog{
				OrderedQty:    QuantityMap{"S": 5},
				PickedQty:     QuantityMap{"S": 5},
				DispatchedQty: QuantityMap{"S": 5},
				ReceivedQty:   QuantityMap{"S": 6},
			},
			want: LogStatusReceivedFull,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := deriveLogStatus(&tc.log); got != tc.want {
				t.Fatalf("deriveLogStatus = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsActiveForPickup(t *testing.T) {
	open := DailyLog{
		Status:     LogStatusOrdered,
		OrderedQty: QuantityMap{"S": 5},
	}
	if !open.IsActiveForPickup() {
		t.Fatal("ordered log with remainder should be active for pickup")
	}

	dispatched := DailyLog{
		Status:        LogStatusDispatched,
		OrderedQty:    QuantityMap{"S": 5},
		DispatchedQty: QuantityMap{"S": 5},
	}
	if dispatched.IsActiveForPickup() {
		t.Fatal("dispatched log must not be active for pickup")
	}
}

func TestValidatePickedQuantities(t *testing.T) {
	ordered := QuantityMap{"S": 5, "M": 3}

	cases := []struct {
		name   string
		picked QuantityMap
		wantOk bool
	}{
		{"exact", QuantityMap{"S": 5, "M": 3}, true},
		{"partial", QuantityMap{"S": 2}, true},
		{"over one key", QuantityMap{"S": 6}, false},
		{"mixed over and under", QuantityMap{"S": 7, "M": 1}, false},
		{"unknown key", QuantityMap{"L": 1}, false},
		{"zero on unknown key", QuantityMap{"L": 0}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePickedQuantities(ordered, tc.picked)
			if tc.wantOk && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.wantOk {
				var vErr *utils.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("want ValidationError, got %v", err)
				}
			}
		})
	}
}
