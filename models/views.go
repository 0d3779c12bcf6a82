package models

import (
	"context"
	"fmt"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
)

// UnassignedSupplierName labels the summary bucket for logs captured without
// a supplier.
const UnassignedSupplierName = "Unassigned"

// SupplierSummary is one bucket of the supplier-grouped daily view.
type SupplierSummary struct {
	SupplierId     int         `json:"supplier_id"`
	SupplierName   string      `json:"supplier_name"`
	LogCount       int         `json:"log_count"`
	OrderedPieces  int         `json:"ordered_pieces"`
	ReceivedPieces int         `json:"received_pieces"`
	Logs           []*DailyLog `json:"logs"`
}

// DateSummary is one row of the calendar overview.
type DateSummary struct {
	Date           string            `json:"date"`
	LogCount       int               `json:"log_count"`
	ByStatus       map[LogStatus]int `json:"by_status"`
	OrderedPieces  int               `json:"ordered_pieces"`
	ReceivedPieces int               `json:"received_pieces"`
}

// GetSupplierSummaries groups a date's logs by supplier, with an Unassigned
// bucket for logs that never got one. Cached until the next log mutation.
func GetSupplierSummaries(ctx context.Context, date string) ([]*SupplierSummary, error) {
	date, err := validateLogDate(date)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("Summary:supplier:%s", date)
	var cached []*SupplierSummary
	if exists, err := config.GetRedisObject(cacheKey, &cached); err == nil && exists {
		return cached, nil
	}

	logs, err := ListDailyLogs(ctx, date)
	if err != nil {
		return nil, err
	}

	supplierIds := []int{}
	for _, l := range logs {
		if l.SupplierId != 0 {
			supplierIds = append(supplierIds, l.SupplierId)
		}
	}
	names := map[int]string{}
	if len(supplierIds) > 0 {
		db := config.GetDB()
		var suppliers []*Supplier
		if err := db.WithContext(ctx).
			Where("id IN ?", utils.UniqueSlice(supplierIds)).
			Find(&suppliers).Error; err != nil {
			return nil, utils.NewPersistenceError(err)
		}
		for _, s := range suppliers {
			names[s.ID] = s.Name
		}
	}

	grouped := map[int]*SupplierSummary{}
	order := []int{}
	for _, l := range logs {
		summary, seen := grouped[l.SupplierId]
		if !seen {
			name := names[l.SupplierId]
			if l.SupplierId == 0 || name == "" {
				name = UnassignedSupplierName
			}
			summary = &SupplierSummary{SupplierId: l.SupplierId, SupplierName: name}
			grouped[l.SupplierId] = summary
			order = append(order, l.SupplierId)
		}
		summary.LogCount++
		summary.OrderedPieces += l.OrderedQty.Sum()
		summary.ReceivedPieces += l.ReceivedQty.Sum()
		summary.Logs = append(summary.Logs, l)
	}

	results := make([]*SupplierSummary, 0, len(order))
	for _, id := range order {
		results = append(results, grouped[id])
	}

	config.SetRedisObject(cacheKey, &results, utils.GetCacheLifespan())
	return results, nil
}

// GetDateSummaries builds the calendar overview for an inclusive date range.
func GetDateSummaries(ctx context.Context, from string, to string) ([]*DateSummary, error) {
	from, err := validateLogDate(from)
	if err != nil {
		return nil, err
	}
	to, err = validateLogDate(to)
	if err != nil {
		return nil, err
	}
	if to < from {
		from, to = to, from
	}

	cacheKey := fmt.Sprintf("Summary:dates:%s:%s", from, to)
	var cached []*DateSummary
	if exists, err := config.GetRedisObject(cacheKey, &cached); err == nil && exists {
		return cached, nil
	}

	db := config.GetDB()
	var logs []*DailyLog
	if err := db.WithContext(ctx).
		Where("log_date BETWEEN ? AND ?", from, to).
		Order("log_date ASC, id ASC").
		Find(&logs).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}

	grouped := map[string]*DateSummary{}
	order := []string{}
	for _, l := range logs {
		summary, seen := grouped[l.LogDate]
		if !seen {
			summary = &DateSummary{Date: l.LogDate, ByStatus: map[LogStatus]int{}}
			grouped[l.LogDate] = summary
			order = append(order, l.LogDate)
		}
		summary.LogCount++
		summary.ByStatus[l.Status]++
		summary.OrderedPieces += l.OrderedQty.Sum()
		summary.ReceivedPieces += l.ReceivedQty.Sum()
	}

	results := make([]*DateSummary, 0, len(order))
	for _, date := range order {
		results = append(results, grouped[date])
	}

	config.SetRedisObject(cacheKey, &results, utils.GetCacheLifespan())
	return results, nil
}
