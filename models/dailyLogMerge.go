package models

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
)

// MergeLogs folds the source log into the target and deletes the source.
// Quantities are summed per size key; an unsized side collapses into the
// Total bucket of a sized target. The merged log reopens as ordered so it
// reappears on the pickup worklist.
func MergeLogs(ctx context.Context, targetId int, sourceId int) (*DailyLog, error) {
	if targetId == sourceId {
		return nil, &utils.InvalidMergeError{Reason: "cannot merge a log into itself"}
	}

	db := config.GetDB()
	var result *DailyLog
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := utils.FetchModelTx[DailyLog](tx, targetId)
		if err != nil {
			return err
		}
		source, err := utils.FetchModelTx[DailyLog](tx, sourceId)
		if err != nil {
			return err
		}
		if source.OrderedQty.Sum() <= 0 {
			return &utils.InvalidMergeError{Reason: "source log has zero quantity"}
		}
		readVersion := target.Version

		target.HasSizes = target.HasSizes || source.HasSizes
		merged := normalizeQuantities(target.OrderedQty, target.HasSizes).
			AddAll(normalizeQuantities(source.OrderedQty, target.HasSizes)).
			WithoutZeros()
		target.OrderedQty = merged
		target.Status = LogStatusOrdered
		if target.SupplierId == 0 {
			target.SupplierId = source.SupplierId
		}
		if target.Price.IsZero() {
			target.Price = source.Price
		}
		if strings.TrimSpace(source.Notes) != "" {
			note := fmt.Sprintf("[MERGED: %s]", strings.TrimSpace(source.Notes))
			if strings.TrimSpace(target.Notes) == "" {
				target.Notes = note
			} else {
				target.Notes = target.Notes + " " + note
			}
		}

		if err := updateDailyLogTx(tx, target, readVersion); err != nil {
			return err
		}
		if err := tx.Delete(&DailyLog{}, source.ID).Error; err != nil {
			return utils.NewPersistenceError(err)
		}

		details := fmt.Sprintf("merged log #%d of %s (%s) into %s, combined order %s",
			source.ID, source.LogDate, source.OrderedQty.Describe(), target.LogDate, merged.Describe())
		if err := appendLogHistory(tx, target.ID, LogActionMergedEntries, details); err != nil {
			return err
		}
		if err := writeSyncOutbox(tx, "dailyLogs", target.ID, SyncActionUpdate, target); err != nil {
			return err
		}
		if err := writeSyncOutbox(tx, "dailyLogs", source.ID, SyncActionDelete, nil); err != nil {
			return err
		}
		result = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InvalidateSummaryCaches()
	return result, nil
}

// DuplicateLogGroup is a set of active logs sharing a product and supplier,
// offered to the user as merge candidates.
type DuplicateLogGroup struct {
	ProductId  int         `json:"product_id"`
	SupplierId int         `json:"supplier_id"`
	Logs       []*DailyLog `json:"logs"`
}

// DuplicateLogGroups scans a date's active logs for likely duplicates. The
// suggestion is advisory only; merging stays a manual decision.
func DuplicateLogGroups(ctx context.Context, date string) ([]*DuplicateLogGroup, error) {
	if !config.AutoMergeSuggestionsEnabled() {
		return nil, nil
	}
	date, err := validateLogDate(date)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var logs []*DailyLog
	if err := db.WithContext(ctx).
		Where("log_date = ? AND status IN ?", date, activeStatuses).
		Order("id ASC").
		Find(&logs).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}

	type groupKey struct {
		productId  int
		supplierId int
	}
	grouped := map[groupKey][]*DailyLog{}
	order := []groupKey{}
	for _, l := range logs {
		key := groupKey{productId: l.ProductId, supplierId: l.SupplierId}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], l)
	}

	var groups []*DuplicateLogGroup
	for _, key := range order {
		members := grouped[key]
		if len(members) < 2 {
			continue
		}
		groups = append(groups, &DuplicateLogGroup{
			ProductId:  key.productId,
			SupplierId: key.supplierId,
			Logs:       members,
		})
	}
	return groups, nil
}
