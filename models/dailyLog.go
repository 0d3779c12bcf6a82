package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
	"gorm.io/gorm"
)

// DailyLog is the central mutable entity: one purchase/pickup/receiving
// cycle of one product on one day.
//
// Quantity semantics:
//   - OrderedQty is the ask; only a partial-dispatch split ever decrements it.
//   - PickedQty holds the last confirmed pickup amounts.
//   - DispatchedQty is the cumulative amount sent onward; per key it never
//     exceeds OrderedQty (the split keeps dispatched batches exact).
//   - ReceivedQty is what the warehouse confirmed.
//
// Version makes lifecycle writes conditional: two clients racing on the
// same log cannot silently overwrite each other.
type DailyLog struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ProductId      int             `gorm:"index;not null" json:"product_id"`
	SupplierId     int             `gorm:"index;default:0" json:"supplier_id"`
	LogDate        string          `gorm:"size:10;index;not null" json:"log_date"`
	HasSizes       bool            `gorm:"not null;default:false" json:"has_sizes"`
	OrderedQty     QuantityMap     `gorm:"type:json" json:"ordered_qty"`
	PickedQty      QuantityMap     `gorm:"type:json" json:"picked_qty"`
	DispatchedQty  QuantityMap     `gorm:"type:json" json:"dispatched_qty"`
	ReceivedQty    QuantityMap     `gorm:"type:json" json:"received_qty"`
	Price          decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"price"`
	Status         LogStatus       `gorm:"type:enum('ordered','picked_partial','picked_full','dispatched','received_partial','received_full','discrepancy');not null;default:'ordered'" json:"status"`
	Notes          string          `gorm:"type:text" json:"notes"`
	PickupProofUrl string          `gorm:"size:500" json:"pickup_proof_url"`
	Version        int             `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActiveForPickup mirrors the worklist rule: open status and an
// undispatched remainder.
func (l *DailyLog) IsActiveForPickup() bool {
	return l.Status.IsActiveForPickup() && l.OrderedQty.Sum() > l.DispatchedQty.Sum()
}

// deriveLogStatus is the single place status is computed from the quantity
// maps. Every lifecycle mutation ends by writing its result; the two merge
// paths (order merge, manual merge) override it with ordered because a
// merge always reopens the entry for pickup, and FlagDiscrepancy writes
// the manual discrepancy status directly (no transition produces it).
func deriveLogStatus(l *DailyLog) LogStatus {
	if len(l.ReceivedQty) > 0 {
		if l.ReceivedQty.Sum() >= l.PickedQty.Sum() {
			return LogStatusReceivedFull
		}
		return LogStatusReceivedPartial
	}
	if l.DispatchedQty.Sum() > 0 {
		return LogStatusDispatched
	}
	if l.PickedQty.Sum() > 0 {
		if l.PickedQty.Sum() >= l.OrderedQty.Sum() {
			return LogStatusPickedFull
		}
		return LogStatusPickedPartial
	}
	return LogStatusOrdered
}

// updateDailyLogTx writes the full log conditionally on the version the
// caller read. A lost race returns ErrorConcurrentModification; the caller
// re-reads and recomputes.
func updateDailyLogTx(tx *gorm.DB, log *DailyLog, readVersion int) error {
	log.Version = readVersion + 1
	res := tx.Model(&DailyLog{}).
		Where("id = ? AND version = ?", log.ID, readVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(log)
	if res.Error != nil {
		return utils.NewPersistenceError(res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrorConcurrentModification
	}
	return nil
}

func todayLogDate() string {
	return time.Now().UTC().Format("2006-01-02")
}

func validateLogDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return todayLogDate(), nil
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", &utils.ValidationError{Field: "date", Reason: "want YYYY-MM-DD"}
	}
	return date, nil
}

func GetDailyLog(ctx context.Context, id int) (*DailyLog, error) {
	return utils.FetchModel[DailyLog](ctx, id)
}

// ListDailyLogs returns all logs for a date, newest first. Empty date means
// today.
func ListDailyLogs(ctx context.Context, date string) ([]*DailyLog, error) {
	date, err := validateLogDate(date)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var results []*DailyLog
	if err := db.WithContext(ctx).
		Where("log_date = ?", date).
		Order("id DESC").
		Find(&results).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}
	return results, nil
}

// ListActivePickupLogs feeds the field worker's pickup worklist.
func ListActivePickupLogs(ctx context.Context, date string) ([]*DailyLog, error) {
	logs, err := ListDailyLogs(ctx, date)
	if err != nil {
		return nil, err
	}
	var active []*DailyLog
	for _, l := range logs {
		if l.IsActiveForPickup() {
			active = append(active, l)
		}
	}
	return active, nil
}

// FlagDiscrepancy marks a dispatched log whose receipt is disputed. This is
// the only transition into the discrepancy status, and it is manual.
func FlagDiscrepancy(ctx context.Context, id int, reason string) (*DailyLog, error) {
	db := config.GetDB()

	var result *DailyLog
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		log, err := utils.FetchModelTx[DailyLog](tx, id)
		if err != nil {
			return err
		}
		if log.Status != LogStatusDispatched && !log.Status.IsReceived() {
			return &utils.InvalidStateError{Op: "flag discrepancy", Status: string(log.Status)}
		}
		readVersion := log.Version
		log.Status = LogStatusDiscrepancy

		if err := updateDailyLogTx(tx, log, readVersion); err != nil {
			return err
		}
		details := "flagged"
		if strings.TrimSpace(reason) != "" {
			details = strings.TrimSpace(reason)
		}
		if err := appendLogHistory(tx, log.ID, LogActionFlagDiscrepancy, details); err != nil {
			return err
		}
		if err := writeSyncOutbox(tx, "dailyLogs", log.ID, SyncActionUpdate, log); err != nil {
			return err
		}
		result = log
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InvalidateSummaryCaches()
	return result, nil
}

// DeleteDailyLog hard-deletes a log by explicit admin action. The ledger
// keeps a tombstone entry: ledger rows reference the log id but are not
// foreign-keyed, so the trail survives the delete.
func DeleteDailyLog(ctx context.Context, id int) (*DailyLog, error) {
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); !isAdmin {
		return nil, &utils.InvalidStateError{Op: "delete log", Status: "requires admin"}
	}

	db := config.GetDB()
	var result *DailyLog
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		log, err := utils.FetchModelTx[DailyLog](tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(&DailyLog{}, id).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		details := fmt.Sprintf("deleted with ordered %s", log.OrderedQty.Describe())
		if err := appendLogHistory(tx, id, LogActionDeleted, details); err != nil {
			return err
		}
		if err := writeSyncOutbox(tx, "dailyLogs", id, SyncActionDelete, log); err != nil {
			return err
		}
		result = log
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Proof photos belong to this log alone; product images stay shared.
	if key := utils.ExtractObjectKeyFromURL(result.PickupProofUrl); key != "" {
		if err := utils.DeleteObject(ctx, key); err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "models", "DeleteDailyLog", "delete proof object", key, err)
		}
	}

	utils.InvalidateSummaryCaches()
	return result, nil
}
