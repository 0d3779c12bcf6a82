package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
)

// GstRate is the goods and services tax applied when billing has GST turned
// on. Fixed at 5%.
var GstRate = decimal.NewFromFloat(0.05)

// BillingEntry settles a received log against the supplier. One entry per
// log; re-submitting replaces the amounts.
type BillingEntry struct {
	ID           int             `gorm:"primary_key" json:"id"`
	LogId        int             `gorm:"uniqueIndex;not null" json:"log_id"`
	PricePerUnit decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price_per_unit"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_amount"`
	GstEnabled   bool            `gorm:"not null;default:false" json:"gst_enabled"`
	GstAmount    decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"gst_amount"`
	GrandTotal   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"grand_total"`
	Notes        string          `gorm:"type:text" json:"notes"`
	Proofs       []BillingProof  `gorm:"foreignKey:BillingEntryId" json:"proofs"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BillingProof is an uploaded invoice or receipt photo attached to an entry.
type BillingProof struct {
	ID             int              `gorm:"primary_key" json:"id"`
	BillingEntryId int              `gorm:"index;not null" json:"billing_entry_id"`
	Kind           BillingProofKind `gorm:"type:enum('invoice','receipt','other');not null;default:'other'" json:"kind"`
	Url            string           `gorm:"size:500;not null" json:"url"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// NewBillingEntry is the settlement input.
type NewBillingEntry struct {
	PricePerUnit decimal.Decimal `json:"price_per_unit" binding:"required"`
	GstEnabled   bool            `json:"gst_enabled"`
	Notes        string          `json:"notes"`
}

func computeBillingAmounts(entry *BillingEntry, receivedTotal int) {
	entry.TotalAmount = entry.PricePerUnit.Mul(decimal.NewFromInt(int64(receivedTotal))).Round(2)
	if entry.GstEnabled {
		entry.GstAmount = entry.TotalAmount.Mul(GstRate).Round(2)
	} else {
		entry.GstAmount = decimal.Zero
	}
	entry.GrandTotal = entry.TotalAmount.Add(entry.GstAmount)
}

// UpsertBillingEntry creates or replaces the billing entry for a received
// log. The amount is the received total times the unit price, so a recount
// followed by re-billing settles on what actually arrived.
func UpsertBillingEntry(ctx context.Context, logId int, input *NewBillingEntry) (*BillingEntry, error) {
	if input.PricePerUnit.IsNegative() {
		return nil, &utils.ValidationError{Field: "price_per_unit", Reason: "must not be negative"}
	}

	db := config.GetDB()
	var result *BillingEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		log, err := utils.FetchModelTx[DailyLog](tx, logId)
		if err != nil {
			return err
		}
		if !log.Status.IsReceived() {
			return &utils.InvalidStateError{Op: "billing", Status: string(log.Status)}
		}
		receivedTotal := log.ReceivedQty.Sum()

		var entry BillingEntry
		findErr := tx.Where("log_id = ?", logId).First(&entry).Error
		if findErr != nil && findErr != gorm.ErrRecordNotFound {
			return utils.NewPersistenceError(findErr)
		}

		entry.LogId = logId
		entry.PricePerUnit = input.PricePerUnit
		entry.GstEnabled = input.GstEnabled
		entry.Notes = input.Notes
		computeBillingAmounts(&entry, receivedTotal)

		if err := tx.Save(&entry).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		if err := writeSyncOutbox(tx, "billingEntries", entry.ID, SyncActionUpdate, &entry); err != nil {
			return err
		}
		result = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetGSTEnabled writes the GST flag and recomputes the tax from the stored
// total. A setter rather than a flip so a retried request cannot undo itself.
func SetGSTEnabled(ctx context.Context, entryId int, enabled bool) (*BillingEntry, error) {
	db := config.GetDB()

	var result *BillingEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := utils.FetchModelTx[BillingEntry](tx, entryId)
		if err != nil {
			return err
		}
		entry.GstEnabled = enabled
		if entry.GstEnabled {
			entry.GstAmount = entry.TotalAmount.Mul(GstRate).Round(2)
		} else {
			entry.GstAmount = decimal.Zero
		}
		entry.GrandTotal = entry.TotalAmount.Add(entry.GstAmount)

		if err := tx.Save(entry).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		if err := writeSyncOutbox(tx, "billingEntries", entry.ID, SyncActionUpdate, entry); err != nil {
			return err
		}
		result = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AttachBillingProof links an uploaded invoice or receipt to an entry.
func AttachBillingProof(ctx context.Context, entryId int, kind BillingProofKind, url string) (*BillingProof, error) {
	if strings.TrimSpace(url) == "" {
		return nil, &utils.ValidationError{Field: "url", Reason: "must not be blank"}
	}
	if !kind.IsValid() {
		return nil, &utils.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown proof kind %q", kind)}
	}

	db := config.GetDB()
	var result *BillingProof
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := utils.ValidateResourceId[BillingEntry](ctx, entryId); err != nil {
			return err
		}
		proof := BillingProof{
			BillingEntryId: entryId,
			Kind:           kind,
			Url:            url,
		}
		if err := tx.Create(&proof).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		result = &proof
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetBillingEntryByLog loads the settlement for a log, proofs included.
func GetBillingEntryByLog(ctx context.Context, logId int) (*BillingEntry, error) {
	db := config.GetDB()
	var entry BillingEntry
	err := db.WithContext(ctx).Preload("Proofs").Where("log_id = ?", logId).First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, utils.NewPersistenceError(err)
	}
	return &entry, nil
}

// ListUnbilledLogs returns received logs with no billing entry yet, the
// reconciliation worklist.
func ListUnbilledLogs(ctx context.Context, date string) ([]*DailyLog, error) {
	date, err := validateLogDate(date)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	var logs []*DailyLog
	err = db.WithContext(ctx).
		Where("log_date = ? AND status IN ?", date,
			[]LogStatus{LogStatusReceivedPartial, LogStatusReceivedFull}).
		Where("id NOT IN (?)", db.Model(&BillingEntry{}).Select("log_id")).
		Order("id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, utils.NewPersistenceError(err)
	}
	return logs, nil
}

// DeleteBillingEntry removes a settlement and its proofs.
func DeleteBillingEntry(ctx context.Context, entryId int) error {
	db := config.GetDB()
	var proofs []BillingProof
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := utils.ValidateResourceId[BillingEntry](ctx, entryId); err != nil {
			return err
		}
		if err := tx.Where("billing_entry_id = ?", entryId).Find(&proofs).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		if err := tx.Where("billing_entry_id = ?", entryId).Delete(&BillingProof{}).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		if err := tx.Delete(&BillingEntry{}, entryId).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		return writeSyncOutbox(tx, "billingEntries", entryId, SyncActionDelete, nil)
	})
	if err != nil {
		return err
	}

	for _, proof := range proofs {
		if key := utils.ExtractObjectKeyFromURL(proof.Url); key != "" {
			if err := utils.DeleteObject(ctx, key); err != nil {
				logger := config.GetLogger()
				config.LogError(logger, "models", "DeleteBillingEntry", "delete proof object", key, err)
			}
		}
	}
	return nil
}
