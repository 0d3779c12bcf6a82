package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
)

// NewOrder is the order-capture input. The photo is uploaded first; the
// handler passes the stored URLs and the perceptual hash down here.
type NewOrder struct {
	ImageUrl      string          `json:"image_url"`
	ThumbnailUrl  string          `json:"thumbnail_url"`
	ImageHash     string          `json:"image_hash" binding:"required"`
	Quantities    QuantityMap     `json:"quantities" binding:"required"`
	HasSizes      bool            `json:"has_sizes"`
	SupplierName  string          `json:"supplier_name"`
	SupplierPhone string          `json:"supplier_phone"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	LogDate       string          `json:"log_date"`
	Notes         string          `json:"notes"`
}

// OrderResult reports whether capture created a fresh log or merged into an
// existing one for the same product and day.
type OrderResult struct {
	Log      *DailyLog `json:"log"`
	Product  *Product  `json:"product"`
	Supplier *Supplier `json:"supplier,omitempty"`
	Merged   bool      `json:"merged"`
}

// CreateOrMergeOrder captures an order. When an undispatched log for the
// same product already exists on the same date, the new quantities are added
// on top of its orderedQty and the log reopens as ordered instead of a
// duplicate row being created.
func CreateOrMergeOrder(ctx context.Context, input *NewOrder) (*OrderResult, error) {
	if err := input.Quantities.Validate(); err != nil {
		return nil, err
	}
	quantities := normalizeQuantities(input.Quantities, input.HasSizes)
	if quantities.Sum() <= 0 {
		return nil, &utils.ValidationError{Field: "quantities", Reason: "order total must be positive"}
	}
	logDate, err := validateLogDate(input.LogDate)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	result := &OrderResult{}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var supplier *Supplier
		if strings.TrimSpace(input.SupplierName) != "" {
			supplier, err = resolveSupplierTx(tx, input.SupplierName, input.SupplierPhone)
			if err != nil {
				return err
			}
			result.Supplier = supplier
		}

		supplierId := 0
		if supplier != nil {
			supplierId = supplier.ID
		}
		product, err := resolveProductTx(tx, &NewProduct{
			ImageUrl:     input.ImageUrl,
			ThumbnailUrl: input.ThumbnailUrl,
			ImageHash:    input.ImageHash,
			Description:  input.Description,
			Price:        input.Price,
			SupplierId:   supplierId,
		})
		if err != nil {
			return err
		}
		result.Product = product

		var existing DailyLog
		findErr := tx.Where("product_id = ? AND log_date = ? AND status IN ?",
			product.ID, logDate, activePickupStatuses).
			Order("id ASC").
			First(&existing).Error
		if findErr != nil && findErr != gorm.ErrRecordNotFound {
			return utils.NewPersistenceError(findErr)
		}

		if findErr == nil {
			readVersion := existing.Version
			existing.HasSizes = existing.HasSizes || input.HasSizes
			existing.OrderedQty = existing.OrderedQty.AddAll(
				normalizeQuantities(input.Quantities, existing.HasSizes))
			existing.Status = LogStatusOrdered
			if supplierId != 0 {
				existing.SupplierId = supplierId
			}
			if !input.Price.IsZero() {
				existing.Price = input.Price
			}
			if err := updateDailyLogTx(tx, &existing, readVersion); err != nil {
				return err
			}
			details := fmt.Sprintf("added %s, new order %s",
				quantities.Describe(), existing.OrderedQty.Describe())
			if err := appendLogHistory(tx, existing.ID, LogActionUpdatedOrder, details); err != nil {
				return err
			}
			if err := writeSyncOutbox(tx, "dailyLogs", existing.ID, SyncActionUpdate, &existing); err != nil {
				return err
			}
			result.Log = &existing
			result.Merged = true
			return nil
		}

		log := DailyLog{
			ProductId:     product.ID,
			SupplierId:    supplierId,
			LogDate:       logDate,
			HasSizes:      input.HasSizes,
			OrderedQty:    quantities,
			PickedQty:     QuantityMap{},
			DispatchedQty: QuantityMap{},
			ReceivedQty:   QuantityMap{},
			Price:         input.Price,
			Status:        LogStatusOrdered,
			Notes:         input.Notes,
		}
		if err := tx.Create(&log).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		details := fmt.Sprintf("ordered %s", quantities.Describe())
		if err := appendLogHistory(tx, log.ID, LogActionCreated, details); err != nil {
			return err
		}
		if err := writeSyncOutbox(tx, "dailyLogs", log.ID, SyncActionCreate, &log); err != nil {
			return err
		}
		result.Log = &log
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InvalidateSummaryCaches()
	return result, nil
}

// LogAdjustment edits an order before pickup starts.
type LogAdjustment struct {
	Quantities QuantityMap     `json:"quantities"`
	Price      decimal.Decimal `json:"price"`
	Notes      *string         `json:"notes"`
}

// AdjustLogDetails rewrites the ordered quantities, price, or notes of a log
// that has not been picked yet.
func AdjustLogDetails(ctx context.Context, id int, input *LogAdjustment) (*DailyLog, error) {
	db := config.GetDB()

	var result *DailyLog
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		log, err := utils.FetchModelTx[DailyLog](tx, id)
		if err != nil {
			return err
		}
		if log.Status != LogStatusOrdered {
			return &utils.InvalidStateError{Op: "edit order", Status: string(log.Status)}
		}
		readVersion := log.Version

		changes := []string{}
		if input.Quantities != nil {
			if err := input.Quantities.Validate(); err != nil {
				return err
			}
			quantities := normalizeQuantities(input.Quantities, log.HasSizes)
			if quantities.Sum() <= 0 {
				return &utils.ValidationError{Field: "quantities", Reason: "order total must be positive"}
			}
			log.OrderedQty = quantities
			changes = append(changes, fmt.Sprintf("order %s", quantities.Describe()))
		}
		if !input.Price.IsZero() {
			log.Price = input.Price
			changes = append(changes, fmt.Sprintf("price %s", input.Price.String()))
		}
		if input.Notes != nil {
			log.Notes = *input.Notes
			changes = append(changes, "notes")
		}
		if len(changes) == 0 {
			result = log
			return nil
		}

		if err := updateDailyLogTx(tx, log, readVersion); err != nil {
			return err
		}
		if err := appendLogHistory(tx, log.ID, LogActionEditedDetails, strings.Join(changes, "; ")); err != nil {
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

// PickupInput records a picker visit. A zero total means the supplier was
// visited but nothing was available.
type PickupInput struct {
	PickedAmounts QuantityMap     `json:"picked_amounts" binding:"required"`
	Notes         string          `json:"notes"`
	ProofUrl      string          `json:"proof_url"`
	Price         decimal.Decimal `json:"price"`
	SupplierName  string          `json:"supplier_name"`
	SupplierPhone string          `json:"supplier_phone"`
}

// PickupResult is the dispatched log plus the remainder log a partial pickup
// split off, when any.
type PickupResult struct {
	Log       *DailyLog `json:"log"`
	Remainder *DailyLog `json:"remainder,omitempty"`
}

// validatePickedQuantities enforces picked <= ordered per size key, keeping
// dispatched quantities within the order. Keys absent from the order count
// as ordered zero.
func validatePickedQuantities(ordered QuantityMap, picked QuantityMap) error {
	for key, qty := range picked {
		if qty > ordered[key] {
			return &utils.ValidationError{
				Field:  "picked_amounts",
				Reason: fmt.Sprintf("%s: picked %d exceeds ordered %d", key, qty, ordered[key]),
			}
		}
	}
	return nil
}

// ProcessPickup applies a picker visit. Picked goods are dispatched
// immediately; if any ordered quantity remains unpicked the log is split so
// the dispatched portion travels under the original id while a new log
// carries the remainder back onto the pickup worklist.
func ProcessPickup(ctx context.Context, id int, input *PickupInput) (*PickupResult, error) {
	if err := input.PickedAmounts.Validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	result := &PickupResult{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		log, err := utils.FetchModelTx[DailyLog](tx, id)
		if err != nil {
			return err
		}
		if !log.Status.IsActiveForPickup() {
			return &utils.InvalidStateError{Op: "pickup", Status: string(log.Status)}
		}
		readVersion := log.Version

		supplierId := log.SupplierId
		if strings.TrimSpace(input.SupplierName) != "" {
			supplier, err := resolveSupplierTx(tx, input.SupplierName, input.SupplierPhone)
			if err != nil {
				return err
			}
			supplierId = supplier.ID
		}

		picked := normalizeQuantities(input.PickedAmounts, log.HasSizes)
		if picked.Sum() == 0 {
			details := "visited, nothing picked"
			if strings.TrimSpace(input.Notes) != "" {
				details = fmt.Sprintf("%s: %s", details, strings.TrimSpace(input.Notes))
			}
			if err := appendLogHistory(tx, log.ID, LogActionVisitedZero, details); err != nil {
				return err
			}
			if err := writeSyncOutbox(tx, "dailyLogs", log.ID, SyncActionUpdate, log); err != nil {
				return err
			}
			result.Log = log
			return nil
		}

		if err := validatePickedQuantities(log.OrderedQty, picked); err != nil {
			return err
		}

		remainder := QuantityMap{}
		for key, ordered := range log.OrderedQty {
			if rest := ordered - picked[key]; rest > 0 {
				remainder[key] = rest
			}
		}

		originalOrdered := log.OrderedQty
		log.SupplierId = supplierId
		if !input.Price.IsZero() {
			log.Price = input.Price
		}
		if strings.TrimSpace(input.Notes) != "" {
			log.Notes = input.Notes
		}
		if strings.TrimSpace(input.ProofUrl) != "" {
			log.PickupProofUrl = input.ProofUrl
		}
		log.PickedQty = picked
		log.DispatchedQty = picked
		log.ReceivedQty = QuantityMap{}

		if remainder.Sum() > 0 {
			// Split: the original id becomes the dispatched portion so
			// downstream references (receiving, billing) stay stable.
			log.OrderedQty = picked
			log.Status = deriveLogStatus(log)
			if err := updateDailyLogTx(tx, log, readVersion); err != nil {
				return err
			}

			rest := DailyLog{
				ProductId:     log.ProductId,
				SupplierId:    supplierId,
				LogDate:       log.LogDate,
				HasSizes:      log.HasSizes,
				OrderedQty:    remainder,
				PickedQty:     QuantityMap{},
				DispatchedQty: QuantityMap{},
				ReceivedQty:   QuantityMap{},
				Price:         log.Price,
				Status:        LogStatusOrdered,
			}
			if err := tx.Create(&rest).Error; err != nil {
				return utils.NewPersistenceError(err)
			}

			details := fmt.Sprintf("picked and dispatched %s of %s, remainder split to log #%d",
				picked.Describe(), originalOrdered.Describe(), rest.ID)
			if err := appendLogHistory(tx, log.ID, LogActionDispatched, details); err != nil {
				return err
			}
			restDetails := fmt.Sprintf("split from log #%d, original order %s, remainder %s",
				log.ID, originalOrdered.Describe(), remainder.Describe())
			if err := appendLogHistory(tx, rest.ID, LogActionSplitRemaining, restDetails); err != nil {
				return err
			}
			if err := writeSyncOutbox(tx, "dailyLogs", log.ID, SyncActionUpdate, log); err != nil {
				return err
			}
			if err := writeSyncOutbox(tx, "dailyLogs", rest.ID, SyncActionCreate, &rest); err != nil {
				return err
			}
			result.Remainder = &rest
		} else {
			log.Status = deriveLogStatus(log)
			if err := updateDailyLogTx(tx, log, readVersion); err != nil {
				return err
			}
			details := fmt.Sprintf("picked and dispatched %s", picked.Describe())
			if err := appendLogHistory(tx, log.ID, LogActionDispatched, details); err != nil {
				return err
			}
			if err := writeSyncOutbox(tx, "dailyLogs", log.ID, SyncActionUpdate, log); err != nil {
				return err
			}
		}

		if err := refreshLogProductMemoryTx(tx, log, supplierId, input.Price); err != nil {
			return err
		}
		result.Log = log
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InvalidateSummaryCaches()
	return result, nil
}

// ReceivingInput records what the warehouse counted on arrival.
type ReceivingInput struct {
	ReceivedAmounts QuantityMap     `json:"received_amounts" binding:"required"`
	Notes           string          `json:"notes"`
	Price           decimal.Decimal `json:"price"`
	SupplierName    string          `json:"supplier_name"`
	SupplierPhone   string          `json:"supplier_phone"`
}

// ProcessReceiving records the warehouse count against a dispatched log. The
// count replaces any earlier one, so a recount simply re-applies; receiving
// also clears a manual discrepancy flag.
func ProcessReceiving(ctx context.Context, id int, input *ReceivingInput) (*DailyLog, error) {
	if err := input.ReceivedAmounts.Validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var result *DailyLog
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		log, err := utils.FetchModelTx[DailyLog](tx, id)
		if err != nil {
			return err
		}
		switch {
		case log.Status == LogStatusDispatched,
			log.Status.IsReceived(),
			log.Status == LogStatusDiscrepancy:
		default:
			return &utils.InvalidStateError{Op: "receive", Status: string(log.Status)}
		}
		readVersion := log.Version

		supplierId := log.SupplierId
		if strings.TrimSpace(input.SupplierName) != "" {
			supplier, err := resolveSupplierTx(tx, input.SupplierName, input.SupplierPhone)
			if err != nil {
				return err
			}
			supplierId = supplier.ID
			log.SupplierId = supplierId
		}
		if !input.Price.IsZero() {
			log.Price = input.Price
		}
		if strings.TrimSpace(input.Notes) != "" {
			log.Notes = input.Notes
		}

		log.ReceivedQty = normalizeQuantities(input.ReceivedAmounts, log.HasSizes)
		log.Status = deriveLogStatus(log)
		if err := updateDailyLogTx(tx, log, readVersion); err != nil {
			return err
		}

		details := fmt.Sprintf("received %s of dispatched %s (%s)",
			log.ReceivedQty.Describe(), log.DispatchedQty.Describe(), log.Status)
		if err := appendLogHistory(tx, log.ID, LogActionReceived, details); err != nil {
			return err
		}
		if err := writeSyncOutbox(tx, "dailyLogs", log.ID, SyncActionUpdate, log); err != nil {
			return err
		}
		if err := refreshLogProductMemoryTx(tx, log, supplierId, input.Price); err != nil {
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

// refreshLogProductMemoryTx pushes supplier and price learned during pickup
// or receiving back onto the log's product.
func refreshLogProductMemoryTx(tx *gorm.DB, log *DailyLog, supplierId int, price decimal.Decimal) error {
	if supplierId == 0 && price.IsZero() {
		return nil
	}
	product, err := utils.FetchModelTx[Product](tx, log.ProductId)
	if err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil
		}
		return err
	}
	return refreshProductMemoryTx(tx, product, supplierId, price)
}
