package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
)

// PurchaseOrderLine is a frozen copy of a log at snapshot time. Later edits
// to the log do not flow back into the purchase order.
type PurchaseOrderLine struct {
	LogId        int             `json:"log_id"`
	ProductId    int             `json:"product_id"`
	Description  string          `json:"description"`
	ThumbnailUrl string          `json:"thumbnail_url"`
	Quantities   QuantityMap     `json:"quantities"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
}

// PurchaseOrderLines is the JSON column holding the snapshot.
type PurchaseOrderLines []PurchaseOrderLine

func (l PurchaseOrderLines) Value() (driver.Value, error) {
	if l == nil {
		l = PurchaseOrderLines{}
	}
	return json.Marshal(l)
}

func (l *PurchaseOrderLines) Scan(value interface{}) error {
	if value == nil {
		*l = PurchaseOrderLines{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into PurchaseOrderLines", value)
	}
}

// PurchaseOrder is a per-supplier batch snapshot used to confirm an order
// with the supplier. It denormalizes everything it shows.
type PurchaseOrder struct {
	ID           int                 `gorm:"primary_key" json:"id"`
	SupplierId   int                 `gorm:"index;not null" json:"supplier_id"`
	SupplierName string              `gorm:"size:255;not null" json:"supplier_name"`
	OrderDate    string              `gorm:"size:10;index;not null" json:"order_date"`
	Status       PurchaseOrderStatus `gorm:"type:enum('draft','sent','closed');not null;default:'draft'" json:"status"`
	Lines        PurchaseOrderLines  `gorm:"type:json" json:"lines"`
	TotalPieces  int                 `gorm:"not null;default:0" json:"total_pieces"`
	TotalAmount  decimal.Decimal     `gorm:"type:decimal(20,2);default:0" json:"total_amount"`
	Notes        string              `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewPurchaseOrder names the logs to snapshot for one supplier.
type NewPurchaseOrder struct {
	SupplierId int    `json:"supplier_id" binding:"required"`
	LogIds     []int  `json:"log_ids" binding:"required"`
	Notes      string `json:"notes"`
}

// CreatePurchaseOrderFromLogs freezes the named logs into a supplier batch.
// All logs must belong to the supplier; quantities and prices are copied as
// they stand right now.
func CreatePurchaseOrderFromLogs(ctx context.Context, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	if len(input.LogIds) == 0 {
		return nil, &utils.ValidationError{Field: "log_ids", Reason: "must not be empty"}
	}

	db := config.GetDB()
	var result *PurchaseOrder
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		supplier, err := utils.FetchModelTx[Supplier](tx, input.SupplierId)
		if err != nil {
			return err
		}

		var logs []*DailyLog
		if err := tx.Where("id IN ?", utils.UniqueSlice(input.LogIds)).
			Order("id ASC").Find(&logs).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		if len(logs) != len(utils.UniqueSlice(input.LogIds)) {
			return &utils.ValidationError{Field: "log_ids", Reason: "one or more logs not found"}
		}

		lines := make(PurchaseOrderLines, 0, len(logs))
		totalPieces := 0
		totalAmount := decimal.Zero
		orderDate := todayLogDate()
		for _, log := range logs {
			if log.SupplierId != supplier.ID {
				return &utils.ValidationError{
					Field:  "log_ids",
					Reason: fmt.Sprintf("log #%d belongs to a different supplier", log.ID),
				}
			}
			var product Product
			if err := tx.First(&product, log.ProductId).Error; err != nil && err != gorm.ErrRecordNotFound {
				return utils.NewPersistenceError(err)
			}
			pieces := log.OrderedQty.Sum()
			amount := log.Price.Mul(decimal.NewFromInt(int64(pieces))).Round(2)
			lines = append(lines, PurchaseOrderLine{
				LogId:        log.ID,
				ProductId:    log.ProductId,
				Description:  product.Description,
				ThumbnailUrl: product.ThumbnailUrl,
				Quantities:   log.OrderedQty.Clone(),
				Price:        log.Price,
				Amount:       amount,
			})
			totalPieces += pieces
			totalAmount = totalAmount.Add(amount)
			orderDate = log.LogDate
		}

		po := PurchaseOrder{
			SupplierId:   supplier.ID,
			SupplierName: supplier.Name,
			OrderDate:    orderDate,
			Status:       PurchaseOrderStatusDraft,
			Lines:        lines,
			TotalPieces:  totalPieces,
			TotalAmount:  totalAmount,
			Notes:        input.Notes,
		}
		if err := tx.Create(&po).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		if err := writeSyncOutbox(tx, "purchaseOrders", po.ID, SyncActionCreate, &po); err != nil {
			return err
		}
		result = &po
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePurchaseOrderStatus moves a snapshot between draft, sent and closed.
func UpdatePurchaseOrderStatus(ctx context.Context, id int, status PurchaseOrderStatus) (*PurchaseOrder, error) {
	if !status.IsValid() {
		return nil, &utils.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}

	db := config.GetDB()
	var result *PurchaseOrder
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := utils.FetchModelTx[PurchaseOrder](tx, id)
		if err != nil {
			return err
		}
		po.Status = status
		if err := tx.Model(&PurchaseOrder{}).Where("id = ?", id).
			Update("status", status).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		if err := writeSyncOutbox(tx, "purchaseOrders", po.ID, SyncActionUpdate, po); err != nil {
			return err
		}
		result = po
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	return utils.FetchModel[PurchaseOrder](ctx, id)
}

// ListPurchaseOrders returns snapshots newest first, optionally filtered to
// one supplier.
func ListPurchaseOrders(ctx context.Context, supplierId int) ([]*PurchaseOrder, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Order("id DESC")
	if supplierId != 0 {
		query = query.Where("supplier_id = ?", supplierId)
	}
	var results []*PurchaseOrder
	if err := query.Find(&results).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}
	return results, nil
}
