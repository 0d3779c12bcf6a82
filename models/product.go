package models

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
	"gorm.io/gorm"
)

// Product is deduplicated by exact perceptual-hash match, not by a
// similarity threshold. LastSupplierId/LastPrice are opportunistic memory
// fields: they follow whatever the latest referencing log used, so the next
// scan of the same product pre-fills sensible defaults.
type Product struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ImageUrl       string          `gorm:"size:500" json:"image_url"`
	ThumbnailUrl   string          `gorm:"size:500" json:"thumbnail_url"`
	ImageHash      string          `gorm:"size:64;not null;uniqueIndex" json:"image_hash"`
	Description    string          `gorm:"type:text" json:"description"`
	LastSupplierId int             `gorm:"index;default:0" json:"last_supplier_id"`
	LastPrice      decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"last_price"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	ImageUrl     string          `json:"image_url"`
	ThumbnailUrl string          `json:"thumbnail_url"`
	ImageHash    string          `json:"image_hash" binding:"required"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	SupplierId   int             `json:"supplier_id"`
}

// resolveProductTx finds a product by exact image hash or creates one,
// inside the caller's transaction. Existing products get their memory
// fields refreshed when the new values are present and differ.
func resolveProductTx(tx *gorm.DB, input *NewProduct) (*Product, error) {
	hash := strings.TrimSpace(strings.ToLower(input.ImageHash))
	if hash == "" {
		return nil, &utils.ValidationError{Field: "image_hash", Reason: "must not be blank"}
	}

	var product Product
	err := tx.Where("image_hash = ?", hash).First(&product).Error
	if err == gorm.ErrRecordNotFound {
		product = Product{
			ImageUrl:       input.ImageUrl,
			ThumbnailUrl:   input.ThumbnailUrl,
			ImageHash:      hash,
			Description:    input.Description,
			LastSupplierId: input.SupplierId,
			LastPrice:      input.Price,
		}
		if err := tx.Create(&product).Error; err != nil {
			return nil, utils.NewPersistenceError(err)
		}
		return &product, nil
	}
	if err != nil {
		return nil, utils.NewPersistenceError(err)
	}

	if err := refreshProductMemoryTx(tx, &product, input.SupplierId, input.Price); err != nil {
		return nil, err
	}
	return &product, nil
}

// refreshProductMemoryTx updates LastSupplierId/LastPrice when the caller
// provided values differ from the stored ones. Zero values mean "not
// provided" and never clobber existing memory.
func refreshProductMemoryTx(tx *gorm.DB, product *Product, supplierId int, price decimal.Decimal) error {
	updates := map[string]interface{}{}
	if supplierId != 0 && supplierId != product.LastSupplierId {
		updates["last_supplier_id"] = supplierId
		product.LastSupplierId = supplierId
	}
	if !price.IsZero() && !price.Equal(product.LastPrice) {
		updates["last_price"] = price
		product.LastPrice = price
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(product).Updates(updates).Error; err != nil {
		return utils.NewPersistenceError(err)
	}
	return nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	cached, err := utils.RetrieveRedis[Product](id)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[Product](product, id); err != nil {
		return nil, err
	}
	return product, nil
}

// GetProductByHash is the scan entry point: an exact fingerprint match
// means "same product".
func GetProductByHash(ctx context.Context, hash string) (*Product, error) {
	db := config.GetDB()
	var product Product
	err := db.WithContext(ctx).
		Where("image_hash = ?", strings.TrimSpace(strings.ToLower(hash))).
		First(&product).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, utils.NewPersistenceError(err)
	}
	return &product, nil
}

func ListProducts(ctx context.Context) ([]*Product, error) {
	db := config.GetDB()
	var results []*Product
	if err := db.WithContext(ctx).Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}
	return results, nil
}

type UpdateProductInput struct {
	Description string `json:"description"`
}

func UpdateProductDescription(ctx context.Context, id int, input *UpdateProductInput) (*Product, error) {
	product, err := utils.FetchModel[Product](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(product).
		Update("description", input.Description).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}

	utils.RemoveRedisItem[Product](id)
	return product, nil
}
