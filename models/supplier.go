package models

import (
	"context"
	"strings"
	"time"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
	"gorm.io/gorm"
)

// Supplier identity is the name, matched case-insensitively; the id is
// immutable once created. LastUsedAt bumps on every reference so pickers
// see their frequent suppliers first.
type Supplier struct {
	ID         int       `gorm:"primary_key" json:"id"`
	Name       string    `gorm:"size:100;not null;uniqueIndex" json:"name" binding:"required"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Tag        string    `gorm:"size:50" json:"tag"`
	LastUsedAt time.Time `json:"last_used_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
	Tag   string `json:"tag"`
}

func (input *NewSupplier) validate(ctx context.Context, id int) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return &utils.ValidationError{Field: "name", Reason: "must not be blank"}
	}
	if err := utils.ValidateUnique[Supplier](ctx, "LOWER(name)", strings.ToLower(name), id); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return &utils.ValidationError{Field: "phone", Reason: err.Error()}
		}
	}
	return nil
}

// resolveSupplierTx finds a supplier by case-insensitive name or creates one,
// inside the caller's transaction. Always bumps LastUsedAt; a non-empty
// phone is merged onto the record when the stored one is blank or stale.
func resolveSupplierTx(tx *gorm.DB, name string, phone string) (*Supplier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &utils.ValidationError{Field: "supplier_name", Reason: "must not be blank"}
	}
	phone = utils.NormalizePhoneNumber(phone, utils.CountryCode)

	var supplier Supplier
	err := tx.Where("LOWER(name) = ?", strings.ToLower(name)).First(&supplier).Error
	if err == gorm.ErrRecordNotFound {
		supplier = Supplier{
			Name:       name,
			Phone:      phone,
			LastUsedAt: time.Now().UTC(),
		}
		if err := tx.Create(&supplier).Error; err != nil {
			return nil, utils.NewPersistenceError(err)
		}
		return &supplier, nil
	}
	if err != nil {
		return nil, utils.NewPersistenceError(err)
	}

	updates := map[string]interface{}{"last_used_at": time.Now().UTC()}
	if phone != "" && supplier.Phone != phone {
		updates["phone"] = phone
		supplier.Phone = phone
	}
	if err := tx.Model(&supplier).Updates(updates).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}
	return &supplier, nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	supplier := Supplier{
		Name:       strings.TrimSpace(input.Name),
		Phone:      utils.NormalizePhoneNumber(input.Phone, utils.CountryCode),
		Tag:        input.Tag,
		LastUsedAt: time.Now().UTC(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&supplier).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}

	utils.RemoveRedisList[Supplier]()
	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {
	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	supplier.Name = strings.TrimSpace(input.Name)
	supplier.Phone = utils.NormalizePhoneNumber(input.Phone, utils.CountryCode)
	supplier.Tag = input.Tag

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(supplier).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}

	utils.RemoveRedisItem[Supplier](id)
	utils.RemoveRedisList[Supplier]()
	return supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	return utils.FetchModel[Supplier](ctx, id)
}

// ListSuppliers returns all suppliers, most recently used first.
func ListSuppliers(ctx context.Context) ([]*Supplier, error) {
	cached, err := utils.RetrieveRedisList[Supplier]()
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var results []*Supplier
	if err := db.WithContext(ctx).Order("last_used_at DESC").Find(&results).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}

	if err := utils.StoreRedisList[Supplier](results); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteSupplier refuses when daily logs still reference the supplier.
func DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {
	supplier, err := utils.FetchModel[Supplier](ctx, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[DailyLog](ctx, "supplier_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, &utils.InvalidStateError{Op: "delete supplier", Status: "referenced by daily logs"}
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(supplier).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}

	utils.RemoveRedisItem[Supplier](id)
	utils.RemoveRedisList[Supplier]()
	return supplier, nil
}
