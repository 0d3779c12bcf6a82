package models

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/utils"
)

// StorefrontConfig holds the credentials for one connected online store.
// Customer order lookups fan out across every enabled config.
type StorefrontConfig struct {
	ID          int                `gorm:"primary_key" json:"id"`
	Platform    StorefrontPlatform `gorm:"type:enum('shopify');not null;default:'shopify'" json:"platform"`
	StoreName   string             `gorm:"size:255;not null" json:"store_name"`
	StoreDomain string             `gorm:"size:255;uniqueIndex;not null" json:"store_domain"`
	AccessToken string             `gorm:"size:500;not null" json:"-"`
	Enabled     *bool              `gorm:"not null;default:true" json:"enabled"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStorefrontConfig struct {
	Platform    StorefrontPlatform `json:"platform"`
	StoreName   string             `json:"store_name" binding:"required"`
	StoreDomain string             `json:"store_domain" binding:"required"`
	AccessToken string             `json:"access_token" binding:"required"`
	Enabled     *bool              `json:"enabled"`
}

func (input *NewStorefrontConfig) validate(ctx context.Context, exceptId int) error {
	input.StoreDomain = strings.ToLower(strings.TrimSpace(input.StoreDomain))
	if input.StoreDomain == "" {
		return &utils.ValidationError{Field: "store_domain", Reason: "must not be blank"}
	}
	if input.Platform == "" {
		input.Platform = StorefrontPlatformShopify
	}
	if input.Platform != StorefrontPlatformShopify {
		return &utils.ValidationError{Field: "platform", Reason: "unsupported platform"}
	}
	return utils.ValidateUnique[StorefrontConfig](ctx, "store_domain", input.StoreDomain, exceptId)
}

func CreateStorefrontConfig(ctx context.Context, input *NewStorefrontConfig) (*StorefrontConfig, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}
	enabled := utils.NewTrue()
	if input.Enabled != nil {
		enabled = input.Enabled
	}

	cfg := StorefrontConfig{
		Platform:    input.Platform,
		StoreName:   input.StoreName,
		StoreDomain: input.StoreDomain,
		AccessToken: input.AccessToken,
		Enabled:     enabled,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&cfg).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, &utils.ValidationError{Field: "store_domain", Reason: "already configured"}
		}
		return nil, utils.NewPersistenceError(err)
	}
	return &cfg, nil
}

func UpdateStorefrontConfig(ctx context.Context, id int, input *NewStorefrontConfig) (*StorefrontConfig, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var result *StorefrontConfig
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := utils.FetchModelTx[StorefrontConfig](tx, id)
		if err != nil {
			return err
		}
		cfg.Platform = input.Platform
		cfg.StoreName = input.StoreName
		cfg.StoreDomain = input.StoreDomain
		if strings.TrimSpace(input.AccessToken) != "" {
			cfg.AccessToken = input.AccessToken
		}
		if input.Enabled != nil {
			cfg.Enabled = input.Enabled
		}
		if err := tx.Save(cfg).Error; err != nil {
			return utils.NewPersistenceError(err)
		}
		result = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func GetStorefrontConfig(ctx context.Context, id int) (*StorefrontConfig, error) {
	return utils.FetchModel[StorefrontConfig](ctx, id)
}

func ListStorefrontConfigs(ctx context.Context) ([]*StorefrontConfig, error) {
	return utils.FetchAllModels[StorefrontConfig](ctx)
}

// ListEnabledStorefrontConfigs feeds the order-lookup fan-out.
func ListEnabledStorefrontConfigs(ctx context.Context) ([]*StorefrontConfig, error) {
	db := config.GetDB()
	var results []*StorefrontConfig
	if err := db.WithContext(ctx).
		Where("enabled = ?", true).
		Find(&results).Error; err != nil {
		return nil, utils.NewPersistenceError(err)
	}
	return results, nil
}

func DeleteStorefrontConfig(ctx context.Context, id int) error {
	db := config.GetDB()
	if err := utils.ValidateResourceId[StorefrontConfig](ctx, id); err != nil {
		return err
	}
	if err := db.WithContext(ctx).Delete(&StorefrontConfig{}, id).Error; err != nil {
		return utils.NewPersistenceError(err)
	}
	return nil
}
