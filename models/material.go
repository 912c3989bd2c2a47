package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// Material is master data. Its CRUD lives in the excluded admin surface; the
// core only needs materials as references for batches and order lines.
type Material struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Unit      string    `gorm:"size:20;not null" json:"unit"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMaterial struct {
	Code string `json:"code" validate:"required,max=50"`
	Name string `json:"name" validate:"required,max=255"`
	Unit string `json:"unit" validate:"required,max=20"`
}

func CreateMaterial(ctx context.Context, input *NewMaterial) (*Material, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&Material{}).Where("code = ?", input.Code).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.ConflictError("material code %s already exists", input.Code)
	}

	material := Material{
		Code: input.Code,
		Name: input.Name,
		Unit: input.Unit,
	}
	if err := db.WithContext(ctx).Create(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func GetMaterial(ctx context.Context, id int) (*Material, error) {
	db := config.GetDB()
	var material Material
	if err := db.WithContext(ctx).First(&material, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("material", id)
		}
		return nil, err
	}
	return &material, nil
}

func getMaterialTx(tx *gorm.DB, id int) (*Material, error) {
	var material Material
	if err := tx.First(&material, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("material", id)
		}
		return nil, err
	}
	return &material, nil
}
