package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLine is one line of a manufacturing order. Order CRUD is part of the
// excluded surface; the core references lines for routing and allocations.
type OrderLine struct {
	ID         int             `gorm:"primary_key" json:"id"`
	OrderNo    string          `gorm:"size:50;not null;index" json:"order_no"`
	LineNo     int             `gorm:"not null" json:"line_no"`
	MaterialId int             `gorm:"not null;index" json:"material_id"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	Unit       string          `gorm:"size:20;not null" json:"unit"`
	CreatedBy  string          `gorm:"size:100" json:"created_by"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrderLine struct {
	OrderNo    string          `json:"order_no" validate:"required,max=50"`
	LineNo     int             `json:"line_no" validate:"required,gt=0"`
	MaterialId int             `json:"material_id" validate:"required,gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit" validate:"required,max=20"`
	Actor      string          `json:"actor"`
}

func CreateOrderLine(ctx context.Context, input *NewOrderLine) (*OrderLine, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Quantity.IsPositive() {
		return nil, utils.ValidationError("order line quantity must be positive, got %s", input.Quantity.String())
	}

	db := config.GetDB()
	if _, err := GetMaterial(ctx, input.MaterialId); err != nil {
		return nil, err
	}

	line := OrderLine{
		OrderNo:    input.OrderNo,
		LineNo:     input.LineNo,
		MaterialId: input.MaterialId,
		Quantity:   input.Quantity,
		Unit:       input.Unit,
		CreatedBy:  utils.ActorOrSystem(input.Actor),
	}
	if err := db.WithContext(ctx).Create(&line).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

func GetOrderLine(ctx context.Context, id int) (*OrderLine, error) {
	db := config.GetDB()
	return getOrderLineTx(db.WithContext(ctx), id)
}

func getOrderLineTx(tx *gorm.DB, id int) (*OrderLine, error) {
	var line OrderLine
	if err := tx.First(&line, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("order line", id)
		}
		return nil, err
	}
	return &line, nil
}
