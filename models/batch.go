package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Batch is a quantity of a single material. BatchNumber is assigned once at
// creation and never changes. Quantity is the remaining quantity; it is
// decremented only by split, consumption, or explicit adjustment.
//
// Version backs the optimistic concurrency check on every quantity mutation:
// two transactions racing on the same batch cannot both commit against the
// same observed state.
type Batch struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BatchNumber  string          `gorm:"size:100;not null;uniqueIndex" json:"batch_number"`
	MaterialId   int             `gorm:"not null;index" json:"material_id"`
	MaterialCode string          `gorm:"size:50;not null" json:"material_code"`
	MaterialName string          `gorm:"size:255" json:"material_name"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	Unit         string          `gorm:"size:20;not null" json:"unit"`
	Status       BatchStatus     `gorm:"size:20;not null;index" json:"status"`
	SupplierLot  *string         `gorm:"size:100" json:"supplier_lot"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	Version      int             `gorm:"not null;default:0" json:"version"`
	CreatedBy    string          `gorm:"size:100" json:"created_by"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetBatch(ctx context.Context, id int) (*Batch, error) {
	db := config.GetDB()
	return getBatchTx(db.WithContext(ctx), id)
}

func GetBatchByNumber(ctx context.Context, batchNumber string) (*Batch, error) {
	db := config.GetDB()
	var batch Batch
	if err := db.WithContext(ctx).Where("batch_number = ?", batchNumber).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("batch", batchNumber)
		}
		return nil, err
	}
	return &batch, nil
}

func getBatchTx(tx *gorm.DB, id int) (*Batch, error) {
	var batch Batch
	if err := tx.First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("batch", id)
		}
		return nil, err
	}
	return &batch, nil
}

// createBatchTx inserts a batch and its audit row inside the caller's
// transaction. The creation primitive behind receipts, splits, merges and
// confirmation outputs.
func createBatchTx(tx *gorm.DB, batch *Batch, actor string) error {
	batch.CreatedBy = utils.ActorOrSystem(actor)
	if err := tx.Create(batch).Error; err != nil {
		return err
	}
	SaveHistoryCreate(tx, "Batch", batch.ID, batch,
		fmt.Sprintf("Batch %s created with %s %s of %s.", batch.BatchNumber, batch.Quantity.String(), batch.Unit, batch.MaterialCode),
		batch.CreatedBy)
	return nil
}

// applyBatchQuantityTx writes a new quantity/status through the version check.
// Zero rows affected means another transaction got there first.
func applyBatchQuantityTx(tx *gorm.DB, batch *Batch, newQty decimal.Decimal, newStatus BatchStatus) error {
	res := tx.Model(&Batch{}).
		Where("id = ? AND version = ?", batch.ID, batch.Version).
		Updates(map[string]interface{}{
			"quantity": newQty,
			"status":   newStatus,
			"version":  batch.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ConflictError("batch %d was modified concurrently; retry the operation", batch.ID)
	}
	batch.Quantity = newQty
	batch.Status = newStatus
	batch.Version++
	return nil
}

// bumpBatchVersionTx advances the version without touching quantity. Allocation
// bookkeeping uses this to force competing allocators through the version check.
func bumpBatchVersionTx(tx *gorm.DB, batch *Batch) error {
	res := tx.Model(&Batch{}).
		Where("id = ? AND version = ?", batch.ID, batch.Version).
		Update("version", batch.Version+1)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ConflictError("batch %d was modified concurrently; retry the operation", batch.ID)
	}
	batch.Version++
	return nil
}

type NewRawMaterialReceipt struct {
	MaterialId   int              `json:"material_id" validate:"required,gt=0"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Unit         string           `json:"unit"`
	SupplierLot  *string          `json:"supplier_lot"`
	ExpiryDate   *time.Time       `json:"expiry_date"`
	ReceivedDate *time.Time       `json:"received_date"`
	Actor        string           `json:"actor"`
}

// ReceiveRawMaterialBatch books a received raw-material quantity into a new
// AVAILABLE batch with a generated receipt number.
func ReceiveRawMaterialBatch(ctx context.Context, input *NewRawMaterialReceipt) (*Batch, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Quantity.IsPositive() {
		return nil, utils.ValidationError("receipt quantity must be positive, got %s", input.Quantity.String())
	}

	receivedDate := time.Now()
	if input.ReceivedDate != nil {
		receivedDate = *input.ReceivedDate
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	material, err := getMaterialTx(tx, input.MaterialId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	unit := input.Unit
	if unit == "" {
		unit = material.Unit
	}

	number := generateBatchNumberTx(tx, &GenerateBatchNumberInput{
		Kind:         BatchKindRawMaterial,
		MaterialId:   material.ID,
		MaterialCode: material.Code,
		SupplierLot:  utils.DereferencePtr(input.SupplierLot),
		Date:         receivedDate,
	})

	batch := Batch{
		BatchNumber:  number,
		MaterialId:   material.ID,
		MaterialCode: material.Code,
		MaterialName: material.Name,
		Quantity:     input.Quantity,
		Unit:         unit,
		Status:       BatchStatusAvailable,
		SupplierLot:  input.SupplierLot,
		ExpiryDate:   input.ExpiryDate,
	}
	if err := createBatchTx(tx, &batch, input.Actor); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &batch, nil
}
