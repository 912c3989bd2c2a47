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

// BatchOrderAllocation reserves batch quantity against an order line. At most
// one ALLOCATED allocation may exist per (batch, order line) pair, and the sum
// of ALLOCATED quantities never exceeds the batch quantity.
type BatchOrderAllocation struct {
	ID           int              `gorm:"primary_key" json:"id"`
	BatchId      int              `gorm:"not null;index" json:"batch_id"`
	OrderLineId  int              `gorm:"not null;index" json:"order_line_id"`
	AllocatedQty decimal.Decimal  `gorm:"type:decimal(20,6);not null" json:"allocated_qty"`
	Status       AllocationStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedBy    string           `gorm:"size:100" json:"created_by"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	ReleasedAt   *time.Time       `json:"released_at"`
}

type AllocateBatchInput struct {
	BatchId     int             `json:"batch_id" validate:"required,gt=0"`
	OrderLineId int             `json:"order_line_id" validate:"required,gt=0"`
	Quantity    decimal.Decimal `json:"quantity"`
	Actor       string          `json:"actor"`
}

// allocatedSumTx sums the ALLOCATED quantities for a batch in Go decimals;
// RELEASED allocations never count.
func allocatedSumTx(tx *gorm.DB, batchId int) (decimal.Decimal, error) {
	var allocations []BatchOrderAllocation
	if err := tx.Where("batch_id = ? AND status = ?", batchId, AllocationStatusAllocated).Find(&allocations).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, allocation := range allocations {
		sum = sum.Add(allocation.AllocatedQty)
	}
	return sum, nil
}

// AllocateBatch reserves quantity from a batch for an order line. The
// availability read, the duplicate check and the insert run in one
// transaction, and the batch version is bumped inside it so two racing
// allocations cannot both commit against the same observed headroom.
func AllocateBatch(ctx context.Context, input *AllocateBatchInput) (*BatchOrderAllocation, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Quantity.IsPositive() {
		return nil, utils.ValidationError("allocation quantity must be positive, got %s", input.Quantity.String())
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	batch, err := getBatchTx(tx, input.BatchId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if _, err := getOrderLineTx(tx, input.OrderLineId); err != nil {
		tx.Rollback()
		return nil, err
	}

	var existing int64
	if err := tx.Model(&BatchOrderAllocation{}).
		Where("batch_id = ? AND order_line_id = ? AND status = ?", input.BatchId, input.OrderLineId, AllocationStatusAllocated).
		Count(&existing).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if existing > 0 {
		tx.Rollback()
		return nil, utils.ConflictError("batch %d is already allocated to order line %d", input.BatchId, input.OrderLineId)
	}

	allocated, err := allocatedSumTx(tx, input.BatchId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	available := batch.Quantity.Sub(allocated)
	if input.Quantity.GreaterThan(available) {
		tx.Rollback()
		return nil, utils.InsufficientQuantityError("batch", input.BatchId, available, input.Quantity)
	}

	if err := bumpBatchVersionTx(tx, batch); err != nil {
		tx.Rollback()
		return nil, err
	}

	allocation := BatchOrderAllocation{
		BatchId:      input.BatchId,
		OrderLineId:  input.OrderLineId,
		AllocatedQty: input.Quantity,
		Status:       AllocationStatusAllocated,
		CreatedBy:    utils.ActorOrSystem(input.Actor),
	}
	if err := tx.Create(&allocation).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	SaveHistoryCreate(tx, "BatchOrderAllocation", allocation.ID, &allocation,
		"Allocated "+input.Quantity.String()+" of batch "+batch.BatchNumber+".", allocation.CreatedBy)

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

// ReleaseAllocation returns a reservation to the pool. Double release is
// rejected; released allocations drop out of every availability sum.
func ReleaseAllocation(ctx context.Context, allocationId int, actor string) (*BatchOrderAllocation, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var allocation BatchOrderAllocation
	if err := tx.First(&allocation, allocationId).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("allocation", allocationId)
		}
		return nil, err
	}
	if allocation.Status != AllocationStatusAllocated {
		tx.Rollback()
		return nil, utils.InvalidStateError("allocation", allocationId, string(allocation.Status), "release")
	}

	now := time.Now()
	if err := tx.Model(&allocation).Updates(map[string]interface{}{
		"status":      AllocationStatusReleased,
		"released_at": now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	allocation.Status = AllocationStatusReleased
	allocation.ReleasedAt = &now
	SaveHistoryStatusChange(tx, "BatchOrderAllocation", allocation.ID,
		string(AllocationStatusAllocated), string(AllocationStatusReleased), utils.ActorOrSystem(actor))

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

// UpdateAllocationQuantity re-sizes an active reservation. The allocation's
// own prior quantity is handed back before the headroom check, so shrinking is
// always legal and growing is bounded by what the batch can still cover.
func UpdateAllocationQuantity(ctx context.Context, allocationId int, newQty decimal.Decimal, actor string) (*BatchOrderAllocation, error) {
	if !newQty.IsPositive() {
		return nil, utils.ValidationError("allocation quantity must be positive, got %s", newQty.String())
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var allocation BatchOrderAllocation
	if err := tx.First(&allocation, allocationId).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("allocation", allocationId)
		}
		return nil, err
	}
	if allocation.Status != AllocationStatusAllocated {
		tx.Rollback()
		return nil, utils.InvalidStateError("allocation", allocationId, string(allocation.Status), "update quantity")
	}

	batch, err := getBatchTx(tx, allocation.BatchId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	allocated, err := allocatedSumTx(tx, allocation.BatchId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	headroom := batch.Quantity.Sub(allocated).Add(allocation.AllocatedQty)
	if newQty.GreaterThan(headroom) {
		tx.Rollback()
		return nil, utils.InsufficientQuantityError("batch", allocation.BatchId, headroom, newQty)
	}

	if err := bumpBatchVersionTx(tx, batch); err != nil {
		tx.Rollback()
		return nil, err
	}

	oldQty := allocation.AllocatedQty
	if err := tx.Model(&allocation).Update("allocated_qty", newQty).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	allocation.AllocatedQty = newQty
	SaveHistoryUpdate(tx, "BatchOrderAllocation", allocation.ID, "allocated_qty", oldQty, newQty, utils.ActorOrSystem(actor))

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

func GetBatchAvailableQuantity(ctx context.Context, batchId int) (decimal.Decimal, error) {
	db := config.GetDB().WithContext(ctx)
	batch, err := getBatchTx(db, batchId)
	if err != nil {
		return decimal.Zero, err
	}
	allocated, err := allocatedSumTx(db, batchId)
	if err != nil {
		return decimal.Zero, err
	}
	return batch.Quantity.Sub(allocated), nil
}

func IsBatchFullyAllocated(ctx context.Context, batchId int) (bool, error) {
	available, err := GetBatchAvailableQuantity(ctx, batchId)
	if err != nil {
		return false, err
	}
	return !available.IsPositive(), nil
}
