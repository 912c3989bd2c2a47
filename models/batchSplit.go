package models

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

type BatchPortion struct {
	Quantity decimal.Decimal `json:"quantity"`
	Suffix   *string         `json:"suffix"`
}

type SplitBatchInput struct {
	BatchId  int            `json:"batch_id" validate:"required,gt=0"`
	Portions []BatchPortion `json:"portions" validate:"required,min=1"`
	Reason   string         `json:"reason"`
	Actor    string         `json:"actor"`
}

type SplitBatchResult struct {
	Source   *Batch   `json:"source"`
	Children []*Batch `json:"children"`
}

// splittableStatuses: a batch that is already fully split, consumed or
// scrapped has nothing left to divide.
func splittable(status BatchStatus) bool {
	switch status {
	case BatchStatusAvailable, BatchStatusReserved, BatchStatusBlocked:
		return true
	}
	return false
}

// SplitBatch divides a source batch into child batches. The children, their
// SPLIT relations and the source deduction commit as one unit; the sum of the
// portions plus the source's remaining quantity always equals what the source
// held before the call.
func SplitBatch(ctx context.Context, input *SplitBatchInput) (*SplitBatchResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	total := decimal.Zero
	for i, portion := range input.Portions {
		if !portion.Quantity.IsPositive() {
			return nil, utils.ValidationError("split portion %d must be positive, got %s", i+1, portion.Quantity.String())
		}
		total = total.Add(portion.Quantity)
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	source, err := getBatchTx(tx, input.BatchId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if !splittable(source.Status) {
		tx.Rollback()
		return nil, utils.InvalidStateError("batch", source.ID, string(source.Status), "split")
	}
	if total.GreaterThan(source.Quantity) {
		tx.Rollback()
		return nil, utils.InsufficientQuantityError("batch", source.ID, source.Quantity, total)
	}

	existingChildren, err := countSplitChildrenTx(tx, source.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	actor := utils.ActorOrSystem(input.Actor)
	children := make([]*Batch, 0, len(input.Portions))
	for i, portion := range input.Portions {
		number := SplitBatchNumber(source.BatchNumber, int(existingChildren)+i+1)
		if portion.Suffix != nil && *portion.Suffix != "" {
			number = source.BatchNumber + "-" + utils.SanitizeAlphanumeric(*portion.Suffix, 20)
		}
		child := Batch{
			BatchNumber:  number,
			MaterialId:   source.MaterialId,
			MaterialCode: source.MaterialCode,
			MaterialName: source.MaterialName,
			Quantity:     portion.Quantity,
			Unit:         source.Unit,
			Status:       BatchStatusAvailable,
			SupplierLot:  source.SupplierLot,
			ExpiryDate:   source.ExpiryDate,
		}
		if err := createBatchTx(tx, &child, actor); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := createBatchRelationTx(tx, source.ID, child.ID, BatchRelationTypeSplit, portion.Quantity, actor); err != nil {
			tx.Rollback()
			return nil, err
		}
		children = append(children, &child)
	}

	remaining := source.Quantity.Sub(total)
	newStatus := source.Status
	// scale-aware decimal compare, not floating equality
	if remaining.IsZero() {
		newStatus = BatchStatusSplit
	}
	priorStatus := source.Status
	if err := applyBatchQuantityTx(tx, source, remaining, newStatus); err != nil {
		tx.Rollback()
		return nil, err
	}
	if newStatus != priorStatus {
		SaveHistoryStatusChange(tx, "Batch", source.ID, string(priorStatus), string(newStatus), actor)
	}
	SaveHistoryUpdate(tx, "Batch", source.ID, "quantity", source.Quantity.Add(total), source.Quantity, actor)
	if input.Reason != "" {
		SaveHistoryUpdate(tx, "Batch", source.ID, "split_reason", "", fmt.Sprintf("%s (%d portions)", input.Reason, len(input.Portions)), actor)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &SplitBatchResult{Source: source, Children: children}, nil
}
