package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

type MergeBatchesInput struct {
	BatchIds          []int   `json:"batch_ids" validate:"required,min=2"`
	TargetBatchNumber *string `json:"target_batch_number"`
	Reason            string  `json:"reason"`
	Actor             string  `json:"actor"`
}

type MergeBatchesResult struct {
	Merged  *Batch   `json:"merged"`
	Sources []*Batch `json:"sources"`
}

// MergeBatches combines two or more AVAILABLE batches of the same material and
// unit into a new batch holding the exact decimal sum of the source
// quantities. Each source gets a MERGE relation for its full quantity and
// transitions to CONSUMED with zero remaining quantity.
func MergeBatches(ctx context.Context, input *MergeBatchesInput) (*MergeBatchesResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if len(utils.UniqueInts(input.BatchIds)) != len(input.BatchIds) {
		return nil, utils.ValidationError("merge request contains duplicate batch ids")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	sources := make([]*Batch, 0, len(input.BatchIds))
	for _, id := range input.BatchIds {
		batch, err := getBatchTx(tx, id)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		sources = append(sources, batch)
	}

	first := sources[0]
	total := decimal.Zero
	for _, batch := range sources {
		if batch.Status != BatchStatusAvailable {
			tx.Rollback()
			return nil, utils.InvalidStateError("batch", batch.ID, string(batch.Status), "merge")
		}
		if batch.MaterialId != first.MaterialId {
			tx.Rollback()
			return nil, utils.ValidationError("cannot merge different materials: batch %d is %s, batch %d is %s",
				first.ID, first.MaterialCode, batch.ID, batch.MaterialCode)
		}
		if batch.Unit != first.Unit {
			tx.Rollback()
			return nil, utils.ValidationError("cannot merge mismatched units: batch %d is %s, batch %d is %s",
				first.ID, first.Unit, batch.ID, batch.Unit)
		}
		total = total.Add(batch.Quantity)
	}

	actor := utils.ActorOrSystem(input.Actor)
	number := MergeBatchNumber(time.Now())
	if input.TargetBatchNumber != nil && *input.TargetBatchNumber != "" {
		number = *input.TargetBatchNumber
	}

	merged := Batch{
		BatchNumber:  number,
		MaterialId:   first.MaterialId,
		MaterialCode: first.MaterialCode,
		MaterialName: first.MaterialName,
		Quantity:     total,
		Unit:         first.Unit,
		Status:       BatchStatusAvailable,
	}
	if err := createBatchTx(tx, &merged, actor); err != nil {
		tx.Rollback()
		return nil, err
	}

	for _, source := range sources {
		if err := createBatchRelationTx(tx, source.ID, merged.ID, BatchRelationTypeMerge, source.Quantity, actor); err != nil {
			tx.Rollback()
			return nil, err
		}
		priorStatus := source.Status
		if err := applyBatchQuantityTx(tx, source, decimal.Zero, BatchStatusConsumed); err != nil {
			tx.Rollback()
			return nil, err
		}
		SaveHistoryStatusChange(tx, "Batch", source.ID, string(priorStatus), string(BatchStatusConsumed), actor)
	}
	if input.Reason != "" {
		SaveHistoryUpdate(tx, "Batch", merged.ID, "merge_reason", "",
			fmt.Sprintf("%s (merged from %d batches)", input.Reason, len(sources)), actor)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &MergeBatchesResult{Merged: &merged, Sources: sources}, nil
}
