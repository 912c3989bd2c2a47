package models

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

type AdjustBatchQuantityInput struct {
	BatchId        int                 `json:"batch_id" validate:"required,gt=0"`
	NewQuantity    decimal.Decimal     `json:"new_quantity"`
	AdjustmentType BatchAdjustmentType `json:"adjustment_type" validate:"required"`
	Reason         string              `json:"reason"`
	Actor          string              `json:"actor"`
}

type BatchAdjustmentResult struct {
	Batch              *Batch          `json:"batch"`
	QuantityDifference decimal.Decimal `json:"quantity_difference"`
}

// AdjustBatchQuantity sets a batch to a counted/corrected quantity. The reason
// is mandatory because every adjustment is an audited inventory correction.
// Zero is a legal target (a count can find nothing left).
func AdjustBatchQuantity(ctx context.Context, input *AdjustBatchQuantityInput) (*BatchAdjustmentResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, utils.ValidationError("adjustment reason must not be blank")
	}
	if !input.AdjustmentType.Valid() {
		return nil, utils.ValidationError("invalid adjustment type %q", string(input.AdjustmentType))
	}
	if input.NewQuantity.IsNegative() {
		return nil, utils.ValidationError("adjusted quantity must not be negative, got %s", input.NewQuantity.String())
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

	oldQuantity := batch.Quantity
	difference := input.NewQuantity.Sub(oldQuantity)

	actor := utils.ActorOrSystem(input.Actor)
	SaveHistoryUpdate(tx, "Batch", batch.ID, "quantity", oldQuantity, input.NewQuantity, actor)
	SaveHistoryUpdate(tx, "Batch", batch.ID, "adjustment_reason", string(input.AdjustmentType), input.Reason, actor)

	if err := applyBatchQuantityTx(tx, batch, input.NewQuantity, batch.Status); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &BatchAdjustmentResult{Batch: batch, QuantityDifference: difference}, nil
}
