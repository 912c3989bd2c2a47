package models

import (
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

// consumable reports whether a batch status permits drawing material from the
// batch. QUALITY_PENDING stock may be consumed; releasing it is a quality
// process concern, not an inventory one.
func consumable(status BatchStatus) bool {
	switch status {
	case BatchStatusAvailable, BatchStatusReserved, BatchStatusQualityPending:
		return true
	}
	return false
}

// validateBatchConsumable checks status and quantity before any consumption.
// Callers run it for every input batch before touching the first one, so a
// failing confirmation leaves no partial decrements behind.
func validateBatchConsumable(batch *Batch, requested decimal.Decimal) error {
	if !consumable(batch.Status) {
		return utils.InvalidStateError("batch", batch.ID, string(batch.Status), "consume")
	}
	if requested.GreaterThan(batch.Quantity) {
		return utils.InsufficientQuantityError("batch", batch.ID, batch.Quantity, requested)
	}
	return nil
}
