package models_test

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
)

func TestAllocateBatchAgainstOrderLines(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	batch := seedBatch(t, iron, "500", models.BatchStatusAvailable)
	line1 := seedOrderLine(t, plate, "100")
	line2 := seedOrderLine(t, plate, "150")
	line3 := seedOrderLine(t, plate, "300")

	if _, err := models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: batch.ID, OrderLineId: line1.ID, Quantity: mustDecimal(t, "100"), Actor: "Test",
	}); err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	if _, err := models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: batch.ID, OrderLineId: line2.ID, Quantity: mustDecimal(t, "150"), Actor: "Test",
	}); err != nil {
		t.Fatalf("second allocation: %v", err)
	}

	available, err := models.GetBatchAvailableQuantity(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatchAvailableQuantity: %v", err)
	}
	assertDecimalEqual(t, "250", available, "available after two allocations")

	_, err = models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: batch.ID, OrderLineId: line3.ID, Quantity: mustDecimal(t, "300"), Actor: "Test",
	})
	if !utils.IsKind(err, utils.ErrorKindInsufficientQuantity) {
		t.Fatalf("over-allocation: want InsufficientQuantity, got %v", err)
	}
	if !strings.Contains(err.Error(), "available=250") || !strings.Contains(err.Error(), "requested=300") {
		t.Fatalf("error should name both sides, got %q", err.Error())
	}

	fully, err := models.IsBatchFullyAllocated(ctx, batch.ID)
	if err != nil {
		t.Fatalf("IsBatchFullyAllocated: %v", err)
	}
	if fully {
		t.Fatalf("batch with 250 remaining is not fully allocated")
	}
}

func TestAllocateBatchDuplicatePairRejected(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	batch := seedBatch(t, iron, "100", models.BatchStatusAvailable)
	line := seedOrderLine(t, plate, "50")

	if _, err := models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: batch.ID, OrderLineId: line.ID, Quantity: mustDecimal(t, "20"), Actor: "Test",
	}); err != nil {
		t.Fatalf("first allocation: %v", err)
	}
	_, err := models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: batch.ID, OrderLineId: line.ID, Quantity: mustDecimal(t, "10"), Actor: "Test",
	})
	if !utils.IsKind(err, utils.ErrorKindConflict) {
		t.Fatalf("duplicate (batch, line) pair: want Conflict, got %v", err)
	}
}

func TestReleaseAndReallocate(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	batch := seedBatch(t, iron, "100", models.BatchStatusAvailable)
	line := seedOrderLine(t, plate, "80")

	allocation, err := models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: batch.ID, OrderLineId: line.ID, Quantity: mustDecimal(t, "80"), Actor: "Test",
	})
	if err != nil {
		t.Fatalf("AllocateBatch: %v", err)
	}

	available, err := models.GetBatchAvailableQuantity(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatchAvailableQuantity: %v", err)
	}
	assertDecimalEqual(t, "20", available, "available while allocated")

	released, err := models.ReleaseAllocation(ctx, allocation.ID, "Test")
	if err != nil {
		t.Fatalf("ReleaseAllocation: %v", err)
	}
	if released.Status != models.AllocationStatusReleased {
		t.Fatalf("released status: got %s", released.Status)
	}
	if released.ReleasedAt == nil {
		t.Fatalf("released allocation should carry a release timestamp")
	}

	available, err = models.GetBatchAvailableQuantity(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatchAvailableQuantity: %v", err)
	}
	assertDecimalEqual(t, "100", available, "available after release")

	if _, err := models.ReleaseAllocation(ctx, allocation.ID, "Test"); !utils.IsKind(err, utils.ErrorKindInvalidState) {
		t.Fatalf("double release: want InvalidState, got %v", err)
	}

	// The pair is free again once the old allocation is RELEASED.
	if _, err := models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: batch.ID, OrderLineId: line.ID, Quantity: mustDecimal(t, "100"), Actor: "Test",
	}); err != nil {
		t.Fatalf("re-allocation after release: %v", err)
	}

	fully, err := models.IsBatchFullyAllocated(ctx, batch.ID)
	if err != nil {
		t.Fatalf("IsBatchFullyAllocated: %v", err)
	}
	if !fully {
		t.Fatalf("batch with zero headroom should be fully allocated")
	}
}

func TestUpdateAllocationQuantity(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	batch := seedBatch(t, iron, "100", models.BatchStatusAvailable)
	line1 := seedOrderLine(t, plate, "60")
	line2 := seedOrderLine(t, plate, "30")

	first, err := models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: batch.ID, OrderLineId: line1.ID, Quantity: mustDecimal(t, "60"), Actor: "Test",
	})
	if err != nil {
		t.Fatalf("AllocateBatch: %v", err)
	}
	if _, err := models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: batch.ID, OrderLineId: line2.ID, Quantity: mustDecimal(t, "30"), Actor: "Test",
	}); err != nil {
		t.Fatalf("AllocateBatch: %v", err)
	}

	// Headroom for the first allocation is 10 free + its own 60.
	updated, err := models.UpdateAllocationQuantity(ctx, first.ID, mustDecimal(t, "70"), "Test")
	if err != nil {
		t.Fatalf("UpdateAllocationQuantity grow: %v", err)
	}
	assertDecimalEqual(t, "70", updated.AllocatedQty, "grown allocation")

	if _, err := models.UpdateAllocationQuantity(ctx, first.ID, mustDecimal(t, "71"), "Test"); !utils.IsKind(err, utils.ErrorKindInsufficientQuantity) {
		t.Fatalf("growing past headroom: want InsufficientQuantity, got %v", err)
	}

	shrunk, err := models.UpdateAllocationQuantity(ctx, first.ID, mustDecimal(t, "5"), "Test")
	if err != nil {
		t.Fatalf("UpdateAllocationQuantity shrink: %v", err)
	}
	assertDecimalEqual(t, "5", shrunk.AllocatedQty, "shrunk allocation")

	available, err := models.GetBatchAvailableQuantity(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatchAvailableQuantity: %v", err)
	}
	assertDecimalEqual(t, "65", available, "available after shrink")

	if _, err := models.UpdateAllocationQuantity(ctx, first.ID, mustDecimal(t, "0"), "Test"); !utils.IsKind(err, utils.ErrorKindValidationFailure) {
		t.Fatalf("zero quantity: want ValidationFailure, got %v", err)
	}
}

func TestAllocationUnknownReferences(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	batch := seedBatch(t, iron, "10", models.BatchStatusAvailable)
	line := seedOrderLine(t, plate, "10")

	if _, err := models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: 999999, OrderLineId: line.ID, Quantity: mustDecimal(t, "1"), Actor: "Test",
	}); !utils.IsKind(err, utils.ErrorKindNotFound) {
		t.Fatalf("unknown batch: want NotFound, got %v", err)
	}
	if _, err := models.AllocateBatch(ctx, &models.AllocateBatchInput{
		BatchId: batch.ID, OrderLineId: 999999, Quantity: mustDecimal(t, "1"), Actor: "Test",
	}); !utils.IsKind(err, utils.ErrorKindNotFound) {
		t.Fatalf("unknown order line: want NotFound, got %v", err)
	}
	if _, err := models.GetBatchAvailableQuantity(ctx, 999999); !utils.IsKind(err, utils.ErrorKindNotFound) {
		t.Fatalf("availability of unknown batch: want NotFound, got %v", err)
	}
	if _, err := models.ReleaseAllocation(ctx, 999999, "Test"); !utils.IsKind(err, utils.ErrorKindNotFound) {
		t.Fatalf("release unknown allocation: want NotFound, got %v", err)
	}
}
