package models_test

import (
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
)

func TestCreateProductionProcessSetsInitialStates(t *testing.T) {
	resetTables(t)
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")

	detail := seedProcess(t, line, "100", "100", "100")
	if detail.Process.Status != models.ProcessStatusActive {
		t.Fatalf("new process should be ACTIVE, got %s", detail.Process.Status)
	}
	if len(detail.Operations) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(detail.Operations))
	}
	if detail.Operations[0].Status != models.OperationStatusReady {
		t.Fatalf("first operation should be READY, got %s", detail.Operations[0].Status)
	}
	for _, op := range detail.Operations[1:] {
		if op.Status != models.OperationStatusNotStarted {
			t.Fatalf("operation %d should be NOT_STARTED, got %s", op.SequenceNo, op.Status)
		}
	}
}

func TestBlockAndUnblockOperation(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")
	detail := seedProcess(t, line, "100")
	op := detail.Operations[0]

	blocked, err := models.BlockOperation(ctx, op.ID, "machine down", "Test")
	if err != nil {
		t.Fatalf("BlockOperation: %v", err)
	}
	if blocked.Status != models.OperationStatusBlocked {
		t.Fatalf("blocked status: got %s", blocked.Status)
	}
	if blocked.StatusBeforeBlock == nil || *blocked.StatusBeforeBlock != string(models.OperationStatusReady) {
		t.Fatalf("block should remember READY, got %v", blocked.StatusBeforeBlock)
	}

	if _, err := models.BlockOperation(ctx, op.ID, "again", "Test"); !utils.IsKind(err, utils.ErrorKindInvalidState) {
		t.Fatalf("double block: want InvalidState, got %v", err)
	}
	if _, err := models.BlockOperation(ctx, op.ID, "   ", "Test"); !utils.IsKind(err, utils.ErrorKindValidationFailure) {
		t.Fatalf("blank reason: want ValidationFailure, got %v", err)
	}
}

func TestUnblockRestoresPriorStatus(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")
	detail := seedProcess(t, line, "100")
	op := detail.Operations[0]

	if _, err := models.BlockOperation(ctx, op.ID, "quality check", "Test"); err != nil {
		t.Fatalf("BlockOperation: %v", err)
	}
	restored, err := models.UnblockOperation(ctx, op.ID, "Test")
	if err != nil {
		t.Fatalf("UnblockOperation: %v", err)
	}
	if restored.Status != models.OperationStatusReady {
		t.Fatalf("unblock should restore READY, got %s", restored.Status)
	}
	if restored.BlockReason != nil || restored.BlockedBy != nil || restored.BlockedAt != nil || restored.StatusBeforeBlock != nil {
		t.Fatalf("block metadata should be cleared, got %+v", restored)
	}

	if _, err := models.UnblockOperation(ctx, op.ID, "Test"); !utils.IsKind(err, utils.ErrorKindInvalidState) {
		t.Fatalf("unblocking a non blocked operation: want InvalidState, got %v", err)
	}
}

func TestConfirmOperationFull(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")
	detail := seedProcess(t, line, "100", "100")
	input := seedBatch(t, iron, "120", models.BatchStatusAvailable)

	started := time.Date(2026, 2, 6, 8, 0, 0, 0, time.UTC)
	ended := time.Date(2026, 2, 6, 15, 30, 0, 0, time.UTC)
	result, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId:  detail.Operations[0].ID,
		ProducedQty:  mustDecimal(t, "100"),
		Materials:    []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "120")}},
		StartTime:    &started,
		EndTime:      &ended,
		EquipmentIds: []string{"PRESS-01", "PRESS-02"},
		OperatorIds:  []string{"OP-117"},
		Actor:        "Test",
	})
	if err != nil {
		t.Fatalf("ConfirmOperation: %v", err)
	}

	if result.Confirmation.Status != models.ConfirmationStatusConfirmed {
		t.Fatalf("confirmation status: got %s", result.Confirmation.Status)
	}
	if result.Confirmation.IsPartial {
		t.Fatalf("full confirmation should not be partial")
	}
	assertDecimalEqual(t, "0", result.Confirmation.RemainingQty, "remaining quantity")
	if result.Confirmation.StartTime == nil || !result.Confirmation.StartTime.Equal(started) {
		t.Fatalf("start time not recorded: %v", result.Confirmation.StartTime)
	}
	if result.Confirmation.EndTime == nil || !result.Confirmation.EndTime.Equal(ended) {
		t.Fatalf("end time not recorded: %v", result.Confirmation.EndTime)
	}
	if result.Confirmation.EquipmentIds != "PRESS-01,PRESS-02" {
		t.Fatalf("equipment ids: got %q", result.Confirmation.EquipmentIds)
	}
	if result.Confirmation.OperatorIds != "OP-117" {
		t.Fatalf("operator ids: got %q", result.Confirmation.OperatorIds)
	}
	stored, err := models.GetConfirmation(ctx, result.Confirmation.ID)
	if err != nil {
		t.Fatalf("GetConfirmation: %v", err)
	}
	if stored.Confirmation.EquipmentIds != "PRESS-01,PRESS-02" || stored.Confirmation.OperatorIds != "OP-117" {
		t.Fatalf("equipment/operator ids not persisted: %q %q", stored.Confirmation.EquipmentIds, stored.Confirmation.OperatorIds)
	}
	if stored.Confirmation.StartTime == nil || stored.Confirmation.EndTime == nil {
		t.Fatalf("work interval not persisted: %+v", stored.Confirmation)
	}

	if result.Operation.Status != models.OperationStatusConfirmed {
		t.Fatalf("operation status: got %s", result.Operation.Status)
	}
	assertDecimalEqual(t, "100", result.Operation.ConfirmedQty, "operation confirmed quantity")

	consumed, err := models.GetBatch(ctx, input.ID)
	if err != nil {
		t.Fatalf("GetBatch input: %v", err)
	}
	assertDecimalEqual(t, "0", consumed.Quantity, "input fully drawn down")
	if consumed.Status != models.BatchStatusConsumed {
		t.Fatalf("fully drawn input should be CONSUMED, got %s", consumed.Status)
	}

	if len(result.Outputs) != 1 {
		t.Fatalf("default sizer emits one output batch, got %d", len(result.Outputs))
	}
	output := result.Outputs[0]
	if output.Status != models.BatchStatusQualityPending {
		t.Fatalf("output should be QUALITY_PENDING, got %s", output.Status)
	}
	assertDecimalEqual(t, "100", output.Quantity, "output quantity")
	if output.MaterialId != plate.ID {
		t.Fatalf("output material should be the order line product")
	}
	if !strings.HasPrefix(output.BatchNumber, "BAT-") {
		t.Fatalf("fallback production number should start with BAT-, got %s", output.BatchNumber)
	}

	var relations []models.BatchRelation
	if err := config.GetDB().
		Where("parent_batch_id = ? AND child_batch_id = ?", input.ID, output.ID).
		Find(&relations).Error; err != nil {
		t.Fatalf("load relations: %v", err)
	}
	if len(relations) != 1 || relations[0].RelationType != models.BatchRelationTypeTransform {
		t.Fatalf("expected one TRANSFORM relation, got %+v", relations)
	}
	assertDecimalEqual(t, "120", relations[0].QuantityConsumed, "relation carries consumed input quantity")

	next, err := models.GetOperation(ctx, detail.Operations[1].ID)
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if next.Status != models.OperationStatusReady {
		t.Fatalf("next operation should be READY after full confirmation, got %s", next.Status)
	}

	origin, err := models.GetBatchGenealogy(ctx, output.ID)
	if err != nil {
		t.Fatalf("GetBatchGenealogy output: %v", err)
	}
	if origin.Origin == nil {
		t.Fatalf("output batch should carry a confirmation origin")
	}
	if origin.Origin.OrderNo != line.OrderNo {
		t.Fatalf("origin order: want %s, got %s", line.OrderNo, origin.Origin.OrderNo)
	}
}

func TestConfirmOperationPartialThenComplete(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")
	detail := seedProcess(t, line, "100", "100")
	input := seedBatch(t, iron, "200", models.BatchStatusAvailable)

	partial, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: detail.Operations[0].ID,
		ProducedQty: mustDecimal(t, "40"),
		Materials:   []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "50")}},
		Actor:       "Test",
	})
	if err != nil {
		t.Fatalf("partial ConfirmOperation: %v", err)
	}
	if partial.Confirmation.Status != models.ConfirmationStatusPartiallyConfirmed {
		t.Fatalf("partial confirmation status: got %s", partial.Confirmation.Status)
	}
	if !partial.Confirmation.IsPartial {
		t.Fatalf("confirmation should be flagged partial")
	}
	assertDecimalEqual(t, "60", partial.Confirmation.RemainingQty, "remaining after partial")
	if partial.Operation.Status != models.OperationStatusInProgress {
		t.Fatalf("partially confirmed operation stays IN_PROGRESS, got %s", partial.Operation.Status)
	}

	next, err := models.GetOperation(ctx, detail.Operations[1].ID)
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if next.Status != models.OperationStatusNotStarted {
		t.Fatalf("next operation must not advance on a partial, got %s", next.Status)
	}

	leftover, err := models.GetBatch(ctx, input.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	assertDecimalEqual(t, "150", leftover.Quantity, "partially drawn input")
	if leftover.Status != models.BatchStatusAvailable {
		t.Fatalf("partially drawn input stays AVAILABLE, got %s", leftover.Status)
	}

	full, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: detail.Operations[0].ID,
		ProducedQty: mustDecimal(t, "60"),
		Materials:   []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "70")}},
		Actor:       "Test",
	})
	if err != nil {
		t.Fatalf("completing ConfirmOperation: %v", err)
	}
	if full.Operation.Status != models.OperationStatusConfirmed {
		t.Fatalf("operation should be CONFIRMED after reaching target, got %s", full.Operation.Status)
	}
	assertDecimalEqual(t, "100", full.Operation.ConfirmedQty, "cumulative confirmed quantity")

	next, err = models.GetOperation(ctx, detail.Operations[1].ID)
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if next.Status != models.OperationStatusReady {
		t.Fatalf("next operation should be READY now, got %s", next.Status)
	}
}

func TestConfirmOperationForcePartial(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")
	detail := seedProcess(t, line, "100", "100")
	input := seedBatch(t, iron, "300", models.BatchStatusAvailable)

	// Produced quantity reaches the target, but the caller keeps the
	// operation open for rework output.
	forced, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId:  detail.Operations[0].ID,
		ProducedQty:  mustDecimal(t, "100"),
		Materials:    []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "100")}},
		ForcePartial: true,
		Actor:        "Test",
	})
	if err != nil {
		t.Fatalf("forced partial ConfirmOperation: %v", err)
	}
	if forced.Confirmation.Status != models.ConfirmationStatusPartiallyConfirmed {
		t.Fatalf("forced partial confirmation status: got %s", forced.Confirmation.Status)
	}
	if !forced.Confirmation.IsPartial {
		t.Fatalf("forced confirmation should be flagged partial")
	}
	if forced.Operation.Status != models.OperationStatusInProgress {
		t.Fatalf("forced partial keeps the operation IN_PROGRESS, got %s", forced.Operation.Status)
	}
	assertDecimalEqual(t, "100", forced.Operation.ConfirmedQty, "confirmed quantity after forced partial")

	next, err := models.GetOperation(ctx, detail.Operations[1].ID)
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if next.Status != models.OperationStatusNotStarted {
		t.Fatalf("next operation must not advance on a forced partial, got %s", next.Status)
	}

	// A later confirmation without the flag closes the operation.
	closing, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: detail.Operations[0].ID,
		ProducedQty: mustDecimal(t, "5"),
		Materials:   []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "5")}},
		Actor:       "Test",
	})
	if err != nil {
		t.Fatalf("closing ConfirmOperation: %v", err)
	}
	if closing.Operation.Status != models.OperationStatusConfirmed {
		t.Fatalf("operation should close once confirmed past target without the flag, got %s", closing.Operation.Status)
	}

	next, err = models.GetOperation(ctx, detail.Operations[1].ID)
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if next.Status != models.OperationStatusReady {
		t.Fatalf("next operation should be READY after the closing confirmation, got %s", next.Status)
	}
}

func TestConfirmOperationRejectsInvertedWorkInterval(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")
	detail := seedProcess(t, line, "100")

	started := time.Date(2026, 2, 6, 15, 0, 0, 0, time.UTC)
	ended := started.Add(-time.Hour)
	_, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: detail.Operations[0].ID,
		ProducedQty: mustDecimal(t, "10"),
		StartTime:   &started,
		EndTime:     &ended,
		Actor:       "Test",
	})
	if !utils.IsKind(err, utils.ErrorKindValidationFailure) {
		t.Fatalf("end before start: want ValidationFailure, got %v", err)
	}
}

func TestConfirmOperationPreconditions(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")
	detail := seedProcess(t, line, "100", "100")
	input := seedBatch(t, iron, "50", models.BatchStatusAvailable)

	if _, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: 999999, ProducedQty: mustDecimal(t, "10"), Actor: "Test",
	}); !utils.IsKind(err, utils.ErrorKindNotFound) {
		t.Fatalf("unknown operation: want NotFound, got %v", err)
	}

	// Second operation is still NOT_STARTED.
	if _, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: detail.Operations[1].ID, ProducedQty: mustDecimal(t, "10"), Actor: "Test",
	}); !utils.IsKind(err, utils.ErrorKindInvalidState) {
		t.Fatalf("NOT_STARTED operation: want InvalidState, got %v", err)
	}

	blocked := seedBatch(t, iron, "50", models.BatchStatusBlocked)
	err := func() error {
		_, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
			OperationId: detail.Operations[0].ID,
			ProducedQty: mustDecimal(t, "10"),
			Materials: []models.MaterialConsumption{
				{BatchId: input.ID, Quantity: mustDecimal(t, "10")},
				{BatchId: blocked.ID, Quantity: mustDecimal(t, "10")},
			},
			Actor: "Test",
		})
		return err
	}()
	if !utils.IsKind(err, utils.ErrorKindInvalidState) {
		t.Fatalf("BLOCKED input batch: want InvalidState, got %v", err)
	}
	untouched, err := models.GetBatch(ctx, input.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	assertDecimalEqual(t, "50", untouched.Quantity, "no partial decrement on failed confirmation")

	if _, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: detail.Operations[0].ID,
		ProducedQty: mustDecimal(t, "10"),
		Materials:   []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "60")}},
		Actor:       "Test",
	}); !utils.IsKind(err, utils.ErrorKindInsufficientQuantity) {
		t.Fatalf("insufficient input: want InsufficientQuantity, got %v", err)
	}

	qualityPending := seedBatch(t, iron, "30", models.BatchStatusQualityPending)
	if _, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: detail.Operations[0].ID,
		ProducedQty: mustDecimal(t, "10"),
		Materials:   []models.MaterialConsumption{{BatchId: qualityPending.ID, Quantity: mustDecimal(t, "5")}},
		Actor:       "Test",
	}); err != nil {
		t.Fatalf("QUALITY_PENDING input is consumable: %v", err)
	}
}

func TestConfirmOperationRespectsHolds(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")
	detail := seedProcess(t, line, "100")
	input := seedBatch(t, iron, "100", models.BatchStatusAvailable)
	op := detail.Operations[0]

	opHold, err := models.CreateHold(ctx, &models.CreateHoldInput{
		ReferenceType: models.HoldReferenceTypeOperation,
		ReferenceId:   op.ID,
		Reason:        "deviation investigation",
		Actor:         "Test",
	})
	if err != nil {
		t.Fatalf("CreateHold: %v", err)
	}

	_, err = models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: op.ID,
		ProducedQty: mustDecimal(t, "10"),
		Materials:   []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "10")}},
		Actor:       "Test",
	})
	if !utils.IsKind(err, utils.ErrorKindOnHold) {
		t.Fatalf("operation hold: want OnHold, got %v", err)
	}
	if !strings.Contains(err.Error(), "deviation investigation") {
		t.Fatalf("hold error should carry the reason, got %q", err.Error())
	}

	if _, err := models.ReleaseHold(ctx, opHold.ID, "Test"); err != nil {
		t.Fatalf("ReleaseHold: %v", err)
	}

	processHold, err := models.CreateHold(ctx, &models.CreateHoldInput{
		ReferenceType: models.HoldReferenceTypeProcess,
		ReferenceId:   detail.Process.ID,
		Reason:        "audit",
		Actor:         "Test",
	})
	if err != nil {
		t.Fatalf("CreateHold process: %v", err)
	}
	_, err = models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: op.ID,
		ProducedQty: mustDecimal(t, "10"),
		Materials:   []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "10")}},
		Actor:       "Test",
	})
	if !utils.IsKind(err, utils.ErrorKindOnHold) {
		t.Fatalf("process hold: want OnHold, got %v", err)
	}
	if _, err := models.ReleaseHold(ctx, processHold.ID, "Test"); err != nil {
		t.Fatalf("ReleaseHold process: %v", err)
	}
	if _, err := models.ReleaseHold(ctx, processHold.ID, "Test"); !utils.IsKind(err, utils.ErrorKindInvalidState) {
		t.Fatalf("double release: want InvalidState, got %v", err)
	}

	if _, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: op.ID,
		ProducedQty: mustDecimal(t, "100"),
		Materials:   []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "100")}},
		Actor:       "Test",
	}); err != nil {
		t.Fatalf("confirmation after releasing holds: %v", err)
	}
}

func TestProcessCompletesAfterLastOperation(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "50")
	detail := seedProcess(t, line, "50")
	input := seedBatch(t, iron, "50", models.BatchStatusAvailable)

	if _, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: detail.Operations[0].ID,
		ProducedQty: mustDecimal(t, "50"),
		Materials:   []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "50")}},
		Actor:       "Test",
	}); err != nil {
		t.Fatalf("ConfirmOperation: %v", err)
	}

	finished, err := models.GetProductionProcess(ctx, detail.Process.ID)
	if err != nil {
		t.Fatalf("GetProductionProcess: %v", err)
	}
	if finished.Process.Status != models.ProcessStatusCompleted {
		t.Fatalf("process should be COMPLETED after its last operation, got %s", finished.Process.Status)
	}
}

func TestConfirmAgainstCancelledProcess(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")
	detail := seedProcess(t, line, "100")

	if _, err := models.CancelProductionProcess(ctx, detail.Process.ID, "order cancelled", "Test"); err != nil {
		t.Fatalf("CancelProductionProcess: %v", err)
	}
	_, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: detail.Operations[0].ID,
		ProducedQty: mustDecimal(t, "10"),
		Actor:       "Test",
	})
	if !utils.IsKind(err, utils.ErrorKindInvalidState) {
		t.Fatalf("confirmation against cancelled process: want InvalidState, got %v", err)
	}

	if _, err := models.CancelProductionProcess(ctx, detail.Process.ID, "again", "Test"); !utils.IsKind(err, utils.ErrorKindInvalidState) {
		t.Fatalf("double cancel: want InvalidState, got %v", err)
	}
}

func TestRejectConfirmation(t *testing.T) {
	resetTables(t)
	ctx := testContext()
	iron := seedMaterial(t, "IRON", "Iron ingot", "KG")
	plate := seedMaterial(t, "PLATE", "Steel plate", "PC")
	line := seedOrderLine(t, plate, "100")
	detail := seedProcess(t, line, "100")
	input := seedBatch(t, iron, "100", models.BatchStatusAvailable)

	result, err := models.ConfirmOperation(ctx, &models.ConfirmOperationInput{
		OperationId: detail.Operations[0].ID,
		ProducedQty: mustDecimal(t, "100"),
		Materials:   []models.MaterialConsumption{{BatchId: input.ID, Quantity: mustDecimal(t, "100")}},
		Actor:       "Test",
	})
	if err != nil {
		t.Fatalf("ConfirmOperation: %v", err)
	}

	rejected, err := models.RejectConfirmation(ctx, result.Confirmation.ID, "wrong batch scanned", "Supervisor")
	if err != nil {
		t.Fatalf("RejectConfirmation: %v", err)
	}
	if rejected.Status != models.ConfirmationStatusRejected {
		t.Fatalf("rejected status: got %s", rejected.Status)
	}
	if rejected.RejectionReason == nil || *rejected.RejectionReason != "wrong batch scanned" {
		t.Fatalf("rejection reason not recorded: %+v", rejected)
	}

	// Rejection is a flag, not a reversal.
	output, err := models.GetBatch(ctx, result.Outputs[0].ID)
	if err != nil {
		t.Fatalf("GetBatch output: %v", err)
	}
	assertDecimalEqual(t, "100", output.Quantity, "output untouched by rejection")
	consumed, err := models.GetBatch(ctx, input.ID)
	if err != nil {
		t.Fatalf("GetBatch input: %v", err)
	}
	if consumed.Status != models.BatchStatusConsumed {
		t.Fatalf("consumed input untouched by rejection, got %s", consumed.Status)
	}

	if _, err := models.RejectConfirmation(ctx, result.Confirmation.ID, "again", "Supervisor"); !utils.IsKind(err, utils.ErrorKindInvalidState) {
		t.Fatalf("double reject: want InvalidState, got %v", err)
	}
	if _, err := models.RejectConfirmation(ctx, result.Confirmation.ID, "   ", "Supervisor"); !utils.IsKind(err, utils.ErrorKindValidationFailure) {
		t.Fatalf("blank reason: want ValidationFailure, got %v", err)
	}

	detailView, err := models.GetConfirmation(ctx, result.Confirmation.ID)
	if err != nil {
		t.Fatalf("GetConfirmation: %v", err)
	}
	if len(detailView.Materials) != 1 || len(detailView.Outputs) != 1 {
		t.Fatalf("confirmation detail lines: materials=%d outputs=%d", len(detailView.Materials), len(detailView.Outputs))
	}
}
