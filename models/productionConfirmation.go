package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductionConfirmation records that an operation produced output and
// consumed input batches. The row is immutable once posted; a mistake is
// handled by rejecting the confirmation, which flags it without reversing any
// inventory movement.
type ProductionConfirmation struct {
	ID           int                `gorm:"primary_key" json:"id"`
	OperationId  int                `gorm:"not null;index" json:"operation_id"`
	ProcessId    int                `gorm:"not null;index" json:"process_id"`
	ProducedQty  decimal.Decimal    `gorm:"type:decimal(20,6);not null" json:"produced_qty"`
	ScrapQty     decimal.Decimal    `gorm:"type:decimal(20,6);not null" json:"scrap_qty"`
	RemainingQty decimal.Decimal    `gorm:"type:decimal(20,6);not null" json:"remaining_qty"`
	IsPartial    bool               `gorm:"not null" json:"is_partial"`
	Status       ConfirmationStatus `gorm:"size:25;not null;index" json:"status"`
	// StartTime/EndTime are the reported work interval of the confirmation
	// event; ConfirmedAt is when the record was posted.
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	EquipmentIds    string     `gorm:"size:255" json:"equipment_ids"`
	OperatorIds     string     `gorm:"size:255" json:"operator_ids"`
	ConfirmedBy     string     `gorm:"size:100" json:"confirmed_by"`
	ConfirmedAt     time.Time  `gorm:"autoCreateTime" json:"confirmed_at"`
	RejectedBy      *string    `gorm:"size:100" json:"rejected_by"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason *string    `gorm:"size:255" json:"rejection_reason"`
}

// ProductionConfirmationMaterial is one input batch consumption line.
type ProductionConfirmationMaterial struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ConfirmationId int             `gorm:"not null;index" json:"confirmation_id"`
	BatchId        int             `gorm:"not null;index" json:"batch_id"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
}

// ProductionConfirmationOutput links a confirmation to a batch it produced.
type ProductionConfirmationOutput struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ConfirmationId int             `gorm:"not null;index" json:"confirmation_id"`
	BatchId        int             `gorm:"not null;index" json:"batch_id"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
}

type MaterialConsumption struct {
	BatchId  int             `json:"batch_id" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity"`
}

type ConfirmOperationInput struct {
	OperationId  int                   `json:"operation_id" validate:"required,gt=0"`
	ProducedQty  decimal.Decimal       `json:"produced_qty"`
	ScrapQty     decimal.Decimal       `json:"scrap_qty"`
	Materials    []MaterialConsumption `json:"materials" validate:"dive"`
	StartTime    *time.Time            `json:"start_time"`
	EndTime      *time.Time            `json:"end_time"`
	EquipmentIds []string              `json:"equipment_ids"`
	OperatorIds  []string              `json:"operator_ids"`
	// ForcePartial keeps the operation open even when the produced quantity
	// reaches the target, so more output can be booked against it later.
	ForcePartial bool   `json:"force_partial"`
	Actor        string `json:"actor"`
}

type ConfirmOperationResult struct {
	Confirmation *ProductionConfirmation `json:"confirmation"`
	Operation    *Operation              `json:"operation"`
	Outputs      []*Batch                `json:"outputs"`
}

// BatchSizer decides how produced quantity is cut into output batches. The
// default emits one batch for the full quantity; installations with fixed
// container sizes swap in their own.
type BatchSizer interface {
	SizeBatches(operation *Operation, producedQty decimal.Decimal) []decimal.Decimal
}

type singleBatchSizer struct{}

func (singleBatchSizer) SizeBatches(_ *Operation, producedQty decimal.Decimal) []decimal.Decimal {
	return []decimal.Decimal{producedQty}
}

// OutputBatchSizer is consulted on every confirmation. Replace it before
// serving traffic; it is not safe to swap concurrently with confirmations.
var OutputBatchSizer BatchSizer = singleBatchSizer{}

// ConfirmOperation posts a production confirmation. All checks run before the
// first write, and the input decrements, output batch creation, genealogy
// links, confirmation row and operation transition commit as one unit.
func ConfirmOperation(ctx context.Context, input *ConfirmOperationInput) (*ConfirmOperationResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.ProducedQty.IsPositive() {
		return nil, utils.ValidationError("produced quantity must be positive, got %s", input.ProducedQty.String())
	}
	if input.ScrapQty.IsNegative() {
		return nil, utils.ValidationError("scrap quantity must not be negative, got %s", input.ScrapQty.String())
	}
	if input.StartTime != nil && input.EndTime != nil && input.EndTime.Before(*input.StartTime) {
		return nil, utils.ValidationError("confirmation end time %s is before start time %s",
			input.EndTime.Format(time.RFC3339), input.StartTime.Format(time.RFC3339))
	}
	seenBatch := map[int]bool{}
	for i, material := range input.Materials {
		if !material.Quantity.IsPositive() {
			return nil, utils.ValidationError("material line %d quantity must be positive, got %s", i+1, material.Quantity.String())
		}
		if seenBatch[material.BatchId] {
			return nil, utils.ValidationError("batch %d appears more than once in the material list", material.BatchId)
		}
		seenBatch[material.BatchId] = true
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	result, err := confirmOperationTx(tx, input)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

func confirmOperationTx(tx *gorm.DB, input *ConfirmOperationInput) (*ConfirmOperationResult, error) {
	operation, err := getOperationTx(tx, input.OperationId)
	if err != nil {
		return nil, err
	}
	if operation.Status != OperationStatusReady && operation.Status != OperationStatusInProgress {
		return nil, utils.InvalidStateError("operation", operation.ID, string(operation.Status), "confirm")
	}

	if hold, err := activeHoldTx(tx, HoldReferenceTypeOperation, operation.ID); err != nil {
		return nil, err
	} else if hold != nil {
		return nil, utils.OnHoldError("operation", operation.ID, hold.Reason)
	}
	if hold, err := activeHoldTx(tx, HoldReferenceTypeProcess, operation.ProcessId); err != nil {
		return nil, err
	} else if hold != nil {
		return nil, utils.OnHoldError("production process", operation.ProcessId, hold.Reason)
	}

	process, err := getProductionProcessTx(tx, operation.ProcessId)
	if err != nil {
		return nil, err
	}
	if process.Status != ProcessStatusActive {
		return nil, utils.InvalidStateError("production process", process.ID, string(process.Status), "confirm against")
	}

	line, err := getOrderLineTx(tx, process.OrderLineId)
	if err != nil {
		return nil, err
	}
	product, err := getMaterialTx(tx, line.MaterialId)
	if err != nil {
		return nil, err
	}

	// Validate every input batch before decrementing the first one.
	inputs := make([]*Batch, 0, len(input.Materials))
	for _, material := range input.Materials {
		batch, err := getBatchTx(tx, material.BatchId)
		if err != nil {
			return nil, err
		}
		if err := validateBatchConsumable(batch, material.Quantity); err != nil {
			return nil, err
		}
		inputs = append(inputs, batch)
	}

	actor := utils.ActorOrSystem(input.Actor)
	for i, material := range input.Materials {
		batch := inputs[i]
		remaining := batch.Quantity.Sub(material.Quantity)
		newStatus := batch.Status
		if remaining.IsZero() {
			newStatus = BatchStatusConsumed
		}
		priorStatus := batch.Status
		if err := applyBatchQuantityTx(tx, batch, remaining, newStatus); err != nil {
			return nil, err
		}
		if newStatus != priorStatus {
			SaveHistoryStatusChange(tx, "Batch", batch.ID, string(priorStatus), string(newStatus), actor)
		}
	}

	totalConfirmed := operation.ConfirmedQty.Add(input.ProducedQty)
	remainingQty := operation.TargetQty.Sub(totalConfirmed)
	if remainingQty.IsNegative() {
		remainingQty = decimal.Zero
	}
	isPartial := input.ForcePartial || totalConfirmed.LessThan(operation.TargetQty)

	confirmationStatus := ConfirmationStatusConfirmed
	if isPartial {
		confirmationStatus = ConfirmationStatusPartiallyConfirmed
	}
	confirmation := ProductionConfirmation{
		OperationId:  operation.ID,
		ProcessId:    operation.ProcessId,
		ProducedQty:  input.ProducedQty,
		ScrapQty:     input.ScrapQty,
		RemainingQty: remainingQty,
		IsPartial:    isPartial,
		Status:       confirmationStatus,
		StartTime:    input.StartTime,
		EndTime:      input.EndTime,
		EquipmentIds: strings.Join(input.EquipmentIds, ","),
		OperatorIds:  strings.Join(input.OperatorIds, ","),
		ConfirmedBy:  actor,
	}
	if err := tx.Create(&confirmation).Error; err != nil {
		return nil, err
	}
	SaveHistoryCreate(tx, "ProductionConfirmation", confirmation.ID, &confirmation,
		"Confirmed "+input.ProducedQty.String()+" "+line.Unit+" on operation "+operation.OperationCode+".", actor)

	for i, material := range input.Materials {
		record := ProductionConfirmationMaterial{
			ConfirmationId: confirmation.ID,
			BatchId:        inputs[i].ID,
			Quantity:       material.Quantity,
		}
		if err := tx.Create(&record).Error; err != nil {
			return nil, err
		}
	}

	productSku := ""
	if process.ProductSku != nil {
		productSku = *process.ProductSku
	}
	outputs := make([]*Batch, 0, 1)
	for _, size := range OutputBatchSizer.SizeBatches(operation, input.ProducedQty) {
		if !size.IsPositive() {
			continue
		}
		number := generateBatchNumberTx(tx, &GenerateBatchNumberInput{
			Kind:          BatchKindProduction,
			OperationType: operation.OperationCode,
			ProductSku:    productSku,
			MaterialId:    product.ID,
			MaterialCode:  product.Code,
		})
		output := Batch{
			BatchNumber:  number,
			MaterialId:   product.ID,
			MaterialCode: product.Code,
			MaterialName: product.Name,
			Quantity:     size,
			Unit:         line.Unit,
			Status:       BatchStatusQualityPending,
		}
		if err := createBatchTx(tx, &output, actor); err != nil {
			return nil, err
		}
		if err := tx.Create(&ProductionConfirmationOutput{
			ConfirmationId: confirmation.ID,
			BatchId:        output.ID,
			Quantity:       size,
		}).Error; err != nil {
			return nil, err
		}
		for i, material := range input.Materials {
			if err := createBatchRelationTx(tx, inputs[i].ID, output.ID, BatchRelationTypeTransform, material.Quantity, actor); err != nil {
				return nil, err
			}
		}
		outputs = append(outputs, &output)
	}

	priorOpStatus := operation.Status
	newOpStatus := OperationStatusInProgress
	if !isPartial {
		newOpStatus = OperationStatusConfirmed
	}
	if err := tx.Model(operation).Updates(map[string]interface{}{
		"status":        newOpStatus,
		"confirmed_qty": totalConfirmed,
	}).Error; err != nil {
		return nil, err
	}
	operation.Status = newOpStatus
	operation.ConfirmedQty = totalConfirmed
	if newOpStatus != priorOpStatus {
		SaveHistoryStatusChange(tx, "Operation", operation.ID, string(priorOpStatus), string(newOpStatus), actor)
	}

	if newOpStatus == OperationStatusConfirmed {
		if err := progressToNextOperationTx(tx, operation, actor); err != nil {
			return nil, err
		}
		if err := completeProcessIfFinishedTx(tx, operation.ProcessId, actor); err != nil {
			return nil, err
		}
	}

	return &ConfirmOperationResult{Confirmation: &confirmation, Operation: operation, Outputs: outputs}, nil
}

// RejectConfirmation flags a posted confirmation as rejected. Inventory and
// operation state are deliberately untouched; corrections happen through
// batch adjustments and fresh confirmations.
func RejectConfirmation(ctx context.Context, confirmationId int, reason string, actor string) (*ProductionConfirmation, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, utils.ValidationError("rejection reason must not be blank")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var confirmation ProductionConfirmation
	if err := tx.First(&confirmation, confirmationId).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("confirmation", confirmationId)
		}
		return nil, err
	}
	if confirmation.Status == ConfirmationStatusRejected {
		tx.Rollback()
		return nil, utils.InvalidStateError("confirmation", confirmationId, string(confirmation.Status), "reject")
	}

	who := utils.ActorOrSystem(actor)
	now := time.Now()
	priorStatus := confirmation.Status
	if err := tx.Model(&confirmation).Updates(map[string]interface{}{
		"status":           ConfirmationStatusRejected,
		"rejected_by":      who,
		"rejected_at":      now,
		"rejection_reason": reason,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	confirmation.Status = ConfirmationStatusRejected
	confirmation.RejectedBy = &who
	confirmation.RejectedAt = &now
	confirmation.RejectionReason = &reason
	SaveHistoryStatusChange(tx, "ProductionConfirmation", confirmation.ID, string(priorStatus), string(ConfirmationStatusRejected), who)
	SaveHistoryUpdate(tx, "ProductionConfirmation", confirmation.ID, "rejection_reason", "", reason, who)

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &confirmation, nil
}

// GetConfirmation returns a confirmation with its material and output lines.
type ProductionConfirmationDetail struct {
	Confirmation *ProductionConfirmation          `json:"confirmation"`
	Materials    []ProductionConfirmationMaterial `json:"materials"`
	Outputs      []ProductionConfirmationOutput   `json:"outputs"`
}

func GetConfirmation(ctx context.Context, confirmationId int) (*ProductionConfirmationDetail, error) {
	db := config.GetDB().WithContext(ctx)

	var confirmation ProductionConfirmation
	if err := db.First(&confirmation, confirmationId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("confirmation", confirmationId)
		}
		return nil, err
	}
	detail := ProductionConfirmationDetail{
		Confirmation: &confirmation,
		Materials:    []ProductionConfirmationMaterial{},
		Outputs:      []ProductionConfirmationOutput{},
	}
	if err := db.Where("confirmation_id = ?", confirmationId).Order("id").Find(&detail.Materials).Error; err != nil {
		return nil, err
	}
	if err := db.Where("confirmation_id = ?", confirmationId).Order("id").Find(&detail.Outputs).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}
