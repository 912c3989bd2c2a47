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

// ProductionProcess is one execution of a routing against an order line. Its
// operations carry the per-step state; the process itself only tracks whether
// the run as a whole is still active.
type ProductionProcess struct {
	ID          int           `gorm:"primary_key" json:"id"`
	OrderLineId int           `gorm:"not null;index" json:"order_line_id"`
	ProductSku  *string       `gorm:"size:100" json:"product_sku"`
	Status      ProcessStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedBy   string        `gorm:"size:100" json:"created_by"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type OperationStep struct {
	SequenceNo    int             `json:"sequence_no" validate:"required,gt=0"`
	OperationCode string          `json:"operation_code" validate:"required"`
	Name          string          `json:"name"`
	TargetQty     decimal.Decimal `json:"target_qty"`
}

type CreateProductionProcessInput struct {
	OrderLineId int             `json:"order_line_id" validate:"required,gt=0"`
	ProductSku  *string         `json:"product_sku"`
	Operations  []OperationStep `json:"operations" validate:"required,min=1,dive"`
	Actor       string          `json:"actor"`
}

type ProductionProcessDetail struct {
	Process    *ProductionProcess `json:"process"`
	Operations []Operation        `json:"operations"`
}

// CreateProductionProcess instantiates a routing for an order line. Every
// operation starts NOT_STARTED except the lowest sequence number, which is
// READY so work can begin immediately.
func CreateProductionProcess(ctx context.Context, input *CreateProductionProcessInput) (*ProductionProcessDetail, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	minSeq := input.Operations[0].SequenceNo
	for _, step := range input.Operations {
		if seen[step.SequenceNo] {
			return nil, utils.ValidationError("duplicate operation sequence number %d", step.SequenceNo)
		}
		seen[step.SequenceNo] = true
		if step.TargetQty.IsNegative() {
			return nil, utils.ValidationError("operation %s target quantity must not be negative", step.OperationCode)
		}
		if step.SequenceNo < minSeq {
			minSeq = step.SequenceNo
		}
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	if _, err := getOrderLineTx(tx, input.OrderLineId); err != nil {
		tx.Rollback()
		return nil, err
	}

	actor := utils.ActorOrSystem(input.Actor)
	process := ProductionProcess{
		OrderLineId: input.OrderLineId,
		ProductSku:  input.ProductSku,
		Status:      ProcessStatusActive,
		CreatedBy:   actor,
	}
	if err := tx.Create(&process).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	SaveHistoryCreate(tx, "ProductionProcess", process.ID, &process, "Production process created.", actor)

	operations := make([]Operation, 0, len(input.Operations))
	for _, step := range input.Operations {
		status := OperationStatusNotStarted
		if step.SequenceNo == minSeq {
			status = OperationStatusReady
		}
		operation := Operation{
			ProcessId:     process.ID,
			SequenceNo:    step.SequenceNo,
			OperationCode: step.OperationCode,
			Name:          step.Name,
			Status:        status,
			TargetQty:     step.TargetQty,
			ConfirmedQty:  decimal.Zero,
			CreatedBy:     actor,
		}
		if err := tx.Create(&operation).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		operations = append(operations, operation)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &ProductionProcessDetail{Process: &process, Operations: operations}, nil
}

func GetProductionProcess(ctx context.Context, processId int) (*ProductionProcessDetail, error) {
	db := config.GetDB().WithContext(ctx)
	process, err := getProductionProcessTx(db, processId)
	if err != nil {
		return nil, err
	}
	var operations []Operation
	if err := db.Where("process_id = ?", processId).Order("sequence_no").Find(&operations).Error; err != nil {
		return nil, err
	}
	return &ProductionProcessDetail{Process: process, Operations: operations}, nil
}

func getProductionProcessTx(tx *gorm.DB, processId int) (*ProductionProcess, error) {
	var process ProductionProcess
	if err := tx.First(&process, processId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("production process", processId)
		}
		return nil, err
	}
	return &process, nil
}

// CancelProductionProcess ends an active run. Confirmed work is untouched;
// the process simply stops accepting confirmations.
func CancelProductionProcess(ctx context.Context, processId int, reason string, actor string) (*ProductionProcess, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	process, err := getProductionProcessTx(tx, processId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if process.Status != ProcessStatusActive {
		tx.Rollback()
		return nil, utils.InvalidStateError("production process", processId, string(process.Status), "cancel")
	}

	if err := tx.Model(process).Update("status", ProcessStatusCancelled).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	process.Status = ProcessStatusCancelled
	who := utils.ActorOrSystem(actor)
	SaveHistoryStatusChange(tx, "ProductionProcess", process.ID, string(ProcessStatusActive), string(ProcessStatusCancelled), who)
	if reason != "" {
		SaveHistoryUpdate(tx, "ProductionProcess", process.ID, "cancel_reason", "", reason, who)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return process, nil
}

// completeProcessIfFinishedTx marks a process COMPLETED once every operation
// is CONFIRMED. Called after a full confirmation advances the routing.
func completeProcessIfFinishedTx(tx *gorm.DB, processId int, actor string) error {
	var remaining int64
	if err := tx.Model(&Operation{}).
		Where("process_id = ? AND status <> ?", processId, OperationStatusConfirmed).
		Count(&remaining).Error; err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	if err := tx.Model(&ProductionProcess{}).Where("id = ? AND status = ?", processId, ProcessStatusActive).
		Update("status", ProcessStatusCompleted).Error; err != nil {
		return err
	}
	SaveHistoryStatusChange(tx, "ProductionProcess", processId, string(ProcessStatusActive), string(ProcessStatusCompleted), actor)
	return nil
}
