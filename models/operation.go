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

// Operation is one routing step of a production process. Status moves
// NOT_STARTED -> READY -> IN_PROGRESS -> CONFIRMED as work is confirmed, with
// BLOCKED as a side state that remembers where it came from.
type Operation struct {
	ID                int             `gorm:"primary_key" json:"id"`
	ProcessId         int             `gorm:"not null;index" json:"process_id"`
	SequenceNo        int             `gorm:"not null" json:"sequence_no"`
	OperationCode     string          `gorm:"size:50;not null" json:"operation_code"`
	Name              string          `gorm:"size:255" json:"name"`
	Status            OperationStatus `gorm:"size:25;not null;index" json:"status"`
	TargetQty         decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"target_qty"`
	ConfirmedQty      decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"confirmed_qty"`
	StatusBeforeBlock *string         `gorm:"size:25" json:"status_before_block"`
	BlockReason       *string         `gorm:"size:255" json:"block_reason"`
	BlockedBy         *string         `gorm:"size:100" json:"blocked_by"`
	BlockedAt         *time.Time      `json:"blocked_at"`
	CreatedBy         string          `gorm:"size:100" json:"created_by"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func getOperationTx(tx *gorm.DB, operationId int) (*Operation, error) {
	var operation Operation
	if err := tx.First(&operation, operationId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("operation", operationId)
		}
		return nil, err
	}
	return &operation, nil
}

func GetOperation(ctx context.Context, operationId int) (*Operation, error) {
	return getOperationTx(config.GetDB().WithContext(ctx), operationId)
}

// BlockOperation freezes an operation and remembers its current status so an
// unblock can restore it. A CONFIRMED operation is finished and cannot be
// blocked; blocking twice is rejected rather than overwriting the saved
// status.
func BlockOperation(ctx context.Context, operationId int, reason string, actor string) (*Operation, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, utils.ValidationError("block reason must not be blank")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	operation, err := getOperationTx(tx, operationId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if operation.Status == OperationStatusConfirmed || operation.Status == OperationStatusBlocked {
		tx.Rollback()
		return nil, utils.InvalidStateError("operation", operationId, string(operation.Status), "block")
	}

	who := utils.ActorOrSystem(actor)
	prior := string(operation.Status)
	now := time.Now()
	if err := tx.Model(operation).Updates(map[string]interface{}{
		"status":              OperationStatusBlocked,
		"status_before_block": prior,
		"block_reason":        reason,
		"blocked_by":          who,
		"blocked_at":          now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	operation.Status = OperationStatusBlocked
	operation.StatusBeforeBlock = &prior
	operation.BlockReason = &reason
	operation.BlockedBy = &who
	operation.BlockedAt = &now
	SaveHistoryStatusChange(tx, "Operation", operation.ID, prior, string(OperationStatusBlocked), who)
	SaveHistoryUpdate(tx, "Operation", operation.ID, "block_reason", "", reason, who)

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return operation, nil
}

// UnblockOperation restores the status saved at block time and clears the
// block metadata.
func UnblockOperation(ctx context.Context, operationId int, actor string) (*Operation, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	operation, err := getOperationTx(tx, operationId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if operation.Status != OperationStatusBlocked {
		tx.Rollback()
		return nil, utils.InvalidStateError("operation", operationId, string(operation.Status), "unblock")
	}

	restored := OperationStatusReady
	if operation.StatusBeforeBlock != nil && *operation.StatusBeforeBlock != "" {
		restored = OperationStatus(*operation.StatusBeforeBlock)
	}

	who := utils.ActorOrSystem(actor)
	if err := tx.Model(operation).Updates(map[string]interface{}{
		"status":              restored,
		"status_before_block": nil,
		"block_reason":        nil,
		"blocked_by":          nil,
		"blocked_at":          nil,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	operation.Status = restored
	operation.StatusBeforeBlock = nil
	operation.BlockReason = nil
	operation.BlockedBy = nil
	operation.BlockedAt = nil
	SaveHistoryStatusChange(tx, "Operation", operation.ID, string(OperationStatusBlocked), string(restored), who)

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return operation, nil
}

// progressToNextOperationTx moves the next NOT_STARTED operation in sequence
// order to READY after the given one is confirmed. A blocked or already
// started successor is left alone.
func progressToNextOperationTx(tx *gorm.DB, confirmed *Operation, actor string) error {
	var next Operation
	err := tx.Where("process_id = ? AND sequence_no > ? AND status = ?",
		confirmed.ProcessId, confirmed.SequenceNo, OperationStatusNotStarted).
		Order("sequence_no").First(&next).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := tx.Model(&next).Update("status", OperationStatusReady).Error; err != nil {
		return err
	}
	SaveHistoryStatusChange(tx, "Operation", next.ID, string(OperationStatusNotStarted), string(OperationStatusReady), actor)
	return nil
}
