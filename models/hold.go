package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// Hold is a quality or supervisory stop placed on an operation or a whole
// process. An ACTIVE hold blocks confirmations against the reference until it
// is released.
type Hold struct {
	ID            int               `gorm:"primary_key" json:"id"`
	ReferenceType HoldReferenceType `gorm:"size:20;not null;index:idx_holds_reference" json:"reference_type"`
	ReferenceId   int               `gorm:"not null;index:idx_holds_reference" json:"reference_id"`
	Status        HoldStatus        `gorm:"size:20;not null;index" json:"status"`
	Reason        string            `gorm:"size:255;not null" json:"reason"`
	CreatedBy     string            `gorm:"size:100" json:"created_by"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	ReleasedBy    *string           `gorm:"size:100" json:"released_by"`
	ReleasedAt    *time.Time        `json:"released_at"`
}

type CreateHoldInput struct {
	ReferenceType HoldReferenceType `json:"reference_type" validate:"required"`
	ReferenceId   int               `json:"reference_id" validate:"required,gt=0"`
	Reason        string            `json:"reason"`
	Actor         string            `json:"actor"`
}

// CreateHold places a hold on an operation or process. The reason is
// mandatory; a hold nobody can explain cannot be audited or released
// responsibly.
func CreateHold(ctx context.Context, input *CreateHoldInput) (*Hold, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, utils.ValidationError("hold reason must not be blank")
	}
	if input.ReferenceType != HoldReferenceTypeOperation && input.ReferenceType != HoldReferenceTypeProcess {
		return nil, utils.ValidationError("invalid hold reference type %q", string(input.ReferenceType))
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	switch input.ReferenceType {
	case HoldReferenceTypeOperation:
		if _, err := getOperationTx(tx, input.ReferenceId); err != nil {
			tx.Rollback()
			return nil, err
		}
	case HoldReferenceTypeProcess:
		if _, err := getProductionProcessTx(tx, input.ReferenceId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	hold := Hold{
		ReferenceType: input.ReferenceType,
		ReferenceId:   input.ReferenceId,
		Status:        HoldStatusActive,
		Reason:        input.Reason,
		CreatedBy:     utils.ActorOrSystem(input.Actor),
	}
	if err := tx.Create(&hold).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	SaveHistoryCreate(tx, "Hold", hold.ID, &hold, "Hold placed: "+input.Reason, hold.CreatedBy)

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &hold, nil
}

func ReleaseHold(ctx context.Context, holdId int, actor string) (*Hold, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var hold Hold
	if err := tx.First(&hold, holdId).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("hold", holdId)
		}
		return nil, err
	}
	if hold.Status != HoldStatusActive {
		tx.Rollback()
		return nil, utils.InvalidStateError("hold", holdId, string(hold.Status), "release")
	}

	who := utils.ActorOrSystem(actor)
	now := time.Now()
	if err := tx.Model(&hold).Updates(map[string]interface{}{
		"status":      HoldStatusReleased,
		"released_by": who,
		"released_at": now,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	hold.Status = HoldStatusReleased
	hold.ReleasedBy = &who
	hold.ReleasedAt = &now
	SaveHistoryStatusChange(tx, "Hold", hold.ID, string(HoldStatusActive), string(HoldStatusReleased), who)

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &hold, nil
}

// activeHoldTx returns the oldest ACTIVE hold on the reference, or nil.
func activeHoldTx(tx *gorm.DB, referenceType HoldReferenceType, referenceId int) (*Hold, error) {
	var hold Hold
	err := tx.Where("reference_type = ? AND reference_id = ? AND status = ?", referenceType, referenceId, HoldStatusActive).
		Order("id").First(&hold).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &hold, nil
}
