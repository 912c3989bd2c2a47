package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BatchRelation is a directed genealogy edge parent -> child. QuantityConsumed
// records how much of the parent went into the child, which is what makes the
// split/merge conservation invariants auditable after the fact.
type BatchRelation struct {
	ID               int               `gorm:"primary_key" json:"id"`
	ParentBatchId    int               `gorm:"not null;index" json:"parent_batch_id"`
	ChildBatchId     int               `gorm:"not null;index" json:"child_batch_id"`
	RelationType     BatchRelationType `gorm:"size:20;not null" json:"relation_type"`
	QuantityConsumed decimal.Decimal   `gorm:"type:decimal(20,6);not null" json:"quantity_consumed"`
	CreatedBy        string            `gorm:"size:100" json:"created_by"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func createBatchRelationTx(tx *gorm.DB, parentId int, childId int, relationType BatchRelationType, qtyConsumed decimal.Decimal, actor string) error {
	relation := BatchRelation{
		ParentBatchId:    parentId,
		ChildBatchId:     childId,
		RelationType:     relationType,
		QuantityConsumed: qtyConsumed,
		CreatedBy:        actor,
	}
	return tx.Create(&relation).Error
}

func countSplitChildrenTx(tx *gorm.DB, parentId int) (int64, error) {
	var count int64
	err := tx.Model(&BatchRelation{}).
		Where("parent_batch_id = ? AND relation_type = ?", parentId, BatchRelationTypeSplit).
		Count(&count).Error
	return count, err
}
