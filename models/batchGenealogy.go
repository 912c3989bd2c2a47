package models

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"gorm.io/gorm"
)

// BatchRelationEdge pairs a genealogy edge with the batch on the other end.
type BatchRelationEdge struct {
	Relation BatchRelation `json:"relation"`
	Batch    Batch         `json:"batch"`
}

// BatchOriginContext points at the production confirmation that emitted the
// batch, when there is one.
type BatchOriginContext struct {
	ConfirmationId int    `json:"confirmation_id"`
	OperationId    int    `json:"operation_id"`
	ProcessId      int    `json:"process_id"`
	OrderLineId    int    `json:"order_line_id"`
	OrderNo        string `json:"order_no"`
}

type BatchGenealogy struct {
	Batch    *Batch              `json:"batch"`
	Parents  []BatchRelationEdge `json:"parents"`
	Children []BatchRelationEdge `json:"children"`
	Origin   *BatchOriginContext `json:"origin"`
}

// GetBatchGenealogy returns the batch with its direct parents and children
// (one hop, not the transitive closure) and the originating confirmation
// context for production output batches. A batch with no relations returns
// empty lists.
func GetBatchGenealogy(ctx context.Context, batchId int) (*BatchGenealogy, error) {
	db := config.GetDB().WithContext(ctx)

	batch, err := getBatchTx(db, batchId)
	if err != nil {
		return nil, err
	}

	genealogy := BatchGenealogy{
		Batch:    batch,
		Parents:  []BatchRelationEdge{},
		Children: []BatchRelationEdge{},
	}

	var parentRelations []BatchRelation
	if err := db.Where("child_batch_id = ?", batchId).Order("id").Find(&parentRelations).Error; err != nil {
		return nil, err
	}
	for _, relation := range parentRelations {
		parent, err := getBatchTx(db, relation.ParentBatchId)
		if err != nil {
			return nil, err
		}
		genealogy.Parents = append(genealogy.Parents, BatchRelationEdge{Relation: relation, Batch: *parent})
	}

	var childRelations []BatchRelation
	if err := db.Where("parent_batch_id = ?", batchId).Order("id").Find(&childRelations).Error; err != nil {
		return nil, err
	}
	for _, relation := range childRelations {
		child, err := getBatchTx(db, relation.ChildBatchId)
		if err != nil {
			return nil, err
		}
		genealogy.Children = append(genealogy.Children, BatchRelationEdge{Relation: relation, Batch: *child})
	}

	origin, err := batchOriginContext(db, batchId)
	if err != nil {
		return nil, err
	}
	genealogy.Origin = origin

	return &genealogy, nil
}

func batchOriginContext(db *gorm.DB, batchId int) (*BatchOriginContext, error) {
	var output ProductionConfirmationOutput
	if err := db.Where("batch_id = ?", batchId).Order("id").First(&output).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var confirmation ProductionConfirmation
	if err := db.First(&confirmation, output.ConfirmationId).Error; err != nil {
		return nil, err
	}
	var operation Operation
	if err := db.First(&operation, confirmation.OperationId).Error; err != nil {
		return nil, err
	}
	var process ProductionProcess
	if err := db.First(&process, operation.ProcessId).Error; err != nil {
		return nil, err
	}
	var line OrderLine
	if err := db.First(&line, process.OrderLineId).Error; err != nil {
		return nil, err
	}

	return &BatchOriginContext{
		ConfirmationId: confirmation.ID,
		OperationId:    operation.ID,
		ProcessId:      process.ID,
		OrderLineId:    line.ID,
		OrderNo:        line.OrderNo,
	}, nil
}
