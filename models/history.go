package models

import (
	"encoding/json"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// History is the audit sink. Rows are written inside the mutating transaction
// but fire-and-forget from the caller's perspective: a failed audit write is
// logged and never fails the mutation it describes.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ActionType    string    `gorm:"size:20;not null" json:"action_type"`
	ReferenceType string    `gorm:"size:100;not null;index:idx_histories_ref" json:"reference_type"`
	ReferenceID   int       `gorm:"not null;index:idx_histories_ref" json:"reference_id"`
	Field         string    `gorm:"size:100" json:"field"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text" json:"description"`
	UserName      string    `gorm:"size:100;not null" json:"user_name"`
	CorrelationId string    `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB, actionType string, referenceType string, referenceId int, field string, before interface{}, after interface{}, description string, actor string) {
	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	history := History{
		ActionType:    actionType,
		ReferenceType: referenceType,
		ReferenceID:   referenceId,
		Field:         field,
		Before:        string(b),
		After:         string(a),
		Description:   description,
		UserName:      utils.ActorOrSystem(actor),
		CorrelationId: correlationIdFromContextOrNew(tx),
	}

	if err := tx.Create(&history).Error; err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "history.go", "createHistory", "audit write failed", fmt.Sprintf("%s %s %d", actionType, referenceType, referenceId), err)
	}
}

func correlationIdFromContextOrNew(tx *gorm.DB) string {
	if ctx := tx.Statement.Context; ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func SaveHistoryCreate(tx *gorm.DB, referenceType string, id int, obj interface{}, description string, actor string) {
	createHistory(tx, "CREATE", referenceType, id, "", nil, obj, description, actor)
}

func SaveHistoryStatusChange(tx *gorm.DB, referenceType string, id int, from string, to string, actor string) {
	createHistory(tx, "STATUS", referenceType, id, "status", from, to,
		fmt.Sprintf("%s %d status changed from %s to %s.", referenceType, id, from, to), actor)
}

func SaveHistoryUpdate(tx *gorm.DB, referenceType string, id int, field string, oldVal interface{}, newVal interface{}, actor string) {
	createHistory(tx, "UPDATE", referenceType, id, field, oldVal, newVal,
		fmt.Sprintf("%s %d field %s updated.", referenceType, id, field), actor)
}
