package models

import (
	"context"
	"errors"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// BatchNumberConfig drives the batch number generator. A config can be scoped
// to an operation type, to a material or product, or be the global default.
// Precedence: operation-type-specific, then material/product-specific, then
// global; within a tier the lowest Priority value wins.
type BatchNumberConfig struct {
	ID             int                    `gorm:"primary_key" json:"id"`
	Name           string                 `gorm:"size:100;not null" json:"name"`
	Prefix         string                 `gorm:"size:20;not null" json:"prefix"`
	OperationType  *string                `gorm:"size:50;index" json:"operation_type"`
	MaterialId     *int                   `gorm:"index" json:"material_id"`
	ProductSku     *string                `gorm:"size:50;index" json:"product_sku"`
	Priority       int                    `gorm:"not null;default:100" json:"priority"`
	IncludeOpCode  bool                   `gorm:"not null;default:false" json:"include_op_code"`
	OpCodeLength   int                    `gorm:"not null;default:3" json:"op_code_length"`
	// No DB default: gorm omits zero-value fields that carry one, which would
	// turn an explicit false into the column default on insert.
	IncludeDate    bool                   `gorm:"not null" json:"include_date"`
	DateFormat     string                 `gorm:"size:20" json:"date_format"`
	SequenceLength int                    `gorm:"not null;default:4" json:"sequence_length"`
	ResetFrequency SequenceResetFrequency `gorm:"size:10;not null;default:DAILY" json:"reset_frequency"`
	IsActive       bool                   `gorm:"not null;default:true" json:"is_active"`
	CreatedBy      string                 `gorm:"size:100" json:"created_by"`
	CreatedAt      time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

const batchNumberConfigCacheKey = "batchNumberConfigs"

type NewBatchNumberConfig struct {
	Name           string                 `json:"name" validate:"required,max=100"`
	Prefix         string                 `json:"prefix" validate:"required,max=20"`
	OperationType  *string                `json:"operation_type"`
	MaterialId     *int                   `json:"material_id"`
	ProductSku     *string                `json:"product_sku"`
	Priority       int                    `json:"priority"`
	IncludeOpCode  bool                   `json:"include_op_code"`
	OpCodeLength   int                    `json:"op_code_length"`
	IncludeDate    bool                   `json:"include_date"`
	DateFormat     string                 `json:"date_format"`
	SequenceLength int                    `json:"sequence_length"`
	ResetFrequency SequenceResetFrequency `json:"reset_frequency"`
	Actor          string                 `json:"actor"`
}

func CreateBatchNumberConfig(ctx context.Context, input *NewBatchNumberConfig) (*BatchNumberConfig, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.ResetFrequency.Valid() {
		return nil, utils.ValidationError("invalid reset frequency %q", string(input.ResetFrequency))
	}

	cfg := BatchNumberConfig{
		Name:           input.Name,
		Prefix:         input.Prefix,
		OperationType:  input.OperationType,
		MaterialId:     input.MaterialId,
		ProductSku:     input.ProductSku,
		Priority:       input.Priority,
		IncludeOpCode:  input.IncludeOpCode,
		OpCodeLength:   input.OpCodeLength,
		IncludeDate:    input.IncludeDate,
		DateFormat:     input.DateFormat,
		SequenceLength: input.SequenceLength,
		ResetFrequency: input.ResetFrequency,
		IsActive:       true,
		CreatedBy:      utils.ActorOrSystem(input.Actor),
	}
	if cfg.Priority == 0 {
		cfg.Priority = 100
	}
	if cfg.SequenceLength <= 0 {
		cfg.SequenceLength = 4
	}
	if cfg.OpCodeLength <= 0 {
		cfg.OpCodeLength = 3
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&cfg).Error; err != nil {
		return nil, err
	}
	// stale cache would hand out numbers from a superseded config
	_ = config.RemoveRedisKey(batchNumberConfigCacheKey)
	return &cfg, nil
}

func DeactivateBatchNumberConfig(ctx context.Context, id int, actor string) (*BatchNumberConfig, error) {
	db := config.GetDB()
	var cfg BatchNumberConfig
	if err := db.WithContext(ctx).First(&cfg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("batch number config", id)
		}
		return nil, err
	}
	if !cfg.IsActive {
		return nil, utils.InvalidStateError("batch number config", id, "INACTIVE", "deactivate")
	}
	if err := db.WithContext(ctx).Model(&cfg).Update("is_active", false).Error; err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(batchNumberConfigCacheKey)
	return &cfg, nil
}

// getActiveBatchNumberConfigsTx returns the active configs, redis-cached.
// A cache problem falls through to the database.
func getActiveBatchNumberConfigsTx(tx *gorm.DB) ([]BatchNumberConfig, error) {
	var configs []BatchNumberConfig
	exists, err := config.GetRedisObject(batchNumberConfigCacheKey, &configs)
	if err == nil && exists {
		return configs, nil
	}

	if err := tx.Where("is_active = ?", true).Order("priority, id").Find(&configs).Error; err != nil {
		return nil, err
	}
	_ = config.SetRedisObject(batchNumberConfigCacheKey, &configs, 0)
	return configs, nil
}

// ResolveBatchNumberConfig picks the applicable config from an active config
// list: operation-type scope first, then material/product scope, then global.
// The lowest Priority value wins within a tier, id breaking ties.
func ResolveBatchNumberConfig(configs []BatchNumberConfig, operationType string, productSku string, materialId int) *BatchNumberConfig {
	var opMatches, matMatches, globals []BatchNumberConfig
	for _, cfg := range configs {
		switch {
		case cfg.OperationType != nil:
			if operationType != "" && *cfg.OperationType == operationType {
				opMatches = append(opMatches, cfg)
			}
		case cfg.MaterialId != nil || cfg.ProductSku != nil:
			if cfg.MaterialId != nil && materialId > 0 && *cfg.MaterialId == materialId {
				matMatches = append(matMatches, cfg)
			} else if cfg.ProductSku != nil && productSku != "" && *cfg.ProductSku == productSku {
				matMatches = append(matMatches, cfg)
			}
		default:
			globals = append(globals, cfg)
		}
	}

	for _, tier := range [][]BatchNumberConfig{opMatches, matMatches, globals} {
		if len(tier) == 0 {
			continue
		}
		sort.SliceStable(tier, func(i, j int) bool {
			if tier[i].Priority != tier[j].Priority {
				return tier[i].Priority < tier[j].Priority
			}
			return tier[i].ID < tier[j].ID
		})
		cfg := tier[0]
		return &cfg
	}
	return nil
}
