package models

import (
	"time"

	"gorm.io/gorm"
)

// BatchSequence is the persisted counter behind batch number generation, one
// row per (config, sequence key). The sequence key embeds the reset bucket, so
// a bucket change (new day/month/year) simply starts a fresh row at 1.
type BatchSequence struct {
	ID           int       `gorm:"primary_key" json:"id"`
	ConfigId     int       `gorm:"not null;uniqueIndex:idx_batch_sequences_config_key" json:"config_id"`
	SequenceKey  string    `gorm:"size:100;not null;uniqueIndex:idx_batch_sequences_config_key" json:"sequence_key"`
	CurrentValue int64     `gorm:"not null;default:0" json:"current_value"`
	LastResetAt  time.Time `json:"last_reset_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// nextBatchSequenceTx advances the counter atomically inside the caller's
// transaction and returns the new value. The increment is a relative UPDATE
// (never read-then-write), so the row stays locked until the transaction
// commits and concurrent callers can never observe the same value twice.
func nextBatchSequenceTx(tx *gorm.DB, configId int, sequenceKey string) (int64, error) {
	res := tx.Model(&BatchSequence{}).
		Where("config_id = ? AND sequence_key = ?", configId, sequenceKey).
		UpdateColumn("current_value", gorm.Expr("current_value + 1"))
	if res.Error != nil {
		return 0, res.Error
	}

	if res.RowsAffected == 0 {
		seq := BatchSequence{
			ConfigId:     configId,
			SequenceKey:  sequenceKey,
			CurrentValue: 1,
			LastResetAt:  time.Now(),
		}
		if err := tx.Create(&seq).Error; err == nil {
			return 1, nil
		}
		// Lost the insert race against a concurrent first caller for this
		// bucket; increment the row that beat us.
		res = tx.Model(&BatchSequence{}).
			Where("config_id = ? AND sequence_key = ?", configId, sequenceKey).
			UpdateColumn("current_value", gorm.Expr("current_value + 1"))
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, gorm.ErrInvalidTransaction
		}
	}

	var current int64
	if err := tx.Model(&BatchSequence{}).
		Where("config_id = ? AND sequence_key = ?", configId, sequenceKey).
		Select("current_value").
		Scan(&current).Error; err != nil {
		return 0, err
	}
	return current, nil
}

// peekBatchSequenceTx returns the value the next generate call would receive,
// without writing. Repeated previews stay identical until a generate advances
// the counter.
func peekBatchSequenceTx(tx *gorm.DB, configId int, sequenceKey string) (int64, error) {
	var current int64
	if err := tx.Model(&BatchSequence{}).
		Where("config_id = ? AND sequence_key = ?", configId, sequenceKey).
		Select("COALESCE(MAX(current_value), 0)").
		Scan(&current).Error; err != nil {
		return 0, err
	}
	return current + 1, nil
}
