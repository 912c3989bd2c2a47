package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// The generator degrades instead of failing: a storage problem while resolving
// configs or advancing the sequence yields a fallback number with a placeholder
// sequence. Batch numbering must never stop production.

const (
	rawMaterialFallbackPrefix = "RM"
	productionFallbackPrefix  = "BAT"
	fallbackDateFormat        = "20060102"
	supplierLotMaxLen         = 15
)

type GenerateBatchNumberInput struct {
	Kind          BatchKind `validate:"required"`
	OperationType string
	ProductSku    string
	MaterialId    int
	MaterialCode  string
	SupplierLot   string
	Date          time.Time
}

// GenerateBatchNumber produces the next batch number for the given context and
// advances the persisted sequence in its own transaction.
func GenerateBatchNumber(ctx context.Context, input *GenerateBatchNumberInput) (string, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return "", tx.Error
	}
	number := generateBatchNumberTx(tx, input)
	if err := tx.Commit().Error; err != nil {
		return "", err
	}
	return number, nil
}

// PreviewBatchNumber computes the number the next generate call would return
// without advancing any state. Repeated calls return identical strings until a
// real generate runs.
func PreviewBatchNumber(ctx context.Context, input *GenerateBatchNumberInput) (string, error) {
	db := config.GetDB().WithContext(ctx)
	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	configs, err := getActiveBatchNumberConfigsTx(db)
	if err != nil {
		return "", err
	}
	cfg := ResolveBatchNumberConfig(configs, input.OperationType, input.ProductSku, input.MaterialId)
	if cfg == nil {
		prefix, key, seqLen := fallbackSequenceScope(input, date)
		seq, err := peekBatchSequenceTx(db, 0, key)
		if err != nil {
			return "", err
		}
		return composeFallbackNumber(prefix, input, date, seq, seqLen), nil
	}

	key := sequenceKey(cfg, date)
	seq, err := peekBatchSequenceTx(db, cfg.ID, key)
	if err != nil {
		return "", err
	}
	return ComposeBatchNumber(cfg, input.OperationType, date, seq), nil
}

// generateBatchNumberTx is the in-transaction generator used by receipts and
// production confirmations. It never returns an error; failures degrade to the
// fallback format with sequence 1.
func generateBatchNumberTx(tx *gorm.DB, input *GenerateBatchNumberInput) string {
	logger := config.GetLogger()
	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	configs, err := getActiveBatchNumberConfigsTx(tx)
	if err != nil {
		config.LogError(logger, "batchNumber.go", "generateBatchNumberTx", "loading batch number configs", input, err)
		prefix, _, seqLen := fallbackSequenceScope(input, date)
		return composeFallbackNumber(prefix, input, date, 1, seqLen)
	}

	cfg := ResolveBatchNumberConfig(configs, input.OperationType, input.ProductSku, input.MaterialId)
	if cfg == nil {
		prefix, key, seqLen := fallbackSequenceScope(input, date)
		seq, err := nextBatchSequenceTx(tx, 0, key)
		if err != nil {
			config.LogError(logger, "batchNumber.go", "generateBatchNumberTx", "advancing fallback sequence", key, err)
			seq = 1
		}
		return composeFallbackNumber(prefix, input, date, seq, seqLen)
	}

	key := sequenceKey(cfg, date)

	// Optional cross-instance lock; the transactional increment remains the
	// correctness guarantee when redis is absent.
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if release, lockErr := utils.SequenceLock(ctx, cfg.ID, key); lockErr == nil {
		defer release()
	}

	seq, err := nextBatchSequenceTx(tx, cfg.ID, key)
	if err != nil {
		config.LogError(logger, "batchNumber.go", "generateBatchNumberTx", "advancing sequence", key, err)
		prefix, _, seqLen := fallbackSequenceScope(input, date)
		return composeFallbackNumber(prefix, input, date, 1, seqLen)
	}
	return ComposeBatchNumber(cfg, input.OperationType, date, seq)
}

// sequenceKey is prefix + reset bucket, so a DAILY config restarts at 1 each
// day while NEVER keeps one counter forever.
func sequenceKey(cfg *BatchNumberConfig, date time.Time) string {
	return cfg.Prefix + ResetBucket(cfg.ResetFrequency, date)
}

func ResetBucket(freq SequenceResetFrequency, date time.Time) string {
	switch freq {
	case SequenceResetDaily:
		return date.Format("20060102")
	case SequenceResetMonthly:
		return date.Format("200601")
	case SequenceResetYearly:
		return date.Format("2006")
	default:
		return ""
	}
}

// ComposeBatchNumber renders prefix[-opcode][-date]-sequence. The sequence is
// zero-padded to the configured length and widens past it rather than
// truncating (9999 -> 10000 keeps five digits).
func ComposeBatchNumber(cfg *BatchNumberConfig, operationType string, date time.Time, seq int64) string {
	parts := []string{cfg.Prefix}

	if cfg.IncludeOpCode && operationType != "" {
		parts = append(parts, formatOpCode(operationType, cfg.OpCodeLength))
	}
	if cfg.IncludeDate {
		layout := cfg.DateFormat
		if layout == "" {
			layout = fallbackDateFormat
		}
		parts = append(parts, date.Format(layout))
	}
	parts = append(parts, fmt.Sprintf("%0*d", cfg.SequenceLength, seq))

	return strings.Join(parts, "-")
}

// formatOpCode truncates or right-pads the operation type to the configured
// length so numbers stay fixed-width per config.
func formatOpCode(operationType string, length int) string {
	code := strings.ToUpper(utils.SanitizeAlphanumeric(operationType, 0))
	if length <= 0 {
		return code
	}
	if len(code) > length {
		return code[:length]
	}
	for len(code) < length {
		code += "X"
	}
	return code
}

func fallbackSequenceScope(input *GenerateBatchNumberInput, date time.Time) (prefix string, key string, seqLen int) {
	if input.Kind == BatchKindRawMaterial {
		code := input.MaterialCode
		if code == "" {
			code = "UNKNOWN"
		}
		prefix = rawMaterialFallbackPrefix
		key = fmt.Sprintf("%s-%s-%s", prefix, code, date.Format(fallbackDateFormat))
		return prefix, key, 3
	}
	prefix = productionFallbackPrefix
	key = fmt.Sprintf("%s-%s", prefix, date.Format(fallbackDateFormat))
	return prefix, key, 4
}

// composeFallbackNumber renders the hard-coded formats used when no config
// matches: RM-{material|UNKNOWN}-{yyyyMMdd}-{seq:3}[-{lot}] for raw material
// receipts and BAT-{yyyyMMdd}-{seq:4} for production output.
func composeFallbackNumber(prefix string, input *GenerateBatchNumberInput, date time.Time, seq int64, seqLen int) string {
	if prefix == rawMaterialFallbackPrefix {
		code := input.MaterialCode
		if code == "" {
			code = "UNKNOWN"
		}
		number := fmt.Sprintf("%s-%s-%s-%0*d", prefix, code, date.Format(fallbackDateFormat), seqLen, seq)
		if lot := utils.SanitizeAlphanumeric(input.SupplierLot, supplierLotMaxLen); lot != "" {
			number += "-" + lot
		}
		return number
	}
	return fmt.Sprintf("%s-%s-%0*d", prefix, date.Format(fallbackDateFormat), seqLen, seq)
}

// SplitBatchNumber derives a child number from its source: {source}-S{index:2},
// widening for index >= 100.
func SplitBatchNumber(sourceBatchNumber string, index int) string {
	return fmt.Sprintf("%s-S%02d", sourceBatchNumber, index)
}

// MergeBatchNumber synthesizes a number for a merge target when the caller did
// not supply one.
func MergeBatchNumber(t time.Time) string {
	return "MRG-" + t.Format("20060102150405")
}
