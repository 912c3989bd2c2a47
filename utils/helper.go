package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// ValidateStruct runs the validator tags of an input struct and converts the
// first failure into a ValidationFailure domain error.
func ValidateStruct(input interface{}) error {
	if err := validate.Struct(input); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			ve := validationErrors[0]
			return ValidationError("invalid input: field %s failed %s validation", ve.Field(), ve.Tag())
		}
		return ValidationError("invalid input: %s", err.Error())
	}
	return nil
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// SanitizeAlphanumeric strips everything but letters and digits and truncates
// to maxLen runes. Used for supplier lot segments embedded in batch numbers;
// truncating runes rather than bytes keeps multibyte input from being cut
// mid-character.
func SanitizeAlphanumeric(value string, maxLen int) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	runes := []rune(b.String())
	if maxLen > 0 && len(runes) > maxLen {
		runes = runes[:maxLen]
	}
	return string(runes)
}

func UniqueInts(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func NewString(s string) *string {
	return &s
}

func DereferencePtr[T any](ptr *T) T {
	var zero T
	if ptr == nil {
		return zero
	}
	return *ptr
}

// SequenceLock obtains a short distributed lock around sequence advancement so
// concurrent app instances do not contend on the counter row. The database's
// transactional increment stays the correctness guarantee; when Redis was never
// connected the lock is skipped and the caller proceeds.
func SequenceLock(ctx context.Context, configId int, sequenceKey string) (release func(), err error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}
	lockKey := fmt.Sprintf("seqlock:%d:%s", configId, sequenceKey)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(50 * time.Millisecond),
	})
	if err == redislock.ErrNotObtained {
		logger := config.GetLogger()
		config.LogError(logger, "helper.go", "SequenceLock", "Could not obtain sequence lock", lockKey, err)
		return nil, errors.New("could not obtain sequence lock")
	} else if err != nil {
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
