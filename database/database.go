package database

import (
	"fmt"
	"reflect"

	"gorm.io/gorm"
)

var (
	ErrInvalidBatchSize = fmt.Errorf("invalid batch size")
	ErrInvalidData      = fmt.Errorf("invalid data, expected slice")
)

// CreateInBatches inserts a slice in fixed-size chunks on the given handle,
// which may already be a transaction. Callers that need all-or-nothing
// semantics pass their own tx; callers that don't pass the root handle.
func CreateInBatches(db *gorm.DB, data interface{}, batchSize int) error {
	if batchSize <= 0 {
		return ErrInvalidBatchSize
	}

	slice := reflect.ValueOf(data)
	if slice.Kind() != reflect.Slice {
		return ErrInvalidData
	}

	total := slice.Len()
	for i := 0; i < total; i += batchSize {
		end := i + batchSize
		if end > total {
			end = total
		}

		chunk := slice.Slice(i, end).Interface()
		if err := db.Create(chunk).Error; err != nil {
			return fmt.Errorf("batch insert failed: %w", err)
		}
	}

	return nil
}
