package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrVersionConflict is returned when a conditional write matched no row:
// the record changed (or left the expected status) since it was read.
var ErrVersionConflict = errors.New("version conflict")

// saveVersioned writes every column of record guarded by its current version
// and bumps the version on success.
func saveVersioned[T any](tx *gorm.DB, record *T, version *int64) error {
	expected := *version
	*version = expected + 1

	res := tx.Model(record).
		Where("version = ?", expected).
		Select("*").
		Omit("created_at").
		Updates(record)
	if res.Error != nil {
		*version = expected
		return res.Error
	}
	if res.RowsAffected == 0 {
		*version = expected
		return ErrVersionConflict
	}
	return nil
}
