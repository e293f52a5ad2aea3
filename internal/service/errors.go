package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/lifecycle"
	"github.com/freelancedao/escrow-service/internal/repository"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrGateway          = errors.New("payment gateway error")

	ErrInvalidInput = lifecycle.ErrInvalidInput
	ErrConflict     = lifecycle.ErrConflict
	ErrInvalidState = lifecycle.ErrInvalidState
	ErrOutOfRange   = lifecycle.ErrOutOfRange
)

// storeErr maps storage errors onto service errors. what names the record.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %s was modified concurrently", ErrConflict, what)
	default:
		return err
	}
}
