package repository

import (
	"errors"

	"cloudysky/internal/database"
	"cloudysky/internal/models"

	"gorm.io/gorm"
)

// storeError maps driver failures onto the application error family.
// Record-not-found is left to the caller, which knows the resource name.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case database.IsSchemaMissing(err):
		return models.NewStorageUnavailableError(err)
	case database.IsUniqueViolation(err):
		return models.NewConflictError("Record already exists", err)
	default:
		return models.NewInternalError(err)
	}
}

func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return storeError(err)
}
