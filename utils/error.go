package utils

import (
	"context"
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

// Error taxonomy shared by every core operation. Match with errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrConflict             = errors.New("scheduling conflict")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrIntegrity            = errors.New("integrity violation")
	ErrTransientStorage     = errors.New("storage unavailable")
)

const mysqlDuplicateEntry = 1062

type classifiedError struct {
	kind  error
	msg   string
	cause error
}

func (e *classifiedError) Error() string { return e.msg }

func (e *classifiedError) Is(target error) bool { return target == e.kind }

func (e *classifiedError) Unwrap() error { return e.cause }

func newClassified(kind error, cause error, format string, args ...any) error {
	return &classifiedError{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

func ValidationErrorf(format string, args ...any) error {
	return newClassified(ErrValidation, nil, format, args...)
}

func InsufficientErrorf(format string, args ...any) error {
	return newClassified(ErrInsufficientResource, nil, format, args...)
}

func IntegrityErrorf(format string, args ...any) error {
	return newClassified(ErrIntegrity, nil, format, args...)
}

// NotFoundError reports a missing reference as a validation failure.
func NotFoundError(what string, id any) error {
	return newClassified(ErrValidation, ErrorRecordNotFound, "%s %v not found", what, id)
}

func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntry
	}
	return false
}

// IsClassified reports whether err already belongs to the taxonomy.
func IsClassified(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInsufficientResource) ||
		errors.Is(err, ErrIntegrity) ||
		errors.Is(err, ErrTransientStorage)
}

// ClassifyStorageError maps a raw persistence error onto the taxonomy.
// Errors that are already classified pass through unchanged.
func ClassifyStorageError(err error) error {
	if err == nil || IsClassified(err) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrorRecordNotFound):
		return newClassified(ErrValidation, err, "record not found")
	case IsDuplicateKeyErr(err):
		return newClassified(ErrIntegrity, err, "duplicate entry: %v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newClassified(ErrTransientStorage, err, "operation interrupted: %v", err)
	}
	return newClassified(ErrTransientStorage, err, "storage failure: %v", err)
}
