package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrorCode standardizes failure semantics across classification, sync, and aggregation.
type ErrorCode string

const (
	CodeNotFound          ErrorCode = "not_found"
	CodeNoMatch           ErrorCode = "no_match"
	CodeValidation        ErrorCode = "validation"
	CodeTransientExternal ErrorCode = "transient_external"
	CodeConflict          ErrorCode = "conflict"
	CodeInternal          ErrorCode = "internal"
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	var cErr *Error
	if !errors.As(err, &cErr) {
		return false
	}
	return cErr.Code == code
}

// CodeOf returns the carried code, or internal for any other non-nil error.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var cErr *Error
	if !errors.As(err, &cErr) {
		return CodeInternal
	}
	return cErr.Code
}

// IsTransient reports whether a whole-job retry could plausibly succeed.
func IsTransient(err error) bool {
	return IsCode(err, CodeTransientExternal)
}

// MapStoreError classifies persistence failures. Already-classified errors pass through.
func MapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var cErr *Error
	if errors.As(err, &cErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewError(CodeNotFound, op, "record not found", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeTransientExternal, op, "operation interrupted", err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return NewError(CodeValidation, op, "duplicate key", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503", "23514", "23502":
			return NewError(CodeValidation, op, pgErr.Message, err)
		case "40001", "40P01", "55P03", "57014":
			return NewError(CodeTransientExternal, op, pgErr.Message, err)
		}
	}
	return NewError(CodeInternal, op, err.Error(), err)
}
