package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From maps any error onto an API error. Classified errors keep their code.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	code := classify.CodeOf(err)
	return &Error{Status: StatusFor(code), Code: string(code), Err: err}
}

func StatusFor(code classify.ErrorCode) int {
	switch code {
	case classify.CodeValidation:
		return http.StatusBadRequest
	case classify.CodeNotFound, classify.CodeNoMatch:
		return http.StatusNotFound
	case classify.CodeConflict:
		return http.StatusConflict
	case classify.CodeTransientExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
