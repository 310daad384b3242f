package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
)

func TestFrom(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{classify.NewError(classify.CodeValidation, "op", "bad", nil), http.StatusBadRequest, "validation"},
		{classify.NewError(classify.CodeNotFound, "op", "gone", nil), http.StatusNotFound, "not_found"},
		{classify.NewError(classify.CodeConflict, "op", "busy", nil), http.StatusConflict, "conflict"},
		{fmt.Errorf("wrapped: %w", classify.NewError(classify.CodeTransientExternal, "op", "down", nil)), http.StatusServiceUnavailable, "transient_external"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
		{New(http.StatusTeapot, "teapot", nil), http.StatusTeapot, "teapot"},
	}
	for _, tc := range cases {
		got := From(tc.err)
		if got.Status != tc.status || got.Code != tc.code {
			t.Fatalf("From(%v) = %d/%s, want %d/%s", tc.err, got.Status, got.Code, tc.status, tc.code)
		}
	}
	if From(nil) != nil {
		t.Fatalf("From(nil) should be nil")
	}
}
