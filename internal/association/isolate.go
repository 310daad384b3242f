package association

import (
	"fmt"
	"runtime/debug"

	"github.com/yungbote/topicpulse-backend/internal/domain/content"
)

// ItemError records one item that was skipped during a batch operation.
type ItemError struct {
	Kind    content.Kind `json:"kind"`
	ID      uint64       `json:"id"`
	Message string       `json:"message"`
	Trace   string       `json:"trace,omitempty"`
}

// Isolate runs fn and converts a panic into an error plus the captured stack.
func Isolate(fn func() error) (trace string, err error) {
	defer func() {
		if r := recover(); r != nil {
			trace = string(debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return "", fn()
}
