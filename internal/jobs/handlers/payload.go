package handlers

import (
	"fmt"

	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
)

func invalid(jobType, format string, args ...any) error {
	return classify.NewError(classify.CodeValidation, jobType, fmt.Sprintf(format, args...), nil)
}

// refFromPayload reads the {kind, id} pair shared by the single-item jobs.
func refFromPayload(jc *jobrt.Context, jobType string) (content.Ref, error) {
	kind, ok := content.ParseKind(jc.PayloadString("kind"))
	if !ok {
		return content.Ref{}, invalid(jobType, "unknown kind %q", jc.PayloadString("kind"))
	}
	id, ok := jc.PayloadUint("id")
	if !ok || id == 0 {
		return content.Ref{}, invalid(jobType, "missing id")
	}
	return content.Ref{Kind: kind, ID: id}, nil
}

// optionalKind returns "" (every kind) when the payload omits kind.
func optionalKind(jc *jobrt.Context, jobType string) (content.Kind, error) {
	raw := jc.PayloadString("kind")
	if raw == "" {
		return "", nil
	}
	kind, ok := content.ParseKind(raw)
	if !ok {
		return "", invalid(jobType, "unknown kind %q", raw)
	}
	return kind, nil
}
