package handlers

import (
	"github.com/yungbote/topicpulse-backend/internal/association"
	jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
	"github.com/yungbote/topicpulse-backend/internal/observability"
)

func reportItemErrors(jc *jobrt.Context, jobType string, errs []association.ItemError) {
	if len(errs) == 0 {
		return
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	meta := map[string]any{"job_type": jobType, "failed_items": len(errs)}
	if jc.Job != nil {
		meta["job_id"] = jc.Job.ID.String()
	}
	observability.ReportItemErrors(jc.Ctx, jc.Log, jobType, msgs, meta)
}
