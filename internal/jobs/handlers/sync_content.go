package handlers

import (
	"github.com/yungbote/topicpulse-backend/internal/association"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

const TypeSyncContent = "sync_content"

// SyncContent re-derives one item's tag lists and reconciles its associations.
type SyncContent struct {
	log   *logger.Logger
	retag association.Retagger
}

func NewSyncContent(baseLog *logger.Logger, retag association.Retagger) *SyncContent {
	return &SyncContent{log: baseLog.With("job", TypeSyncContent), retag: retag}
}

func (h *SyncContent) Type() string { return TypeSyncContent }

func (h *SyncContent) Run(jc *jobrt.Context) error {
	ref, err := refFromPayload(jc, TypeSyncContent)
	if err != nil {
		return err
	}
	jc.Progress("retag", 10, "Matching tags")
	res := h.retag.Retag(jc.Ctx, ref)
	if !res.IsOk() && res.Code() != classify.CodeNoMatch {
		return res.Err()
	}
	out := res.Value()
	jc.Succeed("done", map[string]any{
		"kind":         ref.Kind,
		"id":           ref.ID,
		"matched":      res.IsOk(),
		"body_tags":    out.BodyTags,
		"title_tags":   out.TitleTags,
		"body_topics":  out.Sync.LinkedTopicCount,
		"title_topics": out.Sync.LinkedTitleTopicCount,
		"writes":       out.Sync.Writes() + out.TaggingInserted + out.TaggingDeleted,
	})
	return nil
}
