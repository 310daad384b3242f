package handlers

import (
	"time"

	"github.com/yungbote/topicpulse-backend/internal/association"
	jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

const (
	TypeTagRangeByNewTag    = "tag_range_by_new_tag"
	TypeUntagRemovedTag     = "untag_removed_tag"
	TypeResyncTopicFromTags = "resync_topic_from_tags"

	defaultLookbackDays = 30
)

// TagRangeByNewTag applies a newly created tag to content published in a window.
type TagRangeByNewTag struct {
	log    *logger.Logger
	ranges association.RangeService
}

func NewTagRangeByNewTag(baseLog *logger.Logger, ranges association.RangeService) *TagRangeByNewTag {
	return &TagRangeByNewTag{log: baseLog.With("job", TypeTagRangeByNewTag), ranges: ranges}
}

func (h *TagRangeByNewTag) Type() string { return TypeTagRangeByNewTag }

func (h *TagRangeByNewTag) Run(jc *jobrt.Context) error {
	tagID, ok := jc.PayloadUint("tag_id")
	if !ok || tagID == 0 {
		return invalid(TypeTagRangeByNewTag, "missing tag_id")
	}
	kind, err := optionalKind(jc, TypeTagRangeByNewTag)
	if err != nil {
		return err
	}
	to, ok := jc.PayloadTime("to")
	if !ok {
		to = time.Now().UTC()
	}
	from, ok := jc.PayloadTime("from")
	if !ok {
		from = to.AddDate(0, 0, -defaultLookbackDays)
	}
	if !from.Before(to) {
		return invalid(TypeTagRangeByNewTag, "from must be before to")
	}

	jc.Progress("match", 10, "Matching new tag over range")
	sum, err := h.ranges.TagRangeByNewTag(jc.Ctx, association.TagRangeParams{TagID: tagID, Kind: kind, From: from, To: to})
	if err != nil {
		return err
	}
	h.log.Info("tag range applied", "tag_id", tagID, "scanned", sum.Scanned, "matched", sum.Matched, "errors", len(sum.Errors))
	reportItemErrors(jc, TypeTagRangeByNewTag, sum.Errors)
	jc.Succeed("done", sum)
	return nil
}

// UntagRemovedTag strips a deleted tag from every item and re-syncs what it touched.
type UntagRemovedTag struct {
	log    *logger.Logger
	ranges association.RangeService
}

func NewUntagRemovedTag(baseLog *logger.Logger, ranges association.RangeService) *UntagRemovedTag {
	return &UntagRemovedTag{log: baseLog.With("job", TypeUntagRemovedTag), ranges: ranges}
}

func (h *UntagRemovedTag) Type() string { return TypeUntagRemovedTag }

func (h *UntagRemovedTag) Run(jc *jobrt.Context) error {
	name := jc.PayloadString("tag_name")
	if name == "" {
		return invalid(TypeUntagRemovedTag, "missing tag_name")
	}
	jc.Progress("untag", 10, "Removing tag")
	sum, err := h.ranges.UntagRemovedTag(jc.Ctx, name)
	if err != nil {
		return err
	}
	h.log.Info("tag removed", "tag", name, "affected", sum.Matched, "errors", len(sum.Errors))
	reportItemErrors(jc, TypeUntagRemovedTag, sum.Errors)
	jc.Succeed("done", sum)
	return nil
}

// ResyncTopicFromTags re-syncs items affected by a change to a topic's tag set.
type ResyncTopicFromTags struct {
	log    *logger.Logger
	ranges association.RangeService
}

func NewResyncTopicFromTags(baseLog *logger.Logger, ranges association.RangeService) *ResyncTopicFromTags {
	return &ResyncTopicFromTags{log: baseLog.With("job", TypeResyncTopicFromTags), ranges: ranges}
}

func (h *ResyncTopicFromTags) Type() string { return TypeResyncTopicFromTags }

func (h *ResyncTopicFromTags) Run(jc *jobrt.Context) error {
	topicID, ok := jc.PayloadUint("topic_id")
	if !ok || topicID == 0 {
		return invalid(TypeResyncTopicFromTags, "missing topic_id")
	}
	lookback := jc.PayloadInt("lookback_days", defaultLookbackDays)
	if lookback <= 0 {
		return invalid(TypeResyncTopicFromTags, "lookback_days must be positive")
	}
	jc.Progress("resync", 10, "Re-syncing topic")
	sum, err := h.ranges.ResyncTopicFromTags(jc.Ctx, topicID, lookback)
	if err != nil {
		return err
	}
	h.log.Info("topic resynced", "topic_id", topicID, "synced", sum.Synced, "errors", len(sum.Errors))
	reportItemErrors(jc, TypeResyncTopicFromTags, sum.Errors)
	jc.Succeed("done", sum)
	return nil
}
