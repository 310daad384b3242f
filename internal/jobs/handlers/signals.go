package handlers

import (
	"context"
	"sort"

	contentrepo "github.com/yungbote/topicpulse-backend/internal/data/repos/content"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/sentiment"
)

const (
	TypeRefreshEngagement = "refresh_engagement"
	TypeApplySentiment    = "apply_sentiment"
)

// EngagementProvider fetches current engagement counters for one item, keyed by column name.
type EngagementProvider interface {
	Engagement(ctx context.Context, ref content.Ref) (map[string]int64, error)
}

// RefreshEngagement stores the latest counters for one item. Writing the same counters twice is
// harmless, so the job is retried on transient provider failures.
type RefreshEngagement struct {
	log      *logger.Logger
	items    contentrepo.ItemRepo
	provider EngagementProvider
}

func NewRefreshEngagement(baseLog *logger.Logger, items contentrepo.ItemRepo, provider EngagementProvider) *RefreshEngagement {
	return &RefreshEngagement{log: baseLog.With("job", TypeRefreshEngagement), items: items, provider: provider}
}

func (h *RefreshEngagement) Type() string { return TypeRefreshEngagement }

func (h *RefreshEngagement) Transient() bool { return true }

func (h *RefreshEngagement) Run(jc *jobrt.Context) error {
	ref, err := refFromPayload(jc, TypeRefreshEngagement)
	if err != nil {
		return err
	}
	jc.Progress("fetch", 10, "Fetching engagement")
	raw, err := h.provider.Engagement(jc.Ctx, ref)
	if err != nil {
		return err
	}

	known := map[string]bool{}
	for _, col := range content.MetricColumns(ref.Kind) {
		known[col] = true
	}
	metrics := map[string]int64{}
	var ignored []string
	for name, v := range raw {
		if !known[name] {
			ignored = append(ignored, name)
			continue
		}
		metrics[name] = max(v, 0)
	}
	if len(ignored) > 0 {
		sort.Strings(ignored)
		h.log.Debug("ignoring unknown metrics", "ref", ref.String(), "metrics", ignored)
	}
	if len(metrics) > 0 {
		if err := h.items.UpdateEngagement(dbctx.Context{Ctx: jc.Ctx}, ref, metrics); err != nil {
			return err
		}
	}
	jc.Succeed("done", map[string]any{"kind": ref.Kind, "id": ref.ID, "metrics": metrics})
	return nil
}

// ApplySentiment scores one item and stores the canonical polarity with score and confidence.
type ApplySentiment struct {
	log    *logger.Logger
	items  contentrepo.ItemRepo
	scorer sentiment.ScoringProvider
}

func NewApplySentiment(baseLog *logger.Logger, items contentrepo.ItemRepo, scorer sentiment.ScoringProvider) *ApplySentiment {
	return &ApplySentiment{log: baseLog.With("job", TypeApplySentiment), items: items, scorer: scorer}
}

func (h *ApplySentiment) Type() string { return TypeApplySentiment }

func (h *ApplySentiment) Transient() bool { return true }

func (h *ApplySentiment) Run(jc *jobrt.Context) error {
	ref, err := refFromPayload(jc, TypeApplySentiment)
	if err != nil {
		return err
	}
	dbc := dbctx.Context{Ctx: jc.Ctx}
	item, err := h.items.Get(dbc, ref)
	if err != nil {
		return err
	}
	jc.Progress("score", 10, "Scoring sentiment")
	sig, err := h.scorer.Score(jc.Ctx, item)
	if err != nil {
		return err
	}
	a := sentiment.Assess(sig)
	if err := h.items.UpdateSentiment(dbc, ref, string(a.Polarity), a.Score, a.Confidence); err != nil {
		return err
	}
	jc.Succeed("done", map[string]any{"kind": ref.Kind, "id": ref.ID, "assessment": a})
	return nil
}
