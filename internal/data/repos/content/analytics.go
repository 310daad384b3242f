package content

import (
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/domain/analytics"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
)

// AnalyticsRepo runs the ranking and grouping queries behind dashboard payloads.
// Ranking and grouping happen in SQL; callers never page whole scopes into memory.
type AnalyticsRepo interface {
	Totals(dbc dbctx.Context, f analytics.Filter, w content.WeightFormula) (analytics.Totals, error)
	TopItems(dbc dbctx.Context, f analytics.Filter, w content.WeightFormula, limit int) ([]analytics.TopItem, error)
	DailySeries(dbc dbctx.Context, f analytics.Filter, w content.WeightFormula) ([]analytics.DayPoint, error)
	TagRollup(dbc dbctx.Context, f analytics.Filter, w content.WeightFormula, limit int) ([]analytics.TagInteractions, error)
	SampleTexts(dbc dbctx.Context, f analytics.Filter, w content.WeightFormula, limit int) ([]string, error)
	PolarityCounts(dbc dbctx.Context, f analytics.Filter) (map[string]int64, error)
}

type analyticsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalyticsRepo(db *gorm.DB, baseLog *logger.Logger) AnalyticsRepo {
	return &analyticsRepo{db: db, log: baseLog.With("repo", "AnalyticsRepo")}
}

func (r *analyticsRepo) scoped(dbc dbctx.Context, f analytics.Filter, op string) (*gorm.DB, source, error) {
	src, err := sourceFor(f.Kind)
	if err != nil {
		return nil, src, classify.Wrap(classify.CodeValidation, op, err)
	}
	tx := dbc.Or(r.db).WithContext(dbc.Context())
	q := src.from(tx)
	sub := r.db.Session(&gorm.Session{NewDB: true})
	if f.TopicID > 0 {
		q = q.Where("c.id IN (?)", sub.Table("topic_association").
			Select("content_id").
			Where("topic_id = ? AND kind = ? AND association_index = ?", f.TopicID, f.Kind, content.ScopeBody))
	}
	if name := strings.TrimSpace(f.TagName); name != "" {
		q = q.Where("c.id IN (?)", sub.Table("content_tagging").
			Select("content_id").
			Where("kind = ? AND scope = ? AND tag_name = ?", f.Kind, content.ScopeBody, name))
	}
	if site := strings.TrimSpace(f.SiteID); site != "" {
		if f.Kind == content.KindWebEntry {
			id, err := strconv.ParseUint(site, 10, 64)
			if err != nil {
				return nil, src, classify.NewError(classify.CodeValidation, op, "site id must be numeric for web entries", err)
			}
			q = q.Where("c.site_id = ?", id)
		} else {
			q = q.Where("c.account_id = ?", site)
		}
	}
	if !f.From.IsZero() {
		q = q.Where("c.published_at >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("c.published_at < ?", f.To.UTC())
	}
	return q, src, nil
}

func (r *analyticsRepo) Totals(dbc dbctx.Context, f analytics.Filter, w content.WeightFormula) (analytics.Totals, error) {
	const op = "AnalyticsRepo.Totals"
	var out analytics.Totals
	q, _, err := r.scoped(dbc, f, op)
	if err != nil {
		return out, err
	}
	var row struct {
		Items        int64
		Interactions float64
	}
	if err := q.Select("COUNT(*) AS items, COALESCE(SUM(" + w.SQL("c") + "), 0) AS interactions").
		Scan(&row).Error; err != nil {
		return out, classify.MapStoreError(op, err)
	}
	out.Items = row.Items
	out.Interactions = row.Interactions
	if row.Items > 0 {
		out.AverageInteractions = row.Interactions / float64(row.Items)
	}
	return out, nil
}

func (r *analyticsRepo) TopItems(dbc dbctx.Context, f analytics.Filter, w content.WeightFormula, limit int) ([]analytics.TopItem, error) {
	const op = "AnalyticsRepo.TopItems"
	q, src, err := r.scoped(dbc, f, op)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []analytics.TopItem{}, nil
	}
	var rows []analytics.TopItem
	if err := q.Select("c.id AS id, " + src.titleExpr + " AS title, c.published_at AS published_at, " + w.SQL("c") + " AS interactions").
		Order("interactions DESC, c.id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, classify.MapStoreError(op, err)
	}
	for i := range rows {
		rows[i].Kind = f.Kind
		rows[i].PublishedAt = rows[i].PublishedAt.UTC()
	}
	return rows, nil
}

func (r *analyticsRepo) DailySeries(dbc dbctx.Context, f analytics.Filter, w content.WeightFormula) ([]analytics.DayPoint, error) {
	const op = "AnalyticsRepo.DailySeries"
	q, _, err := r.scoped(dbc, f, op)
	if err != nil {
		return nil, err
	}
	day := dayExpr(r.db, "c.published_at")
	var rows []analytics.DayPoint
	if err := q.Select(day + " AS day, COUNT(*) AS count, COALESCE(SUM(" + w.SQL("c") + "), 0) AS interactions").
		Group(day).
		Order("day ASC").
		Scan(&rows).Error; err != nil {
		return nil, classify.MapStoreError(op, err)
	}
	return rows, nil
}

func (r *analyticsRepo) TagRollup(dbc dbctx.Context, f analytics.Filter, w content.WeightFormula, limit int) ([]analytics.TagInteractions, error) {
	const op = "AnalyticsRepo.TagRollup"
	q, _, err := r.scoped(dbc, f, op)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []analytics.TagInteractions{}, nil
	}
	var rows []analytics.TagInteractions
	if err := q.Joins("JOIN content_tagging AS t ON t.content_id = c.id AND t.kind = ? AND t.scope = ?", f.Kind, content.ScopeBody).
		Select("t.tag_name AS name, COUNT(*) AS count, COALESCE(SUM(" + w.SQL("c") + "), 0) AS interactions").
		Group("t.tag_name").
		Order("interactions DESC, name ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, classify.MapStoreError(op, err)
	}
	return rows, nil
}

func (r *analyticsRepo) SampleTexts(dbc dbctx.Context, f analytics.Filter, w content.WeightFormula, limit int) ([]string, error) {
	const op = "AnalyticsRepo.SampleTexts"
	q, src, err := r.scoped(dbc, f, op)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []string{}, nil
	}
	var texts []string
	if err := q.Select(src.textExpr+" AS body").
		Order(w.SQL("c")+" DESC, c.id ASC").
		Limit(limit).
		Pluck("body", &texts).Error; err != nil {
		return nil, classify.MapStoreError(op, err)
	}
	return texts, nil
}

func (r *analyticsRepo) PolarityCounts(dbc dbctx.Context, f analytics.Filter) (map[string]int64, error) {
	const op = "AnalyticsRepo.PolarityCounts"
	q, _, err := r.scoped(dbc, f, op)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Polarity string
		Count    int64
	}
	if err := q.Select("c.polarity AS polarity, COUNT(*) AS count").
		Group("c.polarity").
		Scan(&rows).Error; err != nil {
		return nil, classify.MapStoreError(op, err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Polarity] += row.Count
	}
	return out, nil
}

func dayExpr(db *gorm.DB, col string) string {
	if db != nil && db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return "strftime('%Y-%m-%d', " + col + ")"
	}
	return "to_char(" + col + " AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
}
