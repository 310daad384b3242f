package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/topicpulse-backend/internal/domain/catalog"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
)

func SeedTag(tb testing.TB, ctx context.Context, tx *gorm.DB, name, variations string) *catalog.Tag {
	tb.Helper()
	now := time.Now().UTC()
	t := &catalog.Tag{Name: name, Variations: variations, CreatedAt: now, UpdatedAt: now}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed tag: %v", err)
	}
	return t
}

func SeedTopic(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, active bool, tags ...*catalog.Tag) *catalog.Topic {
	tb.Helper()
	now := time.Now().UTC()
	topic := &catalog.Topic{Name: name, Active: true, CreatedAt: now, UpdatedAt: now}
	if err := tx.WithContext(ctx).Create(topic).Error; err != nil {
		tb.Fatalf("seed topic: %v", err)
	}
	if !active {
		// gorm skips zero-value bools on create, so inactive needs an explicit update.
		if err := tx.WithContext(ctx).Model(topic).Update("active", false).Error; err != nil {
			tb.Fatalf("deactivate topic: %v", err)
		}
		topic.Active = false
	}
	for _, tag := range tags {
		link := &catalog.TopicTag{TopicID: topic.ID, TagID: tag.ID, CreatedAt: now}
		if err := tx.WithContext(ctx).Create(link).Error; err != nil {
			tb.Fatalf("seed topic tag: %v", err)
		}
	}
	return topic
}

type WebEntryOpt func(*content.WebEntry)

func SeedWebEntry(tb testing.TB, ctx context.Context, tx *gorm.DB, title, body string, opts ...WebEntryOpt) *content.WebEntry {
	tb.Helper()
	now := time.Now().UTC()
	w := &content.WebEntry{
		SiteID:    1,
		URL:       "https://example.test/" + title,
		Title:     title,
		Content:   body,
		Published: now,
		Polarity:  "neutral",
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed web entry: %v", err)
	}
	return w
}

type SocialPostOpt func(*content.SocialPost)

func SeedSocialPost(tb testing.TB, ctx context.Context, tx *gorm.DB, network, message string, opts ...SocialPostOpt) *content.SocialPost {
	tb.Helper()
	now := time.Now().UTC()
	p := &content.SocialPost{
		Network:   network,
		AccountID: "acct-1",
		Message:   message,
		Published: now,
		Polarity:  "neutral",
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed social post: %v", err)
	}
	return p
}

func SeedTagging(tb testing.TB, ctx context.Context, tx *gorm.DB, ref content.Ref, scope content.Scope, names ...string) {
	tb.Helper()
	for _, name := range names {
		row := &content.ContentTagging{Kind: ref.Kind, ContentID: ref.ID, Scope: scope, TagName: name, CreatedAt: time.Now().UTC()}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			tb.Fatalf("seed tagging: %v", err)
		}
	}
}
