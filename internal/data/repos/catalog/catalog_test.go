package catalog

import (
	"context"
	"testing"

	"github.com/yungbote/topicpulse-backend/internal/data/repos/testutil"
	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/platform/dbctx"
)

func TestTopicRepoListEntries(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	paraguay := testutil.SeedTag(t, ctx, db, "Paraguay", "paraguai")
	asuncion := testutil.SeedTag(t, ctx, db, "Asunción", "")
	politics := testutil.SeedTopic(t, ctx, db, "Politics", true, paraguay, asuncion)
	dormant := testutil.SeedTopic(t, ctx, db, "Dormant", false, paraguay)

	repo := NewTopicRepo(db, testutil.Logger(t))
	entries, err := repo.ListEntries(dbc)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 topics including inactive, got %d", len(entries))
	}
	if entries[0].ID != politics.ID || len(entries[0].TagNames) != 2 {
		t.Fatalf("unexpected politics entry: %+v", entries[0])
	}
	if entries[1].ID != dormant.ID || entries[1].Active {
		t.Fatalf("expected inactive dormant entry: %+v", entries[1])
	}

	got, err := repo.GetEntry(dbc, politics.ID)
	if err != nil || got.Name != "Politics" {
		t.Fatalf("GetEntry: %+v %v", got, err)
	}
	if _, err := repo.GetEntry(dbc, 9999); !classify.IsCode(err, classify.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestFingerprintChangesOnEdit(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewTagRepo(db, testutil.Logger(t))

	empty, err := repo.Fingerprint(dbc)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if empty.Count != 0 {
		t.Fatalf("expected empty fingerprint, got %+v", empty)
	}
	testutil.SeedTag(t, ctx, db, "Chaco", "")
	after, err := repo.Fingerprint(dbc)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if after.Equal(empty) || after.Count != 1 {
		t.Fatalf("expected fingerprint to change, got %+v", after)
	}

	tag, err := repo.GetByName(dbc, "chaco")
	if err != nil || tag.Name != "Chaco" {
		t.Fatalf("GetByName: %+v %v", tag, err)
	}
}
