package main

import (
	"strings"
	"testing"

	"github.com/yungbote/topicpulse-backend/internal/domain/content"
)

func TestParseKind(t *testing.T) {
	if k, err := parseKind(""); err != nil || k != "" {
		t.Fatalf("empty kind means every kind: %q %v", k, err)
	}
	if k, err := parseKind(" Facebook_Post "); err != nil || k != content.KindFacebookPost {
		t.Fatalf("facebook_post: %q %v", k, err)
	}
	if _, err := parseKind("social_post"); err == nil {
		t.Fatalf("social_post is a table, not a kind")
	}
}

func TestKindNamesAreAccepted(t *testing.T) {
	names := strings.Split(kindNames(), ", ")
	if len(names) != len(content.AllKinds()) {
		t.Fatalf("usage lists %d kinds: %v", len(names), names)
	}
	for _, name := range names {
		if _, err := parseKind(name); err != nil {
			t.Fatalf("usage advertises %q but it is rejected: %v", name, err)
		}
	}
}
