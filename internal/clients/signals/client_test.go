package signals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yungbote/topicpulse-backend/internal/domain/classify"
	"github.com/yungbote/topicpulse-backend/internal/domain/content"
	"github.com/yungbote/topicpulse-backend/internal/platform/logger"
	"github.com/yungbote/topicpulse-backend/internal/sentiment"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(logger.NewNop(), Config{BaseURL: srv.URL + "/", APIKey: "k-1", Timeout: 2 * time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestEngagement(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/engagement/facebook_post/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k-1" {
			t.Errorf("missing auth header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"metrics": map[string]int64{"reactions": 12, "shares": 3}})
	})
	got, err := c.Engagement(context.Background(), content.Ref{Kind: content.KindFacebookPost, ID: 42})
	if err != nil {
		t.Fatalf("Engagement: %v", err)
	}
	if got["reactions"] != 12 || got["shares"] != 3 {
		t.Fatalf("metrics: %v", got)
	}
}

func TestScore(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Kind != "web_entry" || req.Fields["title"] != "Crecida" {
			t.Errorf("request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"score":0.72,"confidence":0.9}`))
	})
	item := &content.WebEntry{ID: 7, Title: "Crecida", Content: "El río sube"}
	sig, err := c.Score(context.Background(), item)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if sig.Score == nil || *sig.Score != 0.72 {
		t.Fatalf("score: %+v", sig)
	}
	if a := sentiment.Assess(sig); a.Polarity != sentiment.Positive {
		t.Fatalf("assess: %+v", a)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   classify.ErrorCode
	}{
		{http.StatusServiceUnavailable, classify.CodeTransientExternal},
		{http.StatusTooManyRequests, classify.CodeTransientExternal},
		{http.StatusNotFound, classify.CodeNotFound},
		{http.StatusBadRequest, classify.CodeValidation},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		})
		_, err := c.Engagement(context.Background(), content.Ref{Kind: content.KindWebEntry, ID: 1})
		if got := classify.CodeOf(err); got != tc.want {
			t.Fatalf("status %d: got %s want %s (%v)", tc.status, got, tc.want, err)
		}
	}
}

func TestUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()
	c, err := NewClient(logger.NewNop(), Config{BaseURL: base, Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Engagement(context.Background(), content.Ref{Kind: content.KindWebEntry, ID: 1})
	if !classify.IsTransient(err) {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(logger.NewNop(), Config{}, nil); err == nil {
		t.Fatalf("expected error without base url")
	}
}
