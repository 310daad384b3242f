package content

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies a content source. Each kind maps to one table plus an optional network filter.
type Kind string

const (
	KindWebEntry      Kind = "web_entry"
	KindFacebookPost  Kind = "facebook_post"
	KindTwitterPost   Kind = "twitter_post"
	KindInstagramPost Kind = "instagram_post"
)

const (
	NetworkFacebook  = "facebook"
	NetworkTwitter   = "twitter"
	NetworkInstagram = "instagram"
)

func AllKinds() []Kind {
	return []Kind{KindWebEntry, KindFacebookPost, KindTwitterPost, KindInstagramPost}
}

func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Network returns the social_post.network value for social kinds and "" for web entries.
func (k Kind) Network() string {
	switch k {
	case KindFacebookPost:
		return NetworkFacebook
	case KindTwitterPost:
		return NetworkTwitter
	case KindInstagramPost:
		return NetworkInstagram
	default:
		return ""
	}
}

func (k Kind) IsSocial() bool { return k.Network() != "" }

func KindForNetwork(network string) Kind {
	switch strings.ToLower(strings.TrimSpace(network)) {
	case NetworkFacebook:
		return KindFacebookPost
	case NetworkTwitter:
		return KindTwitterPost
	case NetworkInstagram:
		return KindInstagramPost
	default:
		return ""
	}
}

type Ref struct {
	Kind Kind   `json:"kind"`
	ID   uint64 `json:"id"`
}

func (r Ref) String() string { return fmt.Sprintf("%s:%d", r.Kind, r.ID) }

// Scope selects which text of an item a tag list or association index was derived from.
type Scope string

const (
	ScopeBody  Scope = "body"
	ScopeTitle Scope = "title"
)

func Scopes() []Scope { return []Scope{ScopeBody, ScopeTitle} }

type Field struct {
	Name  string
	Value string
}

// Fields is an ordered list of named text fields.
type Fields []Field

func (f Fields) Values() []string {
	out := make([]string, 0, len(f))
	for _, field := range f {
		out = append(out, field.Value)
	}
	return out
}

func (f Fields) Map() map[string]string {
	out := make(map[string]string, len(f))
	for _, field := range f {
		out[field.Name] = field.Value
	}
	return out
}

// Item is the capability set shared by every content variant.
type Item interface {
	Ref() Ref
	PublishedAt() time.Time
	TextFields() Fields
	TitleFields() Fields
	EngagementMetrics() map[string]float64
}

// SentimentFields is implemented by variants that store a sentiment label.
type SentimentFields interface {
	CurrentPolarity() string
}
