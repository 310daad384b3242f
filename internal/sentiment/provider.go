package sentiment

import (
	"context"

	"github.com/yungbote/topicpulse-backend/internal/domain/content"
)

// Signal is what an external scorer returns: either a discrete code or a continuous score,
// optionally with a model confidence.
type Signal struct {
	Code       any      `json:"code,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// ScoringProvider is the opaque sentiment model. Implementations may fail transiently.
type ScoringProvider interface {
	Score(ctx context.Context, item content.Item) (Signal, error)
}

type Assessment struct {
	Polarity        Polarity        `json:"polarity"`
	Label           Label           `json:"label"`
	Score           *float64        `json:"score,omitempty"`
	Confidence      *float64        `json:"confidence,omitempty"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level,omitempty"`
}

// Assess prefers the continuous score when present and falls back to the discrete code.
func Assess(sig Signal) Assessment {
	a := Assessment{Score: sig.Score, Confidence: sig.Confidence}
	if sig.Score != nil {
		a.Label = ClassifyScore(*sig.Score)
		a.Polarity = a.Label.Canonical()
	} else {
		a.Polarity = Normalize(sig.Code)
		a.Label = Label(a.Polarity)
	}
	if sig.Confidence != nil {
		a.ConfidenceLevel = ClassifyConfidence(*sig.Confidence)
	}
	return a
}
