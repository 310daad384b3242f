package handlers

import jobrt "github.com/yungbote/topicpulse-backend/internal/jobs/runtime"

// RegisterAll registers every handler, failing on the first duplicate type.
func RegisterAll(reg *jobrt.Registry, hs ...jobrt.Handler) error {
	for _, h := range hs {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}
