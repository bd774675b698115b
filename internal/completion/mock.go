package completion

import (
	"context"
	"strings"

	"github.com/sevyedu/sevyai/internal/chat"
)

// MockGenerator provides deterministic local replies when no upstream API key
// is configured.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (g *MockGenerator) Generate(ctx context.Context, window chat.Window) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockReply(window), nil
}

func buildMockReply(window chat.Window) string {
	var last string
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Role == chat.RoleUser {
			last = strings.TrimSpace(window[i].Content)
			break
		}
	}
	if last == "" {
		return "I am listening."
	}
	return "You said: " + last
}
