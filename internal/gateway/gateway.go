package gateway

import (
	"context"
	"fmt"

	"github.com/rahul/scout/internal/session"
)

// Conversant is the engine surface every gateway drives: one utterance
// in, one turn result out.
type Conversant interface {
	HandleTurn(ctx context.Context, sessionID, utterance string) session.TurnResult
}

// Messenger defines the interface for chat gateways (CLI, Telegram,
// Discord).
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// formatResult lays out a turn result for chat transports that render
// markdown.
func formatResult(res session.TurnResult) string {
	out := res.Message
	if res.RenderedCode != "" {
		out += fmt.Sprintf("\n\n```go\n%s```", res.RenderedCode)
	}
	return out
}
