// Package answer assembles the prompt and produces the final user-visible
// response text. Generation failures degrade to readable messages; this layer
// never returns an error.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/infra-assist/backend/internal/llm"
	"github.com/infra-assist/backend/internal/session"
	"github.com/infra-assist/backend/pkg/logger"
)

const systemPrompt = `You are an infrastructure support assistant. Think carefully and answer the user's question using only the provided context. Be precise and concrete. If the context does not contain the answer, say so plainly instead of guessing. Mention relevant ticket keys and document names when they appear in the context.`

// historyWindow is the number of recent conversation turns included in the
// prompt. Older turns are dropped to bound prompt size.
const historyWindow = 3

const (
	msgNoResponse  = "No response generated."
	msgInputTooBig = "The question and context are too large to process. Try a more specific question."
	errorPrefix    = "Error generating response: "
)

type CompletionClient interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

type Generator struct {
	client CompletionClient
}

func NewGenerator(client CompletionClient) *Generator {
	return &Generator{client: client}
}

// Generate produces the answer for a question given retrieved context and
// conversation history. When the completion service rejects the request as
// too large, it retries once with the context halved before giving up.
func (g *Generator) Generate(ctx context.Context, question, contextText string, history []session.Turn) string {
	text, err := g.complete(ctx, question, contextText, history)
	if err == nil {
		if strings.TrimSpace(text) == "" {
			return msgNoResponse
		}
		return text
	}

	if llm.IsValidation(err) {
		logger.Warn("Completion rejected as too large, retrying with halved context",
			zap.Int("context_len", len(contextText)))

		// Halve on a rune boundary so the retried prompt stays valid UTF-8.
		runes := []rune(contextText)
		halved := string(runes[:len(runes)/2])
		text, err = g.complete(ctx, question, halved, history)
		if err == nil {
			if strings.TrimSpace(text) == "" {
				return msgNoResponse
			}
			return text
		}
		if llm.IsValidation(err) {
			return msgInputTooBig
		}
	}

	logger.Error("Completion failed", zap.Error(err))
	return errorPrefix + err.Error()
}

func (g *Generator) complete(ctx context.Context, question, contextText string, history []session.Turn) (string, error) {
	messages := make([]llm.Message, 0, historyWindow+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})

	start := len(history) - historyWindow
	if start < 0 {
		start = 0
	}
	for _, turn := range history[start:] {
		role := llm.RoleUser
		if turn.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}

	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, question),
	})

	return g.client.Complete(ctx, llm.Request{Messages: messages})
}
