package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infra-assist/backend/internal/llm"
	"github.com/infra-assist/backend/internal/session"
)

type fakeCompleter struct {
	requests  []llm.Request
	responses []string
	errs      []error
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp string
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func (f *fakeCompleter) lastUserContent() string {
	req := f.requests[len(f.requests)-1]
	return req.Messages[len(req.Messages)-1].Content
}

func TestGenerateSuccess(t *testing.T) {
	client := &fakeCompleter{responses: []string{"the answer"}}
	g := NewGenerator(client)

	out := g.Generate(context.Background(), "question?", "some context", nil)
	assert.Equal(t, "the answer", out)

	require.Len(t, client.requests, 1)
	content := client.lastUserContent()
	assert.Contains(t, content, "some context")
	assert.Contains(t, content, "question?")
}

func TestGenerateEmptyCompletion(t *testing.T) {
	client := &fakeCompleter{responses: []string{"   "}}
	g := NewGenerator(client)

	out := g.Generate(context.Background(), "q", "ctx", nil)
	assert.Equal(t, "No response generated.", out)
}

func TestGenerateRetriesWithHalvedContext(t *testing.T) {
	tooBig := &llm.ValidationError{Err: errors.New("context length exceeded")}
	client := &fakeCompleter{
		responses: []string{"", "recovered"},
		errs:      []error{tooBig, nil},
	}
	g := NewGenerator(client)

	contextText := strings.Repeat("c", 1000)
	out := g.Generate(context.Background(), "q", contextText, nil)
	assert.Equal(t, "recovered", out)

	require.Len(t, client.requests, 2)
	first := client.requests[0].Messages[len(client.requests[0].Messages)-1].Content
	second := client.lastUserContent()
	assert.Less(t, len(second), len(first))
}

func TestGenerateHalvesOnRuneBoundary(t *testing.T) {
	tooBig := &llm.ValidationError{Err: errors.New("context length exceeded")}
	client := &fakeCompleter{
		responses: []string{"", "recovered"},
		errs:      []error{tooBig, nil},
	}
	g := NewGenerator(client)

	// Odd byte lengths of multibyte text would split a rune if the halving
	// counted bytes.
	contextText := strings.Repeat("héllo wörld ", 83) + "é"
	out := g.Generate(context.Background(), "q", contextText, nil)
	assert.Equal(t, "recovered", out)

	require.Len(t, client.requests, 2)
	assert.True(t, utf8.ValidString(client.lastUserContent()))
}

func TestGenerateGivesUpAfterSecondRejection(t *testing.T) {
	tooBig := &llm.ValidationError{Err: errors.New("context length exceeded")}
	client := &fakeCompleter{errs: []error{tooBig, tooBig}}
	g := NewGenerator(client)

	out := g.Generate(context.Background(), "q", strings.Repeat("c", 1000), nil)
	assert.Contains(t, out, "too large")
	assert.Len(t, client.requests, 2)
}

func TestGenerateTransientErrorBecomesMessage(t *testing.T) {
	client := &fakeCompleter{errs: []error{&llm.TransientError{Err: errors.New("service unavailable")}}}
	g := NewGenerator(client)

	out := g.Generate(context.Background(), "q", "ctx", nil)
	assert.True(t, strings.HasPrefix(out, "Error generating response:"), out)
	// Transient failures are not retried here; the client already did that.
	assert.Len(t, client.requests, 1)
}

func TestGenerateHistoryWindow(t *testing.T) {
	client := &fakeCompleter{responses: []string{"ok"}}
	g := NewGenerator(client)

	history := []session.Turn{
		{Role: session.RoleUser, Text: "turn one"},
		{Role: session.RoleAssistant, Text: "answer one"},
		{Role: session.RoleUser, Text: "turn two"},
		{Role: session.RoleAssistant, Text: "answer two"},
		{Role: session.RoleUser, Text: "turn three"},
	}

	g.Generate(context.Background(), "q", "ctx", history)

	req := client.requests[0]
	// System prompt, last three history turns, and the question.
	require.Len(t, req.Messages, 5)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "turn two", req.Messages[1].Content)
	assert.Equal(t, "answer two", req.Messages[2].Content)
	assert.Equal(t, llm.RoleAssistant, req.Messages[2].Role)
	assert.Equal(t, "turn three", req.Messages[3].Content)
}
