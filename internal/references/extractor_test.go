package references

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infra-assist/backend/internal/vectorstore"
)

func resultWithSource(source, text string) vectorstore.Result {
	return vectorstore.Result{
		Entry: vectorstore.Entry{
			ID:       "id-" + source,
			Text:     text,
			Metadata: map[string]string{"source": source, "page": "1"},
		},
		Score: 0.9,
	}
}

func TestExtractWikiPageReference(t *testing.T) {
	e := NewExtractor("https://confluence.org.com", "https://jira.org.com")

	refs := e.Extract("answer", []vectorstore.Result{
		resultWithSource("12345_Setup_Guide.pdf", "how to set up"),
	})

	require.Len(t, refs, 1)
	assert.Equal(t, KindWikiPage, refs[0].Kind)
	assert.Equal(t, "Setup Guide", refs[0].Label)
	assert.Equal(t, "https://confluence.org.com/pages/viewpage.action?pageId=12345", refs[0].URL)
}

func TestExtractPlainFileReference(t *testing.T) {
	e := NewExtractor("https://confluence.org.com", "https://jira.org.com")

	refs := e.Extract("answer", []vectorstore.Result{
		resultWithSource("random_notes.pdf", "some notes"),
	})

	require.Len(t, refs, 1)
	assert.Equal(t, KindFile, refs[0].Kind)
	assert.Equal(t, "File: random_notes.pdf Page: 1", refs[0].Label)
	assert.Empty(t, refs[0].URL)
}

func TestExtractUnknownSource(t *testing.T) {
	e := NewExtractor("", "")

	refs := e.Extract("answer", []vectorstore.Result{
		{Entry: vectorstore.Entry{ID: "orphan", Text: "orphan chunk", Metadata: map[string]string{}}, Score: 0.9},
	})

	require.Len(t, refs, 1)
	assert.Equal(t, KindFile, refs[0].Kind)
	assert.Equal(t, "File: Unknown Source Page: Unknown Page", refs[0].Label)
}

func TestExtractTicketKeys(t *testing.T) {
	e := NewExtractor("", "https://jira.org.com")

	refs := e.Extract(
		"This was fixed in PANTHER-2219.",
		[]vectorstore.Result{
			resultWithSource("runbook.pdf", "See ABC-42 for the incident history."),
		},
	)

	var tickets []Reference
	for _, r := range refs {
		if r.Kind == KindTicket {
			tickets = append(tickets, r)
		}
	}

	require.Len(t, tickets, 2)
	assert.Equal(t, "PANTHER-2219", tickets[0].Label)
	assert.Equal(t, "https://jira.org.com/browse/PANTHER-2219", tickets[0].URL)
	assert.Equal(t, "ABC-42", tickets[1].Label)
}

func TestExtractDeduplicates(t *testing.T) {
	e := NewExtractor("https://confluence.org.com", "https://jira.org.com")

	refs := e.Extract(
		"PROJ-1 and again PROJ-1",
		[]vectorstore.Result{
			resultWithSource("12345_Guide.pdf", "mentions PROJ-1"),
			resultWithSource("12345_Guide.pdf", "second chunk, same page"),
		},
	)

	// One page reference and one ticket reference despite repeats.
	require.Len(t, refs, 2)
	assert.Equal(t, KindWikiPage, refs[0].Kind)
	assert.Equal(t, KindTicket, refs[1].Kind)
}

func TestExtractNoBaseURLs(t *testing.T) {
	e := NewExtractor("", "")

	refs := e.Extract("TEAM-9", []vectorstore.Result{
		resultWithSource("99_Page.txt", "content"),
	})

	require.Len(t, refs, 2)
	assert.Empty(t, refs[0].URL)
	assert.Empty(t, refs[1].URL)
}
