package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infra-assist/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.InitSchema())
	return c
}

func TestProcessedDocumentMarker(t *testing.T) {
	c := newTestClient(t)

	done, err := c.IsDocumentProcessed("guide.pdf")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, c.MarkDocumentProcessed("guide.pdf"))

	done, err = c.IsDocumentProcessed("guide.pdf")
	require.NoError(t, err)
	assert.True(t, done)

	// Marking again is not an error.
	require.NoError(t, c.MarkDocumentProcessed("guide.pdf"))
}

func TestInsertDocumentAndChunks(t *testing.T) {
	c := newTestClient(t)

	doc := &models.Document{
		ID:        "doc-1",
		Filename:  "guide.pdf",
		Title:     "guide",
		Source:    "pdf",
		PageCount: 2,
		CreatedAt: time.Now(),
	}
	require.NoError(t, c.InsertDocument(doc))

	chunk := &models.DocumentChunk{
		ID:         "chunk-1",
		DocumentID: "doc-1",
		Page:       1,
		Text:       "chunk text",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, c.InsertChunk(chunk))

	// Content-hash chunk IDs repeat on re-ingestion; the insert is a no-op.
	require.NoError(t, c.InsertChunk(chunk))

	// Re-inserting the same filename updates rather than fails.
	doc.PageCount = 3
	require.NoError(t, c.InsertDocument(doc))
}

func TestInsertDocumentResolvesExistingID(t *testing.T) {
	c := newTestClient(t)

	first := &models.Document{
		ID:        "doc-1",
		Filename:  "guide.pdf",
		Title:     "guide",
		Source:    "pdf",
		PageCount: 2,
		CreatedAt: time.Now(),
	}
	require.NoError(t, c.InsertDocument(first))
	require.NoError(t, c.InsertChunk(&models.DocumentChunk{
		ID:         "chunk-1",
		DocumentID: first.ID,
		Page:       1,
		Text:       "chunk text",
		CreatedAt:  time.Now(),
	}))

	// A rerun after an interrupted ingestion carries a fresh ID for the
	// same filename. The insert must resolve to the surviving row so the
	// remaining chunks can still reference it.
	resumed := &models.Document{
		ID:        "doc-2",
		Filename:  "guide.pdf",
		Title:     "guide",
		Source:    "pdf",
		PageCount: 2,
		CreatedAt: time.Now(),
	}
	require.NoError(t, c.InsertDocument(resumed))
	assert.Equal(t, "doc-1", resumed.ID)

	require.NoError(t, c.InsertChunk(&models.DocumentChunk{
		ID:         "chunk-2",
		DocumentID: resumed.ID,
		Page:       2,
		Text:       "second chunk",
		CreatedAt:  time.Now(),
	}))
}

func TestQueryRecordRoundTrip(t *testing.T) {
	c := newTestClient(t)

	record := &models.QueryRecord{
		ID:        "q-1",
		SessionID: "s-1",
		UserID:    "u-1",
		Query:     "how do I deploy?",
		Answer:    "run the pipeline",
		LatencyMS: 120,
		CreatedAt: time.Now(),
	}
	require.NoError(t, c.InsertQueryRecord(record))

	require.NoError(t, c.InsertQuerySource(&models.QuerySource{
		QueryID: "q-1",
		ChunkID: "chunk-1",
		Source:  "guide.pdf",
		Score:   0.88,
	}))

	got, err := c.GetQueryRecord("q-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "how do I deploy?", got.Query)
	assert.Equal(t, "run the pipeline", got.Answer)
	assert.Equal(t, "s-1", got.SessionID)

	missing, err := c.GetQueryRecord("no-such")
	require.NoError(t, err)
	assert.Nil(t, missing)

	history, err := c.GetQueryHistory("u-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "q-1", history[0].ID)
}

func TestStoreFeedback(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.InsertQueryRecord(&models.QueryRecord{
		ID:        "q-1",
		Query:     "q",
		CreatedAt: time.Now(),
	}))

	require.NoError(t, c.StoreFeedback(&models.Feedback{
		QueryID: "q-1",
		Helpful: true,
		Comment: "great",
	}))
}
