package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infra-assist/backend/internal/references"
	"github.com/infra-assist/backend/internal/retriever"
	"github.com/infra-assist/backend/internal/session"
	"github.com/infra-assist/backend/internal/storage/models"
	"github.com/infra-assist/backend/internal/vectorstore"
)

type fakeRetriever struct {
	results []vectorstore.Result
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) ([]vectorstore.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeGenerator struct {
	answer      string
	gotContext  string
	gotHistory  []session.Turn
	gotQuestion string
}

func (f *fakeGenerator) Generate(_ context.Context, question, contextText string, history []session.Turn) string {
	f.gotQuestion = question
	f.gotContext = contextText
	f.gotHistory = history
	return f.answer
}

type fakeQueryStore struct {
	records  map[string]*models.QueryRecord
	sources  []*models.QuerySource
	feedback []*models.Feedback
}

func newFakeQueryStore() *fakeQueryStore {
	return &fakeQueryStore{records: make(map[string]*models.QueryRecord)}
}

func (f *fakeQueryStore) InsertQueryRecord(r *models.QueryRecord) error {
	f.records[r.ID] = r
	return nil
}

func (f *fakeQueryStore) InsertQuerySource(s *models.QuerySource) error {
	f.sources = append(f.sources, s)
	return nil
}

func (f *fakeQueryStore) GetQueryRecord(id string) (*models.QueryRecord, error) {
	return f.records[id], nil
}

func (f *fakeQueryStore) GetQueryHistory(userID string, limit int) ([]models.QueryRecord, error) {
	var out []models.QueryRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeQueryStore) StoreFeedback(fb *models.Feedback) error {
	f.feedback = append(f.feedback, fb)
	return nil
}

func chunkResult(source, text string, page int, score float32) vectorstore.Result {
	return vectorstore.Result{
		Entry: vectorstore.Entry{
			ID:   fmt.Sprintf("%s-p%d", source, page),
			Text: text,
			Metadata: map[string]string{
				"source": source,
				"page":   fmt.Sprintf("%d", page),
			},
		},
		Score: score,
	}
}

func newTestEngine(r ContextRetriever, g AnswerGenerator, db QueryStore) (*Engine, *session.Manager) {
	sessions := session.NewManager()
	extractor := references.NewExtractor("https://confluence.org.com", "https://jira.org.com")
	return NewEngine(r, g, extractor, sessions, db), sessions
}

func TestProcessQueryEndToEnd(t *testing.T) {
	// Three chunks from a storage guide; the versioning page scores highest.
	ret := &fakeRetriever{results: []vectorstore.Result{
		chunkResult("67890_Object_Storage_Guide.pdf", "Object storage supports versioning of every object in a bucket.", 2, 0.93),
		chunkResult("67890_Object_Storage_Guide.pdf", "Buckets are created per region.", 1, 0.81),
		chunkResult("67890_Object_Storage_Guide.pdf", "Lifecycle rules expire old versions.", 3, 0.78),
	}}
	gen := &fakeGenerator{answer: "Versioning keeps every object revision, see STOR-101."}
	db := newFakeQueryStore()
	engine, sessions := newTestEngine(ret, gen, db)

	resp := engine.ProcessQuery(context.Background(), Request{
		Query:  "Does object storage support versioning?",
		UserID: "u1",
	})

	require.NotEmpty(t, resp.ID)
	require.NotEmpty(t, resp.SessionID)
	assert.Equal(t, gen.answer, resp.Answer)

	// The best chunk leads the generation context.
	assert.Contains(t, gen.gotContext, "supports versioning")
	assert.Equal(t, "Does object storage support versioning?", gen.gotQuestion)

	// One page reference plus the ticket mentioned in the answer.
	require.Len(t, resp.References, 2)
	assert.Equal(t, references.KindWikiPage, resp.References[0].Kind)
	assert.Equal(t, "Object Storage Guide", resp.References[0].Label)
	assert.Equal(t, references.KindTicket, resp.References[1].Kind)
	assert.Equal(t, "STOR-101", resp.References[1].Label)

	// The exchange is recorded with its sources.
	require.Contains(t, db.records, resp.ID)
	assert.Len(t, db.sources, 3)

	// Both turns landed in the session.
	sess, ok := sessions.Get(resp.SessionID)
	require.True(t, ok)
	turns := sess.History()
	require.Len(t, turns, 2)
	assert.Equal(t, session.RoleUser, turns[0].Role)
	assert.Equal(t, session.RoleAssistant, turns[1].Role)
}

func TestProcessQueryNoRelevantData(t *testing.T) {
	ret := &fakeRetriever{err: retriever.ErrNoRelevantData}
	gen := &fakeGenerator{answer: "should not be used"}
	engine, _ := newTestEngine(ret, gen, newFakeQueryStore())

	resp := engine.ProcessQuery(context.Background(), Request{Query: "anything"})
	assert.Equal(t, "No relevant data found in the database.", resp.Answer)
	assert.Empty(t, resp.References)
	assert.Empty(t, gen.gotQuestion)
}

func TestProcessQueryRetrievalErrorDegrades(t *testing.T) {
	ret := &fakeRetriever{err: errors.New("store offline")}
	engine, _ := newTestEngine(ret, &fakeGenerator{}, newFakeQueryStore())

	resp := engine.ProcessQuery(context.Background(), Request{Query: "anything"})
	assert.Contains(t, resp.Answer, "Error generating response:")
}

func TestProcessQuerySessionContinuity(t *testing.T) {
	ret := &fakeRetriever{results: []vectorstore.Result{
		chunkResult("guide.pdf", "chunk text", 1, 0.9),
	}}
	gen := &fakeGenerator{answer: "first answer"}
	engine, _ := newTestEngine(ret, gen, newFakeQueryStore())

	first := engine.ProcessQuery(context.Background(), Request{Query: "first question"})

	gen.answer = "second answer"
	engine.ProcessQuery(context.Background(), Request{
		Query:     "follow-up question",
		SessionID: first.SessionID,
	})

	// The second turn sees the first exchange, not itself.
	require.Len(t, gen.gotHistory, 2)
	assert.Equal(t, "first question", gen.gotHistory[0].Text)
	assert.Equal(t, "first answer", gen.gotHistory[1].Text)
}

func TestRegenerate(t *testing.T) {
	ret := &fakeRetriever{results: []vectorstore.Result{
		chunkResult("guide.pdf", "chunk", 1, 0.9),
	}}
	gen := &fakeGenerator{answer: "original"}
	db := newFakeQueryStore()
	engine, _ := newTestEngine(ret, gen, db)

	first := engine.ProcessQuery(context.Background(), Request{Query: "the question", UserID: "u1"})

	gen.answer = "regenerated"
	second, err := engine.Regenerate(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "regenerated", second.Answer)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, []string{"the question", "the question"}, ret.queries)
}

func TestRegenerateUnknownQuery(t *testing.T) {
	engine, _ := newTestEngine(&fakeRetriever{}, &fakeGenerator{}, newFakeQueryStore())

	_, err := engine.Regenerate(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRecordFeedback(t *testing.T) {
	db := newFakeQueryStore()
	engine, _ := newTestEngine(&fakeRetriever{}, &fakeGenerator{}, db)

	require.NoError(t, engine.RecordFeedback("q1", false, "wrong answer"))
	require.Len(t, db.feedback, 1)
	assert.Equal(t, "q1", db.feedback[0].QueryID)
	assert.False(t, db.feedback[0].Helpful)
}
