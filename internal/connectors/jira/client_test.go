package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDocument(t *testing.T) {
	issue := &Issue{
		Key:         "PANTHER-2219",
		Summary:     "Deploy fails on staging",
		Status:      "Done",
		Reporter:    "Alex",
		Assignee:    "Sam",
		Created:     "2024-01-15",
		Description: "The deploy job times out.",
		Comments:    []string{"Sam: fixed by raising the timeout"},
		Attachments: []string{"log.txt"},
	}

	text := RenderDocument(issue)
	assert.Contains(t, text, "Ticket PANTHER-2219: Deploy fails on staging")
	assert.Contains(t, text, "Status: Done")
	assert.Contains(t, text, "The deploy job times out.")
	assert.Contains(t, text, "fixed by raising the timeout")
	assert.Contains(t, text, "log.txt")
}

func TestSearchProjectPagination(t *testing.T) {
	const total = 7
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
		assert.Equal(t, 3, maxResults)

		var issues []map[string]interface{}
		for i := startAt; i < total && i < startAt+maxResults; i++ {
			issues = append(issues, map[string]interface{}{
				"key": fmt.Sprintf("PROJ-%d", i+1),
				"fields": map[string]interface{}{
					"summary": fmt.Sprintf("issue %d", i+1),
					"status":  map[string]string{"name": "Open"},
				},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"startAt":    startAt,
			"maxResults": maxResults,
			"total":      total,
			"issues":     issues,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "u", "t", 3)
	issues, err := client.SearchProject(context.Background(), "PROJ")
	require.NoError(t, err)

	require.Len(t, issues, total)
	assert.Equal(t, "PROJ-1", issues[0].Key)
	assert.Equal(t, "PROJ-7", issues[6].Key)
	assert.Equal(t, "Open", issues[0].Status)
}

func TestFetchIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/rest/api/2/issue/ABC-42")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"key": "ABC-42",
			"fields": {
				"summary": "Broken login",
				"status": {"name": "In Progress"},
				"reporter": {"displayName": "Alex"},
				"comment": {"comments": [{"author": {"displayName": "Sam"}, "body": "looking into it"}]}
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "u", "t", 0)
	issue, err := client.FetchIssue(context.Background(), "ABC-42")
	require.NoError(t, err)

	assert.Equal(t, "ABC-42", issue.Key)
	assert.Equal(t, "Broken login", issue.Summary)
	assert.Equal(t, "In Progress", issue.Status)
	require.Len(t, issue.Comments, 1)
	assert.Equal(t, "Sam: looking into it", issue.Comments[0])
}
