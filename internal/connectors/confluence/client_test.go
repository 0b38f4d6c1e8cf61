package confluence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "12345_Setup_Guide.txt", ExportFilename("12345", "Setup Guide"))
	assert.Equal(t, "9_How_to_deploy_v2.txt", ExportFilename("9", "How to deploy (v2)"))
	assert.Equal(t, "42_page.txt", ExportFilename("42", "   "))
}

func TestHTMLToText(t *testing.T) {
	html := `<h1>Setup</h1><p>Install the agent.</p><ul><li>Step one</li><li>Step two</li></ul>`
	text, err := htmlToText(html)
	require.NoError(t, err)
	assert.Contains(t, text, "Setup")
	assert.Contains(t, text, "Install the agent.")
	assert.Contains(t, text, "Step one")
	assert.NotContains(t, text, "<p>")
}

func TestExportPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/rest/api/content/12345") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "svc-user", user)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "12345",
			"title": "Setup Guide",
			"body": {"storage": {"value": "<p>Install the agent.</p>"}}
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "svc-user", "token", nil)
	doc, err := client.ExportPage(context.Background(), "12345")
	require.NoError(t, err)

	assert.Equal(t, "12345", doc.PageID)
	assert.Equal(t, "Setup Guide", doc.Title)
	assert.Equal(t, "12345_Setup_Guide.txt", doc.Filename)
	assert.Equal(t, "Install the agent.", doc.Text)
}

func TestExportPageNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "u", "t", nil)
	_, err := client.ExportPage(context.Background(), "999")
	assert.Error(t, err)
}
