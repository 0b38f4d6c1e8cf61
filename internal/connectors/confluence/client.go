// Package confluence exports wiki pages as plain text for ingestion. Exported
// page names follow the {pageID}_{title} convention that reference resolution
// recognizes.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/infra-assist/backend/pkg/logger"
)

// TextCache holds extracted page text keyed by page ID, to avoid refetching
// unchanged pages within the cache TTL.
type TextCache interface {
	GetPageText(ctx context.Context, docKey string) (string, bool, error)
	SetPageText(ctx context.Context, docKey string, text string, ttl time.Duration) error
}

type Client struct {
	baseURL  string
	username string
	token    string
	http     *http.Client
	cache    TextCache
	cacheTTL time.Duration
}

// Document is one exported page, ready for ingestion.
type Document struct {
	PageID   string
	Title    string
	Filename string
	Text     string
}

func NewClient(baseURL, username, token string, cache TextCache) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
		cache:    cache,
		cacheTTL: time.Hour,
	}
}

type pageResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
}

type childListResponse struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

// ExportPage fetches one page and returns it as plain text.
func (c *Client) ExportPage(ctx context.Context, pageID string) (*Document, error) {
	if c.cache != nil {
		if cached, ok, err := c.cache.GetPageText(ctx, pageID); err == nil && ok {
			var doc Document
			if json.Unmarshal([]byte(cached), &doc) == nil {
				return &doc, nil
			}
		}
	}

	var page pageResponse
	url := fmt.Sprintf("%s/rest/api/content/%s?expand=body.storage", c.baseURL, pageID)
	if err := c.get(ctx, url, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch page %s: %w", pageID, err)
	}

	text, err := htmlToText(page.Body.Storage.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s body: %w", pageID, err)
	}

	doc := &Document{
		PageID:   page.ID,
		Title:    page.Title,
		Filename: ExportFilename(page.ID, page.Title),
		Text:     text,
	}

	if c.cache != nil {
		if data, err := json.Marshal(doc); err == nil {
			if err := c.cache.SetPageText(ctx, pageID, string(data), c.cacheTTL); err != nil {
				logger.Warn("Page cache write failed", zap.String("page_id", pageID), zap.Error(err))
			}
		}
	}

	return doc, nil
}

// ExportTree exports a page and all of its descendants.
func (c *Client) ExportTree(ctx context.Context, pageID string) ([]*Document, error) {
	doc, err := c.ExportPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	docs := []*Document{doc}

	childIDs, err := c.childPageIDs(ctx, pageID)
	if err != nil {
		return nil, err
	}
	for _, childID := range childIDs {
		children, err := c.ExportTree(ctx, childID)
		if err != nil {
			return nil, err
		}
		docs = append(docs, children...)
	}

	return docs, nil
}

func (c *Client) childPageIDs(ctx context.Context, pageID string) ([]string, error) {
	var list childListResponse
	url := fmt.Sprintf("%s/rest/api/content/%s/child/page?limit=100", c.baseURL, pageID)
	if err := c.get(ctx, url, &list); err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", pageID, err)
	}

	ids := make([]string, 0, len(list.Results))
	for _, r := range list.Results {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// htmlToText flattens storage-format HTML into readable plain text.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var parts []string
	doc.Find("p, li, h1, h2, h3, h4, td, pre").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})

	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(parts, "\n"), nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// ExportFilename builds the {pageID}_{title}.txt name for an exported page.
func ExportFilename(pageID, title string) string {
	clean := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(title), "_")
	clean = strings.Trim(clean, "_")
	if clean == "" {
		clean = "page"
	}
	return pageID + "_" + clean + ".txt"
}
