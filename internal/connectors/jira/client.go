// Package jira pulls project issues and renders them as text documents for
// ingestion, so answers can cite ticket keys.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/infra-assist/backend/pkg/logger"
)

const defaultPageSize = 500

type Client struct {
	baseURL  string
	username string
	token    string
	pageSize int
	http     *http.Client
}

type Issue struct {
	Key         string
	Summary     string
	Status      string
	Reporter    string
	Assignee    string
	Created     string
	Description string
	Comments    []string
	Attachments []string
}

func NewClient(baseURL, username, token string, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		token:    token,
		pageSize: pageSize,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type issueFields struct {
	Summary string `json:"summary"`
	Status  struct {
		Name string `json:"name"`
	} `json:"status"`
	Reporter struct {
		DisplayName string `json:"displayName"`
	} `json:"reporter"`
	Assignee struct {
		DisplayName string `json:"displayName"`
	} `json:"assignee"`
	Created     string `json:"created"`
	Description string `json:"description"`
	Comment     struct {
		Comments []struct {
			Author struct {
				DisplayName string `json:"displayName"`
			} `json:"author"`
			Body string `json:"body"`
		} `json:"comments"`
	} `json:"comment"`
	Attachment []struct {
		Filename string `json:"filename"`
	} `json:"attachment"`
}

type issueResponse struct {
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

type searchResponse struct {
	StartAt    int             `json:"startAt"`
	MaxResults int             `json:"maxResults"`
	Total      int             `json:"total"`
	Issues     []issueResponse `json:"issues"`
}

// FetchIssue loads a single issue with comments and attachment names.
func (c *Client) FetchIssue(ctx context.Context, key string) (*Issue, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=summary,status,reporter,assignee,created,description,comment,attachment", c.baseURL, key)

	var resp issueResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch issue %s: %w", key, err)
	}

	return fromResponse(resp), nil
}

// SearchProject returns every issue in the project, paging through results.
func (c *Client) SearchProject(ctx context.Context, projectKey string) ([]*Issue, error) {
	var issues []*Issue
	startAt := 0

	for {
		jql := url.QueryEscape(fmt.Sprintf("project = %s ORDER BY created ASC", projectKey))
		endpoint := fmt.Sprintf("%s/rest/api/2/search?jql=%s&startAt=%d&maxResults=%d&fields=summary,status,reporter,assignee,created,description,comment,attachment",
			c.baseURL, jql, startAt, c.pageSize)

		var page searchResponse
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, fmt.Errorf("failed to search project %s: %w", projectKey, err)
		}

		for _, raw := range page.Issues {
			issues = append(issues, fromResponse(raw))
		}

		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			break
		}
	}

	logger.Info("Project issues fetched",
		zap.String("project", projectKey),
		zap.Int("count", len(issues)),
	)
	return issues, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
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

func fromResponse(resp issueResponse) *Issue {
	issue := &Issue{
		Key:         resp.Key,
		Summary:     resp.Fields.Summary,
		Status:      resp.Fields.Status.Name,
		Reporter:    resp.Fields.Reporter.DisplayName,
		Assignee:    resp.Fields.Assignee.DisplayName,
		Created:     resp.Fields.Created,
		Description: resp.Fields.Description,
	}
	for _, comment := range resp.Fields.Comment.Comments {
		issue.Comments = append(issue.Comments, fmt.Sprintf("%s: %s", comment.Author.DisplayName, comment.Body))
	}
	for _, att := range resp.Fields.Attachment {
		issue.Attachments = append(issue.Attachments, att.Filename)
	}
	return issue
}

// RenderDocument flattens an issue into the text form used for ingestion. The
// ticket key appears in the text, so retrieval hits on this document surface
// the key as a reference.
func RenderDocument(issue *Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s: %s\n", issue.Key, issue.Summary)
	fmt.Fprintf(&b, "Status: %s\n", issue.Status)
	if issue.Reporter != "" {
		fmt.Fprintf(&b, "Reporter: %s\n", issue.Reporter)
	}
	if issue.Assignee != "" {
		fmt.Fprintf(&b, "Assignee: %s\n", issue.Assignee)
	}
	if issue.Created != "" {
		fmt.Fprintf(&b, "Created: %s\n", issue.Created)
	}
	if issue.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", issue.Description)
	}
	if len(issue.Comments) > 0 {
		b.WriteString("\nComments:\n")
		for _, comment := range issue.Comments {
			fmt.Fprintf(&b, "- %s\n", comment)
		}
	}
	if len(issue.Attachments) > 0 {
		b.WriteString("\nAttachments: " + strings.Join(issue.Attachments, ", ") + "\n")
	}
	return b.String()
}
