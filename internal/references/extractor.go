// Package references derives source links from retrieved chunks and the
// generated answer. References are computed per response and never stored.
package references

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/infra-assist/backend/internal/vectorstore"
)

const (
	KindTicket   = "ticket"
	KindWikiPage = "wiki_page"
	KindFile     = "file"
)

type Reference struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

var (
	// Wiki exports are named {pageID}_{title}.{ext}; anything else is a plain file.
	wikiPattern = regexp.MustCompile(`^(\d+)_(.+)\.[A-Za-z0-9]+$`)

	// Ticket keys like PANTHER-2219 or ABC-42, matched in answer and chunk text.
	ticketPattern = regexp.MustCompile(`\b[A-Z]+-\d+\b`)
)

// Extractor resolves references against configured base URLs. Empty base URLs
// produce references without links.
type Extractor struct {
	confluenceBaseURL string
	jiraBaseURL       string
}

func NewExtractor(confluenceBaseURL, jiraBaseURL string) *Extractor {
	return &Extractor{
		confluenceBaseURL: strings.TrimRight(confluenceBaseURL, "/"),
		jiraBaseURL:       strings.TrimRight(jiraBaseURL, "/"),
	}
}

// Extract builds the reference list for one answer: one source reference per
// distinct retrieved source, plus one ticket reference per distinct ticket key
// seen in the answer or the retrieved text. Order follows first appearance.
func (e *Extractor) Extract(answer string, results []vectorstore.Result) []Reference {
	var refs []Reference
	seen := make(map[string]bool)

	add := func(r Reference, identity string) {
		key := r.Kind + "\x00" + identity
		if seen[key] {
			return
		}
		seen[key] = true
		refs = append(refs, r)
	}

	for _, res := range results {
		add(e.sourceReference(res.Entry.Metadata["source"], res.Entry.Metadata["page"]))
	}

	corpus := answer
	for _, res := range results {
		corpus += "\n" + res.Entry.Text
	}
	for _, key := range ticketPattern.FindAllString(corpus, -1) {
		ref := Reference{Kind: KindTicket, Label: key}
		if e.jiraBaseURL != "" {
			ref.URL = e.jiraBaseURL + "/browse/" + key
		}
		add(ref, key)
	}

	return refs
}

// sourceReference classifies a chunk source. Filenames following the wiki
// export convention resolve to a page link; everything else stays a file
// labeled with its source name and page number. Missing fields fall back to
// placeholder text, never an error.
func (e *Extractor) sourceReference(source, page string) (Reference, string) {
	name := source
	if name != "" {
		name = filepath.Base(name)

		if m := wikiPattern.FindStringSubmatch(name); m != nil {
			pageID := m[1]
			title := strings.ReplaceAll(m[2], "_", " ")
			if strings.TrimSpace(title) == "" {
				title = "Unknown Page"
			}
			ref := Reference{Kind: KindWikiPage, Label: title}
			if e.confluenceBaseURL != "" {
				ref.URL = e.confluenceBaseURL + "/pages/viewpage.action?pageId=" + pageID
			}
			return ref, pageID
		}
	}

	if name == "" {
		name = "Unknown Source"
	}
	if page == "" {
		page = "Unknown Page"
	}
	label := "File: " + name + " Page: " + page

	return Reference{Kind: KindFile, Label: label}, name + "#" + page
}
