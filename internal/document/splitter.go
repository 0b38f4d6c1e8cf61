package document

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/infra-assist/backend/pkg/utils"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 25
)

// Chunk is the unit of embedding and retrieval: a bounded window of extracted
// page text. The ID is the content hash of the text, which makes re-ingestion
// of unchanged content a no-op in the vector store.
type Chunk struct {
	ID       string
	Text     string
	Source   string
	Page     int
	Metadata map[string]string
}

// Splitter subdivides page text into overlapping fixed-size windows. Window
// boundaries are moved back to the nearest whitespace so words are not split;
// a window with no whitespace at all is cut hard at Size.
type Splitter struct {
	Size    int
	Overlap int
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return &Splitter{Size: size, Overlap: overlap}
}

// Split returns the overlapping windows of text. Text shorter than the window
// size yields exactly one window.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}
	if len(runes) <= s.Size {
		return []string{text}
	}

	var windows []string
	start := 0
	for start < len(runes) {
		end := start + s.Size
		if end >= len(runes) {
			windows = append(windows, string(runes[start:]))
			break
		}

		boundary := lastWhitespace(runes, start, end)
		if boundary <= start {
			boundary = end
		}

		windows = append(windows, string(runes[start:boundary]))

		next := boundary - s.Overlap
		if next <= start {
			next = boundary
		}
		start = next
	}

	return windows
}

// ChunkPage splits one extracted page into chunks tagged with the originating
// source name and page number.
func (s *Splitter) ChunkPage(source string, page Page) []Chunk {
	windows := s.Split(page.Text)

	chunks := make([]Chunk, 0, len(windows))
	for _, w := range windows {
		chunks = append(chunks, Chunk{
			ID:     utils.HashString(w),
			Text:   w,
			Source: source,
			Page:   page.Number,
			Metadata: map[string]string{
				"source": source,
				"page":   strconv.Itoa(page.Number),
			},
		})
	}
	return chunks
}

// lastWhitespace returns the index of the last whitespace rune in
// runes[start:end], or start when there is none.
func lastWhitespace(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return start
}
