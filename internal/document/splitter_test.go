package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextSingleWindow(t *testing.T) {
	s := NewSplitter(800, 25)

	windows := s.Split("a short page")
	require.Len(t, windows, 1)
	assert.Equal(t, "a short page", windows[0])
}

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(800, 25)

	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\t "))
}

func TestSplitWindowSizeAndOverlap(t *testing.T) {
	s := NewSplitter(100, 10)

	text := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	windows := s.Split(text)
	require.Greater(t, len(windows), 1)

	for _, w := range windows {
		assert.LessOrEqual(t, len([]rune(w)), 100)
	}

	// Consecutive windows share the overlap region, so the tail of one window
	// appears at the head of the next.
	for i := 1; i < len(windows); i++ {
		prev := []rune(windows[i-1])
		tail := string(prev[len(prev)-10:])
		assert.True(t, strings.HasPrefix(windows[i], tail),
			"window %d does not start with the previous window's tail", i)
	}
}

func TestSplitCoversAllText(t *testing.T) {
	s := NewSplitter(100, 10)

	text := strings.Repeat("alpha beta gamma delta epsilon ", 30)
	windows := s.Split(text)

	// Dropping each window's overlap prefix and concatenating the rest must
	// reconstruct the original text with nothing lost.
	var rebuilt strings.Builder
	rebuilt.WriteString(windows[0])
	for i := 1; i < len(windows); i++ {
		runes := []rune(windows[i])
		rebuilt.WriteString(string(runes[10:]))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplitPrefersWhitespaceBoundary(t *testing.T) {
	s := NewSplitter(50, 5)

	text := strings.Repeat("word ", 40)
	for _, w := range s.Split(text) {
		assert.False(t, strings.HasSuffix(strings.TrimRight(w, " "), "wor"),
			"window cut inside a word: %q", w)
	}
}

func TestSplitNoWhitespaceHardCut(t *testing.T) {
	s := NewSplitter(50, 5)

	text := strings.Repeat("x", 200)
	windows := s.Split(text)
	require.Greater(t, len(windows), 1)
	assert.Equal(t, 50, len([]rune(windows[0])))
}

func TestChunkPageMetadata(t *testing.T) {
	s := NewSplitter(800, 25)

	chunks := s.ChunkPage("12345_Setup_Guide.pdf", Page{Number: 3, Text: "page three content"})
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "page three content", c.Text)
	assert.Equal(t, "12345_Setup_Guide.pdf", c.Source)
	assert.Equal(t, 3, c.Page)
	assert.Equal(t, "12345_Setup_Guide.pdf", c.Metadata["source"])
	assert.Equal(t, "3", c.Metadata["page"])
}

func TestChunkIDStableForSameContent(t *testing.T) {
	s := NewSplitter(800, 25)

	first := s.ChunkPage("a.pdf", Page{Number: 1, Text: "identical content"})
	second := s.ChunkPage("a.pdf", Page{Number: 1, Text: "identical content"})
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}
