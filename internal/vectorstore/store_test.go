package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortByScore(t *testing.T) {
	results := []Result{
		{Entry: Entry{ID: "b"}, Score: 0.80},
		{Entry: Entry{ID: "a"}, Score: 0.95},
		{Entry: Entry{ID: "c"}, Score: 0.70},
	}

	SortByScore(results)

	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, "c", results[2].ID)
}

func TestSortByScoreStable(t *testing.T) {
	results := []Result{
		{Entry: Entry{ID: "first"}, Score: 0.9},
		{Entry: Entry{ID: "second"}, Score: 0.9},
	}

	SortByScore(results)

	assert.Equal(t, "first", results[0].ID)
	assert.Equal(t, "second", results[1].ID)
}

func TestInconsistencyError(t *testing.T) {
	err := &InconsistencyError{ID: "abc", Reason: "stored text differs"}
	assert.Contains(t, err.Error(), "abc")
	assert.Contains(t, err.Error(), "stored text differs")
}
