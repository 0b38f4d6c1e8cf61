package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStringDeterministic(t *testing.T) {
	assert.Equal(t, HashString("same input"), HashString("same input"))
	assert.NotEqual(t, HashString("one"), HashString("two"))
	assert.Len(t, HashString("anything"), 32)
}
