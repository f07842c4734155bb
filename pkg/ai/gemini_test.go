package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRespectsMax(t *testing.T) {
	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "ab", truncate("ab", 10))
}

func TestCoalesceTimeDefaultsToTBD(t *testing.T) {
	assert.Equal(t, "TBD", coalesceTime(""))
	assert.Equal(t, "19:30", coalesceTime("19:30"))
}
