package ngram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNGram_KeyAndString(t *testing.T) {
	ng := NGram{"el", "gat", "dorm"}

	assert.Equal(t, "el\x1fgat\x1fdorm", ng.Key())
	assert.NotEqual(t, NGram{"el gat", "dorm"}.Key(), ng.Key())
	assert.Equal(t, "el gat dorm", ng.String())
}

func TestNGram_LastToken(t *testing.T) {
	assert.Equal(t, "c", NGram{"a", "b", "c"}.LastToken())
	assert.Equal(t, "", NGram{}.LastToken())
}

func TestNGram_CloneDoesNotAlias(t *testing.T) {
	ng := NGram{"a", "b"}
	cp := ng.Clone()
	cp[0] = "z"

	assert.Equal(t, "a", ng[0])
}

func TestContextDistance_Weight(t *testing.T) {
	assert.InDelta(t, 1.0, ContextDistance{Distance: 0}.Weight(), 1e-12)
	assert.InDelta(t, 0.5, ContextDistance{Distance: 1}.Weight(), 1e-12)
	assert.InDelta(t, 0.25, ContextDistance{Distance: 3}.Weight(), 1e-12)
}
