package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"/docs/readme.md", "*", true},
		{"/docs/readme.md", "/docs/*", true},
		{"/docs/readme.md", "/docs/*.md", true},
		{"/docs/sub/deep.md", "/docs/*", true},
		{"/notes/c.md", "/docs/*", false},
		{"/docs/readme.md", "*.md", true},
		{"/docs/readme.md", "*.txt", false},
		{"/docs/readme.md", "*read*", true},
		{"/docs/readme.md", "/docs/readme.md", true},
		{"/docs/readme.md", "/docs/*me.md", true},
		{"/a/b/c", "/a/*/c", true},
		{"/a/b/c", "/x/*", false},
		{"/ab", "/a*b*c", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesPattern(tt.path, tt.pattern),
			"path %q pattern %q", tt.path, tt.pattern)
	}
}

func TestPatternPrefix(t *testing.T) {
	assert.Equal(t, "/docs/", PatternPrefix("/docs/*.md"))
	assert.Equal(t, "", PatternPrefix("*notes*"))
	assert.Equal(t, "/exact", PatternPrefix("/exact"))
}
