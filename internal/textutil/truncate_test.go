package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/ragbench/internal/textutil"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", textutil.Truncate("short", 10))
	assert.Equal(t, "abc...", textutil.Truncate("abcdef", 3))
	assert.Equal(t, "...", textutil.Truncate("abc", 0))

	// "é" is two bytes; a cut at byte 2 would fall inside it.
	got := textutil.Truncate("aéb", 2)
	assert.Equal(t, "a...", got)
	assert.True(t, utf8.ValidString(got))

	long := strings.Repeat("日本", 100)
	for n := 0; n < 12; n++ {
		assert.True(t, utf8.ValidString(textutil.Truncate(long, n)), "n=%d", n)
	}
}
