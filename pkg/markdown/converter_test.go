package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSafeHTML(t *testing.T) {
	got := ToSafeHTML("**bold** and *italic*")
	assert.Contains(t, got, "<strong>bold</strong>")
	assert.Contains(t, got, "<em>italic</em>")
}

func TestToSafeHTML_Lists(t *testing.T) {
	got := ToSafeHTML("- one\n- two")
	assert.Contains(t, got, "<ul>")
	assert.Contains(t, got, "<li>one</li>")
}

func TestToSafeHTML_StripsScripts(t *testing.T) {
	got := ToSafeHTML("hello <script>alert(1)</script> world")
	assert.NotContains(t, got, "script")
	assert.NotContains(t, got, "alert")
}

func TestToSafeHTML_StripsUnknownTags(t *testing.T) {
	got := ToSafeHTML(`text <iframe src="x"></iframe> more`)
	assert.NotContains(t, got, "iframe")
	assert.Contains(t, got, "text")
}

func TestToSafeHTML_Empty(t *testing.T) {
	assert.Equal(t, "", ToSafeHTML(""))
}
