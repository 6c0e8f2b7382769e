package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_Render(t *testing.T) {
	html, err := NewMarkdown().Render("## Action Plan\n\n1. Restock **Spatula**\n2. Fix listing")
	require.NoError(t, err)

	assert.Contains(t, html, "<h2")
	assert.Contains(t, html, "Action Plan</h2>")
	assert.Contains(t, html, "<ol>")
	assert.Contains(t, html, "<strong>Spatula</strong>")
}

func TestMarkdown_RenderTable(t *testing.T) {
	html, err := NewMarkdown().Render("| Competitor | Rating |\n|---|---|\n| Acme | 4.5 |")
	require.NoError(t, err)

	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<td>Acme</td>")
}

func TestMarkdown_StripsScripts(t *testing.T) {
	html, err := NewMarkdown().Render("Hello <script>alert(1)</script> [x](javascript:alert(1))")
	require.NoError(t, err)

	assert.NotContains(t, html, "<script")
	assert.NotContains(t, html, "javascript:")
	assert.Contains(t, html, "Hello")
}

func TestMarkdown_LinksOpenInNewTab(t *testing.T) {
	html, err := NewMarkdown().Render("[Amazon](https://www.amazon.com)")
	require.NoError(t, err)

	assert.Contains(t, html, `href="https://www.amazon.com"`)
	assert.Contains(t, html, "nofollow")
	assert.Contains(t, html, "noopener")
	assert.Contains(t, html, `target="_blank"`)
}
