package pages

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinksBlock(t *testing.T) {
	block := LinksBlock("Austin", []Link{
		{Title: "Dumpster Rental in Hyde Park, Austin", URL: "https://example.com/austin-tx-hyde-park/"},
		{Title: `Tom & "Jerry"`, URL: "https://example.com/?a=1&b=2"},
	})
	assert.Contains(t, block, `<nav class="internal-links">`)
	assert.Contains(t, block, "<h2>Dumpster Rental Near Austin</h2>")
	assert.Contains(t, block, `<a href="https://example.com/austin-tx-hyde-park/">Dumpster Rental in Hyde Park, Austin</a>`)
	assert.Contains(t, block, `Tom &amp; &#34;Jerry&#34;`)
	assert.Contains(t, block, `?a=1&amp;b=2`)
}

func TestInjectLinks(t *testing.T) {
	pages := NewAssembler(Options{}).Assemble(austin(), fullResults())
	block := LinksBlock("Austin", []Link{{Title: "Hyde Park", URL: "https://example.com/hyde-park/"}})

	out, err := InjectLinks(pages[0].HTML, block)
	require.NoError(t, err)
	require.NoError(t, ValidateHTML(out))

	assert.Equal(t, 1, strings.Count(out, `class="internal-links"`))
	assert.Less(t, strings.Index(out, `class="internal-links"`), strings.Index(out, `class="final-cta"`))
	assert.True(t, strings.HasPrefix(out, "<article"))

	// Injecting again replaces the old block.
	again, err := InjectLinks(out, LinksBlock("Austin", []Link{{Title: "Zilker", URL: "https://example.com/zilker/"}}))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(again, `class="internal-links"`))
	assert.Contains(t, again, "Zilker")
	assert.NotContains(t, again, "hyde-park/")
}

func TestInjectLinks_WithoutFinalCTA(t *testing.T) {
	out, err := InjectLinks("<article><h1>T</h1><p>x</p></article>", LinksBlock("Austin", nil))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "</nav></article>"))
}

func TestInjectLinks_NoArticle(t *testing.T) {
	_, err := InjectLinks("<p>not a page</p>", "<nav></nav>")
	require.Error(t, err)
}

func TestValidateHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		ok   bool
	}{
		{name: "valid", html: "<article><h1>Title</h1></article>", ok: true},
		{name: "empty", html: "   "},
		{name: "no article", html: "<div><h1>Title</h1></div>"},
		{name: "blank heading", html: "<article><h1>  </h1></article>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHTML(tt.html)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
