package pages

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

func TestFormatProse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "paragraphs", in: "First.\n\n\nSecond line\nstill second.", want: "<p>First.</p>\n<p>Second line\nstill second.</p>"},
		{name: "escapes", in: `Use <b>"bins"</b> & more`, want: "<p>Use &lt;b&gt;&#34;bins&#34;&lt;/b&gt; &amp; more</p>"},
		{
			name: "authority link",
			in:   "Check the rules [Link: https://www.austintexas.gov/permits?a=1&b=2] first.",
			want: `<p>Check the rules <a href="https://www.austintexas.gov/permits?a=1&amp;b=2" target="_blank" rel="noopener noreferrer" class="authority-link">www.austintexas.gov</a> first.</p>`,
		},
		{name: "bad link dropped", in: "See [Link: javascript:alert(1)] here.", want: "<p>See  here.</p>"},
		{name: "empty", in: "  \n\n ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(FormatProse(tt.in)))
		})
	}
}

func TestFAQViews_InlineCTAPlacement(t *testing.T) {
	faqs := make([]model.FAQ, 12)
	for i := range faqs {
		faqs[i] = model.FAQ{Question: fmt.Sprintf("Q%d?", i+1), Answer: "A"}
	}
	views := faqViews(faqs, "Austin")
	require.Len(t, views, 12)

	for i, v := range views {
		assert.Equal(t, i+1, v.Index)
		switch i {
		case 3:
			require.NotNil(t, v.InlineCTA)
			assert.Equal(t, "Ready to Order Your Dumpster?", v.InlineCTA.Title)
		case 7:
			require.NotNil(t, v.InlineCTA)
			assert.Equal(t, "Have Questions About Sizing?", v.InlineCTA.Title)
		default:
			// The twelfth item is last, so no CTA follows it.
			assert.Nil(t, v.InlineCTA, "item %d", i+1)
		}
	}
}

func TestFAQViews_RotatesCTAs(t *testing.T) {
	faqs := make([]model.FAQ, 17)
	views := faqViews(faqs, "Austin")
	assert.Equal(t, "Need Fast Delivery?", views[11].InlineCTA.Title)
	assert.Equal(t, "Ready to Order Your Dumpster?", views[15].InlineCTA.Title)
	assert.Contains(t, views[15].InlineCTA.Text, "Austin")
}
