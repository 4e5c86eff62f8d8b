package pages

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

func austin() *model.Locality {
	lat, lng := 30.2672, -97.7431
	return &model.Locality{ID: "loc-1", Name: "Austin", RegionCode: "TX", Region: "Texas", Latitude: &lat, Longitude: &lng}
}

func mainRef(key model.SectionKey) model.SectionRef {
	return model.SectionRef{PageKey: model.MainPageKey, SectionKey: key}
}

func hoodRef(hood string, key model.SectionKey) model.SectionRef {
	return model.SectionRef{PageKey: model.NeighborhoodPageKey(hood), SectionKey: key}
}

func fullResults() model.Results {
	var r model.Results
	r.Neighborhoods = []string{"Hyde Park", "Zilker"}
	r.SetSection(mainRef(model.SectionHeroServices), model.Section{Content: "Hero text here.", WordCount: 3})
	r.SetSection(mainRef(model.SectionAreasWhyChoose), model.Section{Content: "Areas text.", WordCount: 2, Neighborhoods: []string{"Hyde Park", "Zilker"}})
	r.SetSection(mainRef(model.SectionPricingProcess), model.Section{Content: "Pricing text.", WordCount: 2})
	r.SetSection(mainRef(model.SectionFAQsPart1), model.Section{WordCount: 4, FAQs: []model.FAQ{
		{Question: "How much?", Answer: "From $295 [Link: https://austintexas.gov].", RealResult: "Story.", Takeaway: "Tip."},
		{Question: "Unanswered?", Answer: ""},
		{Question: "Permit?", Answer: "Yes, $45."},
	}})
	r.SetSection(mainRef(model.SectionFAQsPart2), model.Section{WordCount: 2, FAQs: []model.FAQ{{Question: "Sizes?", Answer: "Four sizes."}}})
	r.SetSection(mainRef(model.SectionTestimonialsCTA), model.Section{Content: "Great service.", WordCount: 2})
	r.SetSection(hoodRef("Hyde Park", model.SectionIntroProjects), model.Section{Content: "Hyde Park intro.", WordCount: 3})
	r.SetSection(hoodRef("Hyde Park", model.SectionServiceDetails), model.Section{Content: "Details.", WordCount: 1})
	r.SetSection(hoodRef("Hyde Park", model.SectionFAQsCTA), model.Section{
		WordCount: 5,
		FAQs:      []model.FAQ{{Question: "Delivery to Hyde Park?", Answer: "Same day."}},
		CTA:       "Call now today.",
	})
	return r
}

func TestAssemble_FullResults(t *testing.T) {
	pages := NewAssembler(Options{}).Assemble(austin(), fullResults())
	require.Len(t, pages, 3)

	main := pages[0]
	assert.Equal(t, model.MainPageKey, main.Key)
	assert.Equal(t, model.PageTypeMain, main.Type)
	assert.Equal(t, "Dumpster Rental in Austin, TX", main.Title)
	assert.Equal(t, "austin-tx", main.Slug)
	assert.Equal(t, "Austin dumpster rental $295+. Same-day delivery. 4.9★ (1200+ reviews). Call (866) 858-3867 for free quote.", main.MetaDescription)
	assert.Equal(t, 15, main.WordCount)

	names := make([]string, 0, len(main.Blocks))
	for _, b := range main.Blocks {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{BlockHeroServices, BlockAreasWhyChoose, BlockPricingProcess, BlockFAQsPart1, BlockFAQsPart2, BlockTestimonialsCTA}, names)
	assert.Equal(t, "Hero text here.", main.Block(BlockHeroServices).Content)
	assert.Contains(t, main.Block(BlockFAQsPart1).Content, "How much?\n\nFrom $295")
	assert.NotContains(t, main.Block(BlockFAQsPart1).Content, "Unanswered?")

	// The unanswered question is left out of the page.
	require.Len(t, main.FAQs, 3)
	assert.Equal(t, "Sizes?", main.FAQs[2].Question)
	require.Len(t, main.StructuredData, 4)
	assert.Contains(t, string(main.StructuredData[0]), `"FAQPage"`)

	html := main.HTML
	assert.True(t, strings.HasPrefix(html, `<article class="dumpster-rental-content">`))
	for _, want := range []string{
		"<h1>Dumpster Rental in Austin, TX</h1>",
		`class="hero-cta"`,
		`class="quick-answer-box"`,
		"Budget $45 for the Austin city permit",
		`class="pricing-card featured"`,
		"Street permits ($45) billed separately.",
		`<a href="#question-1">How much?</a>`,
		`id="question-3"`,
		`class="authority-link">austintexas.gov</a>`,
		`💼 Real Results`,
		`💡 Key Takeaway`,
		"Ready to Rent a Dumpster in Austin?",
		`id="testimonials"`,
	} {
		assert.Contains(t, html, want)
	}
	assert.Less(t, strings.Index(html, `class="faq-content"`), strings.Index(html, `id="testimonials"`))

	hood := pages[1]
	assert.Equal(t, "neighborhood_Hyde Park", hood.Key)
	assert.Equal(t, "Hyde Park", hood.Neighborhood)
	assert.Equal(t, "Dumpster Rental in Hyde Park, Austin", hood.Title)
	assert.Equal(t, "austin-tx-hyde-park", hood.Slug)
	assert.Equal(t, "Dumpster rental in Hyde Park, Austin. Same-day delivery. 4.9★. Call (866) 858-3867.", hood.MetaDescription)
	assert.Equal(t, 9, hood.WordCount)
	assert.Equal(t, "Call now today.", hood.Block(BlockCTA).Content)
	assert.Equal(t, 3, hood.Block(BlockCTA).WordCount)
	assert.Equal(t, 2, hood.Block(BlockFAQsCTA).WordCount)
	assert.Contains(t, hood.HTML, `class="neighborhood-cta"`)
	assert.NotContains(t, hood.HTML, "pricing-cards")

	sum := 0
	for _, b := range hood.Blocks {
		sum += b.WordCount
	}
	assert.Equal(t, hood.WordCount, sum)
}

func TestAssemble_IsTotal(t *testing.T) {
	tests := []struct {
		name    string
		results model.Results
	}{
		{name: "zero value", results: model.Results{}},
		{name: "neighborhoods without sections", results: model.Results{Neighborhoods: []string{"Downtown", " ", "Downtown"}}},
		{name: "partial", results: func() model.Results {
			var r model.Results
			r.SetSection(mainRef(model.SectionHeroServices), model.Section{Content: "Only hero.", WordCount: 2})
			r.SetSection(hoodRef("Eastside", model.SectionFAQsCTA), model.Section{CTA: "Call."})
			return r
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pages []model.Page
			require.NotPanics(t, func() {
				pages = NewAssembler(Options{}).Assemble(austin(), tt.results)
			})
			require.NotEmpty(t, pages)
			for _, p := range pages {
				assert.NotEmpty(t, p.Title)
				assert.NotEmpty(t, p.Slug)
				assert.NotEmpty(t, p.HTML)
				assert.NoError(t, ValidateHTML(p.HTML))
				assert.Len(t, p.StructuredData, 3+boolInt(len(p.FAQs) > 0))
				for _, b := range p.Blocks {
					if b.Content == "" {
						assert.Zero(t, b.WordCount, b.Name)
					}
				}
			}
		})
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func TestAssemble_EmptyBlocksDefault(t *testing.T) {
	pages := NewAssembler(Options{}).Assemble(austin(), model.Results{Neighborhoods: []string{"Downtown"}})
	require.Len(t, pages, 2)
	main := pages[0]
	assert.Len(t, main.Blocks, 6)
	assert.Zero(t, main.WordCount)
	assert.Equal(t, model.ContentBlock{Name: BlockPricingProcess}, main.Block(BlockPricingProcess))
	assert.Len(t, pages[1].Blocks, 4)
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewAssembler(Options{})
	first := a.Assemble(austin(), fullResults())
	second := a.Assemble(austin(), fullResults())
	assert.Equal(t, first, second)
}

func TestNeighborhoods_OrderAndExtras(t *testing.T) {
	var r model.Results
	r.Neighborhoods = []string{"Zilker", "Hyde Park"}
	r.SetSection(hoodRef("Mueller", model.SectionIntroProjects), model.Section{Content: "x"})
	r.SetSection(hoodRef("Allandale", model.SectionIntroProjects), model.Section{Content: "x"})
	r.SetSection(hoodRef("Zilker", model.SectionIntroProjects), model.Section{Content: "x"})

	assert.Equal(t, []string{"Zilker", "Hyde Park", "Allandale", "Mueller"}, Neighborhoods(r))
}

func TestMetaDescription_Truncates(t *testing.T) {
	long := strings.Repeat("dumpster ", 40)
	got := metaDescription(long)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxMetaDescription)
	assert.False(t, strings.HasSuffix(got, " "))

	loc := austin()
	loc.Name = strings.Repeat("Verylongcityname ", 8)
	pages := NewAssembler(Options{}).Assemble(loc, model.Results{})
	assert.LessOrEqual(t, utf8.RuneCountInString(pages[0].MetaDescription), MaxMetaDescription)
}
