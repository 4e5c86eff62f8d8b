// Package pages assembles generated sections into publishable pages: titles,
// slugs, HTML bodies, internal links and schema.org structured data.
package pages

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/UltimateServices/Dumpsters-CRM/internal/content"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

// MaxMetaDescription is the longest meta description search engines display.
const MaxMetaDescription = 160

// Content block names.
const (
	BlockHeroServices    = "heroServices"
	BlockAreasWhyChoose  = "areasWhyChoose"
	BlockPricingProcess  = "pricingProcess"
	BlockFAQsPart1       = "faqsPart1"
	BlockFAQsPart2       = "faqsPart2"
	BlockTestimonialsCTA = "testimonialsCta"
	BlockIntroProjects   = "introProjects"
	BlockServiceDetails  = "serviceDetails"
	BlockFAQsCTA         = "faqsCta"
	BlockCTA             = "cta"
)

type blockSpec struct {
	name    string
	section model.SectionKey
	id      string
	heading string // fmt pattern taking the page's place name
}

var mainBlocks = []blockSpec{
	{name: BlockHeroServices, section: model.SectionHeroServices, id: "hero-services", heading: "Dumpster Rental Services in %s"},
	{name: BlockAreasWhyChoose, section: model.SectionAreasWhyChoose, id: "areas-why-choose", heading: "Areas We Serve in %s"},
	{name: BlockPricingProcess, section: model.SectionPricingProcess, id: "pricing-process", heading: "How Dumpster Rental Works in %s"},
	{name: BlockFAQsPart1, section: model.SectionFAQsPart1},
	{name: BlockFAQsPart2, section: model.SectionFAQsPart2},
	{name: BlockTestimonialsCTA, section: model.SectionTestimonialsCTA, id: "testimonials", heading: "What %s Customers Say"},
}

var neighborhoodBlocks = []blockSpec{
	{name: BlockIntroProjects, section: model.SectionIntroProjects, id: "intro-projects", heading: "Dumpster Rental in %s"},
	{name: BlockServiceDetails, section: model.SectionServiceDetails, id: "service-details", heading: "Service Details for %s"},
	{name: BlockFAQsCTA, section: model.SectionFAQsCTA},
}

// Options configures an Assembler.
type Options struct {
	Logger *slog.Logger
}

// Assembler builds pages from a job's stored sections.
type Assembler struct {
	logger *slog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(opts Options) *Assembler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger.With("component", "page_assembler")}
}

// Assemble returns the main page followed by one page per neighborhood. It
// never fails: a missing section yields an empty block with a zero word count.
// Identical input produces identical pages.
func (a *Assembler) Assemble(loc *model.Locality, results model.Results) []model.Page {
	local := content.BuildLocalData(loc)
	pages := []model.Page{a.mainPage(loc, local, &results)}
	for _, hood := range Neighborhoods(results) {
		pages = append(pages, a.neighborhoodPage(loc, local, &results, hood))
	}
	return pages
}

// Neighborhoods returns the neighborhoods of a run: the planned list first, then
// any other neighborhood found in the stored sections, sorted by name.
func Neighborhoods(results model.Results) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range results.Neighborhoods {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}

	var extra []string
	for key := range results.Sections {
		if n, ok := model.NeighborhoodFromPageKey(key); ok && !seen[n] {
			seen[n] = true
			extra = append(extra, n)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (a *Assembler) mainPage(loc *model.Locality, local content.LocalData, results *model.Results) model.Page {
	title := fmt.Sprintf("Dumpster Rental in %s, %s", loc.Name, loc.RegionCode)
	meta := fmt.Sprintf("%s dumpster rental $295+. Same-day delivery. 4.9★ (1200+ reviews). Call %s for free quote.",
		loc.Name, content.Phone)
	page := model.Page{
		Key:             model.MainPageKey,
		Type:            model.PageTypeMain,
		Title:           title,
		Slug:            MainSlug(loc),
		MetaDescription: metaDescription(meta),
		H1:              title,
	}

	intro := fmt.Sprintf("Welcome to your complete guide for dumpster rentals in %s, %s. "+
		"Whether you're a homeowner tackling a renovation, a contractor managing a construction site, "+
		"or a business owner handling commercial waste, we've answered every question you might have "+
		"about renting a dumpster in %s.", loc.Name, loc.RegionCode, loc.Name)
	view := pageView{
		H1:               title,
		Intro:            intro,
		Main:             true,
		City:             loc.Name,
		Place:            loc.Name,
		Phone:            content.Phone,
		PermitCost:       local.PermitCost,
		PermitDepartment: local.PermitDepartment,
		Sizes:            Sizes,
	}

	ref := func(key model.SectionKey) model.SectionRef {
		return model.SectionRef{PageKey: model.MainPageKey, SectionKey: key}
	}
	for _, spec := range mainBlocks {
		s, _ := results.Section(ref(spec.section))
		page.Blocks = append(page.Blocks, sectionBlock(spec.name, s))
		page.WordCount += s.WordCount
		if spec.section.IsFAQ() {
			page.FAQs = append(page.FAQs, answered(s.FAQs)...)
			continue
		}
		if sv, ok := sectionViewFor(spec, s, loc.Name); ok {
			if spec.section == model.SectionTestimonialsCTA {
				view.Tail = append(view.Tail, sv)
			} else {
				view.Lead = append(view.Lead, sv)
			}
		}
	}
	view.FAQs = faqViews(page.FAQs, loc.Name)

	page.HTML = a.render(page.Key, view)
	page.StructuredData = structuredData(loc, page.FAQs)
	return page
}

func (a *Assembler) neighborhoodPage(loc *model.Locality, local content.LocalData, results *model.Results, hood string) model.Page {
	key := model.NeighborhoodPageKey(hood)
	title := fmt.Sprintf("Dumpster Rental in %s, %s", hood, loc.Name)
	meta := fmt.Sprintf("Dumpster rental in %s, %s. Same-day delivery. 4.9★. Call %s.", hood, loc.Name, content.Phone)
	page := model.Page{
		Key:             key,
		Type:            model.PageTypeNeighborhood,
		Neighborhood:    hood,
		Title:           title,
		Slug:            NeighborhoodSlug(loc, hood),
		MetaDescription: metaDescription(meta),
		H1:              title,
	}

	intro := fmt.Sprintf("Professional dumpster rental service in %s, %s. We understand the unique needs "+
		"of this neighborhood and provide reliable, affordable solutions.", hood, loc.Name)
	view := pageView{
		H1:               title,
		Intro:            intro,
		City:             loc.Name,
		Place:            hood,
		Phone:            content.Phone,
		PermitCost:       local.PermitCost,
		PermitDepartment: local.PermitDepartment,
	}

	var cta string
	for _, spec := range neighborhoodBlocks {
		s, _ := results.Section(model.SectionRef{PageKey: key, SectionKey: spec.section})
		page.WordCount += s.WordCount
		if spec.section == model.SectionFAQsCTA {
			cta = strings.TrimSpace(s.CTA)
			ctaWords := content.CountWords(cta)
			block := sectionBlock(spec.name, s)
			block.WordCount = max(s.WordCount-ctaWords, 0)
			page.Blocks = append(page.Blocks, block,
				model.ContentBlock{Name: BlockCTA, Content: cta, WordCount: min(ctaWords, s.WordCount)})
			page.FAQs = answered(s.FAQs)
			continue
		}
		page.Blocks = append(page.Blocks, sectionBlock(spec.name, s))
		if sv, ok := sectionViewFor(spec, s, hood); ok {
			view.Lead = append(view.Lead, sv)
		}
	}
	view.FAQs = faqViews(page.FAQs, loc.Name)
	if cta != "" {
		view.CTA = FormatProse(cta)
	}

	page.HTML = a.render(page.Key, view)
	page.StructuredData = structuredData(loc, page.FAQs)
	return page
}

func (a *Assembler) render(key string, view pageView) string {
	html, err := renderPage(view)
	if err != nil {
		// Publishing rejects pages without a body, so the page is still returned.
		a.logger.Error("page render failed", "page", key, "error", err)
		return ""
	}
	return html
}

func sectionBlock(name string, s model.Section) model.ContentBlock {
	text := strings.TrimSpace(s.Content)
	if len(s.FAQs) > 0 {
		parts := make([]string, 0, len(s.FAQs)+1)
		if text != "" {
			parts = append(parts, text)
		}
		for _, f := range answered(s.FAQs) {
			parts = append(parts, f.Question+"\n\n"+strings.TrimSpace(f.Answer))
		}
		text = strings.Join(parts, "\n\n")
	}
	return model.ContentBlock{Name: name, Content: text, WordCount: s.WordCount}
}

func sectionViewFor(spec blockSpec, s model.Section, place string) (sectionView, bool) {
	if strings.TrimSpace(s.Content) == "" {
		return sectionView{}, false
	}
	return sectionView{
		ID:      spec.id,
		Heading: fmt.Sprintf(spec.heading, place),
		Body:    FormatProse(s.Content),
	}, true
}

// answered drops FAQs whose answer came back empty.
func answered(faqs []model.FAQ) []model.FAQ {
	var out []model.FAQ
	for _, f := range faqs {
		if strings.TrimSpace(f.Answer) != "" {
			out = append(out, f)
		}
	}
	return out
}

func structuredData(loc *model.Locality, faqs []model.FAQ) []json.RawMessage {
	var out []json.RawMessage
	if len(faqs) > 0 {
		out = append(out, FAQPageSchema(faqs))
	}
	return append(out, ServiceSchema(loc), LocalBusinessSchema(loc), OrganizationSchema())
}

// metaDescription cuts s to MaxMetaDescription runes at a word boundary.
func metaDescription(s string) string {
	if utf8.RuneCountInString(s) <= MaxMetaDescription {
		return s
	}
	runes := []rune(s)[:MaxMetaDescription]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " .,")
}
