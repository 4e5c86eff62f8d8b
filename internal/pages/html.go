package pages

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"regexp"
	"strings"

	"github.com/UltimateServices/Dumpsters-CRM/internal/content"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

var pageTemplate = template.Must(template.New("pages").ParseFS(templateFS, "templates/*.gohtml"))

// inlineCTAEvery is how many FAQ items separate two inline CTAs.
const inlineCTAEvery = 4

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	authorityLink  = regexp.MustCompile(`\[Link:\s*([^\]\s]+)\s*\]`)
)

type pageView struct {
	H1               string
	Intro            string
	Main             bool
	City             string
	Place            string
	Phone            string
	PermitCost       int
	PermitDepartment string
	Sizes            []DumpsterSize
	Lead             []sectionView
	FAQs             []faqView
	Tail             []sectionView
	CTA              template.HTML
}

type sectionView struct {
	ID      string
	Heading string
	Body    template.HTML
}

type faqView struct {
	Index      int
	Question   string
	Answer     template.HTML
	RealResult string
	Takeaway   string
	InlineCTA  *inlineCTA
}

type inlineCTA struct {
	Title  string
	Text   string
	Button string
}

func inlineCTAs(city string) []inlineCTA {
	return []inlineCTA{
		{
			Title:  "Ready to Order Your Dumpster?",
			Text:   fmt.Sprintf("Call us at %s for same-day delivery in %s.", content.Phone, city),
			Button: "Get Free Quote",
		},
		{
			Title:  "Have Questions About Sizing?",
			Text:   "Our experts can help you choose the perfect dumpster for your project.",
			Button: "Call " + content.Phone,
		},
		{
			Title:  "Need Fast Delivery?",
			Text:   fmt.Sprintf("Same-day dumpster delivery available in %s - call before noon.", city),
			Button: "Check Availability",
		},
	}
}

// faqViews numbers the FAQs from 1 and places an inline CTA after every fourth
// item, never after the last one.
func faqViews(faqs []model.FAQ, city string) []faqView {
	ctas := inlineCTAs(city)
	out := make([]faqView, 0, len(faqs))
	for i, f := range faqs {
		v := faqView{
			Index:      i + 1,
			Question:   f.Question,
			Answer:     FormatProse(f.Answer),
			RealResult: strings.TrimSpace(f.RealResult),
			Takeaway:   strings.TrimSpace(f.Takeaway),
		}
		if (i+1)%inlineCTAEvery == 0 && i < len(faqs)-1 {
			cta := ctas[(i/inlineCTAEvery)%len(ctas)]
			v.InlineCTA = &cta
		}
		out = append(out, v)
	}
	return out
}

// FormatProse escapes model text and renders it as paragraphs. Blank lines
// separate paragraphs and [Link: url] markers become authority links showing
// the target host. Markers without a usable http(s) URL are dropped.
func FormatProse(text string) template.HTML {
	var b strings.Builder
	for _, para := range paragraphBreak.Split(strings.TrimSpace(text), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("<p>")
		b.WriteString(linkify(para))
		b.WriteString("</p>")
	}
	//nolint:gosec // every model-supplied fragment is escaped by linkify
	return template.HTML(b.String())
}

func linkify(para string) string {
	var b strings.Builder
	last := 0
	for _, m := range authorityLink.FindAllStringSubmatchIndex(para, -1) {
		b.WriteString(template.HTMLEscapeString(para[last:m[0]]))
		if anchor, ok := authorityAnchor(para[m[2]:m[3]]); ok {
			b.WriteString(anchor)
		}
		last = m[1]
	}
	b.WriteString(template.HTMLEscapeString(para[last:]))
	return strings.TrimSpace(b.String())
}

func authorityAnchor(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return fmt.Sprintf(`<a href="%s" target="_blank" rel="noopener noreferrer" class="authority-link">%s</a>`,
		template.HTMLEscapeString(u.String()), template.HTMLEscapeString(u.Host)), true
}

func renderPage(v pageView) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "page", v); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}
