package pages

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const linksBlockClass = "internal-links"

// Link is one entry of the internal links block.
type Link struct {
	Title string
	URL   string
}

// LinksBlock renders the navigation block that ties a city page to its
// neighborhood pages.
func LinksBlock(city string, links []Link) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<nav class="%s">`+"\n", linksBlockClass)
	fmt.Fprintf(&b, "  <h2>Dumpster Rental Near %s</h2>\n  <ul>\n", template.HTMLEscapeString(city))
	for _, l := range links {
		fmt.Fprintf(&b, "    <li><a href=\"%s\">%s</a></li>\n",
			template.HTMLEscapeString(l.URL), template.HTMLEscapeString(l.Title))
	}
	b.WriteString("  </ul>\n</nav>")
	return b.String()
}

// InjectLinks places block inside the page article, just before the final CTA,
// replacing any links block from an earlier publish.
func InjectLinks(body, block string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse page html: %w", err)
	}
	doc.Find("nav." + linksBlockClass).Remove()

	article := doc.Find("article").First()
	if article.Length() == 0 {
		return "", errors.New("page html has no article element")
	}
	if final := article.Find("section.final-cta").First(); final.Length() > 0 {
		final.BeforeHtml(block)
	} else {
		article.AppendHtml(block)
	}

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("render page html: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ValidateHTML checks that body is a page article with a non-empty heading.
func ValidateHTML(body string) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("html is empty")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	if doc.Find("article").Length() == 0 {
		return errors.New("html has no article element")
	}
	if strings.TrimSpace(doc.Find("h1").First().Text()) == "" {
		return errors.New("html has no h1 heading")
	}
	return nil
}
