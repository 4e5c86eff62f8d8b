//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "strings"

// PageType distinguishes the city landing page from its neighborhood pages.
type PageType string

const (
	PageTypeMain         PageType = "main"
	PageTypeNeighborhood PageType = "neighborhood"
)

// SectionKey names one independently generated fragment of a page.
type SectionKey string

// Main page sections, in generation order.
const (
	SectionHeroServices    SectionKey = "hero_services"
	SectionAreasWhyChoose  SectionKey = "areas_whychoose"
	SectionPricingProcess  SectionKey = "pricing_process"
	SectionFAQsPart1       SectionKey = "faqs_part1"
	SectionFAQsPart2       SectionKey = "faqs_part2"
	SectionTestimonialsCTA SectionKey = "testimonials_cta"
)

// Neighborhood page sections, in generation order.
const (
	SectionIntroProjects  SectionKey = "intro_projects"
	SectionServiceDetails SectionKey = "service_details"
	SectionFAQsCTA        SectionKey = "faqs_cta"
)

// IsFAQ reports whether the section is answered through question batches.
func (k SectionKey) IsFAQ() bool {
	return k == SectionFAQsPart1 || k == SectionFAQsPart2 || k == SectionFAQsCTA
}

// MainPageKey is the results key of the city landing page.
const MainPageKey = "main"

const neighborhoodPagePrefix = "neighborhood_"

// NeighborhoodPageKey returns the results key for a neighborhood page.
func NeighborhoodPageKey(name string) string {
	return neighborhoodPagePrefix + name
}

// NeighborhoodFromPageKey extracts the neighborhood name from a page key.
func NeighborhoodFromPageKey(pageKey string) (string, bool) {
	name, ok := strings.CutPrefix(pageKey, neighborhoodPagePrefix)
	return name, ok && name != ""
}

// FAQ is one question with its generated answer.
// RealResult and Takeaway are only requested for the first answer of a page.
type FAQ struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	RealResult string `json:"real_result,omitempty"`
	Takeaway   string `json:"takeaway,omitempty"`
}

// Section is the stored output of one generation step.
type Section struct {
	Content       string   `json:"content"`
	WordCount     int      `json:"word_count"`
	FAQs          []FAQ    `json:"faqs,omitempty"`
	Neighborhoods []string `json:"neighborhoods,omitempty"`
	CTA           string   `json:"cta,omitempty"`
}

// Empty reports whether the section produced no usable text.
func (s *Section) Empty() bool {
	if s == nil {
		return true
	}
	if strings.TrimSpace(s.Content) != "" || strings.TrimSpace(s.CTA) != "" {
		return false
	}
	for _, f := range s.FAQs {
		if strings.TrimSpace(f.Answer) != "" {
			return false
		}
	}
	return true
}

// SectionRef addresses one section inside a job's results.
type SectionRef struct {
	PageKey    string
	SectionKey SectionKey
}

// String renders the dotted form used in logs and section_errors ("main.hero_services").
func (r SectionRef) String() string {
	return r.PageKey + "." + string(r.SectionKey)
}
