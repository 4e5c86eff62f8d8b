package content

import "github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"

// SectionSpec describes how one section is requested from the model.
type SectionSpec struct {
	PageType    model.PageType
	Key         model.SectionKey
	TargetWords int
	MaxTokens   int
	// FAQCount is the number of questions for FAQ sections.
	FAQCount int
	schema   string
	prompt   string
}

var sectionSpecs = []SectionSpec{
	{PageType: model.PageTypeMain, Key: model.SectionHeroServices, TargetWords: 1200, MaxTokens: 3000, schema: schemaProse, prompt: "hero_services"},
	{PageType: model.PageTypeMain, Key: model.SectionAreasWhyChoose, TargetWords: 1000, MaxTokens: 2500, schema: schemaAreas, prompt: "areas_whychoose"},
	{PageType: model.PageTypeMain, Key: model.SectionPricingProcess, TargetWords: 700, MaxTokens: 2000, schema: schemaProse, prompt: "pricing_process"},
	{PageType: model.PageTypeMain, Key: model.SectionFAQsPart1, TargetWords: 1000, MaxTokens: 2500, FAQCount: 10, schema: schemaFAQs, prompt: promptFAQs},
	{PageType: model.PageTypeMain, Key: model.SectionFAQsPart2, TargetWords: 1000, MaxTokens: 2500, FAQCount: 10, schema: schemaFAQs, prompt: promptFAQs},
	{PageType: model.PageTypeMain, Key: model.SectionTestimonialsCTA, TargetWords: 500, MaxTokens: 1500, schema: schemaProse, prompt: "testimonials_cta"},
	{PageType: model.PageTypeNeighborhood, Key: model.SectionIntroProjects, TargetWords: 800, MaxTokens: 2000, schema: schemaProse, prompt: "intro_projects"},
	{PageType: model.PageTypeNeighborhood, Key: model.SectionServiceDetails, TargetWords: 600, MaxTokens: 1500, schema: schemaProse, prompt: "service_details"},
	{PageType: model.PageTypeNeighborhood, Key: model.SectionFAQsCTA, TargetWords: 800, MaxTokens: 2000, FAQCount: 10, schema: schemaFAQsCTA, prompt: "faqs_cta"},
}

// ctaMaxTokens bounds the standalone CTA call used by batch FAQ mode.
const ctaMaxTokens = 600

// Spec returns the generation spec for a section of a page type.
func Spec(pageType model.PageType, key model.SectionKey) (SectionSpec, bool) {
	for _, s := range sectionSpecs {
		if s.PageType == pageType && s.Key == key {
			return s, true
		}
	}
	return SectionSpec{}, false
}

// startsFAQs reports whether key is the first FAQ section of its page, which is
// the one whose first answer carries the real result and takeaway boxes.
func startsFAQs(key model.SectionKey) bool {
	return key == model.SectionFAQsPart1 || key == model.SectionFAQsCTA
}
