// Package plan computes the ordered section plan of a research job and the
// progress value reported after each step.
package plan

import (
	"fmt"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

// MainShare is the progress consumed by the main page sections.
const MainShare = 50

// SectionSpec describes one section of a page type.
type SectionSpec struct {
	Key   model.SectionKey
	Label string
	// Weight is the cumulative main page progress after the section (main page only).
	Weight int
}

var mainSections = []SectionSpec{
	{Key: model.SectionHeroServices, Label: "Writing hero and services", Weight: 5},
	{Key: model.SectionAreasWhyChoose, Label: "Writing service areas and why choose us", Weight: 15},
	{Key: model.SectionPricingProcess, Label: "Writing pricing and process", Weight: 25},
	{Key: model.SectionFAQsPart1, Label: "Answering FAQs (part 1)", Weight: 35},
	{Key: model.SectionFAQsPart2, Label: "Answering FAQs (part 2)", Weight: 45},
	{Key: model.SectionTestimonialsCTA, Label: "Writing testimonials and call to action", Weight: MainShare},
}

var neighborhoodSections = []SectionSpec{
	{Key: model.SectionIntroProjects, Label: "Writing intro and projects"},
	{Key: model.SectionServiceDetails, Label: "Writing service details"},
	{Key: model.SectionFAQsCTA, Label: "Answering FAQs"},
}

// Main returns the main page sections in generation order.
func Main() []SectionSpec {
	return append([]SectionSpec(nil), mainSections...)
}

// Neighborhood returns the neighborhood page sections in generation order.
func Neighborhood() []SectionSpec {
	return append([]SectionSpec(nil), neighborhoodSections...)
}

// Step is one unit of work in a job plan.
type Step struct {
	Ref          model.SectionRef
	PageType     model.PageType
	Neighborhood string
	// Progress is the job progress to report once the step is done.
	Progress int
	Label    string
	// Required steps fail the job when their section cannot be generated.
	Required bool
}

// Plan is the ordered list of steps for one job.
type Plan []Step

// MainSteps returns only the main page steps, which are known before any section is generated.
func MainSteps() Plan {
	steps := make(Plan, 0, len(mainSections))
	for _, s := range mainSections {
		steps = append(steps, Step{
			Ref:      model.SectionRef{PageKey: model.MainPageKey, SectionKey: s.Key},
			PageType: model.PageTypeMain,
			Progress: s.Weight,
			Label:    s.Label + " (main page)",
			Required: true,
		})
	}
	return steps
}

// Build returns the full plan for a main page and the given neighborhoods.
// The remaining share after the main page is split evenly across every
// neighborhood section in integer arithmetic, so only the last step reports 100.
func Build(neighborhoods []string) Plan {
	steps := MainSteps()

	total := len(neighborhoods) * len(neighborhoodSections)
	remaining := model.MaxProgress - MainShare
	done := 0
	for _, hood := range neighborhoods {
		pageKey := model.NeighborhoodPageKey(hood)
		for _, s := range neighborhoodSections {
			done++
			steps = append(steps, Step{
				Ref:          model.SectionRef{PageKey: pageKey, SectionKey: s.Key},
				PageType:     model.PageTypeNeighborhood,
				Neighborhood: hood,
				Progress:     MainShare + remaining*done/total,
				Label:        fmt.Sprintf("%s (%s)", s.Label, hood),
			})
		}
	}
	return steps
}

// Final returns the progress reported by the last step, or 0 for an empty plan.
func (p Plan) Final() int {
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].Progress
}

// Pages returns the distinct page keys in plan order.
func (p Plan) Pages() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, s := range p {
		if !seen[s.Ref.PageKey] {
			seen[s.Ref.PageKey] = true
			keys = append(keys, s.Ref.PageKey)
		}
	}
	return keys
}
