// Package content turns a locality into generated page sections: local context,
// the FAQ question bank, prompt rendering, LLM output extraction and validation.
package content

import (
	"fmt"
	"strings"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

// DefaultPermitCost is the street permit estimate for states without a known figure.
const DefaultPermitCost = 50

var permitCostByState = map[string]int{
	"CA": 75,
	"NY": 65,
	"TX": 45,
	"FL": 50,
	"WA": 60,
	"CO": 55,
}

var stateLandmarks = map[string][]string{
	"CA": {"beaches", "coastal areas"},
	"TX": {"highways", "commercial districts"},
	"FL": {"waterfront", "marina districts"},
	"NY": {"historic districts", "waterfronts"},
}

var stateChallenges = map[string][]string{
	"CA": {"strict environmental regulations", "earthquake zones"},
	"TX": {"heat considerations", "wide lots"},
	"FL": {"hurricane season", "flood zones"},
	"NY": {"winter weather", "dense neighborhoods"},
}

var townRules = []string{
	"Permit required for public street placement",
	"Must not block sidewalks or hydrants",
	"Reflective tape required for overnight placement",
	"Maximum 14-day rental period in residential zones",
}

// LocalData is the deterministic local context injected into prompts and page bodies.
type LocalData struct {
	MainStreets          []string `json:"main_streets"`
	Landmarks            []string `json:"landmarks"`
	Challenges           []string `json:"challenges"`
	TownRules            []string `json:"town_rules"`
	SeasonalFactors      []string `json:"seasonal_factors,omitempty"`
	PermitDepartment     string   `json:"permit_department"`
	PermitCost           int      `json:"permit_cost"`
	PermitProcessingDays int      `json:"permit_processing_days"`
	PermitURL            string   `json:"permit_url"`
}

// BuildLocalData derives local context from the locality record. Stored landmarks
// and permit cost take precedence over the generated defaults. The same locality
// always yields the same value.
func BuildLocalData(loc *model.Locality) LocalData {
	city := strings.TrimSpace(loc.Name)
	state := strings.ToUpper(strings.TrimSpace(loc.RegionCode))

	landmarks := nonEmpty(loc.Landmarks)
	if len(landmarks) == 0 {
		landmarks = []string{
			city + " City Hall",
			"Downtown " + city,
			city + " Park",
			"Municipal buildings",
		}
		landmarks = append(landmarks, stateLandmarks[state]...)
	}

	cost := PermitCostFor(state)
	if loc.PermitCost != nil && *loc.PermitCost > 0 {
		cost = *loc.PermitCost
	}

	challenges := []string{"narrow streets", "parking restrictions", "HOA restrictions"}
	challenges = append(challenges, stateChallenges[state]...)

	return LocalData{
		MainStreets: []string{
			city + " Avenue",
			"Main Street",
			state + " Highway",
			"Downtown Boulevard",
		},
		Landmarks:            landmarks,
		Challenges:           challenges,
		TownRules:            append([]string(nil), townRules...),
		SeasonalFactors:      seasonalFactors(state),
		PermitDepartment:     city + " Code Enforcement",
		PermitCost:           cost,
		PermitProcessingDays: 3,
		PermitURL: fmt.Sprintf("https://%s%s.gov/permits",
			strings.ToLower(strings.Join(strings.Fields(city), "")), strings.ToLower(state)),
	}
}

// PermitCostFor returns the street permit estimate in dollars for a state code.
func PermitCostFor(stateCode string) int {
	if c, ok := permitCostByState[strings.ToUpper(stateCode)]; ok {
		return c
	}
	return DefaultPermitCost
}

func seasonalFactors(state string) []string {
	var out []string
	switch state {
	case "CA", "TX", "FL", "AZ":
		out = append(out, "extreme summer heat")
	case "NY", "CO", "WA":
		out = append(out, "winter snow", "ice and freezing temperatures")
	}
	switch state {
	case "FL", "TX", "LA":
		out = append(out, "hurricane season", "storm debris")
	}
	return out
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
