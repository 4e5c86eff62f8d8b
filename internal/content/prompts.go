package content

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Phone is the sales line quoted in prompts and page bodies.
const Phone = "(866) 858-3867"

// Template names that are not section keys.
const (
	promptFAQs     = "faqs"
	promptFAQBatch = "faq_batch"
	promptCTA      = "cta"
)

var promptFuncs = template.FuncMap{
	"join":      strings.Join,
	"take":      take,
	"first":     first,
	"inc":       func(i int) int { return i + 1 },
	"thousands": thousands,
}

var prompts = template.Must(template.New("prompts").Funcs(promptFuncs).ParseFS(promptFS, "prompts/*.tmpl"))

// PromptData is the value every prompt template is rendered with.
type PromptData struct {
	City         string
	StateCode    string
	State        string
	County       string
	Population   int
	Neighborhood string
	// Place is "Neighborhood, City" on neighborhood pages and the city otherwise.
	Place        string
	Phone        string
	TargetWords  int
	Local        LocalData
	Questions    []Question
	IsFirstBatch bool
}

func newPromptData(loc *model.Locality, local LocalData, neighborhood string) PromptData {
	d := PromptData{
		City:         loc.Name,
		StateCode:    loc.RegionCode,
		State:        loc.Region,
		Neighborhood: neighborhood,
		Place:        loc.Name,
		Phone:        Phone,
		Local:        local,
	}
	if loc.County != nil {
		d.County = *loc.County
	}
	if loc.Population != nil {
		d.Population = *loc.Population
	}
	if neighborhood != "" {
		d.Place = neighborhood + ", " + loc.Name
	}
	return d
}

func renderPrompt(name string, data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func take(n int, in []string) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}

func first(in []string, fallback string) string {
	if len(in) == 0 || strings.TrimSpace(in[0]) == "" {
		return fallback
	}
	return in[0]
}

// thousands formats 1200 as "1,200".
func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
