package content

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

//go:embed questions.yaml
var defaultQuestionBank []byte

// Question is one FAQ question rendered for a locality.
type Question struct {
	Text     string `json:"question"`
	Category string `json:"category"`
}

// QuestionVars are the values substituted into question templates.
type QuestionVars struct {
	City         string
	StateCode    string
	Neighborhood string
}

type questionFile struct {
	Sections map[string][]struct {
		Category string `yaml:"category"`
		Question string `yaml:"question"`
	} `yaml:"sections"`
}

type questionTemplate struct {
	category string
	tmpl     *template.Template
}

// QuestionBank holds the FAQ question templates for each FAQ section.
type QuestionBank struct {
	sections map[model.SectionKey][]questionTemplate
}

// DefaultQuestionBank parses the embedded question bank.
func DefaultQuestionBank() (*QuestionBank, error) {
	return ParseQuestionBank(defaultQuestionBank)
}

// ParseQuestionBank parses a YAML question bank. Every section must be an FAQ
// section and every question a valid template.
func ParseQuestionBank(data []byte) (*QuestionBank, error) {
	var f questionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if len(f.Sections) == 0 {
		return nil, fmt.Errorf("parse question bank: no sections")
	}

	bank := &QuestionBank{sections: make(map[model.SectionKey][]questionTemplate, len(f.Sections))}
	for name, entries := range f.Sections {
		key := model.SectionKey(name)
		if !key.IsFAQ() {
			return nil, fmt.Errorf("parse question bank: %q is not an FAQ section", name)
		}
		for i, e := range entries {
			if strings.TrimSpace(e.Question) == "" {
				return nil, fmt.Errorf("parse question bank: %s[%d]: empty question", name, i)
			}
			t, err := template.New(fmt.Sprintf("%s_%d", name, i)).Option("missingkey=error").Parse(e.Question)
			if err != nil {
				return nil, fmt.Errorf("parse question bank: %s[%d]: %w", name, i, err)
			}
			bank.sections[key] = append(bank.sections[key], questionTemplate{category: e.Category, tmpl: t})
		}
	}
	return bank, nil
}

// Questions renders the questions for an FAQ section.
func (b *QuestionBank) Questions(key model.SectionKey, vars QuestionVars) ([]Question, error) {
	templates, ok := b.sections[key]
	if !ok {
		return nil, fmt.Errorf("no questions for section %s", key)
	}
	out := make([]Question, 0, len(templates))
	var buf bytes.Buffer
	for _, qt := range templates {
		buf.Reset()
		if err := qt.tmpl.Execute(&buf, vars); err != nil {
			return nil, fmt.Errorf("render question %s: %w", qt.tmpl.Name(), err)
		}
		out = append(out, Question{Text: strings.TrimSpace(buf.String()), Category: qt.category})
	}
	return out, nil
}
