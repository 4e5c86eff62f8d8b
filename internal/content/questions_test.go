package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

func TestDefaultQuestionBank(t *testing.T) {
	bank, err := DefaultQuestionBank()
	require.NoError(t, err)

	vars := QuestionVars{City: "Austin", StateCode: "TX", Neighborhood: "Hyde Park"}
	for _, key := range []model.SectionKey{model.SectionFAQsPart1, model.SectionFAQsPart2, model.SectionFAQsCTA} {
		qs, err := bank.Questions(key, vars)
		require.NoError(t, err, key)
		spec, ok := Spec(pageTypeOf(key), key)
		require.True(t, ok)
		assert.Len(t, qs, spec.FAQCount, key)
		for _, q := range qs {
			assert.NotContains(t, q.Text, "{{", key)
			assert.NotEmpty(t, q.Category, key)
		}
	}

	qs, err := bank.Questions(model.SectionFAQsCTA, vars)
	require.NoError(t, err)
	assert.Equal(t, "How quickly can you deliver to Hyde Park?", qs[0].Text)
}

func pageTypeOf(key model.SectionKey) model.PageType {
	if key == model.SectionFAQsCTA {
		return model.PageTypeNeighborhood
	}
	return model.PageTypeMain
}

func TestQuestionBank_UnknownSection(t *testing.T) {
	bank, err := DefaultQuestionBank()
	require.NoError(t, err)

	_, err = bank.Questions(model.SectionHeroServices, QuestionVars{City: "Austin"})
	require.Error(t, err)
}

func TestParseQuestionBank_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "not yaml", yaml: "sections: [oops"},
		{name: "no sections", yaml: "sections: {}"},
		{name: "non faq section", yaml: "sections:\n  hero_services:\n    - {category: x, question: \"Why?\"}\n"},
		{name: "empty question", yaml: "sections:\n  faqs_part1:\n    - {category: x, question: \"  \"}\n"},
		{name: "bad template", yaml: "sections:\n  faqs_part1:\n    - {category: x, question: \"{{.City\"}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuestionBank([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestQuestionBank_MissingVariable(t *testing.T) {
	bank, err := ParseQuestionBank([]byte("sections:\n  faqs_part1:\n    - {category: x, question: \"Is {{.Town}} covered?\"}\n"))
	require.NoError(t, err)

	_, err = bank.Questions(model.SectionFAQsPart1, QuestionVars{City: "Austin"})
	require.Error(t, err)
}
