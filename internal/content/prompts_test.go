package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPrompt_EverySection(t *testing.T) {
	loc := testLocality()
	bank, err := DefaultQuestionBank()
	require.NoError(t, err)

	for _, spec := range sectionSpecs {
		t.Run(string(spec.PageType)+"."+string(spec.Key), func(t *testing.T) {
			hood := ""
			if spec.PageType == "neighborhood" {
				hood = "Hyde Park"
			}
			data := newPromptData(loc, BuildLocalData(loc), hood)
			data.TargetWords = spec.TargetWords
			if spec.FAQCount > 0 {
				data.Questions, err = bank.Questions(spec.Key, QuestionVars{City: loc.Name, StateCode: loc.RegionCode, Neighborhood: hood})
				require.NoError(t, err)
			}

			text, err := renderPrompt(spec.prompt, data)
			require.NoError(t, err)
			assert.Contains(t, text, "Austin")
			assert.Contains(t, text, "Return ONLY valid JSON")
			assert.NotContains(t, text, "<no value>")
			if hood != "" {
				assert.Contains(t, text, "Hyde Park")
			}
		})
	}
}

func TestRenderPrompt_Context(t *testing.T) {
	loc := testLocality()
	data := newPromptData(loc, BuildLocalData(loc), "")

	text, err := renderPrompt(promptFAQBatch, data)
	require.NoError(t, err)
	assert.Contains(t, text, "Population: 961,855")
	assert.Contains(t, text, "County: Travis")
	assert.Contains(t, text, "$45 from Austin Code Enforcement")
	assert.NotContains(t, text, "REAL RESULT 1:")

	data.IsFirstBatch = true
	text, err = renderPrompt(promptFAQBatch, data)
	require.NoError(t, err)
	assert.Contains(t, text, "REAL RESULT 1:")
}

func TestRenderPrompt_Unknown(t *testing.T) {
	_, err := renderPrompt("nope", PromptData{})
	require.Error(t, err)
}

func TestThousands(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 961855: "961,855", 1234567: "1,234,567", -4500: "-4,500"}
	for in, want := range tests {
		assert.Equal(t, want, thousands(in))
	}
}
