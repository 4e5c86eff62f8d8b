package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/statsd"
)

func newGenerator(t *testing.T, completer *scriptedCompleter, mode string) (*SectionGenerator, *statsd.Recorder) {
	t.Helper()
	rec := &statsd.Recorder{}
	g, err := NewSectionGenerator(GeneratorOptions{
		Completer:   completer,
		Temperature: 0.7,
		FAQMode:     mode,
		Batcher:     NewAnswerBatcher(BatcherOptions{Completer: completer}),
		Metrics:     rec,
	})
	require.NoError(t, err)
	return g, rec
}

func mainRequest(key model.SectionKey) SectionRequest {
	loc := testLocality()
	return SectionRequest{Locality: loc, Local: BuildLocalData(loc), PageType: model.PageTypeMain, SectionKey: key}
}

func hoodRequest(key model.SectionKey) SectionRequest {
	req := mainRequest(key)
	req.PageType = model.PageTypeNeighborhood
	req.Neighborhood = "Hyde Park"
	return req
}

func TestNewSectionGenerator_Validation(t *testing.T) {
	_, err := NewSectionGenerator(GeneratorOptions{})
	require.Error(t, err)

	_, err = NewSectionGenerator(GeneratorOptions{Completer: &scriptedCompleter{}, FAQMode: "xml"})
	require.Error(t, err)
}

func TestGenerate_ProseSection(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		"Here is the section:\n```json\n{\"content\": \"Austin dumpster rental made simple.\", \"wordCount\": 1200}\n```",
	}}
	g, rec := newGenerator(t, completer, FAQModeBatch)

	s, err := g.Generate(context.Background(), mainRequest(model.SectionHeroServices))
	require.NoError(t, err)
	assert.Equal(t, "Austin dumpster rental made simple.", s.Content)
	// The reported 1200 is far from the real length, so it is recomputed.
	assert.Equal(t, 5, s.WordCount)

	calls := completer.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 3000, calls[0].MaxTokens)
	assert.InDelta(t, 0.7, calls[0].Temperature, 0.0001)
	assert.Equal(t, "section.main.hero_services", calls[0].Operation)
	assert.Contains(t, calls[0].Prompt, "Austin")

	points := rec.Named("section.generated")
	require.Len(t, points, 1)
	assert.Equal(t, "success", points[0].Tags["result"])
}

func TestGenerate_AreasKeepsNeighborhoods(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		`{"content": "We serve every corner of Austin.", "neighborhoods": ["Hyde Park", " ", "Zilker"], "wordCount": "6"}`,
	}}
	g, _ := newGenerator(t, completer, FAQModeBatch)

	s, err := g.Generate(context.Background(), mainRequest(model.SectionAreasWhyChoose))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hyde Park", "Zilker"}, s.Neighborhoods)
	assert.Equal(t, 6, s.WordCount)
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		err    error
		reason Reason
	}{
		{name: "no json", reply: "I am unable to write that.", reason: ReasonNoJSON},
		{name: "unbalanced", reply: `{"content": "cut off`, reason: ReasonMalformed},
		{name: "invalid json", reply: `{"content": nope}`, reason: ReasonMalformed},
		{name: "schema violation", reply: `{"text": "wrong key"}`, reason: ReasonSchema},
		{name: "empty content", reply: `{"content": ""}`, reason: ReasonSchema},
		{name: "whitespace content", reply: `{"content": "   "}`, reason: ReasonEmpty},
		{name: "transport", err: errors.New("dial tcp: timeout"), reason: ReasonCompletion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &scriptedCompleter{replies: []string{tt.reply}, errs: []error{tt.err}}
			g, rec := newGenerator(t, completer, FAQModeBatch)

			_, err := g.Generate(context.Background(), mainRequest(model.SectionPricingProcess))
			require.Error(t, err)

			var ge *GenerationError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tt.reason, ge.Reason)
			assert.Equal(t, "main.pricing_process", ge.Section)
			assert.True(t, apperrors.IsGeneration(err))
			assert.Equal(t, apperrors.ErrCodeGeneration, apperrors.GetCode(err))

			points := rec.Named("section.generated")
			require.Len(t, points, 1)
			assert.Equal(t, "error", points[0].Tags["result"])
		})
	}
}

func TestGenerate_UnknownSection(t *testing.T) {
	g, _ := newGenerator(t, &scriptedCompleter{}, FAQModeBatch)

	// Neighborhood sections are not valid on the main page.
	_, err := g.Generate(context.Background(), mainRequest(model.SectionIntroProjects))
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ReasonUnknown, ge.Reason)
}

func TestGenerate_NeighborhoodRequiresName(t *testing.T) {
	g, _ := newGenerator(t, &scriptedCompleter{}, FAQModeBatch)
	req := hoodRequest(model.SectionIntroProjects)
	req.Neighborhood = " "

	_, err := g.Generate(context.Background(), req)
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ReasonPrompt, ge.Reason)
}

func TestGenerate_BatchedFAQs(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		"ANSWER 1:\nOne two three.\nREAL RESULT 1:\nStory.\nTAKEAWAY 1:\nTip.\nANSWER 2:\nFour five.",
		"ANSWER 1:\nSix.",
	}}
	g, _ := newGenerator(t, completer, FAQModeBatch)

	s, err := g.Generate(context.Background(), mainRequest(model.SectionFAQsPart1))
	require.NoError(t, err)
	require.Len(t, s.FAQs, 10)
	assert.Equal(t, "How much does dumpster rental cost in Austin?", s.FAQs[0].Question)
	assert.Equal(t, "Story.", s.FAQs[0].RealResult)
	assert.Equal(t, "Tip.", s.FAQs[0].Takeaway)
	assert.Equal(t, "Six.", s.FAQs[5].Answer)
	assert.Empty(t, s.FAQs[9].Answer)
	assert.Equal(t, 6, s.WordCount)
	assert.Len(t, completer.calls(), 2)
}

func TestGenerate_BatchedFAQsAllEmpty(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"nothing useful", "still nothing"}}
	g, _ := newGenerator(t, completer, FAQModeBatch)

	_, err := g.Generate(context.Background(), mainRequest(model.SectionFAQsPart2))
	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, ReasonEmpty, ge.Reason)
}

func TestGenerate_NeighborhoodFAQsWithCTA(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		"ANSWER 1:\nSame day in Hyde Park.",
		"ANSWER 1:\nAlso yes.",
		`{"cta": "Call (866) 858-3867 today."}`,
	}}
	g, _ := newGenerator(t, completer, FAQModeBatch)

	s, err := g.Generate(context.Background(), hoodRequest(model.SectionFAQsCTA))
	require.NoError(t, err)
	assert.Equal(t, "Call (866) 858-3867 today.", s.CTA)
	assert.Equal(t, "Same day in Hyde Park.", s.FAQs[0].Answer)
	assert.Contains(t, s.FAQs[0].Question, "Hyde Park")

	calls := completer.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "section.neighborhood_Hyde Park.faqs_cta.cta", calls[2].Operation)
	assert.Equal(t, ctaMaxTokens, calls[2].MaxTokens)
}

func TestGenerate_JSONModeFAQs(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{
		`{"faqs": [{"question": "How much?", "answer": "From $295."}], "wordCount": 2}`,
	}}
	g, _ := newGenerator(t, completer, FAQModeJSON)

	s, err := g.Generate(context.Background(), mainRequest(model.SectionFAQsPart1))
	require.NoError(t, err)
	require.Len(t, s.FAQs, 1)
	assert.Equal(t, "From $295.", s.FAQs[0].Answer)
	assert.Equal(t, 2, s.WordCount)

	calls := completer.calls()
	require.Len(t, calls, 1)
	assert.True(t, strings.Contains(calls[0].Prompt, "1. How much does dumpster rental cost in Austin?"))
}
