package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/metrics"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/statsd"
)

// FAQ generation modes.
const (
	FAQModeBatch = "batch"
	FAQModeJSON  = "json"
)

// SectionRequest identifies one section to generate.
type SectionRequest struct {
	Locality     *model.Locality
	Local        LocalData
	PageType     model.PageType
	SectionKey   model.SectionKey
	Neighborhood string
}

// Ref returns the results address of the requested section.
func (r SectionRequest) Ref() model.SectionRef {
	if r.PageType == model.PageTypeNeighborhood {
		return model.SectionRef{PageKey: model.NeighborhoodPageKey(r.Neighborhood), SectionKey: r.SectionKey}
	}
	return model.SectionRef{PageKey: model.MainPageKey, SectionKey: r.SectionKey}
}

// GeneratorOptions configures a SectionGenerator.
type GeneratorOptions struct {
	Completer   core.TextCompleter
	Temperature float64
	// Timeout bounds each section call. Zero uses the completer's default.
	Timeout time.Duration
	// FAQMode is FAQModeBatch (default) or FAQModeJSON.
	FAQMode   string
	Batcher   *AnswerBatcher
	Questions *QuestionBank
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// SectionGenerator produces one validated section per call. It never retries;
// retry policy belongs to the caller.
type SectionGenerator struct {
	completer   core.TextCompleter
	temperature float64
	timeout     time.Duration
	faqMode     string
	batcher     *AnswerBatcher
	questions   *QuestionBank
	logger      *slog.Logger
	metrics     statsd.Sink
}

// NewSectionGenerator validates opts and returns a generator.
func NewSectionGenerator(opts GeneratorOptions) (*SectionGenerator, error) {
	if opts.Completer == nil {
		return nil, errors.New("section generator requires a text completer")
	}
	mode := opts.FAQMode
	if mode == "" {
		mode = FAQModeBatch
	}
	if mode != FAQModeBatch && mode != FAQModeJSON {
		return nil, fmt.Errorf("unknown faq mode %q", mode)
	}

	questions := opts.Questions
	if questions == nil {
		var err error
		if questions, err = DefaultQuestionBank(); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batcher := opts.Batcher
	if batcher == nil && mode == FAQModeBatch {
		batcher = NewAnswerBatcher(BatcherOptions{
			Completer:   opts.Completer,
			Temperature: opts.Temperature,
			Interval:    defaultBatchInterval,
			Logger:      logger,
		})
	}
	if _, err := loadSchemas(); err != nil {
		return nil, err
	}

	return &SectionGenerator{
		completer:   opts.Completer,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		faqMode:     mode,
		batcher:     batcher,
		questions:   questions,
		logger:      logger.With("component", "section_generator"),
		metrics:     opts.Metrics,
	}, nil
}

// Generate produces the section described by req. All failures are *GenerationError.
func (g *SectionGenerator) Generate(ctx context.Context, req SectionRequest) (model.Section, error) {
	name := req.Ref().String()
	start := time.Now()

	section, err := g.generate(ctx, req, name)

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitSection(g.metrics, metrics.SectionMetric{
		PageKind: string(req.PageType),
		Section:  string(req.SectionKey),
		Result:   result,
		Words:    section.WordCount,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return model.Section{}, err
	}

	g.logger.InfoContext(ctx, "section generated",
		"locality_id", req.Locality.ID,
		"section", name,
		"word_count", section.WordCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return section, nil
}

func (g *SectionGenerator) generate(ctx context.Context, req SectionRequest, name string) (model.Section, error) {
	spec, ok := Spec(req.PageType, req.SectionKey)
	if !ok {
		return model.Section{}, genErr(name, ReasonUnknown, fmt.Errorf("no %s section %q", req.PageType, req.SectionKey))
	}
	if req.PageType == model.PageTypeNeighborhood && strings.TrimSpace(req.Neighborhood) == "" {
		return model.Section{}, genErr(name, ReasonPrompt, errors.New("neighborhood name is required"))
	}

	if spec.FAQCount > 0 && g.faqMode == FAQModeBatch {
		return g.generateBatchedFAQs(ctx, req, spec, name)
	}
	return g.generateJSON(ctx, req, spec, name)
}

func (g *SectionGenerator) promptData(req SectionRequest, spec SectionSpec) (PromptData, error) {
	data := newPromptData(req.Locality, req.Local, req.Neighborhood)
	data.TargetWords = spec.TargetWords
	if spec.FAQCount > 0 {
		qs, err := g.questions.Questions(spec.Key, QuestionVars{
			City:         req.Locality.Name,
			StateCode:    req.Locality.RegionCode,
			Neighborhood: req.Neighborhood,
		})
		if err != nil {
			return PromptData{}, err
		}
		data.Questions = qs
	}
	return data, nil
}

type sectionOutput struct {
	Content       string          `json:"content"`
	Neighborhoods []string        `json:"neighborhoods"`
	FAQs          []model.FAQ     `json:"faqs"`
	CTA           string          `json:"cta"`
	WordCount     json.RawMessage `json:"wordCount"`
}

func (g *SectionGenerator) generateJSON(ctx context.Context, req SectionRequest, spec SectionSpec, name string) (model.Section, error) {
	data, err := g.promptData(req, spec)
	if err != nil {
		return model.Section{}, genErr(name, ReasonPrompt, err)
	}
	var out sectionOutput
	if err := g.completeJSON(ctx, spec.prompt, spec.schema, spec.MaxTokens, data, name, &out); err != nil {
		return model.Section{}, err
	}

	section := model.Section{
		Content:       strings.TrimSpace(out.Content),
		FAQs:          trimFAQs(out.FAQs),
		Neighborhoods: nonEmpty(out.Neighborhoods),
		CTA:           strings.TrimSpace(out.CTA),
	}
	if section.Empty() {
		return model.Section{}, genErr(name, ReasonEmpty, nil)
	}
	section.WordCount = reconcileWordCount(out.WordCount, SectionWords(section))
	return section, nil
}

func (g *SectionGenerator) generateBatchedFAQs(ctx context.Context, req SectionRequest, spec SectionSpec, name string) (model.Section, error) {
	data, err := g.promptData(req, spec)
	if err != nil {
		return model.Section{}, genErr(name, ReasonPrompt, err)
	}

	faqs, err := g.batcher.AnswerAll(ctx, BatchRequest{
		Locality:     req.Locality,
		Local:        req.Local,
		Questions:    data.Questions,
		PageType:     req.PageType,
		Neighborhood: req.Neighborhood,
		Section:      model.SectionKey(name),
		IsFirstBatch: startsFAQs(spec.Key),
	})
	if err != nil {
		var ge *GenerationError
		if errors.As(err, &ge) {
			return model.Section{}, err
		}
		return model.Section{}, genErr(name, ReasonCompletion, err)
	}

	section := model.Section{FAQs: faqs}
	if section.Empty() {
		return model.Section{}, genErr(name, ReasonEmpty, errors.New("every answer in the batch was empty"))
	}

	if spec.Key == model.SectionFAQsCTA {
		var out sectionOutput
		if err := g.completeJSON(ctx, promptCTA, schemaCTA, ctaMaxTokens, data, name+".cta", &out); err != nil {
			return model.Section{}, err
		}
		section.CTA = strings.TrimSpace(out.CTA)
	}
	section.WordCount = SectionWords(section)
	return section, nil
}

// completeJSON renders a prompt, calls the model, and decodes the validated
// JSON object from its reply into dst.
func (g *SectionGenerator) completeJSON(ctx context.Context, prompt, schema string, maxTokens int, data PromptData, name string, dst any) error {
	text, err := renderPrompt(prompt, data)
	if err != nil {
		return genErr(name, ReasonPrompt, err)
	}

	reply, err := g.completer.Complete(ctx, core.CompletionRequest{
		Prompt:      text,
		MaxTokens:   maxTokens,
		Temperature: g.temperature,
		Timeout:     g.timeout,
		Operation:   "section." + name,
	})
	if err != nil {
		return genErr(name, ReasonCompletion, err)
	}

	raw, err := ExtractJSONObject(reply)
	if err != nil {
		if errors.Is(err, ErrNoJSON) {
			return genErr(name, ReasonNoJSON, err)
		}
		return genErr(name, ReasonMalformed, err)
	}
	if !json.Valid([]byte(raw)) {
		return genErr(name, ReasonMalformed, errors.New("response object is not valid JSON"))
	}
	if err := validateOutput(schema, []byte(raw)); err != nil {
		return genErr(name, ReasonSchema, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return genErr(name, ReasonMalformed, err)
	}
	return nil
}

func trimFAQs(in []model.FAQ) []model.FAQ {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.FAQ, 0, len(in))
	for _, f := range in {
		out = append(out, model.FAQ{
			Question:   strings.TrimSpace(f.Question),
			Answer:     strings.TrimSpace(f.Answer),
			RealResult: strings.TrimSpace(f.RealResult),
			Takeaway:   strings.TrimSpace(f.Takeaway),
		})
	}
	return out
}
