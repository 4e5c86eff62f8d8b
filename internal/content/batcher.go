package content

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

const (
	// DefaultBatchSize is the number of questions answered per LLM call.
	DefaultBatchSize      = 5
	defaultBatchMaxTokens = 16000
	defaultBatchInterval  = time.Second
	defaultBatchTimeout   = 3 * time.Minute
)

var (
	answerMarker     = regexp.MustCompile(`(?i)ANSWER\s+\d+\s*:`)
	realResultMarker = regexp.MustCompile(`REAL\s+RESULT\s+1\s*:`)
	takeawayMarker   = regexp.MustCompile(`TAKEAWAY\s+1\s*:`)
)

// BatcherOptions configures an AnswerBatcher.
type BatcherOptions struct {
	Completer core.TextCompleter
	BatchSize int
	MaxTokens int
	// Interval is the minimum spacing between batch calls. Zero disables the wait.
	Interval    time.Duration
	Temperature float64
	Timeout     time.Duration
	Logger      *slog.Logger
}

// AnswerBatcher answers FAQ questions a few at a time with marker-delimited output.
type AnswerBatcher struct {
	completer   core.TextCompleter
	batchSize   int
	maxTokens   int
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// BatchRequest is one batch of questions for one page.
type BatchRequest struct {
	Locality     *model.Locality
	Local        LocalData
	Questions    []Question
	PageType     model.PageType
	Neighborhood string
	// Section names the FAQ section in logs and errors.
	Section model.SectionKey
	// IsFirstBatch asks for the real result and takeaway on the first answer.
	IsFirstBatch bool
}

// NewAnswerBatcher creates a batcher. The limiter is shared by every caller of
// the batcher, so concurrent jobs are spaced out together.
func NewAnswerBatcher(opts BatcherOptions) *AnswerBatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultBatchMaxTokens
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}

	return &AnswerBatcher{
		completer:   opts.Completer,
		batchSize:   size,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
		timeout:     timeout,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger.With("component", "answer_batcher"),
	}
}

// AnswerAll answers every question in req, batchSize at a time, waiting on the
// limiter before each batch. Only the first batch honours req.IsFirstBatch.
// The result has one entry per question, in order.
func (b *AnswerBatcher) AnswerAll(ctx context.Context, req BatchRequest) ([]model.FAQ, error) {
	out := make([]model.FAQ, 0, len(req.Questions))
	for start := 0; start < len(req.Questions); start += b.batchSize {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, genErr(string(req.Section), ReasonCompletion, err)
		}
		end := min(start+b.batchSize, len(req.Questions))

		batch := req
		batch.Questions = req.Questions[start:end]
		batch.IsFirstBatch = req.IsFirstBatch && start == 0

		faqs, err := b.GenerateBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, faqs...)
		b.logger.DebugContext(ctx, "faq batch answered",
			"section", req.Section,
			"answered", len(out),
			"total", len(req.Questions),
		)
	}
	return out, nil
}

// GenerateBatch answers one batch with a single LLM call. Missing answers are
// returned empty with a warning. Only transport failures are errors.
func (b *AnswerBatcher) GenerateBatch(ctx context.Context, req BatchRequest) ([]model.FAQ, error) {
	section := string(req.Section)
	if section == "" {
		section = "faq_batch"
	}
	if len(req.Questions) == 0 {
		return nil, nil
	}

	data := newPromptData(req.Locality, req.Local, req.Neighborhood)
	data.Questions = req.Questions
	data.IsFirstBatch = req.IsFirstBatch
	prompt, err := renderPrompt(promptFAQBatch, data)
	if err != nil {
		return nil, genErr(section, ReasonPrompt, err)
	}

	text, err := b.completer.Complete(ctx, core.CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
		Timeout:     b.timeout,
		Operation:   "faq_batch." + section,
	})
	if err != nil {
		return nil, genErr(section, ReasonCompletion, err)
	}

	faqs, missing := ParseAnswers(text, req.Questions, req.IsFirstBatch)
	if missing > 0 {
		b.logger.WarnContext(ctx, "faq batch returned fewer answers than questions",
			"section", section,
			"questions", len(req.Questions),
			"missing", missing,
		)
	}
	return faqs, nil
}

// ParseAnswers splits marker-delimited model output into one FAQ per question.
// Text before the first ANSWER marker is dropped. When firstBatch is set the
// first answer's REAL RESULT 1 and TAKEAWAY 1 blocks are lifted into their
// fields. Every other segment is kept whole. missing counts the questions left without an answer.
func ParseAnswers(text string, questions []Question, firstBatch bool) (faqs []model.FAQ, missing int) {
	bounds := answerMarker.FindAllStringIndex(text, -1)
	segments := make([]string, 0, len(bounds))
	for i, loc := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		segments = append(segments, text[loc[1]:end])
	}

	faqs = make([]model.FAQ, len(questions))
	for i, q := range questions {
		faqs[i].Question = q.Text
		if i >= len(segments) {
			missing++
			continue
		}
		if firstBatch && i == 0 {
			faqs[i].Answer, faqs[i].RealResult, faqs[i].Takeaway = splitExtras(segments[i])
		} else {
			faqs[i].Answer = strings.TrimSpace(segments[i])
		}
		if faqs[i].Answer == "" {
			missing++
		}
	}
	return faqs, missing
}

// splitExtras cuts the numbered REAL RESULT and TAKEAWAY blocks off the first answer.
func splitExtras(segment string) (answer, realResult, takeaway string) {
	answer = segment
	if loc := takeawayMarker.FindStringIndex(answer); loc != nil {
		takeaway = strings.TrimSpace(answer[loc[1]:])
		answer = answer[:loc[0]]
	}
	if loc := realResultMarker.FindStringIndex(answer); loc != nil {
		realResult = strings.TrimSpace(answer[loc[1]:])
		answer = answer[:loc[0]]
	}
	return strings.TrimSpace(answer), realResult, takeaway
}
