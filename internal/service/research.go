package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UltimateServices/Dumpsters-CRM/config"
	"github.com/UltimateServices/Dumpsters-CRM/internal/content"
	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/plan"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
)

// SectionGenerator produces one section per call.
type SectionGenerator interface {
	Generate(ctx context.Context, req content.SectionRequest) (model.Section, error)
}

// PageAssembler turns stored sections into pages.
type PageAssembler interface {
	Assemble(loc *model.Locality, results model.Results) []model.Page
}

// ResearchServiceOptions groups dependencies for ResearchService.
type ResearchServiceOptions struct {
	Localities core.LocalityRepository // Required
	Jobs       core.JobRepository      // Required
	Generator  SectionGenerator        // Required
	Assembler  PageAssembler           // Required
	Notifier   core.JobNotifier        // Optional: wakes workers after Start
	Progress   *ProgressTracker        // Optional: defaults to a tracker over Jobs
	Config     config.ResearchConfig
	Logger     *slog.Logger
}

// ResearchService starts research jobs and runs them section by section.
type ResearchService struct {
	localities core.LocalityRepository
	jobs       core.JobRepository
	generator  SectionGenerator
	assembler  PageAssembler
	notifier   core.JobNotifier
	progress   *ProgressTracker
	cfg        config.ResearchConfig
	logger     *slog.Logger
}

// NewResearchService constructs a ResearchService.
func NewResearchService(opts ResearchServiceOptions) (*ResearchService, error) {
	switch {
	case opts.Localities == nil:
		return nil, errors.New("LocalityRepository is required")
	case opts.Jobs == nil:
		return nil, errors.New("JobRepository is required")
	case opts.Generator == nil:
		return nil, errors.New("SectionGenerator is required")
	case opts.Assembler == nil:
		return nil, errors.New("PageAssembler is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := opts.Progress
	if progress == nil {
		progress = NewProgressTracker(ProgressTrackerOptions{Repo: opts.Jobs, Logger: logger})
	}
	cfg := opts.Config
	cfg.DefaultNeighborhoods = append([]string(nil), cfg.DefaultNeighborhoods...)
	cfg.Sanitize()

	return &ResearchService{
		localities: opts.Localities,
		jobs:       opts.Jobs,
		generator:  opts.Generator,
		assembler:  opts.Assembler,
		notifier:   opts.Notifier,
		progress:   progress,
		cfg:        cfg,
		logger:     logger.With("component", "research_service"),
	}, nil
}

// Start creates a pending research job for the locality and signals workers.
// It returns a not_found error for an unknown locality and a conflict error when
// the locality already has a pending or processing job.
func (s *ResearchService) Start(ctx context.Context, localityID string) (*model.Job, error) {
	localityID = strings.TrimSpace(localityID)
	if localityID == "" {
		return nil, apperrors.ValidationField("locality_id", "locality id is required")
	}
	if _, err := s.localities.GetByID(ctx, localityID); err != nil {
		return nil, fmt.Errorf("load locality: %w", err)
	}

	job, err := s.jobs.Create(ctx, &model.CreateJobRequest{
		LocalityID:  localityID,
		MaxAttempts: s.cfg.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create research job: %w", err)
	}

	if s.notifier != nil {
		// Workers also poll, so a lost signal only delays the job.
		if nerr := s.notifier.NotifyJobReady(ctx, job.ID); nerr != nil {
			s.logger.WarnContext(ctx, "job ready notification failed", "job_id", job.ID, "error", nerr)
		}
	}

	s.logger.InfoContext(ctx, "research job created", "job_id", job.ID, "locality_id", localityID)
	return job, nil
}

// Run generates every planned section of a processing job, assembles the pages
// and completes the job. It resumes from sections stored by an earlier attempt.
//
// Run returns nil once the job is terminal, including when a main page section
// failed and the job was failed. Errors returned to the caller are retryable
// (persistence, cancellation) or ErrJobNotProcessing.
func (s *ResearchService) Run(ctx context.Context, job *model.Job) error {
	if job == nil || job.Status != model.JobStatusProcessing {
		return ErrJobNotProcessing
	}
	start := time.Now()
	logger := s.logger.With("job_id", job.ID, "locality_id", job.LocalityID, "attempt", job.Attempts)

	loc, err := s.localities.GetByID(ctx, job.LocalityID)
	if apperrors.IsNotFound(err) {
		return s.fail(ctx, job, fmt.Sprintf("locality %s not found", job.LocalityID))
	}
	if err != nil {
		return apperrors.Persistence(err, "load locality")
	}

	r := &run{
		svc:     s,
		job:     job,
		loc:     loc,
		local:   content.BuildLocalData(loc),
		results: job.Results,
		logger:  logger,
	}

	for _, step := range plan.MainSteps() {
		failed, err := r.required(ctx, step)
		if err != nil || failed {
			return err
		}
	}

	hoods, err := r.neighborhoods(ctx)
	if err != nil {
		return err
	}

	steps := plan.Build(hoods)
	for _, step := range steps[len(plan.MainSteps()):] {
		if err := r.bestEffort(ctx, step); err != nil {
			return err
		}
	}

	r.results.Pages = s.assembler.Assemble(loc, r.results)
	next, err := model.Next(job, model.EventComplete{Results: &r.results})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJobNotProcessing, err)
	}
	completed, err := s.jobs.Complete(ctx, job.ID, r.results)
	if err != nil {
		return apperrors.Persistence(err, "job completion")
	}
	if !completed {
		return ErrJobNotProcessing
	}
	*job = *next

	logger.InfoContext(ctx, "research job completed",
		"pages", len(r.results.Pages),
		"neighborhoods", len(hoods),
		"section_errors", len(r.results.SectionErrors),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// fail moves job to failed. Progress keeps the value of the last finished step.
func (s *ResearchService) fail(ctx context.Context, job *model.Job, msg string) error {
	next, err := model.Next(job, model.EventFail{Message: msg})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJobNotProcessing, err)
	}
	ok, err := s.jobs.Fail(ctx, job.ID, *next.ErrorMessage)
	if err != nil {
		return apperrors.Persistence(err, "job failure")
	}
	if !ok {
		return ErrJobNotProcessing
	}
	*job = *next
	s.logger.WarnContext(ctx, "research job failed", "job_id", job.ID, "progress", job.Progress, "error", msg)
	return nil
}

// run carries the state of one Run call.
type run struct {
	svc     *ResearchService
	job     *model.Job
	loc     *model.Locality
	local   content.LocalData
	results model.Results
	logger  *slog.Logger
}

func (r *run) request(step plan.Step) content.SectionRequest {
	return content.SectionRequest{
		Locality:     r.loc,
		Local:        r.local,
		PageType:     step.PageType,
		SectionKey:   step.Ref.SectionKey,
		Neighborhood: step.Neighborhood,
	}
}

// generate returns the section for step. Cancellation wins over any generation
// error it caused so a shutdown never fails a job.
func (r *run) generate(ctx context.Context, step plan.Step) (model.Section, error) {
	section, err := r.svc.generator.Generate(ctx, r.request(step))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.Section{}, ctxErr
	}
	return section, err
}

func (r *run) save(ctx context.Context, step plan.Step, section model.Section) error {
	if err := r.svc.jobs.SaveSection(ctx, core.SaveSectionParams{
		JobID:   r.job.ID,
		Ref:     step.Ref,
		Section: section,
	}); err != nil {
		return apperrors.Persistence(err, "section "+step.Ref.String())
	}
	r.results.SetSection(step.Ref, section)
	return nil
}

// required runs a main page step. It reports failed=true after failing the job.
func (r *run) required(ctx context.Context, step plan.Step) (bool, error) {
	if r.results.Has(step.Ref) {
		r.logger.DebugContext(ctx, "section already generated", "section", step.Ref.String())
		return false, nil
	}

	section, err := r.generate(ctx, step)
	if err != nil {
		if !apperrors.IsGeneration(err) {
			return false, err
		}
		return true, r.svc.fail(ctx, r.job, err.Error())
	}
	if err := r.save(ctx, step, section); err != nil {
		return false, err
	}
	return false, r.svc.progress.Advance(ctx, r.job, step)
}

// bestEffort runs a neighborhood step. A generation error is recorded and the
// section left empty; progress advances either way.
func (r *run) bestEffort(ctx context.Context, step plan.Step) error {
	if r.results.Has(step.Ref) {
		return nil
	}

	section, err := r.generate(ctx, step)
	switch {
	case err == nil:
		if err := r.save(ctx, step, section); err != nil {
			return err
		}
	case apperrors.IsGeneration(err):
		r.logger.WarnContext(ctx, "neighborhood section failed", "section", step.Ref.String(), "error", err)
		if rerr := r.svc.jobs.RecordSectionError(ctx, core.RecordSectionErrorParams{
			JobID:   r.job.ID,
			Ref:     step.Ref,
			Message: err.Error(),
		}); rerr != nil {
			return apperrors.Persistence(rerr, "section error "+step.Ref.String())
		}
		r.results.SetSectionError(step.Ref, err.Error())
	default:
		return err
	}
	return r.svc.progress.Advance(ctx, r.job, step)
}

// neighborhoods settles the job's neighborhood list once and stores it, so a
// resumed attempt plans the same pages.
func (r *run) neighborhoods(ctx context.Context) ([]string, error) {
	if len(r.results.Neighborhoods) > 0 {
		return r.results.Neighborhoods, nil
	}

	areas, _ := r.results.Section(model.SectionRef{PageKey: model.MainPageKey, SectionKey: model.SectionAreasWhyChoose})
	hoods := pickNeighborhoods(areas.Neighborhoods, r.svc.cfg.DefaultNeighborhoods, r.svc.cfg.MaxNeighborhoods, r.loc.Name)

	if err := r.svc.jobs.SetNeighborhoods(ctx, r.job.ID, hoods); err != nil {
		return nil, apperrors.Persistence(err, "job neighborhoods")
	}
	r.results.Neighborhoods = hoods
	r.logger.InfoContext(ctx, "neighborhoods planned", "neighborhoods", hoods)
	return hoods, nil
}

// pickNeighborhoods returns the generated names when any survive cleaning,
// otherwise the defaults, capped at limit. Names equal to the city are dropped.
func pickNeighborhoods(generated, defaults []string, limit int, city string) []string {
	hoods := cleanNames(generated, city)
	if len(hoods) == 0 {
		hoods = cleanNames(defaults, city)
	}
	if len(hoods) > limit {
		hoods = hoods[:max(limit, 0)]
	}
	if hoods == nil {
		hoods = []string{}
	}
	return hoods
}

func cleanNames(in []string, city string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, n := range in {
		n = strings.Join(strings.Fields(n), " ")
		key := strings.ToLower(n)
		if n == "" || seen[key] || strings.EqualFold(n, strings.TrimSpace(city)) {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
