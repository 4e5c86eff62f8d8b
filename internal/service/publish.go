package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/metrics"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/statsd"
	"github.com/UltimateServices/Dumpsters-CRM/internal/pages"
)

// PublishServiceOptions groups dependencies for PublishService.
type PublishServiceOptions struct {
	Localities core.LocalityRepository      // Required
	Jobs       core.JobRepository           // Required
	Published  core.PublishedPageRepository // Required
	Publisher  core.PagePublisher           // Required
	Lock       *core.KeyedLock              // Optional: serializes publishes per locality
	Metrics    statsd.Sink                  // Optional
	Logger     *slog.Logger
	Now        func() time.Time
}

// PublishService pushes the pages of a locality's latest completed job to the CMS.
type PublishService struct {
	localities core.LocalityRepository
	jobs       core.JobRepository
	published  core.PublishedPageRepository
	publisher  core.PagePublisher
	lock       *core.KeyedLock
	metrics    statsd.Sink
	logger     *slog.Logger
	now        func() time.Time
}

// NewPublishService constructs a PublishService.
func NewPublishService(opts PublishServiceOptions) (*PublishService, error) {
	switch {
	case opts.Localities == nil:
		return nil, errors.New("LocalityRepository is required")
	case opts.Jobs == nil:
		return nil, errors.New("JobRepository is required")
	case opts.Published == nil:
		return nil, errors.New("PublishedPageRepository is required")
	case opts.Publisher == nil:
		return nil, errors.New("PagePublisher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &PublishService{
		localities: opts.Localities,
		jobs:       opts.Jobs,
		published:  opts.Published,
		publisher:  opts.Publisher,
		lock:       opts.Lock,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "publish_service"),
		now:        now,
	}, nil
}

// ListPages returns the pages published for a locality, newest first.
func (s *PublishService) ListPages(ctx context.Context, localityID string) ([]model.PublishedPage, error) {
	if _, err := s.localities.GetByID(ctx, localityID); err != nil {
		return nil, fmt.Errorf("load locality: %w", err)
	}
	out, err := s.published.ListByLocality(ctx, localityID)
	if err != nil {
		return nil, fmt.Errorf("list published pages: %w", err)
	}
	return out, nil
}

// Publish creates the main page, then each neighborhood page under it, then
// rewrites the main page with links to its children. A job without neighborhood
// pages has no links block, so the main page is created once and not updated.
// Any CMS failure deletes the pages created so far and returns a publish error.
func (s *PublishService) Publish(ctx context.Context, localityID string) (*model.PublishResult, error) {
	start := s.now()

	loc, err := s.localities.GetByID(ctx, localityID)
	if err != nil {
		return nil, fmt.Errorf("load locality: %w", err)
	}
	job, err := s.jobs.LatestCompleted(ctx, localityID)
	if apperrors.IsNotFound(err) {
		return nil, apperrors.NotFoundf("locality %s has no completed job", localityID)
	}
	if err != nil {
		return nil, fmt.Errorf("load completed job: %w", err)
	}

	main, children, err := splitPages(job.Results.Pages)
	if err != nil {
		return nil, err
	}

	if s.lock != nil {
		release, lerr := s.lock.Acquire(ctx, localityID)
		if errors.Is(lerr, core.ErrLockHeld) {
			return nil, apperrors.Conflictf("locality %s is already being published", localityID)
		}
		if lerr != nil {
			return nil, apperrors.Wrap(lerr, apperrors.ErrCodeInternal, "acquire publish lock")
		}
		defer func() {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				s.logger.WarnContext(ctx, "publish lock release failed", "locality_id", localityID, "error", rerr)
			}
		}()
	}

	p := &publishRun{svc: s, loc: loc, job: job}
	result, err := p.run(ctx, main, children)

	metric := metrics.PublishMetric{
		Result:      metrics.ResultSuccess,
		Pages:       len(p.created),
		Compensated: p.compensated,
		Duration:    s.now().Sub(start),
		Err:         err,
	}
	if err != nil {
		metric.Result = metrics.ResultError
		metric.Pages = 0
	}
	metrics.EmitPublish(s.metrics, metric)

	if err != nil {
		s.logger.ErrorContext(ctx, "publish failed",
			"locality_id", localityID,
			"job_id", job.ID,
			"rolled_back", p.compensated,
			"error", err,
		)
		return nil, err
	}
	s.logger.InfoContext(ctx, "published locality",
		"locality_id", localityID,
		"job_id", job.ID,
		"main_url", result.MainURL,
		"pages", len(result.Pages),
	)
	return result, nil
}

// splitPages validates every page before anything is sent to the CMS.
func splitPages(all []model.Page) (model.Page, []model.Page, error) {
	if len(all) == 0 {
		return model.Page{}, nil, apperrors.Validation("completed job has no pages")
	}

	var (
		main     *model.Page
		children []model.Page
		slugs    = make(map[string]bool, len(all))
	)
	for i := range all {
		pg := all[i]
		if err := validatePage(pg); err != nil {
			return model.Page{}, nil, err
		}
		if slugs[pg.Slug] {
			return model.Page{}, nil, apperrors.Validationf("duplicate slug %q", pg.Slug)
		}
		slugs[pg.Slug] = true

		if pg.Type == model.PageTypeMain {
			if main != nil {
				return model.Page{}, nil, apperrors.Validation("job has more than one main page")
			}
			main = &all[i]
			continue
		}
		children = append(children, pg)
	}
	if main == nil {
		return model.Page{}, nil, apperrors.Validation("job has no main page")
	}
	return *main, children, nil
}

func validatePage(pg model.Page) error {
	switch {
	case strings.TrimSpace(pg.Title) == "":
		return apperrors.Validationf("page %s has no title", pg.Key)
	case strings.TrimSpace(pg.Slug) == "":
		return apperrors.Validationf("page %s has no slug", pg.Key)
	}
	if err := pages.ValidateHTML(pg.HTML); err != nil {
		return apperrors.Validationf("page %s: %v", pg.Key, err)
	}
	return nil
}

type createdPage struct {
	page model.Page
	ref  core.PublishedRef
}

// publishRun tracks the CMS pages created by one Publish call.
type publishRun struct {
	svc         *PublishService
	loc         *model.Locality
	job         *model.Job
	created     []createdPage
	compensated int
}

func (p *publishRun) run(ctx context.Context, main model.Page, children []model.Page) (*model.PublishResult, error) {
	mainRef, err := p.create(ctx, main, 0)
	if err != nil {
		return nil, p.rollback(ctx, err)
	}

	links := make([]pages.Link, 0, len(children))
	for _, child := range children {
		ref, cerr := p.create(ctx, child, mainRef.ID)
		if cerr != nil {
			return nil, p.rollback(ctx, cerr)
		}
		title := child.Neighborhood
		if title == "" {
			title = child.Title
		}
		links = append(links, pages.Link{Title: title, URL: ref.Link})
	}

	// No children means no links block; the created body is final.
	if len(links) > 0 {
		body, lerr := pages.InjectLinks(main.HTML, pages.LinksBlock(p.loc.Name, links))
		if lerr != nil {
			return nil, p.rollback(ctx, fmt.Errorf("link main page: %w", lerr))
		}
		if uerr := p.svc.publisher.UpdatePage(ctx, mainRef.ID, core.UpdatePageRequest{HTML: body}); uerr != nil {
			return nil, p.rollback(ctx, fmt.Errorf("update page %s: %w", main.Slug, uerr))
		}
	}

	at := p.svc.now().UTC()
	published := make([]model.PublishedPage, 0, len(p.created))
	for _, c := range p.created {
		pp := model.PublishedPage{
			LocalityID: p.loc.ID,
			JobID:      p.job.ID,
			PageKey:    c.page.Key,
			Slug:       c.page.Slug,
			CMSID:      c.ref.ID,
			Link:       c.ref.Link,
			CreatedAt:  at,
		}
		if c.page.Type != model.PageTypeMain {
			parent := mainRef.ID
			pp.ParentCMSID = &parent
		}
		published = append(published, pp)
	}

	if err := p.svc.published.RecordPublish(ctx, core.RecordPublishParams{
		LocalityID: p.loc.ID,
		MainURL:    mainRef.Link,
		At:         at,
		Pages:      published,
	}); err != nil {
		// Pages nobody recorded would be orphaned in the CMS.
		return nil, p.rollback(ctx, apperrors.Persistence(err, "published pages"))
	}

	return &model.PublishResult{
		LocalityID: p.loc.ID,
		JobID:      p.job.ID,
		MainURL:    mainRef.Link,
		Pages:      published,
	}, nil
}

func (p *publishRun) create(ctx context.Context, pg model.Page, parentID int64) (core.PublishedRef, error) {
	ref, err := p.svc.publisher.CreatePage(ctx, core.CreatePageRequest{
		Title:           pg.Title,
		Slug:            pg.Slug,
		HTML:            pg.HTML,
		MetaDescription: pg.MetaDescription,
		ParentID:        parentID,
	})
	if err != nil {
		return core.PublishedRef{}, fmt.Errorf("create page %s: %w", pg.Slug, err)
	}
	if ref == nil {
		return core.PublishedRef{}, fmt.Errorf("create page %s: empty response", pg.Slug)
	}
	p.created = append(p.created, createdPage{page: pg, ref: *ref})
	return *ref, nil
}

// rollback deletes created pages newest first and wraps cause as a publish error.
// Deletes run even when ctx is canceled.
func (p *publishRun) rollback(ctx context.Context, cause error) error {
	dctx := context.WithoutCancel(ctx)
	var errs []error
	for i := len(p.created) - 1; i >= 0; i-- {
		c := p.created[i]
		if err := p.svc.publisher.DeletePage(dctx, c.ref.ID); err != nil {
			errs = append(errs, fmt.Errorf("delete page %d: %w", c.ref.ID, err))
			continue
		}
		p.compensated++
	}
	p.created = nil

	if len(errs) > 0 {
		p.svc.logger.ErrorContext(ctx, "compensating deletes failed",
			"locality_id", p.loc.ID,
			"orphaned", len(errs),
			"error", errors.Join(errs...),
		)
		cause = errors.Join(append([]error{cause}, errs...)...)
	}
	return apperrors.Wrapf(cause, apperrors.ErrCodePublish, "publish locality %s", p.loc.ID)
}
