package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

const (
	defaultBulkInterval = 5 * time.Second
	defaultPollInterval = 5 * time.Second
)

// jobStarter and statusReader are the slices of the research and job services
// the bulk command drives.
type jobStarter interface {
	Start(ctx context.Context, localityID string) (*model.Job, error)
}

type statusReader interface {
	GetStatus(ctx context.Context, id string) (*model.JobStatusResponse, error)
}

type bulkOptions struct {
	Localities []string
	Interval   time.Duration
	Poll       time.Duration
}

func parseBulkFlags(args []string) (bulkOptions, error) {
	fs := flag.NewFlagSet("bulk", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var raw string
	opts := bulkOptions{}
	fs.StringVar(&raw, "localities", "", "Comma-separated locality ids")
	fs.DurationVar(&opts.Interval, "interval", defaultBulkInterval, "Delay between job starts")
	fs.DurationVar(&opts.Poll, "poll", defaultPollInterval, "Status polling interval")

	if err := fs.Parse(args); err != nil {
		return bulkOptions{}, err
	}
	opts.Localities = splitList(raw)
	if len(opts.Localities) == 0 {
		return bulkOptions{}, errors.New("--localities is required")
	}
	if opts.Interval < 0 {
		return bulkOptions{}, errors.New("--interval must not be negative")
	}
	if opts.Poll <= 0 {
		return bulkOptions{}, errors.New("--poll must be greater than zero")
	}
	return opts, nil
}

func splitList(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func runBulk(cmdCtx *commandContext, args []string) error {
	opts, err := parseBulkFlags(args)
	if err != nil {
		return err
	}
	infra, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer infra.Close()

	statuses, err := bulkResearch(cmdCtx.Ctx, infra.services.Research, infra.services.Jobs, opts, cmdCtx.Out)
	if err != nil {
		return err
	}
	return printStatuses(cmdCtx.Out, statuses)
}

// bulkResearch starts one job per locality, spaced by opts.Interval, then polls
// until every started job is completed or failed. Localities whose start fails
// are reported and skipped.
func bulkResearch(
	ctx context.Context,
	starter jobStarter,
	reader statusReader,
	opts bulkOptions,
	out io.Writer,
) ([]model.JobStatusResponse, error) {
	var jobIDs []string
	for i, locID := range opts.Localities {
		if i > 0 && opts.Interval > 0 {
			if err := sleepCtx(ctx, opts.Interval); err != nil {
				return nil, err
			}
		}
		job, err := starter.Start(ctx, locID)
		if err != nil {
			if werr := writef(out, "%s: start failed: %v\n", locID, err); werr != nil {
				return nil, werr
			}
			continue
		}
		if werr := writef(out, "%s: started job %s\n", locID, job.ID); werr != nil {
			return nil, werr
		}
		jobIDs = append(jobIDs, job.ID)
	}
	if len(jobIDs) == 0 {
		return nil, errors.New("no research jobs were started")
	}

	final := make(map[string]model.JobStatusResponse, len(jobIDs))
	for {
		for _, id := range jobIDs {
			if _, done := final[id]; done {
				continue
			}
			st, err := reader.GetStatus(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("get job %s status: %w", id, err)
			}
			if st.Status.Terminal() {
				final[id] = *st
			}
		}
		if len(final) == len(jobIDs) {
			break
		}
		if err := sleepCtx(ctx, opts.Poll); err != nil {
			return nil, err
		}
	}

	result := make([]model.JobStatusResponse, 0, len(jobIDs))
	for _, id := range jobIDs {
		result = append(result, final[id])
	}
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func printStatuses(out io.Writer, statuses []model.JobStatusResponse) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if err := writef(tw, "JOB\tLOCALITY\tSTATUS\tPROGRESS\tSTEP\tERROR\n"); err != nil {
		return err
	}
	for _, st := range statuses {
		errMsg := ""
		if st.ErrorMessage != nil {
			errMsg = *st.ErrorMessage
		}
		if err := writef(tw, "%s\t%s\t%s\t%d%%\t%s\t%s\n",
			st.ID, st.LocalityID, st.Status, st.Progress, st.CurrentStep, errMsg); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runStatus(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jobID := fs.String("job", "", "Job id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*jobID) == "" {
		return errors.New("--job is required")
	}

	infra, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer infra.Close()

	st, err := infra.services.Jobs.GetStatus(cmdCtx.Ctx, strings.TrimSpace(*jobID))
	if err != nil {
		return err
	}
	return printStatuses(cmdCtx.Out, []model.JobStatusResponse{*st})
}

func runPublish(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	localityID := fs.String("locality", "", "Locality id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*localityID) == "" {
		return errors.New("--locality is required")
	}

	infra, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer infra.Close()

	if infra.services.Publish == nil {
		return errors.New("wordpress publishing is not configured (WORDPRESS_SITE_URL, WORDPRESS_USERNAME, WORDPRESS_APP_PASSWORD)")
	}
	res, err := infra.services.Publish.Publish(cmdCtx.Ctx, strings.TrimSpace(*localityID))
	if err != nil {
		return err
	}

	if err := writef(cmdCtx.Out, "published %d pages for job %s\nmain page: %s\n", len(res.Pages), res.JobID, res.MainURL); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	for _, p := range res.Pages {
		if err := writef(tw, "%s\t%d\t%s\n", p.PageKey, p.CMSID, p.Link); err != nil {
			return err
		}
	}
	return tw.Flush()
}
