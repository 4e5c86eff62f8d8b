// Package metrics emits the page pipeline's StatsD metrics.
package metrics

import (
	"time"

	obserrors "github.com/UltimateServices/Dumpsters-CRM/internal/observability/errors"
	"github.com/UltimateServices/Dumpsters-CRM/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultRetry   = "retry"
	ResultNoop    = "noop"
)

// Transition names for job lifecycle metrics.
const (
	TransitionReserve  = "reserve"
	TransitionComplete = "complete"
	TransitionFail     = "fail"
	TransitionRequeue  = "requeue"
)

// JobMetric captures one research job lifecycle event.
type JobMetric struct {
	Transition string
	Result     string
	Attempt    int
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits job.transition and, for timed transitions, job.duration.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Attempt > 0 {
		tags["final_attempt"] = boolTag(in.Result != ResultRetry)
	}
	addErrorClass(tags, in.Result, in.Err)

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// SectionMetric captures one section generation.
type SectionMetric struct {
	PageKind string
	Section  string
	Result   string
	Words    int
	Duration time.Duration
	Err      error
}

// EmitSection emits section.generated, section.duration and section.words.
func EmitSection(sink statsd.Sink, in SectionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"page_kind": in.PageKind,
		"section":   in.Section,
		"result":    in.Result,
	}
	addErrorClass(tags, in.Result, in.Err)

	sink.Count("section.generated", 1, tags)
	if in.Duration > 0 {
		sink.Timing("section.duration", in.Duration, CloneTags(tags))
	}
	if in.Result == ResultSuccess && in.Words > 0 {
		sink.Gauge("section.words", float64(in.Words), CloneTags(tags))
	}
}

// PublishMetric captures one publish run.
type PublishMetric struct {
	Result      string
	Pages       int
	Compensated int
	Duration    time.Duration
	Err         error
}

// EmitPublish emits publish.run and the number of pages created or rolled back.
func EmitPublish(sink statsd.Sink, in PublishMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": in.Result}
	addErrorClass(tags, in.Result, in.Err)

	sink.Count("publish.run", 1, tags)
	if in.Pages > 0 {
		sink.Count("publish.pages", int64(in.Pages), CloneTags(tags))
	}
	if in.Compensated > 0 {
		sink.Count("publish.compensated", int64(in.Compensated), CloneTags(tags))
	}
	if in.Duration > 0 {
		sink.Timing("publish.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func addErrorClass(tags map[string]string, result string, err error) {
	if err == nil || result == ResultSuccess {
		return
	}
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
