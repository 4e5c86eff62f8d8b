//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"time"

	apperrors "github.com/UltimateServices/Dumpsters-CRM/internal/errors"
)

// JobEvent is an input to the job state machine.
type JobEvent interface {
	// Name is used in error messages and logs.
	Name() string
	apply(j *Job, now time.Time) error
}

// EventStart moves a pending job to processing when a worker reserves it.
type EventStart struct{}

// EventAdvance records progress while a job is processing. Progress must not decrease.
type EventAdvance struct {
	Progress int
	Step     string
}

// EventComplete finishes a processing job. A nil Results keeps the accumulated sections.
type EventComplete struct {
	Results *Results
}

// EventFail stops a pending or processing job. Progress keeps its last value.
type EventFail struct {
	Message string
}

// EventRequeue returns a processing job whose worker went away to the queue.
// RefundAttempt gives back the attempt the interrupted run consumed.
type EventRequeue struct {
	RefundAttempt bool
}

func (EventStart) Name() string { return "start" }
func (EventAdvance) Name() string { return "advance" }
func (EventComplete) Name() string { return "complete" }
func (EventFail) Name() string { return "fail" }
func (EventRequeue) Name() string { return "requeue" }

// Transition applies ev to j or returns a conflict error leaving j untouched.
func Transition(j *Job, ev JobEvent) error {
	return TransitionAt(j, ev, time.Now().UTC())
}

// Next returns a copy of j with ev applied, leaving j untouched. Callers persist
// the copy and adopt it only once the store accepted the change.
func Next(j *Job, ev JobEvent) (*Job, error) {
	if j == nil {
		return nil, apperrors.Internal("transition on nil job")
	}
	next := *j
	if err := Transition(&next, ev); err != nil {
		return nil, err
	}
	return &next, nil
}

// TransitionAt is Transition with an explicit clock.
func TransitionAt(j *Job, ev JobEvent, now time.Time) error {
	if j == nil {
		return apperrors.Internal("transition on nil job")
	}
	return ev.apply(j, now)
}

func invalid(j *Job, ev JobEvent) error {
	return apperrors.Conflictf("cannot %s a %s job", ev.Name(), j.Status)
}

func (e EventStart) apply(j *Job, now time.Time) error {
	if j.Status != JobStatusPending {
		return invalid(j, e)
	}
	j.Status = JobStatusProcessing
	j.Attempts++
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	j.HeartbeatAt = &now
	return nil
}

func (e EventAdvance) apply(j *Job, now time.Time) error {
	if j.Status != JobStatusProcessing {
		return invalid(j, e)
	}
	if e.Progress < 0 || e.Progress > MaxProgress {
		return apperrors.Validationf("progress %d out of range 0-%d", e.Progress, MaxProgress)
	}
	if e.Progress < j.Progress {
		return apperrors.Conflictf("progress cannot decrease from %d to %d", j.Progress, e.Progress)
	}
	j.Progress = e.Progress
	if e.Step != "" {
		j.CurrentStep = e.Step
	}
	j.HeartbeatAt = &now
	return nil
}

func (e EventComplete) apply(j *Job, now time.Time) error {
	if j.Status != JobStatusProcessing {
		return invalid(j, e)
	}
	j.Status = JobStatusCompleted
	j.Progress = MaxProgress
	j.CurrentStep = StepComplete
	j.CompletedAt = &now
	j.ErrorMessage = nil
	if e.Results != nil {
		j.Results = *e.Results
	}
	return nil
}

func (e EventFail) apply(j *Job, now time.Time) error {
	if !j.Status.Active() {
		return invalid(j, e)
	}
	msg := e.Message
	if msg == "" {
		msg = "job failed"
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = &msg
	j.CompletedAt = &now
	return nil
}

func (e EventRequeue) apply(j *Job, _ time.Time) error {
	if j.Status != JobStatusProcessing {
		return invalid(j, e)
	}
	j.Status = JobStatusPending
	j.HeartbeatAt = nil
	if e.RefundAttempt && j.Attempts > 0 {
		j.Attempts--
	}
	return nil
}
