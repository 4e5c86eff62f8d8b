// Package redis provides Redis-based adapters for the page generator.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultJobChannel is the pub/sub channel used when none is configured.
const DefaultJobChannel = "pagegen:jobs:ready"

// ErrClientRequired is returned when the notifier is built without a client.
var ErrClientRequired = errors.New("redis client is required")

// JobNotifierOptions configures a JobNotifier.
type JobNotifierOptions struct {
	Client  redis.UniversalClient
	Channel string
	Logger  *slog.Logger
}

// JobNotifier publishes and receives "job ready" signals over Redis pub/sub. It
// serves both sides: the service layer publishes, workers wait.
type JobNotifier struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewJobNotifier constructs a JobNotifier.
func NewJobNotifier(opts JobNotifierOptions) (*JobNotifier, error) {
	if opts.Client == nil {
		return nil, ErrClientRequired
	}
	channel := opts.Channel
	if channel == "" {
		channel = DefaultJobChannel
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobNotifier{
		client:  opts.Client,
		channel: channel,
		logger:  logger.With("component", "redis_job_notifier"),
	}, nil
}

// Channel returns the pub/sub channel name.
func (n *JobNotifier) Channel() string {
	return n.channel
}

// NotifyJobReady publishes the job id on the channel.
func (n *JobNotifier) NotifyJobReady(ctx context.Context, jobID string) error {
	receivers, err := n.client.Publish(ctx, n.channel, jobID).Result()
	if err != nil {
		return fmt.Errorf("publish job ready: %w", err)
	}
	n.logger.DebugContext(ctx, "job ready published", "job_id", jobID, "receivers", receivers)
	return nil
}

// WaitForNotification blocks until one message arrives on the channel or ctx ends.
func (n *JobNotifier) WaitForNotification(ctx context.Context) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer func() {
		if err := sub.Close(); err != nil {
			n.logger.Debug("close job subscription", "error", err)
		}
	}()

	// Receive the subscription confirmation before waiting so a publish that
	// races with Subscribe is not lost on the server side.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe job channel: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-sub.Channel():
		if !ok {
			return errors.New("job subscription closed")
		}
		return nil
	}
}
