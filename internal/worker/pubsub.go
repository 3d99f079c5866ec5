package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobCrimeRefresh = "crime_refresh"
	JobHealthCheck  = "health_check"
)

// ErrUnknownJobType is returned for messages the worker does not handle.
// Such messages are acked so they are not redelivered.
var ErrUnknownJobType = errors.New("unknown job type")

// healthCheckPoint is a location that always has feed coverage.
var healthCheckPoint = Point{Lat: 51.5007, Lng: -0.1246}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	jobs             *Jobs
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Jobs             *Jobs
	Logger           zerolog.Logger
}

// RefreshMessage is the body of a job message.
type RefreshMessage struct {
	JobType string `json:"job_type"`
}

// Jobs runs worker jobs by type. It is shared by the cron and Pub/Sub triggers.
type Jobs struct {
	refresh *RefreshJob
	source  SnapshotSource
	logger  zerolog.Logger
}

// NewJobs creates a job runner around refresh.
func NewJobs(refresh *RefreshJob, logger zerolog.Logger) *Jobs {
	return &Jobs{
		refresh: refresh,
		source:  refresh.crime,
		logger:  logger,
	}
}

// Handle runs the job named by a raw message body.
func (j *Jobs) Handle(ctx context.Context, data []byte) (string, error) {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("parsing message: %w", err)
	}

	switch msg.JobType {
	case JobCrimeRefresh:
		return msg.JobType, j.CrimeRefresh(ctx)
	case JobHealthCheck:
		return msg.JobType, j.HealthCheck(ctx)
	default:
		return msg.JobType, fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

// CrimeRefresh warms all targets. It fails when more points failed than succeeded.
func (j *Jobs) CrimeRefresh(ctx context.Context) error {
	result := j.refresh.Run(ctx)

	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalPoints)
	}
	return nil
}

// HealthCheck looks up a single point to verify feed connectivity.
func (j *Jobs) HealthCheck(ctx context.Context) error {
	j.logger.Debug().Msg("running health check")

	check := NewRefreshJob(RefreshJobConfig{
		Config: RefreshConfig{
			Targets: []RefreshTarget{
				{Name: "health-check", Priority: 1, Points: []Point{healthCheckPoint}},
			},
			Concurrency: 1,
			Timeout:     10 * time.Second,
		},
		Logger: j.logger,
		Crime:  j.source,
	})

	result := check.Run(ctx)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}
	if result.Skipped > 0 {
		return ctx.Err()
	}

	j.logger.Debug().Msg("health check passed")
	return nil
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		jobs:             cfg.Jobs,
		logger:           cfg.Logger,
	}, nil
}

// Start blocks processing messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	jobType, err := h.jobs.Handle(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrUnknownJobType):
		logger.Warn().Str("job_type", jobType).Msg("unknown job type")
		msg.Ack()
		return
	case err != nil:
		logger.Error().Err(err).Str("job_type", jobType).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_type", jobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}
