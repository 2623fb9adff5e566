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

// Job types accepted on the trigger subscription.
const (
	JobTypeCollect     = "collect"
	JobTypeHealthCheck = "health_check"
)

// Dispatch errors.
var (
	ErrInvalidMessage = errors.New("invalid job message")
	ErrUnknownJobType = errors.New("unknown job type")
)

// JobMessage is a collection trigger message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// Dispatcher runs the job named by a trigger message.
type Dispatcher struct {
	job    *CollectJob
	logger zerolog.Logger
}

// NewDispatcher creates a Dispatcher for job.
func NewDispatcher(job *CollectJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Dispatch decodes data and runs the requested job. A collection that
// only fell back to synthetic data succeeds; failed steps are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	switch msg.JobType {
	case JobTypeCollect:
		return d.job.Run(ctx).Err()
	case JobTypeHealthCheck:
		d.logger.Debug().Msg("running provider health check")
		if err := d.job.HealthCheck(ctx); err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		d.logger.Debug().Msg("health check passed")
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

// PubSubHandler feeds Pub/Sub trigger messages to a Dispatcher.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A collection holds the job for up to its timeout; one at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
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

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrUnknownJobType):
		// Redelivery cannot fix a malformed message.
		logger.Warn().Err(err).Msg("discarding message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Info().
			Dur("duration", time.Since(startTime)).
			Msg("job completed successfully")
		msg.Ack()
	}
}
