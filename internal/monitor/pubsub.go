package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler consumes sweep-trigger messages for the monitor worker.
// An external scheduler (Cloud Scheduler, cron) publishes the messages;
// the worker stays a dumb executor.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	monitor          *Monitor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Monitor          *Monitor
	Logger           zerolog.Logger
}

// SweepMessage is a health sweep job message.
type SweepMessage struct {
	JobType string   `json:"job_type"`
	Paths   []string `json:"paths,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		monitor:          cfg.Monitor,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
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
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var sweepMsg SweepMessage
	if err := json.Unmarshal(msg.Data, &sweepMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	if sweepMsg.JobType != "health_sweep" {
		logger.Warn().Str("job_type", sweepMsg.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	summary, err := h.monitor.RunOnce(ctx, sweepMsg.Paths)
	if err != nil {
		logger.Error().Err(err).Msg("health sweep failed")
		msg.Nack()
		return
	}

	logger.Info().
		Int("up", summary.TotalUp).
		Int("down", summary.TotalDown).
		Int("errors", summary.TotalError).
		Dur("duration", summary.Duration).
		Msg("health sweep job completed")
	msg.Ack()
}
