// Package publisher provides ports.Events implementations that fan engine
// notifications out to external observability collaborators.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"vigil/internal/behavior/models"
	"vigil/internal/behavior/ports"
	id "vigil/pkg/domain"
)

const (
	eventAnomalyDetected = "anomaly_detected"
	eventBaselineUpdated = "baseline_updated"
)

// envelope is the JSON structure published to Kafka.
type envelope struct {
	Event      string                `json:"event"`
	Identity   string                `json:"identity"`
	OccurredAt time.Time             `json:"occurred_at"`
	Anomaly    *models.AnomalyResult `json:"anomaly,omitempty"`
	Baseline   *models.Baseline      `json:"baseline,omitempty"`
}

// Kafka publishes anomaly and baseline events to a Kafka topic with
// fire-and-forget semantics. Publishing failures are logged, never
// propagated: notification delivery must not affect admission decisions.
type Kafka struct {
	client *kgo.Client
	topic  string
	clock  ports.Clock
	logger *slog.Logger
}

// KafkaOption configures the Kafka publisher.
type KafkaOption func(*Kafka)

func WithLogger(logger *slog.Logger) KafkaOption {
	return func(p *Kafka) {
		p.logger = logger
	}
}

func WithClock(clock ports.Clock) KafkaOption {
	return func(p *Kafka) {
		p.clock = clock
	}
}

// NewKafka constructs a Kafka publisher. The client lifecycle is managed
// externally.
func NewKafka(client *kgo.Client, topic string, opts ...KafkaOption) *Kafka {
	p := &Kafka{
		client: client,
		topic:  topic,
		clock:  ports.SystemClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AnomalyDetected publishes an anomaly event keyed by identity so all events
// for one identity land in the same partition.
func (p *Kafka) AnomalyDetected(ctx context.Context, identity id.Identity, result models.AnomalyResult) {
	p.produce(ctx, identity, envelope{
		Event:      eventAnomalyDetected,
		Identity:   identity.String(),
		OccurredAt: p.clock.Now(),
		Anomaly:    &result,
	})
}

// BaselineUpdated publishes the freshly computed baseline.
func (p *Kafka) BaselineUpdated(ctx context.Context, identity id.Identity, baseline *models.Baseline) {
	p.produce(ctx, identity, envelope{
		Event:      eventBaselineUpdated,
		Identity:   identity.String(),
		OccurredAt: p.clock.Now(),
		Baseline:   baseline,
	})
}

func (p *Kafka) produce(ctx context.Context, identity id.Identity, env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "failed to marshal event", "event", env.Event, "error", err)
		}
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(identity.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && p.logger != nil {
			p.logger.Warn("failed to publish event",
				"event", env.Event,
				"identity", env.Identity,
				"error", err,
			)
		}
	})
}
