// README: Run events: every finished run report is published as JSON to a Kafka topic, keyed by grain.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"zonerev/internal/modules/runs"
)

var ErrPublish = errors.New("run event publish failed")

// SchemaVersion is stamped on every event.
const SchemaVersion = "v1"

type Config struct {
	Brokers []string
	Topic   string
	// WriteTimeout bounds a single publish.
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RunEvent is the wire form of a finished run.
type RunEvent struct {
	SchemaVersion string      `json:"schema_version"`
	Report        runs.Report `json:"report"`
}

type Publisher struct {
	writer  messageWriter
	timeout time.Duration
}

func NewPublisher(cfg Config) (*Publisher, error) {
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("%w: topic must not be empty", ErrPublish)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: at least one broker is required", ErrPublish)
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: false,
	}
	return newPublisher(w, cfg.WriteTimeout), nil
}

func newPublisher(w messageWriter, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{writer: w, timeout: timeout}
}

// Publish writes one event. Reports of the same grain share a partition so
// consumers see them in run order.
func (p *Publisher) Publish(ctx context.Context, report runs.Report) error {
	value, err := json.Marshal(RunEvent{SchemaVersion: SchemaVersion, Report: report})
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPublish, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(report.Grain),
		Value: value,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(report.RunID)},
			{Key: "outcome", Value: []byte(report.Outcome)},
		},
		Time: report.FinishedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrPublish, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
