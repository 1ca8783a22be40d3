package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic is where handoff notifications are published. A downstream notifier
// owns the email/SMS transport and consumes from here.
const Topic = "regbook.handoff.notifications"

// KafkaDispatcher publishes notifications to the event bus. The produce is
// synchronous within the worker goroutine but the coordinators never wait on
// it; the queue decouples them.
type KafkaDispatcher struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewKafkaDispatcher connects to the brokers and makes sure the topic
// exists. Topic creation is idempotent across instances.
func NewKafkaDispatcher(ctx context.Context, brokers []string, logger *slog.Logger) (*KafkaDispatcher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 3, 1, nil, Topic); err != nil {
		// Already-exists is the steady state; anything else is worth a log
		// line but not a boot failure, the broker may create on produce.
		logger.Warn("create notifications topic", "topic", Topic, "error", err)
	}

	return &KafkaDispatcher{client: client, logger: logger}, nil
}

func (d *KafkaDispatcher) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(n.AssetID.String()),
		Value: payload,
	}
	if err := d.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

func (d *KafkaDispatcher) Close() {
	d.client.Close()
}

// LogDispatcher is the fallback when no brokers are configured: it records
// the notification in the service log and nothing more. Useful for local
// development and as an explicit statement that delivery is best-effort.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, n Notification) error {
	d.logger.InfoContext(ctx, "notification",
		"kind", string(n.Kind),
		"asset_id", n.AssetID.String(),
		"recipient", n.RecipientEmail,
	)
	return nil
}
