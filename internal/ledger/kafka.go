package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
)

// messageWriter abstracts *kafka.Writer for testability.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaStore publishes each record as an [Entry] to a Kafka topic, keyed by
// organization so one organization's records stay ordered on a partition.
// Downstream consumers own persistence and deduplicate on the record ID.
type KafkaStore struct {
	w messageWriter
}

// Compile-time interface check.
var _ Store = (*KafkaStore)(nil)

// NewKafkaStore creates a KafkaStore. brokers is a comma-separated list of
// host:port pairs.
func NewKafkaStore(brokers, topic string) *KafkaStore {
	var addrs []string
	for _, a := range strings.Split(brokers, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return &KafkaStore{w: &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

// newKafkaStoreWith injects a writer in tests.
func newKafkaStoreWith(w messageWriter) *KafkaStore {
	return &KafkaStore{w: w}
}

// WriteOrder implements [Store].
func (k *KafkaStore) WriteOrder(ctx context.Context, rec OrderRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return k.publish(ctx, rec.OrganizationID, Entry{Kind: KindOrder, Order: &rec})
}

// WriteTask implements [Store].
func (k *KafkaStore) WriteTask(ctx context.Context, rec TaskRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return k.publish(ctx, rec.OrganizationID, Entry{Kind: KindTask, Task: &rec})
}

// Close flushes and closes the underlying writer.
func (k *KafkaStore) Close() error {
	return k.w.Close()
}

func (k *KafkaStore) publish(ctx context.Context, orgID string, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("ledger: marshal: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(orgID),
		Value:   b,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(e.Kind)}},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("ledger: publish %s: %w", e.Kind, err)
	}
	return nil
}
