package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smallbiznis/quotaledger/internal/config"
	eventsdomain "github.com/smallbiznis/quotaledger/internal/events/domain"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Sink delivers a batch of events downstream. A nil error means every event was accepted.
type Sink interface {
	Send(ctx context.Context, events []*eventsdomain.Event) error
}

// KafkaSink produces one record per event, keyed by concession so a concession's events stay
// ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(cfg config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: cfg.Topic}, nil
}

func (s *KafkaSink) Send(ctx context.Context, events []*eventsdomain.Event) error {
	if len(events) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(ev.ConcessionID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_kind", Value: []byte(ev.Kind)},
				{Key: "event_id", Value: []byte(ev.ID.String())},
			},
		})
	}

	return s.client.ProduceSync(ctx, records...).FirstErr()
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
