package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"portfolio/internal/models"
)

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Kafka writes one message per record, keyed by stock id so a partition
// always sees a stock's updates in order.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("kafka: topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Kafka{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
	}}, nil
}

func (k *Kafka) Publish(ctx context.Context, records []models.StockRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs, err := buildMessages(records)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka publish %d records: %w", len(msgs), err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func buildMessages(records []models.StockRecord) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", rec.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(rec.ID),
			Value: b,
			Time:  rec.MergedAt,
		})
	}
	return msgs, nil
}
