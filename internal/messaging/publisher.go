// Package messaging connects the scoring service to Kafka: transaction
// events in, risk assessment events out.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/banking/upi-risk-service/internal/config"
	"github.com/banking/upi-risk-service/internal/domain"
)

// NewSaramaConfig returns the client configuration shared by the consumer
// group and the producer
func NewSaramaConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID

	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Interval = time.Second
	cfg.Consumer.Return.Errors = true
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	return cfg
}

// NewProducer creates a synchronous producer for the configured brokers
func NewProducer(cfg config.KafkaConfig, clientID string) (sarama.SyncProducer, error) {
	p, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return p, nil
}

// Publisher writes assessment events to Kafka
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewPublisher creates a publisher for topic
func NewPublisher(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// PublishAssessment sends one assessment event keyed by transaction id
func (p *Publisher) PublishAssessment(_ context.Context, ev *domain.AssessmentEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal assessment event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(ev.EventType)},
			{Key: []byte("causation_id"), Value: []byte(ev.CausationID.String())},
		},
	}
	if ev.TransactionID != "" {
		msg.Key = sarama.StringEncoder(ev.TransactionID)
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close closes the underlying producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
