package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/banking/upi-risk-service/internal/config"
	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/metrics"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
)

var errEmptyPayload = errors.New("transaction event has no payload")

// Scorer assesses one transaction
type Scorer interface {
	Score(ctx context.Context, req *domain.ScoreRequest) (*domain.RiskAssessment, error)
}

// AssessmentPublisher emits assessment events
type AssessmentPublisher interface {
	PublishAssessment(ctx context.Context, ev *domain.AssessmentEvent) error
}

// Consumer scores transaction events from a consumer group. Every handled
// message is marked, including rejected ones, so a poison message cannot
// stall the partition. Messages whose scoring was aborted by the session
// ending stay unmarked and are redelivered after the rebalance.
type Consumer struct {
	group     sarama.ConsumerGroup
	topics    []string
	scorer    Scorer
	publisher AssessmentPublisher
	log       *logger.Logger
}

// NewConsumerGroup joins the configured consumer group
func NewConsumerGroup(cfg config.KafkaConfig, clientID string) (sarama.ConsumerGroup, error) {
	g, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, NewSaramaConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("kafka: create consumer group: %w", err)
	}
	return g, nil
}

// NewConsumer creates a consumer for the transaction topic
func NewConsumer(group sarama.ConsumerGroup, topic string, scorer Scorer, publisher AssessmentPublisher, log *logger.Logger) *Consumer {
	return &Consumer{
		group:     group,
		topics:    []string{topic},
		scorer:    scorer,
		publisher: publisher,
		log:       log.Named("transaction_consumer"),
	}
}

// Run consumes until ctx is canceled or the group is closed
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("consumer starting", logger.StringField("topic", c.topics[0]))

	go func() {
		for err := range c.group.Errors() {
			c.log.Error("consumer group error", logger.ErrorField(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consume: %w", err)
		}
		if ctx.Err() != nil {
			c.log.Info("consumer stopping due to context cancellation")
			return nil
		}
	}
}

// Close leaves the consumer group
func (c *Consumer) Close() error {
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !c.handleMessage(session.Context(), msg) {
				return nil
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessage scores one event and publishes the result. It reports
// false only when the session ended before the event was scored; every
// other failure is logged and counted and the message counts as handled.
func (c *Consumer) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	var ev domain.TransactionEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.reject(msg, fmt.Errorf("decode transaction event: %w", err))
		return true
	}
	if ev.Payload == nil {
		c.reject(msg, errEmptyPayload)
		return true
	}
	if ev.Payload.TransactionID == "" && len(msg.Key) > 0 {
		ev.Payload.TransactionID = string(msg.Key)
	}

	assessment, err := c.scorer.Score(ctx, ev.Payload)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		metrics.ObserveEvent("aborted")
		c.log.Info("scoring aborted, leaving message for redelivery",
			logger.StringField("topic", msg.Topic),
			logger.IntField("partition", int(msg.Partition)),
			logger.IntField("offset", int(msg.Offset)),
		)
		return false
	}
	if err != nil {
		c.reject(msg, fmt.Errorf("score transaction: %w", err))
		return true
	}

	out := domain.NewAssessmentEvent(ev.EventID, assessment)
	if err := c.publisher.PublishAssessment(ctx, out); err != nil {
		metrics.ObserveEvent("publish_failed")
		c.log.Error("failed to publish assessment",
			logger.StringField("transaction_id", assessment.TransactionID),
			logger.ErrorField(err),
		)
		return true
	}

	metrics.ObserveEvent("scored")
	return true
}

func (c *Consumer) reject(msg *sarama.ConsumerMessage, err error) {
	metrics.ObserveEvent("rejected")
	c.log.EventRejected(msg.Topic, msg.Partition, msg.Offset, err)
}
