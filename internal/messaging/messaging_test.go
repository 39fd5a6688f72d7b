package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/upi-risk-service/internal/domain"
	"github.com/banking/upi-risk-service/internal/pkg/logger"
)

type stubScorer struct {
	err  error
	seen []*domain.ScoreRequest
}

func (s *stubScorer) Score(_ context.Context, req *domain.ScoreRequest) (*domain.RiskAssessment, error) {
	s.seen = append(s.seen, req)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.RiskAssessment{
		TransactionID: req.TransactionID,
		FinalScore:    0.2,
		Decision:      domain.DecisionApprove,
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []*domain.AssessmentEvent
}

func (p *recordingPublisher) PublishAssessment(_ context.Context, ev *domain.AssessmentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string { return "member-1" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return "payments.upi.transactions" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func transactionMessage(t *testing.T, offset int64, req *domain.ScoreRequest) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(domain.TransactionEvent{
		EventID:   uuid.New(),
		EventType: domain.EventTypeTransactionSubmitted,
		Timestamp: time.Now().UTC(),
		Payload:   req,
	})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "payments.upi.transactions", Offset: offset, Value: data}
}

func newTestConsumer(scorer Scorer, pub AssessmentPublisher) *Consumer {
	return NewConsumer(nil, "payments.upi.transactions", scorer, pub, logger.NewNop())
}

func TestHandleMessage_ScoresAndPublishes(t *testing.T) {
	scorer := &stubScorer{}
	pub := &recordingPublisher{}
	c := newTestConsumer(scorer, pub)

	msg := transactionMessage(t, 7, &domain.ScoreRequest{
		TransactionInput: domain.TransactionInput{TransactionID: "tx-1", Amount: "1000"},
	})
	c.handleMessage(context.Background(), msg)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "tx-1", ev.TransactionID)
	assert.Equal(t, domain.EventTypeRiskAssessed, ev.EventType)
	assert.Equal(t, domain.DecisionApprove, ev.Assessment.Decision)
	assert.NotEqual(t, uuid.Nil, ev.CausationID)
}

func TestHandleMessage_KeyFillsMissingTransactionID(t *testing.T) {
	scorer := &stubScorer{}
	c := newTestConsumer(scorer, &recordingPublisher{})

	msg := transactionMessage(t, 1, &domain.ScoreRequest{TransactionInput: domain.TransactionInput{Amount: "5"}})
	msg.Key = []byte("tx-from-key")
	c.handleMessage(context.Background(), msg)

	require.Len(t, scorer.seen, 1)
	assert.Equal(t, "tx-from-key", scorer.seen[0].TransactionID)
}

func TestHandleMessage_RejectsMalformed(t *testing.T) {
	scorer := &stubScorer{}
	pub := &recordingPublisher{}
	c := newTestConsumer(scorer, pub)

	c.handleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{not json")})
	c.handleMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"event_type":"upi.transaction.submitted"}`)})

	assert.Empty(t, scorer.seen)
	assert.Empty(t, pub.events)
}

func TestHandleMessage_ScorerErrorNotPublished(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestConsumer(&stubScorer{err: errors.New("boom")}, pub)

	handled := c.handleMessage(context.Background(), transactionMessage(t, 1, &domain.ScoreRequest{}))

	assert.True(t, handled)
	assert.Empty(t, pub.events)
}

func TestHandleMessage_AbortedScoringNotHandled(t *testing.T) {
	for _, err := range []error{context.Canceled, context.DeadlineExceeded} {
		pub := &recordingPublisher{}
		c := newTestConsumer(&stubScorer{err: err}, pub)

		handled := c.handleMessage(context.Background(), transactionMessage(t, 1, &domain.ScoreRequest{}))

		assert.False(t, handled, err.Error())
		assert.Empty(t, pub.events)
	}
}

func TestConsumeClaim_LeavesAbortedMessageUnmarked(t *testing.T) {
	pub := &recordingPublisher{}
	c := newTestConsumer(&stubScorer{err: context.Canceled}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 2)}
	claim.msgs <- transactionMessage(t, 20, &domain.ScoreRequest{TransactionInput: domain.TransactionInput{TransactionID: "a"}})
	claim.msgs <- transactionMessage(t, 21, &domain.ScoreRequest{TransactionInput: domain.TransactionInput{TransactionID: "b"}})
	close(claim.msgs)

	session := &fakeSession{ctx: ctx}
	require.NoError(t, c.ConsumeClaim(session, claim))

	assert.Empty(t, session.marked)
	assert.Empty(t, pub.events)
}

func TestConsumeClaim_MarksEveryMessage(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	c := newTestConsumer(&stubScorer{}, pub)

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 3)}
	claim.msgs <- transactionMessage(t, 10, &domain.ScoreRequest{TransactionInput: domain.TransactionInput{TransactionID: "a"}})
	claim.msgs <- &sarama.ConsumerMessage{Offset: 11, Value: []byte("garbage")}
	claim.msgs <- transactionMessage(t, 12, &domain.ScoreRequest{TransactionInput: domain.TransactionInput{TransactionID: "b"}})
	close(claim.msgs)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(session, claim))

	assert.Equal(t, []int64{10, 11, 12}, session.marked)
	assert.Len(t, pub.events, 2)
}

func TestConsumeClaim_StopsOnSessionEnd(t *testing.T) {
	c := newTestConsumer(&stubScorer{}, &recordingPublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage)}
	assert.NoError(t, c.ConsumeClaim(&fakeSession{ctx: ctx}, claim))
}

func TestPublisher_SendsKeyedEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "payments.upi.risk_assessments" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "tx-9" {
			return errors.New("unexpected key " + string(key))
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev domain.AssessmentEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			return err
		}
		if ev.Assessment == nil || ev.Assessment.Decision != domain.DecisionReview {
			return errors.New("assessment missing from payload")
		}
		return nil
	})

	pub := NewPublisher(producer, "payments.upi.risk_assessments")
	ev := domain.NewAssessmentEvent(uuid.New(), domain.NewFallbackAssessment("tx-9", errors.New("bad stats")))

	require.NoError(t, pub.PublishAssessment(context.Background(), ev))
	require.NoError(t, pub.Close())
}

func TestPublisher_PropagatesSendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	pub := NewPublisher(producer, "payments.upi.risk_assessments")
	err := pub.PublishAssessment(context.Background(), domain.NewAssessmentEvent(uuid.New(), &domain.RiskAssessment{TransactionID: "tx-1"}))

	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, pub.Close())
}
