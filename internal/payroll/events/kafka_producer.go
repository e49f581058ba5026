// Package events moves payroll domain events to and from Kafka.
package events

import (
	"context"
	"encoding/json"

	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeliveryFunc is called after an event has been written to Kafka.
type DeliveryFunc func(ctx context.Context, event models.Event) error

// Producer publishes domain events asynchronously. Events are keyed by their
// aggregate id so that one aggregate's events stay ordered on a partition.
type Producer struct {
	writer    KafkaWriter
	events    chan models.Event
	logger    *zap.Logger
	closeChan chan struct{}
	done      chan struct{}
	delivered DeliveryFunc
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(brokers []string, topic string, logger *zap.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.String("topic", topic), zap.Error(err))
	}
	return nil
}

func NewProducer(brokers []string, logger *zap.Logger, topic string) (*Producer, error) {
	if err := EnsureTopic(brokers, topic, logger); err != nil {
		return nil, err
	}
	return newProducer(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		Topic:    topic,
	}, logger, 1000), nil
}

func newProducer(writer KafkaWriter, logger *zap.Logger, buffer int) *Producer {
	p := &Producer{
		writer:    writer,
		events:    make(chan models.Event, buffer),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go p.eventLoop()
	return p
}

// OnDelivered registers a callback for successfully written events. It must
// be set before the first Produce.
func (p *Producer) OnDelivered(fn DeliveryFunc) {
	p.delivered = fn
}

// Produce queues event for publishing. A full queue drops the event; it
// stays in the outbox and is replayed on the next start.
func (p *Producer) Produce(event models.Event) {
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("aggregate_id", event.AggregateID.String()),
		)
	}
}

func (p *Producer) eventLoop() {
	defer close(p.done)
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event models.Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AggregateID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "aggregate_type", Value: []byte(event.AggregateType)},
		},
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("aggregate_id", event.AggregateID.String()),
		)
		return
	}

	if p.delivered != nil {
		if err := p.delivered(ctx, event); err != nil {
			p.logger.Error("Failed to acknowledge delivered event",
				zap.Error(err),
				zap.String("event_id", event.ID.String()),
			)
		}
	}
}

func (p *Producer) Close() {
	close(p.closeChan)
	if p.done != nil {
		<-p.done
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}
