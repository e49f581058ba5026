package test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/payroll/internal/payroll/controller"
	"github.com/gartstein/payroll/internal/payroll/db"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/events"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	eventsTopic     = "payroll-events-it"
	settlementTopic = "payment-settlements-it"
)

var kafkaBrokers = []string{"localhost:9092"}

type IntegrationTestSuite struct {
	suite.Suite
	dbRepo      *db.Repository
	producer    *events.Producer
	kafkaReader *kafka.Reader
	service     *controller.PayrollService
	logger      *zap.Logger
	testTimeout time.Duration
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.logger = zap.NewNop()
	s.testTimeout = 30 * time.Second

	var err error
	s.dbRepo, err = initializeDBWithRetry()
	if err != nil {
		s.T().Fatal("Database initialization failed:", err)
	}

	s.producer, s.kafkaReader, err = initializeKafkaWithRetry(eventsTopic)
	if err != nil {
		s.T().Fatal("Kafka initialization failed:", err)
	}

	s.service = controller.NewPayrollService(s.dbRepo, s.producer, nil, controller.Config{Currency: "GBP"}, s.logger)
	s.producer.OnDelivered(s.service.Acknowledge)
}

func initializeDBWithRetry() (*db.Repository, error) {
	cfg := &db.Config{
		Host:     "localhost",
		Port:     5432,
		User:     "test",
		Password: "test",
		DBName:   "test",
		SSLMode:  "disable",
	}

	var repo *db.Repository
	err := backoff.Retry(func() error {
		var err error
		repo, err = db.NewRepository(cfg)
		return err
	}, backoff.NewExponentialBackOff())

	return repo, err
}

func initializeKafkaWithRetry(topic string) (*events.Producer, *kafka.Reader, error) {
	var producer *events.Producer
	err := backoff.Retry(func() error {
		var err error
		producer, err = events.NewProducer(kafkaBrokers, zap.NewNop(), topic)
		if err != nil {
			return fmt.Errorf("failed to create Kafka producer: %w", err)
		}
		return nil
	}, backoff.NewExponentialBackOff())
	if err != nil {
		return nil, nil, fmt.Errorf("Kafka producer initialization failed: %w", err)
	}

	err = backoff.Retry(func() error {
		conn, err := kafka.Dial("tcp", kafkaBrokers[0])
		if err != nil {
			return err
		}
		defer conn.Close()

		partitions, err := conn.ReadPartitions(topic)
		if err != nil || len(partitions) == 0 {
			return fmt.Errorf("topic %s not found", topic)
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		return nil, nil, fmt.Errorf("Kafka topic check failed: %w", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkaBrokers,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return producer, reader, nil
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
	if s.kafkaReader != nil {
		_ = s.kafkaReader.Close()
	}
	if s.dbRepo != nil {
		_ = s.dbRepo.Close()
	}
}

func (s *IntegrationTestSuite) SetupTest() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	err := s.dbRepo.Exec(ctx, "TRUNCATE TABLE employees, holiday_adjustments, departments, memberships, "+
		"payments, salaries, bank_details, outbox_events CASCADE")
	if err != nil {
		s.T().Fatal("Failed to clean database:", err)
	}
}

func (s *IntegrationTestSuite) hire(ctx context.Context) *models.Employee {
	dept, err := s.service.CreateDepartment(ctx, "Engineering", nil)
	if err != nil {
		s.T().Fatal("CreateDepartment failed:", err)
	}
	emp, err := s.service.CreateEmployee(ctx, controller.NewEmployee{
		Name:         "Alice",
		Kind:         models.KindFullTime,
		DepartmentID: dept.ID(),
		AnnualPay:    decimal.NewFromInt(36500),
	})
	if err != nil {
		s.T().Fatal("CreateEmployee failed:", err)
	}
	return emp
}

func (s *IntegrationTestSuite) TestEmployeeCreatedIsPublished() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	emp := s.hire(ctx)

	event := s.consumeEvent(ctx, models.EmployeeCreated, emp.ID())
	assert.Equal(s.T(), models.AggregateEmployee, event.AggregateType)

	// Delivery is acknowledged asynchronously, so poll until the outbox drains.
	err := backoff.Retry(func() error {
		pending, err := s.dbRepo.PendingOutbox(ctx, 100)
		if err != nil {
			return backoff.Permanent(err)
		}
		if len(pending) > 0 {
			return fmt.Errorf("%d events still pending", len(pending))
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(500*time.Millisecond), 20), ctx))
	assert.NoError(s.T(), err)
}

func (s *IntegrationTestSuite) TestSettlementIsConsumed() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	if err := events.EnsureTopic(kafkaBrokers, settlementTopic, s.logger); err != nil {
		s.T().Fatal("EnsureTopic failed:", err)
	}
	consumer := events.NewConsumer(kafkaBrokers, "payroll-it-"+uuid.NewString(), settlementTopic, s.logger)
	consumer.RegisterHandler(s.service.HandleSettlement)
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	consumer.Start(consumerCtx)
	defer func() {
		stopConsumer()
		consumer.Wait()
		consumer.Close()
	}()

	emp := s.hire(ctx)
	period, err := models.ParseDateRange("2027-01-01", "2027-01-31")
	if err != nil {
		s.T().Fatal(err)
	}
	payment, err := s.service.RecordPayment(ctx, emp.ID(), period, nil, "")
	if err != nil {
		s.T().Fatal("RecordPayment failed:", err)
	}

	value, err := json.Marshal(events.Settlement{PaymentID: payment.ID(), Status: events.SettlementSuccessful})
	if err != nil {
		s.T().Fatal(err)
	}
	writer := &kafka.Writer{Addr: kafka.TCP(kafkaBrokers...), Topic: settlementTopic}
	defer writer.Close()
	if err := writer.WriteMessages(ctx, kafka.Message{Key: []byte(payment.ID().String()), Value: value}); err != nil {
		s.T().Fatal("Failed to write settlement:", err)
	}

	err = backoff.Retry(func() error {
		stored, err := s.dbRepo.GetPayment(ctx, payment.ID())
		if err != nil {
			return backoff.Permanent(err)
		}
		if stored.Status() != models.PaymentStatusSuccessful {
			return fmt.Errorf("payment is still %s", stored.Status())
		}
		return nil
	}, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
	assert.NoError(s.T(), err)

	s.consumeEvent(ctx, models.PaymentSucceeded, payment.ID())
}

func (s *IntegrationTestSuite) TestUnknownEmployee() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	_, err := s.service.GetEmployee(ctx, uuid.New())
	assert.ErrorIs(s.T(), err, e.ErrNotFound)
}

func (s *IntegrationTestSuite) consumeEvent(ctx context.Context, eventType models.EventType, aggregateID uuid.UUID) models.Event {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	maxRetries := 200
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			s.T().Fatalf("Timeout: No %s event received after %d attempts", eventType, attempts)
			return models.Event{}
		default:
			if attempts >= maxRetries {
				s.T().Fatalf("Max retry attempts reached for %s", eventType)
				return models.Event{}
			}
			msg, err := s.kafkaReader.ReadMessage(ctx)
			if err != nil {
				s.T().Logf("Kafka read attempt %d failed: %v", attempts, err)
				attempts++
				time.Sleep(1 * time.Second)
				continue
			}
			if string(msg.Key) != aggregateID.String() {
				attempts++
				continue
			}
			var event models.Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				s.T().Fatalf("Failed to unmarshal Kafka message: %v", err)
			}
			if event.Type != eventType {
				s.T().Logf("Skipping message with unmatched eventType: %s (Expected: %s)", event.Type, eventType)
				attempts++
				continue
			}
			s.T().Logf("Consumed event: %s, ID=%s, attempts=%d", eventType, event.AggregateID, attempts)
			return event
		}
	}
}
