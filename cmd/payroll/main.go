package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/payroll/internal/payroll/banking"
	"github.com/gartstein/payroll/internal/payroll/config"
	"github.com/gartstein/payroll/internal/payroll/controller"
	gorm "github.com/gartstein/payroll/internal/payroll/db"
	"github.com/gartstein/payroll/internal/payroll/events"
	"github.com/gartstein/payroll/internal/payroll/handlers"
	"github.com/gartstein/payroll/internal/payroll/models"
	"go.uber.org/zap"
)

const outboxReplayLimit = 1000

func main() {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Error("failed to sync logger", zap.Error(err))
		}
	}(logger)

	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	opts := []models.Option{
		models.WithClock(models.SystemClock{}),
		models.WithHolidayPolicy(cfg.Policy()),
	}
	repo, err := gorm.NewRepository(initDatabase(cfg), opts...)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()

	producer, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
	if err != nil {
		logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	bank := banking.NewClient(banking.Config{
		URL:        cfg.BankVerifyURL,
		MaxRetries: cfg.BankMaxRetries,
	}, nil, logger)

	payrollSvc := controller.NewPayrollService(repo, producer, bank, controller.Config{
		Currency:      cfg.Currency,
		HolidayPolicy: cfg.Policy(),
		Clock:         models.SystemClock{},
	}, logger)
	producer.OnDelivered(payrollSvc.Acknowledge)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := payrollSvc.ReplayOutbox(ctx, outboxReplayLimit); err != nil {
		logger.Error("failed to replay outbox", zap.Error(err))
	}

	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.SettlementTopic, logger)
	consumer.RegisterHandler(payrollSvc.HandleSettlement)
	consumer.Start(ctx)

	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger)
	if err := server.RegisterHTTPHandler(handlers.NewPayrollHandler(payrollSvc, logger), cfg.JWTSecret); err != nil {
		logger.Fatal("Failed to register HTTP handlers", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	waitForShutdown(server, serverErr, logger)

	cancel()
	consumer.Close()
	consumer.Wait()
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger
}

// initDatabase initializes the database connection.
func initDatabase(cfg *config.Config) *gorm.Config {
	return &gorm.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}
}

// waitForShutdown blocks until an interrupt, SIGTERM or a server failure,
// then shuts down servers.
func waitForShutdown(server *handlers.Server, serverErr <-chan error, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	server.Stop()
	logger.Info("Servers stopped properly")
}
