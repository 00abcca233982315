package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joao-fontenele/pizzaflow/internal/config"
	"github.com/joao-fontenele/pizzaflow/internal/messaging"
	"github.com/joao-fontenele/pizzaflow/internal/sms"
	"github.com/joao-fontenele/pizzaflow/internal/telemetry"
	"github.com/joao-fontenele/pizzaflow/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadWorker()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "pizzaflow-worker", "0.1.0", cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.TracingEnabled)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.OrderEventsTopic, cfg.GroupID)
	defer func() { _ = consumer.Close() }()

	smsClient := sms.NewClient(cfg.SMSURL, cfg.SMSAccountSID, cfg.SMSAuthToken, cfg.SMSFrom, 10*time.Second)
	notificationHandler := worker.NewNotificationHandler(smsClient, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", cfg.KafkaBrokers, "topic", cfg.OrderEventsTopic)

	if err := consumer.Consume(ctx, notificationHandler.Handle); err != nil {
		if ctx.Err() == context.Canceled {
			logger.Info("consumer stopped")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
