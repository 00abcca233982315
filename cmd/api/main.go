package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/pizzaflow/internal/api"
	"github.com/joao-fontenele/pizzaflow/internal/catalog"
	"github.com/joao-fontenele/pizzaflow/internal/config"
	"github.com/joao-fontenele/pizzaflow/internal/docstore"
	"github.com/joao-fontenele/pizzaflow/internal/domain"
	"github.com/joao-fontenele/pizzaflow/internal/mail"
	"github.com/joao-fontenele/pizzaflow/internal/messaging"
	"github.com/joao-fontenele/pizzaflow/internal/payment"
	"github.com/joao-fontenele/pizzaflow/internal/telemetry"
)

const serviceName = "pizzaflow-api"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadAPI()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, "0.1.0", cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.TracingEnabled)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	checkoutMetrics, err := telemetry.NewCheckoutMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create checkout metrics", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open document store", "error", err, "backend", cfg.Store.Backend)
		os.Exit(1)
	}
	defer closeStore()

	deps := api.Deps{
		Store:   store,
		Payment: payment.NewClient(cfg.PaymentURL, cfg.PaymentSecretKey, cfg.PaymentTimeout, logger),
		Metrics: checkoutMetrics,
	}

	if cfg.MailServiceURL != "" {
		deps.Mail = mail.NewClient(cfg.MailServiceURL, 10*time.Second)
	} else {
		logger.Warn("MAIL_SERVICE_URL not set, invoices are disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		defer func() { _ = producer.Close() }()
		deps.Events = producer
	}

	app := api.New(deps, api.Config{
		Currency:    cfg.Currency,
		MailFrom:    cfg.MailFrom,
		TokenTTL:    cfg.TokenTTL,
		TaskLimit:   cfg.TaskLimit,
		TaskTimeout: cfg.TaskTimeout,
	}, logger)

	if err := seedCatalog(ctx, app.Catalog, cfg.CatalogSeedFile); err != nil {
		logger.Error("failed to seed catalog", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(app.Routes(metricsHandler), serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout: 10 * time.Second,
		// Checkout waits on the payment gateway and the mail transport.
		WriteTimeout: cfg.PaymentTimeout + 20*time.Second,
	}

	go func() {
		logger.Info("starting api service", "port", cfg.Port, "store", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	app.Close()
}

func openStore(ctx context.Context, cfg config.Store) (docstore.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := telemetry.OpenDB(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return docstore.NewPostgresStore(db), func() { _ = db.Close() }, nil

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return docstore.NewRedisStore(client, cfg.RedisPrefix), func() { _ = client.Close() }, nil

	case config.BackendMemory:
		return docstore.NewMemoryStore(), func() {}, nil

	default:
		store, err := docstore.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func seedCatalog(ctx context.Context, cat *catalog.Catalog, path string) error {
	var (
		items []domain.Item
		err   error
	)
	if path == "" {
		items, err = catalog.DefaultMenu()
	} else {
		f, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer func() { _ = f.Close() }()
		items, err = catalog.LoadMenu(f)
	}
	if err != nil {
		return err
	}

	_, err = cat.Seed(ctx, items)
	return err
}
