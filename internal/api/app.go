// Package api assembles the pizza ordering components and their HTTP routes.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/joao-fontenele/pizzaflow/internal/catalog"
	"github.com/joao-fontenele/pizzaflow/internal/checkout"
	"github.com/joao-fontenele/pizzaflow/internal/docstore"
	"github.com/joao-fontenele/pizzaflow/internal/mail"
	"github.com/joao-fontenele/pizzaflow/internal/orders"
	"github.com/joao-fontenele/pizzaflow/internal/tasks"
	"github.com/joao-fontenele/pizzaflow/internal/telemetry"
	"github.com/joao-fontenele/pizzaflow/internal/tokens"
	"github.com/joao-fontenele/pizzaflow/internal/users"
)

type Config struct {
	Currency    string
	MailFrom    string
	TokenTTL    time.Duration
	TaskLimit   int
	TaskTimeout time.Duration
}

// Deps are the collaborators that live outside the process. Mail and Events
// may be nil: invoices and order events are then skipped.
type Deps struct {
	Store   docstore.Store
	Payment orders.PaymentGateway
	Mail    mail.Sender
	Events  checkout.EventPublisher
	Metrics *telemetry.CheckoutMetrics
}

type App struct {
	Catalog      *catalog.Catalog
	Ledger       *users.Ledger
	Verifier     *tokens.Verifier
	Lifecycle    *orders.Lifecycle
	Orchestrator *checkout.Orchestrator
	Runner       *tasks.Runner

	logger *slog.Logger
}

// New wires the components over deps. Callers must call Close on shutdown so
// pending background tasks finish.
func New(deps Deps, cfg Config, logger *slog.Logger, opts ...users.Option) *App {
	cat := catalog.New(deps.Store, logger)
	ledger := users.NewLedger(deps.Store, cat, logger, opts...)
	verifier := tokens.NewVerifier(deps.Store, ledger, cfg.TokenTTL, logger)

	var invoices orders.InvoiceSender
	if deps.Mail != nil {
		invoices = mail.NewInvoiceSender(deps.Mail, cfg.MailFrom, cfg.Currency, logger)
	}

	repo := orders.NewRepository(deps.Store, logger)
	lifecycle := orders.NewLifecycle(repo, cat, deps.Payment, invoices, ledger,
		orders.Config{Currency: cfg.Currency}, logger,
		orders.WithMetrics(deps.Metrics),
	)
	ledger.SetOrderRemover(repo)
	ledger.SetTokenRevoker(verifier)

	runner := tasks.NewRunner(cfg.TaskLimit, cfg.TaskTimeout, logger)
	orchestrator := checkout.NewOrchestrator(verifier, ledger, lifecycle, deps.Events, runner, deps.Metrics, logger)

	return &App{
		Catalog:      cat,
		Ledger:       ledger,
		Verifier:     verifier,
		Lifecycle:    lifecycle,
		Orchestrator: orchestrator,
		Runner:       runner,
		logger:       logger,
	}
}

// Routes registers every endpoint. metrics may be nil.
func (a *App) Routes(metrics http.Handler) *http.ServeMux {
	userHandler := users.NewHandler(a.Ledger, a.logger)
	tokenHandler := tokens.NewHandler(a.Verifier, a.logger)
	catalogHandler := catalog.NewHandler(a.Catalog, a.logger)
	orderHandler := orders.NewHandler(a.Lifecycle, a.logger)
	checkoutHandler := checkout.NewHandler(a.Orchestrator, a.logger)

	auth := func(h http.HandlerFunc) http.HandlerFunc {
		return telemetry.WithHTTPRoute(tokens.Require(a.Verifier, a.logger, h))
	}
	public := telemetry.WithHTTPRoute

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users", public(userHandler.HandleCreate))
	mux.HandleFunc("GET /users", auth(userHandler.HandleGet))
	mux.HandleFunc("PUT /users", auth(userHandler.HandleUpdate))
	mux.HandleFunc("DELETE /users", auth(userHandler.HandleDelete))
	mux.HandleFunc("PUT /users/cart", auth(userHandler.HandleSetCart))
	// Checkout verifies the token itself as the first step of the flow.
	mux.HandleFunc("PUT /users/checkout", public(checkoutHandler.HandleCheckout))

	mux.HandleFunc("POST /tokens", public(tokenHandler.HandleCreate))
	mux.HandleFunc("GET /tokens", public(tokenHandler.HandleGet))
	mux.HandleFunc("PUT /tokens", public(tokenHandler.HandleExtend))
	mux.HandleFunc("DELETE /tokens", public(tokenHandler.HandleDelete))

	mux.HandleFunc("GET /items", auth(catalogHandler.HandleGet))

	mux.HandleFunc("POST /orders", auth(orderHandler.HandleCreate))
	mux.HandleFunc("GET /orders", auth(orderHandler.HandleGet))
	mux.HandleFunc("PUT /orders", auth(orderHandler.HandleUpdate))
	mux.HandleFunc("DELETE /orders", auth(orderHandler.HandleDelete))

	mux.HandleFunc("GET /health", handleHealth)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}

// Close waits for background tasks launched by request handlers.
func (a *App) Close() {
	a.Runner.Wait()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
