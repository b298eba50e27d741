package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/skytrip/flight-bookings/internal/cache"
	"github.com/skytrip/flight-bookings/internal/document"
	"github.com/skytrip/flight-bookings/internal/domain"
	"github.com/skytrip/flight-bookings/internal/http/handlers"
	"github.com/skytrip/flight-bookings/internal/notify"
	"github.com/skytrip/flight-bookings/internal/payment"
	"github.com/skytrip/flight-bookings/internal/provider"
	"github.com/skytrip/flight-bookings/internal/repo/postgres"
	"github.com/skytrip/flight-bookings/internal/saga"
	"github.com/skytrip/flight-bookings/pkg/config"
	"github.com/skytrip/flight-bookings/pkg/database"
	"github.com/skytrip/flight-bookings/pkg/events"
	"github.com/skytrip/flight-bookings/pkg/logger"
	mw "github.com/skytrip/flight-bookings/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to Redis (idempotent booking replay)
	store, err := cache.NewStore(cfg.Redis)
	if err != nil {
		logger.Error("Failed to configure Redis", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// External services
	flights := provider.NewClient(cfg.Amadeus)
	payments := payment.NewCoordinator(cfg.Stripe)
	engine := document.NewEngine(cfg.Document)
	mailer := newMailer(cfg.Email)

	issuer := domain.IssuerInfo{
		Name:     cfg.Document.IssuerName,
		TermsURL: cfg.Document.TermsURL,
	}

	// Repositories
	orderRepo := postgres.NewOrderRepository(pool)

	// Booking sessions
	sessions := saga.NewManager(func(userID string) *saga.Saga {
		return saga.New(saga.Deps{
			Flights:  flights,
			Payments: payments,
			Renderer: engine,
			Mailer:   mailer,
			Orders:   orderRepo,
			Bus:      eventBus,
			Amount:   payment.AmountFromTotal,
			Issuer:   issuer,
			UserID:   userID,
		})
	}, 0)
	sessions.StartJanitor(ctx)

	// Handlers
	flightsHandler := handlers.NewFlightsHandler(flights, orderRepo, eventBus)
	paymentsHandler := handlers.NewPaymentsHandler(payments, cfg.Stripe.WebhookSecret, eventBus)
	documentsHandler := handlers.NewDocumentsHandler(engine, mailer, eventBus, issuer)
	ordersHandler := handlers.NewOrdersHandler(orderRepo)
	sessionsHandler := handlers.NewSessionsHandler(sessions)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings-api"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.OptionalJWT(cfg.Auth.JWTSecret))

	r.Route("/api", func(r chi.Router) {
		r.Route("/flights", func(r chi.Router) {
			r.Post("/search", flightsHandler.Search)
			r.Post("/price", flightsHandler.Price)
			r.With(mw.Idempotency(store)).Post("/book", flightsHandler.Book)
			r.Get("/locations", flightsHandler.Locations)
		})
		r.Mount("/payments", paymentsHandler.Routes())
		r.Mount("/pdf", documentsHandler.Routes())
		r.Mount("/orders", ordersHandler.Routes())
		r.Mount("/booking/sessions", sessionsHandler.Routes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down bookings API...")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting bookings API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// newMailer picks the transport: dev logging, MailerSend when a key is
// configured, otherwise SMTP. SMTP verification failure is startup-fatal so
// a misconfigured transport never fails silently at send time.
func newMailer(cfg config.EmailConfig) notify.Mailer {
	if cfg.DevMode {
		logger.Info("Email dev mode enabled, tickets logged instead of sent")
		return notify.NewDevMailer()
	}

	if cfg.MailerSendKey != "" {
		m, err := notify.NewMailerSend(cfg)
		if err == nil {
			logger.Info("Using MailerSend transport")
			return m
		}
		logger.Warn("MailerSend misconfigured, falling back to SMTP", "error", err)
	}

	m, err := notify.NewSMTPMailer(cfg)
	if err != nil {
		logger.Error("SMTP transport verification failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Using SMTP transport", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
	return m
}
