// Command server runs the document issuance and verification API.
// main wires dependencies and the server lifecycle; business logic
// lives in the internal services.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"labcert/internal/artifact"
	"labcert/internal/audit"
	dochandler "labcert/internal/document/handler"
	docmetrics "labcert/internal/document/metrics"
	"labcert/internal/document/service"
	documentstore "labcert/internal/document/store/document"
	templatestore "labcert/internal/document/store/template"
	httpapi "labcert/internal/http"
	"labcert/internal/identity"
	"labcert/internal/platform/config"
	"labcert/internal/platform/httpserver"
	"labcert/internal/platform/logger"
	platformredis "labcert/internal/platform/redis"
	"labcert/internal/ratelimit"
	"labcert/internal/render"
	"labcert/internal/sequence"
	"labcert/internal/serial"
	serialhandler "labcert/internal/serial/handler"
	"labcert/internal/verification"
	verifyhandler "labcert/internal/verification/handler"
	"labcert/internal/verifycode"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence. An empty DATABASE_URL selects the in-memory stores
	// (development and tests only).
	var (
		db            *sql.DB
		documentStore service.DocumentStore
		templateStore service.TemplateStore
		counterStore  sequence.CounterStore
		serialStore   interface {
			serial.Store
			FindBySerial(ctx context.Context, s string) (*serial.Binding, error)
		}
		docFinder verification.DocumentFinder
	)
	if cfg.Postgres.URL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		pgDocuments := documentstore.NewPostgres(db)
		documentStore = pgDocuments
		docFinder = pgDocuments
		templateStore = templatestore.NewPostgres(db)
		counterStore = sequence.NewPostgres(db)
		serialStore = serial.NewPostgres(db)
		log.Info("using postgres stores")
	} else {
		memDocuments := documentstore.NewInMemory()
		documentStore = memDocuments
		docFinder = memDocuments
		templateStore = templatestore.NewInMemory()
		counterStore = sequence.NewInMemoryCounterStore()
		serialStore = serial.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit pipeline: Kafka when brokers are configured, slog otherwise,
	// always behind the async worker so requests never wait on delivery.
	var sink audit.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := audit.NewKafkaPublisher(cfg.Kafka.Brokers, log)
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := kafkaPublisher.Close(flushCtx); err != nil {
				log.Error("failed to flush audit events", "error", err)
			}
		}()
		sink = kafkaPublisher
	} else {
		log.Warn("KAFKA_BROKERS not set, audit events go to the log")
		sink = audit.NewLogPublisher(log)
	}
	auditPublisher := audit.NewAsyncPublisher(sink, 256, log)

	allocator := sequence.NewAllocator(counterStore)

	docServiceOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(docmetrics.New()),
		service.WithAuditPublisher(auditPublisher),
		service.WithApprovalRequired(cfg.Verify.ApprovalRequired),
	}
	if db != nil {
		docServiceOpts = append(docServiceOpts, service.WithStoreTx(service.NewSQLStoreTx(db)))
	}
	docService := service.New(
		documentStore,
		templateStore,
		allocator,
		verifycode.New(),
		render.NewTextRenderer(),
		artifact.NewInMemory(),
		docServiceOpts...,
	)

	serialService := serial.New(serialStore, allocator,
		serial.WithLogger(log),
		serial.WithAuditPublisher(auditPublisher),
		serial.WithVerifyBaseURL(cfg.Verify.BaseURL),
	)

	directory := identity.NewInMemoryDirectory()
	verifyOpts := []verification.Option{
		verification.WithLogger(log),
		verification.WithSerialFinder(serialStore),
	}
	if redisClient != nil {
		verifyOpts = append(verifyOpts,
			verification.WithNegativeCache(verification.NewRedisNegativeCache(redisClient.Client, cfg.Verify.NegativeCacheTTL)))
	}
	verifyService := verification.New(docFinder, directory, verifyOpts...)

	var limiterStore ratelimit.Store
	if redisClient != nil {
		limiterStore = ratelimit.NewRedisStore(redisClient.Client)
	} else {
		limiterStore = ratelimit.NewInMemoryStore()
	}
	limiter := ratelimit.NewMiddleware(limiterStore, cfg.RateLimit.Limit, cfg.RateLimit.Window, log,
		ratelimit.WithDisabled(!cfg.RateLimit.Enabled))

	tokens := identity.NewTokenService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	router := httpapi.NewRouter(httpapi.Deps{
		Documents:      dochandler.New(docService, log),
		Serials:        serialhandler.New(serialService, log),
		Verification:   verifyhandler.New(verifyService, log),
		TokenValidator: identity.NewTokenServiceAdapter(tokens),
		AdminTokens:    identity.NewAdminTokenVerifier(cfg.Auth.AdminTokenHash),
		RateLimiter:    limiter,
		Logger:         log,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return auditPublisher.Run(groupCtx)
	})
	group.Go(func() error {
		log.Info("starting server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
