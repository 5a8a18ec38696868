package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/reservesurf/booking-funnel/internal/adapters/crdb"
	mongoadapter "github.com/reservesurf/booking-funnel/internal/adapters/mongo"
	redisadapter "github.com/reservesurf/booking-funnel/internal/adapters/redis"
	"github.com/reservesurf/booking-funnel/internal/checkout"
	"github.com/reservesurf/booking-funnel/internal/clock"
	"github.com/reservesurf/booking-funnel/internal/config"
	httphandler "github.com/reservesurf/booking-funnel/internal/http"
	"github.com/reservesurf/booking-funnel/internal/idempotency"
	"github.com/reservesurf/booking-funnel/internal/observability"
	"github.com/reservesurf/booking-funnel/internal/payment"
	"github.com/reservesurf/booking-funnel/internal/pricing"
	"github.com/reservesurf/booking-funnel/internal/rateLimit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()
	clk := clock.NewSystem()

	pool, err := pgxpool.New(context.Background(), cfg.PGDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	bookings := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("surf")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	promos := mongoadapter.NewPromoRepository(mongoDB)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	sessions := redisadapter.NewSessionStore(redisClient, cfg.SessionTTL)
	lock := redisadapter.NewCheckoutLock(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := rateLimit.NewRateLimiter(redisClient)

	var gateway payment.Gateway
	if cfg.GatewayURL != "" {
		gateway = payment.NewHTTPGateway(cfg.GatewayURL, &http.Client{Timeout: cfg.PaymentTimeout})
	} else {
		logger.Warn("PAYMENT_GATEWAY_URL unset, using simulator")
		gateway = payment.Simulator{}
	}

	engine := pricing.NewEngine(cfg.Pricing)
	orch := checkout.NewOrchestrator(engine, catalog, promos, bookings, gateway, lock, audit, clk, cfg.WaiverValidity, cfg.PaymentTimeout)

	handlers := httphandler.NewHandlers(cfg, logger, catalog, promos, sessions, engine, orch, bookings, idemp, audit, clk)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
