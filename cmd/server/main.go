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
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"organlink/internal/audit"
	"organlink/internal/ledger"
	"organlink/internal/match"
	"organlink/internal/match/lock"
	matchmetrics "organlink/internal/match/metrics"
	"organlink/internal/party"
	"organlink/internal/platform/config"
	"organlink/internal/platform/httpserver"
	"organlink/internal/platform/logger"
	"organlink/internal/platform/metrics"
	platformredis "organlink/internal/platform/redis"
	"organlink/internal/store"
	"organlink/internal/trustledger"
	httptransport "organlink/internal/transport/http"
)

// main wires all backends and keeps the server lifecycle small. Every
// external backend is optional: with nothing configured the process runs
// fully in-memory for demos and local development.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, cleanupStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanupStores()

	cycleLock, cleanupLock, err := buildCycleLock(cfg, log)
	if err != nil {
		return err
	}
	defer cleanupLock()

	emitter, cleanupAudit, err := buildAuditEmitter(cfg, log)
	if err != nil {
		return err
	}
	defer cleanupAudit()

	var trust trustledger.Client
	if cfg.TrustLedgerURL != "" {
		trust = trustledger.NewHTTPClient(cfg.TrustLedgerURL, cfg.TrustLedgerTimeout)
		log.Info("trust ledger configured", "url", cfg.TrustLedgerURL)
	} else {
		trust = trustledger.NewMemoryLedger()
		log.Info("trust ledger not configured, using in-memory ledger")
	}

	matchSvc := match.NewService(
		stores,
		trust,
		match.NewRandomScorer(time.Now().UnixNano()),
		cycleLock,
		emitter,
		matchmetrics.New(),
		log,
		match.WithMirrorTimeout(cfg.TrustLedgerTimeout),
	)
	ledgerSvc := ledger.NewService(stores, trust, log)
	partySvc := party.NewService(stores)

	handler := httptransport.NewHandler(log, matchSvc, ledgerSvc, partySvc,
		httptransport.WithHTTPMetrics(metrics.NewHTTP()))
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting organlink", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// buildStores selects MongoDB when configured, in-memory otherwise, and
// optionally swaps the ledger collection onto the PostgreSQL archive.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*store.Stores, func(), error) {
	cleanup := func() {}
	var stores *store.Stores

	if cfg.MongoURI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, mongooptions.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		db := client.Database(cfg.MongoDB)
		if err := store.EnsureMongoIndexes(connectCtx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		stores = store.NewMongoStores(db)
		cleanup = func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
		log.Info("document store configured", "backend", "mongodb", "database", cfg.MongoDB)
	} else {
		stores = store.NewMemoryStores()
		log.Info("document store not configured, using in-memory stores")
	}

	if cfg.LedgerArchiveDSN != "" {
		db, err := sql.Open("postgres", cfg.LedgerArchiveDSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			cleanup()
			return nil, nil, err
		}
		archive := store.NewPostgresLedgerStore(db)
		if err := archive.Migrate(pingCtx); err != nil {
			_ = db.Close()
			cleanup()
			return nil, nil, err
		}
		stores.Ledgers = archive
		prev := cleanup
		cleanup = func() {
			_ = db.Close()
			prev()
		}
		log.Info("ledger archive configured", "backend", "postgres")
	}

	return stores, cleanup, nil
}

func buildCycleLock(cfg config.Server, log *slog.Logger) (lock.CycleLock, func(), error) {
	client, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Info("redis not configured, using in-process cycle lock")
		return lock.NewMemory(), func() {}, nil
	}
	log.Info("cycle lock configured", "backend", "redis", "ttl", cfg.CycleLockTTL.String())
	return lock.NewRedis(client.Client, cfg.CycleLockTTL), func() { _ = client.Close() }, nil
}

func buildAuditEmitter(cfg config.Server, log *slog.Logger) (audit.Emitter, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return audit.NewLogEmitter(log), func() {}, nil
	}
	emitter, err := audit.NewKafkaEmitter(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		return nil, nil, err
	}
	log.Info("audit stream configured", "backend", "kafka", "topic", cfg.KafkaTopic)
	return emitter, func() { emitter.Close() }, nil
}
