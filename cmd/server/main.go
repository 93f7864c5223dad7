package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	admhandler "vaxtrack/internal/administration/handler"
	admmetrics "vaxtrack/internal/administration/metrics"
	admservice "vaxtrack/internal/administration/service"
	admstore "vaxtrack/internal/administration/store"
	comphandler "vaxtrack/internal/compliance/handler"
	compservice "vaxtrack/internal/compliance/service"
	compstore "vaxtrack/internal/compliance/store"
	dirhandler "vaxtrack/internal/directory/handler"
	dirservice "vaxtrack/internal/directory/service"
	dirstore "vaxtrack/internal/directory/store"
	invhandler "vaxtrack/internal/inventory/handler"
	invmetrics "vaxtrack/internal/inventory/metrics"
	invservice "vaxtrack/internal/inventory/service"
	invstore "vaxtrack/internal/inventory/store"
	"vaxtrack/internal/platform/config"
	"vaxtrack/internal/platform/httpserver"
	"vaxtrack/internal/platform/logger"
	"vaxtrack/internal/platform/postgres"
	platformredis "vaxtrack/internal/platform/redis"
	"vaxtrack/internal/platform/token"
	schedhandler "vaxtrack/internal/scheduling/handler"
	schedservice "vaxtrack/internal/scheduling/service"
	schedstore "vaxtrack/internal/scheduling/store"
	httptransport "vaxtrack/internal/transport/http"
	audit "vaxtrack/pkg/platform/audit"
	auditkafka "vaxtrack/pkg/platform/audit/kafka"
	auditmem "vaxtrack/pkg/platform/audit/store/memory"
	auditpg "vaxtrack/pkg/platform/audit/store/postgres"
	"vaxtrack/pkg/platform/audit/publisher"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence backend: postgres when configured, in-memory otherwise.
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		if db, err = postgres.Open(cfg.DatabaseURL); err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit pipeline: a durable store, optionally relayed to Kafka.
	var auditStore audit.Store
	var outbox *auditpg.Store
	if db != nil {
		outbox = auditpg.New(db)
		auditStore = outbox
	} else {
		auditStore = auditmem.NewInMemoryStore()
	}

	var sink *auditkafka.Sink
	if len(cfg.KafkaBrokers) > 0 {
		if sink, err = auditkafka.NewSink(ctx, cfg.KafkaBrokers, cfg.AuditTopic); err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		if outbox != nil {
			relay := auditkafka.NewRelay(outbox, sink, log)
			go func() {
				if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("audit relay stopped", "error", err)
				}
			}()
		} else {
			// No outbox to relay from: publish straight to the sink as well.
			auditStore = fanout{auditStore, sink}
		}
	}

	auditor := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(256),
		publisher.WithLogger(log),
	)
	defer auditor.Close()

	// Stores and transactional boundary per backend.
	var (
		directoryStore dirservice.Store
		batchStore     invservice.Store
		recordStore    admservice.RecordStore
		visitStore     schedservice.Store
		scheduleStore  compservice.ScheduleStore
		visitLinker    admservice.VisitLinker
		recordReader   compservice.RecordReader
		workflowTx     admservice.Tx
	)
	if db != nil {
		directoryStore = dirstore.NewPostgres(db)
		batchStore = invstore.NewPostgres(db)
		records := admstore.NewPostgres(db)
		recordStore, recordReader = records, records
		visits := schedstore.NewPostgres(db)
		visitStore, visitLinker = visits, visits
		scheduleStore = compstore.NewPostgres(db)
		workflowTx = newPostgresTx(db)
	} else {
		directoryStore = dirstore.NewInMemoryStore()
		batches := invstore.NewInMemoryStore()
		batchStore = batches
		records := admstore.NewInMemoryStore()
		recordStore, recordReader = records, records
		visits := schedstore.NewInMemoryStore()
		visitStore, visitLinker = visits, visits
		scheduleStore = compstore.NewInMemoryStore()
		workflowTx = admstore.NewMemoryTx(batches, records, visits)
	}

	directory := dirservice.NewService(directoryStore)
	inventory := invservice.NewService(batchStore, directory, auditor, log,
		invservice.WithMetrics(invmetrics.New()),
		invservice.WithTx(workflowTx))
	administration := admservice.NewService(
		recordStore,
		invservice.NewAllocator(batchStore),
		batchStore,
		visitLinker,
		directory,
		workflowTx,
		auditor,
		log,
		admservice.WithMetrics(admmetrics.New()),
	)
	scheduling := schedservice.NewService(visitStore, directory, log)

	complianceOpts := []compservice.Option{
		compservice.WithGraceMonths(cfg.OverdueGraceMonths),
	}
	if redisClient != nil {
		complianceOpts = append(complianceOpts,
			compservice.WithCache(compstore.NewRedisCache(redisClient.Client, config.CoverageCacheTTL)))
	}
	compliance := compservice.NewService(scheduleStore, recordReader, directory, log, complianceOpts...)

	tokens := token.NewService(cfg.JWTSigningKey, "vaxtrack")

	healthChecks := map[string]httptransport.Health{}
	if db != nil {
		healthChecks["postgres"] = dbHealth{db}
	}
	if redisClient != nil {
		healthChecks["redis"] = redisClient
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:    log,
		Validator: tokens,
		Handlers: []httptransport.Registrar{
			dirhandler.New(directory, log),
			invhandler.New(inventory, log),
			admhandler.New(administration, log),
			schedhandler.New(scheduling, log),
			comphandler.New(compliance, log),
		},
		HealthChecks: healthChecks,
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting vaxtrack", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// fanout appends each audit event to every store.
type fanout []audit.Store

func (f fanout) Append(ctx context.Context, event audit.Event) error {
	for _, store := range f {
		if err := store.Append(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

type dbHealth struct{ db *sql.DB }

func (h dbHealth) Health(ctx context.Context) error {
	return h.db.PingContext(ctx)
}
