package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/hotel-sync/internal/broadcast"
	"github.com/richardliu001/hotel-sync/internal/broker"
	"github.com/richardliu001/hotel-sync/internal/config"
	"github.com/richardliu001/hotel-sync/internal/deadletter"
	"github.com/richardliu001/hotel-sync/internal/logger"
	"github.com/richardliu001/hotel-sync/internal/metrics"
	"github.com/richardliu001/hotel-sync/internal/repo"
	"github.com/richardliu001/hotel-sync/internal/service"
	httptransport "github.com/richardliu001/hotel-sync/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load(configPath())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level, "hotel-sync-server")
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		log.Fatalf("scheduler timezone: %v", err)
	}

	// 3. postgres audit store
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	// 4. redis streams
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}
	streams := broker.NewRedis(rdb, cfg.Redis.StreamMaxLen)
	defer streams.Close()

	audit := repo.NewDeliveryLogRepository(gdb, rdb, cfg.Audit.Retention(), log)
	if err := audit.AutoMigrate(); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	deps := service.Deps{Streams: streams, Audit: audit, Log: log}

	// 5. optional broadcast bus
	if cfg.Broadcast.Enabled() {
		bc := broadcast.NewRedis(redis.NewClient(&redis.Options{
			Addr:     cfg.Broadcast.Addr(),
			Password: cfg.Broadcast.Password,
		}), cfg.Broadcast.Path)
		defer bc.Close()
		deps.Broadcaster = bc
		log.Infow("broadcast enabled", "addr", cfg.Broadcast.Addr())
	}

	// 6. optional dead-letter export
	if sink := deadletter.NewKafkaSink(cfg.DeadLetter.Brokers, cfg.DeadLetter.Topic); sink != nil {
		defer sink.Close()
		deps.DeadLetter = sink
	}

	// 7. integration bus
	bus := service.NewBus(deps, service.Options{
		MaxRetries: cfg.Delivery.MaxRetries,
		RetryDelay: cfg.Delivery.RetryDelay(),
		BatchSize:  cfg.Consumer.BatchSize,
		Block:      cfg.Consumer.Block(),
		Location:   loc,
	})
	defer bus.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.Enabled {
		mon := metrics.NewMonitor(streams, cfg.Consumer.Streams, cfg.Consumer.Group, cfg.Monitoring.Interval(), log)
		go mon.Run(ctx)
	}

	// 8. gin router
	router := httptransport.NewRouter(bus, audit, cfg.RateLimit, log)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 9. serve until signalled
	go func() {
		log.Infof("hotel-sync server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("listen: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "internal/config/config.yaml"
}
