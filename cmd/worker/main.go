package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/hotel-sync/internal/broker"
	"github.com/richardliu001/hotel-sync/internal/config"
	"github.com/richardliu001/hotel-sync/internal/deadletter"
	"github.com/richardliu001/hotel-sync/internal/logger"
	"github.com/richardliu001/hotel-sync/internal/model"
	"github.com/richardliu001/hotel-sync/internal/repo"
	"github.com/richardliu001/hotel-sync/internal/service"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/go-redis/redis/v8"
)

const purgeInterval = time.Hour

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, "hotel-sync-worker")
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}
	streams := broker.NewRedis(rdb, cfg.Redis.StreamMaxLen)

	audit := repo.NewDeliveryLogRepository(gdb, rdb, cfg.Audit.Retention(), log)
	if err := audit.AutoMigrate(); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	deps := service.Deps{Streams: streams, Audit: audit, Log: log}
	if sink := deadletter.NewKafkaSink(cfg.DeadLetter.Brokers, cfg.DeadLetter.Topic); sink != nil {
		defer sink.Close()
		deps.DeadLetter = sink
	}
	bus := service.NewBus(deps, service.Options{
		MaxRetries: cfg.Delivery.MaxRetries,
		RetryDelay: cfg.Delivery.RetryDelay(),
		BatchSize:  cfg.Consumer.BatchSize,
		Block:      cfg.Consumer.Block(),
	})
	defer bus.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	consumerID := consumerName(cfg.Consumer.ConsumerID)
	router := service.NewRouter(cfg.Consumer.System, loggingRoutes(log), log)

	var wg sync.WaitGroup
	for _, stream := range cfg.Consumer.Streams {
		c := bus.NewConsumer(stream, cfg.Consumer.GroupFor(stream), consumerID, router.Handle)
		wg.Add(1)
		go func(stream string) {
			defer wg.Done()
			if err := c.Run(ctx); err != nil {
				log.Errorw("consumer exited", "stream", stream, "err", err)
			}
		}(stream)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		purgeLoop(ctx, audit, log)
	}()

	log.Infow("hotel-sync worker started", "system", cfg.Consumer.System, "group", cfg.Consumer.Group,
		"consumer", consumerID, "streams", cfg.Consumer.Streams)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	if err := stopWorkers(cancel, &wg, streams); err != nil {
		log.Errorf("close broker: %v", err)
	}
}

// stopWorkers cancels the loops, waits for in-flight handlers to finish and
// ack, and only then closes the broker.
func stopWorkers(cancel context.CancelFunc, wg *sync.WaitGroup, streams io.Closer) error {
	cancel()
	wg.Wait()
	return streams.Close()
}

// purgeLoop drops expired audit rows once an hour.
func purgeLoop(ctx context.Context, audit *repo.DeliveryLogRepository, log *zap.SugaredLogger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := audit.PurgeExpired(ctx, now)
			if err != nil {
				log.Errorf("purge audit: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("purged %d expired audit rows", n)
			}
		}
	}
}

// loggingRoutes acknowledges every shape after logging it. Integrations
// replace these with calls into their own systems.
func loggingRoutes(log *zap.SugaredLogger) service.Routes {
	seen := func(ev *model.Event, kv ...interface{}) {
		log.Infow("event received", append([]interface{}{
			"event_id", ev.EventID, "kind", ev.Kind().String(), "tenant_id", ev.TenantID,
		}, kv...)...)
	}
	return service.Routes{
		Reservation: func(_ context.Context, ev *model.Event, d *model.ReservationData) error {
			if d != nil {
				seen(ev, "reservation_id", d.ReservationID)
			} else {
				seen(ev)
			}
			return nil
		},
		Customer: func(_ context.Context, ev *model.Event, _ *model.CustomerData) error {
			seen(ev)
			return nil
		},
		Room: func(_ context.Context, ev *model.Event, d *model.RoomData) error {
			if d != nil {
				seen(ev, "room", d.RoomNumber, "status", d.Status)
			} else {
				seen(ev)
			}
			return nil
		},
		Stay: func(_ context.Context, ev *model.Event, d *model.StayData) error {
			if d != nil {
				seen(ev, "room", d.RoomNumber, "final_bill", d.FinalBill.String())
			} else {
				seen(ev)
			}
			return nil
		},
		Analytics: func(_ context.Context, ev *model.Event, _ *model.AnalyticsData) error {
			seen(ev)
			return nil
		},
		System: func(_ context.Context, ev *model.Event, _ *model.SystemData) error {
			seen(ev)
			return nil
		},
	}
}

func consumerName(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-" + uuid.NewString()[:8]
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "internal/config/config.yaml"
}
