package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/deskhive/deskhive/libs/config"
	"github.com/deskhive/deskhive/libs/db"
	"github.com/deskhive/deskhive/libs/httpx"
	"github.com/deskhive/deskhive/libs/kafkax"
	otelx "github.com/deskhive/deskhive/libs/otel"
	"github.com/deskhive/deskhive/libs/runtime"
	"github.com/deskhive/deskhive/services/cleaning-service/internal/consumer"
	"github.com/deskhive/deskhive/services/cleaning-service/internal/inbox"
	"github.com/deskhive/deskhive/services/cleaning-service/internal/outbox"
	"github.com/deskhive/deskhive/services/cleaning-service/internal/tasks"
)

func main() {
	service := config.String("SERVICE_NAME", "cleaning-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	taskRepo := tasks.NewRepository()
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	taskWorker := tasks.NewWorker(pool, taskRepo, outboxRepo, logger, tasks.WorkerConfig{
		Interval:  config.Duration("TASK_POLL_INTERVAL", 5*time.Second),
		BatchSize: config.Int("TASK_BATCH_SIZE", 50),
		Backoff:   config.Duration("TASK_RETRY_BACKOFF", time.Minute),
	})
	go taskWorker.Run(ctx)

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "cleaning-service")

	type taskRequest struct {
		ReservationID string `json:"reservation_id"`
		OrgID         string `json:"org_id"`
		DeskID        string `json:"desk_id"`
		CleanAt       string `json:"clean_at"`
	}

	requestConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_TASK_TOPIC", "cleaning.task.requested.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload taskRequest
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid cleaning task request", "err", err)
			return nil
		}
		if payload.ReservationID == "" || payload.OrgID == "" || payload.DeskID == "" || payload.CleanAt == "" {
			logger.Error("missing cleaning task fields")
			return nil
		}
		cleanAt, err := time.Parse(time.RFC3339, payload.CleanAt)
		if err != nil {
			logger.Error("invalid clean_at", "err", err)
			return nil
		}

		// One task per reservation interval; replays collapse on the key.
		idempotencyKey := payload.ReservationID + "|" + payload.CleanAt

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := taskRepo.Insert(ctx, tx, tasks.Task{
			IdempotencyKey: idempotencyKey,
			ReservationID:  payload.ReservationID,
			OrgID:          payload.OrgID,
			DeskID:         payload.DeskID,
			CleanAt:        cleanAt,
			NotifyAt:       cleanAt.Add(-tasks.NoticeLead),
		}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	go requestConsumer.Run(ctx)

	type cancellation struct {
		ReservationID string `json:"reservation_id"`
		EndTime       string `json:"end_time"`
	}

	cancelConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   config.String("KAFKA_CANCEL_TOPIC", "reservation.interval.cancelled.v1"),
	}, func(ctx context.Context, msg kafka.Message) error {
		var payload cancellation
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid cancellation event", "err", err)
			return nil
		}
		if payload.ReservationID == "" || payload.EndTime == "" {
			logger.Error("missing cancellation fields")
			return nil
		}
		cleanAt, err := time.Parse(time.RFC3339, payload.EndTime)
		if err != nil {
			logger.Error("invalid end_time", "err", err)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		voided, err := taskRepo.Void(ctx, tx, payload.ReservationID, cleanAt)
		if err != nil {
			return err
		}
		if voided > 0 {
			logger.Info("cleaning tasks voided", "reservation_id", payload.ReservationID, "count", voided)
		}
		return tx.Commit(ctx)
	})
	go cancelConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "cleaning")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
