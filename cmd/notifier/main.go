package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-collab-notify/internal/application/events"
	"github.com/go-collab-notify/internal/application/notification"
	"github.com/go-collab-notify/internal/config"
	"github.com/go-collab-notify/internal/infrastructure/dynamo"
	"github.com/go-collab-notify/internal/infrastructure/rabbitmq"
	transporthttp "github.com/go-collab-notify/internal/transport/http"
	"github.com/go-collab-notify/internal/transport/queue"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("dynamo client: %v", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	broker := rabbitmq.New(rabbitmq.WithRetry(cfg.AMQPConnectAttempts, cfg.AMQPConnectDelay))
	if err := broker.Connect(ctx, cfg.AMQPURL); err != nil {
		log.Fatalf("broker: %v", err)
	}
	defer broker.Close()
	if err := broker.SetPrefetch(cfg.AMQPPrefetch); err != nil {
		log.Fatalf("broker prefetch: %v", err)
	}
	assertQueues(broker, cfg.Queues)

	signals, closeSignals, err := newSignaler(ctx, cfg)
	if err != nil {
		log.Fatalf("signal backend: %v", err)
	}
	defer closeSignals()

	quarantine := notification.NewQuarantine(nil)
	deps := notification.ServiceDeps{
		UserRepo:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		CompanyRepo:      dynamo.NewCompanyRepo(dynamoClient, cfg.DynamoTables.Companies),
		MembershipRepo:   dynamo.NewMembershipRepo(dynamoClient, cfg.DynamoTables.Memberships),
		InviteRepo:       dynamo.NewInviteRepo(dynamoClient, cfg.DynamoTables.Invites),
		NotificationRepo: dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		Signaler:         signals,
		Quarantine:       quarantine,
		FrontendBaseURL:  cfg.FrontendBaseURL,
	}
	if cfg.DedupEnabled {
		deps.Dedup = dynamo.NewDedupRepo(dynamoClient, cfg.DynamoTables.Dedup, cfg.DedupTTL)
	}
	materializer := notification.NewMaterializer(deps)

	q := cfg.Queues
	dispatcher := events.NewDispatcher(
		events.NewInviteProducer(broker, q.Invites, q.EventsInvites, q.DLQ(q.EventsInvites)),
		events.NewEventsProducer(broker, q.Events, q.DLQ(q.Events), q.EventsMembers, q.DLQ(q.EventsMembers)),
	)

	// Any consumer failure stops the process so the supervisor restarts it.
	consumers := &consumerSet{}
	for _, name := range q.Consumed() {
		consumers.start(ctx, name, queue.NewConsumer(broker, name, materializer), stop)
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Events:     dispatcher,
		Quarantine: quarantine,
		Ready:      consumers,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Ops server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down notifier...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	consumers.wait()
	log.Println("Notifier stopped")
}

// assertQueues declares every queue up front. A config mismatch on an
// existing queue is logged; producers fall back to best-effort publishing.
func assertQueues(broker *rabbitmq.Transport, q config.Queues) {
	report := func(name string, err error) {
		switch {
		case err == nil:
		case errors.Is(err, rabbitmq.ErrQueueConfigMismatch):
			log.Printf("WARN: queue %s exists with different arguments: %v", name, err)
		default:
			log.Fatalf("assert queue %s: %v", name, err)
		}
	}
	report(q.Invites, broker.AssertDurableQueue(q.Invites))
	for _, name := range []string{q.Events, q.EventsInvites, q.EventsMembers} {
		report(name, broker.AssertEventQueue(name, q.DLQ(name)))
	}
}
