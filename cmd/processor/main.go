package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abkawan/backoffice-ledger/internal/config"
	"github.com/abkawan/backoffice-ledger/internal/db"
	"github.com/abkawan/backoffice-ledger/internal/logger"
	"github.com/abkawan/backoffice-ledger/internal/queue"
	"go.uber.org/zap"
)

// The processor drains the ledger event queue into the MongoDB audit trail.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !cfg.EventsEnabled() {
		log.Fatal("RABBITMQ_URI must be set for the event processor")
	}

	// Connect to MongoDB
	log.Info("connecting to MongoDB...")
	mongodb, err := db.NewMongoDB(cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer mongodb.Close(context.Background())

	// Connect to RabbitMQ
	log.Info("connecting to RabbitMQ...")
	rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQURI, log)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rabbitmq.Close()

	deliveries, err := rabbitmq.ConsumeEvents(ctx)
	if err != nil {
		log.Fatal("failed to consume events", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range deliveries {
			if err := mongodb.RecordEvent(ctx, d.Event); err != nil {
				log.Error("failed to record event", zap.String("event_id", d.Event.ID), zap.Error(err))
				d.Nack()
				continue
			}
			d.Ack()
			log.Debug("recorded event",
				zap.String("event_id", d.Event.ID),
				zap.String("type", string(d.Event.Type)),
				zap.String("transaction_id", d.Event.Transaction.ID),
			)
		}
	}()

	log.Info("event processor started")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-done:
		log.Warn("event stream closed")
	}

	log.Info("shutting down processor...")
	cancel() // Cancel context to stop consuming
	<-done
	log.Info("processor shut down successfully")
}
