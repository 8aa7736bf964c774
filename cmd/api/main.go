package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/api"
	"github.com/abkawan/backoffice-ledger/internal/config"
	"github.com/abkawan/backoffice-ledger/internal/db"
	"github.com/abkawan/backoffice-ledger/internal/logger"
	"github.com/abkawan/backoffice-ledger/internal/queue"
	"github.com/abkawan/backoffice-ledger/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type stores struct {
	accounts     service.AccountStore
	transactions service.TransactionStore
	pingers      []api.Pinger
	closers      []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores wires the account and transaction stores for the configured
// backend. hybrid keeps accounts in PostgreSQL and transactions in MongoDB.
func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	s := &stores{}

	if cfg.StoreBackend == config.BackendMemory {
		log.Info("using in-memory stores")
		mem := db.NewMemory()
		s.accounts, s.transactions = mem, mem
		return s, nil
	}

	log.Info("connecting to MongoDB...")
	mongodb, err := db.NewMongoDB(cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { mongodb.Close(context.Background()) })
	s.pingers = append(s.pingers, mongodb)
	s.accounts, s.transactions = mongodb, mongodb

	if cfg.StoreBackend == config.BackendHybrid {
		log.Info("connecting to PostgreSQL...")
		postgres, err := db.NewPostgres(cfg.PostgresURI)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, func() { postgres.Close() })

		log.Info("creating the schema...")
		if err := postgres.InitSchema(ctx); err != nil {
			s.close()
			return nil, err
		}
		s.pingers = append(s.pingers, postgres)
		s.accounts = postgres
	}
	return s, nil
}

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

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open stores", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer st.close()

	var events service.EventPublisher
	if cfg.EventsEnabled() {
		log.Info("connecting to RabbitMQ...")
		rabbitmq, err := queue.NewRabbitMQ(cfg.RabbitMQURI, log)
		if err != nil {
			log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rabbitmq.Close()
		events = rabbitmq
	}

	// Create services
	h := api.NewHandler(api.Services{
		Accounts:     service.NewAccountService(st.accounts, log),
		Transactions: service.NewTransactionService(st.transactions, st.accounts, events, log),
		Ledger:       service.NewLedger(st.accounts, st.transactions, events, log),
		Stats:        service.NewStatsService(st.accounts, st.transactions),
	}, log, st.pingers...)

	// Create router and set up routes
	router := mux.NewRouter()
	router.Use(api.TimeoutMiddleware(cfg.StoreTimeout))
	api.SetupRoutes(router, h)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port), zap.String("backend", cfg.StoreBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
		return
	}

	log.Info("server shut down successfully")
}
