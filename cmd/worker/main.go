package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"github.com/go-pg/pg/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	grpcactor "github.com/rbroggi/parcelhub/internal/actors/grpc"
	"github.com/rbroggi/parcelhub/internal/actors/metrics"
	mongoactor "github.com/rbroggi/parcelhub/internal/actors/mongo"
	"github.com/rbroggi/parcelhub/internal/actors/notify"
	"github.com/rbroggi/parcelhub/internal/actors/postgres"
	subscriberactor "github.com/rbroggi/parcelhub/internal/actors/pubsub/subscriber"
	"github.com/rbroggi/parcelhub/internal/config"
	"github.com/rbroggi/parcelhub/internal/core/ports"
	"github.com/rbroggi/parcelhub/internal/core/usecase"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	log "github.com/sirupsen/logrus"
)

const healthService = "parcelhub.worker"

func init() {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	// Output to stdout instead of the default stderr
	log.SetOutput(os.Stdout)

	// Only log the DebugLevel severity or above until the config says otherwise.
	log.SetLevel(log.DebugLevel)
}

var (
	configPath         = flag.String("config", os.Getenv("CONFIG_PATH"), "optional YAML config file")
	httpServerEndpoint = flag.String("http-server-endpoint", ":8081", "HTTP endpoint serving /metrics")
)

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	users, closeUsers, err := openUsers(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Error("could not initialize the identity store")
		return err
	}
	defer closeUsers()

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return err
	}
	defer client.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(registry)

	informer := usecase.NewInformer(usecase.InformerArgs{
		Users:    users,
		Notifier: notify.NewLogNotifier(log.StandardLogger()),
	})

	subscription := client.Subscription(cfg.PubSub.ParcelEventSub)
	subscriber := subscriberactor.NewSubscriber(subscriberactor.SubscriberArgs{
		ParcelEventHandler: informer,
		Subscription:       subscription,
	}, subscriberactor.WithEventRecorder(collector))

	// start subscriber
	consumed := make(chan error, 1)
	go func(ctx context.Context) {
		consumed <- subscriber.Consume(ctx)
	}(ctx)

	mux := chi.NewRouter()
	mux.Handle("/metrics", metrics.Handler(registry))
	httpServer := &http.Server{Addr: *httpServerEndpoint, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server stopped")
		}
	}()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	hs := grpcactor.NewHealthServer(healthService)
	go func() {
		if err := hs.Serve(lis); err != nil {
			log.WithError(err).Fatal("grpc server stopped")
		}
	}()
	hs.SetServing("", true)
	hs.SetServing(healthService, true)

	log.
		WithField("grpc-server-addr", cfg.GRPCAddr).
		WithField("subscription", cfg.PubSub.ParcelEventSub).
		Info("worker up. listening to SIGTERM, SIGINT, SIGQUIT for stoping the worker")

	// Wait for signal or for the subscriber to give up
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	select {
	case <-ch:
	case err := <-consumed:
		if err != nil {
			log.WithError(err).Error("subscriber stopped")
		}
	}

	hs.SetServing(healthService, false)
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	hs.GracefulStop()

	return nil
}

// openUsers opens the identity store the informer reads sender contacts from.
func openUsers(ctx context.Context, cfg config.Storage) (ports.UserRepository, func(), error) {
	switch cfg.Driver {
	case config.StoragePostgres:
		opts, err := pg.ParseURL(cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		db := pg.Connect(opts)
		if err := db.Ping(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		repo, err := postgres.NewPostgresDB(postgres.PostgresDBArgs{DB: db})
		return repo, func() { _ = db.Close() }, err
	default:
		db, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx, nil); err != nil {
			_ = db.Disconnect(context.Background())
			return nil, nil, err
		}
		database := db.Database(cfg.MongoDatabase)
		repo, err := mongoactor.NewMongoDB(mongoactor.MongoDBArgs{
			UserCollection:   database.Collection("users"),
			ParcelCollection: database.Collection("parcels"),
		})
		return repo, func() { _ = db.Disconnect(context.Background()) }, err
	}
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.WithError(err).Fatal("worker failed")
	}
}
