package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rbroggi/parcelhub/internal/actors/argon2"
	grpcactor "github.com/rbroggi/parcelhub/internal/actors/grpc"
	"github.com/rbroggi/parcelhub/internal/actors/jwt"
	"github.com/rbroggi/parcelhub/internal/actors/metrics"
	"github.com/rbroggi/parcelhub/internal/actors/oauth"
	produceractor "github.com/rbroggi/parcelhub/internal/actors/pubsub/producer"
	"github.com/rbroggi/parcelhub/internal/actors/rest"
	"github.com/rbroggi/parcelhub/internal/config"
	"github.com/rbroggi/parcelhub/internal/core/usecase"

	log "github.com/sirupsen/logrus"
)

const healthService = "parcelhub.api"

func init() {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	// Output to stdout instead of the default stderr
	log.SetOutput(os.Stdout)

	// Only log the DebugLevel severity or above until the config says otherwise.
	log.SetLevel(log.DebugLevel)
}

var configPath = flag.String("config", os.Getenv("CONFIG_PATH"), "optional YAML config file")

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithError(err).Warn("invalid log level, keeping debug")
	}

	store, closeStore, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Error("could not initialize storage")
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	hasher := argon2.NewHasher()
	tokens := jwt.NewTokenService()

	userSvc := usecase.NewUserService(usecase.UserServiceArgs{Repository: store, Hasher: hasher})
	if cfg.Admin.Email != "" {
		admin, created, err := userSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			log.WithError(err).Error("could not seed the admin")
			return err
		}
		log.WithField("admin_id", admin.ID).WithField("created", created).Info("admin ensured")
	}

	var authOpts []usecase.AuthServiceOptArgs
	if cfg.Google.Configured() {
		authOpts = append(authOpts, usecase.WithIdentityProvider(oauth.NewGoogle(oauth.GoogleArgs{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.CallbackURL,
		})))
	}
	authSvc := usecase.NewAuthService(usecase.AuthServiceArgs{
		Repository:    store,
		Hasher:        hasher,
		Tokens:        tokens,
		AccessSecret:  cfg.AccessSigningKey(),
		AccessTTL:     cfg.JWT.AccessExpires,
		RefreshSecret: cfg.RefreshSigningKey(),
		RefreshTTL:    cfg.JWT.RefreshExpires,
	}, authOpts...)

	parcelOpts := []usecase.ParcelServiceOptArgs{usecase.WithTransitionRecorder(collector)}
	if cfg.PubSub.Enabled {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return err
		}
		defer client.Close()
		topic := client.Topic(cfg.PubSub.ParcelEventTopic)
		defer topic.Stop()
		producer, err := produceractor.NewProducer(topic)
		if err != nil {
			return err
		}
		parcelOpts = append(parcelOpts, usecase.WithEventSender(producer))
	}
	parcelSvc := usecase.NewParcelService(usecase.ParcelServiceArgs{Parcels: store, Users: store}, parcelOpts...)
	query := usecase.NewParcelQuery(usecase.ParcelQueryArgs{Parcels: store, Users: store})
	gate := usecase.NewGate(usecase.GateArgs{Tokens: tokens, Users: store, AccessSecret: cfg.AccessSigningKey()})

	router := rest.NewRouter(rest.RouterArgs{
		Gate:    gate,
		Users:   userSvc,
		Auth:    authSvc,
		Parcels: parcelSvc,
		Query:   query,
	},
		rest.WithProduction(cfg.IsProduction()),
		rest.WithFrontendURL(cfg.FrontendURL),
		rest.WithMetrics(collector, metrics.Handler(registry)),
		rest.WithRateLimits(cfg.RateLimit.PerMinute, cfg.RateLimit.AuthPerMinute),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server stopped")
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
		WithField("http-server-addr", cfg.HTTPAddr).
		WithField("grpc-server-addr", cfg.GRPCAddr).
		WithField("storage", cfg.Storage.Driver).
		Info("servers up or soon to be up. listening to SIGTERM, SIGINT, SIGQUIT for stoping the server")

	// Wait for signal
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	<-ch

	hs.SetServing(healthService, false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("error shutting down the http server")
	}
	hs.GracefulStop()

	return nil
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}
