package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/rbroggi/parcelhub/internal/actors/memory"
	mongoactor "github.com/rbroggi/parcelhub/internal/actors/mongo"
	"github.com/rbroggi/parcelhub/internal/actors/postgres"
	"github.com/rbroggi/parcelhub/internal/config"
	"github.com/rbroggi/parcelhub/internal/core/ports"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	log "github.com/sirupsen/logrus"
)

// repository is a store serving both users and parcels.
type repository interface {
	ports.UserRepository
	ports.ParcelRepository
}

// openStorage opens the store selected by cfg. The returned func releases it.
func openStorage(ctx context.Context, cfg config.Storage) (repository, func(), error) {
	switch cfg.Driver {
	case config.StorageMongo:
		return openMongo(ctx, cfg)
	case config.StoragePostgres:
		return openPostgres(ctx, cfg)
	case config.StorageMemory:
		log.Warn("using the in-memory store, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openMongo(ctx context.Context, cfg config.Storage) (repository, func(), error) {
	db, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to mongo: %w", err)
	}
	closeFn := func() {
		if err := db.Disconnect(context.Background()); err != nil {
			log.WithError(err).Error("error disconnecting from mongo")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx, nil); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("db does not appear to be reachable: %w", err)
	}

	database := db.Database(cfg.MongoDatabase)
	mongoActor, err := mongoactor.NewMongoDB(mongoactor.MongoDBArgs{
		UserCollection:   database.Collection("users"),
		ParcelCollection: database.Collection("parcels"),
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if err := mongoActor.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return mongoActor, closeFn, nil
}

func openPostgres(ctx context.Context, cfg config.Storage) (repository, func(), error) {
	opts, err := pg.ParseURL(cfg.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing postgres url: %w", err)
	}
	db := pg.Connect(opts)
	closeFn := func() {
		if err := db.Close(); err != nil {
			log.WithError(err).Error("error closing postgres")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("db does not appear to be reachable: %w", err)
	}
	pgActor, err := postgres.NewPostgresDB(postgres.PostgresDBArgs{DB: db})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return pgActor, closeFn, nil
}
