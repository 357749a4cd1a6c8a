package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"counter-service/internal/actor"
	"counter-service/internal/api"
	"counter-service/internal/cache"
	"counter-service/internal/config"
	"counter-service/internal/repository"
	"counter-service/internal/service"
	"counter-service/internal/sharding"
	"counter-service/migrations"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front router",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts.cfg)
		},
	}
}

// openStorage connects every storage shard for the configured driver.
func openStorage(cfg *config.Config) ([]*sql.DB, repository.Dialect, error) {
	dialect, err := repository.DialectFor(cfg.StorageDriver)
	if err != nil {
		return nil, repository.Dialect{}, err
	}

	var dbs []*sql.DB
	closeAll := func() {
		for _, db := range dbs {
			db.Close()
		}
	}

	for i := 0; i < cfg.StorageShards; i++ {
		var db *sql.DB
		switch dialect.Driver {
		case repository.MySQL.Driver:
			s := cfg.MySQLShards[i]
			db, err = repository.OpenMySQL(repository.MySQLParams{
				Host: s.Host,
				Port: s.Port,
				User: s.User,
				Pass: s.Pass,
				Name: s.Name,
			}, cfg.DBConnectRetries)
		default:
			db, err = repository.OpenSQLite(filepath.Join(cfg.SQLiteDir, fmt.Sprintf("shard-%d.db", i)))
		}
		if err != nil {
			closeAll()
			return nil, repository.Dialect{}, fmt.Errorf("storage shard %d: %w", i, err)
		}
		dbs = append(dbs, db)
	}

	return dbs, dialect, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	dbs, dialect, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, db := range dbs {
			db.Close()
		}
	}()

	err = migrations.AutoMigrateActorStorage(cfg.MigrateRetries, dialect.Driver, dbs...)
	if err != nil {
		return fmt.Errorf("failed to migrate actor_storage table: %w", err)
	}

	store := repository.NewStateRepository(dbs, dialect)

	actors := actor.NewSystem(cfg.MailboxSize, cfg.ActorTimeout)
	defer actors.Close()

	var shared service.BucketCache = cache.NopBucketCache{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		defer rdb.Close()
		shared = cache.NewRedisBucketCache(rdb)
	}

	var events service.EventPublisher = service.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaWriter := config.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaWriter.Close()
		events = service.NewKafkaPublisher(kafkaWriter)
	}

	names := cache.NewNameCache(cfg.CacheTTL, uint64(cfg.CacheCapacity))
	names.Start()
	defer names.Stop()

	shardMap := service.NewShardMapService(cfg.ShardMapName, sharding.NewShardRouter(cfg.ShardCount), store, actors, shared)
	counters := service.NewCounterService(store, actors)
	router := service.NewRouter(shardMap, counters, names, events)

	e := api.NewServer(api.NewCounterHandler(router, shardMap))

	logger.Info().
		Str("addr", cfg.HTTPAddr).
		Int("shards", cfg.ShardCount).
		Str("storage", dialect.Driver).
		Int("storage_shards", len(dbs)).
		Bool("shared_cache", cfg.RedisAddr != "").
		Bool("events", len(cfg.KafkaBrokers) > 0).
		Msg("Starting counter-service")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
