package providers

import (
	"context"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/totegamma/memories/internal/config"
	"github.com/totegamma/memories/internal/infra/database"
	"github.com/totegamma/memories/internal/infra/device"
	"github.com/totegamma/memories/internal/infra/kv"
	"github.com/totegamma/memories/internal/service"
	"github.com/totegamma/memories/internal/usecase"
)

// Backend holds the opened storage backend and the signal matching it.
type Backend struct {
	Store  kv.Store
	Signal service.Signal
}

// NewDatabase opens a Postgres connection and migrates the kv table.
func NewDatabase(conf config.Storage) (*gorm.DB, error) {
	db, err := database.NewPostgres(conf.PostgresDsn)
	if err != nil {
		return nil, err
	}
	return db, database.MigratePostgres(db)
}

// NewMemcache creates a memcache client.
func NewMemcache(conf config.Storage) (*memcache.Client, error) {
	return database.NewMemcached(conf.MemcachedAddr)
}

func NewRedis(ctx context.Context, conf config.Storage) (*redis.Client, error) {
	return database.NewRedis(ctx, conf.RedisAddr, conf.RedisPassword, conf.RedisDB)
}

// NewBackend connects the configured store. Remote stores are wrapped in a
// circuit breaker when enabled. Redis deployments share change events over
// Redis pub/sub, the others use the in-process hub.
func NewBackend(ctx context.Context, conf config.Storage) (Backend, error) {
	backend := Backend{Signal: service.NewLocalSignal()}

	switch conf.Backend {
	case config.BackendRedis:
		rdb, err := NewRedis(ctx, conf)
		if err != nil {
			return Backend{}, err
		}
		backend.Store = kv.NewRedisStore(rdb)
		backend.Signal = service.NewRedisSignal(rdb)
	case config.BackendMemcached:
		mc, err := NewMemcache(conf)
		if err != nil {
			return Backend{}, err
		}
		backend.Store = kv.NewMemcachedStore(mc)
	case config.BackendPostgres:
		db, err := NewDatabase(conf)
		if err != nil {
			return Backend{}, err
		}
		backend.Store = kv.NewPostgresStore(db)
	default:
		local, err := kv.NewLocalStore(conf.SnapshotPath)
		if err != nil {
			return Backend{}, err
		}
		backend.Store = local
		return backend, nil
	}

	if conf.Breaker {
		breakerConf := kv.DefaultBreakerConfig("memories-" + conf.Backend)
		breakerConf.Timeout = conf.BreakerReset
		backend.Store = kv.NewBreaker(backend.Store, breakerConf)
	}
	return backend, nil
}

// NewGallery returns nil when no gallery directory is configured.
func NewGallery(conf config.Device) usecase.Gallery {
	if conf.GalleryDir == "" {
		return nil
	}
	return device.NewDirGallery(conf.GalleryDir)
}
