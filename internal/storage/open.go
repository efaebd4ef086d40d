package storage

import (
	"buddychat/backend/internal/config"
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Stores bundles the two keyspaces the service uses.
type Stores struct {
	// Ephemeral holds presence records, match notices and sessions.
	Ephemeral KVStore
	// Durable holds friend requests and saved chats.
	Durable KVStore
}

// Close closes both stores, returning the first error.
func (s *Stores) Close() error {
	var first error
	for _, kv := range []KVStore{s.Ephemeral, s.Durable} {
		if kv == nil {
			continue
		}
		if err := kv.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open connects the backends selected in cfg. With both set to memory and
// nothing shared, two independent in-memory stores are returned.
func Open(ctx context.Context, cfg *config.Config) (*Stores, error) {
	ephemeral, err := openEphemeral(ctx, cfg)
	if err != nil {
		return nil, err
	}

	durable, err := openDurable(cfg)
	if err != nil {
		ephemeral.Close()
		return nil, err
	}

	log.Printf("INFO: Stores ready (ephemeral=%s, durable=%s).", cfg.EphemeralStore, cfg.DurableStore)
	return &Stores{Ephemeral: ephemeral, Durable: durable}, nil
}

func openEphemeral(ctx context.Context, cfg *config.Config) (KVStore, error) {
	if cfg.EphemeralStore != config.BackendRedis {
		return NewMemoryStore(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	return NewRedisStore(rdb, cfg.SessionTTL), nil
}

func openDurable(cfg *config.Config) (KVStore, error) {
	if cfg.DurableStore != config.BackendPostgres {
		return NewMemoryStore(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewPostgresStore(db)
}
