package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibsar/voicedialog/internal/registry"
)

// Options configures the driver chosen by Open.
type Options struct {
	MaxTurns int
	TTL      time.Duration
	// RedisURL is a redis:// URL for the redis driver.
	RedisURL string
	// DB backs the sql driver.
	DB DB
}

var drivers = registry.New[Store, Options](ErrUnknownDriver)

func init() {
	drivers.Register(DriverMemory, func(_ context.Context, o Options) (Store, error) {
		return NewMemoryStore(o.MaxTurns), nil
	})
	drivers.Register(DriverRedis, openRedis)
	drivers.Register(DriverSQL, func(ctx context.Context, o Options) (Store, error) {
		if o.DB == nil {
			return nil, fmt.Errorf("sql transcript driver: no datastore configured")
		}
		return NewSQLStore(ctx, o.DB)
	})
}

func openRedis(ctx context.Context, o Options) (Store, error) {
	opts, err := redis.ParseURL(o.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client, o.TTL, o.MaxTurns), nil
}

// Open creates the store registered under driver.
func Open(ctx context.Context, driver string, o Options) (Store, error) {
	return drivers.Create(ctx, driver, o)
}

// Drivers lists the available driver names.
func Drivers() []string { return drivers.List() }
