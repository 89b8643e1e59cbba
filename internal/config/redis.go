package config

// Redis backs three concerns: the hold and API rate limiters, the
// catalogue response cache and the cross-instance seat event fan-out.
// When the server is unreachable at start-up all three degrade: rate
// limiting and caching are skipped and seat events stay in-process.

import (
    "context"
    "crypto/tls"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/seatd/internal/logging"
)

// RedisOptions builds client options from the environment:
//   REDIS_ADDR (host:port) or REDIS_HOST + REDIS_PORT (takes precedence)
//   REDIS_PASSWORD, REDIS_DB, REDIS_TLS
func RedisOptions() *redis.Options {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        addr = host + ":" + port
    }
    opts := &redis.Options{
        Addr:     addr,
        Password: envStr("REDIS_PASSWORD", ""),
        DB:       envInt("REDIS_DB", 0),
    }
    if v := envStr("REDIS_TLS", ""); strings.EqualFold(v, "true") || v == "1" {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    return opts
}

// NewRedisClient connects using RedisOptions.  It returns nil when
// REDIS_ENABLED is false or the server does not answer a ping within
// two seconds; callers must handle a nil client.
func NewRedisClient() *redis.Client {
    if !envBool("REDIS_ENABLED", true) {
        return nil
    }
    opts := RedisOptions()
    client := redis.NewClient(opts)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        logging.Warn().Err(err).Str("addr", opts.Addr).Msg("redis unavailable, running without cache, rate limit and cross-instance events")
        _ = client.Close()
        return nil
    }
    return client
}
