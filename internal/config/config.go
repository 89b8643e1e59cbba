package config // package config loads application configuration from environment variables

import (
    "errors"
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/joho/godotenv"

    "github.com/iliyamo/seatd/internal/logging"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
    DriverMySQL  = "mysql"
    DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env           string // APP_ENV (e.g. "dev", "prod")
    Port          string // APP_PORT
    StorageDriver string // STORAGE_DRIVER: mysql | memory

    DBUser    string // DB_USER
    DBPass    string // DB_PASS (optional)
    DBHost    string // DB_HOST
    DBPort    string // DB_PORT
    DBName    string // DB_NAME
    DBMigrate bool   // DB_MIGRATE: apply the embedded schema on start

    JWTSecret    string // JWT_SECRET, HS256 key shared with the identity service
    AccessTTLMin int    // ACCESS_TOKEN_TTL_MIN, used by cmd/devtoken

    HoldDuration      time.Duration // HOLD_DURATION (default 5m)
    HoldSweepInterval time.Duration // HOLD_SWEEP_INTERVAL, 0 disables the scheduled sweeper

    InternalToken  string // INTERNAL_TOKEN guarding /internal/payments/confirm
    RabbitMQURL    string // RABBITMQ_URL
    AMQPEnabled    bool   // AMQP_ENABLED
    BookingLogPath string // BOOKING_LOG_PATH, appended by the booking.confirmed consumer

    SeedDefaults  bool   // SEED_DEFAULTS: auditoriums, seats and a demo showtime
    AdminEmail    string // ADMIN_EMAIL, operator account seeded on start when set
    AdminPassword string // ADMIN_PASSWORD
    AdminName     string // ADMIN_NAME
    BcryptCost    int    // BCRYPT_COST

    LogLevel       string   // LOG_LEVEL
    LogFormat      string   // LOG_FORMAT: json | console
    AllowedOrigins []string // WS_ALLOWED_ORIGINS, comma separated; empty allows any
}

// Load reads .env (when present) and the environment, and exits the
// process when a required variable is missing or malformed.
func Load() Config {
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        logging.Warn().Err(err).Msg("could not read .env")
    }
    cfg, err := FromEnv()
    if err != nil {
        logging.Fatal().Err(err).Msg("invalid configuration")
    }
    return cfg
}

// FromEnv builds a Config from the current environment.  All problems
// are reported together.
func FromEnv() (Config, error) {
    r := &reader{}
    cfg := Config{
        Env:           envStr("APP_ENV", "dev"),
        Port:          envStr("APP_PORT", "8080"),
        StorageDriver: strings.ToLower(envStr("STORAGE_DRIVER", DriverMySQL)),
        JWTSecret:     r.must("JWT_SECRET"),
        AccessTTLMin:  envInt("ACCESS_TOKEN_TTL_MIN", 60),

        HoldDuration:      envDur("HOLD_DURATION", 5*time.Minute),
        HoldSweepInterval: envDur("HOLD_SWEEP_INTERVAL", 0),

        InternalToken:  os.Getenv("INTERNAL_TOKEN"),
        RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
        BookingLogPath: envStr("BOOKING_LOG_PATH", "logs/booking.log"),

        SeedDefaults:  envBool("SEED_DEFAULTS", true),
        AdminEmail:    os.Getenv("ADMIN_EMAIL"),
        AdminPassword: os.Getenv("ADMIN_PASSWORD"),
        AdminName:     envStr("ADMIN_NAME", "Admin"),
        BcryptCost:    envInt("BCRYPT_COST", 12),

        LogLevel:       envStr("LOG_LEVEL", "info"),
        LogFormat:      envStr("LOG_FORMAT", "json"),
        AllowedOrigins: splitList(os.Getenv("WS_ALLOWED_ORIGINS")),
    }
    cfg.AMQPEnabled = envBool("AMQP_ENABLED", cfg.RabbitMQURL != "")

    switch cfg.StorageDriver {
    case DriverMySQL:
        cfg.DBUser = r.must("DB_USER")
        cfg.DBPass = os.Getenv("DB_PASS")
        cfg.DBHost = r.must("DB_HOST")
        cfg.DBPort = r.must("DB_PORT")
        cfg.DBName = r.must("DB_NAME")
        cfg.DBMigrate = envBool("DB_MIGRATE", true)
    case DriverMemory:
    default:
        r.fail("STORAGE_DRIVER must be %q or %q, got %q", DriverMySQL, DriverMemory, cfg.StorageDriver)
    }

    if cfg.HoldDuration <= 0 {
        r.fail("HOLD_DURATION must be positive")
    }
    if cfg.HoldSweepInterval < 0 {
        r.fail("HOLD_SWEEP_INTERVAL must not be negative")
    }
    if cfg.AMQPEnabled && cfg.RabbitMQURL == "" {
        r.fail("AMQP_ENABLED requires RABBITMQ_URL")
    }
    if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
        r.fail("ADMIN_EMAIL requires ADMIN_PASSWORD")
    }
    return cfg, r.err()
}

// reader accumulates configuration errors so every missing variable is
// reported at once.
type reader struct {
    problems []string
}

// must retrieves the value of a required environment variable and
// records a problem when it is unset or empty.
func (r *reader) must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        r.fail("missing required env var: %s", key)
    }
    return v
}

func (r *reader) fail(format string, args ...interface{}) {
    r.problems = append(r.problems, fmt.Sprintf(format, args...))
}

func (r *reader) err() error {
    if len(r.problems) == 0 {
        return nil
    }
    return errors.New(strings.Join(r.problems, "; "))
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
