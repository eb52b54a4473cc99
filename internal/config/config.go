package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"caces-module"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	MaxUploadBytes          int64         `env:"MAX_UPLOAD_BYTES" envDefault:"67108864"`

	Postgres Postgres
	Redis    Redis
	Security Security
	Export   Export
	Polling  Polling
	Layouts  Layouts
	Images   Images
	Import   Import
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders the keyword/value connection string understood by pgx.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Redis holds pending-import storage and Pub/Sub configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth. An empty JWT secret disables the API guard.
type Security struct {
	JWTSecret string        `env:"JWT_SECRET" envDefault:""`
	JWTIssuer string        `env:"JWT_ISSUER" envDefault:"caces-module"`
	TokenTTL  time.Duration `env:"JWT_TOKEN_TTL" envDefault:"12h"`
}

// Export controls the generated container and its auto-saved copy.
type Export struct {
	AutosaveDir     string `env:"EXPORT_AUTOSAVE_DIR" envDefault:""`
	ContainerExt    string `env:"EXPORT_CONTAINER_EXT" envDefault:".ors"`
	DefaultTemplate string `env:"EXPORT_DEFAULT_TEMPLATE" envDefault:""`
}

// Polling holds the defaults written into every question slide.
type Polling struct {
	StartMode              string `env:"POLLING_START_MODE" envDefault:"Automatic"`
	CountdownMode          string `env:"POLLING_COUNTDOWN_MODE" envDefault:"Automatic"`
	BulletStyle            string `env:"POLLING_BULLET_STYLE" envDefault:"ppBulletAlphaUCParenRight"`
	MultipleResponses      bool   `env:"POLLING_MULTIPLE_RESPONSES" envDefault:"false"`
	DefaultDurationSeconds int    `env:"POLLING_DEFAULT_DURATION_SECONDS" envDefault:"30"`
}

// Layouts names the template layouts looked up before the built-in aliases.
type Layouts struct {
	Polling      string `env:"LAYOUT_POLLING_NAME" envDefault:"Polling Question"`
	Title        string `env:"LAYOUT_TITLE_NAME" envDefault:""`
	Participants string `env:"LAYOUT_PARTICIPANTS_NAME" envDefault:""`
}

// Images bounds question image loading.
type Images struct {
	FetchTimeout    time.Duration `env:"IMAGE_FETCH_TIMEOUT" envDefault:"10s"`
	MaxBytes        int64         `env:"IMAGE_MAX_BYTES" envDefault:"10485760"`
	Concurrency     int           `env:"IMAGE_FETCH_CONCURRENCY" envDefault:"4"`
	AllowLocalPaths bool          `env:"IMAGE_ALLOW_LOCAL_PATHS" envDefault:"false"`
}

// Import governs result imports and their event fan-out.
type Import struct {
	EventsChannel        string        `env:"IMPORT_EVENTS_CHANNEL" envDefault:"caces:events"`
	PendingGaugeInterval time.Duration `env:"IMPORT_PENDING_GAUGE_INTERVAL" envDefault:"1m"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
