package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrInvalidSecretKey = errors.New("SECRET_KEY must be 16, 24 or 32 bytes long")

type R2 struct {
	AccountID  string `env:"R2_ACCOUNT_ID"`
	AccessKey  string `env:"R2_ACCESS_KEY"`
	SecretKey  string `env:"R2_SECRET_KEY"`
	BucketName string `env:"R2_BUCKET_NAME"`
	PublicURL  string `env:"R2_PUBLIC_URL"`
}

type Threads struct {
	APIURL                string        `env:"THREADS_API_URL" envDefault:"https://graph.threads.net/v1.0"`
	RequestTimeout        time.Duration `env:"THREADS_REQUEST_TIMEOUT" envDefault:"30s"`
	ContainerPollInterval time.Duration `env:"THREADS_CONTAINER_POLL_INTERVAL" envDefault:"3s"`
	ContainerMaxPolls     int           `env:"THREADS_CONTAINER_MAX_POLLS" envDefault:"10"`
}

type Scheduler struct {
	DispatchInterval     time.Duration `env:"DISPATCH_INTERVAL" envDefault:"1m"`
	BatchSize            int           `env:"DISPATCH_BATCH_SIZE" envDefault:"10"`
	RetryBackoff         time.Duration `env:"RETRY_BACKOFF" envDefault:"30m"`
	StuckTimeout         time.Duration `env:"STUCK_TIMEOUT" envDefault:"15m"`
	TokenRefreshInterval time.Duration `env:"TOKEN_REFRESH_INTERVAL" envDefault:"10m"`
	InsightsSyncInterval time.Duration `env:"INSIGHTS_SYNC_INTERVAL" envDefault:"1h"`
}

type Config struct {
	Port        string `env:"PORT" envDefault:"3000"`
	PostgresURI string `env:"POSTGRES_URI,required,notEmpty"`
	RedisURI    string `env:"REDIS_URI" envDefault:"localhost:6379"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	SecretKey   string `env:"SECRET_KEY,required"`
	CookieName  string `env:"COOKIE_NAME" envDefault:"threads_scheduler_session"`
	CronSecret  string `env:"CRON_SECRET"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
	R2          R2
	Threads     Threads
	Scheduler   Scheduler
}

// LoadConfig reads the configuration from the environment. The .env file, if
// any, has to be loaded before.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}

	switch len(cfg.SecretKey) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidSecretKey
	}

	return &cfg, nil
}
