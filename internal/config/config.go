package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Planning PlanningConfig `mapstructure:"planning"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// DatabaseConfig selects the repository backend. "memory" keeps everything
// in process and is meant for local runs.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

// RedisConfig backs the adaptation job queue and job status store.
// An empty Addr falls back to the in-process queue.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	QueueKey string        `mapstructure:"queue_key"`
	JobTTL   time.Duration `mapstructure:"job_ttl"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig holds the secret used to verify bearer tokens issued by the
// identity service.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// PlanningConfig carries the business knobs of plan creation and the
// recalculation read path.
type PlanningConfig struct {
	MinLeadDays               int           `mapstructure:"min_lead_days"`
	PollTimeout               time.Duration `mapstructure:"poll_timeout"`
	PeriodReductionDaysBefore int           `mapstructure:"period_reduction_days_before"`
	PeriodReductionDaysAfter  int           `mapstructure:"period_reduction_days_after"`
}

type SweeperConfig struct {
	Schedule   string        `mapstructure:"schedule"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type WorkerConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	GeneratorURL     string        `mapstructure:"generator_url"`
	GeneratorTimeout time.Duration `mapstructure:"generator_timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, config.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "stride_planner")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_key", "stride:jobs")
	v.SetDefault("redis.job_ttl", "168h")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("log.mode", "development")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "stride-planner")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_ratio", 0.1)
	v.SetDefault("planning.min_lead_days", 28)
	v.SetDefault("planning.poll_timeout", "2s")
	v.SetDefault("planning.period_reduction_days_before", 2)
	v.SetDefault("planning.period_reduction_days_after", 2)
	v.SetDefault("sweeper.schedule", "@every 5m")
	v.SetDefault("sweeper.stale_after", "2h")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.generator_url", "")
	v.SetDefault("worker.generator_timeout", "2m")
	v.SetDefault("worker.poll_interval", "1s")
}

// Validate reports the first configuration problem that would prevent the
// service from starting.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt.secret: must be set")
	}
	if c.Planning.MinLeadDays < 0 {
		return fmt.Errorf("planning.min_lead_days: must not be negative (got %d)", c.Planning.MinLeadDays)
	}
	if c.Planning.PollTimeout <= 0 {
		return fmt.Errorf("planning.poll_timeout: must be positive (got %s)", c.Planning.PollTimeout)
	}
	if c.Planning.PeriodReductionDaysBefore < 0 || c.Planning.PeriodReductionDaysAfter < 0 {
		return errors.New("planning.period_reduction_days_*: must not be negative")
	}
	if c.Sweeper.StaleAfter <= 0 {
		return fmt.Errorf("sweeper.stale_after: must be positive (got %s)", c.Sweeper.StaleAfter)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency: must be at least 1 (got %d)", c.Worker.Concurrency)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio: must be within [0, 1] (got %v)", c.Tracing.SampleRatio)
	}
	return nil
}
