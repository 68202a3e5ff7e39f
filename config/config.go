package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DbConnectionUri     string        `split_words:"true"`
	ListenAddr          string        `split_words:"true" default:":8080"`
	TargetBaseUrl       string        `required:"true" split_words:"true"`
	TargetTimeout       time.Duration `split_words:"true" default:"30s"`
	SweepInterval       time.Duration `split_words:"true" default:"1m"`
	SweepConcurrency    int           `split_words:"true" default:"1"`
	QueueHostPorts      []string      `split_words:"true"`
	IntakeTopic         string        `split_words:"true"`
	IntakeConsumerGroup string        `split_words:"true" default:"deferral-intake"`
	CompletionTopic     string        `split_words:"true"`

	// MemoryStore keeps tasks in process memory when no database is set.
	// Pending tasks are lost on restart; for development only.
	MemoryStore bool `split_words:"true"`
}

// Load reads the configuration from the environment, optionally under prefix.
func Load(prefix string) (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DbConnectionUri == "" && !c.MemoryStore {
		errs = append(errs, errors.New("DB_CONNECTION_URI must be set unless MEMORY_STORE=true"))
	}
	if c.TargetBaseUrl == "" {
		errs = append(errs, errors.New("TARGET_BASE_URL must be set"))
	}
	if c.TargetTimeout <= 0 {
		errs = append(errs, errors.New("TARGET_TIMEOUT must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.SweepConcurrency < 1 {
		errs = append(errs, errors.New("SWEEP_CONCURRENCY must be at least 1"))
	}
	if (c.IntakeTopic != "" || c.CompletionTopic != "") && len(c.QueueHostPorts) == 0 {
		errs = append(errs, errors.New("QUEUE_HOST_PORTS is required when a topic is set"))
	}
	return errors.Join(errs...)
}
