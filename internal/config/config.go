package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	PublishBackendZMQ   = "zmq"
	PublishBackendRedis = "redis"
)

type Config struct {
	Learner LearnerConfig `yaml:"learner"`
	Comm    CommConfig    `yaml:"comm"`
	Agent   AgentConfig   `yaml:"agent"`
	Redis   RedisConfig   `yaml:"redis"`
	Server  ServerConfig  `yaml:"server"`
	Tracing TracingConfig `yaml:"tracing"`
	Log     LogConfig     `yaml:"log"`
}

type LearnerConfig struct {
	Device                string `yaml:"device"`
	TargetUpdateFrequency int64  `yaml:"target_update_frequency"`
	ParamUpdateInterval   int64  `yaml:"param_update_interval"`
	QueueCapacity         int    `yaml:"queue_capacity"`
	NumAgents             int    `yaml:"num_agents"`
	BatchSize             int    `yaml:"batch_size"`
	StartupDelayMS        int    `yaml:"startup_delay_ms"`
}

type CommConfig struct {
	BindHost       string `yaml:"bind_host"`
	RepReqPort     int    `yaml:"repreq_port"`
	PubSubPort     int    `yaml:"pubsub_port"`
	PublishBackend string `yaml:"publish_backend"`
}

type AgentConfig struct {
	ObsDim       int     `yaml:"obs_dim"`
	NumActions   int     `yaml:"num_actions"`
	LearningRate float64 `yaml:"learning_rate"`
	Gamma        float64 `yaml:"gamma"`
}

type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

type ServerConfig struct {
	// AdminPort serves /healthz, /stats and /metrics; 0 disables it.
	AdminPort int `yaml:"admin_port"`
}

type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Learner: LearnerConfig{
			Device:                "cpu",
			TargetUpdateFrequency: 100,
			ParamUpdateInterval:   50,
			QueueCapacity:         1000,
			NumAgents:             3,
			BatchSize:             64,
			StartupDelayMS:        3000,
		},
		Comm: CommConfig{
			BindHost:       "127.0.0.1",
			RepReqPort:     5555,
			PubSubPort:     5556,
			PublishBackend: PublishBackendZMQ,
		},
		Agent: AgentConfig{
			ObsDim:       4,
			NumActions:   2,
			LearningRate: 0.01,
			Gamma:        0.99,
		},
		Redis: RedisConfig{
			Channel: "learner:params",
		},
		Server: ServerConfig{
			AdminPort: 9003,
		},
		Tracing: TracingConfig{
			Insecure: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if non-empty), then environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Learner.Device = getEnv("LEARNER_DEVICE", cfg.Learner.Device)
	cfg.Learner.TargetUpdateFrequency = getEnvInt64("TARGET_UPDATE_FREQUENCY", cfg.Learner.TargetUpdateFrequency)
	cfg.Learner.ParamUpdateInterval = getEnvInt64("PARAM_UPDATE_INTERVAL", cfg.Learner.ParamUpdateInterval)
	cfg.Learner.QueueCapacity = getEnvInt("REPLAY_QUEUE_CAPACITY", cfg.Learner.QueueCapacity)
	cfg.Learner.NumAgents = getEnvInt("NUM_AGENTS", cfg.Learner.NumAgents)
	cfg.Learner.BatchSize = getEnvInt("BATCH_SIZE", cfg.Learner.BatchSize)
	cfg.Learner.StartupDelayMS = getEnvInt("STARTUP_DELAY_MS", cfg.Learner.StartupDelayMS)

	cfg.Comm.BindHost = getEnv("BIND_HOST", cfg.Comm.BindHost)
	cfg.Comm.RepReqPort = getEnvInt("REPREQ_PORT", cfg.Comm.RepReqPort)
	cfg.Comm.PubSubPort = getEnvInt("PUBSUB_PORT", cfg.Comm.PubSubPort)
	cfg.Comm.PublishBackend = strings.ToLower(getEnv("PUBLISH_BACKEND", cfg.Comm.PublishBackend))

	cfg.Agent.ObsDim = getEnvInt("AGENT_OBS_DIM", cfg.Agent.ObsDim)
	cfg.Agent.NumActions = getEnvInt("AGENT_NUM_ACTIONS", cfg.Agent.NumActions)
	cfg.Agent.LearningRate = getEnvFloat("AGENT_LEARNING_RATE", cfg.Agent.LearningRate)
	cfg.Agent.Gamma = getEnvFloat("AGENT_GAMMA", cfg.Agent.Gamma)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Channel = getEnv("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.Server.AdminPort = getEnvInt("ADMIN_PORT", cfg.Server.AdminPort)

	cfg.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.Insecure = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Tracing.Insecure)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Learner.TargetUpdateFrequency <= 0 {
		errs = append(errs, fmt.Errorf("TARGET_UPDATE_FREQUENCY must be > 0, got %d", c.Learner.TargetUpdateFrequency))
	}
	if c.Learner.ParamUpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("PARAM_UPDATE_INTERVAL must be > 0, got %d", c.Learner.ParamUpdateInterval))
	}
	if c.Learner.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("REPLAY_QUEUE_CAPACITY must be > 0, got %d", c.Learner.QueueCapacity))
	}
	if c.Learner.NumAgents <= 0 {
		errs = append(errs, fmt.Errorf("NUM_AGENTS must be > 0, got %d", c.Learner.NumAgents))
	}
	if c.Learner.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be > 0, got %d", c.Learner.BatchSize))
	}
	if c.Learner.StartupDelayMS < 0 {
		errs = append(errs, fmt.Errorf("STARTUP_DELAY_MS must be >= 0, got %d", c.Learner.StartupDelayMS))
	}
	if c.Comm.BindHost == "" {
		errs = append(errs, errors.New("BIND_HOST is required"))
	}
	if !validPort(c.Comm.RepReqPort) {
		errs = append(errs, fmt.Errorf("REPREQ_PORT must be in 1-65535, got %d", c.Comm.RepReqPort))
	}
	switch c.Comm.PublishBackend {
	case PublishBackendZMQ:
		if !validPort(c.Comm.PubSubPort) {
			errs = append(errs, fmt.Errorf("PUBSUB_PORT must be in 1-65535, got %d", c.Comm.PubSubPort))
		} else if c.Comm.PubSubPort == c.Comm.RepReqPort {
			errs = append(errs, fmt.Errorf("PUBSUB_PORT and REPREQ_PORT must differ, both are %d", c.Comm.PubSubPort))
		}
	case PublishBackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis publish backend"))
		}
		if c.Redis.Channel == "" {
			errs = append(errs, errors.New("REDIS_CHANNEL is required for the redis publish backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("PUBLISH_BACKEND must be %q or %q, got %q",
			PublishBackendZMQ, PublishBackendRedis, c.Comm.PublishBackend))
	}
	if c.Server.AdminPort != 0 && !validPort(c.Server.AdminPort) {
		errs = append(errs, fmt.Errorf("ADMIN_PORT must be 0 or in 1-65535, got %d", c.Server.AdminPort))
	}
	return errors.Join(errs...)
}

func (c *Config) StartupDelay() time.Duration {
	return time.Duration(c.Learner.StartupDelayMS) * time.Millisecond
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
