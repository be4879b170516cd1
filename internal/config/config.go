package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Sweep struct {
		// Enabled is a pointer so an omitted key keeps the sweeper on.
		Enabled       *bool  `yaml:"enabled"`
		Interval      string `yaml:"interval"`
		InitialDelay  string `yaml:"initialDelay"`
		SystemActorID string `yaml:"systemActorId"`
	} `yaml:"sweep"`
	Events struct {
		AMQPURL  string `yaml:"amqpUrl"`
		Exchange string `yaml:"exchange"`
	} `yaml:"events"`
	Store struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"store"`
}

// Load reads YAML config from path, then applies environment overrides for
// connection settings.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"LOG_LEVEL", &c.Log.Level},
		{"REDIS_ADDR", &c.Redis.Addr},
		{"POSTGRES_URL", &c.Postgres.URL},
		{"MONGO_URI", &c.Mongo.URI},
		{"MONGO_DATABASE", &c.Mongo.Database},
		{"AMQP_URL", &c.Events.AMQPURL},
		{"SYSTEM_ACTOR_ID", &c.Sweep.SystemActorID},
	}
	for _, o := range overrides {
		if v := getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

// SweepEnabled reports whether the periodic sweeper should run.
func (c Config) SweepEnabled() bool {
	return c.Sweep.Enabled == nil || *c.Sweep.Enabled
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
