package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/memories/internal/domain"
)

// Storage backends.
const (
	BackendLocal     = "local"
	BackendRedis     = "redis"
	BackendMemcached = "memcached"
	BackendPostgres  = "postgres"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "MEMORIES_CONFIG"

type Config struct {
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Device  Device  `yaml:"device"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	Debug         bool   `yaml:"debug"`
	LogLevel      string `yaml:"logLevel"` // debug, info, warn, error
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Storage struct {
	Backend       string        `yaml:"backend"` // local, redis, memcached, postgres
	Key           string        `yaml:"key"`
	SnapshotPath  string        `yaml:"snapshotPath"`
	PostgresDsn   string        `yaml:"postgresDsn"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	MemcachedAddr string        `yaml:"memcachedAddr"`
	Breaker       bool          `yaml:"breaker"`
	BreakerReset  time.Duration `yaml:"breakerReset"`
}

type Device struct {
	MediaDir   string `yaml:"mediaDir"`
	GalleryDir string `yaml:"galleryDir"`
}

// Path returns the config file path from the environment.
func Path() string {
	if path := os.Getenv(EnvPath); path != "" {
		return path
	}
	return "config.yaml"
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	config.applyDefaults()

	err = config.Validate()
	if err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}
	if c.Storage.Key == "" {
		c.Storage.Key = domain.DefaultCollectionKey
	}
	if c.Storage.BreakerReset == 0 {
		c.Storage.BreakerReset = 30 * time.Second
	}
	if c.Device.MediaDir == "" {
		c.Device.MediaDir = "media"
	}
}

func (c Config) Validate() error {
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown logLevel %q", c.Server.LogLevel)
	}

	if c.Server.EnableTrace && c.Server.TraceEndpoint == "" {
		return errors.New("traceEndpoint is required when enableTrace is set")
	}

	switch c.Storage.Backend {
	case BackendLocal:
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("redisAddr is required for the redis backend")
		}
	case BackendMemcached:
		if c.Storage.MemcachedAddr == "" {
			return errors.New("memcachedAddr is required for the memcached backend")
		}
	case BackendPostgres:
		if c.Storage.PostgresDsn == "" {
			return errors.New("postgresDsn is required for the postgres backend")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}
