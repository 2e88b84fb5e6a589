package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	APIConfig
	StorageConfig
	CacheConfig
	MockConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
	GetProfile() string
}

type APIConfig interface {
	GetAPIURL() string
	GetRequestTimeoutSeconds() int
}

type StorageConfig interface {
	GetStorageBackend() string
	GetSQLitePath() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type mainConfig struct {
	EnvVars
	API
	Storage
	Cache
	Mock
}

// New returns configuration read from environment variables only.
func New() Config {
	return newConfig(values{})
}

// Load overlays a YAML file onto the environment. Keys in the file use the
// environment variable names, e.g. "API_URL: http://localhost:3000/api".
// Environment variables take precedence over the file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[config.Load] read")
	}
	file := values{}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "[config.Load] parse")
	}
	return newConfig(file), nil
}

func newConfig(file values) Config {
	return mainConfig{
		EnvVars: EnvVars{file},
		API:     API{file},
		Storage: Storage{file},
		Cache:   Cache{file},
		Mock:    Mock{file},
	}
}
