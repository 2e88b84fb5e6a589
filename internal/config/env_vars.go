package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	apiURLVar    = "API_URL"
	appNameVar   = "APP_NAME"
	folderEnvVar = "DATA_FOLDER"
	profileVar   = "PROFILE"
	logLevelVar  = "LOG_LEVEL"
	storageVar   = "STORAGE"
	portEnvVar   = "PORT"
)

// values holds settings read from a config file, keyed by env var name.
type values map[string]string

func (v values) get(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if value, ok := v[envVar]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (v values) getInt(envVar string, defaultValue int) int {
	n, err := strconv.Atoi(v.get(envVar, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func (v values) getDuration(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(v.get(envVar, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

type EnvVars struct {
	file values
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.file.get(appNameVar, "Brief Portal")
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.file.get("ENV", "DEV"))
}

func (e EnvVars) GetLogLevel() string {
	return e.file.get(logLevelVar, "info")
}

func (e EnvVars) GetDataFolder() string {
	return e.file.get(folderEnvVar, "./data")
}

// GetProfile names the credential scope, the equivalent of a browser origin.
func (e EnvVars) GetProfile() string {
	return e.file.get(profileVar, "default")
}

type API struct {
	file values
}

var _ APIConfig = API{}

func (a API) GetAPIURL() string {
	return strings.TrimRight(a.file.get(apiURLVar, "http://localhost:3000/api"), "/")
}

func (a API) GetRequestTimeoutSeconds() int {
	return a.file.getInt("REQUEST_TIMEOUT_SECONDS", 10)
}

type Storage struct {
	file values
}

var _ StorageConfig = Storage{}

// GetStorageBackend is one of "memory", "sqlite" or "redis".
func (s Storage) GetStorageBackend() string {
	return strings.ToLower(s.file.get(storageVar, "sqlite"))
}

func (s Storage) GetSQLitePath() string {
	return s.file.get("SQLITE_PATH", filepath.Join(EnvVars(s).GetDataFolder(), "session.db"))
}

func (s Storage) GetRedisAddr() string {
	return s.file.get("REDIS_ADDR", "localhost:6379")
}

func (s Storage) GetRedisPassword() string {
	return s.file.get("REDIS_PASSWORD", "")
}

func (s Storage) GetRedisDB() int {
	return s.file.getInt("REDIS_DB", 0)
}

// GetEnv returns the value of envVar or defaultValue when unset.
func GetEnv(envVar, defaultValue string) string {
	return values{}.get(envVar, defaultValue)
}

// GetPort is used by the mock backend.
func (m Mock) GetPort() string {
	port := m.file.get(portEnvVar, "3000")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}
