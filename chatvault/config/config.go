package config

import (
	"os"

	"chatvault/chatvault/utils/logging"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type ArchiveConfig struct {
	Enable    bool   `yaml:"enable"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

type Config struct {
	DataDir        string   `yaml:"data_dir"`
	EnablePrivate  bool     `yaml:"enable_private"`
	EnableGroup    bool     `yaml:"enable_group"`
	GroupWhitelist []string `yaml:"group_whitelist"`
	GroupBlacklist []string `yaml:"group_blacklist"`
	SaveSystemInfo bool     `yaml:"save_system_info"`
	MaxFileSizeMB  int      `yaml:"max_file_size_mb"`

	ServerPort  int    `yaml:"server_port"`
	EnableWebUI bool   `yaml:"enable_webui"`
	WebUIHost   string `yaml:"webui_host"`
	WebUIPort   int    `yaml:"webui_port"`

	// Empty disables bearer auth on the recorder endpoint.
	AuthSecret string `yaml:"auth_secret"`

	Archive ArchiveConfig `yaml:"archive"`
}

func Defaults() Config {
	return Config{
		DataDir:        "./data/chatlog",
		EnablePrivate:  true,
		EnableGroup:    true,
		SaveSystemInfo: true,
		MaxFileSizeMB:  50,
		ServerPort:     8010,
		EnableWebUI:    true,
		WebUIHost:      "0.0.0.0",
		WebUIPort:      8866,
	}
}

// LoadConfig reads the yaml config at path over the defaults, then applies
// env overrides for secrets. Invalid values are reported and replaced with
// defaults; the service never refuses to start over configuration.
func LoadConfig(path string) Config {
	if err := godotenv.Load(); err != nil {
		logging.AppLogger.Info("no .env file found, using system environment")
	}

	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		logging.AppLogger.Warn("config file not readable, using defaults",
			zap.String("path", path), zap.Error(err))
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		logging.ErrorLogger.Error("config parse error, using defaults",
			zap.String("path", path), zap.Error(err))
		cfg = Defaults()
	}

	cfg.AuthSecret = getEnv("CHATVAULT_AUTH_SECRET", cfg.AuthSecret)
	cfg.Archive.Endpoint = getEnv("CHATVAULT_MINIO_ENDPOINT", cfg.Archive.Endpoint)
	cfg.Archive.AccessKey = getEnv("CHATVAULT_MINIO_ACCESS_KEY", cfg.Archive.AccessKey)
	cfg.Archive.SecretKey = getEnv("CHATVAULT_MINIO_SECRET_KEY", cfg.Archive.SecretKey)

	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	def := Defaults()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.MaxFileSizeMB <= 0 {
		logging.AppLogger.Warn("invalid max_file_size_mb, falling back",
			zap.Int("value", c.MaxFileSizeMB), zap.Int("default", def.MaxFileSizeMB))
		c.MaxFileSizeMB = def.MaxFileSizeMB
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		logging.AppLogger.Warn("invalid server_port, falling back",
			zap.Int("value", c.ServerPort), zap.Int("default", def.ServerPort))
		c.ServerPort = def.ServerPort
	}
	if c.WebUIPort <= 0 || c.WebUIPort > 65535 {
		logging.AppLogger.Warn("invalid webui_port, falling back",
			zap.Int("value", c.WebUIPort), zap.Int("default", def.WebUIPort))
		c.WebUIPort = def.WebUIPort
	}
	if c.WebUIHost == "" {
		c.WebUIHost = def.WebUIHost
	}
}

// MaxFileBytes is the rotation threshold in bytes.
func (c Config) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}
