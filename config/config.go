package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"rental_scrooper/models"
)

type Config struct {
	BaseURL       string
	Browser       BrowserConfig
	Cache         CacheConfig
	Scheduler     SchedulerConfig
	Archive       ArchiveConfig
	ScrapeTimeout time.Duration
	DBPath        string
	DatabaseURL   string
	LogLevel      string
	LogPath       string
	FluentHost    string
	FluentPort    int
	Searches      map[string]*SearchConfig
}

type BrowserConfig struct {
	Headless    bool
	NavTimeout  time.Duration
	WaitTimeout time.Duration
	ProxyURL    string
}

type CacheConfig struct {
	Enabled      bool
	Backend      string // redis or memcache
	RedisURL     string
	MemcacheAddr string
	TTL          time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ArchiveConfig struct {
	Dir             string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	AccessKeyID     string
	SecretAccessKey string
}

// SearchConfig is a named search refreshed by the scheduler.
type SearchConfig struct {
	Name   string              `yaml:"name"`
	Filter models.SearchFilter `yaml:"filter"`
}

const defaultSearchDir = "config/searches"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL: strings.TrimRight(getEnv("KLEINANZEIGEN_BASE_URL", "https://www.kleinanzeigen.de"), "/"),
		Browser: BrowserConfig{
			Headless:    getEnvBool("BROWSER_HEADLESS", true),
			NavTimeout:  getEnvDuration("BROWSER_NAV_TIMEOUT", 120*time.Second),
			WaitTimeout: getEnvDuration("BROWSER_WAIT_TIMEOUT", 30*time.Second),
			ProxyURL:    os.Getenv("BROWSER_PROXY_URL"),
		},
		Cache: CacheConfig{
			Enabled:      getEnvBool("CACHE_ENABLED", true),
			Backend:      getEnv("CACHE_BACKEND", "redis"),
			RedisURL:     os.Getenv("REDIS_URL"),
			MemcacheAddr: os.Getenv("MEMCACHE_ADDR"),
			TTL:          time.Duration(getEnvInt("CACHE_TTL_SECONDS", 900)) * time.Second,
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Archive: ArchiveConfig{
			Dir:             os.Getenv("ARCHIVE_DIR"),
			S3Bucket:        os.Getenv("ARCHIVE_S3_BUCKET"),
			S3Region:        getEnv("ARCHIVE_S3_REGION", "eu-central-1"),
			S3Endpoint:      os.Getenv("ARCHIVE_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
		ScrapeTimeout: getEnvDuration("SCRAPE_TIMEOUT", 10*time.Minute),
		DBPath:        getEnv("DB_PATH", "rentals.db"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPath:       getEnv("LOG_PATH", "daemon.log"),
		FluentHost:    os.Getenv("FLUENT_HOST"),
		FluentPort:    getEnvInt("FLUENT_PORT", 24224),
		Searches:      make(map[string]*SearchConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSearchConfigs(getEnv("SEARCH_CONFIG_DIR", defaultSearchDir)); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSearchConfigs(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		if err := validateSearchDocument(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		var search SearchConfig
		if err := yaml.Unmarshal(data, &search); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if search.Name == "" {
			search.Name = strings.TrimSuffix(entry.Name(), ext)
		}
		search.Filter = search.Filter.WithDefaults()
		if err := search.Filter.Validate(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		c.Searches[search.Name] = &search
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
