package config

import (
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	Port string

	// Cycle scheduling
	ScanInterval    time.Duration
	ReplyInterval   time.Duration
	SummaryInterval time.Duration
	RefreshInterval time.Duration
	SummaryCron     string // optional cron expression; overrides SummaryInterval

	// Throughput caps and thresholds
	MaxTweetsScan      int
	MaxRepliesPerCycle int
	MinInsightScore    float64
	DedupCapacity      int
	RetentionDays      int // rejected items older than this are purged, 0 disables

	// Persistence
	DatabasePath string

	// OpenAI-compatible generation endpoint
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Twitter credentials (browser login)
	TwitterEmail    string
	TwitterPassword string
	TwitterAccount  string
	Headless        bool

	// Scorer keyword list and prompt templates
	KeywordsFile string
	PromptsFile  string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8090"),

		ScanInterval:    getDurationEnv("SCAN_INTERVAL", 5*time.Minute),
		ReplyInterval:   getDurationEnv("REPLY_INTERVAL", 6*time.Minute),
		SummaryInterval: getDurationEnv("SUMMARY_INTERVAL", 20*time.Minute),
		RefreshInterval: getDurationEnv("REFRESH_INTERVAL", time.Hour),
		SummaryCron:     getEnv("SUMMARY_CRON", ""),

		MaxTweetsScan:      getIntEnv("MAX_TWEETS_SCAN", 10),
		MaxRepliesPerCycle: getIntEnv("MAX_REPLIES_PER_CYCLE", 5),
		MinInsightScore:    getFloatEnv("MIN_INSIGHT_SCORE", 50),
		DedupCapacity:      getIntEnv("DEDUP_CAPACITY", 1000),
		RetentionDays:      getIntEnv("RETENTION_DAYS", 30),

		DatabasePath: getEnv("DATABASE_PATH", "birdwatch.db"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		TwitterEmail:    getEnv("TWITTER_EMAIL", ""),
		TwitterPassword: getEnv("TWITTER_PASSWORD", ""),
		TwitterAccount:  getEnv("TWITTER_ACCOUNT", ""),
		Headless:        getBoolEnv("HEADLESS", true),

		KeywordsFile: getEnv("KEYWORDS_FILE", ""),
		PromptsFile:  getEnv("PROMPTS_FILE", ""),
	}
}

// Validate checks the parts of the configuration that would otherwise fail
// deep inside a cycle run.
func (c *Config) Validate() error {
	if c.SummaryCron != "" {
		if _, err := cron.ParseStandard(c.SummaryCron); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("5m", "90s"). A bare integer is
// read as minutes, matching how the intervals were configured historically.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}
	return defaultValue
}
