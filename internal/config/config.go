package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Groq       GroqConfig
	LLM        LLMConfig
	Cache      CacheConfig
	Assessment AssessmentConfig
	Privacy    PrivacyConfig
	Notify     NotifyConfig
	Log        LogConfig
	UI         UIConfig
}

type ServerConfig struct {
	Host     string
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type GroqConfig struct {
	APIKey           string
	BaseURL          string
	PrimaryModel     string
	LongContextModel string
	FastModel        string
	Timeout          string
}

type LLMConfig struct {
	Temperature    float64
	MaxTokens      int
	MaxRetries     int
	CacheEnabled   bool
	CacheTTL       string
	RateLimitDelay string
}

type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type AssessmentConfig struct {
	MaxQuestionsPerSkill int
	MaxTotalQuestions    int
	QuestionBank         string
}

type PrivacyConfig struct {
	RetentionDays int
	PurgeSchedule string
	EncryptionKey string
}

type NotifyConfig struct {
	AMQPURL      string
	AMQPExchange string
	SlackToken   string
	SlackChannel string
}

type LogConfig struct {
	Level  string
	Format string // "color", "text" or "json"
}

type UIConfig struct {
	MaxMessageLength int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8501,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Groq: GroqConfig{
			BaseURL:          "https://api.groq.com/openai/v1",
			PrimaryModel:     "llama3-70b-8192",
			LongContextModel: "mixtral-8x7b-32768",
			FastModel:        "gemma-7b-it",
			Timeout:          "30s",
		},
		LLM: LLMConfig{
			Temperature:    0.7,
			MaxTokens:      300,
			MaxRetries:     2,
			CacheEnabled:   true,
			CacheTTL:       "24h",
			RateLimitDelay: "500ms",
		},
		Assessment: AssessmentConfig{
			MaxQuestionsPerSkill: 2,
			MaxTotalQuestions:    5,
		},
		Privacy: PrivacyConfig{
			RetentionDays: 180,
			PurgeSchedule: "0 3 * * *",
		},
		Notify: NotifyConfig{
			AMQPExchange: "talentscout.events",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "color",
		},
		UI: UIConfig{
			MaxMessageLength: 800,
		},
	}
}

// Load reads configuration from .env, the YAML config file (see FilePath)
// and environment variables, in increasing order of precedence.
// GROQ_API_KEY is required.
func Load() (Config, error) {
	cfg, err := LoadUnchecked()
	if err != nil {
		return Config{}, err
	}
	if err := requireAPIKey(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadUnchecked is Load without the required-secret check. CLI commands that
// only talk to a running server use it.
func LoadUnchecked() (Config, error) {
	loadDotEnv(".env")
	f, err := openYAMLFile(FilePath())
	if err != nil {
		return Config{}, err
	}
	return loadWith(f), nil
}

func loadWith(st Store) Config {
	cfg := defaults()
	applyStore(&cfg, st)
	applyEnv(&cfg)
	return cfg
}

func requireAPIKey(cfg Config) error {
	if cfg.Groq.APIKey == "" {
		return errors.New("missing required config: Groq API key. " +
			"Set it via environment variable GROQ_API_KEY or in a .env file")
	}
	return nil
}

// loadDotEnv exports variables from path without overriding the ones already
// set in the environment.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "[WARN] could not load %s: %v\n", path, err)
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "talentscout-data"
		}
	}
	return filepath.Join(dir, "talentscout")
}

// FilePath is $TALENTSCOUT_CONFIG when set, otherwise
// $XDG_CONFIG_HOME/talentscout/config.yaml.
func FilePath() string {
	if p := os.Getenv("TALENTSCOUT_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "talentscout", "config.yaml")
}

// Duration parses a Go duration string, returning def when s is empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		fmt.Fprintf(os.Stderr, "[WARN] invalid duration %q: using %s\n", s, def)
		return def
	}
	return d
}
