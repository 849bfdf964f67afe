package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// setting binds a config key and its environment variable to a Config field.
// Secrets are only read from the environment.
type setting struct {
	key    string
	env    string
	secret bool
	field  func(c *Config) any
}

var settings = []setting{
	{key: "server.host", env: "TALENTSCOUT_SERVER_HOST", field: func(c *Config) any { return &c.Server.Host }},
	{key: "server.port", env: "TALENTSCOUT_SERVER_PORT", field: func(c *Config) any { return &c.Server.Port }},
	{key: "server.api_token", env: "TALENTSCOUT_API_TOKEN", secret: true, field: func(c *Config) any { return &c.Server.APIToken }},

	{key: "storage.data_dir", env: "TALENTSCOUT_STORAGE_DATA_DIR", field: func(c *Config) any { return &c.Storage.DataDir }},

	{key: "groq.api_key", env: "GROQ_API_KEY", secret: true, field: func(c *Config) any { return &c.Groq.APIKey }},
	{key: "groq.base_url", env: "TALENTSCOUT_GROQ_BASE_URL", field: func(c *Config) any { return &c.Groq.BaseURL }},
	{key: "groq.primary_model", env: "TALENTSCOUT_GROQ_PRIMARY_MODEL", field: func(c *Config) any { return &c.Groq.PrimaryModel }},
	{key: "groq.long_context_model", env: "TALENTSCOUT_GROQ_LONG_CONTEXT_MODEL", field: func(c *Config) any { return &c.Groq.LongContextModel }},
	{key: "groq.fast_model", env: "TALENTSCOUT_GROQ_FAST_MODEL", field: func(c *Config) any { return &c.Groq.FastModel }},
	{key: "groq.timeout", env: "TALENTSCOUT_GROQ_TIMEOUT", field: func(c *Config) any { return &c.Groq.Timeout }},

	{key: "llm.temperature", env: "TALENTSCOUT_LLM_TEMPERATURE", field: func(c *Config) any { return &c.LLM.Temperature }},
	{key: "llm.max_tokens", env: "TALENTSCOUT_LLM_MAX_TOKENS", field: func(c *Config) any { return &c.LLM.MaxTokens }},
	{key: "llm.max_retries", env: "TALENTSCOUT_LLM_MAX_RETRIES", field: func(c *Config) any { return &c.LLM.MaxRetries }},
	{key: "llm.cache_enabled", env: "TALENTSCOUT_LLM_CACHE_ENABLED", field: func(c *Config) any { return &c.LLM.CacheEnabled }},
	{key: "llm.cache_ttl", env: "TALENTSCOUT_LLM_CACHE_TTL", field: func(c *Config) any { return &c.LLM.CacheTTL }},
	{key: "llm.rate_limit_delay", env: "TALENTSCOUT_LLM_RATE_LIMIT_DELAY", field: func(c *Config) any { return &c.LLM.RateLimitDelay }},

	{key: "cache.redis_addr", env: "TALENTSCOUT_REDIS_ADDR", field: func(c *Config) any { return &c.Cache.RedisAddr }},
	{key: "cache.redis_password", env: "TALENTSCOUT_REDIS_PASSWORD", secret: true, field: func(c *Config) any { return &c.Cache.RedisPassword }},
	{key: "cache.redis_db", env: "TALENTSCOUT_REDIS_DB", field: func(c *Config) any { return &c.Cache.RedisDB }},

	{key: "assessment.max_questions_per_skill", env: "TALENTSCOUT_ASSESSMENT_MAX_QUESTIONS_PER_SKILL", field: func(c *Config) any { return &c.Assessment.MaxQuestionsPerSkill }},
	{key: "assessment.max_total_questions", env: "TALENTSCOUT_ASSESSMENT_MAX_TOTAL_QUESTIONS", field: func(c *Config) any { return &c.Assessment.MaxTotalQuestions }},
	{key: "assessment.question_bank", env: "TALENTSCOUT_ASSESSMENT_QUESTION_BANK", field: func(c *Config) any { return &c.Assessment.QuestionBank }},

	{key: "privacy.retention_days", env: "TALENTSCOUT_PRIVACY_RETENTION_DAYS", field: func(c *Config) any { return &c.Privacy.RetentionDays }},
	{key: "privacy.purge_schedule", env: "TALENTSCOUT_PRIVACY_PURGE_SCHEDULE", field: func(c *Config) any { return &c.Privacy.PurgeSchedule }},
	{key: "privacy.encryption_key", env: "TALENTSCOUT_ENCRYPTION_KEY", secret: true, field: func(c *Config) any { return &c.Privacy.EncryptionKey }},

	{key: "notify.amqp_url", env: "TALENTSCOUT_AMQP_URL", secret: true, field: func(c *Config) any { return &c.Notify.AMQPURL }},
	{key: "notify.amqp_exchange", env: "TALENTSCOUT_AMQP_EXCHANGE", field: func(c *Config) any { return &c.Notify.AMQPExchange }},
	{key: "notify.slack_token", env: "TALENTSCOUT_SLACK_TOKEN", secret: true, field: func(c *Config) any { return &c.Notify.SlackToken }},
	{key: "notify.slack_channel", env: "TALENTSCOUT_SLACK_CHANNEL", field: func(c *Config) any { return &c.Notify.SlackChannel }},

	{key: "log.level", env: "TALENTSCOUT_LOG_LEVEL", field: func(c *Config) any { return &c.Log.Level }},
	{key: "log.format", env: "TALENTSCOUT_LOG_FORMAT", field: func(c *Config) any { return &c.Log.Format }},

	{key: "ui.max_message_length", env: "TALENTSCOUT_UI_MAX_MESSAGE_LENGTH", field: func(c *Config) any { return &c.UI.MaxMessageLength }},
}

func lookupSetting(key string) (setting, bool) {
	for _, s := range settings {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// assign parses raw into the field dst points at. dst is left untouched on
// error.
func assign(dst any, raw string) error {
	raw = strings.TrimSpace(raw)
	switch p := dst.(type) {
	case *string:
		*p = raw
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*p = n
	case *bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*p = b
	case *float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*p = f
	default:
		return fmt.Errorf("unsupported field type %T", dst)
	}
	return nil
}

func format(field any) string {
	switch p := field.(type) {
	case *string:
		return *p
	case *int:
		return strconv.Itoa(*p)
	case *bool:
		return strconv.FormatBool(*p)
	case *float64:
		return strconv.FormatFloat(*p, 'g', -1, 64)
	}
	return fmt.Sprint(field)
}

// applyStore copies non-secret settings from st into cfg. A value that does
// not parse is reported and the default kept.
func applyStore(cfg *Config, st Store) {
	for _, s := range settings {
		if s.secret {
			continue
		}
		raw, ok := st.Lookup(s.key)
		if !ok || raw == "" {
			continue
		}
		if err := assign(s.field(cfg), raw); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring config key %s=%q: %v\n", s.key, raw, err)
		}
	}
}

// applyEnv lets TALENTSCOUT_* (and GROQ_API_KEY) override everything else.
func applyEnv(cfg *Config) {
	for _, s := range settings {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		if err := assign(s.field(cfg), raw); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring %s=%q: %v\n", s.env, raw, err)
		}
	}
}
