// Package llm wraps the Groq client with task-aware model selection,
// caching, rate limiting, response validation and canned fallbacks.
package llm

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/talentscout/internal/groq"
)

const (
	longContextThreshold = 7000
	quickContextLimit    = 2000
	maxTemperature       = 0.9

	// sharedCallTimeout bounds a generation shared by identical requests,
	// which outlives the caller that started it.
	sharedCallTimeout = 2 * time.Minute
)

// Chatter is the subset of the Groq client the service needs.
type Chatter interface {
	Chat(ctx context.Context, req groq.ChatRequest) (*groq.ChatResponse, error)
}

// Models names the three model tiers.
type Models struct {
	Primary     string // reasoning and question generation
	LongContext string // long conversations
	Fast        string // short quick replies
}

type Options struct {
	Models         Models
	Temperature    float64
	MaxTokens      int
	MaxRetries     int
	RateLimitDelay time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Models: Models{
			Primary:     "llama3-70b-8192",
			LongContext: "mixtral-8x7b-32768",
			Fast:        "gemma-7b-it",
		},
		Temperature:    0.7,
		MaxTokens:      300,
		MaxRetries:     2,
		RateLimitDelay: 500 * time.Millisecond,
	}
}

// Request describes one generation. Zero values fall back to the service
// defaults; Model overrides model selection.
type Request struct {
	Prompt       string
	Task         Task
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int
	NoCache      bool
}

// Metadata reports how a response was produced.
type Metadata struct {
	Model      string `json:"model_used"`
	TokensUsed int    `json:"tokens_used"`
	CacheHit   bool   `json:"cache_hit"`
	Task       Task   `json:"task_type"`
	Error      string `json:"error,omitempty"`
}

// Service generates text for the assistant. It never fails: when the model
// is unreachable or keeps returning unusable output the task fallback is
// returned and Metadata.Error says why.
type Service struct {
	client Chatter
	cache  Cache
	opts   Options
	logger *slog.Logger

	group singleflight.Group

	mu       sync.Mutex
	lastCall time.Time

	backoff func(attempt int) time.Duration
}

// NewService creates a Service. client may be nil, in which case every
// request is answered with its fallback. cache may be nil to disable caching.
func NewService(client Chatter, cache Cache, opts Options) *Service {
	d := DefaultOptions()
	if opts.Models.Primary == "" {
		opts.Models.Primary = d.Models.Primary
	}
	if opts.Models.LongContext == "" {
		opts.Models.LongContext = d.Models.LongContext
	}
	if opts.Models.Fast == "" {
		opts.Models.Fast = d.Models.Fast
	}
	if opts.Temperature == 0 {
		opts.Temperature = d.Temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = d.MaxTokens
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Service{
		client: client,
		cache:  cache,
		opts:   opts,
		logger: slog.Default(),
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
	}
}

// Available reports whether a model client is configured.
func (s *Service) Available() bool {
	return s.client != nil
}

// SelectModel picks the model for task given the prompt length in characters.
func (s *Service) SelectModel(task Task, contextLen int) string {
	model := s.opts.Models.Primary
	switch task {
	case Conversation:
		model = s.opts.Models.LongContext
	case QuickResponse:
		model = s.opts.Models.Fast
	}
	if contextLen > longContextThreshold {
		model = s.opts.Models.LongContext
	}
	if task == QuickResponse && contextLen < quickContextLimit {
		model = s.opts.Models.Fast
	}
	return model
}

type result struct {
	text string
	meta Metadata
}

// Generate produces a response for req.
func (s *Service) Generate(ctx context.Context, req Request) (string, Metadata) {
	if req.Task == "" {
		req.Task = Screening
	}
	if req.Temperature == 0 {
		req.Temperature = s.opts.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = s.opts.MaxTokens
	}
	if req.Model == "" {
		req.Model = s.SelectModel(req.Task, len(req.Prompt))
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = SystemPrompt(req.Task)
	}

	meta := Metadata{Model: req.Model, Task: req.Task}
	useCache := s.cache != nil && !req.NoCache
	key := CacheKey(req.Prompt, req.Model, req.Temperature)

	if useCache {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("llm cache lookup failed", "error", err)
		} else if ok {
			meta.CacheHit = true
			return cached, meta
		}
	}

	if s.client == nil {
		meta.Error = "LLM client not initialized"
		return Fallback(req.Task), meta
	}

	if err := ctx.Err(); err != nil {
		meta.Error = err.Error()
		return Fallback(req.Task), meta
	}

	ch := s.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		text, m := s.generate(callCtx, req, meta)
		if useCache && m.Error == "" {
			if err := s.cache.Set(callCtx, key, m.Model, text); err != nil {
				s.logger.Warn("llm cache store failed", "error", err)
			}
		}
		return result{text: text, meta: m}, nil
	})
	select {
	case res := <-ch:
		r := res.Val.(result)
		return r.text, r.meta
	case <-ctx.Done():
		meta.Error = ctx.Err().Error()
		return Fallback(req.Task), meta
	}
}

func (s *Service) generate(ctx context.Context, req Request, meta Metadata) (string, Metadata) {
	model := req.Model
	temperature := req.Temperature

	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if err := s.throttle(ctx); err != nil {
			meta.Error = err.Error()
			return Fallback(req.Task), meta
		}

		resp, err := s.client.Chat(ctx, groq.ChatRequest{
			Model: model,
			Messages: []groq.Message{
				{Role: "system", Content: req.SystemPrompt},
				{Role: "user", Content: req.Prompt},
			},
			Temperature: temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			s.logger.Warn("llm request failed", "task", req.Task, "model", model, "attempt", attempt+1, "error", err)
			if ctx.Err() != nil {
				meta.Error = ctx.Err().Error()
				return Fallback(req.Task), meta
			}
			if attempt < s.opts.MaxRetries {
				if err := sleep(ctx, s.backoff(attempt+1)); err != nil {
					meta.Error = err.Error()
					return Fallback(req.Task), meta
				}
			}
			continue
		}

		meta.Model = model
		meta.TokensUsed = resp.TotalTokens
		if Valid(resp.Content) {
			return resp.Content, meta
		}

		s.logger.Warn("llm response rejected", "task", req.Task, "model", model, "attempt", attempt+1)
		switch attempt {
		case 0:
			if model != s.opts.Models.Primary {
				model = s.opts.Models.Primary
			}
		case 1:
			temperature = min(maxTemperature, math.Round((temperature+0.2)*100)/100)
		}
	}

	meta.Error = "Failed after max retries"
	return Fallback(req.Task), meta
}

// throttle enforces the minimum delay between upstream calls.
func (s *Service) throttle(ctx context.Context) error {
	if s.opts.RateLimitDelay <= 0 {
		return nil
	}
	s.mu.Lock()
	wait := s.opts.RateLimitDelay - time.Since(s.lastCall)
	if wait < 0 {
		wait = 0
	}
	s.lastCall = time.Now().Add(wait)
	s.mu.Unlock()

	return sleep(ctx, wait)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var rejectPatterns = []string{
	"i cannot assist with that",
	"i'm unable to",
	"i don't have access to",
	"i apologize, but i cannot",
	"api error",
	"error code",
}

// Valid reports whether a model response is usable: at least 10 characters
// and free of refusal or error boilerplate.
func Valid(response string) bool {
	if len(strings.TrimSpace(response)) < 10 {
		return false
	}
	lower := strings.ToLower(response)
	for _, p := range rejectPatterns {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

// CacheKey derives the cache key for a prompt, model and temperature.
func CacheKey(prompt, model string, temperature float64) string {
	sum := md5.Sum([]byte(prompt + "|" + model + "|" + strconv.FormatFloat(temperature, 'f', -1, 64)))
	return hex.EncodeToString(sum[:])
}
