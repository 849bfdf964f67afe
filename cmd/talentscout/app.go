package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/talentscout/internal/assessment"
	"github.com/kalambet/talentscout/internal/config"
	"github.com/kalambet/talentscout/internal/conversation"
	"github.com/kalambet/talentscout/internal/groq"
	"github.com/kalambet/talentscout/internal/llm"
	"github.com/kalambet/talentscout/internal/notify"
	"github.com/kalambet/talentscout/internal/privacy"
	"github.com/kalambet/talentscout/internal/session"
	"github.com/kalambet/talentscout/internal/storage"
	"github.com/kalambet/talentscout/internal/worker"
)

// app is the in-process dependency graph shared by serve and chat.
type app struct {
	cfg      config.Config
	store    *storage.Store
	llm      *llm.Service
	assessor *assessment.Assessor
	sessions *session.Manager
	purger   *privacy.Purger
	notifier notify.Notifier
	closers  []func() error
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if cfg.Privacy.EncryptionKey != "" {
		cipher, err := privacy.NewCipher(cfg.Privacy.EncryptionKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("field encryption: %w", err)
		}
		store.SetFieldCipher(cipher)
	}

	client := groq.NewClientWithBaseURL(cfg.Groq.APIKey, cfg.Groq.BaseURL).
		SetTimeout(config.Duration(cfg.Groq.Timeout, 30*time.Second))
	a.llm = llm.NewService(client, a.newCache(), llm.Options{
		Models: llm.Models{
			Primary:     cfg.Groq.PrimaryModel,
			LongContext: cfg.Groq.LongContextModel,
			Fast:        cfg.Groq.FastModel,
		},
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		MaxRetries:     cfg.LLM.MaxRetries,
		RateLimitDelay: config.Duration(cfg.LLM.RateLimitDelay, 500*time.Millisecond),
	})

	bank, err := assessment.LoadBank(cfg.Assessment.QuestionBank)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("loading question bank: %w", err)
	}
	a.assessor = assessment.New(bank, a.llm, assessment.Options{
		MaxQuestionsPerSkill: cfg.Assessment.MaxQuestionsPerSkill,
		MaxTotalQuestions:    cfg.Assessment.MaxTotalQuestions,
	})

	conv := conversation.NewManager(a.llm, a.assessor, cfg.UI.MaxMessageLength)
	a.sessions = session.NewManager(store, conv)
	a.purger = privacy.NewPurger(store, cfg.Privacy.RetentionDays).WithSessionLocks(a.sessions)
	a.notifier = a.newNotifier()
	return a, nil
}

// newCache returns nil when caching is disabled. Redis is preferred when
// configured and reachable; otherwise responses are cached in SQLite.
func (a *app) newCache() llm.Cache {
	if !a.cfg.LLM.CacheEnabled {
		return nil
	}
	ttl := config.Duration(a.cfg.LLM.CacheTTL, 24*time.Hour)
	if addr := a.cfg.Cache.RedisAddr; addr != "" {
		rc, err := llm.DialRedis(addr, a.cfg.Cache.RedisPassword, a.cfg.Cache.RedisDB)
		if err == nil {
			a.closers = append(a.closers, rc.Close)
			slog.Info("LLM cache using redis", "addr", addr)
			return llm.NewRedisCache(rc, ttl)
		}
		slog.Warn("redis unavailable, caching in sqlite", "addr", addr, "error", err)
	}
	return llm.NewStoreCache(a.store, ttl)
}

func (a *app) newNotifier() notify.Notifier {
	var multi notify.Multi
	if url := a.cfg.Notify.AMQPURL; url != "" {
		exchange := a.cfg.Notify.AMQPExchange
		if exchange == "" {
			exchange = notify.DefaultExchange
		}
		pub, err := notify.DialAMQP(url, exchange)
		if err != nil {
			slog.Warn("completion events disabled", "error", err)
		} else {
			a.closers = append(a.closers, pub.Close)
			multi = append(multi, pub)
		}
	}
	if a.cfg.Notify.SlackToken != "" && a.cfg.Notify.SlackChannel != "" {
		multi = append(multi, notify.NewSlack(a.cfg.Notify.SlackToken, a.cfg.Notify.SlackChannel, ""))
	}
	if len(multi) == 0 {
		return notify.Nop{}
	}
	return multi
}

func (a *app) newWorker() *worker.Worker {
	return worker.New(worker.Deps{
		Store:     a.store,
		Sessions:  a.sessions,
		Questions: a.assessor,
		Notifier:  a.notifier,
		Purger:    a.purger,
		Cache:     a.store,
		CacheTTL:  config.Duration(a.cfg.LLM.CacheTTL, 24*time.Hour),
	}, 500*time.Millisecond)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
