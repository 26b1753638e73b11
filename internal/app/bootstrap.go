// Package app is the composition root shared by the server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"trustline/backend/internal/analysis"
	"trustline/backend/internal/complaint"
	"trustline/backend/internal/config"
	"trustline/backend/internal/events"
	"trustline/backend/internal/jobs"
	"trustline/backend/internal/livehub"
	"trustline/backend/internal/localization"
	"trustline/backend/internal/logger"
	"trustline/backend/internal/stats"
	"trustline/backend/internal/storage"
	"trustline/backend/internal/telegram"
	"trustline/backend/internal/users"
	"trustline/backend/internal/worker"
)

// Application holds the composed dependencies.
type Application struct {
	Config *config.Config

	DB    *storage.Database
	Redis *redis.Client
	Store *storage.Service
	Pools *worker.Pools

	Publisher  *events.Publisher
	Stats      *stats.Aggregator
	Hub        *livehub.Hub
	Relay      *livehub.RedisRelay
	Complaints *complaint.Service
	Users      *users.Service
	Escalator  *complaint.Escalator
	Bot        *telegram.Bot

	river *river.Client[pgx.Tx]
}

const queueTimeout = 5 * time.Second

type options struct {
	inlineFanout bool
}

// Option tweaks Bootstrap.
type Option func(*options)

// WithInlineFanout delivers events on the publishing goroutine instead of the
// fanout pool, so a short-lived process does not exit with deliveries pending.
func WithInlineFanout() Option {
	return func(o *options) { o.inlineFanout = true }
}

// Bootstrap opens the stores and wires every service. Nothing is started.
func Bootstrap(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &Application{Config: cfg}

	db, err := storage.OpenDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.DB = db
	if cfg.Database.AutoMigrate {
		if err := storage.AutoMigrate(db.Gorm); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		// The queue sink tolerates an unreachable broker; only OTP needs it.
		logger.Warn("Redis is not reachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	a.Store = storage.NewStorageService(db.Gorm, a.Redis, storage.QueueOptions{
		StreamPrefix: cfg.Queue.StreamPrefix,
		MaxLen:       cfg.Queue.MaxLen,
	})

	a.Pools, err = worker.NewPools(ctx, worker.PoolConfig{
		FanoutPoolSize:  cfg.Worker.FanoutPoolSize,
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		Nonblocking:     true,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	texts, err := localization.NewDefault()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load localization: %w", err)
	}

	a.Stats = stats.NewAggregator(a.Store)
	a.Hub = livehub.NewHub(a.Stats)

	var broadcaster events.Broadcaster = a.Hub
	if cfg.Dashboard.Relay == "redis" {
		a.Relay = livehub.NewRedisRelay(a.Redis, cfg.Dashboard.RelayChannel, a.Hub)
		broadcaster = a.Relay
	}

	var dispatcher events.Dispatcher = a.Pools
	if o.inlineFanout {
		dispatcher = events.Inline{}
	}
	a.Publisher = events.NewPublisher(dispatcher, a.Stats,
		events.NewQueueSink(a.Store, texts, cfg.Locale, queueTimeout),
		events.NewDashboardSink(broadcaster),
	)

	if cfg.Telegram.Enabled {
		bot, err := telegram.NewBot(cfg.Telegram)
		if err != nil {
			// Alerts are optional; the server runs without them.
			logger.Error("Telegram alerts disabled", zap.Error(err))
		} else {
			a.Bot = bot.WithCommands(a.Stats, a.Store)
			a.Publisher.AddSink(telegram.NewAlertSink(bot.API, cfg.Telegram.ChatID, texts, cfg.Locale))
		}
	}

	var classifier analysis.Classifier
	if cfg.Classification.GeminiAPIKey != "" {
		classifier = analysis.NewGeminiClassifier(
			cfg.Classification.GeminiEndpoint,
			cfg.Classification.GeminiAPIKey,
			cfg.Classification.Timeout,
		)
	}

	a.Complaints = complaint.NewService(a.Store, a.Publisher, complaint.Options{
		Policy:     complaint.PolicyFor(cfg.Lifecycle.StrictTransitions),
		MaxRetries: cfg.Lifecycle.MaxRetries,
		CivicSet:   analysis.NewCivicSet(cfg.Classification.CivicLabels),
		Classifier: classifier,
	})

	a.Users = users.NewService(a.Store, a.Publisher, users.Options{
		Secret:    []byte(cfg.Auth.JWTSecret),
		TokenTTL:  cfg.Auth.TokenTTL,
		Issuer:    cfg.Auth.Issuer,
		OTPTTL:    cfg.OTP.TTL,
		OTPLength: cfg.OTP.Length,
	})

	a.Escalator = complaint.NewEscalator(a.Store, complaint.EscalatorOptions{
		Thresholds: complaint.Thresholds{
			MediumAfter: cfg.Escalation.MediumAfter,
			HighAfter:   cfg.Escalation.HighAfter,
		},
		IncludeClosed: cfg.Escalation.IncludeClosed,
		Interval:      cfg.Escalation.Interval,
	})

	return a, nil
}

// Start launches the background loops: the dashboard relay, the escalator
// (ticker or River) and the Telegram command poller. They stop with ctx.
func (a *Application) Start(ctx context.Context) error {
	if a.Relay != nil {
		go a.Relay.Run(ctx)
	}

	switch a.Config.Escalation.Backend {
	case "river":
		if err := jobs.Migrate(ctx, a.DB.Pool); err != nil {
			return err
		}
		client, err := jobs.NewClient(a.DB.Pool, a.Escalator, a.Config.Escalation.Interval, a.Config.River)
		if err != nil {
			return err
		}
		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		a.river = client
	default:
		go a.Escalator.Run(ctx)
	}

	if a.Bot != nil {
		go a.Bot.Run(ctx)
	}
	return nil
}

// Close stops the background work and releases connections. Pending fanout
// tasks get a chance to finish before the stores close.
func (a *Application) Close() {
	if a.river != nil {
		if err := a.river.Stop(context.Background()); err != nil {
			logger.Warn("River client stop failed", zap.Error(err))
		}
	}
	if a.Hub != nil {
		a.Hub.Shutdown()
	}
	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
