package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/quorumlabs/adjudicator/internal/blob/s3"
	"github.com/quorumlabs/adjudicator/internal/cache/redis"
	"github.com/quorumlabs/adjudicator/internal/config"
	"github.com/quorumlabs/adjudicator/internal/domain"
	"github.com/quorumlabs/adjudicator/internal/ledger"
	"github.com/quorumlabs/adjudicator/internal/notify"
	"github.com/quorumlabs/adjudicator/internal/platform/gateway"
	"github.com/quorumlabs/adjudicator/internal/protocol"
	"github.com/quorumlabs/adjudicator/internal/service"
	"github.com/quorumlabs/adjudicator/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the application modes
// need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Persistence
	Journal domain.Journal
	Archive domain.ResolutionArchive

	// Redis coordination
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus
	Oracle      domain.PriceOracle

	// Evidence store; nil in modes without object storage.
	Evidence domain.EvidenceArchiver

	// Chain gateway surfaces
	Market     domain.MarketClient
	Roster     domain.DelegateRoster
	Reputation domain.ReputationLedger

	// Protocol core
	Treasury *ledger.Treasury
	Engine   *protocol.Engine

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 returns true for modes that serve the evidence document store.
func needsS3(mode string) bool {
	switch mode {
	case "server", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL: journal and resolution archive ---
	pgClient, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Journal = postgres.NewJournalStore(pool)
	deps.Archive = postgres.NewResolutionStore(pool)

	// --- Redis: locks, rate limiting, event bus, price mirror ---
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	signalBus := redis.NewSignalBus(redisClient)
	deps.SignalBus = signalBus

	// --- Chain gateway ---
	gwClient, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: gateway: %w", err)
	}
	deps.Market = gateway.NewMarketService(gwClient)
	deps.Roster = gateway.NewRosterService(gwClient)
	deps.Reputation = gateway.NewReputationService(gwClient)
	deps.Oracle = redis.NewPriceOracle(redisClient, gateway.NewPriceService(gwClient))

	// --- S3 evidence store (only for modes that serve it) ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Evidence = s3blob.NewEvidenceStore(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Protocol engine ---
	// Every engine event fans out to the durable journal, the Redis event
	// channel, and the notifier. The archivist is added after construction
	// because it reads resolutions back out of the engine.
	sink := &multiSink{}
	sink.Add(newJournalSink(deps.Journal, logger))
	sink.Add(redis.NewEventPublisher(signalBus, logger))
	sink.Add(notify.NewEventSink(deps.Notifier))

	deps.Treasury = ledger.NewTreasury()
	deps.Engine = protocol.NewEngine(
		deps.Treasury,
		deps.Market,
		deps.Roster,
		deps.Reputation,
		logger,
		protocol.Options{
			Oracle:  deps.Oracle,
			Sink:    sink,
			Manager: common.HexToAddress(cfg.Manager),
		},
	)
	sink.Add(service.NewArchivist(deps.Engine, deps.Archive, logger))

	return deps, cleanup, nil
}
