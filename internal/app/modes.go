package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ascheung/poolbot/internal/crypto"
	"github.com/ascheung/poolbot/internal/domain"
	"github.com/ascheung/poolbot/internal/executor"
	"github.com/ascheung/poolbot/internal/feed"
	"github.com/ascheung/poolbot/internal/graph"
	"github.com/ascheung/poolbot/internal/intel"
	"github.com/ascheung/poolbot/internal/notify"
	"github.com/ascheung/poolbot/internal/policy"
	"github.com/ascheung/poolbot/internal/scanner"
	"github.com/ascheung/poolbot/internal/server"
	"github.com/ascheung/poolbot/internal/server/handler"
	"github.com/ascheung/poolbot/internal/server/ws"
	"github.com/ascheung/poolbot/internal/service"
)

// engine groups the core decision-engine components built for scan and full
// modes. The HTTP handlers read from it when present.
type engine struct {
	graph     *graph.Graph
	agg       *intel.Aggregator
	scanner   *scanner.Scanner
	policy    *policy.Policy
	ledgerSvc *service.LedgerService
	alerter   *notify.Alerter
}

// ScanMode runs the decision engine: the venue reserve feed, the intelligence
// feed, the scan loop, and the verdict executor. The HTTP server is started
// when enabled.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)

	eng, err := a.buildEngine(deps)
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	if err := a.startEngine(ctx, g, deps, eng); err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng)
	}

	return g.Wait()
}

// MonitorMode starts read-only monitoring: the HTTP server and WebSocket hub
// over the shared Redis state. No feeds are consumed and no verdicts are
// produced.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	// HTTP server is always started in monitor mode.
	a.startHTTPServer(ctx, g, deps, nil)

	return g.Wait()
}

// FullMode starts all subsystems: the decision engine, the verdict executor,
// cold-storage archival, and the HTTP server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	eng, err := a.buildEngine(deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	if err := a.startEngine(ctx, g, deps, eng); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	if deps.Archiver != nil {
		a.startArchiver(ctx, g, deps)
	}

	// HTTP server.
	a.startHTTPServer(ctx, g, deps, eng)

	return g.Wait()
}

// buildEngine constructs the graph, aggregator, scanner, policy, and ledger
// service from configuration.
func (a *App) buildEngine(deps *Dependencies) (*engine, error) {
	gr := graph.New(a.cfg.Graph.StalenessWindow.Duration, a.logger)

	assetsBySymbol := make(map[string]domain.Asset, len(a.cfg.Assets))
	assets := make([]domain.Asset, 0, len(a.cfg.Assets))
	for _, ac := range a.cfg.Assets {
		asset := domain.Asset{
			Symbol:   ac.Symbol,
			ChainID:  ac.ChainID,
			Address:  common.HexToAddress(ac.Address),
			Decimals: ac.Decimals,
		}
		assetsBySymbol[ac.Symbol] = asset
		assets = append(assets, asset)
	}
	gr.RegisterAssets(assets...)

	baseKeys := make([]domain.AssetKey, 0, len(a.cfg.Scanner.BaseAssets))
	for _, sym := range a.cfg.Scanner.BaseAssets {
		asset, ok := assetsBySymbol[sym]
		if !ok {
			return nil, fmt.Errorf("base asset %q is not a registered asset", sym)
		}
		baseKeys = append(baseKeys, asset.Key())
	}

	probe, ok := a.cfg.Scanner.ProbeAmountInt()
	if !ok {
		return nil, fmt.Errorf("probe_amount %q is not a positive integer", a.cfg.Scanner.ProbeAmount)
	}

	perVenue := make(map[string]decimal.Decimal, len(a.cfg.Scanner.PerVenueSettlementCost))
	for venue, cost := range a.cfg.Scanner.PerVenueSettlementCost {
		perVenue[venue] = decimal.NewFromFloat(cost)
	}

	sc := scanner.New(scanner.Config{
		BaseAssets:             baseKeys,
		MaxHops:                a.cfg.Scanner.MaxHops,
		MinProfitRatio:         decimal.NewFromFloat(a.cfg.Scanner.MinProfitRatio),
		ProbeAmount:            probe,
		TickBudget:             a.cfg.Scanner.TickBudget.Duration,
		SettlementCost:         decimal.NewFromFloat(a.cfg.Scanner.SettlementCost),
		PerVenueSettlementCost: perVenue,
	}, a.logger)

	agg := intel.New(intel.Config{
		Window:              a.cfg.Intel.Window.Duration,
		ConfidenceLowMax:    a.cfg.Intel.ConfidenceLowMax,
		ConfidenceHighMin:   a.cfg.Intel.ConfidenceHighMin,
		RegulatoryThreshold: a.cfg.Intel.RegulatoryThreshold,
	}, a.logger)

	pol := policy.New(policy.Config{
		MinProfitRatio:   decimal.NewFromFloat(a.cfg.Policy.MinProfitRatio),
		BullishThreshold: a.cfg.Policy.BullishThreshold,
		ReductionFactor:  decimal.NewFromFloat(a.cfg.Policy.ReductionFactor),
		BoostFactor:      decimal.NewFromFloat(a.cfg.Policy.BoostFactor),
		MinMultiplier:    decimal.NewFromFloat(a.cfg.Policy.MinMultiplier),
		MaxMultiplier:    decimal.NewFromFloat(a.cfg.Policy.MaxMultiplier),
	}, a.logger)

	ledgerSvc := service.NewLedgerService(deps.LedgerStore, deps.SignalBus, deps.AuditStore, a.logger)
	alerter := notify.NewAlerter(deps.Notifier, a.logger)

	return &engine{
		graph:     gr,
		agg:       agg,
		scanner:   sc,
		policy:    pol,
		ledgerSvc: ledgerSvc,
		alerter:   alerter,
	}, nil
}

// startEngine adds the feed consumers, the intelligence refresh loop, the
// scan loop, and the verdict executor to the errgroup.
func (a *App) startEngine(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine) error {
	// Venue reserve WebSocket feed.
	apiKey, err := crypto.LoadAPIKey(crypto.KeyConfig{
		RawKey:           a.cfg.Feed.ApiKey,
		EncryptedKeyPath: a.cfg.Feed.EncryptedKeyPath,
		KeyPassword:      a.cfg.Feed.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("load feed api key: %w", err)
	}

	wsFeed := feed.NewPoolWSFeed(feed.PoolWSConfig{
		WsURL:      a.cfg.Feed.PoolWsURL,
		ApiKey:     apiKey,
		PoolIDs:    a.cfg.Feed.Pools,
		Backoff:    a.cfg.Feed.ReconnectBackoff.Duration,
		BackoffMax: a.cfg.Feed.ReconnectBackoffMax.Duration,
	}, eng.graph, deps.PoolCache, a.logger)
	g.Go(func() error {
		defer wsFeed.Close()
		err := wsFeed.Run(ctx)
		if err != nil && ctx.Err() == nil {
			eng.alerter.FeedDown(ctx, "pool_ws", err)
		}
		return err
	})

	// Intelligence bus feed.
	intelFeed := feed.NewIntelBusFeed(
		deps.SignalBus,
		eng.agg,
		intel.DefaultKeywordClassifier(),
		a.cfg.Feed.NewsChannel,
		a.cfg.Feed.MarketsChannel,
		a.logger,
	)
	g.Go(func() error {
		err := intelFeed.Run(ctx)
		if err != nil && ctx.Err() == nil {
			eng.alerter.FeedDown(ctx, "intel_bus", err)
		}
		return err
	})

	// Intelligence refresh loop: rebuild the snapshot on the configured
	// interval, mirror it to Redis, and broadcast it on the intel channel.
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Intel.RefreshInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				snap := eng.agg.Refresh(ctx)
				if err := deps.SnapshotCache.Set(ctx, snap); err != nil {
					a.logger.WarnContext(ctx, "snapshot cache write failed",
						slog.String("error", err.Error()),
					)
				}
				if payload, err := json.Marshal(snap); err == nil {
					if err := deps.SignalBus.Publish(ctx, "intel", payload); err != nil {
						a.logger.WarnContext(ctx, "intel broadcast failed",
							slog.String("error", err.Error()),
						)
					}
				}
				eng.alerter.SnapshotRefreshed(ctx, snap)
			}
		}
	})

	// Scan loop: one graph snapshot per tick, evaluate every candidate
	// against the current intelligence snapshot, record each verdict.
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Scanner.ScanInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				a.runScanTick(ctx, deps, eng)
			}
		}
	})

	// Verdict executor: forwards executable verdicts to the executions
	// stream, deduplicated by opportunity ID and paced through the shared
	// rate limiter.
	exec := executor.NewExecutor(deps.SignalBus, a.cfg.Scanner.DryRun, a.logger).
		WithRateLimiter(deps.RateLimiter)
	g.Go(func() error {
		return exec.Run(ctx)
	})

	return nil
}

// runScanTick performs one scan cycle. A tick that exceeds the time budget is
// abandoned; scanning resumes on the next tick against a fresh snapshot.
func (a *App) runScanTick(ctx context.Context, deps *Dependencies, eng *engine) {
	snap := eng.graph.Snapshot()
	intelSnap := eng.agg.CurrentSnapshot()

	opps, err := eng.scanner.Scan(ctx, snap)
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			a.logger.WarnContext(ctx, "scan tick failed",
				slog.Uint64("generation", snap.Generation()),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	for _, opp := range opps {
		verdict := eng.policy.Evaluate(opp, intelSnap)
		entry, err := eng.ledgerSvc.Record(ctx, opp, intelSnap, verdict)
		if err != nil {
			a.logger.ErrorContext(ctx, "ledger record failed",
				slog.String("opportunity_id", opp.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		eng.alerter.VerdictRecorded(ctx, entry)
	}
}

// startArchiver adds the cold-storage archival loop to the errgroup. The
// distributed lock keeps concurrent deployments from archiving the same rows.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.S3.ArchiveInterval.Duration
	retention := time.Duration(a.cfg.S3.ArchiveRetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				unlock, err := deps.LockManager.Acquire(ctx, "archive", 10*time.Minute)
				if err != nil {
					a.logger.DebugContext(ctx, "archive lock held elsewhere, skipping cycle",
						slog.String("error", err.Error()),
					)
					continue
				}

				before := time.Now().UTC().Add(-retention)
				if n, err := deps.Archiver.ArchiveLedger(ctx, before); err != nil {
					a.logger.ErrorContext(ctx, "ledger archive failed",
						slog.String("error", err.Error()),
					)
				} else if n > 0 {
					a.logger.InfoContext(ctx, "ledger entries archived", slog.Int64("count", n))
				}
				if n, err := deps.Archiver.ArchiveAudit(ctx, before); err != nil {
					a.logger.ErrorContext(ctx, "audit archive failed",
						slog.String("error", err.Error()),
					)
				} else if n > 0 {
					a.logger.InfoContext(ctx, "audit entries archived", slog.Int64("count", n))
				}
				unlock()
			}
		}
	})
}

// snapshotCacheSource adapts the Redis snapshot cache to the intel handler
// for modes that do not run the aggregator. Read failures degrade to the
// neutral default snapshot.
type snapshotCacheSource struct {
	cache  domain.SnapshotCache
	logger *slog.Logger
}

func (s *snapshotCacheSource) CurrentSnapshot() domain.IntelligenceSnapshot {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Debug("snapshot cache read failed", slog.String("error", err.Error()))
		return domain.NeutralSnapshot()
	}
	return snap
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. eng is optional; engine-backed handlers are registered only
// when it is present. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine) {
	startedAt := time.Now().UTC()

	checks := make(map[string]handler.Pinger, len(deps.Pingers))
	for name, ping := range deps.Pingers {
		checks[name] = handler.Pinger(ping)
	}

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger, checks),
		Pools:  handler.NewPoolsHandler(deps.PoolCache, a.logger),
	}

	var stats func() service.LedgerStats
	var generation func() uint64
	if eng != nil {
		stats = eng.ledgerSvc.Stats
		generation = func() uint64 { return eng.graph.Snapshot().Generation() }
		handlers.Ledger = handler.NewLedgerHandler(eng.ledgerSvc, a.logger)
		handlers.Intel = handler.NewIntelHandler(eng.agg)
	} else {
		handlers.Intel = handler.NewIntelHandler(&snapshotCacheSource{
			cache:  deps.SnapshotCache,
			logger: a.logger,
		})
	}
	handlers.Status = handler.NewStatusHandler(a.cfg.Mode, a.cfg.Scanner.DryRun, startedAt, stats, generation)

	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}
	if deps.BlobReader != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	// WebSocket hub bridges the Redis channels to connected clients.
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		DryRun:    a.cfg.Scanner.DryRun,
		StartedAt: startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.ApiKey,
		Limiter:         deps.RateLimiter,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
