// Package feed contains the adapters that move external data into the
// engine: the venue reserve WebSocket into the pool graph, and the Redis
// intelligence channels into the aggregator.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ascheung/poolbot/internal/domain"
	"github.com/ascheung/poolbot/internal/platform/venue"
)

// GraphUpdater accepts reserve reading batches (PoolGraph).
type GraphUpdater interface {
	Update(batch []domain.PoolReading) error
}

// PoolWSFeed connects to the venue reserve WebSocket, subscribes to the
// configured pools, and applies each reading batch to the pool graph. When a
// pool cache is provided, every accepted reading is also mirrored there for
// operator queries. It reconnects on disconnect.
type PoolWSFeed struct {
	wsURL      string
	apiKey     string
	poolIDs    []string
	updater    GraphUpdater
	pools      domain.PoolCache // optional
	backoff    time.Duration
	backoffMax time.Duration
	logger     *slog.Logger
	closeOnce  sync.Once
	done       chan struct{}
}

// PoolWSConfig configures a PoolWSFeed.
type PoolWSConfig struct {
	WsURL      string
	ApiKey     string
	PoolIDs    []string // empty subscribes to every pool the venue publishes
	Backoff    time.Duration
	BackoffMax time.Duration
}

// NewPoolWSFeed creates a feed that applies reading batches to the given
// updater. pools may be nil to disable cache mirroring.
func NewPoolWSFeed(cfg PoolWSConfig, updater GraphUpdater, pools domain.PoolCache, logger *slog.Logger) *PoolWSFeed {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	if cfg.BackoffMax < cfg.Backoff {
		cfg.BackoffMax = 30 * time.Second
	}
	return &PoolWSFeed{
		wsURL:      cfg.WsURL,
		apiKey:     cfg.ApiKey,
		poolIDs:    cfg.PoolIDs,
		updater:    updater,
		pools:      pools,
		backoff:    cfg.Backoff,
		backoffMax: cfg.BackoffMax,
		logger:     logger.With(slog.String("component", "pool_ws_feed")),
		done:       make(chan struct{}),
	}
}

// Run connects, subscribes to the configured pools, and runs until ctx is
// cancelled. Reconnects with exponential backoff on connect failure.
func (f *PoolWSFeed) Run(ctx context.Context) error {
	delay := f.backoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("pool ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > f.backoffMax {
			delay = f.backoffMax
		}
	}
}

func (f *PoolWSFeed) runConnection(ctx context.Context) error {
	client := venue.NewWSClient(f.wsURL, f.apiKey)
	defer client.Close()

	client.OnReadings(func(batch []domain.PoolReading) {
		f.handleBatch(ctx, batch)
	})

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}
	if err := client.Subscribe(ctx, f.poolIDs); err != nil {
		return err
	}
	f.logger.Info("pool ws subscribed", slog.Int("pools", len(f.poolIDs)))

	<-ctx.Done()
	return ctx.Err()
}

func (f *PoolWSFeed) handleBatch(ctx context.Context, batch []domain.PoolReading) {
	if err := f.updater.Update(batch); err != nil {
		f.logger.Warn("reading batch rejected",
			slog.Int("readings", len(batch)),
			slog.String("error", err.Error()))
		return
	}

	if f.pools == nil {
		return
	}
	for _, r := range batch {
		pool := domain.Pool{
			ID:        r.PoolID,
			Venue:     r.Venue,
			Asset0:    r.Asset0,
			Asset1:    r.Asset1,
			Reserve0:  r.Reserve0,
			Reserve1:  r.Reserve1,
			FeeBps:    r.FeeBps,
			UpdatedAt: r.Timestamp,
		}
		if err := f.pools.SetPool(ctx, pool); err != nil {
			f.logger.Debug("pool cache mirror failed",
				slog.String("pool_id", r.PoolID),
				slog.String("error", err.Error()))
		}
	}
}

// Close stops the feed.
func (f *PoolWSFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
