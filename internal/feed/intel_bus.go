package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/ascheung/poolbot/internal/domain"
	"github.com/ascheung/poolbot/internal/intel"
)

// newsEvent is the JSON shape published to the news channel. Polarity and
// regulatory are optional; unclassified items are scored locally.
type newsEvent struct {
	Headline   string   `json:"headline"`
	Topics     []string `json:"topics"`
	Weight     float64  `json:"weight"`
	Polarity   *float64 `json:"polarity,omitempty"`
	Regulatory *bool    `json:"regulatory,omitempty"`
	Timestamp  string   `json:"timestamp"`
}

// marketEvent is the JSON shape published to the markets channel.
type marketEvent struct {
	MarketID  string   `json:"market_id"`
	YesPrice  float64  `json:"yes_price"`
	Volume    float64  `json:"volume"`
	Tags      []string `json:"tags"`
	Timestamp string   `json:"timestamp"`
}

// IntelBusFeed subscribes to the news and markets Redis channels and feeds
// classified items into the intelligence aggregator.
type IntelBusFeed struct {
	bus            domain.SignalBus
	agg            *intel.Aggregator
	classifier     intel.Classifier
	newsChannel    string
	marketsChannel string
	logger         *slog.Logger
	now            func() time.Time
}

// NewIntelBusFeed creates an IntelBusFeed. classifier may be nil, in which
// case unclassified news items score neutral.
func NewIntelBusFeed(bus domain.SignalBus, agg *intel.Aggregator, classifier intel.Classifier, newsChannel, marketsChannel string, logger *slog.Logger) *IntelBusFeed {
	return &IntelBusFeed{
		bus:            bus,
		agg:            agg,
		classifier:     classifier,
		newsChannel:    newsChannel,
		marketsChannel: marketsChannel,
		logger:         logger.With(slog.String("component", "intel_feed")),
		now:            time.Now,
	}
}

// Run subscribes to both channels and buffers items until ctx is cancelled.
func (f *IntelBusFeed) Run(ctx context.Context) error {
	newsCh, err := f.bus.Subscribe(ctx, f.newsChannel)
	if err != nil {
		return err
	}
	marketsCh, err := f.bus.Subscribe(ctx, f.marketsChannel)
	if err != nil {
		return err
	}
	f.logger.Info("intel feed started",
		slog.String("news_channel", f.newsChannel),
		slog.String("markets_channel", f.marketsChannel))
	defer f.logger.Info("intel feed stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-newsCh:
			if !ok {
				return nil
			}
			if err := f.handleNews(data); err != nil {
				f.logger.Debug("news event dropped",
					slog.String("error", err.Error()),
					slog.Int("payload_len", len(data)))
			}
		case data, ok := <-marketsCh:
			if !ok {
				return nil
			}
			if err := f.handleMarket(data); err != nil {
				f.logger.Debug("market event dropped",
					slog.String("error", err.Error()),
					slog.Int("payload_len", len(data)))
			}
		}
	}
}

func (f *IntelBusFeed) handleNews(data []byte) error {
	var ev newsEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	if strings.TrimSpace(ev.Headline) == "" && ev.Polarity == nil {
		return nil
	}

	item := domain.NewsItem{
		Weight:    ev.Weight,
		Topics:    ev.Topics,
		Timestamp: f.parseTimestamp(ev.Timestamp),
	}

	switch {
	case ev.Polarity != nil:
		// Pre-classified by the publisher.
		item.Polarity = *ev.Polarity
		if ev.Regulatory != nil {
			item.Regulatory = *ev.Regulatory
		}
	case f.classifier != nil:
		item.Polarity, item.Regulatory = f.classifier.Classify(ev.Headline, ev.Topics)
	}

	f.agg.AddNews(item)
	return nil
}

func (f *IntelBusFeed) handleMarket(data []byte) error {
	var ev marketEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	if strings.TrimSpace(ev.MarketID) == "" {
		return nil
	}

	f.agg.AddQuotes(domain.MarketQuote{
		MarketID:       ev.MarketID,
		YesProbability: ev.YesPrice,
		Volume:         ev.Volume,
		RelevanceTags:  ev.Tags,
		Timestamp:      f.parseTimestamp(ev.Timestamp),
	})
	return nil
}

func (f *IntelBusFeed) parseTimestamp(s string) time.Time {
	if s != "" {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return f.now()
}
