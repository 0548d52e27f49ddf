// Package venue contains the wire types and WebSocket client for venue
// reserve feeds. Venues that expose the common pool feed protocol (a JSON
// stream of reserve reading batches) are all served by this one client.
package venue

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ascheung/poolbot/internal/domain"
)

// WSCommand is a subscription command sent over the feed socket.
type WSCommand struct {
	Type    string   `json:"type"`    // "subscribe" or "unsubscribe"
	Channel string   `json:"channel"` // e.g. "reserves"
	Pools   []string `json:"pools,omitempty"`
}

// APIReading is one reserve observation as delivered on the wire. Reserves
// are decimal strings since they routinely exceed float64 and JSON number
// precision.
type APIReading struct {
	PoolID   string `json:"pool_id"`
	Venue    string `json:"venue,omitempty"`
	AssetA   string `json:"asset_a"`
	AssetB   string `json:"asset_b"`
	ReserveA string `json:"reserve_a"`
	ReserveB string `json:"reserve_b"`
	FeeBps   uint32 `json:"fee_bps"`
	// TimestampMs is the venue-side observation time in unix milliseconds.
	TimestampMs int64 `json:"timestamp_ms"`
}

// ReservesMessage is the envelope for a batch of reserve readings. The
// venue field applies to every reading that does not carry its own.
type ReservesMessage struct {
	EventType string       `json:"event_type"` // "reserves"
	Venue     string       `json:"venue"`
	Readings  []APIReading `json:"readings"`
}

// ReadingToDomain converts one wire reading into a domain PoolReading.
// defaultVenue is used when the reading has no venue of its own.
func ReadingToDomain(r APIReading, defaultVenue string) (domain.PoolReading, error) {
	venue := r.Venue
	if venue == "" {
		venue = defaultVenue
	}

	reserveA, ok := new(big.Int).SetString(r.ReserveA, 10)
	if !ok {
		return domain.PoolReading{}, fmt.Errorf("venue: pool %s: bad reserve_a %q", r.PoolID, r.ReserveA)
	}
	reserveB, ok := new(big.Int).SetString(r.ReserveB, 10)
	if !ok {
		return domain.PoolReading{}, fmt.Errorf("venue: pool %s: bad reserve_b %q", r.PoolID, r.ReserveB)
	}

	return domain.PoolReading{
		Venue:     venue,
		PoolID:    r.PoolID,
		Asset0:    domain.AssetKey(r.AssetA),
		Asset1:    domain.AssetKey(r.AssetB),
		Reserve0:  reserveA,
		Reserve1:  reserveB,
		FeeBps:    r.FeeBps,
		Timestamp: time.UnixMilli(r.TimestampMs).UTC(),
	}, nil
}

// ReadingsToDomain converts a whole envelope. A single malformed reading
// fails the batch; partial batches would mask venue-side bugs.
func ReadingsToDomain(msg *ReservesMessage) ([]domain.PoolReading, error) {
	readings := make([]domain.PoolReading, 0, len(msg.Readings))
	for _, r := range msg.Readings {
		reading, err := ReadingToDomain(r, msg.Venue)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, nil
}
