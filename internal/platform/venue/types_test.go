package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingToDomainParsesBigReserves(t *testing.T) {
	r := APIReading{
		PoolID:      "wlsk-ice-a",
		AssetA:      "1135:0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		AssetB:      "1135:0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		ReserveA:    "123456789012345678901234567890",
		ReserveB:    "5000000000000000000",
		FeeBps:      30,
		TimestampMs: 1700000000000,
	}

	reading, err := ReadingToDomain(r, "venue-a")
	require.NoError(t, err)

	assert.Equal(t, "venue-a", reading.Venue)
	assert.Equal(t, "wlsk-ice-a", reading.PoolID)
	assert.Equal(t, "123456789012345678901234567890", reading.Reserve0.String())
	assert.Equal(t, "5000000000000000000", reading.Reserve1.String())
	assert.Equal(t, uint32(30), reading.FeeBps)
	assert.Equal(t, int64(1700000000000), reading.Timestamp.UnixMilli())
}

func TestReadingToDomainPrefersOwnVenue(t *testing.T) {
	r := APIReading{
		PoolID:   "p1",
		Venue:    "venue-b",
		ReserveA: "1",
		ReserveB: "2",
	}

	reading, err := ReadingToDomain(r, "venue-a")
	require.NoError(t, err)
	assert.Equal(t, "venue-b", reading.Venue)
}

func TestReadingToDomainRejectsBadReserve(t *testing.T) {
	r := APIReading{PoolID: "p1", ReserveA: "not-a-number", ReserveB: "2"}

	_, err := ReadingToDomain(r, "venue-a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserve_a")
}

func TestReadingsToDomainFailsWholeBatch(t *testing.T) {
	msg := &ReservesMessage{
		EventType: "reserves",
		Venue:     "venue-a",
		Readings: []APIReading{
			{PoolID: "p1", ReserveA: "10", ReserveB: "20"},
			{PoolID: "p2", ReserveA: "bad", ReserveB: "20"},
		},
	}

	readings, err := ReadingsToDomain(msg)
	require.Error(t, err)
	assert.Nil(t, readings)
}
