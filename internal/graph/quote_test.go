package graph

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascheung/poolbot/internal/domain"
)

func TestAmountOutConstantProduct(t *testing.T) {
	// 1,000 in against 1,000,000/800,000 at 30 bps:
	// inWithFee = 1000*9970 = 9,970,000
	// out = 800000*9970000 / (1000000*10000 + 9970000) = 796,820,...
	out, err := amountOut(big.NewInt(1_000), big.NewInt(1_000_000), big.NewInt(800_000), 30)
	require.NoError(t, err)

	in := big.NewInt(1_000)
	inWithFee := new(big.Int).Mul(in, big.NewInt(9_970))
	num := new(big.Int).Mul(big.NewInt(800_000), inWithFee)
	den := new(big.Int).Add(new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(10_000)), inWithFee)
	want := new(big.Int).Quo(num, den)

	assert.Zero(t, out.Cmp(want))
}

func TestAmountOutZeroFee(t *testing.T) {
	// With fee 0 and equal reserves, output approaches but never reaches the
	// input amount.
	out, err := amountOut(big.NewInt(10_000), big.NewInt(1_000_000), big.NewInt(1_000_000), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, big.NewInt(10_000).Cmp(out))
	assert.Equal(t, 1, out.Sign())
}

func TestAmountOutInsufficientLiquidity(t *testing.T) {
	cases := []struct {
		name                string
		in, resIn, resOut   int64
		feeBps              uint32
	}{
		{"zero input", 0, 1000, 1000, 30},
		{"zero reserve in", 100, 0, 1000, 30},
		{"zero reserve out", 100, 1000, 0, 30},
		{"fee eats everything", 100, 1000, 1000, 10_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := amountOut(big.NewInt(tc.in), big.NewInt(tc.resIn), big.NewInt(tc.resOut), tc.feeBps)
			assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
		})
	}
}

func TestAmountOutNeverDrainsReserve(t *testing.T) {
	// Even an absurdly large input cannot withdraw the full output reserve.
	huge := new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	out, err := amountOut(huge, big.NewInt(1_000), big.NewInt(1_000), 30)
	require.NoError(t, err)
	assert.Equal(t, -1, out.Cmp(big.NewInt(1_000)))
}

func TestPoolOutDirections(t *testing.T) {
	p := domain.Pool{
		ID:       "p1",
		Asset0:   "1:0xA",
		Asset1:   "1:0xB",
		Reserve0: big.NewInt(1_000_000),
		Reserve1: big.NewInt(500_000),
		FeeBps:   30,
	}

	fwd, err := poolOut(p, "1:0xA", big.NewInt(1_000))
	require.NoError(t, err)
	rev, err := poolOut(p, "1:0xB", big.NewInt(1_000))
	require.NoError(t, err)

	// Asset0 is the abundant side, so swapping it in yields less of Asset1
	// than the reverse direction yields of Asset0.
	assert.Equal(t, -1, fwd.Cmp(rev))

	_, err = poolOut(p, "1:0xC", big.NewInt(1_000))
	assert.ErrorIs(t, err, domain.ErrUnknownPool)
}
