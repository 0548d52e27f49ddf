package graph

import (
	"math/big"

	"github.com/ascheung/poolbot/internal/domain"
)

const bpsDenominator = 10_000

// amountOut applies the constant-product formula with the fee taken on the
// input side, all in integer arithmetic:
//
//	inWithFee = amountIn * (10000 - feeBps)
//	out       = reserveOut * inWithFee / (reserveIn*10000 + inWithFee)
func amountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, domain.ErrInsufficientLiquidity
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, domain.ErrInsufficientLiquidity
	}
	if feeBps >= bpsDenominator {
		return nil, domain.ErrInsufficientLiquidity
	}

	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(int64(bpsDenominator-feeBps)))
	num := new(big.Int).Mul(reserveOut, inWithFee)
	den := new(big.Int).Mul(reserveIn, big.NewInt(bpsDenominator))
	den.Add(den, inWithFee)

	out := num.Quo(num, den)
	if out.Sign() <= 0 || out.Cmp(reserveOut) >= 0 {
		return nil, domain.ErrInsufficientLiquidity
	}
	return out, nil
}

// poolOut quotes amountIn of assetIn through the pool.
func poolOut(p domain.Pool, assetIn domain.AssetKey, amountIn *big.Int) (*big.Int, error) {
	switch assetIn {
	case p.Asset0:
		return amountOut(amountIn, p.Reserve0, p.Reserve1, p.FeeBps)
	case p.Asset1:
		return amountOut(amountIn, p.Reserve1, p.Reserve0, p.FeeBps)
	}
	return nil, domain.ErrUnknownPool
}
