package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKey uniquely identifies an asset across chains. It is the lowercase
// hex address prefixed with the chain ID, e.g. "1:0xc02a...6cc2".
type AssetKey string

// MakeAssetKey builds the canonical key for an asset address on a chain.
func MakeAssetKey(chainID uint64, addr common.Address) AssetKey {
	return AssetKey(fmt.Sprintf("%d:%s", chainID, addr.Hex()))
}

// Asset is a token registered with the pool graph. Immutable once registered.
type Asset struct {
	Symbol   string
	ChainID  uint64
	Address  common.Address
	Decimals uint8
}

// Key returns the chain-scoped identifier for the asset.
func (a Asset) Key() AssetKey {
	return MakeAssetKey(a.ChainID, a.Address)
}
