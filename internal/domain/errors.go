package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrUnknownAsset          = errors.New("unknown asset")
	ErrUnknownPool           = errors.New("unknown pool")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrStaleData             = errors.New("stale data")
	ErrInvalidBatch          = errors.New("invalid batch")
	ErrWSDisconnect          = errors.New("websocket disconnected")
	ErrContextDone           = errors.New("context cancelled")
	ErrLockHeld              = errors.New("lock already held")
)
