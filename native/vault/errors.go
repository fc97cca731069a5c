package vault

import "errors"

var (
	ErrNilState            = errors.New("vault engine: state not configured")
	ErrNilLedger           = errors.New("vault engine: reward ledger not configured")
	ErrInvalidAmount       = errors.New("vault engine: amount must be positive")
	ErrDepositBelowMinimum = errors.New("vault engine: deposit below configured minimum")
	ErrInsufficientBalance = errors.New("vault engine: insufficient balance")
	ErrInvalidReward       = errors.New("reward ledger: reward must be non-negative")
	ErrRewardDeltaTooLarge = errors.New("reward ledger: reward per share delta implausibly large")
)
