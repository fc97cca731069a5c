package registry

import "math/big"

// Adapter is the normalized capability every external yield protocol must
// implement. Each adapter moves a single base asset in and out of the
// underlying protocol and reports the current yield-bearing balance. Adapters
// are consumed by the vault, never implemented inside this core.
type Adapter interface {
	// AssetSupported reports whether the adapter can custody the asset.
	AssetSupported(asset [20]byte) bool
	// Deposit routes the amount into the underlying protocol.
	Deposit(amount *big.Int) error
	// Withdraw pulls the amount back out of the underlying protocol.
	Withdraw(amount *big.Int) error
	// Balance reports the current yield-bearing balance held by the adapter.
	Balance() (*big.Int, error)
}
