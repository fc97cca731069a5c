package events

import "math/big"

const (
	EventVaultDeposited      = "vault.deposited"
	EventVaultWithdrawn      = "vault.withdrawn"
	EventVaultRewardPaid     = "vault.reward_paid"
	EventEpochHarvested      = "vault.epoch_harvested"
	EventRewardCarriedOver   = "vault.reward_carried_over"
	EventVaultPositionClosed = "vault.position_closed"
)

// Deposited signals that a user's share balance increased.
type Deposited struct {
	User   [20]byte
	Amount *big.Int
	Epoch  uint64
}

// EventType implements the Event interface.
func (Deposited) EventType() string { return EventVaultDeposited }

// Withdrawn signals that a user's share balance decreased.
type Withdrawn struct {
	User   [20]byte
	Amount *big.Int
	Epoch  uint64
}

// EventType implements the Event interface.
func (Withdrawn) EventType() string { return EventVaultWithdrawn }

// RewardPaid records reward entitlement settled into a user's claimed total.
// The actual token transfer is performed by an external collaborator.
type RewardPaid struct {
	User   [20]byte
	Amount *big.Int
	Epoch  uint64
}

// EventType implements the Event interface.
func (RewardPaid) EventType() string { return EventVaultRewardPaid }

// EpochHarvested signals that an epoch boundary was crossed and its realized
// profit pushed into the reward accumulator. Dust is the truncation remainder
// left unattributed by the per-share division; AccRewardPerShare is the
// accumulator value after the update.
type EpochHarvested struct {
	Epoch               uint64
	Reward              *big.Int
	TotalWeightedShares *big.Int
	AccRewardPerShare   *big.Int
	Dust                *big.Int
	Distributed         bool
}

// EventType implements the Event interface.
func (EpochHarvested) EventType() string { return EventEpochHarvested }

// RewardCarriedOver records an epoch reward that could not be distributed
// (zero weighted shares or sub-precision amount) and was rolled into the next
// epoch instead of being discarded.
type RewardCarriedOver struct {
	Epoch  uint64
	Amount *big.Int
}

// EventType implements the Event interface.
func (RewardCarriedOver) EventType() string { return EventRewardCarriedOver }

// PositionClosed signals that a withdrawal emptied a user's position and the
// reward checkpoints were reset.
type PositionClosed struct {
	User  [20]byte
	Epoch uint64
}

// EventType implements the Event interface.
func (PositionClosed) EventType() string { return EventVaultPositionClosed }
