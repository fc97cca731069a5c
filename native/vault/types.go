package vault

import "math/big"

// Account tracks a depositor's claim against the pooled capital. WeightedShares
// holds the share-epochs settled up to WeightEpoch; accrual since then is
// folded in lazily by the engine views, so the stored value is only a partial
// integral.
type Account struct {
	Address        [20]byte
	Shares         *big.Int
	WeightedShares *big.Int
	EntryTime      uint64
	EntryEpoch     uint64
	WeightEpoch    uint64
}

// Clone produces a deep copy of the account to protect internal references.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		Address:        a.Address,
		Shares:         copyBigInt(a.Shares),
		WeightedShares: copyBigInt(a.WeightedShares),
		EntryTime:      a.EntryTime,
		EntryEpoch:     a.EntryEpoch,
		WeightEpoch:    a.WeightEpoch,
	}
}

// GlobalState aggregates the vault-wide counters. TotalWeightedShares follows
// the same settle-to-WeightEpoch discipline as Account.WeightedShares.
type GlobalState struct {
	Epoch               uint64
	TotalShares         *big.Int
	TotalWeightedShares *big.Int
	WeightEpoch         uint64
	CarryOverReward     *big.Int
	DeployedPrincipal   *big.Int
	LastHarvestTime     uint64
}

// Clone produces a deep copy of the global state.
func (g *GlobalState) Clone() *GlobalState {
	if g == nil {
		return nil
	}
	return &GlobalState{
		Epoch:               g.Epoch,
		TotalShares:         copyBigInt(g.TotalShares),
		TotalWeightedShares: copyBigInt(g.TotalWeightedShares),
		WeightEpoch:         g.WeightEpoch,
		CarryOverReward:     copyBigInt(g.CarryOverReward),
		DeployedPrincipal:   copyBigInt(g.DeployedPrincipal),
		LastHarvestTime:     g.LastHarvestTime,
	}
}

// RewardAccount is the per-user reward ledger record: the accumulator
// checkpoint captured at the user's last interaction plus the running claimed
// total.
type RewardAccount struct {
	Address            [20]byte
	RewardPerSharePaid *big.Int
	ClaimedReward      *big.Int
	LastClaimEpoch     uint64
}

// Clone produces a deep copy of the reward account.
func (a *RewardAccount) Clone() *RewardAccount {
	if a == nil {
		return nil
	}
	return &RewardAccount{
		Address:            a.Address,
		RewardPerSharePaid: copyBigInt(a.RewardPerSharePaid),
		ClaimedReward:      copyBigInt(a.ClaimedReward),
		LastClaimEpoch:     a.LastClaimEpoch,
	}
}

// RewardGlobal holds the monotone reward-per-weighted-share accumulator,
// scaled by rewardPrecision, alongside the running credited and settled
// totals. CreditedReward minus SettledReward is the undistributed pool that
// bounds every entitlement, so the sum of all settlements can never exceed
// what harvests actually attributed.
type RewardGlobal struct {
	AccRewardPerShare *big.Int
	CreditedReward    *big.Int
	SettledReward     *big.Int
}

// Clone produces a deep copy of the reward global state.
func (g *RewardGlobal) Clone() *RewardGlobal {
	if g == nil {
		return nil
	}
	return &RewardGlobal{
		AccRewardPerShare: copyBigInt(g.AccRewardPerShare),
		CreditedReward:    copyBigInt(g.CreditedReward),
		SettledReward:     copyBigInt(g.SettledReward),
	}
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
