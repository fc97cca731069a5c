package vault

import (
	"fmt"
	"math/big"
)

// rewardPrecision scales the accumulator so per-share values below one base
// unit survive integer division.
var rewardPrecision = big.NewInt(1_000_000_000_000)

// defaultMaxPerShareDelta bounds a single accumulator advance. A delta beyond
// this indicates a precision-factor or decimals mismatch corrupting the
// accumulator and is treated as fatal misconfiguration.
var defaultMaxPerShareDelta = new(big.Int).Mul(rewardPrecision, rewardPrecision)

// ledgerState is the persistence surface required by the reward ledger.
type ledgerState interface {
	GetRewardGlobal() (*RewardGlobal, error)
	PutRewardGlobal(*RewardGlobal) error
	GetRewardAccount(addr [20]byte) (*RewardAccount, error)
	PutRewardAccount(*RewardAccount) error
	DeleteRewardAccount(addr [20]byte) error
}

// vaultView exposes the weighted-share bookkeeping the ledger reads from the
// vault. The methods are unexported so only the engine in this package can
// satisfy the contract; combined with the unexported mutators below this makes
// the vault the ledger's sole authorized caller.
type vaultView interface {
	totalWeightedShares() (*big.Int, error)
	userWeightedShares(addr [20]byte) (*big.Int, error)
	currentEpoch() (uint64, error)
}

// RewardLedger maintains the global reward-per-weighted-share accumulator and
// the per-user checkpoints that make pending-reward computation O(1).
type RewardLedger struct {
	state            ledgerState
	vault            vaultView
	maxPerShareDelta *big.Int
}

// NewRewardLedger constructs a ledger backed by the provided state. The
// maxPerShareDelta guard falls back to a precision-derived default when nil or
// non-positive.
func NewRewardLedger(state ledgerState, maxPerShareDelta *big.Int) *RewardLedger {
	guard := defaultMaxPerShareDelta
	if maxPerShareDelta != nil && maxPerShareDelta.Sign() > 0 {
		guard = new(big.Int).Set(maxPerShareDelta)
	}
	return &RewardLedger{state: state, maxPerShareDelta: guard}
}

func (l *RewardLedger) bind(v vaultView) { l.vault = v }

// updateRewardState folds an epoch reward into the accumulator. It reports
// whether the reward was applied: with zero weighted shares, or a reward too
// small to move the scaled accumulator, nothing is distributed and the caller
// must carry the amount forward rather than drop it. The returned dust is the
// truncation remainder left unattributed by integer division.
func (l *RewardLedger) updateRewardState(epochReward *big.Int) (applied bool, dust *big.Int, err error) {
	if l == nil || l.state == nil {
		return false, nil, ErrNilState
	}
	if epochReward == nil || epochReward.Sign() < 0 {
		return false, nil, ErrInvalidReward
	}
	if epochReward.Sign() == 0 {
		return false, big.NewInt(0), nil
	}
	total, err := l.vault.totalWeightedShares()
	if err != nil {
		return false, nil, err
	}
	if total == nil || total.Sign() == 0 {
		return false, big.NewInt(0), nil
	}
	delta := new(big.Int).Mul(epochReward, rewardPrecision)
	delta.Quo(delta, total)
	if delta.Sign() == 0 {
		return false, big.NewInt(0), nil
	}
	if delta.Cmp(l.maxPerShareDelta) > 0 {
		return false, nil, fmt.Errorf("%w: delta %s exceeds %s", ErrRewardDeltaTooLarge, delta, l.maxPerShareDelta)
	}
	global, err := l.rewardGlobal()
	if err != nil {
		return false, nil, err
	}
	// dust = epochReward - delta * total / precision
	attributed := new(big.Int).Mul(delta, total)
	attributed.Quo(attributed, rewardPrecision)
	dust = new(big.Int).Sub(epochReward, attributed)
	if dust.Sign() < 0 {
		dust = big.NewInt(0)
	}
	global.AccRewardPerShare = new(big.Int).Add(global.AccRewardPerShare, delta)
	global.CreditedReward = new(big.Int).Add(global.CreditedReward, attributed)
	if err := l.state.PutRewardGlobal(global); err != nil {
		return false, nil, err
	}
	return true, dust, nil
}

// updateUserRewardDebt checkpoints the user against the current accumulator so
// pending reward measures only accumulator movement since this interaction.
// Pending reward computed immediately after this call is always exactly zero.
func (l *RewardLedger) updateUserRewardDebt(addr [20]byte) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	global, err := l.rewardGlobal()
	if err != nil {
		return err
	}
	epoch, err := l.vault.currentEpoch()
	if err != nil {
		return err
	}
	account, err := l.rewardAccount(addr)
	if err != nil {
		return err
	}
	account.RewardPerSharePaid = copyBigInt(global.AccRewardPerShare)
	account.LastClaimEpoch = epoch
	return l.state.PutRewardAccount(account)
}

// pendingReward computes the user's unclaimed entitlement without mutating
// state. The accumulator formula uses the user's current weighted shares, so
// weight that accrued after a reward was credited would inflate the result;
// the entitlement is therefore clamped to the vault's undistributed credited
// pool, which keeps the total ever settled within what harvests attributed.
func (l *RewardLedger) pendingReward(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	weighted, err := l.vault.userWeightedShares(addr)
	if err != nil {
		return nil, err
	}
	if weighted == nil || weighted.Sign() == 0 {
		return big.NewInt(0), nil
	}
	global, err := l.rewardGlobal()
	if err != nil {
		return nil, err
	}
	account, err := l.rewardAccount(addr)
	if err != nil {
		return nil, err
	}
	diff := new(big.Int).Sub(global.AccRewardPerShare, account.RewardPerSharePaid)
	if diff.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	pending := new(big.Int).Mul(weighted, diff)
	pending.Quo(pending, rewardPrecision)
	if pool := undistributedPool(global); pending.Cmp(pool) > 0 {
		pending = pool
	}
	return pending, nil
}

// undistributedPool is the credited reward not yet settled into any user's
// claimed total.
func undistributedPool(global *RewardGlobal) *big.Int {
	pool := new(big.Int).Sub(global.CreditedReward, global.SettledReward)
	if pool.Sign() < 0 {
		return big.NewInt(0)
	}
	return pool
}

// recordClaimedReward adds to the user's cumulative claimed total, draws the
// amount down from the undistributed pool, and refreshes the last-claim
// epoch. Token movement is the caller's responsibility.
func (l *RewardLedger) recordClaimedReward(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidReward
	}
	epoch, err := l.vault.currentEpoch()
	if err != nil {
		return err
	}
	global, err := l.rewardGlobal()
	if err != nil {
		return err
	}
	account, err := l.rewardAccount(addr)
	if err != nil {
		return err
	}
	account.ClaimedReward = new(big.Int).Add(account.ClaimedReward, amount)
	account.LastClaimEpoch = epoch
	global.SettledReward = new(big.Int).Add(global.SettledReward, amount)
	if err := l.state.PutRewardGlobal(global); err != nil {
		return err
	}
	return l.state.PutRewardAccount(account)
}

// resetClaimedReward drops the user's reward record entirely. Called when a
// position is fully closed so a stale checkpoint cannot misattribute future
// reward if the user re-enters.
func (l *RewardLedger) resetClaimedReward(addr [20]byte) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	return l.state.DeleteRewardAccount(addr)
}

func (l *RewardLedger) accRewardPerShare() (*big.Int, error) {
	global, err := l.rewardGlobal()
	if err != nil {
		return nil, err
	}
	return global.AccRewardPerShare, nil
}

func (l *RewardLedger) rewardGlobal() (*RewardGlobal, error) {
	global, err := l.state.GetRewardGlobal()
	if err != nil {
		return nil, err
	}
	if global == nil {
		global = &RewardGlobal{}
	}
	if global.AccRewardPerShare == nil {
		global.AccRewardPerShare = big.NewInt(0)
	}
	if global.CreditedReward == nil {
		global.CreditedReward = big.NewInt(0)
	}
	if global.SettledReward == nil {
		global.SettledReward = big.NewInt(0)
	}
	return global, nil
}

func (l *RewardLedger) rewardAccount(addr [20]byte) (*RewardAccount, error) {
	account, err := l.state.GetRewardAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &RewardAccount{Address: addr}
	}
	if account.RewardPerSharePaid == nil {
		account.RewardPerSharePaid = big.NewInt(0)
	}
	if account.ClaimedReward == nil {
		account.ClaimedReward = big.NewInt(0)
	}
	return account, nil
}
