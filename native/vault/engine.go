package vault

import (
	"bytes"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"granary/core/events"
	"granary/native/registry"
)

// engineState is the persistence surface required by the vault engine.
type engineState interface {
	GetGlobal() (*GlobalState, error)
	PutGlobal(*GlobalState) error
	GetAccount(addr [20]byte) (*Account, error)
	PutAccount(*Account) error
	DeleteAccount(addr [20]byte) error
	ListAccounts() ([][20]byte, error)
}

// adapterSource resolves the adapter currently receiving routed capital.
type adapterSource interface {
	ActiveAdapter(asset [20]byte) (registry.Adapter, error)
}

// Params configures the vault engine.
type Params struct {
	// Asset is the single base asset custodied by the vault.
	Asset [20]byte
	// MinDeposit rejects deposits below this amount. Nil or zero disables
	// the check.
	MinDeposit *big.Int
	// EpochDuration is the wall-clock length of one accounting epoch in
	// seconds.
	EpochDuration uint64
}

// Engine is the single entry and exit point for user capital. It owns share
// balances and time-weighted-share state, drives epoch advancement and
// harvest, and is the reward ledger's sole authorized caller. Every public
// operation is serialized behind one mutex so the accumulator always observes
// the immediately-prior committed state.
type Engine struct {
	mu sync.Mutex

	state    engineState
	ledger   *RewardLedger
	registry adapterSource
	emitter  events.Emitter

	asset         [20]byte
	minDeposit    *big.Int
	epochDuration uint64
	now           func() time.Time
}

// NewEngine constructs a vault engine and binds the reward ledger to it.
func NewEngine(state engineState, ledger *RewardLedger, params Params) *Engine {
	e := &Engine{
		state:         state,
		ledger:        ledger,
		emitter:       events.NoopEmitter{},
		asset:         params.Asset,
		minDeposit:    copyBigInt(params.MinDeposit),
		epochDuration: params.EpochDuration,
		now:           time.Now,
	}
	if ledger != nil {
		ledger.bind(e)
	}
	return e
}

// SetRegistry wires the protocol registry used to resolve the active adapter.
func (e *Engine) SetRegistry(source adapterSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry = source
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetTimeSource overrides the clock used for harvest gating.
func (e *Engine) SetTimeSource(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now == nil {
		now = time.Now
	}
	e.now = now
}

// Deposit credits the user's share balance after settling their pending
// reward entitlement, so newly added capital cannot retroactively claim reward
// that accrued before it existed. A harvest check runs first when the epoch
// boundary condition is met.
func (e *Engine) Deposit(user [20]byte, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if e.minDeposit != nil && e.minDeposit.Sign() > 0 && amount.Cmp(e.minDeposit) < 0 {
		return ErrDepositBelowMinimum
	}
	if _, err := e.harvestLocked(); err != nil {
		return err
	}

	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	account, err := e.state.GetAccount(user)
	if err != nil {
		return err
	}
	if account == nil {
		account = &Account{
			Address:        user,
			Shares:         big.NewInt(0),
			WeightedShares: big.NewInt(0),
			EntryTime:      uint64(e.now().Unix()),
			EntryEpoch:     global.Epoch,
			WeightEpoch:    global.Epoch,
		}
	} else {
		account = account.Clone()
	}

	// Route the capital before touching ledger state, so an adapter failure
	// aborts the operation with nothing persisted.
	if adapter, err := e.activeAdapter(); err == nil {
		if err := adapter.Deposit(amount); err != nil {
			return err
		}
		global.DeployedPrincipal = new(big.Int).Add(global.DeployedPrincipal, amount)
	} else if err != errNoRoute {
		return err
	}

	if err := e.settleRewardsLocked(user, global.Epoch); err != nil {
		return err
	}

	settleAccountWeight(account, global.Epoch)
	account.Shares = new(big.Int).Add(account.Shares, amount)

	settleGlobalWeight(global)
	global.TotalShares = new(big.Int).Add(global.TotalShares, amount)

	if err := e.state.PutAccount(account); err != nil {
		return err
	}
	if err := e.state.PutGlobal(global); err != nil {
		return err
	}

	e.emitter.Emit(events.Deposited{User: user, Amount: copyBigInt(amount), Epoch: global.Epoch})
	return nil
}

// Withdraw debits shares from the user after settling their pending reward
// entitlement on the pre-withdrawal weighted base. The user's time-weighted
// accumulation shrinks proportionally, not just their balance. Withdrawing the
// full balance closes the position and resets the reward checkpoints.
func (e *Engine) Withdraw(user [20]byte, shareAmount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return err
	}
	if shareAmount == nil || shareAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	stored, err := e.state.GetAccount(user)
	if err != nil {
		return err
	}
	if stored == nil || stored.Shares == nil || stored.Shares.Cmp(shareAmount) < 0 {
		return ErrInsufficientBalance
	}
	account := stored.Clone()

	// Recall the capital before touching ledger state, so an adapter failure
	// aborts the operation with nothing persisted.
	if adapter, err := e.activeAdapter(); err == nil {
		recall := new(big.Int).Set(shareAmount)
		if global.DeployedPrincipal.Cmp(recall) < 0 {
			recall = new(big.Int).Set(global.DeployedPrincipal)
		}
		if recall.Sign() > 0 {
			if err := adapter.Withdraw(recall); err != nil {
				return err
			}
			global.DeployedPrincipal = new(big.Int).Sub(global.DeployedPrincipal, recall)
		}
	} else if err != errNoRoute {
		return err
	}

	if err := e.settleRewardsLocked(user, global.Epoch); err != nil {
		return err
	}

	settleAccountWeight(account, global.Epoch)
	settleGlobalWeight(global)

	// Reduce the weighted accumulation in proportion to the shares leaving.
	reduction := new(big.Int).Mul(account.WeightedShares, shareAmount)
	reduction.Quo(reduction, account.Shares)
	account.WeightedShares = new(big.Int).Sub(account.WeightedShares, reduction)
	account.Shares = new(big.Int).Sub(account.Shares, shareAmount)
	global.TotalWeightedShares = new(big.Int).Sub(global.TotalWeightedShares, reduction)
	global.TotalShares = new(big.Int).Sub(global.TotalShares, shareAmount)

	closed := account.Shares.Sign() == 0
	if closed {
		if err := e.ledger.resetClaimedReward(user); err != nil {
			return err
		}
		if err := e.state.DeleteAccount(user); err != nil {
			return err
		}
	} else {
		if err := e.state.PutAccount(account); err != nil {
			return err
		}
	}
	if err := e.state.PutGlobal(global); err != nil {
		return err
	}

	e.emitter.Emit(events.Withdrawn{User: user, Amount: copyBigInt(shareAmount), Epoch: global.Epoch})
	if closed {
		e.emitter.Emit(events.PositionClosed{User: user, Epoch: global.Epoch})
	}
	return nil
}

// Claim settles the user's pending reward into their claimed total and
// refreshes the checkpoint. It returns the settled amount; zero means nothing
// was pending and no state changed. The token transfer itself is performed by
// an external collaborator.
func (e *Engine) Claim(user [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	pending, err := e.ledger.pendingReward(user)
	if err != nil {
		return nil, err
	}
	if pending.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if err := e.ledger.recordClaimedReward(user, pending); err != nil {
		return nil, err
	}
	if err := e.ledger.updateUserRewardDebt(user); err != nil {
		return nil, err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	e.emitter.Emit(events.RewardPaid{User: user, Amount: copyBigInt(pending), Epoch: global.Epoch})
	return pending, nil
}

// CheckAndHarvest advances the epoch and distributes realized profit when the
// configured epoch duration has elapsed. It reports whether a harvest
// happened; calling again within the same epoch window is a silent no-op, so
// the same epoch's profit can never be distributed twice.
func (e *Engine) CheckAndHarvest() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.harvestLocked()
}

func (e *Engine) harvestLocked() (bool, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return false, err
	}
	now := uint64(e.now().Unix())
	if global.LastHarvestTime == 0 {
		// First interaction anchors the epoch clock.
		global.LastHarvestTime = now
		return false, e.state.PutGlobal(global)
	}
	if e.epochDuration == 0 || now < global.LastHarvestTime+e.epochDuration {
		return false, nil
	}

	reward := copyBigInt(global.CarryOverReward)
	if adapter, err := e.activeAdapter(); err == nil {
		balance, err := adapter.Balance()
		if err != nil {
			return false, err
		}
		if balance != nil && balance.Cmp(global.DeployedPrincipal) > 0 {
			profit := new(big.Int).Sub(balance, global.DeployedPrincipal)
			if err := adapter.Withdraw(profit); err != nil {
				return false, err
			}
			reward.Add(reward, profit)
		}
	} else if err != errNoRoute {
		return false, err
	}

	global.Epoch++
	settleGlobalWeight(global)
	global.LastHarvestTime = now
	// Park the full reward in the carry-over slot before touching the
	// accumulator: if the per-share guard trips below, the value survives
	// for redistribution once the configuration is corrected.
	global.CarryOverReward = reward
	if err := e.state.PutGlobal(global); err != nil {
		return false, err
	}

	applied, dust, err := e.ledger.updateRewardState(reward)
	if err != nil {
		return false, err
	}
	if applied {
		global.CarryOverReward = big.NewInt(0)
		if err := e.state.PutGlobal(global); err != nil {
			return false, err
		}
	} else if reward.Sign() > 0 {
		e.emitter.Emit(events.RewardCarriedOver{Epoch: global.Epoch, Amount: copyBigInt(reward)})
	}

	acc, err := e.ledger.accRewardPerShare()
	if err != nil {
		return false, err
	}
	e.emitter.Emit(events.EpochHarvested{
		Epoch:               global.Epoch,
		Reward:              copyBigInt(reward),
		TotalWeightedShares: copyBigInt(global.TotalWeightedShares),
		AccRewardPerShare:   copyBigInt(acc),
		Dust:                copyBigInt(dust),
		Distributed:         applied,
	})
	return true, nil
}

// settleRewardsLocked pays the user's pending entitlement into their claimed
// total and re-checkpoints them. Called around every balance-changing
// operation so a checkpoint never silently forfeits accrued reward.
func (e *Engine) settleRewardsLocked(user [20]byte, epoch uint64) error {
	pending, err := e.ledger.pendingReward(user)
	if err != nil {
		return err
	}
	if pending.Sign() > 0 {
		if err := e.ledger.recordClaimedReward(user, pending); err != nil {
			return err
		}
		e.emitter.Emit(events.RewardPaid{User: user, Amount: copyBigInt(pending), Epoch: epoch})
	}
	return e.ledger.updateUserRewardDebt(user)
}

// errNoRoute marks the absence of an active adapter, which is a no-op for
// capital routing rather than a failure.
var errNoRoute = errors.New("vault engine: no active route")

func (e *Engine) activeAdapter() (registry.Adapter, error) {
	if e.registry == nil {
		return nil, errNoRoute
	}
	adapter, err := e.registry.ActiveAdapter(e.asset)
	if err != nil {
		if errors.Is(err, registry.ErrNoActiveProtocol) || errors.Is(err, registry.ErrAdapterNotFound) {
			return nil, errNoRoute
		}
		return nil, err
	}
	return adapter, nil
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	return nil
}

func (e *Engine) loadGlobal() (*GlobalState, error) {
	global, err := e.state.GetGlobal()
	if err != nil {
		return nil, err
	}
	if global == nil {
		return &GlobalState{
			TotalShares:         big.NewInt(0),
			TotalWeightedShares: big.NewInt(0),
			CarryOverReward:     big.NewInt(0),
			DeployedPrincipal:   big.NewInt(0),
		}, nil
	}
	global = global.Clone()
	if global.TotalShares == nil {
		global.TotalShares = big.NewInt(0)
	}
	if global.TotalWeightedShares == nil {
		global.TotalWeightedShares = big.NewInt(0)
	}
	if global.CarryOverReward == nil {
		global.CarryOverReward = big.NewInt(0)
	}
	if global.DeployedPrincipal == nil {
		global.DeployedPrincipal = big.NewInt(0)
	}
	return global, nil
}

// --- weight settlement ---

// settleAccountWeight folds the share-epochs accrued since the account's last
// settlement into its weighted total.
func settleAccountWeight(a *Account, epoch uint64) {
	if a == nil || epoch <= a.WeightEpoch {
		return
	}
	span := new(big.Int).SetUint64(epoch - a.WeightEpoch)
	a.WeightedShares = new(big.Int).Add(a.WeightedShares, new(big.Int).Mul(a.Shares, span))
	a.WeightEpoch = epoch
}

// settleGlobalWeight folds the aggregate share-epochs accrued since the last
// settlement into the global weighted total.
func settleGlobalWeight(g *GlobalState) {
	if g == nil || g.Epoch <= g.WeightEpoch {
		return
	}
	span := new(big.Int).SetUint64(g.Epoch - g.WeightEpoch)
	g.TotalWeightedShares = new(big.Int).Add(g.TotalWeightedShares, new(big.Int).Mul(g.TotalShares, span))
	g.WeightEpoch = g.Epoch
}

func foldedAccountWeight(a *Account, epoch uint64) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	weighted := copyBigInt(a.WeightedShares)
	if epoch > a.WeightEpoch && a.Shares != nil {
		span := new(big.Int).SetUint64(epoch - a.WeightEpoch)
		weighted.Add(weighted, new(big.Int).Mul(a.Shares, span))
	}
	return weighted
}

func foldedGlobalWeight(g *GlobalState) *big.Int {
	if g == nil {
		return big.NewInt(0)
	}
	weighted := copyBigInt(g.TotalWeightedShares)
	if g.Epoch > g.WeightEpoch && g.TotalShares != nil {
		span := new(big.Int).SetUint64(g.Epoch - g.WeightEpoch)
		weighted.Add(weighted, new(big.Int).Mul(g.TotalShares, span))
	}
	return weighted
}

// --- vaultView (reward ledger read surface, called under the engine mutex) ---

func (e *Engine) totalWeightedShares() (*big.Int, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	return foldedGlobalWeight(global), nil
}

func (e *Engine) userWeightedShares(addr [20]byte) (*big.Int, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	account, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return big.NewInt(0), nil
	}
	return foldedAccountWeight(account, global.Epoch), nil
}

func (e *Engine) currentEpoch() (uint64, error) {
	global, err := e.loadGlobal()
	if err != nil {
		return 0, err
	}
	return global.Epoch, nil
}

// --- public views ---

// TotalSupply returns the sum of all outstanding share balances.
func (e *Engine) TotalSupply() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	return copyBigInt(global.TotalShares), nil
}

// BalanceOf returns the user's share balance.
func (e *Engine) BalanceOf(user [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	account, err := e.state.GetAccount(user)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return big.NewInt(0), nil
	}
	return copyBigInt(account.Shares), nil
}

// CurrentEpoch returns the vault's monotonic epoch counter.
func (e *Engine) CurrentEpoch() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.currentEpoch()
}

// TotalTimeWeightedShares returns the aggregate share-epoch integral across
// all users, folded to the current epoch.
func (e *Engine) TotalTimeWeightedShares() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.totalWeightedShares()
}

// UserTimeWeightedShares returns the user's share-epoch integral folded to the
// current epoch.
func (e *Engine) UserTimeWeightedShares(user [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.userWeightedShares(user)
}

// Users returns all addresses holding a position, in deterministic order.
func (e *Engine) Users() ([][20]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	users, err := e.state.ListAccounts()
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool {
		return bytes.Compare(users[i][:], users[j][:]) < 0
	})
	return users, nil
}

// UserEntryTime returns the unix timestamp of the user's first deposit, zero
// when the user holds no position.
func (e *Engine) UserEntryTime(user [20]byte) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return 0, err
	}
	account, err := e.state.GetAccount(user)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.EntryTime, nil
}

// PendingReward returns the user's unclaimed entitlement. Repeated calls with
// no intervening state change return the same value.
func (e *Engine) PendingReward(user [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.ledger.pendingReward(user)
}

// AccRewardPerShare returns the global reward accumulator, scaled by the
// reward precision factor.
func (e *Engine) AccRewardPerShare() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	acc, err := e.ledger.accRewardPerShare()
	if err != nil {
		return nil, err
	}
	return copyBigInt(acc), nil
}

// UserRewardPerSharePaid returns the user's accumulator checkpoint.
func (e *Engine) UserRewardPerSharePaid(user [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	account, err := e.ledger.rewardAccount(user)
	if err != nil {
		return nil, err
	}
	return copyBigInt(account.RewardPerSharePaid), nil
}

// UserClaimedReward returns the user's cumulative claimed total.
func (e *Engine) UserClaimedReward(user [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	account, err := e.ledger.rewardAccount(user)
	if err != nil {
		return nil, err
	}
	return copyBigInt(account.ClaimedReward), nil
}

// LastClaimEpoch returns the epoch of the user's last reward interaction.
func (e *Engine) LastClaimEpoch(user [20]byte) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return 0, err
	}
	account, err := e.ledger.rewardAccount(user)
	if err != nil {
		return 0, err
	}
	return account.LastClaimEpoch, nil
}

// CarryOverReward returns the undistributed reward waiting for the next
// non-zero-weight epoch.
func (e *Engine) CarryOverReward() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return nil, err
	}
	return copyBigInt(global.CarryOverReward), nil
}
