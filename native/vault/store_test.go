package vault

import (
	"errors"
	"math/big"
	"testing"

	"granary/storage"
)

func TestStoreGlobalRoundTrip(t *testing.T) {
	store := NewStore(storage.NewMemDB())

	got, err := store.GetGlobal()
	if err != nil {
		t.Fatalf("get empty: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil global before first write")
	}

	want := &GlobalState{
		Epoch:               12,
		TotalShares:         big.NewInt(5_000),
		TotalWeightedShares: big.NewInt(41_000),
		WeightEpoch:         12,
		CarryOverReward:     big.NewInt(77),
		DeployedPrincipal:   big.NewInt(4_800),
		LastHarvestTime:     1_700_000_000,
	}
	if err := store.PutGlobal(want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err = store.GetGlobal()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Epoch != want.Epoch || got.WeightEpoch != want.WeightEpoch || got.LastHarvestTime != want.LastHarvestTime {
		t.Fatalf("counters mismatch: %+v", got)
	}
	if got.TotalShares.Cmp(want.TotalShares) != 0 ||
		got.TotalWeightedShares.Cmp(want.TotalWeightedShares) != 0 ||
		got.CarryOverReward.Cmp(want.CarryOverReward) != 0 ||
		got.DeployedPrincipal.Cmp(want.DeployedPrincipal) != 0 {
		t.Fatalf("balances mismatch: %+v", got)
	}
}

func TestStoreAccountRoundTripAndIndex(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	alice, bob := user(1), user(2)

	for _, addr := range [][20]byte{alice, bob} {
		if err := store.PutAccount(&Account{
			Address:        addr,
			Shares:         big.NewInt(100),
			WeightedShares: big.NewInt(300),
			EntryTime:      1_700_000_000,
			EntryEpoch:     3,
			WeightEpoch:    5,
		}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	// Rewriting an account must not duplicate its index entry.
	if err := store.PutAccount(&Account{Address: alice, Shares: big.NewInt(200), WeightedShares: big.NewInt(300)}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	index, err := store.ListAccounts()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("index size: want 2, got %d", len(index))
	}

	got, err := store.GetAccount(alice)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Address != alice {
		t.Fatalf("account identity mismatch: %+v", got)
	}
	if got.Shares.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("shares: want 200, got %s", got.Shares)
	}

	if err := store.DeleteAccount(alice); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = store.GetAccount(alice)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Fatalf("account survived delete")
	}
	index, err = store.ListAccounts()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(index) != 1 || index[0] != bob {
		t.Fatalf("index after delete: %v", index)
	}
}

func TestStoreRewardRecordsRoundTrip(t *testing.T) {
	store := NewStore(storage.NewMemDB())
	alice := user(1)

	if err := store.PutRewardGlobal(&RewardGlobal{AccRewardPerShare: big.NewInt(123_456_789)}); err != nil {
		t.Fatalf("put global: %v", err)
	}
	global, err := store.GetRewardGlobal()
	if err != nil {
		t.Fatalf("get global: %v", err)
	}
	if global.AccRewardPerShare.Cmp(big.NewInt(123_456_789)) != 0 {
		t.Fatalf("accumulator mismatch: %s", global.AccRewardPerShare)
	}

	if err := store.PutRewardAccount(&RewardAccount{
		Address:            alice,
		RewardPerSharePaid: big.NewInt(99),
		ClaimedReward:      big.NewInt(1_000),
		LastClaimEpoch:     4,
	}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	account, err := store.GetRewardAccount(alice)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Address != alice || account.LastClaimEpoch != 4 {
		t.Fatalf("record mismatch: %+v", account)
	}
	if account.RewardPerSharePaid.Cmp(big.NewInt(99)) != 0 || account.ClaimedReward.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("record values mismatch: %+v", account)
	}

	if err := store.DeleteRewardAccount(alice); err != nil {
		t.Fatalf("delete: %v", err)
	}
	account, err = store.GetRewardAccount(alice)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if account != nil {
		t.Fatalf("reward record survived delete")
	}
}

func TestEngineSurvivesRestartOnSharedStore(t *testing.T) {
	db := storage.NewMemDB()
	alice := user(1)

	build := func() *Engine {
		store := NewStore(db)
		ledger := NewRewardLedger(store, nil)
		return NewEngine(store, ledger, Params{MinDeposit: big.NewInt(1), EpochDuration: testEpochDuration})
	}

	engine := build()
	if err := engine.Deposit(alice, big.NewInt(640)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// A fresh engine over the same database sees the same position.
	restarted := build()
	balance, err := restarted.BalanceOf(alice)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(640)) != 0 {
		t.Fatalf("balance after restart: want 640, got %s", balance)
	}
	total, err := restarted.TotalSupply()
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cmp(big.NewInt(640)) != 0 {
		t.Fatalf("total after restart: want 640, got %s", total)
	}
}

// faultDB fails every read once tripped, while writes keep succeeding.
type faultDB struct {
	storage.Database
	failReads bool
}

func (db *faultDB) Get(key []byte) ([]byte, error) {
	if db.failReads {
		return nil, errors.New("disk read failed")
	}
	return db.Database.Get(key)
}

func TestStoreReadFailuresPropagate(t *testing.T) {
	db := &faultDB{Database: storage.NewMemDB()}
	store := NewStore(db)

	if err := store.PutGlobal(&GlobalState{
		TotalShares:         big.NewInt(100),
		TotalWeightedShares: big.NewInt(100),
		CarryOverReward:     big.NewInt(0),
		DeployedPrincipal:   big.NewInt(0),
	}); err != nil {
		t.Fatalf("put global: %v", err)
	}

	db.failReads = true
	if _, err := store.GetGlobal(); err == nil {
		t.Fatalf("global read failure must surface, not read as absence")
	}
	if _, err := store.GetAccount(user(1)); err == nil {
		t.Fatalf("account read failure must surface")
	}
	if _, err := store.GetRewardGlobal(); err == nil {
		t.Fatalf("reward global read failure must surface")
	}
	if _, err := store.GetRewardAccount(user(1)); err == nil {
		t.Fatalf("reward account read failure must surface")
	}
	if _, err := store.ListAccounts(); err == nil {
		t.Fatalf("index read failure must surface")
	}
}

func TestDepositAbortsOnReadFailure(t *testing.T) {
	db := &faultDB{Database: storage.NewMemDB()}
	store := NewStore(db)
	ledger := NewRewardLedger(store, nil)
	engine := NewEngine(store, ledger, Params{MinDeposit: big.NewInt(1), EpochDuration: testEpochDuration})
	alice := user(1)

	if err := engine.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// A transient read failure must abort the deposit without rewriting
	// the global counters from a phantom empty state.
	db.failReads = true
	if err := engine.Deposit(user(2), big.NewInt(1_500)); err == nil {
		t.Fatalf("deposit over a failing store must error")
	}
	db.failReads = false

	total, err := engine.TotalSupply()
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("total supply after failed deposit: want 100, got %s", total)
	}
}
