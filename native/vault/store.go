package vault

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"granary/storage"
)

const (
	globalKey       = "vault/global"
	rewardGlobalKey = "vault/rewards/global"
	accountIndexKey = "vault/accounts/index"
	accountKeyFmt   = "vault/accounts/%s"
	rewardKeyFmt    = "vault/rewards/accounts/%s"
)

// Store persists vault and reward-ledger records in a key-value database using
// deterministic RLP encoding. It satisfies both the engine and the ledger
// state interfaces.
type Store struct {
	db storage.Database
}

// NewStore constructs a store backed by the supplied key-value database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

type storedAccount struct {
	Address        []byte
	Shares         *big.Int
	WeightedShares *big.Int
	EntryTime      uint64
	EntryEpoch     uint64
	WeightEpoch    uint64
}

type storedGlobal struct {
	Epoch               uint64
	TotalShares         *big.Int
	TotalWeightedShares *big.Int
	WeightEpoch         uint64
	CarryOverReward     *big.Int
	DeployedPrincipal   *big.Int
	LastHarvestTime     uint64
}

type storedRewardAccount struct {
	Address            []byte
	RewardPerSharePaid *big.Int
	ClaimedReward      *big.Int
	LastClaimEpoch     uint64
}

type storedRewardGlobal struct {
	AccRewardPerShare *big.Int
	CreditedReward    *big.Int
	SettledReward     *big.Int
}

// GetGlobal loads the vault-wide counters, returning nil when the vault has
// never persisted state. Read failures other than absence propagate: treating
// them as an empty ledger would let the next write wipe the supply.
func (s *Store) GetGlobal() (*GlobalState, error) {
	data, err := s.db.Get([]byte(globalKey))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault store: read global: %w", err)
	}
	var stored storedGlobal
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("vault store: decode global: %w", err)
	}
	return &GlobalState{
		Epoch:               stored.Epoch,
		TotalShares:         copyBigInt(stored.TotalShares),
		TotalWeightedShares: copyBigInt(stored.TotalWeightedShares),
		WeightEpoch:         stored.WeightEpoch,
		CarryOverReward:     copyBigInt(stored.CarryOverReward),
		DeployedPrincipal:   copyBigInt(stored.DeployedPrincipal),
		LastHarvestTime:     stored.LastHarvestTime,
	}, nil
}

// PutGlobal persists the vault-wide counters.
func (s *Store) PutGlobal(g *GlobalState) error {
	if g == nil {
		return fmt.Errorf("vault store: nil global state")
	}
	encoded, err := rlp.EncodeToBytes(storedGlobal{
		Epoch:               g.Epoch,
		TotalShares:         copyBigInt(g.TotalShares),
		TotalWeightedShares: copyBigInt(g.TotalWeightedShares),
		WeightEpoch:         g.WeightEpoch,
		CarryOverReward:     copyBigInt(g.CarryOverReward),
		DeployedPrincipal:   copyBigInt(g.DeployedPrincipal),
		LastHarvestTime:     g.LastHarvestTime,
	})
	if err != nil {
		return err
	}
	return s.db.Put([]byte(globalKey), encoded)
}

// GetAccount loads a user position, returning nil when absent.
func (s *Store) GetAccount(addr [20]byte) (*Account, error) {
	data, err := s.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault store: read account: %w", err)
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("vault store: decode account: %w", err)
	}
	account := &Account{
		Shares:         copyBigInt(stored.Shares),
		WeightedShares: copyBigInt(stored.WeightedShares),
		EntryTime:      stored.EntryTime,
		EntryEpoch:     stored.EntryEpoch,
		WeightEpoch:    stored.WeightEpoch,
	}
	copy(account.Address[:], stored.Address)
	return account, nil
}

// PutAccount persists a user position and keeps the account index current.
func (s *Store) PutAccount(a *Account) error {
	if a == nil {
		return fmt.Errorf("vault store: nil account")
	}
	encoded, err := rlp.EncodeToBytes(storedAccount{
		Address:        append([]byte(nil), a.Address[:]...),
		Shares:         copyBigInt(a.Shares),
		WeightedShares: copyBigInt(a.WeightedShares),
		EntryTime:      a.EntryTime,
		EntryEpoch:     a.EntryEpoch,
		WeightEpoch:    a.WeightEpoch,
	})
	if err != nil {
		return err
	}
	if err := s.db.Put(accountKey(a.Address), encoded); err != nil {
		return err
	}
	return s.ensureIndexed(a.Address)
}

// DeleteAccount removes a user position and its index entry.
func (s *Store) DeleteAccount(addr [20]byte) error {
	if err := s.db.Delete(accountKey(addr)); err != nil {
		return err
	}
	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	filtered := index[:0]
	for _, entry := range index {
		if entry != addr {
			filtered = append(filtered, entry)
		}
	}
	return s.saveIndex(filtered)
}

// ListAccounts returns the addresses of all stored positions.
func (s *Store) ListAccounts() ([][20]byte, error) {
	return s.loadIndex()
}

// GetRewardGlobal loads the accumulator, returning nil when never persisted.
func (s *Store) GetRewardGlobal() (*RewardGlobal, error) {
	data, err := s.db.Get([]byte(rewardGlobalKey))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault store: read reward global: %w", err)
	}
	var stored storedRewardGlobal
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("vault store: decode reward global: %w", err)
	}
	return &RewardGlobal{
		AccRewardPerShare: copyBigInt(stored.AccRewardPerShare),
		CreditedReward:    copyBigInt(stored.CreditedReward),
		SettledReward:     copyBigInt(stored.SettledReward),
	}, nil
}

// PutRewardGlobal persists the accumulator.
func (s *Store) PutRewardGlobal(g *RewardGlobal) error {
	if g == nil {
		return fmt.Errorf("vault store: nil reward global")
	}
	encoded, err := rlp.EncodeToBytes(storedRewardGlobal{
		AccRewardPerShare: copyBigInt(g.AccRewardPerShare),
		CreditedReward:    copyBigInt(g.CreditedReward),
		SettledReward:     copyBigInt(g.SettledReward),
	})
	if err != nil {
		return err
	}
	return s.db.Put([]byte(rewardGlobalKey), encoded)
}

// GetRewardAccount loads a user's reward record, returning nil when absent.
func (s *Store) GetRewardAccount(addr [20]byte) (*RewardAccount, error) {
	data, err := s.db.Get(rewardKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault store: read reward account: %w", err)
	}
	var stored storedRewardAccount
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, fmt.Errorf("vault store: decode reward account: %w", err)
	}
	account := &RewardAccount{
		RewardPerSharePaid: copyBigInt(stored.RewardPerSharePaid),
		ClaimedReward:      copyBigInt(stored.ClaimedReward),
		LastClaimEpoch:     stored.LastClaimEpoch,
	}
	copy(account.Address[:], stored.Address)
	return account, nil
}

// PutRewardAccount persists a user's reward record.
func (s *Store) PutRewardAccount(a *RewardAccount) error {
	if a == nil {
		return fmt.Errorf("vault store: nil reward account")
	}
	encoded, err := rlp.EncodeToBytes(storedRewardAccount{
		Address:            append([]byte(nil), a.Address[:]...),
		RewardPerSharePaid: copyBigInt(a.RewardPerSharePaid),
		ClaimedReward:      copyBigInt(a.ClaimedReward),
		LastClaimEpoch:     a.LastClaimEpoch,
	})
	if err != nil {
		return err
	}
	return s.db.Put(rewardKey(a.Address), encoded)
}

// DeleteRewardAccount removes a user's reward record.
func (s *Store) DeleteRewardAccount(addr [20]byte) error {
	return s.db.Delete(rewardKey(addr))
}

func (s *Store) ensureIndexed(addr [20]byte) error {
	index, err := s.loadIndex()
	if err != nil {
		return err
	}
	for _, existing := range index {
		if existing == addr {
			return nil
		}
	}
	return s.saveIndex(append(index, addr))
}

func (s *Store) loadIndex() ([][20]byte, error) {
	data, err := s.db.Get([]byte(accountIndexKey))
	if errors.Is(err, storage.ErrNotFound) {
		return [][20]byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault store: read account index: %w", err)
	}
	var raw [][]byte
	if err := rlp.DecodeBytes(data, &raw); err != nil {
		return nil, fmt.Errorf("vault store: decode account index: %w", err)
	}
	index := make([][20]byte, 0, len(raw))
	for _, b := range raw {
		var addr [20]byte
		copy(addr[:], b)
		index = append(index, addr)
	}
	return index, nil
}

func (s *Store) saveIndex(index [][20]byte) error {
	raw := make([][]byte, 0, len(index))
	for _, addr := range index {
		raw = append(raw, append([]byte(nil), addr[:]...))
	}
	encoded, err := rlp.EncodeToBytes(raw)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(accountIndexKey), encoded)
}

func accountKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf(accountKeyFmt, hex.EncodeToString(addr[:])))
}

func rewardKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf(rewardKeyFmt, hex.EncodeToString(addr[:])))
}
