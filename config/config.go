package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime settings for the granary daemon.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Env           string `toml:"Env"`

	Vault VaultConfig `toml:"vault"`
	Auth  AuthConfig  `toml:"auth"`
	Log   LogConfig   `toml:"log"`
}

// VaultConfig holds the economic parameters of the vault engine.
// OperatorAddress optionally designates the allocation driver authorized to
// mutate the protocol registry alongside the owner.
type VaultConfig struct {
	AssetAddress           string `toml:"AssetAddress"`
	OwnerAddress           string `toml:"OwnerAddress"`
	OperatorAddress        string `toml:"OperatorAddress"`
	MinDepositWei          string `toml:"MinDepositWei"`
	EpochDurationSeconds   uint64 `toml:"EpochDurationSeconds"`
	MaxRewardPerShareDelta string `toml:"MaxRewardPerShareDelta"`
}

// AuthConfig lists the API tokens accepted on mutating endpoints.
type AuthConfig struct {
	APITokens []string `toml:"APITokens"`
}

// LogConfig controls the optional rotating log file. An empty path keeps log
// output on stdout only.
type LogConfig struct {
	Path       string `toml:"Path"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Default returns the baseline configuration applied before the TOML file is
// decoded on top.
func Default() Config {
	return Config{
		ListenAddress: ":8645",
		DataDir:       "./granary-data",
		Env:           "dev",
		Vault: VaultConfig{
			MinDepositWei:        "0",
			EpochDurationSeconds: 86400,
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load reads the TOML configuration from disk, applies defaults, and validates
// the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, fmt.Errorf("config path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8645"
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = "./granary-data"
	}
	cfg.Env = strings.TrimSpace(cfg.Env)
	cfg.Vault.AssetAddress = strings.TrimSpace(cfg.Vault.AssetAddress)
	cfg.Vault.OwnerAddress = strings.TrimSpace(cfg.Vault.OwnerAddress)
	cfg.Vault.OperatorAddress = strings.TrimSpace(cfg.Vault.OperatorAddress)
	cfg.Vault.MinDepositWei = strings.TrimSpace(cfg.Vault.MinDepositWei)
	cfg.Vault.MaxRewardPerShareDelta = strings.TrimSpace(cfg.Vault.MaxRewardPerShareDelta)
	tokens := cfg.Auth.APITokens[:0]
	for _, token := range cfg.Auth.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	cfg.Auth.APITokens = tokens
}

// Validate enforces the structural requirements of the configuration.
func (cfg *Config) Validate() error {
	if _, err := cfg.Asset(); err != nil {
		return fmt.Errorf("vault asset: %w", err)
	}
	if _, err := cfg.Owner(); err != nil {
		return fmt.Errorf("vault owner: %w", err)
	}
	if cfg.Vault.OperatorAddress != "" {
		if _, err := parseAddress(cfg.Vault.OperatorAddress); err != nil {
			return fmt.Errorf("vault operator: %w", err)
		}
	}
	if cfg.Vault.EpochDurationSeconds == 0 {
		return fmt.Errorf("vault epoch duration must be positive")
	}
	if cfg.Vault.MinDepositWei != "" {
		if _, err := parseWei(cfg.Vault.MinDepositWei); err != nil {
			return fmt.Errorf("vault min deposit: %w", err)
		}
	}
	if cfg.Vault.MaxRewardPerShareDelta != "" {
		if _, err := parseWei(cfg.Vault.MaxRewardPerShareDelta); err != nil {
			return fmt.Errorf("vault reward delta guard: %w", err)
		}
	}
	return nil
}

// Asset returns the base asset address.
func (cfg *Config) Asset() ([20]byte, error) {
	return parseAddress(cfg.Vault.AssetAddress)
}

// Owner returns the administrative owner address.
func (cfg *Config) Owner() ([20]byte, error) {
	return parseAddress(cfg.Vault.OwnerAddress)
}

// Operator returns the designated allocation-driver address and whether one
// is configured.
func (cfg *Config) Operator() ([20]byte, bool, error) {
	if cfg.Vault.OperatorAddress == "" {
		return [20]byte{}, false, nil
	}
	addr, err := parseAddress(cfg.Vault.OperatorAddress)
	if err != nil {
		return [20]byte{}, false, err
	}
	return addr, true, nil
}

// MinDeposit returns the minimum deposit amount, zero when unset.
func (cfg *Config) MinDeposit() *big.Int {
	if cfg.Vault.MinDepositWei == "" {
		return big.NewInt(0)
	}
	value, err := parseWei(cfg.Vault.MinDepositWei)
	if err != nil {
		return big.NewInt(0)
	}
	return value
}

// RewardDeltaGuard returns the configured per-share delta bound, nil when the
// built-in default should apply.
func (cfg *Config) RewardDeltaGuard() *big.Int {
	if cfg.Vault.MaxRewardPerShareDelta == "" {
		return nil
	}
	value, err := parseWei(cfg.Vault.MaxRewardPerShareDelta)
	if err != nil {
		return nil
	}
	return value
}

func parseWei(value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("must be non-negative, got %q", value)
	}
	return parsed, nil
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if len(trimmed) != 40 {
		return addr, fmt.Errorf("address must be 20 bytes of hex, got %q", value)
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address %q: %w", value, err)
	}
	copy(addr[:], raw)
	if addr == ([20]byte{}) {
		return addr, fmt.Errorf("zero address not allowed")
	}
	return addr, nil
}
