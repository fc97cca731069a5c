package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "granary.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
ListenAddress = ":9090"
DataDir = "/var/lib/granary"
Env = "prod"

[vault]
AssetAddress = "0x00000000000000000000000000000000000000ee"
OwnerAddress = "0x00000000000000000000000000000000000000a0"
MinDepositWei = "1000000000000000000"
EpochDurationSeconds = 3600
MaxRewardPerShareDelta = "500000000000"

[auth]
APITokens = ["token-one", " token-two ", ""]

[log]
Path = "/var/log/granary/granary.log"
MaxSizeMB = 50
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9090" || cfg.DataDir != "/var/lib/granary" || cfg.Env != "prod" {
		t.Fatalf("top-level fields: %+v", cfg)
	}
	if cfg.Vault.EpochDurationSeconds != 3600 {
		t.Fatalf("epoch duration: %d", cfg.Vault.EpochDurationSeconds)
	}

	asset, err := cfg.Asset()
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	if asset[19] != 0xEE {
		t.Fatalf("asset parse: %x", asset)
	}
	owner, err := cfg.Owner()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner[19] != 0xA0 {
		t.Fatalf("owner parse: %x", owner)
	}

	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	if cfg.MinDeposit().Cmp(want) != 0 {
		t.Fatalf("min deposit: %s", cfg.MinDeposit())
	}
	if cfg.RewardDeltaGuard().Cmp(big.NewInt(500_000_000_000)) != 0 {
		t.Fatalf("delta guard: %s", cfg.RewardDeltaGuard())
	}

	// Blank tokens are dropped, the rest trimmed.
	if len(cfg.Auth.APITokens) != 2 || cfg.Auth.APITokens[1] != "token-two" {
		t.Fatalf("tokens: %v", cfg.Auth.APITokens)
	}
	if cfg.Log.MaxSizeMB != 50 || cfg.Log.MaxBackups != 5 {
		t.Fatalf("log defaults not layered: %+v", cfg.Log)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[vault]
AssetAddress = "0x00000000000000000000000000000000000000ee"
OwnerAddress = "0x00000000000000000000000000000000000000a0"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8645" {
		t.Fatalf("listen default: %q", cfg.ListenAddress)
	}
	if cfg.DataDir != "./granary-data" {
		t.Fatalf("data dir default: %q", cfg.DataDir)
	}
	if cfg.Vault.EpochDurationSeconds != 86400 {
		t.Fatalf("epoch duration default: %d", cfg.Vault.EpochDurationSeconds)
	}
	if cfg.MinDeposit().Sign() != 0 {
		t.Fatalf("min deposit default: %s", cfg.MinDeposit())
	}
	if cfg.RewardDeltaGuard() != nil {
		t.Fatalf("delta guard default should be nil, got %s", cfg.RewardDeltaGuard())
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing asset",
			body: `
[vault]
OwnerAddress = "0x00000000000000000000000000000000000000a0"
`,
			want: "vault asset",
		},
		{
			name: "zero owner",
			body: `
[vault]
AssetAddress = "0x00000000000000000000000000000000000000ee"
OwnerAddress = "0x0000000000000000000000000000000000000000"
`,
			want: "vault owner",
		},
		{
			name: "short address",
			body: `
[vault]
AssetAddress = "0xee"
OwnerAddress = "0x00000000000000000000000000000000000000a0"
`,
			want: "vault asset",
		},
		{
			name: "zero epoch duration",
			body: `
[vault]
AssetAddress = "0x00000000000000000000000000000000000000ee"
OwnerAddress = "0x00000000000000000000000000000000000000a0"
EpochDurationSeconds = 0
`,
			want: "epoch duration",
		},
		{
			name: "negative min deposit",
			body: `
[vault]
AssetAddress = "0x00000000000000000000000000000000000000ee"
OwnerAddress = "0x00000000000000000000000000000000000000a0"
MinDepositWei = "-5"
`,
			want: "min deposit",
		},
		{
			name: "malformed operator",
			body: `
[vault]
AssetAddress = "0x00000000000000000000000000000000000000ee"
OwnerAddress = "0x00000000000000000000000000000000000000a0"
OperatorAddress = "0xZZ"
`,
			want: "vault operator",
		},
		{
			name: "garbage delta guard",
			body: `
[vault]
AssetAddress = "0x00000000000000000000000000000000000000ee"
OwnerAddress = "0x00000000000000000000000000000000000000a0"
MaxRewardPerShareDelta = "abc"
`,
			want: "reward delta guard",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestOperatorAddress(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok, err := cfg.Operator(); err != nil || ok {
		t.Fatalf("unset operator: want absent, got ok=%v err=%v", ok, err)
	}

	cfg, err = Load(writeConfig(t, `
[vault]
AssetAddress = "0x00000000000000000000000000000000000000ee"
OwnerAddress = "0x00000000000000000000000000000000000000a0"
OperatorAddress = " 0x00000000000000000000000000000000000000b1 "
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	operator, ok, err := cfg.Operator()
	if err != nil {
		t.Fatalf("operator: %v", err)
	}
	if !ok {
		t.Fatalf("expected operator to be configured")
	}
	if operator[19] != 0xB1 {
		t.Fatalf("operator address mismatch: %x", operator)
	}
}
