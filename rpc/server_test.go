package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"granary/native/registry"
	"granary/native/vault"
	"granary/storage"
)

const (
	testToken = "test-token"
	testOwner = "0x00000000000000000000000000000000000000a0"
	testAsset = "0x00000000000000000000000000000000000000ee"
	testUser  = "0x0000000000000000000000000000000000000001"
)

func newTestServer(t *testing.T, tokens []string) *httptest.Server {
	t.Helper()
	store := vault.NewStore(storage.NewMemDB())
	ledger := vault.NewRewardLedger(store, nil)
	asset, err := parseAddressString(testAsset)
	require.NoError(t, err)
	owner, err := parseAddressString(testOwner)
	require.NoError(t, err)
	engine := vault.NewEngine(store, ledger, vault.Params{
		Asset:         asset,
		MinDeposit:    big.NewInt(1),
		EpochDuration: 3600,
	})
	reg := registry.NewRegistry(owner)
	engine.SetRegistry(reg)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewServer(engine, reg, owner, tokens, logger).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, []string{testToken})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestMutatingRoutesRequireBearerToken(t *testing.T) {
	srv := newTestServer(t, []string{testToken})
	body := amountRequest{Address: testUser, Amount: "100"}

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/vault/deposit", "", body)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/vault/deposit", "wrong", body)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/vault/deposit", testToken, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNoTokensConfiguredRejectsAllMutations(t *testing.T) {
	srv := newTestServer(t, nil)
	body := amountRequest{Address: testUser, Amount: "100"}

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/vault/deposit", "anything", body)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDepositWithdrawFlow(t *testing.T) {
	srv := newTestServer(t, []string{testToken})

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/v1/vault/deposit", testToken,
		amountRequest{Address: testUser, Amount: "500"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "500", payload["balance"])

	// Over-withdrawal is a conflict, not a server error.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/vault/withdraw", testToken,
		amountRequest{Address: testUser, Amount: "501"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, payload = doJSON(t, http.MethodPost, srv.URL+"/v1/vault/withdraw", testToken,
		amountRequest{Address: testUser, Amount: "200"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "300", payload["balance"])

	resp, payload = doJSON(t, http.MethodGet, srv.URL+"/v1/vault/account/"+testUser, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "300", payload["balance"])
}

func TestDepositValidationErrors(t *testing.T) {
	srv := newTestServer(t, []string{testToken})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/vault/deposit", testToken,
		amountRequest{Address: "0xnotanaddress", Amount: "100"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/vault/deposit", testToken,
		amountRequest{Address: testUser, Amount: "one hundred"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/vault/deposit", testToken,
		amountRequest{Address: testUser, Amount: "0"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHarvestReportsGatedNoOp(t *testing.T) {
	srv := newTestServer(t, []string{testToken})

	// The first call anchors the epoch clock and reports no harvest.
	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/v1/vault/harvest", testToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, payload["harvested"])
	require.Equal(t, float64(0), payload["epoch"])
}

func TestPendingRewardView(t *testing.T) {
	srv := newTestServer(t, []string{testToken})

	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/v1/vault/pending/"+testUser, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "0", payload["pending"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/vault/pending/0xzz", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVaultSummaryView(t *testing.T) {
	srv := newTestServer(t, []string{testToken})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/vault/deposit", testToken,
		amountRequest{Address: testUser, Amount: "750"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/v1/vault/summary", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "750", payload["totalSupply"])
	require.Equal(t, float64(1), payload["users"])
}

func TestRegistryEndpoints(t *testing.T) {
	srv := newTestServer(t, []string{testToken})

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/registry/protocols", testToken,
		protocolRequest{ProtocolID: 0, Name: "reserved"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/registry/protocols", testToken,
		protocolRequest{ProtocolID: 1, Name: "aave-v3"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/registry/protocols", testToken,
		protocolRequest{ProtocolID: 1, Name: "compound"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Activating a protocol with no registered name is a 404.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/registry/active", testToken,
		activeRequest{ProtocolID: 9})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/v1/registry/active", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(0), payload["activeProtocolId"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/registry/active", testToken,
		activeRequest{ProtocolID: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = doJSON(t, http.MethodGet, srv.URL+"/v1/registry/active", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), payload["activeProtocolId"])
	require.Equal(t, "aave-v3", payload["name"])

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/registry/adapters", testToken,
		adapterRequest{ProtocolID: 1, Asset: testAsset})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
