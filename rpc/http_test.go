package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"rangestaker/core/state"
	"rangestaker/indexer"
	"rangestaker/native/bank"
	"rangestaker/native/pool"
	"rangestaker/native/staker"
	"rangestaker/storage"
)

const (
	testSecret = "rpc-test-secret"
	testIssuer = "rangestaker-tests"
)

var (
	testEngine  = common.HexToAddress("0x5000")
	testOwner   = common.HexToAddress("0x0100")
	testSponsor = common.HexToAddress("0x0200")
	testAlice   = common.HexToAddress("0x0a")
	testBob     = common.HexToAddress("0x0b")
	testToken   = common.HexToAddress("0x7000")
	testPool    = common.HexToAddress("0x9000")
)

type harness struct {
	t       *testing.T
	now     int64
	server  *Server
	http    *httptest.Server
	engine  *staker.Engine
	journal *indexer.Journal
}

func newHarness(t *testing.T, cfg ServerConfig) *harness {
	t.Helper()
	h := &harness{t: t, now: 1_000}
	clock := func() int64 { return h.now }

	db := storage.NewMemDB()
	manager := state.NewManager(db)
	ledger := bank.NewLedger(manager, testEngine)
	registry := pool.NewRegistry(manager)
	registry.SetNowFunc(clock)

	journal, err := indexer.Open(indexer.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	h.journal = journal

	engine := staker.NewEngine(testEngine)
	engine.SetState(manager)
	engine.SetOracle(registry)
	engine.SetCustody(registry)
	engine.SetLedger(ledger)
	engine.SetEmitter(journal)
	engine.SetNowFunc(clock)
	_, err = engine.InitParams(staker.Params{Owner: testOwner, MaxIncentiveStartLeadTime: 10_000, MaxIncentiveDuration: 100_000})
	require.NoError(t, err)
	registry.RegisterReceiver(testEngine, engine)
	h.engine = engine

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = testSecret
		cfg.JWTIssuer = testIssuer
	}
	if cfg.MutationsPerMinute == 0 {
		cfg.MutationsPerMinute = 6_000
		cfg.MutationBurst = 100
	}
	server, err := NewServer(Backend{Engine: engine, Pools: registry, Ledger: ledger, Journal: journal}, cfg, nil)
	require.NoError(t, err)
	h.server = server
	h.http = httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		h.http.Close()
		_ = journal.Close()
		_ = db.Close()
	})
	return h
}

func (h *harness) token(caller common.Address) string {
	token, err := h.server.Authenticator().Issue(caller, time.Hour)
	require.NoError(h.t, err)
	return token
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (h *harness) rpc(token, method string, params interface{}) (int, envelope) {
	h.t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	require.NoError(h.t, err)
	httpReq, err := http.NewRequest(http.MethodPost, h.http.URL+"/", bytes.NewReader(body))
	require.NoError(h.t, err)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	var out envelope
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (h *harness) ok(token, method string, params interface{}, out interface{}) {
	h.t.Helper()
	status, resp := h.rpc(token, method, params)
	require.Nil(h.t, resp.Error, "%s failed: %+v", method, resp.Error)
	require.Equal(h.t, http.StatusOK, status)
	if out != nil {
		require.NoError(h.t, json.Unmarshal(resp.Result, out))
	}
}

func keyParamsFor(start, end uint64) incentiveKeyParams {
	return incentiveKeyParams{
		RewardToken: testToken.Hex(),
		Pool:        testPool.Hex(),
		StartTime:   start,
		EndTime:     end,
		Refundee:    testSponsor.Hex(),
	}
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(h.http.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestRequestValidation(t *testing.T) {
	h := newHarness(t, ServerConfig{})

	status, resp := h.rpc("", "staker_nope", nil)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	// Dev methods are hidden unless enabled.
	status, resp = h.rpc(h.token(testAlice), "dev_fund", fundParams{Token: testToken.Hex(), Amount: "1"})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	status, resp = h.rpc("", "staker_getDeposit", nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	resp2, err := http.Post(h.http.URL+"/", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	_ = resp2.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestMutationsRequireValidToken(t *testing.T) {
	h := newHarness(t, ServerConfig{})
	params := setParamsParams{MaxIncentiveStartLeadTime: 1, MaxIncentiveDuration: 1}

	status, resp := h.rpc("", "staker_setParams", params)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	other, err := NewAuthenticator("another-secret", testIssuer)
	require.NoError(t, err)
	forged, err := other.Issue(testOwner, time.Hour)
	require.NoError(t, err)
	status, _ = h.rpc(forged, "staker_setParams", params)
	require.Equal(t, http.StatusUnauthorized, status)

	expired, err := h.server.Authenticator().Issue(testOwner, -time.Hour)
	require.NoError(t, err)
	status, _ = h.rpc(expired, "staker_setParams", params)
	require.Equal(t, http.StatusUnauthorized, status)

	// A valid token for the wrong caller reaches the engine and is refused there.
	status, resp = h.rpc(h.token(testAlice), "staker_setParams", params)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	var updated staker.Params
	h.ok(h.token(testOwner), "staker_setParams", setParamsParams{MaxIncentiveStartLeadTime: 50, MaxIncentiveDuration: 60}, &updated)
	require.Equal(t, uint64(60), updated.MaxIncentiveDuration)
}

func TestRateLimitPerCaller(t *testing.T) {
	h := newHarness(t, ServerConfig{MutationsPerMinute: 0.001, MutationBurst: 1})
	params := setParamsParams{MaxIncentiveStartLeadTime: 50, MaxIncentiveDuration: 60}
	h.ok(h.token(testOwner), "staker_setParams", params, nil)

	status, resp := h.rpc(h.token(testOwner), "staker_setParams", params)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, resp.Error.Code)

	// Other callers keep their own budget.
	status, _ = h.rpc(h.token(testAlice), "staker_setParams", params)
	require.Equal(t, http.StatusForbidden, status)
}

func TestStakingLifecycleOverRPC(t *testing.T) {
	h := newHarness(t, ServerConfig{DevEnabled: true})
	sponsor, alice := h.token(testSponsor), h.token(testAlice)

	h.ok(sponsor, "dev_fund", fundParams{Token: testToken.Hex(), Amount: "5000"}, nil)
	h.ok(sponsor, "dev_createPool", createPoolParams{
		Pool: testPool.Hex(), Token0: common.HexToAddress("0x01").Hex(), Token1: common.HexToAddress("0x02").Hex(), Fee: 3000,
	}, nil)
	var position positionResult
	h.ok(alice, "dev_mintPosition", mintPositionParams{Pool: testPool.Hex(), TickLower: -60, TickUpper: 60, Liquidity: "1024"}, &position)
	require.Equal(t, testAlice.Hex(), position.Owner)

	key := keyParamsFor(1_100, 1_200)
	var incentive staker.Incentive
	h.ok(sponsor, "staker_createIncentive", createIncentiveParams{Key: key, Reward: "1000"}, &incentive)
	require.Equal(t, uint64(1_000), incentive.TotalRewardUnclaimed.Uint64())

	status, resp := h.rpc(sponsor, "staker_createIncentive", createIncentiveParams{Key: key, Reward: "1000"})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, codeConflict, resp.Error.Code)

	h.now = 1_100
	var deposit staker.Deposit
	h.ok(alice, "pool_safeTransfer", safeTransferParams{TokenID: position.TokenID, StakeKeys: []incentiveKeyParams{key}}, &deposit)
	require.Equal(t, testAlice, deposit.Owner)
	require.Equal(t, uint64(1), deposit.NumberOfStakes)

	var staked stakedResult
	h.ok("", "staker_isTokenStaked", tokenParams{TokenID: position.TokenID}, &staked)
	require.True(t, staked.Staked)

	var stakeable []staker.IncentiveKey
	h.ok("", "staker_getStakeableIncentiveKeys", tokenParams{TokenID: position.TokenID}, &stakeable)
	require.Empty(t, stakeable)

	h.now = 1_150
	var status2 staker.RangeStatus
	h.ok("", "staker_checkRangeStatus", tokenParams{TokenID: position.TokenID}, &status2)
	require.True(t, status2.InRange)

	h.now = 1_300
	var preview staker.RewardInfo
	h.ok("", "staker_getRewardInfo", stakeParams{Key: key, TokenID: position.TokenID}, &preview)
	require.Equal(t, uint64(1_000), preview.Reward.Uint64())

	// Bob may settle after the end; the reward still goes to alice.
	var unstaked amountResult
	h.ok(h.token(testBob), "staker_unstakeToken", stakeParams{Key: key, TokenID: position.TokenID}, &unstaked)
	require.Equal(t, uint64(1_000), unstaked.Amount.Uint64())

	status, resp = h.rpc(alice, "staker_unstakeToken", stakeParams{Key: key, TokenID: position.TokenID})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeNotFound, resp.Error.Code)

	var claimed amountResult
	h.ok(alice, "staker_claimReward", claimParams{RewardToken: testToken.Hex()}, &claimed)
	require.Equal(t, uint64(1_000), claimed.Amount.Uint64())

	var balance amountResult
	h.ok("", "bank_getBalance", balanceParams{Token: testToken.Hex(), Account: testAlice.Hex()}, &balance)
	require.Equal(t, uint64(1_000), balance.Amount.Uint64())

	h.ok(alice, "staker_withdrawToken", withdrawParams{TokenID: position.TokenID}, nil)
	var after positionResult
	h.ok("", "pool_getPosition", tokenParams{TokenID: position.TokenID}, &after)
	require.Equal(t, testAlice.Hex(), after.Owner)

	var events []eventResult
	h.ok("", "staker_listEvents", listEventsParams{TokenID: fmt.Sprint(position.TokenID)}, &events)
	types := make([]string, 0, len(events))
	for _, evt := range events {
		types = append(types, evt.Type)
	}
	require.Equal(t, []string{
		staker.EventTypeDepositTransferred,
		staker.EventTypeTokenStaked,
		staker.EventTypeTokenUnstaked,
		staker.EventTypeDepositTransferred,
	}, types)

	var byOwner []eventResult
	h.ok("", "staker_listEvents", listEventsParams{Owner: testAlice.Hex(), Type: staker.EventTypeRewardClaimed}, &byOwner)
	require.Len(t, byOwner, 1)
	require.Equal(t, "1000", byOwner[0].Attributes["amount"])
}

func TestToRPCErrorFallsBackToServerError(t *testing.T) {
	rpcErr := toRPCError(fmt.Errorf("disk on fire"))
	require.Equal(t, codeServerError, rpcErr.Code)
	require.Equal(t, "internal error", rpcErr.Message)

	rpcErr = toRPCError(fmt.Errorf("wrapped: %w", staker.ErrActiveStakesExist))
	require.Equal(t, codeConflict, rpcErr.Code)
	require.Equal(t, http.StatusConflict, rpcErr.status)
}
