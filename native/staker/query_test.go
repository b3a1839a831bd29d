package staker

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestPositionQueries(t *testing.T) {
	f := newFixture(t)
	first := f.key(1_000, 1_200)
	second := first
	second.RewardToken = otherToken
	f.create(t, first, 1_000)
	f.create(t, second, 1_000)

	f.deposit(t, 1, aliceAddr, poolA, -60, 60, 4, first, second)
	f.deposit(t, 2, aliceAddr, poolA, -60, 60, 4)
	f.deposit(t, 3, bobAddr, poolA, -60, 60, 4, first)

	ids, err := f.engine.TokenIDsByOwner(aliceAddr)
	if err != nil || len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected token ids %v err=%v", ids, err)
	}
	staked, err := f.engine.StakedTokenIDsByOwner(aliceAddr)
	if err != nil || len(staked) != 1 || staked[0] != 1 {
		t.Fatalf("unexpected staked ids %v err=%v", staked, err)
	}
	if ok, _ := f.engine.IsTokenStaked(1); !ok {
		t.Fatalf("position 1 should be staked")
	}
	if ok, _ := f.engine.IsTokenStaked(2); ok {
		t.Fatalf("position 2 should not be staked")
	}
	if ok, err := f.engine.IsTokenStaked(99); ok || err != nil {
		t.Fatalf("unknown positions are simply unstaked, ok=%v err=%v", ok, err)
	}

	tokens, err := f.engine.RewardTokensByTokenID(1)
	if err != nil || len(tokens) != 2 || tokens[0] != rewardToken || tokens[1] != otherToken {
		t.Fatalf("unexpected reward tokens %v err=%v", tokens, err)
	}
	tokens, _ = f.engine.RewardTokensByOwner(bobAddr)
	if len(tokens) != 1 || tokens[0] != rewardToken {
		t.Fatalf("unexpected owner reward tokens %v", tokens)
	}

	all, err := f.engine.AllIncentives()
	if err != nil || len(all) != 2 || all[0].ID != first.ID() || all[1].ID != second.ID() {
		t.Fatalf("unexpected incentives %v err=%v", all, err)
	}
	if f.engine.IncentiveIDFor(second) != second.ID() {
		t.Fatalf("id derivation mismatch")
	}
}

func TestRewardTokensByOwnerIncludesVaultBalances(t *testing.T) {
	f := newFixture(t)
	key := f.key(1_100, 1_200)
	f.create(t, key, 1_000)
	f.oracle.setRate(poolA, -60, 60, 1_100, fullRate(4))
	f.now = 1_100
	f.deposit(t, 1, aliceAddr, poolA, -60, 60, 4, key)
	f.now = 1_200
	if _, err := f.engine.UnstakeToken(aliceAddr, key, 1); err != nil {
		t.Fatalf("unstake: %v", err)
	}

	tokens, _ := f.engine.RewardTokensByOwner(aliceAddr)
	if len(tokens) != 1 || tokens[0] != rewardToken {
		t.Fatalf("vault balance should keep the token listed, got %v", tokens)
	}
	if _, err := f.engine.ClaimReward(aliceAddr, rewardToken, aliceAddr, nil); err != nil {
		t.Fatalf("claim: %v", err)
	}
	tokens, _ = f.engine.RewardTokensByOwner(aliceAddr)
	if len(tokens) != 0 {
		t.Fatalf("drained vault and no stakes should list nothing, got %v", tokens)
	}
}

func TestRangeStatusAndSwapFees(t *testing.T) {
	f := newFixture(t)
	f.deposit(t, 1, aliceAddr, poolA, -60, 60, 4)

	status, err := f.engine.RangeStatus(1)
	if err != nil || !status.InRange || status.Pool != poolA || status.CurrentTick != 0 {
		t.Fatalf("unexpected status %+v err=%v", status, err)
	}
	f.oracle.ticks[poolA] = 60
	status, _ = f.engine.RangeStatus(1)
	if status.InRange {
		t.Fatalf("upper tick is exclusive")
	}
	f.oracle.ticks[poolA] = -60
	status, _ = f.engine.RangeStatus(1)
	if !status.InRange {
		t.Fatalf("lower tick is inclusive")
	}

	f.oracle.fees[1] = [2]*uint256.Int{uint256.NewInt(7), uint256.NewInt(9)}
	fee0, fee1, err := f.engine.SwapFees(1)
	if err != nil || fee0.Uint64() != 7 || fee1.Uint64() != 9 {
		t.Fatalf("unexpected fees %v/%v err=%v", fee0, fee1, err)
	}
}

func TestQueriesDoNotMutate(t *testing.T) {
	f := newFixture(t)
	key := f.key(1_000, 1_200)
	f.create(t, key, 1_000)
	f.deposit(t, 1, aliceAddr, poolA, -60, 60, 4, key)
	commits := f.state.commits

	_, _ = f.engine.StakeableIncentiveKeysByTokenID(1)
	_, _ = f.engine.IncentiveKeysByTokenID(1)
	_, _ = f.engine.RewardTokensByOwner(aliceAddr)
	_, _ = f.engine.Stake(1, key.ID())
	_, _ = f.engine.RewardBalance(aliceAddr, rewardToken)
	_, _ = f.engine.TokenIDsByOwner(common.HexToAddress("0xdead"))

	if f.state.commits != commits {
		t.Fatalf("queries must not commit")
	}
}
