package staker

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestSingleStakerEarnsWholeReward(t *testing.T) {
	f := newFixture(t)
	key := f.key(1_100, 1_200)
	f.create(t, key, 1_000)
	f.oracle.setRate(poolA, -60, 60, 1_100, fullRate(4))
	f.deposit(t, 1, aliceAddr, poolA, -60, 60, 4)

	f.now = 1_100
	if _, err := f.engine.StakeToken(aliceAddr, key, 1); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.now = 1_500
	reward, err := f.engine.UnstakeToken(aliceAddr, key, 1)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if reward.Uint64() != 1_000 {
		t.Fatalf("expected the whole reward, got %s", reward)
	}
	if _, err := f.engine.EndIncentive(key); !errors.Is(err, ErrNothingToRefund) {
		t.Fatalf("expected nothing left to refund, got %v", err)
	}
	claimed, err := f.engine.ClaimReward(aliceAddr, rewardToken, aliceAddr, nil)
	if err != nil || claimed.Uint64() != 1_000 {
		t.Fatalf("claim: %v err=%v", claimed, err)
	}
}

func TestPartialPresenceSplitsReward(t *testing.T) {
	f := newFixture(t)
	key := f.key(1_100, 1_200)
	f.create(t, key, 1_000)
	// In range for the first 40 seconds only.
	f.oracle.setRate(poolA, -60, 60, 1_100, fullRate(2))
	f.oracle.setRate(poolA, -60, 60, 1_140, new(uint256.Int))
	f.now = 1_100
	f.deposit(t, 1, aliceAddr, poolA, -60, 60, 2, key)

	f.now = 1_300
	reward, err := f.engine.UnstakeToken(aliceAddr, key, 1)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if reward.Uint64() != 400 {
		t.Fatalf("expected 400, got %s", reward)
	}
	refund, err := f.engine.EndIncentive(key)
	if err != nil || refund.Uint64() != 600 {
		t.Fatalf("expected 600 refund, got %v err=%v", refund, err)
	}
}

func TestSymmetricPositionsEarnEqualRewards(t *testing.T) {
	for _, order := range [][2]PositionID{{1, 2}, {2, 1}} {
		f := newFixture(t)
		key := f.key(1_100, 1_200)
		f.create(t, key, 1_000)
		// Two positions of liquidity 4 share the range.
		f.oracle.setRate(poolA, -60, 60, 1_100, fullRate(8))
		f.now = 1_100
		f.deposit(t, 1, aliceAddr, poolA, -60, 60, 4, key)
		f.deposit(t, 2, bobAddr, poolA, -60, 60, 4, key)

		f.now = 1_150
		rewards := make(map[PositionID]uint64)
		for _, id := range order {
			caller := aliceAddr
			if id == 2 {
				caller = bobAddr
			}
			reward, err := f.engine.UnstakeToken(caller, key, id)
			if err != nil {
				t.Fatalf("unstake %d: %v", id, err)
			}
			rewards[id] = reward.Uint64()
		}
		if rewards[1] != rewards[2] || rewards[1] != 500 {
			t.Fatalf("order %v: expected equal rewards of 500, got %v", order, rewards)
		}
	}
}

func TestGetRewardInfoIsPure(t *testing.T) {
	f := newFixture(t)
	key := f.key(1_100, 1_200)
	f.create(t, key, 1_000)
	f.oracle.setRate(poolA, -60, 60, 1_100, fullRate(4))
	f.now = 1_100
	f.deposit(t, 1, aliceAddr, poolA, -60, 60, 4, key)
	f.now = 1_125

	before := f.state.committed.clone()
	commits := f.state.commits
	emitted := len(f.recorder.Events())

	first, err := f.engine.GetRewardInfo(key, 1)
	if err != nil {
		t.Fatalf("reward info: %v", err)
	}
	second, err := f.engine.GetRewardInfo(key, 1)
	if err != nil {
		t.Fatalf("reward info: %v", err)
	}
	if !first.Reward.Eq(second.Reward) || !first.SecondsInsideX128.Eq(second.SecondsInsideX128) {
		t.Fatalf("repeated previews differ: %+v vs %+v", first, second)
	}
	// A lone staker owns every second elapsed so far.
	if first.Reward.Uint64() != 1_000 {
		t.Fatalf("expected preview of 1000, got %s", first.Reward)
	}
	if !reflect.DeepEqual(before, f.state.committed) || !reflect.DeepEqual(before, f.state.working.clone()) {
		t.Fatalf("preview mutated state")
	}
	if f.state.commits != commits || len(f.recorder.Events()) != emitted {
		t.Fatalf("preview committed or emitted")
	}

	reward, err := f.engine.UnstakeToken(aliceAddr, key, 1)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if !reward.Eq(first.Reward) {
		t.Fatalf("unstake paid %s, preview said %s", reward, first.Reward)
	}
}

func TestEligibleIncentivesOnSharedPool(t *testing.T) {
	f := newFixture(t)
	first := f.key(1_000, 1_200)
	second := first
	second.EndTime = 1_300
	f.create(t, first, 1_000)
	f.create(t, second, 2_000)
	other := f.key(1_000, 1_200)
	other.Pool = poolB
	f.create(t, other, 500)

	f.deposit(t, 1, aliceAddr, poolA, -60, 60, 4, first)

	stakeable, err := f.engine.StakeableIncentiveKeysByTokenID(1)
	if err != nil {
		t.Fatalf("stakeable keys: %v", err)
	}
	if len(stakeable) != 1 || stakeable[0] != second {
		t.Fatalf("expected only the second incentive, got %+v", stakeable)
	}
	staked, err := f.engine.IncentiveKeysByTokenID(1)
	if err != nil || len(staked) != 1 || staked[0] != first {
		t.Fatalf("expected only the first incentive staked, got %+v err=%v", staked, err)
	}

	f.now = 1_300
	stakeable, _ = f.engine.StakeableIncentiveKeysByTokenID(1)
	if len(stakeable) != 0 {
		t.Fatalf("ended incentives are not stakeable, got %+v", stakeable)
	}
}

func TestSettlementLongAfterTermination(t *testing.T) {
	f := newFixture(t)
	short := f.key(1_100, 1_200)
	long := short
	long.EndTime = 1_300
	f.create(t, short, 1_000)
	f.create(t, long, 2_000)
	f.oracle.setRate(poolA, -60, 60, 1_100, fullRate(4))
	f.now = 1_100
	f.deposit(t, 1, aliceAddr, poolA, -60, 60, 4, short, long)

	// The short incentive is wound down while the stake is still open.
	f.now = 5_000
	refund, err := f.engine.EndIncentive(short)
	if err != nil || refund.Uint64() != 1_000 {
		t.Fatalf("end short incentive: refund=%v err=%v", refund, err)
	}
	reward, err := f.engine.UnstakeToken(bobAddr, short, 1)
	if err != nil {
		t.Fatalf("unstake short: %v", err)
	}
	if !reward.IsZero() {
		t.Fatalf("refunded incentive cannot pay, got %s", reward)
	}

	f.now = 90_000
	reward, err = f.engine.UnstakeToken(aliceAddr, long, 1)
	if err != nil {
		t.Fatalf("unstake long: %v", err)
	}
	if reward.Uint64() != 2_000 {
		t.Fatalf("late settlement must use the capped window, got %s", reward)
	}
	incentive, _ := f.engine.Incentive(long.ID())
	if !incentive.TotalRewardUnclaimed.IsZero() || incentive.NumberOfStakes != 0 {
		t.Fatalf("unexpected long incentive state %+v", incentive)
	}
}

func TestStakeAfterEndEarnsNothing(t *testing.T) {
	f := newFixture(t)
	key := f.key(1_100, 1_200)
	f.create(t, key, 1_000)
	f.oracle.setRate(poolA, -60, 60, 1_100, fullRate(4))
	f.deposit(t, 1, aliceAddr, poolA, -60, 60, 4)

	f.now = 1_500
	if _, err := f.engine.StakeToken(aliceAddr, key, 1); err != nil {
		t.Fatalf("late stake: %v", err)
	}
	f.now = 1_600
	reward, err := f.engine.UnstakeToken(aliceAddr, key, 1)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if !reward.IsZero() {
		t.Fatalf("stake entered after end must earn nothing, got %s", reward)
	}
}

type simPosition struct {
	id        PositionID
	owner     int
	liquidity uint64
	lower     int32
	upper     int32
	staked    bool
}

// TestRewardConservationRandomised drives random stake/unstake schedules
// against arbitrary oracle curves and checks that payouts plus the refund
// always equal the funded amount.
func TestRewardConservationRandomised(t *testing.T) {
	owners := []common.Address{aliceAddr, bobAddr, ownerAddr}
	ranges := [][2]int32{{-60, 60}, {-120, 0}, {0, 240}}

	for seed := int64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewSource(seed))
		f := newFixture(t)
		const funded = 987_654_321
		key := f.key(1_100, 1_100+uint64(50+rng.Intn(400)))
		f.create(t, key, funded)

		for _, r := range ranges {
			at := uint64(1_000)
			for i := 0; i < 6; i++ {
				rate := new(uint256.Int).Div(Q128, uint256.NewInt(uint64(1+rng.Intn(16))))
				if rng.Intn(4) == 0 {
					rate.Clear()
				}
				f.oracle.setRate(poolA, r[0], r[1], at, rate)
				at += uint64(1 + rng.Intn(150))
			}
		}

		positions := make([]*simPosition, 5)
		for i := range positions {
			r := ranges[rng.Intn(len(ranges))]
			positions[i] = &simPosition{
				id:        PositionID(i + 1),
				owner:     rng.Intn(len(owners)),
				liquidity: uint64(1) << uint(rng.Intn(5)),
				lower:     r[0],
				upper:     r[1],
			}
			f.deposit(t, positions[i].id, owners[positions[i].owner], poolA, r[0], r[1], positions[i].liquidity)
		}

		paid := new(uint256.Int)
		f.now = int64(key.StartTime)
		for f.now < int64(key.EndTime)+100 {
			f.now += int64(1 + rng.Intn(20))
			p := positions[rng.Intn(len(positions))]
			owner := owners[p.owner]
			if p.staked {
				reward, err := f.engine.UnstakeToken(owner, key, p.id)
				if err != nil {
					t.Fatalf("seed %d: unstake %d: %v", seed, p.id, err)
				}
				paid.Add(paid, reward)
				p.staked = false
				continue
			}
			if _, err := f.engine.StakeToken(owner, key, p.id); err != nil {
				t.Fatalf("seed %d: stake %d: %v", seed, p.id, err)
			}
			p.staked = true
		}
		for _, p := range positions {
			if !p.staked {
				continue
			}
			reward, err := f.engine.UnstakeToken(bobAddr, key, p.id)
			if err != nil {
				t.Fatalf("seed %d: final unstake %d: %v", seed, p.id, err)
			}
			paid.Add(paid, reward)
		}

		refund := new(uint256.Int)
		if amount, err := f.engine.EndIncentive(key); err == nil {
			refund = amount
		} else if !errors.Is(err, ErrNothingToRefund) {
			t.Fatalf("seed %d: end incentive: %v", seed, err)
		}
		total := new(uint256.Int).Add(paid, refund)
		if total.Uint64() != funded {
			t.Fatalf("seed %d: paid %s + refund %s != funded %d", seed, paid, refund, funded)
		}
		if custody := f.state.balance(rewardToken, engineAddr); !custody.Eq(paid) {
			t.Fatalf("seed %d: custody holds %s, vault owes %s", seed, custody, paid)
		}
	}
}
