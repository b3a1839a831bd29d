package staker

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type mockData struct {
	params    *Params
	ids       []IncentiveID
	incent    map[IncentiveID]*Incentive
	deposits  map[PositionID]*Deposit
	owned     map[common.Address][]PositionID
	stakes    map[PositionID]map[IncentiveID]*Stake
	order     map[PositionID][]IncentiveID
	rewards   map[common.Address]map[common.Address]*uint256.Int
	rewardTok map[common.Address][]common.Address
	balances  map[common.Address]map[common.Address]*uint256.Int
}

func newMockData() *mockData {
	return &mockData{
		incent:    make(map[IncentiveID]*Incentive),
		deposits:  make(map[PositionID]*Deposit),
		owned:     make(map[common.Address][]PositionID),
		stakes:    make(map[PositionID]map[IncentiveID]*Stake),
		order:     make(map[PositionID][]IncentiveID),
		rewards:   make(map[common.Address]map[common.Address]*uint256.Int),
		rewardTok: make(map[common.Address][]common.Address),
		balances:  make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

func (d *mockData) clone() *mockData {
	out := newMockData()
	if d.params != nil {
		p := *d.params
		out.params = &p
	}
	out.ids = append([]IncentiveID(nil), d.ids...)
	for k, v := range d.incent {
		out.incent[k] = v.Clone()
	}
	for k, v := range d.deposits {
		out.deposits[k] = v.Clone()
	}
	for k, v := range d.owned {
		out.owned[k] = append([]PositionID(nil), v...)
	}
	for k, v := range d.stakes {
		inner := make(map[IncentiveID]*Stake, len(v))
		for ik, iv := range v {
			inner[ik] = iv.Clone()
		}
		out.stakes[k] = inner
	}
	for k, v := range d.order {
		out.order[k] = append([]IncentiveID(nil), v...)
	}
	cloneAmounts := func(src map[common.Address]map[common.Address]*uint256.Int, dst map[common.Address]map[common.Address]*uint256.Int) {
		for k, v := range src {
			inner := make(map[common.Address]*uint256.Int, len(v))
			for ik, iv := range v {
				inner[ik] = new(uint256.Int).Set(iv)
			}
			dst[k] = inner
		}
	}
	cloneAmounts(d.rewards, out.rewards)
	cloneAmounts(d.balances, out.balances)
	for k, v := range d.rewardTok {
		out.rewardTok[k] = append([]common.Address(nil), v...)
	}
	return out
}

// mockState keeps a committed snapshot and a working copy so Discard behaves
// like the real overlay.
type mockState struct {
	committed *mockData
	working   *mockData
	commits   int
	failNext  error
}

func newMockState() *mockState {
	return &mockState{committed: newMockData(), working: newMockData()}
}

func (m *mockState) StakerParamsGet() (*Params, bool, error) {
	if m.working.params == nil {
		return nil, false, nil
	}
	p := *m.working.params
	return &p, true, nil
}

func (m *mockState) StakerParamsPut(params *Params) error {
	p := *params
	m.working.params = &p
	return nil
}

func (m *mockState) StakerIncentiveGet(id IncentiveID) (*Incentive, bool, error) {
	incentive, ok := m.working.incent[id]
	if !ok {
		return nil, false, nil
	}
	return incentive.Clone(), true, nil
}

func (m *mockState) StakerIncentivePut(incentive *Incentive) error {
	if _, ok := m.working.incent[incentive.ID]; !ok {
		m.working.ids = append(m.working.ids, incentive.ID)
	}
	m.working.incent[incentive.ID] = incentive.Clone()
	return nil
}

func (m *mockState) StakerIncentiveIDs() ([]IncentiveID, error) {
	return append([]IncentiveID(nil), m.working.ids...), nil
}

func (m *mockState) StakerDepositGet(id PositionID) (*Deposit, bool, error) {
	deposit, ok := m.working.deposits[id]
	if !ok {
		return nil, false, nil
	}
	return deposit.Clone(), true, nil
}

func (m *mockState) removeOwned(owner common.Address, id PositionID) {
	ids := m.working.owned[owner]
	filtered := make([]PositionID, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	m.working.owned[owner] = filtered
}

func (m *mockState) StakerDepositPut(deposit *Deposit) error {
	previous, ok := m.working.deposits[deposit.PositionID]
	if !ok || previous.Owner != deposit.Owner {
		if ok {
			m.removeOwned(previous.Owner, deposit.PositionID)
		}
		m.working.owned[deposit.Owner] = append(m.working.owned[deposit.Owner], deposit.PositionID)
	}
	m.working.deposits[deposit.PositionID] = deposit.Clone()
	return nil
}

func (m *mockState) StakerDepositDelete(id PositionID) error {
	if previous, ok := m.working.deposits[id]; ok {
		m.removeOwned(previous.Owner, id)
	}
	delete(m.working.deposits, id)
	return nil
}

func (m *mockState) StakerDepositsByOwner(owner common.Address) ([]PositionID, error) {
	return append([]PositionID{}, m.working.owned[owner]...), nil
}

func (m *mockState) StakerStakeGet(id PositionID, incentive IncentiveID) (*Stake, bool, error) {
	stake, ok := m.working.stakes[id][incentive]
	if !ok {
		return nil, false, nil
	}
	return stake.Clone(), true, nil
}

func (m *mockState) StakerStakePut(stake *Stake) error {
	inner, ok := m.working.stakes[stake.PositionID]
	if !ok {
		inner = make(map[IncentiveID]*Stake)
		m.working.stakes[stake.PositionID] = inner
	}
	if _, exists := inner[stake.IncentiveID]; !exists {
		m.working.order[stake.PositionID] = append(m.working.order[stake.PositionID], stake.IncentiveID)
	}
	inner[stake.IncentiveID] = stake.Clone()
	return nil
}

func (m *mockState) StakerStakeDelete(id PositionID, incentive IncentiveID) error {
	delete(m.working.stakes[id], incentive)
	ids := m.working.order[id]
	filtered := make([]IncentiveID, 0, len(ids))
	for _, existing := range ids {
		if existing != incentive {
			filtered = append(filtered, existing)
		}
	}
	m.working.order[id] = filtered
	return nil
}

func (m *mockState) StakerStakedIncentives(id PositionID) ([]IncentiveID, error) {
	return append([]IncentiveID{}, m.working.order[id]...), nil
}

func (m *mockState) StakerRewardGet(owner, token common.Address) (*uint256.Int, error) {
	if amount, ok := m.working.rewards[owner][token]; ok {
		return new(uint256.Int).Set(amount), nil
	}
	return new(uint256.Int), nil
}

func (m *mockState) StakerRewardPut(owner, token common.Address, amount *uint256.Int) error {
	inner, ok := m.working.rewards[owner]
	if !ok {
		inner = make(map[common.Address]*uint256.Int)
		m.working.rewards[owner] = inner
	}
	if _, listed := inner[token]; !listed {
		m.working.rewardTok[owner] = append(m.working.rewardTok[owner], token)
	}
	inner[token] = new(uint256.Int).Set(amount)
	return nil
}

func (m *mockState) StakerRewardTokens(owner common.Address) ([]common.Address, error) {
	return append([]common.Address{}, m.working.rewardTok[owner]...), nil
}

func (m *mockState) Commit() error {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.committed = m.working.clone()
	m.commits++
	return nil
}

func (m *mockState) Discard() {
	m.working = m.committed.clone()
}

func (m *mockState) balance(token, account common.Address) *uint256.Int {
	if amount, ok := m.committed.balances[token][account]; ok {
		return new(uint256.Int).Set(amount)
	}
	return new(uint256.Int)
}

// mockLedger keeps balances inside the mock state so they roll back with it.
type mockLedger struct {
	state   *mockState
	custody common.Address
	fail    error
}

var errMockInsufficient = errors.New("mock ledger: insufficient balance")

func (l *mockLedger) move(token, from, to common.Address, amount *uint256.Int) error {
	if l.fail != nil {
		return l.fail
	}
	balances := l.state.working.balances
	if balances[token] == nil {
		balances[token] = make(map[common.Address]*uint256.Int)
	}
	fromBalance := balances[token][from]
	if fromBalance == nil {
		fromBalance = new(uint256.Int)
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s", errMockInsufficient, from.Hex(), fromBalance.Dec())
	}
	toBalance := balances[token][to]
	if toBalance == nil {
		toBalance = new(uint256.Int)
	}
	balances[token][from] = new(uint256.Int).Sub(fromBalance, amount)
	balances[token][to] = new(uint256.Int).Add(toBalance, amount)
	return nil
}

func (l *mockLedger) TransferIn(token, from common.Address, amount *uint256.Int) error {
	return l.move(token, from, l.custody, amount)
}

func (l *mockLedger) TransferOut(token, to common.Address, amount *uint256.Int) error {
	return l.move(token, l.custody, to, amount)
}

func (l *mockLedger) mint(token, to common.Address, amount uint64) {
	for _, data := range []*mockData{l.state.working, l.state.committed} {
		if data.balances[token] == nil {
			data.balances[token] = make(map[common.Address]*uint256.Int)
		}
		current := data.balances[token][to]
		if current == nil {
			current = new(uint256.Int)
		}
		data.balances[token][to] = new(uint256.Int).Add(current, uint256.NewInt(amount))
	}
}

type rangeKey struct {
	pool         common.Address
	lower, upper int32
}

type ratePoint struct {
	from uint64
	rate *uint256.Int
}

// mockOracle models seconds-per-liquidity as a piecewise linear function of
// time per range: between rate changes it grows by `rate` X128 per second.
type mockOracle struct {
	owners    map[PositionID]common.Address
	positions map[PositionID]PositionInfo
	ticks     map[common.Address]int32
	rates     map[rangeKey][]ratePoint
	fees      map[PositionID][2]*uint256.Int
	calls     int
}

func newMockOracle() *mockOracle {
	return &mockOracle{
		owners:    make(map[PositionID]common.Address),
		positions: make(map[PositionID]PositionInfo),
		ticks:     make(map[common.Address]int32),
		rates:     make(map[rangeKey][]ratePoint),
		fees:      make(map[PositionID][2]*uint256.Int),
	}
}

func (o *mockOracle) addPool(pool common.Address, tick int32) { o.ticks[pool] = tick }

func (o *mockOracle) addPosition(id PositionID, holder common.Address, info PositionInfo) {
	o.owners[id] = holder
	o.positions[id] = info
}

// setRate changes the growth rate of a range from `from` onwards.
func (o *mockOracle) setRate(pool common.Address, lower, upper int32, from uint64, rate *uint256.Int) {
	key := rangeKey{pool: pool, lower: lower, upper: upper}
	o.rates[key] = append(o.rates[key], ratePoint{from: from, rate: new(uint256.Int).Set(rate)})
}

func (o *mockOracle) OwnerOf(id PositionID) (common.Address, error) {
	owner, ok := o.owners[id]
	if !ok {
		return common.Address{}, fmt.Errorf("mock oracle: unknown position %d", id)
	}
	return owner, nil
}

func (o *mockOracle) Position(id PositionID) (PositionInfo, error) {
	info, ok := o.positions[id]
	if !ok {
		return PositionInfo{}, fmt.Errorf("mock oracle: unknown position %d", id)
	}
	info.Liquidity = cloneAmount(info.Liquidity)
	return info, nil
}

func (o *mockOracle) SecondsPerLiquidityInside(pool common.Address, lower, upper int32, at uint64) (*uint256.Int, error) {
	o.calls++
	points := o.rates[rangeKey{pool: pool, lower: lower, upper: upper}]
	total := new(uint256.Int)
	for i, point := range points {
		if point.from >= at {
			break
		}
		end := at
		if i+1 < len(points) && points[i+1].from < at {
			end = points[i+1].from
		}
		step := new(uint256.Int).Mul(point.rate, uint256.NewInt(end-point.from))
		total.Add(total, step)
	}
	return total, nil
}

func (o *mockOracle) PoolExists(pool common.Address) bool {
	_, ok := o.ticks[pool]
	return ok
}

func (o *mockOracle) CurrentTick(pool common.Address) (int32, error) {
	tick, ok := o.ticks[pool]
	if !ok {
		return 0, fmt.Errorf("mock oracle: unknown pool %s", pool.Hex())
	}
	return tick, nil
}

func (o *mockOracle) FeesOwed(id PositionID) (*uint256.Int, *uint256.Int, error) {
	fees, ok := o.fees[id]
	if !ok {
		return new(uint256.Int), new(uint256.Int), nil
	}
	return fees[0], fees[1], nil
}

type mockCustody struct {
	oracle    *mockOracle
	transfers int
	fail      error
}

func (c *mockCustody) TransferPosition(from, to common.Address, id PositionID) error {
	if c.fail != nil {
		return c.fail
	}
	if c.oracle.owners[id] != from {
		return fmt.Errorf("mock custody: %d not held by %s", id, from.Hex())
	}
	c.oracle.owners[id] = to
	c.transfers++
	return nil
}
