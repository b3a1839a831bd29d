package staker

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rangestaker/core/events"
	"rangestaker/core/types"
)

type engineState interface {
	StakerParamsGet() (*Params, bool, error)
	StakerParamsPut(params *Params) error

	StakerIncentiveGet(id IncentiveID) (*Incentive, bool, error)
	StakerIncentivePut(incentive *Incentive) error
	StakerIncentiveIDs() ([]IncentiveID, error)

	StakerDepositGet(id PositionID) (*Deposit, bool, error)
	StakerDepositPut(deposit *Deposit) error
	StakerDepositDelete(id PositionID) error
	StakerDepositsByOwner(owner common.Address) ([]PositionID, error)

	StakerStakeGet(id PositionID, incentive IncentiveID) (*Stake, bool, error)
	StakerStakePut(stake *Stake) error
	StakerStakeDelete(id PositionID, incentive IncentiveID) error
	StakerStakedIncentives(id PositionID) ([]IncentiveID, error)

	StakerRewardGet(owner, token common.Address) (*uint256.Int, error)
	StakerRewardPut(owner, token common.Address, amount *uint256.Int) error
	StakerRewardTokens(owner common.Address) ([]common.Address, error)

	// Commit persists every staged write as one atomic batch; Discard drops them.
	Commit() error
	Discard()
}

// Engine runs incentive programs over deposited liquidity positions. All
// mutations are serialised and either commit completely or leave state
// untouched.
type Engine struct {
	mu sync.RWMutex

	state    engineState
	oracle   PositionOracle
	custody  PositionCustody
	ledger   TokenLedger
	emitter  events.Emitter
	nowFn    func() int64
	address  common.Address
	defaults Params
}

// NewEngine constructs an engine with default dependencies. The engine
// address is the account that holds custody of positions and rewards.
func NewEngine(address common.Address) *Engine {
	return &Engine{
		address: address,
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOracle configures the AMM oracle.
func (e *Engine) SetOracle(oracle PositionOracle) { e.oracle = oracle }

// SetCustody configures the registry used to hand positions back.
func (e *Engine) SetCustody(custody PositionCustody) { e.custody = custody }

// SetLedger configures the reward token ledger.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetDefaultParams configures the parameters used until some are persisted.
func (e *Engine) SetDefaultParams(params Params) { e.defaults = params }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Address returns the custody account of the engine.
func (e *Engine) Address() common.Address { return e.address }

func (e *Engine) now() uint64 {
	var ts int64
	if e == nil || e.nowFn == nil {
		ts = time.Now().Unix()
	} else {
		ts = e.nowFn()
	}
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// opContext buffers the events of one mutation until it commits.
type opContext struct {
	now    uint64
	events []*types.Event
}

func (c *opContext) emit(evt *types.Event) {
	if evt != nil {
		c.events = append(c.events, evt)
	}
}

// atomically runs fn under the write lock. Staged writes are committed only
// when fn succeeds; events are released after the commit.
func (e *Engine) atomically(fn func(tx *opContext) error) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// Other writers may share the backend's overlay.
	if locker, ok := e.state.(sync.Locker); ok {
		locker.Lock()
		defer locker.Unlock()
	}

	tx := &opContext{now: e.now()}
	if err := fn(tx); err != nil {
		e.state.Discard()
		return err
	}
	if err := e.state.Commit(); err != nil {
		e.state.Discard()
		return err
	}
	for _, evt := range tx.events {
		e.emitter.Emit(WrapEvent(evt))
	}
	return nil
}

func (e *Engine) requireOracle() error {
	if e.oracle == nil {
		return errNilOracle
	}
	return nil
}

func (e *Engine) requireLedger() error {
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) getIncentive(id IncentiveID) (*Incentive, error) {
	incentive, ok, err := e.state.StakerIncentiveGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || incentive == nil {
		return nil, ErrIncentiveNotFound
	}
	return incentive, nil
}

func (e *Engine) getDeposit(id PositionID) (*Deposit, error) {
	deposit, ok, err := e.state.StakerDepositGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || deposit == nil {
		return nil, ErrDepositNotFound
	}
	return deposit, nil
}

func (e *Engine) getStake(id PositionID, incentive IncentiveID) (*Stake, error) {
	stake, ok, err := e.state.StakerStakeGet(id, incentive)
	if err != nil {
		return nil, err
	}
	if !ok || stake == nil {
		return nil, ErrStakeNotFound
	}
	return stake, nil
}
