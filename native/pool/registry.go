package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rangestaker/native/staker"
)

var (
	ErrPoolExists       = errors.New("pool: already exists")
	ErrPoolNotFound     = errors.New("pool: not found")
	ErrPositionNotFound = errors.New("pool: position not found")
	ErrNotPositionOwner = errors.New("pool: caller does not own position")
	ErrInvalidRange     = errors.New("pool: tick lower must be below tick upper")
	ErrInvalidLiquidity = errors.New("pool: liquidity must be positive")
)

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Update(fn func() error) error
}

// Receiver takes custody of positions sent to its address through
// SafeTransferFrom. ReceivePosition must stage the ownership move with
// TransferPosition inside its own transaction, so a rejected position never
// leaves its sender.
type Receiver interface {
	ReceivePosition(from common.Address, id staker.PositionID, stakeKeys ...staker.IncentiveKey) (*staker.Deposit, error)
}

// Pool describes a simulated AMM pool.
type Pool struct {
	Address common.Address
	Token0  common.Address
	Token1  common.Address
	Fee     uint32
	Tick    uint32
}

// CurrentTick returns the signed tick.
func (p *Pool) CurrentTick() int32 { return int32(p.Tick) }

// Position is a concentrated liquidity position over [TickLower, TickUpper).
type Position struct {
	ID        uint64
	Owner     common.Address
	Pool      common.Address
	TickLower uint32
	TickUpper uint32
	Liquidity *uint256.Int
	FeesOwed0 *uint256.Int
	FeesOwed1 *uint256.Int
}

// Range returns the signed tick bounds.
func (p *Position) Range() (int32, int32) { return int32(p.TickLower), int32(p.TickUpper) }

func (p *Position) inRange(tick int32) bool {
	lower, upper := p.Range()
	return lower <= tick && tick < upper
}

// Registry is a persistent stand-in for an AMM: it tracks pools, positions
// and enough pool history to answer seconds-per-liquidity queries at any past
// timestamp. It implements staker.PositionOracle and staker.PositionCustody.
type Registry struct {
	state registryState
	nowFn func() int64

	mu        sync.RWMutex
	receivers map[common.Address]Receiver
}

// NewRegistry constructs a registry backed by the provided state accessor.
func NewRegistry(state registryState) *Registry {
	return &Registry{
		state:     state,
		nowFn:     func() int64 { return time.Now().Unix() },
		receivers: make(map[common.Address]Receiver),
	}
}

// SetNowFunc overrides the time source used for deterministic testing.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// RegisterReceiver installs the hook called when positions arrive at addr.
func (r *Registry) RegisterReceiver(addr common.Address, receiver Receiver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if receiver == nil {
		delete(r.receivers, addr)
		return
	}
	r.receivers[addr] = receiver
}

func (r *Registry) receiver(addr common.Address) Receiver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.receivers[addr]
}

func (r *Registry) now() uint64 {
	ts := r.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func poolKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("pool/pool/%s", addr.Hex()))
}

func poolHistoryKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("pool/history/%s", addr.Hex()))
}

func poolPositionsKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("pool/positions/%s", addr.Hex()))
}

func positionKey(id uint64) []byte {
	return []byte(fmt.Sprintf("pool/position/%d", id))
}

var (
	poolListKey       = []byte("pool/list")
	nextPositionIDKey = []byte("pool/next-position-id")
)

func (r *Registry) loadPool(addr common.Address) (*Pool, error) {
	var p Pool
	ok, err := r.state.KVGet(poolKey(addr), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, addr.Hex())
	}
	return &p, nil
}

func (r *Registry) loadPosition(id uint64) (*Position, error) {
	var p Position
	ok, err := r.state.KVGet(positionKey(id), &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPositionNotFound, id)
	}
	return &p, nil
}

func (r *Registry) loadHistory(addr common.Address) ([]segment, error) {
	var history []segment
	if _, err := r.state.KVGet(poolHistoryKey(addr), &history); err != nil {
		return nil, err
	}
	return history, nil
}

func (r *Registry) loadPoolPositions(addr common.Address) ([]uint64, error) {
	var ids []uint64
	if _, err := r.state.KVGet(poolPositionsKey(addr), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Registry) activeLiquidity(addr common.Address, tick int32) (*uint256.Int, error) {
	ids, err := r.loadPoolPositions(addr)
	if err != nil {
		return nil, err
	}
	total := new(uint256.Int)
	for _, id := range ids {
		position, err := r.loadPosition(id)
		if err != nil {
			return nil, err
		}
		if position.inRange(tick) {
			total.Add(total, position.Liquidity)
		}
	}
	return total, nil
}

// checkpoint appends the current pool state to its history.
func (r *Registry) checkpoint(p *Pool) error {
	liquidity, err := r.activeLiquidity(p.Address, p.CurrentTick())
	if err != nil {
		return err
	}
	history, err := r.loadHistory(p.Address)
	if err != nil {
		return err
	}
	history = appendSegment(history, r.now(), p.CurrentTick(), liquidity)
	return r.state.KVPut(poolHistoryKey(p.Address), history)
}

// CreatePool registers a pool at the given starting tick.
func (r *Registry) CreatePool(addr, token0, token1 common.Address, fee uint32, tick int32) (*Pool, error) {
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("pool: address required")
	}
	p := &Pool{Address: addr, Token0: token0, Token1: token1, Fee: fee, Tick: uint32(tick)}
	err := r.state.Update(func() error {
		exists, err := r.state.KVGet(poolKey(addr), nil)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrPoolExists, addr.Hex())
		}
		var pools []common.Address
		if _, err := r.state.KVGet(poolListKey, &pools); err != nil {
			return err
		}
		if err := r.state.KVPut(poolListKey, append(pools, addr)); err != nil {
			return err
		}
		if err := r.state.KVPut(poolKey(addr), p); err != nil {
			return err
		}
		return r.checkpoint(p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Pools lists every registered pool in creation order.
func (r *Registry) Pools() ([]*Pool, error) {
	var addrs []common.Address
	if _, err := r.state.KVGet(poolListKey, &addrs); err != nil {
		return nil, err
	}
	out := make([]*Pool, 0, len(addrs))
	for _, addr := range addrs {
		p, err := r.loadPool(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Mint opens a new position owned by owner.
func (r *Registry) Mint(owner, pool common.Address, tickLower, tickUpper int32, liquidity *uint256.Int) (*Position, error) {
	if owner == (common.Address{}) {
		return nil, fmt.Errorf("pool: owner required")
	}
	if tickLower >= tickUpper {
		return nil, ErrInvalidRange
	}
	if liquidity == nil || liquidity.IsZero() {
		return nil, ErrInvalidLiquidity
	}
	var position *Position
	err := r.state.Update(func() error {
		p, err := r.loadPool(pool)
		if err != nil {
			return err
		}
		var next uint64
		if _, err := r.state.KVGet(nextPositionIDKey, &next); err != nil {
			return err
		}
		next++
		position = &Position{
			ID:        next,
			Owner:     owner,
			Pool:      pool,
			TickLower: uint32(tickLower),
			TickUpper: uint32(tickUpper),
			Liquidity: new(uint256.Int).Set(liquidity),
			FeesOwed0: new(uint256.Int),
			FeesOwed1: new(uint256.Int),
		}
		if err := r.state.KVPut(nextPositionIDKey, next); err != nil {
			return err
		}
		if err := r.state.KVPut(positionKey(next), position); err != nil {
			return err
		}
		ids, err := r.loadPoolPositions(pool)
		if err != nil {
			return err
		}
		if err := r.state.KVPut(poolPositionsKey(pool), append(ids, next)); err != nil {
			return err
		}
		return r.checkpoint(p)
	})
	if err != nil {
		return nil, err
	}
	return position, nil
}

// SetTick moves the pool price to tick as of now.
func (r *Registry) SetTick(pool common.Address, tick int32) error {
	return r.state.Update(func() error {
		p, err := r.loadPool(pool)
		if err != nil {
			return err
		}
		p.Tick = uint32(tick)
		if err := r.state.KVPut(poolKey(pool), p); err != nil {
			return err
		}
		return r.checkpoint(p)
	})
}

// AccrueFees adds uncollected swap fees to a position.
func (r *Registry) AccrueFees(id uint64, fee0, fee1 *uint256.Int) error {
	return r.state.Update(func() error {
		position, err := r.loadPosition(id)
		if err != nil {
			return err
		}
		if fee0 != nil {
			position.FeesOwed0 = new(uint256.Int).Add(position.FeesOwed0, fee0)
		}
		if fee1 != nil {
			position.FeesOwed1 = new(uint256.Int).Add(position.FeesOwed1, fee1)
		}
		return r.state.KVPut(positionKey(id), position)
	})
}

// SafeTransferFrom moves a position from its owner to `to`. When a receiver
// is registered for `to` it performs the move together with its own
// bookkeeping; otherwise the ownership change is committed directly.
func (r *Registry) SafeTransferFrom(caller, from, to common.Address, id uint64, stakeKeys ...staker.IncentiveKey) error {
	if caller != from {
		return ErrNotPositionOwner
	}
	if receiver := r.receiver(to); receiver != nil {
		_, err := receiver.ReceivePosition(from, id, stakeKeys...)
		return err
	}
	return r.state.Update(func() error { return r.TransferPosition(from, to, id) })
}

// TransferPosition stages an ownership change. It does not commit: the caller
// owns the surrounding transaction.
func (r *Registry) TransferPosition(from, to common.Address, id uint64) error {
	if to == (common.Address{}) {
		return fmt.Errorf("pool: transfer to zero address")
	}
	position, err := r.loadPosition(id)
	if err != nil {
		return err
	}
	if position.Owner != from {
		return fmt.Errorf("%w: %d is held by %s", ErrNotPositionOwner, id, position.Owner.Hex())
	}
	position.Owner = to
	return r.state.KVPut(positionKey(id), position)
}

// PositionRecord returns the stored position record.
func (r *Registry) PositionRecord(id uint64) (*Position, error) {
	return r.loadPosition(id)
}

// OwnerOf returns the current holder of a position.
func (r *Registry) OwnerOf(id uint64) (common.Address, error) {
	position, err := r.loadPosition(id)
	if err != nil {
		return common.Address{}, err
	}
	return position.Owner, nil
}

// Position returns the pool, range and liquidity of a position.
func (r *Registry) Position(id uint64) (staker.PositionInfo, error) {
	position, err := r.loadPosition(id)
	if err != nil {
		return staker.PositionInfo{}, err
	}
	lower, upper := position.Range()
	return staker.PositionInfo{
		Pool:      position.Pool,
		TickLower: lower,
		TickUpper: upper,
		Liquidity: new(uint256.Int).Set(position.Liquidity),
	}, nil
}

// SecondsPerLiquidityInside returns the cumulative seconds per unit of
// liquidity, as X128, that the pool spent inside [lower, upper) before `at`.
func (r *Registry) SecondsPerLiquidityInside(pool common.Address, lower, upper int32, at uint64) (*uint256.Int, error) {
	if _, err := r.loadPool(pool); err != nil {
		return nil, err
	}
	history, err := r.loadHistory(pool)
	if err != nil {
		return nil, err
	}
	return secondsPerLiquidityInside(history, lower, upper, at), nil
}

// PoolExists reports whether pool has been created.
func (r *Registry) PoolExists(pool common.Address) bool {
	ok, err := r.state.KVGet(poolKey(pool), nil)
	return err == nil && ok
}

// CurrentTick returns the pool's tick.
func (r *Registry) CurrentTick(pool common.Address) (int32, error) {
	p, err := r.loadPool(pool)
	if err != nil {
		return 0, err
	}
	return p.CurrentTick(), nil
}

// FeesOwed returns the uncollected fees of a position.
func (r *Registry) FeesOwed(id uint64) (*uint256.Int, *uint256.Int, error) {
	position, err := r.loadPosition(id)
	if err != nil {
		return nil, nil, err
	}
	return new(uint256.Int).Set(position.FeesOwed0), new(uint256.Int).Set(position.FeesOwed1), nil
}

var (
	_ staker.PositionOracle  = (*Registry)(nil)
	_ staker.PositionCustody = (*Registry)(nil)
)
