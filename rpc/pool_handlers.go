package rpc

import (
	"net/http"

	"github.com/holiman/uint256"

	"rangestaker/native/pool"
)

type poolResult struct {
	Address string `json:"address"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	Fee     uint32 `json:"fee"`
	Tick    int32  `json:"tick"`
}

type positionResult struct {
	TokenID   uint64       `json:"tokenId"`
	Owner     string       `json:"owner"`
	Pool      string       `json:"pool"`
	TickLower int32        `json:"tickLower"`
	TickUpper int32        `json:"tickUpper"`
	Liquidity *uint256.Int `json:"liquidity"`
	FeesOwed0 *uint256.Int `json:"feesOwed0"`
	FeesOwed1 *uint256.Int `json:"feesOwed1"`
}

func newPoolResult(p *pool.Pool) poolResult {
	return poolResult{
		Address: p.Address.Hex(),
		Token0:  p.Token0.Hex(),
		Token1:  p.Token1.Hex(),
		Fee:     p.Fee,
		Tick:    p.CurrentTick(),
	}
}

func newPositionResult(p *pool.Position) positionResult {
	lower, upper := p.Range()
	return positionResult{
		TokenID:   p.ID,
		Owner:     p.Owner.Hex(),
		Pool:      p.Pool.Hex(),
		TickLower: lower,
		TickUpper: upper,
		Liquidity: p.Liquidity,
		FeesOwed0: p.FeesOwed0,
		FeesOwed1: p.FeesOwed1,
	}
}

func (s *Server) requirePools() error {
	if s.backend.Pools == nil {
		return &RPCError{Code: codeServerError, Message: "pool registry disabled", status: http.StatusServiceUnavailable}
	}
	return nil
}

func (s *Server) requireLedger() error {
	if s.backend.Ledger == nil {
		return &RPCError{Code: codeServerError, Message: "ledger disabled", status: http.StatusServiceUnavailable}
	}
	return nil
}

// handleSafeTransfer moves a position owned by the caller. Sending it to the
// engine deposits it and stakes it in every listed incentive.
func (s *Server) handleSafeTransfer(c *call) (interface{}, error) {
	if err := s.requirePools(); err != nil {
		return nil, err
	}
	var params safeTransferParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	to, err := parseOptionalAddress("to", params.To, s.backend.Engine.Address())
	if err != nil {
		return nil, err
	}
	keys, err := parseKeys(params.StakeKeys)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Pools.SafeTransferFrom(c.caller, c.caller, to, params.TokenID, keys...); err != nil {
		return nil, err
	}
	if to == s.backend.Engine.Address() {
		return s.backend.Engine.Deposit(params.TokenID)
	}
	position, err := s.backend.Pools.PositionRecord(params.TokenID)
	if err != nil {
		return nil, err
	}
	return newPositionResult(position), nil
}

func (s *Server) handleGetPosition(c *call) (interface{}, error) {
	if err := s.requirePools(); err != nil {
		return nil, err
	}
	var params tokenParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	position, err := s.backend.Pools.PositionRecord(params.TokenID)
	if err != nil {
		return nil, err
	}
	return newPositionResult(position), nil
}

func (s *Server) handleGetPools(*call) (interface{}, error) {
	if err := s.requirePools(); err != nil {
		return nil, err
	}
	pools, err := s.backend.Pools.Pools()
	if err != nil {
		return nil, err
	}
	out := make([]poolResult, 0, len(pools))
	for _, p := range pools {
		out = append(out, newPoolResult(p))
	}
	return out, nil
}

func (s *Server) handleGetBalance(c *call) (interface{}, error) {
	if err := s.requireLedger(); err != nil {
		return nil, err
	}
	var params balanceParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	token, err := parseAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		return nil, err
	}
	balance, err := s.backend.Ledger.Balance(token, account)
	if err != nil {
		return nil, err
	}
	return amountResult{Amount: balance}, nil
}
