package rpc

// Development helpers. They are only routed when the server runs with dev
// mode on and stand in for a real token contract and AMM.

func (s *Server) handleDevFund(c *call) (interface{}, error) {
	if err := s.requireLedger(); err != nil {
		return nil, err
	}
	var params fundParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	token, err := parseAddress("token", params.Token)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalAddress("to", params.To, c.caller)
	if err != nil {
		return nil, err
	}
	amount, err := requireAmount("amount", params.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Ledger.Mint(token, to, amount); err != nil {
		return nil, err
	}
	balance, err := s.backend.Ledger.Balance(token, to)
	if err != nil {
		return nil, err
	}
	return amountResult{Amount: balance}, nil
}

func (s *Server) handleDevCreatePool(c *call) (interface{}, error) {
	if err := s.requirePools(); err != nil {
		return nil, err
	}
	var params createPoolParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	addr, err := parseAddress("pool", params.Pool)
	if err != nil {
		return nil, err
	}
	token0, err := parseAddress("token0", params.Token0)
	if err != nil {
		return nil, err
	}
	token1, err := parseAddress("token1", params.Token1)
	if err != nil {
		return nil, err
	}
	created, err := s.backend.Pools.CreatePool(addr, token0, token1, params.Fee, params.Tick)
	if err != nil {
		return nil, err
	}
	return newPoolResult(created), nil
}

func (s *Server) handleDevMintPosition(c *call) (interface{}, error) {
	if err := s.requirePools(); err != nil {
		return nil, err
	}
	var params mintPositionParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	owner, err := parseOptionalAddress("owner", params.Owner, c.caller)
	if err != nil {
		return nil, err
	}
	poolAddr, err := parseAddress("pool", params.Pool)
	if err != nil {
		return nil, err
	}
	liquidity, err := requireAmount("liquidity", params.Liquidity)
	if err != nil {
		return nil, err
	}
	position, err := s.backend.Pools.Mint(owner, poolAddr, params.TickLower, params.TickUpper, liquidity)
	if err != nil {
		return nil, err
	}
	return newPositionResult(position), nil
}

func (s *Server) handleDevSetTick(c *call) (interface{}, error) {
	if err := s.requirePools(); err != nil {
		return nil, err
	}
	var params setTickParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	poolAddr, err := parseAddress("pool", params.Pool)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Pools.SetTick(poolAddr, params.Tick); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}

func (s *Server) handleDevAccrueFees(c *call) (interface{}, error) {
	if err := s.requirePools(); err != nil {
		return nil, err
	}
	var params accrueFeesParams
	if err := decodeParams(c, &params); err != nil {
		return nil, err
	}
	fee0, err := parseAmount("fee0", params.Fee0)
	if err != nil {
		return nil, err
	}
	fee1, err := parseAmount("fee1", params.Fee1)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Pools.AccrueFees(params.TokenID, fee0, fee1); err != nil {
		return nil, err
	}
	return okResult{OK: true}, nil
}
