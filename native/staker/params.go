package staker

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Params are the owner-controlled limits applied to new incentives.
type Params struct {
	Owner                     common.Address `json:"owner"`
	MaxIncentiveStartLeadTime uint64         `json:"maxIncentiveStartLeadTime"`
	MaxIncentiveDuration      uint64         `json:"maxIncentiveDuration"`
}

// Validate ensures the limits can admit at least one incentive.
func (p Params) Validate() error {
	if p.Owner == (common.Address{}) {
		return fmt.Errorf("staker params: owner required")
	}
	if p.MaxIncentiveDuration == 0 {
		return fmt.Errorf("staker params: max incentive duration must be positive")
	}
	return nil
}

func (e *Engine) loadParams() (Params, error) {
	params, ok, err := e.state.StakerParamsGet()
	if err != nil {
		return Params{}, err
	}
	if !ok || params == nil {
		return e.defaults, nil
	}
	return *params, nil
}

// InitParams stores the initial parameters unless some are already persisted,
// in which case the stored ones win. It returns the effective parameters.
func (e *Engine) InitParams(params Params) (Params, error) {
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	var effective Params
	err := e.atomically(func(tx *opContext) error {
		stored, ok, err := e.state.StakerParamsGet()
		if err != nil {
			return err
		}
		if ok && stored != nil {
			effective = *stored
			return nil
		}
		effective = params
		return e.state.StakerParamsPut(&params)
	})
	return effective, err
}

// SetParams updates both limits. Only the owner may call it.
func (e *Engine) SetParams(caller common.Address, maxStartLeadTime, maxDuration uint64) (Params, error) {
	var updated Params
	err := e.atomically(func(tx *opContext) error {
		current, err := e.loadParams()
		if err != nil {
			return err
		}
		if caller != current.Owner {
			return ErrNotAuthority
		}
		updated = current
		updated.MaxIncentiveStartLeadTime = maxStartLeadTime
		updated.MaxIncentiveDuration = maxDuration
		if err := updated.Validate(); err != nil {
			return err
		}
		if err := e.state.StakerParamsPut(&updated); err != nil {
			return err
		}
		tx.emit(ParamsUpdatedEvent(updated))
		return nil
	})
	return updated, err
}

// TransferOwnership hands the owner role to newOwner.
func (e *Engine) TransferOwnership(caller, newOwner common.Address) (Params, error) {
	var updated Params
	err := e.atomically(func(tx *opContext) error {
		current, err := e.loadParams()
		if err != nil {
			return err
		}
		if caller != current.Owner {
			return ErrNotAuthority
		}
		if newOwner == (common.Address{}) {
			return fmt.Errorf("%w: zero owner", ErrInvalidRecipient)
		}
		updated = current
		updated.Owner = newOwner
		if err := e.state.StakerParamsPut(&updated); err != nil {
			return err
		}
		tx.emit(ParamsUpdatedEvent(updated))
		return nil
	})
	return updated, err
}

// Params returns the effective parameters.
func (e *Engine) Params() (Params, error) {
	var params Params
	err := e.view(func() error {
		var err error
		params, err = e.loadParams()
		return err
	})
	return params, err
}
