package rpc

import (
	"errors"
	"net/http"

	"rangestaker/native/bank"
	"rangestaker/native/pool"
	"rangestaker/native/staker"
)

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data, status: http.StatusBadRequest}
}

var errorClasses = []struct {
	code   int
	status int
	errs   []error
}{
	{codeInvalidParams, http.StatusBadRequest, []error{
		staker.ErrInvalidWindow, staker.ErrInvalidSponsor, staker.ErrPoolMismatch,
		staker.ErrZeroLiquidity, staker.ErrInvalidRecipient, staker.ErrIncentiveNotStarted,
		bank.ErrInvalidAmount, bank.ErrZeroAddress,
		pool.ErrInvalidRange, pool.ErrInvalidLiquidity,
	}},
	{codeUnauthorized, http.StatusForbidden, []error{
		staker.ErrNotOwner, staker.ErrNotAuthority, pool.ErrNotPositionOwner,
	}},
	{codeNotFound, http.StatusNotFound, []error{
		staker.ErrIncentiveNotFound, staker.ErrDepositNotFound, staker.ErrStakeNotFound,
		pool.ErrPoolNotFound, pool.ErrPositionNotFound,
	}},
	{codeConflict, http.StatusConflict, []error{
		staker.ErrDuplicateIncentive, staker.ErrAlreadyRegistered, staker.ErrAlreadyStaked,
		staker.ErrActiveStakesExist, staker.ErrNotEnded, staker.ErrNothingToRefund,
		staker.ErrTransferFailed, bank.ErrInsufficientBalance, pool.ErrPoolExists,
	}},
}

// toRPCError maps engine and registry sentinels onto JSON-RPC codes.
// Unrecognised errors are reported as server errors without detail.
func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.status == 0 {
			rpcErr.status = http.StatusBadRequest
		}
		return rpcErr
	}
	for _, class := range errorClasses {
		for _, target := range class.errs {
			if errors.Is(err, target) {
				return &RPCError{Code: class.code, Message: err.Error(), status: class.status}
			}
		}
	}
	return &RPCError{Code: codeServerError, Message: "internal error", status: http.StatusInternalServerError}
}
