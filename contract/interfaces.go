// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the interfaces between the exchange
// components and their execution host: the token ledger, the block
// context, and the event log sink. Every mutating operation takes the
// host backend plus an explicit caller address.
package contract

import (
	"math/big"

	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"
)

// ERC20 is the token surface the exchange moves value through. Amounts
// are *big.Int at this boundary; implementations are expected to
// reject balance or allowance shortfalls with their own errors, which
// callers surface verbatim.
type ERC20 interface {
	BalanceOf(addr common.Address) *big.Int
	TotalSupply() *big.Int
	Allowance(owner, spender common.Address) *big.Int

	// Transfer moves amount from caller to recipient.
	Transfer(caller, to common.Address, amount *big.Int) error
	// TransferFrom moves amount from owner to recipient, spending the
	// caller's allowance.
	TransferFrom(caller, owner, to common.Address, amount *big.Int) error
	Approve(caller, spender common.Address, amount *big.Int) error
}

// TokenRegistry resolves a token address to its ledger entry.
type TokenRegistry interface {
	Token(addr common.Address) (ERC20, error)
}

// Backend is the execution host seen by the exchange components.
// Execution is serialized by the host; components only defend against
// reentrant invocation within a single logical call.
type Backend interface {
	// BlockTime returns the host's current timestamp in seconds.
	// Deadlines are compared against this value, never wall clock.
	BlockTime() uint64
	ChainID() *big.Int
	Tokens() TokenRegistry
	AddLog(log *ethtypes.Log)
}
