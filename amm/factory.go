// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/luxfi/exchange/contract"
	"github.com/luxfi/exchange/create2"
	"github.com/luxfi/exchange/erc20"
	"github.com/luxfi/exchange/registry"
)

// Factory creates reserve pairs at deterministic addresses and holds
// the suite's privileged settings: the protocol fee recipient, the
// authorized router, and the admin able to change either.
type Factory struct {
	mu     sync.RWMutex
	addr   common.Address
	ledger *erc20.Ledger

	feeTo       common.Address
	feeToSetter common.Address
	router      common.Address

	pairs    map[common.Hash]*Pair
	allPairs []*Pair
}

func NewFactory(addr, feeToSetter common.Address, ledger *erc20.Ledger) *Factory {
	return &Factory{
		addr:        addr,
		ledger:      ledger,
		feeToSetter: feeToSetter,
		pairs:       make(map[common.Hash]*Pair),
	}
}

func (f *Factory) Address() common.Address { return f.addr }

func (f *Factory) FeeTo() common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.feeTo
}

func (f *Factory) FeeToSetter() common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.feeToSetter
}

func (f *Factory) Router() common.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.router
}

func (f *Factory) SetFeeTo(caller, feeTo common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.feeToSetter {
		return ErrForbidden
	}
	f.feeTo = feeTo
	return nil
}

func (f *Factory) SetFeeToSetter(caller, feeToSetter common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.feeToSetter {
		return ErrForbidden
	}
	f.feeToSetter = feeToSetter
	return nil
}

// SetRouter authorizes the single address permitted to drive pair
// mutations.
func (f *Factory) SetRouter(caller, router common.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.feeToSetter {
		return ErrForbidden
	}
	f.router = router
	return nil
}

// PairFor computes the deterministic pair address without touching
// state: keccak(0xff || factory || keccak(token0 || token1) ||
// initCodeDigest). Order-independent in its token arguments.
func (f *Factory) PairFor(tokenA, tokenB common.Address) common.Address {
	return create2.ComputeAddress(f.addr, create2.PairSalt(tokenA, tokenB), registry.PairInitCodeDigest)
}

// CreatePair deploys the reserve pair for an unordered token pair,
// registering its liquidity-share token at the pair address. Pairs are
// permanent once created.
func (f *Factory) CreatePair(st contract.Backend, tokenA, tokenB common.Address) (*Pair, error) {
	if tokenA == tokenB {
		return nil, ErrIdenticalAddresses
	}
	if tokenA == (common.Address{}) || tokenB == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	token0, token1 := sortTokens(tokenA, tokenB)

	f.mu.Lock()
	defer f.mu.Unlock()
	key := f.pairKey(token0, token1)
	if _, ok := f.pairs[key]; ok {
		return nil, ErrPairExists
	}

	addr := create2.ComputeAddress(f.addr, create2.PairSalt(token0, token1), registry.PairInitCodeDigest)
	lp, err := f.ledger.Deploy(addr, LPName, LPSymbol, 18)
	if err != nil {
		return nil, err
	}
	pair := newPair(f, addr, token0, token1, lp)
	f.pairs[key] = pair
	f.allPairs = append(f.allPairs, pair)

	st.AddLog(&ethtypes.Log{
		Address: f.addr,
		Topics: []common.Hash{
			PairCreatedSig,
			common.BytesToHash(token0.Bytes()),
			common.BytesToHash(token1.Bytes()),
		},
		Data: append(
			common.BytesToHash(addr.Bytes()).Bytes(),
			common.BigToHash(big.NewInt(int64(len(f.allPairs)))).Bytes()...,
		),
	})
	return pair, nil
}

// GetPair looks up the pair for an unordered token pair.
func (f *Factory) GetPair(tokenA, tokenB common.Address) (*Pair, bool) {
	token0, token1 := sortTokens(tokenA, tokenB)
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.pairs[f.pairKey(token0, token1)]
	return p, ok
}

func (f *Factory) AllPairsLength() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.allPairs)
}

// PairAt returns the i-th pair in creation order.
func (f *Factory) PairAt(i int) (*Pair, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if i < 0 || i >= len(f.allPairs) {
		return nil, false
	}
	return f.allPairs[i], true
}

// pairKey derives the storage key for a sorted token pair.
func (f *Factory) pairKey(token0, token1 common.Address) common.Hash {
	id := make([]byte, 0, 2*common.AddressLength)
	id = append(id, token0.Bytes()...)
	id = append(id, token1.Bytes()...)
	return makeStorageKey(pairStatePrefix, id)
}
