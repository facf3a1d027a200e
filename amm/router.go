// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/exchange/contract"
	"github.com/luxfi/exchange/eip712"
	"github.com/luxfi/exchange/forwarder"
)

// Domain names under which relayed router actions are signed.
const (
	DomainAddLiquidity    = "ConveyorV2.addLiquidity"
	DomainSwap            = "ConveyorV2.swap"
	DomainRemoveLiquidity = "ConveyorV2.removeLiquidity"
)

// Router is the single mutating entry point of the exchange. It
// computes swap and liquidity amounts, enforces slippage and deadline
// bounds, and drives the pairs. In meta mode, the default, users act
// exclusively through signed envelopes relayed via the embedded
// forwarder; the direct entry points are reserved for deployments that
// switch meta mode off.
type Router struct {
	mu     sync.Mutex
	locked bool

	addr    common.Address
	owner   common.Address
	factory *Factory

	metaEnabled bool

	fwd *forwarder.Forwarder
}

// NewRouter returns a router wired to factory. Meta mode starts
// enabled and the router is its own envelope authorizer.
func NewRouter(addr, owner common.Address, factory *Factory) *Router {
	r := &Router{
		addr:        addr,
		owner:       owner,
		factory:     factory,
		metaEnabled: true,
	}
	r.fwd = forwarder.NewForwarder(addr, owner, r)
	return r
}

func (r *Router) Address() common.Address { return r.addr }
func (r *Router) Factory() *Factory       { return r.factory }

// Forwarder exposes the embedded envelope authorizer.
func (r *Router) Forwarder() *forwarder.Forwarder { return r.fwd }

func (r *Router) Owner() common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// MetaEnabled reports whether the router accepts only relayed
// envelopes.
func (r *Router) MetaEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metaEnabled
}

// TransferOwnership hands the router and its forwarder to a new owner.
func (r *Router) TransferOwnership(caller, newOwner common.Address) error {
	r.mu.Lock()
	if caller != r.owner {
		r.mu.Unlock()
		return ErrNotOwner
	}
	if newOwner == (common.Address{}) {
		r.mu.Unlock()
		return ErrZeroAddress
	}
	r.owner = newOwner
	r.mu.Unlock()
	return r.fwd.TransferOwnership(caller, newOwner)
}

// MetaSwitch toggles meta mode.
func (r *Router) MetaSwitch(caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return ErrNotOwner
	}
	r.metaEnabled = !r.metaEnabled
	return nil
}

// SetRelayer enrolls or removes a relayer on the forwarder.
func (r *Router) SetRelayer(caller, relayer common.Address, allowed bool) error {
	return r.fwd.SetRelayer(caller, relayer, allowed)
}

// SetFeeHolder changes the forwarder's fee recipient.
func (r *Router) SetFeeHolder(caller, holder common.Address) error {
	return r.fwd.SetFeeHolder(caller, holder)
}

// SetOverhead adjusts the forwarder's fee-unit accounting.
func (r *Router) SetOverhead(caller common.Address, baseUnits, transferUnits uint64) error {
	return r.fwd.SetOverhead(caller, baseUnits, transferUnits)
}

// Nonces returns the next envelope nonce expected for user.
func (r *Router) Nonces(user common.Address) uint64 {
	return r.fwd.Nonces(user)
}

// ExecuteMetaTx verifies and dispatches a relayed envelope. The domain
// name selects which action family the user signed under.
func (r *Router) ExecuteMetaTx(st contract.Backend, caller common.Address, meta *forwarder.MetaTx, domainName string, unitPrice *big.Int, feeOffset uint64, sig eip712.Signature) error {
	if !r.MetaEnabled() {
		return ErrMetaDisabled
	}
	return r.fwd.Execute(st, caller, meta, domainName, unitPrice, feeOffset, sig)
}

func (r *Router) enter() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return ErrReentrancy
	}
	r.locked = true
	return nil
}

func (r *Router) exit() {
	r.mu.Lock()
	r.locked = false
	r.mu.Unlock()
}

// direct rejects plain calls while meta mode is on and takes the
// reentrancy flag otherwise.
func (r *Router) direct() error {
	r.mu.Lock()
	if r.metaEnabled {
		r.mu.Unlock()
		return ErrMetaOnly
	}
	if r.locked {
		r.mu.Unlock()
		return ErrReentrancy
	}
	r.locked = true
	r.mu.Unlock()
	return nil
}

// AddLiquidity is the direct entry point for liquidity provision,
// available only when meta mode is off.
func (r *Router) AddLiquidity(st contract.Backend, caller common.Address, o *AddLiquidityData) (*big.Int, *big.Int, *big.Int, error) {
	if err := r.direct(); err != nil {
		return nil, nil, nil, err
	}
	defer r.exit()
	return r.addLiquidity(st, caller, o)
}

// RemoveLiquidityWithPermit is the direct entry point for liquidity
// withdrawal, available only when meta mode is off.
func (r *Router) RemoveLiquidityWithPermit(st contract.Backend, caller common.Address, o *RemoveLiquidityData, sig eip712.Signature) (*big.Int, *big.Int, error) {
	if err := r.direct(); err != nil {
		return nil, nil, err
	}
	defer r.exit()
	return r.removeLiquidityWithPermit(st, caller, o, sig)
}

// SwapExactTokensForTokens is the direct entry point for exact-input
// swaps, available only when meta mode is off.
func (r *Router) SwapExactTokensForTokens(st contract.Backend, caller common.Address, o *SwapData) ([]*big.Int, error) {
	if err := r.direct(); err != nil {
		return nil, err
	}
	defer r.exit()
	return r.swapExactTokensForTokens(st, caller, o)
}

// SwapTokensForExactTokens is the direct entry point for exact-output
// swaps, available only when meta mode is off.
func (r *Router) SwapTokensForExactTokens(st contract.Backend, caller common.Address, o *SwapData) ([]*big.Int, error) {
	if err := r.direct(); err != nil {
		return nil, err
	}
	defer r.exit()
	return r.swapTokensForExactTokens(st, caller, o)
}

// HashPayload recomputes the canonical digest of the action inside
// call data for envelope integrity checks.
func (r *Router) HashPayload(data []byte) (common.Hash, error) {
	call, err := DecodeCall(data)
	if err != nil {
		return common.Hash{}, err
	}
	switch call.Selector {
	case SelectorAddLiquidity:
		return HashAddLiquidityPayload(call.AddLiquidity), nil
	case SelectorSwapExactTokensForTokens, SelectorSwapTokensForExactTokens:
		return HashSwapPayload(call.Swap), nil
	default:
		return HashRemoveLiquidityPayload(call.Remove, call.PermitSig), nil
	}
}

// Execute dispatches a verified envelope's call data on behalf of
// from.
func (r *Router) Execute(st contract.Backend, from common.Address, data []byte) error {
	if err := r.enter(); err != nil {
		return err
	}
	defer r.exit()

	call, err := DecodeCall(data)
	if err != nil {
		return err
	}
	switch call.Selector {
	case SelectorAddLiquidity:
		_, _, _, err = r.addLiquidity(st, from, call.AddLiquidity)
	case SelectorSwapExactTokensForTokens:
		_, err = r.swapExactTokensForTokens(st, from, call.Swap)
	case SelectorSwapTokensForExactTokens:
		_, err = r.swapTokensForExactTokens(st, from, call.Swap)
	default:
		_, _, err = r.removeLiquidityWithPermit(st, from, call.Remove, call.PermitSig)
	}
	return err
}

func (r *Router) checkAction(st contract.Backend, from, user common.Address, deadline uint64) error {
	if st.BlockTime() > deadline {
		return ErrExpired
	}
	if user != from {
		return ErrSenderMismatch
	}
	return nil
}

// addLiquidity computes the optimal contribution against the current
// reserves, pulls both tokens into the pair and mints shares. The pair
// is created on first use.
func (r *Router) addLiquidity(st contract.Backend, from common.Address, o *AddLiquidityData) (*big.Int, *big.Int, *big.Int, error) {
	if err := r.checkAction(st, from, o.User, o.Deadline); err != nil {
		return nil, nil, nil, err
	}

	pair, ok := r.factory.GetPair(o.TokenA, o.TokenB)
	if !ok {
		var err error
		pair, err = r.factory.CreatePair(st, o.TokenA, o.TokenB)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	reserveA, reserveB := orientReserves(pair, o.TokenA)
	amountA, amountB, err := optimalAmounts(o, reserveA, reserveB)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := r.pullExact(st, o.TokenA, from, pair.Address(), amountA); err != nil {
		return nil, nil, nil, err
	}
	if err := r.pullExact(st, o.TokenB, from, pair.Address(), amountB); err != nil {
		return nil, nil, nil, err
	}

	liquidity, err := pair.Mint(st, r.addr, o.User)
	if err != nil {
		return nil, nil, nil, err
	}
	return amountA, amountB, liquidity, nil
}

func orientReserves(pair *Pair, tokenA common.Address) (*big.Int, *big.Int) {
	reserve0, reserve1, _ := pair.Reserves()
	if tokenA == pair.Token0() {
		return reserve0, reserve1
	}
	return reserve1, reserve0
}

func optimalAmounts(o *AddLiquidityData, reserveA, reserveB *big.Int) (*big.Int, *big.Int, error) {
	if reserveA.Sign() == 0 && reserveB.Sign() == 0 {
		return o.AmountADesired, o.AmountBDesired, nil
	}
	amountBOptimal, err := Quote(o.AmountADesired, reserveA, reserveB)
	if err != nil {
		return nil, nil, err
	}
	if amountBOptimal.Cmp(o.AmountBDesired) <= 0 {
		if amountBOptimal.Cmp(o.AmountBMin) < 0 {
			return nil, nil, ErrInsufficientBAmount
		}
		return o.AmountADesired, amountBOptimal, nil
	}
	amountAOptimal, err := Quote(o.AmountBDesired, reserveB, reserveA)
	if err != nil {
		return nil, nil, err
	}
	if amountAOptimal.Cmp(o.AmountADesired) > 0 {
		return nil, nil, ErrInsufficientAAmount
	}
	if amountAOptimal.Cmp(o.AmountAMin) < 0 {
		return nil, nil, ErrInsufficientAAmount
	}
	return amountAOptimal, o.AmountBDesired, nil
}

// pullExact moves amount from owner into the pool and insists the pool
// balance grew by exactly that amount. Tokens that take a cut on
// transfer cannot provide liquidity.
func (r *Router) pullExact(st contract.Backend, token, owner, pool common.Address, amount *big.Int) error {
	t, err := st.Tokens().Token(token)
	if err != nil {
		return err
	}
	before := t.BalanceOf(pool)
	if err := t.TransferFrom(r.addr, owner, pool, amount); err != nil {
		return err
	}
	if new(big.Int).Sub(t.BalanceOf(pool), before).Cmp(amount) != 0 {
		return ErrTransferMismatchIn
	}
	return nil
}

// removeLiquidityWithPermit spends the user's share-token permit,
// moves the shares into the pair and burns them for both underlying
// tokens.
func (r *Router) removeLiquidityWithPermit(st contract.Backend, from common.Address, o *RemoveLiquidityData, sig eip712.Signature) (*big.Int, *big.Int, error) {
	if err := r.checkAction(st, from, o.User, o.Deadline); err != nil {
		return nil, nil, err
	}

	pair, ok := r.factory.GetPair(o.TokenA, o.TokenB)
	if !ok {
		return nil, nil, ErrPairNotFound
	}
	lp := pair.LP()

	if err := lp.Permit(st.BlockTime(), o.User, r.addr, o.Liquidity, o.Deadline, sig); err != nil {
		return nil, nil, err
	}
	if err := lp.TransferFrom(r.addr, o.User, pair.Address(), o.Liquidity); err != nil {
		return nil, nil, err
	}

	amount0, amount1, err := pair.Burn(st, r.addr, o.User)
	if err != nil {
		return nil, nil, err
	}
	amountA, amountB := amount0, amount1
	if o.TokenA != pair.Token0() {
		amountA, amountB = amount1, amount0
	}
	if amountA.Cmp(o.AmountAMin) < 0 {
		return nil, nil, ErrInsufficientAAmount
	}
	if amountB.Cmp(o.AmountBMin) < 0 {
		return nil, nil, ErrInsufficientBAmount
	}
	return amountA, amountB, nil
}

func (r *Router) swapExactTokensForTokens(st contract.Backend, from common.Address, o *SwapData) ([]*big.Int, error) {
	if err := r.checkAction(st, from, o.User, o.Deadline); err != nil {
		return nil, err
	}
	amounts, err := r.factory.GetAmountsOut(o.Amount0, o.Path)
	if err != nil {
		return nil, err
	}
	if amounts[len(amounts)-1].Cmp(o.Amount1) < 0 {
		return nil, ErrInsufficientOutputAmount
	}
	if err := r.swapAlongPath(st, from, o.Path, amounts, o.User); err != nil {
		return nil, err
	}
	return amounts, nil
}

func (r *Router) swapTokensForExactTokens(st contract.Backend, from common.Address, o *SwapData) ([]*big.Int, error) {
	if err := r.checkAction(st, from, o.User, o.Deadline); err != nil {
		return nil, err
	}
	amounts, err := r.factory.GetAmountsIn(o.Amount0, o.Path)
	if err != nil {
		return nil, err
	}
	if amounts[0].Cmp(o.Amount1) > 0 {
		return nil, ErrExcessiveInputAmount
	}
	if err := r.swapAlongPath(st, from, o.Path, amounts, o.User); err != nil {
		return nil, err
	}
	return amounts, nil
}

// swapAlongPath seeds the first pair with the input and walks the
// hops, sending each intermediate output straight to the next pair and
// the final output to the recipient. Every hop's delivery is verified
// against the recipient's observed balance change.
func (r *Router) swapAlongPath(st contract.Backend, from common.Address, path []common.Address, amounts []*big.Int, to common.Address) error {
	first, ok := r.factory.GetPair(path[0], path[1])
	if !ok {
		return ErrPairNotFound
	}
	input, err := st.Tokens().Token(path[0])
	if err != nil {
		return err
	}
	if err := input.TransferFrom(r.addr, from, first.Address(), amounts[0]); err != nil {
		return err
	}

	for i := 0; i < len(path)-1; i++ {
		pair, ok := r.factory.GetPair(path[i], path[i+1])
		if !ok {
			return ErrPairNotFound
		}
		amountOut := amounts[i+1]
		amount0Out, amount1Out := new(big.Int), new(big.Int)
		if path[i+1] == pair.Token0() {
			amount0Out = amountOut
		} else {
			amount1Out = amountOut
		}

		recipient := to
		if i < len(path)-2 {
			next, ok := r.factory.GetPair(path[i+1], path[i+2])
			if !ok {
				return ErrPairNotFound
			}
			recipient = next.Address()
		}

		out, err := st.Tokens().Token(path[i+1])
		if err != nil {
			return err
		}
		before := out.BalanceOf(recipient)
		if err := pair.Swap(st, r.addr, amount0Out, amount1Out, recipient); err != nil {
			return err
		}
		if new(big.Int).Sub(out.BalanceOf(recipient), before).Cmp(amountOut) != 0 {
			return ErrTransferMismatchOut
		}
	}
	return nil
}
