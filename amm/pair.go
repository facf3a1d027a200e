// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/luxfi/exchange/contract"
	"github.com/luxfi/exchange/erc20"
)

// Pair holds the reserves of one trading pair and issues fungible
// liquidity shares against them. Contributed and swapped amounts are
// always measured as the observed change of the pair's token balances,
// never as caller-supplied figures, so tokens that deliver less than
// the nominal transfer amount cannot inflate credit.
//
// Mutating operations are callable only through the authorized router.
type Pair struct {
	mu     sync.Mutex
	locked bool

	addr    common.Address
	factory *Factory
	token0  common.Address
	token1  common.Address

	reserve0           *big.Int
	reserve1           *big.Int
	blockTimestampLast uint64

	// kLast is reserve0*reserve1 as of the most recent liquidity
	// event, used for the protocol fee share.
	kLast *big.Int

	lp *erc20.Token
}

func newPair(factory *Factory, addr, token0, token1 common.Address, lp *erc20.Token) *Pair {
	return &Pair{
		addr:     addr,
		factory:  factory,
		token0:   token0,
		token1:   token1,
		reserve0: new(big.Int),
		reserve1: new(big.Int),
		kLast:    new(big.Int),
		lp:       lp,
	}
}

func (p *Pair) Address() common.Address { return p.addr }
func (p *Pair) Token0() common.Address  { return p.token0 }
func (p *Pair) Token1() common.Address  { return p.token1 }

// LP returns the pair's liquidity-share token.
func (p *Pair) LP() *erc20.Token { return p.lp }

// Reserves returns the recorded reserves and the timestamp of the last
// checkpoint.
func (p *Pair) Reserves() (*big.Int, *big.Int, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.reserve0), new(big.Int).Set(p.reserve1), p.blockTimestampLast
}

// enter sets the reentrancy flag. A nested call from a token hook is
// rejected rather than deadlocked.
func (p *Pair) enter() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locked {
		return ErrReentrancy
	}
	p.locked = true
	return nil
}

func (p *Pair) exit() {
	p.mu.Lock()
	p.locked = false
	p.mu.Unlock()
}

func (p *Pair) requireRouter(caller common.Address) error {
	if caller != p.factory.Router() {
		return ErrForbidden
	}
	return nil
}

func (p *Pair) token(st contract.Backend, addr common.Address) (contract.ERC20, error) {
	t, err := st.Tokens().Token(addr)
	if err != nil {
		return nil, fmt.Errorf("pair %s: %w", p.addr, err)
	}
	return t, nil
}

// balances reads the pair's actual token holdings.
func (p *Pair) balances(st contract.Backend) (*big.Int, *big.Int, error) {
	t0, err := p.token(st, p.token0)
	if err != nil {
		return nil, nil, err
	}
	t1, err := p.token(st, p.token1)
	if err != nil {
		return nil, nil, err
	}
	return t0.BalanceOf(p.addr), t1.BalanceOf(p.addr), nil
}

// Mint credits liquidity shares for the balance growth observed since
// the last checkpoint. The first deposit burns MinimumLiquidity shares
// to the blackhole so the pool can never empty completely.
func (p *Pair) Mint(st contract.Backend, caller, to common.Address) (*big.Int, error) {
	if err := p.requireRouter(caller); err != nil {
		return nil, err
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.exit()

	balance0, balance1, err := p.balances(st)
	if err != nil {
		return nil, err
	}
	amount0 := new(big.Int).Sub(balance0, p.reserve0)
	amount1 := new(big.Int).Sub(balance1, p.reserve1)

	feeOn := p.mintFee(st)

	var liquidity *big.Int
	totalSupply := p.lp.TotalSupply()
	if totalSupply.Sign() == 0 {
		liquidity = sqrt(new(big.Int).Mul(amount0, amount1))
		liquidity.Sub(liquidity, MinimumLiquidity)
		if liquidity.Sign() <= 0 {
			return nil, ErrInsufficientLiquidityMinted
		}
		// permanently lock the floor
		if err := p.lp.Mint(blackhole, MinimumLiquidity); err != nil {
			return nil, err
		}
	} else {
		l0 := new(big.Int).Mul(amount0, totalSupply)
		l0.Div(l0, p.reserve0)
		l1 := new(big.Int).Mul(amount1, totalSupply)
		l1.Div(l1, p.reserve1)
		liquidity = new(big.Int).Set(minBig(l0, l1))
		if liquidity.Sign() <= 0 {
			return nil, ErrInsufficientLiquidityMinted
		}
	}
	if err := p.lp.Mint(to, liquidity); err != nil {
		return nil, err
	}

	p.update(st, balance0, balance1)
	if feeOn {
		p.kLast = new(big.Int).Mul(p.reserve0, p.reserve1)
	}

	st.AddLog(&ethtypes.Log{
		Address: p.addr,
		Topics:  []common.Hash{MintSig, common.BytesToHash(caller.Bytes())},
		Data:    append(common.BigToHash(amount0).Bytes(), common.BigToHash(amount1).Bytes()...),
	})
	return liquidity, nil
}

// Burn destroys the shares previously transferred to the pair and pays
// out the proportional cut of both actual balances to the recipient.
func (p *Pair) Burn(st contract.Backend, caller, to common.Address) (*big.Int, *big.Int, error) {
	if err := p.requireRouter(caller); err != nil {
		return nil, nil, err
	}
	if err := p.enter(); err != nil {
		return nil, nil, err
	}
	defer p.exit()

	balance0, balance1, err := p.balances(st)
	if err != nil {
		return nil, nil, err
	}
	liquidity := p.lp.BalanceOf(p.addr)

	feeOn := p.mintFee(st)

	totalSupply := p.lp.TotalSupply()
	if totalSupply.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidityBurned
	}
	amount0 := new(big.Int).Mul(liquidity, balance0)
	amount0.Div(amount0, totalSupply)
	amount1 := new(big.Int).Mul(liquidity, balance1)
	amount1.Div(amount1, totalSupply)
	if amount0.Sign() <= 0 || amount1.Sign() <= 0 {
		return nil, nil, ErrInsufficientLiquidityBurned
	}

	if err := p.lp.Burn(p.addr, liquidity); err != nil {
		return nil, nil, err
	}
	t0, err := p.token(st, p.token0)
	if err != nil {
		return nil, nil, err
	}
	t1, err := p.token(st, p.token1)
	if err != nil {
		return nil, nil, err
	}
	if err := t0.Transfer(p.addr, to, amount0); err != nil {
		return nil, nil, err
	}
	if err := t1.Transfer(p.addr, to, amount1); err != nil {
		return nil, nil, err
	}

	balance0, balance1, err = p.balances(st)
	if err != nil {
		return nil, nil, err
	}
	p.update(st, balance0, balance1)
	if feeOn {
		p.kLast = new(big.Int).Mul(p.reserve0, p.reserve1)
	}

	st.AddLog(&ethtypes.Log{
		Address: p.addr,
		Topics: []common.Hash{
			BurnSig,
			common.BytesToHash(caller.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: append(common.BigToHash(amount0).Bytes(), common.BigToHash(amount1).Bytes()...),
	})
	return amount0, amount1, nil
}

// Swap optimistically pays out the requested amounts and then verifies
// that whatever inputs actually arrived keep the fee-adjusted product
// from shrinking:
//
//	(balance0*1000 - in0*3) * (balance1*1000 - in1*3) >= reserve0 * reserve1 * 1000^2
func (p *Pair) Swap(st contract.Backend, caller common.Address, amount0Out, amount1Out *big.Int, to common.Address) error {
	if err := p.requireRouter(caller); err != nil {
		return err
	}
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()

	if amount0Out.Sign() <= 0 && amount1Out.Sign() <= 0 {
		return ErrInsufficientOutputAmount
	}
	if amount0Out.Cmp(p.reserve0) >= 0 || amount1Out.Cmp(p.reserve1) >= 0 {
		return ErrInsufficientLiquidity
	}
	if to == p.token0 || to == p.token1 {
		return ErrInvalidTo
	}

	t0, err := p.token(st, p.token0)
	if err != nil {
		return err
	}
	t1, err := p.token(st, p.token1)
	if err != nil {
		return err
	}
	if amount0Out.Sign() > 0 {
		if err := t0.Transfer(p.addr, to, amount0Out); err != nil {
			return err
		}
	}
	if amount1Out.Sign() > 0 {
		if err := t1.Transfer(p.addr, to, amount1Out); err != nil {
			return err
		}
	}

	balance0, balance1, err := p.balances(st)
	if err != nil {
		return err
	}
	amount0In := amountIn(balance0, p.reserve0, amount0Out)
	amount1In := amountIn(balance1, p.reserve1, amount1Out)
	if amount0In.Sign() <= 0 && amount1In.Sign() <= 0 {
		return ErrInsufficientInputAmount
	}

	adjusted0 := new(big.Int).Mul(balance0, feeDenominator)
	adjusted0.Sub(adjusted0, new(big.Int).Mul(amount0In, big.NewInt(3)))
	adjusted1 := new(big.Int).Mul(balance1, feeDenominator)
	adjusted1.Sub(adjusted1, new(big.Int).Mul(amount1In, big.NewInt(3)))
	k := new(big.Int).Mul(p.reserve0, p.reserve1)
	k.Mul(k, new(big.Int).Mul(feeDenominator, feeDenominator))
	if new(big.Int).Mul(adjusted0, adjusted1).Cmp(k) < 0 {
		return ErrK
	}

	p.update(st, balance0, balance1)

	data := make([]byte, 0, 4*common.HashLength)
	data = append(data, common.BigToHash(amount0In).Bytes()...)
	data = append(data, common.BigToHash(amount1In).Bytes()...)
	data = append(data, common.BigToHash(amount0Out).Bytes()...)
	data = append(data, common.BigToHash(amount1Out).Bytes()...)
	st.AddLog(&ethtypes.Log{
		Address: p.addr,
		Topics: []common.Hash{
			SwapSig,
			common.BytesToHash(caller.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: data,
	})
	return nil
}

// Sync forces the recorded reserves to match the actual balances. The
// recovery path after a token silently changes a balance outside the
// tracked flow.
func (p *Pair) Sync(st contract.Backend) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()
	balance0, balance1, err := p.balances(st)
	if err != nil {
		return err
	}
	p.update(st, balance0, balance1)
	return nil
}

// Skim is the counterpart of Sync: it pushes any balance excess over
// the recorded reserves out to the recipient.
func (p *Pair) Skim(st contract.Backend, to common.Address) error {
	if err := p.enter(); err != nil {
		return err
	}
	defer p.exit()
	balance0, balance1, err := p.balances(st)
	if err != nil {
		return err
	}
	t0, err := p.token(st, p.token0)
	if err != nil {
		return err
	}
	t1, err := p.token(st, p.token1)
	if err != nil {
		return err
	}
	if excess := new(big.Int).Sub(balance0, p.reserve0); excess.Sign() > 0 {
		if err := t0.Transfer(p.addr, to, excess); err != nil {
			return err
		}
	}
	if excess := new(big.Int).Sub(balance1, p.reserve1); excess.Sign() > 0 {
		if err := t1.Transfer(p.addr, to, excess); err != nil {
			return err
		}
	}
	return nil
}

// update checkpoints the reserves and emits Sync. Callers hold the
// reentrancy flag.
func (p *Pair) update(st contract.Backend, balance0, balance1 *big.Int) {
	p.reserve0 = new(big.Int).Set(balance0)
	p.reserve1 = new(big.Int).Set(balance1)
	p.blockTimestampLast = st.BlockTime()
	st.AddLog(&ethtypes.Log{
		Address: p.addr,
		Topics:  []common.Hash{SyncSig},
		Data:    append(common.BigToHash(balance0).Bytes(), common.BigToHash(balance1).Bytes()...),
	})
}

// mintFee mints the protocol's share of pool growth to the configured
// fee recipient: 1/6 of the growth of sqrt(k) since the last liquidity
// event. Skipped entirely when no recipient is configured.
func (p *Pair) mintFee(st contract.Backend) bool {
	feeTo := p.factory.FeeTo()
	feeOn := feeTo != (common.Address{})
	if !feeOn {
		if p.kLast.Sign() != 0 {
			p.kLast = new(big.Int)
		}
		return false
	}
	if p.kLast.Sign() == 0 {
		return true
	}
	rootK := sqrt(new(big.Int).Mul(p.reserve0, p.reserve1))
	rootKLast := sqrt(p.kLast)
	if rootK.Cmp(rootKLast) <= 0 {
		return true
	}
	numerator := new(big.Int).Mul(p.lp.TotalSupply(), new(big.Int).Sub(rootK, rootKLast))
	denominator := new(big.Int).Mul(rootK, big.NewInt(5))
	denominator.Add(denominator, rootKLast)
	liquidity := numerator.Div(numerator, denominator)
	if liquidity.Sign() > 0 {
		_ = p.lp.Mint(feeTo, liquidity)
	}
	return true
}

// amountIn recovers the input actually received for one side:
// balance - (reserve - out), floored at zero.
func amountIn(balance, reserve, out *big.Int) *big.Int {
	prior := new(big.Int).Sub(reserve, out)
	if balance.Cmp(prior) <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(balance, prior)
}

// blackhole receives the permanently locked minimum liquidity.
var blackhole = common.Address{
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}
