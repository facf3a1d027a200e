// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"

	"github.com/luxfi/geth/common"
)

// Quote returns the amount of the second token matching amountA at the
// pool's current reserve ratio: amountA * reserveB / reserveA.
func Quote(amountA, reserveA, reserveB *big.Int) (*big.Int, error) {
	if amountA == nil || amountA.Sign() <= 0 {
		return nil, ErrInsufficientAmount
	}
	if reserveA.Sign() <= 0 || reserveB.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	out := new(big.Int).Mul(amountA, reserveB)
	return out.Div(out, reserveA), nil
}

// GetAmountOut returns the maximum output for an exact input, with the
// 0.3% fee applied on the input:
//
//	out = reserveOut * in * 997 / (reserveIn * 1000 + in * 997)
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	inWithFee := new(big.Int).Mul(amountIn, feeNumerator)
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, feeDenominator)
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator), nil
}

// GetAmountIn returns the minimum input for an exact output, the
// algebraic inverse of GetAmountOut rounded up:
//
//	in = reserveIn * out * 1000 / ((reserveOut - out) * 997) + 1
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, ErrInsufficientOutputAmount
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 || reserveOut.Cmp(amountOut) <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, feeDenominator)
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, feeNumerator)
	in := numerator.Div(numerator, denominator)
	return in.Add(in, big.NewInt(1)), nil
}

// GetAmountsOut quotes a multi-hop exact-input swap across the path,
// returning one amount per path element (index 0 is the input).
func (f *Factory) GetAmountsOut(amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := f.reservesFor(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		out, err := GetAmountOut(amounts[i], reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

// GetAmountsIn quotes a multi-hop exact-output swap across the path,
// working backwards from the desired output.
func (f *Factory) GetAmountsIn(amountOut *big.Int, path []common.Address) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	amounts := make([]*big.Int, len(path))
	amounts[len(path)-1] = new(big.Int).Set(amountOut)
	for i := len(path) - 1; i > 0; i-- {
		reserveIn, reserveOut, err := f.reservesFor(path[i-1], path[i])
		if err != nil {
			return nil, err
		}
		in, err := GetAmountIn(amounts[i], reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
		amounts[i-1] = in
	}
	return amounts, nil
}

// reservesFor returns the reserves of the (tokenIn, tokenOut) pair
// oriented to the input token.
func (f *Factory) reservesFor(tokenIn, tokenOut common.Address) (*big.Int, *big.Int, error) {
	pair, ok := f.GetPair(tokenIn, tokenOut)
	if !ok {
		return nil, nil, ErrPairNotFound
	}
	r0, r1, _ := pair.Reserves()
	token0, _ := sortTokens(tokenIn, tokenOut)
	if tokenIn == token0 {
		return r0, r1, nil
	}
	return r1, r0, nil
}

// sqrt returns the integer square root of x.
func sqrt(x *big.Int) *big.Int {
	return new(big.Int).Sqrt(x)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
