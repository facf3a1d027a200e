// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm implements the constant-product exchange core: the
// reserve pair, the deterministic pair factory, and the router that
// computes and orchestrates liquidity and multi-hop swap operations.
package amm

import (
	"errors"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Trading fee: 0.3%, applied on input amounts as 997/1000.
var (
	feeNumerator   = big.NewInt(997)
	feeDenominator = big.NewInt(1000)
)

// MinimumLiquidity is the share floor burned on first mint so a pool
// can never be fully drained to a zero-supply state.
var MinimumLiquidity = big.NewInt(1000)

// Liquidity-share token metadata.
const (
	LPName   = "LX Swap V2"
	LPSymbol = "LXS-V2"
)

// Errors - pair
var (
	ErrForbidden                   = errors.New("forbidden: caller is not the router")
	ErrReentrancy                  = errors.New("reentrancy detected")
	ErrInsufficientLiquidity       = errors.New("insufficient liquidity")
	ErrInsufficientLiquidityMinted = errors.New("insufficient liquidity minted")
	ErrInsufficientLiquidityBurned = errors.New("insufficient liquidity burned")
	ErrInsufficientInputAmount     = errors.New("insufficient input amount")
	ErrInvalidTo                   = errors.New("invalid swap recipient")
	ErrK                           = errors.New("constant product invariant violated")
)

// Errors - factory
var (
	ErrIdenticalAddresses = errors.New("identical token addresses")
	ErrZeroAddress        = errors.New("zero token address")
	ErrPairExists         = errors.New("pair already exists")
	ErrPairNotFound       = errors.New("pair not found")
)

// Errors - router
var (
	ErrExpired                  = errors.New("deadline expired")
	ErrNotOwner                 = errors.New("caller is not the owner")
	ErrMetaOnly                 = errors.New("forbidden: meta-transactions only")
	ErrMetaDisabled             = errors.New("meta-transactions disabled")
	ErrSenderMismatch           = errors.New("sender does not match token recipient")
	ErrInsufficientAmount       = errors.New("insufficient amount")
	ErrInsufficientAAmount      = errors.New("insufficient A amount")
	ErrInsufficientBAmount      = errors.New("insufficient B amount")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrExcessiveInputAmount     = errors.New("excessive input amount")
	ErrInvalidPath              = errors.New("invalid swap path")
	ErrTransferMismatchIn       = errors.New("transfer amount does not match input amount")
	ErrTransferMismatchOut      = errors.New("transfer amount does not match output amount")
	ErrInvalidCallData          = errors.New("malformed call data")
	ErrUnknownSelector          = errors.New("invalid function signature")
)

// Event topic signatures
var (
	PairCreatedSig = common.Hash(crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)")))
	MintSig        = common.Hash(crypto.Keccak256Hash([]byte("Mint(address,uint256,uint256)")))
	BurnSig        = common.Hash(crypto.Keccak256Hash([]byte("Burn(address,uint256,uint256,address)")))
	SwapSig        = common.Hash(crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)")))
	SyncSig        = common.Hash(crypto.Keccak256Hash([]byte("Sync(uint256,uint256)")))
)

// Storage key prefix for the factory's pair index
var pairStatePrefix = []byte("pair")

// makeStorageKey creates a storage key from prefix and identifier
func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// AddLiquidityData is the decoded intent of an add-liquidity action.
type AddLiquidityData struct {
	TokenA         common.Address
	TokenB         common.Address
	AmountADesired *big.Int
	AmountBDesired *big.Int
	AmountAMin     *big.Int
	AmountBMin     *big.Int
	User           common.Address
	Deadline       uint64
}

// SwapData is the decoded intent of a swap action. Amount0 is the
// primary amount (exact input, or exact output for the exact-output
// variant) and Amount1 the slippage bound (minimum output, or maximum
// input).
type SwapData struct {
	Amount0  *big.Int
	Amount1  *big.Int
	Path     []common.Address
	User     common.Address
	Deadline uint64
}

// RemoveLiquidityData is the decoded intent of a remove-liquidity
// action. The share-token permit signature travels alongside in the
// call payload.
type RemoveLiquidityData struct {
	TokenA     common.Address
	TokenB     common.Address
	Liquidity  *big.Int
	AmountAMin *big.Int
	AmountBMin *big.Int
	User       common.Address
	Deadline   uint64
}

// sortTokens returns the pair's tokens in canonical ascending order.
func sortTokens(tokenA, tokenB common.Address) (common.Address, common.Address) {
	if tokenA.Cmp(tokenB) < 0 {
		return tokenA, tokenB
	}
	return tokenB, tokenA
}
