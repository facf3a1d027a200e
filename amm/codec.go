// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"bytes"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/exchange/eip712"
)

// Router call selectors: the first four bytes of the keccak of the
// canonical function signature.
var (
	SelectorAddLiquidity              = selector("addLiquidity((address,address,uint256,uint256,uint256,uint256,address,uint256))")
	SelectorSwapExactTokensForTokens  = selector("swapExactTokensForTokens((uint256,uint256,address[],address,uint256))")
	SelectorSwapTokensForExactTokens  = selector("swapTokensForExactTokens((uint256,uint256,address[],address,uint256))")
	SelectorRemoveLiquidityWithPermit = selector("removeLiquidityWithPermit((address,address,uint256,uint256,uint256,address,uint256),(uint8,bytes32,bytes32))")
)

func selector(sig string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(sig))[:4])
	return sel
}

// Call is a decoded router invocation carried inside an authorization
// envelope. Exactly one action field is set, matching the selector.
type Call struct {
	Selector     [4]byte
	AddLiquidity *AddLiquidityData
	Swap         *SwapData
	Remove       *RemoveLiquidityData
	// PermitSig accompanies a remove-liquidity call.
	PermitSig eip712.Signature
}

// EncodeAddLiquidity packs an add-liquidity intent into call data.
func EncodeAddLiquidity(o *AddLiquidityData) []byte {
	var buf bytes.Buffer
	buf.Write(SelectorAddLiquidity[:])
	writeWord(&buf, eip712.AddressWord(o.TokenA))
	writeWord(&buf, eip712.AddressWord(o.TokenB))
	writeWord(&buf, eip712.UintWord(o.AmountADesired))
	writeWord(&buf, eip712.UintWord(o.AmountBDesired))
	writeWord(&buf, eip712.UintWord(o.AmountAMin))
	writeWord(&buf, eip712.UintWord(o.AmountBMin))
	writeWord(&buf, eip712.AddressWord(o.User))
	writeWord(&buf, eip712.Uint64Word(o.Deadline))
	return buf.Bytes()
}

func encodeSwap(sel [4]byte, o *SwapData) []byte {
	var buf bytes.Buffer
	buf.Write(sel[:])
	writeWord(&buf, eip712.UintWord(o.Amount0))
	writeWord(&buf, eip712.UintWord(o.Amount1))
	writeWord(&buf, eip712.AddressWord(o.User))
	writeWord(&buf, eip712.Uint64Word(o.Deadline))
	writeWord(&buf, eip712.Uint64Word(uint64(len(o.Path))))
	for _, hop := range o.Path {
		writeWord(&buf, eip712.AddressWord(hop))
	}
	return buf.Bytes()
}

// EncodeSwapExactTokensForTokens packs an exact-input swap intent.
func EncodeSwapExactTokensForTokens(o *SwapData) []byte {
	return encodeSwap(SelectorSwapExactTokensForTokens, o)
}

// EncodeSwapTokensForExactTokens packs an exact-output swap intent.
func EncodeSwapTokensForExactTokens(o *SwapData) []byte {
	return encodeSwap(SelectorSwapTokensForExactTokens, o)
}

// EncodeRemoveLiquidityWithPermit packs a remove-liquidity intent and
// its share-token permit signature.
func EncodeRemoveLiquidityWithPermit(o *RemoveLiquidityData, sig eip712.Signature) []byte {
	var buf bytes.Buffer
	buf.Write(SelectorRemoveLiquidityWithPermit[:])
	writeWord(&buf, eip712.AddressWord(o.TokenA))
	writeWord(&buf, eip712.AddressWord(o.TokenB))
	writeWord(&buf, eip712.UintWord(o.Liquidity))
	writeWord(&buf, eip712.UintWord(o.AmountAMin))
	writeWord(&buf, eip712.UintWord(o.AmountBMin))
	writeWord(&buf, eip712.AddressWord(o.User))
	writeWord(&buf, eip712.Uint64Word(o.Deadline))
	writeWord(&buf, eip712.Uint64Word(uint64(sig.V)))
	writeWord(&buf, sig.R)
	writeWord(&buf, sig.S)
	return buf.Bytes()
}

// DecodeCall parses call data back into a Call. Unknown selectors and
// truncated payloads are rejected.
func DecodeCall(data []byte) (*Call, error) {
	if len(data) < 4 {
		return nil, ErrInvalidCallData
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	r := wordReader{data: data[4:]}

	switch sel {
	case SelectorAddLiquidity:
		o := &AddLiquidityData{
			TokenA:         r.address(),
			TokenB:         r.address(),
			AmountADesired: r.big(),
			AmountBDesired: r.big(),
			AmountAMin:     r.big(),
			AmountBMin:     r.big(),
			User:           r.address(),
			Deadline:       r.uint64(),
		}
		if err := r.done(); err != nil {
			return nil, err
		}
		return &Call{Selector: sel, AddLiquidity: o}, nil

	case SelectorSwapExactTokensForTokens, SelectorSwapTokensForExactTokens:
		o := &SwapData{
			Amount0:  r.big(),
			Amount1:  r.big(),
			User:     r.address(),
			Deadline: r.uint64(),
		}
		n := r.uint64()
		if r.err != nil || n > uint64(len(r.data)/common.HashLength) {
			return nil, ErrInvalidCallData
		}
		o.Path = make([]common.Address, n)
		for i := range o.Path {
			o.Path[i] = r.address()
		}
		if err := r.done(); err != nil {
			return nil, err
		}
		return &Call{Selector: sel, Swap: o}, nil

	case SelectorRemoveLiquidityWithPermit:
		o := &RemoveLiquidityData{
			TokenA:     r.address(),
			TokenB:     r.address(),
			Liquidity:  r.big(),
			AmountAMin: r.big(),
			AmountBMin: r.big(),
			User:       r.address(),
			Deadline:   r.uint64(),
		}
		sig := eip712.Signature{
			V: uint8(r.uint64()),
			R: r.word(),
			S: r.word(),
		}
		if err := r.done(); err != nil {
			return nil, err
		}
		return &Call{Selector: sel, Remove: o, PermitSig: sig}, nil
	}
	return nil, ErrUnknownSelector
}

func writeWord(buf *bytes.Buffer, w common.Hash) {
	buf.Write(w.Bytes())
}

// wordReader consumes 32-byte words, latching the first error.
type wordReader struct {
	data []byte
	err  error
}

func (r *wordReader) word() common.Hash {
	if r.err != nil {
		return common.Hash{}
	}
	if len(r.data) < common.HashLength {
		r.err = ErrInvalidCallData
		return common.Hash{}
	}
	w := common.BytesToHash(r.data[:common.HashLength])
	r.data = r.data[common.HashLength:]
	return w
}

func (r *wordReader) address() common.Address {
	return common.BytesToAddress(r.word().Bytes())
}

func (r *wordReader) big() *big.Int {
	return r.word().Big()
}

func (r *wordReader) uint64() uint64 {
	w := r.big()
	if r.err == nil && !w.IsUint64() {
		r.err = ErrInvalidCallData
		return 0
	}
	return w.Uint64()
}

func (r *wordReader) done() error {
	if r.err != nil {
		return r.err
	}
	if len(r.data) != 0 {
		return ErrInvalidCallData
	}
	return nil
}

// Payload type strings for the signed action digests. The payload hash
// binds an authorization envelope to the exact economic action inside
// its call data.
const (
	addLiquidityType    = "AddLiquidity(address tokenA,address tokenB,uint256 amountADesired,uint256 amountBDesired,uint256 amountAMin,uint256 amountBMin,address user,uint256 deadline)"
	swapType            = "Swap(uint256 amount0,uint256 amount1,address[] path,address user,uint256 deadline)"
	removeLiquidityType = "RemoveLiquidity(address tokenA,address tokenB,uint256 liquidity,uint256 amountAMin,uint256 amountBMin,address user,uint256 deadline,uint8 v,bytes32 r,bytes32 s)"
)

// HashAddLiquidityPayload returns the canonical digest of an
// add-liquidity intent.
func HashAddLiquidityPayload(o *AddLiquidityData) common.Hash {
	return eip712.HashStruct(
		eip712.TypeHash(addLiquidityType),
		eip712.AddressWord(o.TokenA),
		eip712.AddressWord(o.TokenB),
		eip712.UintWord(o.AmountADesired),
		eip712.UintWord(o.AmountBDesired),
		eip712.UintWord(o.AmountAMin),
		eip712.UintWord(o.AmountBMin),
		eip712.AddressWord(o.User),
		eip712.Uint64Word(o.Deadline),
	)
}

// HashSwapPayload returns the canonical digest of a swap intent. The
// path is hashed as the keccak of its packed 20-byte addresses.
func HashSwapPayload(o *SwapData) common.Hash {
	packed := make([]byte, 0, len(o.Path)*common.AddressLength)
	for _, hop := range o.Path {
		packed = append(packed, hop.Bytes()...)
	}
	return eip712.HashStruct(
		eip712.TypeHash(swapType),
		eip712.UintWord(o.Amount0),
		eip712.UintWord(o.Amount1),
		common.Hash(crypto.Keccak256Hash(packed)),
		eip712.AddressWord(o.User),
		eip712.Uint64Word(o.Deadline),
	)
}

// HashRemoveLiquidityPayload returns the canonical digest of a
// remove-liquidity intent, covering the embedded permit signature.
func HashRemoveLiquidityPayload(o *RemoveLiquidityData, sig eip712.Signature) common.Hash {
	return eip712.HashStruct(
		eip712.TypeHash(removeLiquidityType),
		eip712.AddressWord(o.TokenA),
		eip712.AddressWord(o.TokenB),
		eip712.UintWord(o.Liquidity),
		eip712.UintWord(o.AmountAMin),
		eip712.UintWord(o.AmountBMin),
		eip712.AddressWord(o.User),
		eip712.Uint64Word(o.Deadline),
		eip712.Uint64Word(uint64(sig.V)),
		sig.R,
		sig.S,
	)
}
