// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/exchange/eip712"
)

func TestCodec_AddLiquidityRoundTrip(t *testing.T) {
	o := &AddLiquidityData{
		TokenA:         common.HexToAddress("0x01"),
		TokenB:         common.HexToAddress("0x02"),
		AmountADesired: big.NewInt(100),
		AmountBDesired: big.NewInt(200),
		AmountAMin:     big.NewInt(90),
		AmountBMin:     big.NewInt(180),
		User:           common.HexToAddress("0x03"),
		Deadline:       12345,
	}
	call, err := DecodeCall(EncodeAddLiquidity(o))
	if err != nil {
		t.Fatal(err)
	}
	if call.Selector != SelectorAddLiquidity || call.AddLiquidity == nil {
		t.Fatal("wrong call shape")
	}
	got := call.AddLiquidity
	if got.TokenA != o.TokenA || got.TokenB != o.TokenB || got.User != o.User || got.Deadline != o.Deadline {
		t.Fatal("address fields mangled")
	}
	if got.AmountADesired.Cmp(o.AmountADesired) != 0 || got.AmountBMin.Cmp(o.AmountBMin) != 0 {
		t.Fatal("amount fields mangled")
	}
}

func TestCodec_SwapRoundTrip(t *testing.T) {
	o := &SwapData{
		Amount0: big.NewInt(1000),
		Amount1: big.NewInt(990),
		Path: []common.Address{
			common.HexToAddress("0x01"),
			common.HexToAddress("0x02"),
			common.HexToAddress("0x03"),
		},
		User:     common.HexToAddress("0x04"),
		Deadline: 999,
	}
	for _, data := range [][]byte{
		EncodeSwapExactTokensForTokens(o),
		EncodeSwapTokensForExactTokens(o),
	} {
		call, err := DecodeCall(data)
		if err != nil {
			t.Fatal(err)
		}
		if call.Swap == nil || len(call.Swap.Path) != 3 {
			t.Fatal("path mangled")
		}
		if call.Swap.Path[2] != o.Path[2] {
			t.Fatal("path hop mangled")
		}
		if call.Swap.Amount0.Cmp(o.Amount0) != 0 {
			t.Fatal("amount mangled")
		}
	}
}

func TestCodec_RemoveLiquidityRoundTrip(t *testing.T) {
	o := &RemoveLiquidityData{
		TokenA:     common.HexToAddress("0x01"),
		TokenB:     common.HexToAddress("0x02"),
		Liquidity:  big.NewInt(5000),
		AmountAMin: big.NewInt(1),
		AmountBMin: big.NewInt(2),
		User:       common.HexToAddress("0x03"),
		Deadline:   777,
	}
	sig := eip712.Signature{V: 27, R: common.HexToHash("0xaa"), S: common.HexToHash("0xbb")}

	call, err := DecodeCall(EncodeRemoveLiquidityWithPermit(o, sig))
	if err != nil {
		t.Fatal(err)
	}
	if call.Remove == nil {
		t.Fatal("wrong call shape")
	}
	if call.PermitSig != sig {
		t.Fatal("permit signature mangled")
	}
	if call.Remove.Liquidity.Cmp(o.Liquidity) != 0 {
		t.Fatal("liquidity mangled")
	}
}

func TestCodec_Rejections(t *testing.T) {
	if _, err := DecodeCall([]byte{0x01, 0x02}); !errors.Is(err, ErrInvalidCallData) {
		t.Fatalf("expected ErrInvalidCallData, got %v", err)
	}

	if _, err := DecodeCall([]byte{0xde, 0xad, 0xbe, 0xef}); !errors.Is(err, ErrUnknownSelector) {
		t.Fatalf("expected ErrUnknownSelector, got %v", err)
	}

	full := EncodeAddLiquidity(&AddLiquidityData{
		TokenA: common.HexToAddress("0x01"), TokenB: common.HexToAddress("0x02"),
		AmountADesired: big.NewInt(1), AmountBDesired: big.NewInt(1),
		AmountAMin: big.NewInt(1), AmountBMin: big.NewInt(1),
		User: common.HexToAddress("0x03"), Deadline: 1,
	})
	if _, err := DecodeCall(full[:len(full)-1]); !errors.Is(err, ErrInvalidCallData) {
		t.Fatalf("expected ErrInvalidCallData for truncation, got %v", err)
	}
	if _, err := DecodeCall(append(full, 0x00)); !errors.Is(err, ErrInvalidCallData) {
		t.Fatalf("expected ErrInvalidCallData for trailing bytes, got %v", err)
	}
}

func TestHashSwapPayload_PathSensitivity(t *testing.T) {
	o := &SwapData{
		Amount0: big.NewInt(1), Amount1: big.NewInt(1),
		Path: []common.Address{
			common.HexToAddress("0x01"),
			common.HexToAddress("0x02"),
		},
		User: common.HexToAddress("0x03"), Deadline: 1,
	}
	h1 := HashSwapPayload(o)

	reversed := *o
	reversed.Path = []common.Address{o.Path[1], o.Path[0]}
	if HashSwapPayload(&reversed) == h1 {
		t.Fatal("payload hash should depend on path order")
	}
}
