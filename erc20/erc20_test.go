// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package erc20

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/exchange/eip712"
)

var (
	testChainID = big.NewInt(43114)
	testTokenA  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testAlice   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testBob     = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testRouter  = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

func newTestToken(t *testing.T) *Token {
	t.Helper()
	l := NewLedger(testChainID)
	tok, err := l.Deploy(testTokenA, "Test Token", "TST", 18)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestLedger_RegisterDuplicate(t *testing.T) {
	l := NewLedger(testChainID)
	if _, err := l.Deploy(testTokenA, "Test", "TST", 18); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Deploy(testTokenA, "Test", "TST", 18); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
	if _, err := l.Token(testBob); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestToken_MintTransferBurn(t *testing.T) {
	tok := newTestToken(t)

	if err := tok.Mint(testAlice, big.NewInt(1000)); err != nil {
		t.Fatal(err)
	}
	if tok.TotalSupply().Cmp(big.NewInt(1000)) != 0 {
		t.Fatal("total supply mismatch after mint")
	}

	if err := tok.Transfer(testAlice, testBob, big.NewInt(400)); err != nil {
		t.Fatal(err)
	}
	if tok.BalanceOf(testAlice).Cmp(big.NewInt(600)) != 0 {
		t.Fatal("sender balance mismatch")
	}
	if tok.BalanceOf(testBob).Cmp(big.NewInt(400)) != 0 {
		t.Fatal("recipient balance mismatch")
	}

	if err := tok.Transfer(testBob, testAlice, big.NewInt(401)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := tok.Burn(testBob, big.NewInt(400)); err != nil {
		t.Fatal(err)
	}
	if tok.TotalSupply().Cmp(big.NewInt(600)) != 0 {
		t.Fatal("total supply mismatch after burn")
	}
}

func TestToken_Allowance(t *testing.T) {
	tok := newTestToken(t)
	tok.Mint(testAlice, big.NewInt(1000))

	if err := tok.TransferFrom(testRouter, testAlice, testBob, big.NewInt(10)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}

	if err := tok.Approve(testAlice, testRouter, big.NewInt(500)); err != nil {
		t.Fatal(err)
	}
	if err := tok.TransferFrom(testRouter, testAlice, testBob, big.NewInt(200)); err != nil {
		t.Fatal(err)
	}
	if tok.Allowance(testAlice, testRouter).Cmp(big.NewInt(300)) != 0 {
		t.Fatal("allowance not decremented")
	}

	if err := tok.TransferFrom(testRouter, testAlice, testBob, big.NewInt(301)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
}

func TestToken_UnlimitedAllowance(t *testing.T) {
	tok := newTestToken(t)
	tok.Mint(testAlice, big.NewInt(1000))

	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := tok.Approve(testAlice, testRouter, max); err != nil {
		t.Fatal(err)
	}
	if err := tok.TransferFrom(testRouter, testAlice, testBob, big.NewInt(200)); err != nil {
		t.Fatal(err)
	}
	if tok.Allowance(testAlice, testRouter).Cmp(max) != 0 {
		t.Fatal("unlimited allowance should not be decremented")
	}
}

func signPermitKey(t *testing.T, tok *Token, key *ecdsa.PrivateKey, owner, spender common.Address, value *big.Int, nonce, deadline uint64) eip712.Signature {
	t.Helper()
	structHash := eip712.HashStruct(
		eip712.TypeHash("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"),
		eip712.AddressWord(owner),
		eip712.AddressWord(spender),
		eip712.UintWord(value),
		eip712.Uint64Word(nonce),
		eip712.Uint64Word(deadline),
	)
	domain := eip712.Domain{
		Name:              tok.Name(),
		Version:           "1",
		ChainID:           testChainID,
		VerifyingContract: tok.Address(),
	}
	sig, err := eip712.Sign(eip712.Digest(domain, structHash), key)
	if err != nil {
		t.Fatal(err)
	}
	return sig
}

func TestToken_Permit(t *testing.T) {
	tok := newTestToken(t)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	owner := common.Address(crypto.PubkeyToAddress(key.PublicKey))
	tok.Mint(owner, big.NewInt(1000))

	value := big.NewInt(250)
	sig := signPermitKey(t, tok, key, owner, testRouter, value, 0, 100)

	if err := tok.Permit(50, owner, testRouter, value, 100, sig); err != nil {
		t.Fatalf("Permit failed: %v", err)
	}
	if tok.Allowance(owner, testRouter).Cmp(value) != 0 {
		t.Fatal("allowance not set by permit")
	}
	if tok.Nonces(owner) != 1 {
		t.Fatal("permit nonce not consumed")
	}

	// replaying the same signature must fail on the advanced nonce
	if err := tok.Permit(50, owner, testRouter, value, 100, sig); !errors.Is(err, ErrInvalidPermit) {
		t.Fatalf("expected ErrInvalidPermit on replay, got %v", err)
	}
}

func TestToken_PermitExpired(t *testing.T) {
	tok := newTestToken(t)
	key, _ := crypto.GenerateKey()
	owner := common.Address(crypto.PubkeyToAddress(key.PublicKey))

	sig := signPermitKey(t, tok, key, owner, testRouter, big.NewInt(1), 0, 100)
	if err := tok.Permit(101, owner, testRouter, big.NewInt(1), 100, sig); !errors.Is(err, ErrPermitExpired) {
		t.Fatalf("expected ErrPermitExpired, got %v", err)
	}
}

func TestToken_PermitWrongSigner(t *testing.T) {
	tok := newTestToken(t)
	key, _ := crypto.GenerateKey()
	owner := testAlice // not the key's address

	sig := signPermitKey(t, tok, key, owner, testRouter, big.NewInt(1), 0, 100)
	if err := tok.Permit(50, owner, testRouter, big.NewInt(1), 100, sig); !errors.Is(err, ErrInvalidPermit) {
		t.Fatalf("expected ErrInvalidPermit, got %v", err)
	}
}
