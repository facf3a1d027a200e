// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package erc20 implements the in-memory token ledger backing the
// exchange: a registry resolving token addresses, and a fungible token
// with EIP-2612 permit support. Liquidity-share tokens are Token
// instances registered at their pair's address.
package erc20

import (
	"errors"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/exchange/contract"
	"github.com/luxfi/exchange/eip712"
)

var (
	ErrTokenNotFound         = errors.New("token not found")
	ErrTokenExists           = errors.New("token already registered")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrPermitExpired         = errors.New("permit expired")
	ErrInvalidPermit         = errors.New("invalid permit signature")
)

const permitType = "Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"

// Ledger is the token registry for one chain.
type Ledger struct {
	mu      sync.RWMutex
	chainID *big.Int
	tokens  map[common.Address]contract.ERC20
}

func NewLedger(chainID *big.Int) *Ledger {
	return &Ledger{
		chainID: new(big.Int).Set(chainID),
		tokens:  make(map[common.Address]contract.ERC20),
	}
}

func (l *Ledger) ChainID() *big.Int {
	return new(big.Int).Set(l.chainID)
}

// Register binds an ERC20 implementation to an address. Used both for
// natively deployed tokens and for externally supplied ones.
func (l *Ledger) Register(addr common.Address, token contract.ERC20) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tokens[addr]; ok {
		return ErrTokenExists
	}
	l.tokens[addr] = token
	return nil
}

// Deploy creates a Token, registers it, and returns it.
func (l *Ledger) Deploy(addr common.Address, name, symbol string, decimals uint8) (*Token, error) {
	t := NewToken(addr, name, symbol, decimals, l.chainID)
	if err := l.Register(addr, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Token implements contract.TokenRegistry.
func (l *Ledger) Token(addr common.Address) (contract.ERC20, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tokens[addr]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return t, nil
}

// Token is a fungible token ledger entry. Balances and allowances are
// stored as uint256 so overflow is rejected at the boundary.
type Token struct {
	mu       sync.RWMutex
	addr     common.Address
	name     string
	symbol   string
	decimals uint8
	chainID  *big.Int

	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
	nonces      map[common.Address]uint64
}

func NewToken(addr common.Address, name, symbol string, decimals uint8, chainID *big.Int) *Token {
	return &Token{
		addr:        addr,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		chainID:     new(big.Int).Set(chainID),
		totalSupply: uint256.NewInt(0),
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
		nonces:      make(map[common.Address]uint64),
	}
}

func (t *Token) Address() common.Address { return t.addr }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

// Nonces returns the permit nonce for owner.
func (t *Token) Nonces(owner common.Address) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nonces[owner]
}

func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalSupply.ToBig()
}

func (t *Token) BalanceOf(addr common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b, ok := t.balances[addr]; ok {
		return b.ToBig()
	}
	return new(big.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if a, ok := t.allowances[owner]; ok {
		if v, ok := a[spender]; ok {
			return v.ToBig()
		}
	}
	return new(big.Int)
}

func toWord(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// Mint credits newly issued units to an account.
func (t *Token) Mint(to common.Address, amount *big.Int) error {
	v, err := toWord(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.credit(to, v)
	t.totalSupply = new(uint256.Int).Add(t.totalSupply, v)
	return nil
}

// Burn destroys units held by an account.
func (t *Token) Burn(from common.Address, amount *big.Int) error {
	v, err := toWord(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(from, v); err != nil {
		return err
	}
	t.totalSupply = new(uint256.Int).Sub(t.totalSupply, v)
	return nil
}

func (t *Token) Transfer(caller, to common.Address, amount *big.Int) error {
	v, err := toWord(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.debit(caller, v); err != nil {
		return err
	}
	t.credit(to, v)
	return nil
}

func (t *Token) TransferFrom(caller, owner, to common.Address, amount *big.Int) error {
	v, err := toWord(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.spendAllowance(owner, caller, v); err != nil {
		return err
	}
	if err := t.debit(owner, v); err != nil {
		return err
	}
	t.credit(to, v)
	return nil
}

func (t *Token) Approve(caller, spender common.Address, amount *big.Int) error {
	v, err := toWord(amount)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setAllowance(caller, spender, v)
	return nil
}

// Permit approves spender for value via an off-line signature scoped to
// this token's domain, consuming the owner's permit nonce.
func (t *Token) Permit(now uint64, owner, spender common.Address, value *big.Int, deadline uint64, sig eip712.Signature) error {
	if now > deadline {
		return ErrPermitExpired
	}
	v, err := toWord(value)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	structHash := eip712.HashStruct(
		eip712.TypeHash(permitType),
		eip712.AddressWord(owner),
		eip712.AddressWord(spender),
		eip712.UintWord(value),
		eip712.Uint64Word(t.nonces[owner]),
		eip712.Uint64Word(deadline),
	)
	digest := eip712.Digest(t.domain(), structHash)
	signer, err := eip712.Recover(digest, sig)
	if err != nil || signer != owner {
		return ErrInvalidPermit
	}
	t.nonces[owner]++
	t.setAllowance(owner, spender, v)
	return nil
}

func (t *Token) domain() eip712.Domain {
	return eip712.Domain{
		Name:              t.name,
		Version:           "1",
		ChainID:           t.chainID,
		VerifyingContract: t.addr,
	}
}

// callers hold t.mu

func (t *Token) credit(to common.Address, v *uint256.Int) {
	if b, ok := t.balances[to]; ok {
		t.balances[to] = new(uint256.Int).Add(b, v)
		return
	}
	t.balances[to] = v.Clone()
}

func (t *Token) debit(from common.Address, v *uint256.Int) error {
	b, ok := t.balances[from]
	if !ok || b.Lt(v) {
		return ErrInsufficientBalance
	}
	t.balances[from] = new(uint256.Int).Sub(b, v)
	return nil
}

func (t *Token) setAllowance(owner, spender common.Address, v *uint256.Int) {
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	t.allowances[owner][spender] = v.Clone()
}

func (t *Token) spendAllowance(owner, spender common.Address, v *uint256.Int) error {
	a := t.allowances[owner]
	if a == nil {
		return ErrInsufficientAllowance
	}
	cur, ok := a[spender]
	if !ok || cur.Lt(v) {
		return ErrInsufficientAllowance
	}
	// a max-uint approval is treated as unlimited and never drawn down
	if !cur.Eq(maxAllowance) {
		a[spender] = new(uint256.Int).Sub(cur, v)
	}
	return nil
}

var maxAllowance = new(uint256.Int).SetAllOne()
