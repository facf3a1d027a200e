// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/luxfi/exchange/contract"
	"github.com/luxfi/exchange/eip712"
	"github.com/luxfi/exchange/erc20"
)

var (
	testChainID     = big.NewInt(96369)
	testFactoryAddr = common.HexToAddress("0x5f8017621825BC10D63d15C3e863f893946781F7")
	testRouterAddr  = common.HexToAddress("0xe4C5Cf259351d7877039CBaE0e7f92EB2Ab017EB")
	testOwner       = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testTokenAAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testTokenBAddr  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testTokenCAddr  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type testBackend struct {
	time   uint64
	ledger *erc20.Ledger
	logs   []*ethtypes.Log
}

func (b *testBackend) BlockTime() uint64              { return b.time }
func (b *testBackend) ChainID() *big.Int              { return b.ledger.ChainID() }
func (b *testBackend) Tokens() contract.TokenRegistry { return b.ledger }
func (b *testBackend) AddLog(l *ethtypes.Log)         { b.logs = append(b.logs, l) }

type testEnv struct {
	st      *testBackend
	ledger  *erc20.Ledger
	factory *Factory
	router  *Router

	tokenA *erc20.Token
	tokenB *erc20.Token
	tokenC *erc20.Token

	userKey *ecdsa.PrivateKey
	user    common.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ledger := erc20.NewLedger(testChainID)
	st := &testBackend{time: 1000, ledger: ledger}

	factory := NewFactory(testFactoryAddr, testOwner, ledger)
	router := NewRouter(testRouterAddr, testOwner, factory)
	if err := factory.SetRouter(testOwner, testRouterAddr); err != nil {
		t.Fatal(err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	user := common.Address(crypto.PubkeyToAddress(key.PublicKey))

	env := &testEnv{
		st:      st,
		ledger:  ledger,
		factory: factory,
		router:  router,
		userKey: key,
		user:    user,
	}
	env.tokenA = env.deployToken(t, testTokenAAddr, "Token A", "TKA")
	env.tokenB = env.deployToken(t, testTokenBAddr, "Token B", "TKB")
	env.tokenC = env.deployToken(t, testTokenCAddr, "Token C", "TKC")
	return env
}

func (e *testEnv) deployToken(t *testing.T, addr common.Address, name, symbol string) *erc20.Token {
	t.Helper()
	tok, err := e.ledger.Deploy(addr, name, symbol, 18)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// fund mints to the user and approves the router for the full amount.
func (e *testEnv) fund(t *testing.T, tok *erc20.Token, amount *big.Int) {
	t.Helper()
	if err := tok.Mint(e.user, amount); err != nil {
		t.Fatal(err)
	}
	if err := tok.Approve(e.user, e.router.Address(), amount); err != nil {
		t.Fatal(err)
	}
}

// directMode switches meta mode off so plain entry points work.
func (e *testEnv) directMode(t *testing.T) {
	t.Helper()
	if err := e.router.MetaSwitch(testOwner); err != nil {
		t.Fatal(err)
	}
}

// seedPool provisions a fresh pair with the given reserves through the
// router.
func (e *testEnv) seedPool(t *testing.T, tokA, tokB *erc20.Token, amountA, amountB *big.Int) *Pair {
	t.Helper()
	e.fund(t, tokA, amountA)
	e.fund(t, tokB, amountB)
	_, _, _, err := e.router.addLiquidity(e.st, e.user, &AddLiquidityData{
		TokenA:         tokA.Address(),
		TokenB:         tokB.Address(),
		AmountADesired: amountA,
		AmountBDesired: amountB,
		AmountAMin:     amountA,
		AmountBMin:     amountB,
		User:           e.user,
		Deadline:       e.st.time + 100,
	})
	if err != nil {
		t.Fatalf("seeding pool: %v", err)
	}
	pair, ok := e.factory.GetPair(tokA.Address(), tokB.Address())
	if !ok {
		t.Fatal("pair missing after liquidity provision")
	}
	return pair
}

// signLPPermit signs a share-token permit for the router as spender.
func signLPPermit(t *testing.T, env *testEnv, lp *erc20.Token, value *big.Int, deadline uint64) eip712.Signature {
	t.Helper()
	structHash := eip712.HashStruct(
		eip712.TypeHash("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"),
		eip712.AddressWord(env.user),
		eip712.AddressWord(env.router.Address()),
		eip712.UintWord(value),
		eip712.Uint64Word(lp.Nonces(env.user)),
		eip712.Uint64Word(deadline),
	)
	domain := eip712.Domain{
		Name:              lp.Name(),
		Version:           "1",
		ChainID:           testChainID,
		VerifyingContract: lp.Address(),
	}
	sig, err := eip712.Sign(eip712.Digest(domain, structHash), env.userKey)
	if err != nil {
		t.Fatal(err)
	}
	return sig
}

func big10(exp uint) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

func mulInt(x *big.Int, n int64) *big.Int {
	return new(big.Int).Mul(x, big.NewInt(n))
}
