// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package create2

import (
	"errors"
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/luxfi/exchange/contract"
)

var (
	testDeployer = common.HexToAddress("0x92CACc70175Dc0fE30B44eaddaD03bF551aCB430")
	testOwner    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testSalt     = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000aa")
	testCode     = []byte{0x60, 0x80, 0x60, 0x40, 0x52}
)

type logSink struct {
	logs []*ethtypes.Log
}

func (s *logSink) BlockTime() uint64              { return 0 }
func (s *logSink) ChainID() *big.Int              { return big.NewInt(1) }
func (s *logSink) Tokens() contract.TokenRegistry { return nil }
func (s *logSink) AddLog(l *ethtypes.Log)         { s.logs = append(s.logs, l) }

func TestComputeAddress_Deterministic(t *testing.T) {
	digest := CodeDigest(testCode, nil)
	a := ComputeAddress(testDeployer, testSalt, digest)
	b := ComputeAddress(testDeployer, testSalt, digest)
	if a != b {
		t.Fatal("placement not deterministic")
	}
	if a == (common.Address{}) {
		t.Fatal("placement yielded zero address")
	}

	otherSalt := common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000bb")
	if ComputeAddress(testDeployer, otherSalt, digest) == a {
		t.Fatal("placement should depend on salt")
	}
	if ComputeAddress(testOwner, testSalt, digest) == a {
		t.Fatal("placement should depend on deployer")
	}
}

func TestCodeDigest_CoversConstructor(t *testing.T) {
	plain := CodeDigest(testCode, nil)
	withCtor := CodeDigest(testCode, []byte{0x01})
	if plain == withCtor {
		t.Fatal("digest should cover constructor args")
	}
}

func TestPairSalt_OrderIndependent(t *testing.T) {
	a := common.HexToAddress("0x2222222222222222222222222222222222222222")
	b := common.HexToAddress("0x3333333333333333333333333333333333333333")
	if PairSalt(a, b) != PairSalt(b, a) {
		t.Fatal("pair salt should not depend on argument order")
	}
	if PairSalt(a, b) == PairSalt(a, a) {
		t.Fatal("pair salt collision across distinct pairs")
	}
}

func TestPreflight(t *testing.T) {
	pins := map[string]common.Hash{"factory": CodeDigest(testCode, nil)}
	if err := Preflight(pins, map[string][]byte{"factory": testCode}); err != nil {
		t.Fatalf("matching artifact rejected: %v", err)
	}

	bad := append([]byte{}, testCode...)
	bad[0] ^= 0xff
	if err := Preflight(pins, map[string][]byte{"factory": bad}); !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
	if err := Preflight(pins, map[string][]byte{"unknown": testCode}); err == nil {
		t.Fatal("unpinned artifact accepted")
	}
}

func TestDeployer_Deploy(t *testing.T) {
	sink := &logSink{}
	d := NewDeployer(testDeployer, testOwner)

	addr, err := d.Deploy(sink, testOwner, testCode, nil, testSalt)
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	want := ComputeAddress(testDeployer, testSalt, CodeDigest(testCode, nil))
	if addr != want {
		t.Fatalf("deployed at %s, want %s", addr, want)
	}
	if len(sink.logs) != 1 || sink.logs[0].Topics[0] != ContractDeployedSig {
		t.Fatal("missing ContractDeployed event")
	}
	if digest, ok := d.DeployedDigest(addr); !ok || digest != CodeDigest(testCode, nil) {
		t.Fatal("deployed digest not recorded")
	}

	if _, err := d.Deploy(sink, testOwner, testCode, nil, testSalt); !errors.Is(err, ErrAlreadyDeployed) {
		t.Fatalf("expected ErrAlreadyDeployed, got %v", err)
	}
}

func TestDeployer_Auth(t *testing.T) {
	sink := &logSink{}
	d := NewDeployer(testDeployer, testOwner)
	stranger := common.HexToAddress("0x9999999999999999999999999999999999999999")

	if _, err := d.Deploy(sink, stranger, testCode, nil, testSalt); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := d.TransferOwnership(stranger, stranger); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := d.TransferOwnership(testOwner, stranger); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Deploy(sink, stranger, testCode, nil, testSalt); err != nil {
		t.Fatalf("new owner rejected: %v", err)
	}
}
