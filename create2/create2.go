// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package create2 implements deterministic, content-addressed
// placement of exchange components: an address is a pure function of
// the deployer identity, a salt, and the digest of the initialization
// code, so any observer can compute it without a registry lookup.
package create2

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/luxfi/exchange/contract"
)

var (
	ErrNotOwner        = errors.New("caller is not the owner")
	ErrAlreadyDeployed = errors.New("address already deployed")
	ErrDigestMismatch  = errors.New("compiled bytecode does not match pinned digest")
)

// ContractDeployedSig is the topic of the deployment event.
var ContractDeployedSig = common.Hash(crypto.Keccak256Hash([]byte("ContractDeployed(address)")))

// ComputeAddress returns keccak(0xff || deployer || salt || codeDigest)[12:],
// the CREATE2 placement rule.
func ComputeAddress(deployer common.Address, salt common.Hash, codeDigest common.Hash) common.Address {
	h := crypto.Keccak256(
		[]byte{0xff},
		deployer.Bytes(),
		salt.Bytes(),
		codeDigest.Bytes(),
	)
	return common.BytesToAddress(h[12:])
}

// PairSalt derives the salt for an unordered token pair: the keccak of
// the two addresses in canonical (ascending) order. Order-independent
// by construction.
func PairSalt(tokenA, tokenB common.Address) common.Hash {
	a, b := tokenA.Bytes(), tokenB.Bytes()
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	return common.Hash(crypto.Keccak256Hash(a, b))
}

// CodeDigest hashes initialization code packed with its constructor
// arguments.
func CodeDigest(code, ctor []byte) common.Hash {
	return common.Hash(crypto.Keccak256Hash(code, ctor))
}

// Preflight verifies release artifacts against their pinned digests and
// fails hard on the first mismatch. Artifacts without a pin are
// rejected too: an unpinned artifact must never reach deployment.
func Preflight(pinned map[string]common.Hash, artifacts map[string][]byte) error {
	for name, code := range artifacts {
		want, ok := pinned[name]
		if !ok {
			return fmt.Errorf("artifact %q: no pinned digest", name)
		}
		if got := common.Hash(crypto.Keccak256Hash(code)); got != want {
			return fmt.Errorf("artifact %q: %w", name, ErrDigestMismatch)
		}
	}
	return nil
}

// Deployer places components at deterministic addresses. Deployment is
// owner-gated; every placement is recorded and emitted as a
// ContractDeployed log.
type Deployer struct {
	mu       sync.Mutex
	addr     common.Address
	owner    common.Address
	deployed map[common.Address]common.Hash
}

func NewDeployer(addr, owner common.Address) *Deployer {
	return &Deployer{
		addr:     addr,
		owner:    owner,
		deployed: make(map[common.Address]common.Hash),
	}
}

func (d *Deployer) Address() common.Address { return d.addr }

func (d *Deployer) Owner() common.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owner
}

func (d *Deployer) TransferOwnership(caller, newOwner common.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if caller != d.owner {
		return ErrNotOwner
	}
	d.owner = newOwner
	return nil
}

// Deploy computes the deterministic address for the packed code and
// records the placement. The returned address is final: deploying the
// same salt and code twice fails.
func (d *Deployer) Deploy(st contract.Backend, caller common.Address, code, ctor []byte, salt common.Hash) (common.Address, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if caller != d.owner {
		return common.Address{}, ErrNotOwner
	}
	digest := CodeDigest(code, ctor)
	addr := ComputeAddress(d.addr, salt, digest)
	if _, ok := d.deployed[addr]; ok {
		return common.Address{}, ErrAlreadyDeployed
	}
	d.deployed[addr] = digest
	st.AddLog(&ethtypes.Log{
		Address: d.addr,
		Topics:  []common.Hash{ContractDeployedSig, common.BytesToHash(addr.Bytes())},
	})
	return addr, nil
}

// DeployedDigest reports the code digest recorded for addr, if any.
func (d *Deployer) DeployedDigest(addr common.Address) (common.Hash, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.deployed[addr]
	return h, ok
}
