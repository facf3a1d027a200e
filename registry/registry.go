// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry pins the release identity of the exchange suite:
// the deterministic deployer, the salts the core components are placed
// under, the addresses those placements resolve to, and the digests a
// release build must match before deployment.
//
// Everything here is a deployment artifact, not runtime state. The
// addresses are reproducible from the deployer identity, the salt, and
// the code digest; they are pinned so integrators can hardcode them.
package registry

import (
	"github.com/luxfi/geth/common"
)

// Deterministic deployer, placed once per chain.
var DeployerAddress = common.HexToAddress("0x92CACc70175Dc0fE30B44eaddaD03bF551aCB430")

// Placement salts for the core components.
var (
	FactorySalt = common.HexToHash("0x328df1e516ca679229498f1f36601b37d16b80bcdc859b6f59e949de7215e8eb")
	RouterSalt  = common.HexToHash("0x083cdf90a06beaefcbf2dcc12041a3978daced87ff1a5f49c4eddff618ba961c")
)

// Canonical component addresses, identical on every chain the deployer
// is placed on.
var (
	FactoryAddress = common.HexToAddress("0x5f8017621825BC10D63d15C3e863f893946781F7")
	RouterAddress  = common.HexToAddress("0xe4C5Cf259351d7877039CBaE0e7f92EB2Ab017EB")
)

// PairInitCodeDigest is the digest of the reserve-pair initialization
// code. Pair addresses are keccak(0xff || factory || keccak(token0 ||
// token1) || PairInitCodeDigest); with this pin anyone can compute a
// pair's address without touching factory state.
var PairInitCodeDigest = common.HexToHash("0xf7b68428a2644f9a0d674330d4e4af2d7c3d2797a7f5766d3a86c223c4e12d17")

// Release artifact names.
const (
	ArtifactDeployer = "deployer"
	ArtifactFactory  = "factory"
	ArtifactRouter   = "router"
)

// ReleaseDigests pins the keccak digest of each release artifact.
// Deployment preflight refuses to proceed when a compiled artifact
// hashes to anything else.
var ReleaseDigests = map[string]common.Hash{
	ArtifactDeployer: common.HexToHash("0x28c2b02965cdce7ef1afa844b497cb1ae27df3ae00a0f37f92b6309ae30bfc46"),
	ArtifactFactory:  common.HexToHash("0xf7ecca66396ae9acc88afc717981c5c414c85b135afc8e97a2a66800a6123099"),
	ArtifactRouter:   common.HexToHash("0x3c006649dd70a6e62f84fcba04c71e6724d5b329beb5d7d8e66ae616f2999466"),
}
