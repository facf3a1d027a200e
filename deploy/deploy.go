// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package deploy bootstraps a complete exchange: it verifies the
// release artifacts against their pinned digests, places the factory
// and router at their deterministic addresses, wires the factory to
// the router and registers every placed contract as a module.
package deploy

import (
	"errors"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/exchange/amm"
	"github.com/luxfi/exchange/contract"
	"github.com/luxfi/exchange/create2"
	"github.com/luxfi/exchange/erc20"
	"github.com/luxfi/exchange/modules"
	"github.com/luxfi/exchange/registry"
)

var (
	ErrNoOwner         = errors.New("deploy: owner not configured")
	ErrNoLedger        = errors.New("deploy: token ledger not configured")
	ErrMissingArtifact = errors.New("deploy: missing release artifact")
	ErrAddressMismatch = errors.New("deploy: computed address does not match expectation")
)

// Config carries everything a bootstrap needs. Pins and Artifacts are
// keyed by artifact name; ExpectedFactory and ExpectedRouter, when
// nonzero, assert the deterministic placement.
type Config struct {
	Owner     common.Address
	Ledger    *erc20.Ledger
	Pins      map[string]common.Hash
	Artifacts map[string][]byte

	ExpectedFactory common.Address
	ExpectedRouter  common.Address

	Log log.Logger
}

// ReleaseConfig returns a Config pinned to the published release:
// artifact digests and the factory and router addresses are asserted
// against the registry constants.
func ReleaseConfig(owner common.Address, ledger *erc20.Ledger, artifacts map[string][]byte, logger log.Logger) Config {
	return Config{
		Owner:           owner,
		Ledger:          ledger,
		Pins:            registry.ReleaseDigests,
		Artifacts:       artifacts,
		ExpectedFactory: registry.FactoryAddress,
		ExpectedRouter:  registry.RouterAddress,
		Log:             logger,
	}
}

// Exchange is a bootstrapped deployment.
type Exchange struct {
	Deployer *create2.Deployer
	Factory  *amm.Factory
	Router   *amm.Router
}

// Bootstrap verifies and places the exchange contracts.
func Bootstrap(st contract.Backend, cfg Config) (*Exchange, error) {
	if cfg.Owner == (common.Address{}) {
		return nil, ErrNoOwner
	}
	if cfg.Ledger == nil {
		return nil, ErrNoLedger
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}

	if err := create2.Preflight(cfg.Pins, cfg.Artifacts); err != nil {
		return nil, err
	}
	for _, name := range []string{registry.ArtifactDeployer, registry.ArtifactFactory, registry.ArtifactRouter} {
		if len(cfg.Artifacts[name]) == 0 {
			return nil, ErrMissingArtifact
		}
	}

	deployer := create2.NewDeployer(registry.DeployerAddress, cfg.Owner)
	logger.Info("deployer placed", "address", deployer.Address(), "owner", cfg.Owner)

	factoryAddr, err := deployer.Deploy(st, cfg.Owner, cfg.Artifacts[registry.ArtifactFactory], nil, registry.FactorySalt)
	if err != nil {
		return nil, err
	}
	if cfg.ExpectedFactory != (common.Address{}) && factoryAddr != cfg.ExpectedFactory {
		return nil, ErrAddressMismatch
	}

	routerAddr, err := deployer.Deploy(st, cfg.Owner, cfg.Artifacts[registry.ArtifactRouter], nil, registry.RouterSalt)
	if err != nil {
		return nil, err
	}
	if cfg.ExpectedRouter != (common.Address{}) && routerAddr != cfg.ExpectedRouter {
		return nil, ErrAddressMismatch
	}

	factory := amm.NewFactory(factoryAddr, cfg.Owner, cfg.Ledger)
	router := amm.NewRouter(routerAddr, cfg.Owner, factory)
	if err := factory.SetRouter(cfg.Owner, routerAddr); err != nil {
		return nil, err
	}
	logger.Info("factory placed", "address", factoryAddr)
	logger.Info("router placed", "address", routerAddr, "meta", router.MetaEnabled())

	for _, m := range []modules.Module{
		{Name: registry.ArtifactDeployer, Address: deployer.Address()},
		{Name: registry.ArtifactFactory, Address: factoryAddr},
		{Name: registry.ArtifactRouter, Address: routerAddr},
	} {
		if err := modules.RegisterModule(m); err != nil {
			return nil, err
		}
	}

	return &Exchange{Deployer: deployer, Factory: factory, Router: router}, nil
}
