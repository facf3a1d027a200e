// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules tracks the deployed exchange components by name and
// address with deterministic iteration order.
package modules

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/geth/common"
)

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

// BlackholeAddr is the address where assets are burned
var BlackholeAddr = common.Address{
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ReservedRange is the system address space no component may occupy.
// It starts at the blackhole and covers the 256 addresses kept for
// chain built-ins.
var ReservedRange = AddressRange{
	Start: BlackholeAddr,
	End: common.Address{
		1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff,
	},
}

// Module is one registered exchange component.
type Module struct {
	// Name is the component's configuration key, unique per suite
	// (e.g. "factory", "router").
	Name string
	// Address is the component's deterministic deployment address.
	Address common.Address
}

var (
	mu sync.Mutex

	// registeredModules is kept sorted by address to preserve
	// deterministic iteration
	registeredModules = make([]Module, 0)
)

// RegisterModule records a deployed component. Name and address must
// both be unused.
func RegisterModule(m Module) error {
	mu.Lock()
	defer mu.Unlock()

	if ReservedRange.Contains(m.Address) {
		return fmt.Errorf("address %s overlaps with the reserved system range", m.Address)
	}
	if m.Name == "" {
		return fmt.Errorf("module at %s has no name", m.Address)
	}

	for _, registered := range registeredModules {
		if registered.Name == m.Name {
			return fmt.Errorf("name %s already used by a registered module", m.Name)
		}
		if registered.Address == m.Address {
			return fmt.Errorf("address %s already used by a registered module", m.Address)
		}
	}
	registeredModules = insertSortedByAddress(registeredModules, m)
	return nil
}

func GetModuleByAddress(address common.Address) (Module, bool) {
	mu.Lock()
	defer mu.Unlock()
	for _, m := range registeredModules {
		if m.Address == address {
			return m, true
		}
	}
	return Module{}, false
}

func GetModule(name string) (Module, bool) {
	mu.Lock()
	defer mu.Unlock()
	for _, m := range registeredModules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}

// RegisteredModules returns a copy of the registry in address order.
func RegisteredModules() []Module {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Module, len(registeredModules))
	copy(out, registeredModules)
	return out
}

// Reset clears the registry. Intended for tests and redeployments.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registeredModules = registeredModules[:0]
}

func insertSortedByAddress(data []Module, m Module) []Module {
	data = append(data, m)
	sort.Slice(data, func(i, j int) bool {
		return bytes.Compare(data[i].Address[:], data[j].Address[:]) < 0
	})
	return data
}
