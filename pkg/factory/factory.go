// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package factory creates ledger stores by backend name. Backends register
// themselves from init functions; optional ones can be compiled out with the
// nosqlite and nocassandra build tags.
package factory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/ledger"
)

// StoreCreator is a function that creates a configured ledger store.
type StoreCreator func(settings map[string]string, logger adapters.Logger) (ledger.Store, error)

var (
	registryMu    sync.RWMutex
	storeRegistry = make(map[string]StoreCreator)
)

// RegisterStore registers a store backend creator.
func RegisterStore(backendType string, creator StoreCreator) {
	registryMu.Lock()
	defer registryMu.Unlock()
	storeRegistry[backendType] = creator
}

// NewStore creates a ledger store of the given type.
func NewStore(backendType string, settings map[string]string, logger adapters.Logger) (ledger.Store, error) {
	registryMu.RLock()
	creator, exists := storeRegistry[backendType]
	registryMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backendType)
	}
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	return creator(settings, logger.WithFields(adapters.F("backend", backendType)))
}

// Backends lists the registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(storeRegistry))
	for name := range storeRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// configured runs Configure on store and returns it.
func configured(store ledger.Store, settings map[string]string) (ledger.Store, error) {
	if err := store.Configure(settings); err != nil {
		return nil, err
	}
	return store, nil
}
