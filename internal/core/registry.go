package core

import (
	"fmt"
	"sort"
	"sync"
)

// ImporterInfo describes an importable entity type.
type ImporterInfo struct {
	Key    string   `json:"key"`    // Unique identifier: "coupons"
	Label  string   `json:"label"`  // Display name: "Coupons"
	Fields []string `json:"fields"` // Target field names the importer reads
}

// ImporterFactory builds an importer bound to a database handle.
type ImporterFactory func(db DBTX) EntityImporter

// ImporterDefinition is everything the registry knows about an entity type.
type ImporterDefinition struct {
	Info ImporterInfo
	New  ImporterFactory
}

var (
	registry   = make(map[string]ImporterDefinition)
	registryMu sync.RWMutex
)

// Register adds an importer definition to the registry.
// Panics if the key is empty, the factory is nil or the key is already registered.
func Register(def ImporterDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Info.Key == "" {
		panic("importer registered without a key")
	}
	if def.New == nil {
		panic(fmt.Sprintf("importer %s registered without a factory", def.Info.Key))
	}
	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("importer already registered: %s", def.Info.Key))
	}

	registry[def.Info.Key] = def
}

// Lookup returns the definition registered under key.
func Lookup(key string) (ImporterDefinition, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	if !ok {
		return ImporterDefinition{}, fmt.Errorf("%w: %s", ErrUnknownEntity, key)
	}
	return def, nil
}

// All returns every registered definition sorted by key.
func All() []ImporterDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ImporterDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// ImporterCount returns the number of registered importers.
func ImporterCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered importers.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ImporterDefinition)
}
