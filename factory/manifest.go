// Copyright 2026 The Sensord Authors
// SPDX-License-Identifier: Apache-2.0

package factory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind names one of the four factory tables a manifest entry targets.
type Kind string

// The four factory kinds a plugin manifest can declare.
const (
	KindAdaptor Kind = "adaptor"
	KindChain   Kind = "chain"
	KindSensor  Kind = "sensor"
	KindFilter  Kind = "filter"
)

// PluginEntry names one type a plugin intends to register. The
// manifest format only records intent; actually wiring a constructor
// into a Registry is a separate step the plugin's own init code
// performs, since Go has no dynamic-loading equivalent of the
// original's shared-object factories that this package can drive on
// its own.
type PluginEntry struct {
	Kind     Kind   `yaml:"kind"`
	TypeName string `yaml:"type_name"`
}

// manifestFile is the on-disk shape of a plugin manifest.
type manifestFile struct {
	Plugins []PluginEntry `yaml:"plugins"`
}

// LoadPluginManifest parses a YAML manifest listing the adaptor,
// chain, sensor, and filter types a deployment expects to have
// available. cmd/sensord uses this at startup purely to log what it
// expects, and to fail fast with a clear message if an expected type
// never gets registered.
func LoadPluginManifest(path string) ([]PluginEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plugin manifest %s: %w", path, err)
	}

	var parsed manifestFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing plugin manifest %s: %w", path, err)
	}

	for i, entry := range parsed.Plugins {
		switch entry.Kind {
		case KindAdaptor, KindChain, KindSensor, KindFilter:
		default:
			return nil, fmt.Errorf("plugin manifest %s: entry %d: unknown kind %q", path, i, entry.Kind)
		}
		if entry.TypeName == "" {
			return nil, fmt.Errorf("plugin manifest %s: entry %d: empty type_name", path, i)
		}
	}

	return parsed.Plugins, nil
}

// VerifyRegistered checks that every manifest entry has a matching
// constructor registered in r, returning an error naming the first
// missing one. Call after plugin init code has had a chance to
// register its constructors.
func VerifyRegistered(r *Registry, entries []PluginEntry) error {
	for _, entry := range entries {
		var registered bool
		switch entry.Kind {
		case KindAdaptor:
			registered = r.HasAdaptor(entry.TypeName)
		case KindChain:
			registered = r.HasChain(entry.TypeName)
		case KindSensor:
			registered = r.HasSensor(entry.TypeName)
		case KindFilter:
			registered = r.HasFilter(entry.TypeName)
		}
		if !registered {
			return fmt.Errorf("plugin manifest declared %s %q but no constructor was registered", entry.Kind, entry.TypeName)
		}
	}
	return nil
}
