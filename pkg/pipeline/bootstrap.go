// Copyright 2026 Tolga Akin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"log/slog"
	"os"
	"strings"
)

// SystemFeaturesEnvVar lists comma-separated feature keys to install with
// defaults during pipeline preparation.
const SystemFeaturesEnvVar = "WEFT_FEATURES"

// FeatureFactory builds a feature with default options. Factories read
// their own per-feature environment (ports, timeouts) themselves.
type FeatureFactory func() Feature

// SystemFeatureRegistry maps feature keys to their default constructors.
type SystemFeatureRegistry map[FeatureKey]FeatureFactory

// SystemFeatureKeys merges the env var and the property value into the
// ordered list of requested keys. Either source may be empty.
func SystemFeatureKeys(property string) []FeatureKey {
	var keys []FeatureKey
	for _, source := range []string{os.Getenv(SystemFeaturesEnvVar), property} {
		for _, raw := range strings.Split(source, ",") {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			keys = append(keys, FeatureKey(name))
		}
	}
	return keys
}

// InstallSystemFeatures installs the requested feature keys with their
// registry defaults. Features the user already installed are skipped by the
// idempotent install (first install wins); unknown keys are ignored with a
// warning.
func (p *Pipeline) InstallSystemFeatures(registry SystemFeatureRegistry, keys []FeatureKey) {
	for _, key := range keys {
		factory, ok := registry[key]
		if !ok {
			slog.Warn("Unknown system feature key, ignoring", "feature", string(key))
			continue
		}
		if err := p.Install(factory()); err != nil {
			slog.Warn("Failed to install system feature", "feature", string(key), "error", err)
		}
	}
}
