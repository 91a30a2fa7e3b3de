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
	"fmt"
	"log/slog"
)

// FeatureKey identifies a feature kind. One feature per key may be
// installed on a pipeline.
type FeatureKey string

// Feature is an installable component that subscribes to lifecycle events.
type Feature interface {
	// Key returns the feature's identity.
	Key() FeatureKey

	// Install registers the feature's handlers on the pipeline. Called at
	// most once per pipeline.
	Install(p *Pipeline) error
}

// Install installs a feature. A second install under the same key is
// skipped with a warning; the first installation wins. This is what lets
// user-installed features take precedence over system defaults.
func (p *Pipeline) Install(f Feature) error {
	key := f.Key()

	p.mu.Lock()
	if _, exists := p.features[key]; exists {
		p.mu.Unlock()
		slog.Warn("Feature already installed, skipping", "feature", string(key))
		return nil
	}
	p.features[key] = f
	p.mu.Unlock()

	if err := f.Install(p); err != nil {
		p.mu.Lock()
		delete(p.features, key)
		p.mu.Unlock()
		return fmt.Errorf("failed to install feature %q: %w", key, err)
	}
	return nil
}

// Installed returns the feature registered under key, if any.
func (p *Pipeline) Installed(key FeatureKey) (Feature, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.features[key]
	return f, ok
}

// InstalledAs returns the feature under key cast to T.
func InstalledAs[T Feature](p *Pipeline, key FeatureKey) (T, bool) {
	var zero T
	f, ok := p.Installed(key)
	if !ok {
		return zero, false
	}
	typed, ok := f.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
