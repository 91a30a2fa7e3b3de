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

package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSetGet(t *testing.T) {
	m := NewMap()
	key := NewKey[string]("greeting")

	_, ok := Get(m, key)
	assert.False(t, ok)

	Set(m, key, "hello")
	v, ok := Get(m, key)
	require.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestMapGetValueNotFound(t *testing.T) {
	m := NewMap()
	_, err := GetValue(m, NewKey[int]("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMapTypeMismatch(t *testing.T) {
	m := NewMap()
	Set(m, NewKey[string]("slot"), "text")

	// Same name, different type: surfaces as a typed-cast failure.
	_, err := GetValue(m, NewKey[int]("slot"))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, ok := Get(m, NewKey[int]("slot"))
	assert.False(t, ok)
}

func TestMapRemoveAndClear(t *testing.T) {
	m := NewMap()
	key := NewKey[int]("count")
	Set(m, key, 42)

	Remove(m, key)
	_, ok := Get(m, key)
	assert.False(t, ok)

	Set(m, key, 1)
	Set(m, NewKey[string]("name"), "weft")
	assert.Equal(t, 2, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestMapToMapAndPutAll(t *testing.T) {
	m := NewMap()
	Set(m, NewKey[int]("a"), 1)

	m.PutAll(map[string]any{"b": "two", "c": 3.0})

	out := m.ToMap()
	assert.Equal(t, map[string]any{"a": 1, "b": "two", "c": 3.0}, out)

	// The copy is detached from the map.
	out["d"] = true
	assert.Equal(t, 3, m.Len())
}

func TestMapConcurrentAccess(t *testing.T) {
	m := NewMap()
	key := NewKey[int]("counter")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Set(m, key, n)
			Get(m, key)
			m.ToMap()
		}(i)
	}
	wg.Wait()

	_, ok := Get(m, key)
	assert.True(t, ok)
}
