// Copyright 2024 The RawTable Authors
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

package rawtable

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

// rhMap is the kind of higher-level wrapper the raw table is built for:
// robin-hood insertion ordered by displacement, backward-shift
// deletion, and a doubling resize policy. It exists here to exercise
// the raw operations end to end the way a production wrapper would;
// resize policy is deliberately not part of the public surface.
type rhMap[K comparable, V any] struct {
	t    *RawTable[K, V]
	hash Hasher[K]
	seed uintptr
}

func newRHMap[K comparable, V any](hash Hasher[K], seed uintptr) *rhMap[K, V] {
	return &rhMap[K, V]{t: MustNew[K, V](0), hash: hash, seed: seed}
}

func (m *rhMap[K, V]) Close() {
	m.t.Close()
}

func (m *rhMap[K, V]) Len() int {
	return m.t.Len()
}

// Clear empties the table in place without releasing its storage.
func (m *rhMap[K, V]) Clear() {
	d := m.t.Drain()
	d.Stop()
}

func (m *rhMap[K, V]) Get(key K) (value V, ok bool) {
	if m.t.Capacity() == 0 {
		return value, false
	}
	h := MakeHash(m.hash, m.seed, &key)
	b := m.t.IdealBucket(h)
	for dist := uintptr(0); dist < uintptr(m.t.Capacity()); dist++ {
		switch e := b.Peek().(type) {
		case EmptyBucket[K, V]:
			return value, false
		case FullBucket[K, V]:
			if e.Hash() == h {
				if k, v := e.Read(); *k == key {
					return *v, true
				}
			}
			// Robin-hood ordering: had the key been present it would
			// have appeared before any element displaced less than our
			// current probe distance.
			if e.Displacement() < dist {
				return value, false
			}
		}
		b = b.Next()
	}
	return value, false
}

// Put inserts or updates key. Growth keeps the load factor at or below
// 4/5 so insertion always terminates at an empty slot.
func (m *rhMap[K, V]) Put(key K, value V) {
	if c := m.t.Capacity(); c == 0 || (m.t.Len()+1)*5 > c*4 {
		m.grow()
	}
	h := MakeHash(m.hash, m.seed, &key)
	b := m.t.IdealBucket(h)
	carrying := false
	for dist := uintptr(0); ; dist++ {
		switch e := b.Peek().(type) {
		case EmptyBucket[K, V]:
			e.Put(h, key, value)
			return
		case FullBucket[K, V]:
			if !carrying && e.Hash() == h {
				if k, v := e.Read(); *k == key {
					*v = value
					return
				}
			}
			if d := e.Displacement(); d < dist {
				// Rob the richer slot: swap in the carried element and
				// continue placing the displaced one.
				h, key, value = e.Replace(h, key, value)
				dist = d
				carrying = true
			}
		}
		b = b.Next()
	}
}

func (m *rhMap[K, V]) Delete(key K) bool {
	if m.t.Capacity() == 0 {
		return false
	}
	h := MakeHash(m.hash, m.seed, &key)
	b := m.t.IdealBucket(h)
	for dist := uintptr(0); dist < uintptr(m.t.Capacity()); dist++ {
		switch e := b.Peek().(type) {
		case EmptyBucket[K, V]:
			return false
		case FullBucket[K, V]:
			if e.Hash() == h {
				if k, _ := e.Read(); *k == key {
					backwardShiftRemove(e)
					return true
				}
			}
			if e.Displacement() < dist {
				return false
			}
		}
		b = b.Next()
	}
	return false
}

// grow doubles the table (or creates the first one) and reinserts every
// element, the one place the wrapper exercises IntoIter against a live
// successor table.
func (m *rhMap[K, V]) grow() {
	newCapacity := 8
	if c := m.t.Capacity(); c > 0 {
		newCapacity = 2 * c
	}
	next := MustNew[K, V](newCapacity)

	it := m.t.IntoIter()
	for {
		key, value, ok := it.Next()
		if !ok {
			break
		}
		h := MakeHash(m.hash, m.seed, &key)
		b := next.IdealBucket(h)
		for dist := uintptr(0); ; dist++ {
			switch e := b.Peek().(type) {
			case EmptyBucket[K, V]:
				e.Put(h, key, value)
			case FullBucket[K, V]:
				if d := e.Displacement(); d < dist {
					h, key, value = e.Replace(h, key, value)
					dist = d
				}
				b = b.Next()
				continue
			}
			break
		}
	}
	m.t.Close()
	m.t = next
}

func (m *rhMap[K, V]) toBuiltinMap() map[K]V {
	r := make(map[K]V, m.t.Len())
	it := m.t.Iter()
	for {
		k, v, ok := it.Next()
		if !ok {
			return r
		}
		r[k] = v
	}
}

func TestRobinHoodBasic(t *testing.T) {
	test := func(t *testing.T, m *rhMap[int, int]) {
		defer m.Close()
		const count = 1000

		e := make(map[int]int)
		for i := 0; i < count; i++ {
			_, ok := m.Get(i)
			require.False(t, ok)
		}

		for i := 0; i < count; i++ {
			m.Put(i, i+count)
			e[i] = i + count
			v, ok := m.Get(i)
			require.True(t, ok)
			require.Equal(t, i+count, v)
			require.Equal(t, i+1, m.Len())
		}
		require.Equal(t, e, m.toBuiltinMap())

		for i := 0; i < count; i++ {
			m.Put(i, i+2*count)
			e[i] = i + 2*count
			require.Equal(t, count, m.Len())
		}
		require.Equal(t, e, m.toBuiltinMap())

		for i := 0; i < count; i++ {
			require.True(t, m.Delete(i))
			require.False(t, m.Delete(i))
			delete(e, i)
			require.Equal(t, count-i-1, m.Len())
			_, ok := m.Get(i)
			require.False(t, ok)
		}
	}

	t.Run("normal", func(t *testing.T) {
		test(t, newRHMap[int, int](intHasher, 42))
	})

	t.Run("degenerate", func(t *testing.T) {
		// A constant hash collapses every key into one probe cluster;
		// correctness must not depend on hash quality.
		test(t, newRHMap[int, int](func(*int, uintptr) uintptr { return 0 }, 0))
	})
}

func TestRobinHoodRandom(t *testing.T) {
	m := newRHMap[int, int](intHasher, 1)
	defer m.Close()
	e := make(map[int]int)

	for i := 0; i < 20000; i++ {
		switch r := rand.Float64(); {
		case r < 0.5:
			k, v := rand.Intn(4000), rand.Int()
			m.Put(k, v)
			e[k] = v
		case r < 0.75:
			k := rand.Intn(4000)
			require.Equal(t, mapDelete(e, k), m.Delete(k))
		default:
			k := rand.Intn(4000)
			ev, eok := e[k]
			v, ok := m.Get(k)
			require.Equal(t, eok, ok)
			if ok {
				require.Equal(t, ev, v)
			}
		}
		require.Equal(t, len(e), m.Len())
	}
	require.Equal(t, e, m.toBuiltinMap())
}

func mapDelete[K comparable, V any](m map[K]V, k K) bool {
	if _, ok := m[k]; ok {
		delete(m, k)
		return true
	}
	return false
}

func TestRobinHoodFakeStrings(t *testing.T) {
	const (
		total = 50_000
		seed  = 1234567890
	)

	var (
		m     = newRHMap[string, int](stringHasher, 7)
		state = map[string]int{}
		fake  = gofakeit.New(seed)
	)
	defer m.Close()

	for i := 0; i < total; i++ {
		key := fmt.Sprintf("%s-%d", fake.HipsterWord(), fake.Number(0, 1<<20))
		m.Put(key, i)
		state[key] = i
	}
	require.Equal(t, len(state), m.Len())

	for key, val := range state {
		actual, ok := m.Get(key)
		require.True(t, ok, key)
		require.Equal(t, val, actual, key)
	}

	// Delete every other key and re-check the remainder.
	var i int
	for key := range state {
		if i++; i%2 == 0 {
			require.True(t, m.Delete(key))
			delete(state, key)
		}
	}
	require.Equal(t, state, m.toBuiltinMap())
}
