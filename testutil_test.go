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

import "testing"

// mixUint64 is the splitmix64 finalizer, which mixes integer keys well
// enough for randomized tests.
func mixUint64(x uint64) uintptr {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return uintptr(x)
}

// hashString is FNV-1a, good enough for tests.
func hashString(s string, seed uintptr) uintptr {
	h := uint64(14695981039346656037) ^ uint64(seed)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return uintptr(h)
}

func intHasher(key *int, seed uintptr) uintptr {
	return mixUint64(uint64(*key) + uint64(seed))
}

func stringHasher(key *string, seed uintptr) uintptr {
	return hashString(*key, seed)
}

// hashForIndex fabricates a SafeHash whose ideal slot is idx in any
// table whose capacity exceeds idx. Used to construct exact probe
// layouts.
func hashForIndex(idx uintptr) SafeHash {
	return MakeSafeHash(idx)
}

// linearPut inserts with plain linear probing: walk forward from the
// hash's ideal slot to the first empty bucket. The tests drive the raw
// operations the way the higher-level wrapper would.
func linearPut[K comparable, V any](tb testing.TB, t *RawTable[K, V], h SafeHash, key K, value V) FullBucket[K, V] {
	tb.Helper()
	b := t.IdealBucket(h)
	for i := 0; i < t.Capacity(); i++ {
		if empty, ok := b.Peek().(EmptyBucket[K, V]); ok {
			return empty.Put(h, key, value)
		}
		b = b.Next()
	}
	tb.Fatalf("no empty slot for hash %016x", h.Inspect())
	panic("unreachable")
}

// backwardShiftRemove removes the element at a proven-full bucket and
// restores the probe invariant by shifting the cluster's trailing
// members back, stopping before any bucket that already sits at its
// ideal slot.
func backwardShiftRemove[K comparable, V any](f FullBucket[K, V]) (K, V) {
	gap, key, value := f.Take()
	g, ok := gap.GapPeek()
	for ok && g.Full().Displacement() != 0 {
		g, ok = g.Shift()
	}
	return key, value
}

// occupiedScan counts nonzero hash words by direct scan, cross-checking
// the incrementally maintained count.
func occupiedScan[K comparable, V any](t *RawTable[K, V]) int {
	var n int
	for i := uintptr(0); i < t.capacity(); i++ {
		if *t.hashes.At(i) != emptyHash {
			n++
		}
	}
	return n
}

// slotKeys returns the key at every index, with ok=false holes, for
// asserting exact layouts.
func slotKeys[K comparable, V any](t *RawTable[K, V]) map[uintptr]K {
	m := make(map[uintptr]K)
	for i := uintptr(0); i < t.capacity(); i++ {
		if full, ok := t.Peek(i).(FullBucket[K, V]); ok {
			k, _ := full.Read()
			m[i] = *k
		}
	}
	return m
}

// findByProbe looks a key up the way the wrapper would: forward linear
// probe from the hash's ideal slot, giving up at an empty slot or after
// capacity steps.
func findByProbe[K comparable, V any](t *RawTable[K, V], h SafeHash, key K) (FullBucket[K, V], bool) {
	b := t.IdealBucket(h)
	for i := 0; i < t.Capacity(); i++ {
		switch e := b.Peek().(type) {
		case EmptyBucket[K, V]:
			return FullBucket[K, V]{}, false
		case FullBucket[K, V]:
			if e.Hash() == h {
				if k, _ := e.Read(); *k == key {
					return e, true
				}
			}
		}
		b = b.Next()
	}
	return FullBucket[K, V]{}, false
}
