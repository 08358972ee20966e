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

// Package rawtable implements the raw open-addressing hash table that a
// higher-level map or set wrapper is built on. It is the storage layer
// only: the wrapper decides when to resize or rehash and supplies the
// hash function; this package owns the slots.
//
// # Layout
//
// A table of capacity N (zero or a power of two) is two parallel
// arrays: a hash array of N machine words and a pair array of N
// (key, value) slots. A hash word of 0 marks an empty slot; any other
// value marks a full one. SafeHash construction reserves the top bit of
// every real hash, so a stored hash can never equal the empty sentinel
// and no separate occupancy metadata is needed. The pair slot at an
// index carries meaningful data exactly when its hash word is nonzero.
//
// The capacity is kept as capacityMask = N-1 so that index arithmetic
// is a bitwise AND; for a capacity-0 table the mask is all ones and the
// array pointers are nil sentinels that are never dereferenced.
//
// All slot access goes through raw pointer arithmetic (see
// unsafeSlice) rather than Go slices: bucket addressing is a single
// pointer add with no bounds check.
//
// # Buckets
//
// Code never reads or writes a slot directly. A Bucket is a cursor over
// one index; Peek classifies it as an EmptyBucket or a FullBucket, and
// those typed views carry the only mutation operations (Put, Take,
// Replace). Because every typed view originates from a Peek or from a
// Put/Take transition, holding one is proof of the slot's occupancy
// state and no operation needs to re-check it.
//
// # Deletion
//
// The table uses no tombstones. Removal backward-shifts the following
// members of the probe cluster into the vacated slot (see GapPeek and
// GapThenFull.Shift) so that every surviving element remains reachable
// by forward linear probing from its ideal index.
//
// # Failure
//
// Allocation is the only fallible operation. New reports sizing
// overflow and allocator failure as a typed *AllocError and never
// aborts; attacker-controlled memory pressure degrades to an error.
// MustNew is the deliberate last-resort adapter for call sites that
// structurally cannot propagate one.
//
// A RawTable is not goroutine-safe. A fully built table may be read
// from multiple goroutines; any mutation requires external exclusion.
package rawtable

import (
	"fmt"
	"strings"
)

const debug = false

// Pair holds a key and value.
type Pair[K comparable, V any] struct {
	key   K
	value V
}

// RawTable is the raw storage of an open-addressing hash table: the
// hash array, the pair array, the occupancy count, and one opaque
// boolean tag whose meaning is defined entirely by the owning wrapper.
//
// The zero value is not usable; construct tables with New or MustNew
// and release them with Close.
type RawTable[K comparable, V any] struct {
	// hashes and pairs address the two parallel slot regions. For a
	// capacity-0 table both hold nil sentinels and are never
	// dereferenced.
	hashes unsafeSlice[uintptr]
	pairs  unsafeSlice[Pair[K, V]]
	// capacityMask is capacity-1. Capacity is always zero or a power of
	// two, so the mask turns i%capacity into i&capacityMask. For a
	// capacity-0 table the mask wraps to all ones.
	capacityMask uintptr
	// used is the number of occupied slots. It is maintained
	// incrementally by Put/Take and is never recomputed by scanning.
	used int
	// tag is one bit of caller-owned state persisted for the table's
	// lifetime.
	tag bool

	allocator Allocator[K, V]
	onDrop    func(key K, value V)
}

// New constructs a table with the given capacity, which must be zero or
// a power of two. A capacity-0 table performs no allocation at all. Any
// allocation failure, including overflow while sizing the combined
// footprint, is returned as a *AllocError.
func New[K comparable, V any](capacity int, options ...option[K, V]) (*RawTable[K, V], error) {
	if capacity < 0 || capacity&(capacity-1) != 0 {
		panic(fmt.Sprintf("rawtable: capacity %d is not zero or a power of two", capacity))
	}

	t := &RawTable[K, V]{
		// For capacity 0 this wraps to all ones and Capacity() wraps it
		// back to 0.
		capacityMask: uintptr(capacity) - 1,
		allocator:    defaultAllocator[K, V]{},
	}
	for _, op := range options {
		op.apply(t)
	}
	if capacity == 0 {
		return t, nil
	}

	_, _, size, overflow := tableLayout[K, V](uintptr(capacity))
	if overflow {
		return nil, &AllocError{Cause: CauseSizeOverflow, Capacity: capacity}
	}
	if !checkBucketSize[K, V](uintptr(capacity), size) {
		return nil, &AllocError{Cause: CauseCapacityOverflow, Capacity: capacity}
	}

	hashes := t.allocator.AllocHashes(capacity)
	if hashes == nil {
		return nil, &AllocError{Cause: CauseAllocFailed, Capacity: capacity}
	}
	pairs := t.allocator.AllocPairs(capacity)
	if pairs == nil {
		t.allocator.FreeHashes(hashes)
		return nil, &AllocError{Cause: CauseAllocFailed, Capacity: capacity}
	}

	// Exactly the hash region is cleared to the empty sentinel; the
	// pair region stays as the allocator returned it and is only ever
	// read behind a nonzero hash word.
	for i := range hashes {
		hashes[i] = emptyHash
	}

	t.hashes = makeUnsafeSlice(hashes)
	t.pairs = makeUnsafeSlice(pairs)
	return t, nil
}

// MustNew is New for call sites that structurally cannot return an
// error. It panics on allocation failure and should be a deliberate
// last resort; the fallible New is the primary constructor.
func MustNew[K comparable, V any](capacity int, options ...option[K, V]) *RawTable[K, V] {
	t, err := New[K, V](capacity, options...)
	if err != nil {
		panic(err)
	}
	return t
}

// capacity returns the slot count. The mask arithmetic wraps a
// capacity-0 table's all-ones mask back to 0.
func (t *RawTable[K, V]) capacity() uintptr {
	return t.capacityMask + 1
}

// Capacity returns the number of slots.
func (t *RawTable[K, V]) Capacity() int {
	return int(t.capacity())
}

// Len returns the number of occupied slots.
func (t *RawTable[K, V]) Len() int {
	return t.used
}

// Tag returns the table's opaque boolean tag.
func (t *RawTable[K, V]) Tag() bool {
	return t.tag
}

// SetTag sets the table's opaque boolean tag.
func (t *RawTable[K, V]) SetTag(v bool) {
	t.tag = v
}

// rawBucketAt computes the addresses for index i against the table's
// current regions. The result is recomputed per call on purpose: a
// RawBucket must never be cached across a change of backing storage.
func (t *RawTable[K, V]) rawBucketAt(i uintptr) RawBucket[K, V] {
	return RawBucket[K, V]{hashes: t.hashes, pairs: t.pairs, idx: i}
}

// bucketAt returns a cursor positioned on index i. i must be a valid
// index for the table's current capacity.
func (t *RawTable[K, V]) bucketAt(i uintptr) Bucket[K, V] {
	if invariants {
		if t.capacity() == 0 {
			panic("rawtable: bucket cursor on a capacity-0 table")
		}
		if i > t.capacityMask {
			panic(fmt.Sprintf("rawtable: index %d out of range for capacity %d", i, t.capacity()))
		}
	}
	return Bucket[K, V]{t: t, raw: t.rawBucketAt(i)}
}

// Peek classifies the slot at index i, returning the typed Empty or
// Full view. It is the only gate for producing one.
func (t *RawTable[K, V]) Peek(i uintptr) Entry[K, V] {
	return t.bucketAt(i).Peek()
}

// IdealBucket returns the cursor at the hash's ideal slot, the open
// addressing home index h&capacityMask. Probing for h starts here.
func (t *RawTable[K, V]) IdealBucket(h SafeHash) Bucket[K, V] {
	return t.bucketAt(h.hash & t.capacityMask)
}

// HeadBucket finds the start of the first probe cluster: walking
// forward from index 0, it skips full buckets with nonzero displacement
// (members of a cluster wrapped in from the table's far end) and empty
// buckets (holes between clusters), stopping at the first full bucket
// with displacement 0. A full-table walk that starts here begins at a
// true cluster head rather than mid-cluster. ok is false if the table
// holds no elements.
func (t *RawTable[K, V]) HeadBucket() (head FullBucket[K, V], ok bool) {
	if t.used == 0 {
		return head, false
	}
	// A nonempty table always contains at least one displacement-0
	// element, so the walk terminates.
	for b := t.bucketAt(0); ; b = b.Next() {
		if full, isFull := b.Peek().(FullBucket[K, V]); isFull && full.Displacement() == 0 {
			return full, true
		}
	}
}

// Close releases the table's storage, finalizing every occupied pair
// (invoking the drop hook if one was configured) before handing the
// regions back to the allocator. It walks indices high to low and stops
// early once the recorded occupancy count has been found, which makes
// closing cheap after a table has been mostly consumed through
// IntoIter. Close is idempotent, and a no-op beyond bookkeeping for a
// capacity-0 table.
func (t *RawTable[K, V]) Close() {
	if t.allocator == nil {
		return
	}
	if capacity := t.capacity(); capacity > 0 {
		for i, remaining := capacity, t.used; remaining > 0; {
			i--
			if *t.hashes.At(i) != emptyHash {
				p := t.pairs.At(i)
				if t.onDrop != nil {
					t.onDrop(p.key, p.value)
				}
				*p = Pair[K, V]{}
				*t.hashes.At(i) = emptyHash
				remaining--
			}
		}
		t.allocator.FreePairs(t.pairs.Slice(0, capacity))
		t.allocator.FreeHashes(t.hashes.Slice(0, capacity))
	}
	t.hashes = unsafeSlice[uintptr]{}
	t.pairs = unsafeSlice[Pair[K, V]]{}
	t.capacityMask = ^uintptr(0)
	t.used = 0
	t.allocator = nil
}

// checkInvariants verifies the occupancy count against a direct scan,
// that every stored hash carries the reserved top bit, and that every
// element is forward-reachable by linear probing from its ideal index.
func (t *RawTable[K, V]) checkInvariants() {
	if invariants {
		capacity := t.capacity()
		var used int
		for i := uintptr(0); i < capacity; i++ {
			h := *t.hashes.At(i)
			if h == emptyHash {
				continue
			}
			used++
			if h&hashTopBit == 0 {
				panic(fmt.Sprintf("invariant failed: hash at %d lacks the reserved bit\n%s", i, t.debugString()))
			}
			// Probe forward from the ideal slot; the element must be
			// found before any empty slot and within capacity steps.
			ideal := h & t.capacityMask
			reachable := false
			for d := uintptr(0); d < capacity; d++ {
				j := (ideal + d) & t.capacityMask
				if j == i {
					reachable = true
					break
				}
				if *t.hashes.At(j) == emptyHash {
					break
				}
			}
			if !reachable {
				panic(fmt.Sprintf("invariant failed: slot %d not reachable from ideal %d\n%s", i, ideal, t.debugString()))
			}
		}
		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d occupied slots, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
	}
}

func (t *RawTable[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  tag=%t\n", t.capacity(), t.used, t.tag)
	for i := uintptr(0); i < t.capacity(); i++ {
		h := *t.hashes.At(i)
		if h == emptyHash {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
			continue
		}
		p := t.pairs.At(i)
		fmt.Fprintf(&buf, "  %4d: %v [hash=%016x ideal=%d]\n", i, p.key, h, h&t.capacityMask)
	}
	return buf.String()
}
