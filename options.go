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

// option provides an interface to do work on a RawTable while it is
// being created.
type option[K comparable, V any] interface {
	apply(t *RawTable[K, V])
}

// Allocator specifies an interface for allocating and releasing the
// memory backing a RawTable's hash and pair regions. The default
// allocator utilizes Go's builtin make() and allows the GC to reclaim
// memory.
//
// Either Alloc method reports failure by returning nil, which New
// surfaces as a *AllocError; on success the returned slice must be
// non-nil even when the element type is zero-sized (make() guarantees
// this). If the allocator manually manages memory, RawTable.Close must
// be called to ensure FreeHashes and FreePairs run.
type Allocator[K comparable, V any] interface {
	// AllocHashes should return a slice equivalent to make([]uintptr, n),
	// or nil if the allocation cannot be satisfied. The table clears the
	// hash region itself; the allocator need not.
	AllocHashes(n int) []uintptr

	// AllocPairs should return a slice equivalent to make([]Pair[K,V], n),
	// or nil if the allocation cannot be satisfied. The pair region may
	// be returned uninitialized.
	AllocPairs(n int) []Pair[K, V]

	// FreeHashes can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocHashes.
	FreeHashes(v []uintptr)

	// FreePairs can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocPairs.
	FreePairs(v []Pair[K, V])
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocHashes(n int) []uintptr {
	return make([]uintptr, n)
}

func (defaultAllocator[K, V]) AllocPairs(n int) []Pair[K, V] {
	return make([]Pair[K, V], n)
}

func (defaultAllocator[K, V]) FreeHashes(v []uintptr) {
}

func (defaultAllocator[K, V]) FreePairs(v []Pair[K, V]) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(t *RawTable[K, V]) {
	t.allocator = op.allocator
}

// WithAllocator is an option to specify the Allocator to use for a
// RawTable[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type dropHookOption[K comparable, V any] struct {
	onDrop func(key K, value V)
}

func (op dropHookOption[K, V]) apply(t *RawTable[K, V]) {
	t.onDrop = op.onDrop
}

// WithDropHook is an option to run a finalizer for every element the
// table still owns when it is discarded: each pair finalized by Close
// or by Drain.Stop is passed to the hook. Elements moved out through
// Take, IntoIter, or Drain.Next belong to the caller and are not
// passed.
func WithDropHook[K comparable, V any](onDrop func(key K, value V)) option[K, V] {
	return dropHookOption[K, V]{onDrop}
}
