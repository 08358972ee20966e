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

import "fmt"

// RawBucket is an unchecked address calculator for one slot: the two
// region bases plus an index. It is freely copyable and owns nothing.
// It performs no validation; all checking lives in the typed views
// above it.
type RawBucket[K comparable, V any] struct {
	hashes unsafeSlice[uintptr]
	pairs  unsafeSlice[Pair[K, V]]
	idx    uintptr
}

// hash returns the address of the slot's hash word.
func (r RawBucket[K, V]) hash() *uintptr {
	return r.hashes.At(r.idx)
}

// pair returns the address of the slot's pair.
func (r RawBucket[K, V]) pair() *Pair[K, V] {
	return r.pairs.At(r.idx)
}

// hashPair returns both addresses together.
func (r RawBucket[K, V]) hashPair() (*uintptr, *Pair[K, V]) {
	return r.hash(), r.pair()
}

// Bucket is a cursor over one slot of a table. It makes no claim about
// the slot's occupancy; Peek produces the typed view that does.
type Bucket[K comparable, V any] struct {
	t   *RawTable[K, V]
	raw RawBucket[K, V]
}

// Index returns the cursor's slot index.
func (b Bucket[K, V]) Index() uintptr {
	return b.raw.idx
}

// Next returns the cursor advanced by one slot, wrapping at the end of
// the table.
func (b Bucket[K, V]) Next() Bucket[K, V] {
	b.raw.idx = (b.raw.idx + 1) & b.t.capacityMask
	return b
}

// Prev returns the cursor moved back by one slot, wrapping at the start
// of the table.
func (b Bucket[K, V]) Prev() Bucket[K, V] {
	b.raw.idx = (b.raw.idx - 1) & b.t.capacityMask
	return b
}

// Peek reads the slot's hash word and returns the matching typed view:
// an EmptyBucket for the zero sentinel, a FullBucket otherwise. Every
// EmptyBucket and FullBucket in the system traces back to a Peek or to
// a Put/Take transition.
func (b Bucket[K, V]) Peek() Entry[K, V] {
	if *b.raw.hash() == emptyHash {
		return EmptyBucket[K, V]{b}
	}
	return FullBucket[K, V]{b}
}

// Entry is the occupancy-typed view of a slot: either an EmptyBucket or
// a FullBucket. The interface is sealed; values are produced only by
// Peek and by the Put/Take transitions.
type Entry[K comparable, V any] interface {
	// Bucket returns the untyped cursor underneath the view.
	Bucket() Bucket[K, V]

	sealed()
}

// EmptyBucket is a slot proven empty by Peek. Its pair slot is
// uninitialized and must not be read.
type EmptyBucket[K comparable, V any] struct {
	b Bucket[K, V]
}

// Bucket returns the untyped cursor underneath the view.
func (e EmptyBucket[K, V]) Bucket() Bucket[K, V] {
	return e.b
}

func (EmptyBucket[K, V]) sealed() {}

// Put writes the hash and pair into the empty slot and increments the
// table's occupancy count, returning the now-full view. The EmptyBucket
// is consumed: using it again after Put is a caller bug, caught under
// the invariants build tag.
func (e EmptyBucket[K, V]) Put(h SafeHash, key K, value V) FullBucket[K, V] {
	hp, pp := e.b.raw.hashPair()
	if invariants {
		if *hp != emptyHash {
			panic(fmt.Sprintf("rawtable: Put through a stale EmptyBucket at index %d", e.b.raw.idx))
		}
	}
	*hp = h.hash
	*pp = Pair[K, V]{key: key, value: value}
	e.b.t.used++
	if debug {
		fmt.Printf("put: index=%d hash=%016x used=%d\n", e.b.raw.idx, h.hash, e.b.t.used)
	}
	full := FullBucket[K, V]{e.b}
	e.b.t.checkInvariants()
	return full
}

// FullBucket is a slot proven occupied by Peek. Its pair slot is
// initialized.
type FullBucket[K comparable, V any] struct {
	b Bucket[K, V]
}

// Bucket returns the untyped cursor underneath the view.
func (f FullBucket[K, V]) Bucket() Bucket[K, V] {
	return f.b
}

func (FullBucket[K, V]) sealed() {}

// Hash returns the slot's stored hash.
func (f FullBucket[K, V]) Hash() SafeHash {
	if invariants {
		f.check("Hash")
	}
	return SafeHash{hash: *f.b.raw.hash()}
}

// Read borrows the slot's key and value without consuming the view. The
// key must not be mutated in a way that changes its hash.
func (f FullBucket[K, V]) Read() (*K, *V) {
	if invariants {
		f.check("Read")
	}
	p := f.b.raw.pair()
	return &p.key, &p.value
}

// Replace swaps in a new hash and pair and hands back the old ones.
// Occupancy is unchanged, so the view remains valid.
func (f FullBucket[K, V]) Replace(h SafeHash, key K, value V) (SafeHash, K, V) {
	if invariants {
		f.check("Replace")
	}
	hp, pp := f.b.raw.hashPair()
	oldHash := SafeHash{hash: *hp}
	oldKey, oldValue := pp.key, pp.value
	*hp = h.hash
	*pp = Pair[K, V]{key: key, value: value}
	if debug {
		fmt.Printf("replace: index=%d hash=%016x->%016x\n", f.b.raw.idx, oldHash.hash, h.hash)
	}
	f.b.t.checkInvariants()
	return oldHash, oldKey, oldValue
}

// Take moves the pair out, clears the slot to empty, and decrements the
// table's occupancy count, returning the now-empty view. The FullBucket
// is consumed.
//
// Take must only be called by the code holding the table's single
// exclusive handle, never through a stashed secondary cursor: taking a
// slot out from under another live cursor invalidates that cursor's
// occupancy proof.
func (f FullBucket[K, V]) Take() (EmptyBucket[K, V], K, V) {
	hp, pp := f.b.raw.hashPair()
	if invariants {
		f.check("Take")
	}
	key, value := pp.key, pp.value
	// Clearing the pair releases its references; the hash word going to
	// the sentinel is what marks the slot empty.
	*pp = Pair[K, V]{}
	*hp = emptyHash
	f.b.t.used--
	if debug {
		fmt.Printf("take: index=%d used=%d\n", f.b.raw.idx, f.b.t.used)
	}
	return EmptyBucket[K, V]{f.b}, key, value
}

// Displacement returns how far the slot sits from its stored hash's
// ideal index, modulo capacity. Zero marks the head of a probe cluster.
func (f FullBucket[K, V]) Displacement() uintptr {
	if invariants {
		f.check("Displacement")
	}
	ideal := *f.b.raw.hash() & f.b.t.capacityMask
	return (f.b.raw.idx - ideal) & f.b.t.capacityMask
}

func (f FullBucket[K, V]) check(op string) {
	if *f.b.raw.hash() == emptyHash {
		panic(fmt.Sprintf("rawtable: %s through a stale FullBucket at index %d", op, f.b.raw.idx))
	}
}
