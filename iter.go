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

// The cursors below share one walking scheme: advance forward from slot
// 0, skip empty hash words, and stop once the occupancy count captured
// at creation has been yielded. Iteration therefore costs O(len), not
// O(capacity), and a capacity-0 table is never dereferenced because its
// captured count is 0.
//
// None of the cursors is goroutine-safe, and mutating the table during
// iteration (other than through the cursor itself) invalidates the
// cursor.

// rawCursor holds the shared walk state.
type rawCursor[K comparable, V any] struct {
	t         *RawTable[K, V]
	idx       uintptr
	remaining int
}

// nextFull advances to the next occupied slot, or returns false when
// the captured count is exhausted.
func (c *rawCursor[K, V]) nextFull() (RawBucket[K, V], bool) {
	for c.remaining > 0 {
		i := c.idx
		c.idx++
		if *c.t.hashes.At(i) != emptyHash {
			c.remaining--
			return c.t.rawBucketAt(i), true
		}
	}
	return RawBucket[K, V]{}, false
}

// Iter is a read-only cursor over the table's occupied slots.
type Iter[K comparable, V any] struct {
	c rawCursor[K, V]
}

// Iter returns a cursor yielding each occupied slot's key and value.
func (t *RawTable[K, V]) Iter() Iter[K, V] {
	return Iter[K, V]{c: rawCursor[K, V]{t: t, remaining: t.used}}
}

// Next yields the next pair; ok is false once the elements present at
// the cursor's creation have all been seen.
func (it *Iter[K, V]) Next() (key K, value V, ok bool) {
	raw, ok := it.c.nextFull()
	if !ok {
		return key, value, false
	}
	p := raw.pair()
	return p.key, p.value, true
}

// IterMut is a cursor over the occupied slots that exposes each value
// by pointer for in-place mutation. Keys stay read-only; rewriting a
// key would desynchronize it from its stored hash.
type IterMut[K comparable, V any] struct {
	c rawCursor[K, V]
}

// IterMut returns a cursor yielding each occupied slot's key and a
// pointer to its value.
func (t *RawTable[K, V]) IterMut() IterMut[K, V] {
	return IterMut[K, V]{c: rawCursor[K, V]{t: t, remaining: t.used}}
}

// Next yields the next key and value pointer.
func (it *IterMut[K, V]) Next() (key K, value *V, ok bool) {
	raw, ok := it.c.nextFull()
	if !ok {
		return key, nil, false
	}
	p := raw.pair()
	return p.key, &p.value, true
}

// IntoIter is a consuming cursor: each yielded pair is moved out of the
// table, its slot cleared and the occupancy count decremented, so
// ownership of the element transfers to the caller and the drop hook is
// never run for it. The table must not be used afterward except to
// Close it, which finalizes only the elements the cursor did not reach.
type IntoIter[K comparable, V any] struct {
	c rawCursor[K, V]
}

// IntoIter returns a consuming cursor over the table.
func (t *RawTable[K, V]) IntoIter() IntoIter[K, V] {
	return IntoIter[K, V]{c: rawCursor[K, V]{t: t, remaining: t.used}}
}

// Next moves the next pair out of the table.
func (it *IntoIter[K, V]) Next() (key K, value V, ok bool) {
	raw, ok := it.c.nextFull()
	if !ok {
		return key, value, false
	}
	hp, pp := raw.hashPair()
	key, value = pp.key, pp.value
	*pp = Pair[K, V]{}
	*hp = emptyHash
	it.c.t.used--
	return key, value, true
}

// Drain empties the table as it yields: each slot is read and cleared
// and the occupancy count decremented, leaving the table valid and
// empty once the cursor is exhausted. Stop finishes the job for a
// partially consumed cursor, so a Drain never leaves stale occupied
// slots behind.
type Drain[K comparable, V any] struct {
	c rawCursor[K, V]
}

// Drain returns a cursor that removes every element it yields, leaving
// the table empty but reusable. Call Stop when abandoning the cursor
// before exhaustion.
func (t *RawTable[K, V]) Drain() Drain[K, V] {
	return Drain[K, V]{c: rawCursor[K, V]{t: t, remaining: t.used}}
}

// Next removes and yields the next pair.
func (d *Drain[K, V]) Next() (key K, value V, ok bool) {
	raw, ok := d.c.nextFull()
	if !ok {
		return key, value, false
	}
	hp, pp := raw.hashPair()
	key, value = pp.key, pp.value
	*pp = Pair[K, V]{}
	*hp = emptyHash
	d.c.t.used--
	return key, value, true
}

// Stop drains the unconsumed remainder, finalizing each element through
// the table's drop hook. It is a no-op on an exhausted cursor.
func (d *Drain[K, V]) Stop() {
	for {
		raw, ok := d.c.nextFull()
		if !ok {
			return
		}
		hp, pp := raw.hashPair()
		if t := d.c.t; t.onDrop != nil {
			t.onDrop(pp.key, pp.value)
		}
		*pp = Pair[K, V]{}
		*hp = emptyHash
		d.c.t.used--
	}
}
