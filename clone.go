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

// Clone returns an independent same-capacity copy of the table,
// carrying the same allocator, drop hook, and tag. Hash words are
// copied verbatim; pair slots are copied only where their hash word is
// nonzero, so uninitialized pair memory is never touched. The occupancy
// count is copied last. Keys and values are shallow copies.
//
// Allocating the copy can fail the same ways New can.
func (t *RawTable[K, V]) Clone() (*RawTable[K, V], error) {
	c, err := New[K, V](t.Capacity(),
		WithAllocator[K, V](t.allocator), WithDropHook[K, V](t.onDrop))
	if err != nil {
		return nil, err
	}
	c.tag = t.tag

	for i, capacity := uintptr(0), t.capacity(); i < capacity; i++ {
		h := *t.hashes.At(i)
		*c.hashes.At(i) = h
		if h != emptyHash {
			*c.pairs.At(i) = *t.pairs.At(i)
		}
	}
	c.used = t.used
	c.checkInvariants()
	return c, nil
}
