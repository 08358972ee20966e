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

// emptyHash is the stored value of an unoccupied hash slot. SafeHash
// construction makes it impossible for a live entry to collide with it.
const emptyHash uintptr = 0

// hashTopBit is the reserved high bit of every stored hash.
const hashTopBit = ^(^uintptr(0) >> 1)

// Hasher computes the hash of a key. The table never chooses a hash
// function; callers supply one. The same signature is accepted by the
// comparable ecosystem map implementations, making hashers reusable
// across them.
type Hasher[K any] func(key *K, seed uintptr) uintptr

// SafeHash is a hash value that has been validated to be storable in a
// hash slot: it is guaranteed nonzero. The only way to produce one is
// MakeSafeHash (or reading it back out of an occupied slot), which is
// what lets the rest of the table equate "hash slot nonzero" with
// "pair slot initialized".
type SafeHash struct {
	hash uintptr
}

// MakeSafeHash validates raw by forcing its top bit to 1. One bit of
// entropy is sacrificed so that a stored hash can never equal the
// empty sentinel.
func MakeSafeHash(raw uintptr) SafeHash {
	return SafeHash{hash: raw | hashTopBit}
}

// Inspect returns the stored hash value.
func (h SafeHash) Inspect() uintptr {
	return h.hash
}

// MakeHash hashes key with the caller-supplied hasher and validates the
// result.
func MakeHash[K any](hash Hasher[K], seed uintptr, key *K) SafeHash {
	return MakeSafeHash(hash(key, seed))
}
