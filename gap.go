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

// GapThenFull pairs two adjacent proven positions during backward-shift
// deletion: an empty gap and the full bucket immediately after it. The
// table uses no tombstones; removing an element instead shifts the
// following cluster members back one slot, which is driven by repeated
// Shift calls on this pair.
type GapThenFull[K comparable, V any] struct {
	gap  EmptyBucket[K, V]
	full FullBucket[K, V]
}

// Gap returns the proven-empty side of the pair.
func (g GapThenFull[K, V]) Gap() EmptyBucket[K, V] {
	return g.gap
}

// Full returns the proven-full side of the pair. Callers deciding
// whether to keep shifting inspect its displacement: shifting a
// displacement-0 bucket would move it before its own ideal slot and
// break its reachability.
func (g GapThenFull[K, V]) Full() FullBucket[K, V] {
	return g.full
}

// GapPeek peeks the slot after the gap. If it is full there is
// something to shift and ok is true; if it is empty the cluster has
// ended, nothing follows the gap, and ok is false (the plain next
// cursor is e.Bucket().Next()).
func (e EmptyBucket[K, V]) GapPeek() (g GapThenFull[K, V], ok bool) {
	next := e.b.Next()
	full, isFull := next.Peek().(FullBucket[K, V])
	if !isFull {
		return g, false
	}
	return GapThenFull[K, V]{gap: e, full: full}, true
}

// Shift moves the full bucket's hash and pair into the gap, clears the
// vacated slot to empty, and peeks past it: the vacated position
// becomes the new gap, and ok reports whether another full bucket
// follows it (continue the chain) or an empty slot terminated it.
// Occupancy count is unchanged; the element only moved.
//
// Each step moves one cluster member exactly one slot closer to its
// ideal index, so no surviving element's probe distance ever grows and
// forward reachability is preserved once the chain terminates.
func (g GapThenFull[K, V]) Shift() (GapThenFull[K, V], bool) {
	gapHash, gapPair := g.gap.b.raw.hashPair()
	fullHash, fullPair := g.full.b.raw.hashPair()
	*gapHash = *fullHash
	*gapPair = *fullPair
	*fullHash = emptyHash
	// Clear the vacated pair so it holds no stale references.
	*fullPair = Pair[K, V]{}
	if debug {
		fmt.Printf("shift: %d -> %d\n", g.full.b.raw.idx, g.gap.b.raw.idx)
	}
	return EmptyBucket[K, V]{g.full.b}.GapPeek()
}
