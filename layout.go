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
	"math/bits"
	"unsafe"
)

// AllocCause identifies why a table allocation was refused. All causes
// are detected before any memory is touched.
type AllocCause uint8

const (
	// CauseSizeOverflow indicates that sizing the combined hash+pair
	// footprint overflowed a uintptr.
	CauseSizeOverflow AllocCause = 1 + iota
	// CauseCapacityOverflow indicates that the independent
	// capacity*bucketSize cross-check failed.
	CauseCapacityOverflow
	// CauseAllocFailed indicates that the allocator itself reported
	// failure.
	CauseAllocFailed
)

func (c AllocCause) String() string {
	switch c {
	case CauseSizeOverflow:
		return "size overflow"
	case CauseCapacityOverflow:
		return "capacity overflow"
	case CauseAllocFailed:
		return "allocation failed"
	}
	return fmt.Sprintf("AllocCause(%d)", uint8(c))
}

// AllocError is returned by New (and Clone) when a table cannot be
// allocated. Allocation is the only fallible operation on a table; every
// failure is reported through this type rather than a panic so that
// callers can degrade gracefully under memory pressure.
type AllocError struct {
	Cause    AllocCause
	Capacity int
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("rawtable: cannot allocate table of capacity %d: %s", e.Capacity, e.Cause)
}

// roundUp rounds n up to the next multiple of align. align must be a
// power of two. The result wraps on overflow; callers that care check
// the bound first.
func roundUp(n, align uintptr) uintptr {
	if invariants {
		if align == 0 || align&(align-1) != 0 {
			panic(fmt.Sprintf("rawtable: alignment %d is not a power of two", align))
		}
	}
	return (n + align - 1) &^ (align - 1)
}

// offsets computes where the pair region begins within a combined
// buffer that places hashBytes of hash slots first, then padding up to
// pairAlign, then pairBytes of pair slots. end is the total number of
// bytes. overflow reports whether either computation wrapped.
func offsets(hashBytes, pairBytes, pairAlign uintptr) (pairOffset, end uintptr, overflow bool) {
	if hashBytes > ^uintptr(0)-(pairAlign-1) {
		return 0, 0, true
	}
	pairOffset = roundUp(hashBytes, pairAlign)
	if pairBytes > ^uintptr(0)-pairOffset {
		return pairOffset, 0, true
	}
	return pairOffset, pairOffset + pairBytes, false
}

// allocLayout folds the hash region's alignment into offsets, producing
// everything needed to request the combined buffer: the buffer's
// required alignment, the offset of the pair region (the hash region is
// always at offset 0), and the total size.
func allocLayout(hashBytes, hashAlign, pairBytes, pairAlign uintptr) (allocAlign, pairOffset, size uintptr, overflow bool) {
	allocAlign = hashAlign
	if pairAlign > allocAlign {
		allocAlign = pairAlign
	}
	pairOffset, size, overflow = offsets(hashBytes, pairBytes, pairAlign)
	return allocAlign, pairOffset, size, overflow
}

// tableLayout sizes the combined footprint for a table of the given
// nonzero capacity. Every multiplication and the final sum is
// overflow-checked; a capacity-0 table bypasses this entirely and never
// allocates.
func tableLayout[K comparable, V any](capacity uintptr) (allocAlign, pairOffset, size uintptr, overflow bool) {
	var (
		hashSize  = unsafe.Sizeof(uintptr(0))
		hashAlign = unsafe.Alignof(uintptr(0))
		pairSize  = unsafe.Sizeof(Pair[K, V]{})
		pairAlign = unsafe.Alignof(Pair[K, V]{})
	)
	hashHi, hashBytes := bits.Mul(uint(capacity), uint(hashSize))
	pairHi, pairBytes := bits.Mul(uint(capacity), uint(pairSize))
	if hashHi != 0 || pairHi != 0 {
		return 0, 0, 0, true
	}
	return allocLayout(uintptr(hashBytes), hashAlign, uintptr(pairBytes), pairAlign)
}

// checkBucketSize is the secondary, independent overflow cross-check
// performed before allocating: capacity*(hashSize+pairSize) must itself
// be representable and must not exceed the combined size computed by
// tableLayout. A wrong-sized buffer must never be requested silently.
func checkBucketSize[K comparable, V any](capacity, size uintptr) bool {
	bucketSize := unsafe.Sizeof(uintptr(0)) + unsafe.Sizeof(Pair[K, V]{})
	hi, lo := bits.Mul(uint(capacity), uint(bucketSize))
	return hi == 0 && uintptr(lo) <= size
}
