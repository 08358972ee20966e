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

//go:build linux

package rawtable

import (
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
)

// benchCounters reports hardware counters (cycles, instructions, cache
// misses) per benchmark op where the kernel allows perf events.
type benchCounters struct {
	cs *perfbench.Counters
}

func startBenchCounters(b *testing.B) benchCounters {
	return benchCounters{cs: perfbench.Open(b)}
}

func (c benchCounters) stop() {
	c.cs.Stop()
}
