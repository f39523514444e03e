// Copyright 2020 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.
package mtd

// BadBlockLedger is the per-write-session, append-only record of
// partition offsets that were skipped because they were pre-marked bad
// or failed verify. Go's append already amortizes growth the way the
// source's hand-rolled 0→1→3→7→15… doubling does; this type exists so
// the ledger is a named, independently testable component (§4.E) rather
// than a bare field on Writer.
type BadBlockLedger struct {
	offsets []int64
}

// add appends offset to the ledger.
func (l *BadBlockLedger) add(offset int64) {
	l.offsets = append(l.offsets, offset)
}

// Offsets returns the recorded offsets, in the order they were skipped.
// The returned slice is owned by the ledger and must not be modified.
func (l *BadBlockLedger) Offsets() []int64 {
	return l.offsets
}

// Len returns the number of skipped offsets recorded so far.
func (l *BadBlockLedger) Len() int {
	return len(l.offsets)
}
