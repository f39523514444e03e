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

import "fmt"

// Partition is an immutable descriptor for one kernel MTD slot. It is
// owned by a Registry and is only ever handed out by reference; readers
// and writers borrow it for the lifetime of their context.
type Partition struct {
	index     int
	size      uint64
	eraseSize uint32
	name      string
}

// Index returns the kernel MTD device number (the <N> in mtd<N>).
func (p *Partition) Index() int { return p.index }

// Size returns the total partition size in bytes. It is always a
// positive multiple of EraseSize.
func (p *Partition) Size() uint64 { return p.size }

// EraseSize returns the erase-block size in bytes.
func (p *Partition) EraseSize() uint32 { return p.eraseSize }

// Name returns the partition's label, as declared by the kernel.
func (p *Partition) Name() string { return p.name }

func (p *Partition) String() string {
	return fmt.Sprintf("mtd%d(%q, size=%d, erasesize=%d)", p.index, p.name, p.size, p.eraseSize)
}
