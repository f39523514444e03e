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

import (
	"io"
)

// fakeDevice simulates an MTD character device entirely in memory, the
// same role the function-value stubs in the teacher's
// installer/block_device_test.go (makeBlockDeviceSize,
// makeBlockDeviceSectorSize) play for block-device geometry: it lets the
// block I/O primitives be exercised deterministically, including the
// failure modes (pre-marked bad blocks, ECC events, verify mismatches)
// that are impossible to script reliably against real hardware.
type fakeDevice struct {
	data []byte
	pos  int64

	eraseSize int

	badBlocks map[int64]bool

	// eccFailAt, if non-empty, maps an erase-block offset to the number
	// of additional reads of that block that should report an
	// uncorrectable ECC event before reporting clean.
	eccFailAt map[int64]int
	eccStat   EccStats

	// verifyFailAt maps an erase-block offset to the number of write
	// attempts at that offset that should fail verification before
	// succeeding.
	verifyFailAt map[int64]int

	closed bool
}

func newFakeDevice(size, eraseSize int) *fakeDevice {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF // erased NAND/NOR reads as all-ones.
	}
	return &fakeDevice{
		data:         data,
		eraseSize:    eraseSize,
		badBlocks:    make(map[int64]bool),
		eccFailAt:    make(map[int64]int),
		verifyFailAt: make(map[int64]int),
	}
}

func (d *fakeDevice) markBad(offset int64)                    { d.badBlocks[offset] = true }
func (d *fakeDevice) injectECCFailure(offset int64, n int)    { d.eccFailAt[offset] = n }
func (d *fakeDevice) injectVerifyFailure(offset int64, n int) { d.verifyFailAt[offset] = n }

func (d *fakeDevice) blockOffset() int64 {
	return d.pos - d.pos%int64(d.eraseSize)
}

// Read simulates an uncorrectable ECC event on the block being read, if
// one was injected at that offset and hasn't yet been exhausted. This is
// what readBlock's before/after ECCGETSTATS sampling will observe as a
// changed "failed" counter.
func (d *fakeDevice) Read(p []byte) (int, error) {
	if n, ok := d.eccFailAt[d.blockOffset()]; ok && n > 0 {
		d.eccStat.Failed++
		d.eccFailAt[d.blockOffset()] = n - 1
	}

	n := copy(p, d.data[d.pos:])
	d.pos += int64(n)
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// Write simulates a verify-readback mismatch by corrupting one stored
// byte, if a verify failure was injected at the block being written and
// hasn't yet been exhausted.
func (d *fakeDevice) Write(p []byte) (int, error) {
	off := d.blockOffset()
	n := copy(d.data[d.pos:], p)
	d.pos += int64(n)

	if rem, ok := d.verifyFailAt[off]; ok && rem > 0 && n > 0 {
		d.data[off] ^= 0xFF
		d.verifyFailAt[off] = rem - 1
	}

	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (d *fakeDevice) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		d.pos = offset
	case io.SeekCurrent:
		d.pos += offset
	case io.SeekEnd:
		d.pos = int64(len(d.data)) + offset
	}
	return d.pos, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDevice) eraseBlock(start, length uint32) error {
	for i := start; i < start+length; i++ {
		d.data[i] = 0xFF
	}
	return nil
}

func (d *fakeDevice) badBlock(offset int64) (bool, error) {
	return d.badBlocks[offset], nil
}

func (d *fakeDevice) eccStats() (EccStats, error) {
	return d.eccStat, nil
}
