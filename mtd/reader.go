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

import "io"

// Reader presents a streaming byte-read surface over a partition,
// internally issuing whole-erase-block reads through readBlock and
// coalescing partial head/tail bytes through an owned scratch buffer
// (SPEC_FULL §4.C).
type Reader struct {
	partition *Partition
	dev       device
	scratch   []byte
	consumed  int // consumed == len(scratch) means the scratch is stale.
}

// OpenReader opens the partition's MTD character device read-only and
// returns a new Reader over it.
func OpenReader(partition *Partition) (*Reader, error) {
	dev, err := openCharDevice(partition.Index(), false)
	if err != nil {
		return nil, err
	}
	return newReader(partition, dev), nil
}

func newReader(partition *Partition, dev device) *Reader {
	eraseSize := int(partition.EraseSize())
	return &Reader{
		partition: partition,
		dev:       dev,
		scratch:   make([]byte, eraseSize),
		consumed:  eraseSize,
	}
}

// Read fills buf with exactly len(buf) bytes, or fails with whatever
// error the underlying block read surfaced. Like the source, Read only
// returns a partial count on failure; on success it always reads the
// full request.
func (r *Reader) Read(buf []byte) (int, error) {
	eraseSize := len(r.scratch)
	read := 0

	for read < len(buf) {
		if r.consumed < eraseSize {
			avail := eraseSize - r.consumed
			want := len(buf) - read
			copyLen := want
			if avail < copyLen {
				copyLen = avail
			}
			copy(buf[read:read+copyLen], r.scratch[r.consumed:r.consumed+copyLen])
			r.consumed += copyLen
			read += copyLen
		}

		for r.consumed == eraseSize && len(buf)-read >= eraseSize {
			if err := readBlock(r.dev, r.partition, buf[read:read+eraseSize]); err != nil {
				return read, err
			}
			read += eraseSize
		}

		if read >= len(buf) {
			return read, nil
		}

		if r.consumed == eraseSize {
			if err := readBlock(r.dev, r.partition, r.scratch); err != nil {
				return read, err
			}
			r.consumed = 0
		}
	}

	return read, nil
}

// ReadAt is a positional, unbuffered escape hatch: it seeks the device
// handle absolutely to offset and issues a single raw read, bypassing
// bad-block and ECC inspection entirely.
func (r *Reader) ReadAt(buf []byte, offset int64) (int, error) {
	if _, err := r.dev.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	return r.dev.Read(buf)
}

// Close closes the underlying device handle. It is safe to call exactly
// once.
func (r *Reader) Close() error {
	return r.dev.Close()
}
