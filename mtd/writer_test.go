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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterSubBlockThenFlushOnFullBlock(t *testing.T) {
	dev := newFakeDevice(2*4096, 4096)
	part := testPartition(uint64(len(dev.data)), 4096)
	w := newWriter(part, dev)

	head := bytes.Repeat([]byte{0x01}, 10)
	n, err := w.Write(head)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	// Still buffered: the underlying device must not have been touched.
	assert.Equal(t, byte(0xFF), dev.data[0])

	rest := bytes.Repeat([]byte{0x01}, 4096-10)
	n, err = w.Write(rest)
	require.NoError(t, err)
	assert.Equal(t, len(rest), n)
	assert.Equal(t, bytes.Repeat([]byte{0x01}, 4096), dev.data[:4096])
}

func TestWriterDirectBlockPassthrough(t *testing.T) {
	dev := newFakeDevice(2*4096, 4096)
	part := testPartition(uint64(len(dev.data)), 4096)
	w := newWriter(part, dev)

	payload := bytes.Repeat([]byte{0x77}, 2*4096)
	n, err := w.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, dev.data)
}

func TestWriterLedgersBadBlocksAndContinues(t *testing.T) {
	dev := newFakeDevice(3*4096, 4096)
	dev.markBad(4096)
	part := testPartition(uint64(len(dev.data)), 4096)
	w := newWriter(part, dev)

	payload := bytes.Repeat([]byte{0x5C}, 2*4096)
	n, err := w.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.Equal(t, 1, w.Ledger().Len())
	assert.EqualValues(t, 4096, w.Ledger().Offsets()[0])
	assert.Equal(t, bytes.Repeat([]byte{0x5C}, 4096), dev.data[0:4096])
	assert.Equal(t, bytes.Repeat([]byte{0x5C}, 4096), dev.data[2*4096:3*4096])
}

func TestWriterCloseFlushesPartialTail(t *testing.T) {
	dev := newFakeDevice(4096, 4096)
	for i := range dev.data {
		dev.data[i] = 0xAB
	}
	part := testPartition(uint64(len(dev.data)), 4096)
	w := newWriter(part, dev)

	_, err := w.Write(bytes.Repeat([]byte{0x03}, 10))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.True(t, dev.closed)
	assert.Equal(t, bytes.Repeat([]byte{0x03}, 10), dev.data[:10],
		"Close must flush the buffered partial tail")
	for _, b := range dev.data[10:] {
		assert.Equal(t, byte(0x00), b, "the unwritten remainder of the flushed block must be zero-padded")
	}
}

func TestWriterEraseBlocksSkipsBadAndRepositions(t *testing.T) {
	dev := newFakeDevice(3*4096, 4096)
	dev.markBad(4096)
	for i := range dev.data {
		dev.data[i] = 0x44
	}
	part := testPartition(uint64(len(dev.data)), 4096)
	w := newWriter(part, dev)

	pos, err := w.EraseBlocks(3)
	require.NoError(t, err)
	assert.EqualValues(t, 3*4096, pos)
	for _, b := range dev.data[0:4096] {
		assert.Equal(t, byte(0xFF), b)
	}
	for _, b := range dev.data[4096:2*4096] {
		assert.Equal(t, byte(0x44), b, "bad block must be left untouched by a bulk erase")
	}
	for _, b := range dev.data[2*4096:3*4096] {
		assert.Equal(t, byte(0xFF), b)
	}

	cur, err := dev.Seek(0, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3*4096, cur, "device cursor must land exactly where EraseBlocks reports")
}

func TestWriterEraseBlocksOutOfSpace(t *testing.T) {
	dev := newFakeDevice(2*4096, 4096)
	part := testPartition(uint64(len(dev.data)), 4096)
	w := newWriter(part, dev)

	_, err := w.EraseBlocks(3)
	assert.Equal(t, ErrOutOfSpace, err)
}

func TestWriterEraseAt(t *testing.T) {
	dev := newFakeDevice(2*4096, 4096)
	for i := range dev.data {
		dev.data[i] = 0x22
	}
	part := testPartition(uint64(len(dev.data)), 4096)
	w := newWriter(part, dev)

	aligned, err := w.EraseAt(4096 + 5)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, aligned)
	for _, b := range dev.data[4096:2*4096] {
		assert.Equal(t, byte(0xFF), b)
	}
}
