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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// device is the narrow interface the block I/O primitives (readBlock,
// writeBlock, eraseBlock) need from an opened MTD character device. The
// real implementation, charDevice, talks to /dev/mtd/mtd<N> through the
// four ioctls in §6; tests substitute a simulated device (see
// testdevice_test.go) that can inject bad blocks, ECC events and verify
// failures without touching real hardware.
type device interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer

	eraseBlock(start, length uint32) error
	badBlock(offset int64) (bool, error)
	eccStats() (EccStats, error)
}

// DeviceDir is the directory under which MTD character devices appear,
// conventionally /dev/mtd. Overridable for tests and for hosts that
// remap device nodes.
var DeviceDir = "/dev/mtd"

func devicePath(index int) string {
	return filepath.Join(DeviceDir, fmt.Sprintf("mtd%d", index))
}

// charDevice wraps a real MTD character device file, retrying every
// blocking call transparently on EINTR (§5).
type charDevice struct {
	f *os.File
}

func openCharDevice(index int, readWrite bool) (*charDevice, error) {
	flag := os.O_RDONLY
	if readWrite {
		flag = os.O_RDWR
	}
	path := devicePath(index)
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "mtd: failed to open %s", path)
	}
	return &charDevice{f: f}, nil
}

func (d *charDevice) Read(p []byte) (n int, err error) {
	err = retryEINTR(func() error {
		var e error
		n, e = d.f.Read(p)
		return e
	})
	return n, err
}

func (d *charDevice) Write(p []byte) (n int, err error) {
	err = retryEINTR(func() error {
		var e error
		n, e = d.f.Write(p)
		return e
	})
	return n, err
}

func (d *charDevice) Seek(offset int64, whence int) (pos int64, err error) {
	err = retryEINTR(func() error {
		var e error
		pos, e = d.f.Seek(offset, whence)
		return e
	})
	return pos, err
}

func (d *charDevice) Close() error {
	return d.f.Close()
}

func (d *charDevice) eraseBlock(start, length uint32) error {
	return memEraseIoctl(d.f.Fd(), start, length)
}

func (d *charDevice) badBlock(offset int64) (bool, error) {
	return memGetBadBlockIoctl(d.f.Fd(), offset)
}

func (d *charDevice) eccStats() (EccStats, error) {
	return eccGetStatsIoctl(d.f.Fd())
}

// memGetInfo queries the device's geometry directly from the kernel via
// MEMGETINFO, independent of whatever the registry's /proc/mtd or sysfs
// scan recorded. Used by PartitionInfo (§6).
func memGetInfo(index int) (size, eraseSize, writeSize uint32, err error) {
	d, err := openCharDevice(index, false)
	if err != nil {
		return 0, 0, 0, err
	}
	defer d.Close()
	return memGetInfoIoctl(d.f.Fd())
}
