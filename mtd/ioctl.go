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
	"unsafe"

	"golang.org/x/sys/unix"
)

// MTD ioctl request codes, from <mtd/mtd-abi.h>: _IOR/_IOW encode
// direction, size and a 'M' type byte into the request value.
const (
	reqMemGetInfo     = 0x80204d01 // _IOR('M', 1, struct mtd_info_user)
	reqMemErase       = 0x40084d02 // _IOW('M', 2, struct erase_info_user)
	reqMemGetBadBlock = 0x40084d0b // _IOW('M', 11, __kernel_loff_t)
	reqEccGetStats    = 0x80104d12 // _IOR('M', 18, struct mtd_ecc_stats)
)

// mtdInfoUser mirrors struct mtd_info_user from <mtd/mtd-abi.h>.
type mtdInfoUser struct {
	Type      uint8
	_         [3]byte
	Flags     uint32
	Size      uint32
	EraseSize uint32
	WriteSize uint32
	OobSize   uint32
	Padding   uint64
}

// eraseInfoUser mirrors struct erase_info_user.
type eraseInfoUser struct {
	Start  uint32
	Length uint32
}

// mtdEccStats mirrors struct mtd_ecc_stats.
type mtdEccStats struct {
	Corrected uint32
	Failed    uint32
	BadBlocks uint32
	BbtBlocks uint32
}

// EccStats is the subset of the kernel's cumulative ECC counters the
// read path monitors, sampled before and after a block read.
type EccStats struct {
	Corrected uint32
	Failed    uint32
}

// retryEINTR reissues fn for as long as it reports EINTR, per the
// suspension-point requirement in the concurrency model: every blocking
// kernel call must transparently survive a spurious signal interruption.
func retryEINTR(fn func() error) error {
	for {
		err := fn()
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// ioctl issues a single ioctl(2) against fd, retrying transparently on
// EINTR, and returns the syscall's raw return value together with any
// non-interrupt error.
func ioctl(fd uintptr, request uintptr, arg unsafe.Pointer) (uintptr, error) {
	var ret uintptr
	err := retryEINTR(func() error {
		r1, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, request, uintptr(arg))
		ret = r1
		if errno != 0 {
			return errno
		}
		return nil
	})
	return ret, err
}

func memGetInfoIoctl(fd uintptr) (size, eraseSize, writeSize uint32, err error) {
	var info mtdInfoUser
	_, err = ioctl(fd, reqMemGetInfo, unsafe.Pointer(&info))
	if err != nil {
		return 0, 0, 0, err
	}
	return info.Size, info.EraseSize, info.WriteSize, nil
}

func eccGetStatsIoctl(fd uintptr) (EccStats, error) {
	var stats mtdEccStats
	_, err := ioctl(fd, reqEccGetStats, unsafe.Pointer(&stats))
	if err != nil {
		return EccStats{}, err
	}
	return EccStats{Corrected: stats.Corrected, Failed: stats.Failed}, nil
}

func memEraseIoctl(fd uintptr, start, length uint32) error {
	info := eraseInfoUser{Start: start, Length: length}
	_, err := ioctl(fd, reqMemErase, unsafe.Pointer(&info))
	return err
}

// memGetBadBlockIoctl reports whether the erase block containing offset is
// a factory-marked bad block. A kernel that doesn't support bad-block
// awareness (EOPNOTSUPP) is reported as "not bad", matching the contract
// in §4.B.2: any other ioctl failure is reported as "bad" together with
// the error, since the driver couldn't positively clear the block for
// writing.
func memGetBadBlockIoctl(fd uintptr, offset int64) (bad bool, err error) {
	off := offset
	ret, err := ioctl(fd, reqMemGetBadBlock, unsafe.Pointer(&off))
	if err == unix.EOPNOTSUPP {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	return ret != 0, nil
}
