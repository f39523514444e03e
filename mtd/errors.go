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

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned by FindByName when no scanned partition
	// carries the requested name.
	ErrNotFound = errors.New("mtd: partition not found")

	// ErrParseFailure is returned by Scan/ScanSysfs when the kernel
	// summary could not be read. A summary with no matching records is
	// not a failure: the scan succeeds with a count of zero.
	ErrParseFailure = errors.New("mtd: failed to read or parse partition table")

	// ErrOutOfSpace is returned by the block primitives and the buffered
	// reader/writer when a partition is exhausted before a usable block
	// could be found.
	ErrOutOfSpace = errors.New("mtd: partition exhausted before a usable block was found")
)
