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
	"io/ioutil"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	sysfs "github.com/ungerik/go-sysfs"
)

// ProcMtdPath is the kernel's MTD summary file, conventionally
// /proc/mtd. Overridable so tests can point Scan at a fixture.
var ProcMtdPath = "/proc/mtd"

// defaultSlotCapacity mirrors the 32-slot array the source allocates up
// front; Registry grows past it transparently via append.
const defaultSlotCapacity = 32

var procMtdLine = regexp.MustCompile(`^mtd(\d+):\s*([0-9a-fA-F]+)\s+([0-9a-fA-F]+)\s+"([^"]*)"`)

var sysfsMtdName = regexp.MustCompile(`^mtd(\d+)$`)

type slot struct {
	occupied  bool
	partition Partition
}

// Registry holds the process-wide table of known MTD partitions, keyed
// by device index. It is not safe for concurrent use: a Scan mutates
// slots in place, and callers must not scan while a Reader or Writer
// holds a *Partition obtained from an earlier scan (§5).
type Registry struct {
	slots []slot
}

// NewRegistry returns an empty, unscanned registry.
func NewRegistry() *Registry {
	return &Registry{slots: make([]slot, defaultSlotCapacity)}
}

// DefaultRegistry is the package-wide registry instance, mirroring the
// single global g_mtd_state the source keeps. It is a convenience, not a
// requirement: construct your own *Registry if you need independent
// scan lifetimes.
var DefaultRegistry = NewRegistry()

// Scan reads and parses /proc/mtd (ProcMtdPath) and repopulates the
// registry in place, discarding any names held from a previous scan. It
// returns the number of partitions found, or ErrParseFailure if the
// summary could not be read.
func Scan() (int, error) { return DefaultRegistry.Scan() }

// FindByName looks up a partition by its exact, case-sensitive name.
func FindByName(name string) (*Partition, bool) { return DefaultRegistry.FindByName(name) }

func (r *Registry) ensureCapacity(index int) {
	for index >= len(r.slots) {
		r.slots = append(r.slots, slot{})
	}
}

func (r *Registry) reset() {
	for i := range r.slots {
		r.slots[i] = slot{}
	}
}

// Scan reads and parses ProcMtdPath. See the package-level Scan for
// details.
func (r *Registry) Scan() (int, error) {
	body, err := ioutil.ReadFile(ProcMtdPath)
	if err != nil {
		log.Errorf("mtd: could not read %s: %v", ProcMtdPath, err)
		return -1, ErrParseFailure
	}

	r.reset()
	count := 0

	for _, line := range strings.Split(string(body), "\n") {
		m := procMtdLine.FindStringSubmatch(line)
		if m == nil {
			// Header line, or a malformed record; skipped silently
			// as the source does.
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		size, err := strconv.ParseUint(m[2], 16, 64)
		if err != nil {
			continue
		}
		eraseSize, err := strconv.ParseUint(m[3], 16, 32)
		if err != nil {
			continue
		}

		r.ensureCapacity(index)
		r.slots[index] = slot{
			occupied: true,
			partition: Partition{
				index:     index,
				size:      size,
				eraseSize: uint32(eraseSize),
				name:      m[4],
			},
		}
		count++
	}

	return count, nil
}

// ScanSysfs is an alternate discovery path that reads partition
// geometry from /sys/class/mtd/mtd<N>/{size,erasesize,name} instead of
// parsing /proc/mtd as one blob (SPEC_FULL §4.A). It is useful on hosts
// where /proc is restricted but sysfs is mounted normally.
func (r *Registry) ScanSysfs() (int, error) {
	mtdClass := sysfs.Class.Object("mtd")
	if !mtdClass.Exists() {
		return -1, ErrParseFailure
	}

	r.reset()
	count := 0

	for _, obj := range mtdClass.SubObjects() {
		m := sysfsMtdName.FindStringSubmatch(obj.Name())
		if m == nil {
			// Skips the matching "mtd<N>ro" read-only alias objects
			// sysfs also exposes alongside each real device.
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		size, err := obj.Attribute("size").ReadUint64()
		if err != nil {
			log.Warnf("mtd: sysfs scan: could not read size of %s: %v", obj, err)
			continue
		}
		eraseSize, err := obj.Attribute("erasesize").ReadUint64()
		if err != nil {
			log.Warnf("mtd: sysfs scan: could not read erasesize of %s: %v", obj, err)
			continue
		}
		name, err := obj.Attribute("name").Read()
		if err != nil {
			log.Warnf("mtd: sysfs scan: could not read name of %s: %v", obj, err)
			continue
		}

		r.ensureCapacity(index)
		r.slots[index] = slot{
			occupied: true,
			partition: Partition{
				index:     index,
				size:      size,
				eraseSize: uint32(eraseSize),
				name:      strings.TrimRight(name, "\r\n"),
			},
		}
		count++
	}

	return count, nil
}

// FindByName returns the first occupied slot whose name exactly matches,
// or (nil, false) if none does.
func (r *Registry) FindByName(name string) (*Partition, bool) {
	for i := range r.slots {
		if r.slots[i].occupied && r.slots[i].partition.name == name {
			return &r.slots[i].partition, true
		}
	}
	return nil, false
}

// Partitions returns every occupied slot from the most recent scan, in
// ascending index order.
func (r *Registry) Partitions() []*Partition {
	var out []*Partition
	for i := range r.slots {
		if r.slots[i].occupied {
			out = append(out, &r.slots[i].partition)
		}
	}
	return out
}

// Partitions returns DefaultRegistry.Partitions().
func Partitions() []*Partition { return DefaultRegistry.Partitions() }

// PartitionInfo re-queries the live kernel geometry for p via MEMGETINFO,
// rather than trusting whatever the registry scan recorded. It exists
// for callers who want to detect a partition table that has drifted
// from the live kernel view (SPEC_FULL §6).
func PartitionInfo(p *Partition) (total, eraseSize, writeSize uint32, err error) {
	return memGetInfo(p.index)
}

