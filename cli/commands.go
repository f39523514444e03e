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
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mendersoftware/progressbar"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sys/unix"

	"github.com/flashkit/mtdflash/mtd"
)

func (opts *runOptions) scanCommand() *cli.Command {
	var useSysfs bool
	return &cli.Command{
		Name:  "scan",
		Usage: "list the MTD partitions the kernel currently reports",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "sysfs",
				Usage:       "scan /sys/class/mtd instead of /proc/mtd",
				Destination: &useSysfs,
			},
		},
		Action: func(ctx *cli.Context) error {
			if _, err := opts.loadConfig(); err != nil {
				return err
			}

			var (
				count int
				err   error
			)
			if useSysfs {
				count, err = mtd.DefaultRegistry.ScanSysfs()
			} else {
				count, err = mtd.Scan()
			}
			if err != nil {
				return err
			}

			log.Infof("found %d partitions", count)
			for _, p := range mtd.Partitions() {
				fmt.Fprintln(ctx.App.Writer, p.String())
			}
			return nil
		},
	}
}

func (opts *runOptions) resolvePartition(name string) (*mtd.Partition, error) {
	if _, err := mtd.Scan(); err != nil {
		return nil, err
	}
	p, ok := mtd.FindByName(name)
	if !ok {
		return nil, mtd.ErrNotFound
	}
	return p, nil
}

func (opts *runOptions) catCommand() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "stream a partition's contents to stdout",
		ArgsUsage: "<partition-name>",
		Action: func(ctx *cli.Context) error {
			if _, err := opts.loadConfig(); err != nil {
				return err
			}
			name := ctx.Args().First()
			if name == "" {
				return cli.ShowCommandHelp(ctx, "cat")
			}

			// Refuse to splat a binary partition dump onto an
			// interactive terminal; expected to fail with ENOTTY
			// when stdout is redirected to a file or pipe.
			if _, err := unix.IoctlGetTermios(int(os.Stdout.Fd()), unix.TCGETS); err == nil {
				return errDumpTerminal
			}

			part, err := opts.resolvePartition(name)
			if err != nil {
				return err
			}
			r, err := mtd.OpenReader(part)
			if err != nil {
				return err
			}
			defer r.Close()

			buf := make([]byte, part.EraseSize())
			remaining := int64(part.Size())
			for remaining > 0 {
				chunk := buf
				if int64(len(chunk)) > remaining {
					chunk = chunk[:remaining]
				}
				n, err := io.ReadFull(r, chunk)
				if n > 0 {
					if _, werr := ctx.App.Writer.Write(chunk[:n]); werr != nil {
						return werr
					}
				}
				if err != nil {
					return err
				}
				remaining -= int64(n)
			}
			return nil
		},
	}
}

func (opts *runOptions) writeCommand() *cli.Command {
	return &cli.Command{
		Name:      "write",
		Usage:     "flash a file onto a partition, erasing and verifying as it goes",
		ArgsUsage: "<partition-name> <path-to-image>",
		Action: func(ctx *cli.Context) error {
			if _, err := opts.loadConfig(); err != nil {
				return err
			}
			name := ctx.Args().Get(0)
			imagePath := ctx.Args().Get(1)
			if name == "" || imagePath == "" {
				return cli.ShowCommandHelp(ctx, "write")
			}

			src, err := os.Open(imagePath)
			if err != nil {
				return errors.Wrapf(err, "mtdflash: could not open %s", imagePath)
			}
			defer src.Close()

			info, err := src.Stat()
			if err != nil {
				return err
			}

			part, err := opts.resolvePartition(name)
			if err != nil {
				return err
			}
			if uint64(info.Size()) > part.Size() {
				return errors.Errorf(
					"mtdflash: image is %d bytes, larger than partition %s (%d bytes)",
					info.Size(), name, part.Size())
			}

			w, err := mtd.OpenWriter(part)
			if err != nil {
				return err
			}
			defer w.Close()

			bar := progressbar.New(info.Size())
			buf := make([]byte, part.EraseSize())
			for {
				n, rerr := src.Read(buf)
				if n > 0 {
					if _, werr := w.Write(buf[:n]); werr != nil {
						return werr
					}
					bar.Tick(int64(n))
				}
				if rerr == io.EOF {
					break
				}
				if rerr != nil {
					return rerr
				}
			}
			bar.Finish()

			if n := w.Ledger().Len(); n > 0 {
				log.Warnf("mtdflash: skipped %d bad block(s) while writing %s", n, name)
				for _, offset := range w.Ledger().Offsets() {
					log.Warnf("mtdflash: skipped block at %#x", offset)
				}
			}
			return nil
		},
	}
}

func (opts *runOptions) eraseCommand() *cli.Command {
	var count int
	return &cli.Command{
		Name:      "erase",
		Usage:     "bulk-erase a partition without writing or verifying",
		ArgsUsage: "<partition-name>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "count",
				Usage:       "number of erase blocks to erase; negative erases to the end",
				Value:       -1,
				Destination: &count,
			},
		},
		Action: func(ctx *cli.Context) error {
			if _, err := opts.loadConfig(); err != nil {
				return err
			}
			name := ctx.Args().First()
			if name == "" {
				return cli.ShowCommandHelp(ctx, "erase")
			}

			part, err := opts.resolvePartition(name)
			if err != nil {
				return err
			}
			w, err := mtd.OpenWriter(part)
			if err != nil {
				return err
			}
			defer w.Close()

			pos, err := w.EraseBlocks(count)
			if err != nil {
				return err
			}
			log.Infof("mtdflash: erased %s up to offset %#x", name, pos)
			return nil
		},
	}
}
