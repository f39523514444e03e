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
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/flashkit/mtdflash/conf"
)

const appDescription = "" +
	"mtdflash scans, reads and writes raw NAND/NOR partitions exposed " +
	"by the Linux MTD subsystem, transparently skipping bad blocks and " +
	"verifying every write (see list of commands below)."

var errDumpTerminal = fmt.Errorf("refusing to write binary partition data to a terminal")

type runOptions struct {
	configPath         string
	fallbackConfigPath string
	logLevel           string
}

// ShowVersion reports the tool version and the Go runtime it was built
// with, mirroring the teacher's version string convention.
func ShowVersion() string {
	return fmt.Sprintf("mtdflash\truntime: %s", runtime.Version())
}

// SetupCLI builds and runs the command-line application for args
// (conventionally os.Args).
func SetupCLI(args []string) error {
	opts := &runOptions{}

	app := &cli.App{
		Name:        "mtdflash",
		Usage:       "inspect and flash raw MTD partitions",
		Description: appDescription,
		Version:     ShowVersion(),
		Before:      opts.handleLogFlags,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "configuration `FILE` path",
				Value:       conf.DefaultConfFile,
				Destination: &opts.configPath,
			},
			&cli.StringFlag{
				Name:        "fallback-config",
				Usage:       "fallback configuration `FILE` path",
				Value:       conf.DefaultFallbackConfFile,
				Destination: &opts.fallbackConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Aliases:     []string{"l"},
				Usage:       "set logging `level` (debug, info, warning, error)",
				Value:       "info",
				Destination: &opts.logLevel,
			},
		},
		Commands: []*cli.Command{
			opts.scanCommand(),
			opts.catCommand(),
			opts.writeCommand(),
			opts.eraseCommand(),
		},
	}

	return app.Run(args)
}

func (opts *runOptions) handleLogFlags(ctx *cli.Context) error {
	level, err := log.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

func (opts *runOptions) loadConfig() (*conf.Config, error) {
	return conf.LoadConfig(opts.configPath, opts.fallbackConfigPath)
}
