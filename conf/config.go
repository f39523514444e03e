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
package conf

import (
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/flashkit/mtdflash/mtd"
)

// Config holds the tool-wide settings that are not better expressed as a
// flag on an individual subcommand: the paths a Registry scan and the
// device open consult.
type Config struct {
	// ProcMtdPath overrides mtd.ProcMtdPath when non-empty.
	ProcMtdPath string
	// SysfsRoot, if set, is exported as SYSFS_ROOT so the go-sysfs
	// walk used by Registry.ScanSysfs can be redirected at a
	// fixture tree in integration tests.
	SysfsRoot string
	// DeviceDir overrides mtd.DeviceDir when non-empty.
	DeviceDir string
}

// NewConfig returns a Config with no overrides: the mtd package's own
// defaults (/proc/mtd, /dev/mtd) apply.
func NewConfig() *Config {
	return &Config{}
}

// LoadConfig parses the tool's JSON configuration files and applies any
// path overrides found there to the mtd package's package-level path
// variables. Either or both files may be absent; if neither exists, the
// built-in defaults are used and no error is returned. The main config file takes priority over the fallback
// for any field present in both.
func LoadConfig(mainConfigFile, fallbackConfigFile string) (*Config, error) {
	config := NewConfig()
	var filesLoadedCount int

	if err := loadConfigFile(fallbackConfigFile, config, &filesLoadedCount); err != nil {
		return nil, err
	}
	if err := loadConfigFile(mainConfigFile, config, &filesLoadedCount); err != nil {
		return nil, err
	}
	if filesLoadedCount == 0 {
		log.Debug("conf: no configuration file present, using defaults")
		return config, nil
	}

	config.apply()
	return config, nil
}

func (c *Config) apply() {
	if c.ProcMtdPath != "" {
		mtd.ProcMtdPath = c.ProcMtdPath
	}
	if c.DeviceDir != "" {
		mtd.DeviceDir = c.DeviceDir
	}
	if c.SysfsRoot != "" {
		os.Setenv("SYSFS_ROOT", c.SysfsRoot)
	}
}

func loadConfigFile(configFile string, config *Config, filesLoadedCount *int) error {
	if configFile == "" {
		return nil
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Debug("conf: configuration file does not exist: ", configFile)
		return nil
	}

	body, err := ioutil.ReadFile(configFile)
	if err != nil {
		return errors.Wrapf(err, "conf: error reading %s", configFile)
	}
	if err := json.Unmarshal(body, config); err != nil {
		return errors.Wrapf(err, "conf: error parsing %s", configFile)
	}

	*filesLoadedCount++
	log.Info("conf: loaded configuration file: ", configFile)
	return nil
}

// SaveConfig writes config to filename as indented JSON, the format
// LoadConfig reads back.
func SaveConfig(config *Config, filename string) error {
	body, err := json.MarshalIndent(config, "", "    ")
	if err != nil {
		return errors.Wrap(err, "conf: error encoding configuration to JSON")
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "conf: error opening configuration file")
	}
	defer f.Close()

	if _, err := f.Write(body); err != nil {
		return errors.Wrap(err, "conf: error writing configuration file")
	}
	return nil
}
