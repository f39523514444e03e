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
	"io/ioutil"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashkit/mtdflash/mtd"
)

var testConfig = `{
  "ProcMtdPath": "/tmp/fixtures/mtd",
  "DeviceDir": "/tmp/fixtures/dev-mtd"
}`

var testBrokenConfig = `{
  "ProcMtdPath": "/tmp/fixtures/mtd
}`

func writeTempFile(t *testing.T, dir, name, content string) string {
	p := path.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadConfigNeitherFilePresent(t *testing.T) {
	dir := t.TempDir()
	config, err := LoadConfig(path.Join(dir, "main.conf"), path.Join(dir, "fallback.conf"))
	require.NoError(t, err)
	assert.Equal(t, "", config.ProcMtdPath)
}

func TestLoadConfigAppliesOverrides(t *testing.T) {
	prevProc, prevDev := mtd.ProcMtdPath, mtd.DeviceDir
	defer func() { mtd.ProcMtdPath, mtd.DeviceDir = prevProc, prevDev }()

	dir := t.TempDir()
	mainFile := writeTempFile(t, dir, "main.conf", testConfig)

	config, err := LoadConfig(mainFile, path.Join(dir, "missing.conf"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/fixtures/mtd", config.ProcMtdPath)
	assert.Equal(t, "/tmp/fixtures/mtd", mtd.ProcMtdPath)
	assert.Equal(t, "/tmp/fixtures/dev-mtd", mtd.DeviceDir)
}

func TestLoadConfigMainOverridesFallback(t *testing.T) {
	dir := t.TempDir()
	fallbackFile := writeTempFile(t, dir, "fallback.conf", `{"ProcMtdPath": "/fallback/mtd"}`)
	mainFile := writeTempFile(t, dir, "main.conf", `{"ProcMtdPath": "/main/mtd"}`)

	config, err := LoadConfig(mainFile, fallbackFile)
	require.NoError(t, err)
	assert.Equal(t, "/main/mtd", config.ProcMtdPath)
}

func TestLoadConfigBrokenJSON(t *testing.T) {
	dir := t.TempDir()
	mainFile := writeTempFile(t, dir, "main.conf", testBrokenConfig)

	_, err := LoadConfig(mainFile, path.Join(dir, "missing.conf"))
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	out := path.Join(dir, "saved.conf")

	config := &Config{ProcMtdPath: "/proc/mtd", DeviceDir: "/dev/mtd"}
	require.NoError(t, SaveConfig(config, out))

	loaded, err := LoadConfig(out, "")
	require.NoError(t, err)
	assert.Equal(t, config.ProcMtdPath, loaded.ProcMtdPath)
	assert.Equal(t, config.DeviceDir, loaded.DeviceDir)
}
