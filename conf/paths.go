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

// DefaultConfFile is the tool's configuration file, the default value of
// the --config flag. It is loaded by each subcommand after the global
// flags have been parsed.
var DefaultConfFile = "/etc/mtdflash/mtdflash.conf"

// DefaultFallbackConfFile is consulted when DefaultConfFile does not
// exist or is missing a field; values there are overridden by
// DefaultConfFile for any field present in both.
var DefaultFallbackConfFile = "/var/lib/mtdflash/mtdflash.conf"
