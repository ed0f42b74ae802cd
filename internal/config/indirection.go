// Copyright (C) 2023 Patrice Congo <@congop>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "strings"

const (
	sysenvPrefix = "${sysenv."
	sysenvSuffix = "}"
)

// LookupEnvFunc has the signature of os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

// ResolveIndirection replaces a value of the form ${sysenv.NAME} by the
// value of the environment variable NAME. An unset variable resolves to the
// empty string. Any other value is returned as is.
func ResolveIndirection(value string, lookupEnv LookupEnvFunc) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) <= len(sysenvPrefix)+len(sysenvSuffix) ||
		!strings.HasPrefix(trimmed, sysenvPrefix) || !strings.HasSuffix(trimmed, sysenvSuffix) {
		return value
	}
	name := trimmed[len(sysenvPrefix) : len(trimmed)-len(sysenvSuffix)]
	if lookupEnv == nil {
		return ""
	}
	resolved, _ := lookupEnv(name)
	return resolved
}
