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

package loglevel

import (
	"strings"

	"golang.org/x/exp/slices"
)

// EnvKeys are looked up in order, the first non blank value wins.
var EnvKeys = []string{"ARTIFACTORY_PUBLISH_LOG", "LOG_LEVEL"}

const Default = "warn"

func envLogLevel(lookupEnv func(string) (string, bool)) string {
	for _, key := range EnvKeys {
		val, avail := lookupEnv(key)
		if !avail {
			continue
		}
		if val = strings.TrimSpace(val); val != "" {
			return val
		}
	}
	return ""
}

// FromEnv return the publisher log level setting from environment.
// Unsupported values are taken as a wish for verbosity and mapped to trace.
func FromEnv(lookupEnv func(string) (string, bool)) string {
	logLevel := strings.ToLower(envLogLevel(lookupEnv))
	if logLevel == "" {
		return Default
	}

	if !slices.Contains([]string{"error", "warn", "info", "debug", "trace"}, logLevel) {
		logLevel = "trace"
	}

	return logLevel
}
