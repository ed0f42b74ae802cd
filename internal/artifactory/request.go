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

package artifactory

import (
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/congop/artifactory-publish/internal/opaque"
	"github.com/pkg/errors"
)

// UploadRequest describes a single firmware publish.
// It is built once per invocation and not changed afterwards.
type UploadRequest struct {
	SourcePath        string // local binary to upload
	RepositoryBaseUrl string // e.g. https://example.jfrog.io
	RepositoryName    string
	Organization      string
	Module            string
	Version           int
	ApiToken          opaque.String // bearer credential
}

// ArtifactFileName returns <module>-<version>.bin, version as plain decimal.
func (req UploadRequest) ArtifactFileName() string {
	return ArtifactFileName(req.Module, req.Version)
}

func ArtifactFileName(module string, version int) string {
	return module + "-" + strconv.Itoa(version) + ".bin"
}

// UploadUrl returns <base>/artifactory/<repository>/<organization>/<module>/<file-name>.
func (req UploadRequest) UploadUrl() string {
	return JoinUrl(req.RepositoryBaseUrl,
		"artifactory", req.RepositoryName, req.Organization, req.Module, req.ArtifactFileName())
}

// JoinUrl joins base and segments with exactly one slash between them.
// Blank segments are skipped; segments are not escaped.
func JoinUrl(base string, segments ...string) string {
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, strings.TrimRight(strings.TrimSpace(base), "/"))
	for _, seg := range segments {
		if seg = strings.Trim(seg, "/"); seg != "" {
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/")
}

// Validate checks the preconditions of a publish, no network activity involved.
// The first failing check is returned.
func (req UploadRequest) Validate() error {
	if err := CheckSource(req.SourcePath); err != nil {
		return err
	}
	if err := CheckBaseUrl(req.RepositoryBaseUrl); err != nil {
		return err
	}
	if err := CheckVersion(req.Version); err != nil {
		return err
	}
	for _, field := range []struct{ key, value string }{
		{"repository", req.RepositoryName},
		{"organization", req.Organization},
		{"module", req.Module},
	} {
		if strings.TrimSpace(field.value) == "" {
			return newError(InvalidRequest, nil, "%s must not be blank", field.key)
		}
	}
	if req.ApiToken.IsBlank() {
		return newError(InvalidRequest, nil, "api_token must not be blank")
	}
	return nil
}

// CheckSource fails with InvalidSource unless path names an existing, readable regular file.
func CheckSource(path string) error {
	if strings.TrimSpace(path) == "" {
		return newError(InvalidSource, nil, "source path must not be blank")
	}
	info, err := os.Stat(path)
	if err != nil {
		return newError(InvalidSource, errors.WithStack(err), "%s is not a valid file path", path)
	}
	if !info.Mode().IsRegular() {
		return newError(InvalidSource, nil, "%s is not a regular file: mode=%s", path, info.Mode())
	}
	f, err := os.Open(path)
	if err != nil {
		return newError(InvalidSource, errors.WithStack(err), "%s is not readable", path)
	}
	if err := f.Close(); err != nil {
		return newError(InvalidSource, errors.WithStack(err), "%s is not readable", path)
	}
	return nil
}

// CheckBaseUrl fails with InvalidUrl unless raw is an absolute http(s) url with a host
// and neither query nor fragment.
func CheckBaseUrl(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return newError(InvalidUrl, errors.WithStack(err), "%s is not a valid URL", raw)
	}
	if u.Scheme == "" || u.Host == "" {
		return newError(InvalidUrl, nil, "%s is not a valid URL: scheme and host required", raw)
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return newError(InvalidUrl, nil, "%s is not a valid URL: unsupported scheme=%s", raw, u.Scheme)
	}
	if u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return newError(InvalidUrl, nil, "%s is not a valid base URL: query and fragment not allowed", raw)
	}
	return nil
}

func CheckVersion(version int) error {
	if version < 0 {
		return newError(InvalidVersion, nil, "version must not be negative: version=%d", version)
	}
	return nil
}

// ParseVersion parses a decimal version number as given on the command line.
func ParseVersion(raw string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, newError(InvalidVersion, errors.WithStack(err), "%s is not a valid number", raw)
	}
	if err := CheckVersion(version); err != nil {
		return 0, err
	}
	return version, nil
}
