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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/congop/artifactory-publish/internal/opaque"
)

func givenFirmwareFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "f.bin")
	require.NoErrorf(t, os.WriteFile(path, []byte(content), 0600), "fail to write firmware: path=%s", path)
	return path
}

// givenUnreadable removes every permission from path; root reads anyway, so the test is skipped.
func givenUnreadable(t *testing.T, path string) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	require.NoError(t, os.Chmod(path, 0))
	t.Cleanup(func() { _ = os.Chmod(path, 0600) })
}

func validRequest(t *testing.T) UploadRequest {
	return UploadRequest{
		SourcePath:        givenFirmwareFile(t, "firmware-bytes"),
		RepositoryBaseUrl: "https://example.com",
		RepositoryName:    "repo",
		Organization:      "org",
		Module:            "mymod",
		Version:           7,
		ApiToken:          *opaque.NewString("tok"),
	}
}

func TestArtifactFileName(t *testing.T) {
	tests := []struct {
		module  string
		version int
		want    string
	}{
		{module: "mymod", version: 7, want: "mymod-7.bin"},
		{module: "mymod", version: 0, want: "mymod-0.bin"},
		{module: "rfid-reader", version: 1234567, want: "rfid-reader-1234567.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, UploadRequest{Module: tt.module, Version: tt.version}.ArtifactFileName())
		})
	}
}

func TestUploadUrl(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "plain", base: "https://example.com", want: "https://example.com/artifactory/repo/org/mymod/mymod-7.bin"},
		{name: "trailing-slash", base: "https://example.com/", want: "https://example.com/artifactory/repo/org/mymod/mymod-7.bin"},
		{name: "many-trailing-slashes", base: "https://example.com///", want: "https://example.com/artifactory/repo/org/mymod/mymod-7.bin"},
		{name: "with-path", base: "https://example.com/mirror/", want: "https://example.com/mirror/artifactory/repo/org/mymod/mymod-7.bin"},
		{name: "with-port", base: "http://localhost:8081", want: "http://localhost:8081/artifactory/repo/org/mymod/mymod-7.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := UploadRequest{
				RepositoryBaseUrl: tt.base, RepositoryName: "repo", Organization: "org", Module: "mymod", Version: 7,
			}
			require.Equal(t, tt.want, req.UploadUrl())
		})
	}
}

func TestJoinUrlSegmentSlashes(t *testing.T) {
	require.Equal(t, "https://h/a/b/c", JoinUrl("https://h/", "/a/", "b/", "/c"))
	require.Equal(t, "https://h/a", JoinUrl("https://h", "", "a"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(t *testing.T, req *UploadRequest)
		wantKind Kind
	}{
		{
			name: "missing-source",
			mutate: func(t *testing.T, req *UploadRequest) {
				req.SourcePath = filepath.Join(t.TempDir(), "nope.bin")
			},
			wantKind: InvalidSource,
		},
		{
			name: "unreadable-source",
			mutate: func(t *testing.T, req *UploadRequest) {
				givenUnreadable(t, req.SourcePath)
			},
			wantKind: InvalidSource,
		},
		{
			name:     "source-is-directory",
			mutate:   func(t *testing.T, req *UploadRequest) { req.SourcePath = t.TempDir() },
			wantKind: InvalidSource,
		},
		{
			name:     "not-a-url",
			mutate:   func(t *testing.T, req *UploadRequest) { req.RepositoryBaseUrl = "not-a-url" },
			wantKind: InvalidUrl,
		},
		{
			name:     "no-host",
			mutate:   func(t *testing.T, req *UploadRequest) { req.RepositoryBaseUrl = "https://" },
			wantKind: InvalidUrl,
		},
		{
			name:     "query-in-base-url",
			mutate:   func(t *testing.T, req *UploadRequest) { req.RepositoryBaseUrl = "https://example.com?x=1" },
			wantKind: InvalidUrl,
		},
		{
			name:     "fragment-in-base-url",
			mutate:   func(t *testing.T, req *UploadRequest) { req.RepositoryBaseUrl = "https://example.com/#top" },
			wantKind: InvalidUrl,
		},
		{
			name:     "unsupported-scheme",
			mutate:   func(t *testing.T, req *UploadRequest) { req.RepositoryBaseUrl = "ftp://example.com" },
			wantKind: InvalidUrl,
		},
		{
			name:     "negative-version",
			mutate:   func(t *testing.T, req *UploadRequest) { req.Version = -1 },
			wantKind: InvalidVersion,
		},
		{
			name:     "blank-module",
			mutate:   func(t *testing.T, req *UploadRequest) { req.Module = " " },
			wantKind: InvalidRequest,
		},
		{
			name:     "blank-token",
			mutate:   func(t *testing.T, req *UploadRequest) { req.ApiToken = opaque.String{} },
			wantKind: InvalidRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(t)
			tt.mutate(t, &req)
			err := req.Validate()
			require.Error(t, err)
			require.Truef(t, IsKind(err, tt.wantKind), "expected kind %s: err=%v", tt.wantKind, err)
		})
	}

	require.NoError(t, validRequest(t).Validate())
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion(" 42 ")
	require.NoError(t, err)
	require.Equal(t, 42, v)

	_, err = ParseVersion("1.2")
	require.True(t, IsKind(err, InvalidVersion))

	_, err = ParseVersion("-3")
	require.True(t, IsKind(err, InvalidVersion))
}
