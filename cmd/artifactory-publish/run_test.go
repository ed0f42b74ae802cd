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

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/congop/artifactory-publish/internal/stubrepo"
)

const testToken = "s3cr3t-token"

type cmdOutput struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func envOf(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func givenStubRepo(t *testing.T) *stubrepo.ArtifactoryRepo {
	repo := stubrepo.NewArtifactoryRepo(testToken)
	require.NoError(t, repo.Start())
	t.Cleanup(func() {
		require.NoError(t, repo.Close())
	})
	return repo
}

func givenFirmware(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "firmware.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func publishArgs(repo *stubrepo.ArtifactoryRepo, source string, extra ...string) []string {
	args := []string{
		"artifactory-publish",
		"--source", source,
		"--version", "42",
		"--repository", "firmware",
		"--repository_url", repo.BaseUrl() + "/",
		"--module", "rfid-reader",
		"--organization", "metatavu",
		"--api_token", testToken,
	}
	return append(args, extra...)
}

func runCmd(args []string, env map[string]string) (int, *cmdOutput) {
	out := &cmdOutput{}
	err := run(context.Background(), args, envOf(env), &out.stdout, &out.stderr)
	return exitCode(err, &out.stderr), out
}

func TestRunPublishes(t *testing.T) {
	// given
	repo := givenStubRepo(t)
	source := givenFirmware(t, "\x00\x01firmware")

	// when
	code, out := runCmd(publishArgs(repo, source, "--checksum"), nil)

	// then
	require.Equal(t, exitOk, code, "stderr=%s", out.stderr.String())
	require.Contains(t, out.stdout.String(), "Uploading rfid-reader-42.bin to Artifactory. Version: 42")
	require.Contains(t, out.stdout.String(), "The firmware has been successfully published")
	require.NotContains(t, out.stdout.String()+out.stderr.String(), testToken)

	deployed, ok := repo.Deployed("firmware/metatavu/rfid-reader/rfid-reader-42.bin")
	require.True(t, ok, "deployed=%v", repo.DeployedPaths())
	require.Equal(t, []byte("\x00\x01firmware"), deployed.Content)
	require.NotEmpty(t, deployed.Sha256)
}

func TestRunWithConfigFile(t *testing.T) {
	// given
	repo := givenStubRepo(t)
	source := givenFirmware(t, "from-config")
	configPath := filepath.Join(t.TempDir(), "publish.yaml")
	configYaml := fmt.Sprintf(`
common:
  release_version: 9
artifactory:
  repository_url: %s
  repository: firmware
  organization: metatavu
  module: ${sysenv.FIRMWARE_MODULE}
  api_token: ${sysenv.ARTIFACTORY_API_TOKEN}
`, repo.BaseUrl())
	require.NoError(t, os.WriteFile(configPath, []byte(configYaml), 0600))
	env := map[string]string{"FIRMWARE_MODULE": "door-lock", "ARTIFACTORY_API_TOKEN": testToken}

	// when
	code, out := runCmd([]string{"artifactory-publish", "--config", configPath, "--source", source}, env)

	// then
	require.Equal(t, exitOk, code, "stderr=%s", out.stderr.String())
	deployed, ok := repo.Deployed("firmware/metatavu/door-lock/door-lock-9.bin")
	require.True(t, ok, "deployed=%v", repo.DeployedPaths())
	require.Equal(t, []byte("from-config"), deployed.Content)
}

func TestRunFlagsOverrideConfigFile(t *testing.T) {
	repo := givenStubRepo(t)
	source := givenFirmware(t, "override")
	configPath := filepath.Join(t.TempDir(), "publish.yaml")
	configYaml := fmt.Sprintf(`
common:
  release_version: 9
artifactory:
  repository_url: %s
  repository: firmware
  organization: metatavu
  module: door-lock
  api_token: not-the-token
`, repo.BaseUrl())
	require.NoError(t, os.WriteFile(configPath, []byte(configYaml), 0600))

	code, out := runCmd([]string{
		"artifactory-publish", "--config", configPath, "--source", source,
		"--version", "10", "--api_token", testToken,
	}, nil)

	require.Equal(t, exitOk, code, "stderr=%s", out.stderr.String())
	require.Equal(t, []string{"firmware/metatavu/door-lock/door-lock-10.bin"}, repo.DeployedPaths())
}

func TestRunReportsEveryMissingFlag(t *testing.T) {
	code, out := runCmd([]string{"artifactory-publish", "--version", "1"}, nil)

	require.Equal(t, exitFailure, code)
	stderr := out.stderr.String()
	require.True(t, strings.HasPrefix(stderr, "error: "), "stderr=%s", stderr)
	for _, flag := range []string{"--source", "--repository", "--repository_url", "--module", "--organization", "--api_token"} {
		require.Contains(t, stderr, flag+" is required")
	}
	require.NotContains(t, stderr, "--version is required")
	require.Empty(t, out.stdout.String())
}

func TestRunRejectsInvalidInputBeforeNetwork(t *testing.T) {
	tests := []struct {
		name     string
		override []string
		want     string
	}{
		{name: "non-integer-version", override: []string{"--version", "1.2"}, want: "1.2"},
		{name: "relative-url", override: []string{"--repository_url", "example.jfrog.io"}, want: "example.jfrog.io"},
		{name: "missing-source", override: []string{"--source", "/does/not/exist.bin"}, want: "/does/not/exist.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := givenStubRepo(t)
			source := givenFirmware(t, "bytes")

			code, out := runCmd(publishArgs(repo, source, tt.override...), nil)

			require.Equal(t, exitFailure, code)
			require.Contains(t, out.stderr.String(), tt.want)
			require.Zero(t, repo.PutCount())
		})
	}
}

func TestRunHttpFailure(t *testing.T) {
	repo := givenStubRepo(t)
	source := givenFirmware(t, "bytes")

	code, out := runCmd(publishArgs(repo, source, "--api_token", "wrong-token"), nil)

	require.Equal(t, exitFailure, code)
	stderr := out.stderr.String()
	require.Contains(t, stderr, "Failed to submit package: 401")
	require.Contains(t, stderr, "Bad credentials")
	require.NotContains(t, stderr, "error: ", "already reported failures are not printed twice")
	require.NotContains(t, stderr, "wrong-token")
	require.NotContains(t, out.stdout.String(), "successfully published")
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "unknown-flag", args: []string{"artifactory-publish", "--no-such-flag"}, want: exitUsage},
		{name: "bad-duration", args: []string{"artifactory-publish", "--timeout", "soon"}, want: exitUsage},
		{name: "positional", args: []string{"artifactory-publish", "firmware.bin"}, want: exitUsage},
		{name: "help", args: []string{"artifactory-publish", "--help"}, want: exitOk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := runCmd(tt.args, nil)

			require.Equal(t, tt.want, code)
			require.Contains(t, out.stderr.String(), "--repository_url")
		})
	}
}

func TestRunRequireNewer(t *testing.T) {
	repo := givenStubRepo(t)
	repo.GivenDeployed("firmware", "metatavu", "rfid-reader", 42, []byte("old"))
	source := givenFirmware(t, "new")

	code, out := runCmd(publishArgs(repo, source, "--require_newer"), nil)

	require.Equal(t, exitFailure, code)
	require.Contains(t, out.stderr.String(), "Failed to submit package:")
	require.Zero(t, repo.PutCount())
	deployed, _ := repo.Deployed("firmware/metatavu/rfid-reader/rfid-reader-42.bin")
	require.Equal(t, []byte("old"), deployed.Content)
}

func TestRunWaitVisible(t *testing.T) {
	repo := givenStubRepo(t)
	repo.VisibleAfter = 2
	source := givenFirmware(t, "bytes")

	code, out := runCmd(publishArgs(repo, source, "--wait_visible", "5s", "--wait_interval", "10ms"), nil)

	require.Equal(t, exitOk, code, "stderr=%s", out.stderr.String())
	require.Contains(t, out.stdout.String(), "Version 42 is visible")
}

func TestRunWaitVisibleTimeoutIsNotAFailure(t *testing.T) {
	repo := givenStubRepo(t)
	repo.VisibleAfter = 1 << 20
	source := givenFirmware(t, "bytes")

	code, out := runCmd(publishArgs(repo, source, "--wait_visible", "100ms", "--wait_interval", "10ms"), nil)

	require.Equal(t, exitOk, code)
	require.Contains(t, out.stdout.String(), "successfully published")
	require.Contains(t, out.stderr.String(), "Warning: version 42 not visible")
}

func TestRunMirrorFailure(t *testing.T) {
	// given
	repo := givenStubRepo(t)
	source := givenFirmware(t, "bytes")
	port, err := stubrepo.FreeLocalhostTcp4Port()
	require.NoError(t, err)
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_MAX_ATTEMPTS", "1")

	// when
	code, out := runCmd(publishArgs(repo, source,
		"--s3_bucket", "firmware",
		"--s3_region", "us-east-1",
		"--s3_endpoint", fmt.Sprintf("http://127.0.0.1:%d", port),
	), nil)

	// then
	require.Equal(t, exitFailure, code)
	require.Contains(t, out.stdout.String(), "successfully published")
	require.Contains(t, out.stderr.String(), "Failed to mirror package:")
	require.Equal(t, 1, repo.PutCount())
}

// Needs docker to run localstack.
func TestAccRunMirrors(t *testing.T) {
	if os.Getenv("ARTIFACTORY_PUBLISH_ACC") == "" {
		t.Skip("set ARTIFACTORY_PUBLISH_ACC to run against localstack")
	}
	ctx := context.Background()
	s3Repo := &stubrepo.S3Repo{}
	t.Cleanup(func() {
		require.NoError(t, s3Repo.Close())
	})
	require.NoError(t, s3Repo.Start(ctx))
	target := s3Repo.Target()
	t.Setenv("AWS_ACCESS_KEY_ID", target.Credentials.AccessKeyID)
	t.Setenv("AWS_SECRET_ACCESS_KEY", target.Credentials.SecretAccessKey)

	repo := givenStubRepo(t)
	source := givenFirmware(t, "mirrored-bytes")

	code, out := runCmd(publishArgs(repo, source,
		"--s3_bucket", target.Bucket,
		"--s3_prefix", target.Prefix,
		"--s3_region", target.Region,
		"--s3_endpoint", target.Endpoint,
	), nil)

	require.Equal(t, exitOk, code, "stderr=%s", out.stderr.String())
	key := target.Key("metatavu", "rfid-reader", "rfid-reader-42.bin")
	require.Contains(t, out.stdout.String(), "s3://firmware/"+key)
	stored, err := s3Repo.Object(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("mirrored-bytes"), stored)
}
