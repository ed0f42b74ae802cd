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

package mirror_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/congop/artifactory-publish/internal/mirror"
	"github.com/congop/artifactory-publish/internal/stubrepo"
)

// Needs docker to run localstack.
func TestAccS3MirrorPut(t *testing.T) {
	if os.Getenv("ARTIFACTORY_PUBLISH_ACC") == "" {
		t.Skip("set ARTIFACTORY_PUBLISH_ACC to run against localstack")
	}
	ctx := context.Background()
	repo := &stubrepo.S3Repo{}
	t.Cleanup(func() {
		require.NoError(t, repo.Close())
	})
	require.NoError(t, repo.Start(ctx))

	source := filepath.Join(t.TempDir(), "firmware.bin")
	content := []byte("\x7fELF-firmware-bytes")
	require.NoError(t, os.WriteFile(source, content, 0600))

	m, err := mirror.NewS3Mirror(ctx, repo.Target(), false, nil)
	require.NoError(t, err)
	key := repo.Target().Key("org", "mymod", "mymod-7.bin")
	require.NoError(t, m.Put(ctx, key, source))

	stored, err := repo.Object(ctx, key)
	require.NoError(t, err)
	require.Equal(t, content, stored)
}
