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
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ChecksumSha256Header lets Artifactory verify the deployed content.
const ChecksumSha256Header = "X-Checksum-Sha256"

func DigestSha256(content io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, content); err != nil {
		return "", errors.Wrapf(err, "DigestSha256 -- could not digest content: err=%s", err)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
