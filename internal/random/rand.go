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

package random

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Suffix returns a hex string of 2*lenBytes chars, e.g. to keep container names unique.
func Suffix(lenBytes uint) (string, error) {
	if lenBytes == 0 {
		return "", errors.Errorf("Suffix -- len-bytes must be greater 0")
	}
	buf := make([]byte, lenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrapf(err, "Suffix -- fail to read random bytes: len=%d err=%v", lenBytes, err)
	}
	return hex.EncodeToString(buf), nil
}
