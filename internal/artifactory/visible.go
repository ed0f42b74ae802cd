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
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/congop/artifactory-publish/internal/log"
	"github.com/congop/artifactory-publish/internal/poll"
)

const (
	DefaultWaitInterval         = 2 * time.Second
	DefaultMaxConsecutiveErrors = 3
)

// WaitVisible polls the latest version search until it reports version.
// Artifactory updates its search index asynchronously, a freshly deployed
// artifact may not be found right away. Timeouts satisfy poll.TimedOut and carry
// the last search error, if the last search failed.
func WaitVisible(
	ctx context.Context, client Doer, q LatestQuery, version int,
	interval, timeout time.Duration,
) error {
	if interval <= 0 {
		interval = DefaultWaitInterval
	}
	want := strconv.Itoa(version)
	poller := poll.Poller[string]{
		Interval:             interval,
		Timeout:              timeout,
		MaxConsecutiveErrors: DefaultMaxConsecutiveErrors,
		OutcomeGetter: func(ctx context.Context) (string, error) {
			return LatestVersion(ctx, client, q)
		},
		ConditionFunc: func(latest string) (bool, error) {
			log.Tracef(ctx, "WaitVisible -- latest version: want=%s latest=%s", want, latest)
			return latest == want, nil
		},
	}
	if err := poller.Poll(ctx); err != nil {
		if poll.TimedOut(err) && poller.LastErr != nil {
			return errors.Wrapf(err, "WaitVisible -- version not visible: version=%d lastErr=%v",
				version, poller.LastErr)
		}
		return err
	}
	return nil
}
