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

package poll

import (
	"context"
	"time"

	"github.com/congop/artifactory-publish/internal/log"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Poller repeatedly fetches an outcome until ConditionFunc is satisfied,
// the timeout expires or too many consecutive fetches failed.
type Poller[Out any] struct {
	LastOutcome          Out
	LastErr              error
	Interval             time.Duration
	Timeout              time.Duration
	MaxConsecutiveErrors int // negative means unbounded

	OutcomeGetter func(ctx context.Context) (Out, error)
	ConditionFunc func(outcome Out) (bool, error)

	consecutiveErrorCount uint
}

func (p *Poller[Out]) tooManyErrors() bool {
	return p.MaxConsecutiveErrors >= 0 && p.consecutiveErrorCount > uint(p.MaxConsecutiveErrors)
}

// Poll blocks until done. A timeout is reported as an error satisfying TimedOut.
func (p *Poller[Out]) Poll(ctx context.Context) error {
	if p.OutcomeGetter == nil || p.ConditionFunc == nil {
		return errors.Errorf("Poller.Poll -- outcome getter and condition func are required")
	}
	untilDone := func(ctx context.Context) (bool, error) {
		outcome, err := p.OutcomeGetter(ctx)
		p.LastOutcome = outcome
		p.LastErr = err
		if err != nil {
			p.consecutiveErrorCount++
			log.Tracef(ctx, "Poller.Poll -- outcome getter error: count=%d err=%v", p.consecutiveErrorCount, err)
			if p.tooManyErrors() {
				return true, errors.Wrapf(err,
					"Poller.Poll -- max consecutive errors exceeded: count=%d, max=%d",
					p.consecutiveErrorCount, p.MaxConsecutiveErrors)
			}
			return false, nil
		}
		p.consecutiveErrorCount = 0

		return p.ConditionFunc(outcome)
	}

	return wait.PollUntilContextTimeout(ctx, p.Interval, p.Timeout, true, untilDone)
}

// TimedOut reports whether err stems from the poll timeout or a canceled context.
func TimedOut(err error) bool {
	return wait.Interrupted(err)
}
