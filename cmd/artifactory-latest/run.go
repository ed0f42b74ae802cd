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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/congop/artifactory-publish/internal/artifactory"
	"github.com/congop/artifactory-publish/internal/config"
	"github.com/congop/artifactory-publish/internal/log"
	"github.com/congop/artifactory-publish/internal/loglevel"
)

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.As(err, &usageError{}):
		return 2
	default:
		fmt.Fprintf(stderr, "error: %s\n", err)
		return 1
	}
}

type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

// run prints the latest published version of the module, or nothing when
// no version was published yet.
func run(
	ctx context.Context, args []string, lookupEnv config.LookupEnvFunc,
	stdout, stderr io.Writer,
) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := "artifactory-latest"
	if len(args) > 0 {
		args = args[1:]
	}
	ctx = log.WithLogger(ctx, log.New(name, loglevel.FromEnv(lookupEnv), stderr))

	flagValues := config.Publish{}
	var timeout time.Duration
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false
	flagValues.RegisterQueryFlags(fs)
	fs.String(config.FlagConfig, "", "YAML file providing repository, module and token; explicit flags win.")
	fs.DurationVar(&timeout, "timeout", artifactory.DefaultTimeout, "Search request timeout.")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return usageError{err}
	}

	queryCfg, err := config.FromFlags(fs, flagValues, lookupEnv)
	if err != nil {
		return err
	}
	q, err := queryCfg.LatestQuery()
	if err != nil {
		return err
	}
	latest, err := artifactory.LatestVersion(ctx, artifactory.NewHttpClient(timeout), q)
	if err != nil {
		var pubErr *artifactory.PublishError
		if errors.As(err, &pubErr) {
			return errors.Errorf("fail to query latest version: %s", pubErr.Diagnostic())
		}
		return err
	}
	if latest != "" {
		fmt.Fprintln(stdout, latest)
	}
	return nil
}
