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
	"github.com/congop/artifactory-publish/internal/mirror"
	"github.com/congop/artifactory-publish/internal/poll"
)

const (
	exitOk      = 0
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks command line parsing failures; pflag already printed the usage.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

// reportedError marks failures whose diagnostic was already written to stderr.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func exitCode(err error, stderr io.Writer) int {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return exitOk
	}
	if errors.As(err, &usageError{}) {
		return exitUsage
	}
	if !errors.As(err, &reportedError{}) {
		fmt.Fprintf(stderr, "error: %s\n", err)
	}
	return exitFailure
}

type options struct {
	publish      config.Publish
	checksum     bool
	progress     bool
	requireNewer bool
	timeout      time.Duration
	waitVisible  time.Duration
	waitInterval time.Duration
	s3           mirror.S3Target
}

func newFlagSet(name string, stderr io.Writer, opts *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	opts.publish.RegisterFlags(fs)
	fs.String(config.FlagConfig, "",
		"YAML file providing repository, module, version and token; explicit flags win.")
	fs.BoolVar(&opts.checksum, "checksum", false, "Send the X-Checksum-Sha256 header.")
	fs.BoolVar(&opts.progress, "progress", false, "Render upload progress on stderr.")
	fs.DurationVar(&opts.timeout, "timeout", artifactory.DefaultTimeout, "Upload timeout.")
	fs.BoolVar(&opts.requireNewer, "require_newer", false,
		"Refuse to publish unless version is greater than the latest published one.")
	fs.DurationVar(&opts.waitVisible, "wait_visible", 0,
		"Wait up to this long for the version to show up in the latest version search; 0 disables.")
	fs.DurationVar(&opts.waitInterval, "wait_interval", artifactory.DefaultWaitInterval,
		"Latest version search interval used by --wait_visible.")
	fs.StringVar(&opts.s3.Bucket, "s3_bucket", "", "Also mirror the binary to this S3 bucket.")
	fs.StringVar(&opts.s3.Prefix, "s3_prefix", "", "S3 key prefix.")
	fs.StringVar(&opts.s3.Region, "s3_region", "", "S3 region; default aws config when blank.")
	fs.StringVar(&opts.s3.Endpoint, "s3_endpoint", "", "Custom S3 endpoint, e.g. minio.")
	return fs
}

func run(
	ctx context.Context, args []string, lookupEnv config.LookupEnvFunc,
	stdout, stderr io.Writer,
) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	name := "artifactory-publish"
	if len(args) > 0 {
		args = args[1:]
	}
	ctx = log.WithLogger(ctx, log.New(name, loglevel.FromEnv(lookupEnv), stderr))

	opts := options{}
	fs := newFlagSet(name, stderr, &opts)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return usageError{err}
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\nUsage of %s:\n", fs.Args(), name)
		fs.PrintDefaults()
		return usageError{errors.Errorf("unexpected arguments: %v", fs.Args())}
	}

	publishCfg, err := config.FromFlags(fs, opts.publish, lookupEnv)
	if err != nil {
		return err
	}
	req, err := publishCfg.UploadRequest()
	if err != nil {
		return err
	}
	log.Debugf(ctx, "run -- publishing: request=%#v", req)

	publisher := artifactory.NewPublisher(stdout, stderr, artifactory.PublishOptions{
		Checksum:     opts.checksum,
		Progress:     opts.progress,
		RequireNewer: opts.requireNewer,
		Timeout:      opts.timeout,
	})
	res, err := publisher.Publish(ctx, req)
	if err != nil {
		return reportedError{err}
	}

	if opts.waitVisible > 0 {
		waitVisible(ctx, publisher.Client, req, opts, stdout, stderr)
	}

	if opts.s3.Enabled() {
		key := opts.s3.Key(req.Organization, req.Module, res.FileName)
		if err := mirrorBinary(ctx, opts, key, req.SourcePath, stderr); err != nil {
			fmt.Fprintf(stderr, "Failed to mirror package: %s\n", mirror.DescribeError(err))
			return reportedError{err}
		}
		fmt.Fprintf(stdout, "The firmware has been mirrored: s3://%s/%s\n", opts.s3.Bucket, key)
	}
	return nil
}

// waitVisible only warns on failure, the artifact is stored at this point.
func waitVisible(
	ctx context.Context, client artifactory.Doer, req artifactory.UploadRequest, opts options,
	stdout, stderr io.Writer,
) {
	err := artifactory.WaitVisible(ctx, client, artifactory.LatestQueryOf(req), req.Version,
		opts.waitInterval, opts.waitVisible)
	switch {
	case err == nil:
		fmt.Fprintf(stdout, "Version %d is visible in the latest version search\n", req.Version)
	case poll.TimedOut(err):
		fmt.Fprintf(stderr, "Warning: version %d not visible in the latest version search after %s: %s\n",
			req.Version, opts.waitVisible, err)
	default:
		fmt.Fprintf(stderr, "Warning: fail to check visibility of version %d: %s\n", req.Version, err)
	}
}

func mirrorBinary(ctx context.Context, opts options, key, sourcePath string, stderr io.Writer) error {
	m, err := mirror.NewS3Mirror(ctx, opts.s3, opts.progress, stderr)
	if err != nil {
		return err
	}
	return m.Put(ctx, key, sourcePath)
}
