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

// Package mirror copies published firmware binaries into an S3 bucket.
package mirror

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/congop/artifactory-publish/internal/log"
)

var (
	configLoader = config.LoadDefaultConfig
)

// S3Target is where binaries get mirrored to.
type S3Target struct {
	Bucket   string
	Prefix   string // key prefix, may be blank
	Region   string // aws region to send request to
	Endpoint string // custom endpoint e.g. minio or localstack; implies path style addressing

	// Credentials overrides the default aws credential chain when set.
	Credentials *aws.Credentials
}

func (t S3Target) Enabled() bool {
	return strings.TrimSpace(t.Bucket) != ""
}

// Key returns <prefix>/<organization>/<module>/<fileName>, blank parts left out.
func (t S3Target) Key(organization, module, fileName string) string {
	segs := make([]string, 0, 4)
	for _, seg := range []string{t.Prefix, organization, module, fileName} {
		if seg = strings.Trim(strings.TrimSpace(seg), "/"); seg != "" {
			segs = append(segs, seg)
		}
	}
	return path.Join(segs...)
}

func configEndpointResolver(
	optFns []func(*config.LoadOptions) error,
	endpoint string,
) []func(*config.LoadOptions) error {
	if endpoint = strings.TrimSpace(endpoint); endpoint == "" {
		return optFns
	}
	optFn := func(opts *config.LoadOptions) error {
		var rfunc aws.EndpointResolverWithOptionsFunc = func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if service != s3.ServiceID {
				return aws.Endpoint{}, &aws.EndpointNotFoundError{
					Err: errors.Errorf("no endpoint configured: service=%s", service),
				}
			}
			return aws.Endpoint{
				URL: endpoint, SigningName: "s3", PartitionID: "aws",
				SigningRegion: region, Source: aws.EndpointSourceCustom,
			}, nil
		}
		opts.EndpointResolverWithOptions = rfunc
		return nil
	}
	return append(optFns, optFn)
}

func contributeCredentialsOptFn(
	ctx context.Context,
	optFns []func(*config.LoadOptions) error,
	credentialsSpec *aws.Credentials,
) []func(*config.LoadOptions) error {
	if credentialsSpec == nil {
		log.Debugf(ctx, "contributeCredentialsOptFn -- no specific credential provided, using default chain")
		return optFns
	}
	var credFunc aws.CredentialsProviderFunc = func(context.Context) (aws.Credentials, error) {
		return *credentialsSpec, nil
	}
	return append(optFns, func(opts *config.LoadOptions) error {
		opts.Credentials = credFunc
		return nil
	})
}

func contributeRegion(
	optFns []func(*config.LoadOptions) error,
	region string,
) []func(*config.LoadOptions) error {
	if region = strings.TrimSpace(region); region == "" {
		return optFns
	}
	return append(optFns, func(opts *config.LoadOptions) error {
		opts.Region = region
		return nil
	})
}

func LoadConfig(ctx context.Context, target S3Target) (*aws.Config, error) {
	optFns := make([]func(*config.LoadOptions) error, 0, 3)
	optFns = contributeCredentialsOptFn(ctx, optFns, target.Credentials)
	optFns = configEndpointResolver(optFns, target.Endpoint)
	optFns = contributeRegion(optFns, target.Region)

	cfg, err := configLoader(ctx, optFns...)
	if err != nil {
		return nil, errors.Wrapf(err, "LoadConfig -- fail to load aws config: err=%v", err)
	}
	return &cfg, nil
}

func NewS3Client(ctx context.Context, target S3Target) (*s3.Client, error) {
	cfg, err := LoadConfig(ctx, target)
	if err != nil {
		return nil, err
	}
	pathStyle := strings.TrimSpace(target.Endpoint) != ""
	return s3.NewFromConfig(*cfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
	}), nil
}

// S3Mirror uploads files to its target bucket.
type S3Mirror struct {
	Target   S3Target
	Client   manager.UploadAPIClient
	Progress bool
	Stderr   io.Writer
}

func NewS3Mirror(ctx context.Context, target S3Target, progress bool, stderr io.Writer) (*S3Mirror, error) {
	if !target.Enabled() {
		return nil, errors.Errorf("NewS3Mirror -- bucket must not be blank")
	}
	client, err := NewS3Client(ctx, target)
	if err != nil {
		return nil, err
	}
	return &S3Mirror{Target: target, Client: client, Progress: progress, Stderr: stderr}, nil
}

// Put uploads the file at sourcePath to key.
func (m *S3Mirror) Put(ctx context.Context, key string, sourcePath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return errors.Wrapf(err, "S3Mirror.Put -- fail to open source: path=%s err=%v", sourcePath, err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Warnf(ctx, "S3Mirror.Put -- fail to close source: path=%s err=%v", sourcePath, err)
		}
	}()

	var body io.Reader = source
	if m.Progress && m.Stderr != nil {
		info, err := source.Stat()
		if err != nil {
			return errors.Wrapf(err, "S3Mirror.Put -- fail to stat source: path=%s err=%v", sourcePath, err)
		}
		bar := progressbar.NewOptions64(info.Size(),
			progressbar.OptionSetDescription("s3://"+m.Target.Bucket+"/"+key),
			progressbar.OptionSetWriter(m.Stderr),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(m.Stderr) }))
		bodyWithProgress := progressbar.NewReader(source, bar)
		defer func() {
			if err := bar.Exit(); err != nil {
				log.Debugf(ctx, "S3Mirror.Put -- ignoring progress bar exit error: err=%+v", err)
			}
		}()
		body = &bodyWithProgress
	}

	bucket := m.Target.Bucket
	input := &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        body,
		ContentType: aws.String("application/octet-stream"),
	}
	log.Debugf(ctx, "S3Mirror.Put -- uploading: bucket=%s key=%s", bucket, key)
	uploader := manager.NewUploader(m.Client)
	if _, err := uploader.Upload(ctx, input); err != nil {
		return errors.Wrapf(err, "S3Mirror.Put -- fail to upload to s3: bucket=%s key=%s cause=%s",
			bucket, key, DescribeError(err))
	}
	return nil
}

// DescribeError returns code and message of aws api errors, the plain error text otherwise.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}
