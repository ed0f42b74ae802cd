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

package stubrepo

import (
	"context"
	"fmt"
	"io"
	"net"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/testcontainers/testcontainers-go"
	tcwait "github.com/testcontainers/testcontainers-go/wait"

	"github.com/congop/artifactory-publish/internal/mirror"
	"github.com/congop/artifactory-publish/internal/random"
)

// S3Repo is a localstack container serving an S3 bucket; docker is required.
type S3Repo struct {
	tc            testcontainers.Container
	portLsGateway int
	s3Client      *s3.Client
}

// Target returns the mirror target pointing to the started container.
func (repo *S3Repo) Target() mirror.S3Target {
	return mirror.S3Target{
		Bucket:   "firmware",
		Prefix:   "mirror",
		Region:   "us-east-1",
		Endpoint: fmt.Sprintf("http://localhost:%d", repo.portLsGateway),
		Credentials: &awssdk.Credentials{
			AccessKeyID:     "test",
			SecretAccessKey: "test",
		},
	}
}

func (repo *S3Repo) client(ctx context.Context) (*s3.Client, error) {
	if repo.s3Client != nil {
		return repo.s3Client, nil
	}
	client, err := mirror.NewS3Client(ctx, repo.Target())
	if err != nil {
		return nil, err
	}
	repo.s3Client = client
	return client, nil
}

// Object returns the content stored at key.
func (repo *S3Repo) Object(ctx context.Context, key string) ([]byte, error) {
	client, err := repo.client(ctx)
	if err != nil {
		return nil, err
	}
	bucket := repo.Target().Bucket
	out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, errors.Wrapf(err, "S3Repo.Object -- fail to get object: bucket=%s key=%s err=%v", bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (repo *S3Repo) mkBucket(ctx context.Context) error {
	client, err := repo.client(ctx)
	if err != nil {
		return err
	}
	bucket := repo.Target().Bucket
	if _, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &bucket}); err != nil {
		return errors.Wrapf(err, "S3Repo -- fail to create bucket: bucket=%s, err=%v", bucket, err)
	}
	return nil
}

func (repo *S3Repo) Close() error {
	if tc := repo.tc; tc != nil {
		if err := tc.Terminate(StubLogCtx()); err != nil {
			return errors.Wrapf(err, "S3Repo -- fail to terminate: err =%v", err)
		}
	}
	return nil
}

func FreeLocalhostTcp4Port() (int, error) {
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return -1, errors.Wrapf(err, "FreeLocalhostTcp4Port -- fail to listen at a random port: %v", err)
	}
	tcpAddr := l.Addr().(*net.TCPAddr)
	port := tcpAddr.Port
	if err := l.Close(); err != nil {
		return -1, errors.Wrapf(err,
			"FreeLocalhostTcp4Port -- fail to close lister, port cannot be re-reused: addr=%v err=%v",
			tcpAddr, err)
	}
	return port, nil
}

func (repo *S3Repo) Start(ctx context.Context) error {
	randStr, err := random.Suffix(8)
	if err != nil {
		return err
	}
	cName := "stub-repo-s3-" + randStr

	portLsGateway, err := FreeLocalhostTcp4Port()
	if err != nil {
		return err
	}
	cReq := testcontainers.ContainerRequest{
		Name:  cName,
		Image: "localstack/localstack",
		Env: map[string]string{
			"SERVICES": "s3",
		},
		ExposedPorts: []string{
			fmt.Sprintf("%d:4566", portLsGateway), // # LocalStack Gateway port 4566
		},
		WaitingFor: tcwait.ForLog("Ready."),
	}
	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: cReq,
			Started:          true,
		})
	if err != nil {
		return errors.Wrapf(err,
			"S3Repo.Start -- fail to start container: image=%s, err(%T):%s",
			cReq.Image, err, err.Error())
	}
	repo.tc = container
	repo.portLsGateway = portLsGateway

	return repo.mkBucket(ctx)
}
