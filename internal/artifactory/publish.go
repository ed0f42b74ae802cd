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
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/congop/artifactory-publish/internal/log"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

const (
	DefaultTimeout = 60 * time.Second

	// response bodies are echoed on failure, keep them readable
	maxResponseBody = 64 * 1024
)

// Doer sends http requests; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type PublishOptions struct {
	Checksum     bool          // send the sha256 checksum header
	Progress     bool          // render an upload progress bar on the error stream
	RequireNewer bool          // refuse versions not greater than the latest published one
	Timeout      time.Duration // used to build the default client; DefaultTimeout when zero
}

type PublishResult struct {
	FileName   string
	Version    int
	Url        string
	Sha256     string
	StatusCode int
}

// Publisher uploads firmware binaries. Success text goes to Stdout and failure
// diagnostics to Stderr; it never terminates the process.
type Publisher struct {
	Client  Doer
	Stdout  io.Writer
	Stderr  io.Writer
	Options PublishOptions
}

// NewPublisher returns a Publisher using an *http.Client bounded by opts.Timeout.
func NewPublisher(stdout, stderr io.Writer, opts PublishOptions) *Publisher {
	return &Publisher{
		Client:  NewHttpClient(opts.Timeout),
		Stdout:  stdout,
		Stderr:  stderr,
		Options: opts,
	}
}

func NewHttpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Publish validates req and PUTs the source file to req.UploadUrl().
// Every failure is reported to Stderr and returned as *PublishError.
func (p *Publisher) Publish(ctx context.Context, req UploadRequest) (*PublishResult, error) {
	log.Debugf(ctx, "Publisher.Publish -- requested: request=%#v options=%#v", req, p.Options)
	res, err := p.publish(ctx, req)
	if err != nil {
		p.reportFailure(err)
		return nil, err
	}
	fmt.Fprintf(p.Stdout, "The firmware has been successfully published: %s (version %d)\n",
		res.FileName, res.Version)
	return res, nil
}

func (p *Publisher) reportFailure(err error) {
	diagnostic := err.Error()
	var pubErr *PublishError
	if errors.As(err, &pubErr) {
		diagnostic = pubErr.Diagnostic()
	}
	fmt.Fprintf(p.Stderr, "Failed to submit package: %s\n", diagnostic)
}

func (p *Publisher) publish(ctx context.Context, req UploadRequest) (*PublishResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.Options.RequireNewer {
		if err := p.checkNewer(ctx, req); err != nil {
			return nil, err
		}
	}

	fileName := req.ArtifactFileName()
	uploadUrl := req.UploadUrl()

	source, err := os.Open(req.SourcePath)
	if err != nil {
		return nil, newError(SourceReadError, errors.WithStack(err),
			"fail to open source: path=%s", req.SourcePath)
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Warnf(ctx, "Publisher.publish -- fail to close source: path=%s err=%v", req.SourcePath, err)
		}
	}()

	info, err := source.Stat()
	if err != nil {
		return nil, newError(SourceReadError, errors.WithStack(err),
			"fail to stat source: path=%s", req.SourcePath)
	}
	sha256, err := DigestSha256(source)
	if err != nil {
		return nil, newError(SourceReadError, err, "fail to read source: path=%s", req.SourcePath)
	}
	if _, err := source.Seek(0, io.SeekStart); err != nil {
		return nil, newError(SourceReadError, errors.WithStack(err),
			"fail to rewind source: path=%s", req.SourcePath)
	}

	fmt.Fprintf(p.Stdout, "Uploading %s to Artifactory. Version: %d\n", fileName, req.Version)

	var body io.Reader = source
	if p.Options.Progress {
		bar := progressbar.NewOptions64(info.Size(),
			progressbar.OptionSetDescription(fileName),
			progressbar.OptionSetWriter(p.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.Stderr) }))
		bodyWithProgress := progressbar.NewReader(source, bar)
		defer func() {
			if err := bar.Exit(); err != nil {
				log.Debugf(ctx, "Publisher.publish -- ignoring progress bar exit error: err=%+v", err)
			}
		}()
		body = &bodyWithProgress
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadUrl, io.NopCloser(body))
	if err != nil {
		return nil, newError(InvalidUrl, errors.WithStack(err), "fail to build request: url=%s", uploadUrl)
	}
	httpReq.ContentLength = info.Size()
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("Authorization", "Bearer "+req.ApiToken.Value())
	if p.Options.Checksum {
		httpReq.Header.Set(ChecksumSha256Header, sha256)
	}

	log.Debugf(ctx, "Publisher.publish -- sending: method=PUT url=%s size=%d sha256=%s",
		uploadUrl, info.Size(), sha256)
	resp, err := p.client().Do(httpReq)
	if err != nil {
		return nil, newError(TransportError, err, "fail to put artifact: url=%s", uploadUrl)
	}
	respBody := readBody(ctx, resp)
	log.Debugf(ctx, "Publisher.publish -- response: status=%d body=%s", resp.StatusCode, respBody)
	if !isSuccess(resp.StatusCode) {
		return nil, newHttpError(resp, respBody, "fail to put artifact: url=%s", uploadUrl)
	}

	return &PublishResult{
		FileName:   fileName,
		Version:    req.Version,
		Url:        uploadUrl,
		Sha256:     sha256,
		StatusCode: resp.StatusCode,
	}, nil
}

// checkNewer refuses versions which are not greater than the latest published one.
// A latest version which is not a number cannot be compared and is ignored.
func (p *Publisher) checkNewer(ctx context.Context, req UploadRequest) error {
	latest, err := LatestVersion(ctx, p.client(), LatestQueryOf(req))
	if err != nil {
		return err
	}
	if latest == "" {
		return nil
	}
	latestNum, err := strconv.Atoi(latest)
	if err != nil {
		log.Warnf(ctx, "Publisher.checkNewer -- latest version is not a number, skipping check: latest=%s", latest)
		return nil
	}
	if latestNum >= req.Version {
		return newError(VersionNotNewer, nil,
			"version must be greater than the latest published one: version=%d latest=%d",
			req.Version, latestNum)
	}
	return nil
}

func (p *Publisher) client() Doer {
	if p.Client == nil {
		p.Client = NewHttpClient(p.Options.Timeout)
	}
	return p.Client
}

func isSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode <= 299
}

func readBody(ctx context.Context, resp *http.Response) string {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debugf(ctx, "readBody -- fail to close response body: err=%v", err)
		}
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		log.Warnf(ctx, "readBody -- fail to read response body: err=%v", err)
	}
	return strings.TrimSpace(string(data))
}
