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
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies why a publish failed.
type Kind string

const (
	InvalidSource   Kind = "InvalidSource"
	InvalidUrl      Kind = "InvalidUrl"
	InvalidVersion  Kind = "InvalidVersion"
	InvalidRequest  Kind = "InvalidRequest"
	SourceReadError Kind = "SourceReadError"
	TransportError  Kind = "TransportError"
	HttpError       Kind = "HttpError"
	VersionNotNewer Kind = "VersionNotNewer"
)

// PublishError is returned by every failing operation of this package.
// StatusCode and Body are only set for HttpError.
type PublishError struct {
	Kind       Kind
	StatusCode int
	Body       string
	msg        string
	cause      error
}

var _ error = (*PublishError)(nil)

func (e *PublishError) Error() string {
	switch {
	case e.Kind == HttpError:
		return fmt.Sprintf("%s: %s: status=%d body=%s", e.Kind, e.msg, e.StatusCode, e.Body)
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.msg)
	}
}

func (e *PublishError) Unwrap() error {
	return e.cause
}

// Cause makes the error play along with errors.Cause of github.com/pkg/errors.
func (e *PublishError) Cause() error {
	return e.cause
}

// Diagnostic is the human readable failure description: status code and
// response body for http failures, the error description otherwise.
func (e *PublishError) Diagnostic() string {
	switch {
	case e.Kind == HttpError:
		return fmt.Sprintf("%d\n%s", e.StatusCode, e.Body)
	case e.cause != nil && (e.Kind == TransportError || e.Kind == SourceReadError):
		return e.cause.Error()
	default:
		return e.Error()
	}
}

// IsKind reports whether err or one of the errors it wraps is a PublishError of the given kind.
func IsKind(err error, kind Kind) bool {
	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		return false
	}
	return pubErr.Kind == kind
}

func newError(kind Kind, cause error, format string, args ...any) *PublishError {
	return &PublishError{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

func newHttpError(resp *http.Response, body string, format string, args ...any) *PublishError {
	return &PublishError{
		Kind:       HttpError,
		StatusCode: resp.StatusCode,
		Body:       body,
		msg:        fmt.Sprintf(format, args...),
	}
}
