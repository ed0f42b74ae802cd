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
	"net/http"
	"net/url"
	"strings"

	"github.com/congop/artifactory-publish/internal/log"
	"github.com/congop/artifactory-publish/internal/opaque"
	"github.com/pkg/errors"
)

// LatestQuery identifies the artifact whose latest version is looked up.
type LatestQuery struct {
	RepositoryBaseUrl string
	RepositoryName    string
	Organization      string
	Module            string
	ApiToken          opaque.String
}

func LatestQueryOf(req UploadRequest) LatestQuery {
	return LatestQuery{
		RepositoryBaseUrl: req.RepositoryBaseUrl,
		RepositoryName:    req.RepositoryName,
		Organization:      req.Organization,
		Module:            req.Module,
		ApiToken:          req.ApiToken,
	}
}

// SearchUrl returns the latestVersion search api url:
// <base>/artifactory/api/search/latestVersion?g=<organization>&a=<module>&repos=<repository>
func (q LatestQuery) SearchUrl() string {
	params := url.Values{}
	params.Set("g", q.Organization)
	params.Set("a", q.Module)
	params.Set("repos", q.RepositoryName)
	return JoinUrl(q.RepositoryBaseUrl, "artifactory", "api", "search", "latestVersion") + "?" + params.Encode()
}

func (q LatestQuery) Validate() error {
	if err := CheckBaseUrl(q.RepositoryBaseUrl); err != nil {
		return err
	}
	for _, field := range []struct{ key, value string }{
		{"repository", q.RepositoryName},
		{"organization", q.Organization},
		{"module", q.Module},
	} {
		if strings.TrimSpace(field.value) == "" {
			return newError(InvalidRequest, nil, "%s must not be blank", field.key)
		}
	}
	return nil
}

// LatestVersion returns the latest published version of the queried artifact.
// An empty version and no error are returned when nothing has been published yet.
func LatestVersion(ctx context.Context, client Doer, q LatestQuery) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	searchUrl := q.SearchUrl()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchUrl, nil)
	if err != nil {
		return "", newError(InvalidUrl, errors.WithStack(err), "fail to build request: url=%s", searchUrl)
	}
	if !q.ApiToken.IsBlank() {
		httpReq.Header.Set("Authorization", "Bearer "+q.ApiToken.Value())
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", newError(TransportError, err, "fail to query latest version: url=%s", searchUrl)
	}
	body := readBody(ctx, resp)
	log.Debugf(ctx, "LatestVersion -- response: url=%s status=%d body=%s", searchUrl, resp.StatusCode, body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case !isSuccess(resp.StatusCode):
		return "", newHttpError(resp, body, "fail to query latest version: url=%s", searchUrl)
	default:
		return body, nil
	}
}
