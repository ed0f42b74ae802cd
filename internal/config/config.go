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

package config

import (
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/congop/artifactory-publish/internal/artifactory"
	"github.com/congop/artifactory-publish/internal/opaque"
)

// DefaultRepositoryUrl is used for config files not naming a repository url.
const DefaultRepositoryUrl = "https://metatavu.jfrog.io"

// File models the publish configuration file, e.g.
//
//	common:
//	  release_version: 7
//	artifactory:
//	  repository_url: https://example.jfrog.io
//	  repository: firmware
//	  organization: org
//	  module: mymod
//	  api_token: ${sysenv.ARTIFACTORY_API_TOKEN}
type File struct {
	Common      CommonSection      `yaml:"common"`
	Artifactory ArtifactorySection `yaml:"artifactory"`
}

type CommonSection struct {
	ReleaseVersion string `yaml:"release_version"`
}

type ArtifactorySection struct {
	RepositoryUrl string        `yaml:"repository_url"`
	Repository    string        `yaml:"repository"`
	Organization  string        `yaml:"organization"`
	Module        string        `yaml:"module"`
	ApiToken      opaque.String `yaml:"api_token"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config.Load -- fail to read config file: path=%s err=%v", path, err)
	}
	file := File{}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "config.Load -- fail to decode config file: path=%s err=%v", path, err)
	}
	return &file, nil
}

// Resolve applies the ${sysenv.NAME} indirection to every value.
func (f *File) Resolve(lookupEnv LookupEnvFunc) Publish {
	resolve := func(v string) string {
		return strings.TrimSpace(ResolveIndirection(v, lookupEnv))
	}
	p := Publish{
		Version:       resolve(f.Common.ReleaseVersion),
		RepositoryUrl: resolve(f.Artifactory.RepositoryUrl),
		Repository:    resolve(f.Artifactory.Repository),
		Organization:  resolve(f.Artifactory.Organization),
		Module:        resolve(f.Artifactory.Module),
	}
	p.ApiToken.SetValue(resolve(f.Artifactory.ApiToken.Value()))
	if p.RepositoryUrl == "" {
		p.RepositoryUrl = DefaultRepositoryUrl
	}
	return p
}

// Publish is the resolved publish configuration, from flags and/or a config file.
type Publish struct {
	Source        string
	Version       string
	RepositoryUrl string
	Repository    string
	Organization  string
	Module        string
	ApiToken      opaque.String
}

// Merge returns p with the values of override for which changed returns true.
// changed receives the flag name, e.g. repository_url.
func (p Publish) Merge(override Publish, changed func(name string) bool) Publish {
	merged := p
	if changed(FlagSource) {
		merged.Source = override.Source
	}
	if changed(FlagVersion) {
		merged.Version = override.Version
	}
	if changed(FlagRepositoryUrl) {
		merged.RepositoryUrl = override.RepositoryUrl
	}
	if changed(FlagRepository) {
		merged.Repository = override.Repository
	}
	if changed(FlagOrganization) {
		merged.Organization = override.Organization
	}
	if changed(FlagModule) {
		merged.Module = override.Module
	}
	if changed(FlagApiToken) {
		merged.ApiToken = override.ApiToken
	}
	return merged
}

func required(errs *multierror.Error, key, value string) *multierror.Error {
	if strings.TrimSpace(value) == "" {
		return multierror.Append(errs, errors.Errorf("--%s is required", key))
	}
	return errs
}

// ValidateQuery checks the values needed to address an artifact.
func (p Publish) ValidateQuery() error {
	var errs *multierror.Error
	errs = required(errs, FlagRepository, p.Repository)
	errs = required(errs, FlagOrganization, p.Organization)
	errs = required(errs, FlagModule, p.Module)
	errs = required(errs, FlagApiToken, p.ApiToken.Value())
	if errs = required(errs, FlagRepositoryUrl, p.RepositoryUrl); strings.TrimSpace(p.RepositoryUrl) != "" {
		if err := artifactory.CheckBaseUrl(p.RepositoryUrl); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Validate checks all values, every problem found is reported.
func (p Publish) Validate() error {
	var errs *multierror.Error
	if errs = required(errs, FlagSource, p.Source); strings.TrimSpace(p.Source) != "" {
		if err := artifactory.CheckSource(p.Source); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs = required(errs, FlagVersion, p.Version); strings.TrimSpace(p.Version) != "" {
		if _, err := artifactory.ParseVersion(p.Version); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := p.ValidateQuery(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func (p Publish) UploadRequest() (artifactory.UploadRequest, error) {
	if err := p.Validate(); err != nil {
		return artifactory.UploadRequest{}, err
	}
	version, err := artifactory.ParseVersion(p.Version)
	if err != nil {
		return artifactory.UploadRequest{}, err
	}
	return artifactory.UploadRequest{
		SourcePath:        p.Source,
		RepositoryBaseUrl: strings.TrimSpace(p.RepositoryUrl),
		RepositoryName:    strings.TrimSpace(p.Repository),
		Organization:      strings.TrimSpace(p.Organization),
		Module:            strings.TrimSpace(p.Module),
		Version:           version,
		ApiToken:          p.ApiToken,
	}, nil
}

func (p Publish) LatestQuery() (artifactory.LatestQuery, error) {
	if err := p.ValidateQuery(); err != nil {
		return artifactory.LatestQuery{}, err
	}
	return artifactory.LatestQuery{
		RepositoryBaseUrl: strings.TrimSpace(p.RepositoryUrl),
		RepositoryName:    strings.TrimSpace(p.Repository),
		Organization:      strings.TrimSpace(p.Organization),
		Module:            strings.TrimSpace(p.Module),
		ApiToken:          p.ApiToken,
	}, nil
}
