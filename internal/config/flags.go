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

import "github.com/spf13/pflag"

const (
	FlagSource        = "source"
	FlagVersion       = "version"
	FlagRepository    = "repository"
	FlagRepositoryUrl = "repository_url"
	FlagModule        = "module"
	FlagOrganization  = "organization"
	FlagApiToken      = "api_token"
	FlagConfig        = "config"
)

// RegisterQueryFlags binds the flags addressing an artifact to p.
func (p *Publish) RegisterQueryFlags(fs *pflag.FlagSet) {
	fs.StringVar(&p.Repository, FlagRepository, "", "Repository name.")
	fs.StringVar(&p.RepositoryUrl, FlagRepositoryUrl, "", "Repository URL, e.g. https://example.jfrog.io")
	fs.StringVar(&p.Module, FlagModule, "", "Module name.")
	fs.StringVar(&p.Organization, FlagOrganization, "", "Organization name.")
	fs.Var(&p.ApiToken, FlagApiToken, "API Token.")
}

// RegisterFlags binds all publish flags to p.
func (p *Publish) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&p.Source, FlagSource, "", "Path to the source file.")
	fs.StringVar(&p.Version, FlagVersion, "", "Version number.")
	p.RegisterQueryFlags(fs)
}

// FromFlags returns the configuration given by the parsed fs and the optional
// config file it names. Explicitly set flags win over config file values.
func FromFlags(fs *pflag.FlagSet, flagValues Publish, lookupEnv LookupEnvFunc) (Publish, error) {
	configPath, err := fs.GetString(FlagConfig)
	if err != nil || configPath == "" {
		return flagValues, nil
	}
	file, err := Load(configPath)
	if err != nil {
		return Publish{}, err
	}
	return file.Resolve(lookupEnv).Merge(flagValues, fs.Changed), nil
}
