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

package opaque

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const mask = "********"

// String holds a credential such as an API token so that it never shows up in
// output produced through fmt, yaml or flag usage.
//
// Use Value() to get the actual string.
//
// Note: It is not a simple alias to type string to prevent
// concatenation with string and conversion to string
type String struct {
	string
}

func NewString(value string) *String {
	return &String{string: value}
}

var _ fmt.Stringer = (*String)(nil)
var _ fmt.GoStringer = (*String)(nil)
var _ fmt.Formatter = (*String)(nil)
var _ pflag.Value = (*String)(nil)
var _ yaml.Unmarshaler = (*String)(nil)
var _ yaml.Marshaler = (*String)(nil)

// String returns the mask, or an empty string when no value is held so that
// flag usage does not advertise a default.
func (ostr String) String() string {
	if len(ostr.string) == 0 {
		return ""
	}
	return mask
}

func (ostr String) Value() string {
	return ostr.string
}

// IsBlank reports whether the held value is empty or whitespace only.
func (ostr String) IsBlank() bool {
	return strings.TrimSpace(ostr.string) == ""
}

func (ostr *String) SetValue(newVal string) {
	ostr.string = newVal
}

func (ostr String) GoString() string {
	if len(ostr.string) == 0 {
		return `opaque.String("")`
	}
	return `opaque.String("` + mask + `")`
}

func (ostr String) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('#') {
			fmt.Fprint(s, ostr.GoString())
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, ostr.String())
	case 'q':
		fmt.Fprintf(s, "%q", ostr.String())
	default:
		fmt.Fprintf(s, "%%!%c(opaque.String=%s)", verb, ostr.String())
	}
}

// Set implements pflag.Value, surrounding whitespace is dropped.
func (ostr *String) Set(value string) error {
	ostr.string = strings.TrimSpace(value)
	return nil
}

func (ostr *String) Type() string {
	return "secret"
}

func (ostr *String) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	ostr.string = strings.TrimSpace(raw)
	return nil
}

// MarshalYAML never writes the held value.
func (ostr String) MarshalYAML() (interface{}, error) {
	return ostr.String(), nil
}
