package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/bartdeslagmulder/now-cli/internal/model"
	"gopkg.in/yaml.v3"
)

// Config is the project configuration read from now.json, now.yaml or the
// "now" key of package.json
type Config struct {
	Name       string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Type       model.DeploymentType   `json:"type,omitempty" yaml:"type,omitempty"`
	Env        EnvSpec                `json:"env,omitempty" yaml:"env,omitempty"`
	Scale      map[string]model.Scale `json:"scale,omitempty" yaml:"scale,omitempty"`
	Regions    []string               `json:"regions,omitempty" yaml:"regions,omitempty"`
	Dotenv     DotenvOption           `json:"dotenv,omitempty" yaml:"dotenv,omitempty"`
	Atlas      bool                   `json:"atlas,omitempty" yaml:"atlas,omitempty"`
	ForwardNpm bool                   `json:"forwardNpm,omitempty" yaml:"forwardNpm,omitempty"`
}

// EnvSpec maps env keys to values; a nil value means "ask the user".
// It accepts either an object or a list of "KEY" / "KEY=value" strings.
type EnvSpec map[string]*string

func (e *EnvSpec) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*e = envFromList(list)
		return nil
	}

	var obj map[string]*string
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("env must be an object or a list of strings: %w", err)
	}
	*e = obj
	return nil
}

func (e *EnvSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*e = envFromList(list)
		return nil
	case yaml.MappingNode:
		out := EnvSpec{}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i].Value, node.Content[i+1]
			if val.Tag == "!!null" {
				out[key] = nil
				continue
			}
			v := val.Value
			out[key] = &v
		}
		*e = out
		return nil
	default:
		return fmt.Errorf("env must be a mapping or a list of strings")
	}
}

func envFromList(list []string) EnvSpec {
	out := EnvSpec{}
	for _, item := range list {
		key, value, found := strings.Cut(item, "=")
		if !found {
			out[key] = nil
			continue
		}
		v := value
		out[key] = &v
	}
	return out
}

// Keys returns the env keys in sorted order
func (e EnvSpec) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DotenvOption is `true` (use .env) or a file name
type DotenvOption struct {
	Enabled bool
	File    string
}

// Path returns the dotenv file to read, or "" when disabled
func (d DotenvOption) Path(defaultFile string) string {
	if !d.Enabled {
		return ""
	}
	if d.File != "" {
		return d.File
	}
	return defaultFile
}

func (d *DotenvOption) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*d = DotenvOption{Enabled: b}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("dotenv must be a boolean or a file name: %w", err)
	}
	*d = DotenvOption{Enabled: s != "", File: s}
	return nil
}

func (d DotenvOption) MarshalJSON() ([]byte, error) {
	if d.File != "" {
		return json.Marshal(d.File)
	}
	return json.Marshal(d.Enabled)
}

func (d *DotenvOption) UnmarshalYAML(node *yaml.Node) error {
	var b bool
	if err := node.Decode(&b); err == nil {
		*d = DotenvOption{Enabled: b}
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("dotenv must be a boolean or a file name: %w", err)
	}
	*d = DotenvOption{Enabled: s != "", File: s}
	return nil
}
