package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bartdeslagmulder/now-cli/internal/model"
	"gopkg.in/yaml.v3"
)

// MultipleManifestsError means more than one build manifest was found and
// the deployment type can't be picked automatically
type MultipleManifestsError struct {
	Candidates []model.DeploymentType
}

func (e *MultipleManifestsError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = "--" + string(c)
	}
	return fmt.Sprintf("Multiple manifests found, re-run with one of %s", strings.Join(names, ", "))
}

// Options fix parts of the metadata instead of detecting them
type Options struct {
	Type model.DeploymentType
	Name string
}

// Metadata describes what is being deployed from a directory
type Metadata struct {
	Type      model.DeploymentType
	Name      string
	Config    Config
	HasConfig bool
}

type packageJSON struct {
	Name string  `json:"name"`
	Now  *Config `json:"now"`
}

// Inspect reads the manifests in dir and determines type and name
func Inspect(dir string, opts Options) (*Metadata, error) {
	cfg, hasConfig, err := readConfig(dir)
	if err != nil {
		return nil, err
	}

	pkg, err := readPackage(dir)
	if err != nil {
		return nil, err
	}
	if !hasConfig && pkg != nil && pkg.Now != nil {
		cfg = *pkg.Now
		hasConfig = true
	}

	hasPackage := pkg != nil
	hasDocker := fileExists(dir, "Dockerfile")

	typ := opts.Type
	if typ == "" {
		typ = cfg.Type
	}
	if typ == "" {
		switch {
		case hasPackage && hasDocker:
			return nil, &MultipleManifestsError{Candidates: []model.DeploymentType{model.TypeNPM, model.TypeDocker}}
		case hasPackage:
			typ = model.TypeNPM
		case hasDocker:
			typ = model.TypeDocker
		default:
			typ = model.TypeStatic
		}
	}

	switch typ {
	case model.TypeNPM:
		if !hasPackage {
			return nil, model.InputErrorf("missing-manifest", "`package.json` not found in %s", dir)
		}
	case model.TypeDocker:
		if !hasDocker {
			return nil, model.InputErrorf("missing-manifest", "`Dockerfile` not found in %s", dir)
		}
	case model.TypeStatic:
	default:
		return nil, model.InputErrorf("invalid-type", "Unknown deployment type %q", typ)
	}

	name := opts.Name
	if name == "" {
		name = cfg.Name
	}
	if name == "" && typ == model.TypeNPM && pkg.Name != "" {
		name = pkg.Name
	}
	if name == "" {
		name = filepath.Base(dir)
	}

	return &Metadata{Type: typ, Name: name, Config: cfg, HasConfig: hasConfig}, nil
}

// readConfig loads the first of now.json, now.yaml, now.yml found in dir
func readConfig(dir string) (Config, bool, error) {
	var cfg Config

	if data, ok, err := readOptional(dir, "now.json"); err != nil {
		return cfg, false, err
	} else if ok {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, false, model.InputErrorf("invalid-config", "Failed to parse now.json: %v", err)
		}
		return cfg, true, nil
	}

	for _, name := range []string{"now.yaml", "now.yml"} {
		data, ok, err := readOptional(dir, name)
		if err != nil {
			return cfg, false, err
		}
		if !ok {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, false, model.InputErrorf("invalid-config", "Failed to parse %s: %v", name, err)
		}
		return cfg, true, nil
	}

	return cfg, false, nil
}

func readPackage(dir string) (*packageJSON, error) {
	data, ok, err := readOptional(dir, "package.json")
	if err != nil || !ok {
		return nil, err
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, model.InputErrorf("invalid-config", "Failed to parse package.json: %v", err)
	}
	return &pkg, nil
}

func readOptional(dir, name string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, true, nil
}

func fileExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
