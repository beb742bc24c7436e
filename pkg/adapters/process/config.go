package process

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition declares one external command exposed to the model as a tool.
type Definition struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Env         map[string]string `yaml:"env" json:"env"`
	// Parameters is a JSON-Schema object describing the call arguments.
	Parameters map[string]any `yaml:"parameters" json:"parameters"`
}

type definitionFile struct {
	Tools []Definition `yaml:"tools" json:"tools"`
}

// LoadTools reads tool definitions from a YAML (.yaml, .yml) or JSON file.
// A missing file yields no tools. Entries without a name or command and
// duplicate names are errors.
func LoadTools(path string) (map[string]Definition, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Definition{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tool definitions: %w", err)
	}

	var file definitionFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &file)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported tool definition format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	defs := make(map[string]Definition, len(file.Tools))
	for i, def := range file.Tools {
		if def.Name == "" || def.Command == "" {
			return nil, fmt.Errorf("%s: tools[%d]: name and command are required", path, i)
		}
		if _, dup := defs[def.Name]; dup {
			return nil, fmt.Errorf("%s: tool %q defined twice", path, def.Name)
		}
		defs[def.Name] = def
	}
	return defs, nil
}
