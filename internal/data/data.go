// Package data loads the values templates are rendered with from YAML or
// JSON files and command-line strings.
package data

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	weferrors "github.com/conneroisu/weft/pkg/errors"
)

// Extensions lists the data file extensions Sibling looks for, in order.
var Extensions = []string{".yaml", ".yml", ".json"}

// Load reads a data file. Files ending in .json decode as JSON; anything
// else decodes as YAML.
func Load(path string) (any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, weferrors.NewIOError("reading data file", err).WithFile(path)
	}

	var v any
	if strings.EqualFold(filepath.Ext(path), ".json") {
		v, err = decodeJSON(content)
	} else {
		v, err = decodeYAML(content)
	}
	if err != nil {
		return nil, weferrors.NewConfigError(weferrors.ErrCodeConfigInvalid, "decoding data file", err).WithFile(path)
	}

	return v, nil
}

// Parse decodes inline data. YAML is a superset of JSON, so either works.
func Parse(s string) (any, error) {
	v, err := decodeYAML([]byte(s))
	if err != nil {
		return nil, weferrors.NewConfigError(weferrors.ErrCodeConfigInvalid, "decoding inline data", err)
	}

	return v, nil
}

// Sibling returns the data file next to a template: page.html pairs with
// page.yaml, page.yml or page.json.
func Sibling(templatePath string) (string, bool) {
	base := strings.TrimSuffix(templatePath, filepath.Ext(templatePath))
	for _, ext := range Extensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}

	return "", false
}

// Merge overlays the keys of over onto base when both are maps, and
// returns over otherwise. Neither argument is modified.
func Merge(base, over any) any {
	b, okBase := base.(map[string]any)
	o, okOver := over.(map[string]any)
	if !okBase || !okOver {
		if over == nil {
			return base
		}
		return over
	}

	out := make(map[string]any, len(b)+len(o))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range o {
		out[k] = Merge(out[k], v)
	}

	return out
}

func decodeYAML(content []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(content, &v); err != nil {
		return nil, err
	}

	return v, nil
}

func decodeJSON(content []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	return normalize(v), nil
}

// normalize turns json.Number into int or float64 so expressions can do
// arithmetic on it.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	}

	return v
}
