// Package index loads the identifier to display-name mapping a run checks.
package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidIndex indicates the index source could not be parsed.
	ErrInvalidIndex = errors.New("invalid index")

	// ErrDuplicateKey indicates an identifier appears more than once.
	ErrDuplicateKey = errors.New("duplicate identifier")
)

// Format is the encoding of an index file.
type Format string

const (
	// FormatJSON is a JSON object of string to string.
	FormatJSON Format = "json"

	// FormatYAML is a YAML mapping of scalar to scalar.
	FormatYAML Format = "yaml"
)

// Entry is one identifier and its display name.
type Entry struct {
	ID   string
	Name string
}

// Index is the parsed input, sorted by identifier.
type Index []Entry

// FormatFromPath picks the format from the file extension. Anything other
// than .yaml/.yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and parses the index file at path.
func Load(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read file %s: %w", path, err)
	}

	idx, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse index file %s: %w", path, err)
	}
	return idx, nil
}

// Parse decodes an index in the given format. Names are kept byte for byte.
func Parse(data []byte, format Format) (Index, error) {
	var (
		entries map[string]string
		err     error
	)

	switch format {
	case FormatJSON:
		entries, err = parseJSON(data)
	case FormatYAML:
		entries, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidIndex, format)
	}
	if err != nil {
		return nil, err
	}

	idx := make(Index, 0, len(entries))
	for id, name := range entries {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: empty identifier", ErrInvalidIndex)
		}
		idx = append(idx, Entry{ID: id, Name: name})
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i].ID < idx[j].ID })

	return idx, nil
}

// parseJSON walks the object token by token so duplicate keys are reported
// instead of silently overwritten.
func parseJSON(data []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidIndex)
	}

	entries := make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
		}
		id, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected token %v", ErrInvalidIndex, tok)
		}

		// A *string target makes null distinguishable from "".
		var name *string
		if err := dec.Decode(&name); err != nil {
			return nil, fmt.Errorf("%w: value for %q must be a string: %v", ErrInvalidIndex, id, err)
		}
		if name == nil {
			return nil, fmt.Errorf("%w: value for %q must be a string, got null", ErrInvalidIndex, id)
		}

		if _, exists := entries[id]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, id)
		}
		entries[id] = *name
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidIndex)
	}

	return entries, nil
}

// parseYAML decodes a mapping. yaml.v3 rejects duplicate keys itself.
func parseYAML(data []byte) (map[string]string, error) {
	var raw map[string]*string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		if strings.Contains(err.Error(), "already defined") {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateKey, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}

	entries := make(map[string]string, len(raw))
	for id, name := range raw {
		if name == nil {
			return nil, fmt.Errorf("%w: value for %q must be a string, got null", ErrInvalidIndex, id)
		}
		entries[id] = *name
	}
	return entries, nil
}
