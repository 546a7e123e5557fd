package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Limits applied to every configuration input.
const (
	maxConfigSize = 1 << 20 // bytes per config file
	maxDepth      = 32      // container nesting in JSON and YAML documents
	maxEnvVarLen  = 256
	maxPathLen    = 4096
)

// fileFormat selects the decoder for a config file.
type fileFormat int

const (
	formatJSON fileFormat = iota
	formatYAML
)

// String returns the format name.
func (f fileFormat) String() string {
	if f == formatYAML {
		return "YAML"
	}
	return "JSON"
}

// formatFor checks path and reports which format it holds, judged by extension.
// Paths with parent directory segments are refused.
func formatFor(path string) (fileFormat, error) {
	if path == "" {
		return 0, errors.New("empty config path")
	}
	if len(path) > maxPathLen {
		return 0, fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		return 0, fmt.Errorf("path traversal not allowed: %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return 0, fmt.Errorf("only JSON or YAML config files allowed: %s", path)
	}
}

// readConfig reads a regular file of at most maxConfigSize bytes.
func readConfig(path string) ([]byte, fileFormat, error) {
	format, err := formatFor(path)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid config path: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, 0, fmt.Errorf("not a regular file: %s", path)
	}

	// One byte over the limit is enough to tell that the file is too large,
	// even if it grew after Stat.
	data, err := io.ReadAll(io.LimitReader(f, maxConfigSize+1))
	if err != nil {
		return nil, 0, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > maxConfigSize {
		return nil, 0, fmt.Errorf("config file too large: more than %d bytes", maxConfigSize)
	}
	return data, format, nil
}

// writeConfig writes data owner read/write only.
func writeConfig(path string, data []byte) error {
	if _, err := formatFor(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config data too large: %d bytes > %d", len(data), maxConfigSize)
	}
	return os.WriteFile(path, data, 0600)
}

// checkEnvValue rejects override values no config field could hold.
func checkEnvValue(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}

// checkJSONDepth walks the token stream and fails once objects and arrays
// nest deeper than maxDepth.
func checkJSONDepth(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("malformed JSON: %w", err)
		}

		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > maxDepth {
				return fmt.Errorf("JSON nesting too deep: %d > %d", depth, maxDepth)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
	if depth != 0 {
		return fmt.Errorf("malformed JSON: unclosed brackets (depth=%d)", depth)
	}
	return nil
}

// decodeYAML parses data into a generic map after checking its nesting.
func decodeYAML(data []byte) (map[string]any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	if err := checkYAMLDepth(&doc); err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := doc.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return raw, nil
}

// checkYAMLDepth fails when mappings and sequences nest deeper than maxDepth.
// An alias counts with the depth of the node it refers to.
func checkYAMLDepth(doc *yaml.Node) error {
	h := &yamlHeights{seen: make(map[*yaml.Node]int)}
	if depth := h.of(doc); depth > maxDepth {
		return fmt.Errorf("YAML nesting too deep: more than %d levels", maxDepth)
	}
	return nil
}

// yamlHeights memoizes container heights so shared anchors are measured once.
type yamlHeights struct {
	seen map[*yaml.Node]int
}

func (h *yamlHeights) of(n *yaml.Node) int {
	if height, ok := h.seen[n]; ok {
		return height
	}
	// A node reached again while still being measured is a recursive alias.
	h.seen[n] = maxDepth + 1

	height := 0
	if n.Kind == yaml.AliasNode {
		if n.Alias != nil {
			height = h.of(n.Alias)
		}
	} else {
		for _, child := range n.Content {
			height = max(height, h.of(child))
			if height > maxDepth {
				break
			}
		}
		if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
			height++
		}
	}

	h.seen[n] = height
	return height
}
