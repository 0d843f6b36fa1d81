package modules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sofmeright/qualitygate/src/lint"
)

func init() {
	lint.Register("yaml", func() lint.Module { return &yamlModule{} })
}

// yamlModule mirrors check-yaml: every YAML file must parse, hold a single
// document unless allow_multiple_documents is set, and have no duplicate keys.
type yamlModule struct {
	multiDoc bool
}

func (m *yamlModule) Name() string        { return "yaml" }
func (m *yamlModule) DefaultEnabled() bool { return true }
func (m *yamlModule) AutoDetect() []string { return []string{"*.yml", "*.yaml"} }

// Configure implements lint.ConfigurableModule.
func (m *yamlModule) Configure(opts map[string]any) error {
	multi, err := toBool(opts["allow_multiple_documents"], false)
	if err != nil {
		return fmt.Errorf("allow_multiple_documents: %w", err)
	}
	m.multiDoc = multi
	return nil
}

func (m *yamlModule) Check(ctx context.Context, file lint.FileInfo) ([]lint.Finding, error) {
	ext := fileExt(file.Path)
	if ext != ".yml" && ext != ".yaml" {
		return nil, nil
	}

	data, err := os.ReadFile(file.AbsPath)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var findings []lint.Finding
	critical := func(line int, msg string) {
		findings = append(findings, lint.Finding{
			File:     file.Path,
			Line:     line,
			Module:   m.Name(),
			Severity: lint.SeverityCritical,
			Message:  msg,
		})
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	for docs := 0; ; docs++ {
		var node yaml.Node
		err := decoder.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			critical(0, fmt.Sprintf("YAML parse error: %v", err))
			break
		}
		if docs == 1 && !m.multiDoc {
			critical(node.Line, "expected a single document in the stream")
		}
		walkYAML(&node, func(key *yaml.Node, firstLine int) {
			findings = append(findings, lint.Finding{
				File:     file.Path,
				Line:     key.Line,
				Column:   key.Column,
				Module:   m.Name(),
				Severity: lint.SeverityCritical,
				Message:  fmt.Sprintf("duplicate key %q (first defined at line %d)", key.Value, firstLine),
			})
		})
	}

	return findings, nil
}

// walkYAML reports every mapping key that repeats an earlier key of the
// same mapping.
func walkYAML(node *yaml.Node, dup func(key *yaml.Node, firstLine int)) {
	if node == nil {
		return
	}
	switch node.Kind {
	case yaml.MappingNode:
		seen := make(map[string]int) // key -> first line number
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if first, exists := seen[key.Value]; exists && key.Value != "<<" {
				dup(key, first)
			} else {
				seen[key.Value] = key.Line
			}
			walkYAML(node.Content[i+1], dup)
		}
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			walkYAML(child, dup)
		}
	}
}

func fileExt(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' || path[i] == '\\' {
			break
		}
	}
	return ""
}
